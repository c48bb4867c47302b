package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/mculink/pkg/link"
)

func openTestConn(t *testing.T) *Conn {
	conn, err := New("127.0.0.1:0").Open(&link.Context{Name: "link-phy-usb"})
	require.NoError(t, err)
	return conn.(*Conn)
}

func dial(t *testing.T, c *Conn, path string) *websocket.Conn {
	ws, err := websocket.Dial("ws://"+c.Addr().String()+path, "", "http://localhost/")
	require.NoError(t, err)
	return ws
}

func TestLinkHost(t *testing.T) {
	c := openTestConn(t)
	defer c.Close()

	_, err := c.Write([]byte("x"), 100*time.Millisecond)
	require.Equal(t, link.ErrNoHost, err)
	require.Equal(t, link.ErrTimeout, c.Wait(10*time.Millisecond))

	host := dial(t, c, DefaultLinkPath)
	defer host.Close()
	require.NoError(t, c.Wait(time.Second))

	require.NoError(t, websocket.Message.Send(host, []byte("hello")))
	buf := make([]byte, 16)
	n, err := c.Read(buf, time.Second)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	n, err = c.Write([]byte("world"), time.Second)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	var pkt []byte
	require.NoError(t, websocket.Message.Receive(host, &pkt))
	require.Equal(t, "world", string(pkt))

	// a second host is rejected
	other := dial(t, c, DefaultLinkPath)
	defer other.Close()
	require.Error(t, websocket.Message.Receive(other, &pkt))
}

func TestNotifyWatchers(t *testing.T) {
	c := openTestConn(t)
	defer c.Close()

	w := dial(t, c, DefaultNotifyPath)
	defer w.Close()
	require.Eventually(t, func() bool {
		return len(c.watcherList()) == 1
	}, time.Second, 10*time.Millisecond)

	sink, err := c.OpenNotify()
	require.NoError(t, err)
	_, err = c.OpenNotify()
	require.Equal(t, link.ErrBusy, err)

	rec, err := link.NewDeviceWrite("stdio-out", 3).MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, sink.SendNotify(rec, time.Second))
	var pkt []byte
	require.NoError(t, websocket.Message.Receive(w, &pkt))
	require.Len(t, pkt, link.NotifyRecordSize)
	var ev link.NotifyEvent
	require.NoError(t, ev.UnmarshalBinary(pkt))
	require.Equal(t, "stdio-out", ev.Name)
	require.Equal(t, uint32(3), ev.Nbyte)

	require.NoError(t, sink.Close())
	sink, err = c.OpenNotify()
	require.NoError(t, err)
	require.NoError(t, sink.Close())
}

func TestCloseDisconnects(t *testing.T) {
	c := openTestConn(t)
	host := dial(t, c, DefaultLinkPath)
	defer host.Close()
	require.NoError(t, c.Wait(time.Second))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Read(make([]byte, 4), 0)
		errCh <- err
	}()
	require.NoError(t, c.Close())
	select {
	case err := <-errCh:
		require.Equal(t, link.ErrClosed, err)
	case <-time.After(time.Second):
		t.Fatal("read not unblocked")
	}
	var pkt []byte
	require.Error(t, websocket.Message.Receive(host, &pkt))
	_, err := c.OpenNotify()
	require.Equal(t, link.ErrClosed, err)
}
