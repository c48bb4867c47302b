package link

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/dev/pio"
)

func TestOpenBracketsConnectSignal(t *testing.T) {
	env := newPHYTestEnv()
	ep, err := env.phy.Open(context.Background(), "link-phy-usb", 460800)
	require.NoError(t, err)
	require.NotEqual(t, -1, ep.Handle)
	require.Equal(t, -1, ep.NotifyHandle)
	require.Equal(t, DefaultTimeout, ep.Timeout)
	require.Equal(t, StateOpen, env.phy.State())

	require.Equal(t, []uint32{testMask}, env.transport.levels)
	lc := env.transport.contexts[0]
	require.Equal(t, "link-phy-usb", lc.Name)
	require.Equal(t, 460800, lc.BaudRate)
	require.Equal(t, Transport(env.transport), lc.Transport)

	require.Zero(t, env.port.Level())
	require.Equal(t, testMask, env.port.Dir())
	require.Zero(t, env.port.OpenCount())
	var ops []pio.Op
	for _, tr := range env.port.Transitions() {
		ops = append(ops, tr.Op)
	}
	require.Equal(t, []pio.Op{pio.OpSetMask, pio.OpSetAttr, pio.OpClrMask}, ops)
	require.Empty(t, env.fatal)
}

func TestOpenWithoutHost(t *testing.T) {
	env := newPHYTestEnv()
	env.phy.SetTimeout(20 * time.Millisecond)
	ep, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.NoError(t, err)
	require.True(t, ep.IsOpen())
	require.Zero(t, env.port.Level())
	require.Equal(t, ErrTimeout, env.phy.Wait())

	go env.transport.host(0).Write([]byte("hi"))
	buf := make([]byte, 8)
	env.phy.SetTimeout(time.Second)
	n, err := env.phy.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf[:n]))
	require.NoError(t, env.phy.Wait())
}

func TestOpenFailureReleasesSignal(t *testing.T) {
	env := newPHYTestEnv()
	cause := errors.New("usb controller down")
	env.transport.err = cause
	ep, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, cause))
	var openErr *OpenError
	require.True(t, errors.As(err, &openErr))
	require.Equal(t, -1, ep.Handle)
	require.Equal(t, StateClosed, env.phy.State())
	require.Equal(t, []uint32{testMask}, env.transport.levels)
	require.Zero(t, env.port.Level())
	require.Zero(t, env.port.OpenCount())

	env.transport.err = nil
	_, err = env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.NoError(t, err)
	require.Zero(t, env.port.Level())
}

func TestOpenPortUnavailable(t *testing.T) {
	env := newPHYTestEnv()
	env.port.FailOpen = errors.New("pio busy")
	_, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.True(t, errors.Is(err, env.port.FailOpen))
	require.Empty(t, env.transport.levels)
	require.Equal(t, StateClosed, env.phy.State())

	env.signal.Port = "/dev/pio9"
	_, err = env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.True(t, errors.Is(err, errNoDevice))
}

func TestFatalConfigError(t *testing.T) {
	env := newPHYTestEnv()
	env.port.FailIoctl = errors.New("clock gated")
	_, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, env.port.FailIoctl))
	require.Len(t, env.fatal, 1)
	require.Empty(t, env.transport.levels)
	require.Zero(t, env.port.OpenCount())
	require.Equal(t, StateClosed, env.phy.State())
}

func TestOpenCloseSequences(t *testing.T) {
	env := newPHYTestEnv()
	for i := 0; i < 5; i++ {
		if i%2 == 1 {
			env.transport.err = errors.New("flaky")
		} else {
			env.transport.err = nil
		}
		ep, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
		require.Zero(t, env.port.Level(), "attempt %d", i)
		if err == nil {
			require.True(t, ep.IsOpen())
			require.NoError(t, env.phy.Close())
			require.NoError(t, env.phy.Close())
			require.False(t, env.phy.Endpoint().IsOpen())
		}
		require.Zero(t, env.port.Level(), "attempt %d", i)
	}
	require.Len(t, env.transport.levels, 5)
	for _, lv := range env.transport.levels {
		require.Equal(t, testMask, lv)
	}
}

func TestConcurrentOpenBusy(t *testing.T) {
	env := newPHYTestEnv()
	env.transport.block = make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return env.phy.State() == StateOpening }, time.Second, time.Millisecond)
	_, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.Equal(t, ErrBusy, err)
	require.Equal(t, testMask, env.port.Level())
	close(env.transport.block)
	require.NoError(t, <-errCh)
	require.Zero(t, env.port.Level())
}

func TestCloseUnblocksRead(t *testing.T) {
	env := newPHYTestEnv()
	env.phy.SetTimeout(5 * time.Second)
	_, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := env.phy.Read(make([]byte, 4))
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, env.phy.Close())
	select {
	case err := <-errCh:
		require.Equal(t, ErrClosed, err)
		require.True(t, errors.Is(err, io.EOF))
	case <-time.After(time.Second):
		t.Fatal("read not unblocked by close")
	}

	_, err = env.phy.Read(make([]byte, 4))
	require.Equal(t, ErrClosed, err)
	_, err = env.phy.Write([]byte("x"))
	require.Equal(t, ErrClosed, err)
	require.Equal(t, ErrClosed, env.phy.Flush())
}

func TestWriteThroughEndpoint(t *testing.T) {
	env := newPHYTestEnv()
	_, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.NoError(t, err)
	go func() {
		n, err := env.phy.Write([]byte("hello"))
		require.NoError(t, err)
		require.Equal(t, 5, n)
	}()
	buf := make([]byte, 5)
	_, err = io.ReadFull(env.transport.host(0), buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
	require.NoError(t, env.phy.Flush())
	require.NoError(t, env.phy.Close())
}

func TestNotifyChannel(t *testing.T) {
	env := newPHYTestEnv()
	sink := &testSink{}
	require.Equal(t, ErrClosed, env.phy.OpenNotify(sink))

	_, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.NoError(t, err)
	require.False(t, env.phy.NotifyActive())
	require.Equal(t, ErrNotifyInactive, env.phy.SendNotify(NewDeviceWrite("stdio-out", 3)))
	require.Equal(t, dev.ErrNotSupported, env.phy.OpenNotify(nil))

	require.NoError(t, env.phy.OpenNotify(sink))
	require.Equal(t, ErrBusy, env.phy.OpenNotify(sink))
	require.True(t, env.phy.NotifyActive())
	ep := env.phy.Endpoint()
	require.NotEqual(t, -1, ep.NotifyHandle)
	require.NotEqual(t, ep.Handle, ep.NotifyHandle)

	require.NoError(t, env.phy.SendNotify(NewDeviceWrite("stdio-out", 3)))
	require.Len(t, sink.records, 1)
	var ev NotifyEvent
	require.NoError(t, ev.UnmarshalBinary(sink.records[0]))
	require.Equal(t, NotifyEvent{Kind: NotifyDeviceWrite, Name: "stdio-out", Nbyte: 3}, ev)

	require.NoError(t, env.phy.CloseNotify())
	require.True(t, sink.closed)
	require.False(t, env.phy.NotifyActive())

	sink = &testSink{}
	require.NoError(t, env.phy.OpenNotify(sink))
	require.NoError(t, env.phy.Close())
	require.True(t, sink.closed)
	require.Equal(t, -1, env.phy.Endpoint().NotifyHandle)
}

// gatedNotifyConn opens its notification channel only once released.
type gatedNotifyConn struct {
	Conn
	entered chan struct{}
	release chan struct{}
	sink    *testSink
}

func (c *gatedNotifyConn) OpenNotify() (NotifySink, error) {
	close(c.entered)
	<-c.release
	return c.sink, nil
}

func TestPendingNotifyOpen(t *testing.T) {
	env := newPHYTestEnv()
	conn := &gatedNotifyConn{entered: make(chan struct{}), release: make(chan struct{}), sink: &testSink{}}
	env.phy.Transport = TransportFunc(func(ctx *Context) (Conn, error) {
		c, err := env.transport.Open(ctx)
		if err != nil {
			return nil, err
		}
		conn.Conn = c
		return conn, nil
	})
	_, err := env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.NoError(t, err)

	notifyCh := make(chan error, 1)
	go func() { notifyCh <- env.phy.OpenNotify(nil) }()
	select {
	case <-conn.entered:
	case <-time.After(time.Second):
		t.Fatal("notification channel not being opened")
	}

	type result struct {
		active   bool
		openErr  error
		closeErr error
	}
	resCh := make(chan result, 1)
	go func() {
		var r result
		r.active = env.phy.NotifyActive()
		r.openErr = env.phy.OpenNotify(nil)
		r.closeErr = env.phy.Close()
		resCh <- r
	}()
	select {
	case r := <-resCh:
		require.False(t, r.active)
		require.Equal(t, ErrBusy, r.openErr)
		require.NoError(t, r.closeErr)
	case <-time.After(time.Second):
		t.Fatal("PHY locked while the notification channel is opened")
	}

	close(conn.release)
	select {
	case err := <-notifyCh:
		require.Equal(t, ErrClosed, err)
	case <-time.After(time.Second):
		t.Fatal("notification open not finished")
	}
	require.True(t, conn.sink.closed)
	require.Equal(t, -1, env.phy.Endpoint().NotifyHandle)

	// a reopened endpoint is not held back by the stale open
	_, err = env.phy.Open(context.Background(), "link-phy-usb", 0)
	require.NoError(t, err)
	sink := &testSink{}
	require.NoError(t, env.phy.OpenNotify(sink))
	require.True(t, env.phy.NotifyActive())
	require.NoError(t, env.phy.Close())
}
