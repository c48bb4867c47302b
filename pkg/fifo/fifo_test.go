package fifo

import (
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mculink/pkg/dev"
)

func drain(t *testing.T, c *Channel) []byte {
	var out []byte
	buf := make([]byte, 7)
	for c.Len() > 0 {
		n, err := c.Read(buf)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
	}
	return out
}

func TestOrderAcrossWraparound(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, size := range []int{2, 3, 8, 17, 128} {
		c := New(Config{Size: size, NonBlocking: true})
		var expected, actual []byte
		for round := 0; round < 50; round++ {
			piece := make([]byte, rnd.Intn(size*2)+1)
			rnd.Read(piece)
			for len(piece) > 0 {
				n, err := c.Write(piece)
				require.NoError(t, err)
				expected = append(expected, piece[:n]...)
				piece = piece[n:]
				if n == 0 || rnd.Intn(2) == 0 {
					actual = append(actual, drain(t, c)...)
				}
				require.True(t, c.Len() <= c.Cap())
			}
		}
		actual = append(actual, drain(t, c)...)
		require.Equal(t, expected, actual, "size %d", size)
	}
}

func TestNonBlockingShortCount(t *testing.T) {
	c := New(Config{Size: 5, NonBlocking: true})
	n, err := c.Write([]byte("abcdefg"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, 4, c.Len())

	n, err = c.Write([]byte("x"))
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, uint64(2), c.Info().Overflow)

	buf := make([]byte, 10)
	n, err = c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(buf[:n]))

	n, err = c.Read(buf)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWriteHook(t *testing.T) {
	var calls []int
	c := New(Config{Size: 8, NonBlocking: true, OnWrite: func(n int) { calls = append(calls, n) }})
	c.Write([]byte("hello"))
	c.Write(nil)
	c.Write([]byte("world"))
	c.Write([]byte("!"))
	require.Equal(t, []int{5, 2}, calls)
}

func TestBlockingWriteUnblockedByRead(t *testing.T) {
	c := New(Config{Size: 4, Timeout: 2 * time.Second})
	n, err := c.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, c.Cap(), n)

	type result struct {
		n   int
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		n, err := c.Write([]byte("de"))
		resCh <- result{n, err}
	}()

	select {
	case <-resCh:
		t.Fatal("write should block on a full channel")
	case <-time.After(50 * time.Millisecond):
	}

	buf := make([]byte, 1)
	n, err = c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		require.Equal(t, 1, res.n)
	case <-time.After(time.Second):
		t.Fatal("write not unblocked")
	}
	require.Equal(t, []byte("bcd"), drain(t, c))
}

func TestBlockingTimeout(t *testing.T) {
	c := New(Config{Size: 2, Timeout: 20 * time.Millisecond})
	buf := make([]byte, 1)
	_, err := c.Read(buf)
	require.Equal(t, dev.ErrTimeout, err)
	require.True(t, os.IsTimeout(err))

	_, err = c.Write([]byte("a"))
	require.NoError(t, err)
	_, err = c.Write([]byte("b"))
	require.Equal(t, dev.ErrTimeout, err)
}

func TestCloseUnblocks(t *testing.T) {
	c := New(Config{Size: 4, Timeout: 5 * time.Second})
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Read(make([]byte, 1))
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Close())
	select {
	case err := <-errCh:
		require.Equal(t, dev.ErrClosed, err)
	case <-time.After(time.Second):
		t.Fatal("read not unblocked by close")
	}
	_, err := c.Write([]byte("a"))
	require.Equal(t, dev.ErrClosed, err)
	require.Equal(t, dev.ErrClosed, c.Close())
}

func TestCloseKeepsBufferedBytes(t *testing.T) {
	c := New(Config{Size: 8})
	c.Write([]byte("abc"))
	c.Close()
	buf := make([]byte, 8)
	n, err := c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf[:n]))
	_, err = c.Read(buf)
	require.Equal(t, dev.ErrClosed, err)
}

func TestDeviceIoctl(t *testing.T) {
	d := NewDevice(Config{Size: 4, Timeout: 20 * time.Millisecond})
	h, err := d.Open(dev.ReadWrite)
	require.NoError(t, err)

	require.NoError(t, h.Ioctl(ReqSetWriteBlock, false))
	n, err := h.Write([]byte("abcdef"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	var info Info
	require.NoError(t, h.Ioctl(ReqInfo, &info))
	require.Equal(t, Info{Size: 4, Used: 3, Overflow: 1, NonBlocking: true}, info)

	require.NoError(t, h.Ioctl(ReqFlush, nil))
	require.Zero(t, d.Channel.Len())

	require.NoError(t, h.Ioctl(ReqSetWriteBlock, true))
	require.False(t, d.Channel.Info().NonBlocking)
	require.Error(t, h.Ioctl(ReqSetWriteBlock, "yes"))

	ro, err := d.Open(dev.ReadOnly | dev.NonBlock)
	require.NoError(t, err)
	_, err = ro.Write([]byte("a"))
	require.Equal(t, dev.ErrPermission, err)
	n, err = ro.Read(make([]byte, 1))
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, h.Close())
	_, err = h.Write([]byte("a"))
	require.Equal(t, dev.ErrClosed, err)
	require.Empty(t, drain(t, d.Channel))
}
