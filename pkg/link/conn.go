package link

import (
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// TimedConn adapts an io.ReadWriteCloser into a Conn with bounded operations.
// A background loop reads from the stream so a pending Read can always be
// unblocked by timeout or Close.
type TimedConn struct {
	rwc io.ReadWriteCloser

	readCh   chan []byte
	errCh    chan error
	pending  []byte
	readErr  error
	readLock sync.Mutex

	writeSem chan struct{}

	hostCh    chan struct{}
	hostOnce  sync.Once
	closeCh   chan struct{}
	closeOnce sync.Once
}

// ReadBufferSize is the chunk size of the background read loop.
const ReadBufferSize = 512

// NewTimedConn creates a TimedConn and starts reading from rwc.
// If attached is false, the host is considered attached when the first
// bytes arrive or Attach is called.
func NewTimedConn(rwc io.ReadWriteCloser, attached bool) *TimedConn {
	c := &TimedConn{
		rwc:      rwc,
		readCh:   make(chan []byte),
		errCh:    make(chan error, 1),
		writeSem: make(chan struct{}, 1),
		hostCh:   make(chan struct{}),
		closeCh:  make(chan struct{}),
	}
	if attached {
		c.Attach()
	}
	go c.readLoop()
	return c
}

// Attach marks the host as attached.
func (c *TimedConn) Attach() {
	c.hostOnce.Do(func() { close(c.hostCh) })
}

// Attached indicates a host is attached.
func (c *TimedConn) Attached() bool {
	select {
	case <-c.hostCh:
		return true
	default:
		return false
	}
}

func (c *TimedConn) readLoop() {
	for {
		buf := make([]byte, ReadBufferSize)
		n, err := c.rwc.Read(buf)
		if n > 0 {
			c.Attach()
			select {
			case c.readCh <- buf[:n]:
			case <-c.closeCh:
				return
			}
		}
		if err != nil {
			glog.V(2).Infof("link read loop stopped: %v", err)
			c.errCh <- err
			return
		}
	}
}

func timerChan(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout <= 0 {
		return nil, func() {}
	}
	t := time.NewTimer(timeout)
	return t.C, func() { t.Stop() }
}

// Read implements Conn.
func (c *TimedConn) Read(p []byte, timeout time.Duration) (int, error) {
	c.readLock.Lock()
	defer c.readLock.Unlock()
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	if c.readErr != nil {
		return 0, c.readErr
	}
	timer, stop := timerChan(timeout)
	defer stop()
	select {
	case data := <-c.readCh:
		n := copy(p, data)
		c.pending = data[n:]
		return n, nil
	case err := <-c.errCh:
		if err == io.EOF || err == io.ErrClosedPipe {
			err = ErrClosed
		}
		c.readErr = err
		return 0, err
	case <-c.closeCh:
		return 0, ErrClosed
	case <-timer:
		return 0, ErrTimeout
	}
}

// Write implements Conn.
func (c *TimedConn) Write(p []byte, timeout time.Duration) (int, error) {
	timer, stop := timerChan(timeout)
	defer stop()
	select {
	case c.writeSem <- struct{}{}:
	case <-c.closeCh:
		return 0, ErrClosed
	case <-timer:
		return 0, ErrTimeout
	}
	type result struct {
		n   int
		err error
	}
	data := append([]byte(nil), p...)
	resCh := make(chan result, 1)
	go func() {
		n, err := c.rwc.Write(data)
		<-c.writeSem
		resCh <- result{n, err}
	}()
	select {
	case res := <-resCh:
		return res.n, res.err
	case <-c.closeCh:
		return 0, ErrClosed
	case <-timer:
		return 0, ErrTimeout
	}
}

// Wait implements Conn.
func (c *TimedConn) Wait(timeout time.Duration) error {
	timer, stop := timerChan(timeout)
	defer stop()
	select {
	case <-c.hostCh:
		return nil
	case <-c.closeCh:
		return ErrClosed
	case <-timer:
		return ErrTimeout
	}
}

// Flush implements Conn.
func (c *TimedConn) Flush() error {
	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}
	if f, ok := c.rwc.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close implements Conn.
func (c *TimedConn) Close() (err error) {
	err = ErrClosed
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.rwc.Close()
	})
	return
}
