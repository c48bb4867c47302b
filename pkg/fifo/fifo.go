// Package fifo provides the fixed-capacity byte ring used for buffered I/O
// such as standard I/O redirection.
//
// A Channel has one producer and one consumer. When the ring is full a
// blocking writer waits until the consumer frees space, a non-blocking
// writer returns a short count. Reads behave the same way on an empty ring.
// Every suspension is bounded by the channel timeout and Close unblocks
// all waiters with dev.ErrClosed.
package fifo

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/dev"
)

// DefaultTimeout bounds blocking operations when Config.Timeout is zero.
const DefaultTimeout = 500 * time.Millisecond

// WriteHook is called after bytes are written into the channel.
type WriteHook func(nbyte int)

// Config defines a Channel.
type Config struct {
	// Size is the size of the backing storage, the capacity is Size-1.
	Size int
	// NonBlocking makes full writes and empty reads return short counts.
	NonBlocking bool
	// Timeout bounds blocking operations.
	Timeout time.Duration
	// OnWrite is invoked synchronously after every non-empty write.
	OnWrite WriteHook
}

// Info is a snapshot of channel state.
type Info struct {
	Size        int
	Used        int
	Overflow    uint64 // non-blocking writes cut short
	NonBlocking bool
}

// Channel is a single-producer/single-consumer ring buffer.
type Channel struct {
	buf         []byte
	head        int
	tail        int
	nonBlocking bool
	timeout     time.Duration
	onWrite     WriteHook
	overflow    uint64
	closed      bool
	lock        sync.Mutex

	// pending read/write operations wait on these.
	readReady  chan struct{}
	writeReady chan struct{}
	closeCh    chan struct{}
}

// New creates a Channel.
func New(conf Config) *Channel {
	if conf.Size < 2 {
		panic("fifo: size must be at least 2")
	}
	c := &Channel{
		buf:         make([]byte, conf.Size),
		nonBlocking: conf.NonBlocking,
		timeout:     conf.Timeout,
		onWrite:     conf.OnWrite,
		readReady:   make(chan struct{}, 1),
		writeReady:  make(chan struct{}, 1),
		closeCh:     make(chan struct{}),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// Size returns the size of the backing storage.
func (c *Channel) Size() int {
	return len(c.buf)
}

// Cap returns the number of bytes the channel can hold.
func (c *Channel) Cap() int {
	return len(c.buf) - 1
}

// Len returns the number of buffered bytes.
func (c *Channel) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.used()
}

// SetNonBlocking changes the full/empty policy of the channel.
func (c *Channel) SetNonBlocking(en bool) {
	c.lock.Lock()
	c.nonBlocking = en
	c.lock.Unlock()
}

// SetWriteHook replaces the write hook.
func (c *Channel) SetWriteHook(fn WriteHook) {
	c.lock.Lock()
	c.onWrite = fn
	c.lock.Unlock()
}

// Info returns a snapshot of the channel state.
func (c *Channel) Info() Info {
	c.lock.Lock()
	defer c.lock.Unlock()
	return Info{
		Size:        len(c.buf),
		Used:        c.used(),
		Overflow:    c.overflow,
		NonBlocking: c.nonBlocking,
	}
}

// Flush discards all buffered bytes.
func (c *Channel) Flush() {
	c.lock.Lock()
	c.head, c.tail = 0, 0
	c.lock.Unlock()
	wake(c.writeReady)
}

// Write copies as many bytes as fit into the channel.
// It returns a short count instead of an error when the channel is full in
// non-blocking mode. In blocking mode it waits until at least one byte fits.
func (c *Channel) Write(p []byte) (int, error) {
	return c.write(p, false)
}

// Read dequeues up to len(p) bytes in insertion order.
func (c *Channel) Read(p []byte) (int, error) {
	return c.read(p, false)
}

// Close unblocks pending operations. Buffered bytes remain readable.
func (c *Channel) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return dev.ErrClosed
	}
	c.closed = true
	close(c.closeCh)
	return nil
}

func (c *Channel) write(p []byte, nonBlock bool) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		c.lock.Lock()
		if c.closed {
			c.lock.Unlock()
			return 0, dev.ErrClosed
		}
		n := c.put(p)
		nonBlock = nonBlock || c.nonBlocking
		if n < len(p) && nonBlock {
			c.overflow++
		}
		hook := c.onWrite
		c.lock.Unlock()

		if n > 0 {
			wake(c.readReady)
			if hook != nil {
				hook(n)
			}
			return n, nil
		}
		if nonBlock {
			return 0, nil
		}
		if timer == nil {
			timer = time.NewTimer(c.timeout)
		}
		select {
		case <-c.writeReady:
		case <-c.closeCh:
			return 0, dev.ErrClosed
		case <-timer.C:
			glog.V(2).Infof("fifo write timeout after %v", c.timeout)
			return 0, dev.ErrTimeout
		}
	}
}

func (c *Channel) read(p []byte, nonBlock bool) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		c.lock.Lock()
		n := c.get(p)
		closed := c.closed
		nonBlock = nonBlock || c.nonBlocking
		c.lock.Unlock()

		if n > 0 {
			wake(c.writeReady)
			return n, nil
		}
		if closed {
			return 0, dev.ErrClosed
		}
		if nonBlock {
			return 0, nil
		}
		if timer == nil {
			timer = time.NewTimer(c.timeout)
		}
		select {
		case <-c.readReady:
		case <-c.closeCh:
		case <-timer.C:
			return 0, dev.ErrTimeout
		}
	}
}

func (c *Channel) used() int {
	size := len(c.buf)
	return (c.tail - c.head + size) % size
}

// put must be called with lock held.
func (c *Channel) put(p []byte) int {
	size := len(c.buf)
	n := size - 1 - c.used()
	if n > len(p) {
		n = len(p)
	}
	for written := 0; written < n; {
		end := size
		if c.head > c.tail {
			end = c.head
		}
		chunk := copy(c.buf[c.tail:end], p[written:n])
		written += chunk
		c.tail = (c.tail + chunk) % size
	}
	return n
}

// get must be called with lock held.
func (c *Channel) get(p []byte) int {
	size := len(c.buf)
	n := c.used()
	if n > len(p) {
		n = len(p)
	}
	for read := 0; read < n; {
		end := size
		if c.tail > c.head {
			end = c.tail
		}
		chunk := copy(p[read:n], c.buf[c.head:end])
		read += chunk
		c.head = (c.head + chunk) % size
	}
	return n
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
