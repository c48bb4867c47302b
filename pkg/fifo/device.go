package fifo

import (
	"sync"

	"github.com/robotalks/mculink/pkg/dev"
)

// Requests
const (
	// ReqInfo reads the channel state into *Info.
	ReqInfo dev.Request = 0x66690001
	// ReqFlush discards buffered bytes, the argument is ignored.
	ReqFlush dev.Request = 0x66690002
	// ReqSetWriteBlock takes a bool, true selects blocking mode.
	ReqSetWriteBlock dev.Request = 0x66690003
)

// Device exposes a Channel through the low-level I/O capability set.
type Device struct {
	Channel *Channel
}

// NewDevice creates a Channel and wraps it as a Device.
func NewDevice(conf Config) *Device {
	return &Device{Channel: New(conf)}
}

// Open implements dev.Device. Closing the handle leaves the channel intact.
func (d *Device) Open(flags dev.OpenFlag) (dev.Handle, error) {
	return &handle{ch: d.Channel, flags: flags}, nil
}

type handle struct {
	ch     *Channel
	flags  dev.OpenFlag
	closed bool
	lock   sync.Mutex
}

func (h *handle) isClosed() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.closed
}

func (h *handle) Read(p []byte) (int, error) {
	if h.isClosed() {
		return 0, dev.ErrClosed
	}
	if !h.flags.CanRead() {
		return 0, dev.ErrPermission
	}
	return h.ch.read(p, h.flags&dev.NonBlock != 0)
}

func (h *handle) Write(p []byte) (int, error) {
	if h.isClosed() {
		return 0, dev.ErrClosed
	}
	if !h.flags.CanWrite() {
		return 0, dev.ErrPermission
	}
	return h.ch.write(p, h.flags&dev.NonBlock != 0)
}

func (h *handle) Close() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed {
		return dev.ErrClosed
	}
	h.closed = true
	return nil
}

func (h *handle) Ioctl(req dev.Request, arg interface{}) error {
	if h.isClosed() {
		return dev.ErrClosed
	}
	switch req {
	case ReqInfo:
		out, ok := arg.(*Info)
		if !ok {
			return &dev.IoctlError{Request: req, Err: dev.ErrBadArg}
		}
		*out = h.ch.Info()
	case ReqFlush:
		h.ch.Flush()
	case ReqSetWriteBlock:
		block, ok := arg.(bool)
		if !ok {
			return &dev.IoctlError{Request: req, Err: dev.ErrBadArg}
		}
		h.ch.SetNonBlocking(!block)
	default:
		return &dev.IoctlError{Request: req, Err: dev.ErrNotSupported}
	}
	return nil
}
