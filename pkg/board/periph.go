package board

import (
	"fmt"
	"sync"

	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/link"
)

// PeriphRegisters is the size of a peripheral's register file.
const PeriphRegisters = 64

// Periph is an MCU peripheral modeled as a register file.
// Reads and writes go to the registers from offset 0.
type Periph struct {
	Driver string
	Port   int

	regs [PeriphRegisters]byte
	lock sync.Mutex
}

// NewPeriph creates a Periph.
func NewPeriph(driver string, port int) *Periph {
	return &Periph{Driver: driver, Port: port}
}

// String implements Stringer.
func (p *Periph) String() string {
	return fmt.Sprintf("%s%d", p.Driver, p.Port)
}

// Open implements dev.Device.
func (p *Periph) Open(flags dev.OpenFlag) (dev.Handle, error) {
	return &periphHandle{periph: p, flags: flags}, nil
}

type periphHandle struct {
	periph *Periph
	flags  dev.OpenFlag
	closed bool
}

func (h *periphHandle) Read(b []byte) (int, error) {
	if h.closed {
		return 0, dev.ErrClosed
	}
	if !h.flags.CanRead() {
		return 0, dev.ErrPermission
	}
	h.periph.lock.Lock()
	defer h.periph.lock.Unlock()
	return copy(b, h.periph.regs[:]), nil
}

func (h *periphHandle) Write(b []byte) (int, error) {
	if h.closed {
		return 0, dev.ErrClosed
	}
	if !h.flags.CanWrite() {
		return 0, dev.ErrPermission
	}
	h.periph.lock.Lock()
	defer h.periph.lock.Unlock()
	return copy(h.periph.regs[:], b), nil
}

func (h *periphHandle) Close() error {
	if h.closed {
		return dev.ErrClosed
	}
	h.closed = true
	return nil
}

func (h *periphHandle) Ioctl(req dev.Request, arg interface{}) error {
	return &dev.IoctlError{Request: req, Err: dev.ErrNotSupported}
}

// linkDevice exposes the link endpoint in the namespace.
type linkDevice struct {
	phy *link.PHY
}

func (d *linkDevice) Open(flags dev.OpenFlag) (dev.Handle, error) {
	return &linkHandle{phy: d.phy, flags: flags}, nil
}

type linkHandle struct {
	phy    *link.PHY
	flags  dev.OpenFlag
	closed bool
}

func (h *linkHandle) Read(b []byte) (int, error) {
	if h.closed {
		return 0, dev.ErrClosed
	}
	return h.phy.Read(b)
}

func (h *linkHandle) Write(b []byte) (int, error) {
	if h.closed {
		return 0, dev.ErrClosed
	}
	return h.phy.Write(b)
}

// Close leaves the endpoint open, it's owned by the link service.
func (h *linkHandle) Close() error {
	if h.closed {
		return dev.ErrClosed
	}
	h.closed = true
	return nil
}

// Requests of the link device
const (
	// ReqLinkEndpoint reads the endpoint snapshot into *link.Endpoint.
	ReqLinkEndpoint dev.Request = 0x6c6b0001
	// ReqLinkFlush flushes the endpoint.
	ReqLinkFlush dev.Request = 0x6c6b0002
)

func (h *linkHandle) Ioctl(req dev.Request, arg interface{}) error {
	switch req {
	case ReqLinkEndpoint:
		ep, ok := arg.(*link.Endpoint)
		if !ok {
			return &dev.IoctlError{Request: req, Err: dev.ErrBadArg}
		}
		*ep = h.phy.Endpoint()
		return nil
	case ReqLinkFlush:
		return h.phy.Flush()
	}
	return &dev.IoctlError{Request: req, Err: dev.ErrNotSupported}
}

// SysInfo describes the system.
type SysInfo struct {
	Name       string
	Version    string
	MemorySize int
	DeviceID   string
	TaskTotal  int
}

// ReqSysInfo reads *SysInfo from the sys device.
const ReqSysInfo dev.Request = 0x73790001

type sysDevice struct {
	info SysInfo
}

func (d *sysDevice) Open(flags dev.OpenFlag) (dev.Handle, error) {
	return &sysHandle{dev: d}, nil
}

type sysHandle struct {
	dev  *sysDevice
	text []byte
	off  int
}

func (h *sysHandle) Read(b []byte) (int, error) {
	if h.text == nil {
		info := h.dev.info
		h.text = []byte(fmt.Sprintf("%s %s mem=%d tasks=%d id=%s\n",
			info.Name, info.Version, info.MemorySize, info.TaskTotal, info.DeviceID))
	}
	if h.off >= len(h.text) {
		return 0, dev.ErrClosed
	}
	n := copy(b, h.text[h.off:])
	h.off += n
	return n, nil
}

func (h *sysHandle) Write(b []byte) (int, error) {
	return 0, dev.ErrNotSupported
}

func (h *sysHandle) Close() error {
	return nil
}

func (h *sysHandle) Ioctl(req dev.Request, arg interface{}) error {
	if req != ReqSysInfo {
		return &dev.IoctlError{Request: req, Err: dev.ErrNotSupported}
	}
	info, ok := arg.(*SysInfo)
	if !ok {
		return &dev.IoctlError{Request: req, Err: dev.ErrBadArg}
	}
	*info = h.dev.info
	return nil
}
