package pio

import (
	"sync"

	"github.com/robotalks/mculink/pkg/dev"
)

// Op is a register operation recorded by Port.
type Op int

// Ops
const (
	OpSetMask Op = iota
	OpClrMask
	OpSetAttr
)

// String implements Stringer.
func (o Op) String() string {
	switch o {
	case OpSetMask:
		return "setmask"
	case OpClrMask:
		return "clrmask"
	case OpSetAttr:
		return "setattr"
	}
	return "unknown"
}

// Transition is one register change on the port.
type Transition struct {
	Op   Op
	Mask uint32
	Out  uint32 // output register after the operation
	Dir  uint32 // direction register after the operation
}

// Port is an in-memory PIO port. It's used by the simulated board and tests.
type Port struct {
	// FailOpen, when set, is returned by Open.
	FailOpen error
	// FailIoctl, when set, is returned by every Ioctl.
	FailIoctl error
	// OnChange is called after each register change, with the lock released.
	OnChange func(Transition)

	index int
	out   uint32
	dir   uint32
	log   []Transition
	opens int
	lock  sync.Mutex
}

// NewPort creates a Port.
func NewPort(index int) *Port {
	return &Port{index: index}
}

// Index returns the port number.
func (p *Port) Index() int {
	return p.index
}

// Level returns the output register.
func (p *Port) Level() uint32 {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.out
}

// Dir returns the direction register, bits set for output pins.
func (p *Port) Dir() uint32 {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.dir
}

// Transitions returns a copy of recorded register changes.
func (p *Port) Transitions() []Transition {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]Transition(nil), p.log...)
}

// OpenCount returns the number of handles currently open.
func (p *Port) OpenCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.opens
}

// Open implements dev.Device.
func (p *Port) Open(flags dev.OpenFlag) (dev.Handle, error) {
	if p.FailOpen != nil {
		return nil, p.FailOpen
	}
	p.lock.Lock()
	p.opens++
	p.lock.Unlock()
	return &portHandle{port: p}, nil
}

func (p *Port) apply(op Op, mask uint32, mode Mode) {
	p.lock.Lock()
	switch op {
	case OpSetMask:
		p.out |= mask
	case OpClrMask:
		p.out &^= mask
	case OpSetAttr:
		if mode.IsOutput() {
			p.dir |= mask
		} else {
			p.dir &^= mask
		}
	}
	t := Transition{Op: op, Mask: mask, Out: p.out, Dir: p.dir}
	p.log = append(p.log, t)
	fn := p.OnChange
	p.lock.Unlock()
	if fn != nil {
		fn(t)
	}
}

type portHandle struct {
	port   *Port
	closed bool
}

func (h *portHandle) Read(b []byte) (int, error) {
	if h.closed {
		return 0, dev.ErrClosed
	}
	lv := h.port.Level()
	n := 0
	for ; n < len(b) && n < 4; n++ {
		b[n] = byte(lv >> (8 * uint(n)))
	}
	return n, nil
}

func (h *portHandle) Write(b []byte) (int, error) {
	return 0, dev.ErrNotSupported
}

func (h *portHandle) Close() error {
	if h.closed {
		return dev.ErrClosed
	}
	h.closed = true
	h.port.lock.Lock()
	h.port.opens--
	h.port.lock.Unlock()
	return nil
}

func (h *portHandle) Ioctl(req dev.Request, arg interface{}) error {
	if h.closed {
		return dev.ErrClosed
	}
	if err := h.port.FailIoctl; err != nil {
		return &dev.IoctlError{Request: req, Err: err}
	}
	switch req {
	case ReqSetMask, ReqClrMask:
		mask, ok := arg.(uint32)
		if !ok {
			return &dev.IoctlError{Request: req, Err: dev.ErrBadArg}
		}
		op := OpSetMask
		if req == ReqClrMask {
			op = OpClrMask
		}
		h.port.apply(op, mask, 0)
	case ReqSetAttr:
		var attr Attr
		switch a := arg.(type) {
		case Attr:
			attr = a
		case *Attr:
			attr = *a
		default:
			return &dev.IoctlError{Request: req, Err: dev.ErrBadArg}
		}
		h.port.apply(OpSetAttr, attr.Mask, attr.Mode)
	case ReqGet, ReqGetDir:
		out, ok := arg.(*uint32)
		if !ok {
			return &dev.IoctlError{Request: req, Err: dev.ErrBadArg}
		}
		if req == ReqGet {
			*out = h.port.Level()
		} else {
			*out = h.port.Dir()
		}
	default:
		return &dev.IoctlError{Request: req, Err: dev.ErrNotSupported}
	}
	return nil
}
