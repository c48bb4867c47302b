package dev

import "io"

// OpenFlag controls how a device is opened.
type OpenFlag int

// Open flags.
const (
	ReadOnly  OpenFlag = 0x0
	WriteOnly OpenFlag = 0x1
	ReadWrite OpenFlag = 0x2
	NonBlock  OpenFlag = 0x4000

	accessMask OpenFlag = 0x3
)

// CanRead indicates the flags allow reading.
func (f OpenFlag) CanRead() bool {
	a := f & accessMask
	return a == ReadOnly || a == ReadWrite
}

// CanWrite indicates the flags allow writing.
func (f OpenFlag) CanWrite() bool {
	a := f & accessMask
	return a == WriteOnly || a == ReadWrite
}

// Request identifies an ioctl-style attribute request.
type Request uint32

// Kind is the capability kind of an addressable object.
type Kind int

// Kinds
const (
	KindChar Kind = iota
	KindBlock
	KindFIFO
	KindDir
	KindMount
)

// String implements Stringer.
func (k Kind) String() string {
	switch k {
	case KindChar:
		return "char"
	case KindBlock:
		return "block"
	case KindFIFO:
		return "fifo"
	case KindDir:
		return "dir"
	case KindMount:
		return "mount"
	}
	return "unknown"
}

// Handle is an opened device.
type Handle interface {
	io.Reader
	io.Writer
	io.Closer
	// Ioctl gets or sets an attribute of the device.
	Ioctl(req Request, arg interface{}) error
}

// Device can be opened into a Handle.
type Device interface {
	Open(flags OpenFlag) (Handle, error)
}

// OpenFunc is func form of Device.
type OpenFunc func(OpenFlag) (Handle, error)

// Open implements Device.
func (f OpenFunc) Open(flags OpenFlag) (Handle, error) {
	return f(flags)
}

// Opener opens devices by path.
type Opener interface {
	Open(path string, flags OpenFlag) (Handle, error)
}
