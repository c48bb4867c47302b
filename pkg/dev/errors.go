package dev

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotSupported indicates the request is not supported by the device.
	ErrNotSupported = errors.New("not supported")
	// ErrBadArg indicates the ioctl argument has an unexpected type.
	ErrBadArg = errors.New("bad argument")
	// ErrPermission indicates the open flags are not allowed.
	ErrPermission = errors.New("permission denied")
	// ErrTimeout is returned when a blocking operation exceeds its bound.
	// os.IsTimeout reports true for it.
	ErrTimeout error = timeoutError{}
	// ErrClosed is the end-of-resource error returned by operations on a
	// closed handle, including operations unblocked by the close.
	// errors.Is(ErrClosed, io.EOF) reports true.
	ErrClosed error = closedError{}
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type closedError struct{}

func (closedError) Error() string        { return "end of resource" }
func (closedError) Is(target error) bool { return target == io.EOF }

// IoctlError wraps an error from an ioctl request.
type IoctlError struct {
	Request Request
	Err     error
}

// Error implements error.
func (e *IoctlError) Error() string {
	return fmt.Sprintf("ioctl %#x: %v", uint32(e.Request), e.Err)
}

// Unwrap returns the underlying error.
func (e *IoctlError) Unwrap() error {
	return e.Err
}
