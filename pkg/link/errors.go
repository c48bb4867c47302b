package link

import (
	"errors"
	"fmt"

	"github.com/robotalks/mculink/pkg/dev"
)

var (
	// ErrTimeout is returned when a blocking operation exceeds the endpoint timeout.
	ErrTimeout = dev.ErrTimeout
	// ErrClosed is the end-of-resource error returned by operations on a
	// closed endpoint, including those unblocked by Close.
	ErrClosed = dev.ErrClosed
	// ErrBusy indicates an open sequence or notification channel is already active.
	ErrBusy = errors.New("busy")
	// ErrNotifyInactive indicates the notification channel is not open.
	ErrNotifyInactive = errors.New("notification channel inactive")
	// ErrNoHost indicates no host is attached to the endpoint.
	ErrNoHost = errors.New("no host attached")
	// ErrBadRecord indicates a malformed notification record.
	ErrBadRecord = errors.New("bad notification record")
)

// OpenError reports a resource-unavailable failure of PHY.Open.
// The connect signal is always released before it's returned.
type OpenError struct {
	Name string
	Err  error
}

// Error implements error.
func (e *OpenError) Error() string {
	return fmt.Sprintf("open link %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpenError) Unwrap() error {
	return e.Err
}
