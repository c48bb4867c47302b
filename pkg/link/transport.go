package link

import "time"

// Context is the per-open state bound to a Transport.
// It's reset to zero at the beginning of every open sequence.
type Context struct {
	Transport Transport
	Name      string
	BaudRate  int
	OpenedAt  time.Time
}

// Transport is the set of low-level behaviors bound into the link context.
type Transport interface {
	// Open creates the underlying endpoint. It must not require an
	// attached host.
	Open(*Context) (Conn, error)
}

// TransportFunc is func form of Transport.
type TransportFunc func(*Context) (Conn, error)

// Open implements Transport.
func (f TransportFunc) Open(ctx *Context) (Conn, error) {
	return f(ctx)
}

// Conn is an opened link endpoint.
type Conn interface {
	// Read reads available bytes, blocking at most timeout.
	Read(p []byte, timeout time.Duration) (int, error)
	// Write writes bytes, blocking at most timeout.
	Write(p []byte, timeout time.Duration) (int, error)
	// Wait blocks until a host is attached, at most timeout.
	Wait(timeout time.Duration) error
	// Flush pushes out buffered bytes.
	Flush() error
	// Close releases the endpoint, pending operations return ErrClosed.
	Close() error
}

// NotifySink is the notification side-channel.
type NotifySink interface {
	SendNotify(record []byte, timeout time.Duration) error
	Close() error
}

// NotifyOpener is implemented by Conns providing their own notification channel.
type NotifyOpener interface {
	OpenNotify() (NotifySink, error)
}
