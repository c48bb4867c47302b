package link

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/sched"
)

// DefaultTimeout is the default endpoint timeout.
const DefaultTimeout = 500 * time.Millisecond

// State is the state of the PHY.
type State int

// States
const (
	StateClosed State = iota
	StateOpening
	StateOpen
)

// String implements Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// Endpoint describes the open channel to the host.
// Handle and NotifyHandle are -1 when inactive.
type Endpoint struct {
	Handle       int
	NotifyHandle int
	Timeout      time.Duration
}

// IsOpen indicates the endpoint has a valid handle.
func (e Endpoint) IsOpen() bool {
	return e.Handle != -1
}

// PHY owns the single link endpoint of the system.
type PHY struct {
	Transport Transport
	Signal    *ConnectSignal

	state      State
	endpoint   Endpoint
	linkCtx    Context
	conn       Conn
	notify     NotifySink
	nextHandle int
	lock       sync.Mutex

	// handle of the endpoint whose notification channel is being opened, or -1
	notifyPending int
}

// NewPHY creates a closed PHY.
func NewPHY(transport Transport, signal *ConnectSignal) *PHY {
	return &PHY{
		Transport: transport,
		Signal:    signal,
		endpoint:  Endpoint{Handle: -1, NotifyHandle: -1, Timeout: DefaultTimeout},

		notifyPending: -1,
	}
}

// State returns the current state.
func (p *PHY) State() State {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state
}

// Endpoint returns a snapshot of the endpoint.
func (p *PHY) Endpoint() Endpoint {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.endpoint
}

// SetTimeout changes the endpoint timeout.
func (p *PHY) SetTimeout(timeout time.Duration) {
	p.lock.Lock()
	p.endpoint.Timeout = timeout
	p.lock.Unlock()
}

// Open creates the endpoint with the connect signal asserted during creation.
// Only one open sequence may run at a time; others fail with ErrBusy.
func (p *PHY) Open(ctx context.Context, name string, baudRate int) (Endpoint, error) {
	p.lock.Lock()
	if p.state != StateClosed {
		p.lock.Unlock()
		return Endpoint{Handle: -1, NotifyHandle: -1}, ErrBusy
	}
	p.state = StateOpening
	p.lock.Unlock()
	glog.V(1).Infof("link %q opening", name)

	conn, err := p.open(ctx, name, baudRate)

	p.lock.Lock()
	defer p.lock.Unlock()
	if err != nil {
		p.state = StateClosed
		glog.Warningf("link %q open failed: %v", name, err)
		return Endpoint{Handle: -1, NotifyHandle: -1, Timeout: p.endpoint.Timeout}, err
	}
	p.conn = conn
	p.endpoint.Handle = p.allocHandle()
	p.state = StateOpen
	glog.V(1).Infof("link %q open, handle %d", name, p.endpoint.Handle)
	return p.endpoint, nil
}

func (p *PHY) open(ctx context.Context, name string, baudRate int) (Conn, error) {
	line, err := p.Signal.Acquire(ctx)
	if err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}
	defer line.Close()

	line.Assert()
	if err = line.Err(); err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}

	p.linkCtx = Context{}
	p.linkCtx.Transport = p.Transport
	p.linkCtx.Name = name
	p.linkCtx.BaudRate = baudRate
	p.linkCtx.OpenedAt = time.Now()
	conn, err := p.linkCtx.Transport.Open(&p.linkCtx)

	line.Release()
	if err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}
	if err = line.Err(); err != nil {
		conn.Close()
		return nil, &OpenError{Name: name, Err: err}
	}
	return conn, nil
}

// Close releases the endpoint and the notification channel.
// Pending operations return ErrClosed. It's a no-op when not open.
func (p *PHY) Close() error {
	p.lock.Lock()
	if p.state != StateOpen {
		p.lock.Unlock()
		return nil
	}
	conn, notify := p.conn, p.notify
	p.conn, p.notify = nil, nil
	p.endpoint.Handle, p.endpoint.NotifyHandle = -1, -1
	p.notifyPending = -1
	p.state = StateClosed
	name := p.linkCtx.Name
	p.lock.Unlock()

	var errs sched.AggregatedError
	if notify != nil {
		errs.Add(notify.Close())
	}
	errs.Add(conn.Close())
	glog.V(1).Infof("link %q closed", name)
	return errs.Aggregate()
}

func (p *PHY) active() (Conn, time.Duration, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.state != StateOpen {
		return nil, 0, ErrClosed
	}
	return p.conn, p.endpoint.Timeout, nil
}

// Read reads from the endpoint.
func (p *PHY) Read(b []byte) (int, error) {
	conn, timeout, err := p.active()
	if err != nil {
		return 0, err
	}
	return conn.Read(b, timeout)
}

// Write writes to the endpoint.
func (p *PHY) Write(b []byte) (int, error) {
	conn, timeout, err := p.active()
	if err != nil {
		return 0, err
	}
	return conn.Write(b, timeout)
}

// Flush flushes the endpoint.
func (p *PHY) Flush() error {
	conn, _, err := p.active()
	if err != nil {
		return err
	}
	return conn.Flush()
}

// Wait blocks until a host is attached.
func (p *PHY) Wait() error {
	conn, timeout, err := p.active()
	if err != nil {
		return err
	}
	return conn.Wait(timeout)
}

// OpenNotify activates the notification channel. When sink is nil, the
// endpoint's own channel is used if it provides one. The endpoint channel is
// opened without holding the PHY lock, so a slow open never stalls writers
// or Close.
func (p *PHY) OpenNotify(sink NotifySink) error {
	p.lock.Lock()
	if p.state != StateOpen {
		p.lock.Unlock()
		return ErrClosed
	}
	if p.notify != nil || p.notifyPending == p.endpoint.Handle {
		p.lock.Unlock()
		return ErrBusy
	}
	if sink != nil {
		p.installNotify(sink)
		p.lock.Unlock()
		return nil
	}
	handle := p.endpoint.Handle
	opener, ok := p.conn.(NotifyOpener)
	if !ok {
		p.lock.Unlock()
		return dev.ErrNotSupported
	}
	p.notifyPending = handle
	p.lock.Unlock()

	sink, err := opener.OpenNotify()

	p.lock.Lock()
	if p.notifyPending == handle {
		p.notifyPending = -1
	}
	if err != nil {
		p.lock.Unlock()
		return err
	}
	if p.state != StateOpen || p.endpoint.Handle != handle {
		p.lock.Unlock()
		sink.Close()
		return ErrClosed
	}
	p.installNotify(sink)
	p.lock.Unlock()
	return nil
}

// installNotify must be called with lock held.
func (p *PHY) installNotify(sink NotifySink) {
	p.notify = sink
	p.endpoint.NotifyHandle = p.allocHandle()
	glog.V(1).Infof("link notify open, handle %d", p.endpoint.NotifyHandle)
}

// CloseNotify deactivates the notification channel.
func (p *PHY) CloseNotify() error {
	p.lock.Lock()
	sink := p.notify
	p.notify = nil
	p.endpoint.NotifyHandle = -1
	p.lock.Unlock()
	if sink == nil {
		return nil
	}
	return sink.Close()
}

// NotifyActive indicates the notification channel is open.
func (p *PHY) NotifyActive() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.endpoint.NotifyHandle != -1
}

// SendNotify sends an event through the notification channel.
func (p *PHY) SendNotify(ev *NotifyEvent) error {
	p.lock.Lock()
	sink, timeout := p.notify, p.endpoint.Timeout
	p.lock.Unlock()
	if sink == nil {
		return ErrNotifyInactive
	}
	rec, err := ev.MarshalBinary()
	if err != nil {
		return err
	}
	return sink.SendNotify(rec, timeout)
}

// allocHandle must be called with lock held.
func (p *PHY) allocHandle() int {
	h := p.nextHandle
	p.nextHandle++
	return h
}
