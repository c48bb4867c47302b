package link

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/dev/pio"
)

// FatalFunc receives fatal configuration errors.
type FatalFunc func(error)

// ConnectSignal controls the GPIO line masking the device from the host.
type ConnectSignal struct {
	Opener  dev.Opener
	Port    string
	PinMask uint32
	// Fatal is called when the port can't be configured.
	Fatal FatalFunc

	sem chan struct{}
}

// NewConnectSignal creates a ConnectSignal.
func NewConnectSignal(opener dev.Opener, port string, pinMask uint32) *ConnectSignal {
	return &ConnectSignal{
		Opener:  opener,
		Port:    port,
		PinMask: pinMask,
		sem:     make(chan struct{}, 1),
	}
}

// Acquire takes exclusive hold of the signal and opens its port.
// The returned line must be closed on every path.
func (s *ConnectSignal) Acquire(ctx context.Context) (*ConnectLine, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	h, err := s.Opener.Open(s.Port, dev.ReadWrite)
	if err != nil {
		<-s.sem
		return nil, err
	}
	return &ConnectLine{signal: s, handle: h}, nil
}

// ConnectLine is an acquired connect signal.
type ConnectLine struct {
	signal   *ConnectSignal
	handle   dev.Handle
	asserted bool
	err      error
	closed   bool
}

// Assert configures the line as output and drives it to the masking level.
// It does nothing if the line is already asserted.
func (l *ConnectLine) Assert() {
	if l.asserted || l.err != nil || l.closed {
		return
	}
	mask := l.signal.PinMask
	if err := l.handle.Ioctl(pio.ReqSetMask, mask); err != nil {
		l.fail(err)
		return
	}
	l.asserted = true
	attr := pio.Attr{Mask: mask, Mode: pio.ModeOutput | pio.ModeDirOnly}
	if err := l.handle.Ioctl(pio.ReqSetAttr, attr); err != nil {
		l.fail(err)
		return
	}
	glog.V(2).Infof("connect signal %s:%#x asserted", l.signal.Port, mask)
}

// Release drives the line to the non-masking level.
func (l *ConnectLine) Release() {
	if !l.asserted || l.closed {
		return
	}
	mask := l.signal.PinMask
	if err := l.handle.Ioctl(pio.ReqClrMask, mask); err != nil {
		l.fail(err)
		return
	}
	l.asserted = false
	glog.V(2).Infof("connect signal %s:%#x released", l.signal.Port, mask)
}

// Asserted indicates the line is at the masking level.
func (l *ConnectLine) Asserted() bool {
	return l.asserted
}

// Err returns the configuration error if any.
func (l *ConnectLine) Err() error {
	return l.err
}

// Close releases the line if still asserted, closes the port and gives up
// the exclusive hold.
func (l *ConnectLine) Close() error {
	if l.closed {
		return nil
	}
	l.Release()
	l.closed = true
	err := l.handle.Close()
	<-l.signal.sem
	return err
}

func (l *ConnectLine) fail(err error) {
	if l.err == nil {
		l.err = err
	}
	glog.Errorf("connect signal %s: %v", l.signal.Port, err)
	if fn := l.signal.Fatal; fn != nil {
		fn(err)
	}
}
