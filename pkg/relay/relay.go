// Package relay forwards local buffered-I/O write events to the host link.
package relay

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/fifo"
	"github.com/robotalks/mculink/pkg/link"
)

// DefaultQueueSize is the number of events waiting for delivery before new
// events are dropped.
const DefaultQueueSize = 16

// Notifier is the notification side of the link.
type Notifier interface {
	NotifyActive() bool
	SendNotify(*link.NotifyEvent) error
}

// EventHandler receives every relayed event, whether or not the link is active.
type EventHandler interface {
	HandleEvent(*link.NotifyEvent)
}

// HandleEventFunc is func form of EventHandler.
type HandleEventFunc func(*link.NotifyEvent)

// HandleEvent implements EventHandler.
func (f HandleEventFunc) HandleEvent(ev *link.NotifyEvent) {
	f(ev)
}

// Stats counts relayed events.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

type pending struct {
	ev   *link.NotifyEvent
	send bool // the link was active when the event was raised
}

// Relay converts write events into NotifyEvents. Events are delivered by a
// single goroutine, Notify only enqueues and drops events when the queue
// is full, so the writer never waits for the link.
type Relay struct {
	// accessed atomically, kept first for 64-bit alignment
	sent    uint64
	dropped uint64

	Link Notifier

	handlers  []EventHandler
	lock      sync.RWMutex
	queue     chan pending
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Relay with DefaultQueueSize.
func New(l Notifier, handlers ...EventHandler) *Relay {
	return NewWithQueue(DefaultQueueSize, l, handlers...)
}

// NewWithQueue creates a Relay queueing at most size events.
func NewWithQueue(size int, l Notifier, handlers ...EventHandler) *Relay {
	if size < 1 {
		size = 1
	}
	r := &Relay{
		Link:     l,
		handlers: handlers,
		queue:    make(chan pending, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// AddHandler adds handlers receiving every event.
func (r *Relay) AddHandler(handlers ...EventHandler) {
	r.lock.Lock()
	r.handlers = append(r.handlers, handlers...)
	r.lock.Unlock()
}

// Notify reports nbyte bytes written to the named device.
func (r *Relay) Notify(name string, nbyte int) {
	p := pending{
		ev:   link.NewDeviceWrite(name, nbyte),
		send: r.Link != nil && r.Link.NotifyActive(),
	}
	select {
	case <-r.stop:
		return
	default:
	}
	select {
	case r.queue <- p:
	default:
		if p.send {
			atomic.AddUint64(&r.dropped, 1)
		}
		glog.V(2).Infof("notify %s(%d) dropped: queue full", name, nbyte)
	}
}

// Hook returns a write hook reporting writes to the named device.
func (r *Relay) Hook(name string) fifo.WriteHook {
	return func(nbyte int) {
		r.Notify(name, nbyte)
	}
}

// Stats returns the counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Sent:    atomic.LoadUint64(&r.sent),
		Dropped: atomic.LoadUint64(&r.dropped),
	}
}

// Close delivers the queued events and stops the relay.
func (r *Relay) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
	return nil
}

func (r *Relay) run() {
	defer close(r.done)
	for {
		select {
		case p := <-r.queue:
			r.deliver(p)
		case <-r.stop:
			for {
				select {
				case p := <-r.queue:
					r.deliver(p)
				default:
					return
				}
			}
		}
	}
}

func (r *Relay) deliver(p pending) {
	r.lock.RLock()
	handlers := r.handlers
	r.lock.RUnlock()
	for _, h := range handlers {
		h.HandleEvent(p.ev)
	}
	if !p.send {
		return
	}
	if err := r.Link.SendNotify(p.ev); err != nil {
		atomic.AddUint64(&r.dropped, 1)
		glog.V(2).Infof("notify %s(%d) dropped: %v", p.ev.Name, p.ev.Nbyte, err)
		return
	}
	atomic.AddUint64(&r.sent, 1)
}
