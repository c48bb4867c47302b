package board

import (
	"sync"

	"github.com/golang/glog"
)

// Event is a board life-cycle event.
type Event int

// Events
const (
	// EventFatal is raised on fatal configuration errors, the argument is the error.
	EventFatal Event = iota + 1
	// EventStartLink is raised when the link is open, the argument is the link.Endpoint.
	EventStartLink
	// EventStartFilesystem is raised when the namespace is built, the argument
	// is the number of application entries.
	EventStartFilesystem
)

// String implements Stringer.
func (e Event) String() string {
	switch e {
	case EventFatal:
		return "fatal"
	case EventStartLink:
		return "start-link"
	case EventStartFilesystem:
		return "start-fs"
	}
	return "unknown"
}

// EventHandler handles board events.
type EventHandler interface {
	HandleBoardEvent(ev Event, arg interface{})
}

// HandleBoardEventFunc is func form of EventHandler.
type HandleBoardEventFunc func(Event, interface{})

// HandleBoardEvent implements EventHandler.
func (f HandleBoardEventFunc) HandleBoardEvent(ev Event, arg interface{}) {
	f(ev, arg)
}

// Supervisor dispatches board events. A fatal event requests recovery mode
// instead of terminating anything directly.
type Supervisor struct {
	handlers []EventHandler
	recovery chan error
	lock     sync.RWMutex
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(handlers ...EventHandler) *Supervisor {
	return &Supervisor{handlers: handlers, recovery: make(chan error, 1)}
}

// AddHandler adds event handlers.
func (s *Supervisor) AddHandler(handlers ...EventHandler) {
	s.lock.Lock()
	s.handlers = append(s.handlers, handlers...)
	s.lock.Unlock()
}

// Emit dispatches an event to all handlers.
func (s *Supervisor) Emit(ev Event, arg interface{}) {
	switch ev {
	case EventFatal:
		glog.Errorf("fatal: %v", arg)
	case EventStartLink:
		glog.Info("link started")
	case EventStartFilesystem:
		glog.Infof("started %v apps", arg)
	}
	s.lock.RLock()
	handlers := s.handlers
	s.lock.RUnlock()
	for _, h := range handlers {
		h.HandleBoardEvent(ev, arg)
	}
	if ev == EventFatal {
		err, _ := arg.(error)
		select {
		case s.recovery <- err:
		default:
		}
	}
}

// Fatal raises EventFatal. It's used as link.FatalFunc.
func (s *Supervisor) Fatal(err error) {
	s.Emit(EventFatal, err)
}

// Recovery receives the error of a fatal event requesting recovery mode.
// Only the first pending request is kept.
func (s *Supervisor) Recovery() <-chan error {
	return s.recovery
}
