package sh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/robotalks/mculink/pkg/board"
	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/fifo"
	"github.com/robotalks/mculink/pkg/link"
	"github.com/robotalks/mculink/pkg/ns"
)

// EntryInfo is the printable form of a namespace entry.
type EntryInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Mode string `json:"mode"`
	UID  int    `json:"uid"`
	GID  int    `json:"gid"`
	Path string `json:"path,omitempty"`
}

func entryInfo(d ns.Descriptor, path string) EntryInfo {
	return EntryInfo{
		Name: d.Name,
		Kind: d.Kind.String(),
		Mode: d.Mode.String(),
		UID:  d.UID,
		GID:  d.GID,
		Path: path,
	}
}

// String implements Stringer.
func (e EntryInfo) String() string {
	return fmt.Sprintf("%-6s %s %d:%d %s", e.Kind, e.Mode, e.UID, e.GID, e.Name)
}

// LinkStatus is the printable state of the link.
type LinkStatus struct {
	State        string `json:"state"`
	Handle       int    `json:"handle"`
	NotifyHandle int    `json:"notify_handle"`
	Timeout      string `json:"timeout"`
	Sent         uint64 `json:"notify_sent"`
	Dropped      uint64 `json:"notify_dropped"`
}

// String implements Stringer.
func (s LinkStatus) String() string {
	return fmt.Sprintf("%s handle=%d notify=%d timeout=%s sent=%d dropped=%d",
		s.State, s.Handle, s.NotifyHandle, s.Timeout, s.Sent, s.Dropped)
}

// Session executes shell commands against a board.
type Session struct {
	Board *board.Board
	// Service runs the link when started from the shell.
	Service *board.LinkService

	lock   sync.Mutex
	cancel func()
	done   chan error
}

// NewSession creates a Session.
func NewSession(b *board.Board) *Session {
	return &Session{Board: b, Service: board.NewLinkService(b)}
}

// List lists a directory.
func (s *Session) List(path string) ([]EntryInfo, error) {
	if path == "" {
		path = "/"
	}
	list, err := s.Board.Namespace.List(path)
	if err != nil {
		return nil, err
	}
	infos := make([]EntryInfo, 0, len(list))
	for _, d := range list {
		infos = append(infos, entryInfo(d, ""))
	}
	return infos, nil
}

// Stat resolves a path.
func (s *Session) Stat(path string) (EntryInfo, error) {
	entry, err := s.Board.Namespace.Resolve(path)
	if err != nil {
		return EntryInfo{}, err
	}
	return entryInfo(entry.Descriptor, entry.Path), nil
}

// Cat reads what's available from a device without blocking, up to max bytes.
func (s *Session) Cat(path string, max int) ([]byte, error) {
	h, err := s.Board.Open(path, dev.ReadOnly|dev.NonBlock)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	var out []byte
	buf := make([]byte, 256)
	for len(out) < max {
		if rest := max - len(out); rest < len(buf) {
			buf = buf[:rest]
		}
		n, err := h.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, dev.ErrTimeout) {
				break
			}
			return out, err
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

// Echo writes data to a device and returns the number of bytes accepted.
func (s *Session) Echo(path string, data []byte) (int, error) {
	h, err := s.Board.Open(path, dev.WriteOnly)
	if err != nil {
		return 0, err
	}
	defer h.Close()
	return h.Write(data)
}

// FIFOInfo reads the state of a FIFO device.
func (s *Session) FIFOInfo(path string) (fifo.Info, error) {
	var info fifo.Info
	h, err := s.Board.Open(path, dev.ReadOnly)
	if err != nil {
		return info, err
	}
	defer h.Close()
	err = h.Ioctl(fifo.ReqInfo, &info)
	return info, err
}

// LinkStatus returns the link state.
func (s *Session) LinkStatus() LinkStatus {
	phy := s.Board.PHY
	ep := phy.Endpoint()
	stats := s.Board.Relay.Stats()
	return LinkStatus{
		State:        phy.State().String(),
		Handle:       ep.Handle,
		NotifyHandle: ep.NotifyHandle,
		Timeout:      ep.Timeout.String(),
		Sent:         stats.Sent,
		Dropped:      stats.Dropped,
	}
}

// StartLink starts the link service in background.
func (s *Session) StartLink() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.done != nil {
		select {
		case <-s.done:
			s.done = nil
		default:
			return link.ErrBusy
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel, s.done = cancel, make(chan error, 1)
	go func(done chan error) {
		done <- s.Service.Run(ctx)
	}(s.done)
	return nil
}

// StopLink stops the link service started by StartLink.
func (s *Session) StopLink() error {
	s.lock.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.lock.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	if err := <-done; err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// SetNotify turns the notification channel on or off.
func (s *Session) SetNotify(on bool) error {
	if on {
		return s.Board.PHY.OpenNotify(s.Service.NotifySink)
	}
	return s.Board.PHY.CloseNotify()
}
