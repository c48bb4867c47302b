// Package stream binds the link to a byte stream such as a serial device
// node or a named pipe.
package stream

import (
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/link"
)

// OpenFunc opens a stream by path.
type OpenFunc func(path string, notify bool) (io.ReadWriteCloser, error)

// OpenFile is the default OpenFunc. The link stream is opened read/write,
// the notification stream is opened for appending.
func OpenFile(path string, notify bool) (io.ReadWriteCloser, error) {
	if notify {
		return os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	}
	return os.OpenFile(path, os.O_RDWR, 0)
}

// Transport implements link.Transport over streams.
type Transport struct {
	// Path is the stream carrying link data.
	Path string
	// NotifyPath is the optional stream for notification records.
	NotifyPath string
	// Attached treats the host as present once the stream is open.
	Attached bool
	// OpenStream overrides OpenFile.
	OpenStream OpenFunc
}

// New creates a Transport.
func New(path, notifyPath string) *Transport {
	return &Transport{Path: path, NotifyPath: notifyPath}
}

func (t *Transport) open(path string, notify bool) (io.ReadWriteCloser, error) {
	if fn := t.OpenStream; fn != nil {
		return fn(path, notify)
	}
	return OpenFile(path, notify)
}

// Conn is an opened stream endpoint.
type Conn struct {
	*link.TimedConn
	transport *Transport
}

// OpenNotify implements link.NotifyOpener.
func (c *Conn) OpenNotify() (link.NotifySink, error) {
	if c.transport.NotifyPath == "" {
		return nil, dev.ErrNotSupported
	}
	s, err := c.transport.open(c.transport.NotifyPath, true)
	if err != nil {
		return nil, err
	}
	return NewPacketReadWriter(s), nil
}

// Open implements link.Transport.
func (t *Transport) Open(ctx *link.Context) (link.Conn, error) {
	s, err := t.open(t.Path, false)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("link %s: stream %s opened", ctx.Name, t.Path)
	return &Conn{TimedConn: link.NewTimedConn(s, t.Attached), transport: t}, nil
}
