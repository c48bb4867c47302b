// Package websocket exposes the link endpoint as a websocket server. A single
// host connects to the link path, any number of clients can watch the
// notification path.
package websocket

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/mculink/pkg/link"
	"github.com/robotalks/mculink/pkg/sched"
)

// Default handler paths.
const (
	DefaultLinkPath   = "/link"
	DefaultNotifyPath = "/notify"
)

// Transport implements link.Transport. Every open listens on Addr until the
// endpoint is closed.
type Transport struct {
	Addr       string
	LinkPath   string
	NotifyPath string
}

// New creates a Transport with default paths.
func New(addr string) *Transport {
	return &Transport{Addr: addr, LinkPath: DefaultLinkPath, NotifyPath: DefaultNotifyPath}
}

// Open implements link.Transport.
func (t *Transport) Open(ctx *link.Context) (link.Conn, error) {
	ln, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return nil, err
	}
	c := &Conn{ln: ln, watchers: make(map[*ReadWriter]struct{})}
	c.pr, c.pw = io.Pipe()
	c.TimedConn = link.NewTimedConn((*bridge)(c), false)

	mux := http.NewServeMux()
	mux.Handle(pathOr(t.LinkPath, DefaultLinkPath), websocket.Server{Handler: c.handleLink})
	mux.Handle(pathOr(t.NotifyPath, DefaultNotifyPath), websocket.Server{Handler: c.handleNotify})
	c.srv = &http.Server{Handler: mux}
	go func() {
		if err := c.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			glog.Errorf("link %s: serve %s: %v", ctx.Name, ln.Addr(), err)
		}
	}()
	glog.V(1).Infof("link %s: listening on %s", ctx.Name, ln.Addr())
	return c, nil
}

func pathOr(path, def string) string {
	if path == "" {
		return def
	}
	return path
}

// Conn is an opened websocket endpoint.
type Conn struct {
	*link.TimedConn

	ln  net.Listener
	srv *http.Server
	pr  *io.PipeReader
	pw  *io.PipeWriter

	lock     sync.Mutex
	host     *ReadWriter
	watchers map[*ReadWriter]struct{}
	notify   bool
	closed   bool
}

// Addr returns the listening address.
func (c *Conn) Addr() net.Addr {
	return c.ln.Addr()
}

func (c *Conn) handleLink(ws *websocket.Conn) {
	ws.PayloadType = websocket.BinaryFrame
	rw := NewReadWriter(ws)
	c.lock.Lock()
	if c.closed || c.host != nil {
		c.lock.Unlock()
		glog.Warningf("link host from %s rejected", ws.Request().RemoteAddr)
		return
	}
	c.host = rw
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		if c.host == rw {
			c.host = nil
		}
		c.lock.Unlock()
	}()

	glog.Infof("link host attached from %s", ws.Request().RemoteAddr)
	c.Attach()
	for {
		pkt, err := rw.ReadPacket()
		if err != nil {
			glog.V(1).Infof("link host detached: %v", err)
			return
		}
		if _, err = c.pw.Write(pkt); err != nil {
			return
		}
	}
}

func (c *Conn) handleNotify(ws *websocket.Conn) {
	ws.PayloadType = websocket.BinaryFrame
	rw := NewReadWriter(ws)
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.watchers[rw] = struct{}{}
	c.lock.Unlock()
	defer c.removeWatcher(rw)
	// nothing is expected from watchers, reading detects the disconnect.
	for {
		if _, err := rw.ReadPacket(); err != nil {
			return
		}
	}
}

func (c *Conn) removeWatcher(rw *ReadWriter) {
	c.lock.Lock()
	delete(c.watchers, rw)
	c.lock.Unlock()
}

func (c *Conn) watcherList() []*ReadWriter {
	c.lock.Lock()
	defer c.lock.Unlock()
	list := make([]*ReadWriter, 0, len(c.watchers))
	for rw := range c.watchers {
		list = append(list, rw)
	}
	return list
}

// OpenNotify implements link.NotifyOpener.
func (c *Conn) OpenNotify() (link.NotifySink, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return nil, link.ErrClosed
	}
	if c.notify {
		return nil, link.ErrBusy
	}
	c.notify = true
	return &notifySink{conn: c}, nil
}

type notifySink struct {
	conn *Conn
	once sync.Once
}

// SendNotify broadcasts the record to all watchers in parallel, so the
// call takes at most timeout. Failed watchers are disconnected.
func (s *notifySink) SendNotify(record []byte, timeout time.Duration) error {
	var (
		errs sched.AggregatedError
		lock sync.Mutex
		wg   sync.WaitGroup
	)
	for _, rw := range s.conn.watcherList() {
		wg.Add(1)
		go func(rw *ReadWriter) {
			defer wg.Done()
			if err := rw.WritePacketTimeout(record, timeout); err != nil {
				s.conn.removeWatcher(rw)
				rw.Close()
				lock.Lock()
				errs.Add(err)
				lock.Unlock()
			}
		}(rw)
	}
	wg.Wait()
	return errs.Aggregate()
}

func (s *notifySink) Close() error {
	s.once.Do(func() {
		s.conn.lock.Lock()
		s.conn.notify = false
		s.conn.lock.Unlock()
	})
	return nil
}

// bridge is the byte stream under TimedConn: reads come from the host
// handler, writes go to the current host.
type bridge Conn

func (b *bridge) Read(p []byte) (int, error) {
	return b.pr.Read(p)
}

func (b *bridge) Write(p []byte) (int, error) {
	b.lock.Lock()
	host := b.host
	b.lock.Unlock()
	if host == nil {
		return 0, link.ErrNoHost
	}
	if err := host.WritePacket(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (b *bridge) Close() error {
	b.lock.Lock()
	b.closed = true
	clients := make([]*ReadWriter, 0, len(b.watchers)+1)
	if b.host != nil {
		clients = append(clients, b.host)
	}
	for rw := range b.watchers {
		clients = append(clients, rw)
	}
	b.lock.Unlock()

	var errs sched.AggregatedError
	errs.Add(b.srv.Close())
	for _, rw := range clients {
		rw.Close()
	}
	b.pw.Close()
	b.pr.Close()
	return errs.Aggregate()
}
