package link

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/dev/pio"
)

const (
	testPort = "/dev/pio0"
	testMask = uint32(1 << 14)
)

var errNoDevice = errors.New("no such device")

type testOpener map[string]dev.Device

func (o testOpener) Open(path string, flags dev.OpenFlag) (dev.Handle, error) {
	d, ok := o[path]
	if !ok {
		return nil, errNoDevice
	}
	return d.Open(flags)
}

// testPipe is one side of an in-memory full-duplex stream.
type testPipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *testPipe) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *testPipe) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *testPipe) Close() error {
	p.w.Close()
	return p.r.Close()
}

func newTestPipes() (device, host *testPipe) {
	hr, dw := io.Pipe()
	dr, hw := io.Pipe()
	return &testPipe{r: dr, w: dw}, &testPipe{r: hr, w: hw}
}

// testTransport records the connect line level while the endpoint is created.
type testTransport struct {
	port  *pio.Port
	err   error
	block chan struct{}

	lock     sync.Mutex
	levels   []uint32
	contexts []Context
	hosts    []*testPipe
}

func (t *testTransport) Open(ctx *Context) (Conn, error) {
	t.lock.Lock()
	t.levels = append(t.levels, t.port.Level())
	t.contexts = append(t.contexts, *ctx)
	t.lock.Unlock()
	if t.block != nil {
		<-t.block
	}
	if t.err != nil {
		return nil, t.err
	}
	device, host := newTestPipes()
	t.lock.Lock()
	t.hosts = append(t.hosts, host)
	t.lock.Unlock()
	return NewTimedConn(device, false), nil
}

func (t *testTransport) host(n int) *testPipe {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.hosts[n]
}

type testSink struct {
	records [][]byte
	closed  bool
}

func (s *testSink) SendNotify(rec []byte, timeout time.Duration) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *testSink) Close() error {
	s.closed = true
	return nil
}

type phyTestEnv struct {
	port      *pio.Port
	transport *testTransport
	signal    *ConnectSignal
	phy       *PHY
	fatal     []error
}

func newPHYTestEnv() *phyTestEnv {
	env := &phyTestEnv{port: pio.NewPort(0)}
	env.transport = &testTransport{port: env.port}
	env.signal = NewConnectSignal(testOpener{testPort: env.port}, testPort, testMask)
	env.signal.Fatal = func(err error) { env.fatal = append(env.fatal, err) }
	env.phy = NewPHY(env.transport, env.signal)
	return env
}
