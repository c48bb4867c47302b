// Package board assembles the devices, namespace and link of a board.
package board

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/dev/pio"
	"github.com/robotalks/mculink/pkg/fifo"
	"github.com/robotalks/mculink/pkg/link"
	"github.com/robotalks/mculink/pkg/ns"
	"github.com/robotalks/mculink/pkg/relay"
)

// Device names with fixed roles.
const (
	DevStdout = "stdio-out"
	DevStdin  = "stdio-in"
	DevSys    = "sys"
	DevMem    = "mem0"
)

// UART FIFO buffer sizes.
var uartFIFOSizes = map[int]int{0: 128, 1: 64, 3: 64}

// Board is an assembled board.
type Board struct {
	Config     *Config
	Namespace  *ns.Namespace
	PHY        *link.PHY
	Relay      *relay.Relay
	Supervisor *Supervisor

	Ports  []*pio.Port
	UARTs  map[string]*fifo.Channel
	Stdout *fifo.Channel
	Stdin  *fifo.Channel
}

// New assembles a board.
func New(conf *Config, transport link.Transport) (*Board, error) {
	b := &Board{
		Config:     conf,
		PHY:        link.NewPHY(transport, nil),
		Supervisor: NewSupervisor(),
		UARTs:      make(map[string]*fifo.Channel),
	}
	b.PHY.SetTimeout(conf.LinkTimeout)
	b.Relay = relay.New(b.PHY)

	if err := b.assemble(); err != nil {
		b.Relay.Close()
		return nil, err
	}
	return b, nil
}

func (b *Board) assemble() error {
	conf := b.Config
	builder := ns.NewBuilder()
	b.addDevices(builder)
	nsp, err := builder.
		MountFS("/app", ns.NewStaticFS(ns.Dir("flash", 0777), ns.Dir("ram", 0777)), ns.AccessAll).
		MountDevices("/dev", ns.AccessReadOnly).
		MountRoot(ns.AccessReadOnly).
		Build()
	if err != nil {
		return err
	}
	b.Namespace = nsp

	if conf.Flags&FlagStdioFIFO != 0 {
		if b.Stdout, err = b.stdio(conf.StdoutDev); err != nil {
			return err
		}
		if b.Stdin, err = b.stdio(conf.StdinDev); err != nil {
			return err
		}
		if _, err = b.stdio(conf.StderrDev); err != nil {
			return err
		}
	}

	b.PHY.Signal = link.NewConnectSignal(nsp, conf.ConnectPort, uint32(conf.ConnectPinMask))
	b.PHY.Signal.Fatal = b.Supervisor.Fatal
	if _, err := nsp.Resolve(conf.ConnectPort); err != nil {
		return fmt.Errorf("connect port: %w", err)
	}

	apps, err := nsp.List("/app")
	if err != nil {
		return err
	}
	b.Supervisor.Emit(EventStartFilesystem, len(apps))
	glog.V(1).Infof("board %s %s: %d devices", conf.SysName, conf.SysVersion, len(nsp.Devices()))
	return nil
}

func (b *Board) addDevices(builder *ns.Builder) {
	periph := func(name, driver string, port int, kind dev.Kind) {
		builder.AddDevice(ns.Descriptor{
			Name: name, Kind: kind, Mode: 0666, UID: ns.UserRoot, GID: ns.GroupRoot,
			Device: NewPeriph(driver, port),
		})
	}
	periph(DevMem, "mem", 0, dev.KindBlock)
	periph("core", "core", 0, dev.KindChar)
	periph("core0", "core", 0, dev.KindChar)
	periph("adc0", "adc", 0, dev.KindChar)
	periph("dac0", "dac", 0, dev.KindChar)
	for i := 0; i < 4; i++ {
		periph(fmt.Sprintf("eint%d", i), "eint", i, dev.KindChar)
	}
	for i := 0; i < 5; i++ {
		port := pio.NewPort(i)
		b.Ports = append(b.Ports, port)
		builder.AddDevice(ns.Descriptor{
			Name: fmt.Sprintf("pio%d", i), Kind: dev.KindChar, Mode: 0666,
			UID: ns.UserRoot, GID: ns.GroupRoot, Device: port,
		})
	}
	for i := 0; i < 3; i++ {
		periph(fmt.Sprintf("i2c%d", i), "i2c", i, dev.KindChar)
	}
	periph("pwm1", "pwm", 1, dev.KindBlock)
	periph("qei0", "qei", 0, dev.KindChar)
	periph("rtc", "rtc", 0, dev.KindChar)
	for i := 0; i < 3; i++ {
		periph(fmt.Sprintf("spi%d", i), "ssp", i, dev.KindChar)
	}
	for i := 0; i < 3; i++ {
		periph(fmt.Sprintf("tmr%d", i), "tmr", i, dev.KindChar)
	}
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("uart%d", i)
		size, ok := uartFIFOSizes[i]
		if !ok {
			periph(name, "uart", i, dev.KindChar)
			continue
		}
		d := fifo.NewDevice(fifo.Config{Size: size})
		b.UARTs[name] = d.Channel
		builder.AddDevice(ns.Descriptor{
			Name: name, Kind: dev.KindFIFO, Mode: 0666, UID: ns.UserRoot, GID: ns.GroupRoot, Device: d,
		})
	}
	periph("usb0", "usb", 0, dev.KindChar)

	conf := b.Config
	if conf.Flags&FlagStdioFIFO != 0 {
		outConf := fifo.Config{Size: conf.StdioBufferSize}
		if conf.Flags&FlagNotify != 0 {
			outConf.OnWrite = b.Relay.Hook(DevStdout)
		}
		out := fifo.NewDevice(outConf)
		in := fifo.NewDevice(fifo.Config{Size: conf.StdioBufferSize})
		builder.AddDevice(
			ns.Descriptor{Name: DevStdout, Kind: dev.KindFIFO, Mode: 0666, Device: out},
			ns.Descriptor{Name: DevStdin, Kind: dev.KindFIFO, Mode: 0666, Device: in},
		)
	}

	builder.AddDevice(
		ns.Descriptor{Name: conf.LinkName, Kind: dev.KindFIFO, Mode: 0666, Device: &linkDevice{phy: b.PHY}},
		ns.Descriptor{Name: DevSys, Kind: dev.KindChar, Mode: 0666, Device: &sysDevice{info: SysInfo{
			Name:       conf.SysName,
			Version:    conf.SysVersion,
			MemorySize: conf.SysMemorySize,
			DeviceID:   conf.ResolvedDeviceID(),
			TaskTotal:  conf.TaskTotal,
		}}},
	)
}

// stdio resolves a standard I/O device, which must be a FIFO.
func (b *Board) stdio(path string) (*fifo.Channel, error) {
	entry, err := b.Namespace.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("stdio: %w", err)
	}
	d, ok := entry.Device.(*fifo.Device)
	if !ok {
		return nil, fmt.Errorf("stdio: %s is not a FIFO", path)
	}
	return d.Channel, nil
}

// Open opens a device by path, it implements dev.Opener.
func (b *Board) Open(path string, flags dev.OpenFlag) (dev.Handle, error) {
	return b.Namespace.Open(path, flags)
}

// Close closes the link, the relay and the stdio channels.
func (b *Board) Close() error {
	err := b.PHY.Close()
	b.Relay.Close()
	if b.Stdout != nil {
		b.Stdout.Close()
	}
	if b.Stdin != nil {
		b.Stdin.Close()
	}
	for _, ch := range b.UARTs {
		ch.Close()
	}
	return err
}
