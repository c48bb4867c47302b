package board

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/mculink/pkg/link"
	"github.com/robotalks/mculink/pkg/link/mqtt"
	"github.com/robotalks/mculink/pkg/link/stream"
	"github.com/robotalks/mculink/pkg/link/websocket"
)

// Flags are system flags of the board.
type Flags uint32

// System flags
const (
	// FlagStdioFIFO backs standard I/O with FIFO devices.
	FlagStdioFIFO Flags = 1 << iota
	// FlagNotify relays writes on stdio-out to the link notification channel.
	FlagNotify
)

// Config defines the board.
type Config struct {
	SysName       string
	SysVersion    string
	SysMemorySize int
	TaskTotal     int

	StdinDev        string
	StdoutDev       string
	StderrDev       string
	Flags           Flags
	StdioBufferSize int

	ConnectPort    string
	ConnectPinMask uint
	LinkName       string
	LinkTimeout    time.Duration
	BaudRate       int

	// Transport selects the link transport, e.g.
	// stream:/dev/ttyGS0 or ws://:8080/link
	Transport string
	// NotifyPath is the notification stream of a stream transport.
	NotifyPath string
	// MQTTBrokerURL enables the MQTT bridge, e.g. mqtt://localhost:1883/mculink/
	MQTTBrokerURL string
	DeviceID      string
}

// Defaults
const (
	DefaultSysName         = "EA LPC4088 QS"
	DefaultSysVersion      = "0.1"
	DefaultSysMemorySize   = 8192 * 2
	DefaultStdioBufferSize = 128
	DefaultConnectPort     = "/dev/pio0"
	DefaultConnectPinMask  = 1 << 14
	DefaultLinkName        = "link-phy-usb"
	DefaultTransport       = "ws://:8088" + websocket.DefaultLinkPath
)

var defaultConfig = Config{
	SysName:         DefaultSysName,
	SysVersion:      DefaultSysVersion,
	SysMemorySize:   DefaultSysMemorySize,
	TaskTotal:       10,
	StdinDev:        "/dev/stdio-in",
	StdoutDev:       "/dev/stdio-out",
	StderrDev:       "/dev/stdio-out",
	Flags:           FlagStdioFIFO | FlagNotify,
	StdioBufferSize: DefaultStdioBufferSize,
	ConnectPort:     DefaultConnectPort,
	ConnectPinMask:  DefaultConnectPinMask,
	LinkName:        DefaultLinkName,
	LinkTimeout:     link.DefaultTimeout,
	Transport:       DefaultTransport,
}

func init() {
	if val := os.Getenv("MCULINK_TRANSPORT"); val != "" {
		defaultConfig.Transport = val
	}
	if val := os.Getenv("MCULINK_NOTIFY_PATH"); val != "" {
		defaultConfig.NotifyPath = val
	}
	if val := os.Getenv("MCULINK_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("MCULINK_DEVICE_ID"); val != "" {
		defaultConfig.DeviceID = val
	}
	if val := os.Getenv("MCULINK_LINK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			defaultConfig.LinkTimeout = d
		}
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.SysName, "sys-name", defaultConfig.SysName, "System name reported by the sys device.")
	flag.IntVar(&defaultConfig.TaskTotal, "task-total", defaultConfig.TaskTotal, "Number of task slots.")
	flag.IntVar(&defaultConfig.StdioBufferSize, "stdio-buffer", defaultConfig.StdioBufferSize, "Size of stdio FIFO buffers.")
	flag.StringVar(&defaultConfig.ConnectPort, "connect-port", defaultConfig.ConnectPort, "PIO port of the connect signal.")
	flag.UintVar(&defaultConfig.ConnectPinMask, "connect-pinmask", defaultConfig.ConnectPinMask, "Pin mask of the connect signal.")
	flag.StringVar(&defaultConfig.LinkName, "link-name", defaultConfig.LinkName, "Name of the link device.")
	flag.DurationVar(&defaultConfig.LinkTimeout, "link-timeout", defaultConfig.LinkTimeout, "Timeout of link operations.")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Baud rate passed to the transport.")
	flag.StringVar(&defaultConfig.Transport, "transport", defaultConfig.Transport, "Link transport URL (stream:PATH or ws://HOST:PORT/PATH).")
	flag.StringVar(&defaultConfig.NotifyPath, "notify-path", defaultConfig.NotifyPath, "Notification stream path of a stream transport.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable.")
	flag.StringVar(&defaultConfig.DeviceID, "device-id", defaultConfig.DeviceID, "Device ID in MQTT topics, default is the machine ID.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ResolvedDeviceID returns DeviceID or an ID derived from the machine ID.
func (c *Config) ResolvedDeviceID() string {
	if c.DeviceID != "" {
		return c.DeviceID
	}
	id, err := machineid.ProtectedID("mculink")
	if err != nil {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "mculink"
		}
		return hostname
	}
	return id
}

// NewTransport creates the link transport from Transport.
func (c *Config) NewTransport() (link.Transport, error) {
	u, err := url.Parse(c.Transport)
	if err != nil {
		return nil, fmt.Errorf("invalid transport URL: %v", err)
	}
	switch u.Scheme {
	case "stream", "file":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return nil, fmt.Errorf("transport %q: missing path", c.Transport)
		}
		return stream.New(path, c.NotifyPath), nil
	case "ws":
		t := websocket.New(u.Host)
		if p := strings.TrimSuffix(u.Path, "/"); p != "" {
			t.LinkPath = p
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown transport URL scheme: %q", u.Scheme)
	}
}

// NewBridge creates the MQTT bridge, or nil if MQTTBrokerURL is empty.
func (c *Config) NewBridge() (*mqtt.Bridge, error) {
	if c.MQTTBrokerURL == "" {
		return nil, nil
	}
	q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL)
	if err != nil {
		return nil, err
	}
	b := mqtt.NewBridge(q, c.ResolvedDeviceID())
	b.Timeout = c.LinkTimeout
	return b, nil
}

// NewBoard assembles the board with the configured transport.
func (c *Config) NewBoard() (*Board, error) {
	t, err := c.NewTransport()
	if err != nil {
		return nil, err
	}
	return New(c, t)
}

// MustNewBoard assembles the board and fails on error.
func (c *Config) MustNewBoard() *Board {
	b, err := c.NewBoard()
	if err != nil {
		log.Fatalln(err)
	}
	return b
}
