package ns

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mculink/pkg/dev"
	"github.com/robotalks/mculink/pkg/dev/pio"
	"github.com/robotalks/mculink/pkg/fifo"
)

type testEnv struct {
	pio0   *pio.Port
	stdout *fifo.Device
	ns     *Namespace
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		pio0:   pio.NewPort(0),
		stdout: fifo.NewDevice(fifo.Config{Size: 16, NonBlocking: true}),
	}
	ns, err := NewBuilder().
		AddDevice(
			Descriptor{Name: "pio0", Kind: dev.KindChar, Mode: 0666, Device: env.pio0},
			Descriptor{Name: "pio1", Kind: dev.KindChar, Mode: 0666, Device: pio.NewPort(1)},
			Descriptor{Name: "core", Kind: dev.KindChar, Mode: 0444, Device: pio.NewPort(9)},
			Descriptor{Name: "stdio-out", Kind: dev.KindFIFO, Mode: 0222, Device: env.stdout},
		).
		MountFS("/app", NewStaticFS(Dir("flash", 0777), Dir("ram", 0777)), AccessAll).
		MountDevices("/dev", AccessReadOnly).
		Build()
	require.NoError(t, err)
	env.ns = ns
	return env
}

func TestResolveExactName(t *testing.T) {
	env := newTestEnv(t)
	entry, err := env.ns.Resolve("/dev/pio0")
	require.NoError(t, err)
	require.Equal(t, "pio0", entry.Name)
	require.Equal(t, "/dev", entry.Mount.Path)
	require.True(t, entry.Device == env.pio0)

	for _, path := range []string{"/dev/pio", "/dev/pio00", "/dev/pio9", "/de/pio0", "/pio0", "/dev/pio0/x"} {
		_, err := env.ns.Resolve(path)
		require.Error(t, err, path)
		require.True(t, errors.Is(err, ErrNotFound), path)
	}
}

func TestResolveMountsAndRoot(t *testing.T) {
	env := newTestEnv(t)
	entry, err := env.ns.Resolve("/dev")
	require.NoError(t, err)
	require.True(t, entry.IsDir())
	require.Equal(t, "/dev", entry.Mount.Path)

	entry, err = env.ns.Resolve("//app/flash/")
	require.NoError(t, err)
	require.Equal(t, "flash", entry.Name)
	require.Equal(t, "/app/flash", entry.Path)

	entry, err = env.ns.Resolve("/")
	require.NoError(t, err)
	require.Equal(t, MountRoot, entry.Mount.Kind)

	_, err = env.ns.Resolve("dev/pio0")
	require.True(t, errors.Is(err, ErrInvalidPath))
	_, err = env.ns.Resolve("/dev/../app")
	require.True(t, errors.Is(err, ErrInvalidPath))
}

func TestRootIsLastAndSentinelTerminated(t *testing.T) {
	env := newTestEnv(t)
	mounts := env.ns.Mounts()
	require.Len(t, mounts, 3)
	require.Equal(t, "/app", mounts[0].Path)
	require.Equal(t, "/dev", mounts[1].Path)
	require.True(t, mounts[2] == env.ns.Root())
	require.Equal(t, "/", env.ns.Root().Path)

	table := env.ns.Root().Table()
	require.True(t, table[len(table)-1].IsSentinel())
	for _, d := range table[:len(table)-1] {
		require.False(t, d.IsSentinel())
	}
	devs := env.ns.Table()
	require.Len(t, devs, 5)
	require.True(t, devs[4].IsSentinel())

	list, err := env.ns.List("/")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "app", list[0].Name)
	require.Equal(t, "dev", list[1].Name)
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	list, err := env.ns.List("/dev")
	require.NoError(t, err)
	var names []string
	for _, d := range list {
		names = append(names, d.Name)
	}
	require.Equal(t, []string{"pio0", "pio1", "core", "stdio-out"}, names)

	list, err = env.ns.List("/app")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "flash", list[0].Name)
	require.Equal(t, "ram", list[1].Name)

	list, err = env.ns.List("/dev/core")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestOpenChecksMode(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.ns.Open("/dev/stdio-out", dev.WriteOnly)
	require.NoError(t, err)
	n, err := h.Write([]byte("hi"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, h.Close())
	require.Equal(t, 2, env.stdout.Channel.Len())

	_, err = env.ns.Open("/dev/stdio-out", dev.ReadOnly)
	require.True(t, errors.Is(err, dev.ErrPermission))
	_, err = env.ns.Open("/dev/core", dev.ReadWrite)
	require.True(t, errors.Is(err, dev.ErrPermission))
	_, err = env.ns.Open("/dev", dev.ReadOnly)
	require.True(t, errors.Is(err, ErrIsDir))

	h, err = env.ns.Open("/dev/pio0", dev.ReadWrite)
	require.NoError(t, err)
	require.Equal(t, 1, env.pio0.OpenCount())
	require.NoError(t, h.Close())
}

func TestBuilderErrors(t *testing.T) {
	d := Descriptor{Name: "pio0", Kind: dev.KindChar, Mode: 0666, Device: pio.NewPort(0)}

	_, err := NewBuilder().AddDevice(d, d).Build()
	require.True(t, errors.Is(err, ErrExists))

	_, err = NewBuilder().AddDevice(d).MountDevices("/dev", AccessReadOnly).MountDevices("/dev/", AccessAll).Build()
	require.True(t, errors.Is(err, ErrExists))

	_, err = NewBuilder().AddDevice(d).MountDevices("/dev", AccessReadOnly, "pio1").Build()
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = NewBuilder().MountRoot(AccessReadOnly).MountDevices("/dev", AccessReadOnly).Build()
	require.True(t, errors.Is(err, ErrRootNotLast))

	_, err = NewBuilder().MountFS("/", NewStaticFS(), AccessAll).Build()
	require.True(t, errors.Is(err, ErrInvalidPath))
}

func TestMountSubset(t *testing.T) {
	ns, err := NewBuilder().
		AddDevice(
			Descriptor{Name: "pio0", Kind: dev.KindChar, Mode: 0666, Device: pio.NewPort(0)},
			Descriptor{Name: "uart0", Kind: dev.KindFIFO, Mode: 0666, Device: fifo.NewDevice(fifo.Config{Size: 8})},
		).
		MountDevices("/sys/tty", AccessReadOnly, "uart0").
		MountDevices("/dev", AccessReadOnly).
		Build()
	require.NoError(t, err)
	_, err = ns.Resolve("/sys/tty/uart0")
	require.NoError(t, err)
	_, err = ns.Resolve("/sys/tty/pio0")
	require.True(t, errors.Is(err, ErrNotFound))
	entry, err := ns.Resolve("/sys")
	require.NoError(t, err)
	require.Equal(t, MountRoot, entry.Mount.Kind)
}

func TestBuildTwice(t *testing.T) {
	b := NewBuilder().
		AddDevice(Descriptor{Name: "pio0", Kind: dev.KindChar, Mode: 0666, Device: pio.NewPort(0)}).
		MountDevices("/dev", AccessReadOnly)
	first, err := b.Build()
	require.NoError(t, err)
	second, err := b.Build()
	require.NoError(t, err)
	require.True(t, first == second)

	table := second.Root().Table()
	var sentinels int
	for _, d := range table {
		if d.IsSentinel() {
			sentinels++
		}
	}
	require.Equal(t, 1, sentinels)
	require.True(t, table[len(table)-1].IsSentinel())
	require.Len(t, second.Table(), 2)
}
