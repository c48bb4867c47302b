package ns

import (
	"github.com/robotalks/mculink/pkg/dev"
)

// Builder collects devices and mount points. The first error is kept and
// returned by Build.
type Builder struct {
	devices  []Descriptor
	devIndex map[string]int
	mounts   []*Mount
	root     *Mount
	err      error
	built    *Namespace
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{devIndex: make(map[string]int)}
}

// AddDevice registers device descriptors. Names must be unique.
func (b *Builder) AddDevice(descs ...Descriptor) *Builder {
	for _, d := range descs {
		if d.Name == "" {
			b.fail("add", "", ErrInvalidPath)
			continue
		}
		if _, ok := b.devIndex[d.Name]; ok {
			b.fail("add", d.Name, ErrExists)
			continue
		}
		b.devIndex[d.Name] = len(b.devices)
		b.devices = append(b.devices, d)
	}
	return b
}

// MountDevices mounts the named devices at path, or all devices when no
// name is given.
func (b *Builder) MountDevices(path string, access Access, names ...string) *Builder {
	m := b.newMount(path, access, MountDevices)
	if m == nil {
		return b
	}
	if len(names) > 0 {
		for _, name := range names {
			idx, ok := b.devIndex[name]
			if !ok {
				b.fail("mount", JoinPath(append(m.names, name)...), ErrNotFound)
				return b
			}
			if !m.addEntry(b.devices[idx]) {
				b.fail("mount", JoinPath(append(m.names, name)...), ErrExists)
				return b
			}
		}
	}
	b.mounts = append(b.mounts, m)
	return b
}

// MountFS mounts a filesystem at path.
func (b *Builder) MountFS(path string, fs FileSystem, access Access) *Builder {
	m := b.newMount(path, access, MountFS)
	if m == nil {
		return b
	}
	m.FS = fs
	b.mounts = append(b.mounts, m)
	return b
}

// MountRoot registers the root mount. No mount may follow it.
func (b *Builder) MountRoot(access Access) *Builder {
	if b.root != nil {
		b.fail("mount", "/", ErrExists)
		return b
	}
	b.root = &Mount{Path: "/", Access: access, Kind: MountRoot}
	return b
}

// Build validates and creates the Namespace.
func (b *Builder) Build() (*Namespace, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.built != nil {
		return b.built, nil
	}
	if b.root == nil {
		b.MountRoot(AccessReadOnly)
	}
	for _, m := range b.mounts {
		// a device mount without explicit names takes every device
		if m.Kind == MountDevices && m.index == nil {
			m.index = make(map[string]int)
			for _, d := range b.devices {
				m.addEntry(d)
			}
		}
		if !b.root.hasEntry(m.names[0]) {
			b.root.addEntry(Dir(m.names[0], 0555))
		}
	}
	b.root.entries = append(b.root.entries, Sentinel)
	b.built = &Namespace{
		devices: append([]Descriptor(nil), b.devices...),
		mounts:  append(append([]*Mount(nil), b.mounts...), b.root),
	}
	return b.built, nil
}

func (b *Builder) newMount(path string, access Access, kind MountKind) *Mount {
	if b.root != nil {
		b.fail("mount", path, ErrRootNotLast)
		return nil
	}
	names, err := SplitPath(path)
	if err == nil && len(names) == 0 {
		err = ErrInvalidPath
	}
	if err != nil {
		b.fail("mount", path, err)
		return nil
	}
	path = JoinPath(names...)
	for _, m := range b.mounts {
		if m.Path == path {
			b.fail("mount", path, ErrExists)
			return nil
		}
	}
	return &Mount{Path: path, Access: access, Kind: kind, names: names}
}

func (b *Builder) fail(op, path string, err error) {
	if b.err == nil {
		b.err = &PathError{Op: op, Path: path, Err: err}
	}
}

func (m *Mount) hasEntry(name string) bool {
	_, ok := m.index[name]
	return ok
}

func (m *Mount) addEntry(d Descriptor) bool {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if _, ok := m.index[d.Name]; ok {
		return false
	}
	m.index[d.Name] = len(m.entries)
	m.entries = append(m.entries, d)
	return true
}

func (m *Mount) dir() Descriptor {
	name := "/"
	if len(m.names) > 0 {
		name = m.names[len(m.names)-1]
	}
	mode := Mode(0555)
	if m.Access == AccessAll {
		mode = 0777
	}
	return Descriptor{Name: name, Kind: dev.KindMount, Mode: mode, UID: UserRoot, GID: GroupRoot}
}

func (m *Mount) lookup(rel []string) (Descriptor, bool) {
	if len(rel) == 0 {
		return m.dir(), true
	}
	switch m.Kind {
	case MountDevices, MountRoot:
		if len(rel) != 1 {
			return Descriptor{}, false
		}
		idx, ok := m.index[rel[0]]
		if !ok {
			return Descriptor{}, false
		}
		return m.entries[idx], true
	case MountFS:
		if m.FS == nil {
			return Descriptor{}, false
		}
		d, err := m.FS.Lookup(rel)
		return d, err == nil
	}
	return Descriptor{}, false
}

// Entries lists the entries directly under the mount point.
func (m *Mount) Entries() []Descriptor {
	if m.Kind == MountFS {
		if m.FS == nil {
			return nil
		}
		return m.FS.List()
	}
	list := make([]Descriptor, 0, len(m.entries))
	for _, d := range m.entries {
		if !d.IsSentinel() {
			list = append(list, d)
		}
	}
	return list
}

// Table returns the raw entry table. The root table ends with Sentinel.
func (m *Mount) Table() []Descriptor {
	return append([]Descriptor(nil), m.entries...)
}
