package ns

import (
	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/dev"
)

// Namespace is the immutable index of devices and mount points.
type Namespace struct {
	devices []Descriptor
	mounts  []*Mount
}

// Mounts returns mount points in registration order, root last.
func (n *Namespace) Mounts() []*Mount {
	return append([]*Mount(nil), n.mounts...)
}

// Root returns the root mount.
func (n *Namespace) Root() *Mount {
	return n.mounts[len(n.mounts)-1]
}

// Devices returns the registered device descriptors.
func (n *Namespace) Devices() []Descriptor {
	return append([]Descriptor(nil), n.devices...)
}

// Table returns the device descriptors terminated by Sentinel.
func (n *Namespace) Table() []Descriptor {
	return append(n.Devices(), Sentinel)
}

// Resolve finds the entry of an absolute path. Mount points are scanned in
// registration order and the root mount is the fallback.
func (n *Namespace) Resolve(path string) (*Entry, error) {
	names, err := SplitPath(path)
	if err != nil {
		return nil, &PathError{Op: "resolve", Path: path, Err: err}
	}
	for _, m := range n.mounts {
		if !hasPrefix(names, m.names) {
			continue
		}
		if d, ok := m.lookup(names[len(m.names):]); ok {
			return &Entry{Descriptor: d, Path: JoinPath(names...), Mount: m}, nil
		}
	}
	return nil, &PathError{Op: "resolve", Path: path, Err: ErrNotFound}
}

// Open implements dev.Opener.
func (n *Namespace) Open(path string, flags dev.OpenFlag) (dev.Handle, error) {
	entry, err := n.Resolve(path)
	if err != nil {
		return nil, err
	}
	if entry.IsDir() {
		return nil, &PathError{Op: "open", Path: path, Err: ErrIsDir}
	}
	if !entry.Mode.Allows(flags) {
		return nil, &PathError{Op: "open", Path: path, Err: dev.ErrPermission}
	}
	if entry.Device == nil {
		return nil, &PathError{Op: "open", Path: path, Err: dev.ErrNotSupported}
	}
	h, err := entry.Device.Open(flags)
	if err != nil {
		return nil, err
	}
	glog.V(3).Infof("open %s flags=%#x", entry.Path, int(flags))
	return h, nil
}

// List lists entries under a directory path.
func (n *Namespace) List(path string) ([]Descriptor, error) {
	entry, err := n.Resolve(path)
	if err != nil {
		return nil, err
	}
	if !entry.IsDir() {
		return []Descriptor{entry.Descriptor}, nil
	}
	if entry.Kind == dev.KindMount && entry.Path == entry.Mount.Path {
		return entry.Mount.Entries(), nil
	}
	// a plain directory: either a filesystem directory or an intermediate
	// node of a nested mount point.
	for _, m := range n.mounts {
		if m.Path == entry.Path {
			return m.Entries(), nil
		}
	}
	return nil, nil
}
