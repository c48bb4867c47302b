package ns

import (
	"sort"

	"github.com/robotalks/mculink/pkg/dev"
)

// FileSystem is the backing of a filesystem mount.
// Only its registration in the tree is handled here.
type FileSystem interface {
	// Lookup finds the entry with names relative to the mount point.
	Lookup(names []string) (Descriptor, error)
	// List lists the top-level entries.
	List() []Descriptor
}

// StaticFS is a fixed set of top-level entries.
type StaticFS struct {
	entries map[string]Descriptor
}

// NewStaticFS creates a StaticFS.
func NewStaticFS(entries ...Descriptor) *StaticFS {
	fs := &StaticFS{entries: make(map[string]Descriptor)}
	for _, d := range entries {
		fs.entries[d.Name] = d
	}
	return fs
}

// Dir creates a directory descriptor.
func Dir(name string, mode Mode) Descriptor {
	return Descriptor{Name: name, Kind: dev.KindDir, Mode: mode, UID: UserRoot, GID: GroupRoot}
}

// Lookup implements FileSystem.
func (fs *StaticFS) Lookup(names []string) (Descriptor, error) {
	if len(names) != 1 {
		return Descriptor{}, ErrNotFound
	}
	d, ok := fs.entries[names[0]]
	if !ok {
		return Descriptor{}, ErrNotFound
	}
	return d, nil
}

// List implements FileSystem.
func (fs *StaticFS) List() []Descriptor {
	list := make([]Descriptor, 0, len(fs.entries))
	for _, d := range fs.entries {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
