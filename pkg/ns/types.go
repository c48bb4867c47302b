// Package ns composes peripherals, buffered channels and filesystem mounts
// into one addressable tree.
//
// The tree is built once at startup and is read-only afterwards. Only the
// backing state of entries (e.g. FIFO contents) changes at run time.
package ns

import (
	"fmt"

	"github.com/robotalks/mculink/pkg/dev"
)

// Mode holds the permission bits of an entry, e.g. 0666.
type Mode uint32

// Permission bits for others, used when no identity is known.
const (
	ModeOtherRead  Mode = 0004
	ModeOtherWrite Mode = 0002
)

// Allows checks the open flags against the bits for others.
func (m Mode) Allows(flags dev.OpenFlag) bool {
	if flags.CanRead() && m&ModeOtherRead == 0 {
		return false
	}
	if flags.CanWrite() && m&ModeOtherWrite == 0 {
		return false
	}
	return true
}

// String implements Stringer.
func (m Mode) String() string {
	return fmt.Sprintf("%04o", uint32(m))
}

// Access controls structural changes of a mount (creating/removing entries).
type Access int

// Accesses
const (
	AccessReadOnly Access = iota
	AccessAll
)

// String implements Stringer.
func (a Access) String() string {
	if a == AccessAll {
		return "rw"
	}
	return "ro"
}

// Well-known owner and group IDs.
const (
	UserRoot  = 0
	GroupRoot = 0
)

// Descriptor is one named object with its backing state.
type Descriptor struct {
	Name   string
	Kind   dev.Kind
	Mode   Mode
	UID    int
	GID    int
	Device dev.Device
}

// Sentinel terminates a descriptor table.
var Sentinel = Descriptor{}

// IsSentinel checks for the table terminator.
func (d Descriptor) IsSentinel() bool {
	return d.Name == "" && d.Device == nil
}

// MountKind is the backing kind of a mount point.
type MountKind int

// Mount kinds
const (
	MountDevices MountKind = iota
	MountFS
	MountRoot
)

// Mount is a registered mount point.
type Mount struct {
	Path   string
	Access Access
	Kind   MountKind
	FS     FileSystem

	names   []string
	entries []Descriptor
	index   map[string]int
}

// Entry is a resolved object.
type Entry struct {
	Descriptor
	Path  string
	Mount *Mount
}

// IsDir indicates the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Kind == dev.KindDir || e.Kind == dev.KindMount
}
