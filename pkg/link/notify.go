package link

import (
	"bytes"
	"encoding/binary"
)

// Notification event kinds.
const (
	NotifyDeviceWrite uint32 = 1
)

const (
	// NotifyNameMax is the size of the name field including the NUL terminator.
	NotifyNameMax = 24
	// NotifyRecordSize is the encoded size of a NotifyEvent.
	NotifyRecordSize = 4 + NotifyNameMax + 4
)

// NotifyEvent describes I/O activity on a device.
//
// Wire layout (little-endian, 32 bytes):
//
//	kind  uint32
//	name  [24]byte, NUL padded, at most 23 significant bytes
//	nbyte uint32
type NotifyEvent struct {
	Kind  uint32
	Name  string
	Nbyte uint32
}

type notifyRecord struct {
	Kind  uint32
	Name  [NotifyNameMax]byte
	Nbyte uint32
}

// NewDeviceWrite creates a device-write event.
func NewDeviceWrite(name string, nbyte int) *NotifyEvent {
	return &NotifyEvent{Kind: NotifyDeviceWrite, Name: name, Nbyte: uint32(nbyte)}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (e *NotifyEvent) MarshalBinary() ([]byte, error) {
	rec := notifyRecord{Kind: e.Kind, Nbyte: e.Nbyte}
	copy(rec.Name[:NotifyNameMax-1], e.Name)
	var buf bytes.Buffer
	buf.Grow(NotifyRecordSize)
	if err := binary.Write(&buf, binary.LittleEndian, &rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (e *NotifyEvent) UnmarshalBinary(data []byte) error {
	if len(data) != NotifyRecordSize {
		return ErrBadRecord
	}
	var rec notifyRecord
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &rec); err != nil {
		return err
	}
	name := rec.Name[:]
	if pos := bytes.IndexByte(name, 0); pos >= 0 {
		name = name[:pos]
	}
	e.Kind, e.Name, e.Nbyte = rec.Kind, string(name), rec.Nbyte
	return nil
}
