package msgs

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

// DeviceWrite is the event that bytes were written to a device.
type DeviceWrite struct {
	PbDeviceWrite
}

// NewDeviceWrite creates a DeviceWrite.
func NewDeviceWrite(name string, nbyte uint32) *DeviceWrite {
	return &DeviceWrite{PbDeviceWrite: PbDeviceWrite{Name: name, Nbyte: nbyte}}
}

// NewMessage implements Message.
func (m *DeviceWrite) NewMessage() Message { return &DeviceWrite{} }

// TypeID implements SerializableMessage.
func (m *DeviceWrite) TypeID() uint32 { return DeviceWriteTypeID }

// Serializable implements SerializableMessage.
func (m *DeviceWrite) Serializable() proto.Message { return &m.PbDeviceWrite }

// BoardEvent kinds
const (
	BoardEventStartLink uint32 = iota + 1
	BoardEventStartFilesystem
	BoardEventFatal
	BoardEventRecovery
)

// BoardEvent is a board life-cycle event.
type BoardEvent struct {
	PbBoardEvent
}

// NewBoardEvent creates a BoardEvent.
func NewBoardEvent(kind uint32, message string) *BoardEvent {
	return &BoardEvent{PbBoardEvent: PbBoardEvent{Kind: kind, Message: message}}
}

// NewMessage implements Message.
func (m *BoardEvent) NewMessage() Message { return &BoardEvent{} }

// TypeID implements SerializableMessage.
func (m *BoardEvent) TypeID() uint32 { return BoardEventTypeID }

// Serializable implements SerializableMessage.
func (m *BoardEvent) Serializable() proto.Message { return &m.PbBoardEvent }

// KindName returns the readable kind.
func (m *BoardEvent) KindName() string {
	switch m.Kind {
	case BoardEventStartLink:
		return "start-link"
	case BoardEventStartFilesystem:
		return "start-fs"
	case BoardEventFatal:
		return "fatal"
	case BoardEventRecovery:
		return "recovery"
	}
	return fmt.Sprintf("event-%d", m.Kind)
}

// LinkState is the event that the link PHY changed state.
type LinkState struct {
	PbLinkState
}

// NewLinkState creates a LinkState.
func NewLinkState(name, state string) *LinkState {
	return &LinkState{PbLinkState: PbLinkState{Name: name, State: state}}
}

// NewMessage implements Message.
func (m *LinkState) NewMessage() Message { return &LinkState{} }

// TypeID implements SerializableMessage.
func (m *LinkState) TypeID() uint32 { return LinkStateTypeID }

// Serializable implements SerializableMessage.
func (m *LinkState) Serializable() proto.Message { return &m.PbLinkState }

// TypeID Groups
const (
	GroupDevice uint32 = 0x00010000
	GroupBoard  uint32 = 0x00020000
	GroupLink   uint32 = 0x00030000
)

// TypeIDs
const (
	DeviceWriteTypeID uint32 = TypeIDKindEvent | GroupDevice | 0x0001
	BoardEventTypeID  uint32 = TypeIDKindEvent | GroupBoard | 0x0001
	LinkStateTypeID   uint32 = TypeIDKindEvent | GroupLink | 0x0001
)
