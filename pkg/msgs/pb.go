package msgs

import (
	"github.com/golang/protobuf/proto"
)

// The wire messages below are plain proto3 structs marshaled by reflection.

// PbTyped is the envelope carrying a type ID and an encoded message.
type PbTyped struct {
	TypeId  uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Message []byte `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
	Seq     uint64 `protobuf:"varint,3,opt,name=seq,proto3" json:"seq,omitempty"`
}

func (m *PbTyped) Reset()         { *m = PbTyped{} }
func (m *PbTyped) String() string { return proto.CompactTextString(m) }
func (*PbTyped) ProtoMessage()    {}

// PbDeviceWrite reports bytes written to a device.
type PbDeviceWrite struct {
	Name  string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Nbyte uint32 `protobuf:"varint,2,opt,name=nbyte,proto3" json:"nbyte,omitempty"`
}

func (m *PbDeviceWrite) Reset()         { *m = PbDeviceWrite{} }
func (m *PbDeviceWrite) String() string { return proto.CompactTextString(m) }
func (*PbDeviceWrite) ProtoMessage()    {}

// PbBoardEvent reports a board life-cycle event.
type PbBoardEvent struct {
	Kind       uint32 `protobuf:"varint,1,opt,name=kind,proto3" json:"kind,omitempty"`
	Message    string `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
	SysName    string `protobuf:"bytes,3,opt,name=sys_name,json=sysName,proto3" json:"sys_name,omitempty"`
	SysVersion string `protobuf:"bytes,4,opt,name=sys_version,json=sysVersion,proto3" json:"sys_version,omitempty"`
}

func (m *PbBoardEvent) Reset()         { *m = PbBoardEvent{} }
func (m *PbBoardEvent) String() string { return proto.CompactTextString(m) }
func (*PbBoardEvent) ProtoMessage()    {}

// PbLinkState reports a PHY state change.
type PbLinkState struct {
	Name  string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	State string `protobuf:"bytes,2,opt,name=state,proto3" json:"state,omitempty"`
}

func (m *PbLinkState) Reset()         { *m = PbLinkState{} }
func (m *PbLinkState) String() string { return proto.CompactTextString(m) }
func (*PbLinkState) ProtoMessage()    {}
