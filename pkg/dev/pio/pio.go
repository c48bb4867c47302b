// Package pio provides the pin I/O attribute vocabulary and an in-memory port.
package pio

import "github.com/robotalks/mculink/pkg/dev"

// Mode configures pins selected by Attr.Mask.
type Mode uint32

// Pin modes.
const (
	ModeInput   Mode = 0x0001
	ModeOutput  Mode = 0x0002
	ModeDirOnly Mode = 0x0100 // change direction only, leave pull/drive settings alone
)

// IsOutput checks the output bit.
func (m Mode) IsOutput() bool {
	return m&ModeOutput != 0
}

// Attr is the argument of ReqSetAttr.
type Attr struct {
	Mask uint32
	Mode Mode
}

// Requests
const (
	// ReqSetMask drives pins in the mask (uint32) high.
	ReqSetMask dev.Request = 0x70690001
	// ReqClrMask drives pins in the mask (uint32) low.
	ReqClrMask dev.Request = 0x70690002
	// ReqSetAttr applies Attr (Attr or *Attr).
	ReqSetAttr dev.Request = 0x70690003
	// ReqGet reads the pin levels into *uint32.
	ReqGet dev.Request = 0x70690004
	// ReqGetDir reads the direction register into *uint32.
	ReqGetDir dev.Request = 0x70690005
)

// Pin returns the mask for a single pin.
func Pin(n uint) uint32 {
	return 1 << n
}
