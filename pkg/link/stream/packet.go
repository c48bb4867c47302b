package stream

import (
	"encoding/binary"
	"io"
	"time"
)

// PacketReadWriter frames notification records on a byte stream.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type PacketReadWriter struct {
	io.ReadWriter
}

// NewPacketReadWriter wraps an io.ReadWriter.
func NewPacketReadWriter(s io.ReadWriter) *PacketReadWriter {
	return &PacketReadWriter{s}
}

// ReadPacket reads one framed packet.
func (p *PacketReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p, pkt)
	return pkt, err
}

// WritePacket writes one framed packet in a single write.
func (p *PacketReadWriter) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.Write(buf)
	return err
}

type deadlineWriter interface {
	SetWriteDeadline(time.Time) error
}

// SendNotify implements link.NotifySink. The timeout only applies when the
// stream supports write deadlines.
func (p *PacketReadWriter) SendNotify(record []byte, timeout time.Duration) error {
	if d, ok := p.ReadWriter.(deadlineWriter); ok && timeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(timeout)); err == nil {
			defer d.SetWriteDeadline(time.Time{})
		}
	}
	return p.WritePacket(record)
}

// Close implements link.NotifySink.
func (p *PacketReadWriter) Close() error {
	if c, ok := p.ReadWriter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
