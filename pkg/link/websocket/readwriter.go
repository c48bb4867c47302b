package websocket

import (
	"time"

	"golang.org/x/net/websocket"
)

// ReadWriter exchanges binary frames on a websocket.Conn.
type ReadWriter websocket.Conn

// NewReadWriter wraps websocket.Conn.
func NewReadWriter(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// ReadPacket receives one frame.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket sends one binary frame.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// WritePacketTimeout sends one binary frame within timeout.
func (p *ReadWriter) WritePacketTimeout(pkt []byte, timeout time.Duration) error {
	conn := (*websocket.Conn)(p)
	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
		defer conn.SetWriteDeadline(time.Time{})
	}
	return websocket.Message.Send(conn, pkt)
}

// Close closes the websocket.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}
