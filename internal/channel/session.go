package channel

import (
	"crypto/cipher"
	"fmt"
	"net"
	"time"
)

// Secured wraps the AEAD derived by a handshake.
type Secured struct {
	aead cipher.AEAD
}

// ErrTimeout is returned when a read observes no data within the configured
// idle window.
var ErrTimeout = fmt.Errorf("channel: read timeout")

// Session is one established, authenticated, encrypted duplex channel
// between master and ship. Framing is fixed (AES-256-GCM); the application
// payload codec is switchable at runtime via SetFormat.
type Session struct {
	conn       net.Conn
	aead       cipher.AEAD
	codec      *Codec
	pendingFmt *PayloadFormat // deferred format switch, applied after the next Send
	idle       time.Duration
}

// NewSession wraps an established connection and its derived AEAD key.
// idle is the read idle timeout; pass 0 to use the 24h master-channel default.
func NewSession(conn net.Conn, secured Secured, idle time.Duration) *Session {
	if idle <= 0 {
		idle = 24 * time.Hour
	}
	return &Session{
		conn:  conn,
		aead:  secured.aead,
		codec: NewCodec(FormatJSON),
		idle:  idle,
	}
}

// Send encodes v in the current payload format and writes one frame.
// If a SetFormat switch is pending, it is applied to subsequent sends only
// (the switch message itself must be sent by the caller before calling Send
// with the new-format payload).
func (s *Session) Send(v any) error {
	payload, err := s.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := WriteFrame(s.conn, s.aead, payload); err != nil {
		return err
	}
	if s.pendingFmt != nil {
		s.codec.SetFormat(*s.pendingFmt)
		s.pendingFmt = nil
	}
	return nil
}

// SetFormat requests a deferred switch of the payload format: it takes
// effect for the frame *after* the one currently being sent, matching the
// spec's "deferred" SetFormat semantics.
func (s *Session) SetFormat(f PayloadFormat) {
	s.pendingFmt = &f
}

// Recv reads one frame and decodes it into v.
func (s *Session) Recv(v any) error {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.idle)); err != nil {
		return err
	}
	payload, err := ReadFrame(s.conn, s.aead)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return ErrTimeout
		}
		return err
	}
	return s.codec.Decode(payload, v)
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
