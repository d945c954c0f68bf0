// Package packet implements the in-block game packet codec: a
// length-prefixed, opcode-tagged binary format with a little-endian field
// reader/writer and a state-gated dispatch registry. The wire shape and
// helper naming follow the teacher's own packet codec; the opcode space and
// session states are this server's (§4.5's LoggingIn..InGame ladder)
// instead of the teacher's character-server states.
package packet

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// Reader reads fields from a decrypted, decrypted-frame packet payload.
// Byte 0-1 is always the opcode (little-endian uint16).
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 2} // skip the 2-byte opcode
}

// Opcode returns the packet's opcode, or 0 if the payload is too short to
// contain one.
func (r *Reader) Opcode() uint16 {
	if len(r.data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(r.data)
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadH reads 2 bytes little-endian as uint16.
func (r *Reader) ReadH() uint16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes little-endian as uint32.
func (r *Reader) ReadD() uint32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadQ reads 8 bytes little-endian as uint64.
func (r *Reader) ReadQ() uint64 {
	if r.off+8 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadS reads a null-terminated UTF-16LE string and returns it as UTF-8.
// Client text fields (nicknames, chat, symbol art names) are transmitted as
// UTF-16LE regardless of the packet-type variant (JP/NA/Vita); only the
// binary layout around the string differs between those variants, which is
// handled at the session layer, not here.
func (r *Reader) ReadS() string {
	start := r.off
	for r.off+1 < len(r.data) {
		if r.data[r.off] == 0 && r.data[r.off+1] == 0 {
			raw := r.data[start:r.off]
			r.off += 2 // skip the null terminator
			return utf16leToUTF8(raw)
		}
		r.off += 2
	}
	raw := r.data[start:r.off]
	r.off = len(r.data)
	return utf16leToUTF8(raw)
}

func utf16leToUTF8(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// ReadBytes reads n raw bytes, clamped to the remaining payload.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
