package packet

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// Writer builds one game packet. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// NewWriterWithOpcode starts a packet with its 2-byte opcode already
// written.
func NewWriterWithOpcode(opcode uint16) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteH(opcode)
	return w
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteD writes 4 bytes little-endian.
func (w *Writer) WriteD(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteS writes a null-terminated string, encoding UTF-8 to UTF-16LE.
func (w *Writer) WriteS(s string) {
	if len(s) == 0 {
		w.buf = append(w.buf, 0, 0)
		return
	}
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		// Fallback: best-effort raw bytes, still null-terminated.
		w.buf = append(w.buf, []byte(s)...)
		w.buf = append(w.buf, 0, 0)
		return
	}
	w.buf = append(w.buf, encoded...)
	w.buf = append(w.buf, 0, 0)
}

// WriteBytes writes raw bytes verbatim.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the packet content padded to a 4-byte boundary, matching
// the block runtime's frame alignment expectations. The padding is added to
// a copy, so the Writer's own buffer (and Len) stay unpadded.
func (w *Writer) Bytes() []byte {
	pad := len(w.buf) % 4
	if pad == 0 {
		return w.buf
	}
	out := make([]byte, len(w.buf), len(w.buf)+4-pad)
	copy(out, w.buf)
	return append(out, make([]byte, 4-pad)...)
}

// RawBytes returns the packet content without padding.
func (w *Writer) RawBytes() []byte {
	return w.buf
}

// Len returns the current unpadded length.
func (w *Writer) Len() int {
	return len(w.buf)
}
