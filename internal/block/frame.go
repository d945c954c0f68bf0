package block

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadFrame reads one block-client packet frame from r.
// Wire format: [2 bytes LE: total length including header][payload].
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	total := int(binary.LittleEndian.Uint16(header[:]))
	payloadLen := total - 2
	if payloadLen <= 0 || payloadLen > 65533 {
		return nil, fmt.Errorf("invalid frame length: %d", total)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", payloadLen, err)
	}
	return payload, nil
}

// WriteFrame writes one block-client packet frame to w.
func WriteFrame(w io.Writer, data []byte) error {
	total := len(data) + 2
	var header [2]byte
	binary.LittleEndian.PutUint16(header[:], uint16(total))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	_, err := w.Write(data)
	return err
}
