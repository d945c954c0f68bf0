package channel

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

const nonceSize = 12

// ReadFrame reads one secure-channel frame from r and decrypts it with aead.
// Wire format: [4 bytes LE: length][12-byte nonce][ciphertext]. length covers
// itself, matching the length-prefix discipline of the game packet codec's
// own ReadFrame (internal/block), just widened to 4 bytes and AEAD-sealed.
func ReadFrame(r io.Reader, aead cipher.AEAD) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	total := binary.LittleEndian.Uint32(header[:])
	if total < 4+nonceSize {
		return nil, fmt.Errorf("invalid frame length: %d", total)
	}
	rest := make([]byte, total-4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	nonce := rest[:nonceSize]
	ciphertext := rest[nonceSize:]
	plaintext, err := aead.Open(ciphertext[:0], nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt frame: %w", err)
	}
	return plaintext, nil
}

// WriteFrame encrypts payload with aead under a fresh random nonce and
// writes one framed message to w.
func WriteFrame(w io.Writer, aead cipher.AEAD, payload []byte) error {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, payload, nil)

	total := uint32(4 + nonceSize + len(ciphertext))
	buf := make([]byte, 4, 4+len(nonce)+len(ciphertext))
	binary.LittleEndian.PutUint32(buf, total)
	buf = append(buf, nonce...)
	buf = append(buf, ciphertext...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// NewAEAD builds an AES-256-GCM AEAD from a 32-byte key.
func NewAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
