package block

import (
	"bytes"
	"net"
	"testing"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/packet"
)

func netPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return a, b
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{1, 2, 3, 4, 5}
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %v, want %v", got, payload)
	}
}

func TestIsResetOrAborted(t *testing.T) {
	cases := map[string]bool{
		"read tcp 127.0.0.1:1234: connection reset by peer": true,
		"use of closed network connection":                  true,
		"EOF":                                                true,
		"some unrelated transient error":                     false,
	}
	for msg, want := range cases {
		if got := isResetOrAborted(fmtErr(msg)); got != want {
			t.Fatalf("isResetOrAborted(%q) = %v, want %v", msg, got, want)
		}
	}
}

type fmtErr string

func (e fmtErr) Error() string { return string(e) }

func TestHandleAcceptRejectsAtCapacity(t *testing.T) {
	reg := packet.NewRegistry(zap.NewNop())
	b := NewBlock(Config{ID: 1, Name: "Block 1", MaxPlayers: 0}, reg, zap.NewNop())

	server, client := netPipe(t)
	defer client.Close()

	b.handleAccept(nil, server)

	if b.players != 0 {
		t.Fatalf("expected no admitted players at zero capacity, got %d", b.players)
	}
}
