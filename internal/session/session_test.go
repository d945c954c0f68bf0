package session

import (
	"net"
	"testing"

	"github.com/shipcluster/server/internal/packet"
	"go.uber.org/zap"
)

func TestStateTotalOrder(t *testing.T) {
	if !(packet.StateLoggingIn < packet.StateNewUsername &&
		packet.StateNewUsername < packet.StateCharacterSelect &&
		packet.StateCharacterSelect < packet.StatePreInGame &&
		packet.StatePreInGame < packet.StateInGame) {
		t.Fatalf("session state ladder is not totally ordered as expected")
	}
}

func TestSettingsGateAllowedFromNewUsernameOnward(t *testing.T) {
	reg := packet.NewRegistry(zap.NewNop())
	var hits int
	reg.RegisterFrom(0xAA, packet.StateNewUsername, func(sess any, r *packet.Reader) {
		hits++
	})
	data := packet.NewWriterWithOpcode(0xAA).RawBytes()

	_ = reg.Dispatch(nil, packet.StateLoggingIn, data)
	if hits != 0 {
		t.Fatalf("settings packet must not be allowed before NewUsername")
	}
	for _, st := range []packet.SessionState{
		packet.StateNewUsername, packet.StateCharacterSelect, packet.StatePreInGame, packet.StateInGame,
	} {
		_ = reg.Dispatch(nil, st, data)
	}
	if hits != 4 {
		t.Fatalf("expected 4 hits across states >= NewUsername, got %d", hits)
	}
}

func TestAddInviteIsIdempotent(t *testing.T) {
	s := New(pipeConn(t), 1, PacketTypeJP)
	first := s.AddInvite(PartyInvite{PartyID: 7})
	second := s.AddInvite(PartyInvite{PartyID: 7})
	if !first || second {
		t.Fatalf("re-inviting to the same party should be a silent no-op, got first=%v second=%v", first, second)
	}
	if len(s.PendingInvites) != 1 {
		t.Fatalf("expected exactly 1 pending invite, got %d", len(s.PendingInvites))
	}
}

func TestTakeInviteRemovesIt(t *testing.T) {
	s := New(pipeConn(t), 1, PacketTypeJP)
	s.AddInvite(PartyInvite{PartyID: 7})
	inv, ok := s.TakeInvite(7)
	if !ok || inv.PartyID != 7 {
		t.Fatalf("expected to find invite 7")
	}
	if len(s.PendingInvites) != 0 {
		t.Fatalf("invite should have been removed")
	}
	if _, ok := s.TakeInvite(7); ok {
		t.Fatalf("second take should fail")
	}
}

func TestMissedPingDisconnectsAfterFive(t *testing.T) {
	s := New(pipeConn(t), 1, PacketTypeJP)
	for i := 0; i < 4; i++ {
		if s.MissedPing() {
			t.Fatalf("should not disconnect before 5 misses (miss %d)", i+1)
		}
	}
	if !s.MissedPing() {
		t.Fatalf("should disconnect on the 5th consecutive miss")
	}
}

func pipeConn(t *testing.T) net.Conn {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return a
}
