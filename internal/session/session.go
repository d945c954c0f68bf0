// Package session implements the in-block user session: the per-connection
// state machine (spec §4.5) plus the mutable fields a player's connection
// accumulates as it moves from login through character select into the
// game world.
package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shipcluster/server/internal/core/ecs"
	"github.com/shipcluster/server/internal/packet"
)

// PacketType selects the client text/codec variant. The connection starts
// at one of PacketTypeJP or PacketTypeVita at login time and may upgrade to
// PacketTypeNA exactly once, after ChallengeRequest/ChallengeResponse.
type PacketType int

const (
	PacketTypeJP PacketType = iota
	PacketTypeNA
	PacketTypeVita
)

// PartyInvite is a weak reference to a party the holder has been invited
// to join, plus the time it was issued. The referenced party is looked up
// through an ecs.EntityPool at accept time; if it is gone, acceptance is a
// silent no-op (spec §4.7).
type PartyInvite struct {
	PartyID   uint32
	PartyRef  ecs.EntityID
	InvitedAt time.Time
}

// Session is one connected player's mutable state. Fields are grouped by
// the concerns that touch them; callers needing cross-field consistency
// (e.g. state transitions) must hold mu.
type Session struct {
	conn net.Conn

	mu sync.RWMutex

	state atomic.Int32 // packet.SessionState

	PlayerID    uint32
	CharacterID uint32 // 0 until a character is selected
	Nickname    string

	PositionX, PositionY, PositionZ float32
	MapEntity                       ecs.EntityID
	PartyEntity                     ecs.EntityID

	TextLanguage string
	PacketType   PacketType

	lastPing    atomic.Value // time.Time
	failedPings atomic.Int32

	PendingInvites []PartyInvite

	uuidCounter atomic.Uint64
	Flags       uint64

	readyToShutdown atomic.Bool
}

func New(conn net.Conn, playerID uint32, packetType PacketType) *Session {
	s := &Session{
		conn:       conn,
		PlayerID:   playerID,
		PacketType: packetType,
	}
	s.state.Store(int32(packet.StateLoggingIn))
	s.lastPing.Store(time.Now())
	return s
}

func (s *Session) Conn() net.Conn { return s.conn }

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// UpgradeToNA performs the one-time mid-stream codec switch after a
// successful ChallengeRequest/ChallengeResponse exchange.
func (s *Session) UpgradeToNA() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PacketType = PacketTypeNA
}

func (s *Session) TouchPing() {
	s.lastPing.Store(time.Now())
	s.failedPings.Store(0)
}

func (s *Session) LastPing() time.Time {
	return s.lastPing.Load().(time.Time)
}

// MissedPing increments the consecutive-unanswered-ping counter and
// reports whether it has now reached the 5-miss disconnect threshold
// (spec §4.4).
func (s *Session) MissedPing() (disconnect bool) {
	return s.failedPings.Add(1) >= 5
}

func (s *Session) ReadyToShutdown() bool {
	return s.readyToShutdown.Load()
}

func (s *Session) MarkReadyToShutdown() {
	s.readyToShutdown.Store(true)
}

// NextUUID draws the next value from this account's monotonic uuid
// counter (used to mint fresh item uuids on partial-stack moves, spec
// §4.8).
func (s *Session) NextUUID() uint64 {
	return s.uuidCounter.Add(1)
}

// UUIDCounter reads the current counter value without advancing it, used
// by the persistence flush path to report the account's high-water mark
// to the master via PutUUID (spec §9: "item uuids are per-account and
// persisted via PutUUID at session teardown").
func (s *Session) UUIDCounter() uint64 {
	return s.uuidCounter.Load()
}

// SetPosition updates the player's world position under the session lock.
func (s *Session) SetPosition(x, y, z float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PositionX, s.PositionY, s.PositionZ = x, y, z
}

func (s *Session) Position() (x, y, z float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PositionX, s.PositionY, s.PositionZ
}

// AddInvite appends a party invite if it is not already present, enforcing
// the idempotence rule from spec §4.7 (re-inviting to the same party is a
// no-op).
func (s *Session) AddInvite(inv PartyInvite) (added bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.PendingInvites {
		if existing.PartyID == inv.PartyID {
			return false
		}
	}
	s.PendingInvites = append(s.PendingInvites, inv)
	return true
}

// TakeInvite removes and returns the invite for partyID, if any.
func (s *Session) TakeInvite(partyID uint32) (PartyInvite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, inv := range s.PendingInvites {
		if inv.PartyID == partyID {
			s.PendingInvites = append(s.PendingInvites[:i], s.PendingInvites[i+1:]...)
			return inv, true
		}
	}
	return PartyInvite{}, false
}
