// Package worldmap implements one in-block map: the broadcast domain for
// movement, chat, and interaction, and the locus of the per-object
// interaction script hook (spec §4.6). A Map can be used from several
// goroutines at once (cmd/ship hands every block the same lobby Map), so
// AddPlayer, RemovePlayer, the Relay* methods and Interact take mu;
// Broadcast and BroadcastExcept expect the caller to hold it.
package worldmap

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/core/ecs"
)

// ObjectID is the wire-visible identity of anything in a map: a player
// character, an NPC, a ground event, or a transporter. Counters are
// partitioned by kind and seeded far apart, the same defensive spacing the
// teacher uses for its NPC/ground-item id counters (internal/world/npc.go,
// ground.go) so that a bug conflating two kinds fails loudly instead of
// silently colliding.
type ObjectID uint32

const (
	playerObjIDBase = 1_000_000
	mapObjIDBase    = 200_000_000
)

var (
	playerObjIDCounter atomic.Uint32
	mapObjIDCounter    atomic.Uint32
)

func init() {
	playerObjIDCounter.Store(playerObjIDBase)
	mapObjIDCounter.Store(mapObjIDBase)
}

// NextPlayerObjID mints a unique object id for a character entering a map.
func NextPlayerObjID() ObjectID { return ObjectID(playerObjIDCounter.Add(1)) }

// NextMapObjID mints a unique object id for anything else placed into a
// map at runtime (e.g. a quest instance's dynamically spawned objects).
func NextMapObjID() ObjectID { return ObjectID(mapObjIDCounter.Add(1)) }

// Channel selects the broadcast domain for chat and symbol-art relay
// (spec §4.6): "Map" reaches everyone on the map, "Party" reaches only the
// sender's party.
type Channel int

const (
	ChannelMap Channel = iota
	ChannelParty
)

// Sender is the map's view of a connected player: enough to address and
// write to them without worldmap depending on internal/session directly,
// keeping the two packages decoupled and independently testable.
type Sender interface {
	ObjectID() ObjectID
	Send(pkt []byte) error
}

// PartyBroadcaster is the hook the map uses to route ChannelParty traffic;
// supplied by whatever owns the player's current party (internal/party),
// since the map itself has no notion of party membership.
type PartyBroadcaster interface {
	BroadcastFrom(senderObjID ObjectID, pkt []byte)
}

// StaticObject is one entry from a map's static data: an NPC, event,
// transporter, or inert object streamed to every player on entry and
// addressable by Interact.
type StaticObject struct {
	ID         ObjectID
	Kind       string // "npc", "event", "transporter", "object"
	Name       string
	Data       []byte // opaque template payload, streamed as-is after script preprocessing
	ScriptName string // "" uses the synthesized default script
}

// rosterEntry pairs a weak roster reference with the live Sender it
// resolves to, so a stale entry (ecs.EntityID no longer alive) is dropped
// on next iteration without the map needing a removal notification.
type rosterEntry struct {
	id     ecs.EntityID
	sender Sender
}

// Map is one in-block map instance.
type Map struct {
	mu   sync.Mutex
	log  *zap.Logger
	name string

	pool   *ecs.EntityPool
	roster []rosterEntry

	static  []StaticObject
	scripts ScriptRunner

	spawnX, spawnY int32
}

// ScriptRunner executes the interaction script named by a StaticObject's
// ScriptName. internal/scripting implements this over gopher-lua; tests use a
// stub.
type ScriptRunner interface {
	Run(scriptName string, ctx InteractContext) error
}

// InteractContext is the set of globals and callbacks the spec's Interact
// script hook names: packet, sender, players, call_type, plus the
// send/get_object/get_npc/get_extra_data callbacks.
type InteractContext struct {
	Packet   []byte
	SenderID ObjectID
	CallType string

	Players    func() []ObjectID
	Send       func(receiverID ObjectID, pkt []byte) error
	GetObject  func(id ObjectID) (StaticObject, bool)
	GetNPC     func(id ObjectID) (StaticObject, bool)
	GetExtraData func(id ObjectID) ([]byte, bool)
}

func NewMap(name string, spawnX, spawnY int32, static []StaticObject, scripts ScriptRunner, log *zap.Logger) *Map {
	return &Map{
		name:    name,
		pool:    ecs.NewEntityPool(),
		static:  static,
		scripts: scripts,
		spawnX:  spawnX,
		spawnY:  spawnY,
		log:     log,
	}
}

func (m *Map) Name() string { return m.name }

// liveRoster returns every still-alive sender and compacts out dead
// entries in the same pass, matching the teacher's swap-remove texture.
func (m *Map) liveRoster() []Sender {
	live := make([]Sender, 0, len(m.roster))
	kept := m.roster[:0]
	for _, e := range m.roster {
		if m.pool.Alive(e.id) {
			live = append(live, e.sender)
			kept = append(kept, e)
		}
	}
	m.roster = kept
	return live
}

// Broadcast sends pkt to every live roster member.
func (m *Map) Broadcast(pkt []byte) {
	for _, s := range m.liveRoster() {
		if err := s.Send(pkt); err != nil && m.log != nil {
			m.log.Debug("broadcast send failed", zap.Error(err))
		}
	}
}

// BroadcastExcept sends pkt to every live roster member other than
// exceptID (the relay shape used for movement/chat: "forward to all other
// players").
func (m *Map) BroadcastExcept(exceptID ObjectID, pkt []byte) {
	for _, s := range m.liveRoster() {
		if s.ObjectID() == exceptID {
			continue
		}
		if err := s.Send(pkt); err != nil && m.log != nil {
			m.log.Debug("broadcast send failed", zap.Error(err))
		}
	}
}
