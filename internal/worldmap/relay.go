package worldmap

import (
	"encoding/binary"
	"fmt"
)

// RelayMovement forwards a Movement packet verbatim to every other player
// on the map (spec §4.6).
func (m *Map) RelayMovement(senderID ObjectID, pkt []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BroadcastExcept(senderID, pkt)
}

// patchMovementEndZeroID is the codec quirk spec §4.6 requires the server
// normalize: MovementEnd carries a zero-id field that must be patched from
// a non-zero sibling field elsewhere in the same packet before relay.
// zeroOffset and siblingOffset are both 4-byte little-endian fields; the
// patch is a no-op if the sibling is itself zero (nothing to copy).
func patchMovementEndZeroID(pkt []byte, zeroOffset, siblingOffset int) []byte {
	if zeroOffset+4 > len(pkt) || siblingOffset+4 > len(pkt) {
		return pkt
	}
	if binary.LittleEndian.Uint32(pkt[zeroOffset:zeroOffset+4]) != 0 {
		return pkt
	}
	sibling := binary.LittleEndian.Uint32(pkt[siblingOffset : siblingOffset+4])
	if sibling == 0 {
		return pkt
	}
	patched := append([]byte(nil), pkt...)
	binary.LittleEndian.PutUint32(patched[zeroOffset:zeroOffset+4], sibling)
	return patched
}

// movementEndZeroOffset and movementEndSiblingOffset locate the quirky
// field pair within a MovementEnd packet: 2-byte opcode, 4-byte object id
// (often left zero by certain clients), 4-byte duplicate id immediately
// after that is reliably populated.
const (
	movementEndZeroOffset    = 2
	movementEndSiblingOffset = 6
)

// RelayMovementEnd applies the zero-id patch then forwards to every other
// player.
func (m *Map) RelayMovementEnd(senderID ObjectID, pkt []byte) {
	patched := patchMovementEndZeroID(pkt, movementEndZeroOffset, movementEndSiblingOffset)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BroadcastExcept(senderID, patched)
}

// RewriteFunc rewraps a MovementAction/ActionUpdate packet for one
// recipient, writing that recipient's id into the packet's receiver
// field. Supplied by the block runtime, which owns the concrete wire
// layout for these server-side variants.
type RewriteFunc func(pkt []byte, recipient ObjectID) []byte

// RelayMovementAction re-wraps and rewrites a MovementAction/ActionUpdate
// packet per recipient (spec §4.6: "rewritten per recipient so that the
// receiver field contains the recipient's player id").
func (m *Map) RelayMovementAction(senderID ObjectID, pkt []byte, rewrite RewriteFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.liveRoster() {
		if s.ObjectID() == senderID {
			continue
		}
		_ = s.Send(rewrite(pkt, s.ObjectID()))
	}
}

// RelayChat broadcasts ChatMessage/ReceiveSymbolArt, forwarding pkt
// unchanged. Channel selection is upstream of the map:
// ChannelMap broadcasts to this map, ChannelParty defers to party.
func (m *Map) RelayChat(senderID ObjectID, channel Channel, pkt []byte, party PartyBroadcaster) error {
	switch channel {
	case ChannelMap:
		m.mu.Lock()
		m.Broadcast(pkt)
		m.mu.Unlock()
		return nil
	case ChannelParty:
		if party == nil {
			return fmt.Errorf("worldmap: party channel selected but no party broadcaster available")
		}
		party.BroadcastFrom(senderID, pkt)
		return nil
	default:
		return fmt.Errorf("worldmap: unknown chat channel %d", channel)
	}
}

// Interact runs target's interaction script (spec §4.6). target may name
// either a static object or an NPC; both live in m.static. A target with
// no declared script name is handled via the engine's own
// default-synthesized script, selected by passing the empty string
// through unchanged — ScriptRunner implementations are responsible for
// synthesizing a no-op for "".
func (m *Map) Interact(senderID ObjectID, targetID ObjectID, verb string, send func(ObjectID, []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.findStatic(targetID)
	if !ok {
		return fmt.Errorf("worldmap: interact target %d not found", targetID)
	}
	if m.scripts == nil {
		return nil
	}

	ctx := InteractContext{
		Packet:   []byte(verb),
		SenderID: senderID,
		CallType: "interaction",
		Players:  func() []ObjectID { return m.objectIDs() },
		Send:     send,
		GetObject: func(id ObjectID) (StaticObject, bool) {
			return m.findStatic(id)
		},
		GetNPC: func(id ObjectID) (StaticObject, bool) {
			return m.findStatic(id)
		},
		GetExtraData: func(ObjectID) ([]byte, bool) { return nil, false },
	}
	return m.scripts.Run(target.ScriptName, ctx)
}
