// Package handler wires the opcode-tagged block protocol to the gameplay
// packages (party, inventory, quest, palette, worldmap): one HandleX
// function per opcode, registered against a packet.Registry by RegisterAll.
// This generalizes the teacher's internal/handler package (one file per
// opcode family, a shared *Deps passed to every handler) from its
// L1J-specific systems to this spec's in-block subsystems.
package handler

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/inventory"
	"github.com/shipcluster/server/internal/palette"
	"github.com/shipcluster/server/internal/party"
	"github.com/shipcluster/server/internal/quest"
	"github.com/shipcluster/server/internal/session"
	"github.com/shipcluster/server/internal/worldmap"
)

// Player is one connected character's gameplay state, binding the
// connection-level session.Session to the subsystems that own its
// persistent data. It implements worldmap.Sender and party.Member so the
// map and party managers can address it without depending on this package.
type Player struct {
	Sess *session.Session

	objID worldmap.ObjectID
	Inv   *inventory.Account
	Pal   *palette.Set

	// Unlocks is this character's cleared-quest ledger, read by
	// quest.Catalog.AvailableQuests/ByCategory/ByDifficulty to filter the
	// quest list down to what the character may actually start.
	Unlocks quest.UnlockSet

	mu          sync.RWMutex
	nickname    string
	class       uint8
	sublevels   [3]uint8
	mapID       uint32
	partyIgnore bool
}

func NewPlayer(sess *session.Session, objID worldmap.ObjectID, acc *inventory.Account, pal *palette.Set) *Player {
	return &Player{Sess: sess, objID: objID, Inv: acc, Pal: pal, Unlocks: make(quest.UnlockSet)}
}

// --- worldmap.Sender ---

func (p *Player) ObjectID() worldmap.ObjectID { return p.objID }

func (p *Player) Send(pkt []byte) error {
	return writeFrame(p.Sess, pkt)
}

// --- party.Member ---

func (p *Player) CharacterID() uint32 { return p.Sess.CharacterID }

func (p *Player) Info() party.MemberInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return party.MemberInfo{
		CharacterID: p.Sess.CharacterID,
		Nickname:    p.nickname,
		Class:       p.class,
		Sublevels:   p.sublevels,
		MapID:       p.mapID,
	}
}

func (p *Player) PartyIgnore() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.partyIgnore
}

func (p *Player) SetPartyIgnore(ignore bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.partyIgnore = ignore
}

func (p *Player) SetIdentity(nickname string, class uint8, sublevels [3]uint8, mapID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nickname, p.class, p.sublevels, p.mapID = nickname, class, sublevels, mapID
}

func (p *Player) AddInvite(inv session.PartyInvite) (added bool) {
	return p.Sess.AddInvite(inv)
}

func (p *Player) TakeInvite(partyID uint32) (session.PartyInvite, bool) {
	return p.Sess.TakeInvite(partyID)
}

// MarshalData serializes the character-identity fields persisted
// alongside inventory/palette/flags in shippersist.CharacterRepo's data
// column: nickname, class, sublevels, and current map id.
func (p *Player) MarshalData() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return marshalPlayerData(p.nickname, p.class, p.sublevels, p.mapID)
}

// NewCharacterData builds the data blob for a freshly rolled character
// that has no mapID/sublevels yet (spec §8.1's "create new character"
// path).
func NewCharacterData(nickname string, class uint8) []byte {
	return marshalPlayerData(nickname, class, [3]uint8{}, 0)
}

func marshalPlayerData(nickname string, class uint8, sublevels [3]uint8, mapID uint32) []byte {
	var buf bytes.Buffer
	writeString(&buf, nickname)
	buf.WriteByte(class)
	buf.Write(sublevels[:])
	binary.Write(&buf, binary.LittleEndian, mapID)
	return buf.Bytes()
}

// LoadPlayerData decodes a blob produced by MarshalData/NewCharacterData.
func LoadPlayerData(data []byte) (nickname string, class uint8, sublevels [3]uint8, mapID uint32, err error) {
	r := bytes.NewReader(data)
	if nickname, err = readString(r); err != nil {
		return "", 0, sublevels, 0, fmt.Errorf("handler: read nickname: %w", err)
	}
	if class, err = r.ReadByte(); err != nil {
		return "", 0, sublevels, 0, fmt.Errorf("handler: read class: %w", err)
	}
	if _, err = io.ReadFull(r, sublevels[:]); err != nil {
		return "", 0, [3]uint8{}, 0, fmt.Errorf("handler: read sublevels: %w", err)
	}
	if err = binary.Read(r, binary.LittleEndian, &mapID); err != nil {
		return "", 0, sublevels, 0, fmt.Errorf("handler: read map id: %w", err)
	}
	return nickname, class, sublevels, mapID, nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Registry is the set of connected Players keyed by character id, giving
// handlers a way to resolve "the player behind this character id" for
// operations (party fan-out membership, map roster lookups) that the
// session alone cannot answer. One mutex covers the whole map, matching
// the single-mutex-per-manager texture used throughout this module.
type Registry struct {
	mu      sync.RWMutex
	players map[uint32]*Player
	log     *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{players: make(map[uint32]*Player), log: log}
}

func (r *Registry) Put(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.CharacterID()] = p
}

func (r *Registry) Remove(characterID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, characterID)
}

func (r *Registry) Get(characterID uint32) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[characterID]
	return p, ok
}
