// Package party implements the party manager (spec §4.7): invite/accept,
// roster maintenance with leader re-keying, kick/disband/leave, busy/chat
// status fan-out, and quest-map binding. Grounded directly on the
// teacher's internal/world/party.go (PartyManager, map-keyed-by-leader-id,
// leader re-keying on transfer, pendingInvites) and internal/handler/party.go
// (the packet fan-out sequencing a mutation triggers), generalized from the
// teacher's single-goroutine map-based manager to the one
// sync.RWMutex-protected struct spec §5's concurrency model calls for
// (multiple connection goroutines may invite/accept/kick concurrently,
// there is no single game-loop goroutine owning this state).
package party

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/core/ecs"
	"github.com/shipcluster/server/internal/session"
	"github.com/shipcluster/server/internal/worldmap"
)

// MaxPartySize is the spec's "≤4 check" — lower than the teacher's
// 8-member L1J party, since this spec's add_player caps at four.
const MaxPartySize = 4

// MemberInfo is one roster entry's client-visible identity: class,
// sublevels, nickname, and current map, per spec §4.7's roster-init
// packet ("each member's current character identity").
type MemberInfo struct {
	CharacterID uint32
	Nickname    string
	Class       uint8
	Sublevels   [3]uint8
	MapID       uint32
}

// Settings is the party's shared configuration (loot/chat mode, etc.),
// opaque to the manager beyond storing and re-broadcasting it on change.
type Settings struct {
	Mode uint8
}

// QuestMap is the quest package's instantiated per-party map (spec §4.9),
// kept opaque here to avoid a dependency from party on quest.
type QuestMap interface {
	MapObjectID() uint32
}

// Member is the manager's view of one connected, party-eligible player.
// Implemented by an adapter over *session.Session in the block runtime,
// keeping this package free of any dependency beyond session's neutral
// PartyInvite weak-reference type.
type Member interface {
	CharacterID() uint32
	Info() MemberInfo
	PartyIgnore() bool
	Send(pkt []byte) error
	AddInvite(inv session.PartyInvite) (added bool)
	TakeInvite(partyID uint32) (session.PartyInvite, bool)
}

// PacketBuilder constructs every wire packet a party mutation fans out.
// Supplied by the block runtime, which owns the concrete per-platform
// encoding, exactly as worldmap.PacketBuilder keeps map broadcast free of
// wire format.
type PacketBuilder interface {
	NewInvite(partyID uint32, inviterNickname string) []byte
	PartyInviteResult(inviteeNickname string, accepted bool) []byte
	AddMember(m MemberInfo) []byte
	PartyInit(roster []MemberInfo) []byte
	PartySettings(s Settings) []byte
	PartyColor(color uint8) []byte
	PartySetupFinish() []byte
	LeaderChanged(newLeaderID uint32) []byte
	SettingsChanged(s Settings) []byte
	KickedMember(kickedID uint32) []byte
	PartyDisbandedMarker() []byte
	PartyMemberLeft(leftID uint32) []byte
	BusyStatus(senderID uint32, busy bool) []byte
	SetPartyQuest(questMapObjID uint32) []byte
	SetQuestInfo(questMapObjID uint32) []byte
}

// party is one party's mutable state. id is re-keyed to the new leader's
// character id on every leadership transfer, matching the teacher's
// map-keyed-by-leader-id scheme (internal/world/party.go's SetLeader).
type party struct {
	id       uint32
	ref      ecs.EntityID
	leaderID uint32
	members  []uint32
	color    uint8
	settings Settings
	quest    QuestMap
}

// Manager owns every party, the character→party index, the registry of
// currently-reachable members, and the weak-reference pool backing
// session.PartyInvite's PartyRef field.
type Manager struct {
	mu          sync.RWMutex
	parties     map[uint32]*party
	memberParty map[uint32]uint32
	registry    map[uint32]Member
	pool        *ecs.EntityPool
	builder     PacketBuilder
	log         *zap.Logger
}

func NewManager(builder PacketBuilder, log *zap.Logger) *Manager {
	return &Manager{
		parties:     make(map[uint32]*party),
		memberParty: make(map[uint32]uint32),
		registry:    make(map[uint32]Member),
		pool:        ecs.NewEntityPool(),
		builder:     builder,
		log:         log,
	}
}

// InitPlayer takes m out of any previous party and places it in a fresh
// singleton (spec §4.7: "Parties are created by init_player...").
func (mgr *Manager) InitPlayer(m Member) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	id := m.CharacterID()
	mgr.registry[id] = m
	mgr.leaveLocked(id)
	mgr.createSingletonLocked(id)
}

// Forget drops a disconnected member from the registry without altering
// party membership bookkeeping (the party mutation path, e.g. Leave, is
// expected to run first on graceful disconnect; this only prevents stale
// sends to a connection that is already gone).
func (mgr *Manager) Forget(characterID uint32) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	delete(mgr.registry, characterID)
}

// PartyOf reports the party id a character currently belongs to.
func (mgr *Manager) PartyOf(characterID uint32) (partyID uint32, ok bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	id, ok := mgr.memberParty[characterID]
	return id, ok
}

func (mgr *Manager) createSingletonLocked(id uint32) {
	ref := mgr.pool.Create()
	mgr.parties[id] = &party{id: id, ref: ref, leaderID: id, members: []uint32{id}}
	mgr.memberParty[id] = id
}

// leaveLocked removes id from whatever party it is in, re-keying to the
// next member on a leader departure and dissolving the entity ref once
// the party is empty. Callers decide separately whether id itself gets a
// fresh singleton afterward.
func (mgr *Manager) leaveLocked(id uint32) {
	pid, ok := mgr.memberParty[id]
	if !ok {
		return
	}
	delete(mgr.memberParty, id)

	p := mgr.parties[pid]
	if p == nil {
		return
	}
	idx := -1
	for i, mid := range p.members {
		if mid == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	wasLeader := p.leaderID == id
	p.members = append(p.members[:idx], p.members[idx+1:]...)

	if len(p.members) == 0 {
		mgr.pool.Destroy(p.ref)
		delete(mgr.parties, p.id)
		return
	}

	mgr.fanoutLocked(p, mgr.builder.PartyMemberLeft(id))

	if wasLeader {
		mgr.rekeyLocked(p, p.members[0])
		mgr.fanoutLocked(p, mgr.builder.LeaderChanged(p.members[0]))
	}
}

// rekeyLocked re-registers p under newLeaderID, matching the teacher's
// SetLeader (delete old key, mutate, re-insert under the new key).
func (mgr *Manager) rekeyLocked(p *party, newLeaderID uint32) {
	delete(mgr.parties, p.id)
	p.id = newLeaderID
	p.leaderID = newLeaderID
	mgr.parties[newLeaderID] = p
	for _, mid := range p.members {
		mgr.memberParty[mid] = newLeaderID
	}
}

func (mgr *Manager) fanoutLocked(p *party, pkt []byte) {
	for _, mid := range p.members {
		if mem, ok := mgr.registry[mid]; ok {
			_ = mem.Send(pkt)
		}
	}
}

func (mgr *Manager) fanoutExceptLocked(p *party, exceptID uint32, pkt []byte) {
	for _, mid := range p.members {
		if mid == exceptID {
			continue
		}
		if mem, ok := mgr.registry[mid]; ok {
			_ = mem.Send(pkt)
		}
	}
}

// Invite sends a NewInvite to invitee on inviter's behalf (spec §4.7).
// Silently rejected if invitee's party_ignore is set, or if they already
// hold an invite to this party (session.AddInvite's idempotence).
func (mgr *Manager) Invite(inviter, invitee Member) error {
	mgr.mu.RLock()
	pid, ok := mgr.memberParty[inviter.CharacterID()]
	p := mgr.parties[pid]
	mgr.mu.RUnlock()
	if !ok || p == nil {
		return fmt.Errorf("party: inviter %d has no party", inviter.CharacterID())
	}

	if invitee.PartyIgnore() {
		return nil
	}

	inv := session.PartyInvite{PartyID: p.id, PartyRef: p.ref, InvitedAt: time.Now()}
	if !invitee.AddInvite(inv) {
		return nil
	}

	_ = invitee.Send(mgr.builder.NewInvite(p.id, inviter.Info().Nickname))
	_ = inviter.Send(mgr.builder.PartyInviteResult(invitee.Info().Nickname, true))
	return nil
}

// Accept locates invitee's invite for partyID, leaves its current
// (singleton) party, and joins the invited party. A stale weak reference
// (party disbanded since the invite was issued) makes this a silent
// no-op, per spec §4.7.
func (mgr *Manager) Accept(invitee Member, partyID uint32) error {
	inv, ok := invitee.TakeInvite(partyID)
	if !ok {
		return nil
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	p := mgr.parties[partyID]
	if p == nil || !mgr.pool.Alive(inv.PartyRef) {
		return nil
	}

	mgr.leaveLocked(invitee.CharacterID())
	mgr.addMemberLocked(p, invitee)
	return nil
}

// addMemberLocked implements spec §4.7's add_player: enforces the
// four-member cap, builds the roster-init sequence, and stamps the new
// member onto everyone's view.
func (mgr *Manager) addMemberLocked(p *party, newMember Member) bool {
	if len(p.members) >= MaxPartySize {
		return false
	}

	p.members = append(p.members, newMember.CharacterID())
	mgr.memberParty[newMember.CharacterID()] = p.id

	roster := make([]MemberInfo, 0, len(p.members))
	for _, mid := range p.members {
		if mem, ok := mgr.registry[mid]; ok {
			roster = append(roster, mem.Info())
		}
	}

	mgr.fanoutExceptLocked(p, newMember.CharacterID(), mgr.builder.AddMember(newMember.Info()))

	_ = newMember.Send(mgr.builder.PartyInit(roster))
	_ = newMember.Send(mgr.builder.PartySettings(p.settings))
	_ = newMember.Send(mgr.builder.PartyColor(p.color))
	_ = newMember.Send(mgr.builder.PartySetupFinish())

	mgr.fanoutLocked(p, mgr.builder.PartyColor(p.color))
	return true
}

// Leave removes characterID from its current party (fanning out
// PartyMemberLeft and, if the leader left, LeaderChanged) and re-singles
// it into a fresh party of its own.
func (mgr *Manager) Leave(characterID uint32) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.leaveLocked(characterID)
	mgr.createSingletonLocked(characterID)
}

// Kick removes targetID from kickerID's party; kickerID must be the
// current leader. KickedMember is sent to the target before removal, per
// spec §4.7.
func (mgr *Manager) Kick(kickerID, targetID uint32) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	pid, ok := mgr.memberParty[kickerID]
	p := mgr.parties[pid]
	if !ok || p == nil || p.leaderID != kickerID {
		return fmt.Errorf("party: %d is not a party leader", kickerID)
	}
	if mgr.memberParty[targetID] != pid {
		return fmt.Errorf("party: %d is not a member of %d's party", targetID, pid)
	}

	if mem, ok := mgr.registry[targetID]; ok {
		_ = mem.Send(mgr.builder.KickedMember(targetID))
	}
	mgr.leaveLocked(targetID)
	mgr.createSingletonLocked(targetID)
	return nil
}

// Disband dissolves leaderID's party entirely: every member receives
// PartyDisbandedMarker, then is re-initialized as a new singleton.
func (mgr *Manager) Disband(leaderID uint32) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	pid, ok := mgr.memberParty[leaderID]
	p := mgr.parties[pid]
	if !ok || p == nil || p.leaderID != leaderID {
		return fmt.Errorf("party: %d is not a party leader", leaderID)
	}

	members := append([]uint32(nil), p.members...)
	mgr.pool.Destroy(p.ref)
	delete(mgr.parties, p.id)
	for _, mid := range members {
		delete(mgr.memberParty, mid)
	}

	marker := mgr.builder.PartyDisbandedMarker()
	for _, mid := range members {
		if mem, ok := mgr.registry[mid]; ok {
			_ = mem.Send(marker)
		}
	}
	for _, mid := range members {
		mgr.createSingletonLocked(mid)
	}
	return nil
}

// SetLeader transfers leadership within currentLeaderID's party.
func (mgr *Manager) SetLeader(currentLeaderID, newLeaderID uint32) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	pid, ok := mgr.memberParty[currentLeaderID]
	p := mgr.parties[pid]
	if !ok || p == nil || p.leaderID != currentLeaderID {
		return fmt.Errorf("party: %d is not a party leader", currentLeaderID)
	}
	found := false
	for _, mid := range p.members {
		if mid == newLeaderID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("party: %d is not a member of %d's party", newLeaderID, pid)
	}

	mgr.rekeyLocked(p, newLeaderID)
	mgr.fanoutLocked(p, mgr.builder.LeaderChanged(newLeaderID))
	return nil
}

// UpdateSettings changes leaderID's party settings and fans out the
// result.
func (mgr *Manager) UpdateSettings(leaderID uint32, s Settings) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	pid, ok := mgr.memberParty[leaderID]
	p := mgr.parties[pid]
	if !ok || p == nil || p.leaderID != leaderID {
		return fmt.Errorf("party: %d is not a party leader", leaderID)
	}
	p.settings = s
	mgr.fanoutLocked(p, mgr.builder.SettingsChanged(s))
	return nil
}

// BusyStatus fans senderID's busy/available state out to the rest of its
// party, stamped with the sender id (spec §4.7).
func (mgr *Manager) BusyStatus(senderID uint32, busy bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	pid, ok := mgr.memberParty[senderID]
	p := mgr.parties[pid]
	if !ok || p == nil {
		return
	}
	mgr.fanoutExceptLocked(p, senderID, mgr.builder.BusyStatus(senderID, busy))
}

// BroadcastFrom implements worldmap.PartyBroadcaster: relays a chat
// packet verbatim to every other member of senderObjID's party (spec
// §4.6/§4.7, party chat channel). Player object ids and character ids
// share the same identity space, so the cast is exact.
func (mgr *Manager) BroadcastFrom(senderObjID worldmap.ObjectID, pkt []byte) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	senderID := uint32(senderObjID)
	pid, ok := mgr.memberParty[senderID]
	p := mgr.parties[pid]
	if !ok || p == nil {
		return
	}
	mgr.fanoutExceptLocked(p, senderID, pkt)
}

// BindQuest instantiates quest as memberID's party's quest map (spec
// §4.9 binding): every member gets SetPartyQuest+SetQuestInfo, and for an
// instant-transfer quest, transfer is invoked to move the accepting
// player into the quest map immediately.
func (mgr *Manager) BindQuest(memberID uint32, quest QuestMap, instantTransfer bool, transfer func(characterID uint32, questMapObjID uint32) error) error {
	mgr.mu.Lock()
	pid, ok := mgr.memberParty[memberID]
	p := mgr.parties[pid]
	if !ok || p == nil {
		mgr.mu.Unlock()
		return fmt.Errorf("party: %d has no party", memberID)
	}
	p.quest = quest
	mgr.fanoutLocked(p, mgr.builder.SetPartyQuest(quest.MapObjectID()))
	mgr.fanoutLocked(p, mgr.builder.SetQuestInfo(quest.MapObjectID()))
	mgr.mu.Unlock()

	if instantTransfer && transfer != nil {
		return transfer(memberID, quest.MapObjectID())
	}
	return nil
}
