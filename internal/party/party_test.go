package party

import (
	"testing"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/session"
	"github.com/shipcluster/server/internal/worldmap"
)

type fakeMember struct {
	id      uint32
	ignore  bool
	invites []session.PartyInvite
	out     [][]byte
}

func (f *fakeMember) CharacterID() uint32 { return f.id }
func (f *fakeMember) Info() MemberInfo    { return MemberInfo{CharacterID: f.id, Nickname: "p"} }
func (f *fakeMember) PartyIgnore() bool   { return f.ignore }
func (f *fakeMember) Send(pkt []byte) error {
	f.out = append(f.out, append([]byte(nil), pkt...))
	return nil
}
func (f *fakeMember) AddInvite(inv session.PartyInvite) bool {
	for _, existing := range f.invites {
		if existing.PartyID == inv.PartyID {
			return false
		}
	}
	f.invites = append(f.invites, inv)
	return true
}
func (f *fakeMember) TakeInvite(partyID uint32) (session.PartyInvite, bool) {
	for i, inv := range f.invites {
		if inv.PartyID == partyID {
			f.invites = append(f.invites[:i], f.invites[i+1:]...)
			return inv, true
		}
	}
	return session.PartyInvite{}, false
}

func (f *fakeMember) has(pkt string) bool {
	for _, p := range f.out {
		if string(p) == pkt {
			return true
		}
	}
	return false
}

type fakeBuilder struct{}

func (fakeBuilder) NewInvite(partyID uint32, inviterNickname string) []byte { return []byte("new-invite") }
func (fakeBuilder) PartyInviteResult(inviteeNickname string, accepted bool) []byte {
	return []byte("invite-result")
}
func (fakeBuilder) AddMember(m MemberInfo) []byte          { return []byte("add-member") }
func (fakeBuilder) PartyInit(roster []MemberInfo) []byte   { return []byte("party-init") }
func (fakeBuilder) PartySettings(s Settings) []byte        { return []byte("party-settings") }
func (fakeBuilder) PartyColor(color uint8) []byte          { return []byte("party-color") }
func (fakeBuilder) PartySetupFinish() []byte                { return []byte("setup-finish") }
func (fakeBuilder) LeaderChanged(newLeaderID uint32) []byte { return []byte("leader-changed") }
func (fakeBuilder) SettingsChanged(s Settings) []byte       { return []byte("settings-changed") }
func (fakeBuilder) KickedMember(id uint32) []byte           { return []byte("kicked") }
func (fakeBuilder) PartyDisbandedMarker() []byte            { return []byte("disbanded") }
func (fakeBuilder) PartyMemberLeft(id uint32) []byte        { return []byte("member-left") }
func (fakeBuilder) BusyStatus(senderID uint32, busy bool) []byte { return []byte("busy") }
func (fakeBuilder) SetPartyQuest(mapObjID uint32) []byte    { return []byte("set-party-quest") }
func (fakeBuilder) SetQuestInfo(mapObjID uint32) []byte     { return []byte("set-quest-info") }

func newTestManager() *Manager {
	return NewManager(fakeBuilder{}, zap.NewNop())
}

func TestInitPlayerCreatesSingleton(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	mgr.InitPlayer(a)

	pid, ok := mgr.PartyOf(1)
	if !ok || pid != 1 {
		t.Fatalf("expected character 1 to be its own party, got pid=%d ok=%v", pid, ok)
	}
}

func TestInviteRejectedSilentlyWhenIgnored(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	b := &fakeMember{id: 2, ignore: true}
	mgr.InitPlayer(a)
	mgr.InitPlayer(b)

	if err := mgr.Invite(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.invites) != 0 {
		t.Fatalf("expected no invite recorded when invitee ignores")
	}
	if len(b.out) != 0 {
		t.Fatalf("expected no packet sent to an ignoring invitee")
	}
}

func TestInviteIdempotentDuplicate(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	b := &fakeMember{id: 2}
	mgr.InitPlayer(a)
	mgr.InitPlayer(b)

	if err := mgr.Invite(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstCount := len(b.out)
	if err := mgr.Invite(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.out) != firstCount {
		t.Fatalf("expected duplicate invite to be a silent no-op, got %d new packets", len(b.out)-firstCount)
	}
}

func TestAcceptJoinsPartyAndFirstJoinerIsLeader(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	b := &fakeMember{id: 2}
	mgr.InitPlayer(a)
	mgr.InitPlayer(b)

	if err := mgr.Invite(a, b); err != nil {
		t.Fatalf("invite: %v", err)
	}
	partyID, _ := mgr.PartyOf(1)
	if err := mgr.Accept(b, partyID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	pidA, _ := mgr.PartyOf(1)
	pidB, _ := mgr.PartyOf(2)
	if pidA != pidB {
		t.Fatalf("expected both members in the same party, got %d and %d", pidA, pidB)
	}
	if !b.has("party-init") {
		t.Fatalf("expected new member to receive PartyInit")
	}
	if !a.has("add-member") {
		t.Fatalf("expected existing member to receive AddMember")
	}
}

func TestAcceptSilentNoOpWhenPartyGone(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	b := &fakeMember{id: 2}
	mgr.InitPlayer(a)
	mgr.InitPlayer(b)

	if err := mgr.Invite(a, b); err != nil {
		t.Fatalf("invite: %v", err)
	}
	// a's (still singleton) party dissolves before b ever accepts: a
	// leaves and is re-singletoned under the same id, which destroys the
	// original party's entity ref since it had no other members.
	mgr.Leave(1)

	if err := mgr.Accept(b, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pidB, _ := mgr.PartyOf(2)
	if pidB != 2 {
		t.Fatalf("expected b to remain in its own singleton after a stale accept, got %d", pidB)
	}
}

func TestAddMemberRespectsCap(t *testing.T) {
	mgr := newTestManager()
	members := make([]*fakeMember, 5)
	for i := range members {
		members[i] = &fakeMember{id: uint32(i + 1)}
		mgr.InitPlayer(members[i])
	}

	leaderPartyID := uint32(1)
	for i := 1; i < 4; i++ {
		if err := mgr.Invite(members[0], members[i]); err != nil {
			t.Fatalf("invite: %v", err)
		}
		if err := mgr.Accept(members[i], leaderPartyID); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}
	// Party is now full (4 members). A 5th join attempt must not succeed.
	if err := mgr.Invite(members[0], members[4]); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := mgr.Accept(members[4], leaderPartyID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	pid5, _ := mgr.PartyOf(5)
	if pid5 == leaderPartyID {
		t.Fatalf("expected the 5th member to be rejected by the four-member cap")
	}
}

func TestKickRequiresLeader(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	b := &fakeMember{id: 2}
	c := &fakeMember{id: 3}
	mgr.InitPlayer(a)
	mgr.InitPlayer(b)
	mgr.InitPlayer(c)
	_ = mgr.Invite(a, b)
	_ = mgr.Accept(b, 1)

	if err := mgr.Kick(2, 1); err == nil {
		t.Fatalf("expected non-leader kick to fail")
	}
	if err := mgr.Kick(1, 2); err != nil {
		t.Fatalf("expected leader kick to succeed: %v", err)
	}
	if !b.has("kicked") {
		t.Fatalf("expected kicked member to receive KickedMember")
	}
	pidB, _ := mgr.PartyOf(2)
	if pidB != 2 {
		t.Fatalf("expected kicked member to be re-singletoned, got party %d", pidB)
	}
}

func TestLeaveTransfersLeadershipToNextMember(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	b := &fakeMember{id: 2}
	mgr.InitPlayer(a)
	mgr.InitPlayer(b)
	_ = mgr.Invite(a, b)
	_ = mgr.Accept(b, 1)

	mgr.Leave(1)

	pidB, _ := mgr.PartyOf(2)
	if pidB != 2 {
		t.Fatalf("expected leadership to transfer to member 2 (re-keyed under its own id), got %d", pidB)
	}
	if !b.has("leader-changed") {
		t.Fatalf("expected remaining member to be notified of the leadership change")
	}
}

func TestDisbandSendsMarkerThenResingletonsEveryone(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	b := &fakeMember{id: 2}
	mgr.InitPlayer(a)
	mgr.InitPlayer(b)
	_ = mgr.Invite(a, b)
	_ = mgr.Accept(b, 1)

	if err := mgr.Disband(1); err != nil {
		t.Fatalf("disband: %v", err)
	}
	if !b.has("disbanded") {
		t.Fatalf("expected member to receive PartyDisbandedMarker")
	}
	pidA, _ := mgr.PartyOf(1)
	pidB, _ := mgr.PartyOf(2)
	if pidA != 1 || pidB != 2 {
		t.Fatalf("expected both members re-singletoned after disband, got %d and %d", pidA, pidB)
	}
}

func TestBroadcastFromImplementsWorldmapPartyBroadcaster(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	b := &fakeMember{id: 2}
	mgr.InitPlayer(a)
	mgr.InitPlayer(b)
	_ = mgr.Invite(a, b)
	_ = mgr.Accept(b, 1)

	var _ worldmap.PartyBroadcaster = mgr

	a.out, b.out = nil, nil
	mgr.BroadcastFrom(worldmap.ObjectID(1), []byte("hi"))

	if len(a.out) != 0 {
		t.Fatalf("sender should not receive its own party chat relay")
	}
	if len(b.out) != 1 || string(b.out[0]) != "hi" {
		t.Fatalf("expected other party member to receive the chat packet verbatim")
	}
}

func TestBindQuestInstantTransferInvokesCallback(t *testing.T) {
	mgr := newTestManager()
	a := &fakeMember{id: 1}
	mgr.InitPlayer(a)

	var transferred uint32
	q := fakeQuestMap{id: 42}
	if err := mgr.BindQuest(1, q, true, func(characterID uint32, questMapObjID uint32) error {
		transferred = questMapObjID
		return nil
	}); err != nil {
		t.Fatalf("bind quest: %v", err)
	}
	if transferred != 42 {
		t.Fatalf("expected instant-transfer callback invoked with map id 42, got %d", transferred)
	}
	if !a.has("set-party-quest") || !a.has("set-quest-info") {
		t.Fatalf("expected member to receive SetPartyQuest and SetQuestInfo")
	}
}

type fakeQuestMap struct{ id uint32 }

func (f fakeQuestMap) MapObjectID() uint32 { return f.id }
