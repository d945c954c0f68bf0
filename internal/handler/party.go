package handler

import (
	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/party"
	"github.com/shipcluster/server/internal/session"
)

// HandlePartyInvite processes a request to invite the named character
// into the sender's party (spec §4.7).
func HandlePartyInvite(sess *session.Session, r *packet.Reader, deps *Deps) {
	targetID := r.ReadD()

	inviter, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	invitee, ok := deps.Players.Get(targetID)
	if !ok {
		return
	}
	if err := deps.Parties.Invite(inviter, invitee); err != nil {
		deps.Log.Debug("party invite failed", zap.Error(err))
	}
}

// HandlePartyAccept processes the invitee's acceptance of a pending
// invite to partyID.
func HandlePartyAccept(sess *session.Session, r *packet.Reader, deps *Deps) {
	partyID := r.ReadD()

	invitee, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	if err := deps.Parties.Accept(invitee, partyID); err != nil {
		deps.Log.Debug("party accept failed", zap.Error(err))
	}
}

// HandlePartyLeave removes the sender from its current party.
func HandlePartyLeave(sess *session.Session, r *packet.Reader, deps *Deps) {
	deps.Parties.Leave(sess.CharacterID)
}

// HandlePartyKick processes a leader's request to remove a member.
func HandlePartyKick(sess *session.Session, r *packet.Reader, deps *Deps) {
	targetID := r.ReadD()
	if err := deps.Parties.Kick(sess.CharacterID, targetID); err != nil {
		deps.Log.Debug("party kick failed", zap.Error(err))
	}
}

// HandlePartyDisband processes a leader's request to disband the party.
func HandlePartyDisband(sess *session.Session, r *packet.Reader, deps *Deps) {
	if err := deps.Parties.Disband(sess.CharacterID); err != nil {
		deps.Log.Debug("party disband failed", zap.Error(err))
	}
}

// HandlePartySetLeader transfers leadership to a new member.
func HandlePartySetLeader(sess *session.Session, r *packet.Reader, deps *Deps) {
	newLeaderID := r.ReadD()
	if err := deps.Parties.SetLeader(sess.CharacterID, newLeaderID); err != nil {
		deps.Log.Debug("party set leader failed", zap.Error(err))
	}
}

// HandlePartySettings applies the leader's updated loot/chat mode.
func HandlePartySettings(sess *session.Session, r *packet.Reader, deps *Deps) {
	mode := r.ReadC()
	if err := deps.Parties.UpdateSettings(sess.CharacterID, party.Settings{Mode: mode}); err != nil {
		deps.Log.Debug("party settings update failed", zap.Error(err))
	}
}

// HandlePartyBusy toggles the sender's busy flag fanned out to its party.
func HandlePartyBusy(sess *session.Session, r *packet.Reader, deps *Deps) {
	busy := r.ReadC() != 0
	deps.Parties.BusyStatus(sess.CharacterID, busy)
}
