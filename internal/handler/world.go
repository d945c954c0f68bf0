package handler

import (
	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/session"
)

// HandleEnterWorld answers the client's request to enter the lobby map
// after character select (spec §4.6's add-player sequence). The Player
// itself was already built by HandleStartGame when the session advanced
// to StatePreInGame; this handler only has to exist because a worldmap
// add only makes sense once the client has finished loading and is ready
// to receive the initial spawn burst.
func HandleEnterWorld(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		deps.Log.Warn("enter world: no loaded player for character", zap.Uint32("character_id", sess.CharacterID))
		return
	}
	deps.Parties.InitPlayer(p)

	isVita := sess.PacketType == session.PacketTypeVita
	deps.Lobby.AddPlayer(p, builder, isVita)
	sess.SetState(packet.StateInGame)
}

// HandleDisconnect tears a departed character out of the world it was in
// and out of the player registry. It is driven by the block runtime's
// PlayerDisconnected event rather than a client packet, so it takes a bare
// character id instead of a *session.Session.
func HandleDisconnect(characterID uint32, deps *Deps) {
	if characterID == 0 {
		return
	}
	p, ok := deps.Players.Get(characterID)
	if !ok {
		return
	}
	deps.Lobby.RemovePlayer(p, builder)
	deps.Parties.Leave(characterID)
	deps.Parties.Forget(characterID)
	deps.Players.Remove(characterID)
}
