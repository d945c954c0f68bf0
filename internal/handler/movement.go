package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/session"
	"github.com/shipcluster/server/internal/worldmap"
)

// HandleMovement relays a raw movement packet to everyone else on the
// sender's current map (spec §4.6).
func HandleMovement(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	deps.Lobby.RelayMovement(p.ObjectID(), r.ReadBytes(r.Remaining()))
}

// HandleMovementEnd relays a MovementEnd packet after the zero-id patch.
func HandleMovementEnd(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	deps.Lobby.RelayMovementEnd(p.ObjectID(), r.ReadBytes(r.Remaining()))
}

// HandleChat relays a chat message on the channel selected by the
// client: map-wide or party-only (spec §4.6).
func HandleChat(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	channel := worldmap.Channel(r.ReadC())
	pkt := r.ReadBytes(r.Remaining())
	if err := deps.Lobby.RelayChat(p.ObjectID(), channel, pkt, deps.Parties); err != nil {
		deps.Log.Debug("chat relay failed")
	}
}

// HandleSymbolArt relays a ReceiveSymbolArt packet the same way chat is
// relayed, per spec §4.6.
func HandleSymbolArt(sess *session.Session, r *packet.Reader, deps *Deps) {
	HandleChat(sess, r, deps)
}

// HandleSymbolArtUpload saves a symbol art to the account's library so it
// can be selected by uuid from future ReceiveSymbolArt sends, rather than
// retransmitted in full each time (spec §4.6's symbol art library).
func HandleSymbolArtUpload(sess *session.Session, r *packet.Reader, deps *Deps) {
	uuid := r.ReadS()
	name := r.ReadS()
	data := r.ReadBytes(r.Remaining())

	ctx, cancel := context.WithTimeout(context.Background(), masterCallTimeout)
	defer cancel()

	if err := deps.SymbolArts.Put(ctx, uuid, name, data); err != nil {
		deps.Log.Warn("symbol art upload failed", zap.String("uuid", uuid), zap.Error(err))
		return
	}
	if err := deps.Users.AddSymbolArt(ctx, sess.PlayerID, uuid); err != nil {
		deps.Log.Warn("symbol art library link failed", zap.String("uuid", uuid), zap.Error(err))
	}
}
