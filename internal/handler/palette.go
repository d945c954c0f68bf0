package handler

import (
	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/session"
)

// HandleSetPalette changes the player's selected weapon-palette slot,
// re-equipping the newly selected weapon (spec §4.10).
func HandleSetPalette(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	index := r.ReadC()
	pkt, err := p.Pal.SetPalette(index)
	if err != nil {
		deps.Log.Debug("set palette failed", zap.Error(err))
		return
	}
	_ = p.Send(pkt)
}

// HandleUpdatePalette replaces all six weapon-palette slots in one
// operation.
func HandleUpdatePalette(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	var slots [6]uint64
	for i := range slots {
		slots[i] = r.ReadQ()
	}
	pkt, err := p.Pal.UpdatePalette(slots)
	if err != nil {
		deps.Log.Debug("update palette failed", zap.Error(err))
		return
	}
	_ = p.Send(pkt)
}
