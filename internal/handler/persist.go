package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/inventory"
	"github.com/shipcluster/server/internal/masterproto"
	"github.com/shipcluster/server/internal/session"
)

// Persister builds the block runtime's SessionPersister callback out of
// the ship's shared Deps: it writes the loaded Player's data/inventory/palette blobs
// back to the ship-local character row, pushes the account's three
// master-side storage tiers and uuid high-water mark, and forgets nothing
// below StatePreInGame since no character has been loaded yet to flush.
type Persister struct {
	deps *Deps
}

func NewPersister(deps *Deps) *Persister {
	return &Persister{deps: deps}
}

// Flush matches block.SessionPersister's signature so cmd/ship can pass
// p.Flush directly to Block.SetSessionPersister.
func (p *Persister) Flush(sess *session.Session) {
	if sess.CharacterID == 0 {
		return
	}
	player, ok := p.deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), masterCallTimeout)
	defer cancel()

	log := p.deps.Log.With(zap.Uint32("character_id", sess.CharacterID))

	if err := p.deps.Characters.PutData(ctx, sess.CharacterID, player.MarshalData()); err != nil {
		log.Warn("persist: put character data failed", zap.Error(err))
	}
	if err := p.deps.Characters.PutInventory(ctx, sess.CharacterID, player.Inv.MarshalCharacterBlob()); err != nil {
		log.Warn("persist: put character inventory failed", zap.Error(err))
	}
	if err := p.deps.Characters.PutPalette(ctx, sess.CharacterID, player.Pal.Marshal()); err != nil {
		log.Warn("persist: put character palette failed", zap.Error(err))
	}

	p.flushAccountStorages(ctx, sess, player, log)

	if _, err := p.deps.Master.Call(ctx, masterproto.PutUUID{ID: sess.PlayerID, UUID: sess.UUIDCounter()}); err != nil {
		log.Warn("persist: put uuid failed", zap.Error(err))
	}
}

func (p *Persister) flushAccountStorages(ctx context.Context, sess *session.Session, player *Player, log *zap.Logger) {
	for _, tier := range []inventory.StorageID{inventory.StorageDefault, inventory.StoragePremium, inventory.StorageExtend1} {
		blob, err := player.Inv.MarshalStorageTier(tier)
		if err != nil {
			continue
		}
		action := masterproto.PutStorage{ID: sess.PlayerID, StorageID: uint8(tier), Data: blob}
		if _, err := p.deps.Master.Call(ctx, action); err != nil {
			log.Warn("persist: put storage tier failed", zap.Uint8("storage_id", uint8(tier)), zap.Error(err))
		}
	}
}
