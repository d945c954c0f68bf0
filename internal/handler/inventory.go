package handler

import (
	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/inventory"
	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/session"
)

func readMoveItems(r *packet.Reader) []inventory.MoveItem {
	count := int(r.ReadC())
	moves := make([]inventory.MoveItem, 0, count)
	for i := 0; i < count; i++ {
		moves = append(moves, inventory.MoveItem{
			UUID:      r.ReadQ(),
			Amount:    r.ReadD(),
			StorageID: inventory.StorageID(r.ReadC()),
		})
	}
	return moves
}

// HandleMoveInvToStorage moves a batch of inventory items into the
// storages named per-item (spec §4.8).
func HandleMoveInvToStorage(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	moves := readMoveItems(r)
	results, err := inventory.MoveInvToStorage(p.Inv, moves)
	if err != nil {
		deps.Log.Debug("move inv to storage failed", zap.Error(err))
		return
	}
	_ = p.Send(builder.MoveUpdate(results))
}

// HandleMoveStorageToInv moves a batch of storage items back into the
// player's inventory.
func HandleMoveStorageToInv(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	moves := readMoveItems(r)
	results, err := inventory.MoveStorageToInv(p.Inv, moves)
	if err != nil {
		deps.Log.Debug("move storage to inv failed", zap.Error(err))
		return
	}
	_ = p.Send(builder.MoveUpdate(results))
}

// HandleMoveStorageToStorage moves a batch of items between two distinct
// storages.
func HandleMoveStorageToStorage(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	from := inventory.StorageID(r.ReadC())
	to := inventory.StorageID(r.ReadC())
	moves := readMoveItems(r)
	results, err := inventory.MoveStorageToStorage(p.Inv, from, to, moves)
	if err != nil {
		deps.Log.Debug("move storage to storage failed", zap.Error(err))
		return
	}
	_ = p.Send(builder.MoveUpdate(results))
}

// HandleDiscardItem drops uuid's amount from whichever container it
// currently lives in.
func HandleDiscardItem(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	uuid := r.ReadQ()
	amount := r.ReadD()
	outcome, err := inventory.Discard(p.Inv, uuid, amount)
	if err != nil {
		deps.Log.Debug("discard failed", zap.Error(err))
		return
	}
	_ = p.Send(builder.DiscardUpdate(outcome))
}

// HandleTransferMeseta moves meseta between inventory and storage,
// clamped to the available balance.
func HandleTransferMeseta(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	toStorage := r.ReadC() != 0
	requested := r.ReadQ()
	_, invBalance, storageBalance := inventory.TransferMeseta(p.Inv, toStorage, requested)
	_ = p.Send(builder.MesetaBalance(invBalance, storageBalance))
}
