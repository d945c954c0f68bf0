package handler

import (
	"net"
	"testing"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/block"
	"github.com/shipcluster/server/internal/inventory"
	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/palette"
	"github.com/shipcluster/server/internal/session"
)

func newTestPlayer(t *testing.T, characterID uint32) (*Player, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	sess := session.New(server, 0, session.PacketTypeJP)
	sess.CharacterID = characterID

	acc := inventory.NewAccount()
	pal := palette.NewSet(acc, builder)
	p := NewPlayer(sess, 0, acc, pal)
	return p, client
}

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	p, _ := newTestPlayer(t, 42)
	r.Put(p)

	got, ok := r.Get(42)
	if !ok || got != p {
		t.Fatalf("expected to find player 42")
	}

	r.Remove(42)
	if _, ok := r.Get(42); ok {
		t.Fatalf("expected player 42 to be gone after Remove")
	}
}

func TestHandleDiscardItemSendsUpdate(t *testing.T) {
	p, client := newTestPlayer(t, 7)
	p.Inv.AddToInventory(inventory.Entry{UUID: 1, ItemID: 100, Amount: 5, Consumable: true})

	deps := &Deps{Log: zap.NewNop(), Players: NewRegistry(zap.NewNop())}
	deps.Players.Put(p)

	done := make(chan []byte, 1)
	go func() {
		pkt, err := block.ReadFrame(client)
		if err != nil {
			done <- nil
			return
		}
		done <- pkt
	}()

	w := packet.NewWriterWithOpcode(opDiscardItem)
	w.WriteQ(1)
	w.WriteD(2)

	HandleDiscardItem(p.Sess, packet.NewReader(w.Bytes()), deps)

	pkt := <-done
	if pkt == nil {
		t.Fatalf("expected a DiscardUpdate packet to be written")
	}

	entries := p.Inv.InventoryEntries()
	if len(entries) != 1 || entries[0].Amount != 3 {
		t.Fatalf("expected 3 remaining, got %+v", entries)
	}
}
