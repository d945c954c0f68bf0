package master

import (
	"net"
	"testing"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/masterproto"
)

func TestRegistryRegisterRejectsDuplicateID(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	info := masterproto.ShipInfo{ID: 1, IP: net.ParseIP("10.0.0.5"), Port: 12000, Name: "Ship01", MaxPlayers: 100}
	if _, ok := reg.Register(info).(masterproto.Ok); !ok {
		t.Fatalf("first registration should succeed")
	}
	if _, ok := reg.Register(info).(masterproto.AlreadyTaken); !ok {
		t.Fatalf("duplicate registration should report AlreadyTaken")
	}
}

func TestRegistryUnregisterThenSnapshotEmpty(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(masterproto.ShipInfo{ID: 7, IP: net.ParseIP("10.0.0.5"), Port: 12000, Name: "Ship07"})
	reg.Unregister(7)

	if len(reg.Snapshot()) != 0 {
		t.Fatalf("expected empty snapshot after unregister")
	}
}

func TestRegistryRandomBlockEmptyWhenNoShips(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	if _, ok := reg.RandomBlock(); ok {
		t.Fatalf("expected no block when no ships registered")
	}
}

func TestRegistrySetPlayerCountIgnoresUnknownShip(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.SetPlayerCount(999, 5) // must not panic
}
