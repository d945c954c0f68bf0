package event

import (
	"testing"

	"github.com/shipcluster/server/internal/core/ecs"
)

func TestBusDeliversOnNextTickOnly(t *testing.T) {
	b := NewBus()
	var seen []ecs.EntityID
	Subscribe(b, func(e PlayerDisconnected) {
		seen = append(seen, e.Player)
	})

	Emit(b, PlayerDisconnected{Player: ecs.NewEntityID(1, 0), SessionID: 99})

	// Not yet visible: dispatch only reads the front buffer.
	b.DispatchAll()
	if len(seen) != 0 {
		t.Fatalf("expected no delivery before SwapBuffers, got %v", seen)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(seen) != 1 || seen[0].Index() != 1 {
		t.Fatalf("expected one delivery with index 1, got %v", seen)
	}

	// Second dispatch without a new emit + swap must not redeliver.
	b.DispatchAll()
	if len(seen) != 1 {
		t.Fatalf("expected no redelivery, got %v", seen)
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	b := NewBus()
	var a, bCount int
	Subscribe(b, func(e PlayerEnteredMap) { a++ })
	Subscribe(b, func(e PlayerEnteredMap) { bCount++ })

	Emit(b, PlayerEnteredMap{Player: ecs.NewEntityID(2, 0), MapID: 7})
	b.SwapBuffers()
	b.DispatchAll()

	if a != 1 || bCount != 1 {
		t.Fatalf("expected both subscribers invoked once, got a=%d b=%d", a, bCount)
	}
}
