package ecs

import "testing"

func TestEntityPoolRecyclesSlotsWithBumpedGeneration(t *testing.T) {
	pool := NewEntityPool()

	a := pool.Create()
	if !pool.Alive(a) {
		t.Fatalf("a should be alive immediately after creation")
	}

	pool.Destroy(a)
	if pool.Alive(a) {
		t.Fatalf("a should be dead after Destroy")
	}

	b := pool.Create()
	if b.Index() != a.Index() {
		t.Fatalf("expected slot reuse, got new index %d vs old %d", b.Index(), a.Index())
	}
	if b.Generation() == a.Generation() {
		t.Fatalf("expected bumped generation, both are %d", a.Generation())
	}
	if pool.Alive(a) {
		t.Fatalf("stale handle a must not read as alive once its slot is recycled")
	}
	if !pool.Alive(b) {
		t.Fatalf("b should be alive")
	}
}

func TestEntityPoolDoubleDestroyIsNoop(t *testing.T) {
	pool := NewEntityPool()
	a := pool.Create()
	pool.Destroy(a)
	pool.Destroy(a) // must not panic or double-free the slot
	b := pool.Create()
	if pool.Alive(a) {
		t.Fatalf("a must remain dead")
	}
	_ = b
}
