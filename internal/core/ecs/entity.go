// Package ecs provides the generational-index arena used wherever the
// server needs a weak, lazily-checked reference into a live collection —
// notably a map's player roster and a party's weak back-reference to the
// party stored on an invitee's session. Holding an EntityID instead of a
// pointer lets the holder ask "is this still alive?" without the owning
// collection needing to track or notify every holder.
package ecs

// EntityID packs a 32-bit slot index in the low bits and a 32-bit
// generation in the high bits. The generation is bumped on Destroy so any
// EntityID minted before the slot was recycled reads back as dead.
type EntityID uint64

func NewEntityID(index, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// EntityPool hands out EntityIDs backed by a free list, so a long-running
// map or party registry reuses slot indices instead of growing without
// bound as players come and go.
type EntityPool struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 256),
		freeList:    make([]uint32, 0, 64),
	}
}

// Create allocates a fresh EntityID, recycling a free slot when available.
func (p *EntityPool) Create() EntityID {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
	}
	return NewEntityID(idx, p.generations[idx])
}

// Alive reports whether id still refers to the slot that minted it, i.e.
// whether a weak reference holding id should still be treated as live.
func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation()
}

// Destroy invalidates id's slot and returns it to the free list. Calling
// Destroy twice on the same generation, or destroying an already-stale id,
// is a silent no-op — weak-reference holders are expected to race this.
func (p *EntityPool) Destroy(id EntityID) {
	idx := id.Index()
	if idx >= p.nextIndex || p.generations[idx] != id.Generation() {
		return
	}
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
}
