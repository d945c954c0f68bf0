package system

import (
	"sort"
	"time"
)

// Runner drives a fixed set of Systems in Phase order on every Tick.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{systems: make([]System, 0, 8)}
}

// Register adds a system to the runner. Order among systems sharing a
// Phase is unspecified.
func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every registered system once, in Phase order, passing dt as the
// elapsed time since the previous tick (nominally 100ms for the block
// runtime).
func (r *Runner) Tick(dt time.Duration) {
	if !r.sorted {
		sort.Slice(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
	for _, s := range r.systems {
		s.Update(dt)
	}
}
