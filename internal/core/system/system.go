// Package system provides the phase-ordered tick scheduler the block
// runtime drives every 100ms: drain input, broadcast state, persist dirty
// sessions, then sweep anything queued for cleanup.
package system

import "time"

// Phase orders system execution within a single tick.
type Phase int

const (
	PhaseInput     Phase = iota // drain the per-connection Action MPSC channel
	PhaseBroadcast              // relay movement/chat/party state to connected clients
	PhasePersist                // flush dirty session state to the master on an interval
	PhaseCleanup                // drop sessions marked ready_to_shutdown
)

// System is one phase-scoped unit of work the Runner drives each tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
