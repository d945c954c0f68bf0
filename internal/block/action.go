package block

// Action is the closed set of things a per-user task can ask the block
// runtime to do on its behalf (spec §4.4, §5). Party invites and map
// broadcasts are not Actions: the handlers send them directly through the
// party and worldmap packages.
type Action interface {
	isAction()
}

// Nothing is a no-op tick placeholder; it exists so the 100ms ticker path
// and the read_packet path can both funnel into the same channel type.
type Nothing struct{}

// Disconnect is enqueued when the per-user task observes a connection
// error matching ConnectionAborted/ConnectionReset, or after the
// post-ClientGoodbye drain window elapses.
type Disconnect struct{}

// InitialLoad marks the client's first in-game signal; handling it sets
// the session state to InGame. It does not add the session to a map or a
// party.
type InitialLoad struct{}

func (Nothing) isAction()     {}
func (Disconnect) isAction()  {}
func (InitialLoad) isAction() {}

// Envelope is one entry on the runtime's MPSC action channel: which
// connection produced the action, and what it asked for.
type Envelope struct {
	ConnID uint64
	Action Action
}
