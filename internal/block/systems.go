package block

import (
	"time"

	"github.com/shipcluster/server/internal/core/event"
	"github.com/shipcluster/server/internal/core/system"
	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/session"
)

// inputDrainSystem drains the block's Action MPSC channel once per tick,
// applying each action against the originating connection's session.
type inputDrainSystem struct {
	block *Block
}

func (s *inputDrainSystem) Phase() system.Phase { return system.PhaseInput }

func (s *inputDrainSystem) Update(dt time.Duration) {
	for {
		select {
		case env := <-s.block.actionCh:
			s.apply(env)
		default:
			return
		}
	}
}

func (s *inputDrainSystem) apply(env Envelope) {
	switch env.Action.(type) {
	case Disconnect:
		var characterID uint32
		var sess *session.Session
		s.block.mu.RLock()
		if c, ok := s.block.conns[env.ConnID]; ok {
			characterID = c.sess.CharacterID
			sess = c.sess
		}
		s.block.mu.RUnlock()
		// Flush before dropConn, not after: once the conn entry is gone
		// there is nothing left distinguishing this session from one that
		// never loaded a character.
		if sess != nil && s.block.persister != nil {
			s.block.persister(sess)
		}
		s.block.dropConn(env.ConnID)
		event.Emit(s.block.bus, event.PlayerDisconnected{SessionID: env.ConnID, CharacterID: characterID})
	case InitialLoad:
		s.block.mu.RLock()
		c, ok := s.block.conns[env.ConnID]
		s.block.mu.RUnlock()
		if ok {
			c.sess.SetState(packet.StateInGame)
		}
	case Nothing:
	}
}

// broadcastSystem delivers the block's queued event-bus events (such as
// PlayerDisconnected) to their subscribers. Movement/chat/party fan-out
// does not pass through here; the worldmap/party packages send it
// directly.
type broadcastSystem struct {
	block *Block
}

func (s *broadcastSystem) Phase() system.Phase { return system.PhaseBroadcast }
func (s *broadcastSystem) Update(dt time.Duration) {
	s.block.bus.SwapBuffers()
	s.block.bus.DispatchAll()
}

// persistFlushInterval is how often persistSystem sweeps every in-game
// session on this block and asks the runtime's SessionPersister to write
// it back, independent of the drop-time flush each Disconnect triggers
// (spec §5: "periodic persistence" alongside "persist on disconnect").
const persistFlushInterval = 30 * time.Second

// persistSystem periodically flushes every connected session's state to
// the master/ship-local stores through the runtime's SessionPersister.
// The actual write is supplied by cmd/ship (it needs the master client and
// the shippersist repos, neither of which this package depends on); left
// nil, as in tests that construct a Block directly, this is a no-op.
type persistSystem struct {
	block   *Block
	elapsed time.Duration
}

func (s *persistSystem) Phase() system.Phase { return system.PhasePersist }

func (s *persistSystem) Update(dt time.Duration) {
	if s.block.persister == nil {
		return
	}
	s.elapsed += dt
	if s.elapsed < persistFlushInterval {
		return
	}
	s.elapsed = 0

	s.block.mu.RLock()
	sessions := make([]*session.Session, 0, len(s.block.conns))
	for _, c := range s.block.conns {
		if c.sess.State() == packet.StateInGame {
			sessions = append(sessions, c.sess)
		}
	}
	s.block.mu.RUnlock()

	for _, sess := range sessions {
		s.block.persister(sess)
	}
}

// cleanupSystem sweeps connections whose session has been marked
// ready_to_shutdown and whose goodbye-drain window has elapsed.
type cleanupSystem struct {
	block *Block
}

func (s *cleanupSystem) Phase() system.Phase { return system.PhaseCleanup }
func (s *cleanupSystem) Update(dt time.Duration) {
	s.block.mu.RLock()
	stale := make([]uint64, 0)
	for id, c := range s.block.conns {
		if c.sess.ReadyToShutdown() {
			stale = append(stale, id)
		}
	}
	s.block.mu.RUnlock()
	for _, id := range stale {
		s.block.dropConn(id)
	}
}
