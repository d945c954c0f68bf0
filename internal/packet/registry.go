package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// SessionState is the total order over a user session's protocol phase
// (spec §4.5): LoggingIn < NewUsername < CharacterSelect < PreInGame <
// InGame. Comparisons with >= gate packets allowed "in any state at or
// past" a given phase (e.g. settings get/put from NewUsername onward).
type SessionState int

const (
	StateLoggingIn SessionState = iota
	StateNewUsername
	StateCharacterSelect
	StatePreInGame
	StateInGame
)

func (s SessionState) String() string {
	switch s {
	case StateLoggingIn:
		return "LoggingIn"
	case StateNewUsername:
		return "NewUsername"
	case StateCharacterSelect:
		return "CharacterSelect"
	case StatePreInGame:
		return "PreInGame"
	case StateInGame:
		return "InGame"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for packet handlers. The session is
// passed as an opaque interface to avoid an import cycle between packet and
// the session package that owns the concrete session type.
type HandlerFunc func(sess any, r *Reader)

type handlerEntry struct {
	fn          HandlerFunc
	minState    SessionState
	exactStates map[SessionState]bool // nil means "minState and anything after"
}

// Registry maps opcodes to handlers with state-based access control.
type Registry struct {
	handlers map[uint16]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[uint16]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler allowed only in the listed states.
func (reg *Registry) Register(opcode uint16, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[opcode] = &handlerEntry{fn: fn, exactStates: allowed}
}

// RegisterFrom maps an opcode to a handler allowed in minState or any state
// ordered after it (spec's "allowed in any state >= NewUsername" rule).
func (reg *Registry) RegisterFrom(opcode uint16, minState SessionState, fn HandlerFunc) {
	reg.handlers[opcode] = &handlerEntry{fn: fn, minState: minState}
}

func (e *handlerEntry) allows(state SessionState) bool {
	if e.exactStates != nil {
		return e.exactStates[state]
	}
	return state >= e.minState
}

// Dispatch finds the handler for the payload's opcode, validates the
// session state, and invokes it. Unknown opcodes and disallowed
// (state, opcode) pairs are logged and silently ignored, per spec.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("packet too short for opcode: %d bytes", len(data))
	}
	r := NewReader(data)
	opcode := r.Opcode()

	reg.log.Debug("dispatching packet",
		zap.Uint16("opcode", opcode),
		zap.Int("size", len(data)),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[opcode]
	if !ok {
		reg.log.Debug("unknown opcode", zap.Uint16("opcode", opcode), zap.String("state", state.String()))
		return nil
	}
	if !entry.allows(state) {
		reg.log.Warn("opcode not allowed in state",
			zap.Uint16("opcode", opcode),
			zap.String("state", state.String()),
		)
		return nil
	}

	return reg.safeCall(entry.fn, sess, r, opcode)
}

// safeCall runs a handler with panic recovery so one malformed packet
// cannot take down the block's tick loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader, opcode uint16) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint16("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode %d: %v", opcode, rec)
		}
	}()
	fn(sess, r)
	return nil
}
