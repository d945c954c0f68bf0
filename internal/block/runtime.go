// Package block implements the ship-side block runtime: one TCP listener
// per block, a per-user task per accepted client that forwards Actions to
// the runtime's MPSC channel, and a 100ms phase-ordered tick that drains
// those actions, broadcasts state, flushes dirty sessions to the master,
// and sweeps sessions marked for cleanup. This generalizes the teacher's
// net.Server/net.Session read/write-loop-plus-channel architecture to the
// spec's closed Action enum instead of raw opcode bytes.
package block

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/core/event"
	"github.com/shipcluster/server/internal/core/system"
	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/session"
)

const (
	tickInterval    = 100 * time.Millisecond
	maxMissedPings  = 5
	goodbyeDrainDur = 500 * time.Millisecond
)

// Config describes one block's static identity and capacity.
type Config struct {
	ID         uint32
	Name       string
	BindAddr   string
	MaxPlayers int
}

// conn bundles a live TCP connection with the session state it drives.
type conn struct {
	id      uint64
	netConn net.Conn
	sess    *session.Session
}

// Block is one block runtime instance.
type Block struct {
	cfg Config
	log *zap.Logger

	listener net.Listener
	nextConn atomic.Uint64

	mu       sync.RWMutex
	conns    map[uint64]*conn
	players  int

	actionCh chan Envelope
	bus      *event.Bus
	registry *packet.Registry
	runner   *system.Runner

	persister SessionPersister
}

// SessionPersister writes one session's character/inventory/palette state
// (and the master-side uuid high-water mark) back to durable storage.
// Supplied by cmd/ship via SetSessionPersister, since building one needs
// the master client and shippersist repos this package doesn't depend on.
type SessionPersister func(sess *session.Session)

// SetSessionPersister wires the runtime's periodic and drop-time
// persistence flush (spec §5) to fn.
func (b *Block) SetSessionPersister(fn SessionPersister) {
	b.persister = fn
}

func NewBlock(cfg Config, registry *packet.Registry, log *zap.Logger) *Block {
	b := &Block{
		cfg:      cfg,
		log:      log.With(zap.Uint32("block_id", cfg.ID), zap.String("block_name", cfg.Name)),
		conns:    make(map[uint64]*conn),
		actionCh: make(chan Envelope, 256),
		bus:      event.NewBus(),
		registry: registry,
		runner:   system.NewRunner(),
	}
	b.runner.Register(&inputDrainSystem{block: b})
	b.runner.Register(&broadcastSystem{block: b})
	b.runner.Register(&persistSystem{block: b})
	b.runner.Register(&cleanupSystem{block: b})
	return b
}

// PlayerCount reports the block's current connection count.
func (b *Block) PlayerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.players
}

// Bus exposes the block's event bus so cmd/ship can subscribe gameplay
// packages (party, worldmap cleanup) to lifecycle events the block emits,
// without those packages depending on block itself.
func (b *Block) Bus() *event.Bus {
	return b.bus
}

// Listen binds the block's TCP port.
func (b *Block) Listen() error {
	ln, err := net.Listen("tcp", b.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("block %d listen: %w", b.cfg.ID, err)
	}
	b.listener = ln
	return nil
}

// Run drives the accept loop and the tick loop until ctx is canceled.
func (b *Block) Run(ctx context.Context) error {
	go b.acceptLoop(ctx)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.listener.Close()
			return ctx.Err()
		case <-ticker.C:
			b.runner.Tick(tickInterval)
		}
	}
}

func (b *Block) acceptLoop(ctx context.Context) {
	for {
		nc, err := b.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			b.log.Error("accept failed", zap.Error(err))
			continue
		}
		b.handleAccept(ctx, nc)
	}
}

func (b *Block) handleAccept(ctx context.Context, nc net.Conn) {
	b.mu.Lock()
	if b.players >= b.cfg.MaxPlayers {
		b.mu.Unlock()
		nc.Close()
		return
	}
	b.players++
	id := b.nextConn.Add(1)
	sess := session.New(nc, 0, session.PacketTypeJP)
	c := &conn{id: id, netConn: nc, sess: sess}
	b.conns[id] = c
	b.mu.Unlock()

	if err := b.sendServerHello(nc); err != nil {
		b.log.Debug("server hello failed", zap.Error(err), zap.Uint64("conn", id))
		b.dropConn(id)
		return
	}

	go b.perUserTask(ctx, c)
}

func (b *Block) sendServerHello(nc net.Conn) error {
	w := packet.NewWriterWithOpcode(opServerHello)
	w.WriteD(b.cfg.ID)
	return WriteFrame(nc, w.Bytes())
}

// perUserTask loops over read_packet and the 100ms tick, forwarding
// produced Actions to the runtime's MPSC channel (spec §4.4).
func (b *Block) perUserTask(ctx context.Context, c *conn) {
	packets := make(chan []byte, 16)
	readErrs := make(chan error, 1)
	go b.readLoop(c.netConn, packets, readErrs)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var goodbyeAt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-packets:
			if packet.NewReader(data).Opcode() == opServerPong {
				c.sess.TouchPing()
				continue
			}
			if err := b.registry.Dispatch(c.sess, c.sess.State(), data); err != nil {
				b.log.Debug("dispatch error", zap.Error(err), zap.Uint64("conn", c.id))
			}
			if c.sess.ReadyToShutdown() && goodbyeAt.IsZero() {
				goodbyeAt = time.Now()
			}
		case err := <-readErrs:
			if isResetOrAborted(err) {
				b.enqueue(c.id, Disconnect{})
			}
			return
		case <-ticker.C:
			b.sendPing(c)
			if c.sess.MissedPing() {
				b.enqueue(c.id, Disconnect{})
				return
			}
			if !goodbyeAt.IsZero() && time.Since(goodbyeAt) >= goodbyeDrainDur {
				b.enqueue(c.id, Disconnect{})
				return
			}
		}
	}
}

func (b *Block) readLoop(nc net.Conn, out chan<- []byte, errs chan<- error) {
	for {
		payload, err := ReadFrame(nc)
		if err != nil {
			errs <- err
			return
		}
		out <- payload
	}
}

func (b *Block) sendPing(c *conn) {
	w := packet.NewWriterWithOpcode(opServerPing)
	_ = WriteFrame(c.netConn, w.Bytes())
}

func (b *Block) enqueue(connID uint64, a Action) {
	select {
	case b.actionCh <- Envelope{ConnID: connID, Action: a}:
	default:
		b.log.Warn("action channel full, dropping", zap.Uint64("conn", connID))
	}
}

func (b *Block) dropConn(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[id]; ok {
		delete(b.conns, id)
		b.players--
	}
}

// isResetOrAborted reports whether err looks like the client severing the
// connection (spec's ConnectionAborted | ConnectionReset), as opposed to a
// transient I/O error that should be logged and otherwise ignored.
func isResetOrAborted(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range []string{"connection reset", "connection aborted", "use of closed network connection", "EOF"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

const (
	opServerHello uint16 = 0x0001
	opServerPing  uint16 = 0x0002
	opServerPong  uint16 = 0x0003
)
