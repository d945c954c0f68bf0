// Package master implements the master service: the action dispatcher
// over masterproto, and the ship registry with its two single-shot TCP
// responders (spec §4.2, §4.3).
package master

import (
	"encoding/binary"
	"math/rand"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/masterproto"
)

// ShipEntry is one live ship (spec §3 Ship entry). IP may be 0.0.0.0,
// meaning "advertise whatever address the connection was accepted on" —
// rewritten by the ship-list responder, not stored rewritten.
type ShipEntry struct {
	ID             uint32
	IP             net.IP
	Port           uint16
	Name           string
	CurrentPlayers int
	MaxPlayers     int
	Status         string
	Blocks         []ShipBlock
}

// ShipBlock is one block this ship runs, used by the block-balance
// responder to pick a destination.
type ShipBlock struct {
	Name string
	IP   net.IP
	Port uint16
}

// Registry is the shared, mutex-guarded set of live ships. Reads (the
// list/balance responders) dominate; writes are register/unregister/
// player-count-delta only, matching spec §5's described access pattern.
type Registry struct {
	mu    sync.RWMutex
	ships map[uint32]*ShipEntry
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{ships: make(map[uint32]*ShipEntry), log: log}
}

// Register adds a ship, or reports AlreadyTaken if its id is in use.
func (r *Registry) Register(info masterproto.ShipInfo) masterproto.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ships[info.ID]; exists {
		return masterproto.AlreadyTaken{}
	}
	r.ships[info.ID] = &ShipEntry{
		ID:         info.ID,
		IP:         info.IP,
		Port:       info.Port,
		Name:       info.Name,
		MaxPlayers: int(info.MaxPlayers),
		Status:     "online",
	}
	return masterproto.Ok{}
}

func (r *Registry) Unregister(id uint32) masterproto.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ships, id)
	return masterproto.Ok{}
}

// SetPlayerCount sets a registered ship's current player count to count;
// unknown ids are silently ignored (the ship may have just
// unregistered).
func (r *Registry) SetPlayerCount(id uint32, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.ships[id]; ok {
		s.CurrentPlayers = count
	}
}

// Snapshot returns a defensive copy of every registered ship.
func (r *Registry) Snapshot() []ShipEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ShipEntry, 0, len(r.ships))
	for _, s := range r.ships {
		out = append(out, *s)
	}
	return out
}

// RandomBlock picks a uniformly random block across every registered ship,
// for the block-balance responder (spec §4.3). Reports ok=false if no
// ship has any blocks registered.
func (r *Registry) RandomBlock() (ShipBlock, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []ShipBlock
	for _, s := range r.ships {
		all = append(all, s.Blocks...)
	}
	if len(all) == 0 {
		return ShipBlock{}, false
	}
	return all[rand.Intn(len(all))], true
}

// ServeShipList runs the ship-list single-shot responder: on each accept,
// serialize all ship entries (rewriting any 0.0.0.0 IP to the address the
// connection was accepted on) and close. Grounded directly on the
// teacher's AcceptLoop shape, simplified to one write per connection.
func (r *Registry) ServeShipList(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go r.handleShipListConn(conn)
	}
}

func (r *Registry) handleShipListConn(conn net.Conn) {
	defer conn.Close()

	localIP, _, _ := net.SplitHostPort(conn.LocalAddr().String())
	entries := r.Snapshot()
	for i := range entries {
		if entries[i].IP == nil || entries[i].IP.IsUnspecified() {
			entries[i].IP = net.ParseIP(localIP)
		}
	}

	payload := encodeShipList(entries)
	if _, err := conn.Write(payload); err != nil {
		r.log.Debug("ship-list write failed", zap.Error(err))
	}
}

// ServeBlockBalance runs the block-balance single-shot responder.
func (r *Registry) ServeBlockBalance(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go r.handleBlockBalanceConn(conn)
	}
}

func (r *Registry) handleBlockBalanceConn(conn net.Conn) {
	defer conn.Close()

	block, ok := r.RandomBlock()
	if !ok {
		return
	}
	payload := encodeBlockBalance(block)
	if _, err := conn.Write(payload); err != nil {
		r.log.Debug("block-balance write failed", zap.Error(err))
	}
}

// encodeShipList and encodeBlockBalance use a minimal length-prefixed
// binary encoding local to this responder pair; the block runtime's own
// packet codec (internal/packet) is not reused here since these two
// responders write one message and close rather than speaking the
// in-block protocol.
func encodeShipList(entries []ShipEntry) []byte {
	buf := make([]byte, 0, 64)
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(entries)))
	buf = append(buf, countBuf[:]...)
	for _, e := range entries {
		buf = appendShipEntry(buf, e)
	}
	return buf
}

func appendShipEntry(buf []byte, e ShipEntry) []byte {
	var idBuf, portBuf, playersBuf, maxBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], e.ID)
	binary.LittleEndian.PutUint16(portBuf[:2], e.Port)
	binary.LittleEndian.PutUint32(playersBuf[:], uint32(e.CurrentPlayers))
	binary.LittleEndian.PutUint32(maxBuf[:], uint32(e.MaxPlayers))

	buf = append(buf, idBuf[:]...)
	ip4 := e.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	buf = append(buf, ip4...)
	buf = append(buf, portBuf[:2]...)
	buf = append(buf, playersBuf[:]...)
	buf = append(buf, maxBuf[:]...)
	buf = appendLenPrefixedString(buf, e.Name)
	return buf
}

func appendLenPrefixedString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func encodeBlockBalance(b ShipBlock) []byte {
	var portBuf [2]byte
	binary.LittleEndian.PutUint16(portBuf[:], b.Port)
	buf := make([]byte, 0, 32)
	ip4 := b.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	buf = append(buf, ip4...)
	buf = append(buf, portBuf[:]...)
	buf = appendLenPrefixedString(buf, b.Name)
	return buf
}
