// Package palette implements the player's quick-switch weapon/photon-art
// palette (spec §4.10): six weapon-palette slots, two books of six
// subpalette slots, a default-photon-arts list, and the re-equip-on-update
// behavior that routes through internal/inventory's Equip/Unequip entry
// points.
//
// Grounded on the teacher's internal/world/equipment.go (Equipment.Slots
// array, Get/Set bounds-checked accessors) generalized from one fixed
// equipment set to six indexed palette slots, each slot referencing one
// equipped item's uuid rather than holding the item itself.
package palette

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/shipcluster/server/internal/inventory"
)

// MaxSlotIndex is the highest valid palette/subpalette slot index (spec
// §4.10: "all indices ≤ 5").
const MaxSlotIndex = 5

// MaxSubpaletteBook is the highest valid subpalette book index (spec
// §4.10: "subpalette book ≤ 1" — two books).
const MaxSubpaletteBook = 1

// Snapshot is the wire-facing view of a player's full palette state,
// returned by SendFullPalette.
type Snapshot struct {
	Selected    uint8
	Weapon      [6]uint64
	SubBook     uint8
	SubSelected uint8
	Sub         [2][6]uint64
	DefaultPAs  []uint32
}

// PacketBuilder constructs every wire packet the palette subsystem
// emits, keeping this package free of any one platform's encoding — the
// same decoupling inventory.PacketBuilder and party.PacketBuilder use.
type PacketBuilder interface {
	FullPalette(s Snapshot) []byte
	ChangeWeaponPalette(index uint8, weaponUUID uint64) []byte
	EquippedWeapon(weaponUUID uint64) []byte
}

// Set is one player's palette state, mediated by a single mutex in the
// same one-manager-one-lock shape as internal/party and
// internal/inventory.
type Set struct {
	mu sync.Mutex

	selected uint8
	weapon   [6]uint64

	subBook     uint8
	subSelected uint8
	sub         [2][6]uint64

	defaultPAs []uint32

	acc     *inventory.Account
	builder PacketBuilder
}

// NewSet constructs an empty palette bound to acc's equip/unequip entry
// points and builder's packet construction.
func NewSet(acc *inventory.Account, builder PacketBuilder) *Set {
	return &Set{acc: acc, builder: builder}
}

func validIndex(index uint8) error {
	if index > MaxSlotIndex {
		return fmt.Errorf("palette: index %d exceeds max %d", index, MaxSlotIndex)
	}
	return nil
}

func validBook(book uint8) error {
	if book > MaxSubpaletteBook {
		return fmt.Errorf("palette: subpalette book %d exceeds max %d", book, MaxSubpaletteBook)
	}
	return nil
}

// SetPalette selects the active weapon-palette slot, re-equipping the
// item it references and unequipping the previously selected one. The
// whole operation is rejected (no mutation, no broadcast) if either
// equip step fails.
func (s *Set) SetPalette(index uint8) ([]byte, error) {
	if err := validIndex(index); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	newUUID := s.weapon[index]
	if err := s.reequipLocked(s.weapon[s.selected], newUUID); err != nil {
		return nil, err
	}
	s.selected = index
	return s.builder.ChangeWeaponPalette(index, newUUID), nil
}

// UpdatePalette replaces the full 6-slot weapon array, then re-applies
// the currently selected index against the new array (spec §4.10: an
// array update re-equips whatever the selection now points at).
func (s *Set) UpdatePalette(slots [6]uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSelectedUUID := s.weapon[s.selected]
	newSelectedUUID := slots[s.selected]
	if err := s.reequipLocked(oldSelectedUUID, newSelectedUUID); err != nil {
		return nil, err
	}
	s.weapon = slots
	return s.builder.ChangeWeaponPalette(s.selected, newSelectedUUID), nil
}

// reequipLocked unequips oldUUID and equips newUUID, in that order,
// through the bound inventory.Account, rejecting the whole operation if
// either step errors; when the equip step fails, oldUUID is re-equipped.
// Must be called with s.mu held.
func (s *Set) reequipLocked(oldUUID, newUUID uint64) error {
	if oldUUID == newUUID {
		return nil
	}
	if _, err := s.acc.Unequip(oldUUID); err != nil {
		return err
	}
	if _, err := s.acc.Equip(newUUID); err != nil {
		_, _ = s.acc.Equip(oldUUID)
		return err
	}
	return nil
}

// SetSubPalette selects the active subpalette slot within book.
func (s *Set) SetSubPalette(book, index uint8) error {
	if err := validBook(book); err != nil {
		return err
	}
	if err := validIndex(index); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subBook = book
	s.subSelected = index
	return nil
}

// UpdateSubPalette replaces the full 6-slot subpalette array for book.
func (s *Set) UpdateSubPalette(book uint8, slots [6]uint64) error {
	if err := validBook(book); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub[book] = slots
	return nil
}

// SetDefaultPAs replaces the player's default photon-art list.
func (s *Set) SetDefaultPAs(pas []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultPAs = append([]uint32(nil), pas...)
}

// SendFullPalette returns the wire packet describing the entire palette
// state (spec §4.10's query operation).
func (s *Set) SendFullPalette() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.FullPalette(Snapshot{
		Selected:    s.selected,
		Weapon:      s.weapon,
		SubBook:     s.subBook,
		SubSelected: s.subSelected,
		Sub:         s.sub,
		DefaultPAs:  append([]uint32(nil), s.defaultPAs...),
	})
}

// EquippedWeapon returns the broadcast packet announcing the currently
// equipped weapon (derived from the active weapon-palette slot).
func (s *Set) EquippedWeapon() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.EquippedWeapon(s.weapon[s.selected])
}

// Marshal serializes the palette state for persistence in
// shippersist.CharacterRepo's palette column.
func (s *Set) Marshal() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteByte(s.selected)
	for _, uuid := range s.weapon {
		binary.Write(&buf, binary.LittleEndian, uuid)
	}
	buf.WriteByte(s.subBook)
	buf.WriteByte(s.subSelected)
	for _, book := range s.sub {
		for _, uuid := range book {
			binary.Write(&buf, binary.LittleEndian, uuid)
		}
	}
	binary.Write(&buf, binary.LittleEndian, uint16(len(s.defaultPAs)))
	for _, pa := range s.defaultPAs {
		binary.Write(&buf, binary.LittleEndian, pa)
	}
	return buf.Bytes()
}

// LoadPalette reconstructs a Set from a blob previously produced by
// Marshal, binding it to acc and builder the same way NewSet does. Fields
// are restored directly rather than through SetPalette/UpdatePalette,
// since the referenced items' equipped flags are already correct from the
// inventory blob they were loaded alongside.
func LoadPalette(data []byte, acc *inventory.Account, builder PacketBuilder) (*Set, error) {
	s := NewSet(acc, builder)
	if len(data) == 0 {
		return s, nil
	}

	r := bytes.NewReader(data)
	var err error
	if s.selected, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("palette: read selected: %w", err)
	}
	for i := range s.weapon {
		if err := binary.Read(r, binary.LittleEndian, &s.weapon[i]); err != nil {
			return nil, fmt.Errorf("palette: read weapon slot %d: %w", i, err)
		}
	}
	if s.subBook, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("palette: read sub book: %w", err)
	}
	if s.subSelected, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("palette: read sub selected: %w", err)
	}
	for b := range s.sub {
		for i := range s.sub[b] {
			if err := binary.Read(r, binary.LittleEndian, &s.sub[b][i]); err != nil {
				return nil, fmt.Errorf("palette: read sub slot [%d][%d]: %w", b, i, err)
			}
		}
	}
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("palette: read default PA count: %w", err)
	}
	s.defaultPAs = make([]uint32, n)
	for i := range s.defaultPAs {
		if err := binary.Read(r, binary.LittleEndian, &s.defaultPAs[i]); err != nil {
			return nil, fmt.Errorf("palette: read default PA %d: %w", i, err)
		}
	}
	return s, nil
}
