// Package inventory implements the account-level item/storage model (spec
// §4.8): a discrete-vs-stackable change-item primitive, the three
// inv/storage move operations, discard, meseta transfer, and the
// initial-load streaming sequence. Grounded on the teacher's
// internal/world/inventory.go (Inventory/InvItem, AddItem/RemoveItem
// merge-or-append and swap-remove semantics, a monotonic per-account
// object id counter) and internal/persist/warehouse_repo.go (a second,
// separately-keyed item container alongside the main inventory — here
// generalized from the teacher's single clan/personal/elf warehouse split
// to the four storage ids spec §4.8 names). The single `Account` type
// backs both the player's inventory and all of its storages — an explicit
// choice over separate Inventory/Storage types, since every operation
//(decrease/increase/move) is identical regardless of which container it
// touches.
package inventory

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MaxStorageItemsPerFrame bounds how many storage entries LoadStorages
// packs into one packet before the initial-load stream splits across
// multiple frames (spec §4.8, resolved default: 200).
const MaxStorageItemsPerFrame = 200

// StorageID names one of the four storages spec §4.8 defines. Any other
// value is a hard error at the point it would be resolved into a
// container.
type StorageID uint8

const (
	StorageDefault   StorageID = 0
	StoragePremium   StorageID = 1
	StorageExtend1   StorageID = 2
	StorageCharacter StorageID = 14
)

// Entry is one item-stack instance: a discrete item has Amount 1 and
// Consumable false; a stackable consumable carries Amount > 1 and merges
// with same-ItemID stacks on increase.
type Entry struct {
	UUID       uint64
	ItemID     uint32
	Amount     uint32
	Consumable bool
	Equipped   bool
}

// ItemName is one entry of the paged item-name stream sent for any
// ItemId a client hasn't seen yet (spec §4.8 initial load).
type ItemName struct {
	ItemID uint32
	Name   string
}

// ItemCatalog resolves a template id to its display name. Implemented by
// whatever loads the item-attributes catalog (the teacher's
// data.ItemTable, generalized to an interface so inventory doesn't import
// a YAML-backed concrete type it doesn't own).
type ItemCatalog interface {
	Name(itemID uint32, language string) (string, bool)
}

// Outcome is the closed tagged-union result of decrease/increase (spec
// §4.8), sealed the same way masterproto.Action/Result are: only types in
// this package can implement isOutcome.
type Outcome interface {
	isOutcome()
}

// Changed reports a stack whose amount changed without the entry being
// fully removed or newly created. Moved is the quantity that changed
// hands; Item describes what was added/removed (ItemID/Consumable),
// without the entry's own persistent UUID — callers that move Item
// elsewhere mint a fresh UUID for it.
type Changed struct {
	UUID      uint64
	NewAmount uint32
	Moved     uint32
	Item      Entry
}

// New reports a freshly appended entry (no existing stack to merge into).
type New struct {
	Item   Entry
	Amount uint32
}

// Removed reports an entry fully removed via swap-remove (decreased to
// zero).
type Removed struct {
	Item   Entry
	Amount uint32
}

func (Changed) isOutcome() {}
func (New) isOutcome()     {}
func (Removed) isOutcome() {}

// container is one item list — either the player's worn/carried
// inventory or one storage — with find/merge/swap-remove semantics
// shared by every concern above it.
type container struct {
	entries []Entry
}

func (c *container) find(uuid uint64) (Entry, int, bool) {
	for i, e := range c.entries {
		if e.UUID == uuid {
			return e, i, true
		}
	}
	return Entry{}, -1, false
}

func (c *container) findStack(itemID uint32) (Entry, int, bool) {
	for i, e := range c.entries {
		if e.Consumable && e.ItemID == itemID {
			return e, i, true
		}
	}
	return Entry{}, -1, false
}

func (c *container) removeAt(i int) {
	last := len(c.entries) - 1
	c.entries[i] = c.entries[last]
	c.entries = c.entries[:last]
}

// decrease implements spec §4.8's decrease(items, uuid, amount): a
// non-consumable decreased by more than 1 is an error, and decreasing to
// zero swap-removes the entry.
func decrease(c *container, uuid uint64, amount uint32) (Outcome, error) {
	e, idx, ok := c.find(uuid)
	if !ok {
		return nil, fmt.Errorf("inventory: item %d not found", uuid)
	}
	if !e.Consumable && amount > 1 {
		return nil, fmt.Errorf("inventory: cannot decrease non-consumable item %d by %d", uuid, amount)
	}
	if amount > e.Amount {
		return nil, fmt.Errorf("inventory: decrease amount %d exceeds stack of %d on item %d", amount, e.Amount, uuid)
	}

	moved := Entry{ItemID: e.ItemID, Amount: amount, Consumable: e.Consumable}
	if amount == e.Amount {
		c.removeAt(idx)
		return Removed{Item: moved, Amount: amount}, nil
	}
	e.Amount -= amount
	c.entries[idx] = e
	return Changed{UUID: e.UUID, NewAmount: e.Amount, Moved: amount, Item: moved}, nil
}

// increase implements spec §4.8's increase(items, item, amount): merges
// into an existing same-ItemID consumable stack, otherwise appends.
func increase(c *container, item Entry) Outcome {
	if item.Consumable {
		if existing, idx, ok := c.findStack(item.ItemID); ok {
			existing.Amount += item.Amount
			c.entries[idx] = existing
			return Changed{UUID: existing.UUID, NewAmount: existing.Amount, Moved: item.Amount, Item: item}
		}
	}
	c.entries = append(c.entries, item)
	return New{Item: item, Amount: item.Amount}
}

func outcomeEntry(o Outcome) Entry {
	switch v := o.(type) {
	case Changed:
		return v.Item
	case Removed:
		return v.Item
	case New:
		return v.Item
	}
	return Entry{}
}

// Account is one player's inventory plus all four storages and both
// meseta counters, all mediated by a single mutex — mirroring the
// party package's one-manager-one-lock shape rather than a lock per
// container, since moves routinely touch two containers at once.
type Account struct {
	mu            sync.Mutex
	uuidCounter   uint64
	inventory     container
	storages      map[StorageID]*container
	meseta        uint64
	storageMeseta uint64
}

func NewAccount() *Account {
	return &Account{storages: make(map[StorageID]*container)}
}

// NextUUID draws the next value from this account's monotonic uuid
// counter, used to mint a fresh uuid for the portion of a stack that
// crosses into another container.
func (a *Account) NextUUID() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uuidCounter++
	return a.uuidCounter
}

func (a *Account) storage(id StorageID) (*container, error) {
	switch id {
	case StorageDefault, StoragePremium, StorageExtend1, StorageCharacter:
		c, ok := a.storages[id]
		if !ok {
			c = &container{}
			a.storages[id] = c
		}
		return c, nil
	default:
		return nil, fmt.Errorf("inventory: unknown storage id %d", id)
	}
}

// AddToInventory seeds an entry directly into the carried inventory,
// raising the uuid counter to at least e.UUID so that uuids minted later
// do not collide with the seeded one.
func (a *Account) AddToInventory(e Entry) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e.UUID > a.uuidCounter {
		a.uuidCounter = e.UUID
	}
	return increase(&a.inventory, e)
}

// AddToStorage seeds an entry directly into one storage.
func (a *Account) AddToStorage(id StorageID, e Entry) (Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.storage(id)
	if err != nil {
		return nil, err
	}
	return increase(c, e), nil
}

func (a *Account) InventoryEntries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Entry(nil), a.inventory.entries...)
}

func (a *Account) StorageEntries(id StorageID) ([]Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.storage(id)
	if err != nil {
		return nil, err
	}
	return append([]Entry(nil), c.entries...), nil
}

func (a *Account) Meseta() (inv, storage uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meseta, a.storageMeseta
}

func (a *Account) SetMeseta(inv, storage uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.meseta, a.storageMeseta = inv, storage
}

// Equip marks the inventory entry identified by uuid as equipped (spec
// §4.10's palette update re-equip step). A uuid of 0 is a no-op, since an
// empty palette slot has nothing to equip.
func (a *Account) Equip(uuid uint64) (Entry, error) {
	if uuid == 0 {
		return Entry{}, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	e, idx, ok := a.inventory.find(uuid)
	if !ok {
		return Entry{}, fmt.Errorf("inventory: cannot equip unknown item %d", uuid)
	}
	e.Equipped = true
	a.inventory.entries[idx] = e
	return e, nil
}

// Unequip clears the equipped flag on uuid. A uuid of 0 is a no-op,
// since an empty palette slot has nothing to unequip.
func (a *Account) Unequip(uuid uint64) (Entry, error) {
	if uuid == 0 {
		return Entry{}, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	e, idx, ok := a.inventory.find(uuid)
	if !ok {
		return Entry{}, fmt.Errorf("inventory: cannot unequip unknown item %d", uuid)
	}
	e.Equipped = false
	a.inventory.entries[idx] = e
	return e, nil
}

// Discard decrements uuid by amount in the player's carried inventory,
// fully removing the entry once its amount reaches zero (spec §4.8).
func Discard(a *Account, uuid uint64, amount uint32) (Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return decrease(&a.inventory, uuid, amount)
}

// MoveItem is one triple of a batched move request.
type MoveItem struct {
	UUID      uint64
	Amount    uint32
	StorageID StorageID
}

// MoveResult pairs the source-side and destination-side outcome of one
// moved item, so a combined update packet can describe both halves.
type MoveResult struct {
	Source      Outcome
	Destination Outcome
	StorageID   StorageID
}

// MoveInvToStorage moves a batch of items out of the inventory and into
// each triple's named storage (spec §4.8: inv→storage).
func MoveInvToStorage(a *Account, moves []MoveItem) ([]MoveResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	results := make([]MoveResult, 0, len(moves))
	for _, mv := range moves {
		dst, err := a.storage(mv.StorageID)
		if err != nil {
			return nil, err
		}
		out, err := decrease(&a.inventory, mv.UUID, mv.Amount)
		if err != nil {
			return nil, err
		}
		moved := outcomeEntry(out)
		moved.UUID = a.nextUUIDLocked()
		in := increase(dst, moved)
		results = append(results, MoveResult{Source: out, Destination: in, StorageID: mv.StorageID})
	}
	return results, nil
}

// MoveStorageToInv moves a batch of items out of each triple's named
// storage and into the inventory (spec §4.8: storage→inv).
func MoveStorageToInv(a *Account, moves []MoveItem) ([]MoveResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	results := make([]MoveResult, 0, len(moves))
	for _, mv := range moves {
		src, err := a.storage(mv.StorageID)
		if err != nil {
			return nil, err
		}
		out, err := decrease(src, mv.UUID, mv.Amount)
		if err != nil {
			return nil, err
		}
		moved := outcomeEntry(out)
		moved.UUID = a.nextUUIDLocked()
		in := increase(&a.inventory, moved)
		results = append(results, MoveResult{Source: out, Destination: in, StorageID: mv.StorageID})
	}
	return results, nil
}

// MoveStorageToStorage moves a batch between two fixed storages (spec
// §4.8: storage→storage). from and to must differ.
func MoveStorageToStorage(a *Account, from, to StorageID, moves []MoveItem) ([]MoveResult, error) {
	if from == to {
		return nil, fmt.Errorf("inventory: source and destination storage are both %d", from)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	src, err := a.storage(from)
	if err != nil {
		return nil, err
	}
	dst, err := a.storage(to)
	if err != nil {
		return nil, err
	}

	results := make([]MoveResult, 0, len(moves))
	for _, mv := range moves {
		out, err := decrease(src, mv.UUID, mv.Amount)
		if err != nil {
			return nil, err
		}
		moved := outcomeEntry(out)
		moved.UUID = a.nextUUIDLocked()
		in := increase(dst, moved)
		results = append(results, MoveResult{Source: out, Destination: in, StorageID: to})
	}
	return results, nil
}

func (a *Account) nextUUIDLocked() uint64 {
	a.uuidCounter++
	return a.uuidCounter
}

// TransferMeseta moves min(available, requested) meseta between the
// inventory and storage pools (spec §4.8), returning the amount actually
// moved and both resulting balances.
func TransferMeseta(a *Account, toStorage bool, requested uint64) (moved, invBalance, storageBalance uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if toStorage {
		moved = min(a.meseta, requested)
		a.meseta -= moved
		a.storageMeseta += moved
	} else {
		moved = min(a.storageMeseta, requested)
		a.storageMeseta -= moved
		a.meseta += moved
	}
	return moved, a.meseta, a.storageMeseta
}

// MarshalCharacterBlob serializes the carried inventory, the character
// storage tier (14), both meseta counters, and the uuid counter into the
// opaque blob shippersist.CharacterRepo stores in its inventory column.
// The three account-wide storage tiers are deliberately excluded here:
// they are shared across every character on the account rather than owned
// by one, so they travel through the master's PutStorage/GetStorage
// instead (see MarshalStorageTier).
func (a *Account) MarshalCharacterBlob() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, a.uuidCounter)
	binary.Write(&buf, binary.LittleEndian, a.meseta)
	binary.Write(&buf, binary.LittleEndian, a.storageMeseta)
	writeEntries(&buf, a.inventory.entries)
	var charEntries []Entry
	if c, ok := a.storages[StorageCharacter]; ok {
		charEntries = c.entries
	}
	writeEntries(&buf, charEntries)
	return buf.Bytes()
}

// LoadCharacterBlob reconstructs an Account's inventory and character
// storage tier from a blob produced by MarshalCharacterBlob. The
// account-wide storage tiers are left empty; callers load those
// separately via LoadStorageTier once they've been fetched from the
// master.
func LoadCharacterBlob(data []byte) (*Account, error) {
	a := NewAccount()
	if len(data) == 0 {
		return a, nil
	}

	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &a.uuidCounter); err != nil {
		return nil, fmt.Errorf("inventory: read uuid counter: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &a.meseta); err != nil {
		return nil, fmt.Errorf("inventory: read meseta: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &a.storageMeseta); err != nil {
		return nil, fmt.Errorf("inventory: read storage meseta: %w", err)
	}
	entries, err := readEntries(r)
	if err != nil {
		return nil, fmt.Errorf("inventory: read carried entries: %w", err)
	}
	a.inventory.entries = entries

	charEntries, err := readEntries(r)
	if err != nil {
		return nil, fmt.Errorf("inventory: read character storage entries: %w", err)
	}
	a.storages[StorageCharacter] = &container{entries: charEntries}
	return a, nil
}

// MarshalStorageTier serializes one account-wide storage tier (default,
// premium, or extend1) for persistence through the master's PutStorage —
// these three tiers are shared across every character on the account, so
// they travel through masterproto rather than shippersist.CharacterRepo.
func (a *Account) MarshalStorageTier(id StorageID) ([]byte, error) {
	if id != StorageDefault && id != StoragePremium && id != StorageExtend1 {
		return nil, fmt.Errorf("inventory: %d is not an account-wide storage tier", id)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var entries []Entry
	if c, ok := a.storages[id]; ok {
		entries = c.entries
	}
	var buf bytes.Buffer
	writeEntries(&buf, entries)
	return buf.Bytes(), nil
}

// LoadStorageTier replaces the contents of one account-wide storage tier
// from a blob previously produced by MarshalStorageTier.
func (a *Account) LoadStorageTier(id StorageID, data []byte) error {
	if id != StorageDefault && id != StoragePremium && id != StorageExtend1 {
		return fmt.Errorf("inventory: %d is not an account-wide storage tier", id)
	}
	if len(data) == 0 {
		return nil
	}
	entries, err := readEntries(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("inventory: load storage tier %d: %w", id, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.storages[id] = &container{entries: entries}
	return nil
}

func writeEntries(w *bytes.Buffer, entries []Entry) {
	binary.Write(w, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		binary.Write(w, binary.LittleEndian, e.UUID)
		binary.Write(w, binary.LittleEndian, e.ItemID)
		binary.Write(w, binary.LittleEndian, e.Amount)
		flags := byte(0)
		if e.Consumable {
			flags |= 1
		}
		if e.Equipped {
			flags |= 2
		}
		w.WriteByte(flags)
	}
}

func readEntries(r *bytes.Reader) ([]Entry, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, n)
	for i := uint32(0); i < n; i++ {
		var e Entry
		var flags byte
		if err := binary.Read(r, binary.LittleEndian, &e.UUID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &e.ItemID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &e.Amount); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
			return nil, err
		}
		e.Consumable = flags&1 != 0
		e.Equipped = flags&2 != 0
		entries = append(entries, e)
	}
	return entries, nil
}

// PacketBuilder constructs every wire packet the inventory subsystem
// emits, keeping this package free of any one platform's encoding —
// the same decoupling worldmap.PacketBuilder and party.PacketBuilder use.
type PacketBuilder interface {
	ItemNames(language string, names []ItemName) []byte
	LoadPlayerInventory(entries []Entry) []byte
	LoadEquipped(entries []Entry) []byte
	LoadStorages(storages map[StorageID][]Entry) []byte
	InventoryUpdate(outcome Outcome) []byte
	StorageUpdate(id StorageID, outcome Outcome) []byte
	MoveUpdate(results []MoveResult) []byte
	DiscardUpdate(outcome Outcome) []byte
	MesetaBalance(invBalance, storageBalance uint64) []byte
}

type storageEntry struct {
	StorageID StorageID
	Entry     Entry
}

// InitialLoad runs spec §4.8's map-loaded streaming sequence: item names
// for any ItemId not yet in seenNames, then LoadPlayerInventory, then
// LoadEquipped, then a combined (and, if large, paged) LoadStorages.
func InitialLoad(a *Account, catalog ItemCatalog, language string, seenNames map[uint32]bool, builder PacketBuilder, send func([]byte) error, log *zap.Logger) error {
	a.mu.Lock()
	invSnapshot := append([]Entry(nil), a.inventory.entries...)
	storageSnapshot := make(map[StorageID][]Entry, len(a.storages))
	for id, c := range a.storages {
		storageSnapshot[id] = append([]Entry(nil), c.entries...)
	}
	a.mu.Unlock()

	var names []ItemName
	for _, e := range invSnapshot {
		appendUnseenName(&names, seenNames, catalog, e.ItemID, language, log)
	}
	for _, entries := range storageSnapshot {
		for _, e := range entries {
			appendUnseenName(&names, seenNames, catalog, e.ItemID, language, log)
		}
	}
	if len(names) > 0 {
		if err := send(builder.ItemNames(language, names)); err != nil {
			return err
		}
	}

	if err := send(builder.LoadPlayerInventory(invSnapshot)); err != nil {
		return err
	}
	if err := send(builder.LoadEquipped(equippedOnly(invSnapshot))); err != nil {
		return err
	}
	return sendStoragesPaged(storageSnapshot, builder, send)
}

func appendUnseenName(names *[]ItemName, seen map[uint32]bool, catalog ItemCatalog, itemID uint32, language string, log *zap.Logger) {
	if seen[itemID] {
		return
	}
	name, ok := catalog.Name(itemID, language)
	if !ok {
		if log != nil {
			log.Debug("unknown item id, skipping name stream", zap.Uint32("item_id", itemID))
		}
		return
	}
	seen[itemID] = true
	*names = append(*names, ItemName{ItemID: itemID, Name: name})
}

func equippedOnly(entries []Entry) []Entry {
	out := make([]Entry, 0)
	for _, e := range entries {
		if e.Equipped {
			out = append(out, e)
		}
	}
	return out
}

func sendStoragesPaged(storages map[StorageID][]Entry, builder PacketBuilder, send func([]byte) error) error {
	total := 0
	for _, entries := range storages {
		total += len(entries)
	}
	if total <= MaxStorageItemsPerFrame {
		return send(builder.LoadStorages(storages))
	}

	flat := flattenStorages(storages)
	for start := 0; start < len(flat); start += MaxStorageItemsPerFrame {
		end := min(start+MaxStorageItemsPerFrame, len(flat))
		if err := send(builder.LoadStorages(rebucket(flat[start:end]))); err != nil {
			return err
		}
	}
	return nil
}

func flattenStorages(storages map[StorageID][]Entry) []storageEntry {
	ids := make([]StorageID, 0, len(storages))
	for id := range storages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	flat := make([]storageEntry, 0)
	for _, id := range ids {
		for _, e := range storages[id] {
			flat = append(flat, storageEntry{StorageID: id, Entry: e})
		}
	}
	return flat
}

func rebucket(chunk []storageEntry) map[StorageID][]Entry {
	out := make(map[StorageID][]Entry)
	for _, se := range chunk {
		out[se.StorageID] = append(out[se.StorageID], se.Entry)
	}
	return out
}
