package inventory

import "testing"

func TestDecreaseNonConsumableByMoreThanOneIsError(t *testing.T) {
	acc := NewAccount()
	acc.AddToInventory(Entry{UUID: 1, ItemID: 100, Amount: 1, Consumable: false})

	if _, err := Discard(acc, 1, 2); err == nil {
		t.Fatalf("expected error decreasing a non-consumable by more than one")
	}
}

func TestDecreaseToZeroRemovesViaSwapRemove(t *testing.T) {
	acc := NewAccount()
	acc.AddToInventory(Entry{UUID: 1, ItemID: 100, Amount: 1, Consumable: false})
	acc.AddToInventory(Entry{UUID: 2, ItemID: 200, Amount: 1, Consumable: false})

	out, err := Discard(acc, 1, 1)
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	removed, ok := out.(Removed)
	if !ok {
		t.Fatalf("expected Removed outcome, got %T", out)
	}
	if removed.Item.ItemID != 100 {
		t.Fatalf("expected removed item 100, got %d", removed.Item.ItemID)
	}

	entries := acc.InventoryEntries()
	if len(entries) != 1 || entries[0].UUID != 2 {
		t.Fatalf("expected only item 2 remaining, got %+v", entries)
	}
}

func TestDecreasePartialStackReportsChanged(t *testing.T) {
	acc := NewAccount()
	acc.AddToInventory(Entry{UUID: 1, ItemID: 300, Amount: 10, Consumable: true})

	out, err := Discard(acc, 1, 4)
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	changed, ok := out.(Changed)
	if !ok {
		t.Fatalf("expected Changed outcome, got %T", out)
	}
	if changed.NewAmount != 6 || changed.Moved != 4 {
		t.Fatalf("expected new_amount=6 moved=4, got %+v", changed)
	}
}

func TestIncreaseMergesConsumableStacks(t *testing.T) {
	acc := NewAccount()
	acc.AddToInventory(Entry{UUID: 1, ItemID: 300, Amount: 5, Consumable: true})

	out := acc.AddToInventory(Entry{ItemID: 300, Amount: 3, Consumable: true})
	changed, ok := out.(Changed)
	if !ok {
		t.Fatalf("expected Changed outcome for merged stack, got %T", out)
	}
	if changed.NewAmount != 8 {
		t.Fatalf("expected merged stack amount 8, got %d", changed.NewAmount)
	}
	if len(acc.InventoryEntries()) != 1 {
		t.Fatalf("expected a single merged slot, got %d", len(acc.InventoryEntries()))
	}
}

func TestIncreaseAppendsNonConsumable(t *testing.T) {
	acc := NewAccount()
	out := acc.AddToInventory(Entry{UUID: 1, ItemID: 100, Amount: 1, Consumable: false})
	if _, ok := out.(New); !ok {
		t.Fatalf("expected New outcome for a fresh entry, got %T", out)
	}
}

func TestEquipAndUnequipToggleFlagOnExistingEntry(t *testing.T) {
	acc := NewAccount()
	acc.AddToInventory(Entry{UUID: 1, ItemID: 100, Amount: 1})

	if _, err := acc.Equip(1); err != nil {
		t.Fatalf("equip: %v", err)
	}
	entries := acc.InventoryEntries()
	if !entries[0].Equipped {
		t.Fatalf("expected item 1 to be equipped")
	}

	if _, err := acc.Unequip(1); err != nil {
		t.Fatalf("unequip: %v", err)
	}
	entries = acc.InventoryEntries()
	if entries[0].Equipped {
		t.Fatalf("expected item 1 to be unequipped")
	}
}

func TestEquipUnknownItemIsError(t *testing.T) {
	acc := NewAccount()
	if _, err := acc.Equip(999); err == nil {
		t.Fatalf("expected error equipping an unknown uuid")
	}
}

func TestEquipZeroUUIDIsNoOp(t *testing.T) {
	acc := NewAccount()
	if _, err := acc.Equip(0); err != nil {
		t.Fatalf("expected equipping uuid 0 to be a no-op, got %v", err)
	}
	if _, err := acc.Unequip(0); err != nil {
		t.Fatalf("expected unequipping uuid 0 to be a no-op, got %v", err)
	}
}

func TestUnknownStorageIDIsHardError(t *testing.T) {
	acc := NewAccount()
	if _, err := acc.AddToStorage(StorageID(99), Entry{ItemID: 1, Amount: 1}); err == nil {
		t.Fatalf("expected error for unknown storage id")
	}
}

func TestMoveInvToStorageMintsFreshUUIDForPartialStack(t *testing.T) {
	acc := NewAccount()
	acc.AddToInventory(Entry{UUID: 1, ItemID: 300, Amount: 10, Consumable: true})

	results, err := MoveInvToStorage(acc, []MoveItem{{UUID: 1, Amount: 4, StorageID: StorageDefault}})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	dst, ok := results[0].Destination.(New)
	if !ok {
		t.Fatalf("expected a new entry in the empty destination storage, got %T", results[0].Destination)
	}
	if dst.Item.UUID == 1 {
		t.Fatalf("expected the moved portion to receive a fresh uuid distinct from the source")
	}

	storageEntries, err := acc.StorageEntries(StorageDefault)
	if err != nil {
		t.Fatalf("storage entries: %v", err)
	}
	if len(storageEntries) != 1 || storageEntries[0].Amount != 4 {
		t.Fatalf("expected 4 units moved into storage, got %+v", storageEntries)
	}

	invEntries := acc.InventoryEntries()
	if len(invEntries) != 1 || invEntries[0].Amount != 6 {
		t.Fatalf("expected 6 units remaining in inventory, got %+v", invEntries)
	}
}

func TestMoveStorageToStorageRejectsSameSourceAndDestination(t *testing.T) {
	acc := NewAccount()
	if _, err := MoveStorageToStorage(acc, StorageDefault, StorageDefault, nil); err == nil {
		t.Fatalf("expected error moving a storage to itself")
	}
}

func TestMoveStorageToStorage(t *testing.T) {
	acc := NewAccount()
	if _, err := acc.AddToStorage(StorageDefault, Entry{UUID: 1, ItemID: 100, Amount: 1, Consumable: false}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	results, err := MoveStorageToStorage(acc, StorageDefault, StoragePremium, []MoveItem{{UUID: 1, Amount: 1, StorageID: StorageDefault}})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result")
	}
	premium, err := acc.StorageEntries(StoragePremium)
	if err != nil {
		t.Fatalf("premium entries: %v", err)
	}
	if len(premium) != 1 || premium[0].ItemID != 100 {
		t.Fatalf("expected item 100 moved into premium storage, got %+v", premium)
	}
	def, err := acc.StorageEntries(StorageDefault)
	if err != nil {
		t.Fatalf("default entries: %v", err)
	}
	if len(def) != 0 {
		t.Fatalf("expected default storage emptied, got %+v", def)
	}
}

func TestTransferMesetaClampsToAvailable(t *testing.T) {
	acc := NewAccount()
	acc.SetMeseta(100, 0)

	moved, invBal, storageBal := TransferMeseta(acc, true, 500)
	if moved != 100 || invBal != 0 || storageBal != 100 {
		t.Fatalf("expected transfer clamped to available 100, got moved=%d inv=%d storage=%d", moved, invBal, storageBal)
	}
}

type fakeCatalog struct{ names map[uint32]string }

func (f fakeCatalog) Name(itemID uint32, language string) (string, bool) {
	n, ok := f.names[itemID]
	return n, ok
}

type fakeBuilder struct {
	loadStoragesCalls int
}

func (f *fakeBuilder) ItemNames(language string, names []ItemName) []byte { return []byte("item-names") }
func (f *fakeBuilder) LoadPlayerInventory(entries []Entry) []byte         { return []byte("load-inventory") }
func (f *fakeBuilder) LoadEquipped(entries []Entry) []byte               { return []byte("load-equipped") }
func (f *fakeBuilder) LoadStorages(storages map[StorageID][]Entry) []byte {
	f.loadStoragesCalls++
	return []byte("load-storages")
}
func (f *fakeBuilder) InventoryUpdate(outcome Outcome) []byte         { return []byte("inv-update") }
func (f *fakeBuilder) StorageUpdate(id StorageID, outcome Outcome) []byte { return []byte("storage-update") }
func (f *fakeBuilder) MoveUpdate(results []MoveResult) []byte        { return []byte("move-update") }
func (f *fakeBuilder) DiscardUpdate(outcome Outcome) []byte          { return []byte("discard-update") }
func (f *fakeBuilder) MesetaBalance(inv, storage uint64) []byte      { return []byte("meseta-balance") }

func TestInitialLoadSkipsAlreadySeenNames(t *testing.T) {
	acc := NewAccount()
	acc.AddToInventory(Entry{UUID: 1, ItemID: 100, Amount: 1, Consumable: false, Equipped: true})

	catalog := fakeCatalog{names: map[uint32]string{100: "Sword"}}
	seen := map[uint32]bool{100: true}
	builder := &fakeBuilder{}

	var sent [][]byte
	send := func(pkt []byte) error {
		sent = append(sent, pkt)
		return nil
	}

	if err := InitialLoad(acc, catalog, "en", seen, builder, send, nil); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	for _, pkt := range sent {
		if string(pkt) == "item-names" {
			t.Fatalf("expected no item-name packet when the name was already seen")
		}
	}
	if builder.loadStoragesCalls != 1 {
		t.Fatalf("expected exactly one LoadStorages call for a small account, got %d", builder.loadStoragesCalls)
	}
}

func TestInitialLoadStreamsUnseenNameThenInventoryThenEquippedThenStorages(t *testing.T) {
	acc := NewAccount()
	acc.AddToInventory(Entry{UUID: 1, ItemID: 100, Amount: 1, Consumable: false})

	catalog := fakeCatalog{names: map[uint32]string{100: "Sword"}}
	seen := map[uint32]bool{}
	builder := &fakeBuilder{}

	var sent []string
	send := func(pkt []byte) error {
		sent = append(sent, string(pkt))
		return nil
	}

	if err := InitialLoad(acc, catalog, "en", seen, builder, send, nil); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	want := []string{"item-names", "load-inventory", "load-equipped", "load-storages"}
	if len(sent) != len(want) {
		t.Fatalf("expected %v, got %v", want, sent)
	}
	for i, w := range want {
		if sent[i] != w {
			t.Fatalf("expected packet %d to be %q, got %q", i, w, sent[i])
		}
	}
	if !seen[100] {
		t.Fatalf("expected item id 100 to be marked seen after streaming its name")
	}
}

func TestInitialLoadPagesLargeStorages(t *testing.T) {
	acc := NewAccount()
	for i := 0; i < MaxStorageItemsPerFrame+10; i++ {
		if _, err := acc.AddToStorage(StorageDefault, Entry{UUID: uint64(i + 1), ItemID: uint32(i + 1), Amount: 1}); err != nil {
			t.Fatalf("seed storage: %v", err)
		}
	}

	catalog := fakeCatalog{names: map[uint32]string{}}
	seen := map[uint32]bool{}
	builder := &fakeBuilder{}
	send := func(pkt []byte) error { return nil }

	if err := InitialLoad(acc, catalog, "en", seen, builder, send, nil); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	if builder.loadStoragesCalls != 2 {
		t.Fatalf("expected storage stream split across 2 frames, got %d", builder.loadStoragesCalls)
	}
}
