package palette

import (
	"testing"

	"github.com/shipcluster/server/internal/inventory"
)

type fakeBuilder struct {
	lastChangeIndex  uint8
	lastChangeUUID   uint64
	lastEquippedUUID uint64
}

func (f *fakeBuilder) FullPalette(s Snapshot) []byte { return []byte("full-palette") }
func (f *fakeBuilder) ChangeWeaponPalette(index uint8, weaponUUID uint64) []byte {
	f.lastChangeIndex, f.lastChangeUUID = index, weaponUUID
	return []byte("change-weapon")
}
func (f *fakeBuilder) EquippedWeapon(weaponUUID uint64) []byte {
	f.lastEquippedUUID = weaponUUID
	return []byte("equipped-weapon")
}

func newTestSet(t *testing.T) (*Set, *inventory.Account) {
	t.Helper()
	acc := inventory.NewAccount()
	acc.AddToInventory(inventory.Entry{UUID: 1, ItemID: 100, Amount: 1})
	acc.AddToInventory(inventory.Entry{UUID: 2, ItemID: 200, Amount: 1})
	set := NewSet(acc, &fakeBuilder{})
	return set, acc
}

func TestSetPaletteRejectsOutOfRangeIndex(t *testing.T) {
	set, _ := newTestSet(t)
	if _, err := set.SetPalette(6); err == nil {
		t.Fatalf("expected error for index beyond 5")
	}
}

func TestUpdatePaletteReequipsSelectedSlot(t *testing.T) {
	set, acc := newTestSet(t)

	if _, err := set.UpdatePalette([6]uint64{1, 0, 0, 0, 0, 0}); err != nil {
		t.Fatalf("update palette: %v", err)
	}
	entries := acc.InventoryEntries()
	var item1 inventory.Entry
	for _, e := range entries {
		if e.UUID == 1 {
			item1 = e
		}
	}
	if !item1.Equipped {
		t.Fatalf("expected item 1 to be equipped after selecting it via slot 0")
	}
}

func TestSetPaletteUnequipsPreviousAndEquipsNew(t *testing.T) {
	set, acc := newTestSet(t)
	if _, err := set.UpdatePalette([6]uint64{1, 2, 0, 0, 0, 0}); err != nil {
		t.Fatalf("update palette: %v", err)
	}

	if _, err := set.SetPalette(1); err != nil {
		t.Fatalf("set palette: %v", err)
	}

	entries := acc.InventoryEntries()
	var item1, item2 inventory.Entry
	for _, e := range entries {
		switch e.UUID {
		case 1:
			item1 = e
		case 2:
			item2 = e
		}
	}
	if item1.Equipped {
		t.Fatalf("expected item 1 to be unequipped after switching away from slot 0")
	}
	if !item2.Equipped {
		t.Fatalf("expected item 2 to be equipped after switching to slot 1")
	}
}

func TestUpdatePaletteRejectsUnknownItemAndDoesNotMutate(t *testing.T) {
	set, _ := newTestSet(t)

	_, err := set.UpdatePalette([6]uint64{999, 0, 0, 0, 0, 0})
	if err == nil {
		t.Fatalf("expected error equipping an unknown item uuid")
	}
	if set.weapon != ([6]uint64{}) {
		t.Fatalf("expected the weapon array to be unchanged after a rejected update, got %v", set.weapon)
	}

	pkt := set.SendFullPalette()
	if string(pkt) != "full-palette" {
		t.Fatalf("unexpected packet: %q", pkt)
	}
}

func TestSetSubPaletteValidatesBookAndIndex(t *testing.T) {
	set, _ := newTestSet(t)
	if err := set.SetSubPalette(2, 0); err == nil {
		t.Fatalf("expected error for book index beyond 1")
	}
	if err := set.SetSubPalette(0, 6); err == nil {
		t.Fatalf("expected error for subpalette index beyond 5")
	}
	if err := set.SetSubPalette(1, 5); err != nil {
		t.Fatalf("expected valid book/index to succeed: %v", err)
	}
}

func TestUpdateSubPaletteStoresPerBookArray(t *testing.T) {
	set, _ := newTestSet(t)
	if err := set.UpdateSubPalette(1, [6]uint64{9, 8, 7, 6, 5, 4}); err != nil {
		t.Fatalf("update subpalette: %v", err)
	}
	if set.sub[1][0] != 9 {
		t.Fatalf("expected book 1 slot 0 to be 9, got %d", set.sub[1][0])
	}
	if set.sub[0][0] != 0 {
		t.Fatalf("expected book 0 to remain untouched, got %d", set.sub[0][0])
	}
}

func TestSetDefaultPAsCopiesInput(t *testing.T) {
	set, _ := newTestSet(t)
	pas := []uint32{1, 2, 3}
	set.SetDefaultPAs(pas)
	pas[0] = 99

	snapshot := set.SendFullPalette()
	if string(snapshot) != "full-palette" {
		t.Fatalf("unexpected packet: %q", snapshot)
	}
	if set.defaultPAs[0] != 1 {
		t.Fatalf("expected SetDefaultPAs to copy its input, got %d", set.defaultPAs[0])
	}
}

func TestEquippedWeaponReflectsSelectedSlot(t *testing.T) {
	set, _ := newTestSet(t)
	builder := &fakeBuilder{}
	set.builder = builder
	if _, err := set.UpdatePalette([6]uint64{1, 0, 0, 0, 0, 0}); err != nil {
		t.Fatalf("update palette: %v", err)
	}
	set.EquippedWeapon()
	if builder.lastEquippedUUID != 1 {
		t.Fatalf("expected EquippedWeapon to report uuid 1, got %d", builder.lastEquippedUUID)
	}
}
