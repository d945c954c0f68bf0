package handler

import (
	"github.com/shipcluster/server/internal/inventory"
	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/palette"
	"github.com/shipcluster/server/internal/party"
	"github.com/shipcluster/server/internal/worldmap"
)

// Opcodes. The spec names no wire format for any of these — they are
// this server's own protocol, laid out the way the teacher lays out its
// opcode table (one small uint16 constant block per packet family).
const (
	opLevelLoad             uint16 = 0x1001
	opSetPlayerID           uint16 = 0x1002
	opCharacterSpawn        uint16 = 0x1003
	opStaticObject          uint16 = 0x1004
	opOtherCharacterSpawn   uint16 = 0x1005
	opEquipmentAndPalette   uint16 = 0x1006
	opRemoveObject          uint16 = 0x1007
	opEnterWorld            uint16 = 0x1008

	opPartyNewInvite        uint16 = 0x2001
	opPartyInviteResult     uint16 = 0x2002
	opPartyAddMember        uint16 = 0x2003
	opPartyInit             uint16 = 0x2004
	opPartySettings         uint16 = 0x2005
	opPartyColor            uint16 = 0x2006
	opPartySetupFinish      uint16 = 0x2007
	opPartyLeaderChanged    uint16 = 0x2008
	opPartySettingsChanged  uint16 = 0x2009
	opPartyKickedMember     uint16 = 0x200A
	opPartyDisbanded        uint16 = 0x200B
	opPartyMemberLeft       uint16 = 0x200C
	opPartyBusyStatus       uint16 = 0x200D
	opPartySetQuest         uint16 = 0x200E
	opPartyQuestInfo        uint16 = 0x200F

	opItemNames       uint16 = 0x3001
	opLoadInventory   uint16 = 0x3002
	opLoadEquipped    uint16 = 0x3003
	opLoadStorages    uint16 = 0x3004
	opInventoryUpdate uint16 = 0x3005
	opStorageUpdate   uint16 = 0x3006
	opMoveUpdate      uint16 = 0x3007
	opDiscardUpdate   uint16 = 0x3008
	opMesetaBalance   uint16 = 0x3009

	opFullPalette         uint16 = 0x3101
	opChangeWeaponPalette uint16 = 0x3102
	opEquippedWeapon      uint16 = 0x3103

	opMoveInvToStorage     uint16 = 0x3201
	opMoveStorageToInv     uint16 = 0x3202
	opMoveStorageToStorage uint16 = 0x3203
	opDiscardItem          uint16 = 0x3204
	opTransferMeseta       uint16 = 0x3205
	opSetPalette           uint16 = 0x3206
	opUpdatePalette        uint16 = 0x3207

	opQuestAvailable uint16 = 0x3301
	opQuestList      uint16 = 0x3302
	opQuestAccept    uint16 = 0x3303

	opChatMessage    uint16 = 0x3401
	opSymbolArt      uint16 = 0x3402
	opMovement       uint16 = 0x3403
	opMovementEnd    uint16 = 0x3404
	opSymbolArtUpload uint16 = 0x3405

	// Auth / login / character-select / block-switch family. These gate
	// spec §4.5's state ladder below StateInGame, so they live in their
	// own range rather than alongside the in-game-only families above.
	opSegaIDLogin         uint16 = 0x4001
	opUserLogin           uint16 = 0x4002
	opLoginResponse       uint16 = 0x4003
	opNicknameRequest     uint16 = 0x4004
	opNicknameResponse    uint16 = 0x4005
	opUserInfo            uint16 = 0x4006
	opStartGame           uint16 = 0x4007
	opCharacterList       uint16 = 0x4008
	opCharacterListResult uint16 = 0x4009
	opBlockSwitchRequest  uint16 = 0x400A
	opBlockSwitchResponse uint16 = 0x400B
	opBlockLogin          uint16 = 0x400C
)

// wireBuilder is the single concrete implementation of every PacketBuilder
// interface this server needs (worldmap, party, inventory, palette). The
// teacher keeps one packet-building file per opcode family rather than one
// struct per consumer package; collecting them onto one type here serves
// the same purpose — a single place owning the wire format — without
// forcing each gameplay package to depend on wire concerns.
type wireBuilder struct{}

var builder = wireBuilder{}

// --- worldmap.PacketBuilder ---

func (wireBuilder) LevelLoad(mapName string, receiver worldmap.ObjectID) []byte {
	w := packet.NewWriterWithOpcode(opLevelLoad)
	w.WriteD(uint32(receiver))
	w.WriteS(mapName)
	return w.Bytes()
}

func (wireBuilder) SetPlayerID(id worldmap.ObjectID) []byte {
	w := packet.NewWriterWithOpcode(opSetPlayerID)
	w.WriteD(uint32(id))
	return w.Bytes()
}

func (wireBuilder) CharacterSpawn(id worldmap.ObjectID, x, y int32, isMe bool) []byte {
	w := packet.NewWriterWithOpcode(opCharacterSpawn)
	w.WriteD(uint32(id))
	w.WriteD(uint32(x))
	w.WriteD(uint32(y))
	if isMe {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	return w.Bytes()
}

func (wireBuilder) StaticObject(obj worldmap.StaticObject, toVita bool) []byte {
	w := packet.NewWriterWithOpcode(opStaticObject)
	w.WriteD(uint32(obj.ID))
	w.WriteS(obj.Kind)
	w.WriteS(obj.Name)
	w.WriteBytes(obj.Data)
	return w.Bytes()
}

func (wireBuilder) OtherCharacterSpawn(id worldmap.ObjectID) []byte {
	w := packet.NewWriterWithOpcode(opOtherCharacterSpawn)
	w.WriteD(uint32(id))
	return w.Bytes()
}

func (wireBuilder) EquipmentAndPalette(id worldmap.ObjectID) []byte {
	w := packet.NewWriterWithOpcode(opEquipmentAndPalette)
	w.WriteD(uint32(id))
	return w.Bytes()
}

func (wireBuilder) RemoveObject(id worldmap.ObjectID) []byte {
	w := packet.NewWriterWithOpcode(opRemoveObject)
	w.WriteD(uint32(id))
	return w.Bytes()
}

// --- party.PacketBuilder ---

func (wireBuilder) NewInvite(partyID uint32, inviterNickname string) []byte {
	w := packet.NewWriterWithOpcode(opPartyNewInvite)
	w.WriteD(partyID)
	w.WriteS(inviterNickname)
	return w.Bytes()
}

func (wireBuilder) PartyInviteResult(inviteeNickname string, accepted bool) []byte {
	w := packet.NewWriterWithOpcode(opPartyInviteResult)
	w.WriteS(inviteeNickname)
	if accepted {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	return w.Bytes()
}

func (wireBuilder) AddMember(m party.MemberInfo) []byte {
	w := packet.NewWriterWithOpcode(opPartyAddMember)
	writeMemberInfo(w, m)
	return w.Bytes()
}

func (wireBuilder) PartyInit(roster []party.MemberInfo) []byte {
	w := packet.NewWriterWithOpcode(opPartyInit)
	w.WriteC(byte(len(roster)))
	for _, m := range roster {
		writeMemberInfo(w, m)
	}
	return w.Bytes()
}

func writeMemberInfo(w *packet.Writer, m party.MemberInfo) {
	w.WriteD(m.CharacterID)
	w.WriteS(m.Nickname)
	w.WriteC(m.Class)
	w.WriteC(m.Sublevels[0])
	w.WriteC(m.Sublevels[1])
	w.WriteC(m.Sublevels[2])
	w.WriteD(m.MapID)
}

func (wireBuilder) PartySettings(s party.Settings) []byte {
	w := packet.NewWriterWithOpcode(opPartySettings)
	w.WriteC(s.Mode)
	return w.Bytes()
}

func (wireBuilder) PartyColor(color uint8) []byte {
	w := packet.NewWriterWithOpcode(opPartyColor)
	w.WriteC(color)
	return w.Bytes()
}

func (wireBuilder) PartySetupFinish() []byte {
	return packet.NewWriterWithOpcode(opPartySetupFinish).Bytes()
}

func (wireBuilder) LeaderChanged(newLeaderID uint32) []byte {
	w := packet.NewWriterWithOpcode(opPartyLeaderChanged)
	w.WriteD(newLeaderID)
	return w.Bytes()
}

func (wireBuilder) SettingsChanged(s party.Settings) []byte {
	w := packet.NewWriterWithOpcode(opPartySettingsChanged)
	w.WriteC(s.Mode)
	return w.Bytes()
}

func (wireBuilder) KickedMember(kickedID uint32) []byte {
	w := packet.NewWriterWithOpcode(opPartyKickedMember)
	w.WriteD(kickedID)
	return w.Bytes()
}

func (wireBuilder) PartyDisbandedMarker() []byte {
	return packet.NewWriterWithOpcode(opPartyDisbanded).Bytes()
}

func (wireBuilder) PartyMemberLeft(leftID uint32) []byte {
	w := packet.NewWriterWithOpcode(opPartyMemberLeft)
	w.WriteD(leftID)
	return w.Bytes()
}

func (wireBuilder) BusyStatus(senderID uint32, busy bool) []byte {
	w := packet.NewWriterWithOpcode(opPartyBusyStatus)
	w.WriteD(senderID)
	if busy {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	return w.Bytes()
}

func (wireBuilder) SetPartyQuest(questMapObjID uint32) []byte {
	w := packet.NewWriterWithOpcode(opPartySetQuest)
	w.WriteD(questMapObjID)
	return w.Bytes()
}

func (wireBuilder) SetQuestInfo(questMapObjID uint32) []byte {
	w := packet.NewWriterWithOpcode(opPartyQuestInfo)
	w.WriteD(questMapObjID)
	return w.Bytes()
}

// --- inventory.PacketBuilder ---

func writeEntry(w *packet.Writer, e inventory.Entry) {
	w.WriteQ(e.UUID)
	w.WriteD(e.ItemID)
	w.WriteD(e.Amount)
	flags := byte(0)
	if e.Consumable {
		flags |= 1
	}
	if e.Equipped {
		flags |= 2
	}
	w.WriteC(flags)
}

func writeOutcome(w *packet.Writer, o inventory.Outcome) {
	switch v := o.(type) {
	case inventory.Changed:
		w.WriteC(0)
		w.WriteQ(v.UUID)
		w.WriteD(v.NewAmount)
		w.WriteD(v.Moved)
		writeEntry(w, v.Item)
	case inventory.New:
		w.WriteC(1)
		writeEntry(w, v.Item)
		w.WriteD(v.Amount)
	case inventory.Removed:
		w.WriteC(2)
		writeEntry(w, v.Item)
		w.WriteD(v.Amount)
	default:
		w.WriteC(0xFF)
	}
}

func (wireBuilder) ItemNames(language string, names []inventory.ItemName) []byte {
	w := packet.NewWriterWithOpcode(opItemNames)
	w.WriteS(language)
	w.WriteH(uint16(len(names)))
	for _, n := range names {
		w.WriteD(n.ItemID)
		w.WriteS(n.Name)
	}
	return w.Bytes()
}

func (wireBuilder) LoadPlayerInventory(entries []inventory.Entry) []byte {
	w := packet.NewWriterWithOpcode(opLoadInventory)
	w.WriteH(uint16(len(entries)))
	for _, e := range entries {
		writeEntry(w, e)
	}
	return w.Bytes()
}

func (wireBuilder) LoadEquipped(entries []inventory.Entry) []byte {
	w := packet.NewWriterWithOpcode(opLoadEquipped)
	w.WriteH(uint16(len(entries)))
	for _, e := range entries {
		writeEntry(w, e)
	}
	return w.Bytes()
}

func (wireBuilder) LoadStorages(storages map[inventory.StorageID][]inventory.Entry) []byte {
	w := packet.NewWriterWithOpcode(opLoadStorages)
	w.WriteC(byte(len(storages)))
	for id, entries := range storages {
		w.WriteC(byte(id))
		w.WriteH(uint16(len(entries)))
		for _, e := range entries {
			writeEntry(w, e)
		}
	}
	return w.Bytes()
}

func (wireBuilder) InventoryUpdate(outcome inventory.Outcome) []byte {
	w := packet.NewWriterWithOpcode(opInventoryUpdate)
	writeOutcome(w, outcome)
	return w.Bytes()
}

func (wireBuilder) StorageUpdate(id inventory.StorageID, outcome inventory.Outcome) []byte {
	w := packet.NewWriterWithOpcode(opStorageUpdate)
	w.WriteC(byte(id))
	writeOutcome(w, outcome)
	return w.Bytes()
}

func (wireBuilder) MoveUpdate(results []inventory.MoveResult) []byte {
	w := packet.NewWriterWithOpcode(opMoveUpdate)
	w.WriteC(byte(len(results)))
	for _, r := range results {
		w.WriteC(byte(r.StorageID))
		writeOutcome(w, r.Source)
		writeOutcome(w, r.Destination)
	}
	return w.Bytes()
}

func (wireBuilder) DiscardUpdate(outcome inventory.Outcome) []byte {
	w := packet.NewWriterWithOpcode(opDiscardUpdate)
	writeOutcome(w, outcome)
	return w.Bytes()
}

func (wireBuilder) MesetaBalance(invBalance, storageBalance uint64) []byte {
	w := packet.NewWriterWithOpcode(opMesetaBalance)
	w.WriteQ(invBalance)
	w.WriteQ(storageBalance)
	return w.Bytes()
}

// --- palette.PacketBuilder ---

func (wireBuilder) FullPalette(s palette.Snapshot) []byte {
	w := packet.NewWriterWithOpcode(opFullPalette)
	w.WriteC(s.Selected)
	for _, uuid := range s.Weapon {
		w.WriteQ(uuid)
	}
	w.WriteC(s.SubBook)
	w.WriteC(s.SubSelected)
	for _, book := range s.Sub {
		for _, uuid := range book {
			w.WriteQ(uuid)
		}
	}
	w.WriteC(byte(len(s.DefaultPAs)))
	for _, pa := range s.DefaultPAs {
		w.WriteD(pa)
	}
	return w.Bytes()
}

func (wireBuilder) ChangeWeaponPalette(index uint8, weaponUUID uint64) []byte {
	w := packet.NewWriterWithOpcode(opChangeWeaponPalette)
	w.WriteC(index)
	w.WriteQ(weaponUUID)
	return w.Bytes()
}

func (wireBuilder) EquippedWeapon(weaponUUID uint64) []byte {
	w := packet.NewWriterWithOpcode(opEquippedWeapon)
	w.WriteQ(weaponUUID)
	return w.Bytes()
}

// --- auth / character-select packets ---
// No cross-package PacketBuilder interface is needed for this family:
// only this package's own auth handlers send or expect them, unlike the
// worldmap/party/inventory/palette families above.

func (wireBuilder) LoginResponse(ok bool) []byte {
	w := packet.NewWriterWithOpcode(opLoginResponse)
	if ok {
		w.WriteC(0)
	} else {
		w.WriteC(1)
	}
	return w.Bytes()
}

func (wireBuilder) NicknameRequest(errorCode byte) []byte {
	w := packet.NewWriterWithOpcode(opNicknameRequest)
	w.WriteC(errorCode)
	return w.Bytes()
}

func (wireBuilder) UserInfo(data []byte) []byte {
	w := packet.NewWriterWithOpcode(opUserInfo)
	w.WriteH(uint16(len(data)))
	w.WriteBytes(data)
	return w.Bytes()
}

func (wireBuilder) CharacterListResult(entries []CharacterSummary) []byte {
	w := packet.NewWriterWithOpcode(opCharacterListResult)
	w.WriteC(byte(len(entries)))
	for _, e := range entries {
		w.WriteD(e.ID)
		w.WriteS(e.Nickname)
		w.WriteC(e.Class)
	}
	return w.Bytes()
}

func (wireBuilder) BlockSwitchResponse(ip string, port uint16, challenge, playerID uint32) []byte {
	w := packet.NewWriterWithOpcode(opBlockSwitchResponse)
	w.WriteS(ip)
	w.WriteH(port)
	w.WriteD(challenge)
	w.WriteD(playerID)
	return w.Bytes()
}
