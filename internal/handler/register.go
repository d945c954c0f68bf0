package handler

import (
	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/session"
)

// gameHandler adapts a typed handler into packet.HandlerFunc, closing
// over deps the way the teacher's RegisterAll wraps each Handle* function
// with its shared *Deps.
type gameHandler func(sess *session.Session, r *packet.Reader, deps *Deps)

func wrap(fn gameHandler, deps *Deps) packet.HandlerFunc {
	return func(sess any, r *packet.Reader) {
		s, ok := sess.(*session.Session)
		if !ok {
			return
		}
		fn(s, r, deps)
	}
}

// RegisterAll binds every opcode this package handles into reg, gating
// each one at the earliest session state the spec's §4.5 ladder allows it
// (LoggingIn < NewUsername < CharacterSelect < PreInGame < InGame).
// opEnterWorld is reachable from StatePreInGame, since it's what
// transitions a session into StateInGame in the first place; every other
// in-game opcode here requires StateInGame already, since none of those
// operations (party, inventory, palette, quest, movement, chat) make sense
// before a character has finished entering the world.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	in := packet.StateInGame

	// Login is only legal exactly at LoggingIn: once a session has
	// progressed past it, re-submitting credentials would desynchronize
	// PlayerID from whatever character state has already loaded.
	reg.Register(opSegaIDLogin, []packet.SessionState{packet.StateLoggingIn}, wrap(HandleSegaIDLogin, deps))
	reg.Register(opUserLogin, []packet.SessionState{packet.StateLoggingIn}, wrap(HandleUserLogin, deps))
	reg.Register(opBlockLogin, []packet.SessionState{packet.StateLoggingIn}, wrap(HandleBlockLogin, deps))

	// A nickname claim is only meaningful for a session parked waiting on
	// one.
	reg.Register(opNicknameResponse, []packet.SessionState{packet.StateNewUsername}, wrap(HandleNicknameResponse, deps))

	// Character select and block switch are legal from CharacterSelect
	// onward: a session already in PreInGame/InGame may still list
	// characters or request a block switch without returning to
	// CharacterSelect first.
	reg.RegisterFrom(opCharacterList, packet.StateCharacterSelect, wrap(HandleCharacterList, deps))
	reg.RegisterFrom(opStartGame, packet.StateCharacterSelect, wrap(HandleStartGame, deps))
	reg.RegisterFrom(opBlockSwitchRequest, packet.StateCharacterSelect, wrap(HandleBlockSwitchRequest, deps))

	reg.RegisterFrom(opEnterWorld, packet.StatePreInGame, wrap(HandleEnterWorld, deps))

	reg.RegisterFrom(opPartyNewInvite, in, wrap(HandlePartyInvite, deps))
	reg.RegisterFrom(opPartyInviteResult, in, wrap(HandlePartyAccept, deps))
	reg.RegisterFrom(opPartyMemberLeft, in, wrap(HandlePartyLeave, deps))
	reg.RegisterFrom(opPartyKickedMember, in, wrap(HandlePartyKick, deps))
	reg.RegisterFrom(opPartyDisbanded, in, wrap(HandlePartyDisband, deps))
	reg.RegisterFrom(opPartyLeaderChanged, in, wrap(HandlePartySetLeader, deps))
	reg.RegisterFrom(opPartySettings, in, wrap(HandlePartySettings, deps))
	reg.RegisterFrom(opPartyBusyStatus, in, wrap(HandlePartyBusy, deps))

	reg.RegisterFrom(opMoveInvToStorage, in, wrap(HandleMoveInvToStorage, deps))
	reg.RegisterFrom(opMoveStorageToInv, in, wrap(HandleMoveStorageToInv, deps))
	reg.RegisterFrom(opMoveStorageToStorage, in, wrap(HandleMoveStorageToStorage, deps))
	reg.RegisterFrom(opDiscardItem, in, wrap(HandleDiscardItem, deps))
	reg.RegisterFrom(opTransferMeseta, in, wrap(HandleTransferMeseta, deps))

	reg.RegisterFrom(opSetPalette, in, wrap(HandleSetPalette, deps))
	reg.RegisterFrom(opUpdatePalette, in, wrap(HandleUpdatePalette, deps))

	reg.RegisterFrom(opQuestAvailable, in, wrap(HandleQuestAvailable, deps))
	reg.RegisterFrom(opQuestList, in, wrap(HandleQuestList, deps))
	reg.RegisterFrom(opQuestAccept, in, wrap(HandleQuestAccept, deps))

	reg.RegisterFrom(opMovement, in, wrap(HandleMovement, deps))
	reg.RegisterFrom(opMovementEnd, in, wrap(HandleMovementEnd, deps))
	reg.RegisterFrom(opChatMessage, in, wrap(HandleChat, deps))
	reg.RegisterFrom(opSymbolArt, in, wrap(HandleSymbolArt, deps))
	reg.RegisterFrom(opSymbolArtUpload, in, wrap(HandleSymbolArtUpload, deps))
}
