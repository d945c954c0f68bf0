package event

import "github.com/shipcluster/server/internal/core/ecs"

// PlayerEnteredMap fires once a player has been fully streamed into a map
// (after the add-player sequence completes) and added to the roster.
type PlayerEnteredMap struct {
	Player ecs.EntityID
	MapID  uint32
}

// PlayerLeftMap fires after a player is swap-removed from a map's roster.
type PlayerLeftMap struct {
	Player ecs.EntityID
	MapID  uint32
}

// PlayerDisconnected fires when the block runtime applies a Disconnect
// action, after the session is dropped from the block.
// CharacterID is 0 if the connection never loaded a character.
type PlayerDisconnected struct {
	Player      ecs.EntityID
	SessionID   uint64
	CharacterID uint32
}

// PartyDisbanded fires after a party sends PartyDisbandedMarker to every
// member and before each is re-initialized into a fresh singleton party.
type PartyDisbanded struct {
	PartyID uint32
	Members []ecs.EntityID
}
