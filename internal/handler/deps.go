package handler

import (
	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/inventory"
	"github.com/shipcluster/server/internal/party"
	"github.com/shipcluster/server/internal/quest"
	"github.com/shipcluster/server/internal/shipclient"
	"github.com/shipcluster/server/internal/shippersist"
	"github.com/shipcluster/server/internal/worldmap"
)

// BlockAddr is the reconnect address a BlockSwitchResponse hands the
// client for one of this ship's blocks (spec §8.3). IP is left empty when
// the block has no address of its own worth advertising separately from
// whatever interface the client is already connected through; callers
// fill it in from the inbound connection's local address in that case.
type BlockAddr struct {
	IP   string
	Port uint16
}

// Deps is the set of shared, block-lifetime state every handler needs,
// mirroring the teacher's handler.Deps bundle. Like the teacher's Deps,
// cmd/ship constructs one per ship process and shares it across every
// block, so all blocks share one lobby map, party manager, and quest
// catalog instance.
type Deps struct {
	Log      *zap.Logger
	Parties  *party.Manager
	Quests   *quest.Catalog
	Players  *Registry
	Lobby    *worldmap.Map
	ItemCat  inventory.ItemCatalog
	Language string

	// Master is the ship's single outbound connection to the master
	// service, used by the login/nickname/character-select/block-switch
	// handlers for every masterproto.Action (spec §4.2).
	Master *shipclient.Client

	// Users/Characters/SymbolArts/Challenges are the ship-local
	// persistence repos backing character select and block hand-off
	// (spec §6).
	Users      *shippersist.UserRepo
	Characters *shippersist.CharacterRepo
	SymbolArts *shippersist.SymbolArtRepo
	Challenges *shippersist.ChallengeCacheRepo

	// BlockAddrs maps a block id to the address a BlockSwitchResponse
	// should hand the client for it.
	BlockAddrs map[uint32]BlockAddr
}

func NewDeps(
	log *zap.Logger,
	lobby *worldmap.Map,
	quests *quest.Catalog,
	itemCat inventory.ItemCatalog,
	language string,
	master *shipclient.Client,
	users *shippersist.UserRepo,
	characters *shippersist.CharacterRepo,
	symbolArts *shippersist.SymbolArtRepo,
	challenges *shippersist.ChallengeCacheRepo,
	blockAddrs map[uint32]BlockAddr,
) *Deps {
	return &Deps{
		Log:        log,
		Parties:    party.NewManager(builder, log),
		Quests:     quests,
		Players:    NewRegistry(log),
		Lobby:      lobby,
		ItemCat:    itemCat,
		Language:   language,
		Master:     master,
		Users:      users,
		Characters: characters,
		SymbolArts: symbolArts,
		Challenges: challenges,
		BlockAddrs: blockAddrs,
	}
}
