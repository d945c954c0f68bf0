// Package quest implements the block's quest catalog and instantiation
// (spec §4.9): a recursively-loaded directory of YAML quest definitions,
// tallied by category for the AvailableQuests packet and filtered per
// user by their unlocked_quests set, category/difficulty paged queries,
// and Accept, which clones a quest's embedded map template into a fresh
// worldmap.Map bound to the accepting user's party.
//
// Grounded on the teacher's internal/data/item.go loading style
// (os.ReadFile + yaml.Unmarshal per file, converting a YAML-friendly
// intermediate struct into the package's real type) generalized from a
// fixed set of named files to a recursive directory scan, since spec.md
// describes the catalog as scanned rather than enumerated.
package quest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/shipcluster/server/internal/worldmap"
)

// MaxQuestsPerPage bounds how many quest summaries one QuestPage packet
// carries (spec §4.9 resolved default, mirroring internal/inventory's
// MaxStorageItemsPerFrame paging pattern).
const MaxQuestsPerPage = 20

// Definition is one catalog entry: the quest's identity plus its
// embedded map template.
type Definition struct {
	QuestID         uint32
	Name            string
	Category        string
	Difficulty      uint8
	InstantTransfer bool

	MapName string
	SpawnX  int32
	SpawnY  int32
	Static  []worldmap.StaticObject
}

// Unlock is a user's per-quest unlock record. ClearCount supplements
// spec.md's flat unlocked_quests set with the per-difficulty clear
// counters original_source/ship_server/src/user/handlers/quest.rs and
// quests.rs track, read/written through the same persistence path.
type Unlock struct {
	QuestID    uint32
	ClearCount uint32
}

// UnlockSet is a user's unlocked_quests set: presence of a quest id
// implies it is unlocked for that user.
type UnlockSet map[uint32]*Unlock

// TypeCount is one row of the AvailableQuests tally: how many unlocked
// quests exist in a given category.
type TypeCount struct {
	Category string
	Count    int
}

// Summary is the wire-facing projection of a Definition used by paged
// category/difficulty queries, carrying the requesting user's clear
// count alongside the catalog fields.
type Summary struct {
	QuestID    uint32
	Name       string
	Category   string
	Difficulty uint8
	ClearCount uint32
}

// Catalog is the block's quest catalog, loaded once at block start and
// read concurrently by every user's quest requests thereafter.
type Catalog struct {
	mu         sync.RWMutex
	quests     map[uint32]Definition
	byCategory map[string][]uint32
	order      []uint32
}

type questFile struct {
	ID              uint32 `yaml:"id"`
	Name            string `yaml:"name"`
	Category        string `yaml:"category"`
	Difficulty      uint8  `yaml:"difficulty"`
	InstantTransfer bool   `yaml:"instant_transfer"`
	Map             struct {
		Name   string `yaml:"name"`
		SpawnX int32  `yaml:"spawn_x"`
		SpawnY int32  `yaml:"spawn_y"`
		Static []struct {
			ID     uint32 `yaml:"id"`
			Kind   string `yaml:"kind"`
			Name   string `yaml:"name"`
			Script string `yaml:"script"`
		} `yaml:"static"`
	} `yaml:"map"`
}

// LoadCatalog recursively scans dir for *.yaml/*.yml quest definitions
// and deserializes each one, precomputing the category tally used by
// AvailableQuests.
func LoadCatalog(dir string, log *zap.Logger) (*Catalog, error) {
	c := &Catalog{
		quests:     make(map[uint32]Definition),
		byCategory: make(map[string][]uint32),
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		def, loadErr := loadQuestFile(path)
		if loadErr != nil {
			return fmt.Errorf("quest: loading %s: %w", path, loadErr)
		}
		if _, dup := c.quests[def.QuestID]; dup {
			return fmt.Errorf("quest: duplicate quest id %d in %s", def.QuestID, path)
		}
		c.quests[def.QuestID] = def
		c.byCategory[def.Category] = append(c.byCategory[def.Category], def.QuestID)
		c.order = append(c.order, def.QuestID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ids := range c.byCategory {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })

	if log != nil {
		log.Info("quest catalog loaded", zap.Int("count", len(c.quests)), zap.String("dir", dir))
	}
	return c, nil
}

func loadQuestFile(path string) (Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	var f questFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Definition{}, err
	}

	static := make([]worldmap.StaticObject, 0, len(f.Map.Static))
	for _, s := range f.Map.Static {
		static = append(static, worldmap.StaticObject{
			ID:         worldmap.ObjectID(s.ID),
			Kind:       s.Kind,
			Name:       s.Name,
			ScriptName: s.Script,
		})
	}

	return Definition{
		QuestID:         f.ID,
		Name:            f.Name,
		Category:        f.Category,
		Difficulty:      f.Difficulty,
		InstantTransfer: f.InstantTransfer,
		MapName:         f.Map.Name,
		SpawnX:          f.Map.SpawnX,
		SpawnY:          f.Map.SpawnY,
		Static:          static,
	}, nil
}

// AvailableQuests tallies, per category, how many of the catalog's
// quests are unlocked for the given user (spec §4.9).
func (c *Catalog) AvailableQuests(unlocked UnlockSet) []TypeCount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	categories := make([]string, 0, len(c.byCategory))
	for cat := range c.byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	tally := make([]TypeCount, 0, len(categories))
	for _, cat := range categories {
		count := 0
		for _, id := range c.byCategory[cat] {
			if _, ok := unlocked[id]; ok {
				count++
			}
		}
		tally = append(tally, TypeCount{Category: cat, Count: count})
	}
	return tally
}

// ByCategory returns one page of unlocked quests in the given category.
func (c *Catalog) ByCategory(category string, unlocked UnlockSet, page int) []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageLocked(c.byCategory[category], unlocked, page)
}

// ByDifficulty returns one page of unlocked quests at the given
// difficulty, across all categories.
func (c *Catalog) ByDifficulty(difficulty uint8, unlocked UnlockSet, page int) []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matching := make([]uint32, 0)
	for _, id := range c.order {
		if c.quests[id].Difficulty == difficulty {
			matching = append(matching, id)
		}
	}
	return c.pageLocked(matching, unlocked, page)
}

func (c *Catalog) pageLocked(ids []uint32, unlocked UnlockSet, page int) []Summary {
	unlockedIDs := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if _, ok := unlocked[id]; ok {
			unlockedIDs = append(unlockedIDs, id)
		}
	}

	start := page * MaxQuestsPerPage
	if start >= len(unlockedIDs) {
		return nil
	}
	end := min(start+MaxQuestsPerPage, len(unlockedIDs))

	out := make([]Summary, 0, end-start)
	for _, id := range unlockedIDs[start:end] {
		def := c.quests[id]
		var clears uint32
		if u := unlocked[id]; u != nil {
			clears = u.ClearCount
		}
		out = append(out, Summary{
			QuestID:    def.QuestID,
			Name:       def.Name,
			Category:   def.Category,
			Difficulty: def.Difficulty,
			ClearCount: clears,
		})
	}
	return out
}

// Instance is one live instantiation of a quest's map template, given an
// identity party.Manager can bind to (it implements party.QuestMap
// without this package importing internal/party, keeping the dependency
// one-directional the same way worldmap.PartyBroadcaster does).
type Instance struct {
	Def    Definition
	MapObj worldmap.ObjectID
	Map    *worldmap.Map
}

// MapObjectID implements party.QuestMap.
func (i Instance) MapObjectID() uint32 { return uint32(i.MapObj) }

// Accept locates a quest by its catalog id, clones its embedded map
// template, and instantiates a fresh worldmap.Map under a freshly
// minted map-object id (spec §4.9). Binding the instance into the
// accepting user's party is the caller's responsibility (via
// party.Manager.BindQuest), keeping this package free of a party
// dependency.
func (c *Catalog) Accept(questID uint32, scripts worldmap.ScriptRunner, log *zap.Logger) (Instance, error) {
	c.mu.RLock()
	def, ok := c.quests[questID]
	c.mu.RUnlock()
	if !ok {
		return Instance{}, fmt.Errorf("quest: unknown quest id %d", questID)
	}

	static := make([]worldmap.StaticObject, len(def.Static))
	copy(static, def.Static)

	mapObj := worldmap.NextMapObjID()
	m := worldmap.NewMap(def.MapName, def.SpawnX, def.SpawnY, static, scripts, log)

	return Instance{Def: def, MapObj: mapObj, Map: m}, nil
}
