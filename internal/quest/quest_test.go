package quest

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeQuestFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write quest file: %v", err)
	}
}

func TestLoadCatalogRecursesSubdirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "forest")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	writeQuestFile(t, root, "intro.yaml", `
id: 1
name: Intro Quest
category: story
difficulty: 1
map:
  name: intro_map
  spawn_x: 0
  spawn_y: 0
`)
	writeQuestFile(t, sub, "hunt.yaml", `
id: 2
name: Forest Hunt
category: hunting
difficulty: 2
instant_transfer: true
map:
  name: forest_map
  spawn_x: 10
  spawn_y: 10
  static:
    - id: 500
      kind: npc
      name: Hunter
      script: hunter_guide
`)

	cat, err := LoadCatalog(root, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(cat.quests) != 2 {
		t.Fatalf("expected 2 quests loaded, got %d", len(cat.quests))
	}
	if cat.quests[2].Static[0].Name != "Hunter" {
		t.Fatalf("expected nested static object to survive loading, got %+v", cat.quests[2])
	}
}

func TestLoadCatalogRejectsDuplicateIDs(t *testing.T) {
	root := t.TempDir()
	writeQuestFile(t, root, "a.yaml", "id: 1\nname: A\ncategory: story\n")
	writeQuestFile(t, root, "b.yaml", "id: 1\nname: B\ncategory: story\n")

	if _, err := LoadCatalog(root, zap.NewNop()); err == nil {
		t.Fatalf("expected duplicate quest id to be an error")
	}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	root := t.TempDir()
	writeQuestFile(t, root, "story1.yaml", "id: 1\nname: Story One\ncategory: story\ndifficulty: 1\nmap:\n  name: m1\n")
	writeQuestFile(t, root, "story2.yaml", "id: 2\nname: Story Two\ncategory: story\ndifficulty: 2\nmap:\n  name: m2\n")
	writeQuestFile(t, root, "hunt1.yaml", "id: 3\nname: Hunt One\ncategory: hunting\ndifficulty: 1\nmap:\n  name: m3\n")

	cat, err := LoadCatalog(root, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	return cat
}

func TestAvailableQuestsFiltersByUnlockSet(t *testing.T) {
	cat := newTestCatalog(t)
	unlocked := UnlockSet{
		1: {QuestID: 1},
		3: {QuestID: 3},
	}

	tally := cat.AvailableQuests(unlocked)
	got := map[string]int{}
	for _, tc := range tally {
		got[tc.Category] = tc.Count
	}
	if got["story"] != 1 {
		t.Fatalf("expected 1 unlocked story quest, got %d", got["story"])
	}
	if got["hunting"] != 1 {
		t.Fatalf("expected 1 unlocked hunting quest, got %d", got["hunting"])
	}
}

func TestByCategoryOnlyReturnsUnlockedQuests(t *testing.T) {
	cat := newTestCatalog(t)
	unlocked := UnlockSet{1: {QuestID: 1, ClearCount: 5}}

	got := cat.ByCategory("story", unlocked, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 unlocked story quest, got %d", len(got))
	}
	if got[0].QuestID != 1 || got[0].ClearCount != 5 {
		t.Fatalf("expected quest 1 with clear count 5, got %+v", got[0])
	}
}

func TestByDifficultyPagesAcrossCategories(t *testing.T) {
	cat := newTestCatalog(t)
	unlocked := UnlockSet{1: {QuestID: 1}, 3: {QuestID: 3}}

	got := cat.ByDifficulty(1, unlocked, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 unlocked difficulty-1 quests across categories, got %d", len(got))
	}
}

func TestByCategoryPageBeyondRangeReturnsNil(t *testing.T) {
	cat := newTestCatalog(t)
	unlocked := UnlockSet{1: {QuestID: 1}}

	if got := cat.ByCategory("story", unlocked, 5); got != nil {
		t.Fatalf("expected nil page beyond range, got %+v", got)
	}
}

func TestAcceptInstantiatesFreshMapWithNewObjectID(t *testing.T) {
	cat := newTestCatalog(t)

	inst1, err := cat.Accept(1, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	inst2, err := cat.Accept(1, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if inst1.MapObj == inst2.MapObj {
		t.Fatalf("expected each acceptance to mint a distinct map object id")
	}
	if inst1.Map == inst2.Map {
		t.Fatalf("expected each acceptance to instantiate a distinct map")
	}
	if inst1.MapObjectID() != uint32(inst1.MapObj) {
		t.Fatalf("expected MapObjectID to expose the minted map object id")
	}
}

func TestAcceptUnknownQuestIsError(t *testing.T) {
	cat := newTestCatalog(t)
	if _, err := cat.Accept(999, nil, zap.NewNop()); err == nil {
		t.Fatalf("expected error for unknown quest id")
	}
}
