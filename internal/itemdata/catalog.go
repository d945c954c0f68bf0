// Package itemdata loads the static item-name catalog a ship needs to
// satisfy inventory.ItemCatalog, following the teacher's
// internal/data.LoadItemTable shape (a single YAML file parsed straight
// into a lookup map) rather than the teacher's three-file weapon/armor/
// etcitem split, since this spec's item model has no such category split.
package itemdata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// entry is one item's per-language display names as they appear in the
// YAML source file.
type entry struct {
	ItemID uint32            `yaml:"item_id"`
	Names  map[string]string `yaml:"names"`
}

type itemFile struct {
	Items []entry `yaml:"items"`
}

// Catalog implements inventory.ItemCatalog: item id + language -> display
// name.
type Catalog struct {
	names map[uint32]map[string]string
}

// LoadCatalog reads a single YAML file of {item_id, names{lang: name}}
// entries.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item catalog %s: %w", path, err)
	}

	var file itemFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse item catalog %s: %w", path, err)
	}

	c := &Catalog{names: make(map[uint32]map[string]string, len(file.Items))}
	for _, e := range file.Items {
		c.names[e.ItemID] = e.Names
	}
	return c, nil
}

// Name implements inventory.ItemCatalog.
func (c *Catalog) Name(itemID uint32, language string) (string, bool) {
	byLang, ok := c.names[itemID]
	if !ok {
		return "", false
	}
	if name, ok := byLang[language]; ok {
		return name, true
	}
	name, ok := byLang["en"]
	return name, ok
}

// Count returns the number of distinct items loaded, for startup
// reporting.
func (c *Catalog) Count() int {
	return len(c.names)
}
