package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[ship]
name = "TestShip"
id = 7

[database]
dsn = "postgres://test@localhost/test"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ship.Name != "TestShip" || cfg.Ship.ID != 7 {
		t.Fatalf("ship section not overridden: %+v", cfg.Ship)
	}
	if cfg.Database.DSN != "postgres://test@localhost/test" {
		t.Fatalf("database section not overridden: %+v", cfg.Database)
	}
	// Untouched sections keep their defaults.
	if cfg.Master.ChallengeTTL.Seconds() != 60 {
		t.Fatalf("expected default challenge ttl to survive, got %v", cfg.Master.ChallengeTTL)
	}
	if len(cfg.Ship.Blocks) != 1 {
		t.Fatalf("expected default block list to survive, got %+v", cfg.Ship.Blocks)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.toml"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
