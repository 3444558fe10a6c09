package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Jobs = 3
	cfg.Cargo.Args = []string{"--locked"}
	cfg.ExternalRoots = []string{"vendor"}
	cfg.History.Enabled = false

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Jobs != 3 {
		t.Errorf("jobs = %d, want 3", loaded.Jobs)
	}
	if len(loaded.Cargo.Args) != 1 || loaded.Cargo.Args[0] != "--locked" {
		t.Errorf("cargo args = %v, want [--locked]", loaded.Cargo.Args)
	}
	if len(loaded.ExternalRoots) != 1 || loaded.ExternalRoots[0] != "vendor" {
		t.Errorf("external roots = %v, want [vendor]", loaded.ExternalRoots)
	}
	if loaded.History.Enabled {
		t.Error("expected history to stay disabled after round trip")
	}
}
