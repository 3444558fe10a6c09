package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the directory holding config files, both in the home and the workspace.
const DirName = ".build-deps"

// fileConfig mirrors BuildDepsConfig with pointers so that unset keys do not
// override lower layers.
type fileConfig struct {
	Cargo *struct {
		Command   *string  `json:"command"`
		Args      []string `json:"args"`
		Toolchain *string  `json:"toolchain"`
	} `json:"cargo"`
	Jobs          *int     `json:"jobs"`
	Release       *bool    `json:"release"`
	ExternalRoots []string `json:"external_roots"`
	History       *struct {
		Enabled *bool   `json:"enabled"`
		Path    *string `json:"path"`
	} `json:"history"`
	Log *struct {
		Level  *string `json:"level"`
		Format *string `json:"format"`
	} `json:"log"`
}

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*BuildDepsConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// Paths returns the conventional config paths for a workspace root.
// Global: ~/.build-deps/config.json
// Project: <root>/.build-deps/config.json
func Paths(workspaceRoot string) (globalPath, projectPath string, err error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName, "config.json"), filepath.Join(workspaceRoot, DirName, "config.json"), nil
}

// mergeConfigFile reads a JSON config file and merges the keys it sets into base.
func mergeConfigFile(base *BuildDepsConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if c := loaded.Cargo; c != nil {
		if c.Command != nil {
			base.Cargo.Command = *c.Command
		}
		if c.Args != nil {
			base.Cargo.Args = c.Args
		}
		if c.Toolchain != nil {
			base.Cargo.Toolchain = *c.Toolchain
		}
	}
	if loaded.Jobs != nil {
		base.Jobs = *loaded.Jobs
	}
	if loaded.Release != nil {
		base.Release = *loaded.Release
	}
	// External roots accumulate across layers.
	base.ExternalRoots = append(base.ExternalRoots, loaded.ExternalRoots...)
	if h := loaded.History; h != nil {
		if h.Enabled != nil {
			base.History.Enabled = *h.Enabled
		}
		if h.Path != nil {
			base.History.Path = *h.Path
		}
	}
	if l := loaded.Log; l != nil {
		if l.Level != nil {
			base.Log.Level = *l.Level
		}
		if l.Format != nil {
			base.Log.Format = *l.Format
		}
	}

	return nil
}

// HistoryPath resolves the history database path against targetDir.
// Returns "" when history is disabled.
func (c *BuildDepsConfig) HistoryPath(targetDir string) string {
	if !c.History.Enabled || c.History.Path == "" {
		return ""
	}
	if filepath.IsAbs(c.History.Path) {
		return c.History.Path
	}
	return filepath.Join(targetDir, c.History.Path)
}
