package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		globalConfig  string
		projectConfig string
		check         func(t *testing.T, cfg *BuildDepsConfig)
	}{
		{
			name: "No config files - returns defaults",
			check: func(t *testing.T, cfg *BuildDepsConfig) {
				if cfg.Cargo.Command != "cargo" {
					t.Errorf("cargo command = %q, want cargo", cfg.Cargo.Command)
				}
				if !cfg.History.Enabled {
					t.Error("expected history enabled by default")
				}
				if cfg.Jobs != 0 {
					t.Errorf("jobs = %d, want 0", cfg.Jobs)
				}
			},
		},
		{
			name:         "Global only - overrides jobs, keeps other defaults",
			globalConfig: `{"jobs": 8, "log": {"level": "debug"}}`,
			check: func(t *testing.T, cfg *BuildDepsConfig) {
				if cfg.Jobs != 8 {
					t.Errorf("jobs = %d, want 8", cfg.Jobs)
				}
				if cfg.Log.Level != "debug" {
					t.Errorf("log level = %q, want debug", cfg.Log.Level)
				}
				if cfg.Log.Format != "text" {
					t.Errorf("log format = %q, want default text", cfg.Log.Format)
				}
			},
		},
		{
			name:          "Project overrides global - project wins",
			globalConfig:  `{"cargo": {"command": "/usr/bin/cargo"}, "release": true}`,
			projectConfig: `{"cargo": {"command": "cross"}, "release": false}`,
			check: func(t *testing.T, cfg *BuildDepsConfig) {
				if cfg.Cargo.Command != "cross" {
					t.Errorf("cargo command = %q, want cross", cfg.Cargo.Command)
				}
				if cfg.Release {
					t.Error("expected project to turn release off")
				}
				if cfg.Cargo.Toolchain != "nightly" {
					t.Errorf("toolchain = %q, want default nightly", cfg.Cargo.Toolchain)
				}
			},
		},
		{
			name:          "External roots accumulate",
			globalConfig:  `{"external_roots": ["/srv/vendor"]}`,
			projectConfig: `{"external_roots": ["third_party"]}`,
			check: func(t *testing.T, cfg *BuildDepsConfig) {
				if len(cfg.ExternalRoots) != 2 {
					t.Fatalf("external roots = %v, want 2 entries", cfg.ExternalRoots)
				}
				if cfg.ExternalRoots[0] != "/srv/vendor" || cfg.ExternalRoots[1] != "third_party" {
					t.Errorf("unexpected external roots: %v", cfg.ExternalRoots)
				}
			},
		},
		{
			name:          "History can be disabled",
			projectConfig: `{"history": {"enabled": false}}`,
			check: func(t *testing.T, cfg *BuildDepsConfig) {
				if cfg.History.Enabled {
					t.Error("expected history disabled")
				}
				if cfg.HistoryPath("/t") != "" {
					t.Errorf("expected empty history path, got %q", cfg.HistoryPath("/t"))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != "" {
				globalPath = filepath.Join(tmpDir, "global.json")
				if err := os.WriteFile(globalPath, []byte(tt.globalConfig), 0644); err != nil {
					t.Fatalf("writing global config: %v", err)
				}
			}

			projectPath := ""
			if tt.projectConfig != "" {
				projectPath = filepath.Join(tmpDir, "project.json")
				if err := os.WriteFile(projectPath, []byte(tt.projectConfig), 0644); err != nil {
					t.Fatalf("writing project config: %v", err)
				}
			}

			cfg, err := Load(globalPath, projectPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()

	globalPath := filepath.Join(tmpDir, "global.json")
	if err := os.WriteFile(globalPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("writing malformed config: %v", err)
	}

	_, err := Load(globalPath, "")
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}
	if cfg.Cargo.Command != "cargo" {
		t.Errorf("cargo command = %q, want cargo", cfg.Cargo.Command)
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := DefaultConfig()

	if got, want := cfg.HistoryPath("/proj/target"), "/proj/target/build-deps/history.db"; got != want {
		t.Errorf("HistoryPath() = %q, want %q", got, want)
	}

	cfg.History.Path = "/var/lib/build-deps.db"
	if got := cfg.HistoryPath("/proj/target"); got != "/var/lib/build-deps.db" {
		t.Errorf("HistoryPath() = %q, want absolute path unchanged", got)
	}
}

func TestPaths(t *testing.T) {
	t.Setenv("HOME", "/home/builder")

	globalPath, projectPath, err := Paths("/proj")
	if err != nil {
		t.Fatalf("Paths() error: %v", err)
	}
	if globalPath != "/home/builder/.build-deps/config.json" {
		t.Errorf("global path = %q", globalPath)
	}
	if projectPath != "/proj/.build-deps/config.json" {
		t.Errorf("project path = %q", projectPath)
	}
}
