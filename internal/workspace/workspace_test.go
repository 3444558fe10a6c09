package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFindRootManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[package]\nname = \"app\"\n")
	nested := filepath.Join(root, "src", "bin")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindRootManifest(nested)
	if err != nil {
		t.Fatalf("FindRootManifest() error: %v", err)
	}
	if want := filepath.Join(root, "Cargo.toml"); got != want {
		t.Errorf("FindRootManifest() = %q, want %q", got, want)
	}
}

func TestFindRootManifest_Missing(t *testing.T) {
	_, err := FindRootManifest(t.TempDir())
	if !errors.Is(err, ErrNoManifest) {
		t.Errorf("expected ErrNoManifest, got: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		start    string
		wantRoot string
	}{
		{
			name:     "Single package",
			files:    map[string]string{"Cargo.toml": "[package]\nname = \"app\"\n"},
			start:    ".",
			wantRoot: ".",
		},
		{
			name: "Member of enclosing workspace",
			files: map[string]string{
				"Cargo.toml":          "[workspace]\nmembers = [\"crates/*\"]\n",
				"crates/a/Cargo.toml": "[package]\nname = \"a\"\n",
			},
			start:    "crates/a",
			wantRoot: ".",
		},
		{
			name: "Explicit package.workspace",
			files: map[string]string{
				"ws/Cargo.toml":  "[workspace]\nmembers = [\"../pkg\"]\n",
				"pkg/Cargo.toml": "[package]\nname = \"pkg\"\nworkspace = \"../ws\"\n",
			},
			start:    "pkg",
			wantRoot: "ws",
		},
		{
			name: "Parent manifest without workspace table",
			files: map[string]string{
				"Cargo.toml":       "[package]\nname = \"outer\"\n",
				"inner/Cargo.toml": "[package]\nname = \"inner\"\n",
			},
			start:    "inner",
			wantRoot: "inner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CARGO_TARGET_DIR", "")
			dir := t.TempDir()
			for rel, content := range tt.files {
				writeFile(t, filepath.Join(dir, rel), content)
			}

			ws, err := Load(filepath.Join(dir, tt.start))
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}

			wantRoot := filepath.Join(dir, tt.wantRoot)
			if ws.Root != wantRoot {
				t.Errorf("Root = %q, want %q", ws.Root, wantRoot)
			}
			if want := filepath.Join(wantRoot, "target"); ws.TargetDir != want {
				t.Errorf("TargetDir = %q, want %q", ws.TargetDir, want)
			}
		})
	}
}

func TestLoad_TargetDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), "[package]\nname = \"app\"\n")
	t.Setenv("CARGO_TARGET_DIR", "out")

	ws, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if want := filepath.Join(dir, "out"); ws.TargetDir != want {
		t.Errorf("TargetDir = %q, want %q", ws.TargetDir, want)
	}
}

func TestLoad_MalformedManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), "[package\nname = ")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error for malformed manifest")
	}
}
