// Package workspace locates the cargo project being built and classifies
// package manifests as local-path or external.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ManifestName is the file name of a cargo manifest.
const ManifestName = "Cargo.toml"

// ErrNoManifest is returned when no Cargo.toml exists in a directory or its parents.
var ErrNoManifest = errors.New("could not find " + ManifestName)

// Workspace describes the project rooted at a workspace manifest.
type Workspace struct {
	Root      string // Directory of the workspace root manifest
	Manifest  string // Path of the manifest found from the starting directory
	TargetDir string // Build output directory
}

// manifest holds the keys of Cargo.toml needed to find the workspace root.
type manifest struct {
	Package *struct {
		Name      string `toml:"name"`
		Workspace string `toml:"workspace"`
	} `toml:"package"`
	Workspace *struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
}

// FindRootManifest returns the nearest Cargo.toml in dir or one of its parents.
func FindRootManifest(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	for cur := abs; ; cur = filepath.Dir(cur) {
		path := filepath.Join(cur, ManifestName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		if filepath.Dir(cur) == cur {
			break
		}
	}

	return "", fmt.Errorf("%w in %s or any parent directory", ErrNoManifest, abs)
}

// Load finds the manifest for dir and resolves the workspace it belongs to.
// A package manifest with no enclosing [workspace] is its own root.
func Load(dir string) (*Workspace, error) {
	manifestPath, err := FindRootManifest(dir)
	if err != nil {
		return nil, err
	}

	root, err := findWorkspaceRoot(manifestPath)
	if err != nil {
		return nil, err
	}

	targetDir := os.Getenv("CARGO_TARGET_DIR")
	if targetDir == "" {
		targetDir = filepath.Join(root, "target")
	} else if !filepath.IsAbs(targetDir) {
		targetDir = filepath.Join(root, targetDir)
	}

	return &Workspace{
		Root:      root,
		Manifest:  manifestPath,
		TargetDir: targetDir,
	}, nil
}

// findWorkspaceRoot returns the directory of the workspace manifest that owns manifestPath.
func findWorkspaceRoot(manifestPath string) (string, error) {
	m, err := readManifest(manifestPath)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(manifestPath)

	if m.Workspace != nil {
		return dir, nil
	}
	if m.Package != nil && m.Package.Workspace != "" {
		return filepath.Clean(filepath.Join(dir, m.Package.Workspace)), nil
	}

	for cur := filepath.Dir(dir); ; cur = filepath.Dir(cur) {
		candidate := filepath.Join(cur, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			parent, err := readManifest(candidate)
			if err != nil {
				return "", err
			}
			if parent.Workspace != nil {
				return cur, nil
			}
		}
		if filepath.Dir(cur) == cur {
			break
		}
	}

	return dir, nil
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}
