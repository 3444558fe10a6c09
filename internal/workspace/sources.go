package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// cargoConfig holds the keys of .cargo/config.toml that describe source replacement.
type cargoConfig struct {
	Source map[string]struct {
		Directory string `toml:"directory"`
	} `toml:"source"`
}

// configFiles returns the cargo config files that apply to dir, nearest first,
// ending with the one in CARGO_HOME. Only files that exist are returned.
func configFiles(dir string) []string {
	var files []string
	seen := make(map[string]bool)
	add := func(cargoDir string) {
		// config.toml wins over the legacy extensionless name.
		for _, name := range []string{"config.toml", "config"} {
			path := filepath.Join(cargoDir, name)
			if seen[path] {
				return
			}
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				seen[path] = true
				files = append(files, path)
				return
			}
		}
	}

	for cur := dir; ; cur = filepath.Dir(cur) {
		add(filepath.Join(cur, ".cargo"))
		if filepath.Dir(cur) == cur {
			break
		}
	}
	add(CargoHome())
	return files
}

// VendorDirs returns the directory sources configured for builds in root, such
// as the vendor dir written by `cargo vendor`. Crates in them come from a
// registry or git source that was replaced, so they are external.
func VendorDirs(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	set := make(map[string]bool)
	for _, path := range configFiles(abs) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var cfg cargoConfig
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}

		// Relative paths are relative to the directory holding .cargo.
		base := filepath.Dir(filepath.Dir(path))
		for _, src := range cfg.Source {
			if src.Directory == "" {
				continue
			}
			dir := src.Directory
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(base, dir)
			}
			set[filepath.Clean(dir)] = true
		}
	}

	dirs := make([]string, 0, len(set))
	for dir := range set {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}
