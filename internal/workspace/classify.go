package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aristath/cargo-build-deps/internal/compiler"
)

// Classifier decides the origin of a package from the directory of its manifest.
// Cargo unpacks registry and git sources under CARGO_HOME; everything else on
// disk is a path source.
type Classifier struct {
	ExternalRoots  []string        // Directories holding external sources
	LocalManifests map[string]bool // Manifest dirs known to be path sources
}

// NewClassifier creates a Classifier treating CARGO_HOME's registry and git
// checkouts plus any extra roots (e.g. a vendor dir) as external.
func NewClassifier(extraRoots ...string) *Classifier {
	home := CargoHome()
	roots := []string{
		filepath.Join(home, "registry"),
		filepath.Join(home, "git"),
	}
	for _, r := range extraRoots {
		if r != "" {
			roots = append(roots, filepath.Clean(r))
		}
	}
	return &Classifier{
		ExternalRoots:  roots,
		LocalManifests: make(map[string]bool),
	}
}

// MarkLocal records manifestDir as a path source regardless of where it lives.
func (c *Classifier) MarkLocal(manifestDir string) {
	c.LocalManifests[filepath.Clean(manifestDir)] = true
}

// Classify returns the origin of the package whose manifest is in manifestDir.
func (c *Classifier) Classify(manifestDir string) compiler.Origin {
	dir := filepath.Clean(manifestDir)
	if c.LocalManifests[dir] {
		return compiler.OriginLocalPath
	}
	for _, root := range c.ExternalRoots {
		if within(root, dir) {
			return compiler.OriginExternal
		}
	}
	return compiler.OriginLocalPath
}

// CargoHome returns $CARGO_HOME, defaulting to ~/.cargo.
func CargoHome() string {
	if home := os.Getenv("CARGO_HOME"); home != "" {
		return filepath.Clean(home)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".cargo"
	}
	return filepath.Join(userHome, ".cargo")
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
