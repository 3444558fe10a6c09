package compiler

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMarker wraps filesystem failures while creating a fingerprint marker.
var ErrMarker = errors.New("cannot create fingerprint marker")

// FingerprintPath returns the dep-info marker path cargo checks for the task:
//
//	<dependency_dir>/../.fingerprint/<package><extra>/dep-<crate_type>-<crate_name><extra>
//
// The path is built by concatenation and never cleaned. An empty dependency dir
// yields a path rooted at "/..".
func FingerprintPath(inv Invocation, packageName string) string {
	return fmt.Sprintf("%s/../.fingerprint/%s%s/dep-%s-%s%s",
		inv.DependencyDir,
		packageName,
		inv.ExtraFilename,
		inv.CrateType,
		inv.CrateName,
		inv.ExtraFilename,
	)
}

// TouchMarker creates an empty file at path, creating parent directories as
// needed. An existing file is left untouched.
func TouchMarker(path string) error {
	// The parent is taken verbatim: cleaning would drop the dependency dir, which
	// must exist for the ".." segment to resolve.
	if i := strings.LastIndexByte(path, '/'); i > 0 {
		if err := os.MkdirAll(path[:i], 0755); err != nil {
			return fmt.Errorf("%w: %w", ErrMarker, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMarker, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrMarker, err)
	}

	return nil
}
