package compiler

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrMalformedInvocation reports an argument sequence that cannot be mapped to a
// cache marker. It is always fatal.
var ErrMalformedInvocation = errors.New("malformed compiler invocation")

const (
	flagCrateName     = "--crate-name"
	flagCrateType     = "--crate-type"
	prefixExtraName   = "extra-filename"
	prefixDependency  = "dependency"
	buildScriptCrate  = "build_script_build"
	buildScriptTarget = "build-script"
)

// Invocation is the part of a compiler argument sequence needed to locate the
// fingerprint marker of the task.
type Invocation struct {
	CrateName     string
	CrateType     string
	ExtraFilename string
	DependencyDir string
}

// ParseInvocation scans args once, left to right. Unknown tokens are ignored.
// Fields absent from args stay empty; use Validate before building a marker path.
func ParseInvocation(args []string) (Invocation, error) {
	var inv Invocation

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !utf8.ValidString(arg) {
			return Invocation{}, fmt.Errorf("%w: argument %d is not valid UTF-8", ErrMalformedInvocation, i)
		}

		switch {
		case arg == flagCrateName:
			value, err := flagValue(args, i)
			if err != nil {
				return Invocation{}, err
			}
			inv.CrateName = value
			i++
		case arg == flagCrateType:
			value, err := flagValue(args, i)
			if err != nil {
				return Invocation{}, err
			}
			inv.CrateType = value
			i++
		case strings.HasPrefix(arg, prefixExtraName):
			value, err := keyValue(arg)
			if err != nil {
				return Invocation{}, err
			}
			inv.ExtraFilename = value
		case strings.HasPrefix(arg, prefixDependency):
			value, err := keyValue(arg)
			if err != nil {
				return Invocation{}, err
			}
			inv.DependencyDir = value
		}
	}

	// Build scripts carry no usable crate type, but the marker name still needs one.
	if inv.CrateName == buildScriptCrate {
		inv.CrateType = buildScriptTarget
	}

	return inv, nil
}

// Validate rejects descriptors that cannot name a marker: a missing crate
// name, crate type or dependency dir. Without a dependency dir the marker
// would resolve against the filesystem root.
func (inv Invocation) Validate() error {
	if inv.CrateName == "" {
		return fmt.Errorf("%w: missing %s", ErrMalformedInvocation, flagCrateName)
	}
	if inv.CrateType == "" {
		return fmt.Errorf("%w: missing %s for crate %q", ErrMalformedInvocation, flagCrateType, inv.CrateName)
	}
	if inv.DependencyDir == "" {
		return fmt.Errorf("%w: missing -L dependency= for crate %q", ErrMalformedInvocation, inv.CrateName)
	}
	return nil
}

// flagValue returns the token following the flag at index i.
func flagValue(args []string, i int) (string, error) {
	if i+1 >= len(args) {
		return "", fmt.Errorf("%w: %s has no value", ErrMalformedInvocation, args[i])
	}
	value := args[i+1]
	if !utf8.ValidString(value) {
		return "", fmt.Errorf("%w: value of %s is not valid UTF-8", ErrMalformedInvocation, args[i])
	}
	return value, nil
}

// keyValue returns the right-hand side of a key=value token, split on the first '='.
func keyValue(arg string) (string, error) {
	_, value, ok := strings.Cut(arg, "=")
	if !ok {
		return "", fmt.Errorf("%w: %q has no '='", ErrMalformedInvocation, arg)
	}
	return value, nil
}
