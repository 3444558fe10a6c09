package compiler

// Origin identifies where a package was resolved from.
type Origin int

const (
	OriginExternal  Origin = iota // Registry or git source
	OriginLocalPath               // Path source inside the local filesystem
)

// String returns the origin name used in logs and history records.
func (o Origin) String() string {
	switch o {
	case OriginLocalPath:
		return "local-path"
	default:
		return "external"
	}
}

// PackageID is the identity of the package that owns a compile task.
type PackageID struct {
	Name        string
	Version     string
	Origin      Origin
	ManifestDir string // Directory holding the package's Cargo.toml, if known
}

// IsPath reports whether the package comes from a local path source.
func (p PackageID) IsPath() bool {
	return p.Origin == OriginLocalPath
}

// Command is the real compiler invocation cargo asked for.
type Command struct {
	Program string
	Args    []string // Ordered arguments, the program itself excluded
	Env     []string // Extra KEY=VALUE entries appended to the inherited environment
	Dir     string   // Working directory ("" inherits the caller's)
}

// Target describes which target of the package is being compiled.
type Target struct {
	Name string
	Kind string // "lib", "bin", "custom-build", ...
	Mode string // "build", "test", "run-custom-build", ...
}

// Task is one unit of compilation dispatched by cargo or the in-process runner.
type Task struct {
	Package PackageID
	Target  Target
	Command Command
}

// Outcome is the terminal state of a dispatched task.
type Outcome int

const (
	OutcomeExecuted Outcome = iota // Real command ran
	OutcomeSkipped                 // Command suppressed, marker written instead
)

// String returns the outcome name used in logs and history records.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	default:
		return "executed"
	}
}
