package config

// CargoConfig defines how cargo itself is invoked.
type CargoConfig struct {
	Command   string   `json:"command"`             // Cargo binary name or path
	Args      []string `json:"args,omitempty"`      // Extra args appended to every cargo build
	Toolchain string   `json:"toolchain,omitempty"` // Toolchain for build plan generation only (e.g., "nightly")
}

// HistoryConfig controls the build history database.
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // Relative paths resolve against the target dir
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `json:"level,omitempty"`  // "debug", "info", "warn", "error"
	Format string `json:"format,omitempty"` // "text" or "json"
}

// BuildDepsConfig is the top-level configuration.
type BuildDepsConfig struct {
	Cargo         CargoConfig   `json:"cargo"`
	Jobs          int           `json:"jobs,omitempty"`           // Max concurrent units in-process (0 = number of CPUs)
	Release       bool          `json:"release,omitempty"`        // Build with --release by default
	ExternalRoots []string      `json:"external_roots,omitempty"` // Extra source dirs treated as external
	History       HistoryConfig `json:"history"`
	Log           LogConfig     `json:"log"`
}
