package config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *BuildDepsConfig {
	return &BuildDepsConfig{
		Cargo: CargoConfig{
			Command:   "cargo",
			Toolchain: "nightly",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "build-deps/history.db",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}
