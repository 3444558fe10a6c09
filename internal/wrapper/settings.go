package wrapper

import (
	"path/filepath"
	"strings"
)

// Environment variables passed from the driving process to each wrapper
// process cargo spawns.
const (
	EnvWrapper       = "BUILD_DEPS_WRAPPER" // "1" when running as RUSTC_WRAPPER
	EnvBuildAll      = "BUILD_DEPS_BUILD_ALL"
	EnvRunID         = "BUILD_DEPS_RUN_ID"
	EnvHistory       = "BUILD_DEPS_HISTORY" // history database path, empty disables
	EnvExternalRoots = "BUILD_DEPS_EXTERNAL_ROOTS"
	EnvLogLevel      = "BUILD_DEPS_LOG_LEVEL"
	EnvLogFormat     = "BUILD_DEPS_LOG_FORMAT"
)

// Settings are the per-build options every wrapper process shares.
type Settings struct {
	BuildAll      bool
	RunID         string
	HistoryPath   string
	ExternalRoots []string
	LogLevel      string
	LogFormat     string
}

// IsWrapper reports whether the process was started by cargo as RUSTC_WRAPPER.
func IsWrapper(getenv func(string) string) bool {
	return getenv(EnvWrapper) == "1"
}

// SettingsFromEnv reads Settings from the environment.
func SettingsFromEnv(getenv func(string) string) Settings {
	s := Settings{
		BuildAll:    getenv(EnvBuildAll) == "1",
		RunID:       getenv(EnvRunID),
		HistoryPath: getenv(EnvHistory),
		LogLevel:    getenv(EnvLogLevel),
		LogFormat:   getenv(EnvLogFormat),
	}
	if roots := getenv(EnvExternalRoots); roots != "" {
		s.ExternalRoots = filepath.SplitList(roots)
	}
	return s
}

// Environ renders Settings as KEY=VALUE pairs for the cargo child process.
func (s Settings) Environ() []string {
	env := []string{EnvWrapper + "=1"}
	if s.BuildAll {
		env = append(env, EnvBuildAll+"=1")
	}
	if s.RunID != "" {
		env = append(env, EnvRunID+"="+s.RunID)
	}
	if s.HistoryPath != "" {
		env = append(env, EnvHistory+"="+s.HistoryPath)
	}
	if len(s.ExternalRoots) > 0 {
		env = append(env, EnvExternalRoots+"="+strings.Join(s.ExternalRoots, string(filepath.ListSeparator)))
	}
	if s.LogLevel != "" {
		env = append(env, EnvLogLevel+"="+s.LogLevel)
	}
	if s.LogFormat != "" {
		env = append(env, EnvLogFormat+"="+s.LogFormat)
	}
	return env
}
