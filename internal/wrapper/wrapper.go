// Package wrapper is the entry point cargo calls as RUSTC_WRAPPER, once per
// compile task and possibly many at a time.
package wrapper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aristath/cargo-build-deps/internal/compiler"
	"github.com/aristath/cargo-build-deps/internal/persistence"
	"github.com/aristath/cargo-build-deps/internal/workspace"
)

// Cargo's per-package environment.
const (
	envPkgName     = "CARGO_PKG_NAME"
	envPkgVersion  = "CARGO_PKG_VERSION"
	envManifestDir = "CARGO_MANIFEST_DIR"
	envCrateName   = "CARGO_CRATE_NAME"
)

// ErrNoCompiler is returned when the wrapper is called without a compiler path.
var ErrNoCompiler = errors.New("no compiler given to wrapper")

// Config holds the wrapper's collaborators.
type Config struct {
	Settings Settings
	Runner   compiler.CommandRunner
	Notices  io.Writer             // Receives "Skipping <name>" lines (default stderr)
	Recorder *persistence.Recorder // Optional history recorder
	Logger   *slog.Logger
	Getenv   func(string) string // default os.Getenv
}

// Wrapper dispatches one compiler invocation.
type Wrapper struct {
	settings   Settings
	runner     compiler.CommandRunner
	exec       compiler.Executor
	classifier *workspace.Classifier
	recorder   *persistence.Recorder
	logger     *slog.Logger
	getenv     func(string) string
}

// New creates a Wrapper. Settings.BuildAll selects the default executor.
func New(cfg Config) *Wrapper {
	if cfg.Notices == nil {
		cfg.Notices = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}

	var exec compiler.Executor
	if cfg.Settings.BuildAll {
		exec = compiler.NewDefaultExecutor(cfg.Runner)
	} else {
		exec = compiler.NewBuildDepsExecutor(cfg.Runner, cfg.Notices, cfg.Logger)
	}

	return &Wrapper{
		settings:   cfg.Settings,
		runner:     cfg.Runner,
		exec:       exec,
		classifier: workspace.NewClassifier(cfg.Settings.ExternalRoots...),
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
		getenv:     cfg.Getenv,
	}
}

// Run handles argv as received from cargo, minus the wrapper itself:
// args[0] is the compiler and the rest its arguments.
func (w *Wrapper) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrNoCompiler
	}

	task, ok := w.Task(args)
	if !ok {
		// Queries such as `rustc -vV` are not compile tasks.
		return w.runner.Run(ctx, compiler.Command{Program: args[0], Args: args[1:]})
	}

	w.logger.Debug("compile task",
		"package", task.Package.Name,
		"version", task.Package.Version,
		"origin", task.Package.Origin.String(),
		"target", task.Target.Name)

	start := time.Now()
	outcome, err := w.exec.Exec(ctx, task)
	w.record(ctx, task, outcome, err, time.Since(start))
	return err
}

// Task builds the compile task for args from cargo's environment. It reports
// false when cargo did not describe a package.
func (w *Wrapper) Task(args []string) (compiler.Task, bool) {
	name := w.getenv(envPkgName)
	if name == "" || len(args) == 0 {
		return compiler.Task{}, false
	}

	manifestDir := w.getenv(envManifestDir)
	target := compiler.Target{Name: w.getenv(envCrateName), Mode: "build"}
	if inv, err := compiler.ParseInvocation(args[1:]); err == nil {
		target.Kind = inv.CrateType
		if target.Name == "" {
			target.Name = inv.CrateName
		}
	}

	return compiler.Task{
		Package: compiler.PackageID{
			Name:        name,
			Version:     w.getenv(envPkgVersion),
			Origin:      w.classifier.Classify(manifestDir),
			ManifestDir: manifestDir,
		},
		Target:  target,
		Command: compiler.Command{Program: args[0], Args: args[1:]},
	}, true
}

func (w *Wrapper) record(ctx context.Context, task compiler.Task, outcome compiler.Outcome, err error, d time.Duration) {
	if w.settings.RunID == "" {
		return
	}

	o := persistence.TaskOutcome{
		RunID:    w.settings.RunID,
		Package:  task.Package.Name,
		Version:  task.Package.Version,
		Target:   task.Target.Name,
		Origin:   task.Package.Origin.String(),
		Outcome:  outcome.String(),
		Duration: d,
	}
	if err != nil {
		o.Outcome = persistence.OutcomeFailed
		o.Error = err.Error()
	} else if outcome == compiler.OutcomeSkipped {
		o.MarkerPath, _ = compiler.MarkerPath(task)
	}
	w.recorder.Record(context.WithoutCancel(ctx), o)
}
