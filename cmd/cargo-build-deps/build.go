package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/aristath/cargo-build-deps/internal/compiler"
	"github.com/aristath/cargo-build-deps/internal/config"
	"github.com/aristath/cargo-build-deps/internal/events"
	"github.com/aristath/cargo-build-deps/internal/logging"
	"github.com/aristath/cargo-build-deps/internal/persistence"
	"github.com/aristath/cargo-build-deps/internal/plan"
	"github.com/aristath/cargo-build-deps/internal/process"
	"github.com/aristath/cargo-build-deps/internal/runner"
	"github.com/aristath/cargo-build-deps/internal/scheduler"
	"github.com/aristath/cargo-build-deps/internal/tui"
	"github.com/aristath/cargo-build-deps/internal/workspace"
	"github.com/aristath/cargo-build-deps/internal/wrapper"
)

// Run modes recorded in history.
const (
	modeWrapper   = "wrapper"
	modeInProcess = "in-process"
)

// buildFailure is a build that ran and failed with a child exit status.
type buildFailure struct {
	code int
	err  error
}

func (e *buildFailure) Error() string { return e.err.Error() }
func (e *buildFailure) Unwrap() error { return e.err }

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// asBuildFailure turns child exit statuses into buildFailure and passes other
// errors through.
func asBuildFailure(err error) error {
	if err != nil && isExitError(err) {
		return &buildFailure{code: process.ExitCode(err), err: err}
	}
	return err
}

// driver carries the state shared by the build modes.
type driver struct {
	env         environment
	opts        options
	ws          *workspace.Workspace
	cfg         *config.BuildDepsConfig
	globalPath  string
	projectPath string
	extRoots    []string // Configured external roots plus vendored sources
	logger      *slog.Logger
	pm          *process.ProcessManager
	runID       string
	recorder    *persistence.Recorder
}

// drive loads the workspace and config, then runs the selected mode.
func drive(ctx context.Context, pm *process.ProcessManager, env environment, opts options) error {
	ws, err := workspace.Load(opts.manifestDir)
	if err != nil {
		return err
	}

	globalPath, projectPath, err := config.Paths(ws.Root)
	if err != nil {
		return err
	}
	cfg, err := config.Load(globalPath, projectPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, opts)

	if opts.history {
		return showHistory(ctx, env.stdout, cfg.HistoryPath(ws.TargetDir), opts.runID)
	}

	if opts.writeConfig {
		if err := config.Save(cfg, projectPath); err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "wrote %s\n", projectPath)
		return nil
	}

	d := &driver{
		env:         env,
		opts:        opts,
		ws:          ws,
		cfg:         cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
		logger:      logging.SetupWriter(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, env.stderr),
		pm:          pm,
		runID:       uuid.NewString(),
	}

	vendored, err := workspace.VendorDirs(ws.Root)
	if err != nil {
		return fmt.Errorf("reading cargo source replacement: %w", err)
	}
	d.extRoots = append(slices.Clone(cfg.ExternalRoots), vendored...)

	mode := modeWrapper
	if opts.inProcess {
		mode = modeInProcess
	}

	historyPath := cfg.HistoryPath(ws.TargetDir)
	if historyPath != "" {
		store, err := persistence.NewSQLiteStore(ctx, historyPath)
		if err != nil {
			d.logger.Warn("build history unavailable", "path", historyPath, "error", err)
			historyPath = ""
		} else {
			defer store.Close()
			d.recorder = persistence.NewRecorder(store, d.logger)
		}
	}

	d.recorder.BeginRun(ctx, persistence.Run{
		ID:        d.runID,
		Mode:      mode,
		Profile:   profile(cfg.Release),
		Workspace: ws.Root,
	})

	d.logger.Debug("starting build",
		"run", d.runID,
		"mode", mode,
		"workspace", ws.Root,
		"target_dir", ws.TargetDir,
		"external_roots", d.extRoots,
		"build_all", opts.buildAll)

	if opts.inProcess {
		err = d.runInProcess(ctx)
	} else {
		err = d.runCargo(ctx, historyPath)
	}

	status := persistence.RunSucceeded
	if err != nil {
		status = persistence.RunFailed
	}
	d.recorder.FinishRun(context.WithoutCancel(ctx), d.runID, status, err)

	return asBuildFailure(err)
}

// applyFlags overrides config values with command-line flags.
func applyFlags(cfg *config.BuildDepsConfig, opts options) {
	if opts.release {
		cfg.Release = true
	}
	if opts.jobs > 0 {
		cfg.Jobs = opts.jobs
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.noHistory {
		cfg.History.Enabled = false
	}
}

func profile(release bool) string {
	if release {
		return "release"
	}
	return "debug"
}

// cargoBuildCommand returns the cargo invocation that drives the build with
// this executable as RUSTC_WRAPPER.
func cargoBuildCommand(cfg *config.BuildDepsConfig, opts options, root, self string, settings wrapper.Settings) compiler.Command {
	args := []string{"build"}
	if cfg.Release {
		args = append(args, "--release")
	}
	args = append(args, cfg.Cargo.Args...)
	args = append(args, opts.cargoArgs...)

	env := append([]string{"RUSTC_WRAPPER=" + self}, settings.Environ()...)

	return compiler.Command{
		Program: cfg.Cargo.Command,
		Args:    args,
		Env:     env,
		Dir:     root,
	}
}

// runCargo runs cargo build with this executable as the compiler wrapper.
func (d *driver) runCargo(ctx context.Context, historyPath string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating own executable: %w", err)
	}

	settings := wrapper.Settings{
		BuildAll:      d.opts.buildAll,
		ExternalRoots: d.extRoots,
		LogLevel:      d.cfg.Log.Level,
		LogFormat:     d.cfg.Log.Format,
	}
	if historyPath != "" {
		settings.RunID = d.runID
		settings.HistoryPath = historyPath
	}

	cmd := cargoBuildCommand(d.cfg, d.opts, d.ws.Root, self, settings)
	r := process.NewRunner(d.pm, process.WithStdio(d.env.stdin, d.env.stdout, d.env.stderr))
	return r.Run(ctx, cmd)
}

// runInProcess schedules the build plan's units itself.
func (d *driver) runInProcess(ctx context.Context) error {
	p, err := d.loadPlan(ctx)
	if err != nil {
		// Captured cargo output is only in the message, so it must not pass
		// for a build failure that was already reported.
		return fmt.Errorf("loading build plan: %v", err)
	}

	dag, err := p.DAG(workspace.NewClassifier(d.extRoots...))
	if err != nil {
		return err
	}

	// Compiler output would corrupt the TUI; send it to a log file instead.
	stdout, stderr := d.env.stdout, d.env.stderr
	if d.opts.tui {
		logFile, err := d.openBuildLog()
		if err != nil {
			return err
		}
		defer logFile.Close()
		stdout, stderr = logFile, logFile
	}

	cmdRunner := process.NewRunner(d.pm, process.WithStdio(nil, stdout, stderr))
	var executor compiler.Executor
	if d.opts.buildAll {
		executor = compiler.NewDefaultExecutor(cmdRunner)
	} else {
		executor = plan.GuardExecutor{Next: compiler.NewBuildDepsExecutor(cmdRunner, stdout, d.logger)}
	}

	jobs := d.cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	bus := events.NewEventBus()
	pr := runner.NewParallelRunner(runner.Config{
		Jobs:     jobs,
		RunID:    d.runID,
		Bus:      bus,
		Recorder: d.recorder,
		Logger:   d.logger,
	}, dag, scheduler.NewResourceLockManager(), executor)

	if !d.opts.tui {
		defer bus.Close()
		results, err := pr.Run(ctx)
		printSummary(d.env.stderr, results)
		return err
	}

	return d.runWithTUI(ctx, pr, bus)
}

// runWithTUI runs the build while the TUI renders its events. The TUI stays
// open after the build until the user quits.
func (d *driver) runWithTUI(ctx context.Context, pr *runner.ParallelRunner, bus *events.EventBus) error {
	model := tui.New(bus, d.cfg, d.globalPath, d.projectPath)
	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	buildCtx, cancelBuild := context.WithCancel(ctx)
	defer cancelBuild()

	buildErr := make(chan error, 1)
	go func() {
		results, err := pr.Run(buildCtx)
		d.logger.Debug("build finished", "units", len(results), "error", err)
		bus.Close()
		buildErr <- err
	}()

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		d.logger.Warn("TUI exited with error", "error", err)
	}

	// Quitting the TUI early stops the build.
	cancelBuild()

	select {
	case err := <-buildErr:
		return err
	case <-time.After(10 * time.Second):
		return errors.New("build did not stop after the TUI exited")
	}
}

func (d *driver) loadPlan(ctx context.Context) (*plan.Plan, error) {
	if d.opts.planFile != "" {
		f, err := os.Open(d.opts.planFile)
		if err != nil {
			return nil, fmt.Errorf("opening build plan: %w", err)
		}
		defer f.Close()
		return plan.Parse(f)
	}

	return plan.Generate(ctx, process.NewRunner(d.pm), plan.GenerateOptions{
		Cargo:     d.cfg.Cargo.Command,
		Toolchain: d.cfg.Cargo.Toolchain,
		Args:      append(append([]string{}, d.cfg.Cargo.Args...), d.opts.cargoArgs...),
		Release:   d.cfg.Release,
		Dir:       d.ws.Root,
	})
}

func (d *driver) openBuildLog() (*os.File, error) {
	path := filepath.Join(d.ws.TargetDir, "build-deps", "last-build.log")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating build log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating build log: %w", err)
	}
	return f, nil
}

// printSummary writes a one-line tally of unit outcomes.
func printSummary(w io.Writer, results []runner.TaskResult) {
	var executed, skipped, failed int
	for _, r := range results {
		switch r.Outcome {
		case persistence.OutcomeExecuted:
			executed++
		case persistence.OutcomeSkipped:
			skipped++
		case persistence.OutcomeFailed:
			failed++
		}
	}
	fmt.Fprintf(w, "build-deps: %d executed, %d skipped, %d failed\n", executed, skipped, failed)
}
