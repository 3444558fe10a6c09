package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/cargo-build-deps/internal/logging"
	"github.com/aristath/cargo-build-deps/internal/persistence"
	"github.com/aristath/cargo-build-deps/internal/process"
	"github.com/aristath/cargo-build-deps/internal/wrapper"
)

// subcommand is the name cargo passes as the first argument when the tool is
// run as `cargo build-deps`.
const subcommand = "build-deps"

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pm := process.NewProcessManager()
	go func() {
		<-ctx.Done()
		if n := pm.Count(); n > 0 {
			slog.Info("interrupted, stopping compiler processes", "count", n)
		}
		// Kill all tracked subprocesses
		_ = pm.KillAll()
	}()

	env := environment{
		args:   os.Args[1:],
		getenv: os.Getenv,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	code := run(ctx, pm, env)
	stop()
	os.Exit(code)
}

// environment is the process state run depends on.
type environment struct {
	args   []string
	getenv func(string) string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// run dispatches to wrapper mode when cargo started us as RUSTC_WRAPPER and
// to the build driver otherwise. It returns the process exit status.
func run(ctx context.Context, pm *process.ProcessManager, env environment) int {
	if wrapper.IsWrapper(env.getenv) {
		return runWrapper(ctx, pm, env)
	}

	args := env.args
	if len(args) > 0 && args[0] == subcommand {
		args = args[1:]
	}

	opts, err := parseFlags(args, env.stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := drive(ctx, pm, env, opts); err != nil {
		var failed *buildFailure
		if errors.As(err, &failed) {
			// The compiler or cargo already reported the failure
			return failed.code
		}
		fmt.Fprintf(env.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runWrapper handles one compiler invocation on behalf of cargo.
func runWrapper(ctx context.Context, pm *process.ProcessManager, env environment) int {
	settings := wrapper.SettingsFromEnv(env.getenv)
	logger := logging.SetupWriter(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat}, env.stderr)

	var recorder *persistence.Recorder
	if settings.HistoryPath != "" && settings.RunID != "" {
		store, err := persistence.NewSQLiteStore(ctx, settings.HistoryPath)
		if err != nil {
			logger.Warn("build history unavailable", "path", settings.HistoryPath, "error", err)
		} else {
			defer store.Close()
			recorder = persistence.NewRecorder(store, logger)
		}
	}

	w := wrapper.New(wrapper.Config{
		Settings: settings,
		Runner:   process.NewRunner(pm, process.WithStdio(env.stdin, env.stdout, env.stderr)),
		Notices:  env.stderr,
		Recorder: recorder,
		Logger:   logger,
		Getenv:   env.getenv,
	})

	err := w.Run(ctx, env.args)
	if err == nil {
		return 0
	}
	if isExitError(err) {
		// rustc printed its own diagnostics
		return process.ExitCode(err)
	}
	fmt.Fprintf(env.stderr, "error: %v\n", err)
	return 1
}

// options are the driver's command-line flags.
type options struct {
	release     bool
	buildAll    bool
	jobs        int
	planFile    string
	inProcess   bool
	tui         bool
	manifestDir string
	noHistory   bool
	logLevel    string
	writeConfig bool
	history     bool
	runID       string
	cargoArgs   []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("cargo-build-deps", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: cargo build-deps [flags] [-- cargo args]")
		fmt.Fprintln(fs.Output(), "\nBuilds external dependencies and fakes fingerprints for local packages.")
		fmt.Fprintln(fs.Output(), "\nFlags:")
		fs.PrintDefaults()
	}

	fs.BoolVar(&opts.release, "release", false, "build in release mode")
	fs.BoolVar(&opts.buildAll, "build-all", false, "build local packages too")
	fs.IntVar(&opts.jobs, "jobs", 0, "max concurrent units in-process (0 = config or CPU count)")
	fs.StringVar(&opts.planFile, "plan", "", "read the build plan from `file` instead of running cargo (implies -in-process)")
	fs.BoolVar(&opts.inProcess, "in-process", false, "schedule units from cargo's build plan instead of wrapping rustc")
	fs.BoolVar(&opts.tui, "tui", false, "show live progress (in-process only)")
	fs.StringVar(&opts.manifestDir, "manifest-dir", ".", "directory to search for Cargo.toml")
	fs.BoolVar(&opts.noHistory, "no-history", false, "do not record build history")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&opts.writeConfig, "write-config", false, "write the effective config to the project config file and exit")
	fs.BoolVar(&opts.history, "history", false, "print the last recorded build and exit")
	fs.StringVar(&opts.runID, "run", "", "with -history, print the build with this `id` instead")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.jobs < 0 {
		fmt.Fprintln(stderr, "-jobs must not be negative")
		return options{}, fmt.Errorf("invalid -jobs %d", opts.jobs)
	}
	if opts.planFile != "" {
		opts.inProcess = true
	}
	if opts.tui && !opts.inProcess {
		fmt.Fprintln(stderr, "-tui requires -in-process or -plan")
		return options{}, errors.New("-tui without -in-process")
	}

	if opts.runID != "" && !opts.history {
		fmt.Fprintln(stderr, "-run requires -history")
		return options{}, errors.New("-run without -history")
	}

	opts.cargoArgs = fs.Args()
	return opts, nil
}
