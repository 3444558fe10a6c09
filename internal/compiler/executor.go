package compiler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// CommandRunner runs a real compiler command, forwarding its I/O and exit status.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) error
}

// Executor decides how a single compile task is carried out.
// Implementations must be safe for concurrent use.
type Executor interface {
	Exec(ctx context.Context, task Task) (Outcome, error)
}

// DefaultExecutor runs every task's real command.
type DefaultExecutor struct {
	Runner CommandRunner
}

// NewDefaultExecutor creates a DefaultExecutor.
func NewDefaultExecutor(runner CommandRunner) *DefaultExecutor {
	return &DefaultExecutor{Runner: runner}
}

// Exec runs the task's command. Its error is returned as is.
func (e *DefaultExecutor) Exec(ctx context.Context, task Task) (Outcome, error) {
	return OutcomeExecuted, e.Runner.Run(ctx, task.Command)
}

// BuildDepsExecutor runs tasks of external packages and skips tasks of
// local-path packages, leaving an empty fingerprint marker in their place.
type BuildDepsExecutor struct {
	runner  CommandRunner
	notices io.Writer
	logger  *slog.Logger
}

// NewBuildDepsExecutor creates a BuildDepsExecutor. Skip notices go to notices;
// a nil logger uses slog.Default.
func NewBuildDepsExecutor(runner CommandRunner, notices io.Writer, logger *slog.Logger) *BuildDepsExecutor {
	if notices == nil {
		notices = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildDepsExecutor{
		runner:  runner,
		notices: notices,
		logger:  logger,
	}
}

// Exec runs the real command for external packages. For local-path packages
// it writes the fingerprint marker instead and never runs the command.
func (e *BuildDepsExecutor) Exec(ctx context.Context, task Task) (Outcome, error) {
	if !task.Package.IsPath() {
		return OutcomeExecuted, e.runner.Run(ctx, task.Command)
	}

	fmt.Fprintf(e.notices, "Skipping %s\n", task.Package.Name)

	path, err := MarkerPath(task)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("package %s: %w", task.Package.Name, err)
	}
	if err := TouchMarker(path); err != nil {
		return OutcomeSkipped, fmt.Errorf("package %s: %w", task.Package.Name, err)
	}

	e.logger.Debug("fingerprint marker written",
		"package", task.Package.Name,
		"target", task.Target.Name,
		"path", path)

	return OutcomeSkipped, nil
}

// MarkerPath parses the task's arguments and returns its fingerprint marker path.
func MarkerPath(task Task) (string, error) {
	inv, err := ParseInvocation(task.Command.Args)
	if err != nil {
		return "", err
	}
	if err := inv.Validate(); err != nil {
		return "", err
	}
	return FingerprintPath(inv, task.Package.Name), nil
}
