package process

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aristath/cargo-build-deps/internal/compiler"
)

// Runner runs compiler commands as child processes. It implements
// compiler.CommandRunner.
type Runner struct {
	pm     *ProcessManager
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithStdio overrides the streams forwarded to child processes.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewRunner creates a Runner forwarding the current process's stdio.
// pm may be nil when no shutdown tracking is needed.
func NewRunner(pm *ProcessManager, opts ...Option) *Runner {
	r := &Runner{
		pm:     pm,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd verbatim, forwarding its I/O. A non-zero exit is returned
// as the *exec.ExitError from the child.
func (r *Runner) Run(ctx context.Context, c compiler.Command) error {
	cmd := fromCompiler(ctx, c)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	return runCommand(cmd, r.pm)
}

// Capture executes cmd and returns its stdout. Stderr is included in the
// error on failure.
func (r *Runner) Capture(ctx context.Context, c compiler.Command) ([]byte, error) {
	cmd := fromCompiler(ctx, c)
	stdout, _, err := executeCommand(ctx, cmd, r.pm)
	if err != nil {
		return stdout, fmt.Errorf("%s: %w", c.Program, err)
	}
	return stdout, nil
}
