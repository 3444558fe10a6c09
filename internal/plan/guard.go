package plan

import (
	"context"

	"github.com/aristath/cargo-build-deps/internal/compiler"
)

// GuardExecutor keeps local build scripts from running. The script binary of a
// local package is never compiled, so running it would fail; the unit is
// reported skipped without a marker instead.
type GuardExecutor struct {
	Next compiler.Executor
}

// Exec implements compiler.Executor.
func (g GuardExecutor) Exec(ctx context.Context, task compiler.Task) (compiler.Outcome, error) {
	if task.Target.Mode == CompileModeRunCustomBuild && task.Package.IsPath() {
		return compiler.OutcomeSkipped, nil
	}
	return g.Next.Exec(ctx, task)
}
