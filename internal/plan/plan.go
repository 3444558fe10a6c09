// Package plan reads cargo's unstable --build-plan output and turns it into
// scheduler tasks.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aristath/cargo-build-deps/internal/compiler"
	"github.com/aristath/cargo-build-deps/internal/scheduler"
)

// CompileModeRunCustomBuild is the compile mode of a build script execution unit.
const CompileModeRunCustomBuild = "run-custom-build"

// Invocation is one unit of cargo's build plan.
type Invocation struct {
	PackageName    string            `json:"package_name"`
	PackageVersion string            `json:"package_version"`
	TargetKind     []string          `json:"target_kind"`
	Kind           *string           `json:"kind"`
	CompileMode    string            `json:"compile_mode"`
	Deps           []int             `json:"deps"`
	Outputs        []string          `json:"outputs"`
	Links          map[string]string `json:"links"`
	Program        string            `json:"program"`
	Args           []string          `json:"args"`
	Env            map[string]string `json:"env"`
	Cwd            string            `json:"cwd"`
}

// Plan is the decoded build plan.
type Plan struct {
	Invocations []Invocation `json:"invocations"`
	Inputs      []string     `json:"inputs"`
}

// Classifier decides a package's origin from its manifest directory.
type Classifier interface {
	MarkLocal(manifestDir string)
	Classify(manifestDir string) compiler.Origin
}

// Parse decodes a build plan and checks that dependency indices are in range.
func Parse(r io.Reader) (*Plan, error) {
	var p Plan
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode build plan: %w", err)
	}

	for i, inv := range p.Invocations {
		for _, dep := range inv.Deps {
			if dep < 0 || dep >= len(p.Invocations) {
				return nil, fmt.Errorf("invocation %d (%s): dependency index %d out of range", i, inv.PackageName, dep)
			}
		}
	}

	return &p, nil
}

// Tasks converts the plan into scheduler tasks. Manifests listed in the plan's
// inputs belong to the workspace and are marked local before classification.
func (p *Plan) Tasks(classifier Classifier) []*scheduler.Task {
	for _, input := range p.Inputs {
		classifier.MarkLocal(filepath.Dir(input))
	}

	tasks := make([]*scheduler.Task, 0, len(p.Invocations))
	for i, inv := range p.Invocations {
		deps := make([]string, 0, len(inv.Deps))
		for _, dep := range inv.Deps {
			deps = append(deps, unitID(dep))
		}

		manifestDir := inv.Env["CARGO_MANIFEST_DIR"]
		if manifestDir == "" {
			manifestDir = inv.Cwd
		}

		unit := compiler.Task{
			Package: compiler.PackageID{
				Name:        inv.PackageName,
				Version:     inv.PackageVersion,
				Origin:      classifier.Classify(manifestDir),
				ManifestDir: manifestDir,
			},
			Target: compiler.Target{
				Name: targetName(inv),
				Kind: strings.Join(inv.TargetKind, ","),
				Mode: inv.CompileMode,
			},
			Command: compiler.Command{
				Program: inv.Program,
				Args:    inv.Args,
				Env:     sortedEnv(inv.Env),
				Dir:     inv.Cwd,
			},
		}

		tasks = append(tasks, &scheduler.Task{
			ID:          unitID(i),
			Name:        fmt.Sprintf("%s v%s (%s)", inv.PackageName, inv.PackageVersion, unitLabel(inv)),
			Unit:        unit,
			DependsOn:   deps,
			WritesFiles: inv.Outputs,
			Status:      scheduler.TaskPending,
		})
	}

	return tasks
}

// DAG builds and validates a scheduler DAG from the plan.
func (p *Plan) DAG(classifier Classifier) (*scheduler.DAG, error) {
	dag := scheduler.NewDAG()
	for _, task := range p.Tasks(classifier) {
		if err := dag.AddTask(task); err != nil {
			return nil, err
		}
	}
	if _, err := dag.Validate(); err != nil {
		return nil, err
	}
	return dag, nil
}

func unitID(index int) string {
	return "u" + strconv.Itoa(index)
}

// targetName prefers the crate name from the compiler arguments.
func targetName(inv Invocation) string {
	for i := 0; i+1 < len(inv.Args); i++ {
		if inv.Args[i] == "--crate-name" {
			return inv.Args[i+1]
		}
	}
	return strings.ReplaceAll(inv.PackageName, "-", "_")
}

func unitLabel(inv Invocation) string {
	if inv.CompileMode == CompileModeRunCustomBuild {
		return "build script run"
	}
	kind := strings.Join(inv.TargetKind, ",")
	if inv.CompileMode != "" && inv.CompileMode != "build" {
		return kind + " " + inv.CompileMode
	}
	return kind
}

func sortedEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// CommandRunner captures the output of a command.
type CommandRunner interface {
	Capture(ctx context.Context, c compiler.Command) ([]byte, error)
}

// GenerateOptions selects how cargo is invoked to produce a plan.
type GenerateOptions struct {
	Cargo     string   // cargo executable (default "cargo")
	Toolchain string   // rustup toolchain, "" for the default
	Args      []string // extra cargo build arguments
	Release   bool
	Dir       string // workspace root
}

// Generate runs cargo with --build-plan and parses its output. Build plans
// are unstable and need a nightly toolchain.
func Generate(ctx context.Context, runner CommandRunner, opts GenerateOptions) (*Plan, error) {
	cargo := opts.Cargo
	if cargo == "" {
		cargo = "cargo"
	}

	var args []string
	if opts.Toolchain != "" {
		args = append(args, "+"+opts.Toolchain)
	}
	args = append(args, "build", "--build-plan", "-Z", "unstable-options")
	if opts.Release {
		args = append(args, "--release")
	}
	args = append(args, opts.Args...)

	out, err := runner.Capture(ctx, compiler.Command{Program: cargo, Args: args, Dir: opts.Dir})
	if err != nil {
		return nil, fmt.Errorf("cargo build --build-plan failed: %w", err)
	}

	return Parse(strings.NewReader(string(out)))
}
