// Package build implements the local build adapter: a fast in-process
// compilation attempt whose deterministic failure in toolchain-less
// environments is the trigger for remote dispatch.
package build

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentify/agentify/internal/errors"
	"github.com/agentify/agentify/internal/observability"
	"github.com/agentify/agentify/internal/spec"
)

// LocalBuilder attempts an in-process toolchain build. It must fail fast
// when the toolchain is absent — the probe runs before anything else, so
// the adapter never hangs waiting on a compiler that is not there.
type LocalBuilder struct {
	outputDir    string
	templateRepo string

	mu   sync.Mutex
	logs []string

	// Seams for tests; nil means the real implementations.
	lookPath func(string) (string, error)
	execute  func(ctx context.Context, dir, name string, args ...string) ([]byte, error)
	prepare  func(ctx context.Context, repo string) (string, error)
}

// NewLocalBuilder creates an adapter writing artifacts under outputDir.
// templateRepo optionally names the agent scaffold repository cloned
// before compiling; empty skips the checkout.
func NewLocalBuilder(outputDir, templateRepo string) *LocalBuilder {
	return &LocalBuilder{
		outputDir:    outputDir,
		templateRepo: templateRepo,
		lookPath:     exec.LookPath,
		execute: func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Dir = dir
			return cmd.CombinedOutput()
		},
		prepare: cloneScaffold,
	}
}

// toolchainFor names the compiler binary a target needs on PATH.
func toolchainFor(target spec.BuildTarget) string {
	if target == spec.TargetNativePlugin {
		return "gcc"
	}
	return "tinygo"
}

// artifactExt maps target and platform to the output file extension.
func artifactExt(target spec.BuildTarget, platform spec.Platform) string {
	if target == spec.TargetWASM {
		return ".wasm"
	}
	switch platform {
	case spec.PlatformWindows:
		return ".dll"
	case spec.PlatformDarwin:
		return ".dylib"
	default:
		return ".so"
	}
}

// Build attempts a local compilation of the spec. Returns the artifact
// path on success. A missing toolchain fails immediately with a
// toolchain-category error; a failed compile fails with a compile-category
// error carrying the tool output in the log buffer.
func (b *LocalBuilder) Build(ctx context.Context, s *spec.BuildSpec) (string, error) {
	if s == nil {
		return "", errors.InvalidConfig("build spec is required")
	}
	ctx = observability.WithAgentID(ctx, s.AgentID)

	tool := toolchainFor(s.BuildTarget)
	toolPath, err := b.lookPath(tool)
	if err != nil {
		b.appendLog(fmt.Sprintf("toolchain probe: %s not found on PATH", tool))
		return "", errors.ToolchainUnavailable(fmt.Sprintf("%s not available in this environment", tool))
	}
	b.appendLog(fmt.Sprintf("toolchain probe: %s at %s", tool, toolPath))

	workDir := ""
	if b.templateRepo != "" {
		workDir, err = b.prepare(ctx, b.templateRepo)
		if err != nil {
			// Scaffold checkout failure is an environment problem, not a
			// user error: treat it like a missing toolchain so the caller
			// falls back to remote dispatch.
			b.appendLog(fmt.Sprintf("scaffold checkout failed: %v", err))
			return "", errors.ToolchainUnavailable("agent scaffold checkout failed")
		}
		b.appendLog(fmt.Sprintf("scaffold ready at %s", workDir))
	}

	if err := os.MkdirAll(b.outputDir, 0o750); err != nil {
		return "", errors.Wrap(err, errors.CategoryStorage, errors.SeverityError, "create output directory")
	}

	artifact := filepath.Join(b.outputDir, s.DisplayName()+artifactExt(s.BuildTarget, s.Platform))
	args := buildArgs(s, artifact)

	start := time.Now()
	output, err := b.execute(ctx, workDir, toolPath, args...)
	b.appendLog(string(output))
	if err != nil {
		b.appendLog(fmt.Sprintf("compile failed after %s: %v", time.Since(start).Round(time.Millisecond), err))
		return "", errors.Wrap(err, errors.CategoryCompile, errors.SeverityError, "local compilation failed")
	}

	b.appendLog(fmt.Sprintf("compiled %s in %s", artifact, time.Since(start).Round(time.Millisecond)))
	observability.InfoContext(ctx, "local build succeeded")
	return artifact, nil
}

// buildArgs assembles the compiler invocation for a target.
func buildArgs(s *spec.BuildSpec, artifact string) []string {
	if s.BuildTarget == spec.TargetWASM {
		return []string{"build", "-o", artifact, "-target", "wasi", "."}
	}
	return []string{"-shared", "-fPIC", "-o", artifact, "agent.c"}
}

// Logs returns a copy of the accumulated compilation log lines.
func (b *LocalBuilder) Logs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.logs...)
}

func (b *LocalBuilder) appendLog(line string) {
	if line == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = append(b.logs, line)
	// Bound the buffer; old lines age out first.
	const maxLines = 500
	if len(b.logs) > maxLines {
		b.logs = b.logs[len(b.logs)-maxLines:]
	}
}
