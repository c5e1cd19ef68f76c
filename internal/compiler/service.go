// Package compiler orchestrates the compile flow: normalize the agent
// config, attempt a fast local build, and fall back to remote dispatch
// when the local toolchain is unavailable.
package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/agentify/agentify/internal/errors"
	"github.com/agentify/agentify/internal/metrics"
	"github.com/agentify/agentify/internal/observability"
	"github.com/agentify/agentify/internal/progress"
	"github.com/agentify/agentify/internal/spec"
)

// Compilation methods reported to clients.
const (
	MethodLocal         = "local"
	MethodGitHubActions = "github-actions"
)

// Builder is the local build adapter seam.
type Builder interface {
	Build(ctx context.Context, s *spec.BuildSpec) (string, error)
	Logs() []string
}

// Trigger fires a remote build and returns its job id.
type Trigger interface {
	Trigger(ctx context.Context, s *spec.BuildSpec) (string, error)
}

// RequestStore is the narrow persistence surface the orchestration needs.
// A nil store disables persistence without changing behavior.
type RequestStore interface {
	SaveRequest(ctx context.Context, s *spec.BuildSpec) (int64, error)
	AttachJob(ctx context.Context, id int64, jobID, method string) error
}

// Result is the outcome of one compile request. Exactly one of JobID or
// PluginPath is set: a remote dispatch hands back a job id to poll, a
// local build hands back the finished artifact path.
type Result struct {
	JobID             string   `json:"jobId,omitempty"`
	PluginPath        string   `json:"pluginPath,omitempty"`
	CompilationMethod string   `json:"compilationMethod"`
	AgentID           string   `json:"agentId"`
	AgentName         string   `json:"agentName"`
	Warnings          []string `json:"warnings,omitempty"`
}

// Service wires the compile flow together.
type Service struct {
	builder  Builder
	trigger  Trigger
	notifier *progress.Notifier
	store    RequestStore
	recorder metrics.Recorder
}

// NewService builds the orchestration service. notifier must not be nil;
// store and recorder may be.
func NewService(builder Builder, trigger Trigger, notifier *progress.Notifier, store RequestStore, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Service{
		builder:  builder,
		trigger:  trigger,
		notifier: notifier,
		store:    store,
		recorder: recorder,
	}
}

// Compile runs the full flow for one agent config. Config and validation
// errors surface directly; a local toolchain gap is not an error but the
// trigger for remote dispatch. When the remote dispatch also fails, the
// local failure reason is preserved alongside the dispatch error.
func (s *Service) Compile(ctx context.Context, cfg *spec.AgentConfig, adv *spec.AdvancedSettings) (*Result, error) {
	start := time.Now()

	buildSpec, norm, err := spec.Normalize(cfg, adv, spec.Options{AllowSynthesizedName: true})
	if err != nil {
		return nil, err
	}
	ctx = observability.WithAgentID(ctx, buildSpec.AgentID)
	ctx = observability.WithStep(ctx, progress.StepConfiguration)

	s.notifier.Step("", progress.StepConfiguration, 10, "configuration validated", progress.StatusInProgress)

	var requestID int64
	if s.store != nil {
		requestID, err = s.store.SaveRequest(ctx, buildSpec)
		if err != nil {
			// Persistence is best effort; the compile itself must not
			// depend on the store being writable.
			observability.WarnContext(ctx, "could not persist compile request")
			requestID = 0
		}
	}

	ctx = observability.WithStep(ctx, progress.StepCompilation)
	path, localErr := s.builder.Build(ctx, buildSpec)
	if localErr == nil {
		s.notifier.Step("", progress.StepCompilation, 100, "local build complete", progress.StatusCompleted)
		s.recorder.ObserveCompileDuration(MethodLocal, time.Since(start))
		s.recorder.IncCompileOutcome(MethodLocal, metrics.ResultSuccess)
		return &Result{
			PluginPath:        path,
			CompilationMethod: MethodLocal,
			AgentID:           buildSpec.AgentID,
			AgentName:         buildSpec.AgentName,
			Warnings:          norm.Warnings,
		}, nil
	}

	if !errors.IsCategory(localErr, errors.CategoryToolchain) {
		// A real compile failure is the user's problem to fix; remote
		// dispatch would only fail the same way, slower.
		s.notifier.Step("", progress.StepCompilation, 100, "local build failed", progress.StatusError)
		s.recorder.IncCompileOutcome(MethodLocal, metrics.ResultFailed)
		return nil, localErr
	}

	if s.trigger == nil {
		// Local-only deployment: there is nowhere to fall back to.
		s.notifier.Step("", progress.StepCompilation, 100, "local build unavailable and remote dispatch not configured", progress.StatusError)
		s.recorder.IncCompileOutcome(MethodLocal, metrics.ResultFailed)
		return nil, localErr
	}

	observability.InfoContext(ctx, "local toolchain unavailable, dispatching remote build")
	s.notifier.Step("", progress.StepCompilation, 30, "local toolchain unavailable, dispatching remote build", progress.StatusInProgress)

	ctx = observability.WithStep(ctx, progress.StepGitHubActions)
	dispatchStart := time.Now()
	jobID, dispatchErr := s.trigger.Trigger(ctx, buildSpec)
	s.recorder.ObserveDispatchDuration(time.Since(dispatchStart), dispatchErr == nil)
	if dispatchErr != nil {
		s.recorder.IncCompileOutcome(MethodGitHubActions, metrics.ResultFailed)
		return nil, errors.Wrap(dispatchErr, errors.CategoryDispatch, errors.SeverityError,
			fmt.Sprintf("remote dispatch failed after local attempt (%v)", localErr))
	}

	if s.store != nil && requestID != 0 {
		if err := s.store.AttachJob(ctx, requestID, jobID, MethodGitHubActions); err != nil {
			observability.WarnContext(observability.WithJobID(ctx, jobID), "could not attach job to request record")
		}
	}

	s.notifier.Step(jobID, progress.StepGitHubActions, 50, "remote build dispatched", progress.StatusInProgress)
	s.recorder.ObserveCompileDuration(MethodGitHubActions, time.Since(start))
	s.recorder.IncCompileOutcome(MethodGitHubActions, metrics.ResultSuccess)

	return &Result{
		JobID:             jobID,
		CompilationMethod: MethodGitHubActions,
		AgentID:           buildSpec.AgentID,
		AgentName:         buildSpec.AgentName,
		Warnings:          norm.Warnings,
	}, nil
}
