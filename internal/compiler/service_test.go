package compiler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agerrors "github.com/agentify/agentify/internal/errors"
	"github.com/agentify/agentify/internal/observability"
	"github.com/agentify/agentify/internal/progress"
	"github.com/agentify/agentify/internal/spec"
)

type fakeBuilder struct {
	path    string
	err     error
	logs    []string
	gotStep string
}

func (f *fakeBuilder) Build(ctx context.Context, _ *spec.BuildSpec) (string, error) {
	f.gotStep = observability.GetContext(ctx).Step
	return f.path, f.err
}

func (f *fakeBuilder) Logs() []string { return f.logs }

type fakeTrigger struct {
	jobID   string
	err     error
	called  bool
	got     *spec.BuildSpec
	gotStep string
}

func (f *fakeTrigger) Trigger(ctx context.Context, s *spec.BuildSpec) (string, error) {
	f.called = true
	f.got = s
	f.gotStep = observability.GetContext(ctx).Step
	return f.jobID, f.err
}

type fakeStore struct {
	saved    []*spec.BuildSpec
	attached map[int64]string
	saveErr  error
}

func (f *fakeStore) SaveRequest(_ context.Context, s *spec.BuildSpec) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, s)
	return int64(len(f.saved)), nil
}

func (f *fakeStore) AttachJob(_ context.Context, id int64, jobID, method string) error {
	if f.attached == nil {
		f.attached = map[int64]string{}
	}
	f.attached[id] = jobID + "/" + method
	return nil
}

func demoConfig() *spec.AgentConfig {
	return &spec.AgentConfig{Name: "Demo Bot"}
}

func TestCompileLocalSuccess(t *testing.T) {
	builder := &fakeBuilder{path: "/out/demo-bot.wasm"}
	trigger := &fakeTrigger{}
	svc := NewService(builder, trigger, progress.NewNotifier(), nil, nil)

	res, err := svc.Compile(context.Background(), demoConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, MethodLocal, res.CompilationMethod)
	assert.Equal(t, "/out/demo-bot.wasm", res.PluginPath)
	assert.Empty(t, res.JobID)
	assert.False(t, trigger.called, "local success must not dispatch remotely")
}

func TestCompileFallsBackOnMissingToolchain(t *testing.T) {
	builder := &fakeBuilder{err: agerrors.ToolchainUnavailable("tinygo not available")}
	trigger := &fakeTrigger{jobID: "compile-1-aa"}
	store := &fakeStore{}
	svc := NewService(builder, trigger, progress.NewNotifier(), store, nil)

	res, err := svc.Compile(context.Background(), demoConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, MethodGitHubActions, res.CompilationMethod)
	assert.Equal(t, "compile-1-aa", res.JobID)
	assert.Empty(t, res.PluginPath)
	assert.Equal(t, "urn:agent:agentify:demo-bot", trigger.got.AgentName)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "compile-1-aa/github-actions", store.attached[1])
}

func TestCompileFailureDoesNotDispatch(t *testing.T) {
	builder := &fakeBuilder{err: agerrors.New(agerrors.CategoryCompile, agerrors.SeverityError, "syntax error")}
	trigger := &fakeTrigger{jobID: "compile-1-aa"}
	svc := NewService(builder, trigger, progress.NewNotifier(), nil, nil)

	_, err := svc.Compile(context.Background(), demoConfig(), nil)
	require.Error(t, err)
	assert.True(t, agerrors.IsCategory(err, agerrors.CategoryCompile))
	assert.False(t, trigger.called, "user compile errors must not trigger remote dispatch")
}

func TestCompilePreservesLocalReasonWhenDispatchFails(t *testing.T) {
	builder := &fakeBuilder{err: agerrors.ToolchainUnavailable("tinygo not available")}
	trigger := &fakeTrigger{err: agerrors.DispatchError("workflow rejected")}
	svc := NewService(builder, trigger, progress.NewNotifier(), nil, nil)

	_, err := svc.Compile(context.Background(), demoConfig(), nil)
	require.Error(t, err)
	assert.True(t, agerrors.IsCategory(err, agerrors.CategoryDispatch))
	assert.Contains(t, err.Error(), "tinygo not available", "local failure reason must survive the dispatch error")
}

func TestCompileRejectsInvalidConfig(t *testing.T) {
	builder := &fakeBuilder{path: "/out/x.wasm"}
	trigger := &fakeTrigger{}
	svc := NewService(builder, trigger, progress.NewNotifier(), nil, nil)

	_, err := svc.Compile(context.Background(), &spec.AgentConfig{Name: "Demo", Version: "not-semver"}, nil)
	require.Error(t, err)
	assert.False(t, trigger.called)
}

func TestCompileSurvivesStoreFailure(t *testing.T) {
	builder := &fakeBuilder{path: "/out/demo-bot.wasm"}
	store := &fakeStore{saveErr: fmt.Errorf("disk full")}
	svc := NewService(builder, &fakeTrigger{}, progress.NewNotifier(), store, nil)

	res, err := svc.Compile(context.Background(), demoConfig(), nil)
	require.NoError(t, err, "persistence is best effort")
	assert.Equal(t, MethodLocal, res.CompilationMethod)
}

func TestCompilePublishesProgress(t *testing.T) {
	notifier := progress.NewNotifier()
	events, unsubscribe := notifier.Subscribe("")
	defer unsubscribe()

	builder := &fakeBuilder{err: agerrors.ToolchainUnavailable("tinygo not available")}
	svc := NewService(builder, &fakeTrigger{jobID: "compile-1-aa"}, notifier, nil, nil)

	_, err := svc.Compile(context.Background(), demoConfig(), nil)
	require.NoError(t, err)

	var steps []string
	for len(events) > 0 {
		steps = append(steps, (<-events).Step)
	}
	assert.Equal(t, []string{progress.StepConfiguration, progress.StepCompilation, progress.StepGitHubActions}, steps)
}

func TestCompileTagsLogContextWithSteps(t *testing.T) {
	builder := &fakeBuilder{err: agerrors.ToolchainUnavailable("tinygo not available")}
	trigger := &fakeTrigger{jobID: "compile-1-aa"}
	svc := NewService(builder, trigger, progress.NewNotifier(), nil, nil)

	_, err := svc.Compile(context.Background(), demoConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, progress.StepCompilation, builder.gotStep, "build logs must carry the compilation step")
	assert.Equal(t, progress.StepGitHubActions, trigger.gotStep, "dispatch logs must carry the remote step")
}
