package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentify/agentify/internal/spec"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func demoSpec(t *testing.T, name string) *spec.BuildSpec {
	t.Helper()
	bs, _, err := spec.Normalize(&spec.AgentConfig{Name: name}, nil, spec.Options{})
	require.NoError(t, err)
	return bs
}

func TestSaveAndListRequests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveRequest(ctx, demoSpec(t, "First Bot"))
	require.NoError(t, err)
	second, err := s.SaveRequest(ctx, demoSpec(t, "Second Bot"))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	recent, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second-bot", recent[0].AgentName, "newest first, stored as the display slug")
	assert.Equal(t, spec.TargetWASM, recent[0].Target)
	assert.Equal(t, "pending", recent[0].Status)
}

func TestAttachJobAndNameLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRequest(ctx, demoSpec(t, "Demo Bot"))
	require.NoError(t, err)
	require.NoError(t, s.AttachJob(ctx, id, "compile-1-aa", "github-actions"))

	name, ok := s.AgentNameForJob(ctx, "compile-1-aa")
	require.True(t, ok)
	assert.Equal(t, "demo-bot", name, "lookup returns the display slug, not the URN")

	_, ok = s.AgentNameForJob(ctx, "compile-9-zz")
	assert.False(t, ok, "unknown job id is a miss, not an error")
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRequest(ctx, demoSpec(t, "Demo Bot"))
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, id, spec.StatusCompleted))

	recent, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, string(spec.StatusCompleted), recent[0].Status)
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveRequest(ctx, demoSpec(t, "Old Bot"))
	require.NoError(t, err)

	// Nothing is older than an hour ago yet.
	n, err := s.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	recent, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
