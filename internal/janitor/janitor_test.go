package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPruner struct {
	calls  int
	cutoff time.Time
}

func (r *recordingPruner) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	r.calls++
	r.cutoff = olderThan
	return 0, nil
}

func TestSweepRemovesOnlyStaleEntries(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old-agent.wasm")
	fresh := filepath.Join(dir, "new-agent.wasm")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o600))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	j, err := New(dir, 24*time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Stop() })

	removed, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale entry must be gone")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "fresh entry must survive")
}

func TestSweepRemovesStaleDirectories(t *testing.T) {
	dir := t.TempDir()
	scaffold := filepath.Join(dir, "agentify-scaffold-123")
	require.NoError(t, os.MkdirAll(scaffold, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(scaffold, "main.go"), []byte("x"), 0o600))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(scaffold, old, old))

	j, err := New(dir, 24*time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Stop() })

	removed, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestSweepMissingDirectoryIsNoop(t *testing.T) {
	j, err := New(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Stop() })

	removed, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSweepInvokesStorePruner(t *testing.T) {
	pruner := &recordingPruner{}
	j, err := New(t.TempDir(), 24*time.Hour, pruner)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Stop() })

	_, err = j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pruner.calls)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), pruner.cutoff, time.Minute)
}
