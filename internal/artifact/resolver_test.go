package artifact

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agerrors "github.com/agentify/agentify/internal/errors"
	"github.com/agentify/agentify/internal/spec"
)

type fakeSource struct {
	job      *spec.CompilationJob
	jobErr   error
	payload  []byte
	ctype    string
	download func(locator string) (*http.Response, error)
}

func (f *fakeSource) GetStatus(ctx context.Context, jobID string) (*spec.CompilationJob, error) {
	return f.job, f.jobErr
}

func (f *fakeSource) Download(ctx context.Context, locator string) (*http.Response, error) {
	if f.download != nil {
		return f.download(locator)
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Body:          io.NopCloser(strings.NewReader(string(f.payload))),
		ContentLength: int64(len(f.payload)),
		Header:        http.Header{"Content-Type": []string{f.ctype}},
	}, nil
}

type fakeNames map[string]string

func (f fakeNames) AgentNameForJob(ctx context.Context, jobID string) (string, bool) {
	n, ok := f[jobID]
	return n, ok
}

func TestResolveCompletedJob(t *testing.T) {
	payload := []byte("PK\x03\x04 zip bytes")
	src := &fakeSource{
		job: &spec.CompilationJob{
			JobID:              "compile-1-aa",
			Status:             spec.StatusCompleted,
			RawArtifactLocator: "http://artifacts/99",
		},
		payload: payload,
		ctype:   "application/zip",
	}
	r := NewResolver(src, fakeNames{"compile-1-aa": "Demo Bot"})

	got, err := r.Resolve(context.Background(), "compile-1-aa")
	require.NoError(t, err)
	defer got.Body.Close()

	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, body, "bytes must match the remote artifact")
	assert.Equal(t, int64(len(payload)), got.Length)
	assert.Equal(t, "demo-bot-plugin-compile-1-aa.zip", got.Filename)
	assert.Equal(t, "application/zip", got.ContentType)
}

func TestResolveSlugsStoredURN(t *testing.T) {
	src := &fakeSource{
		job: &spec.CompilationJob{
			JobID:              "compile-1-aa",
			Status:             spec.StatusCompleted,
			RawArtifactLocator: "http://artifacts/99",
		},
		payload: []byte("x"),
		ctype:   "application/zip",
	}
	r := NewResolver(src, fakeNames{"compile-1-aa": "urn:agent:agentify:demo-bot"})

	got, err := r.Resolve(context.Background(), "compile-1-aa")
	require.NoError(t, err)
	got.Body.Close()
	assert.Equal(t, "demo-bot-plugin-compile-1-aa.zip", got.Filename,
		"a URN-valued record must not leak into the filename")
}

func TestResolveNotReadyBeforeCompletion(t *testing.T) {
	for _, status := range []spec.JobStatus{spec.StatusPending, spec.StatusInProgress, spec.StatusFailed} {
		src := &fakeSource{job: &spec.CompilationJob{JobID: "compile-1-aa", Status: status}}
		r := NewResolver(src, nil)

		_, err := r.Resolve(context.Background(), "compile-1-aa")
		require.Error(t, err, "status %s", status)
		assert.True(t, agerrors.IsCategory(err, agerrors.CategoryNotReady), "status %s", status)
	}
}

func TestResolveMissingLocatorIsIntegrityFault(t *testing.T) {
	src := &fakeSource{job: &spec.CompilationJob{JobID: "compile-1-aa", Status: spec.StatusCompleted}}
	r := NewResolver(src, nil)

	_, err := r.Resolve(context.Background(), "compile-1-aa")
	require.Error(t, err)
	assert.True(t, agerrors.IsCategory(err, agerrors.CategoryIntegrity),
		"completed without a locator cannot be cured by polling")
}

func TestResolveFallbackAgentName(t *testing.T) {
	src := &fakeSource{
		job: &spec.CompilationJob{
			JobID:              "compile-1-aa",
			Status:             spec.StatusCompleted,
			RawArtifactLocator: "http://artifacts/99",
		},
		payload: []byte("x"),
		ctype:   "application/octet-stream",
	}
	r := NewResolver(src, nil)

	got, err := r.Resolve(context.Background(), "compile-1-aa")
	require.NoError(t, err)
	got.Body.Close()
	assert.Equal(t, "agent-plugin-compile-1-aa.zip", got.Filename)
}

func TestResolveDefaultsContentType(t *testing.T) {
	src := &fakeSource{
		job: &spec.CompilationJob{
			JobID:              "compile-1-aa",
			Status:             spec.StatusCompleted,
			RawArtifactLocator: "http://artifacts/99",
		},
		payload: []byte("x"),
		ctype:   "",
	}
	r := NewResolver(src, nil)

	got, err := r.Resolve(context.Background(), "compile-1-aa")
	require.NoError(t, err)
	got.Body.Close()
	assert.Equal(t, "application/zip", got.ContentType)
}

func TestDownloadFilenameSanitized(t *testing.T) {
	assert.Equal(t, "Demo-Bot-plugin-compile-1-aa.zip", DownloadFilename("Demo Bot!", "compile-1-aa"))
	assert.Equal(t, "agent-plugin-agent.zip", DownloadFilename("???", "///"))
}

func TestValidateLocalFilename(t *testing.T) {
	valid := []string{"agent_x1-2.so", "plugin.dll", "agent.dylib"}
	for _, name := range valid {
		assert.NoError(t, ValidateLocalFilename(name), name)
	}

	invalid := []string{
		"../../etc/passwd",
		"a/b.so",
		`a\b.so`,
		"agent.exe",
		"agent",
		"",
		"agent..so",
		"spaced name.so",
	}
	for _, name := range invalid {
		err := ValidateLocalFilename(name)
		require.Error(t, err, name)
		assert.True(t, agerrors.IsCategory(err, agerrors.CategoryValidation), name)
	}
}

func TestResolveLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.so"), []byte("elf"), 0o600))

	path, err := ResolveLocal(dir, "agent.so")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "agent.so"), path)

	_, err = ResolveLocal(dir, "missing.so")
	require.Error(t, err)
	assert.True(t, agerrors.IsCategory(err, agerrors.CategoryNotFound))

	// Validation must run before any filesystem access.
	_, err = ResolveLocal(dir, "../agent.so")
	require.Error(t, err)
	assert.True(t, agerrors.IsCategory(err, agerrors.CategoryValidation))
}
