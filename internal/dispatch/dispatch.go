// Package dispatch triggers agent compilations on the CI platform and
// correlates their state back to internal job identifiers. The CI platform
// is the only system of record for job existence: there is no local job
// table, only a self-describing identifier embedded into run metadata at
// trigger time and matched back on every status query.
package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/agentify/agentify/internal/errors"
	"github.com/agentify/agentify/internal/observability"
	"github.com/agentify/agentify/internal/spec"
)

// jobIDPattern is the wire shape of job identifiers: time plus random
// suffix, process-unique, never reused.
var jobIDPattern = regexp.MustCompile(`^compile-\d+-[a-z0-9]+$`)

// ValidJobID reports whether s is a well-formed job identifier. HTTP
// handlers call this before any lookup.
func ValidJobID(s string) bool {
	return jobIDPattern.MatchString(s)
}

// NewJobID generates a fresh job identifier.
func NewJobID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("compile-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// Dispatcher triggers remote builds and answers status queries.
type Dispatcher struct {
	cfg    Config
	client *githubClient
}

// NewDispatcher validates the config and builds a dispatcher around it.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	full := cfg.withDefaults()
	return &Dispatcher{cfg: full, client: newGitHubClient(full)}, nil
}

// Trigger fires a remote build for the given spec and returns the job id.
// A rejected dispatch returns a dispatch error and leaves no job record
// behind; the job only exists once the CI platform accepted it.
func (d *Dispatcher) Trigger(ctx context.Context, s *spec.BuildSpec) (string, error) {
	if s == nil {
		return "", errors.InvalidConfig("build spec is required")
	}

	jobID := NewJobID()
	ctx = observability.WithJobID(ctx, jobID)

	inputs := map[string]string{
		"job_id":       jobID,
		"agent_id":     s.AgentID,
		"agent_name":   s.AgentName,
		"build_target": string(s.BuildTarget),
		"platform":     string(s.Platform),
		"version":      s.Version,
	}

	if err := d.client.triggerWorkflow(ctx, inputs); err != nil {
		if errors.IsCategory(err, errors.CategoryDispatch) {
			return "", err
		}
		return "", errors.Wrap(err, errors.CategoryDispatch, errors.SeverityError, "remote build trigger failed")
	}

	observability.InfoContext(ctx, "remote build dispatched")
	return jobID, nil
}

// GetStatus queries the CI platform for the current state of a job. An
// unmatched job id yields a pending status with a diagnostic note, not an
// error: run creation may lag the dispatch call.
func (d *Dispatcher) GetStatus(ctx context.Context, jobID string) (*spec.CompilationJob, error) {
	if !ValidJobID(jobID) {
		return nil, errors.InvalidConfig(fmt.Sprintf("malformed job id %q", jobID))
	}
	ctx = observability.WithJobID(ctx, jobID)

	runs, err := d.client.listRecentRuns(ctx)
	if err != nil {
		return nil, err
	}

	run, found := MatchRun(runs, jobID)
	if !found {
		return &spec.CompilationJob{
			JobID:     jobID,
			Status:    spec.StatusPending,
			CreatedAt: time.Now(),
			Logs:      []string{"run not yet visible on the CI platform; dispatch may still be propagating"},
		}, nil
	}

	job := &spec.CompilationJob{
		JobID:     jobID,
		Status:    mapRunStatus(run),
		CreatedAt: run.CreatedAt,
		Logs:      []string{fmt.Sprintf("matched workflow run %d (%s)", run.ID, run.Status)},
	}

	switch job.Status {
	case spec.StatusCompleted:
		if err := d.attachArtifact(ctx, job, run.ID); err != nil {
			return nil, err
		}
	case spec.StatusFailed:
		d.attachFailure(ctx, job, run.ID)
	}

	return job, nil
}

// attachArtifact resolves the artifact of a successful run. A successful
// run without a matching artifact is an integrity fault, reported as a
// failed job rather than a completed one.
func (d *Dispatcher) attachArtifact(ctx context.Context, job *spec.CompilationJob, runID int64) error {
	artifacts, err := d.client.listArtifacts(ctx, runID)
	if err != nil {
		return err
	}

	art, ok := matchArtifact(artifacts, job.JobID)
	if !ok {
		job.Status = spec.StatusFailed
		job.ErrorMessage = "artifact not found: run succeeded but produced no matching artifact"
		observability.WarnContext(ctx, "integrity fault: completed run without artifact")
		return nil
	}

	job.RawArtifactLocator = art.ArchiveDownloadURL
	job.DownloadURL = "/download/artifact/" + job.JobID
	job.Logs = append(job.Logs, fmt.Sprintf("artifact %q (%d bytes)", art.Name, art.SizeInBytes))
	return nil
}

// attachFailure enriches a failed job with the first failing step name.
// Log retrieval is best effort; the failure itself is already known.
func (d *Dispatcher) attachFailure(ctx context.Context, job *spec.CompilationJob, runID int64) {
	jobs, err := d.client.listJobs(ctx, runID)
	if err != nil {
		observability.DebugContext(ctx, "could not fetch run jobs for failure detail")
		job.ErrorMessage = "remote build failed"
		return
	}
	if step, ok := firstFailingStep(jobs); ok {
		job.ErrorMessage = fmt.Sprintf("remote build failed at step %q", step)
		return
	}
	job.ErrorMessage = "remote build failed"
}

// Download fetches artifact bytes for the resolver using the stored
// credential. The caller owns the response body.
func (d *Dispatcher) Download(ctx context.Context, locator string) (*http.Response, error) {
	if locator == "" {
		return nil, errors.NotReady("artifact locator is empty")
	}
	return d.client.download(ctx, locator)
}
