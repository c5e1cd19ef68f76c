// Package poll provides the single poll-until-terminal primitive shared by
// the bounded server-side wait and the longer client-side loop, so the two
// cannot drift behaviorally.
package poll

import (
	"context"
	"time"

	"github.com/agentify/agentify/internal/errors"
	"github.com/agentify/agentify/internal/observability"
	"github.com/agentify/agentify/internal/spec"
)

const (
	// DefaultInterval is the fixed delay between status fetches.
	DefaultInterval = 5 * time.Second

	// ClientMaxAttempts bounds the client-side loop (~5 minutes at the
	// default interval).
	ClientMaxAttempts = 60
)

// Fetch retrieves the current state of a compilation job.
type Fetch func(ctx context.Context) (*spec.CompilationJob, error)

// Config parameterizes a polling loop.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultConfig returns the client-side loop settings.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, MaxAttempts: ClientMaxAttempts}
}

// Until polls fetch at a fixed interval until the job reaches a terminal
// status or the attempt budget is exhausted. Exhaustion is returned as data:
// a synthetic failed job whose error message contains "timeout". Retryable
// fetch errors consume an attempt and continue; non-retryable errors abort
// the loop and are returned to the caller.
func Until(ctx context.Context, jobID string, cfg Config, fetch Fetch) (*spec.CompilationJob, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		job, err := fetch(ctx)
		switch {
		case err == nil:
			if job.Status.Terminal() {
				return job, nil
			}
			lastErr = nil
		case errors.IsRetryable(err):
			observability.WarnContext(ctx, "transient poll error, retrying")
			lastErr = err
		default:
			return nil, err
		}

		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return timeoutJob(jobID, lastErr), nil
		case <-time.After(cfg.Interval):
		}
	}

	return timeoutJob(jobID, lastErr), nil
}

// WaitForCompletion is the bounded server-side wait: the millisecond budget
// is converted into an attempt count at the fixed interval. It never blocks
// meaningfully past the budget and always returns a job with a terminal
// status; a timeout is meaningful state, not an error.
func WaitForCompletion(ctx context.Context, jobID string, timeout time.Duration, fetch Fetch) *spec.CompilationJob {
	cfg := Config{Interval: DefaultInterval, MaxAttempts: attemptsForBudget(timeout, DefaultInterval)}

	waitCtx, cancel := context.WithTimeout(ctx, timeout+cfg.Interval)
	defer cancel()

	job, err := Until(waitCtx, jobID, cfg, fetch)
	if err != nil {
		return &spec.CompilationJob{
			JobID:        jobID,
			Status:       spec.StatusFailed,
			CreatedAt:    time.Now(),
			ErrorMessage: err.Error(),
		}
	}
	return job
}

func attemptsForBudget(budget, interval time.Duration) int {
	if budget <= 0 {
		return 1
	}
	n := int(budget / interval)
	if n < 1 {
		n = 1
	}
	return n
}

func timeoutJob(jobID string, lastErr error) *spec.CompilationJob {
	msg := "timeout: polling budget exhausted before job reached a terminal state"
	if lastErr != nil {
		msg = "timeout: " + lastErr.Error()
	}
	return &spec.CompilationJob{
		JobID:        jobID,
		Status:       spec.StatusFailed,
		CreatedAt:    time.Now(),
		ErrorMessage: msg,
	}
}
