// Package janitor periodically prunes stale local build outputs. It is
// advisory housekeeping for files this process produced; remote artifacts
// and CI state are never touched.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	DefaultInterval  = time.Hour
	DefaultRetention = 24 * time.Hour
)

// Pruner is an optional extra cleanup hook, run on every sweep after the
// filesystem pass (the request store's Prune fits here).
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Janitor sweeps the local output directory on a fixed interval.
type Janitor struct {
	scheduler gocron.Scheduler
	outputDir string
	retention time.Duration
	pruner    Pruner
	now       func() time.Time
}

// New creates a janitor over outputDir. retention <= 0 uses the default;
// pruner may be nil.
func New(outputDir string, retention time.Duration, pruner Pruner) (*Janitor, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Janitor{
		scheduler: s,
		outputDir: outputDir,
		retention: retention,
		pruner:    pruner,
		now:       time.Now,
	}, nil
}

// Start schedules the sweep and begins the scheduler.
func (j *Janitor) Start(interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.sweep),
		gocron.WithName("artifact-janitor"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule janitor sweep: %w", err)
	}
	j.scheduler.Start()
	slog.Info("janitor started", "interval", interval, "retention", j.retention)
	return nil
}

// Stop shuts the scheduler down.
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}

func (j *Janitor) sweep() {
	removed, err := j.Sweep(context.Background())
	if err != nil {
		slog.Warn("janitor sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("janitor pruned stale build outputs", "removed", removed)
	}
}

// Sweep removes entries in the output directory older than the retention
// window and reports how many went away. Scaffold directories and built
// plugin files age out alike.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.retention)

	entries, err := os.ReadDir(j.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read output directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.outputDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("janitor could not remove stale entry", "path", path, "error", err)
			continue
		}
		removed++
	}

	if j.pruner != nil {
		if _, err := j.pruner.Prune(ctx, cutoff); err != nil {
			slog.Warn("janitor store prune failed", "error", err)
		}
	}

	return removed, nil
}
