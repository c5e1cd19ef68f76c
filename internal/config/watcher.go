package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the configuration file and delivers reloaded configs to
// a callback. Changes arrive debounced; a file that fails to parse or
// validate keeps the previous configuration in effect.
type Watcher struct {
	configPath   string
	onReload     func(*Config)
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewWatcher creates a watcher for configPath. onReload is called with
// each successfully loaded and validated configuration.
func NewWatcher(configPath string, onReload func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &Watcher{
		configPath:   absPath,
		onReload:     onReload,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Start begins monitoring. Watching the directory rather than the file
// survives editors that replace the file on save.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	configDir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}

	slog.Info("starting configuration watcher", "config_path", w.configPath)
	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	close(w.stopChan)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(w.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Rename):
				w.triggerReload()
			case event.Op.Has(fsnotify.Remove):
				slog.Warn("config file removed", "file", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-w.stopChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-w.reloadChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.debounceTime, func() {
				if err := w.performReload(); err != nil {
					slog.Error("failed to reload configuration", "error", err)
				}
			})
		}
	}
}

func (w *Watcher) triggerReload() {
	select {
	case w.reloadChan <- struct{}{}:
	default:
		// Reload already pending.
	}
}

func (w *Watcher) performReload() error {
	slog.Info("reloading configuration", "config_path", w.configPath)

	cfg, err := Load(w.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if w.onReload != nil {
		w.onReload(cfg)
	}
	slog.Info("configuration reloaded")
	return nil
}
