package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/agentify/agentify/internal/api"
	"github.com/agentify/agentify/internal/artifact"
	"github.com/agentify/agentify/internal/build"
	"github.com/agentify/agentify/internal/compiler"
	"github.com/agentify/agentify/internal/config"
	"github.com/agentify/agentify/internal/dispatch"
	"github.com/agentify/agentify/internal/janitor"
	"github.com/agentify/agentify/internal/metrics"
	"github.com/agentify/agentify/internal/poll"
	"github.com/agentify/agentify/internal/progress"
	"github.com/agentify/agentify/internal/spec"
	"github.com/agentify/agentify/internal/store"
	"github.com/agentify/agentify/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"agentify.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
	} `cmd:"" help:"Start the compile service"`

	Compile struct {
		File string `short:"f" help:"Agent configuration file" required:""`
	} `cmd:"" help:"Compile an agent configuration once and print the result"`

	Status struct {
		JobID string `arg:"" help:"Job identifier to query"`
		Wait  bool   `short:"w" help:"Poll until the job reaches a terminal state"`
	} `cmd:"" help:"Query the status of a dispatched compilation job"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a starter configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	switch ctx.Command() {
	case "serve":
		if err := runServe(cfg); err != nil {
			slog.Error("Serve failed", "error", err)
			os.Exit(1)
		}
	case "compile":
		if err := runCompile(cfg, CLI.Compile.File); err != nil {
			slog.Error("Compile failed", "error", err)
			os.Exit(1)
		}
	case "status <job-id>":
		if err := runStatus(cfg, CLI.Status.JobID, CLI.Status.Wait); err != nil {
			slog.Error("Status failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
	}
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if CLI.Verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// buildService wires the orchestration service and its collaborators from
// configuration. The dispatcher is absent in local-only deployments.
func buildService(cfg *config.Config, notifier *progress.Notifier, recorder metrics.Recorder) (*compiler.Service, *dispatch.Dispatcher, *store.Store, error) {
	st, err := store.New(cfg.Store.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open request store: %w", err)
	}

	builder := build.NewLocalBuilder(cfg.Build.OutputDir, cfg.Build.TemplateRepo)

	var disp *dispatch.Dispatcher
	var trigger compiler.Trigger
	if cfg.RemoteEnabled() {
		disp, err = dispatch.NewDispatcher(cfg.Dispatch)
		if err != nil {
			_ = st.Close()
			return nil, nil, nil, err
		}
		trigger = disp
	}

	svc := compiler.NewService(builder, trigger, notifier, st, recorder)
	return svc, disp, st, nil
}

func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := progress.NewNotifier()
	if cfg.Progress.NATSURL != "" {
		relay, err := progress.NewNATSRelay(cfg.Progress.NATSURL, "")
		if err != nil {
			// The relay is an optional bridge; a broker outage must not
			// keep the service down.
			slog.Warn("progress relay unavailable", "error", err)
		} else {
			notifier.SetRelay(relay)
			defer relay.Close()
		}
	}

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	svc, disp, st, err := buildService(cfg, notifier, recorder)
	if err != nil {
		return err
	}
	defer st.Close()

	deps := api.Deps{
		Compiler:  svc,
		Notifier:  notifier,
		Registry:  registry,
		Recorder:  recorder,
		OutputDir: cfg.Build.OutputDir,
	}
	if disp != nil {
		deps.Status = disp
		deps.Resolver = artifact.NewResolver(disp, st)
	}
	server := api.NewServer(cfg.Server.ListenAddr, deps)

	j, err := janitor.New(cfg.Build.OutputDir, cfg.Janitor.Retention, st)
	if err != nil {
		return err
	}
	if err := j.Start(cfg.Janitor.Interval); err != nil {
		return err
	}
	defer func() { _ = j.Stop() }()

	watcher, err := config.NewWatcher(CLI.Config, func(next *config.Config) {
		// Only the logging section is safe to apply live; everything else
		// needs a restart to rewire.
		setupLogging(next)
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("config watcher failed to start", "error", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("compile service listening", "addr", cfg.Server.ListenAddr, "version", version.Version)
		errChan <- server.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping server...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stopCancel()
	if err := server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}

// agentFile is the on-disk shape accepted by the compile command: the
// agent config itself plus optional build-tuning settings.
type agentFile struct {
	spec.AgentConfig `yaml:",inline"`
	Advanced         *spec.AdvancedSettings `yaml:"advanced,omitempty"`
}

func runCompile(cfg *config.Config, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read agent config: %w", err)
	}
	var af agentFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return fmt.Errorf("parse agent config: %w", err)
	}

	svc, _, st, err := buildService(cfg, progress.NewNotifier(), nil)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := svc.Compile(context.Background(), &af.AgentConfig, af.Advanced)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runStatus(cfg *config.Config, jobID string, wait bool) error {
	if !dispatch.ValidJobID(jobID) {
		return fmt.Errorf("malformed job id %q", jobID)
	}
	if !cfg.RemoteEnabled() {
		return fmt.Errorf("remote dispatch is not configured; nothing to query")
	}
	disp, err := dispatch.NewDispatcher(cfg.Dispatch)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if !wait {
		job, err := disp.GetStatus(ctx, jobID)
		if err != nil {
			return err
		}
		return printJSON(job)
	}

	job, err := poll.Until(ctx, jobID, poll.DefaultConfig(), func(ctx context.Context) (*spec.CompilationJob, error) {
		return disp.GetStatus(ctx, jobID)
	})
	if err != nil {
		return err
	}
	return printJSON(job)
}

const starterConfig = `# Agentify compile service configuration.
server:
  listen_addr: ":8080"

# Remote builds need a GitHub repository with the compile workflow.
# The token is better supplied via AGENTIFY_GITHUB_TOKEN.
dispatch:
  owner: ""
  repo: ""
  workflow_file: "compile-agent.yml"

build:
  output_dir: "./build-output"

store:
  db_path: "agentify.db"

logging:
  level: "info"
  format: "text"
`

func runInit(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o600); err != nil {
		return err
	}
	slog.Info("Configuration written", "path", configPath)
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
