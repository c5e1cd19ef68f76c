// Package config loads and validates the service configuration: YAML file,
// optional .env file, environment overrides, then defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/agentify/agentify/internal/dispatch"
	"github.com/agentify/agentify/internal/errors"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Dispatch dispatch.Config `yaml:"dispatch"`
	Build    BuildConfig     `yaml:"build"`
	Progress ProgressConfig  `yaml:"progress"`
	Store    StoreConfig     `yaml:"store"`
	Janitor  JanitorConfig   `yaml:"janitor"`
	Logging  LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type BuildConfig struct {
	OutputDir    string `yaml:"output_dir"`
	TemplateRepo string `yaml:"template_repo"`
}

type ProgressConfig struct {
	// NATSURL enables the external event relay when set.
	NATSURL string `yaml:"nats_url"`
}

type StoreConfig struct {
	DBPath string `yaml:"db_path"`
}

type JanitorConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		// SSE streams stay open far longer than a normal response.
		c.Server.WriteTimeout = 0
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = "./build-output"
	}
	if c.Store.DBPath == "" {
		c.Store.DBPath = "agentify.db"
	}
	if c.Janitor.Interval <= 0 {
		c.Janitor.Interval = time.Hour
	}
	if c.Janitor.Retention <= 0 {
		c.Janitor.Retention = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Load reads the configuration file at path, overlays environment
// variables, and applies defaults. A missing file is fine when overrides
// supply everything; a malformed file is not.
func Load(path string) (*Config, error) {
	// .env is a development convenience; absence is not an error, and
	// existing process env always wins.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "read config file")
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, fmt.Sprintf("parse config file %s", path))
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides lets AGENTIFY_* variables override file values, which
// keeps credentials out of the config file entirely.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AGENTIFY_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("AGENTIFY_GITHUB_TOKEN"); v != "" {
		c.Dispatch.Token = v
	}
	if v := os.Getenv("AGENTIFY_GITHUB_OWNER"); v != "" {
		c.Dispatch.Owner = v
	}
	if v := os.Getenv("AGENTIFY_GITHUB_REPO"); v != "" {
		c.Dispatch.Repo = v
	}
	if v := os.Getenv("AGENTIFY_OUTPUT_DIR"); v != "" {
		c.Build.OutputDir = v
	}
	if v := os.Getenv("AGENTIFY_NATS_URL"); v != "" {
		c.Progress.NATSURL = v
	}
	if v := os.Getenv("AGENTIFY_DB_PATH"); v != "" {
		c.Store.DBPath = v
	}
	if v := os.Getenv("AGENTIFY_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks the parts a serve run cannot do without. The dispatch
// section is only validated when remote builds are configured at all.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.InvalidConfig(fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.InvalidConfig(fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}
	if c.RemoteEnabled() {
		if err := c.Dispatch.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RemoteEnabled reports whether any dispatch setting is present. Without
// it the service runs local-only and toolchain gaps become hard failures.
func (c *Config) RemoteEnabled() bool {
	return c.Dispatch.Owner != "" || c.Dispatch.Repo != "" || c.Dispatch.Token != ""
}
