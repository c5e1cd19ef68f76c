package dispatch

import (
	"net/http"
	"time"

	"github.com/agentify/agentify/internal/errors"
)

// Config carries everything the dispatcher needs to talk to the CI
// platform. It is injected at construction; nothing in the dispatch path
// reads ambient environment, which keeps the client testable with a fake
// transport.
type Config struct {
	Owner        string `yaml:"owner"`
	Repo         string `yaml:"repo"`
	WorkflowFile string `yaml:"workflow_file"`
	Ref          string `yaml:"ref"`
	Token        string `yaml:"token"`

	// APIBaseURL overrides the GitHub API endpoint, used by tests and
	// GitHub Enterprise installs. Empty means api.github.com.
	APIBaseURL string `yaml:"api_base_url"`

	// RunsPerPage bounds the recent-run scan during correlation.
	RunsPerPage int `yaml:"runs_per_page"`

	HTTPClient *http.Client `yaml:"-"`
}

const (
	defaultAPIBaseURL  = "https://api.github.com"
	defaultWorkflow    = "compile-agent.yml"
	defaultRef         = "main"
	defaultRunsPerPage = 20
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.APIBaseURL == "" {
		out.APIBaseURL = defaultAPIBaseURL
	}
	if out.WorkflowFile == "" {
		out.WorkflowFile = defaultWorkflow
	}
	if out.Ref == "" {
		out.Ref = defaultRef
	}
	if out.RunsPerPage <= 0 {
		out.RunsPerPage = defaultRunsPerPage
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return out
}

// Validate checks that the config can reach a real repository.
func (c *Config) Validate() error {
	if c.Owner == "" || c.Repo == "" {
		return errors.New(errors.CategoryConfig, errors.SeverityError, "dispatch requires owner and repo")
	}
	if c.Token == "" {
		return errors.New(errors.CategoryConfig, errors.SeverityError, "dispatch requires an API token")
	}
	return nil
}
