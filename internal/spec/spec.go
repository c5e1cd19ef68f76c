// Package spec defines the canonical build specification for an agent and
// the normalization pass that produces it from loosely-typed user input.
package spec

import (
	"time"
)

// BuildTarget selects the artifact kind produced by a build.
type BuildTarget string

const (
	TargetWASM         BuildTarget = "wasm"
	TargetNativePlugin BuildTarget = "native-plugin"
)

// Platform selects the operating system a native plugin is built for.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
	PlatformDarwin  Platform = "darwin"
)

// ResourceLimits bounds the runtime footprint of the compiled agent.
type ResourceLimits struct {
	MemoryMB   int `json:"memory_mb" yaml:"memory_mb"`
	CPUMillis  int `json:"cpu_millis" yaml:"cpu_millis"`
	TimeoutSec int `json:"timeout_sec" yaml:"timeout_sec"`
}

// AgentConfig is the loosely-typed input record a user submits. Every field
// is optional; normalization fills the gaps.
type AgentConfig struct {
	AgentID      string         `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Name         string         `json:"name,omitempty" yaml:"name,omitempty"`
	AgentName    string         `json:"agent_name,omitempty" yaml:"agent_name,omitempty"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	Version      string         `json:"version,omitempty" yaml:"version,omitempty"`
	Personality  string         `json:"personality,omitempty" yaml:"personality,omitempty"`
	Instructions string         `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Features     []string       `json:"features,omitempty" yaml:"features,omitempty"`
	Settings     map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// AdvancedSettings carries the optional build-tuning knobs of a compile
// request, kept separate from the agent description itself.
type AdvancedSettings struct {
	ResourceLimits   *ResourceLimits `json:"resource_limits,omitempty" yaml:"resource_limits,omitempty"`
	NetworkAccess    bool            `json:"network_access" yaml:"network_access"`
	FileSystemAccess bool            `json:"filesystem_access" yaml:"filesystem_access"`
	Dependencies     []string        `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// BuildSpec is the canonical, fully-defaulted description of what to build.
type BuildSpec struct {
	AgentID          string         `json:"agent_id" yaml:"agent_id"`
	AgentName        string         `json:"agent_name" yaml:"agent_name"`
	Description      string         `json:"description,omitempty" yaml:"description,omitempty"`
	Version          string         `json:"version" yaml:"version"`
	Instructions     string         `json:"instructions" yaml:"instructions"`
	BuildTarget      BuildTarget    `json:"build_target" yaml:"build_target"`
	Platform         Platform       `json:"platform" yaml:"platform"`
	ResourceLimits   ResourceLimits `json:"resource_limits" yaml:"resource_limits"`
	NetworkAccess    bool           `json:"network_access" yaml:"network_access"`
	FileSystemAccess bool           `json:"filesystem_access" yaml:"filesystem_access"`
	Dependencies     []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// DisplayName derives a human-readable name from the canonical URN, used
// when building artifact filenames.
func (s *BuildSpec) DisplayName() string {
	return SlugFromURN(s.AgentName)
}

// JobStatus is the lifecycle state of a dispatched compilation job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions occur from this status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CompilationJob is the tracked state of one dispatched remote build. It is
// created at trigger time and mutated only by status observation; the CI
// platform remains the single source of truth for its existence.
type CompilationJob struct {
	JobID       string      `json:"job_id"`
	Status      JobStatus   `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	BuildTarget BuildTarget `json:"build_target,omitempty"`
	Platform    Platform    `json:"platform,omitempty"`

	// DownloadURL is present only when Status is StatusCompleted.
	DownloadURL string `json:"download_url,omitempty"`

	// RawArtifactLocator is the platform-internal pointer used to fetch
	// bytes. Never exposed to clients directly.
	RawArtifactLocator string `json:"-"`

	// ErrorMessage is present only when Status is StatusFailed.
	ErrorMessage string `json:"error_message,omitempty"`

	Logs []string `json:"logs,omitempty"`
}
