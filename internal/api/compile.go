package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentify/agentify/internal/artifact"
	"github.com/agentify/agentify/internal/dispatch"
	"github.com/agentify/agentify/internal/observability"
	"github.com/agentify/agentify/internal/poll"
	"github.com/agentify/agentify/internal/spec"
)

// compileRequest is the POST /compile body. The canonical shape nests the
// agent under agentConfig with top-level buildTarget and selectedPlatform
// overrides; a flattened agent config with an advanced block is accepted
// for older clients.
type compileRequest struct {
	spec.AgentConfig
	Agent            *spec.AgentConfig      `json:"agentConfig,omitempty"`
	AdvancedSettings *spec.AdvancedSettings `json:"advancedSettings,omitempty"`
	BuildTarget      string                 `json:"buildTarget,omitempty"`
	SelectedPlatform string                 `json:"selectedPlatform,omitempty"`

	Advanced *spec.AdvancedSettings `json:"advanced,omitempty"`
}

// resolve picks the submitted agent config and folds the top-level
// overrides into its settings, where normalization expects them.
func (req *compileRequest) resolve() (*spec.AgentConfig, *spec.AdvancedSettings) {
	cfg := &req.AgentConfig
	if req.Agent != nil {
		cfg = req.Agent
	}
	if req.BuildTarget != "" || req.SelectedPlatform != "" {
		if cfg.Settings == nil {
			cfg.Settings = make(map[string]any)
		}
		if req.BuildTarget != "" {
			cfg.Settings["build_target"] = req.BuildTarget
		}
		if req.SelectedPlatform != "" {
			cfg.Settings["platform"] = req.SelectedPlatform
		}
	}
	adv := req.AdvancedSettings
	if adv == nil {
		adv = req.Advanced
	}
	return cfg, adv
}

// compileResponse is the POST /compile success body. Exactly one of jobId
// or pluginPath is present, matching the compilation method.
type compileResponse struct {
	Success           bool     `json:"success"`
	JobID             string   `json:"jobId,omitempty"`
	PluginPath        string   `json:"pluginPath,omitempty"`
	CompilationMethod string   `json:"compilationMethod"`
	Message           string   `json:"message"`
	AgentID           string   `json:"agentId,omitempty"`
	AgentName         string   `json:"agentName,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Compiler == nil {
		s.Error(w, http.StatusServiceUnavailable, "compilation is not configured")
		return
	}

	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, adv := req.resolve()

	result, err := s.deps.Compiler.Compile(r.Context(), cfg, adv)
	if err != nil {
		observability.WarnContext(r.Context(), "compile request failed")
		s.Error(w, errorStatus(err), errorMessage(err))
		return
	}

	message := "agent compiled locally"
	if result.JobID != "" {
		message = "compilation dispatched; poll the job status for progress"
	}
	s.JSON(w, http.StatusOK, compileResponse{
		Success:           true,
		JobID:             result.JobID,
		PluginPath:        result.PluginPath,
		CompilationMethod: result.CompilationMethod,
		Message:           message,
		AgentID:           result.AgentID,
		AgentName:         result.AgentName,
		Warnings:          result.Warnings,
	})
}

// statusResponse is the flat wire shape of a job status answer.
type statusResponse struct {
	Success     bool           `json:"success"`
	JobID       string         `json:"jobId"`
	Status      spec.JobStatus `json:"status"`
	DownloadURL string         `json:"downloadUrl,omitempty"`
	Error       string         `json:"error,omitempty"`
	Logs        []string       `json:"logs,omitempty"`
}

func statusFromJob(job *spec.CompilationJob) statusResponse {
	return statusResponse{
		Success:     true,
		JobID:       job.JobID,
		Status:      job.Status,
		DownloadURL: job.DownloadURL,
		Error:       job.ErrorMessage,
		Logs:        job.Logs,
	}
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if !dispatch.ValidJobID(jobID) {
		s.Error(w, http.StatusBadRequest, "missing or malformed jobId parameter")
		return
	}
	if s.deps.Status == nil {
		s.Error(w, http.StatusServiceUnavailable, "remote build status is not configured")
		return
	}

	job, err := s.deps.Status.GetStatus(r.Context(), jobID)
	if err != nil {
		s.Error(w, errorStatus(err), errorMessage(err))
		return
	}
	s.JSON(w, http.StatusOK, statusFromJob(job))
}

// waitStatusRequest is the POST /compile/status body: a bounded
// server-side wait for a terminal status.
type waitStatusRequest struct {
	JobID     string `json:"jobId"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

func (s *Server) handleWaitStatus(w http.ResponseWriter, r *http.Request) {
	var req waitStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !dispatch.ValidJobID(req.JobID) {
		s.Error(w, http.StatusBadRequest, "missing or malformed jobId")
		return
	}
	if s.deps.Status == nil {
		s.Error(w, http.StatusServiceUnavailable, "remote build status is not configured")
		return
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if timeout <= 0 || timeout > s.deps.WaitTimeoutCap {
		timeout = s.deps.WaitTimeoutCap
	}

	// The wait always resolves to a terminal job; a timeout comes back as
	// a failed job with a timeout message, never as an HTTP error.
	attempts := 0
	job := poll.WaitForCompletion(r.Context(), req.JobID, timeout, func(ctx context.Context) (*spec.CompilationJob, error) {
		attempts++
		return s.deps.Status.GetStatus(ctx, req.JobID)
	})
	if s.deps.Recorder != nil {
		s.deps.Recorder.ObservePollAttempts(attempts)
	}
	s.JSON(w, http.StatusOK, statusFromJob(job))
}

func (s *Server) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if !dispatch.ValidJobID(jobID) {
		s.Error(w, http.StatusBadRequest, "malformed job id")
		return
	}
	if s.deps.Resolver == nil {
		s.Error(w, http.StatusServiceUnavailable, "artifact download is not configured")
		return
	}

	resolved, err := s.deps.Resolver.Resolve(r.Context(), jobID)
	if err != nil {
		s.Error(w, errorStatus(err), errorMessage(err))
		return
	}
	defer resolved.Body.Close()

	w.Header().Set("Content-Type", resolved.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resolved.Filename))
	if resolved.Length > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resolved.Length, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resolved.Body); err != nil {
		observability.DebugContext(r.Context(), "artifact stream interrupted")
	}
}

func (s *Server) handleDownloadPlugin(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	path, err := artifact.ResolveLocal(s.deps.OutputDir, filename)
	if err != nil {
		s.Error(w, errorStatus(err), errorMessage(err))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.Error(w, http.StatusNotFound, "plugin file not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}
