package dispatch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/agentify/agentify/internal/errors"
	"github.com/agentify/agentify/internal/version"
)

// githubClient is a thin GitHub Actions REST client. Only the five calls
// the dispatcher needs are implemented: workflow dispatch, run listing,
// artifact listing, job listing, and authenticated artifact download.
type githubClient struct {
	cfg        Config
	httpClient *http.Client
}

func newGitHubClient(cfg Config) *githubClient {
	return &githubClient{cfg: cfg, httpClient: cfg.HTTPClient}
}

// workflowRun mirrors the subset of the Actions run object used for
// correlation and state mapping.
type workflowRun struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DisplayTitle string `json:"display_title"`
	Status       string `json:"status"`
	Conclusion   string `json:"conclusion"`
	CreatedAt    time.Time `json:"created_at"`
	HeadCommit   struct {
		Message string `json:"message"`
	} `json:"head_commit"`
}

type runList struct {
	WorkflowRuns []workflowRun `json:"workflow_runs"`
}

type runArtifact struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	SizeInBytes        int64  `json:"size_in_bytes"`
	ArchiveDownloadURL string `json:"archive_download_url"`
	Expired            bool   `json:"expired"`
}

type artifactList struct {
	Artifacts []runArtifact `json:"artifacts"`
}

type runJob struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	Steps      []struct {
		Name       string `json:"name"`
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
	} `json:"steps"`
}

type jobList struct {
	Jobs []runJob `json:"jobs"`
}

// triggerWorkflow fires a workflow_dispatch event with the job id embedded
// in the inputs so the resulting run name carries it for correlation.
func (c *githubClient) triggerWorkflow(ctx context.Context, inputs map[string]string) error {
	endpoint := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/dispatches", c.cfg.Owner, c.cfg.Repo, c.cfg.WorkflowFile)
	payload := map[string]any{
		"ref":    c.cfg.Ref,
		"inputs": inputs,
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err, "workflow dispatch request failed")
	}
	defer resp.Body.Close()

	// GitHub answers 204 No Content on accepted dispatch.
	if resp.StatusCode != http.StatusNoContent {
		return errors.DispatchError(fmt.Sprintf("workflow dispatch rejected: %s", resp.Status))
	}
	return nil
}

// listRecentRuns returns the newest workflow runs for the configured
// workflow, newest first.
func (c *githubClient) listRecentRuns(ctx context.Context) ([]workflowRun, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/runs?per_page=%d", c.cfg.Owner, c.cfg.Repo, c.cfg.WorkflowFile, c.cfg.RunsPerPage)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var runs runList
	if err := c.doRequest(req, &runs); err != nil {
		return nil, err
	}
	return runs.WorkflowRuns, nil
}

// listArtifacts returns the artifacts of a completed run.
func (c *githubClient) listArtifacts(ctx context.Context, runID int64) ([]runArtifact, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/actions/runs/%d/artifacts", c.cfg.Owner, c.cfg.Repo, runID)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var arts artifactList
	if err := c.doRequest(req, &arts); err != nil {
		return nil, err
	}
	return arts.Artifacts, nil
}

// listJobs returns the per-job step breakdown of a run, used to name the
// first failing step of a failed build.
func (c *githubClient) listJobs(ctx context.Context, runID int64) ([]runJob, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/actions/runs/%d/jobs", c.cfg.Owner, c.cfg.Repo, runID)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var jobs jobList
	if err := c.doRequest(req, &jobs); err != nil {
		return nil, err
	}
	return jobs.Jobs, nil
}

// download streams an artifact archive using the stored credential. The
// caller owns the response body.
func (c *githubClient) download(ctx context.Context, locator string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.SeverityError, "build artifact request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err, "artifact download failed")
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			return nil, errors.NotFound("artifact")
		}
		return nil, errors.New(errors.CategoryNetwork, errors.SeverityError, fmt.Sprintf("artifact download failed: %s", resp.Status))
	}
	return resp, nil
}

func (c *githubClient) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	u, err := url.Parse(c.cfg.APIBaseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityError, "invalid API base URL")
	}
	parts := strings.SplitN(endpoint, "?", 2)
	u.Path = path.Join(u.Path, parts[0])
	if len(parts) == 2 {
		u.RawQuery = parts[1]
	}

	var req *http.Request
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, errors.SeverityError, "encode request body")
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(string(jsonBody)))
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, errors.SeverityError, "build request")
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, errors.SeverityError, "build request")
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", version.UserAgent())

	return req, nil
}

// transportError classifies a failed round trip. Deadline expiry is a
// timeout the poller may retry with a fresh budget; everything else is a
// plain network fault.
func transportError(err error, msg string) error {
	var ne net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &ne) && ne.Timeout()) {
		return errors.WrapRetryable(err, errors.CategoryTimeout, errors.SeverityError, msg)
	}
	return errors.WrapRetryable(err, errors.CategoryNetwork, errors.SeverityError, msg)
}

func (c *githubClient) doRequest(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err, "GitHub API request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return errors.Retryable(errors.CategoryNetwork, errors.SeverityError, fmt.Sprintf("GitHub API error: %s", resp.Status))
	}
	if resp.StatusCode >= 400 {
		return errors.New(errors.CategoryNetwork, errors.SeverityError, fmt.Sprintf("GitHub API error: %s", resp.Status))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, errors.SeverityError, "decode GitHub API response")
		}
	}
	return nil
}
