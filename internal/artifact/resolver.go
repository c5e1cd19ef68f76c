// Package artifact locates, fetches, and re-serves compiled build outputs:
// remote artifacts produced by CI runs, and locally-produced plugin files.
package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/agentify/agentify/internal/errors"
	"github.com/agentify/agentify/internal/observability"
	"github.com/agentify/agentify/internal/spec"
)

// StatusSource answers job status queries; satisfied by the dispatcher.
type StatusSource interface {
	GetStatus(ctx context.Context, jobID string) (*spec.CompilationJob, error)
	Download(ctx context.Context, locator string) (*http.Response, error)
}

// NameLookup maps a job id to the owning agent's display name. A nil
// lookup (or a miss) falls back to a generic name; resolution must not
// depend on local state existing.
type NameLookup interface {
	AgentNameForJob(ctx context.Context, jobID string) (string, bool)
}

// Resolved is a ready-to-serve artifact stream.
type Resolved struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Length      int64
}

var filenameDisallowed = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Resolver downloads completed build artifacts from the remote store and
// re-serves them with correct naming and content type.
type Resolver struct {
	source StatusSource
	names  NameLookup
}

// NewResolver builds a resolver over a status source. names may be nil.
func NewResolver(source StatusSource, names NameLookup) *Resolver {
	return &Resolver{source: source, names: names}
}

// Resolve fetches the artifact bytes for a completed job. Jobs that are
// not terminal-completed fail with a not-ready error and the client should
// keep polling; a completed job without a locator is an integrity fault,
// polling will never fix it.
func (r *Resolver) Resolve(ctx context.Context, jobID string) (*Resolved, error) {
	ctx = observability.WithJobID(ctx, jobID)

	job, err := r.source.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != spec.StatusCompleted {
		return nil, errors.NotReady(fmt.Sprintf("job is %s, artifact not available yet", job.Status))
	}
	if job.RawArtifactLocator == "" {
		return nil, errors.Integrity("job completed but artifact locator is missing")
	}

	resp, err := r.source.Download(ctx, job.RawArtifactLocator)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if !isArchiveContentType(contentType) {
		// Ambiguous content type is a warning, not a failure: the platform
		// frequently labels artifact archives as octet-stream.
		observability.WarnContext(ctx, "artifact content type is not an archive")
	}
	if contentType == "" {
		contentType = "application/zip"
	}

	name := "agent"
	if r.names != nil {
		if n, ok := r.names.AgentNameForJob(ctx, jobID); ok && n != "" {
			// Stored names are already slugs, but older records may carry
			// the canonical URN; reduce either to the display slug.
			name = spec.SlugFromURN(n)
		}
	}

	return &Resolved{
		Body:        resp.Body,
		Filename:    DownloadFilename(name, jobID),
		ContentType: contentType,
		Length:      resp.ContentLength,
	}, nil
}

// DownloadFilename derives the attachment filename served to clients,
// sanitized to [A-Za-z0-9_-] segments.
func DownloadFilename(displayName, jobID string) string {
	return fmt.Sprintf("%s-plugin-%s.zip", sanitizeSegment(displayName), sanitizeSegment(jobID))
}

func sanitizeSegment(s string) string {
	cleaned := filenameDisallowed.ReplaceAllString(s, "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return "agent"
	}
	return cleaned
}

func isArchiveContentType(ct string) bool {
	switch {
	case strings.Contains(ct, "zip"),
		strings.Contains(ct, "octet-stream"),
		strings.Contains(ct, "gzip"):
		return true
	default:
		return false
	}
}
