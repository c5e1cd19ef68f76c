package dispatch

import (
	"strings"

	"github.com/agentify/agentify/internal/spec"
)

// MatchRun scans recent workflow runs for the one carrying jobID in its
// metadata. Fields are checked in reliability order: run name first (the
// workflow embeds the id in run-name), then display title, then the
// triggering commit message. The heuristic is pure so it can be tested
// without network calls.
func MatchRun(runs []workflowRun, jobID string) (workflowRun, bool) {
	for _, r := range runs {
		if strings.Contains(r.Name, jobID) {
			return r, true
		}
	}
	for _, r := range runs {
		if strings.Contains(r.DisplayTitle, jobID) {
			return r, true
		}
	}
	for _, r := range runs {
		if strings.Contains(r.HeadCommit.Message, jobID) {
			return r, true
		}
	}
	return workflowRun{}, false
}

// mapRunStatus translates GitHub run states into the job lifecycle.
// queued/in_progress map to in_progress, completed splits on conclusion,
// anything unrecognized stays pending.
func mapRunStatus(run workflowRun) spec.JobStatus {
	switch run.Status {
	case "queued", "in_progress":
		return spec.StatusInProgress
	case "completed":
		if run.Conclusion == "success" {
			return spec.StatusCompleted
		}
		return spec.StatusFailed
	default:
		return spec.StatusPending
	}
}

// matchArtifact finds the run artifact belonging to a job: a name
// containing "plugin" or the job id itself.
func matchArtifact(artifacts []runArtifact, jobID string) (runArtifact, bool) {
	for _, a := range artifacts {
		if a.Expired {
			continue
		}
		if strings.Contains(a.Name, "plugin") || strings.Contains(a.Name, jobID) {
			return a, true
		}
	}
	return runArtifact{}, false
}

// firstFailingStep returns the name of the first failed step across a
// run's jobs, if any.
func firstFailingStep(jobs []runJob) (string, bool) {
	for _, j := range jobs {
		for _, s := range j.Steps {
			if s.Conclusion == "failure" {
				return s.Name, true
			}
		}
		if j.Conclusion == "failure" {
			return j.Name, true
		}
	}
	return "", false
}
