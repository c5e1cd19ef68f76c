package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestBuildInfo(t *testing.T) {
	// Build info variables should exist (even if set to "unknown")
	if BuildTime == "" {
		t.Error("BuildTime should be initialized")
	}

	if GitCommit == "" {
		t.Error("GitCommit should be initialized")
	}
}

func TestUserAgent(t *testing.T) {
	if !strings.HasPrefix(UserAgent(), "Agentify/") {
		t.Errorf("unexpected user agent %q", UserAgent())
	}
}
