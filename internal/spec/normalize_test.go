package spec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agerrors "github.com/agentify/agentify/internal/errors"
)

func TestNormalizeDerivedURN(t *testing.T) {
	s, res, err := Normalize(&AgentConfig{Name: "Demo Bot"}, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "urn:agent:agentify:demo-bot", s.AgentName)
	assert.Equal(t, TargetWASM, s.BuildTarget)
	assert.Equal(t, PlatformLinux, s.Platform)
	assert.Equal(t, "0.1.0", s.Version)
	assert.Equal(t, DefaultInstructions, s.Instructions)
	assert.NotEmpty(t, s.AgentID)
}

func TestNormalizeExplicitNamePassthrough(t *testing.T) {
	s, _, err := Normalize(&AgentConfig{AgentName: "urn:agent:custom:already-canonical"}, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "urn:agent:custom:already-canonical", s.AgentName)
}

func TestNormalizeExplicitNameWinsOverDisplayName(t *testing.T) {
	s, _, err := Normalize(&AgentConfig{Name: "Display", AgentName: "urn:agent:agentify:explicit"}, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "urn:agent:agentify:explicit", s.AgentName)
}

func TestNormalizeSynthesizedName(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	s, _, err := Normalize(&AgentConfig{}, nil, Options{
		AllowSynthesizedName: true,
		Now:                  func() time.Time { return fixed },
	})
	require.NoError(t, err)
	assert.Equal(t, "urn:agent:agentify:agent-1700000000", s.AgentName)
}

func TestNormalizeRejectsNamelessInput(t *testing.T) {
	_, _, err := Normalize(&AgentConfig{}, nil, Options{})
	require.Error(t, err)
	assert.True(t, agerrors.IsCategory(err, agerrors.CategoryValidation))
}

func TestNormalizeNilConfig(t *testing.T) {
	_, _, err := Normalize(nil, nil, Options{})
	require.Error(t, err)
	assert.True(t, agerrors.IsCategory(err, agerrors.CategoryValidation))
}

func TestNormalizePersonalityPreamble(t *testing.T) {
	s, _, err := Normalize(&AgentConfig{Name: "Bot", Personality: "sarcastic"}, nil, Options{})
	require.NoError(t, err)
	assert.Contains(t, s.Instructions, "sarcastic")
}

func TestNormalizeExplicitInstructionsKept(t *testing.T) {
	s, _, err := Normalize(&AgentConfig{Name: "Bot", Instructions: "Only answer in haiku."}, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Only answer in haiku.", s.Instructions)
}

func TestNormalizeTargetAndPlatform(t *testing.T) {
	s, res, err := Normalize(&AgentConfig{
		Name:     "Bot",
		Settings: map[string]any{"build_target": "native-plugin", "platform": "darwin"},
	}, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, TargetNativePlugin, s.BuildTarget)
	assert.Equal(t, PlatformDarwin, s.Platform)
}

func TestNormalizeUnknownEnumsWarnAndDefault(t *testing.T) {
	s, res, err := Normalize(&AgentConfig{
		Name:     "Bot",
		Settings: map[string]any{"build_target": "jar", "platform": "plan9"},
	}, nil, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, TargetWASM, s.BuildTarget)
	assert.Equal(t, PlatformLinux, s.Platform)
}

func TestNormalizeBadVersion(t *testing.T) {
	_, _, err := Normalize(&AgentConfig{Name: "Bot", Version: "not-a-version"}, nil, Options{})
	require.Error(t, err)
	assert.True(t, agerrors.IsCategory(err, agerrors.CategoryValidation))
}

func TestNormalizeAdvancedSettings(t *testing.T) {
	adv := &AdvancedSettings{
		ResourceLimits:   &ResourceLimits{MemoryMB: 512, CPUMillis: 0, TimeoutSec: -3},
		NetworkAccess:    true,
		FileSystemAccess: false,
		Dependencies:     []string{"libfoo", "libbar"},
	}
	s, res, err := Normalize(&AgentConfig{Name: "Bot"}, adv, Options{})
	require.NoError(t, err)
	assert.Equal(t, 512, s.ResourceLimits.MemoryMB)
	assert.Equal(t, 500, s.ResourceLimits.CPUMillis, "zero leaves default")
	assert.Equal(t, 120, s.ResourceLimits.TimeoutSec, "negative leaves default")
	assert.Contains(t, res.Warnings[0], "negative timeout")
	assert.True(t, s.NetworkAccess)
	assert.Equal(t, []string{"libfoo", "libbar"}, s.Dependencies)
}

func TestNormalizeIdempotent(t *testing.T) {
	first, _, err := Normalize(&AgentConfig{Name: "Demo Bot", Version: "1.2.3"}, &AdvancedSettings{
		NetworkAccess: true,
		Dependencies:  []string{"sqlite"},
	}, Options{})
	require.NoError(t, err)

	cfg, adv := first.AsConfig()
	second, _, err := Normalize(cfg, adv, Options{})
	require.NoError(t, err)

	assert.Equal(t, first, second, "normalization must be a fixpoint")
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Demo Bot":        "demo-bot",
		"  spaced   out ": "spaced-out",
		"Ünïcode Ågent":   "ncode-gent",
		"!!!":             "agent",
		"already-slug":    "already-slug",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestSlugFromURN(t *testing.T) {
	assert.Equal(t, "demo-bot", SlugFromURN("urn:agent:agentify:demo-bot"))
	assert.Equal(t, "plain-name", SlugFromURN("Plain Name"))
}

func TestTerminalStatus(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
}
