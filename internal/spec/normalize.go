package spec

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/agentify/agentify/internal/errors"
)

// URNPrefix is the canonical namespace prefix for derived agent names.
const URNPrefix = "urn:agent:agentify:"

// DefaultInstructions is used when the input carries no instructions.
const DefaultInstructions = "You are a helpful assistant. Answer questions accurately and concisely."

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9-]+`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
	semverPattern  = regexp.MustCompile(`^\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?$`)
)

// Options controls normalization behavior.
type Options struct {
	// AllowSynthesizedName permits a timestamp-derived name when the input
	// carries neither a display name nor a canonical name. When false, such
	// input fails with a validation error.
	AllowSynthesizedName bool

	// Now supplies the clock for synthesized names. Nil means time.Now.
	Now func() time.Time
}

// Result captures non-fatal normalization adjustments.
type Result struct {
	Warnings []string
}

// Normalize turns a loosely-typed agent configuration into a canonical,
// fully-defaulted BuildSpec. The pass is pure: it never touches the
// filesystem or network and is safe to invoke repeatedly during validation.
// Normalizing the output of a previous normalization is a fixpoint.
func Normalize(cfg *AgentConfig, adv *AdvancedSettings, opts Options) (*BuildSpec, *Result, error) {
	if cfg == nil {
		return nil, nil, errors.InvalidConfig("agent configuration is required")
	}

	res := &Result{}

	name, err := canonicalName(cfg, opts)
	if err != nil {
		return nil, nil, err
	}

	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = "0.1.0"
	} else if !semverPattern.MatchString(version) {
		return nil, nil, errors.InvalidConfig(fmt.Sprintf("version %q is not a semantic version", version))
	}

	instructions := strings.TrimSpace(cfg.Instructions)
	if instructions == "" {
		instructions = DefaultInstructions
		if p := strings.TrimSpace(cfg.Personality); p != "" {
			instructions = fmt.Sprintf("You are a helpful assistant with the following personality: %s. Answer questions accurately and concisely.", p)
		}
	}

	agentID := strings.TrimSpace(cfg.AgentID)
	if agentID == "" {
		agentID = uuid.NewString()
	}

	s := &BuildSpec{
		AgentID:      agentID,
		AgentName:    name,
		Description:  strings.TrimSpace(cfg.Description),
		Version:      version,
		Instructions: instructions,
		BuildTarget:  normalizeTarget(cfg, res),
		Platform:     normalizePlatform(cfg, res),
		ResourceLimits: ResourceLimits{
			MemoryMB:   256,
			CPUMillis:  500,
			TimeoutSec: 120,
		},
	}

	if adv != nil {
		if adv.ResourceLimits != nil {
			applyLimits(&s.ResourceLimits, adv.ResourceLimits, res)
		}
		s.NetworkAccess = adv.NetworkAccess
		s.FileSystemAccess = adv.FileSystemAccess
		s.Dependencies = append([]string(nil), adv.Dependencies...)
	}

	return s, res, nil
}

// canonicalName resolves the agent name per precedence: explicit canonical
// name verbatim, then URN derived from the display name, then a synthesized
// timestamp name when permitted.
func canonicalName(cfg *AgentConfig, opts Options) (string, error) {
	if explicit := strings.TrimSpace(cfg.AgentName); explicit != "" {
		return explicit, nil
	}
	if display := strings.TrimSpace(cfg.Name); display != "" {
		return URNPrefix + Slugify(display), nil
	}
	if !opts.AllowSynthesizedName {
		return "", errors.InvalidConfig("agent configuration requires a name or agent_name")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	return fmt.Sprintf("%sagent-%d", URNPrefix, now().Unix()), nil
}

// Slugify folds a display name into the lowercase hyphenated slug used in
// canonical URNs: case folded, whitespace runs collapsed to single hyphens,
// anything outside [a-z0-9-] stripped.
func Slugify(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))
	hyphenated := whitespaceRun.ReplaceAllString(folded, "-")
	cleaned := slugDisallowed.ReplaceAllString(hyphenated, "")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return "agent"
	}
	return cleaned
}

// SlugFromURN extracts the trailing slug of a canonical URN. Names that are
// not in URN form are slugified as a whole.
func SlugFromURN(urn string) string {
	if strings.HasPrefix(urn, "urn:") {
		parts := strings.Split(urn, ":")
		return Slugify(parts[len(parts)-1])
	}
	return Slugify(urn)
}

func normalizeTarget(cfg *AgentConfig, res *Result) BuildTarget {
	raw := ""
	if cfg.Settings != nil {
		if v, ok := cfg.Settings["build_target"].(string); ok {
			raw = v
		}
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return TargetWASM
	case "wasm":
		return TargetWASM
	case "native-plugin", "native_plugin", "native":
		return TargetNativePlugin
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("unknown build target '%s', defaulting to wasm", raw))
		return TargetWASM
	}
}

func normalizePlatform(cfg *AgentConfig, res *Result) Platform {
	raw := ""
	if cfg.Settings != nil {
		if v, ok := cfg.Settings["platform"].(string); ok {
			raw = v
		}
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return PlatformLinux
	case "linux":
		return PlatformLinux
	case "windows", "win":
		return PlatformWindows
	case "darwin", "macos", "osx":
		return PlatformDarwin
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("unknown platform '%s', defaulting to linux", raw))
		return PlatformLinux
	}
}

func applyLimits(dst *ResourceLimits, src *ResourceLimits, res *Result) {
	if src.MemoryMB > 0 {
		dst.MemoryMB = src.MemoryMB
	} else if src.MemoryMB < 0 {
		res.Warnings = append(res.Warnings, "negative memory limit ignored")
	}
	if src.CPUMillis > 0 {
		dst.CPUMillis = src.CPUMillis
	} else if src.CPUMillis < 0 {
		res.Warnings = append(res.Warnings, "negative cpu limit ignored")
	}
	if src.TimeoutSec > 0 {
		dst.TimeoutSec = src.TimeoutSec
	} else if src.TimeoutSec < 0 {
		res.Warnings = append(res.Warnings, "negative timeout ignored")
	}
}

// AsConfig maps a BuildSpec back to the loose input form. Feeding the
// result to Normalize reproduces the spec, which is how idempotence is
// exercised in tests.
func (s *BuildSpec) AsConfig() (*AgentConfig, *AdvancedSettings) {
	cfg := &AgentConfig{
		AgentID:      s.AgentID,
		AgentName:    s.AgentName,
		Description:  s.Description,
		Version:      s.Version,
		Instructions: s.Instructions,
		Settings: map[string]any{
			"build_target": string(s.BuildTarget),
			"platform":     string(s.Platform),
		},
	}
	adv := &AdvancedSettings{
		ResourceLimits:   &ResourceLimits{MemoryMB: s.ResourceLimits.MemoryMB, CPUMillis: s.ResourceLimits.CPUMillis, TimeoutSec: s.ResourceLimits.TimeoutSec},
		NetworkAccess:    s.NetworkAccess,
		FileSystemAccess: s.FileSystemAccess,
		Dependencies:     append([]string(nil), s.Dependencies...),
	}
	return cfg, adv
}
