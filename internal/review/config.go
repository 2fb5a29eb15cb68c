package review

import "time"

// Stage1Config configures the Stage 1 (identify) agent session.
type Stage1Config struct {
	// Model is the Claude model used for identification.
	Model string

	// MaxTurns bounds the session's tool-call turns.
	MaxTurns int

	// MinSeverityToValidate drops issues below this severity before
	// Stage 2 runs, since validation is expensive.
	MinSeverityToValidate Severity

	Timeout time.Duration
}

// DefaultStage1Config mirrors the identify stage's defaults recovered
// from the original implementation: a generous turn budget for
// sequential-thinking plus store_issue calls, and no severity floor by
// default (the caller decides what to fix, not what to merely surface).
func DefaultStage1Config() Stage1Config {
	return Stage1Config{
		Model:                  "claude-sonnet-4-5-20250929",
		MaxTurns:               30,
		MinSeverityToValidate:  SeverityLow,
		Timeout:                5 * time.Minute,
	}
}

// Stage2Config configures the Stage 2 (validate) agent sessions.
type Stage2Config struct {
	Model string

	MaxTurns int

	// MaxParallel bounds how many validation sessions run concurrently
	// in parallel batch mode.
	MaxParallel int

	// MinConfidence is the confidence floor a valid issue must clear to
	// be kept after validation.
	MinConfidence float64

	// ReportCritical, ReportHigh, ReportMedium, and ReportLow gate which
	// severities survive the post-validation filter; low severity is
	// off by default, matching the original reviewer's bias toward
	// signal over noise.
	ReportCritical bool
	ReportHigh     bool
	ReportMedium   bool
	ReportLow      bool

	Timeout time.Duration
}

// DefaultStage2Config mirrors the validate stage's defaults.
func DefaultStage2Config() Stage2Config {
	return Stage2Config{
		Model:          "claude-sonnet-4-5-20250929",
		MaxTurns:       20,
		MaxParallel:    5,
		MinConfidence:  0.7,
		ReportCritical: true,
		ReportHigh:     true,
		ReportMedium:   true,
		ReportLow:      false,
		Timeout:        5 * time.Minute,
	}
}

// ReportSeverity reports whether issues of the given severity survive
// the post-validation filter per §4.3.3: is_valid ∧ confidence ≥
// min_confidence ∧ severity is enabled.
func (c Stage2Config) ReportSeverity(s Severity) bool {
	switch s {
	case SeverityCritical:
		return c.ReportCritical
	case SeverityHigh:
		return c.ReportHigh
	case SeverityMedium:
		return c.ReportMedium
	case SeverityLow:
		return c.ReportLow
	default:
		return false
	}
}
