// Package coverage implements the test-gate decision (C6): write generated
// tests to disk, run the test command, parse its coverage output, and
// apply merge rules to decide whether a PR's changes are ready to merge.
package coverage

import "github.com/roasbeef/prreview/internal/review"

// GeneratedTest is one test file to write to disk before running the gate.
type GeneratedTest struct {
	FilePath        string
	Content         string
	CoversFunctions []string
	CoversIssues    []int
}

// MergeRules are the numeric and boolean thresholds a PR must clear.
type MergeRules struct {
	MinTotalCoverage    float64
	MinNewCodeCoverage  float64
	AllTestsMustPass    bool
	BlockOnCritical     bool
	BlockOnHigh         bool
	MaxMediumIssues     int
}

// DefaultMergeRules mirrors the original gate's defaults: 80% total
// coverage, 90% new-code coverage, block on any critical or high issue, up
// to 3 medium issues tolerated.
func DefaultMergeRules() MergeRules {
	return MergeRules{
		MinTotalCoverage:   80.0,
		MinNewCodeCoverage: 90.0,
		AllTestsMustPass:   true,
		BlockOnCritical:    true,
		BlockOnHigh:        true,
		MaxMediumIssues:    3,
	}
}

// Config tunes how the gate invokes the test runner.
type Config struct {
	// TestRunner is the executable name, e.g. "pytest" or "go".
	TestRunner string
	// TestDir is the directory passed to the runner as the test target.
	TestDir string
	// WorkDir is the repository checkout the gate writes tests into and
	// runs the test command from.
	WorkDir string
}

// DefaultConfig mirrors the original test-gen config's runner settings.
func DefaultConfig() Config {
	return Config{TestRunner: "pytest", TestDir: "tests"}
}

// CoverageResult is what running the test command with coverage produced.
type CoverageResult struct {
	TotalCoverage      float64
	NewCodeCoverage    float64
	UncoveredLines     map[string][]int
	TestsPassed        int
	TestsFailed        int
	TestsSkipped       int
	CoverageReportPath string
}

// AllTestsPassed reports whether every test that ran, passed.
func (c CoverageResult) AllTestsPassed() bool {
	return c.TestsFailed == 0
}

// MergeDecision is the gate's final verdict.
type MergeDecision struct {
	Approved            bool
	Reason              string
	Coverage            CoverageResult
	ConditionsMet       map[string]bool
	GeneratedTestsCount int
	BlockingIssues      []string
	Recommendations     []string
}

// conditionOrder fixes the order conditions are evaluated and reported in,
// for deterministic "Blocked due to failed conditions: ..." messages.
var conditionOrder = []string{
	"all_tests_pass",
	"min_total_coverage",
	"min_new_code_coverage",
	"no_critical_issues",
	"no_high_issues",
	"medium_issues_limit",
}

// countBySeverity returns how many valid issues carry the given severity.
func countBySeverity(issues []review.ValidatedIssue, sev review.Severity) int {
	n := 0
	for _, i := range issues {
		if i.IsValid && i.Issue.Severity == sev {
			n++
		}
	}
	return n
}
