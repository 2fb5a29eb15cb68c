package coverage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roasbeef/prreview/internal/review"
)

// Gate runs the test-gate pipeline: write generated tests, run them with
// coverage, evaluate merge rules, and produce a decision.
type Gate struct {
	rules MergeRules
	cfg   Config
}

// NewGate builds a Gate with the given rules and runner config.
func NewGate(rules MergeRules, cfg Config) *Gate {
	return &Gate{rules: rules, cfg: cfg}
}

// Execute runs the full §4.6 pipeline: write tests, run with coverage,
// check conditions, and return the merge decision.
func (g *Gate) Execute(ctx context.Context, tests []GeneratedTest, issues []review.ValidatedIssue, changedFiles []string) MergeDecision {
	written := writeTests(g.cfg.WorkDir, tests)
	slog.Info("coverage gate: wrote tests", "count", len(written))

	output := runTests(ctx, g.cfg, changedFiles)
	result := parseOutput(g.cfg.WorkDir, output, changedFiles)
	slog.Info("coverage gate: test results",
		"passed", result.TestsPassed, "failed", result.TestsFailed,
		"new_code_coverage", result.NewCodeCoverage, "total_coverage", result.TotalCoverage)

	conditions := g.checkConditions(result, issues)
	decision := makeDecision(conditions, result, g.rules, len(tests))

	status := "BLOCKED"
	if decision.Approved {
		status = "APPROVED"
	}
	slog.Info("coverage gate decision", "status", status, "reason", decision.Reason)

	return decision
}

// checkConditions evaluates every merge condition against the coverage
// result and the validated issues, matching §4.6 step 4 exactly.
func (g *Gate) checkConditions(result CoverageResult, issues []review.ValidatedIssue) map[string]bool {
	conditions := map[string]bool{
		"all_tests_pass":        result.AllTestsPassed(),
		"min_total_coverage":    result.TotalCoverage >= g.rules.MinTotalCoverage,
		"min_new_code_coverage": result.NewCodeCoverage >= g.rules.MinNewCodeCoverage,
		"no_critical_issues":    countBySeverity(issues, review.SeverityCritical) == 0,
		"no_high_issues":        !g.rules.BlockOnHigh || countBySeverity(issues, review.SeverityHigh) == 0,
		"medium_issues_limit":   countBySeverity(issues, review.SeverityMedium) <= g.rules.MaxMediumIssues,
	}
	return conditions
}

// makeDecision builds the final MergeDecision: approved iff every
// condition holds, with a reason, blocking-issue list, and
// recommendations matching §4.6 step 5's exact phrasing.
func makeDecision(conditions map[string]bool, result CoverageResult, rules MergeRules, testsCount int) MergeDecision {
	approved := true
	var failed []string
	for _, key := range conditionOrder {
		if !conditions[key] {
			approved = false
			failed = append(failed, key)
		}
	}

	reason := "All conditions met. PR is ready for merge."
	if !approved {
		reason = fmt.Sprintf("Blocked due to failed conditions: %s", strings.Join(failed, ", "))
	}

	var blocking []string
	if !conditions["all_tests_pass"] {
		blocking = append(blocking, fmt.Sprintf("%d tests failed", result.TestsFailed))
	}
	if !conditions["min_total_coverage"] {
		blocking = append(blocking, fmt.Sprintf("Total coverage %.1f%% < %.1f%%", result.TotalCoverage, rules.MinTotalCoverage))
	}
	if !conditions["min_new_code_coverage"] {
		blocking = append(blocking, fmt.Sprintf("New code coverage %.1f%% < %.1f%%", result.NewCodeCoverage, rules.MinNewCodeCoverage))
	}
	if !conditions["no_critical_issues"] {
		blocking = append(blocking, "Critical issues found")
	}
	if !conditions["no_high_issues"] {
		blocking = append(blocking, "High severity issues found")
	}

	var recommendations []string
	if len(result.UncoveredLines) > 0 {
		recommendations = append(recommendations, "Add tests for uncovered lines")
	}
	if result.TestsFailed > 0 {
		recommendations = append(recommendations, "Fix failing tests before merge")
	}
	if !conditions["min_new_code_coverage"] {
		recommendations = append(recommendations, "Increase test coverage for new code")
	}

	return MergeDecision{
		Approved:            approved,
		Reason:              reason,
		Coverage:            result,
		ConditionsMet:       conditions,
		GeneratedTestsCount: testsCount,
		BlockingIssues:      blocking,
		Recommendations:     recommendations,
	}
}

// DryRunSummary is what DryRun reports without writing files or running
// tests: what would be written and the rule thresholds that would apply.
type DryRunSummary struct {
	WouldWriteTests []string
	TotalTestCount  int
	CoversFunctions []string
	IssuesCovered   int
	Rules           MergeRules
}

// DryRun analyzes the generated tests without touching disk or running
// anything, matching the original gate's dry_run.
func (g *Gate) DryRun(tests []GeneratedTest) DryRunSummary {
	summary := DryRunSummary{Rules: g.rules}

	seenFns := make(map[string]bool)
	for _, t := range tests {
		summary.WouldWriteTests = append(summary.WouldWriteTests, t.FilePath)
		summary.IssuesCovered += len(t.CoversIssues)
		for _, fn := range t.CoversFunctions {
			if !seenFns[fn] {
				seenFns[fn] = true
				summary.CoversFunctions = append(summary.CoversFunctions, fn)
			}
		}
	}
	summary.TotalTestCount = len(tests)

	return summary
}
