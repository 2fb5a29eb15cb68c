package coverage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/prreview/internal/review"
)

func issueOf(sev review.Severity) review.ValidatedIssue {
	return review.ValidatedIssue{
		Issue:   review.PotentialIssue{Severity: sev},
		IsValid: true,
	}
}

func TestMakeDecisionApprovedWhenAllConditionsMet(t *testing.T) {
	rules := DefaultMergeRules()
	result := CoverageResult{TotalCoverage: 85, NewCodeCoverage: 95, TestsFailed: 0}
	conditions := (&Gate{rules: rules}).checkConditions(result, nil)

	decision := makeDecision(conditions, result, rules, 2)
	require.True(t, decision.Approved)
	require.Equal(t, "All conditions met. PR is ready for merge.", decision.Reason)
	require.Empty(t, decision.BlockingIssues)
}

func TestMakeDecisionBlocksOnLowNewCodeCoverage(t *testing.T) {
	rules := DefaultMergeRules()
	result := CoverageResult{TotalCoverage: 85, NewCodeCoverage: 82.3, TestsFailed: 0}
	conditions := (&Gate{rules: rules}).checkConditions(result, nil)

	decision := makeDecision(conditions, result, rules, 1)
	require.False(t, decision.Approved)
	require.Contains(t, decision.Reason, "min_new_code_coverage")
	require.Contains(t, decision.BlockingIssues, "New code coverage 82.3% < 90.0%")
	require.Contains(t, decision.Recommendations, "Increase test coverage for new code")
}

func TestMakeDecisionBlocksOnCriticalIssue(t *testing.T) {
	rules := DefaultMergeRules()
	result := CoverageResult{TotalCoverage: 95, NewCodeCoverage: 95, TestsFailed: 0}
	gate := &Gate{rules: rules}
	conditions := gate.checkConditions(result, []review.ValidatedIssue{issueOf(review.SeverityCritical)})

	decision := makeDecision(conditions, result, rules, 0)
	require.False(t, decision.Approved)
	require.Contains(t, decision.BlockingIssues, "Critical issues found")
}

func TestMakeDecisionBlocksOnFailingTests(t *testing.T) {
	rules := DefaultMergeRules()
	result := CoverageResult{TotalCoverage: 95, NewCodeCoverage: 95, TestsFailed: 3}
	gate := &Gate{rules: rules}
	conditions := gate.checkConditions(result, nil)

	decision := makeDecision(conditions, result, rules, 0)
	require.False(t, decision.Approved)
	require.Contains(t, decision.BlockingIssues, "3 tests failed")
	require.Contains(t, decision.Recommendations, "Fix failing tests before merge")
}

func TestCheckConditionsAllowsHighIssuesWhenNotBlocking(t *testing.T) {
	rules := DefaultMergeRules()
	rules.BlockOnHigh = false
	result := CoverageResult{TotalCoverage: 95, NewCodeCoverage: 95}
	gate := &Gate{rules: rules}
	conditions := gate.checkConditions(result, []review.ValidatedIssue{issueOf(review.SeverityHigh)})

	require.True(t, conditions["no_high_issues"])
}

func TestCheckConditionsMediumIssuesLimit(t *testing.T) {
	rules := DefaultMergeRules()
	rules.MaxMediumIssues = 1
	result := CoverageResult{TotalCoverage: 95, NewCodeCoverage: 95}
	gate := &Gate{rules: rules}

	issues := []review.ValidatedIssue{issueOf(review.SeverityMedium), issueOf(review.SeverityMedium)}
	conditions := gate.checkConditions(result, issues)
	require.False(t, conditions["medium_issues_limit"])
}

func TestDryRunDoesNotWriteFiles(t *testing.T) {
	gate := NewGate(DefaultMergeRules(), DefaultConfig())
	tests := []GeneratedTest{
		{FilePath: "tests/test_a.py", CoversFunctions: []string{"foo"}, CoversIssues: []int{1, 2}},
		{FilePath: "tests/test_b.py", CoversFunctions: []string{"foo", "bar"}},
	}

	summary := gate.DryRun(tests)
	require.Equal(t, 2, summary.TotalTestCount)
	require.ElementsMatch(t, []string{"tests/test_a.py", "tests/test_b.py"}, summary.WouldWriteTests)
	require.ElementsMatch(t, []string{"foo", "bar"}, summary.CoversFunctions)
	require.Equal(t, 2, summary.IssuesCovered)
}
