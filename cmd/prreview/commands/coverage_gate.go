package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roasbeef/prreview/internal/agent"
	"github.com/roasbeef/prreview/internal/coverage"
	"github.com/roasbeef/prreview/internal/diffparse"
	"github.com/roasbeef/prreview/internal/review"
)

var (
	gateWorkDir          string
	gateTestRunner       string
	gateTestDir          string
	gateTestFiles        []string
	gateMinTotalCoverage float64
	gateMinNewCoverage   float64
	gateMaxMediumIssues  int
	gateBlockOnHigh      bool
	gateModel            string
	gateDryRun           bool
)

// coverageGateCmd drives the test-gate decision for a PR: run its review
// to collect validated issues, run the configured test command with
// coverage, and decide whether the PR is ready to merge.
var coverageGateCmd = &cobra.Command{
	Use:   "coverage-gate <pr-number>",
	Short: "Evaluate a PR's tests and coverage against the merge rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoverageGate,
}

func init() {
	coverageGateCmd.Flags().StringVar(&gateWorkDir, "work-dir", ".",
		"Repository checkout to write tests into and run the test command from")
	coverageGateCmd.Flags().StringVar(&gateTestRunner, "test-runner", "pytest",
		"Test runner executable")
	coverageGateCmd.Flags().StringVar(&gateTestDir, "test-dir", "tests",
		"Directory passed to the test runner as the test target")
	coverageGateCmd.Flags().StringSliceVar(&gateTestFiles, "test-file", nil,
		"Generated test file to write before running the gate, may be repeated")
	coverageGateCmd.Flags().Float64Var(&gateMinTotalCoverage, "min-total-coverage", 80.0,
		"Minimum total coverage percentage required")
	coverageGateCmd.Flags().Float64Var(&gateMinNewCoverage, "min-new-code-coverage", 90.0,
		"Minimum coverage percentage required for newly changed lines")
	coverageGateCmd.Flags().IntVar(&gateMaxMediumIssues, "max-medium-issues", 3,
		"Maximum tolerated medium-severity issues")
	coverageGateCmd.Flags().BoolVar(&gateBlockOnHigh, "block-on-high", true,
		"Block merge if any high-severity issue is found")
	coverageGateCmd.Flags().StringVar(&gateModel, "model", "claude-sonnet-4-5-20250929",
		"Claude model used to identify and validate issues")
	coverageGateCmd.Flags().BoolVar(&gateDryRun, "dry-run", false,
		"Report what would be written and checked without running tests")
}

func runCoverageGate(cmd *cobra.Command, args []string) error {
	var prNumber int
	if _, err := fmt.Sscanf(args[0], "%d", &prNumber); err != nil {
		return fmt.Errorf("invalid PR number %q: %w", args[0], err)
	}

	host, owner, repoName, err := getHost()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	diffText, err := host.Diff(ctx, owner, repoName, prNumber)
	if err != nil {
		return fmt.Errorf("fetch diff: %w", err)
	}
	fileDiffs := diffparse.Parse(diffText)
	hunksText := diffparse.FormatHunks(fileDiffs)

	changedFiles := make([]string, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		changedFiles = append(changedFiles, fd.NewPath)
	}

	spawnerBase := agent.DefaultSpawnConfig()
	spawnerBase.Model = gateModel

	stage1Cfg := review.DefaultStage1Config()
	stage1Cfg.Model = gateModel
	stage2Cfg := review.DefaultStage2Config()
	stage2Cfg.Model = gateModel

	potential, err := review.IdentifyIssues(ctx, spawnerBase, hunksText, stage1Cfg)
	if err != nil {
		return fmt.Errorf("identify issues: %w", err)
	}
	validated, err := review.ValidateIssues(ctx, spawnerBase, potential, true, stage2Cfg)
	if err != nil {
		return fmt.Errorf("validate issues: %w", err)
	}

	tests, err := loadGeneratedTests(gateTestFiles)
	if err != nil {
		return err
	}

	rules := coverage.DefaultMergeRules()
	rules.MinTotalCoverage = gateMinTotalCoverage
	rules.MinNewCodeCoverage = gateMinNewCoverage
	rules.MaxMediumIssues = gateMaxMediumIssues
	rules.BlockOnHigh = gateBlockOnHigh

	cfg := coverage.DefaultConfig()
	cfg.WorkDir = gateWorkDir
	cfg.TestRunner = gateTestRunner
	cfg.TestDir = gateTestDir

	gate := coverage.NewGate(rules, cfg)

	if gateDryRun {
		summary := gate.DryRun(tests)
		if outputFormat == "json" {
			return outputJSON(summary)
		}
		fmt.Printf("would write %d test file(s), covering %d function(s), %d issue(s)\n",
			summary.TotalTestCount, len(summary.CoversFunctions), summary.IssuesCovered)
		for _, f := range summary.WouldWriteTests {
			fmt.Printf("  %s\n", f)
		}
		return nil
	}

	decision := gate.Execute(ctx, tests, validated, changedFiles)

	if outputFormat == "json" {
		return outputJSON(decision)
	}

	status := "BLOCKED"
	if decision.Approved {
		status = "APPROVED"
	}
	fmt.Printf("%s: %s\n", status, decision.Reason)
	for _, b := range decision.BlockingIssues {
		fmt.Printf("  blocking: %s\n", b)
	}
	for _, r := range decision.Recommendations {
		fmt.Printf("  recommend: %s\n", r)
	}

	return nil
}

// loadGeneratedTests reads test file content from disk for each path so
// the gate can write them into the checkout before running the suite.
func loadGeneratedTests(paths []string) ([]coverage.GeneratedTest, error) {
	tests := make([]coverage.GeneratedTest, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read test file %q: %w", p, err)
		}
		tests = append(tests, coverage.GeneratedTest{
			FilePath: p,
			Content:  string(content),
		})
	}
	return tests, nil
}
