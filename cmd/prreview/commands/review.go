package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roasbeef/prreview/internal/agent"
	"github.com/roasbeef/prreview/internal/fixloop"
	"github.com/roasbeef/prreview/internal/review"
)

var (
	reviewMaxIterations int
	reviewAutoFix       bool
	reviewAutoMerge     bool
	reviewMinSeverity   string
	reviewModel         string
	reviewWorkDir       string
	reviewRunTests      bool
	reviewTestCommand   []string
	reviewMinConfidence float64
	reviewReportLow     bool
	reviewBranch        string
)

// reviewCmd drives the feedback loop (review → fix → re-review → merge)
// for a single PR.
var reviewCmd = &cobra.Command{
	Use:   "review <pr-number>",
	Short: "Review, fix, and optionally merge a single PR",
	Long: `Runs the feedback loop for one PR: identify defects, validate them,
auto-fix validated issues, re-review, and repeat until the PR is clean,
unfixable, or the iteration cap is reached.`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().IntVar(&reviewMaxIterations, "max-iterations", 5,
		"Maximum review/fix iterations before giving up")
	reviewCmd.Flags().BoolVar(&reviewAutoFix, "auto-fix", true,
		"Automatically fix validated issues")
	reviewCmd.Flags().BoolVar(&reviewAutoMerge, "auto-merge", false,
		"Merge automatically once the PR is clean")
	reviewCmd.Flags().StringVar(&reviewMinSeverity, "min-severity", "medium",
		"Minimum issue severity that triggers a fix attempt")
	reviewCmd.Flags().StringVar(&reviewModel, "model", "claude-sonnet-4-5-20250929",
		"Claude model used for review and fix sessions")
	reviewCmd.Flags().StringVar(&reviewWorkDir, "work-dir", "",
		"Working directory containing the PR's checkout (default: cwd)")
	reviewCmd.Flags().BoolVar(&reviewRunTests, "run-tests", false,
		"Run the configured test command each iteration")
	reviewCmd.Flags().StringSliceVar(&reviewTestCommand, "test-command", nil,
		"Test command to run when --run-tests is set, e.g. --test-command=go,test,./...")
	reviewCmd.Flags().Float64Var(&reviewMinConfidence, "min-confidence", 0.7,
		"Minimum Stage 2 confidence a validated issue must clear to be reported/fixed")
	reviewCmd.Flags().BoolVar(&reviewReportLow, "report-low", false,
		"Report and fix low-severity issues in addition to medium/high/critical")
	reviewCmd.Flags().StringVar(&reviewBranch, "branch", "",
		"PR head branch to check out before each iteration (default: assume --work-dir is already on it)")
}

func runReview(cmd *cobra.Command, args []string) error {
	var prNumber int
	if _, err := fmt.Sscanf(args[0], "%d", &prNumber); err != nil {
		return fmt.Errorf("invalid PR number %q: %w", args[0], err)
	}

	host, owner, repoName, err := getHost()
	if err != nil {
		return err
	}

	cfg := fixloop.DefaultLoopConfig()
	cfg.MaxIterations = reviewMaxIterations
	cfg.AutoFix = reviewAutoFix
	cfg.AutoMerge = reviewAutoMerge
	cfg.MinSeverityToFix = reviewMinSeverity
	cfg.RunTests = reviewRunTests
	cfg.TestCommand = reviewTestCommand
	cfg.WorkingDir = reviewWorkDir

	spawnerBase := agent.DefaultSpawnConfig()
	spawnerBase.Model = reviewModel

	stage1Cfg := review.DefaultStage1Config()
	stage1Cfg.Model = reviewModel
	stage2Cfg := review.DefaultStage2Config()
	stage2Cfg.Model = reviewModel
	stage2Cfg.MinConfidence = reviewMinConfidence
	stage2Cfg.ReportLow = reviewReportLow

	target := fixloop.PRTarget{Owner: owner, Repo: repoName, PRNumber: prNumber, Branch: reviewBranch}

	outcome, err := fixloop.Run(
		cmd.Context(), cfg, target, host, spawnerBase, stage1Cfg, stage2Cfg,
	).Unpack()
	if err != nil {
		return fmt.Errorf("review loop failed: %w", err)
	}

	if outputFormat == "json" {
		return outputJSON(outcome)
	}

	fmt.Printf("PR #%d: %s after %d iteration(s)\n",
		prNumber, outcome.Result, len(outcome.Iterations))
	for _, it := range outcome.Iterations {
		fmt.Printf("  iter %d: found=%d fixed=%d skipped=%d tests_passed=%v\n",
			it.Iteration, it.IssuesFound, it.IssuesFixed, it.IssuesSkipped,
			it.TestsPassed)
		if it.Error != "" {
			fmt.Printf("    error: %s\n", it.Error)
		}
	}

	return nil
}
