package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roasbeef/prreview/internal/agent"
	"github.com/roasbeef/prreview/internal/api/orchestratorrpc"
	"github.com/roasbeef/prreview/internal/fixloop"
	"github.com/roasbeef/prreview/internal/orchestrate"
	"github.com/roasbeef/prreview/internal/review"
	"github.com/roasbeef/prreview/internal/store"
)

var (
	orchestrateBase               string
	orchestrateAutoMerge          bool
	orchestrateMergeMethod        string
	orchestrateMaxParallelReviews int
	orchestrateModel              string
	orchestrateStatusAddr         string
	orchestrateRunDBDir           string
	orchestrateKeepRunDB          bool
	orchestrateMinConfidence      float64
	orchestrateReportLow          bool
)

// orchestrateCmd groups multi-PR orchestration subcommands.
var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate",
	Short: "Review and merge a fleet of open PRs in dependency order",
}

var orchestratePlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Load open PRs and print the dependency/conflict/merge plan",
	RunE:  runOrchestratePlan,
}

var orchestrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Load open PRs, review each dependency wave, and optionally merge",
	RunE:  runOrchestrateRun,
}

var orchestrateDryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Check mergeability and CI status for the current plan without merging",
	RunE:  runOrchestrateDryRun,
}

func init() {
	orchestrateCmd.PersistentFlags().StringVar(&orchestrateBase, "base", "main",
		"Base branch open PRs must target")
	orchestrateCmd.PersistentFlags().IntVar(&orchestrateMaxParallelReviews, "max-parallel-reviews", 5,
		"Maximum number of PRs reviewed concurrently within a wave")
	orchestrateCmd.PersistentFlags().StringVar(&orchestrateModel, "model", "claude-sonnet-4-5-20250929",
		"Claude model used for review and fix sessions")
	orchestrateCmd.PersistentFlags().Float64Var(&orchestrateMinConfidence, "min-confidence", 0.7,
		"Minimum Stage 2 confidence a validated issue must clear to be reported/fixed")
	orchestrateCmd.PersistentFlags().BoolVar(&orchestrateReportLow, "report-low", false,
		"Report and fix low-severity issues in addition to medium/high/critical")

	orchestrateRunCmd.Flags().BoolVar(&orchestrateAutoMerge, "auto-merge", false,
		"Merge every PR that passes review, in plan order")
	orchestrateRunCmd.Flags().StringVar(&orchestrateMergeMethod, "merge-method", "squash",
		"Merge method: squash, merge, or rebase")
	orchestrateRunCmd.Flags().StringVar(&orchestrateStatusAddr, "status-addr", "",
		"If set, serve orchestrator status over gRPC at this address while running")
	orchestrateRunCmd.Flags().StringVar(&orchestrateRunDBDir, "run-db-dir", "",
		"Directory for the ephemeral run database (default: system temp dir)")
	orchestrateRunCmd.Flags().BoolVar(&orchestrateKeepRunDB, "keep-run-db", false,
		"Keep the run database after exit instead of deleting it")

	orchestrateCmd.AddCommand(orchestratePlanCmd)
	orchestrateCmd.AddCommand(orchestrateRunCmd)
	orchestrateCmd.AddCommand(orchestrateDryRunCmd)
}

func buildOrchestrator(cfg orchestrate.Config) (*orchestrate.Orchestrator, error) {
	host, owner, repoName, err := getHost()
	if err != nil {
		return nil, err
	}
	return orchestrate.New(owner, repoName, host, cfg), nil
}

func loadAndAnalyze(cmd *cobra.Command, orch *orchestrate.Orchestrator) (orchestrate.Plan, error) {
	if _, err := orch.LoadOpenPRs(cmd.Context(), orchestrateBase); err != nil {
		return orchestrate.Plan{}, fmt.Errorf("load open PRs: %w", err)
	}
	return orch.Analyze(), nil
}

func runOrchestratePlan(cmd *cobra.Command, args []string) error {
	orch, err := buildOrchestrator(orchestrate.DefaultConfig())
	if err != nil {
		return err
	}

	plan, err := loadAndAnalyze(cmd, orch)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(plan)
	}

	fmt.Printf("%d PR(s) in queue\n", plan.TotalPRs())
	fmt.Printf("merge order: %v\n", plan.PROrder)
	for i, group := range plan.ParallelGroups {
		fmt.Printf("wave %d: %v\n", i+1, group)
	}
	for _, c := range plan.ConflictPairs {
		fmt.Printf("conflict: PR #%d <-> PR #%d over %v\n", c.PRA, c.PRB, c.Files)
	}

	return nil
}

func reviewGroupParams() orchestrate.ReviewGroupParams {
	spawnerBase := agent.DefaultSpawnConfig()
	spawnerBase.Model = orchestrateModel

	stage1Cfg := review.DefaultStage1Config()
	stage1Cfg.Model = orchestrateModel
	stage2Cfg := review.DefaultStage2Config()
	stage2Cfg.Model = orchestrateModel
	stage2Cfg.MinConfidence = orchestrateMinConfidence
	stage2Cfg.ReportLow = orchestrateReportLow

	// Merging is left to ExecutePlan's sequential merge step.
	loopCfg := fixloop.DefaultLoopConfig()
	loopCfg.AutoMerge = false

	return orchestrate.ReviewGroupParams{
		SpawnerBase: spawnerBase,
		Stage1Cfg:   stage1Cfg,
		Stage2Cfg:   stage2Cfg,
		LoopCfg:     loopCfg,
		WorkDirFor: func(prNumber int) string {
			return fmt.Sprintf("pr-%d", prNumber)
		},
	}
}

func runOrchestrateRun(cmd *cobra.Command, args []string) error {
	cfg := orchestrate.DefaultConfig()
	cfg.MaxParallelReviews = orchestrateMaxParallelReviews
	cfg.AutoMerge = orchestrateAutoMerge
	cfg.MergeMethod = orchestrateMergeMethod

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	plan, err := loadAndAnalyze(cmd, orch)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	runStore, cleanupRunStore, err := store.NewEphemeralRunStore(
		orchestrateRunDBDir, runID, orchestrateKeepRunDB,
	)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer func() {
		if cerr := cleanupRunStore(); cerr != nil {
			slog.Warn("run store cleanup failed", "run_id", runID, "err", cerr)
		}
	}()
	slog.Info("opened ephemeral run store", "run_id", runID, "path", runStore.Path())

	if err := persistQueue(cmd.Context(), runStore, orch, plan); err != nil {
		slog.Warn("failed to persist PR queue", "err", err)
	}

	if orchestrateStatusAddr != "" {
		statusCfg := orchestratorrpc.DefaultServerConfig()
		statusCfg.ListenAddr = orchestrateStatusAddr
		statusSrv := orchestratorrpc.NewServer(statusCfg, orch)
		if err := statusSrv.Start(); err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
		defer statusSrv.Stop()
	}

	mergeResults, outcomes := orch.ExecutePlan(cmd.Context(), plan, reviewGroupParams(), true)

	persistOutcomes(cmd.Context(), runStore, outcomes)

	if outputFormat == "json" {
		return outputJSON(map[string]any{
			"plan":          plan,
			"outcomes":      outcomes,
			"merge_results": mergeResults,
			"run_id":        runID,
		})
	}

	for pr, outcome := range outcomes {
		fmt.Printf("PR #%d: %s\n", pr, outcome.Result)
	}
	for _, r := range mergeResults {
		status := "failed"
		if r.Success {
			status = "merged"
		}
		fmt.Printf("PR #%d: %s (%s)\n", r.PRNumber, status, r.Method)
		if r.Error != "" {
			fmt.Printf("  error: %s\n", r.Error)
		}
	}

	return nil
}

// persistQueue snapshots the loaded PR queue into the run store, before
// any review/merge work starts, so a crashed run can be inspected.
func persistQueue(ctx context.Context, runStore *store.RunStore, orch *orchestrate.Orchestrator, plan orchestrate.Plan) error {
	for _, pr := range plan.PROrder {
		node, ok := orch.GetPR(pr)
		if !ok {
			continue
		}

		rec := store.PRNodeRecord{
			PRNumber:      node.PRNumber,
			Branch:        node.Branch,
			Base:          node.Base,
			ChangedFiles:  node.ChangedFiles,
			DependsOn:     node.DependsOn,
			ConflictsWith: node.ConflictsWith,
			Status:        string(node.Status()),
			CreatedAt:     node.CreatedAt,
			UpdatedAt:     node.UpdatedAt,
		}
		if err := runStore.UpsertPRNode(ctx, rec); err != nil {
			return fmt.Errorf("persist pr node %d: %w", pr, err)
		}
	}

	return nil
}

// persistOutcomes records each PR's fix-loop iterations to the run store.
// Failures are logged rather than returned since the run database is a
// diagnostic aid, not a requirement for the orchestrator run to succeed.
func persistOutcomes(ctx context.Context, runStore *store.RunStore, outcomes map[int]fixloop.Outcome) {
	for pr, outcome := range outcomes {
		for _, it := range outcome.Iterations {
			detail := it.Error
			if detail == "" {
				detail = fmt.Sprintf(
					"found=%d fixed=%d skipped=%d tests_ran=%t tests_passed=%t commit=%s duration=%s",
					it.IssuesFound, it.IssuesFixed, it.IssuesSkipped,
					it.TestsRan, it.TestsPassed, it.CommitSHA, it.Duration,
				)
			}

			rec := store.IterationRecord{
				PRNumber:   pr,
				Iteration:  it.Iteration,
				Stage:      "fixloop",
				Result:     string(outcome.Result),
				Detail:     detail,
				RecordedAt: time.Now(),
			}
			if err := runStore.RecordIteration(ctx, rec); err != nil {
				slog.Warn("failed to record iteration", "pr", pr, "iteration", it.Iteration, "err", err)
			}
		}
	}
}

func runOrchestrateDryRun(cmd *cobra.Command, args []string) error {
	orch, err := buildOrchestrator(orchestrate.DefaultConfig())
	if err != nil {
		return err
	}

	plan, err := loadAndAnalyze(cmd, orch)
	if err != nil {
		return err
	}

	readiness := orch.DryRun(cmd.Context(), plan.PROrder)

	if outputFormat == "json" {
		return outputJSON(readiness)
	}

	for _, r := range readiness {
		fmt.Printf("PR #%d: ready=%v mergeable=%v (%s) ci=%v (%s)\n",
			r.PRNumber, r.Ready, r.Mergeable, r.MergeReason, r.CIPassed, r.CIStatus)
	}

	return nil
}
