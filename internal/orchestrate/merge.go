package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roasbeef/prreview/internal/hosting"
)

// mergeExecutor merges a sequence of PRs one at a time, polling for
// mergeability, auto-rebasing behind-base PRs, gating on CI, and pausing
// between merges so the hosting provider has time to settle state.
type mergeExecutor struct {
	owner string
	repo  string
	host  hosting.Client
	cfg   Config

	nodeByNumber map[int]*PRNode
}

func newMergeExecutor(owner, repo string, host hosting.Client, cfg Config, nodes []*PRNode) *mergeExecutor {
	byNum := make(map[int]*PRNode, len(nodes))
	for _, n := range nodes {
		byNum[n.PRNumber] = n
	}
	return &mergeExecutor{owner: owner, repo: repo, host: host, cfg: cfg, nodeByNumber: byNum}
}

// checkMergeable polls the hosting provider for a PR's mergeable state,
// since GitHub computes it asynchronously after a push. It returns the
// verdict, a human-readable reason, and the head commit SHA (needed to
// query CI status separately).
func (m *mergeExecutor) checkMergeable(ctx context.Context, prNumber int) (bool, string, string) {
	attempts := m.cfg.MergeablePollAttempts
	if attempts <= 0 {
		attempts = 1
	}
	interval := m.cfg.MergeablePollInterval
	if interval <= 0 {
		interval = time.Second
	}

	var state hosting.MergeableState
	var err error
	for i := 0; i < attempts; i++ {
		state, err = m.host.Mergeable(ctx, m.owner, m.repo, prNumber)
		if err != nil {
			return false, fmt.Sprintf("hosting API error: %v", err), ""
		}
		if state.Known {
			break
		}
		select {
		case <-ctx.Done():
			return false, "mergeable state unknown", ""
		case <-time.After(interval):
		}
	}

	if !state.Known {
		return false, "mergeable state unknown", ""
	}
	if !state.Mergeable {
		return false, fmt.Sprintf("PR has conflicts (mergeable_state: %s)", state.MergeableState), state.HeadSHA
	}
	if state.MergeableState == "blocked" {
		return false, "PR is blocked by branch protection rules", state.HeadSHA
	}
	if state.MergeableState == "behind" {
		return false, "PR is behind base branch", state.HeadSHA
	}

	return true, "OK", state.HeadSHA
}

func (m *mergeExecutor) checkCI(ctx context.Context, headSHA string) (bool, string) {
	if headSHA == "" {
		return false, "head commit unknown"
	}
	status, err := m.host.CombinedStatus(ctx, m.owner, m.repo, headSHA)
	if err != nil {
		return false, fmt.Sprintf("hosting API error: %v", err)
	}
	return status.Passed, status.Reason
}

func (m *mergeExecutor) attemptRebase(ctx context.Context, prNumber int) bool {
	if err := m.host.UpdateBranch(ctx, m.owner, m.repo, prNumber); err != nil {
		slog.Warn("rebase failed", "pr", prNumber, "err", err)
		return false
	}
	slog.Info("rebased PR onto base branch", "pr", prNumber)
	return true
}

// mergeOne merges a single PR, auto-rebasing a behind-base PR first when
// configured, and gates on CI passing before attempting the merge.
func (m *mergeExecutor) mergeOne(ctx context.Context, prNumber int) MergeResult {
	mergeable, reason, headSHA := m.checkMergeable(ctx, prNumber)
	if !mergeable {
		if m.cfg.AutoRebaseOnConflict && strings.Contains(strings.ToLower(reason), "behind") {
			if m.attemptRebase(ctx, prNumber) {
				mergeable, reason, headSHA = m.checkMergeable(ctx, prNumber)
			}
		}
		if !mergeable {
			return MergeResult{PRNumber: prNumber, Success: false, Error: reason}
		}
	}

	ciPassed, ciStatus := m.checkCI(ctx, headSHA)
	if !ciPassed {
		return MergeResult{PRNumber: prNumber, Success: false, Error: ciStatus}
	}

	msg := fmt.Sprintf("Merge PR #%d", prNumber)
	sha, err := m.host.Merge(ctx, m.owner, m.repo, prNumber, m.cfg.MergeMethod, msg)
	if err != nil {
		return MergeResult{PRNumber: prNumber, Success: false, Error: err.Error()}
	}

	if m.cfg.DeleteBranchAfterMerge {
		if node, ok := m.nodeByNumber[prNumber]; ok {
			if err := m.host.DeleteBranch(ctx, m.owner, m.repo, node.Branch); err != nil {
				slog.Warn("failed to delete branch after merge", "pr", prNumber, "err", err)
			}
		}
	}

	return MergeResult{
		PRNumber: prNumber, Success: true, Method: m.cfg.MergeMethod,
		CommitSHA: sha, MergedAt: time.Now(),
	}
}

// executePlan merges prOrder sequentially, stopping at the first failure
// unless stopOnFailure is false, pausing MergeInterval between merges.
func (m *mergeExecutor) executePlan(ctx context.Context, prOrder []int, stopOnFailure bool) []MergeResult {
	results := make([]MergeResult, 0, len(prOrder))

	for i, prNumber := range prOrder {
		slog.Info("merging PR", "pr", prNumber)
		result := m.mergeOne(ctx, prNumber)
		results = append(results, result)

		if result.Success {
			slog.Info("PR merged", "pr", prNumber, "sha", result.CommitSHA)
		} else {
			slog.Error("PR merge failed", "pr", prNumber, "err", result.Error)
			if stopOnFailure {
				break
			}
		}

		if i < len(prOrder)-1 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(m.cfg.MergeInterval):
			}
		}
	}

	return results
}

// dryRun reports mergeability and CI status for each PR without merging.
func (m *mergeExecutor) dryRun(ctx context.Context, prOrder []int) []MergeReadiness {
	out := make([]MergeReadiness, 0, len(prOrder))
	for _, prNumber := range prOrder {
		mergeable, mergeReason, headSHA := m.checkMergeable(ctx, prNumber)
		ciPassed, ciStatus := m.checkCI(ctx, headSHA)
		out = append(out, MergeReadiness{
			PRNumber: prNumber, Mergeable: mergeable, MergeReason: mergeReason,
			CIPassed: ciPassed, CIStatus: ciStatus, Ready: mergeable && ciPassed,
		})
	}
	return out
}
