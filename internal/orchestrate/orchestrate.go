package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roasbeef/prreview/internal/agent"
	"github.com/roasbeef/prreview/internal/fixloop"
	"github.com/roasbeef/prreview/internal/hosting"
	"github.com/roasbeef/prreview/internal/review"
)

// Orchestrator manages the review and merge queue for every open PR
// targeting one base branch of one repository.
type Orchestrator struct {
	owner, repo string
	host        hosting.Client
	cfg         Config

	queue  map[int]*PRNode
	merged map[int]bool
}

// New builds an Orchestrator for owner/repo.
func New(owner, repoName string, host hosting.Client, cfg Config) *Orchestrator {
	return &Orchestrator{
		owner:  owner,
		repo:   repoName,
		host:   host,
		cfg:    cfg,
		queue:  make(map[int]*PRNode),
		merged: make(map[int]bool),
	}
}

// LoadOpenPRs replaces the queue with every open PR targeting base.
func (o *Orchestrator) LoadOpenPRs(ctx context.Context, base string) ([]*PRNode, error) {
	prs, err := o.host.ListOpenPRs(ctx, o.owner, o.repo, base)
	if err != nil {
		return nil, fmt.Errorf("list open PRs: %w", err)
	}

	o.queue = make(map[int]*PRNode, len(prs))
	for _, pr := range prs {
		node := &PRNode{
			PRNumber:     pr.Number,
			Branch:       pr.Branch,
			Base:         pr.Base,
			ChangedFiles: pr.ChangedFiles,
			CreatedAt:    pr.CreatedAt,
			UpdatedAt:    pr.UpdatedAt,
			FSM:          review.NewPRNodeFSM(pr.Number),
		}
		o.queue[pr.Number] = node
	}

	slog.Info("loaded open PRs", "count", len(o.queue), "base", base)
	return o.nodeList(), nil
}

func (o *Orchestrator) nodeList() []*PRNode {
	nodes := make([]*PRNode, 0, len(o.queue))
	for _, n := range o.queue {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].PRNumber < nodes[j].PRNumber })
	return nodes
}

// Analyze builds an orchestration Plan from the currently loaded queue: a
// dependency-derived order (falling back to creation-time order if a cycle
// is found), reordered to keep file-overlapping PRs adjacent, plus the
// parallel review groups and the conflict pairs discovered along the way.
func (o *Orchestrator) Analyze() Plan {
	nodes := o.nodeList()
	if len(nodes) == 0 {
		return Plan{}
	}

	depOrder, err := topologicalSort(nodes)
	if err != nil {
		slog.Error("dependency analysis failed, falling back to creation-time order", "err", err)
		depOrder = make([]int, len(nodes))
		sorted := append([]*PRNode(nil), nodes...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
		for i, n := range sorted {
			depOrder[i] = n.PRNumber
		}
	}

	pairs := allConflictPairs(nodes)
	for _, p := range pairs {
		o.queue[p.PRA].ConflictsWith = append(o.queue[p.PRA].ConflictsWith, p.PRB)
		o.queue[p.PRB].ConflictsWith = append(o.queue[p.PRB].ConflictsWith, p.PRA)
	}

	finalOrder := conflictFreeOrder(nodes, depOrder)

	groups, err := parallelGroups(nodes)
	if err != nil {
		slog.Error("parallel group analysis failed", "err", err)
		groups = nil
	}

	plan := Plan{PROrder: finalOrder, ParallelGroups: groups, ConflictPairs: pairs}

	slog.Info("orchestration plan ready",
		"total_prs", plan.TotalPRs(), "parallel_groups", len(groups), "conflicts", len(pairs))

	return plan
}

// ReviewGroupParams bundles the per-PR feedback-loop dependencies shared
// across a parallel review group.
type ReviewGroupParams struct {
	SpawnerBase *agent.SpawnConfig
	Stage1Cfg   review.Stage1Config
	Stage2Cfg   review.Stage2Config
	LoopCfg     fixloop.LoopConfig
	WorkDirFor  func(prNumber int) string
}

// ReviewParallelGroup runs the feedback loop for each PR in a group
// concurrently, bounded by Config.MaxParallelReviews.
func (o *Orchestrator) ReviewParallelGroup(ctx context.Context, prNumbers []int, params ReviewGroupParams) map[int]fixloop.Outcome {
	maxParallel := o.cfg.MaxParallelReviews
	if maxParallel <= 0 {
		maxParallel = 1
	}
	sem := make(chan struct{}, maxParallel)

	type result struct {
		pr      int
		outcome fixloop.Outcome
	}
	results := make(chan result, len(prNumbers))

	for _, prNumber := range prNumbers {
		node, ok := o.queue[prNumber]
		if !ok {
			continue
		}
		node.FSM.ProcessEvent(review.StartReviewEvent{})

		go func(node *PRNode) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- result{pr: node.PRNumber, outcome: fixloop.Outcome{Result: fixloop.ResultError}}
				return
			}

			workDir := ""
			if params.WorkDirFor != nil {
				workDir = params.WorkDirFor(node.PRNumber)
			}
			loopCfg := params.LoopCfg
			loopCfg.WorkingDir = workDir

			target := fixloop.PRTarget{Owner: o.owner, Repo: o.repo, PRNumber: node.PRNumber, Branch: node.Branch}
			outcome, err := fixloop.Run(ctx, loopCfg, target, o.host, params.SpawnerBase, params.Stage1Cfg, params.Stage2Cfg).Unpack()
			if err != nil {
				slog.Error("feedback loop failed", "pr", node.PRNumber, "err", err)
				outcome = fixloop.Outcome{Result: fixloop.ResultError}
			}

			results <- result{pr: node.PRNumber, outcome: outcome}
		}(node)
	}

	out := make(map[int]fixloop.Outcome, len(prNumbers))
	for range prNumbers {
		r := <-results
		out[r.pr] = r.outcome

		node := o.queue[r.pr]
		node.Outcome = &r.outcome

		if r.outcome.Result == fixloop.ResultReadyToMerge || r.outcome.Result == fixloop.ResultMerged {
			node.FSM.ProcessEvent(review.ReviewPassEvent{})
		} else {
			node.FSM.ProcessEvent(review.ReviewFailEvent{Reason: string(r.outcome.Result)})
		}
	}

	return out
}

// ExecutePlan reviews every parallel group in dependency order, then — if
// merge is true and auto-merge is configured — merges every PR that passed
// review, in plan order.
func (o *Orchestrator) ExecutePlan(ctx context.Context, plan Plan, params ReviewGroupParams, merge bool) ([]MergeResult, map[int]fixloop.Outcome) {
	allOutcomes := make(map[int]fixloop.Outcome)

	for _, group := range plan.ParallelGroups {
		slog.Info("reviewing parallel group", "prs", group)
		results := o.ReviewParallelGroup(ctx, group, params)
		for pr, outcome := range results {
			allOutcomes[pr] = outcome
		}
	}

	if !merge || !o.cfg.AutoMerge {
		return nil, allOutcomes
	}

	var ready []int
	for _, pr := range plan.PROrder {
		node, ok := o.queue[pr]
		if ok && node.Status() == review.StateReviewPassed {
			ready = append(ready, pr)
		}
	}
	if len(ready) == 0 {
		return nil, allOutcomes
	}

	slog.Info("merging PRs", "count", len(ready), "prs", ready)
	for _, pr := range ready {
		o.queue[pr].FSM.ProcessEvent(review.StartMergeEvent{})
	}

	executor := newMergeExecutor(o.owner, o.repo, o.host, o.cfg, o.nodeList())
	results := executor.executePlan(ctx, ready, true)

	for _, r := range results {
		node := o.queue[r.PRNumber]
		if r.Success {
			node.FSM.ProcessEvent(review.MergeOKEvent{CommitSHA: r.CommitSHA})
			o.merged[r.PRNumber] = true
		} else {
			node.FSM.ProcessEvent(review.MergeFailEvent{Reason: r.Error})
		}
	}

	return results, allOutcomes
}

// DryRun reports, for every PR in order, whether it is currently mergeable
// and whether its CI has passed, without merging anything.
func (o *Orchestrator) DryRun(ctx context.Context, order []int) []MergeReadiness {
	executor := newMergeExecutor(o.owner, o.repo, o.host, o.cfg, o.nodeList())
	return executor.dryRun(ctx, order)
}

// GetQueueStatus reports every queued PR's current state.
func (o *Orchestrator) GetQueueStatus() map[int]review.ReviewState {
	out := make(map[int]review.ReviewState, len(o.queue))
	for pr, node := range o.queue {
		out[pr] = node.Status()
	}
	return out
}

// GetPR returns a PR's queue entry, if present.
func (o *Orchestrator) GetPR(prNumber int) (*PRNode, bool) {
	node, ok := o.queue[prNumber]
	return node, ok
}

// IsPRBlocked reports whether a PR has an unmerged dependency.
func (o *Orchestrator) IsPRBlocked(prNumber int) bool {
	return isBlocked(o.nodeList(), prNumber, o.merged)
}
