// Package orchestrate drives the review and merge of many PRs at once: it
// orders them by dependency and conflict risk, reviews independent groups in
// parallel, and merges the queue sequentially once each PR is clean.
package orchestrate

import (
	"time"

	"github.com/roasbeef/prreview/internal/fixloop"
	"github.com/roasbeef/prreview/internal/review"
)

// PRNode is one PR in the orchestration queue.
type PRNode struct {
	PRNumber      int
	Branch        string
	Base          string
	ChangedFiles  []string
	DependsOn     []int
	ConflictsWith []int
	CreatedAt     time.Time
	UpdatedAt     time.Time

	FSM *review.PRNodeFSM

	Outcome *fixloop.Outcome
}

// Status returns the PR's current review/merge state.
func (n *PRNode) Status() review.ReviewState {
	return n.FSM.State()
}

// Config tunes how the orchestrator reviews and merges PRs.
type Config struct {
	MergeMethod               string
	AutoMerge                 bool
	DeleteBranchAfterMerge    bool
	AllowMergeWithMediumIssues bool
	MaxMediumIssuesForMerge   int
	AutoRebaseOnConflict      bool
	MaxParallelReviews        int
	MaxParallelMerges         int
	MergeInterval             time.Duration
	MergeablePollAttempts     int
	MergeablePollInterval     time.Duration
}

// DefaultConfig mirrors the original orchestrator's defaults: squash merges,
// auto-rebase on conflict, up to 5 parallel reviews, merges one at a time.
func DefaultConfig() Config {
	return Config{
		MergeMethod:                "squash",
		AutoMerge:                  false,
		DeleteBranchAfterMerge:     true,
		AllowMergeWithMediumIssues: true,
		MaxMediumIssuesForMerge:    3,
		AutoRebaseOnConflict:       true,
		MaxParallelReviews:         5,
		MaxParallelMerges:          1,
		MergeInterval:              2 * time.Second,
		MergeablePollAttempts:      10,
		MergeablePollInterval:      time.Second,
	}
}

// Plan is the output of analyzing a queue of PRNodes: a merge order, the
// parallel groups it was derived from, and the conflict pairs found along
// the way.
type Plan struct {
	PROrder        []int
	ParallelGroups [][]int
	ConflictPairs  []ConflictPair
}

// TotalPRs returns the number of PRs covered by the plan.
func (p Plan) TotalPRs() int {
	return len(p.PROrder)
}

// ConflictPair names two PRs whose changed files overlap, and the files
// responsible.
type ConflictPair struct {
	PRA   int
	PRB   int
	Files []string
}

// MergeResult is the outcome of attempting to merge a single PR.
type MergeResult struct {
	PRNumber  int
	Success   bool
	Method    string
	CommitSHA string
	Error     string
	MergedAt  time.Time
}

// MergeReadiness is the dry-run verdict for one PR: is it mergeable, have
// its CI checks passed, and is it ready on both counts.
type MergeReadiness struct {
	PRNumber    int
	Mergeable   bool
	MergeReason string
	CIPassed    bool
	CIStatus    string
	Ready       bool
}
