package orchestrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/prreview/internal/hosting"
	"github.com/roasbeef/prreview/internal/reportmd"
	"github.com/roasbeef/prreview/internal/review"
)

// fakeHost is a minimal hosting.Client stub for exercising the merge
// executor without a network call.
type fakeHost struct {
	mergeable       map[int]hosting.MergeableState
	ciStatus        map[string]hosting.CIStatus
	updateBranch    map[int]bool // true = succeeds
	mergeCalls      []int
	deletedBranches []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		mergeable:    make(map[int]hosting.MergeableState),
		ciStatus:     make(map[string]hosting.CIStatus),
		updateBranch: make(map[int]bool),
	}
}

func (f *fakeHost) Diff(ctx context.Context, owner, repoName string, prNumber int) (string, error) {
	return "", nil
}
func (f *fakeHost) ChangedFiles(ctx context.Context, owner, repoName string, prNumber int) ([]string, error) {
	return nil, nil
}
func (f *fakeHost) ListOpenPRs(ctx context.Context, owner, repoName, base string) ([]hosting.OpenPR, error) {
	return nil, nil
}
func (f *fakeHost) PostReviewComment(ctx context.Context, owner, repoName string, prNumber int, commitSHA string, issue review.ValidatedIssue) error {
	return nil
}
func (f *fakeHost) PostReviewSummary(ctx context.Context, owner, repoName string, prNumber int, issues []review.ValidatedIssue, stats reportmd.SummaryStats) error {
	return nil
}
func (f *fakeHost) ApprovePR(ctx context.Context, owner, repoName string, prNumber int, message string) error {
	return nil
}
func (f *fakeHost) RequestChanges(ctx context.Context, owner, repoName string, prNumber int, message string) error {
	return nil
}
func (f *fakeHost) Mergeable(ctx context.Context, owner, repoName string, prNumber int) (hosting.MergeableState, error) {
	return f.mergeable[prNumber], nil
}
func (f *fakeHost) UpdateBranch(ctx context.Context, owner, repoName string, prNumber int) error {
	if f.updateBranch[prNumber] {
		f.mergeable[prNumber] = hosting.MergeableState{Known: true, Mergeable: true, MergeableState: "clean", HeadSHA: f.mergeable[prNumber].HeadSHA}
		return nil
	}
	return errors.New("rebase failed")
}
func (f *fakeHost) CombinedStatus(ctx context.Context, owner, repoName, commitSHA string) (hosting.CIStatus, error) {
	return f.ciStatus[commitSHA], nil
}
func (f *fakeHost) Merge(ctx context.Context, owner, repoName string, prNumber int, method, commitMessage string) (string, error) {
	f.mergeCalls = append(f.mergeCalls, prNumber)
	return "deadbeef", nil
}
func (f *fakeHost) DeleteBranch(ctx context.Context, owner, repoName, branch string) error {
	f.deletedBranches = append(f.deletedBranches, branch)
	return nil
}

var _ hosting.Client = (*fakeHost)(nil)

func TestMergeExecutorMergesWhenMergeableAndCIPasses(t *testing.T) {
	host := newFakeHost()
	host.mergeable[1] = hosting.MergeableState{Known: true, Mergeable: true, MergeableState: "clean", HeadSHA: "sha1"}
	host.ciStatus["sha1"] = hosting.CIStatus{Passed: true, Reason: "All checks passed"}

	cfg := DefaultConfig()
	cfg.MergeInterval = 0
	nodes := []*PRNode{{PRNumber: 1, Branch: "feature-1"}}

	executor := newMergeExecutor("o", "r", host, cfg, nodes)
	result := executor.mergeOne(context.Background(), 1)

	require.True(t, result.Success)
	require.Equal(t, "deadbeef", result.CommitSHA)
	require.Equal(t, []string{"feature-1"}, host.deletedBranches)
}

func TestMergeExecutorBlocksOnFailingCI(t *testing.T) {
	host := newFakeHost()
	host.mergeable[1] = hosting.MergeableState{Known: true, Mergeable: true, MergeableState: "clean", HeadSHA: "sha1"}
	host.ciStatus["sha1"] = hosting.CIStatus{Passed: false, Reason: "CI checks failed: build"}

	cfg := DefaultConfig()
	nodes := []*PRNode{{PRNumber: 1, Branch: "feature-1"}}
	executor := newMergeExecutor("o", "r", host, cfg, nodes)

	result := executor.mergeOne(context.Background(), 1)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "CI checks failed")
	require.Empty(t, host.mergeCalls)
}

func TestMergeExecutorRebasesWhenBehind(t *testing.T) {
	host := newFakeHost()
	host.mergeable[1] = hosting.MergeableState{Known: true, Mergeable: false, MergeableState: "behind", HeadSHA: "sha1"}
	host.updateBranch[1] = true
	host.ciStatus["sha1"] = hosting.CIStatus{Passed: true, Reason: "All checks passed"}

	cfg := DefaultConfig()
	nodes := []*PRNode{{PRNumber: 1, Branch: "feature-1"}}
	executor := newMergeExecutor("o", "r", host, cfg, nodes)

	result := executor.mergeOne(context.Background(), 1)
	require.True(t, result.Success)
}

func TestMergeExecutorStopsPlanOnFirstFailure(t *testing.T) {
	host := newFakeHost()
	host.mergeable[1] = hosting.MergeableState{Known: true, Mergeable: false, MergeableState: "dirty", HeadSHA: "sha1"}
	host.mergeable[2] = hosting.MergeableState{Known: true, Mergeable: true, MergeableState: "clean", HeadSHA: "sha2"}
	host.ciStatus["sha2"] = hosting.CIStatus{Passed: true}

	cfg := DefaultConfig()
	cfg.MergeInterval = 0
	nodes := []*PRNode{{PRNumber: 1, Branch: "a"}, {PRNumber: 2, Branch: "b"}}
	executor := newMergeExecutor("o", "r", host, cfg, nodes)

	results := executor.executePlan(context.Background(), []int{1, 2}, true)
	require.Len(t, results, 1)
	require.False(t, results[0].Success)
}

func TestMergeExecutorDryRunDoesNotMerge(t *testing.T) {
	host := newFakeHost()
	host.mergeable[1] = hosting.MergeableState{Known: true, Mergeable: true, MergeableState: "clean", HeadSHA: "sha1"}
	host.ciStatus["sha1"] = hosting.CIStatus{Passed: true, Reason: "All checks passed"}

	cfg := DefaultConfig()
	nodes := []*PRNode{{PRNumber: 1, Branch: "feature-1"}}
	executor := newMergeExecutor("o", "r", host, cfg, nodes)

	statuses := executor.dryRun(context.Background(), []int{1})
	require.Len(t, statuses, 1)
	require.True(t, statuses[0].Ready)
	require.Empty(t, host.mergeCalls)
}

func TestMergeExecutorUnknownMergeableStatePollsThenFails(t *testing.T) {
	host := newFakeHost()
	// No entry for PR 1: zero-value MergeableState{Known: false}.
	cfg := DefaultConfig()
	cfg.MergeablePollAttempts = 2
	cfg.MergeablePollInterval = time.Millisecond
	nodes := []*PRNode{{PRNumber: 1, Branch: "feature-1"}}
	executor := newMergeExecutor("o", "r", host, cfg, nodes)

	result := executor.mergeOne(context.Background(), 1)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "unknown")
}
