package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestRunStore(t *testing.T) *RunStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.db")
	rs, err := OpenRunStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { rs.Close() })
	return rs
}

func TestUpsertAndLoadPRNodes(t *testing.T) {
	rs := openTestRunStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	node := PRNodeRecord{
		PRNumber:      42,
		Branch:        "feature/x",
		Base:          "main",
		ChangedFiles:  []string{"pkg/a.go", "pkg/b.go"},
		DependsOn:     []int{41},
		ConflictsWith: []int{43},
		Status:        "pending",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, rs.UpsertPRNode(ctx, node))

	nodes, err := rs.LoadPRNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, node.PRNumber, nodes[0].PRNumber)
	require.Equal(t, []string{"pkg/a.go", "pkg/b.go"}, nodes[0].ChangedFiles)
	require.Equal(t, []int{41}, nodes[0].DependsOn)
	require.Equal(t, []int{43}, nodes[0].ConflictsWith)
	require.Equal(t, "pending", nodes[0].Status)
}

func TestUpsertPRNodeReplacesOnConflict(t *testing.T) {
	rs := openTestRunStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	base := PRNodeRecord{PRNumber: 1, Branch: "b1", Base: "main", Status: "pending", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, rs.UpsertPRNode(ctx, base))

	base.Status = "merged"
	base.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, rs.UpsertPRNode(ctx, base))

	nodes, err := rs.LoadPRNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "merged", nodes[0].Status)
}

func TestRecordAndListIterations(t *testing.T) {
	rs := openTestRunStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	require.NoError(t, rs.RecordIteration(ctx, IterationRecord{
		PRNumber: 7, Iteration: 1, Stage: "review", Result: "failed",
		Detail: "2 critical issues", RecordedAt: now,
	}))
	require.NoError(t, rs.RecordIteration(ctx, IterationRecord{
		PRNumber: 7, Iteration: 2, Stage: "review", Result: "passed",
		RecordedAt: now.Add(time.Minute),
	}))
	require.NoError(t, rs.RecordIteration(ctx, IterationRecord{
		PRNumber: 8, Iteration: 1, Stage: "review", Result: "passed",
		RecordedAt: now,
	}))

	recs, err := rs.ListIterations(ctx, 7)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "failed", recs[0].Result)
	require.Equal(t, "2 critical issues", recs[0].Detail)
	require.Equal(t, "passed", recs[1].Result)
}

func TestStatsAggregatesByStatus(t *testing.T) {
	rs := openTestRunStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	for i, status := range []string{"pending", "pending", "merged"} {
		require.NoError(t, rs.UpsertPRNode(ctx, PRNodeRecord{
			PRNumber: i + 1, Branch: "b", Base: "main",
			Status: status, CreatedAt: now, UpdatedAt: now,
		}))
	}
	require.NoError(t, rs.RecordIteration(ctx, IterationRecord{PRNumber: 1, Iteration: 1, Stage: "review", Result: "passed", RecordedAt: now}))

	stats, err := rs.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalPRs)
	require.Equal(t, 2, stats.ByStatus["pending"])
	require.Equal(t, 1, stats.ByStatus["merged"])
	require.Equal(t, 1, stats.TotalRecords)
}

func TestClearRemovesAllRows(t *testing.T) {
	rs := openTestRunStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	require.NoError(t, rs.UpsertPRNode(ctx, PRNodeRecord{PRNumber: 1, Branch: "b", Base: "main", Status: "pending", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, rs.RecordIteration(ctx, IterationRecord{PRNumber: 1, Iteration: 1, Stage: "review", Result: "passed", RecordedAt: now}))

	require.NoError(t, rs.Clear(ctx))

	nodes, err := rs.LoadPRNodes(ctx)
	require.NoError(t, err)
	require.Empty(t, nodes)

	recs, err := rs.ListIterations(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestNewEphemeralRunStoreRemovesFileUnlessKept(t *testing.T) {
	dir := t.TempDir()

	rs, cleanup, err := NewEphemeralRunStore(dir, "abc123", false)
	require.NoError(t, err)
	require.NoError(t, rs.UpsertPRNode(context.Background(), PRNodeRecord{
		PRNumber: 1, Branch: "b", Base: "main", Status: "pending",
		CreatedAt: time.Unix(0, 0), UpdatedAt: time.Unix(0, 0),
	}))
	path := rs.Path()

	require.NoError(t, cleanup())
	require.NoFileExists(t, path)
}

func TestNewEphemeralRunStoreKeepsFileWhenRequested(t *testing.T) {
	dir := t.TempDir()

	rs, cleanup, err := NewEphemeralRunStore(dir, "keepme", true)
	require.NoError(t, err)
	path := rs.Path()

	require.NoError(t, cleanup())
	require.FileExists(t, path)
}
