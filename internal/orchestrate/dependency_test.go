package orchestrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func node(pr int, branch, base string, createdAt time.Time) *PRNode {
	return &PRNode{PRNumber: pr, Branch: branch, Base: base, CreatedAt: createdAt}
}

func TestTopologicalSortOrdersByBranchDependency(t *testing.T) {
	now := time.Now()
	nodes := []*PRNode{
		node(2, "feature-b", "feature-a", now),
		node(1, "feature-a", "main", now),
		node(3, "feature-c", "main", now),
	}

	order, err := topologicalSort(nodes)
	require.NoError(t, err)

	posOf := func(pr int) int {
		for i, p := range order {
			if p == pr {
				return i
			}
		}
		t.Fatalf("pr %d missing from order", pr)
		return -1
	}
	require.Less(t, posOf(1), posOf(2), "PR 1 must merge before its dependent PR 2")
}

func TestTopologicalSortTieBreaksAscending(t *testing.T) {
	now := time.Now()
	nodes := []*PRNode{
		node(5, "a", "main", now),
		node(2, "b", "main", now),
		node(9, "c", "main", now),
	}

	order, err := topologicalSort(nodes)
	require.NoError(t, err)
	require.Equal(t, []int{2, 5, 9}, order)
}

func TestTopologicalSortExplicitDependency(t *testing.T) {
	now := time.Now()
	a := node(1, "a", "main", now)
	b := node(2, "b", "main", now)
	b.DependsOn = []int{1}

	order, err := topologicalSort([]*PRNode{a, b})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, order)
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	now := time.Now()
	a := node(1, "a", "main", now)
	b := node(2, "b", "main", now)
	a.DependsOn = []int{2}
	b.DependsOn = []int{1}

	_, err := topologicalSort([]*PRNode{a, b})
	require.Error(t, err)
}

func TestParallelGroupsIndependentPRsShareAGroup(t *testing.T) {
	now := time.Now()
	nodes := []*PRNode{
		node(1, "a", "main", now),
		node(2, "b", "main", now),
	}

	groups, err := parallelGroups(nodes)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, []int{1, 2}, groups[0])
}

func TestParallelGroupsRespectsDependencyWaves(t *testing.T) {
	now := time.Now()
	nodes := []*PRNode{
		node(1, "a", "main", now),
		node(2, "b", "a", now),
	}

	groups, err := parallelGroups(nodes)
	require.NoError(t, err)
	require.Equal(t, [][]int{{1}, {2}}, groups)
}

func TestIsBlockedByUnmergedDependency(t *testing.T) {
	now := time.Now()
	a := node(1, "a", "main", now)
	b := node(2, "b", "main", now)
	b.DependsOn = []int{1}
	nodes := []*PRNode{a, b}

	require.True(t, isBlocked(nodes, 2, map[int]bool{}))
	require.False(t, isBlocked(nodes, 2, map[int]bool{1: true}))
}
