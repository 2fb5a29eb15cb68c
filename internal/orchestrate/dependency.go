package orchestrate

import (
	"fmt"
	"sort"
)

// dependencyGraph maps each PR to the PRs it depends on, and its reverse
// (PRs that depend on it). A dependency is either an explicit entry in
// DependsOn, or implicit: a PR whose base branch is another PR's head
// branch must merge after it.
type dependencyGraph struct {
	deps    map[int]map[int]bool
	reverse map[int]map[int]bool
}

func buildDependencyGraph(nodes []*PRNode) *dependencyGraph {
	g := &dependencyGraph{
		deps:    make(map[int]map[int]bool),
		reverse: make(map[int]map[int]bool),
	}

	byBranch := make(map[string]int, len(nodes))
	for _, n := range nodes {
		byBranch[n.Branch] = n.PRNumber
	}

	add := func(pr, dep int) {
		if g.deps[pr] == nil {
			g.deps[pr] = make(map[int]bool)
		}
		g.deps[pr][dep] = true
		if g.reverse[dep] == nil {
			g.reverse[dep] = make(map[int]bool)
		}
		g.reverse[dep][pr] = true
	}

	for _, n := range nodes {
		if dep, ok := byBranch[n.Base]; ok {
			add(n.PRNumber, dep)
		}
		for _, dep := range n.DependsOn {
			add(n.PRNumber, dep)
		}
	}

	return g
}

// topologicalSort orders PRs dependencies-first using Kahn's algorithm,
// breaking ties by ascending PR number for determinism. It reports a
// circular-dependency error naming the PRs that could not be ordered; the
// caller (Analyze) falls back to creation-time order when that happens,
// matching the original orchestrator's behavior.
func topologicalSort(nodes []*PRNode) ([]int, error) {
	g := buildDependencyGraph(nodes)

	prNumbers := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		prNumbers[n.PRNumber] = true
	}

	inDegree := make(map[int]int, len(nodes))
	for pr := range prNumbers {
		for dep := range g.deps[pr] {
			if prNumbers[dep] {
				inDegree[pr]++
			}
		}
	}

	var queue []int
	for pr := range prNumbers {
		if inDegree[pr] == 0 {
			queue = append(queue, pr)
		}
	}

	var result []int
	for len(queue) > 0 {
		sort.Ints(queue)
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for dependent := range g.reverse[current] {
			if _, ok := inDegree[dependent]; !ok {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(prNumbers) {
		remaining := make([]int, 0, len(prNumbers)-len(result))
		seen := make(map[int]bool, len(result))
		for _, pr := range result {
			seen[pr] = true
		}
		for pr := range prNumbers {
			if !seen[pr] {
				remaining = append(remaining, pr)
			}
		}
		sort.Ints(remaining)
		return nil, fmt.Errorf("circular dependency detected among PRs: %v", remaining)
	}

	return result, nil
}

// parallelGroups buckets PRs into waves: every PR in a wave has all of its
// dependencies satisfied by an earlier wave, so the PRs within a wave can
// review concurrently.
func parallelGroups(nodes []*PRNode) ([][]int, error) {
	g := buildDependencyGraph(nodes)

	prNumbers := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		prNumbers[n.PRNumber] = true
	}

	processed := make(map[int]bool, len(nodes))
	var groups [][]int

	for len(processed) < len(prNumbers) {
		var current []int
		for pr := range prNumbers {
			if processed[pr] {
				continue
			}
			ready := true
			for dep := range g.deps[pr] {
				if prNumbers[dep] && !processed[dep] {
					ready = false
					break
				}
			}
			if ready {
				current = append(current, pr)
			}
		}

		if len(current) == 0 {
			remaining := make([]int, 0, len(prNumbers)-len(processed))
			for pr := range prNumbers {
				if !processed[pr] {
					remaining = append(remaining, pr)
				}
			}
			sort.Ints(remaining)
			return nil, fmt.Errorf("cannot resolve dependencies for PRs: %v", remaining)
		}

		sort.Ints(current)
		groups = append(groups, current)
		for _, pr := range current {
			processed[pr] = true
		}
	}

	return groups, nil
}

// isBlocked reports whether pr has a dependency not yet present in merged.
func isBlocked(nodes []*PRNode, pr int, merged map[int]bool) bool {
	g := buildDependencyGraph(nodes)
	for dep := range g.deps[pr] {
		if !merged[dep] {
			return true
		}
	}
	return false
}
