package orchestrate

import (
	"path/filepath"
	"sort"
)

// conflictIndex maps changed files (and their parent directories, as a
// rougher signal) to the PRs that touch them.
type conflictIndex struct {
	fileToPRs map[string]map[int]bool
	dirToPRs  map[string]map[int]bool
}

func buildConflictIndex(nodes []*PRNode) *conflictIndex {
	idx := &conflictIndex{
		fileToPRs: make(map[string]map[int]bool),
		dirToPRs:  make(map[string]map[int]bool),
	}

	for _, n := range nodes {
		for _, f := range n.ChangedFiles {
			if idx.fileToPRs[f] == nil {
				idx.fileToPRs[f] = make(map[int]bool)
			}
			idx.fileToPRs[f][n.PRNumber] = true

			for _, dir := range parentDirs(f) {
				if idx.dirToPRs[dir] == nil {
					idx.dirToPRs[dir] = make(map[int]bool)
				}
				idx.dirToPRs[dir][n.PRNumber] = true
			}
		}
	}

	return idx
}

// parentDirs returns every ancestor directory of a slash-separated path,
// excluding the root ".".
func parentDirs(path string) []string {
	dir := filepath.Dir(filepath.ToSlash(path))
	var out []string
	for dir != "." && dir != "/" && dir != "" {
		out = append(out, dir)
		dir = filepath.Dir(dir)
	}
	return out
}

// predictConflicts reports whether two PRs touch the same file(s), and
// which files overlap.
func predictConflicts(idx *conflictIndex, nodes []*PRNode, prA, prB int) (bool, []string) {
	byNum := make(map[int]*PRNode, len(nodes))
	for _, n := range nodes {
		byNum[n.PRNumber] = n
	}
	a, okA := byNum[prA]
	b, okB := byNum[prB]
	if !okA || !okB {
		return false, nil
	}

	filesA := make(map[string]bool, len(a.ChangedFiles))
	for _, f := range a.ChangedFiles {
		filesA[f] = true
	}

	var overlap []string
	for _, f := range b.ChangedFiles {
		if filesA[f] {
			overlap = append(overlap, f)
		}
	}
	sort.Strings(overlap)

	return len(overlap) > 0, overlap
}

// allConflictPairs returns every pair of PRs with overlapping changed
// files, each with the overlapping file list.
func allConflictPairs(nodes []*PRNode) []ConflictPair {
	idx := buildConflictIndex(nodes)

	prNumbers := make([]int, len(nodes))
	for i, n := range nodes {
		prNumbers[i] = n.PRNumber
	}

	var pairs []ConflictPair
	for i := 0; i < len(prNumbers); i++ {
		for j := i + 1; j < len(prNumbers); j++ {
			has, files := predictConflicts(idx, nodes, prNumbers[i], prNumbers[j])
			if has {
				pairs = append(pairs, ConflictPair{
					PRA: prNumbers[i], PRB: prNumbers[j], Files: files,
				})
			}
		}
	}

	return pairs
}

// findConflictGroups unions PRs that share a changed file, transitively,
// via union-find, and returns every group with more than one member.
func findConflictGroups(nodes []*PRNode) [][]int {
	idx := buildConflictIndex(nodes)

	parent := make(map[int]int, len(nodes))
	for _, n := range nodes {
		parent[n.PRNumber] = n.PRNumber
	}

	var find func(x int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(x, y int) {
		px, py := find(x), find(y)
		if px != py {
			parent[px] = py
		}
	}

	for _, prs := range idx.fileToPRs {
		list := make([]int, 0, len(prs))
		for pr := range prs {
			list = append(list, pr)
		}
		sort.Ints(list)
		for i := 1; i < len(list); i++ {
			union(list[0], list[i])
		}
	}

	groups := make(map[int][]int)
	for _, n := range nodes {
		root := find(n.PRNumber)
		groups[root] = append(groups[root], n.PRNumber)
	}

	var out [][]int
	for _, g := range groups {
		if len(g) > 1 {
			sort.Ints(g)
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })

	return out
}

// conflictFreeOrder reorders baseOrder so that PRs sharing a changed file
// merge back-to-back, oldest-first within each group, while otherwise
// preserving baseOrder (the dependency-derived order).
func conflictFreeOrder(nodes []*PRNode, baseOrder []int) []int {
	byNum := make(map[int]*PRNode, len(nodes))
	for _, n := range nodes {
		byNum[n.PRNumber] = n
	}

	groups := findConflictGroups(nodes)
	groupOf := make(map[int]int, len(nodes))
	for gi, g := range groups {
		for _, pr := range g {
			groupOf[pr] = gi
		}
	}

	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool {
			return byNum[g[i]].CreatedAt.Before(byNum[g[j]].CreatedAt)
		})
	}

	used := make(map[int]bool, len(nodes))
	var result []int

	for _, pr := range baseOrder {
		if used[pr] {
			continue
		}
		gi, inGroup := groupOf[pr]
		if !inGroup {
			result = append(result, pr)
			used[pr] = true
			continue
		}
		for _, gPr := range groups[gi] {
			if !used[gPr] {
				result = append(result, gPr)
				used[gPr] = true
			}
		}
	}

	return result
}
