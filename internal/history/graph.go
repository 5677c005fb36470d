package history

import (
	"sort"

	"github.com/cyraxred/constat/internal/plumbing"
)

// Graph is the commit DAG reachable from a head commit, pruned by the filter
// (a rejected commit stays as a node without parents, its ancestors are
// left out) and ordered for processing. Nodes appear in
// reverse post-order of the traversal, so every effective parent has a
// smaller index than any of its children.
type Graph struct {
	nodes []plumbing.Commit
	// parents[i] lists the node indices of i's effective parents,
	// deduplicated and sorted ascending.
	parents [][]int
	// lastUse[i] is the largest index of a node referencing i, or the
	// graph length for the final node.
	lastUse []int
}

// PlanStep pairs the node to process with the nodes whose Trees become
// unreachable once the step completes.
type PlanStep struct {
	Processing int
	Expired    []int
}

// Filter decides whether the traversal descends into a commit's ancestors.
// A commit it rejects is still included, but becomes a boundary commit with
// no recorded parents.
type Filter func(commit plumbing.Commit) bool

// EffectiveAncestors returns the parents of a commit after transparently
// skipping parents with the same timestamp and author name, which collapses
// the no-op merge commits rebased histories accumulate.
func EffectiveAncestors(commit plumbing.Commit) ([]plumbing.Commit, error) {
	when := commit.Timestamp()
	author := commit.AuthorName()
	queue := []plumbing.Commit{commit}
	var result []plumbing.Commit
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		parents, err := current.Parents()
		if err != nil {
			return nil, err
		}
		for _, parent := range parents {
			if parent.Timestamp().Equal(when) && parent.AuthorName() == author {
				queue = append(queue, parent)
			} else {
				result = append(result, parent)
			}
		}
	}
	return result, nil
}

// IsInitialCommit reports whether a commit has no ancestors at all, as
// opposed to a boundary commit whose ancestors were pruned by the filter.
func IsInitialCommit(commit plumbing.Commit) (bool, error) {
	parents, err := commit.Parents()
	if err != nil {
		return false, err
	}
	if len(parents) == 0 {
		return true, nil
	}
	ancestors, err := EffectiveAncestors(commit)
	if err != nil {
		return false, err
	}
	return len(ancestors) == 0, nil
}

const openMark = -1

// Build traverses the DAG from head with an iterative two-pass DFS: the
// first visit of a commit marks it open and schedules its effective
// ancestors, the second finalizes it and records the parent indices.
func Build(head plumbing.Commit, filter Filter) (*Graph, error) {
	graph := &Graph{}
	if head == nil {
		return graph, nil
	}
	flags := map[string]int{}
	pruned := map[string]bool{}
	stack := []plumbing.Commit{head}
	for len(stack) > 0 {
		commit := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		id := commit.ID()
		state, seen := flags[id]
		switch {
		case !seen:
			flags[id] = openMark
			stack = append(stack, commit)
			if filter != nil && !filter(commit) {
				pruned[id] = true
				continue
			}
			ancestors, err := EffectiveAncestors(commit)
			if err != nil {
				return nil, err
			}
			// Pushed in reverse so the first parent pops first and
			// finalizes with the smallest index: adjacency lists sorted
			// by index then start with the base parent of a merge.
			for i := len(ancestors) - 1; i >= 0; i-- {
				if _, visited := flags[ancestors[i].ID()]; !visited {
					stack = append(stack, ancestors[i])
				}
			}
		case state == openMark:
			flags[id] = len(graph.nodes)
			var adjacency []int
			if !pruned[id] {
				ancestors, err := EffectiveAncestors(commit)
				if err != nil {
					return nil, err
				}
				for _, parent := range ancestors {
					if idx, visited := flags[parent.ID()]; visited && idx != openMark {
						adjacency = append(adjacency, idx)
					}
				}
			}
			graph.nodes = append(graph.nodes, commit)
			graph.parents = append(graph.parents, dedupSorted(adjacency))
		default:
			// already finalized via another path
		}
	}
	graph.computeLastUse()
	return graph, nil
}

func dedupSorted(indices []int) []int {
	sort.Ints(indices)
	j := 0
	for i, idx := range indices {
		if i == 0 || indices[j-1] != idx {
			indices[j] = idx
			j++
		}
	}
	return indices[:j]
}

func (graph *Graph) computeLastUse() {
	graph.lastUse = make([]int, len(graph.nodes))
	for idx, parents := range graph.parents {
		for _, pid := range parents {
			if graph.lastUse[pid] < idx {
				graph.lastUse[pid] = idx
			}
		}
	}
	if length := len(graph.nodes); length > 0 {
		graph.lastUse[length-1] = length
	}
}

// Len returns the number of commits in processing order.
func (graph *Graph) Len() int {
	return len(graph.nodes)
}

// Node returns the commit at a processing index.
func (graph *Graph) Node(idx int) plumbing.Commit {
	return graph.nodes[idx]
}

// Parents returns the effective parent indices of a node.
func (graph *Graph) Parents(idx int) []int {
	return graph.parents[idx]
}

// LastUse returns the index of the last step which reads the node's Tree.
func (graph *Graph) LastUse(idx int) int {
	return graph.lastUse[idx]
}

// Plan emits the processing steps together with the eviction schedule: a
// node lands in Expired at the last step referencing its Tree, so a driver
// following the plan keeps at most the DAG width of Trees resident.
func (graph *Graph) Plan() []PlanStep {
	expireStack := make([]int, graph.Len())
	for i := range expireStack {
		expireStack[i] = i
	}
	sort.SliceStable(expireStack, func(i, j int) bool {
		return graph.lastUse[expireStack[i]] > graph.lastUse[expireStack[j]]
	})
	plan := make([]PlanStep, 0, graph.Len())
	for processing := 0; processing < graph.Len(); processing++ {
		var expired []int
		for len(expireStack) > 0 {
			top := expireStack[len(expireStack)-1]
			if graph.lastUse[top] > processing && processing < graph.Len()-1 {
				break
			}
			expired = append(expired, top)
			expireStack = expireStack[:len(expireStack)-1]
		}
		plan = append(plan, PlanStep{Processing: processing, Expired: expired})
	}
	return plan
}
