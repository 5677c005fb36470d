package history

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyraxred/constat/internal/plumbing"
)

type testCommit struct {
	id      string
	when    time.Time
	author  string
	parents []*testCommit
}

func (c *testCommit) ID() string           { return c.id }
func (c *testCommit) Timestamp() time.Time { return c.when }
func (c *testCommit) AuthorName() string   { return c.author }
func (c *testCommit) Parents() ([]plumbing.Commit, error) {
	parents := make([]plumbing.Commit, len(c.parents))
	for i, parent := range c.parents {
		parents[i] = parent
	}
	return parents, nil
}

func at(seconds int64) time.Time {
	return time.Unix(seconds, 0)
}

func commitOf(id, author string, seconds int64, parents ...*testCommit) *testCommit {
	return &testCommit{id: id, when: at(seconds), author: author, parents: parents}
}

func indexOf(t *testing.T, graph *Graph, id string) int {
	for i := 0; i < graph.Len(); i++ {
		if graph.Node(i).ID() == id {
			return i
		}
	}
	t.Fatalf("commit %s is not in the graph", id)
	return -1
}

func TestBuildLinearChain(t *testing.T) {
	a := commitOf("a", "Alice", 100)
	b := commitOf("b", "Bob", 200, a)
	c := commitOf("c", "Carol", 300, b)

	graph, err := Build(c, nil)
	require.NoError(t, err)
	require.Equal(t, 3, graph.Len())
	assert.Equal(t, "a", graph.Node(0).ID())
	assert.Equal(t, "b", graph.Node(1).ID())
	assert.Equal(t, "c", graph.Node(2).ID())
	assert.Empty(t, graph.Parents(0))
	assert.Equal(t, []int{0}, graph.Parents(1))
	assert.Equal(t, []int{1}, graph.Parents(2))
	assert.Equal(t, 1, graph.LastUse(0))
	assert.Equal(t, 2, graph.LastUse(1))
	assert.Equal(t, 3, graph.LastUse(2))
}

func TestBuildDiamond(t *testing.T) {
	a := commitOf("a", "Alice", 100)
	b := commitOf("b", "Bob", 200, a)
	c := commitOf("c", "Carol", 250, a)
	d := commitOf("d", "Dave", 300, b, c)

	graph, err := Build(d, nil)
	require.NoError(t, err)
	require.Equal(t, 4, graph.Len())

	ai, bi, ci, di := indexOf(t, graph, "a"), indexOf(t, graph, "b"),
		indexOf(t, graph, "c"), indexOf(t, graph, "d")
	assert.Equal(t, 3, di)
	// the first parent finalizes first and leads the adjacency list
	assert.Equal(t, []int{bi, ci}, graph.Parents(di))
	assert.True(t, bi < ci)
	assert.Equal(t, []int{ai}, graph.Parents(bi))
	assert.Equal(t, []int{ai}, graph.Parents(ci))
	// every parent index precedes the child
	for i := 0; i < graph.Len(); i++ {
		for _, pid := range graph.Parents(i) {
			assert.Less(t, pid, i)
		}
	}
	assert.Equal(t, ci, graph.LastUse(ai))
}

func TestBuildDeduplicatesParents(t *testing.T) {
	a := commitOf("a", "Alice", 100)
	merge := commitOf("m", "Bob", 200, a, a)

	graph, err := Build(merge, nil)
	require.NoError(t, err)
	require.Equal(t, 2, graph.Len())
	assert.Equal(t, []int{0}, graph.Parents(1))
}

func TestEffectiveAncestorsCollapse(t *testing.T) {
	a := commitOf("a", "Alice", 100)
	b := commitOf("b", "Bob", 200, a)
	// a no-op merge: same author and timestamp as its child
	noop := commitOf("noop", "Carol", 300, b)
	head := commitOf("head", "Carol", 300, noop)

	ancestors, err := EffectiveAncestors(head)
	require.NoError(t, err)
	require.Len(t, ancestors, 1)
	assert.Equal(t, "b", ancestors[0].ID())

	graph, err := Build(head, nil)
	require.NoError(t, err)
	require.Equal(t, 3, graph.Len())
	assert.Equal(t, "a", graph.Node(0).ID())
	assert.Equal(t, "b", graph.Node(1).ID())
	assert.Equal(t, "head", graph.Node(2).ID())
}

func TestIsInitialCommit(t *testing.T) {
	a := commitOf("a", "Alice", 100)
	initial, err := IsInitialCommit(a)
	require.NoError(t, err)
	assert.True(t, initial)

	b := commitOf("b", "Bob", 200, a)
	initial, err = IsInitialCommit(b)
	require.NoError(t, err)
	assert.False(t, initial)
}

func TestBuildWithFilterBoundary(t *testing.T) {
	a := commitOf("a", "Alice", 100)
	b := commitOf("b", "Bob", 200, a)
	c := commitOf("c", "Carol", 300, b)

	graph, err := Build(c, func(commit plumbing.Commit) bool {
		return commit.Timestamp().After(at(150))
	})
	require.NoError(t, err)
	require.Equal(t, 3, graph.Len())
	assert.Equal(t, "a", graph.Node(0).ID())
	// the pruned commit is still included, but keeps no parents
	assert.Empty(t, graph.Parents(0))
	assert.Equal(t, []int{0}, graph.Parents(1))
	assert.Equal(t, []int{1}, graph.Parents(2))
}

func TestPlanExpiresEverythingOnce(t *testing.T) {
	a := commitOf("a", "Alice", 100)
	b := commitOf("b", "Bob", 200, a)
	c := commitOf("c", "Carol", 250, a)
	d := commitOf("d", "Dave", 300, b, c)
	e := commitOf("e", "Eve", 400, d)

	graph, err := Build(e, nil)
	require.NoError(t, err)
	plan := graph.Plan()
	require.Len(t, plan, graph.Len())

	var expired []int
	for i, step := range plan {
		assert.Equal(t, i, step.Processing)
		for _, idx := range step.Expired {
			if idx != graph.Len()-1 {
				assert.LessOrEqual(t, graph.LastUse(idx), i)
			}
			expired = append(expired, idx)
		}
	}
	sort.Ints(expired)
	want := make([]int, graph.Len())
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, expired)
}

func TestPlanLinearPeaksAtTwoResident(t *testing.T) {
	a := commitOf("a", "Alice", 100)
	b := commitOf("b", "Bob", 200, a)
	c := commitOf("c", "Carol", 300, b)

	graph, err := Build(c, nil)
	require.NoError(t, err)
	resident := 0
	peak := 0
	for _, step := range graph.Plan() {
		resident++
		if resident > peak {
			peak = resident
		}
		resident -= len(step.Expired)
	}
	assert.Equal(t, 2, peak)
	assert.Equal(t, 0, resident)
}

func TestBuildNilHead(t *testing.T) {
	graph, err := Build(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, graph.Len())
	assert.Empty(t, graph.Plan())
}
