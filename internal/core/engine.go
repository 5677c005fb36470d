package core

import (
	"fmt"

	"github.com/cyraxred/constat/internal/history"
	"github.com/cyraxred/constat/internal/identity"
	"github.com/cyraxred/constat/internal/linetree"
	"github.com/cyraxred/constat/internal/plumbing"
	"github.com/pkg/errors"
)

// CommitCallback receives the attribution snapshot of every processed
// commit. It runs synchronously on the engine's goroutine; the Tree must be
// treated as read-only and may be retained only until the callback returns,
// unless the caller copies the numbers it needs via Tree.Stat.
type CommitCallback func(repo plumbing.Repository, commit plumbing.Commit,
	tree *linetree.Tree, index, total int)

// Engine replays the commit DAG of a repository and maintains, per commit,
// the per-file line blocks attributing every surviving line to the author
// who most recently wrote it.
//
// All state of a run is carried by the Engine instance; there are no
// process-wide singletons. The run is single-threaded: one commit is
// processed per plan step and parent snapshots are dropped at the last step
// which reads them.
type Engine struct {
	// Repository is the object store under analysis.
	Repository plumbing.Repository
	// Registry interns author names. Allocated on demand when nil.
	Registry *identity.Registry
	// Head selects the commit where the replay ends.
	Head plumbing.VersionSpec
	// Filter prunes the ancestry traversal. Commits it rejects become
	// boundary commits attributed to BaselineAuthorLabel.
	Filter history.Filter
	// OnCommit is invoked for every processed commit.
	OnCommit CommitCallback
	// BaselineAuthorLabel overrides the display name of pre-history code.
	BaselineAuthorLabel string
	// UnknownAuthorLabel overrides the display name used when the
	// repository yields no author name.
	UnknownAuthorLabel string
	// DumpPlan writes the processing plan to the logger before running.
	DumpPlan bool
	// Logger is the run's logger. Allocated on demand when nil.
	Logger Logger

	// baselineCommit anchors the diffs of subsequent boundary commits.
	baselineCommit plumbing.Commit
	baselineTree   *linetree.Tree
}

func (engine *Engine) baselineLabel() string {
	if engine.BaselineAuthorLabel != "" {
		return engine.BaselineAuthorLabel
	}
	return identity.OlderCodeName
}

func (engine *Engine) authorOf(commit plumbing.Commit) identity.AuthorId {
	name := commit.AuthorName()
	if name == "" {
		name = engine.UnknownAuthorLabel
	}
	return engine.Registry.IdOf(name)
}

// Run builds the history graph, plans it and processes every step in order.
// The first repository error aborts the run: subsequent steps depend on the
// missing Tree, so there is nothing to resume from.
func (engine *Engine) Run() error {
	if engine.Repository == nil {
		return errors.New("repository is not set")
	}
	if engine.Registry == nil {
		engine.Registry = identity.NewRegistry()
	}
	if engine.Logger == nil {
		engine.Logger = NewLogger()
	}
	head, err := engine.Repository.Resolve(engine.Head)
	if err != nil {
		return err
	}
	graph, err := history.Build(head, engine.Filter)
	if err != nil {
		return errors.Wrap(err, "failed to traverse the history")
	}
	plan := graph.Plan()
	if engine.DumpPlan {
		engine.dumpPlan(graph, plan)
	}

	trees := map[int]*linetree.Tree{}
	for _, step := range plan {
		tree, err := engine.processStep(graph, trees, step.Processing)
		if err != nil {
			return err
		}
		if engine.OnCommit != nil {
			engine.OnCommit(engine.Repository, graph.Node(step.Processing),
				tree, step.Processing, len(plan))
		}
		trees[step.Processing] = tree
		for _, expired := range step.Expired {
			delete(trees, expired)
		}
	}
	return nil
}

func (engine *Engine) processStep(
	graph *history.Graph, trees map[int]*linetree.Tree, index int) (*linetree.Tree, error) {

	commit := graph.Node(index)
	merger := engine.authorOf(commit)
	parentIdx := graph.Parents(index)
	if len(parentIdx) == 0 {
		return engine.processRoot(commit, merger)
	}

	parents := make([]*linetree.Tree, len(parentIdx))
	patches := make([]plumbing.TreePatch, len(parentIdx))
	for i, pid := range parentIdx {
		parentTree, cached := trees[pid]
		if !cached {
			panic(fmt.Sprintf("constat: the tree of step %d was evicted before step %d", pid, index))
		}
		parents[i] = parentTree
		parentCommit := graph.Node(pid)
		files, err := engine.Repository.TreeDiff(parentCommit, commit)
		if err != nil {
			return nil, err
		}
		patches[i] = plumbing.TreePatch{
			NewAuthor: merger,
			OldAuthor: engine.authorOf(parentCommit),
			Files:     files,
		}
	}
	return linetree.AnalyzePatch(parents, patches, merger), nil
}

// processRoot handles the nodes with no recorded parents: true initial
// commits replay against the empty tree, while boundary commits cut off by
// the filter materialize (or diff against) the pre-history baseline, whose
// content belongs to the reserved baseline author.
func (engine *Engine) processRoot(
	commit plumbing.Commit, merger identity.AuthorId) (*linetree.Tree, error) {

	initial, err := history.IsInitialCommit(commit)
	if err != nil {
		return nil, err
	}
	if initial {
		files, err := engine.Repository.TreeDiff(nil, commit)
		if err != nil {
			return nil, err
		}
		patch := plumbing.TreePatch{
			NewAuthor: merger,
			OldAuthor: identity.AuthorMissing,
			Files:     files,
		}
		return linetree.AnalyzePatch(
			[]*linetree.Tree{linetree.Empty()}, []plumbing.TreePatch{patch}, merger), nil
	}

	older := engine.Registry.IdOf(engine.baselineLabel())
	if engine.baselineTree == nil {
		engine.Logger.Infof("materializing the baseline tree at %s", commit.ID())
		tree, err := linetree.FromWalk(engine.Repository, commit, older)
		if err != nil {
			return nil, err
		}
		engine.baselineCommit = commit
		engine.baselineTree = tree
		return tree, nil
	}
	files, err := engine.Repository.TreeDiff(engine.baselineCommit, commit)
	if err != nil {
		return nil, err
	}
	patch := plumbing.TreePatch{NewAuthor: older, OldAuthor: older, Files: files}
	return linetree.AnalyzePatch(
		[]*linetree.Tree{engine.baselineTree}, []plumbing.TreePatch{patch}, older), nil
}

func (engine *Engine) dumpPlan(graph *history.Graph, plan []history.PlanStep) {
	for _, step := range plan {
		commit := graph.Node(step.Processing)
		engine.Logger.Infof("%d %s parents=%v expire=%v",
			step.Processing, commit.ID(), graph.Parents(step.Processing), step.Expired)
	}
}
