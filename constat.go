package constat

import (
	"github.com/go-git/go-git/v5"

	"github.com/cyraxred/constat/internal/core"
	"github.com/cyraxred/constat/internal/history"
	"github.com/cyraxred/constat/internal/identity"
	"github.com/cyraxred/constat/internal/linetree"
	"github.com/cyraxred/constat/internal/plumbing"
	"github.com/cyraxred/constat/render"
)

// AuthorId identifies an interned author display name.
type AuthorId = identity.AuthorId

// Registry interns author display names into AuthorId-s.
type Registry = identity.Registry

// NewRegistry initializes a new instance of Registry.
func NewRegistry() *Registry {
	return identity.NewRegistry()
}

const (
	// OlderCodeName is the reserved display name of pre-history code.
	OlderCodeName = identity.OlderCodeName
	// UnknownAuthorName is the reserved display name substituting a null
	// author name.
	UnknownAuthorName = identity.UnknownAuthorName
)

// Tree is a commit-scoped snapshot mapping file paths to line blocks.
type Tree = linetree.Tree

// LineBlock is a run of contiguous lines attributed to one author.
type LineBlock = linetree.LineBlock

// Repository is the object-store abstraction consumed by the Engine.
type Repository = plumbing.Repository

// Commit is a handle to a single commit of a Repository.
type Commit = plumbing.Commit

// VersionSpec selects the commit where the analysis ends.
type VersionSpec = plumbing.VersionSpec

const (
	// VersionHead selects the commit HEAD points at.
	VersionHead = plumbing.VersionHead
	// VersionCommit selects a commit by its hex hash.
	VersionCommit = plumbing.VersionCommit
	// VersionBranch selects the tip of a local branch.
	VersionBranch = plumbing.VersionBranch
	// VersionFirstAfter selects the oldest commit at a date or later.
	VersionFirstAfter = plumbing.VersionFirstAfter
	// VersionLastBefore selects the newest commit at a date or earlier.
	VersionLastBefore = plumbing.VersionLastBefore
)

// Filter decides whether the history traversal descends into a commit's
// ancestors.
type Filter = history.Filter

// Engine replays the commit DAG and attributes every surviving line to the
// author who most recently wrote it.
type Engine = core.Engine

// CommitCallback receives the attribution snapshot of every processed
// commit.
type CommitCallback = core.CommitCallback

// Logger defines the output interface used by constat components.
type Logger = core.Logger

// NewLogger returns the default stderr logger.
func NewLogger() Logger {
	return core.NewLogger()
}

// SeriesBuilder accumulates engine callbacks into per-day author series.
type SeriesBuilder = render.Builder

// NewSeriesBuilder initializes a new instance of SeriesBuilder.
func NewSeriesBuilder(registry *Registry, predicate func(path string) bool) *SeriesBuilder {
	return render.NewBuilder(registry, predicate)
}

// OpenRepository opens the Git repository stored at path.
func OpenRepository(path string) (Repository, error) {
	return plumbing.Open(path)
}

// WrapRepository adapts an already opened go-git repository.
func WrapRepository(repository *git.Repository) Repository {
	return plumbing.NewGitRepository(repository)
}
