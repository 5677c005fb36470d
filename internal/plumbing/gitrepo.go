package plumbing

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// GitRepository implements Repository on top of a go-git repository.
type GitRepository struct {
	repo *git.Repository
}

// NewGitRepository wraps an opened go-git repository.
func NewGitRepository(repo *git.Repository) *GitRepository {
	return &GitRepository{repo: repo}
}

// Open opens the repository stored at path.
func Open(path string) (*GitRepository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	return NewGitRepository(repo), nil
}

// Underlying exposes the wrapped go-git repository.
func (r *GitRepository) Underlying() *git.Repository {
	return r.repo
}

type gitCommit struct {
	repo   *GitRepository
	commit *object.Commit
}

func (c gitCommit) ID() string {
	return c.commit.Hash.String()
}

func (c gitCommit) Timestamp() time.Time {
	return c.commit.Author.When
}

func (c gitCommit) AuthorName() string {
	return c.commit.Author.Name
}

func (c gitCommit) Parents() ([]Commit, error) {
	parents := make([]Commit, 0, c.commit.NumParents())
	err := c.commit.Parents().ForEach(func(parent *object.Commit) error {
		parents = append(parents, gitCommit{repo: c.repo, commit: parent})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parents, nil
}

// Resolve maps a VersionSpec to a commit handle.
func (r *GitRepository) Resolve(spec VersionSpec) (Commit, error) {
	switch spec.Kind {
	case VersionHead:
		head, err := r.repo.Head()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve HEAD")
		}
		return r.commitByHash(head.Hash())
	case VersionCommit:
		return r.commitByHash(plumbing.NewHash(spec.Hash))
	case VersionBranch:
		ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(spec.Branch), true)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve branch %s", spec.Branch)
		}
		return r.commitByHash(ref.Hash())
	case VersionFirstAfter, VersionLastBefore:
		return r.resolveByDate(spec)
	}
	return nil, errors.Errorf("unsupported version spec %d", spec.Kind)
}

func (r *GitRepository) commitByHash(hash plumbing.Hash) (Commit, error) {
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load commit %s", hash.String())
	}
	return gitCommit{repo: r, commit: commit}, nil
}

// resolveByDate scans the log from HEAD, newest first. LastBefore picks the
// first commit at or before the date, FirstAfter the last commit at or after
// it.
func (r *GitRepository) resolveByDate(spec VersionSpec) (Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve HEAD")
	}
	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list the commits")
	}
	defer iter.Close()
	var candidate *object.Commit
	for {
		commit, err := iter.Next()
		if err != nil {
			break
		}
		when := commit.Author.When
		if spec.Kind == VersionLastBefore {
			if !when.After(spec.Date) {
				return gitCommit{repo: r, commit: commit}, nil
			}
			continue
		}
		if !when.Before(spec.Date) {
			candidate = commit
		} else {
			break
		}
	}
	if candidate == nil {
		return nil, errors.Errorf("no commit matches the date %s", spec.Date)
	}
	return gitCommit{repo: r, commit: candidate}, nil
}

// TreeDiff produces per-file line ops between two commits, applying go-git's
// rename detection and skipping binary checks: every blob is diffed as text.
func (r *GitRepository) TreeDiff(old, new Commit) ([]FilePatch, error) {
	var oldTree *object.Tree
	if old != nil {
		commit := old.(gitCommit).commit
		tree, err := commit.Tree()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load the tree of %s", commit.Hash.String())
		}
		oldTree = tree
	}
	newCommit := new.(gitCommit).commit
	newTree, err := newCommit.Tree()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load the tree of %s", newCommit.Hash.String())
	}
	changes, err := object.DiffTreeWithOptions(
		context.Background(), oldTree, newTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to diff the trees")
	}
	files := make([]FilePatch, 0, len(changes))
	for _, change := range changes {
		patch, err := fileChangeToPatch(change)
		if err != nil {
			return nil, err
		}
		files = append(files, patch)
	}
	result := TreePatch{Files: files}
	result.SortFiles()
	return result.Files, nil
}

func fileChangeToPatch(change *object.Change) (FilePatch, error) {
	patch := FilePatch{OldPath: change.From.Name, NewPath: change.To.Name}
	if change.From.Name != "" && change.To.Name != "" &&
		change.From.TreeEntry.Hash == change.To.TreeEntry.Hash {
		// pure rename
		return patch, nil
	}
	from, to, err := change.Files()
	if err != nil {
		return patch, errors.Wrap(err, "failed to load the changed blobs")
	}
	var oldContent, newContent string
	if from != nil {
		if oldContent, err = from.Contents(); err != nil {
			return patch, errors.Wrapf(err, "failed to read %s", change.From.Name)
		}
	}
	if to != nil {
		if newContent, err = to.Contents(); err != nil {
			return patch, errors.Wrapf(err, "failed to read %s", change.To.Name)
		}
	}
	patch.Ops = diffLineOps(oldContent, newContent)
	return patch, nil
}

// diffLineOps converts a pair of blobs to the ordered insert/delete line ops
// of their line-level diff.
func diffLineOps(oldContent, newContent string) []LineOp {
	if oldContent == newContent {
		return nil
	}
	var ops []LineOp
	switch {
	case oldContent == "":
		for i := 0; i < countLines(newContent); i++ {
			ops = append(ops, Insert(uint32(i)))
		}
	case newContent == "":
		for i := 0; i < countLines(oldContent); i++ {
			ops = append(ops, Delete(uint32(i)))
		}
	default:
		dmp := diffmatchpatch.New()
		src, dst, _ := dmp.DiffLinesToRunes(oldContent, newContent)
		diffs := dmp.DiffCleanupMerge(
			dmp.DiffCleanupSemanticLossless(dmp.DiffMainRunes(src, dst, false)))
		var oldLine, newLine uint32
		for _, diff := range diffs {
			lines := uint32(utf8.RuneCountInString(diff.Text))
			switch diff.Type {
			case diffmatchpatch.DiffEqual:
				oldLine += lines
				newLine += lines
			case diffmatchpatch.DiffDelete:
				for i := uint32(0); i < lines; i++ {
					ops = append(ops, Delete(oldLine+i))
				}
				oldLine += lines
			case diffmatchpatch.DiffInsert:
				for i := uint32(0); i < lines; i++ {
					ops = append(ops, Insert(newLine+i))
				}
				newLine += lines
			}
		}
	}
	return ops
}

// TreeWalk enumerates the files of the commit's tree with their line counts.
func (r *GitRepository) TreeWalk(commit Commit, visit func(path string, lines int) error) error {
	inner := commit.(gitCommit).commit
	files, err := inner.Files()
	if err != nil {
		return errors.Wrapf(err, "failed to enumerate the tree of %s", inner.Hash.String())
	}
	return files.ForEach(func(file *object.File) error {
		if binary, err := file.IsBinary(); err != nil || binary {
			return err
		}
		content, err := file.Contents()
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", file.Name)
		}
		return visit(file.Name, countLines(content))
	})
}

// countLines counts the lines of a blob the way the diff does: a trailing
// fragment without a newline still counts as a line.
func countLines(content string) int {
	if content == "" {
		return 0
	}
	lines := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		lines++
	}
	return lines
}
