package plumbing

import (
	"sort"

	"github.com/cyraxred/constat/internal/identity"
)

// LineOp is a single line-level operation of a file diff: an insertion at a
// line of the new revision or a deletion at a line of the old one.
// Line numbers are 0-based. Context lines are never stored.
type LineOp struct {
	insert bool
	line   uint32
}

// Insert builds an insertion op at the 0-based line of the new revision.
func Insert(newLineno uint32) LineOp {
	return LineOp{insert: true, line: newLineno}
}

// Delete builds a deletion op at the 0-based line of the old revision.
func Delete(oldLineno uint32) LineOp {
	return LineOp{insert: false, line: oldLineno}
}

// NewLineno returns the new-revision line of an insertion.
func (op LineOp) NewLineno() (uint32, bool) {
	return op.line, op.insert
}

// OldLineno returns the old-revision line of a deletion.
func (op LineOp) OldLineno() (uint32, bool) {
	return op.line, !op.insert
}

// FilePatch carries the line ops of a single file delta. An empty OldPath
// means the file was created, an empty NewPath means it was deleted, and
// differing non-empty paths mean a rename or copy.
// Ops preserve the order the diff produced them and are never edited.
type FilePatch struct {
	OldPath string
	NewPath string
	Ops     []LineOp
}

// TreePatch is the full diff between one parent tree and the current commit.
// A commit with several parents yields one TreePatch per parent.
type TreePatch struct {
	// NewAuthor is the author id of the current commit.
	NewAuthor identity.AuthorId
	// OldAuthor is the author id of the parent commit,
	// or identity.AuthorMissing when diffing against an empty tree.
	OldAuthor identity.AuthorId
	// Files is sorted by NewPath, deletions last. See SortFiles.
	Files []FilePatch
}

// PathLess orders file paths for patch merging: lexicographic, with the
// absent path (the empty string, i.e. a deletion) sorting last.
func PathLess(a, b string) bool {
	switch {
	case a == b:
		return false
	case a == "":
		return false
	case b == "":
		return true
	}
	return a < b
}

// SortFiles sorts Files by NewPath so per-parent patches can be merged by a
// streaming K-way pass over equal keys.
func (patch *TreePatch) SortFiles() {
	sort.SliceStable(patch.Files, func(i, j int) bool {
		return PathLess(patch.Files[i].NewPath, patch.Files[j].NewPath)
	})
}
