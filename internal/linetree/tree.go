package linetree

import (
	"sort"

	"github.com/cyraxred/constat/internal/identity"
	"github.com/cyraxred/constat/internal/plumbing"
	"github.com/pkg/errors"
)

// LineBlock is a maximal contiguous run of lines attributed to one author
// inside a single file. A file is an ordered sequence of blocks whose sizes
// sum to its line count; adjacent blocks never share the author.
type LineBlock struct {
	Author identity.AuthorId
	Size   uint32
}

// Tree is a commit-scoped snapshot mapping file paths to line blocks.
//
// Trees have value semantics with structural sharing: Clone copies the path
// mapping but shares the per-path block arrays with the original, and any
// mutation of a path acquires a private copy of that array first. Parent
// trees therefore stay valid while many children derive from them.
type Tree struct {
	root map[string][]LineBlock
	// owned marks the paths whose arrays are private to this Tree.
	owned map[string]struct{}
}

// Empty returns a Tree with no paths.
func Empty() *Tree {
	return &Tree{root: map[string][]LineBlock{}, owned: map[string]struct{}{}}
}

// Clone returns a copy sharing all block arrays with the receiver.
func (tree *Tree) Clone() *Tree {
	root := make(map[string][]LineBlock, len(tree.root))
	for path, blocks := range tree.root {
		root[path] = blocks
	}
	return &Tree{root: root, owned: map[string]struct{}{}}
}

// Get returns the block array of a path. The array must not be mutated by
// the caller: it may be shared with other snapshots.
func (tree *Tree) Get(path string) ([]LineBlock, bool) {
	blocks, exists := tree.root[path]
	return blocks, exists
}

// Put stores an owned block array under path.
func (tree *Tree) Put(path string, blocks []LineBlock) {
	tree.root[path] = blocks
	tree.owned[path] = struct{}{}
}

// putShared stores an array which is still shared with another snapshot.
func (tree *Tree) putShared(path string, blocks []LineBlock) {
	tree.root[path] = blocks
	delete(tree.owned, path)
}

// Remove deletes a path.
func (tree *Tree) Remove(path string) {
	delete(tree.root, path)
	delete(tree.owned, path)
}

// Len returns the number of paths.
func (tree *Tree) Len() int {
	return len(tree.root)
}

// Paths returns the sorted list of paths.
func (tree *Tree) Paths() []string {
	paths := make([]string, 0, len(tree.root))
	for path := range tree.root {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// mutable returns the block array of a path, copying it first when it is
// still shared with another snapshot.
func (tree *Tree) mutable(path string) []LineBlock {
	blocks := tree.root[path]
	if _, isOwned := tree.owned[path]; !isOwned {
		blocks = append([]LineBlock(nil), blocks...)
		tree.Put(path, blocks)
	}
	return blocks
}

// relocate prepares the block array for the (old, new) file pair of a patch:
// it moves the array under the new key, drops deleted entries and seeds
// created ones, and returns a privately owned array ready for the replay.
// The second value is false for a pure deletion.
func (tree *Tree) relocate(parent *Tree, old, new string) ([]LineBlock, bool) {
	switch {
	case old != "" && new != "" && old != new:
		tree.Remove(old)
		if blocks, exists := parent.Get(old); exists {
			tree.putShared(new, blocks)
		} else {
			tree.Put(new, nil)
		}
	case old != "" && new != "":
		// modified in place, the entry is already present from the clone
	case new != "":
		tree.Put(new, nil)
	default:
		if old != "" {
			tree.Remove(old)
		}
	}
	if new == "" {
		return nil, false
	}
	if _, exists := tree.root[new]; !exists {
		tree.Put(new, nil)
	}
	return tree.mutable(new), true
}

// Stat sums block sizes per author over the paths matching the predicate.
func (tree *Tree) Stat(predicate func(path string) bool) map[identity.AuthorId]uint64 {
	result := map[identity.AuthorId]uint64{}
	for path, blocks := range tree.root {
		if predicate != nil && !predicate(path) {
			continue
		}
		for _, block := range blocks {
			result[block.Author] += uint64(block.Size)
		}
	}
	return result
}

// Lines returns the total line count of a path, or 0 when absent.
func (tree *Tree) Lines(path string) uint32 {
	var total uint32
	for _, block := range tree.root[path] {
		total += block.Size
	}
	return total
}

// Validate checks the Tree invariants: positive block sizes and no adjacent
// blocks with equal authors. It is meant for tests and debugging.
func (tree *Tree) Validate() error {
	for path, blocks := range tree.root {
		for i, block := range blocks {
			if block.Size == 0 {
				return errors.Errorf("%s: zero-sized block at %d", path, i)
			}
			if i > 0 && blocks[i-1].Author == block.Author {
				return errors.Errorf("%s: adjacent blocks of author %d at %d", path, block.Author, i)
			}
		}
	}
	return nil
}

// FromWalk materializes the full file tree of a commit with every file
// attributed to a single author. Used for the baseline of boundary commits.
func FromWalk(repo plumbing.Repository, commit plumbing.Commit, author identity.AuthorId) (*Tree, error) {
	tree := Empty()
	err := repo.TreeWalk(commit, func(path string, lines int) error {
		if lines > 0 {
			tree.Put(path, []LineBlock{{Author: author, Size: uint32(lines)}})
		} else {
			tree.Put(path, nil)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to enumerate the tree of %s", commit.ID())
	}
	return tree, nil
}
