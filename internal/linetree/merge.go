package linetree

import (
	"fmt"
	"sort"

	"github.com/cyraxred/constat/internal/identity"
	"github.com/cyraxred/constat/internal/plumbing"
)

// pathPair is one touched file of a commit: where it came from and where it
// ended up. Either side may be empty for creations and deletions.
type pathPair struct {
	old string
	new string
}

// patchFileList unions the (old, new) path pairs of all per-parent patches,
// sorted by new path with deletions last. Entries for the same new path
// deduplicate in favor of the base parent, so its rename mapping wins when
// parents disagree. Deletions are ordered by patch index, then old path, and
// collapse only into an immediately preceding deletion of the same old path.
func patchFileList(patches []plumbing.TreePatch) []pathPair {
	type indexedPair struct {
		pathPair
		patchIdx int
	}
	var pairs []indexedPair
	for patchIdx, patch := range patches {
		for _, file := range patch.Files {
			pairs = append(pairs, indexedPair{
				pathPair: pathPair{old: file.OldPath, new: file.NewPath},
				patchIdx: patchIdx,
			})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.new != b.new {
			return plumbing.PathLess(a.new, b.new)
		}
		if a.patchIdx != b.patchIdx {
			return a.patchIdx < b.patchIdx
		}
		return a.old < b.old
	})
	result := make([]pathPair, 0, len(pairs))
	for _, pair := range pairs {
		if last := len(result) - 1; last >= 0 {
			if pair.new != "" && result[last].new == pair.new {
				continue
			}
			if pair.new == "" && result[last].new == "" && result[last].old == pair.old {
				continue
			}
		}
		result = append(result, pair.pathPair)
	}
	return result
}

// relatedAuthors picks the author representing each parent side of a merge:
// the parent commit's author, or the current one when diffing against the
// empty tree.
func relatedAuthors(patches []plumbing.TreePatch) []identity.AuthorId {
	authors := make([]identity.AuthorId, len(patches))
	for i, patch := range patches {
		if patch.OldAuthor != identity.AuthorMissing {
			authors[i] = patch.OldAuthor
		} else {
			authors[i] = patch.NewAuthor
		}
	}
	return authors
}

// addition re-attributes a single line of the provisional block array.
type addition struct {
	author identity.AuthorId
	line   uint32
}

// parentOps is the op stream of one parent's FilePatch for the merged file.
type parentOps struct {
	author identity.AuthorId
	ops    []plumbing.LineOp
}

// mergeFilePatch walks the insert ops of every parent in new-line order and
// decides the author of each inserted line. With N parents and the ordinal
// total N(N+1)/2, subtracting the 1-based ordinal of every parent which
// inserted at the line leaves either the single parent which did NOT - the
// line already existed there, so its block author is reused - or a value
// outside [1, N], meaning the line is novel and belongs to the merger.
func mergeFilePatch(patches []parentOps, trees [][]LineBlock, merger identity.AuthorId) []addition {
	base := make([]uint32, len(trees))
	oldPosDiff := make([]int32, len(patches))
	sum := (1 + len(patches)) * len(patches) / 2

	var result []addition
	for {
		for idx := range patches {
			ops := patches[idx].ops
			for len(ops) > 0 {
				if _, isInsert := ops[0].NewLineno(); isInsert {
					break
				}
				ops = ops[1:]
				oldPosDiff[idx]++
			}
			patches[idx].ops = ops
		}

		nextLine, found := uint32(0), false
		for idx := range patches {
			if line, isInsert := headNewLineno(patches[idx].ops); isInsert {
				if !found || line < nextLine {
					nextLine, found = line, true
				}
			}
		}
		if !found {
			break
		}

		authorOfs := sum
		for idx := range patches {
			if line, isInsert := headNewLineno(patches[idx].ops); isInsert && line == nextLine {
				authorOfs -= idx + 1
				patches[idx].ops = patches[idx].ops[1:]
				oldPosDiff[idx]--
			}
		}
		for id := range trees {
			tree := trees[id]
			if len(tree) == 0 {
				continue
			}
			if int64(base[id])+int64(oldPosDiff[id])+int64(tree[0].Size) < int64(nextLine) {
				base[id] += tree[0].Size
				trees[id] = tree[1:]
			}
		}

		if authorOfs > 0 && authorOfs <= len(patches) {
			author := patches[authorOfs-1].author
			if tree := trees[authorOfs-1]; len(tree) > 0 {
				author = tree[0].Author
			}
			result = append(result, addition{line: nextLine, author: author})
		} else {
			result = append(result, addition{line: nextLine, author: merger})
		}
	}
	return result
}

func headNewLineno(ops []plumbing.LineOp) (uint32, bool) {
	if len(ops) == 0 {
		return 0, false
	}
	return ops[0].NewLineno()
}

// replayBase applies the base parent's line ops to its block array, keeping
// the surviving lines attributed to the old blocks. Sizes end up matching
// the new revision, while inserted lines are re-attributed afterwards by the
// addition overlay.
func replayBase(blocks []LineBlock, ops []plumbing.LineOp, merger identity.AuthorId) []LineBlock {
	opIdx := 0
	var oldBase, newBase uint32
	for i := range blocks {
		block := &blocks[i]
		newSize := block.Size
		for opIdx < len(ops) {
			op := ops[opIdx]
			var oldLine, newLine uint32
			if line, isDelete := op.OldLineno(); isDelete {
				oldLine = line
			}
			if line, isInsert := op.NewLineno(); isInsert {
				newLine = line
			}
			if oldLine >= oldBase+block.Size || newLine >= newBase+newSize {
				break
			}
			opIdx++
			if line, isDelete := op.OldLineno(); isDelete {
				if line >= oldBase {
					if newSize == 0 {
						panic(fmt.Sprintf(
							"constat: negative line count replaying a patch at line %d", line))
					}
					newSize--
				}
			} else if line, _ := op.NewLineno(); line >= newBase {
				newSize++
			}
		}
		oldBase += block.Size
		newBase += newSize
		block.Size = newSize
	}
	for ; opIdx < len(ops); opIdx++ {
		if _, isInsert := ops[opIdx].NewLineno(); isInsert {
			if len(blocks) == 0 {
				blocks = append(blocks, LineBlock{Author: merger, Size: 0})
			}
			blocks[len(blocks)-1].Size++
		}
	}
	return blocks
}

// applyAdditions splices single-line re-attributions into the provisional
// block array and renormalizes it.
func applyAdditions(blocks []LineBlock, additions []addition) []LineBlock {
	idx := 0
	var base uint32
	var buffer []LineBlock
	for _, block := range blocks {
		lastBegin := base
		lastEnd := base + block.Size
		for idx < len(additions) && additions[idx].line < lastEnd {
			if lastBegin < additions[idx].line {
				buffer = append(buffer, LineBlock{
					Author: block.Author, Size: additions[idx].line - lastBegin})
			}
			buffer = append(buffer, LineBlock{Author: additions[idx].author, Size: 1})
			lastBegin = additions[idx].line + 1
			idx++
		}
		if lastBegin < lastEnd {
			buffer = append(buffer, LineBlock{Author: block.Author, Size: lastEnd - lastBegin})
		}
		base += block.Size
	}
	return compressBlocks(buffer)
}

// compressBlocks merges adjacent blocks with equal authors in place.
func compressBlocks(blocks []LineBlock) []LineBlock {
	if len(blocks) == 0 {
		return blocks
	}
	j := 1
	for i := 1; i < len(blocks); i++ {
		if blocks[j-1].Author == blocks[i].Author {
			blocks[j-1].Size += blocks[i].Size
		} else {
			blocks[j] = blocks[i]
			j++
		}
	}
	return blocks[:j]
}

// AnalyzePatch produces the Tree of a commit from its parents' Trees and the
// per-parent patches. patches[i] describes the diff from parents[i]; merger
// is the author of the commit being processed. The base parent's snapshot
// seeds the result, its patch replays sizes, and the addition overlay then
// settles the author of every inserted line across all parents.
func AnalyzePatch(parents []*Tree, patches []plumbing.TreePatch, merger identity.AuthorId) *Tree {
	if len(parents) == 0 || len(parents) != len(patches) {
		panic(fmt.Sprintf("constat: %d parent trees against %d patches", len(parents), len(patches)))
	}
	files := patchFileList(patches)
	authors := relatedAuthors(patches)
	cursors := make([]int, len(patches))

	result := parents[0].Clone()

	for _, pair := range files {
		filePatches := make([]*plumbing.FilePatch, len(patches))
		for k := range patches {
			entries := patches[k].Files
			for cursors[k] < len(entries) && plumbing.PathLess(entries[cursors[k]].NewPath, pair.new) {
				cursors[k]++
			}
			if cursors[k] < len(entries) && entries[cursors[k]].NewPath == pair.new {
				filePatches[k] = &entries[cursors[k]]
				cursors[k]++
			}
		}

		if filePatches[0] != nil {
			if blocks, live := result.relocate(parents[0], pair.old, pair.new); live {
				result.Put(pair.new, replayBase(blocks, filePatches[0].Ops, merger))
			}
		}

		parentPatches := make([]parentOps, len(patches))
		for k := range patches {
			parentPatches[k] = parentOps{author: authors[k]}
			if filePatches[k] != nil {
				parentPatches[k].ops = filePatches[k].Ops
			}
		}
		parentBlocks := make([][]LineBlock, len(parents))
		if pair.old != "" {
			for k, parent := range parents {
				blocks, _ := parent.Get(pair.old)
				parentBlocks[k] = blocks
			}
		}
		additions := mergeFilePatch(parentPatches, parentBlocks, merger)

		if pair.new != "" {
			if current, exists := result.Get(pair.new); exists {
				result.Put(pair.new, applyAdditions(current, additions))
			}
		}
	}

	return result
}
