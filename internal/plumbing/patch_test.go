package plumbing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineOpAccessors(t *testing.T) {
	insert := Insert(4)
	line, isInsert := insert.NewLineno()
	assert.True(t, isInsert)
	assert.Equal(t, uint32(4), line)
	_, isDelete := insert.OldLineno()
	assert.False(t, isDelete)

	del := Delete(7)
	line, isDelete = del.OldLineno()
	assert.True(t, isDelete)
	assert.Equal(t, uint32(7), line)
	_, isInsert = del.NewLineno()
	assert.False(t, isInsert)
}

func TestPathLessDeletionsLast(t *testing.T) {
	assert.True(t, PathLess("a.txt", "b.txt"))
	assert.False(t, PathLess("b.txt", "a.txt"))
	assert.True(t, PathLess("z.txt", ""))
	assert.False(t, PathLess("", "a.txt"))
	assert.False(t, PathLess("", ""))
	assert.False(t, PathLess("a.txt", "a.txt"))
}

func TestSortFiles(t *testing.T) {
	patch := TreePatch{Files: []FilePatch{
		{OldPath: "b.txt", NewPath: ""},
		{OldPath: "c.txt", NewPath: "c.txt"},
		{OldPath: "", NewPath: "a.txt"},
	}}
	patch.SortFiles()
	assert.Equal(t, "a.txt", patch.Files[0].NewPath)
	assert.Equal(t, "c.txt", patch.Files[1].NewPath)
	assert.Equal(t, "", patch.Files[2].NewPath)
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 1, countLines("one\n"))
	assert.Equal(t, 1, countLines("no newline"))
	assert.Equal(t, 3, countLines("a\nb\nc\n"))
	assert.Equal(t, 3, countLines("a\nb\nc"))
}

func TestDiffLineOpsCreation(t *testing.T) {
	ops := diffLineOps("", "a\nb\nc\n")
	assert.Len(t, ops, 3)
	for i, op := range ops {
		line, isInsert := op.NewLineno()
		assert.True(t, isInsert)
		assert.Equal(t, uint32(i), line)
	}
}

func TestDiffLineOpsDeletion(t *testing.T) {
	ops := diffLineOps("a\nb\n", "")
	assert.Len(t, ops, 2)
	for i, op := range ops {
		line, isDelete := op.OldLineno()
		assert.True(t, isDelete)
		assert.Equal(t, uint32(i), line)
	}
}

func TestDiffLineOpsInsertInTheMiddle(t *testing.T) {
	ops := diffLineOps("aaa\nbbb\nccc\n", "aaa\nxxx\nbbb\nccc\n")
	assert.Len(t, ops, 1)
	line, isInsert := ops[0].NewLineno()
	assert.True(t, isInsert)
	assert.Equal(t, uint32(1), line)
}

func TestDiffLineOpsReplaceLine(t *testing.T) {
	ops := diffLineOps("aaa\nbbb\nccc\n", "aaa\nyyy\nccc\n")
	assert.Len(t, ops, 2)
	oldLine, isDelete := ops[0].OldLineno()
	assert.True(t, isDelete)
	assert.Equal(t, uint32(1), oldLine)
	newLine, isInsert := ops[1].NewLineno()
	assert.True(t, isInsert)
	assert.Equal(t, uint32(1), newLine)
}

func TestDiffLineOpsIdenticalContent(t *testing.T) {
	assert.Empty(t, diffLineOps("same\n", "same\n"))
}
