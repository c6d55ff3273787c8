package sitter_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/sitter"
)

type textEdit struct {
	start, oldEnd uint32
	insert        string
}

func (e textEdit) apply(old []byte) ([]byte, sitter.InputEdit) {
	newEnd := e.start + uint32(len(e.insert))
	ie := sitter.InputEdit{StartByte: e.start, OldEndByte: e.oldEnd, NewEndByte: newEnd}
	text := ie.Apply(old, []byte(e.insert))
	return text, sitter.EditFromText(old, text, e.start, e.oldEnd, newEnd)
}

// TestIncrementalMatchesFullParse checks that re-parsing an edited tree
// gives the same tree as parsing the new text from scratch.
func TestIncrementalMatchesFullParse(t *testing.T) {
	lang := compiled(t, assignGrammar)
	tests := []struct {
		name string
		text string
		edit textEdit
	}{
		{"insert digit", "x = 1;\ny = 2;\n", textEdit{4, 4, "9"}},
		{"replace identifier", "x = a + b;\n", textEdit{4, 5, "foo"}},
		{"delete statement", "x = 1;\ny = 2;\nz = 3;\n", textEdit{7, 14, ""}},
		{"open a block", "x = 1;\ny = 2;\n", textEdit{0, 0, "{ "}},
		{"close a block", "{ x = 1;\ny = 2;\n", textEdit{15, 15, "}"}},
		{"break syntax", "x = f(1, 2);\n", textEdit{7, 8, ""}},
		{"repair syntax", "x = f(1 2);\n", textEdit{7, 7, ","}},
		{"keyword from identifier", "retur = 1;\n", textEdit{5, 5, "n x;\ny"}},
		{"comment out", "x = 1;\ny = 2;\n", textEdit{7, 7, "// "}},
		{"edit at end", "x = 1;", textEdit{6, 6, " y = 2;"}},
		{"empty to text", "", textEdit{0, 0, "x = 1;"}},
		{"text to empty", "x = 1;", textEdit{0, 6, ""}},
		{"multibyte", "x = \"é\";\ny = 2;\n", textEdit{5, 7, "ü€"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sitter.NewParser(lang)
			old := []byte(tt.text)
			oldTree := p.Parse(old)
			text, edit := tt.edit.apply(old)

			incremental := p.Reparse(oldTree, edit, text)
			full := sitter.NewParser(lang).Parse(text)
			if diff := cmp.Diff(dump(full.RootNode()), dump(incremental.RootNode())); diff != "" {
				t.Errorf("incremental parse of %q differs (-full +incremental):\n%s", text, diff)
			}

			// The previous tree is untouched.
			again := sitter.NewParser(lang).Parse(old)
			assert.Equal(t, dump(again.RootNode()), dump(oldTree.RootNode()))
		})
	}
}

// TestEditSharesNodesBeforeTheEdit inserts one character at offset 5 and
// checks that nodes before it are shared by identity while nodes after it
// move by one byte.
func TestEditSharesNodesBeforeTheEdit(t *testing.T) {
	lang := compiled(t, listGrammar)
	p := sitter.NewParser(lang)
	old := []byte("1 2  34 56")
	oldTree := p.Parse(old)
	text, edit := textEdit{5, 5, " "}.apply(old)

	before := map[uint32]sitter.NodeID{}
	after := map[uint32]uint32{}
	for _, n := range oldTree.RootNode().NamedChildren() {
		if n.EndByte() < 5 {
			before[n.StartByte()] = n.ID()
		}
		if n.StartByte() >= 5 {
			after[n.StartByte()] = n.EndByte()
		}
	}
	require.Len(t, before, 2)
	require.Len(t, after, 2)

	check := func(name string, tree *sitter.Tree) {
		t.Helper()
		for _, n := range tree.RootNode().NamedChildren() {
			if id, ok := before[n.StartByte()]; ok {
				assert.Equal(t, id, n.ID(), "%s: node at %d is not shared", name, n.StartByte())
			}
			if n.StartByte() >= 6 {
				end, ok := after[n.StartByte()-1]
				if assert.True(t, ok, "%s: unexpected node at %d", name, n.StartByte()) {
					assert.Equal(t, end+1, n.EndByte(), "%s: node at %d not shifted", name, n.StartByte())
				}
			}
		}
	}

	edited := oldTree.Edit(edit)
	check("edited", edited)
	assert.True(t, edited.RootNode().HasChanges())

	reparsed := p.ParseIncremental(text, edited)
	check("reparsed", reparsed)
	assert.Equal(t, "(list (number) (number) (number) (number))", reparsed.RootNode().String())

	// The old tree still reports its original ranges.
	assert.Equal(t, uint32(5), oldTree.RootNode().NamedChild(2).StartByte())
}

func TestChangedRanges(t *testing.T) {
	lang := compiled(t, assignGrammar)
	p := sitter.NewParser(lang)
	old := []byte("x = 1;\ny = 2;\nz = 3;\n")
	oldTree := p.Parse(old)

	text, edit := textEdit{11, 12, "f(2)"}.apply(old)
	edited := oldTree.Edit(edit)
	newTree := p.ParseIncremental(text, edited)

	ranges := sitter.ChangedRanges(edited, newTree)
	require.NotEmpty(t, ranges)
	for _, r := range ranges {
		assert.LessOrEqual(t, r.StartByte, uint32(11), "range %+v starts after the edit", r)
		assert.GreaterOrEqual(t, r.EndByte, uint32(15), "range %+v ends before the edit", r)
		assert.LessOrEqual(t, r.EndByte, uint32(18), "range %+v reaches the next statement", r)
	}

	assert.Empty(t, sitter.ChangedRanges(oldTree, p.Parse(old)), "identical trees have no changes")
}

func TestReleaseIsIdempotent(t *testing.T) {
	lang := compiled(t, assignGrammar)
	p := sitter.NewParser(lang)
	tree := p.Parse([]byte("x = 1;"))
	next := p.Reparse(tree, sitter.EditFromText([]byte("x = 1;"), []byte("x = 12;"), 5, 5, 6), []byte("x = 12;"))
	tree.Release()
	tree.Release()
	assert.Equal(t, "(program (assignment name: (identifier) value: (number)))", next.RootNode().String())
	next.Release()
}
