package sitter_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/sitter"
)

func mustQuery(t *testing.T, src string) *sitter.Query {
	t.Helper()
	q, err := sitter.NewQuery(src, compiled(t, assignGrammar))
	require.NoError(t, err)
	return q
}

func TestHighlightInnerCaptureWins(t *testing.T) {
	lang := compiled(t, assignGrammar)
	h, err := sitter.NewHighlighter(lang, `
(assignment name: (identifier) @variable)
(call) @call
(number) @number
(comment) @comment
`)
	require.NoError(t, err)

	got := h.Highlight([]byte("x = f(1); // c\n"))
	want := []sitter.HighlightRange{
		{StartByte: 0, EndByte: 1, Capture: "variable"},
		{StartByte: 4, EndByte: 6, Capture: "call"},
		{StartByte: 6, EndByte: 7, Capture: "number"},
		{StartByte: 7, EndByte: 8, Capture: "call"},
		{StartByte: 10, EndByte: 14, Capture: "comment"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("highlights (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].EndByte, got[i].StartByte, "ranges %d and %d overlap", i-1, i)
	}

	assert.Nil(t, h.Highlight(nil))
}

func TestHighlightIncremental(t *testing.T) {
	lang := compiled(t, assignGrammar)
	h, err := sitter.NewHighlighter(lang, "(identifier) @variable\n(number) @number")
	require.NoError(t, err)

	old := []byte("x = 1;\ny = 2;\n")
	_, tree := h.HighlightIncremental(old, nil)
	require.NotNil(t, tree)

	text, edit := textEdit{11, 12, "foo"}.apply(old)
	got, next := h.HighlightIncremental(text, tree.Edit(edit))
	assert.Equal(t, h.Highlight(text), got)
	assert.Equal(t, "foo", string(text[got[len(got)-1].StartByte:got[len(got)-1].EndByte]))
	assert.False(t, next.RootNode().HasError())
}

func TestFolds(t *testing.T) {
	src := []byte("x = 1;\n{\n  y = 2;\n  z = 3;\n}\n{ w = 4; }\n")
	tree := parse(t, compiled(t, assignGrammar), string(src))

	got := sitter.Folds(mustQuery(t, "(block) @fold"), tree, src)
	assert.Equal(t, []sitter.FoldRegion{{StartLine: 1, EndLine: 4, StartByte: 7, EndByte: 28}}, got)
}

func TestDetectFoldRegions(t *testing.T) {
	got := sitter.DetectFoldRegions("func() {\n  a\n  b\n}\nx {\n}\n")
	assert.Equal(t, []sitter.FoldRegion{{StartLine: 0, EndLine: 3}}, got)
}

func TestIndentLevel(t *testing.T) {
	src := []byte("{\n  x = 1;\n  {\n    y = 2;\n  }\n}\n")
	tree := parse(t, compiled(t, assignGrammar), string(src))
	q := mustQuery(t, "(block) @indent\n\"}\" @outdent")

	want := []int{0, 1, 1, 2, 1, 0, 0}
	for line, level := range want {
		assert.Equal(t, level, sitter.IndentLevel(q, tree, src, line), "line %d", line)
	}
	assert.Equal(t, 0, sitter.IndentLevel(q, tree, src, 40), "line past the end")
}

func TestIndentStyle(t *testing.T) {
	assert.Equal(t, "  ", sitter.DetectIndentStyle("a\n  b\n    c\n"))
	assert.Equal(t, "\t", sitter.DetectIndentStyle("a\n\tb\n"))
	assert.Equal(t, "\t", sitter.DetectIndentStyle("flat\n"))
	assert.Equal(t, "\t\t", sitter.Indentation("\t", 2))
	assert.Equal(t, "", sitter.Indentation("  ", -1))
}

func TestInjections(t *testing.T) {
	lang := compiled(t, assignGrammar)

	t.Run("property", func(t *testing.T) {
		src := []byte(`x = "s"; y = 1;`)
		tree := parse(t, lang, string(src))
		got := sitter.Injections(mustQuery(t, `((string) @injection.content (#set! injection.language "json"))`), tree, src)
		require.Len(t, got, 1)
		assert.Equal(t, "json", got[0].Language)
		assert.Equal(t, uint32(4), got[0].Range.StartByte)
		assert.Equal(t, uint32(7), got[0].Range.EndByte)
		assert.False(t, got[0].IncludeChildren)
	})

	t.Run("captured language", func(t *testing.T) {
		src := []byte(`x = sql("select 1");`)
		tree := parse(t, lang, string(src))
		q := mustQuery(t, `((call function: (identifier) @injection.language (string) @injection.content) (#set! injection.include-children))`)
		got := sitter.Injections(q, tree, src)
		require.Len(t, got, 1)
		assert.Equal(t, "sql", got[0].Language)
		assert.Equal(t, `"select 1"`, got[0].Node.Content())
		assert.True(t, got[0].IncludeChildren)
	})
}

func TestResolveLocals(t *testing.T) {
	src := []byte("x = 1;\n{ x = 2; y = x; }\nz = x;\nreturn y;\n")
	tree := parse(t, compiled(t, assignGrammar), string(src))
	q := mustQuery(t, `
(block) @local.scope
(assignment name: (identifier) @local.definition)
(identifier) @local.reference
`)

	type resolved struct {
		Ref int
		Def int
	}
	var got []resolved
	for _, r := range sitter.ResolveLocals(q, tree, src) {
		def := -1
		if r.Definition != nil {
			def = int(r.Definition.StartByte())
		}
		got = append(got, resolved{int(r.Reference.StartByte()), def})
	}
	// The x inside the block sees the block's own x; the x after the block
	// sees the top-level one; y is not visible outside the block.
	want := []resolved{{20, 9}, {29, 0}, {39, -1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolved references (-want +got):\n%s", diff)
	}
}

func TestParseQueryRole(t *testing.T) {
	r, ok := sitter.ParseQueryRole("indents")
	require.True(t, ok)
	assert.Equal(t, sitter.RoleIndents, r)
	assert.Equal(t, "indents.scm", r.FileName())
	_, ok = sitter.ParseQueryRole("textobjects")
	assert.False(t, ok)
}
