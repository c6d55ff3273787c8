package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/sitter"
)

func TestParseDocument(t *testing.T) {
	lang, err := Language()
	require.NoError(t, err)

	tests := []struct {
		src  string
		want string
	}{
		{`{"a": 1}`, "(document (object (pair key: (string (string_content)) value: (number))))"},
		{`[true, false, null]`, "(document (array (true) (false) (null)))"},
		{`""`, "(document (string))"},
		{`"x\n\u0041"`, "(document (string (string_content) (escape_sequence) (escape_sequence)))"},
		{"// c\n[-1.5e3]", "(document (comment) (array (number)))"},
		{`{"a": [1, {}]}`, "(document (object (pair key: (string (string_content)) value: (array (number) (object)))))"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tree := sitter.NewParser(lang).Parse([]byte(tt.src))
			assert.Equal(t, tt.want, tree.RootNode().String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	lang, err := Language()
	require.NoError(t, err)
	for _, src := range []string{`{"a" 1}`, `[1,,2]`, `{"a": }`, `[`} {
		tree := sitter.NewParser(lang).Parse([]byte(src))
		root := tree.RootNode()
		assert.True(t, root.HasError(), "%q: %s", src, root.String())
		assert.Equal(t, uint32(len(src)), root.EndByte())
	}
}

func TestHighlightKeysAndValues(t *testing.T) {
	lang, err := Language()
	require.NoError(t, err)
	h, err := sitter.NewHighlighter(lang, Query(sitter.RoleHighlights))
	require.NoError(t, err)

	src := []byte(`{"k": "v", "n": 2}`)
	got := h.Highlight(src)
	want := []sitter.HighlightRange{
		{StartByte: 0, EndByte: 1, Capture: "punctuation.bracket"},
		{StartByte: 1, EndByte: 4, Capture: "property"},
		{StartByte: 4, EndByte: 5, Capture: "punctuation.delimiter"},
		{StartByte: 6, EndByte: 9, Capture: "string"},
		{StartByte: 9, EndByte: 10, Capture: "punctuation.delimiter"},
		{StartByte: 11, EndByte: 14, Capture: "property"},
		{StartByte: 14, EndByte: 15, Capture: "punctuation.delimiter"},
		{StartByte: 16, EndByte: 17, Capture: "number"},
		{StartByte: 17, EndByte: 18, Capture: "punctuation.bracket"},
	}
	assert.Equal(t, want, got)
}

func TestIndents(t *testing.T) {
	lang, err := Language()
	require.NoError(t, err)
	src := []byte("{\n  \"a\": [\n    1\n  ]\n}\n")
	tree := sitter.NewParser(lang).Parse(src)
	q, err := sitter.NewQuery(Query(sitter.RoleIndents), lang)
	require.NoError(t, err)

	for line, want := range []int{0, 1, 2, 1, 0} {
		assert.Equal(t, want, sitter.IndentLevel(q, tree, src, line), "line %d", line)
	}
}
