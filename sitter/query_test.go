package sitter_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/sitter"
)

const querySource = "x = a + 1;\nfoo = bar(x, 2);\n{ y = \"s\"; return y; }\n"

type capture struct {
	Pattern int
	Name    string
	Text    string
}

func runQuery(t *testing.T, query, src string) []capture {
	t.Helper()
	lang := compiled(t, assignGrammar)
	q, err := sitter.NewQuery(query, lang)
	require.NoError(t, err)
	tree := parse(t, lang, src)
	var out []capture
	for _, m := range q.Execute(tree) {
		for _, c := range m.Captures {
			out = append(out, capture{m.PatternIndex, c.Name, c.Node.Content()})
		}
	}
	return out
}

func TestQueryMatches(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []capture
	}{
		{
			name:  "field",
			query: `(assignment name: (identifier) @name)`,
			want:  []capture{{0, "name", "x"}, {0, "name", "foo"}, {0, "name", "y"}},
		},
		{
			name:  "nested with wildcard",
			query: `(binary left: (_) @left right: (_) @right)`,
			want:  []capture{{0, "left", "a"}, {0, "right", "1"}},
		},
		{
			name:  "anonymous node",
			query: `"return" @keyword`,
			want:  []capture{{0, "keyword", "return"}},
		},
		{
			name:  "alternation",
			query: `[(number) (string)] @literal`,
			want:  []capture{{0, "literal", "1"}, {0, "literal", "2"}, {0, "literal", `"s"`}},
		},
		{
			name:  "eq predicate",
			query: `((identifier) @id (#eq? @id "x"))`,
			want:  []capture{{0, "id", "x"}, {0, "id", "x"}},
		},
		{
			name:  "not-eq between captures",
			query: `(assignment name: (identifier) @a value: (identifier) @b (#not-eq? @a @b))`,
			want:  nil,
		},
		{
			name:  "match predicate",
			query: `((identifier) @id (#match? @id "^(?!x$)[a-z]$"))`,
			want:  []capture{{0, "id", "a"}, {0, "id", "y"}, {0, "id", "y"}},
		},
		{
			name:  "any-of predicate",
			query: `((identifier) @id (#any-of? @id "foo" "bar"))`,
			want:  []capture{{0, "id", "foo"}, {0, "id", "bar"}},
		},
		{
			name:  "quantified arguments",
			query: `(call function: (identifier) @fn (_)* @arg)`,
			want:  []capture{{0, "fn", "bar"}, {0, "arg", "x"}, {0, "arg", "2"}},
		},
		{
			name:  "anchored first child",
			query: `(block . (_) @first)`,
			want:  []capture{{0, "first", `y = "s";`}},
		},
		{
			name:  "two patterns",
			query: "(return_statement) @ret\n(block) @block",
			want: []capture{
				{1, "block", "{ y = \"s\"; return y; }"},
				{0, "ret", "return y;"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runQuery(t, tt.query, querySource)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("captures (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryIsDeterministic(t *testing.T) {
	query := `
(assignment name: (identifier) @name value: (_) @value)
(call function: (identifier) @fn)
((identifier) @id (#match? @id "^[a-z]+$"))
`
	first := runQuery(t, query, querySource)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, runQuery(t, query, querySource)); diff != "" {
			t.Fatalf("run %d differs (-first +run):\n%s", i, diff)
		}
	}
}

func TestQueryCursorByteRange(t *testing.T) {
	lang := compiled(t, assignGrammar)
	q, err := sitter.NewQuery(`(identifier) @id`, lang)
	require.NoError(t, err)
	tree := parse(t, lang, querySource)

	c := q.Cursor(tree.RootNode())
	c.SetSource(tree.Source())
	c.SetByteRange(11, 27)
	var got []string
	for m := range c.Matches() {
		got = append(got, m.Captures[0].Node.Content())
	}
	assert.Equal(t, []string{"foo", "bar", "x"}, got)
}

func TestQuerySetProperty(t *testing.T) {
	lang := compiled(t, assignGrammar)
	q, err := sitter.NewQuery(`((string) @s (#set! kind "text"))`, lang)
	require.NoError(t, err)
	v, ok := q.Property(0, "kind")
	assert.True(t, ok)
	assert.Equal(t, "text", v)
	assert.Equal(t, []string{"s"}, q.CaptureNames())
}

func TestQueryErrors(t *testing.T) {
	lang := compiled(t, assignGrammar)
	tests := []struct {
		query  string
		kind   sitter.QueryErrorKind
		offset int
	}{
		{`(assignment`, sitter.QueryErrorSyntax, 11},
		{`(nonexistent) @x`, sitter.QueryErrorNodeType, 1},
		{`(assignment bogus: (identifier))`, sitter.QueryErrorField, 12},
		{`((identifier) @id (#eq? @other "x"))`, sitter.QueryErrorCapture, 24},
		{`((identifier) @id (#frobnicate? @id))`, sitter.QueryErrorPredicate, 20},
		{"(assignment)\n  (nope)", sitter.QueryErrorNodeType, 16},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := sitter.NewQuery(tt.query, lang)
			require.Error(t, err)
			var qe *sitter.QueryError
			require.True(t, errors.As(err, &qe), "error %v is not a *QueryError", err)
			assert.Equal(t, tt.kind, qe.Kind, qe.Message)
			assert.Equal(t, tt.offset, qe.Offset)
		})
	}

	_, err := sitter.NewQuery("(assignment)\n  (nope)", lang)
	var qe *sitter.QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, 1, qe.Row)
	assert.Equal(t, 3, qe.Column)
}
