package hare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/sitter"
)

const helloSource = `use fmt;

export fn main() void = {
	let x: int = 1 + 2 * 3;
	fmt::println("hello")!;
};
`

func mustLanguage(t *testing.T) *sitter.Language {
	t.Helper()
	lang, err := Language()
	require.NoError(t, err)
	require.NotNil(t, lang)
	return lang
}

func find(n *sitter.Node, kind string) *sitter.Node {
	for d := range sitter.Descendants(n) {
		if d.Type() == kind {
			return d
		}
	}
	return nil
}

func TestGrammarShape(t *testing.T) {
	g := Grammar()
	assert.Equal(t, "module", g.StartRule())
	assert.Equal(t, "identifier", g.Word)
	assert.Equal(t, [][]string{{"builtin_type", "void"}}, g.Conflicts)
	assert.ElementsMatch(t, []string{"declaration", "expression", "literal", "statement", "type"}, g.Supertypes)
	for _, name := range []string{"function_declaration", "match_expression", "escape_sequence", "scoped_type_identifier"} {
		assert.NotNil(t, g.Rule(name), "rule %s", name)
	}
}

func TestLanguageIsShared(t *testing.T) {
	a := mustLanguage(t)
	b := mustLanguage(t)
	assert.Same(t, a, b)
	assert.Equal(t, "hare", a.Name)

	types, err := NodeTypes()
	require.NoError(t, err)
	assert.NotEmpty(t, types)
}

func TestParseFunction(t *testing.T) {
	lang := mustLanguage(t)
	tree := sitter.NewParser(lang).Parse([]byte(helloSource))
	root := tree.RootNode()
	require.Equal(t, "module", root.Type())
	require.False(t, root.HasError(), root.String())

	fn := find(root, "function_declaration")
	require.NotNil(t, fn)
	assert.Equal(t, "main", fn.ChildByFieldName("name").Content())
	assert.Equal(t, "void", fn.ChildByFieldName("returns").Content())
	assert.Equal(t, "block", fn.ChildByFieldName("body").Type())

	sum := find(root, "binary_expression")
	require.NotNil(t, sum)
	assert.Equal(t, "+", sum.ChildByFieldName("operator").Type())
	assert.Equal(t, "2 * 3", sum.ChildByFieldName("right").Content())

	call := find(root, "call_expression")
	require.NotNil(t, call)
	assert.Equal(t, "fmt::println", call.ChildByFieldName("callee").Content())
	assert.Equal(t, "error_assertion_expression", call.Parent().Type())
}

func TestParseDeclarations(t *testing.T) {
	lang := mustLanguage(t)
	tests := []struct {
		src  string
		kind string
	}{
		{"type point = struct { x: int, y: int };\n", "struct_type"},
		{"def LIMIT: size = 10;\n", "constant_declaration"},
		{"let counter: u64 = 0u64;\n", "integer_suffix"},
		{"type answer = (int | str | void);\n", "tagged_union_type"},
		{"fn f(x: *int) int = *x;\n", "pointer_type"},
		{"fn g() f64 = 1.5e3;\n", "float"},
		{"fn h() bool = true && !false;\n", "unary_expression"},
		{"fn r() rune = '\\n';\n", "escape_sequence"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			tree := sitter.NewParser(lang).Parse([]byte(tt.src))
			root := tree.RootNode()
			assert.False(t, root.HasError(), "%q: %s", tt.src, root.String())
			assert.NotNil(t, find(root, tt.kind), "%q has no %s: %s", tt.src, tt.kind, root.String())
		})
	}
}

func TestParseRecoversFromErrors(t *testing.T) {
	lang := mustLanguage(t)
	src := "fn main() void = {\n\tlet x = ;\n};\n"
	tree := sitter.NewParser(lang).Parse([]byte(src))
	root := tree.RootNode()
	assert.True(t, root.HasError())
	assert.Equal(t, uint32(len(src)), root.EndByte())
}

func TestBundledQueriesCompile(t *testing.T) {
	lang := mustLanguage(t)
	queries := Queries()
	for _, role := range sitter.QueryRoles {
		src, ok := queries[role]
		require.True(t, ok, "no %s query", role)
		_, err := sitter.NewQuery(src, lang)
		assert.NoError(t, err, "%s query", role)
	}
}

func TestCommentInjections(t *testing.T) {
	lang := mustLanguage(t)
	src := []byte("// TODO: split\nfn f() void = {\n\tlet x = 1; // trailing\n};\n")
	tree := sitter.NewParser(lang).Parse(src)
	q, err := sitter.NewQuery(Query(sitter.RoleInjections), lang)
	require.NoError(t, err)

	var got []string
	for _, inj := range sitter.Injections(q, tree, src) {
		assert.Equal(t, "comment", inj.Language)
		got = append(got, inj.Node.Content())
	}
	assert.Equal(t, []string{"// TODO: split", "// trailing"}, got)
}

func TestHighlightKeywords(t *testing.T) {
	h, err := sitter.NewHighlighter(mustLanguage(t), Query(sitter.RoleHighlights))
	require.NoError(t, err)

	src := []byte(helloSource)
	byText := make(map[string]string)
	for _, r := range h.Highlight(src) {
		byText[string(src[r.StartByte:r.EndByte])] = r.Capture
	}
	assert.Equal(t, "keyword", byText["fn"])
	assert.Equal(t, "keyword", byText["let"])
	assert.Equal(t, "function", byText["main"])
	assert.Equal(t, "type.builtin", byText["int"])
	assert.Equal(t, "function.call", byText["println"])
}

func TestFoldsAndIndents(t *testing.T) {
	lang := mustLanguage(t)
	src := []byte(helloSource)
	tree := sitter.NewParser(lang).Parse(src)

	folds, err := sitter.NewQuery(Query(sitter.RoleFolds), lang)
	require.NoError(t, err)
	regions := sitter.Folds(folds, tree, src)
	require.Len(t, regions, 1)
	assert.Equal(t, 2, regions[0].StartLine)
	assert.Equal(t, 5, regions[0].EndLine)

	indents, err := sitter.NewQuery(Query(sitter.RoleIndents), lang)
	require.NoError(t, err)
	assert.Equal(t, 0, sitter.IndentLevel(indents, tree, src, 2))
	assert.Equal(t, 1, sitter.IndentLevel(indents, tree, src, 3))
	assert.Equal(t, 0, sitter.IndentLevel(indents, tree, src, 5))
}

func TestResolveLocals(t *testing.T) {
	lang := mustLanguage(t)
	src := []byte("fn f(n: int) int = {\n\tlet m = n;\n\tyield m;\n};\n")
	tree := sitter.NewParser(lang).Parse(src)
	q, err := sitter.NewQuery(Query(sitter.RoleLocals), lang)
	require.NoError(t, err)

	resolved := make(map[string]string)
	for _, r := range sitter.ResolveLocals(q, tree, src) {
		if r.Definition != nil {
			resolved[r.Reference.Content()] = r.Definition.Parent().Type()
		}
	}
	assert.Equal(t, "parameter", resolved["n"])
	assert.Equal(t, "let_declaration", resolved["m"])
}
