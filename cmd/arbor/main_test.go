package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/sitter"
)

const miniGrammar = `{
  "name": "mini",
  "extras": [{"type": "PATTERN", "value": "\\s"}],
  "rules": {
    "list": {"type": "REPEAT", "content": {"type": "SYMBOL", "name": "item"}},
    "item": {"type": "PATTERN", "value": "[0-9]+"}
  }
}`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// run executes the command line in dir, which must hold an arbor.yaml.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--config", filepath.Join(dir, "arbor.yaml")}, args...)
	err := execute(args, &stdout, &stderr)
	return stdout.String(), err
}

func emptyProject(t *testing.T, files map[string]string) string {
	t.Helper()
	if files == nil {
		files = make(map[string]string)
	}
	files["arbor.yaml"] = "languages: []\n"
	return writeFiles(t, files)
}

func TestParseCommand(t *testing.T) {
	dir := emptyProject(t, map[string]string{
		"data/a.json":    "[1, 2]\n",
		"data/b.json":    `{"k": true}`,
		"data/bad.jsonc": "[1,,2]\n",
	})

	out, err := run(t, dir, "parse", filepath.Join(dir, "data", "*.json"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], filepath.Join(dir, "data", "a.json")+"\tjson\t"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "\tok"), lines[1])

	out, err = run(t, dir, "parse", "--jobs", "2", filepath.Join(dir, "data", "**", "*.json*"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 files have syntax errors")
	assert.Contains(t, out, "bad.jsonc\tjson\t")
	assert.Contains(t, out, "first at 1:")

	_, err = run(t, dir, "parse", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestParseSexpAndTree(t *testing.T) {
	dir := emptyProject(t, map[string]string{"a.json": "[1, \"two\"]"})
	path := filepath.Join(dir, "a.json")

	out, err := run(t, dir, "parse", "--sexp", path)
	require.NoError(t, err)
	assert.Equal(t, "(document (array (number) (string (string_content))))\n", out)

	out, err = run(t, dir, "parse", "--tree", path)
	require.NoError(t, err)
	assert.Contains(t, out, "\n    number [0:1 - 0:2] \"1\"\n")
	assert.Contains(t, out, "\n      string_content [0:5 - 0:8] \"two\"\n")

	_, err = run(t, dir, "parse", "--tree", "--sexp", path)
	assert.Error(t, err)
}

func TestParseWithLangFlag(t *testing.T) {
	dir := emptyProject(t, map[string]string{"notes.txt": "[]"})
	path := filepath.Join(dir, "notes.txt")

	_, err := run(t, dir, "parse", path)
	require.ErrorIs(t, err, errUnknownLanguage)

	out, err := run(t, dir, "parse", "--lang", "json", "--sexp", path)
	require.NoError(t, err)
	assert.Equal(t, "(document (array))\n", out)
}

func TestPreview(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"abc", 10, `"abc"`},
		{"a\n\tb", 10, `"a b"`},
		{"abcdefgh", 5, `"abcd…"`},
		{"日本語テキスト", 7, `"日本語…"`},
		{"ééé", 2, `"é…"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, preview(tt.text, tt.width), "%q", tt.text)
	}
}

func TestQueryCommand(t *testing.T) {
	dir := emptyProject(t, map[string]string{
		"a.json":     `{"a": 1, "b": [2, 3]}`,
		"nums.scm":   "(number) @num",
		"broken.scm": "(nonexistent) @x",
	})
	path := filepath.Join(dir, "a.json")

	out, err := run(t, dir, "query", filepath.Join(dir, "nums.scm"), path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "@num  number"))

	out, err = run(t, dir, "query", "--range", "10:", filepath.Join(dir, "nums.scm"), path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "@num"), out)
	assert.NotContains(t, out, `"1"`)

	out, err = run(t, dir, "query", "--role", "highlights", path)
	require.NoError(t, err)
	assert.Contains(t, out, "@property  string [0:1 - 0:4]")

	_, err = run(t, dir, "query", filepath.Join(dir, "broken.scm"), path)
	var qe *sitter.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, sitter.QueryErrorNodeType, qe.Kind)

	_, err = run(t, dir, "query", "--role", "highlights", filepath.Join(dir, "nums.scm"), path)
	assert.Error(t, err)
	_, err = run(t, dir, "query", "--role", "injections", path)
	assert.Error(t, err)
}

func TestParseByteRange(t *testing.T) {
	tests := []struct {
		in         string
		start, end uint32
		ok         bool
	}{
		{"3:9", 3, 9, true},
		{":9", 0, 9, true},
		{"3:", 3, ^uint32(0), true},
		{"9:3", 0, 0, false},
		{"3", 0, 0, false},
		{"a:b", 0, 0, false},
	}
	for _, tt := range tests {
		start, end, err := parseByteRange(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.start, start, tt.in)
		assert.Equal(t, tt.end, end, tt.in)
	}
}

func TestHighlightCommand(t *testing.T) {
	src := `{"k": "v", "n": 2}`
	dir := emptyProject(t, map[string]string{"a.json": src})
	path := filepath.Join(dir, "a.json")

	out, err := run(t, dir, "highlight", "--color", "never", path)
	require.NoError(t, err)
	assert.Equal(t, src, out)

	out, err = run(t, dir, "highlight", "--color", "always", path)
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[")
	assert.NotEqual(t, src, out)

	out, err = run(t, dir, "highlight", "--ranges", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1\t4\tproperty\t\"\\\"k\\\"\"\n")
	assert.Contains(t, out, "16\t17\tnumber\t\"2\"\n")

	_, err = run(t, dir, "highlight", "--color", "sometimes", path)
	assert.Error(t, err)
}

func TestColorFor(t *testing.T) {
	assert.Same(t, captureColors["function"], colorFor("function.call"))
	assert.Same(t, captureColors["type"], colorFor("type.builtin"))
	assert.Nil(t, colorFor("nothing.here"))
}

func TestDiffCommand(t *testing.T) {
	dir := emptyProject(t, map[string]string{"a.json": "[1]\n"})
	path := filepath.Join(dir, "a.json")

	out, err := run(t, dir, "diff", "--color", "never", "--at", "2", "--insert", ", {}", path)
	require.NoError(t, err)
	assert.Contains(t, out, "--- "+path+"\n")
	assert.Contains(t, out, "+    object [0:4 - 0:6] \"{}\"\n")
	assert.Contains(t, out, "changed [")

	out, err = run(t, dir, "diff", "--color", "never", "--at", "0", "--insert", " ", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "+    object")

	_, err = run(t, dir, "diff", "--at", "99", path)
	assert.Error(t, err)
	_, err = run(t, dir, "diff", "--at", "2", "--delete", "10", path)
	assert.Error(t, err)
}

func TestGenerateCommand(t *testing.T) {
	dir := emptyProject(t, map[string]string{"mini.json": miniGrammar})
	artifact := filepath.Join(dir, "out", "mini.arbor")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	nodeTypes := filepath.Join(dir, "node-types.json")
	normalized := filepath.Join(dir, "grammar.json")

	out, err := run(t, dir, "generate", "-o", artifact, "--node-types", nodeTypes, "--grammar-json", normalized, "--strict",
		filepath.Join(dir, "mini.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "mini: ")
	assert.Contains(t, out, "-> "+artifact)

	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	lang, err := sitter.LoadLanguage(data)
	require.NoError(t, err)
	assert.Equal(t, "mini", lang.Name)
	tree := sitter.NewParser(lang).Parse([]byte("1 2"))
	assert.Equal(t, "(list (item) (item))", tree.RootNode().String())

	types, err := os.ReadFile(nodeTypes)
	require.NoError(t, err)
	assert.Contains(t, string(types), `"type": "list"`)

	g, err := os.ReadFile(normalized)
	require.NoError(t, err)
	assert.Contains(t, string(g), `"name": "mini"`)

	_, err = run(t, dir, "generate", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestConfiguredLanguage(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"arbor.yaml": `
cache: cache/artifacts.db
languages:
  - name: mini
    grammar: mini.json
    extensions: [.mini]
    queries:
      highlights: highlights.scm
`,
		"mini.json":      miniGrammar,
		"highlights.scm": "(item) @number",
		"a.mini":         "1 22 333\n",
	})
	path := filepath.Join(dir, "a.mini")

	for range 2 {
		out, err := run(t, dir, "parse", "--sexp", path)
		require.NoError(t, err)
		assert.Equal(t, "(list (item) (item) (item))\n", out)
	}
	_, err := os.Stat(filepath.Join(dir, "cache", "artifacts.db"))
	require.NoError(t, err)

	out, err := run(t, dir, "highlight", "--ranges", path)
	require.NoError(t, err)
	assert.Equal(t, "0\t1\tnumber\t\"1\"\n2\t4\tnumber\t\"22\"\n5\t8\tnumber\t\"333\"\n", out)

	out, err = run(t, dir, "--no-cache", "languages")
	require.NoError(t, err)
	assert.Contains(t, out, "mini")
	assert.Contains(t, out, ".mini")
}

func TestLanguagesCommand(t *testing.T) {
	dir := emptyProject(t, nil)
	out, err := run(t, dir, "languages")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"), lines[0])
	assert.Regexp(t, `(?m)^hare\s+dfa\s+\d+\s+\d+\s+highlights,folds,indents,injections,locals\s+\.ha$`, out)
	assert.Regexp(t, `(?m)^json\s+dfa\s`, out)
}

func TestExpandGlobs(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a/x.ha":   "",
		"a/b/y.ha": "",
		"a/z.json": "",
	})
	got, err := expandGlobs([]string{
		filepath.Join(dir, "**", "*.ha"),
		filepath.Join(dir, "a", "x.ha"),
		"literal.ha",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a", "x.ha"),
		filepath.Join(dir, "a", "b", "y.ha"),
		"literal.ha",
	}, got)

	_, err = expandGlobs([]string{filepath.Join(dir, "[")})
	assert.Error(t, err)
}
