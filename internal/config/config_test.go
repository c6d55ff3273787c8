package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/grammars"
	"github.com/odvcencio/arbor/internal/artifactcache"
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

const miniConfig = `
cache: cache/artifacts.db
jobs: 3
languages:
  - name: mini
    grammar: grammars/mini.json
    extensions: [.mini]
    files: ["**/numbers/*.txt"]
    queries:
      highlights: queries/highlights.scm
`

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

func TestLoadResolvesPaths(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		FileName:                 miniConfig,
		"grammars/mini.json":     miniGrammar,
		"queries/highlights.scm": "(item) @number",
	})
	c, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)

	assert.Equal(t, 3, c.Jobs)
	assert.Equal(t, filepath.Join(dir, "cache", "artifacts.db"), c.Cache)
	require.Len(t, c.Languages, 1)
	assert.Equal(t, filepath.Join(dir, "grammars", "mini.json"), c.GrammarPath(c.Languages[0]))

	queries, err := c.ReadQueries(c.Languages[0])
	require.NoError(t, err)
	assert.Equal(t, map[sitter.QueryRole]string{sitter.RoleHighlights: "(item) @number"}, queries)
}

func TestFindWalksUp(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		FileName:       "languages: []\n",
		"a/b/c/x.mini": "1",
	})
	path, err := Find(filepath.Join(dir, "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	_, err = Find(t.TempDir())
	if err != nil {
		assert.True(t, errors.Is(err, ErrNotFound))
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := map[string]string{
		"missing name":    "languages:\n  - grammar: g.json\n",
		"missing grammar": "languages:\n  - name: x\n",
		"duplicate":       "languages:\n  - {name: x, grammar: g}\n  - {name: x, grammar: g}\n",
		"bad role":        "languages:\n  - name: x\n    grammar: g\n    queries: {textobjects: q.scm}\n",
		"bad pattern":     "languages:\n  - name: x\n    grammar: g\n    files: [\"[\"]\n",
		"not yaml":        "languages: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{FileName: content})
			_, err := Load(filepath.Join(dir, FileName))
			assert.Error(t, err)
		})
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Positive(t, c.Jobs)
	assert.Empty(t, c.Languages)
}

func TestRegisterLanguages(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		FileName:                 miniConfig,
		"grammars/mini.json":     miniGrammar,
		"queries/highlights.scm": "(item) @number",
	})
	c, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Dir(c.Cache), 0o755))
	cache, err := artifactcache.Open(c.Cache)
	require.NoError(t, err)
	defer cache.Close()
	require.NoError(t, c.Register(cache))

	for _, name := range []string{"x.mini", "data/numbers/a.txt"} {
		entry := grammars.DetectLanguage(name)
		require.NotNil(t, entry, name)
		assert.Equal(t, "mini", entry.Name)
	}
	assert.Nil(t, grammars.DetectLanguage("data/a.txt"))

	entry := grammars.Lookup("mini")
	lang, err := entry.Language()
	require.NoError(t, err)
	again, err := entry.Language()
	require.NoError(t, err)
	assert.Same(t, lang, again)
	assert.Equal(t, "(list (item) (item))", sitter.NewParser(lang).Parse([]byte("1 2")).RootNode().String())

	keys, err := cache.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
