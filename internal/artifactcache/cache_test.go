package artifactcache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/grammar"
	"github.com/odvcencio/arbor/sitter"
)

func listGrammar(item string) *grammar.Grammar {
	g := grammar.New("list")
	g.Define("list", grammar.Repeat(grammar.Sym("item")))
	g.Define("item", grammar.Pat(item))
	return g
}

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeyTracksGrammar(t *testing.T) {
	a, err := Key(listGrammar(`[0-9]+`))
	require.NoError(t, err)
	b, err := Key(listGrammar(`[0-9]+`))
	require.NoError(t, err)
	c, err := Key(listGrammar(`[a-z]+`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^list/[0-9a-f]{64}$`, a)
}

func TestLanguageCompilesOnceThenLoads(t *testing.T) {
	c := openCache(t)
	g := listGrammar(`[0-9]+`)

	first, err := c.Language(g)
	require.NoError(t, err)
	keys, err := c.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	second, err := c.Language(g)
	require.NoError(t, err)
	assert.NotSame(t, first, second, "second call loads the stored artifact")

	src := []byte("1 22 333")
	want := sitter.NewParser(first).Parse(src).RootNode().String()
	assert.Equal(t, want, sitter.NewParser(second).Parse(src).RootNode().String())
	assert.Equal(t, "(list (item) (item) (item))", want)
}

func TestLanguageReplacesBadArtifact(t *testing.T) {
	c := openCache(t)
	g := listGrammar(`[0-9]+`)
	key, err := Key(g)
	require.NoError(t, err)
	require.NoError(t, c.Put(key, []byte("garbage")))

	lang, err := c.Language(g)
	require.NoError(t, err)
	assert.Equal(t, "list", lang.Name)

	data, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = sitter.LoadLanguage(data)
	assert.NoError(t, err, "the bad artifact was overwritten")
}

func TestPruneKeepsCurrentArtifact(t *testing.T) {
	c := openCache(t)
	_, err := c.Language(listGrammar(`[0-9]+`))
	require.NoError(t, err)
	_, err = c.Language(listGrammar(`[a-z]+`))
	require.NoError(t, err)

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 1, "compiling a changed grammar prunes the old artifact")

	require.NoError(t, c.Put("other/abc", []byte("x")))
	n, err := c.Prune("list", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	keys, err = c.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"other/abc"}, keys)

	require.NoError(t, c.Delete("other/abc"))
	_, ok, err := c.Get("other/abc")
	require.NoError(t, err)
	assert.False(t, ok)
}
