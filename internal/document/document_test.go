package document

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/grammars/json"
	"github.com/odvcencio/arbor/sitter"
)

func newDoc(t *testing.T, src string) *Document {
	t.Helper()
	lang, err := json.Language()
	require.NoError(t, err)
	d := New(lang, []byte(src))
	t.Cleanup(d.Close)
	return d
}

func TestEditReparses(t *testing.T) {
	d := newDoc(t, "[1, 2]\n")
	assert.Equal(t, "(document (array (number) (number)))", d.Tree().RootNode().String())

	change, err := d.Edit(5, 5, []byte(", {}"))
	require.NoError(t, err)
	assert.Equal(t, 1, change.Version)
	assert.Equal(t, "[1, 2, {}]\n", string(d.Source()))
	assert.Equal(t, "(document (array (number) (number) (object)))", d.Tree().RootNode().String())
	require.NotEmpty(t, change.Changed)
	for _, r := range change.Changed {
		assert.LessOrEqual(t, r.StartByte, uint32(9))
		assert.GreaterOrEqual(t, r.EndByte, uint32(5))
	}

	full := sitter.NewParser(d.Tree().Language()).Parse(d.Source())
	assert.Equal(t, full.RootNode().String(), d.Tree().RootNode().String())
}

func TestEditOutOfRange(t *testing.T) {
	d := newDoc(t, "[]")
	_, err := d.Edit(1, 9, nil)
	assert.True(t, errors.Is(err, ErrRange), "got %v", err)
	_, err = d.Edit(2, 1, nil)
	assert.ErrorIs(t, err, ErrRange)
	_, _, version := d.Snapshot()
	assert.Equal(t, 0, version)
}

func TestPointsAndOffsets(t *testing.T) {
	d := newDoc(t, "{\n  \"a\": 1\n}\n")
	assert.Equal(t, 4, d.LineCount())
	assert.Equal(t, sitter.Point{Row: 0, Column: 0}, d.Point(0))
	assert.Equal(t, sitter.Point{Row: 1, Column: 2}, d.Point(4))
	assert.Equal(t, sitter.Point{Row: 2, Column: 0}, d.Point(11))
	assert.Equal(t, sitter.Point{Row: 3, Column: 0}, d.Point(100))

	off, ok := d.Offset(sitter.Point{Row: 1, Column: 2})
	require.True(t, ok)
	assert.Equal(t, uint32(4), off)
	off, ok = d.Offset(sitter.Point{Row: 1, Column: 50})
	require.True(t, ok)
	assert.Equal(t, uint32(10), off, "column clamps to the line end")
	_, ok = d.Offset(sitter.Point{Row: 9})
	assert.False(t, ok)

	_, err := d.Edit(0, 0, []byte("\n\n"))
	require.NoError(t, err)
	assert.Equal(t, sitter.Point{Row: 3, Column: 2}, d.Point(6))
}

func TestReplace(t *testing.T) {
	d := newDoc(t, "[1]")
	change := d.Replace([]byte("null"))
	assert.Equal(t, 1, change.Version)
	assert.Equal(t, "(document (null))", d.Tree().RootNode().String())
	assert.Equal(t, uint32(3), change.Edit.OldEndByte)
	assert.Equal(t, uint32(4), change.Edit.NewEndByte)
}

func TestConcurrentEdits(t *testing.T) {
	d := newDoc(t, "[]")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Edit(1, 1, []byte("1,"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	src, tree, version := d.Snapshot()
	assert.Equal(t, 8, version)
	assert.Equal(t, "[1,1,1,1,1,1,1,1,]", string(src))
	assert.True(t, tree.RootNode().HasError(), "trailing comma is not JSON")
}
