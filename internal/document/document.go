// Package document keeps an editable text buffer in sync with its syntax
// tree. Every edit re-parses incrementally from the previous tree.
package document

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/btree"

	"github.com/odvcencio/arbor/sitter"
)

// ErrRange is returned for edits outside the document.
var ErrRange = errors.New("edit out of range")

// Change reports the result of one edit.
type Change struct {
	Version int
	Edit    sitter.InputEdit
	// Changed lists the ranges of the new tree whose structure differs from
	// the previous tree.
	Changed []sitter.Range
}

// Document is a source buffer with its current syntax tree. It is safe for
// concurrent use; edits are applied one at a time.
type Document struct {
	mu      sync.Mutex
	parser  *sitter.Parser
	source  []byte
	tree    *sitter.Tree
	version int

	// lines maps the byte offset where each line starts to its row.
	lines      btree.Map[uint32, uint32]
	lineStarts []uint32
}

// New parses source and returns a document holding it.
func New(lang *sitter.Language, source []byte, opts ...sitter.ParserOption) *Document {
	d := &Document{parser: sitter.NewParser(lang, opts...)}
	d.source = append([]byte(nil), source...)
	d.tree = d.parser.Parse(d.source)
	d.indexLines()
	return d
}

func (d *Document) indexLines() {
	d.lines = btree.Map[uint32, uint32]{}
	d.lineStarts = d.lineStarts[:0]
	d.lineStarts = append(d.lineStarts, 0)
	for i, b := range d.source {
		if b == '\n' {
			d.lineStarts = append(d.lineStarts, uint32(i+1))
		}
	}
	for row, off := range d.lineStarts {
		d.lines.Set(off, uint32(row))
	}
}

// Edit replaces the bytes in [start, oldEnd) with text and re-parses.
func (d *Document) Edit(start, oldEnd uint32, text []byte) (Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if start > oldEnd || int(oldEnd) > len(d.source) {
		return Change{}, fmt.Errorf("replace [%d,%d) in %d bytes: %w", start, oldEnd, len(d.source), ErrRange)
	}

	newEnd := start + uint32(len(text))
	edit := sitter.InputEdit{StartByte: start, OldEndByte: oldEnd, NewEndByte: newEnd}
	next := edit.Apply(d.source, text)
	edit = sitter.EditFromText(d.source, next, start, oldEnd, newEnd)

	edited := d.tree.Edit(edit)
	tree := d.parser.ParseIncremental(next, edited)
	changed := sitter.ChangedRanges(edited, tree)
	edited.Release()
	d.tree.Release()

	d.tree = tree
	d.source = next
	d.version++
	d.indexLines()
	return Change{Version: d.version, Edit: edit, Changed: changed}, nil
}

// Replace swaps in entirely new text and parses it from scratch.
func (d *Document) Replace(source []byte) Change {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.source
	d.source = append([]byte(nil), source...)
	d.tree.Release()
	d.tree = d.parser.Parse(d.source)
	d.version++
	d.indexLines()
	edit := sitter.EditFromText(old, d.source, 0, uint32(len(old)), uint32(len(d.source)))
	return Change{Version: d.version, Edit: edit, Changed: []sitter.Range{d.tree.RootNode().Range()}}
}

// Snapshot returns the current source, tree and version. The tree stays
// valid until the next edit; callers must not release it.
func (d *Document) Snapshot() ([]byte, *sitter.Tree, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source, d.tree, d.version
}

// Source returns the current text.
func (d *Document) Source() []byte {
	src, _, _ := d.Snapshot()
	return src
}

// Tree returns the current syntax tree.
func (d *Document) Tree() *sitter.Tree {
	_, tree, _ := d.Snapshot()
	return tree
}

// LineCount returns the number of lines, counting a final empty line after
// a trailing newline.
func (d *Document) LineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lineStarts)
}

// Point converts a byte offset to a row and byte column.
func (d *Document) Point(offset uint32) sitter.Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(offset) > len(d.source) {
		offset = uint32(len(d.source))
	}
	var p sitter.Point
	d.lines.Descend(offset, func(start, row uint32) bool {
		p = sitter.Point{Row: row, Column: offset - start}
		return false
	})
	return p
}

// Offset converts a row and byte column to a byte offset. Columns past the
// end of the line clamp to the line end.
func (d *Document) Offset(p sitter.Point) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(p.Row) >= len(d.lineStarts) {
		return 0, false
	}
	start := d.lineStarts[p.Row]
	end := uint32(len(d.source))
	if int(p.Row)+1 < len(d.lineStarts) {
		end = d.lineStarts[p.Row+1] - 1
	}
	return min(start+p.Column, end), true
}

// Close releases the current tree.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tree.Release()
}
