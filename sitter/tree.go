package sitter

import "sync"

// Tree holds a complete syntax tree along with its source text and
// language. Trees are persistent: Edit returns a new tree and leaves the
// receiver usable.
type Tree struct {
	root     *subtree
	source   []byte
	language *Language
	arenas   arenaSet

	releaseOnce sync.Once
}

func newTree(root *subtree, source []byte, lang *Language, arenas arenaSet) *Tree {
	return &Tree{root: root, source: source, language: lang, arenas: arenas}
}

// RootNode returns the tree's root node.
func (t *Tree) RootNode() *Node {
	if t == nil || t.root == nil {
		return nil
	}
	return &Node{sub: t.root, tree: t}
}

// Source returns the source text the tree was parsed from. Trees returned
// by Edit have no source until they are re-parsed.
func (t *Tree) Source() []byte { return t.source }

// Language returns the language used to parse this tree.
func (t *Tree) Language() *Language { return t.language }

// Release drops the tree's references to its node arenas. Nodes of a
// released tree must not be used afterwards.
func (t *Tree) Release() {
	if t == nil {
		return
	}
	t.releaseOnce.Do(func() {
		t.arenas.releaseAll()
		t.arenas = nil
	})
}

// InputEdit describes a single edit to the source text. It tells the parser
// what byte range was replaced and what the new range looks like, so the
// incremental parser can skip unchanged subtrees.
type InputEdit struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// EditFromText builds an InputEdit for replacing old[start:oldEnd] with
// the bytes that occupy new[start:newEnd], computing points from the two
// texts.
func EditFromText(oldText, newText []byte, start, oldEnd, newEnd uint32) InputEdit {
	return InputEdit{
		StartByte:   start,
		OldEndByte:  oldEnd,
		NewEndByte:  newEnd,
		StartPoint:  PointAt(oldText, start),
		OldEndPoint: PointAt(oldText, oldEnd),
		NewEndPoint: PointAt(newText, newEnd),
	}
}

// Apply returns text with the edit applied, taking the inserted bytes from
// replacement.
func (e InputEdit) Apply(text, replacement []byte) []byte {
	out := make([]byte, 0, len(text)-int(e.OldEndByte-e.StartByte)+len(replacement))
	out = append(out, text[:e.StartByte]...)
	out = append(out, replacement...)
	return append(out, text[e.OldEndByte:]...)
}

type lengthEdit struct {
	start, oldEnd, newEnd Length
}

// Edit returns a new tree reflecting edit. Subtrees whose padded range or
// lookahead window touches the edit are copied and marked as changed;
// every other subtree is shared with the receiver. The receiver is not
// modified.
func (t *Tree) Edit(edit InputEdit) *Tree {
	e := lengthEdit{
		start:  Length{Bytes: edit.StartByte, Extent: edit.StartPoint},
		oldEnd: Length{Bytes: edit.OldEndByte, Extent: edit.OldEndPoint},
		newEnd: Length{Bytes: edit.NewEndByte, Extent: edit.NewEndPoint},
	}
	return &Tree{
		root:     editSubtree(t.root, e),
		language: t.language,
		arenas:   t.arenas.retainAll(),
	}
}

// editSubtree applies an edit expressed relative to s's padded start.
func editSubtree(s *subtree, e lengthEdit) *subtree {
	isNoop := e.oldEnd.Bytes == e.start.Bytes && e.newEnd.Bytes == e.start.Bytes
	isPureInsertion := e.oldEnd.Bytes == e.start.Bytes

	padding, size := s.padding, s.size
	total := s.total()
	reach := total.Bytes + s.lookahead
	if e.start.Bytes > reach || (isNoop && e.start.Bytes == reach) {
		return s
	}

	switch {
	case e.oldEnd.Bytes <= padding.Bytes:
		// Entirely within the padding: shift without resizing.
		padding = e.newEnd.add(padding.sub(e.oldEnd))
	case e.start.Bytes < padding.Bytes:
		// Starts in the padding and extends into the content.
		size = size.saturatingSub(e.oldEnd.sub(padding))
		padding = e.newEnd
	case e.start.Bytes < total.Bytes || (e.start.Bytes == total.Bytes && isPureInsertion):
		size = e.newEnd.sub(padding).add(total.saturatingSub(e.oldEnd))
	}

	out := s.clone(nil)
	out.padding = padding
	out.size = size
	out.changed = true
	if len(s.children) == 0 {
		return out
	}
	out.children = append([]*subtree(nil), s.children...)

	var left, right Length
	for i, c := range s.children {
		childTotal := c.total()
		left = right
		right = left.add(childTotal)

		if right.Bytes+c.lookahead < e.start.Bytes {
			continue
		}
		if left.Bytes > e.oldEnd.Bytes || (left.Bytes == e.oldEnd.Bytes && childTotal.Bytes > 0 && i > 0) {
			break
		}

		ce := lengthEdit{
			start:  e.start.saturatingSub(left),
			oldEnd: e.oldEnd.saturatingSub(left),
			newEnd: e.newEnd.saturatingSub(left),
		}
		// Inserted text belongs to the first child that touches the edit;
		// later children only shrink.
		if right.Bytes > e.start.Bytes || (right.Bytes == e.start.Bytes && isPureInsertion) {
			e.newEnd = e.start
		} else {
			ce.oldEnd = ce.start
			ce.newEnd = ce.start
		}
		out.children[i] = editSubtree(c, ce)
	}
	return out
}
