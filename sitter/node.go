package sitter

import "strings"

// Node is a handle onto a subtree at a concrete position in a Tree. Nodes
// are cheap to create; two handles refer to the same node when Same
// reports true. Hidden tokens are not exposed as children.
type Node struct {
	sub    *subtree
	tree   *Tree
	pos    Length // absolute start, including padding
	parent *Node
	index  int // index among the parent's raw children
}

// NodeID identifies the shared subtree behind a node. Nodes of two trees
// that share structure have equal IDs.
type NodeID struct{ p *subtree }

// ID returns the identity of the subtree behind n.
func (n *Node) ID() NodeID { return NodeID{n.sub} }

// Same reports whether n and o are the same node instance at the same
// position.
func (n *Node) Same(o *Node) bool {
	return n != nil && o != nil && n.sub == o.sub && n.pos == o.pos
}

// Symbol returns the node's symbol, with aliases applied.
func (n *Node) Symbol() Symbol { return n.sub.symbol }

// GrammarSymbol returns the symbol the parse table produced, ignoring
// aliases.
func (n *Node) GrammarSymbol() Symbol { return n.sub.grammarSymbol }

// Type returns the node's kind name.
func (n *Node) Type() string { return n.tree.language.SymbolName(n.sub.symbol) }

// Tree returns the tree n belongs to.
func (n *Node) Tree() *Tree { return n.tree }

// IsNamed reports whether this is a named node (as opposed to anonymous syntax like punctuation).
func (n *Node) IsNamed() bool { return n.sub.named }

// IsMissing reports whether this node was inserted by error recovery.
func (n *Node) IsMissing() bool { return n.sub.missing }

// IsError reports whether this is an ERROR node.
func (n *Node) IsError() bool { return n.sub.isError() }

// IsExtra reports whether the node is an extra such as a comment.
func (n *Node) IsExtra() bool { return n.sub.extra }

// HasError reports whether this node or any descendant contains a parse error.
func (n *Node) HasError() bool { return n.sub.hasError }

// HasChanges reports whether the node was touched by an edit.
func (n *Node) HasChanges() bool { return n.sub.changed }

// ParseState returns the parser state the node was built from.
func (n *Node) ParseState() StateID { return n.sub.parseState }

func (n *Node) start() Length { return n.pos.add(n.sub.padding) }

func (n *Node) end() Length { return n.pos.add(n.sub.total()) }

// StartByte returns the byte offset where this node begins.
func (n *Node) StartByte() uint32 { return n.start().Bytes }

// EndByte returns the byte offset where this node ends (exclusive).
func (n *Node) EndByte() uint32 { return n.end().Bytes }

// PaddedStartByte returns the offset where the node's leading padding
// begins.
func (n *Node) PaddedStartByte() uint32 { return n.pos.Bytes }

// StartPoint returns the row/column position where this node begins.
func (n *Node) StartPoint() Point { return n.start().Extent }

// EndPoint returns the row/column position where this node ends.
func (n *Node) EndPoint() Point { return n.end().Extent }

// Range returns the full span of this node as a Range.
func (n *Node) Range() Range {
	s, e := n.start(), n.end()
	return Range{StartByte: s.Bytes, EndByte: e.Bytes, StartPoint: s.Extent, EndPoint: e.Extent}
}

// Parent returns this node's parent, or nil if it is the root.
func (n *Node) Parent() *Node { return n.parent }

func (n *Node) rawChild(i int, pos Length) *Node {
	return &Node{sub: n.sub.children[i], tree: n.tree, pos: pos, parent: n, index: i}
}

// nth returns the i-th child accepted by keep.
func (n *Node) nth(i int, keep func(*subtree) bool) *Node {
	if i < 0 {
		return nil
	}
	pos := n.pos
	for ri, c := range n.sub.children {
		if keep(c) {
			if i == 0 {
				return n.rawChild(ri, pos)
			}
			i--
		}
		pos = pos.add(c.total())
	}
	return nil
}

func isVisible(s *subtree) bool { return s.visible }

func isVisibleNamed(s *subtree) bool { return s.visible && s.named }

// ChildCount returns the number of children (both named and anonymous).
func (n *Node) ChildCount() int { return int(n.sub.visibleCount) }

// Child returns the i-th child, or nil if i is out of range.
func (n *Node) Child(i int) *Node { return n.nth(i, isVisible) }

// NamedChildCount returns the number of named children.
func (n *Node) NamedChildCount() int { return int(n.sub.namedCount) }

// NamedChild returns the i-th named child (skipping anonymous children),
// or nil if i is out of range.
func (n *Node) NamedChild(i int) *Node { return n.nth(i, isVisibleNamed) }

// Children returns all children.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, n.sub.visibleCount)
	pos := n.pos
	for i, c := range n.sub.children {
		if c.visible {
			out = append(out, n.rawChild(i, pos))
		}
		pos = pos.add(c.total())
	}
	return out
}

// NamedChildren returns the named children.
func (n *Node) NamedChildren() []*Node {
	out := make([]*Node, 0, n.sub.namedCount)
	pos := n.pos
	for i, c := range n.sub.children {
		if c.visible && c.named {
			out = append(out, n.rawChild(i, pos))
		}
		pos = pos.add(c.total())
	}
	return out
}

// ChildByFieldName returns the first child assigned to the given field
// name, or nil if no child has that field.
func (n *Node) ChildByFieldName(name string) *Node {
	fid, ok := n.tree.language.FieldByName(name)
	if !ok {
		return nil
	}
	return n.ChildByFieldID(fid)
}

// ChildByFieldID returns the first child assigned to field id.
func (n *Node) ChildByFieldID(id FieldID) *Node {
	all := n.childrenByField(id, true)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// ChildrenByFieldName returns every child assigned to the field.
func (n *Node) ChildrenByFieldName(name string) []*Node {
	fid, ok := n.tree.language.FieldByName(name)
	if !ok {
		return nil
	}
	return n.childrenByField(fid, false)
}

func (n *Node) childrenByField(id FieldID, first bool) []*Node {
	if id == 0 || len(n.sub.fields) == 0 {
		return nil
	}
	var out []*Node
	pos := n.pos
	for i, c := range n.sub.children {
		if c.visible && n.sub.hasField(i, id) {
			out = append(out, n.rawChild(i, pos))
			if first {
				break
			}
		}
		pos = pos.add(c.total())
	}
	return out
}

func (s *subtree) hasField(child int, id FieldID) bool {
	for _, f := range s.fields {
		if int(f.child) == child && f.id == id {
			return true
		}
	}
	return false
}

// FieldNameForChild returns the field name of the i-th child, or "".
func (n *Node) FieldNameForChild(i int) string {
	c := n.Child(i)
	if c == nil {
		return ""
	}
	return c.FieldName()
}

// FieldName returns the name of the field the node is assigned to in its
// parent, or "".
func (n *Node) FieldName() string {
	if n.parent == nil {
		return ""
	}
	for _, f := range n.parent.sub.fields {
		if int(f.child) == n.index {
			return n.tree.language.FieldName(f.id)
		}
	}
	return ""
}

// FieldIDs returns every field the node is assigned to in its parent.
func (n *Node) FieldIDs() []FieldID {
	if n.parent == nil {
		return nil
	}
	return n.parent.sub.fieldsOf(n.index)
}

// NextSibling returns the next visible sibling.
func (n *Node) NextSibling() *Node { return n.sibling(isVisible) }

// NextNamedSibling returns the next named sibling.
func (n *Node) NextNamedSibling() *Node { return n.sibling(isVisibleNamed) }

func (n *Node) sibling(keep func(*subtree) bool) *Node {
	p := n.parent
	if p == nil {
		return nil
	}
	pos := n.end()
	for i := n.index + 1; i < len(p.sub.children); i++ {
		c := p.sub.children[i]
		if keep(c) {
			return p.rawChild(i, pos)
		}
		pos = pos.add(c.total())
	}
	return nil
}

// PrevSibling returns the previous visible sibling.
func (n *Node) PrevSibling() *Node {
	p := n.parent
	if p == nil {
		return nil
	}
	var prev *Node
	pos := p.pos
	for i := 0; i < n.index; i++ {
		c := p.sub.children[i]
		if c.visible {
			prev = p.rawChild(i, pos)
		}
		pos = pos.add(c.total())
	}
	return prev
}

// DescendantForByteRange returns the smallest node that spans
// [start, end).
func (n *Node) DescendantForByteRange(start, end uint32) *Node {
	return n.descendantFor(start, end, isVisible)
}

// NamedDescendantForByteRange is DescendantForByteRange restricted to
// named nodes.
func (n *Node) NamedDescendantForByteRange(start, end uint32) *Node {
	return n.descendantFor(start, end, isVisibleNamed)
}

func (n *Node) descendantFor(start, end uint32, keep func(*subtree) bool) *Node {
	best := n
	cur := n
descend:
	for {
		pos := cur.pos
		for i, c := range cur.sub.children {
			next := pos.add(c.total())
			cs := pos.Bytes + c.padding.Bytes
			if next.Bytes < end || cs > start {
				pos = next
				continue
			}
			if cs == next.Bytes && start != end {
				pos = next
				continue
			}
			child := cur.rawChild(i, pos)
			cur = child
			if keep(c) {
				best = child
			}
			continue descend
		}
		return best
	}
}

// Text returns the source text covered by this node.
func (n *Node) Text(source []byte) string {
	s, e := n.StartByte(), n.EndByte()
	if int(e) > len(source) || s > e {
		return ""
	}
	return string(source[s:e])
}

// Content returns the node's text from the tree's own source.
func (n *Node) Content() string { return n.Text(n.tree.source) }

// String returns the node as an s-expression of its named descendants.
func (n *Node) String() string {
	var b strings.Builder
	n.writeSexp(&b, "", true)
	return b.String()
}

func (n *Node) writeSexp(b *strings.Builder, field string, top bool) {
	s := n.sub
	lang := n.tree.language
	printed := top || (s.visible && s.named) || s.missing
	if printed {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if field != "" {
			b.WriteString(field)
			b.WriteString(": ")
		}
		b.WriteByte('(')
		switch {
		case s.missing && s.named:
			b.WriteString("MISSING ")
			b.WriteString(lang.SymbolName(s.symbol))
		case s.missing:
			b.WriteString(`MISSING "`)
			b.WriteString(lang.SymbolName(s.symbol))
			b.WriteByte('"')
		default:
			b.WriteString(lang.SymbolName(s.symbol))
		}
	}
	pos := n.pos
	for i, c := range s.children {
		if c.visible {
			child := n.rawChild(i, pos)
			child.writeSexp(b, child.FieldName(), false)
		}
		pos = pos.add(c.total())
	}
	if printed {
		b.WriteByte(')')
	}
}
