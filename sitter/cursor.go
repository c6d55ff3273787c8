package sitter

import "iter"

// TreeCursor walks the visible nodes below a starting node.
type TreeCursor struct {
	start *Node
	node  *Node
	depth int
}

// NewTreeCursor returns a cursor positioned on n.
func NewTreeCursor(n *Node) *TreeCursor {
	return &TreeCursor{start: n, node: n}
}

// Reset repositions the cursor on n.
func (c *TreeCursor) Reset(n *Node) {
	c.start, c.node, c.depth = n, n, 0
}

// Node returns the node under the cursor.
func (c *TreeCursor) Node() *Node { return c.node }

// Depth returns how far the cursor is below its starting node.
func (c *TreeCursor) Depth() int { return c.depth }

// FieldName returns the field of the current node in its parent.
func (c *TreeCursor) FieldName() string {
	if c.depth == 0 {
		return ""
	}
	return c.node.FieldName()
}

// GotoFirstChild moves to the first child.
func (c *TreeCursor) GotoFirstChild() bool {
	child := c.node.Child(0)
	if child == nil {
		return false
	}
	c.node = child
	c.depth++
	return true
}

// GotoNextSibling moves to the next sibling.
func (c *TreeCursor) GotoNextSibling() bool {
	if c.depth == 0 {
		return false
	}
	next := c.node.NextSibling()
	if next == nil {
		return false
	}
	c.node = next
	return true
}

// GotoParent moves to the parent, never above the starting node.
func (c *TreeCursor) GotoParent() bool {
	if c.depth == 0 {
		return false
	}
	c.node = c.node.Parent()
	c.depth--
	return true
}

// GotoFirstChildForByte moves to the first child that ends after offset.
func (c *TreeCursor) GotoFirstChildForByte(offset uint32) bool {
	for _, child := range c.node.Children() {
		if child.EndByte() > offset {
			c.node = child
			c.depth++
			return true
		}
	}
	return false
}

// Descendants yields n and every visible node below it in pre-order.
func Descendants(n *Node) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if n == nil {
			return
		}
		c := NewTreeCursor(n)
		for {
			if !yield(c.Node()) {
				return
			}
			if c.GotoFirstChild() {
				continue
			}
			for !c.GotoNextSibling() {
				if !c.GotoParent() {
					return
				}
			}
		}
	}
}
