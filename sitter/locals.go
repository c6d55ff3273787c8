package sitter

import (
	"sort"
	"strings"
)

// LocalReference pairs a @local.reference node with the definition it
// resolves to. Definition is nil for references with no visible
// definition.
type LocalReference struct {
	Reference  *Node
	Definition *Node
}

type localScope struct {
	node        *Node
	parent      *localScope
	definitions []*Node
}

func (s *localScope) contains(n *Node) bool {
	return s.node.StartByte() <= n.StartByte() && n.EndByte() <= s.node.EndByte()
}

// ResolveLocals resolves every @local.reference to the nearest preceding
// @local.definition with the same text, searching the innermost enclosing
// @local.scope first and then the scopes around it. Captures named
// local.definition.<kind> count as definitions.
func ResolveLocals(q *Query, tree *Tree, source []byte) []LocalReference {
	root := tree.RootNode()
	top := &localScope{node: root}
	var scopes []*localScope
	var defs, refs []*Node
	for _, m := range q.ExecuteNode(root, source) {
		for _, c := range m.Captures {
			switch {
			case c.Name == "local.scope":
				scopes = append(scopes, &localScope{node: c.Node})
			case c.Name == "local.definition" || strings.HasPrefix(c.Name, "local.definition."):
				defs = append(defs, c.Node)
			case c.Name == "local.reference":
				refs = append(refs, c.Node)
			}
		}
	}

	// Outer scopes first so every scope's parent is already placed.
	sort.SliceStable(scopes, func(i, j int) bool {
		a, b := scopes[i].node, scopes[j].node
		if a.StartByte() != b.StartByte() {
			return a.StartByte() < b.StartByte()
		}
		return a.EndByte() > b.EndByte()
	})
	placed := []*localScope{top}
	for _, s := range scopes {
		s.parent = innermostScope(placed, s.node)
		placed = append(placed, s)
	}

	isDef := make(map[NodeID]bool, len(defs))
	for _, d := range defs {
		isDef[d.ID()] = true
		s := innermostScope(placed, d)
		s.definitions = append(s.definitions, d)
	}

	out := make([]LocalReference, 0, len(refs))
	for _, r := range refs {
		if isDef[r.ID()] {
			continue
		}
		name := r.Text(source)
		ref := LocalReference{Reference: r}
		for s := innermostScope(placed, r); s != nil && ref.Definition == nil; s = s.parent {
			for _, d := range s.definitions {
				if d.StartByte() <= r.StartByte() && d.Text(source) == name {
					ref.Definition = d
				}
			}
		}
		out = append(out, ref)
	}
	return out
}

// innermostScope returns the last placed scope containing n, excluding a
// scope that is n itself.
func innermostScope(placed []*localScope, n *Node) *localScope {
	for i := len(placed) - 1; i > 0; i-- {
		s := placed[i]
		if s.node.Same(n) {
			continue
		}
		if s.contains(n) {
			return s
		}
	}
	return placed[0]
}
