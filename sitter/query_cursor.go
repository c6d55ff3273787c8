package sitter

import (
	"iter"
	"strconv"
	"strings"
)

// maxMatchesPerRoot bounds the matches one pattern may produce at a single
// node; patterns like (x (_) @a (_) @b) are quadratic in the child count.
const maxMatchesPerRoot = 4096

// QueryCursor executes a query over a node lazily, yielding matches in
// pre-order of their root node and, at one node, in pattern order.
type QueryCursor struct {
	q      *Query
	root   *Node
	source []byte

	hasRange   bool
	start, end uint32

	stack   []*Node
	pending []QueryMatch
}

// Cursor returns a cursor over node and its descendants. Capture text is
// read from the tree's source unless SetSource overrides it.
func (q *Query) Cursor(node *Node) *QueryCursor {
	c := &QueryCursor{q: q, root: node}
	if node != nil {
		c.source = node.tree.source
		c.stack = []*Node{node}
	}
	return c
}

// SetSource sets the text used for predicates, needed for edited trees
// that carry no source.
func (c *QueryCursor) SetSource(source []byte) {
	if source != nil {
		c.source = source
	}
}

// SetByteRange restricts matches to roots intersecting [start, end).
func (c *QueryCursor) SetByteRange(start, end uint32) {
	c.hasRange, c.start, c.end = true, start, end
}

func (c *QueryCursor) intersects(n *Node) bool {
	if !c.hasRange {
		return true
	}
	s, e := n.StartByte(), n.EndByte()
	if s == e {
		return s >= c.start && s <= c.end
	}
	return s < c.end && e > c.start
}

// NextMatch returns the next match, or false when the cursor is exhausted.
func (c *QueryCursor) NextMatch() (QueryMatch, bool) {
	for len(c.pending) == 0 {
		if len(c.stack) == 0 {
			return QueryMatch{}, false
		}
		n := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		kids := n.Children()
		for i := len(kids) - 1; i >= 0; i-- {
			if c.intersects(kids[i]) {
				c.stack = append(c.stack, kids[i])
			}
		}
		if c.intersects(n) {
			c.pending = c.matchesAt(n)
		}
	}
	m := c.pending[0]
	c.pending = c.pending[1:]
	return m, true
}

// Matches yields the remaining matches.
func (c *QueryCursor) Matches() iter.Seq[QueryMatch] {
	return func(yield func(QueryMatch) bool) {
		for {
			m, ok := c.NextMatch()
			if !ok || !yield(m) {
				return
			}
		}
	}
}

// Captures yields every capture of the remaining matches, in match order.
func (c *QueryCursor) Captures() iter.Seq2[QueryMatch, QueryCapture] {
	return func(yield func(QueryMatch, QueryCapture) bool) {
		for m := range c.Matches() {
			for _, capture := range m.Captures {
				if !yield(m, capture) {
					return
				}
			}
		}
	}
}

func (c *QueryCursor) matchesAt(n *Node) []QueryMatch {
	var out []QueryMatch
	for _, pi := range c.q.rootPatternCandidates(n.Symbol()) {
		pat := c.q.patterns[pi]
		m := &matcher{}
		seen := make(map[string]bool)
		count := 0
		emit := func(bs []binding) bool {
			m.reached++
			caps := make([]QueryCapture, len(bs))
			for i, b := range bs {
				caps[i] = QueryCapture{Name: c.q.captures[b.capture], Index: b.capture, Node: b.node}
			}
			if !c.q.satisfied(pi, caps, c.source) {
				return true
			}
			key := bindingKey(bs)
			if seen[key] {
				return true
			}
			seen[key] = true
			out = append(out, QueryMatch{PatternIndex: pi, Captures: caps})
			count++
			return count < maxMatchesPerRoot
		}
		if pat.root.kind == patGroup {
			m.siblings(pat.root, n, emit)
		} else {
			m.node(pat.root, n, nil, emit)
		}
	}
	return out
}

type binding struct {
	capture int
	node    *Node
}

func bindingKey(bs []binding) string {
	var b strings.Builder
	for _, x := range bs {
		b.WriteString(strconv.Itoa(x.capture))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(x.node.pos.Bytes), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(x.node.sub.symbol), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(x.node.sub.total().Bytes), 10))
		b.WriteByte(';')
	}
	return b.String()
}

// matcher enumerates structural matches by backtracking. Continuations
// return false to stop the enumeration.
type matcher struct {
	reached int // structural matches completed so far
}

type seqCont func(next int, caps []binding) bool

func withCaptures(caps []binding, ids []int, n *Node) []binding {
	if len(ids) == 0 {
		return caps
	}
	out := make([]binding, len(caps), len(caps)+len(ids))
	copy(out, caps)
	for _, id := range ids {
		out = append(out, binding{capture: id, node: n})
	}
	return out
}

// head reports whether n itself satisfies pn, ignoring children.
func (m *matcher) head(pn *patternNode, n *Node) bool {
	switch pn.kind {
	case patNode:
		return containsSymbol(pn.symbols, n.Symbol())
	case patWildcardNamed:
		return n.IsNamed()
	case patWildcard:
		return true
	case patString:
		return !n.IsNamed() && containsSymbol(pn.symbols, n.Symbol())
	case patError:
		return n.IsError()
	case patMissing:
		return n.IsMissing() && (len(pn.symbols) == 0 || containsSymbol(pn.symbols, n.Symbol()))
	}
	return false
}

// node enumerates matches of pn rooted at n.
func (m *matcher) node(pn *patternNode, n *Node, caps []binding, k func([]binding) bool) bool {
	if pn.kind == patAlternation {
		caps = withCaptures(caps, pn.captures, n)
		for _, alt := range pn.alts {
			if !m.node(alt, n, caps, k) {
				return false
			}
		}
		return true
	}
	if pn.kind == patGroup || !m.head(pn, n) {
		return true
	}
	for _, f := range pn.negated {
		if len(n.childrenByField(f, true)) > 0 {
			return true
		}
	}
	caps = withCaptures(caps, pn.captures, n)
	if len(pn.children) == 0 {
		return k(caps)
	}
	return m.seq(pn.children, 0, n.Children(), 0, caps, pn.anchorEnd, func(_ int, c []binding) bool {
		return k(c)
	})
}

// siblings matches a top-level group whose first element is n and whose
// other elements are n's following siblings.
func (m *matcher) siblings(pn *patternNode, n *Node, k func([]binding) bool) bool {
	kids := []*Node{n}
	idx := 0
	if p := n.Parent(); p != nil {
		kids = p.Children()
		for i, kid := range kids {
			if kid.Same(n) {
				idx = i
				break
			}
		}
	}
	first := *pn.children[0]
	first.exact = true
	pats := append([]*patternNode{&first}, pn.children[1:]...)
	return m.seq(pats, 0, kids[idx:], 0, nil, false, func(_ int, c []binding) bool {
		return k(c)
	})
}

// seq enumerates matches of pats[pi:] against kids[ki:].
func (m *matcher) seq(pats []*patternNode, pi int, kids []*Node, ki int, caps []binding, anchorEnd bool, k seqCont) bool {
	if pi == len(pats) {
		if anchorEnd {
			for _, kid := range kids[ki:] {
				if kid.IsNamed() && !kid.IsExtra() {
					return true
				}
			}
		}
		return k(ki, caps)
	}
	p := pats[pi]
	rest := func(next int, c []binding) bool {
		return m.seq(pats, pi+1, kids, next, c, anchorEnd, k)
	}
	if p.quant == quantOne {
		return m.one(p, kids, ki, p.anchored, caps, rest)
	}
	return m.repeat(p, kids, ki, caps, rest)
}

// one enumerates single occurrences of p starting at or after kids[ki].
// An anchored occurrence may only skip anonymous nodes.
func (m *matcher) one(p *patternNode, kids []*Node, ki int, anchored bool, caps []binding, k seqCont) bool {
	if p.kind == patGroup {
		return m.seq(p.children, 0, kids, ki, caps, p.anchorEnd, k)
	}
	for j := ki; j < len(kids); j++ {
		if j > ki && (p.exact || anchored && kids[j-1].IsNamed()) {
			break
		}
		kid := kids[j]
		if p.field != 0 && !kidHasField(kid, p.field) {
			continue
		}
		next := j + 1
		if !m.node(p, kid, caps, func(c []binding) bool { return k(next, c) }) {
			return false
		}
	}
	return true
}

func kidHasField(n *Node, id FieldID) bool {
	for _, f := range n.FieldIDs() {
		if f == id {
			return true
		}
	}
	return false
}

type occurrence struct {
	next int
	caps []binding
}

// repeat matches a quantified pattern greedily: it collects the longest
// run of occurrences and backs off only when the rest of the sequence
// fails to match.
func (m *matcher) repeat(p *patternNode, kids []*Node, ki int, caps []binding, k seqCont) bool {
	limit := len(kids) + 1
	if p.quant == quantZeroOrOne {
		limit = 1
	}
	var run []occurrence
	pos, cur := ki, caps
	for len(run) < limit && pos <= len(kids) {
		found := false
		m.one(p, kids, pos, p.anchored && len(run) == 0, cur, func(next int, c []binding) bool {
			run = append(run, occurrence{next: next, caps: c})
			found = true
			return false
		})
		if !found || run[len(run)-1].next == pos {
			break
		}
		pos, cur = run[len(run)-1].next, run[len(run)-1].caps
	}
	least := 0
	if p.quant == quantOneOrMore {
		least = 1
	}
	for n := len(run); n >= least; n-- {
		next, c := ki, caps
		if n > 0 {
			next, c = run[n-1].next, run[n-1].caps
		}
		before := m.reached
		if !k(next, c) {
			return false
		}
		if m.reached > before {
			return true
		}
	}
	return true
}
