package sitter

// reuseCursor walks an edited tree in document order, offering the
// subtree that starts exactly at the parser's position. It only moves
// forward.
type reuseCursor struct {
	stack []reuseFrame
}

type reuseFrame struct {
	node  *subtree
	pos   Length // padded start
	index int
}

// newReuseCursor positions the cursor on the root's first child; the root
// itself is never reused because it absorbs the trailing padding.
func newReuseCursor(root *subtree) *reuseCursor {
	c := &reuseCursor{stack: []reuseFrame{{node: root}}}
	c.descend()
	return c
}

func (c *reuseCursor) done() bool { return len(c.stack) <= 1 }

// advance moves to the next subtree that is not a descendant of the
// current one.
func (c *reuseCursor) advance() {
	for len(c.stack) > 1 {
		f := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		parent := c.stack[len(c.stack)-1].node
		if next := f.index + 1; next < len(parent.children) {
			c.stack = append(c.stack, reuseFrame{
				node:  parent.children[next],
				pos:   f.pos.add(f.node.total()),
				index: next,
			})
			return
		}
	}
}

// descend moves to the current subtree's first child, or past a leaf.
func (c *reuseCursor) descend() {
	top := c.stack[len(c.stack)-1]
	if len(top.node.children) == 0 {
		c.advance()
		return
	}
	c.stack = append(c.stack, reuseFrame{node: top.node.children[0], pos: top.pos})
}

// at returns the subtree whose padded start is pos, skipping subtrees that
// end at or before pos and descending into ones that straddle it.
func (c *reuseCursor) at(pos uint32) *subtree {
	for !c.done() {
		f := c.stack[len(c.stack)-1]
		start := f.pos.Bytes
		total := f.node.total().Bytes
		switch {
		case total == 0:
			c.advance()
		case start+total <= pos:
			c.advance()
		case start < pos:
			c.descend()
		case start == pos:
			return f.node
		default:
			return nil
		}
	}
	return nil
}

func (c *reuseCursor) leafAt(pos uint32) *subtree {
	for {
		n := c.at(pos)
		if n == nil || len(n.children) == 0 {
			return n
		}
		c.descend()
	}
}

// reuseEnabled reports whether subtrees may be reused for v: only a single
// version outside of error recovery reuses.
func (p *Parser) reuseEnabled(v *glrStack) bool {
	return p.reuse != nil && len(p.versions) == 1 && !v.recovering
}

// tryReuse pushes an unchanged subtree of the edited tree that starts at
// v's position, when the parser would have built exactly that subtree.
func (p *Parser) tryReuse(v *glrStack) bool {
	if !p.reuseSubtrees || !p.reuseEnabled(v) {
		return false
	}
	for {
		n := p.reuse.at(v.pos.Bytes)
		if n == nil || len(n.children) == 0 {
			return false
		}
		if n.reusable() && n.symbol == n.grammarSymbol && p.reuseNode(v, n) {
			if p.logger.AllowLevel(debugLevel) {
				p.logger.Debugf("reused %s at byte %d (%d bytes)",
					p.language.SymbolName(n.symbol), v.pos.Bytes-n.total().Bytes, n.total().Bytes)
			}
			p.reuse.advance()
			p.reusedSubtree = true
			return true
		}
		p.reuse.descend()
	}
}

// reuseNode checks that n would be rebuilt identically from v's state and
// pushes it. The first leaf of n must have been lexed in the mode and
// external state v would use; the reductions its symbol triggers must
// lead to the state n was built from.
func (p *Parser) reuseNode(v *glrStack, n *subtree) bool {
	lang := p.language
	leaf := n.firstLeaf()
	if leaf.extra || leaf.lexMode != v.lexMode(lang) || !leaf.extIn.Equal(v.ext) {
		return false
	}
	sym := leaf.grammarSymbol
	if sym == lang.KeywordCaptureToken && len(lang.KeywordLexStates) > 0 {
		start := v.pos.add(leaf.padding)
		if kw := p.lexer.keyword(start, start.add(leaf.size)); kw != 0 && lang.lookup(v.top().state, kw) != nil {
			return false
		}
	}
	reach := v.pos.Bytes + leaf.total().Bytes + leaf.lookahead

	c := v
	for guard := 0; ; guard++ {
		if guard > maxReductionsPerStep {
			return false
		}
		e := lang.lookup(c.top().state, sym)
		if e == nil || len(e.Actions) != 1 {
			return false
		}
		a := e.Actions[0]
		if a.Type != ParseActionReduce {
			break
		}
		if c == v {
			c = v.clone()
		}
		r := reach
		if e.Reusable {
			r = 0
		}
		p.reduce(c, a, r)
	}
	if c.top().state != n.parseState {
		return false
	}
	next, ok := lang.NextState(n.parseState, n.grammarSymbol)
	if !ok {
		return false
	}
	c.push(next, n)
	c.pos = c.pos.add(n.total())
	c.ext = n.extOut
	c.sticky = n.trailingMode
	c.hasSticky = true
	if c != v {
		*v = *c
	}
	return true
}

// reusedLeaf returns the edited tree's leaf at v's position when it is
// identical to the leaf the parser is about to create.
func (p *Parser) reusedLeaf(v *glrStack, tok *Token, sym Symbol, extra bool, trailing LexMode, extOut ExternalState) *subtree {
	if !p.reuseEnabled(v) {
		return nil
	}
	n := p.reuse.leafAt(v.pos.Bytes)
	if n == nil {
		return nil
	}
	ok := !n.changed && !n.missing && !n.hasError && !n.fragile &&
		n.grammarSymbol == sym && n.symbol == sym &&
		n.extra == extra &&
		n.padding == tok.padding() && n.size == tok.size() &&
		n.lookahead == tok.Lookahead &&
		n.parseState == v.top().state &&
		n.lexMode == tok.Mode && n.trailingMode == trailing &&
		n.extIn.Equal(v.ext) && n.extOut.Equal(extOut)
	if !ok {
		return nil
	}
	p.reuse.advance()
	return n
}
