package sitter

// Error costs. A version's cost is the sum of the costs of its
// recoveries; versions far costlier than the best one are dropped.
const (
	errorCostPerRecovery    = 500
	errorCostPerSkippedTree = 100
	errorCostPerMissingTree = 110
	errorCostPerSkippedChar = 1

	maxMissingRun = 16
	maxStall      = 32
)

// recover handles a token that has no action in v's state. Every
// applicable strategy becomes a version of its own and competes with the
// others:
//
//   - skip the token into an ERROR node,
//   - insert a MISSING token after which the lookahead is valid,
//   - pop stack entries into an ERROR node back to a state that accepts
//     the lookahead.
//
// At the end of input, closing the version into an ERROR root is always a
// candidate, so recovery cannot fail.
//
// Once a reused subtree is on the stack, recovery is abandoned and the
// parse restarts without subtree reuse.
func (p *Parser) recover(v *glrStack, tok *Token) {
	if p.reusedSubtree {
		p.restart = true
		return
	}
	eof := tok.Symbol == SymbolEnd ||
		(tok.StartByte == tok.EndByte && int(tok.EndByte) >= len(p.source))
	var candidates []*glrStack

	if v.stall < maxStall {
		candidates = append(candidates, p.missingCandidates(v, tok, false)...)
		if c := p.popCandidate(v, tok); c != nil {
			candidates = append(candidates, c)
		}
	}
	if eof {
		if len(candidates) == 0 && v.missingRun < maxMissingRun && v.stall < maxStall {
			candidates = append(candidates, p.missingCandidates(v, tok, true)...)
		}
		c := v.clone()
		cost, bytes := stackCost(c)
		c.errorCost += errorCostPerRecovery + cost
		c.errorBytes += bytes
		p.finishWithError(c, tok)
		candidates = append(candidates, c)
	} else {
		candidates = append(candidates, p.skipCandidate(v, tok))
	}

	if p.logger.AllowLevel(debugLevel) {
		p.logger.Debugf("recovering at byte %d in state %d on %q: %d candidates",
			tok.StartByte, v.top().state, p.language.SymbolName(tok.Symbol), len(candidates))
	}

	*v = *candidates[0]
	for _, c := range candidates[1:] {
		p.versions = append(p.versions, c)
	}
}

// stackCost is the cost, and the bytes covered, of wrapping everything on
// the stack in an ERROR.
func stackCost(v *glrStack) (cost, bytes uint32) {
	for _, e := range v.entries[1:] {
		if !e.node.extra {
			cost += errorCostPerSkippedTree
		}
		cost += e.node.size.Bytes * errorCostPerSkippedChar
		bytes += e.node.size.Bytes
	}
	return cost, bytes
}

// skipCandidate wraps the lookahead token in an ERROR node, merging it
// with an ERROR node created by the previous skip.
func (p *Parser) skipCandidate(v *glrStack, tok *Token) *glrStack {
	lang := p.language
	c := v.clone()
	t := *tok
	if t.EndByte == t.StartByte {
		p.lexer.reset(t.start(), c.ext)
		et := p.lexer.errorToken(t.paddingStart(), t.Mode)
		et.PaddingStartByte, et.PaddingStartPoint = t.PaddingStartByte, t.PaddingStartPoint
		t = et
	}
	sym := t.Symbol
	if t.Keyword != 0 {
		sym = t.Keyword
	}
	extOut := c.ext
	if t.External {
		extOut = t.State
	}
	leaf := newLeaf(p.arena, lang, leafParams{
		symbol:    sym,
		padding:   t.padding(),
		size:      t.size(),
		lookahead: t.Lookahead,
		state:     c.top().state,
		lexMode:   t.Mode,
		extIn:     c.ext,
		extOut:    extOut,
	})
	leaf.trailingMode = c.lexMode(lang)
	leaf.fragile = true
	if sym == SymbolError {
		// the enclosing ERROR node stands for the unlexable text
		leaf.visible = false
		leaf.named = false
	}

	children := []*subtree{leaf}
	top := c.top()
	if len(c.entries) > 1 && top.node.isError() && top.node.extra && !top.node.terminal {
		children = append(append([]*subtree(nil), top.node.children...), leaf)
		c.entries = c.entries[:len(c.entries)-1]
	} else {
		c.errorCost += errorCostPerRecovery
	}
	errNode := p.errorNode(children)
	c.push(c.top().state, errNode)
	c.pos = t.end()
	c.ext = extOut
	c.errorCost += errorCostPerSkippedTree + t.size().Bytes*errorCostPerSkippedChar
	c.errorBytes += t.size().Bytes
	c.recovering = true
	c.stall = 0
	return c
}

func (p *Parser) errorNode(children []*subtree) *subtree {
	n := p.builder.build(SymbolError, children, 0, 0, true)
	n.extra = true
	n.hasError = true
	n.fragile = true
	return n
}

// missingCandidates inserts a zero-width MISSING token for every terminal
// the state can shift, possibly after reductions. Unless relaxed, only
// insertions after which tok is valid are kept.
func (p *Parser) missingCandidates(v *glrStack, tok *Token, relaxed bool) []*glrStack {
	lang := p.language
	var out []*glrStack
	for t := Symbol(1); uint32(t) < lang.TokenCount; t++ {
		if t == tok.Symbol {
			continue
		}
		if lang.lookup(v.top().state, t) == nil {
			continue
		}
		c := v.clone()
		if !p.insertMissing(c, t) {
			continue
		}
		if !relaxed && !p.validAfter(c, tok) {
			continue
		}
		c.errorCost += errorCostPerRecovery + errorCostPerMissingTree
		c.missingRun++
		c.stall++
		c.recovering = true
		out = append(out, c)
	}
	return out
}

// insertMissing performs the reductions a zero-width t triggers and
// pushes a MISSING leaf for it.
func (p *Parser) insertMissing(c *glrStack, t Symbol) bool {
	lang := p.language
	for guard := 0; guard < maxReductionsPerStep; guard++ {
		e := lang.lookup(c.top().state, t)
		if e == nil || len(e.Actions) == 0 {
			return false
		}
		a := e.Actions[0]
		switch {
		case a.Type == ParseActionReduce:
			p.reduce(c, a, 0)
		case a.Type == ParseActionShift && !a.Extra:
			leaf := newLeaf(p.arena, lang, leafParams{
				symbol:  t,
				state:   c.top().state,
				lexMode: c.lexMode(lang),
				extIn:   c.ext,
				extOut:  c.ext,
				missing: true,
			})
			leaf.trailingMode = lang.lexMode(a.State)
			leaf.fragile = true
			c.push(a.State, leaf)
			c.hasSticky = false
			return true
		default:
			return false
		}
	}
	return false
}

// validAfter reports whether tok can be shifted or accepted from v,
// simulating the reductions it triggers on the state stack alone.
func (p *Parser) validAfter(v *glrStack, tok *Token) bool {
	states := make([]StateID, 0, len(v.entries))
	for i, e := range v.entries {
		if i == 0 || !e.node.extra {
			states = append(states, e.state)
		}
	}
	return p.validFromStates(states, tok)
}

func (p *Parser) validFromStates(states []StateID, tok *Token) bool {
	lang := p.language
	for guard := 0; guard < maxReductionsPerStep; guard++ {
		_, e := p.actionsFor(states[len(states)-1], tok)
		if e == nil || len(e.Actions) == 0 {
			return false
		}
		a := e.Actions[0]
		if a.Type != ParseActionReduce {
			return a.Type == ParseActionShift || a.Type == ParseActionAccept
		}
		n := int(a.ChildCount)
		if n >= len(states) {
			n = len(states) - 1
		}
		states = states[:len(states)-n]
		next, ok := lang.NextState(states[len(states)-1], a.Symbol)
		if !ok {
			return false
		}
		states = append(states, next)
	}
	return false
}

// popCandidate pops the fewest stack entries needed for tok to become
// valid and wraps them in an ERROR node.
func (p *Parser) popCandidate(v *glrStack, tok *Token) *glrStack {
	states := make([]StateID, 0, len(v.entries))
	index := make([]int, 0, len(v.entries))
	for i, e := range v.entries {
		if i == 0 || !e.node.extra {
			states = append(states, e.state)
			index = append(index, i)
		}
	}
	for depth := 1; depth < len(states); depth++ {
		trial := append([]StateID(nil), states[:len(states)-depth]...)
		if !p.validFromStates(trial, tok) {
			continue
		}
		c := v.clone()
		cut := index[len(index)-depth]
		var bytes uint32
		nodes := make([]*subtree, 0, len(c.entries)-cut)
		for _, e := range c.entries[cut:] {
			bytes += e.node.size.Bytes
			nodes = append(nodes, e.node)
		}
		c.entries = c.entries[:cut]
		errNode := p.errorNode(nodes)
		c.push(c.top().state, errNode)
		c.hasSticky = false
		c.errorCost += errorCostPerRecovery + uint32(depth)*errorCostPerSkippedTree + bytes*errorCostPerSkippedChar
		c.errorBytes += bytes
		c.recovering = true
		c.stall++
		return c
	}
	return nil
}
