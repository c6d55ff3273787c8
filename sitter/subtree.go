package sitter

import "bytes"

// subtree is the immutable, position-independent representation of a
// syntax node. A subtree stores its padding (the whitespace and skipped
// extras before it) and its size as relative lengths, so an unchanged
// subtree can be shared between the trees produced before and after an
// edit. Subtrees are never mutated once they are reachable from a Tree.
type subtree struct {
	symbol        Symbol // symbol shown in the tree (aliases applied)
	grammarSymbol Symbol // symbol the parse table knows
	padding       Length
	size          Length
	// lookahead is the number of bytes past the end of the subtree that
	// were examined while producing it.
	lookahead uint32

	children []*subtree
	fields   []fieldEntry

	parseState   StateID
	lexMode      LexMode
	trailingMode LexMode
	extIn        ExternalState
	extOut       ExternalState

	productionID      uint16
	dynamicPrecedence int32
	visibleCount      uint32
	namedCount        uint32

	visible  bool
	named    bool
	extra    bool
	missing  bool
	hasError bool
	fragile  bool
	changed  bool
	terminal bool
}

type fieldEntry struct {
	child     uint32
	id        FieldID
	inherited bool
}

func (s *subtree) total() Length { return s.padding.add(s.size) }

func (s *subtree) isError() bool { return s.symbol == SymbolError }

// isHiddenNonterminal reports whether s is spliced into its parent.
func (s *subtree) isHiddenNonterminal() bool {
	return !s.visible && !s.terminal && s.symbol != SymbolError
}

// reusable reports whether s may be pushed as-is by an incremental parse.
func (s *subtree) reusable() bool {
	return !s.changed && !s.hasError && !s.fragile && !s.missing &&
		s.total().Bytes > 0
}

func (s *subtree) firstLeaf() *subtree {
	for len(s.children) > 0 {
		s = s.children[0]
	}
	return s
}

func (s *subtree) fieldsOf(child int) []FieldID {
	var out []FieldID
	for _, f := range s.fields {
		if int(f.child) == child {
			out = append(out, f.id)
		}
	}
	return out
}

func (s *subtree) clone(a *nodeArena) *subtree {
	n := a.alloc()
	*n = *s
	return n
}

// ExternalState is the serialized state of an external scanner. Values
// are immutable: scanners return a new slice instead of modifying the
// one they were given.
type ExternalState []byte

// Equal reports whether two states are identical.
func (s ExternalState) Equal(o ExternalState) bool { return bytes.Equal(s, o) }

// leafParams carries everything needed to build a leaf subtree.
type leafParams struct {
	symbol    Symbol
	padding   Length
	size      Length
	lookahead uint32
	state     StateID
	lexMode   LexMode
	extIn     ExternalState
	extOut    ExternalState
	extra     bool
	missing   bool
}

func newLeaf(a *nodeArena, lang *Language, p leafParams) *subtree {
	s := a.alloc()
	s.symbol = p.symbol
	s.grammarSymbol = p.symbol
	s.padding = p.padding
	s.size = p.size
	s.lookahead = p.lookahead
	s.parseState = p.state
	s.lexMode = p.lexMode
	s.trailingMode = p.lexMode
	s.extIn = p.extIn
	s.extOut = p.extOut
	s.extra = p.extra
	s.missing = p.missing
	s.terminal = true
	s.visible = lang.IsVisible(p.symbol)
	s.named = lang.IsNamed(p.symbol)
	s.hasError = p.missing || p.symbol == SymbolError
	return s
}

// nodeBuilder assembles parent subtrees. Hidden children of a visible
// parent are spliced in place, carrying their field assignments along.
type nodeBuilder struct {
	lang  *Language
	arena *nodeArena
	stack []spliceFrame
}

type spliceFrame struct {
	node      *subtree
	next      int
	inherited []FieldID
}

// build creates a node for sym from raw stack children. fieldMap entries
// and aliases are indexed by non-extra child position.
func (b *nodeBuilder) build(sym Symbol, raw []*subtree, productionID uint16, dynPrec int16, forceVisible bool) *subtree {
	lang := b.lang
	s := b.arena.alloc()
	s.symbol = sym
	s.grammarSymbol = sym
	s.productionID = productionID
	s.visible = forceVisible || lang.IsVisible(sym)
	s.named = lang.IsNamed(sym)
	s.dynamicPrecedence = int32(dynPrec)

	fieldMap := lang.fieldMapFor(productionID)
	children := make([]*subtree, 0, len(raw))
	var fields []fieldEntry
	structural := 0
	for _, c := range raw {
		var ids []FieldID
		inheritedIDs := false
		if !c.extra {
			if alias := lang.aliasFor(productionID, structural); alias != 0 && alias != c.symbol {
				c = b.aliased(c, alias)
			}
			for _, e := range fieldMap {
				if int(e.ChildIndex) == structural {
					ids = append(ids, e.FieldID)
					inheritedIDs = inheritedIDs || e.Inherited
				}
			}
			structural++
		}
		if s.visible && c.isHiddenNonterminal() {
			children, fields = b.splice(children, fields, c, ids)
			continue
		}
		idx := uint32(len(children))
		children = append(children, c)
		for _, id := range ids {
			fields = append(fields, fieldEntry{child: idx, id: id, inherited: inheritedIDs})
		}
	}
	b.finish(s, children, fields)
	return s
}

// splice appends the flattened children of a hidden node.
func (b *nodeBuilder) splice(children []*subtree, fields []fieldEntry, hidden *subtree, ids []FieldID) ([]*subtree, []fieldEntry) {
	b.stack = append(b.stack[:0], spliceFrame{node: hidden, inherited: ids})
	for len(b.stack) > 0 {
		top := &b.stack[len(b.stack)-1]
		if top.next >= len(top.node.children) {
			b.stack = b.stack[:len(b.stack)-1]
			continue
		}
		i := top.next
		top.next++
		c := top.node.children[i]
		own := top.node.fieldsOf(i)
		var inherited []FieldID
		if !c.extra {
			inherited = top.inherited
		}
		if c.isHiddenNonterminal() {
			merged := make([]FieldID, 0, len(own)+len(inherited))
			merged = append(merged, own...)
			merged = append(merged, inherited...)
			b.stack = append(b.stack, spliceFrame{node: c, inherited: merged})
			continue
		}
		idx := uint32(len(children))
		children = append(children, c)
		for _, id := range own {
			fields = appendField(fields, fieldEntry{child: idx, id: id})
		}
		for _, id := range inherited {
			fields = appendField(fields, fieldEntry{child: idx, id: id, inherited: true})
		}
	}
	return children, fields
}

func appendField(fields []fieldEntry, e fieldEntry) []fieldEntry {
	for _, f := range fields {
		if f.child == e.child && f.id == e.id {
			return fields
		}
	}
	return append(fields, e)
}

func (b *nodeBuilder) aliased(c *subtree, alias Symbol) *subtree {
	n := c.clone(b.arena)
	n.symbol = alias
	n.visible = b.lang.IsVisible(alias) || alias != c.grammarSymbol
	n.named = b.lang.IsNamed(alias)
	return n
}

// finish computes the derived attributes of a parent from its children.
func (b *nodeBuilder) finish(s *subtree, children []*subtree, fields []fieldEntry) {
	s.children = children
	s.fields = fields
	s.visibleCount, s.namedCount = 0, 0
	if len(children) == 0 {
		return
	}
	var total Length
	var reach uint32
	for _, c := range children {
		total = total.add(c.total())
		if end := total.Bytes + c.lookahead; end > reach {
			reach = end
		}
		if c.visible {
			s.visibleCount++
			if c.named {
				s.namedCount++
			}
		}
		if c.hasError {
			s.hasError = true
		}
		if c.fragile {
			s.fragile = true
		}
		s.dynamicPrecedence += c.dynamicPrecedence
	}
	first, last := children[0], children[len(children)-1]
	s.padding = first.padding
	s.size = total.sub(first.padding)
	if reach > total.Bytes {
		s.lookahead = reach - total.Bytes
	}
	s.extIn = first.extIn
	s.extOut = last.extOut
	s.trailingMode = last.trailingMode
}
