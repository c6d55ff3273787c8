package sitter

import (
	"bytes"

	"github.com/tliron/commonlog"
)

const (
	defaultMaxVersions       = 8
	defaultMaxCostDifference = 1600
	// maxForkedVersions bounds the versions a single step may create
	// before condense runs.
	maxForkedVersions = 64
	// maxReductionsPerStep guards against reduce loops in malformed
	// tables.
	maxReductionsPerStep = 4096
)

// Parser is a GLR parser that reads parse tables from a Language and
// produces syntax trees. A Parser runs one parse at a time; use one parser
// per goroutine.
type Parser struct {
	language          *Language
	logger            commonlog.Logger
	policy            AmbiguityPolicy
	maxVersions       int
	maxCostDifference uint32

	// per-parse state
	source   []byte
	lexer    *Lexer
	builder  nodeBuilder
	arena    *nodeArena
	versions []*glrStack
	lexCache map[lexKey]Token
	reuse    *reuseCursor

	// reuseSubtrees allows pushing whole subtrees of the edited tree;
	// leaves are reused either way. reusedSubtree records that one was
	// pushed, and restart that recovery later ran next to it.
	reuseSubtrees bool
	reusedSubtree bool
	restart       bool
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the logger used for debug output about forks, recovery
// and subtree reuse.
func WithLogger(l commonlog.Logger) ParserOption {
	return func(p *Parser) { p.logger = l }
}

// WithAmbiguityPolicy sets how otherwise equal versions are ranked.
func WithAmbiguityPolicy(policy AmbiguityPolicy) ParserOption {
	return func(p *Parser) { p.policy = policy }
}

// WithMaxVersions bounds the number of versions kept alive at once.
func WithMaxVersions(n int) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.maxVersions = n
		}
	}
}

// WithMaxCostDifference sets how much worse than the best version a
// version's error cost may be before it is dropped.
func WithMaxCostDifference(cost uint32) ParserOption {
	return func(p *Parser) { p.maxCostDifference = cost }
}

// NewParser creates a new Parser for the given language.
func NewParser(lang *Language, opts ...ParserOption) *Parser {
	p := &Parser{
		language:          lang,
		logger:            parserLog,
		maxVersions:       defaultMaxVersions,
		maxCostDifference: defaultMaxCostDifference,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the parser's language.
func (p *Parser) Language() *Language { return p.language }

type lexKey struct {
	pos  uint32
	mode LexMode
	ext  string
}

// Parse tokenizes and parses source, returning a syntax tree. Parse never
// fails: malformed input yields ERROR and MISSING nodes.
func (p *Parser) Parse(source []byte) *Tree {
	return p.parse(source, nil)
}

// ParseIncremental parses source reusing unchanged subtrees of edited, a
// tree returned by Tree.Edit describing how source was derived from the
// previous text. The result is identical to Parse(source). An unedited
// tree is reused only when its source equals source.
func (p *Parser) ParseIncremental(source []byte, edited *Tree) *Tree {
	if edited == nil || edited.root == nil || edited.language != p.language {
		return p.parse(source, nil)
	}
	if edited.source != nil && !bytes.Equal(edited.source, source) {
		return p.parse(source, nil)
	}
	return p.parse(source, edited)
}

// Reparse applies edit to old and parses source incrementally. old is not
// modified.
func (p *Parser) Reparse(old *Tree, edit InputEdit, source []byte) *Tree {
	edited := old.Edit(edit)
	defer edited.Release()
	return p.ParseIncremental(source, edited)
}

func (p *Parser) parse(source []byte, old *Tree) *Tree {
	if old == nil {
		return p.run(source, nil, false)
	}
	if t := p.run(source, old, true); t != nil {
		return t
	}
	if p.logger.AllowLevel(debugLevel) {
		p.logger.Debug("error recovery after subtree reuse; reparsing with leaf reuse only")
	}
	return p.run(source, old, false)
}

// run performs one parse. With subtrees set, it returns nil as soon as
// error recovery starts after a reused subtree was pushed:
// recovery may pop into the parts of a subtree, which a single stack entry
// cannot offer, so the tree could differ from a full parse.
func (p *Parser) run(source []byte, old *Tree, subtrees bool) *Tree {
	lang := p.language
	class := arenaClassFull
	if old != nil {
		class = arenaClassIncremental
	}
	p.arena = acquireNodeArena(class)
	p.source = source
	p.lexer = NewLexer(lang, source)
	p.builder = nodeBuilder{lang: lang, arena: p.arena}
	p.lexCache = make(map[lexKey]Token)
	p.reuse = nil
	if old != nil {
		p.reuse = newReuseCursor(old.root)
	}
	p.reuseSubtrees = subtrees
	p.reusedSubtree = false
	p.restart = false
	p.versions = []*glrStack{newGLRStack(lang.InitialState)}
	defer p.resetState()

	for {
		v := p.nextVersion()
		if v == nil {
			break
		}
		p.advance(v)
		if p.restart {
			p.arena.Release()
			return nil
		}
		p.condense()
	}

	best := p.bestAccepted()
	var root *subtree
	if best != nil {
		root = best.root
	} else {
		root = p.errorRoot(newGLRStack(lang.InitialState))
	}

	arenas := arenaSet{p.arena}
	if old != nil {
		arenas = append(arenas, old.arenas.retainAll()...)
	}
	return newTree(root, source, lang, arenas)
}

func (p *Parser) resetState() {
	p.source = nil
	p.lexer = nil
	p.versions = nil
	p.lexCache = nil
	p.reuse = nil
	p.arena = nil
	p.builder = nodeBuilder{}
	p.reuseSubtrees = false
	p.reusedSubtree = false
	p.restart = false
}

// advance performs one step of v: any reductions followed by a shift, an
// accept or a recovery.
func (p *Parser) advance(v *glrStack) {
	if p.tryReuse(v) {
		return
	}
	tok := p.lex(v)
	p.process(v, &tok)
}

// lex returns the token at v's position, lexing it at most once per
// (position, mode, external state).
func (p *Parser) lex(v *glrStack) Token {
	mode := v.lexMode(p.language)
	key := lexKey{pos: v.pos.Bytes, mode: mode, ext: string(v.ext)}
	if tok, ok := p.lexCache[key]; ok {
		return tok
	}
	p.lexer.reset(v.pos, v.ext)
	tok := p.lexer.Next(mode)
	p.lexCache[key] = tok
	return tok
}

// actionsFor resolves the symbol a token acts as in state: a keyword when
// the keyword has an action there, the word token otherwise.
func (p *Parser) actionsFor(state StateID, tok *Token) (Symbol, *ParseActionEntry) {
	lang := p.language
	if tok.Keyword != 0 {
		if e := lang.lookup(state, tok.Keyword); e != nil {
			return tok.Keyword, e
		}
	}
	if tok.Symbol == SymbolError {
		return tok.Symbol, nil
	}
	return tok.Symbol, lang.lookup(state, tok.Symbol)
}

// process applies the actions for tok to v until a shift, accept or
// recovery ends the step. Conflicting actions fork v; every fork is
// processed to the end of its step before process returns.
func (p *Parser) process(v *glrStack, tok *Token) {
	for guard := 0; ; guard++ {
		if guard > maxReductionsPerStep {
			p.recover(v, tok)
			return
		}
		sym, entry := p.actionsFor(v.top().state, tok)
		if entry == nil || len(entry.Actions) == 0 {
			p.recover(v, tok)
			return
		}
		acts := entry.Actions
		if len(acts) > 1 {
			for i := len(acts) - 1; i >= 1; i-- {
				if len(p.versions) >= maxForkedVersions {
					break
				}
				c := v.clone()
				c.rank = append(c.rank, acts[i].Rank)
				p.versions = append(p.versions, c)
				if p.logger.AllowLevel(debugLevel) {
					p.logger.Debugf("fork at byte %d in state %d on %q", v.pos.Bytes, v.top().state, p.language.SymbolName(sym))
				}
				if p.apply(c, acts[i], entry, sym, tok) {
					p.process(c, tok)
				}
			}
			v.rank = append(v.rank, acts[0].Rank)
		}
		if !p.apply(v, acts[0], entry, sym, tok) {
			return
		}
	}
}

// apply performs a single action and reports whether the step continues
// (after a reduce).
func (p *Parser) apply(v *glrStack, a ParseAction, entry *ParseActionEntry, sym Symbol, tok *Token) bool {
	switch a.Type {
	case ParseActionShift:
		state := a.State
		if a.Extra {
			state = v.top().state
		}
		p.shift(v, state, sym, tok, a.Extra)
		return false
	case ParseActionReduce:
		reach := tok.reach()
		if entry.Reusable {
			reach = 0
		}
		p.reduce(v, a, reach)
		return true
	case ParseActionAccept:
		p.accept(v, tok)
		return false
	default:
		p.recover(v, tok)
		return false
	}
}

func (p *Parser) shift(v *glrStack, state StateID, sym Symbol, tok *Token, extra bool) {
	lang := p.language
	mode := tok.Mode
	extOut := v.ext
	if tok.External {
		extOut = tok.State
	}
	trailing := lang.lexMode(state)
	if extra {
		trailing = v.lexMode(lang)
	}
	leaf := p.reusedLeaf(v, tok, sym, extra, trailing, extOut)
	if leaf == nil {
		leaf = newLeaf(p.arena, lang, leafParams{
			symbol:    sym,
			padding:   tok.padding(),
			size:      tok.size(),
			lookahead: tok.Lookahead,
			state:     v.top().state,
			lexMode:   mode,
			extIn:     v.ext,
			extOut:    extOut,
			extra:     extra,
		})
		leaf.trailingMode = trailing
		leaf.fragile = len(p.versions) > 1
	}
	v.push(state, leaf)
	v.pos = tok.end()
	v.ext = extOut
	if !extra {
		v.hasSticky = false
		v.recovering = false
		v.missingRun = 0
		v.stall = 0
	}
}

// reduce pops the children of a production and pushes the new node in
// the goto state. reach is the absolute offset up to which the lookahead
// token was examined, or zero when the reduction does not depend on it.
func (p *Parser) reduce(v *glrStack, a ParseAction, reach uint32) {
	lang := p.language
	n := len(v.entries)
	end := n
	for end > 1 && v.entries[end-1].node.extra {
		end--
	}
	start := end
	for count := 0; start > 1 && count < int(a.ChildCount); {
		start--
		if !v.entries[start].node.extra {
			count++
		}
	}
	children := make([]*subtree, 0, end-start)
	for _, e := range v.entries[start:end] {
		children = append(children, e.node)
	}
	trailing := append([]stackEntry(nil), v.entries[end:]...)
	base := v.entries[start-1].state

	node := p.builder.build(a.Symbol, children, a.ProductionID, a.DynamicPrecedence, false)
	node.parseState = base
	node.fragile = node.fragile || len(p.versions) > 1
	if len(children) == 0 {
		node.extIn = v.ext
		node.extOut = v.ext
		node.trailingMode = v.lexMode(lang)
	}

	nodeEnd := v.pos.Bytes
	for _, e := range trailing {
		nodeEnd -= e.node.total().Bytes
	}
	if reach > nodeEnd && reach-nodeEnd > node.lookahead {
		node.lookahead = reach - nodeEnd
	}

	next, ok := lang.NextState(base, a.Symbol)
	if !ok {
		next = base
	}
	v.entries = v.entries[:start]
	v.push(next, node)
	for _, e := range trailing {
		v.push(next, e.node)
	}
	v.dynPrec += int32(a.DynamicPrecedence)
}

// accept finishes v: the start node, with the extras around it, becomes
// the root, which spans the whole input.
func (p *Parser) accept(v *glrStack, tok *Token) {
	var children []*subtree
	var fields []fieldEntry
	var start *subtree
	for _, e := range v.entries[1:] {
		if start == nil && !e.node.extra {
			start = e.node
			children, fields = p.builder.splice(children, fields, e.node, nil)
			continue
		}
		children = append(children, e.node)
	}
	if start == nil {
		p.finishWithError(v, tok)
		return
	}
	root := p.arena.alloc()
	root.symbol = start.symbol
	root.grammarSymbol = start.grammarSymbol
	root.productionID = start.productionID
	root.visible = true
	root.named = true
	root.parseState = p.language.InitialState
	p.builder.finish(root, children, fields)
	p.sizeRoot(root, tok)
	v.root = root
	v.accepted = true
}

// sizeRoot makes root span [0, end of input).
func (p *Parser) sizeRoot(root *subtree, tok *Token) {
	root.padding = Length{}
	root.size = tok.end()
	root.extOut = nil
	if len(root.children) > 0 {
		root.extIn = root.children[0].extIn
	}
}

// finishWithError closes v into an ERROR root covering everything on its
// stack.
func (p *Parser) finishWithError(v *glrStack, tok *Token) {
	v.root = p.errorRoot(v)
	p.sizeRoot(v.root, tok)
	v.accepted = true
}

func (p *Parser) errorRoot(v *glrStack) *subtree {
	var nodes []*subtree
	for _, e := range v.entries[1:] {
		nodes = append(nodes, e.node)
	}
	root := p.builder.build(SymbolError, nodes, 0, 0, true)
	root.hasError = true
	root.parseState = p.language.InitialState
	if len(nodes) == 0 {
		end := Length{Bytes: uint32(len(p.source)), Extent: PointAt(p.source, uint32(len(p.source)))}
		root.size = end
	}
	return root
}
