package generate

import (
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/odvcencio/arbor/grammar"
	"github.com/odvcencio/arbor/sitter"
)

// lexTables are the lexer tables of a language.
type lexTables struct {
	states         []sitter.LexState
	keywordStates  []sitter.LexState
	modes          []sitter.LexMode
	errorMode      sitter.LexMode
	externalStates [][]bool
}

type lexBuilder struct {
	c         *compiler
	n         nfa
	starts    []int // fragment start per token, -1 for externals
	sepStarts []int
	dfaCache  map[string]uint16
	extCache  map[string]uint16
	out       *lexTables
}

func (c *compiler) buildLexer() (*lexBuilder, error) {
	b := &lexBuilder{
		c:        c,
		starts:   make([]int, len(c.tokens)),
		dfaCache: make(map[string]uint16),
		extCache: make(map[string]uint16),
		out:      &lexTables{},
	}
	for i, t := range c.tokens {
		if t.external {
			b.starts[i] = -1
			continue
		}
		f, err := b.n.fromRule(t.name, t.content)
		if err != nil {
			return nil, err
		}
		b.n.states[b.add(f.end)].accept = i + 1
		b.starts[i] = f.start
	}
	for i, s := range c.separators {
		content, _, _ := lexicalContent(s)
		f, err := b.n.fromRule("extras", content)
		if err != nil {
			return nil, err
		}
		b.n.states[b.add(f.end)].accept = -(i + 1)
		b.sepStarts = append(b.sepStarts, f.start)
	}
	b.markKeywords()
	return b, nil
}

// add appends an accepting state reached from end, so that accept marks
// never collide with states shared by an enclosing fragment.
func (b *lexBuilder) add(end int) int {
	s := b.n.add()
	b.n.eps(end, s)
	return s
}

// markKeywords flags string tokens that the word token also matches.
func (b *lexBuilder) markKeywords() {
	c := b.c
	if c.wordToken < 0 {
		return
	}
	start := b.starts[c.wordToken]
	for i := range c.tokens {
		t := &c.tokens[i]
		if i == c.wordToken || t.external || t.immediate || t.content.Kind != grammar.KindString || t.content.Value == "" {
			continue
		}
		if b.n.matches(start, c.wordToken+1, t.content.Value) {
			t.keyword = true
		}
	}
}

// better reports whether accept x wins over y when both match the same
// text: higher precedence, then real tokens over separators, then strings
// over patterns, then declaration order.
func (b *lexBuilder) better(x, y int) bool {
	px, sx, lx, ix := b.acceptKey(x)
	py, sy, ly, iy := b.acceptKey(y)
	if px != py {
		return px > py
	}
	if sx != sy {
		return !sx
	}
	if lx != ly {
		return lx
	}
	return ix < iy
}

func (b *lexBuilder) acceptKey(a int) (prec int, skip, literal bool, index int) {
	if a < 0 {
		return 0, true, false, -a - 1
	}
	t := &b.c.tokens[a-1]
	return t.prec, false, t.content.Kind == grammar.KindString, a - 1
}

// dfa builds the deterministic automaton for tokens (indices into
// compiler.tokens) into states and returns its start state.
func (b *lexBuilder) dfa(states *[]sitter.LexState, tokens []int, separators bool) int {
	var starts []int
	for _, t := range tokens {
		starts = append(starts, b.starts[t])
	}
	if separators {
		starts = append(starts, b.sepStarts...)
	}
	// Only accepts of the requested tokens count.
	allowed := make(map[int]bool, len(tokens)+len(b.sepStarts))
	for _, t := range tokens {
		allowed[t+1] = true
	}
	if separators {
		for i := range b.sepStarts {
			allowed[-(i + 1)] = true
		}
	}

	index := make(map[string]int)
	var sets [][]int
	intern := func(set []int) int {
		key := setKey(set)
		if i, ok := index[key]; ok {
			return i
		}
		*states = append(*states, sitter.LexState{Default: -1, EOF: -1})
		i := len(*states) - 1
		index[key] = i
		sets = append(sets, set)
		return i
	}
	first := len(*states)
	start := intern(b.n.closure(starts))
	for k := 0; k < len(sets); k++ {
		set := sets[k]
		si := first + k

		best := 0
		for _, s := range set {
			if a := b.n.states[s].accept; a != 0 && allowed[a] && (best == 0 || b.better(a, best)) {
				best = a
			}
		}

		var edges []nfaEdge
		for _, s := range set {
			edges = append(edges, b.n.states[s].edges...)
		}
		var transitions []sitter.LexTransition
		for _, seg := range segments(edges) {
			target := intern(b.n.closure(seg.targets))
			if n := len(transitions); n > 0 && transitions[n-1].NextState == target && transitions[n-1].Hi+1 == seg.lo {
				transitions[n-1].Hi = seg.hi
				continue
			}
			transitions = append(transitions, sitter.LexTransition{Lo: seg.lo, Hi: seg.hi, NextState: target})
		}

		st := &(*states)[si]
		st.Transitions = transitions
		switch {
		case best > 0:
			st.AcceptToken = sitter.Symbol(b.c.tokenSymbol(best - 1))
		case best < 0:
			st.Skip = true
		}
	}
	return start
}

func setKey(set []int) string {
	var sb strings.Builder
	for _, s := range set {
		sb.WriteString(strconv.Itoa(s))
		sb.WriteByte(',')
	}
	return sb.String()
}

type segment struct {
	lo, hi  rune
	targets []int
}

// segments splits overlapping edge ranges into disjoint intervals, each
// with the targets of every edge covering it.
func segments(edges []nfaEdge) []segment {
	if len(edges) == 0 {
		return nil
	}
	points := make([]rune, 0, 2*len(edges))
	for _, e := range edges {
		points = append(points, e.lo, e.hi+1)
	}
	slices.Sort(points)
	points = slices.Compact(points)
	var out []segment
	for i := 0; i+1 < len(points); i++ {
		lo, hi := points[i], points[i+1]-1
		if lo > unicode.MaxRune {
			break
		}
		var targets []int
		for _, e := range edges {
			if e.lo <= lo && hi <= e.hi {
				targets = append(targets, e.to)
			}
		}
		if len(targets) > 0 {
			out = append(out, segment{lo: lo, hi: hi, targets: targets})
		}
	}
	return out
}

// modes assigns a lex mode to every parse state from the terminals valid
// in it.
func (b *lexBuilder) modes(valid [][]int) error {
	c := b.c
	hasExternals := false
	for _, t := range c.tokens {
		if t.external {
			hasExternals = true
		}
	}
	if hasExternals {
		b.out.externalStates = [][]bool{make([]bool, b.externalCount())}
	}
	for _, terms := range valid {
		var lexical []int
		var external []int
		for _, sym := range terms {
			if sym == 0 {
				continue
			}
			ti := sym - 1
			t := &c.tokens[ti]
			switch {
			case t.external:
				external = append(external, ti)
			case t.keyword:
				lexical = append(lexical, c.wordToken)
			default:
				lexical = append(lexical, ti)
			}
		}
		slices.Sort(lexical)
		lexical = slices.Compact(lexical)
		mode, err := b.mode(lexical)
		if err != nil {
			return err
		}
		if len(external) > 0 {
			mode.ExternalLexState = b.externalState(external)
		}
		b.out.modes = append(b.out.modes, mode)
	}

	var all []int
	for i, t := range c.tokens {
		if !t.external && !t.keyword {
			all = append(all, i)
		}
	}
	mode, err := b.mode(all)
	if err != nil {
		return err
	}
	b.out.errorMode = mode

	if c.wordToken >= 0 {
		var keywords []int
		for i, t := range c.tokens {
			if t.keyword {
				keywords = append(keywords, i)
			}
		}
		if len(keywords) > 0 {
			b.dfa(&b.out.keywordStates, keywords, false)
		}
	}
	return nil
}

// mode returns the lex states for a token set, building the DFAs on
// first use. Immediate tokens are left out of the state used after
// padding.
func (b *lexBuilder) mode(tokens []int) (sitter.LexMode, error) {
	var after []int
	for _, t := range tokens {
		if !b.c.tokens[t].immediate {
			after = append(after, t)
		}
	}
	lex, err := b.cachedDFA(tokens)
	if err != nil {
		return sitter.LexMode{}, err
	}
	skip := lex
	if len(after) != len(tokens) {
		if skip, err = b.cachedDFA(after); err != nil {
			return sitter.LexMode{}, err
		}
	}
	return sitter.LexMode{LexState: lex, AfterSkipState: skip}, nil
}

func (b *lexBuilder) cachedDFA(tokens []int) (uint16, error) {
	key := setKey(tokens)
	if s, ok := b.dfaCache[key]; ok {
		return s, nil
	}
	start := b.dfa(&b.out.states, tokens, true)
	if len(b.out.states) > 0xffff {
		return 0, grammarErrorf("", KindInvalidGrammar, "lexer needs more than 65535 states")
	}
	b.dfaCache[key] = uint16(start)
	return uint16(start), nil
}

func (b *lexBuilder) externalCount() int {
	n := 0
	for _, t := range b.c.tokens {
		if t.external {
			n++
		}
	}
	return n
}

func (b *lexBuilder) firstExternal() int {
	for i, t := range b.c.tokens {
		if t.external {
			return i
		}
	}
	return len(b.c.tokens)
}

func (b *lexBuilder) externalState(tokens []int) uint16 {
	key := setKey(tokens)
	if s, ok := b.extCache[key]; ok {
		return s
	}
	row := make([]bool, b.externalCount())
	base := b.firstExternal()
	for _, t := range tokens {
		row[t-base] = true
	}
	b.out.externalStates = append(b.out.externalStates, row)
	s := uint16(len(b.out.externalStates) - 1)
	b.extCache[key] = s
	return s
}
