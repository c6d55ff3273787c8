package generate

import (
	"slices"
	"strconv"
	"strings"
)

// item is an LR(0) item: a production with a position in its body.
type item struct {
	prod int32
	dot  int32
}

type lrState struct {
	kernel []item
	la     []bitset // lookaheads per kernel item
	gotos  map[int]int
}

// automaton is the LALR(1) automaton of a grammar.
type automaton struct {
	c      *compiler
	an     *analysis
	aug    int // augmented production S' -> start
	hash   int // lookahead bit marking propagation
	states []*lrState
	byKey  map[string]int

	suffix map[item]suffixFirst
}

type suffixFirst struct {
	first    bitset
	nullable bool
}

func itemsKey(items []item) string {
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(strconv.Itoa(int(it.prod)))
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(int(it.dot)))
		sb.WriteByte(' ')
	}
	return sb.String()
}

func compareItems(a, b item) int {
	if a.prod != b.prod {
		return int(a.prod - b.prod)
	}
	return int(a.dot - b.dot)
}

func (c *compiler) buildAutomaton(an *analysis) (*automaton, error) {
	c.prods = append(c.prods, production{lhs: -1, steps: []step{{sym: c.varSymbol(0)}}})
	c.startProd = len(c.prods) - 1
	a := &automaton{
		c:      c,
		an:     an,
		aug:    c.startProd,
		hash:   c.terminalCount(),
		byKey:  make(map[string]int),
		suffix: make(map[item]suffixFirst),
	}
	a.buildLR0()
	if len(a.states) > 0xffff {
		return nil, grammarErrorf("", KindInvalidGrammar, "grammar needs %d parse states, more than 65535", len(a.states))
	}
	a.propagate()
	return a, nil
}

func (a *automaton) next(it item) (int, bool) {
	p := &a.c.prods[it.prod]
	if int(it.dot) >= len(p.steps) {
		return 0, false
	}
	return p.steps[it.dot].sym, true
}

// closure0 is the LR(0) closure of a kernel.
func (a *automaton) closure0(kernel []item) []item {
	out := slices.Clone(kernel)
	added := make(map[int]bool)
	for i := 0; i < len(out); i++ {
		sym, ok := a.next(out[i])
		if !ok || a.c.isTerminal(sym) || added[sym] {
			continue
		}
		added[sym] = true
		for _, p := range a.c.vars[sym-a.c.terminalCount()].prods {
			out = append(out, item{prod: int32(p)})
		}
	}
	return out
}

func (a *automaton) buildLR0() {
	start := []item{{prod: int32(a.aug)}}
	a.addState(start)
	for si := 0; si < len(a.states); si++ {
		st := a.states[si]
		groups := make(map[int][]item)
		var syms []int
		for _, it := range a.closure0(st.kernel) {
			sym, ok := a.next(it)
			if !ok {
				continue
			}
			if _, seen := groups[sym]; !seen {
				syms = append(syms, sym)
			}
			groups[sym] = append(groups[sym], item{prod: it.prod, dot: it.dot + 1})
		}
		slices.Sort(syms)
		for _, sym := range syms {
			kernel := groups[sym]
			slices.SortFunc(kernel, compareItems)
			kernel = slices.Compact(kernel)
			st.gotos[sym] = a.addState(kernel)
		}
	}
}

func (a *automaton) addState(kernel []item) int {
	key := itemsKey(kernel)
	if i, ok := a.byKey[key]; ok {
		return i
	}
	st := &lrState{kernel: kernel, gotos: make(map[int]int), la: make([]bitset, len(kernel))}
	for i := range st.la {
		st.la[i] = newBitset(a.hash + 1)
	}
	a.states = append(a.states, st)
	a.byKey[key] = len(a.states) - 1
	return len(a.states) - 1
}

// suffixFirst returns FIRST of the production body after the symbol at
// the item's dot.
func (a *automaton) suffixFirst(it item) suffixFirst {
	if s, ok := a.suffix[it]; ok {
		return s
	}
	c := a.c
	p := &c.prods[it.prod]
	s := suffixFirst{first: newBitset(a.hash + 1), nullable: true}
	for _, st := range p.steps[it.dot+1:] {
		if c.isTerminal(st.sym) {
			s.first.set(st.sym)
			s.nullable = false
			break
		}
		v := st.sym - c.terminalCount()
		s.first.union(a.an.first[v])
		if !a.an.nullable[v] {
			s.nullable = false
			break
		}
	}
	a.suffix[it] = s
	return s
}

// closure1 is the LR(1) closure of items with per-item lookaheads.
func (a *automaton) closure1(items []item, las []bitset) ([]item, []bitset) {
	out := slices.Clone(items)
	outLA := make([]bitset, len(las))
	for i := range las {
		outLA[i] = las[i].clone()
	}
	index := make(map[item]int, len(items))
	for i, it := range out {
		index[it] = i
	}
	work := make([]int, len(out))
	for i := range work {
		work[i] = i
	}
	queued := make([]bool, len(out))
	for i := range queued {
		queued[i] = true
	}
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		queued[i] = false
		sym, ok := a.next(out[i])
		if !ok || a.c.isTerminal(sym) {
			continue
		}
		sf := a.suffixFirst(out[i])
		la := sf.first
		if sf.nullable {
			la = sf.first.clone()
			la.union(outLA[i])
		}
		for _, p := range a.c.vars[sym-a.c.terminalCount()].prods {
			it := item{prod: int32(p)}
			j, ok := index[it]
			if !ok {
				j = len(out)
				out = append(out, it)
				outLA = append(outLA, la.clone())
				queued = append(queued, true)
				index[it] = j
				work = append(work, j)
				continue
			}
			if outLA[j].union(la) && !queued[j] {
				queued[j] = true
				work = append(work, j)
			}
		}
	}
	return out, outLA
}

type propagation struct{ state, kernel int }

// propagate computes LALR(1) lookaheads by discovering spontaneous
// lookaheads and propagation links, then iterating to a fixed point.
func (a *automaton) propagate() {
	links := make(map[propagation][]propagation)
	a.states[0].la[0].set(0)
	for si, st := range a.states {
		for ki, k := range st.kernel {
			seed := newBitset(a.hash + 1)
			seed.set(a.hash)
			items, las := a.closure1([]item{k}, []bitset{seed})
			for i, it := range items {
				sym, ok := a.next(it)
				if !ok {
					continue
				}
				ti := st.gotos[sym]
				target := a.states[ti]
				adv := item{prod: it.prod, dot: it.dot + 1}
				tk, _ := slices.BinarySearchFunc(target.kernel, adv, compareItems)
				la := las[i]
				if la.has(a.hash) {
					links[propagation{si, ki}] = append(links[propagation{si, ki}], propagation{ti, tk})
				}
				spont := la.clone()
				spont.clear(a.hash)
				target.la[tk].union(spont)
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for si, st := range a.states {
			for ki := range st.kernel {
				for _, to := range links[propagation{si, ki}] {
					if a.states[to.state].la[to.kernel].union(st.la[ki]) {
						changed = true
					}
				}
			}
		}
	}
}

// stateItems returns the closure of a state with final lookaheads.
func (a *automaton) stateItems(si int) ([]item, []bitset) {
	st := a.states[si]
	return a.closure1(st.kernel, st.la)
}
