package generate

import "math/bits"

// bitset is a fixed-size set of small integers.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) has(i int) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }

func (b bitset) set(i int) { b[i/64] |= 1 << (uint(i) % 64) }

func (b bitset) clear(i int) { b[i/64] &^= 1 << (uint(i) % 64) }

// union adds o to b and reports whether b changed.
func (b bitset) union(o bitset) bool {
	changed := false
	for i := range b {
		n := b[i] | o[i]
		if n != b[i] {
			b[i] = n
			changed = true
		}
	}
	return changed
}

func (b bitset) clone() bitset { return append(bitset(nil), b...) }

func (b bitset) empty() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

// each calls fn for every member in increasing order.
func (b bitset) each(fn func(int)) {
	for wi, w := range b {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			fn(wi*64 + tz)
			w &= w - 1
		}
	}
}

// analysis holds the nullable and FIRST sets of every nonterminal. FIRST
// sets range over terminal symbols.
type analysis struct {
	nullable []bool
	first    []bitset
}

func (c *compiler) analyze() *analysis {
	a := &analysis{
		nullable: make([]bool, len(c.vars)),
		first:    make([]bitset, len(c.vars)),
	}
	nt := c.terminalCount()
	for i := range a.first {
		a.first[i] = newBitset(nt + 1)
	}
	for changed := true; changed; {
		changed = false
		for _, p := range c.prods {
			allNullable := true
			for _, s := range p.steps {
				if c.isTerminal(s.sym) {
					if !a.first[p.lhs].has(s.sym) {
						a.first[p.lhs].set(s.sym)
						changed = true
					}
					allNullable = false
					break
				}
				v := s.sym - nt
				if a.first[p.lhs].union(a.first[v]) {
					changed = true
				}
				if !a.nullable[v] {
					allNullable = false
					break
				}
			}
			if allNullable && !a.nullable[p.lhs] {
				a.nullable[p.lhs] = true
				changed = true
			}
		}
	}
	return a
}

// check rejects rules that derive nothing, derive only the empty string,
// or derive themselves without consuming input.
func (c *compiler) check(a *analysis) error {
	nt := c.terminalCount()

	productive := make([]bool, len(c.vars))
	for changed := true; changed; {
		changed = false
		for _, p := range c.prods {
			if productive[p.lhs] {
				continue
			}
			ok := true
			for _, s := range p.steps {
				if !c.isTerminal(s.sym) && !productive[s.sym-nt] {
					ok = false
					break
				}
			}
			if ok {
				productive[p.lhs] = true
				changed = true
			}
		}
	}
	for vi, v := range c.vars {
		if !productive[vi] {
			return grammarErrorf(c.originName(vi), KindInfiniteRecursion, "rule %q never derives a complete string", v.name)
		}
		if a.first[vi].empty() && a.nullable[vi] && !v.aux && vi != 0 {
			return grammarErrorf(v.name, KindEmptyRule, "rule only matches the empty string")
		}
	}

	// A -> B, B -> A through nullable context never consumes input.
	edges := make([][]int, len(c.vars))
	for _, p := range c.prods {
		for i, s := range p.steps {
			if c.isTerminal(s.sym) {
				continue
			}
			rest := true
			for j, o := range p.steps {
				if j == i {
					continue
				}
				if c.isTerminal(o.sym) || !a.nullable[o.sym-nt] {
					rest = false
					break
				}
			}
			if rest {
				edges[p.lhs] = append(edges[p.lhs], s.sym-nt)
			}
		}
	}
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(c.vars))
	cycle := -1
	var visit func(v int) bool
	visit = func(v int) bool {
		color[v] = grey
		for _, w := range edges[v] {
			if color[w] == grey {
				cycle = w
				return true
			}
			if color[w] == white && visit(w) {
				return true
			}
		}
		color[v] = black
		return false
	}
	for v := range c.vars {
		if color[v] == white && visit(v) {
			return grammarErrorf(c.originName(cycle), KindInfiniteRecursion,
				"rule %q can derive itself without consuming input", c.vars[cycle].name)
		}
	}
	return nil
}
