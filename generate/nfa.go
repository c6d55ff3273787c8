package generate

import (
	"regexp/syntax"
	"slices"
	"unicode"

	"github.com/odvcencio/arbor/grammar"
)

type nfaEdge struct {
	lo, hi rune
	to     int
}

type nfaState struct {
	eps   []int
	edges []nfaEdge
	// accept is token index+1 for tokens, -(separator index+1) for
	// separators, and 0 for non-accepting states.
	accept int
}

// nfa is a Thompson automaton holding the fragments of every token.
type nfa struct {
	states []nfaState
}

type fragment struct{ start, end int }

func (n *nfa) add() int {
	n.states = append(n.states, nfaState{})
	return len(n.states) - 1
}

func (n *nfa) eps(from, to int) { n.states[from].eps = append(n.states[from].eps, to) }

func (n *nfa) edge(from, to int, lo, hi rune) {
	n.states[from].edges = append(n.states[from].edges, nfaEdge{lo: lo, hi: hi, to: to})
}

func (n *nfa) empty() fragment {
	s := n.add()
	return fragment{s, s}
}

func (n *nfa) literal(text string, fold bool) fragment {
	f := n.empty()
	for _, r := range text {
		next := n.add()
		n.runeEdges(f.end, next, r, fold)
		f.end = next
	}
	return f
}

func (n *nfa) runeEdges(from, to int, r rune, fold bool) {
	n.edge(from, to, r, r)
	if !fold {
		return
	}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		n.edge(from, to, f, f)
	}
}

func (n *nfa) seq(parts []fragment) fragment {
	if len(parts) == 0 {
		return n.empty()
	}
	f := parts[0]
	for _, p := range parts[1:] {
		n.eps(f.end, p.start)
		f.end = p.end
	}
	return f
}

func (n *nfa) alt(parts []fragment) fragment {
	f := fragment{n.add(), n.add()}
	for _, p := range parts {
		n.eps(f.start, p.start)
		n.eps(p.end, f.end)
	}
	return f
}

func (n *nfa) star(p fragment) fragment {
	f := fragment{n.add(), n.add()}
	n.eps(f.start, p.start)
	n.eps(f.start, f.end)
	n.eps(p.end, p.start)
	n.eps(p.end, f.end)
	return f
}

func (n *nfa) plus(p fragment) fragment {
	f := fragment{p.start, n.add()}
	n.eps(p.end, p.start)
	n.eps(p.end, f.end)
	return f
}

func (n *nfa) quest(p fragment) fragment {
	f := fragment{n.add(), n.add()}
	n.eps(f.start, p.start)
	n.eps(f.start, f.end)
	n.eps(p.end, f.end)
	return f
}

// fromRule builds the fragment of a lexical rule.
func (n *nfa) fromRule(owner string, r *grammar.Rule) (fragment, error) {
	switch r.Kind {
	case grammar.KindBlank:
		return n.empty(), nil
	case grammar.KindString:
		return n.literal(r.Value, false), nil
	case grammar.KindPattern:
		re, err := syntax.Parse(r.Value, syntax.Perl)
		if err != nil {
			return fragment{}, grammarErrorf(owner, KindInvalidPattern, "pattern /%s/: %v", r.Value, err)
		}
		return n.fromRegexp(owner, r.Value, re.Simplify())
	case grammar.KindSeq:
		parts := make([]fragment, 0, len(r.Members))
		for _, m := range r.Members {
			f, err := n.fromRule(owner, m)
			if err != nil {
				return fragment{}, err
			}
			parts = append(parts, f)
		}
		return n.seq(parts), nil
	case grammar.KindChoice:
		parts := make([]fragment, 0, len(r.Members))
		for _, m := range r.Members {
			f, err := n.fromRule(owner, m)
			if err != nil {
				return fragment{}, err
			}
			parts = append(parts, f)
		}
		return n.alt(parts), nil
	case grammar.KindRepeat, grammar.KindRepeat1:
		f, err := n.fromRule(owner, r.Content)
		if err != nil {
			return fragment{}, err
		}
		if r.Kind == grammar.KindRepeat {
			return n.star(f), nil
		}
		return n.plus(f), nil
	case grammar.KindPrec, grammar.KindPrecLeft, grammar.KindPrecRight, grammar.KindPrecDynamic,
		grammar.KindToken, grammar.KindImmediateToken, grammar.KindField, grammar.KindAlias:
		return n.fromRule(owner, r.Content)
	}
	return fragment{}, grammarErrorf(owner, KindInvalidGrammar, "%s is not allowed inside a token", r.Kind)
}

// fromRegexp builds the fragment of a simplified regular expression.
func (n *nfa) fromRegexp(owner, src string, re *syntax.Regexp) (fragment, error) {
	sub := func() ([]fragment, error) {
		parts := make([]fragment, 0, len(re.Sub))
		for _, s := range re.Sub {
			f, err := n.fromRegexp(owner, src, s)
			if err != nil {
				return nil, err
			}
			parts = append(parts, f)
		}
		return parts, nil
	}
	switch re.Op {
	case syntax.OpNoMatch:
		return fragment{n.add(), n.add()}, nil
	case syntax.OpEmptyMatch:
		return n.empty(), nil
	case syntax.OpLiteral:
		return n.literal(string(re.Rune), re.Flags&syntax.FoldCase != 0), nil
	case syntax.OpCharClass:
		f := fragment{n.add(), n.add()}
		for i := 0; i+1 < len(re.Rune); i += 2 {
			n.edge(f.start, f.end, re.Rune[i], re.Rune[i+1])
		}
		return f, nil
	case syntax.OpAnyCharNotNL:
		f := fragment{n.add(), n.add()}
		n.edge(f.start, f.end, 0, '\n'-1)
		n.edge(f.start, f.end, '\n'+1, unicode.MaxRune)
		return f, nil
	case syntax.OpAnyChar:
		f := fragment{n.add(), n.add()}
		n.edge(f.start, f.end, 0, unicode.MaxRune)
		return f, nil
	case syntax.OpCapture:
		return n.fromRegexp(owner, src, re.Sub[0])
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest:
		f, err := n.fromRegexp(owner, src, re.Sub[0])
		if err != nil {
			return fragment{}, err
		}
		switch re.Op {
		case syntax.OpStar:
			return n.star(f), nil
		case syntax.OpPlus:
			return n.plus(f), nil
		}
		return n.quest(f), nil
	case syntax.OpRepeat:
		if re.Max < 0 && re.Min == 0 {
			f, err := n.fromRegexp(owner, src, re.Sub[0])
			if err != nil {
				return fragment{}, err
			}
			return n.star(f), nil
		}
		var parts []fragment
		for range re.Min {
			f, err := n.fromRegexp(owner, src, re.Sub[0])
			if err != nil {
				return fragment{}, err
			}
			parts = append(parts, f)
		}
		if re.Max < 0 {
			f, err := n.fromRegexp(owner, src, re.Sub[0])
			if err != nil {
				return fragment{}, err
			}
			parts = append(parts, n.star(f))
		}
		for range re.Max - re.Min {
			f, err := n.fromRegexp(owner, src, re.Sub[0])
			if err != nil {
				return fragment{}, err
			}
			parts = append(parts, n.quest(f))
		}
		return n.seq(parts), nil
	case syntax.OpConcat:
		parts, err := sub()
		if err != nil {
			return fragment{}, err
		}
		return n.seq(parts), nil
	case syntax.OpAlternate:
		parts, err := sub()
		if err != nil {
			return fragment{}, err
		}
		return n.alt(parts), nil
	}
	return fragment{}, grammarErrorf(owner, KindInvalidPattern, "pattern /%s/ uses unsupported %s", src, opName(re.Op))
}

func opName(op syntax.Op) string {
	switch op {
	case syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText:
		return "anchors"
	case syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return "word boundaries"
	}
	return "syntax"
}

// closure returns the sorted epsilon closure of states.
func (n *nfa) closure(states []int) []int {
	seen := make(map[int]bool, len(states))
	stack := slices.Clone(states)
	var out []int
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		stack = append(stack, n.states[s].eps...)
	}
	slices.Sort(out)
	return out
}

// matches reports whether the fragment starting at start accepts exactly
// text, with the fragment's accepting state marked by accept.
func (n *nfa) matches(start, accept int, text string) bool {
	cur := n.closure([]int{start})
	for _, r := range text {
		var next []int
		for _, s := range cur {
			for _, e := range n.states[s].edges {
				if r >= e.lo && r <= e.hi {
					next = append(next, e.to)
				}
			}
		}
		if len(next) == 0 {
			return false
		}
		cur = n.closure(next)
	}
	for _, s := range cur {
		if n.states[s].accept == accept {
			return true
		}
	}
	return false
}
