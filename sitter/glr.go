package sitter

import (
	"slices"
	"sort"
)

// stackEntry is a single entry on a version's LR stack, pairing a parser
// state with the subtree that was shifted or reduced into that state.
type stackEntry struct {
	state StateID
	node  *subtree
}

// AmbiguityPolicy decides between versions that are otherwise equally
// good: same ERROR-covered bytes, same error cost and same dynamic
// precedence.
type AmbiguityPolicy uint8

const (
	// EarliestDeclared prefers the alternative whose rule appears first in
	// the grammar.
	EarliestDeclared AmbiguityPolicy = iota
	// LatestDeclared prefers the alternative declared last.
	LatestDeclared
)

func (p AmbiguityPolicy) String() string {
	switch p {
	case EarliestDeclared:
		return "earliest-declared"
	case LatestDeclared:
		return "latest-declared"
	}
	return "unknown"
}

// glrStack is one version of the parse. When the parse table has multiple
// actions for a (state, symbol) pair, the parser forks: one glrStack per
// alternative, each with its own node stack and score. Versions that reach
// the same position with identical stacks are merged, keeping the better.
type glrStack struct {
	entries []stackEntry
	pos     Length
	ext     ExternalState

	errorCost  uint32
	errorBytes uint32
	dynPrec    int32
	// rank records, for every fork this version went through, the rank of
	// the action it took.
	rank []uint32

	// sticky overrides the top state's lex mode after a reused subtree
	// was pushed, until the next non-extra token is lexed.
	sticky    LexMode
	hasSticky bool

	recovering bool
	missingRun int
	stall      int

	accepted bool
	dead     bool
	root     *subtree
}

func newGLRStack(initial StateID) *glrStack {
	return &glrStack{entries: []stackEntry{{state: initial}}}
}

func (s *glrStack) top() stackEntry {
	return s.entries[len(s.entries)-1]
}

func (s *glrStack) push(state StateID, n *subtree) {
	s.entries = append(s.entries, stackEntry{state: state, node: n})
}

func (s *glrStack) clone() *glrStack {
	c := *s
	c.entries = slices.Clone(s.entries)
	c.rank = slices.Clone(s.rank)
	return &c
}

// lexMode is the mode the version's next token is lexed in.
func (s *glrStack) lexMode(lang *Language) LexMode {
	if s.hasSticky {
		return s.sticky
	}
	return lang.lexMode(s.top().state)
}

// sameStack reports whether two versions can be merged.
func (s *glrStack) sameStack(o *glrStack) bool {
	if s.pos.Bytes != o.pos.Bytes || len(s.entries) != len(o.entries) ||
		s.hasSticky != o.hasSticky || s.accepted != o.accepted || !s.ext.Equal(o.ext) {
		return false
	}
	if s.hasSticky && s.sticky != o.sticky {
		return false
	}
	for i := range s.entries {
		if s.entries[i].state != o.entries[i].state {
			return false
		}
	}
	return true
}

// compareVersions orders versions from best to worst: fewer bytes covered
// by ERROR nodes, then lower error cost, then higher dynamic precedence,
// then the ambiguity policy applied to the fork ranks.
func compareVersions(a, b *glrStack, policy AmbiguityPolicy) int {
	switch {
	case a.errorBytes != b.errorBytes:
		return cmpUint32(a.errorBytes, b.errorBytes)
	case a.errorCost != b.errorCost:
		return cmpUint32(a.errorCost, b.errorCost)
	case a.dynPrec != b.dynPrec:
		if a.dynPrec > b.dynPrec {
			return -1
		}
		return 1
	}
	c := slices.Compare(a.rank, b.rank)
	if policy == LatestDeclared {
		return -c
	}
	return c
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// condense removes dead versions, merges equivalent ones, prunes versions
// whose error cost is far worse than the best and caps the version count.
func (p *Parser) condense() {
	alive := p.versions[:0]
	for _, v := range p.versions {
		if !v.dead {
			alive = append(alive, v)
		}
	}

	merged := make([]*glrStack, 0, len(alive))
	for _, v := range alive {
		dup := false
		for j, m := range merged {
			if !m.sameStack(v) {
				continue
			}
			if compareVersions(v, m, p.policy) < 0 {
				merged[j] = v
			}
			dup = true
			break
		}
		if !dup {
			merged = append(merged, v)
		}
	}

	var bestAccepted *glrStack
	minCost := ^uint32(0)
	for _, v := range merged {
		if v.accepted && (bestAccepted == nil || compareVersions(v, bestAccepted, p.policy) < 0) {
			bestAccepted = v
		}
		if v.errorCost < minCost {
			minCost = v.errorCost
		}
	}

	kept := merged[:0]
	for _, v := range merged {
		if v.accepted && v != bestAccepted {
			continue
		}
		if v.errorCost > minCost+p.maxCostDifference {
			continue
		}
		if bestAccepted != nil && !v.accepted && v.errorCost > bestAccepted.errorCost {
			continue
		}
		kept = append(kept, v)
	}

	if len(kept) > p.maxVersions {
		sort.SliceStable(kept, func(i, j int) bool {
			return compareVersions(kept[i], kept[j], p.policy) < 0
		})
		if p.logger.AllowLevel(debugLevel) {
			p.logger.Debugf("dropping %d versions over the limit of %d", len(kept)-p.maxVersions, p.maxVersions)
		}
		kept = kept[:p.maxVersions]
	}
	p.versions = kept
}

// nextVersion returns the unfinished version with the smallest position.
func (p *Parser) nextVersion() *glrStack {
	var next *glrStack
	for _, v := range p.versions {
		if v.accepted || v.dead {
			continue
		}
		if next == nil || v.pos.Bytes < next.pos.Bytes {
			next = v
		}
	}
	return next
}

// bestAccepted returns the best finished version.
func (p *Parser) bestAccepted() *glrStack {
	var best *glrStack
	for _, v := range p.versions {
		if v.accepted && (best == nil || compareVersions(v, best, p.policy) < 0) {
			best = v
		}
	}
	return best
}
