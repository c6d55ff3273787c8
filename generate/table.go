package generate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/odvcencio/arbor/sitter"
)

// tables is the parse table before it is packed into a sitter.Language.
type tables struct {
	rows    [][]uint16
	entries []sitter.ParseActionEntry
	valid   [][]int // terminals with an action, per state
}

type tableBuilder struct {
	c      *compiler
	a      *automaton
	out    *tables
	byKey  map[string]uint16
	extras []int
	groups []map[string]bool
}

func (c *compiler) buildTables(a *automaton) (*tables, error) {
	if err := c.assignProductionIDs(); err != nil {
		return nil, err
	}
	b := &tableBuilder{
		c:     c,
		a:     a,
		out:   &tables{entries: []sitter.ParseActionEntry{{}}},
		byKey: make(map[string]uint16),
	}
	for i, t := range c.tokens {
		if t.extra {
			b.extras = append(b.extras, c.tokenSymbol(i))
		}
	}
	for _, group := range c.g.Conflicts {
		set := make(map[string]bool, len(group))
		for _, n := range group {
			set[n] = true
		}
		b.groups = append(b.groups, set)
	}
	for si := range a.states {
		if err := b.state(si); err != nil {
			return nil, err
		}
	}
	return b.out, nil
}

type shiftInfo struct {
	target  int
	minPrec int
	maxPrec int
	rank    uint32
	lhs     []int
	repeat  bool
}

func (b *tableBuilder) state(si int) error {
	c := b.c
	st := b.a.states[si]
	items, las := b.a.stateItems(si)

	shifts := make(map[int]*shiftInfo)
	reduces := make(map[int][]int)
	accept := false
	for i, it := range items {
		p := &c.prods[it.prod]
		if int(it.dot) == len(p.steps) {
			if int(it.prod) == c.startProd {
				accept = true
				continue
			}
			las[i].each(func(t int) {
				if t < c.terminalCount() && !slices.Contains(reduces[t], int(it.prod)) {
					reduces[t] = append(reduces[t], int(it.prod))
				}
			})
			continue
		}
		sym := p.steps[it.dot].sym
		if !c.isTerminal(sym) {
			continue
		}
		s := shifts[sym]
		if s == nil {
			s = &shiftInfo{target: st.gotos[sym], rank: p.rank, repeat: true}
			shifts[sym] = s
			if it.dot > 0 {
				s.minPrec, s.maxPrec = p.steps[it.dot-1].prec, p.steps[it.dot-1].prec
			}
		} else if it.dot > 0 {
			prec := p.steps[it.dot-1].prec
			s.minPrec, s.maxPrec = min(s.minPrec, prec), max(s.maxPrec, prec)
		}
		s.rank = min(s.rank, p.rank)
		if p.lhs >= 0 {
			s.lhs = append(s.lhs, p.lhs)
			s.repeat = s.repeat && c.vars[p.lhs].aux
		}
	}

	row := make([]uint16, c.symbolCount())
	actionsBySym := make(map[int][]sitter.ParseAction)
	var terms []int
	for t := range c.terminalCount() {
		var actions []sitter.ParseAction
		var err error
		if t == 0 && accept {
			actions = []sitter.ParseAction{{Type: sitter.ParseActionAccept}}
		} else {
			actions, err = b.resolve(si, t, shifts[t], reduces[t])
			if err != nil {
				return err
			}
		}
		if len(actions) > 0 {
			actionsBySym[t] = actions
			terms = append(terms, t)
		}
	}
	for _, e := range b.extras {
		if _, ok := actionsBySym[e]; !ok {
			actionsBySym[e] = []sitter.ParseAction{{Type: sitter.ParseActionShift, Extra: true}}
			terms = append(terms, e)
		}
	}
	slices.Sort(terms)

	// A state is reusable when it reduces one production for every token.
	reusable := true
	var reduced *sitter.ParseAction
	for _, t := range terms {
		for i, act := range actionsBySym[t] {
			switch {
			case act.Type == sitter.ParseActionShift && act.Extra:
			case act.Type == sitter.ParseActionReduce && (reduced == nil || *reduced == act):
				reduced = &actionsBySym[t][i]
			default:
				reusable = false
			}
		}
	}
	reusable = reusable && reduced != nil

	for _, t := range terms {
		idx, err := b.entry(sitter.ParseActionEntry{Reusable: reusable, Actions: actionsBySym[t]})
		if err != nil {
			return err
		}
		row[t] = idx
	}
	for sym, target := range st.gotos {
		if c.isTerminal(sym) {
			continue
		}
		idx, err := b.entry(sitter.ParseActionEntry{Actions: []sitter.ParseAction{{
			Type: sitter.ParseActionShift, State: sitter.StateID(target),
		}}})
		if err != nil {
			return err
		}
		row[sym] = idx
	}
	b.out.rows = append(b.out.rows, row)
	b.out.valid = append(b.out.valid, terms)
	return nil
}

func (b *tableBuilder) reduceAction(prod int) sitter.ParseAction {
	p := &b.c.prods[prod]
	return sitter.ParseAction{
		Type:              sitter.ParseActionReduce,
		Symbol:            sitter.Symbol(b.c.varSymbol(p.lhs)),
		ChildCount:        uint8(len(p.steps)),
		DynamicPrecedence: int16(p.dynPrec),
		ProductionID:      p.id,
		Rank:              p.rank,
	}
}

// resolve picks the actions for lookahead t, applying precedence and
// associativity the way tree-sitter does.
func (b *tableBuilder) resolve(si, t int, shift *shiftInfo, reduces []int) ([]sitter.ParseAction, error) {
	c := b.c
	shiftAction := func() sitter.ParseAction {
		return sitter.ParseAction{
			Type:       sitter.ParseActionShift,
			State:      sitter.StateID(shift.target),
			Repetition: shift.repeat,
			Rank:       shift.rank,
		}
	}
	if len(reduces) == 0 {
		if shift == nil {
			return nil, nil
		}
		return []sitter.ParseAction{shiftAction()}, nil
	}
	slices.SortFunc(reduces, func(x, y int) int {
		return int(c.prods[x].rank) - int(c.prods[y].rank)
	})

	// Reduce/reduce: the higher precedence wins.
	if len(reduces) > 1 {
		best := c.prods[reduces[0]].prec
		for _, r := range reduces[1:] {
			best = max(best, c.prods[r].prec)
		}
		var kept []int
		for _, r := range reduces {
			if c.prods[r].prec == best {
				kept = append(kept, r)
			}
		}
		reduces = kept
	}

	if shift != nil {
		prec := c.prods[reduces[0]].prec
		asc := c.prods[reduces[0]].assoc
		switch {
		case prec < shift.minPrec:
			reduces = nil
		case prec > shift.maxPrec:
			shift = nil
		case shift.minPrec == shift.maxPrec && prec == shift.minPrec && asc == assocLeft:
			shift = nil
		case shift.minPrec == shift.maxPrec && prec == shift.minPrec && asc == assocRight:
			reduces = nil
		}
	}

	var actions []sitter.ParseAction
	if shift != nil {
		actions = append(actions, shiftAction())
	}
	for _, r := range reduces {
		actions = append(actions, b.reduceAction(r))
	}
	if len(actions) <= 1 {
		return actions, nil
	}

	// Unresolved: keep every action if the conflict was declared.
	involved := make(map[string]bool)
	for _, r := range reduces {
		involved[c.originName(c.prods[r].lhs)] = true
	}
	if shift != nil {
		for _, lhs := range shift.lhs {
			involved[c.originName(lhs)] = true
		}
	}
	names := make([]string, 0, len(involved))
	for n := range involved {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, g := range b.groups {
		all := true
		for _, n := range names {
			if !g[n] {
				all = false
				break
			}
		}
		if all {
			return actions, nil
		}
	}

	chosen := actions[0]
	for _, act := range actions[1:] {
		if act.Rank < chosen.Rank {
			chosen = act
		}
	}
	w := Warning{
		Rules:     names,
		Lookahead: c.symbolName(t),
		Chosen:    b.describe(chosen),
		Message:   fmt.Sprintf("state %d: %s", si, b.describeAll(actions)),
	}
	if c.opts.strict {
		return nil, grammarErrorf(names[0], KindUnresolvedConflict, "%s", w.String())
	}
	c.warnings = append(c.warnings, w)
	c.opts.logger.Warningf("%s", w.String())
	return []sitter.ParseAction{chosen}, nil
}

func (b *tableBuilder) describe(a sitter.ParseAction) string {
	switch a.Type {
	case sitter.ParseActionShift:
		return "shift"
	case sitter.ParseActionReduce:
		return "reduce " + b.c.symbolName(int(a.Symbol))
	}
	return "accept"
}

func (b *tableBuilder) describeAll(actions []sitter.ParseAction) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = b.describe(a)
	}
	return strings.Join(parts, " / ")
}

func (b *tableBuilder) entry(e sitter.ParseActionEntry) (uint16, error) {
	var sb strings.Builder
	if e.Reusable {
		sb.WriteByte('r')
	}
	for _, a := range e.Actions {
		fmt.Fprintf(&sb, "|%d %d %d %d %d %d %t %t %d", a.Type, a.State, a.Symbol, a.ChildCount,
			a.DynamicPrecedence, a.ProductionID, a.Extra, a.Repetition, a.Rank)
	}
	key := sb.String()
	if idx, ok := b.byKey[key]; ok {
		return idx, nil
	}
	if len(b.out.entries) > 0xffff {
		return 0, grammarErrorf("", KindInvalidGrammar, "parse table needs more than 65535 action entries")
	}
	idx := uint16(len(b.out.entries))
	b.out.entries = append(b.out.entries, e)
	b.byKey[key] = idx
	return idx, nil
}

// assignProductionIDs numbers the distinct (field map, alias sequence)
// pairs. ID 0 is the production with neither.
func (c *compiler) assignProductionIDs() error {
	ids := map[string]uint16{"": 0}
	c.productionInfos = []productionInfo{{}}
	for pi := range c.prods {
		p := &c.prods[pi]
		if p.lhs < 0 {
			continue
		}
		if len(p.steps) > 255 {
			return grammarErrorf(c.originName(p.lhs), KindInvalidGrammar, "production has more than 255 symbols")
		}
		var info productionInfo
		var sb strings.Builder
		for i, s := range p.steps {
			if s.field != "" {
				info.fields = append(info.fields, sitter.FieldMapEntry{
					FieldID:    sitter.FieldID(c.fieldIDs[s.field]),
					ChildIndex: uint8(i),
				})
				sb.WriteString("f" + strconv.Itoa(i) + ":" + s.field + ";")
			}
		}
		if hasAlias(p.steps) {
			info.aliases = make([]sitter.Symbol, len(p.steps))
			for i, s := range p.steps {
				if s.alias != "" {
					info.aliases[i] = c.aliasSymbol(s.alias, s.aliasNamed)
					sb.WriteString("a" + strconv.Itoa(i) + ":" + strconv.Itoa(int(info.aliases[i])) + ";")
				}
			}
		}
		key := sb.String()
		id, ok := ids[key]
		if !ok {
			id = uint16(len(c.productionInfos))
			ids[key] = id
			c.productionInfos = append(c.productionInfos, info)
		}
		p.id = id
	}
	if len(c.productionInfos) > 0xffff {
		return grammarErrorf("", KindInvalidGrammar, "too many distinct productions")
	}
	return nil
}

type productionInfo struct {
	fields  []sitter.FieldMapEntry
	aliases []sitter.Symbol
}

func hasAlias(steps []step) bool {
	for _, s := range steps {
		if s.alias != "" {
			return true
		}
	}
	return false
}

// aliasSymbol returns the symbol an alias displays as. An alias reuses a
// visible symbol with the same name and namedness; otherwise it gets a
// symbol of its own after the nonterminals.
func (c *compiler) aliasSymbol(name string, named bool) sitter.Symbol {
	for i, t := range c.tokens {
		if t.visible && t.name == name && t.named == named {
			return sitter.Symbol(c.tokenSymbol(i))
		}
	}
	for i, v := range c.vars {
		if v.visible && v.name == name && v.named == named {
			return sitter.Symbol(c.varSymbol(i))
		}
	}
	for i, a := range c.aliases {
		if a.name == name && a.named == named {
			return sitter.Symbol(c.symbolCount() + i)
		}
	}
	c.aliases = append(c.aliases, aliasSymbol{name: name, named: named})
	return sitter.Symbol(c.symbolCount() + len(c.aliases) - 1)
}
