package generate

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/odvcencio/arbor/grammar"
)

// maxAlternatives bounds the productions one rule may expand into.
const maxAlternatives = 1 << 14

type assoc uint8

const (
	assocNone assoc = iota
	assocLeft
	assocRight
)

// variable is a nonterminal.
type variable struct {
	name      string
	visible   bool
	named     bool
	supertype bool
	aux       bool
	origin    int // declaration index of the rule it came from
	prods     []int
}

// step is one symbol of a production with the annotations in effect where
// it was written.
type step struct {
	sym        int
	prec       int
	assoc      assoc
	field      string
	alias      string
	aliasNamed bool
}

type production struct {
	lhs     int // variable index
	steps   []step
	dynPrec int
	rank    uint32
	prec    int // precedence of the last step, or of the empty body
	assoc   assoc
	id      uint16 // sitter ProductionID
}

// annotations are inherited by every step produced inside a rule.
type annotations struct {
	prec       int
	assoc      assoc
	field      string
	alias      string
	aliasNamed bool
}

type alternative struct {
	steps     []step
	dyn       int
	emptyPrec int
	emptyAsc  assoc
}

func concat(a, b alternative) alternative {
	out := alternative{
		steps:     append(slices.Clip(a.steps), b.steps...),
		dyn:       a.dyn,
		emptyPrec: b.emptyPrec,
		emptyAsc:  b.emptyAsc,
	}
	if b.dyn != 0 {
		out.dyn = b.dyn
	}
	return out
}

// flatten turns every nonterminal rule into productions.
func (c *compiler) flatten() error {
	supertypes := make(map[string]bool, len(c.g.Supertypes))
	for _, s := range c.g.Supertypes {
		supertypes[s] = true
	}
	for _, def := range c.rules {
		if c.classes[def.Name].token >= 0 {
			continue
		}
		hidden := grammar.IsHidden(def.Name)
		v := variable{
			name:      def.Name,
			visible:   !hidden && !supertypes[def.Name],
			named:     !hidden || supertypes[def.Name],
			supertype: supertypes[def.Name],
			origin:    c.g.RuleIndex(def.Name),
		}
		c.classes[def.Name] = ruleClass{token: -1, variable: len(c.vars)}
		c.vars = append(c.vars, v)
	}
	c.auxByKey = make(map[string]int)
	fields := make(map[string]bool)

	// Aux variables are appended while iterating.
	for vi := 0; vi < len(c.vars); vi++ {
		if c.vars[vi].aux {
			continue
		}
		name := c.vars[vi].name
		body := c.rules[c.ruleIndex[name]].Rule
		alts, err := c.expand(body, annotations{}, vi)
		if err != nil {
			return err
		}
		c.addProductions(vi, alts)
	}
	for _, p := range c.prods {
		for _, s := range p.steps {
			if s.field != "" {
				fields[s.field] = true
			}
		}
	}
	for f := range fields {
		c.fields = append(c.fields, f)
	}
	slices.Sort(c.fields)
	c.fieldIDs = make(map[string]int, len(c.fields))
	for i, f := range c.fields {
		c.fieldIDs[f] = i + 1
	}
	return nil
}

func (c *compiler) addProductions(vi int, alts []alternative) {
	v := &c.vars[vi]
	for ai, a := range alts {
		p := production{
			lhs:     vi,
			steps:   a.steps,
			dynPrec: a.dyn,
			rank:    uint32(v.origin)<<16 | uint32(min(ai+len(v.prods), 0xffff)),
			prec:    a.emptyPrec,
			assoc:   a.emptyAsc,
		}
		if n := len(a.steps); n > 0 {
			p.prec, p.assoc = a.steps[n-1].prec, a.steps[n-1].assoc
		}
		v.prods = append(v.prods, len(c.prods))
		c.prods = append(c.prods, p)
	}
}

func (c *compiler) symbolStep(sym int, ann annotations) step {
	return step{sym: sym, prec: ann.prec, assoc: ann.assoc, field: ann.field, alias: ann.alias, aliasNamed: ann.aliasNamed}
}

// expand enumerates the alternatives of r. owner is the variable whose
// body is being expanded.
func (c *compiler) expand(r *grammar.Rule, ann annotations, owner int) ([]alternative, error) {
	ownerName := c.vars[owner].name
	switch r.Kind {
	case grammar.KindBlank:
		return []alternative{{emptyPrec: ann.prec, emptyAsc: ann.assoc}}, nil

	case grammar.KindString, grammar.KindPattern, grammar.KindToken, grammar.KindImmediateToken:
		content, _, imm := lexicalContent(r)
		idx, ok := c.tokenByKey[tokenKey(content, imm)]
		if !ok {
			return nil, grammarErrorf(ownerName, KindInvalidGrammar, "token %s was not extracted", r)
		}
		return []alternative{{steps: []step{c.symbolStep(c.tokenSymbol(idx), ann)}}}, nil

	case grammar.KindSymbol:
		cl, ok := c.classes[r.Value]
		if !ok {
			return nil, grammarErrorf(ownerName, KindUndefinedSymbol, "undefined symbol %q", r.Value)
		}
		sym := c.varSymbol(cl.variable)
		if cl.token >= 0 {
			sym = c.tokenSymbol(cl.token)
		}
		return []alternative{{steps: []step{c.symbolStep(sym, ann)}}}, nil

	case grammar.KindSeq:
		out := []alternative{{emptyPrec: ann.prec, emptyAsc: ann.assoc}}
		for _, m := range r.Members {
			part, err := c.expand(m, ann, owner)
			if err != nil {
				return nil, err
			}
			if len(out)*len(part) > maxAlternatives {
				return nil, grammarErrorf(ownerName, KindInvalidGrammar, "rule expands into more than %d alternatives", maxAlternatives)
			}
			next := make([]alternative, 0, len(out)*len(part))
			for _, a := range out {
				for _, b := range part {
					next = append(next, concat(a, b))
				}
			}
			out = next
		}
		return out, nil

	case grammar.KindChoice:
		var out []alternative
		for _, m := range r.Members {
			part, err := c.expand(m, ann, owner)
			if err != nil {
				return nil, err
			}
			out = append(out, part...)
			if len(out) > maxAlternatives {
				return nil, grammarErrorf(ownerName, KindInvalidGrammar, "rule expands into more than %d alternatives", maxAlternatives)
			}
		}
		return out, nil

	case grammar.KindRepeat, grammar.KindRepeat1:
		aux, err := c.repeatVariable(r.Content, ann, owner)
		if err != nil {
			return nil, err
		}
		inner := ann
		inner.field, inner.alias, inner.aliasNamed = "", "", false
		one := alternative{steps: []step{c.symbolStep(c.varSymbol(aux), inner)}}
		if r.Kind == grammar.KindRepeat1 {
			return []alternative{one}, nil
		}
		return []alternative{one, {emptyPrec: ann.prec, emptyAsc: ann.assoc}}, nil

	case grammar.KindPrec, grammar.KindPrecLeft, grammar.KindPrecRight:
		inner := ann
		inner.prec = r.Prec
		switch r.Kind {
		case grammar.KindPrecLeft:
			inner.assoc = assocLeft
		case grammar.KindPrecRight:
			inner.assoc = assocRight
		default:
			inner.assoc = assocNone
		}
		return c.expand(r.Content, inner, owner)

	case grammar.KindPrecDynamic:
		alts, err := c.expand(r.Content, ann, owner)
		if err != nil {
			return nil, err
		}
		for i := range alts {
			alts[i].dyn = r.Prec
		}
		return alts, nil

	case grammar.KindField:
		inner := ann
		inner.field = r.Value
		return c.expand(r.Content, inner, owner)

	case grammar.KindAlias:
		inner := ann
		inner.alias, inner.aliasNamed = r.Value, r.Named
		if r.Content.Kind == grammar.KindSymbol || r.Content.IsLexical() {
			return c.expand(r.Content, inner, owner)
		}
		// Aliasing a compound rule aliases a hidden rule wrapping it.
		aux, err := c.wrapperVariable(r.Content, owner)
		if err != nil {
			return nil, err
		}
		return []alternative{{steps: []step{c.symbolStep(c.varSymbol(aux), inner)}}}, nil
	}
	return nil, grammarErrorf(ownerName, KindInvalidGrammar, "unsupported rule kind %s", r.Kind)
}

// repeatVariable returns the hidden left-recursive rule aux -> aux x | x
// for content, creating it on first use.
func (c *compiler) repeatVariable(content *grammar.Rule, ann annotations, owner int) (int, error) {
	key := fmt.Sprintf("repeat %d %d %s %s %t %s", ann.prec, ann.assoc, ann.field, ann.alias, ann.aliasNamed, content)
	if vi, ok := c.auxByKey[key]; ok {
		return vi, nil
	}
	vi := c.newAux(owner, "repeat")
	c.auxByKey[key] = vi
	alts, err := c.expand(content, ann, owner)
	if err != nil {
		return 0, err
	}
	self := step{sym: c.varSymbol(vi), prec: ann.prec, assoc: ann.assoc}
	var prods []alternative
	for _, a := range alts {
		prods = append(prods, concat(alternative{steps: []step{self}}, a))
	}
	prods = append(prods, alts...)
	c.addProductions(vi, prods)
	return vi, nil
}

func (c *compiler) wrapperVariable(content *grammar.Rule, owner int) (int, error) {
	key := "wrap " + content.String()
	if vi, ok := c.auxByKey[key]; ok {
		return vi, nil
	}
	vi := c.newAux(owner, "alias")
	c.auxByKey[key] = vi
	alts, err := c.expand(content, annotations{}, owner)
	if err != nil {
		return 0, err
	}
	c.addProductions(vi, alts)
	return vi, nil
}

func (c *compiler) newAux(owner int, kind string) int {
	origin := c.vars[owner]
	n := 1
	for _, v := range c.vars {
		if v.aux && v.origin == origin.origin {
			n++
		}
	}
	c.vars = append(c.vars, variable{
		name:   "_" + trimUnderscore(origin.name) + "_" + kind + strconv.Itoa(n),
		aux:    true,
		origin: origin.origin,
	})
	return len(c.vars) - 1
}

// originName maps a variable to the grammar rule it came from, so that
// conflicts between aux rules match the declared groups.
func (c *compiler) originName(vi int) string {
	return c.g.Rules[c.vars[vi].origin].Name
}
