package generate

import (
	"encoding/json"
	"slices"
	"strings"
)

// NodeTypeRef names a node type.
type NodeTypeRef struct {
	Type  string `json:"type"`
	Named bool   `json:"named"`
}

// FieldInfo describes what may appear in a field or among a node's
// unnamed-field children.
type FieldInfo struct {
	Multiple bool          `json:"multiple"`
	Required bool          `json:"required"`
	Types    []NodeTypeRef `json:"types"`
}

// NodeType describes one node type of a language, in the format of
// tree-sitter's node-types.json.
type NodeType struct {
	Type     string               `json:"type"`
	Named    bool                 `json:"named"`
	Fields   map[string]FieldInfo `json:"fields,omitempty"`
	Children *FieldInfo           `json:"children,omitempty"`
	Subtypes []NodeTypeRef        `json:"subtypes,omitempty"`
}

// MarshalNodeTypes renders node types as indented JSON.
func MarshalNodeTypes(types []NodeType) ([]byte, error) {
	return json.MarshalIndent(types, "", "  ")
}

// occurrence counts of one slot (a field, or the unnamed children) in a
// subtree of productions.
type slotCount struct {
	min, max int
	types    map[NodeTypeRef]bool
}

type slots map[string]*slotCount

func (s slots) add(key string, ref NodeTypeRef) {
	sc := s[key]
	if sc == nil {
		sc = &slotCount{types: make(map[NodeTypeRef]bool)}
		s[key] = sc
	}
	sc.min++
	sc.max++
	if ref.Type != "" {
		sc.types[ref] = true
	}
}

// merge adds the counts of o, for steps in sequence.
func (s slots) merge(o slots) {
	for k, v := range o {
		sc := s[k]
		if sc == nil {
			sc = &slotCount{types: make(map[NodeTypeRef]bool)}
			s[k] = sc
		}
		sc.min += v.min
		sc.max = min(sc.max+v.max, 2)
		for t := range v.types {
			sc.types[t] = true
		}
	}
}

// alternatives combines the counts of alternative productions.
func alternatives(all []slots) slots {
	out := make(slots)
	keys := make(map[string]bool)
	for _, a := range all {
		for k := range a {
			keys[k] = true
		}
	}
	for k := range keys {
		sc := &slotCount{min: -1, types: make(map[NodeTypeRef]bool)}
		for _, a := range all {
			v := a[k]
			if v == nil {
				sc.min = 0
				continue
			}
			if sc.min < 0 || v.min < sc.min {
				sc.min = v.min
			}
			sc.max = max(sc.max, v.max)
			for t := range v.types {
				sc.types[t] = true
			}
		}
		if sc.min < 0 {
			sc.min = 0
		}
		out[k] = sc
	}
	return out
}

const childrenSlot = "\x00children"

type nodeTypeBuilder struct {
	c      *compiler
	memo   map[int]slots
	active map[int]bool
}

// hiddenSlots returns the slots contributed by splicing hidden variable vi
// into a parent.
func (nb *nodeTypeBuilder) hiddenSlots(vi int) slots {
	if s, ok := nb.memo[vi]; ok {
		return s
	}
	if nb.active[vi] {
		// Recursion through a hidden rule repeats its contents.
		return nil
	}
	nb.active[vi] = true
	var all []slots
	for _, pi := range nb.c.vars[vi].prods {
		all = append(all, nb.productionSlots(pi, vi))
	}
	delete(nb.active, vi)
	s := alternatives(all)
	nb.memo[vi] = s
	return s
}

func (nb *nodeTypeBuilder) productionSlots(pi, self int) slots {
	c := nb.c
	out := make(slots)
	recursive := false
	for _, s := range c.prods[pi].steps {
		ref, hidden := nb.stepRef(s)
		if hidden >= 0 {
			if hidden == self || nb.active[hidden] {
				recursive = true
				continue
			}
			inner := nb.hiddenSlots(hidden)
			if s.field != "" {
				// A field on a hidden rule names its visible children.
				fs := make(slots)
				for k, v := range inner {
					if k == childrenSlot {
						fs[s.field] = v
					} else {
						fs[k] = v
					}
				}
				inner = fs
			}
			out.merge(inner)
			continue
		}
		if ref.Type == "" {
			continue
		}
		key := s.field
		if key == "" {
			if !ref.Named {
				continue
			}
			key = childrenSlot
		}
		out.add(key, ref)
	}
	if recursive {
		// The rest of a recursive production repeats.
		for _, v := range out {
			v.max = 2
		}
	}
	return out
}

// stepRef returns the node type a step produces, or the hidden variable
// it splices in.
func (nb *nodeTypeBuilder) stepRef(s step) (NodeTypeRef, int) {
	c := nb.c
	if s.alias != "" {
		return NodeTypeRef{Type: s.alias, Named: s.aliasNamed}, -1
	}
	if c.isTerminal(s.sym) {
		t := c.tokens[s.sym-1]
		if !t.visible {
			return NodeTypeRef{}, -1
		}
		return NodeTypeRef{Type: t.name, Named: t.named}, -1
	}
	vi := s.sym - c.terminalCount()
	v := c.vars[vi]
	if v.supertype || v.visible {
		return NodeTypeRef{Type: v.name, Named: true}, -1
	}
	return NodeTypeRef{}, vi
}

func (c *compiler) nodeTypes() []NodeType {
	nb := &nodeTypeBuilder{c: c, memo: make(map[int]slots), active: make(map[int]bool)}
	byRef := make(map[NodeTypeRef]*NodeType)
	var order []NodeTypeRef
	get := func(ref NodeTypeRef) *NodeType {
		if nt, ok := byRef[ref]; ok {
			return nt
		}
		nt := &NodeType{Type: ref.Type, Named: ref.Named}
		byRef[ref] = nt
		order = append(order, ref)
		return nt
	}

	// Productions of each visible node type, including aliased variables.
	prodsOf := make(map[NodeTypeRef][]int)
	for _, v := range c.vars {
		if v.visible {
			ref := NodeTypeRef{Type: v.name, Named: v.named}
			prodsOf[ref] = append(prodsOf[ref], v.prods...)
			get(ref)
		}
		if v.supertype {
			nt := get(NodeTypeRef{Type: v.name, Named: true})
			for _, pi := range v.prods {
				for _, s := range c.prods[pi].steps {
					ref, hidden := nb.stepRef(s)
					if hidden < 0 && ref.Type != "" && !slices.Contains(nt.Subtypes, ref) {
						nt.Subtypes = append(nt.Subtypes, ref)
					}
				}
			}
		}
	}
	for _, p := range c.prods {
		if p.lhs < 0 {
			continue
		}
		for _, s := range p.steps {
			if s.alias == "" || c.isTerminal(s.sym) {
				continue
			}
			ref := NodeTypeRef{Type: s.alias, Named: s.aliasNamed}
			vi := s.sym - c.terminalCount()
			if !slices.Contains(prodsOf[ref], c.vars[vi].prods[0]) {
				prodsOf[ref] = append(prodsOf[ref], c.vars[vi].prods...)
			}
			get(ref)
		}
	}
	for _, t := range c.tokens {
		if t.visible {
			get(NodeTypeRef{Type: t.name, Named: t.named})
		}
	}

	for ref, prods := range prodsOf {
		var all []slots
		for _, pi := range prods {
			all = append(all, nb.productionSlots(pi, c.prods[pi].lhs))
		}
		merged := alternatives(all)
		nt := byRef[ref]
		for key, sc := range merged {
			info := FieldInfo{Multiple: sc.max > 1, Required: sc.min > 0}
			for t := range sc.types {
				info.Types = append(info.Types, t)
			}
			sortRefs(info.Types)
			if key == childrenSlot {
				if len(info.Types) > 0 {
					nt.Children = &info
				}
				continue
			}
			if nt.Fields == nil {
				nt.Fields = make(map[string]FieldInfo)
			}
			nt.Fields[key] = info
		}
	}

	out := make([]NodeType, 0, len(order))
	for _, ref := range order {
		nt := byRef[ref]
		sortRefs(nt.Subtypes)
		out = append(out, *nt)
	}
	slices.SortFunc(out, func(a, b NodeType) int {
		if a.Named != b.Named {
			if a.Named {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Type, b.Type)
	})
	return out
}

func sortRefs(refs []NodeTypeRef) {
	slices.SortFunc(refs, func(a, b NodeTypeRef) int {
		if c := strings.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		if a.Named == b.Named {
			return 0
		}
		if a.Named {
			return 1
		}
		return -1
	})
}
