package grammar

// RuleDef is a named rule. The order of definitions is significant: the
// first rule is the start rule, and declaration order breaks ties between
// otherwise equal tokens and ambiguous parses.
type RuleDef struct {
	Name string
	Rule *Rule
}

// Grammar is a complete grammar description.
type Grammar struct {
	Name  string
	Rules []RuleDef

	// Extras may appear anywhere between tokens: whitespace patterns are
	// skipped, named tokens such as comments appear in the tree.
	Extras []*Rule
	// Conflicts lists groups of rules whose LR conflicts are expected and
	// resolved at parse time by forking.
	Conflicts [][]string
	// Externals are tokens produced by an external scanner.
	Externals []*Rule
	// Inline rules are substituted into every rule that references them.
	Inline []string
	// Supertypes are hidden rules whose alternatives are queryable under
	// the supertype name.
	Supertypes []string
	// Word is the rule for identifiers. Literal keywords matching it are
	// lexed as identifiers first and then promoted.
	Word string
}

// New returns an empty grammar. Extras default to whitespace, as in
// tree-sitter.
func New(name string) *Grammar {
	return &Grammar{
		Name:   name,
		Extras: []*Rule{Pat(`\s`)},
	}
}

// Define appends a rule definition and returns g for chaining.
func (g *Grammar) Define(name string, r *Rule) *Grammar {
	g.Rules = append(g.Rules, RuleDef{Name: name, Rule: r})
	return g
}

// Rule returns the definition of name, or nil.
func (g *Grammar) Rule(name string) *Rule {
	for i := range g.Rules {
		if g.Rules[i].Name == name {
			return g.Rules[i].Rule
		}
	}
	return nil
}

// RuleIndex returns the declaration index of name, or -1.
func (g *Grammar) RuleIndex(name string) int {
	for i := range g.Rules {
		if g.Rules[i].Name == name {
			return i
		}
	}
	return -1
}

// StartRule returns the name of the first rule, or "".
func (g *Grammar) StartRule() string {
	if len(g.Rules) == 0 {
		return ""
	}
	return g.Rules[0].Name
}

// IsHidden reports whether nodes for the named rule are left out of the
// syntax tree. Rules whose names start with an underscore are hidden.
func IsHidden(name string) bool {
	return len(name) > 0 && name[0] == '_'
}
