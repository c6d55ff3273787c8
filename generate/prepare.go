package generate

import (
	"strconv"

	"github.com/odvcencio/arbor/grammar"
)

// tokenInfo describes one terminal other than the end token.
type tokenInfo struct {
	name      string
	named     bool
	visible   bool
	content   *grammar.Rule // lexical content; nil for external tokens
	prec      int
	immediate bool
	extra     bool
	external  bool
	keyword   bool
}

// ruleClass says what a rule name compiles to.
type ruleClass struct {
	token    int // index into compiler.tokens, or -1
	variable int // index into compiler.vars, or -1
}

// compiler carries the state of one Compile call.
type compiler struct {
	g    *grammar.Grammar
	opts options

	rules      []grammar.RuleDef // after inlining
	ruleIndex  map[string]int
	classes    map[string]ruleClass
	tokens     []tokenInfo
	tokenByKey map[string]int
	separators []*grammar.Rule
	wordToken  int // index into tokens, or -1

	vars            []variable
	prods           []production
	auxByKey        map[string]int
	fields          []string // sorted; FieldID = index+1
	fieldIDs        map[string]int
	aliases         []aliasSymbol
	productionInfos []productionInfo
	warnings        []Warning
	startProd       int // augmented production
}

type aliasSymbol struct {
	name  string
	named bool
}

func tokenKey(r *grammar.Rule, immediate bool) string {
	if immediate {
		return "imm:" + r.String()
	}
	return r.String()
}

// lexicalContent unwraps token() and token.immediate() and reports the
// lexical precedence declared directly inside them.
func lexicalContent(r *grammar.Rule) (content *grammar.Rule, prec int, immediate bool) {
	content = r
	switch r.Kind {
	case grammar.KindToken:
		content = r.Content
	case grammar.KindImmediateToken:
		content = r.Content
		immediate = true
	}
	for content.Kind == grammar.KindPrec || content.Kind == grammar.KindPrecLeft ||
		content.Kind == grammar.KindPrecRight {
		if prec == 0 {
			prec = content.Prec
		}
		content = content.Content
	}
	return content, prec, immediate
}

// prepare validates the grammar, substitutes inline rules and extracts
// lexical tokens.
func (c *compiler) prepare() error {
	g := c.g
	if len(g.Rules) == 0 {
		return grammarErrorf("", KindInvalidGrammar, "grammar has no rules")
	}
	c.ruleIndex = make(map[string]int, len(g.Rules))
	for i, def := range g.Rules {
		if def.Name == "" {
			return grammarErrorf("", KindInvalidGrammar, "rule %d has no name", i)
		}
		if def.Rule == nil {
			return grammarErrorf(def.Name, KindEmptyRule, "rule has no definition")
		}
		if _, dup := c.ruleIndex[def.Name]; dup {
			return grammarErrorf(def.Name, KindDuplicateRule, "rule defined more than once")
		}
		c.ruleIndex[def.Name] = i
	}

	externalNames := make(map[string]bool)
	for _, e := range g.Externals {
		if e.Kind == grammar.KindSymbol {
			externalNames[e.Value] = true
		}
	}
	defined := func(name string) bool {
		_, ok := c.ruleIndex[name]
		return ok || externalNames[name]
	}

	for _, def := range g.Rules {
		var err error
		def.Rule.Walk(func(r *grammar.Rule) bool {
			if err != nil {
				return false
			}
			switch r.Kind {
			case grammar.KindSymbol:
				if !defined(r.Value) {
					err = grammarErrorf(def.Name, KindUndefinedSymbol, "undefined symbol %q", r.Value)
				}
			case grammar.KindToken, grammar.KindImmediateToken:
				r.Content.Walk(func(in *grammar.Rule) bool {
					if in.Kind == grammar.KindSymbol && err == nil {
						err = grammarErrorf(def.Name, KindInvalidGrammar, "token content references rule %q", in.Value)
					}
					return err == nil
				})
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	checkNames := func(what string, names []string) error {
		for _, n := range names {
			if _, ok := c.ruleIndex[n]; !ok {
				return grammarErrorf(n, KindUndefinedSymbol, "undefined rule in %s", what)
			}
		}
		return nil
	}
	if err := checkNames("supertypes", g.Supertypes); err != nil {
		return err
	}
	if err := checkNames("inline", g.Inline); err != nil {
		return err
	}
	for _, group := range g.Conflicts {
		if err := checkNames("conflicts", group); err != nil {
			return err
		}
	}
	if g.Word != "" {
		if err := checkNames("word", []string{g.Word}); err != nil {
			return err
		}
	}
	for _, e := range g.Extras {
		if e.Kind == grammar.KindSymbol && !defined(e.Value) {
			return grammarErrorf(e.Value, KindUndefinedSymbol, "undefined rule in extras")
		}
	}

	if err := c.inline(); err != nil {
		return err
	}
	return c.extractTokens()
}

// inline substitutes the bodies of inline rules into every reference.
func (c *compiler) inline() error {
	inline := make(map[string]bool, len(c.g.Inline))
	for _, n := range c.g.Inline {
		if n == c.g.StartRule() {
			return grammarErrorf(n, KindInvalidGrammar, "the start rule cannot be inlined")
		}
		inline[n] = true
	}
	var subst func(r *grammar.Rule, depth int, owner string) (*grammar.Rule, error)
	subst = func(r *grammar.Rule, depth int, owner string) (*grammar.Rule, error) {
		if r == nil {
			return nil, nil
		}
		if depth > len(inline)+1 {
			return nil, grammarErrorf(owner, KindInfiniteRecursion, "inline rules reference each other")
		}
		if r.Kind == grammar.KindSymbol && inline[r.Value] {
			body := c.g.Rule(r.Value)
			return subst(body, depth+1, owner)
		}
		out := *r
		out.Members = nil
		for _, m := range r.Members {
			nm, err := subst(m, depth, owner)
			if err != nil {
				return nil, err
			}
			out.Members = append(out.Members, nm)
		}
		var err error
		out.Content, err = subst(r.Content, depth, owner)
		return &out, err
	}
	for _, def := range c.g.Rules {
		if inline[def.Name] {
			continue
		}
		body, err := subst(def.Rule, 0, def.Name)
		if err != nil {
			return err
		}
		c.rules = append(c.rules, grammar.RuleDef{Name: def.Name, Rule: body})
	}
	c.ruleIndex = make(map[string]int, len(c.rules))
	for i, def := range c.rules {
		c.ruleIndex[def.Name] = i
	}
	return nil
}

// extractTokens decides which rules are tokens and numbers every token in
// the order of its first occurrence.
func (c *compiler) extractTokens() error {
	g := c.g
	c.tokenByKey = make(map[string]int)
	c.classes = make(map[string]ruleClass, len(c.rules))
	c.wordToken = -1

	// Count syntactic uses of each lexical content.
	usage := make(map[string]int)
	var count func(r *grammar.Rule)
	count = func(r *grammar.Rule) {
		r.Walk(func(x *grammar.Rule) bool {
			if x.IsLexical() {
				content, _, imm := lexicalContent(x)
				usage[tokenKey(content, imm)]++
				return false
			}
			return true
		})
	}
	for _, def := range c.rules {
		count(def.Rule)
	}

	// A rule whose whole body is one token used nowhere else becomes a
	// named token. The start rule never does.
	tokenRule := make(map[string]bool)
	for i, def := range c.rules {
		if i == 0 || !def.Rule.IsLexical() {
			continue
		}
		content, _, imm := lexicalContent(def.Rule)
		if usage[tokenKey(content, imm)] == 1 || def.Name == g.Word {
			tokenRule[def.Name] = true
		}
	}
	if g.Word != "" && !tokenRule[g.Word] {
		return grammarErrorf(g.Word, KindInvalidGrammar, "word rule must be a single token")
	}
	var externals []tokenInfo
	externalByName := make(map[string]int)
	for i, e := range g.Externals {
		switch e.Kind {
		case grammar.KindSymbol:
			externalByName[e.Value] = len(externals)
			externals = append(externals, tokenInfo{
				name: e.Value, named: !grammar.IsHidden(e.Value), visible: !grammar.IsHidden(e.Value), external: true,
			})
		case grammar.KindString:
			externalByName["\x00"+e.Value] = len(externals)
			externals = append(externals, tokenInfo{name: e.Value, visible: true, external: true})
		default:
			return grammarErrorf("", KindInvalidGrammar, "external token %d must be a symbol or string", i)
		}
	}

	ensureNamed := func(name string) int {
		if cl, ok := c.classes[name]; ok && cl.token >= 0 {
			return cl.token
		}
		def := c.rules[c.ruleIndex[name]]
		content, prec, imm := lexicalContent(def.Rule)
		hidden := grammar.IsHidden(name)
		idx := len(c.tokens)
		c.tokens = append(c.tokens, tokenInfo{
			name: name, named: !hidden, visible: !hidden,
			content: content, prec: prec, immediate: imm,
		})
		c.classes[name] = ruleClass{token: idx, variable: -1}
		return idx
	}
	anonCount := make(map[string]int)
	ensureAnon := func(owner string, r *grammar.Rule) {
		content, prec, imm := lexicalContent(r)
		key := tokenKey(content, imm)
		if idx, ok := c.tokenByKey[key]; ok {
			if prec > c.tokens[idx].prec {
				c.tokens[idx].prec = prec
			}
			return
		}
		t := tokenInfo{content: content, prec: prec, immediate: imm}
		if content.Kind == grammar.KindString {
			t.name = content.Value
			t.visible = true
		} else {
			anonCount[owner]++
			t.name = "_" + trimUnderscore(owner) + "_token" + strconv.Itoa(anonCount[owner])
		}
		c.tokenByKey[key] = len(c.tokens)
		c.tokens = append(c.tokens, t)
	}

	for _, def := range c.rules {
		if tokenRule[def.Name] {
			ensureNamed(def.Name)
			continue
		}
		def.Rule.Walk(func(x *grammar.Rule) bool {
			switch {
			case x.IsLexical():
				ensureAnon(def.Name, x)
				return false
			case x.Kind == grammar.KindSymbol && tokenRule[x.Value]:
				ensureNamed(x.Value)
			}
			return true
		})
	}

	for _, e := range g.Extras {
		switch {
		case e.Kind == grammar.KindSymbol && tokenRule[e.Value]:
			c.tokens[ensureNamed(e.Value)].extra = true
		case e.Kind == grammar.KindSymbol:
			if _, ok := externalByName[e.Value]; ok {
				externals[externalByName[e.Value]].extra = true
				continue
			}
			return grammarErrorf(e.Value, KindInvalidGrammar, "extras must be tokens")
		case e.IsLexical():
			c.separators = append(c.separators, e)
		default:
			return grammarErrorf("", KindInvalidGrammar, "extras must be tokens, got %s", e)
		}
	}

	// External tokens follow the lexical ones.
	lexCount := len(c.tokens)
	for i, t := range externals {
		c.tokens = append(c.tokens, t)
		if t.named || grammar.IsHidden(t.name) {
			if tokenRule[t.name] {
				return grammarErrorf(t.name, KindDuplicateRule, "external token shadows a token rule")
			}
			c.classes[t.name] = ruleClass{token: lexCount + i, variable: -1}
		}
	}

	for _, def := range c.rules {
		if _, ok := c.classes[def.Name]; !ok {
			c.classes[def.Name] = ruleClass{token: -1, variable: -1}
		}
	}
	if g.Word != "" {
		c.wordToken = c.classes[g.Word].token
	}
	for _, s := range g.Supertypes {
		if c.classes[s].token >= 0 {
			return grammarErrorf(s, KindInvalidGrammar, "supertype must be a nonterminal")
		}
	}
	return nil
}

func trimUnderscore(s string) string {
	for len(s) > 0 && s[0] == '_' {
		s = s[1:]
	}
	return s
}

// symbol numbering: 0 is the end token, tokens follow, then nonterminals.

func (c *compiler) tokenSymbol(idx int) int { return 1 + idx }

func (c *compiler) terminalCount() int { return 1 + len(c.tokens) }

func (c *compiler) varSymbol(idx int) int { return c.terminalCount() + idx }

func (c *compiler) isTerminal(sym int) bool { return sym < c.terminalCount() }

// symbolCount counts grammar symbols, excluding alias-only symbols.
func (c *compiler) symbolCount() int { return c.terminalCount() + len(c.vars) }

func (c *compiler) symbolName(sym int) string {
	switch {
	case sym == 0:
		return "end"
	case c.isTerminal(sym):
		return c.tokens[sym-1].name
	case sym-c.terminalCount() < len(c.vars):
		return c.vars[sym-c.terminalCount()].name
	}
	return "?"
}
