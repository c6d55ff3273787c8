package sitter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// queryParser is a recursive-descent parser for tree-sitter query syntax.
type queryParser struct {
	input string
	pos   int
	lang  *Language
	q     *Query

	pattern *queryPattern // pattern whose predicates are being collected
}

func (p *queryParser) errorf(kind QueryErrorKind, at int, format string, args ...any) *QueryError {
	row, col := 0, 0
	for i := 0; i < at && i < len(p.input); i++ {
		if p.input[i] == '\n' {
			row++
			col = 0
		} else {
			col++
		}
	}
	return &QueryError{Offset: at, Row: row, Column: col, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (p *queryParser) parse() error {
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) {
			return nil
		}
		if p.peekPredicate() {
			// A predicate after a top-level pattern belongs to it.
			if p.pattern == nil {
				return p.errorf(QueryErrorSyntax, p.pos, "predicate outside of a pattern")
			}
			if err := p.parsePredicate(); err != nil {
				return err
			}
			continue
		}
		start := p.pos
		pat := &queryPattern{offset: start}
		p.pattern = pat
		root, err := p.parseUnit()
		if err != nil {
			return err
		}
		if root.field != 0 {
			return p.errorf(QueryErrorStructure, start, "field on a top-level pattern")
		}
		// ((node) (#pred)) is a single node with predicates.
		for root.kind == patGroup && len(root.children) == 1 && len(root.captures) == 0 && root.quant == quantOne {
			root = root.children[0]
		}
		if root.kind != patGroup && root.quant != quantOne {
			// A quantified top-level pattern matches a run of siblings.
			root = &patternNode{kind: patGroup, children: []*patternNode{root}}
		}
		if root.kind == patGroup && len(root.children) == 0 {
			return p.errorf(QueryErrorStructure, start, "empty pattern")
		}
		pat.root = root
		p.q.patterns = append(p.q.patterns, pat)
	}
}

func (p *queryParser) peekPredicate() bool {
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return false
	}
	save := p.pos
	p.pos++
	p.skipWhitespaceAndComments()
	ok := p.pos < len(p.input) && p.input[p.pos] == '#'
	p.pos = save
	return ok
}

// parseUnit parses one pattern with its quantifier and captures.
func (p *queryParser) parseUnit() (*patternNode, error) {
	p.skipWhitespaceAndComments()
	if p.pos >= len(p.input) {
		return nil, p.errorf(QueryErrorSyntax, p.pos, "unexpected end of query")
	}
	start := p.pos
	var (
		pn  *patternNode
		err error
	)
	switch ch := p.input[p.pos]; {
	case ch == '(':
		pn, err = p.parseParenthesized()
	case ch == '[':
		pn, err = p.parseAlternation()
	case ch == '"':
		pn, err = p.parseStringPattern()
	case ch == '_' && !p.identContinuesAt(p.pos+1):
		p.pos++
		pn = &patternNode{kind: patWildcard}
	case isIdentStart(ch):
		// field: pattern
		name := p.readIdentifier()
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) || p.input[p.pos] != ':' {
			return nil, p.errorf(QueryErrorSyntax, start, "bare identifier %q, expected field or pattern", name)
		}
		p.pos++
		fid, ok := p.lang.FieldByName(name)
		if !ok {
			return nil, p.errorf(QueryErrorField, start, "unknown field %q", name)
		}
		child, err := p.parseUnit()
		if err != nil {
			return nil, err
		}
		if child.field != 0 {
			return nil, p.errorf(QueryErrorStructure, start, "pattern has two fields")
		}
		child.field = fid
		return child, nil
	default:
		return nil, p.errorf(QueryErrorSyntax, p.pos, "unexpected character %q", ch)
	}
	if err != nil {
		return nil, err
	}
	if err := p.parseSuffix(pn); err != nil {
		return nil, err
	}
	return pn, nil
}

// parseSuffix reads an optional quantifier and any number of captures.
func (p *queryParser) parseSuffix(pn *patternNode) error {
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) {
			return nil
		}
		switch p.input[p.pos] {
		case '?', '*', '+':
			if pn.quant != quantOne {
				return p.errorf(QueryErrorSyntax, p.pos, "repeated quantifier")
			}
			pn.quant = map[byte]quantifier{'?': quantZeroOrOne, '*': quantZeroOrMore, '+': quantOneOrMore}[p.input[p.pos]]
			p.pos++
		case '@':
			idx, err := p.readCapture()
			if err != nil {
				return err
			}
			pn.captures = append(pn.captures, idx)
		default:
			return nil
		}
	}
}

func (p *queryParser) parseParenthesized() (*patternNode, error) {
	open := p.pos
	p.pos++ // '('
	p.skipWhitespaceAndComments()
	if p.pos >= len(p.input) {
		return nil, p.errorf(QueryErrorSyntax, open, "unclosed parenthesis")
	}
	switch ch := p.input[p.pos]; {
	case ch == '(' || ch == '[' || ch == '"' || ch == '.' || ch == ')':
		return p.parseGroup(open)
	case ch == '_' && !p.identContinuesAt(p.pos+1):
		p.pos++
		pn := &patternNode{kind: patWildcardNamed}
		return pn, p.parseChildren(pn, ')')
	case isIdentStart(ch):
	default:
		return nil, p.errorf(QueryErrorSyntax, p.pos, "unexpected character %q", ch)
	}

	nameStart := p.pos
	name := p.readIdentifier()
	pn := &patternNode{}
	switch name {
	case "ERROR":
		pn.kind = patError
	case "MISSING":
		pn.kind = patMissing
		p.skipWhitespaceAndComments()
		if p.pos < len(p.input) && p.input[p.pos] != ')' {
			at := p.pos
			var (
				target string
				named  bool
			)
			if p.input[p.pos] == '"' {
				s, err := p.readString()
				if err != nil {
					return nil, err
				}
				target = s
			} else {
				target = p.readIdentifier()
				named = true
			}
			if target == "" {
				return nil, p.errorf(QueryErrorSyntax, at, "expected node type after MISSING")
			}
			pn.symbols = p.symbolsNamed(target, named)
			if len(pn.symbols) == 0 {
				return nil, p.errorf(QueryErrorNodeType, at, "unknown node type %q", target)
			}
		}
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return nil, p.errorf(QueryErrorSyntax, p.pos, "expected ')' after MISSING pattern")
		}
		p.pos++
		return pn, nil
	default:
		pn.kind = patNode
		syms, err := p.resolveNodeType(name, nameStart)
		if err != nil {
			return nil, err
		}
		pn.symbols = syms
	}
	return pn, p.parseChildren(pn, ')')
}

// resolveNodeType resolves "type" or "supertype/subtype" to the symbols a
// node may carry.
func (p *queryParser) resolveNodeType(name string, at int) ([]Symbol, error) {
	super, sub, isPath := strings.Cut(name, "/")
	if !isPath {
		syms := p.symbolsNamed(name, true)
		if len(syms) == 0 {
			return nil, p.errorf(QueryErrorNodeType, at, "unknown node type %q", name)
		}
		var out []Symbol
		for _, s := range syms {
			out = append(out, s)
			out = append(out, p.subtypesOf(s)...)
		}
		return out, nil
	}
	supers := p.symbolsNamed(super, true)
	if len(supers) == 0 {
		return nil, p.errorf(QueryErrorNodeType, at, "unknown node type %q", super)
	}
	subs := p.symbolsNamed(sub, true)
	if len(subs) == 0 {
		return nil, p.errorf(QueryErrorNodeType, at+len(super)+1, "unknown node type %q", sub)
	}
	var out []Symbol
	for _, s := range subs {
		for _, sp := range supers {
			if containsSymbol(p.subtypesOf(sp), s) {
				out = append(out, s)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, p.errorf(QueryErrorStructure, at, "%q is not a subtype of %q", sub, super)
	}
	return out, nil
}

// subtypesOf returns the transitive subtypes of a supertype symbol.
func (p *queryParser) subtypesOf(sym Symbol) []Symbol {
	var out []Symbol
	seen := map[Symbol]bool{sym: true}
	work := []Symbol{sym}
	for len(work) > 0 {
		s := work[len(work)-1]
		work = work[:len(work)-1]
		for _, sub := range p.lang.Supertypes[s] {
			if seen[sub] {
				continue
			}
			seen[sub] = true
			out = append(out, sub)
			work = append(work, sub)
		}
	}
	return out
}

// symbolsNamed returns every symbol with the given name and namedness;
// aliases may give several symbols the same name.
func (p *queryParser) symbolsNamed(name string, named bool) []Symbol {
	var out []Symbol
	for i, n := range p.lang.SymbolNames {
		if n == name && p.lang.IsNamed(Symbol(i)) == named {
			out = append(out, Symbol(i))
		}
	}
	return out
}

func containsSymbol(syms []Symbol, s Symbol) bool {
	for _, x := range syms {
		if x == s {
			return true
		}
	}
	return false
}

func (p *queryParser) parseGroup(open int) (*patternNode, error) {
	pn := &patternNode{kind: patGroup}
	if err := p.parseChildren(pn, ')'); err != nil {
		return nil, err
	}
	if len(pn.children) == 0 {
		return nil, p.errorf(QueryErrorStructure, open, "empty group")
	}
	return pn, nil
}

// parseChildren parses the body of a node or group up to and including
// the closing delimiter.
func (p *queryParser) parseChildren(pn *patternNode, close byte) error {
	anchorNext := false
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) {
			return p.errorf(QueryErrorSyntax, p.pos, "expected %q", close)
		}
		switch ch := p.input[p.pos]; {
		case ch == close:
			p.pos++
			if anchorNext {
				if len(pn.children) == 0 {
					return p.errorf(QueryErrorStructure, p.pos-1, "anchor without child pattern")
				}
				pn.anchorEnd = true
			}
			return nil
		case ch == '.':
			if pn.kind == patGroup && len(pn.children) == 0 {
				return p.errorf(QueryErrorStructure, p.pos, "anchor at start of group")
			}
			p.pos++
			anchorNext = true
		case ch == '!':
			if pn.kind == patGroup {
				return p.errorf(QueryErrorStructure, p.pos, "negated field in group")
			}
			p.pos++
			at := p.pos
			name := p.readIdentifier()
			fid, ok := p.lang.FieldByName(name)
			if !ok {
				return p.errorf(QueryErrorField, at, "unknown field %q", name)
			}
			pn.negated = append(pn.negated, fid)
		case ch == '@':
			// Captures may appear inside the parentheses, after the children.
			idx, err := p.readCapture()
			if err != nil {
				return err
			}
			pn.captures = append(pn.captures, idx)
		case p.peekPredicate():
			if err := p.parsePredicate(); err != nil {
				return err
			}
		default:
			child, err := p.parseUnit()
			if err != nil {
				return err
			}
			if anchorNext {
				child.anchored = true
				if child.kind == patGroup {
					child.children[0].anchored = true
				}
				anchorNext = false
			}
			pn.children = append(pn.children, child)
		}
	}
}

func (p *queryParser) parseAlternation() (*patternNode, error) {
	open := p.pos
	p.pos++ // '['
	pn := &patternNode{kind: patAlternation}
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) {
			return nil, p.errorf(QueryErrorSyntax, open, "unclosed alternation")
		}
		if p.input[p.pos] == ']' {
			p.pos++
			break
		}
		if p.peekPredicate() {
			if err := p.parsePredicate(); err != nil {
				return nil, err
			}
			continue
		}
		alt, err := p.parseUnit()
		if err != nil {
			return nil, err
		}
		pn.alts = append(pn.alts, alt)
	}
	if len(pn.alts) == 0 {
		return nil, p.errorf(QueryErrorStructure, open, "empty alternation")
	}
	return pn, nil
}

func (p *queryParser) parseStringPattern() (*patternNode, error) {
	at := p.pos
	text, err := p.readString()
	if err != nil {
		return nil, err
	}
	syms := p.symbolsNamed(text, false)
	if len(syms) == 0 {
		return nil, p.errorf(QueryErrorNodeType, at, "unknown node type %q", text)
	}
	return &patternNode{kind: patString, text: text, symbols: syms}, nil
}

func (p *queryParser) readCapture() (int, error) {
	at := p.pos
	p.pos++ // '@'
	name := p.readName(isCaptureRune)
	if name == "" {
		return 0, p.errorf(QueryErrorSyntax, at, "empty capture name")
	}
	return p.ensureCapture(name), nil
}

func (p *queryParser) ensureCapture(name string) int {
	if i, ok := p.q.CaptureIndex(name); ok {
		return i
	}
	p.q.captures = append(p.q.captures, name)
	return len(p.q.captures) - 1
}

// readIdentifier reads a node type or field name.
func (p *queryParser) readIdentifier() string { return p.readName(isIdentRune) }

func (p *queryParser) readName(accept func(rune) bool) string {
	start := p.pos
	for p.pos < len(p.input) {
		r, size := utf8.DecodeRuneInString(p.input[p.pos:])
		if !accept(r) {
			break
		}
		p.pos += size
	}
	return p.input[start:p.pos]
}

func (p *queryParser) identContinuesAt(i int) bool {
	if i >= len(p.input) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(p.input[i:])
	return isIdentRune(r)
}

func (p *queryParser) readString() (string, error) {
	start := p.pos
	if p.pos >= len(p.input) || p.input[p.pos] != '"' {
		return "", p.errorf(QueryErrorSyntax, p.pos, "expected string")
	}
	p.pos++
	var b strings.Builder
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		switch ch {
		case '"':
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return "", p.errorf(QueryErrorSyntax, start, "unterminated string")
			}
			switch esc := p.input[p.pos]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(esc)
			}
			p.pos++
		default:
			b.WriteByte(ch)
			p.pos++
		}
	}
	return "", p.errorf(QueryErrorSyntax, start, "unterminated string")
}

func (p *queryParser) skipWhitespaceAndComments() {
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		switch {
		case ch == ';':
			for p.pos < len(p.input) && p.input[p.pos] != '\n' {
				p.pos++
			}
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			p.pos++
		default:
			return
		}
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch >= 0x80 || unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '-' || r == '/' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isCaptureRune(r rune) bool { return r == '.' || isIdentRune(r) }

func isPredicateRune(r rune) bool { return r == '?' || r == '!' || isCaptureRune(r) }
