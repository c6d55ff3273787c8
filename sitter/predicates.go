package sitter

import (
	"slices"
	"time"

	"github.com/dlclark/regexp2"
)

// regexTimeout bounds a single #match? evaluation.
const regexTimeout = 250 * time.Millisecond

type predicateKind uint8

const (
	predEq predicateKind = iota
	predMatch
	predAnyOf
)

// queryPredicate is a text filter evaluated after structural matching.
type queryPredicate struct {
	kind    predicateKind
	negated bool
	any     bool // quantified captures need only one node to pass

	capture int
	other   int // capture compared against, or -1
	literal string
	values  []string
	re      *regexp2.Regexp
}

// parsePredicate parses (#name args...) into the current pattern.
func (p *queryParser) parsePredicate() error {
	open := p.pos
	p.pos++ // '('
	p.skipWhitespaceAndComments()
	p.pos++ // '#'
	nameAt := p.pos
	name := p.readName(isPredicateRune)

	type arg struct {
		capture int // -1 for strings
		text    string
		at      int
	}
	var args []arg
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) {
			return p.errorf(QueryErrorSyntax, open, "unclosed predicate")
		}
		ch := p.input[p.pos]
		if ch == ')' {
			p.pos++
			break
		}
		at := p.pos
		switch {
		case ch == '@':
			p.pos++
			cname := p.readName(isCaptureRune)
			idx, ok := p.q.CaptureIndex(cname)
			if !ok {
				return p.errorf(QueryErrorCapture, at, "unknown capture @%s", cname)
			}
			args = append(args, arg{capture: idx, text: cname, at: at})
		case ch == '"':
			s, err := p.readString()
			if err != nil {
				return err
			}
			args = append(args, arg{capture: -1, text: s, at: at})
		default:
			s := p.readName(isCaptureRune)
			if s == "" {
				return p.errorf(QueryErrorSyntax, at, "unexpected character %q in predicate", ch)
			}
			args = append(args, arg{capture: -1, text: s, at: at})
		}
	}

	pat := p.pattern
	needCapture := func(n int) error {
		if len(args) < n {
			return p.errorf(QueryErrorPredicate, nameAt, "#%s expects at least %d arguments", name, n)
		}
		if args[0].capture < 0 {
			return p.errorf(QueryErrorPredicate, args[0].at, "#%s expects a capture as first argument", name)
		}
		return nil
	}

	switch name {
	case "eq?", "not-eq?", "any-eq?", "any-not-eq?":
		if err := needCapture(2); err != nil {
			return err
		}
		if len(args) != 2 {
			return p.errorf(QueryErrorPredicate, nameAt, "#%s expects 2 arguments", name)
		}
		pred := queryPredicate{
			kind:    predEq,
			negated: name == "not-eq?" || name == "any-not-eq?",
			any:     name == "any-eq?" || name == "any-not-eq?",
			capture: args[0].capture,
			other:   args[1].capture,
			literal: args[1].text,
		}
		pat.predicates = append(pat.predicates, pred)
	case "match?", "not-match?", "any-match?", "any-not-match?":
		if err := needCapture(2); err != nil {
			return err
		}
		if len(args) != 2 || args[1].capture >= 0 {
			return p.errorf(QueryErrorPredicate, nameAt, "#%s expects a capture and a string", name)
		}
		re, err := regexp2.Compile(args[1].text, regexp2.None)
		if err != nil {
			return p.errorf(QueryErrorPredicate, args[1].at, "invalid regex: %v", err)
		}
		re.MatchTimeout = regexTimeout
		pat.predicates = append(pat.predicates, queryPredicate{
			kind:    predMatch,
			negated: name == "not-match?" || name == "any-not-match?",
			any:     name == "any-match?" || name == "any-not-match?",
			capture: args[0].capture,
			other:   -1,
			re:      re,
		})
	case "any-of?", "not-any-of?":
		if err := needCapture(2); err != nil {
			return err
		}
		pred := queryPredicate{
			kind:    predAnyOf,
			negated: name == "not-any-of?",
			capture: args[0].capture,
			other:   -1,
		}
		for _, a := range args[1:] {
			if a.capture >= 0 {
				return p.errorf(QueryErrorPredicate, a.at, "#%s expects string values", name)
			}
			pred.values = append(pred.values, a.text)
		}
		pat.predicates = append(pat.predicates, pred)
	case "set!":
		// (#set! key [value]) or (#set! @capture key [value])
		if len(args) > 0 && args[0].capture >= 0 {
			args = args[1:]
		}
		if len(args) == 0 || len(args) > 2 {
			return p.errorf(QueryErrorPredicate, nameAt, "#set! expects a key and an optional value")
		}
		if pat.properties == nil {
			pat.properties = make(map[string]string)
		}
		val := ""
		if len(args) == 2 {
			val = args[1].text
		}
		pat.properties[args[0].text] = val
	case "is?", "is-not?":
		if len(args) > 0 && args[0].capture >= 0 {
			args = args[1:]
		}
		if len(args) == 0 || len(args) > 2 {
			return p.errorf(QueryErrorPredicate, nameAt, "#%s expects a property and an optional value", name)
		}
		if pat.assertions == nil {
			pat.assertions = make(map[string]assertion)
		}
		a := assertion{positive: name == "is?"}
		if len(args) == 2 {
			a.value = args[1].text
		}
		pat.assertions[args[0].text] = a
	default:
		return p.errorf(QueryErrorPredicate, nameAt, "unknown predicate #%s", name)
	}
	return nil
}

// satisfied reports whether every predicate holds for the captures.
func (q *Query) satisfied(pattern int, caps []QueryCapture, source []byte) bool {
	preds := q.patterns[pattern].predicates
	if len(preds) == 0 {
		return true
	}
	texts := func(capture int) []string {
		var out []string
		for _, c := range caps {
			if c.Index == capture {
				out = append(out, captureText(c.Node, source))
			}
		}
		return out
	}
	for _, pred := range preds {
		subject := texts(pred.capture)
		if len(subject) == 0 {
			continue
		}
		var test func(string) bool
		switch pred.kind {
		case predEq:
			if pred.other >= 0 {
				others := texts(pred.other)
				if len(others) == 0 {
					continue
				}
				test = func(s string) bool { return allEqual(others) && s == others[0] }
			} else {
				lit := pred.literal
				test = func(s string) bool { return s == lit }
			}
		case predMatch:
			re := pred.re
			test = func(s string) bool {
				ok, err := re.MatchString(s)
				if err != nil {
					queryLog.Warningf("regex %q: %s", re.String(), err)
					return false
				}
				return ok
			}
		case predAnyOf:
			values := pred.values
			test = func(s string) bool { return slices.Contains(values, s) }
		}
		if !evalPredicate(subject, test, pred.negated, pred.any) {
			return false
		}
	}
	return true
}

func evalPredicate(subject []string, test func(string) bool, negated, anyNode bool) bool {
	if anyNode {
		for _, s := range subject {
			if test(s) != negated {
				return true
			}
		}
		return false
	}
	for _, s := range subject {
		if test(s) == negated {
			return false
		}
	}
	return true
}

func allEqual(ss []string) bool {
	for _, s := range ss[1:] {
		if s != ss[0] {
			return false
		}
	}
	return true
}

func captureText(n *Node, source []byte) string {
	if source == nil {
		return ""
	}
	return n.Text(source)
}
