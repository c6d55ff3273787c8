package sitter_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/odvcencio/arbor/generate"
	"github.com/odvcencio/arbor/grammar"
	"github.com/odvcencio/arbor/sitter"
)

// Test languages are compiled from small grammars once per test binary.

func digitsGrammar() *grammar.Grammar {
	g := grammar.New("digits")
	g.Define("number", grammar.Repeat1(grammar.Sym("digit")))
	g.Define("digit", grammar.Pat(`[0-9]`))
	return g
}

func parenGrammar() *grammar.Grammar {
	g := grammar.New("paren")
	g.Define("parenthesized", grammar.Seq(grammar.Str("("), grammar.Sym("_expression"), grammar.Str(")")))
	g.Define("_expression", grammar.Choice(grammar.Sym("sum"), grammar.Sym("number")))
	g.Define("sum", grammar.PrecLeft(1, grammar.Seq(
		grammar.Field("left", grammar.Sym("_expression")),
		grammar.Str("+"),
		grammar.Field("right", grammar.Sym("_expression")),
	)))
	g.Define("number", grammar.Pat(`[0-9]+`))
	return g
}

func listGrammar() *grammar.Grammar {
	g := grammar.New("list")
	g.Define("list", grammar.Repeat(grammar.Sym("number")))
	g.Define("number", grammar.Pat(`[0-9]+`))
	return g
}

// assignGrammar is a small statement language used by the query, edit and
// role tests:
//
//	x = 1 + y;   // comment
//	{ z = "s"; }
func assignGrammar() *grammar.Grammar {
	g := grammar.New("assign")
	g.Extras = []*grammar.Rule{grammar.Sym("comment"), grammar.Pat(`\s`)}
	g.Word = "identifier"
	g.Define("program", grammar.Repeat(grammar.Sym("_statement")))
	g.Define("_statement", grammar.Choice(grammar.Sym("assignment"), grammar.Sym("block"), grammar.Sym("return_statement")))
	g.Define("assignment", grammar.Seq(
		grammar.Field("name", grammar.Sym("identifier")),
		grammar.Str("="),
		grammar.Field("value", grammar.Sym("_expression")),
		grammar.Str(";"),
	))
	g.Define("block", grammar.Seq(grammar.Str("{"), grammar.Repeat(grammar.Sym("_statement")), grammar.Str("}")))
	g.Define("return_statement", grammar.Seq(grammar.Str("return"), grammar.Sym("_expression"), grammar.Str(";")))
	g.Define("_expression", grammar.Choice(
		grammar.Sym("binary"),
		grammar.Sym("call"),
		grammar.Sym("identifier"),
		grammar.Sym("number"),
		grammar.Sym("string"),
	))
	g.Define("binary", grammar.Choice(
		grammar.PrecLeft(1, grammar.Seq(
			grammar.Field("left", grammar.Sym("_expression")),
			grammar.Field("operator", grammar.Str("+")),
			grammar.Field("right", grammar.Sym("_expression")),
		)),
		grammar.PrecLeft(2, grammar.Seq(
			grammar.Field("left", grammar.Sym("_expression")),
			grammar.Field("operator", grammar.Str("*")),
			grammar.Field("right", grammar.Sym("_expression")),
		)),
	))
	g.Define("call", grammar.Prec(3, grammar.Seq(
		grammar.Field("function", grammar.Sym("identifier")),
		grammar.Str("("),
		grammar.Optional(grammar.CommaSep1(grammar.Sym("_expression"))),
		grammar.Str(")"),
	)))
	g.Define("identifier", grammar.Pat(`[a-z_][a-z0-9_]*`))
	g.Define("number", grammar.Pat(`[0-9]+`))
	g.Define("string", grammar.Pat(`"[^"]*"`))
	g.Define("comment", grammar.Token(grammar.Seq(grammar.Str("//"), grammar.Pat(`[^\n]*`))))
	return g
}

var (
	languagesMu sync.Mutex
	languages   = map[string]*sitter.Language{}
)

func compiled(t testing.TB, build func() *grammar.Grammar) *sitter.Language {
	t.Helper()
	g := build()
	languagesMu.Lock()
	defer languagesMu.Unlock()
	if lang, ok := languages[g.Name]; ok {
		return lang
	}
	res, err := generate.Compile(g)
	if err != nil {
		t.Fatalf("compile %s: %v", g.Name, err)
	}
	languages[g.Name] = res.Language
	return res.Language
}

func parse(t testing.TB, lang *sitter.Language, src string) *sitter.Tree {
	t.Helper()
	tree := sitter.NewParser(lang).Parse([]byte(src))
	if tree.RootNode() == nil {
		t.Fatalf("parse %q: nil root", src)
	}
	return tree
}

// dump lists every visible node with its field and range, one per line,
// in pre-order.
func dump(n *sitter.Node) []string {
	var out []string
	var walk func(n *sitter.Node, depth int)
	walk = func(n *sitter.Node, depth int) {
		kind := n.Type()
		if !n.IsNamed() {
			kind = fmt.Sprintf("%q", kind)
		}
		if n.IsMissing() {
			kind = "MISSING " + kind
		}
		line := fmt.Sprintf("%s%s [%d,%d) %v-%v", strings.Repeat("  ", depth), kind,
			n.StartByte(), n.EndByte(), n.StartPoint(), n.EndPoint())
		if f := n.FieldName(); f != "" {
			line = strings.Repeat("  ", depth) + f + ": " + strings.TrimLeft(line, " ")
		}
		out = append(out, line)
		for _, c := range n.Children() {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return out
}
