// Package json is a grammar for JSON documents, with comments allowed.
package json

import "github.com/odvcencio/arbor/grammar"

// Grammar returns a fresh copy of the JSON grammar.
func Grammar() *grammar.Grammar {
	g := grammar.New("json")
	g.Extras = []*grammar.Rule{grammar.Pat(`\s`), grammar.Sym("comment")}
	g.Supertypes = []string{"_value"}

	g.Define("document", grammar.Repeat(grammar.Sym("_value")))
	g.Define("_value", grammar.Choice(
		grammar.Sym("object"),
		grammar.Sym("array"),
		grammar.Sym("number"),
		grammar.Sym("string"),
		grammar.Sym("true"),
		grammar.Sym("false"),
		grammar.Sym("null"),
	))
	g.Define("object", grammar.Seq(grammar.Str("{"), grammar.CommaSep(grammar.Sym("pair")), grammar.Str("}")))
	g.Define("pair", grammar.Seq(
		grammar.Field("key", grammar.Sym("string")),
		grammar.Str(":"),
		grammar.Field("value", grammar.Sym("_value")),
	))
	g.Define("array", grammar.Seq(grammar.Str("["), grammar.CommaSep(grammar.Sym("_value")), grammar.Str("]")))
	g.Define("string", grammar.Choice(
		grammar.Seq(grammar.Str(`"`), grammar.Str(`"`)),
		grammar.Seq(grammar.Str(`"`), grammar.Sym("_string_content"), grammar.Str(`"`)),
	))
	g.Define("_string_content", grammar.Repeat1(grammar.Choice(
		grammar.Sym("string_content"),
		grammar.Sym("escape_sequence"),
	)))
	g.Define("string_content", grammar.ImmediateToken(grammar.Prec(1, grammar.Pat(`[^\\"\n]+`))))
	g.Define("escape_sequence", grammar.ImmediateToken(grammar.Seq(
		grammar.Str(`\`),
		grammar.Pat(`(["\\/bfnrt]|u[0-9a-fA-F]{4})`),
	)))
	g.Define("number", grammar.Token(grammar.Seq(
		grammar.Optional(grammar.Str("-")),
		grammar.Pat(`(0|[1-9][0-9]*)`),
		grammar.Optional(grammar.Pat(`\.[0-9]+`)),
		grammar.Optional(grammar.Pat(`[eE][+-]?[0-9]+`)),
	)))
	g.Define("true", grammar.Str("true"))
	g.Define("false", grammar.Str("false"))
	g.Define("null", grammar.Str("null"))
	g.Define("comment", grammar.Token(grammar.Choice(
		grammar.Seq(grammar.Str("//"), grammar.Pat(`[^\n]*`)),
		grammar.Seq(grammar.Str("/*"), grammar.Pat(`[^*]*\*+([^/*][^*]*\*+)*`), grammar.Str("/")),
	)))
	return g
}
