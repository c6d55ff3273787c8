// Package hare is a grammar for the Hare programming language
// (https://harelang.org), written in the arbor grammar DSL.
package hare

import "github.com/odvcencio/arbor/grammar"

// Operator precedences, lowest first.
const (
	precParentheses = iota - 1
	precAssignment
	precLogicalXor
	precLogicalOr
	precLogicalAnd
	precBitwiseOr
	precBitwiseXor
	precBitwiseAnd
	precEquality
	precCompare
	precShift
	precAdd
	precMultiply
	precCast
	precUnary
	precCall
	precMember
)

var builtinTypes = []string{
	"i8", "i16", "i32", "i64",
	"u8", "u16", "u32", "u64",
	"int", "uint", "size", "uintptr",
	"char", "f32", "f64", "rune",
	"str", "bool", "void",
}

var binaryOperators = []struct {
	op   string
	prec int
}{
	{"+", precAdd},
	{"-", precAdd},
	{"*", precMultiply},
	{"/", precMultiply},
	{"%", precMultiply},
	{"||", precLogicalOr},
	{"&&", precLogicalAnd},
	{"^^", precLogicalXor},
	{"|", precBitwiseOr},
	{"&", precBitwiseAnd},
	{"^", precBitwiseXor},
	{"==", precEquality},
	{"!=", precEquality},
	{">", precCompare},
	{">=", precCompare},
	{"<=", precCompare},
	{"<", precCompare},
	{"<<", precShift},
	{">>", precShift},
}

// optionalCommaSep matches zero or more comma separated r with an optional
// trailing comma.
func optionalCommaSep(r *grammar.Rule) *grammar.Rule {
	return grammar.Seq(grammar.CommaSep(r), grammar.Optional(grammar.Str(",")))
}

// optionalCommaSep1 matches one or more comma separated r with an optional
// trailing comma.
func optionalCommaSep1(r *grammar.Rule) *grammar.Rule {
	return grammar.Seq(grammar.CommaSep1(r), grammar.Optional(grammar.Str(",")))
}

func strs(words ...string) *grammar.Rule {
	rules := make([]*grammar.Rule, len(words))
	for i, w := range words {
		rules[i] = grammar.Str(w)
	}
	return grammar.Choice(rules...)
}

// Grammar returns a fresh copy of the Hare grammar.
func Grammar() *grammar.Grammar {
	g := grammar.New("hare")
	g.Conflicts = [][]string{{"builtin_type", "void"}}
	g.Extras = []*grammar.Rule{grammar.Sym("comment"), grammar.Pat(`\s`)}
	g.Supertypes = []string{"declaration", "expression", "literal", "statement", "type"}
	g.Word = "identifier"

	defineModule(g)
	defineTypes(g)
	defineStatements(g)
	defineExpressions(g)
	defineLiterals(g)

	g.Define("scoped_type_identifier", grammar.Seq(
		grammar.Field("path", grammar.Choice(grammar.Sym("identifier"), grammar.Sym("scoped_type_identifier"))),
		grammar.Str("::"),
		grammar.Field("name", grammar.Sym("identifier")),
	))
	g.Define("identifier", grammar.Pat(`[a-zA-Z_][a-zA-Z0-9_]*`))
	g.Define("comment", grammar.Token(grammar.Seq(grammar.Str("//"), grammar.Pat(`(\\(.|\r?\n)|[^\\\n])*`))))
	return g
}

func defineModule(g *grammar.Grammar) {
	g.Define("module", grammar.Seq(grammar.Optional(grammar.Sym("imports")), grammar.Optional(grammar.Sym("declarations"))))
	g.Define("imports", grammar.Repeat1(grammar.Sym("use_statement")))
	g.Define("use_statement", grammar.Seq(
		grammar.Str("use"),
		grammar.Choice(
			grammar.Seq(grammar.Sym("identifier"), grammar.Str("="), grammar.Sym("identifier")),
			grammar.Seq(
				grammar.Choice(grammar.Sym("identifier"), grammar.Sym("scoped_type_identifier")),
				grammar.Optional(grammar.Seq(
					grammar.Str("::"),
					grammar.Choice(
						grammar.Seq(grammar.Str("{"), optionalCommaSep1(grammar.Sym("identifier")), grammar.Str("}")),
						grammar.Str("*"),
					),
				)),
			),
		),
		grammar.Str(";"),
	))
	g.Define("name_list", optionalCommaSep1(grammar.Sym("identifier")))
	g.Define("declarations", grammar.Repeat1(grammar.Sym("declaration")))
	g.Define("declaration", grammar.Choice(
		grammar.Sym("global_declaration"),
		grammar.Sym("constant_declaration"),
		grammar.Sym("type_declaration"),
		grammar.Sym("function_declaration"),
	))
	g.Define("global_declaration", grammar.Seq(
		grammar.Optional(grammar.Str("export")),
		grammar.Choice(grammar.Str("const"), grammar.Str("let")),
		grammar.CommaSep1(grammar.Sym("global_binding")),
		grammar.Str(";"),
	))
	g.Define("global_binding", grammar.Seq(
		grammar.Optional(grammar.Sym("declaration_attribute")),
		grammar.Sym("identifier"), grammar.Str(":"), grammar.Sym("type"),
		grammar.Optional(grammar.Seq(grammar.Str("="), grammar.Sym("expression"))),
	))
	g.Define("declaration_attribute", grammar.Seq(grammar.Str("@symbol"), grammar.Str("("), grammar.Sym("string"), grammar.Str(")")))
	g.Define("constant_declaration", grammar.Seq(
		grammar.Optional(grammar.Str("export")),
		grammar.Str("def"),
		grammar.CommaSep1(grammar.Seq(grammar.Sym("identifier"), grammar.Str(":"), grammar.Sym("type"), grammar.Str("="), grammar.Sym("expression"))),
		grammar.Str(";"),
	))
	g.Define("type_declaration", grammar.Seq(
		grammar.Optional(grammar.Str("export")),
		grammar.Str("type"),
		optionalCommaSep1(grammar.Seq(grammar.Sym("identifier"), grammar.Str("="), grammar.Sym("type"))),
		grammar.Str(";"),
	))
	g.Define("function_declaration", grammar.Seq(
		grammar.Optional(grammar.Str("export")),
		grammar.Repeat(grammar.Sym("function_attribute")),
		grammar.Str("fn"),
		grammar.Field("name", grammar.Sym("identifier")),
		grammar.Str("("),
		optionalCommaSep(grammar.Sym("parameter")),
		grammar.Str(")"),
		grammar.Field("returns", grammar.Optional(grammar.Sym("type"))),
		grammar.Optional(grammar.Seq(grammar.Str("="), grammar.Field("body", grammar.Sym("expression")))),
		grammar.Str(";"),
	))
	g.Define("function_attribute", grammar.Choice(
		grammar.Str("@fini"),
		grammar.Str("@init"),
		grammar.Str("@test"),
		grammar.Str("@noreturn"),
		grammar.Sym("declaration_attribute"),
	))
	g.Define("parameter", grammar.Seq(
		grammar.Choice(grammar.Sym("identifier"), grammar.Str("_")),
		grammar.Str(":"),
		grammar.Sym("type"),
		grammar.Optional(grammar.Str("...")),
	))
}

func defineTypes(g *grammar.Grammar) {
	g.Define("type", grammar.Choice(
		grammar.Sym("identifier"),
		grammar.Sym("scoped_type_identifier"),
		grammar.Sym("builtin_type"),
		grammar.Sym("pointer_type"),
		grammar.Sym("const_type"),
		grammar.Sym("error_type"),
		grammar.Sym("array_type"),
		grammar.Sym("enum_type"),
		grammar.Sym("slice_type"),
		grammar.Sym("struct_type"),
		grammar.Sym("tuple_type"),
		grammar.Sym("union_type"),
		grammar.Sym("tagged_union_type"),
		grammar.Sym("function_type"),
		grammar.Sym("unwrapped_type"),
	))
	g.Define("builtin_type", strs(builtinTypes...))
	g.Define("pointer_type", grammar.Seq(grammar.Optional(grammar.Str("nullable")), grammar.Str("*"), grammar.Sym("type")))
	g.Define("const_type", grammar.Seq(grammar.Str("const"), grammar.Sym("type")))
	g.Define("error_type", grammar.Seq(grammar.Str("!"), grammar.Sym("type")))
	g.Define("array_type", grammar.Seq(grammar.Str("["), grammar.Str("]"), grammar.Sym("type")))
	g.Define("enum_type", grammar.Seq(
		grammar.Str("enum"),
		grammar.Optional(grammar.Sym("builtin_type")),
		grammar.Str("{"),
		optionalCommaSep1(grammar.Sym("enum_field")),
		grammar.Str("}"),
	))
	g.Define("slice_type", grammar.Seq(
		grammar.Str("["),
		grammar.Field("size", grammar.Choice(grammar.Str("_"), grammar.Str("*"), grammar.Sym("expression"))),
		grammar.Str("]"),
		grammar.Sym("type"),
	))
	g.Define("struct_type", grammar.Seq(
		grammar.Str("struct"),
		grammar.Optional(grammar.Str("@packed")),
		grammar.Str("{"),
		optionalCommaSep1(grammar.Sym("field")),
		grammar.Str("}"),
	))
	g.Define("tuple_type", grammar.Seq(grammar.Str("("), grammar.CommaSep(grammar.Sym("type")), grammar.Str(")")))
	g.Define("union_type", grammar.Seq(grammar.Str("union"), grammar.Str("{"), optionalCommaSep1(grammar.Sym("field")), grammar.Str("}")))
	g.Define("tagged_union_type", grammar.Seq(grammar.Str("("), grammar.Sym("type"), grammar.Repeat1(grammar.Seq(grammar.Str("|"), grammar.Sym("type"))), grammar.Str(")")))
	g.Define("function_type", grammar.PrecRight(0, grammar.Seq(
		grammar.Optional(grammar.Sym("function_attribute")),
		grammar.Str("fn"),
		grammar.Str("("),
		optionalCommaSep(grammar.Sym("parameter")),
		grammar.Str(")"),
		grammar.Field("returns", grammar.Optional(grammar.Sym("type"))),
	)))
	g.Define("unwrapped_type", grammar.Seq(grammar.Str("..."), grammar.Sym("type")))
	g.Define("enum_field", grammar.Seq(grammar.Sym("identifier"), grammar.Optional(grammar.Seq(grammar.Str("="), grammar.Sym("expression")))))
	g.Define("field", grammar.Seq(
		grammar.Optional(grammar.Sym("offset_specifier")),
		grammar.Choice(
			grammar.Seq(grammar.Sym("identifier"), grammar.Str(":"), grammar.Sym("type")),
			grammar.Sym("struct_type"),
			grammar.Sym("union_type"),
			grammar.Sym("identifier"),
			grammar.Sym("scoped_type_identifier"),
		),
	))
	g.Define("offset_specifier", grammar.Seq(grammar.Str("@offset"), grammar.Str("("), grammar.Sym("expression"), grammar.Str(")")))
}

func defineStatements(g *grammar.Grammar) {
	g.Define("statement", grammar.Choice(
		grammar.Sym("break_statement"),
		grammar.Sym("defer_statement"),
		grammar.Sym("yield_statement"),
		grammar.Sym("static_operation"),
		grammar.Sym("let_declaration"),
		grammar.Sym("const_declaration"),
		grammar.Sym("expression_statement"),
	))
	g.Define("expression_statement", grammar.Seq(grammar.Sym("expression"), grammar.Str(";")))
	g.Define("block", grammar.Seq(grammar.Optional(grammar.Sym("label")), grammar.Str("{"), grammar.Repeat(grammar.Sym("statement")), grammar.Str("}")))
	g.Define("if_statement", grammar.PrecRight(0, grammar.Seq(
		grammar.Str("if"),
		grammar.Str("("),
		grammar.Field("condition", grammar.Sym("expression")),
		grammar.Str(")"),
		grammar.Field("consequence", grammar.Sym("expression")),
		grammar.Optional(grammar.Sym("else_statement")),
	)))
	g.Define("else_statement", grammar.PrecRight(0, grammar.Seq(grammar.Str("else"), grammar.Field("alternative", grammar.Sym("expression")))))
	g.Define("for_statement", grammar.PrecRight(0, grammar.Seq(
		grammar.Str("for"),
		grammar.Str("("),
		grammar.Optional(grammar.Seq(grammar.Sym("let_expression"), grammar.Str(";"))),
		grammar.Seq(
			grammar.Field("condition", grammar.Sym("expression")),
			grammar.Optional(grammar.Seq(grammar.Str(";"), grammar.Field("afterthought", grammar.Sym("expression")))),
		),
		grammar.Str(")"),
		grammar.Field("body", grammar.Sym("expression")),
	)))
	g.Define("label", grammar.Seq(grammar.Str(":"), grammar.Field("label", grammar.Sym("identifier"))))
	g.Define("break_statement", grammar.Seq(grammar.Str("break"), grammar.Optional(grammar.Sym("label")), grammar.Str(";")))
	g.Define("defer_statement", grammar.Seq(grammar.Str("defer"), grammar.Sym("statement")))
	g.Define("return_statement", grammar.PrecRight(0, grammar.Seq(grammar.Str("return"), grammar.Optional(grammar.Sym("expression")))))
	g.Define("yield_statement", grammar.Seq(
		grammar.Str("yield"),
		grammar.Optional(grammar.Choice(
			grammar.Seq(grammar.Sym("label"), grammar.Str(","), grammar.Sym("expression")),
			grammar.Sym("expression"),
		)),
		grammar.Str(";"),
	))
	g.Define("static_operation", grammar.Seq(grammar.Str("static"), grammar.Sym("expression"), grammar.Str(";")))
	g.Define("let_declaration", grammar.Seq(
		grammar.Optional(grammar.Str("static")),
		grammar.Str("let"),
		grammar.CommaSep1(grammar.Seq(
			grammar.Choice(grammar.Sym("identifier"), grammar.Sym("tuple_literal")),
			grammar.Optional(grammar.Seq(grammar.Str(":"), grammar.Sym("type"))),
			grammar.Optional(grammar.Seq(grammar.Str("="), grammar.Sym("expression"))),
		)),
		grammar.Str(";"),
	))
	g.Define("const_declaration", grammar.Seq(
		grammar.Optional(grammar.Str("static")),
		grammar.Str("const"),
		grammar.CommaSep1(grammar.Seq(
			grammar.Choice(grammar.Sym("identifier"), grammar.Sym("tuple_literal")),
			grammar.Optional(grammar.Seq(grammar.Str(":"), grammar.Sym("type"))),
			grammar.Str("="),
			grammar.Sym("expression"),
		)),
		grammar.Str(";"),
	))
}

func defineExpressions(g *grammar.Grammar) {
	g.Define("expression", grammar.PrecRight(0, grammar.Choice(
		grammar.Sym("assignment_expression"),
		grammar.Sym("update_expression"),
		grammar.Sym("unary_expression"),
		grammar.Sym("binary_expression"),
		grammar.Sym("size_expression"),
		grammar.Sym("call_expression"),
		grammar.Sym("error_assertion_expression"),
		grammar.Sym("cast_expression"),
		grammar.Sym("index_expression"),
		grammar.Sym("range_expression"),
		grammar.Sym("member_expression"),
		grammar.Sym("try_expression"),
		grammar.Sym("parenthesis_expression"),
		grammar.Sym("if_statement"),
		grammar.Sym("for_statement"),
		grammar.Sym("return_statement"),
		grammar.Sym("switch_expression"),
		grammar.Sym("match_expression"),
		grammar.Sym("block"),
		grammar.Sym("identifier"),
		grammar.Sym("scoped_type_identifier"),
		grammar.Sym("literal"),
	)))
	g.Define("assignment_expression", grammar.PrecRight(precAssignment,
		grammar.Seq(grammar.Sym("expression"), grammar.Str("="), grammar.Sym("expression"))))
	g.Define("update_expression", grammar.PrecRight(precAssignment, grammar.Seq(
		grammar.Sym("expression"),
		strs("+=", "-=", "*=", "/=", "%=", "<<=", ">>=", "|=", "&=", "^=", "||=", "&&=", "^^="),
		grammar.Sym("expression"),
	)))
	g.Define("unary_expression", grammar.Choice(
		grammar.PrecRight(precUnary, grammar.Seq(
			grammar.Field("operator", strs("+", "-", "~", "!", "*")),
			grammar.Field("argument", grammar.Sym("expression")),
		)),
		grammar.PrecRight(precUnary, grammar.Seq(
			grammar.Field("address", grammar.Str("&")),
			grammar.Field("argument", grammar.Sym("expression")),
		)),
	))

	binary := make([]*grammar.Rule, len(binaryOperators))
	for i, b := range binaryOperators {
		binary[i] = grammar.PrecLeft(b.prec, grammar.Seq(
			grammar.Field("left", grammar.Sym("expression")),
			grammar.Field("operator", grammar.Str(b.op)),
			grammar.Field("right", grammar.Sym("expression")),
		))
	}
	g.Define("binary_expression", grammar.Choice(binary...))

	g.Define("error_assertion_expression", grammar.Seq(grammar.Sym("expression"), grammar.Str("!")))
	g.Define("cast_expression", grammar.Prec(precCast, grammar.Choice(
		grammar.Field("type_cast", grammar.Seq(grammar.Sym("expression"), grammar.Str(":"), grammar.Sym("type"))),
		grammar.Field("as_cast", grammar.Seq(grammar.Sym("expression"), grammar.Str("as"), grammar.Sym("type"))),
		grammar.Field("is_cast", grammar.Seq(grammar.Sym("expression"), grammar.Str("is"), grammar.Sym("type"))),
	)))
	g.Define("size_expression", grammar.Seq(grammar.Str("size"), grammar.Str("("), grammar.Sym("type"), grammar.Str(")")))
	g.Define("call_expression", grammar.Prec(precCall, grammar.Seq(
		grammar.Field("callee", grammar.Sym("expression")),
		grammar.Str("("),
		optionalCommaSep(grammar.Choice(grammar.Sym("expression"), grammar.Sym("variadic_argument"))),
		grammar.Str(")"),
	)))
	g.Define("variadic_argument", grammar.Seq(grammar.Sym("expression"), grammar.Str("...")))
	g.Define("index_expression", grammar.Prec(precMember, grammar.Seq(
		grammar.Sym("expression"), grammar.Str("["), grammar.Sym("expression"), grammar.Str("]"),
	)))
	g.Define("range_expression", grammar.Prec(precMember, grammar.Seq(
		grammar.Sym("expression"),
		grammar.Str("["),
		grammar.Optional(grammar.Sym("expression")),
		grammar.Str(".."),
		grammar.Optional(grammar.Sym("expression")),
		grammar.Str("]"),
	)))
	g.Define("member_expression", grammar.Prec(precMember, grammar.Seq(
		grammar.Sym("expression"),
		grammar.Str("."),
		grammar.Choice(grammar.Sym("identifier"), grammar.Sym("number")),
	)))
	g.Define("try_expression", grammar.Seq(grammar.Sym("expression"), grammar.Str("?")))
	g.Define("parenthesis_expression", grammar.Prec(precParentheses, grammar.Seq(grammar.Str("("), grammar.Sym("expression"), grammar.Str(")"))))
	g.Define("let_expression", grammar.Seq(
		grammar.Str("let"),
		grammar.CommaSep1(grammar.Seq(
			grammar.Sym("identifier"),
			grammar.Optional(grammar.Seq(grammar.Str(":"), grammar.Sym("type"))),
			grammar.Optional(grammar.Seq(grammar.Str("="), grammar.Sym("expression"))),
		)),
	))
	g.Define("switch_expression", grammar.Seq(grammar.Str("switch"), grammar.Sym("expression"), grammar.Str("{"), grammar.Repeat(grammar.Sym("case")), grammar.Str("}")))
	g.Define("match_expression", grammar.Seq(grammar.Str("match"), grammar.Sym("expression"), grammar.Str("{"), grammar.Repeat(grammar.Sym("case")), grammar.Str("}")))
	g.Define("case", grammar.Seq(
		grammar.Str("case"),
		grammar.Optional(grammar.Choice(
			grammar.CommaSep1(grammar.Sym("expression")),
			grammar.Sym("let_expression"),
			grammar.Sym("array_type"),
			grammar.Sym("builtin_type"),
		)),
		grammar.Str("=>"),
		grammar.Repeat1(grammar.Sym("statement")),
	))
}

func defineLiterals(g *grammar.Grammar) {
	g.Define("literal", grammar.Choice(
		grammar.Sym("array_literal"),
		grammar.Sym("struct_literal"),
		grammar.Sym("tuple_literal"),
		grammar.Sym("number"),
		grammar.Sym("float"),
		grammar.Sym("string"),
		grammar.Sym("raw_string"),
		grammar.Sym("concatenated_string"),
		grammar.Sym("rune"),
		grammar.Sym("boolean"),
		grammar.Sym("void"),
		grammar.Sym("null"),
	))
	g.Define("array_literal", grammar.PrecRight(0, grammar.Seq(
		grammar.Str("["),
		optionalCommaSep(grammar.Seq(grammar.Sym("expression"), grammar.Optional(grammar.Str("...")))),
		grammar.Str("]"),
	)))
	g.Define("struct_literal", grammar.Choice(
		grammar.Seq(grammar.Str("struct"), grammar.Str("{"), optionalCommaSep1(grammar.Sym("field_assignment")), grammar.Str("}")),
		grammar.Seq(
			grammar.Choice(grammar.Sym("identifier"), grammar.Sym("scoped_type_identifier")),
			grammar.Str("{"),
			grammar.Choice(
				grammar.Seq(grammar.CommaSep1(grammar.Sym("field_assignment")), grammar.Optional(grammar.Seq(grammar.Str(","), grammar.Optional(grammar.Str("..."))))),
				grammar.Str("..."),
			),
			grammar.Str("}"),
		),
	))
	g.Define("field_assignment", grammar.Choice(
		grammar.Seq(grammar.Sym("identifier"), grammar.Str("="), grammar.Sym("expression")),
		grammar.Seq(grammar.Sym("identifier"), grammar.Str(":"), grammar.Sym("type"), grammar.Str("="), grammar.Sym("expression")),
		grammar.Sym("struct_literal"),
	))
	g.Define("tuple_literal", grammar.Seq(grammar.Str("("), optionalCommaSep1(grammar.Sym("expression")), grammar.Str(")")))

	exponent := func() *grammar.Rule {
		return grammar.Seq(strs("e", "E"), grammar.Optional(strs("+", "-")), grammar.Pat(`[0-9]+`))
	}
	integer := grammar.Token(grammar.Choice(
		grammar.Pat(`0|[1-9][0-9]*`),
		grammar.Pat(`0x[0-9a-fA-F][0-9a-fA-F]*`),
		grammar.Pat(`0o[0-7][0-7]*`),
		grammar.Pat(`0b[01][01]*`),
	))
	g.Define("number", grammar.Choice(
		grammar.Seq(integer, grammar.Optional(grammar.Sym("integer_suffix"))),
		grammar.Seq(grammar.Token(grammar.Seq(grammar.Pat(`0|[1-9][0-9]*`), grammar.Optional(exponent()))), grammar.Optional(grammar.Sym("integer_suffix"))),
	))
	g.Define("float", grammar.Choice(
		grammar.Token(grammar.Seq(
			grammar.Pat(`[0-9]+`), grammar.Str("."), grammar.Pat(`[0-9]+`), grammar.Optional(exponent()),
			grammar.Optional(strs("f32", "f64")),
		)),
		// A whole token, so that 10f32 is not lexed as the integer 10.
		grammar.Token(grammar.Seq(grammar.Pat(`[0-9]+`), grammar.Optional(exponent()), strs("f32", "f64"))),
	))
	g.Define("integer_suffix", strs("i", "u", "z", "i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64"))
	g.Define("string", grammar.Seq(
		grammar.Str(`"`),
		grammar.Repeat(grammar.Choice(grammar.Sym("string_content"), grammar.Sym("_escape_sequence"))),
		grammar.Str(`"`),
	))
	g.Define("raw_string", grammar.Seq(grammar.Str("`"), grammar.Sym("raw_string_content"), grammar.Str("`")))
	g.Define("concatenated_string", grammar.Seq(grammar.Sym("string"), grammar.Repeat1(grammar.Sym("string"))))
	g.Define("string_content", grammar.Token(grammar.Prec(1, grammar.Pat(`[^"\\]+`))))
	g.Define("raw_string_content", grammar.Token(grammar.Prec(1, grammar.Pat("[^`]*"))))
	g.Define("rune", grammar.Seq(
		grammar.Str("'"),
		grammar.Choice(grammar.ImmediateToken(grammar.Pat(`[^']`)), grammar.Sym("_escape_sequence")),
		grammar.Str("'"),
	))
	g.Define("_escape_sequence", grammar.Choice(
		grammar.Prec(2, grammar.ImmediateToken(grammar.Seq(grammar.Str(`\`), grammar.Pat(`[^abfnrtvxu'"\\?]`)))),
		grammar.Prec(1, grammar.Sym("escape_sequence")),
	))
	g.Define("escape_sequence", grammar.ImmediateToken(grammar.Seq(
		grammar.Str(`\`),
		grammar.Choice(
			grammar.Pat(`[^xu0-7]`),
			grammar.Pat(`[0-7]{1,3}`),
			grammar.Pat(`x[0-9a-fA-F]{2}`),
			grammar.Pat(`u[0-9a-fA-F]{4}`),
			grammar.Pat(`u\{[0-9a-fA-F]+\}`),
			grammar.Pat(`U[0-9a-fA-F]{8}`),
		),
	)))
	g.Define("boolean", strs("true", "false"))
	g.Define("void", grammar.Str("void"))
	g.Define("null", grammar.Str("null"))
}
