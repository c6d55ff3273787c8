// Package grammar describes context-free grammars in the shape used by
// tree-sitter's grammar DSL: rules built from sequences, choices,
// repetitions, precedence annotations, lexical tokens, fields and aliases.
//
// A Grammar is plain data. It is compiled into parse tables by package
// generate and can be round-tripped through tree-sitter's grammar.json
// format.
package grammar

import (
	"strconv"
	"strings"
)

// RuleKind identifies the shape of a Rule.
type RuleKind uint8

const (
	KindBlank RuleKind = iota
	KindString
	KindPattern
	KindSymbol
	KindSeq
	KindChoice
	KindRepeat
	KindRepeat1
	KindPrec
	KindPrecLeft
	KindPrecRight
	KindPrecDynamic
	KindToken
	KindImmediateToken
	KindField
	KindAlias
)

var kindNames = [...]string{
	KindBlank:          "BLANK",
	KindString:         "STRING",
	KindPattern:        "PATTERN",
	KindSymbol:         "SYMBOL",
	KindSeq:            "SEQ",
	KindChoice:         "CHOICE",
	KindRepeat:         "REPEAT",
	KindRepeat1:        "REPEAT1",
	KindPrec:           "PREC",
	KindPrecLeft:       "PREC_LEFT",
	KindPrecRight:      "PREC_RIGHT",
	KindPrecDynamic:    "PREC_DYNAMIC",
	KindToken:          "TOKEN",
	KindImmediateToken: "IMMEDIATE_TOKEN",
	KindField:          "FIELD",
	KindAlias:          "ALIAS",
}

// String returns the grammar.json type tag for the kind.
func (k RuleKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "RuleKind(" + strconv.Itoa(int(k)) + ")"
}

func kindFromName(name string) (RuleKind, bool) {
	for i, n := range kindNames {
		if n == name {
			return RuleKind(i), true
		}
	}
	return 0, false
}

// Rule is one node of a grammar rule expression.
//
// Value holds the literal text for strings, the regular expression for
// patterns, the referenced rule for symbols, the field name for fields and
// the alias name for aliases. Prec is used by the precedence kinds.
// Members holds the operands of sequences and choices; Content holds the
// operand of every unary kind.
type Rule struct {
	Kind    RuleKind
	Value   string
	Named   bool
	Prec    int
	Members []*Rule
	Content *Rule
}

// Blank matches the empty string.
func Blank() *Rule { return &Rule{Kind: KindBlank} }

// Str matches literal text. Literal tokens are anonymous nodes.
func Str(text string) *Rule { return &Rule{Kind: KindString, Value: text} }

// Pat matches a regular expression.
func Pat(pattern string) *Rule { return &Rule{Kind: KindPattern, Value: pattern} }

// Sym references another rule by name.
func Sym(name string) *Rule { return &Rule{Kind: KindSymbol, Value: name} }

// Seq matches its members one after another.
func Seq(members ...*Rule) *Rule {
	if len(members) == 1 {
		return members[0]
	}
	return &Rule{Kind: KindSeq, Members: members}
}

// Choice matches exactly one of its members.
func Choice(members ...*Rule) *Rule {
	if len(members) == 1 {
		return members[0]
	}
	return &Rule{Kind: KindChoice, Members: members}
}

// Optional matches r or nothing.
func Optional(r *Rule) *Rule { return Choice(r, Blank()) }

// Repeat matches r zero or more times.
func Repeat(r *Rule) *Rule { return &Rule{Kind: KindRepeat, Content: r} }

// Repeat1 matches r one or more times.
func Repeat1(r *Rule) *Rule { return &Rule{Kind: KindRepeat1, Content: r} }

// Prec assigns a precedence used to resolve conflicts at compile time.
// Inside Token it assigns a lexical precedence instead.
func Prec(level int, r *Rule) *Rule { return &Rule{Kind: KindPrec, Prec: level, Content: r} }

// PrecLeft is Prec with left associativity.
func PrecLeft(level int, r *Rule) *Rule { return &Rule{Kind: KindPrecLeft, Prec: level, Content: r} }

// PrecRight is Prec with right associativity.
func PrecRight(level int, r *Rule) *Rule { return &Rule{Kind: KindPrecRight, Prec: level, Content: r} }

// PrecDynamic assigns a precedence consulted at parse time when the parser
// has to choose between ambiguous interpretations.
func PrecDynamic(level int, r *Rule) *Rule {
	return &Rule{Kind: KindPrecDynamic, Prec: level, Content: r}
}

// Token collapses r into a single lexical token.
func Token(r *Rule) *Rule { return &Rule{Kind: KindToken, Content: r} }

// ImmediateToken is Token, but the token only matches when no whitespace or
// other extras precede it.
func ImmediateToken(r *Rule) *Rule { return &Rule{Kind: KindImmediateToken, Content: r} }

// Field names the nodes produced by r within their parent.
func Field(name string, r *Rule) *Rule { return &Rule{Kind: KindField, Value: name, Content: r} }

// Alias makes the node produced by r appear under another name. A named
// alias produces a named node; otherwise the node is anonymous.
func Alias(r *Rule, name string, named bool) *Rule {
	return &Rule{Kind: KindAlias, Value: name, Named: named, Content: r}
}

// CommaSep1 matches one or more r separated by commas.
func CommaSep1(r *Rule) *Rule { return Seq(r, Repeat(Seq(Str(","), r))) }

// CommaSep matches zero or more r separated by commas.
func CommaSep(r *Rule) *Rule { return Optional(CommaSep1(r)) }

// IsLexical reports whether r denotes a single token on its own.
func (r *Rule) IsLexical() bool {
	if r == nil {
		return false
	}
	switch r.Kind {
	case KindString, KindPattern, KindToken, KindImmediateToken:
		return true
	}
	return false
}

// Walk calls fn for r and every rule nested in it, in pre-order. Returning
// false from fn skips the children of that rule.
func (r *Rule) Walk(fn func(*Rule) bool) {
	if r == nil || !fn(r) {
		return
	}
	for _, m := range r.Members {
		m.Walk(fn)
	}
	r.Content.Walk(fn)
}

// String renders r as a compact s-expression. Two rules with the same
// rendering are structurally identical.
func (r *Rule) String() string {
	var sb strings.Builder
	r.write(&sb)
	return sb.String()
}

func (r *Rule) write(sb *strings.Builder) {
	if r == nil {
		sb.WriteString("nil")
		return
	}
	switch r.Kind {
	case KindBlank:
		sb.WriteString("blank")
	case KindString:
		sb.WriteString(strconv.Quote(r.Value))
	case KindPattern:
		sb.WriteByte('/')
		sb.WriteString(r.Value)
		sb.WriteByte('/')
	case KindSymbol:
		sb.WriteByte('$')
		sb.WriteString(r.Value)
	default:
		sb.WriteByte('(')
		sb.WriteString(strings.ToLower(r.Kind.String()))
		switch r.Kind {
		case KindPrec, KindPrecLeft, KindPrecRight, KindPrecDynamic:
			sb.WriteByte(' ')
			sb.WriteString(strconv.Itoa(r.Prec))
		case KindField:
			sb.WriteByte(' ')
			sb.WriteString(r.Value)
		case KindAlias:
			sb.WriteByte(' ')
			sb.WriteString(strconv.Quote(r.Value))
			if r.Named {
				sb.WriteString(" named")
			}
		}
		for _, m := range r.Members {
			sb.WriteByte(' ')
			m.write(sb)
		}
		if r.Content != nil {
			sb.WriteByte(' ')
			r.Content.write(sb)
		}
		sb.WriteByte(')')
	}
}
