package generate

import (
	"fmt"
	"strings"
)

// ErrorKind classifies grammar compilation failures.
type ErrorKind uint8

const (
	KindUndefinedSymbol ErrorKind = iota + 1
	KindDuplicateRule
	KindEmptyRule
	KindInfiniteRecursion
	KindUnresolvedConflict
	KindInvalidPattern
	KindInvalidGrammar
)

func (k ErrorKind) String() string {
	switch k {
	case KindUndefinedSymbol:
		return "undefined symbol"
	case KindDuplicateRule:
		return "duplicate rule"
	case KindEmptyRule:
		return "empty rule"
	case KindInfiniteRecursion:
		return "infinite recursion"
	case KindUnresolvedConflict:
		return "unresolved conflict"
	case KindInvalidPattern:
		return "invalid pattern"
	case KindInvalidGrammar:
		return "invalid grammar"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// GrammarError reports why a grammar cannot be compiled.
type GrammarError struct {
	Rule    string
	Kind    ErrorKind
	Message string
}

func (e *GrammarError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("grammar: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("grammar: rule %q: %s: %s", e.Rule, e.Kind, e.Message)
}

func grammarErrorf(rule string, kind ErrorKind, format string, args ...any) *GrammarError {
	return &GrammarError{Rule: rule, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Warning records a conflict the compiler resolved arbitrarily.
type Warning struct {
	// Rules are the rules whose items took part in the conflict.
	Rules []string
	// Lookahead is the token the conflict occurs on.
	Lookahead string
	// Chosen describes the action that was kept.
	Chosen  string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("unresolved conflict on %q in %s (%s), chose %s",
		w.Lookahead, strings.Join(w.Rules, ", "), w.Message, w.Chosen)
}
