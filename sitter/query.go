package sitter

import (
	"fmt"
	"slices"
)

// Query holds compiled patterns parsed from a tree-sitter .scm query file.
// A Query is immutable once compiled and may be executed concurrently.
type Query struct {
	lang     *Language
	patterns []*queryPattern
	captures []string // capture name by index

	rootCandidatesBySymbol map[Symbol][]int
	rootFallbackCandidates []int
}

type queryPattern struct {
	root       *patternNode
	predicates []queryPredicate
	properties map[string]string
	assertions map[string]assertion
	offset     int
}

type assertion struct {
	value    string
	positive bool
}

type patternKind uint8

const (
	patNode          patternKind = iota // (type ...)
	patWildcardNamed                    // (_ ...)
	patWildcard                         // _
	patString                           // "text"
	patAlternation                      // [...]
	patGroup                            // ((a) (b))
	patError                            // (ERROR ...)
	patMissing                          // (MISSING name?)
)

type quantifier uint8

const (
	quantOne quantifier = iota
	quantZeroOrOne
	quantZeroOrMore
	quantOneOrMore
)

// patternNode is one node of a pattern tree.
type patternNode struct {
	kind     patternKind
	symbols  []Symbol // accepted symbols; empty accepts any (MISSING)
	text     string   // patString
	field    FieldID
	negated  []FieldID
	captures []int
	quant    quantifier
	// anchored requires the node to follow the previous sibling pattern
	// with only anonymous nodes in between, or to be the first named
	// child.
	anchored bool
	// exact requires the node to be the first candidate sibling.
	exact bool
	// anchorEnd requires the last child pattern to match the last named
	// child.
	anchorEnd bool
	children []*patternNode
	alts     []*patternNode
}

// QueryMatch represents a successful pattern match with its captures.
type QueryMatch struct {
	PatternIndex int
	Captures     []QueryCapture
}

// QueryCapture is a single captured node within a match.
type QueryCapture struct {
	Name  string
	Index int
	Node  *Node
}

// Nodes returns the nodes captured under name, in match order.
func (m QueryMatch) Nodes(name string) []*Node {
	var out []*Node
	for _, c := range m.Captures {
		if c.Name == name {
			out = append(out, c.Node)
		}
	}
	return out
}

// QueryErrorKind classifies query compilation errors.
type QueryErrorKind uint8

const (
	QueryErrorSyntax QueryErrorKind = iota + 1
	QueryErrorNodeType
	QueryErrorField
	QueryErrorCapture
	QueryErrorPredicate
	QueryErrorStructure
)

func (k QueryErrorKind) String() string {
	switch k {
	case QueryErrorSyntax:
		return "syntax"
	case QueryErrorNodeType:
		return "node type"
	case QueryErrorField:
		return "field"
	case QueryErrorCapture:
		return "capture"
	case QueryErrorPredicate:
		return "predicate"
	case QueryErrorStructure:
		return "structure"
	}
	return "unknown"
}

// QueryError reports a malformed query with its location.
type QueryError struct {
	Offset  int
	Row     int
	Column  int
	Kind    QueryErrorKind
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query: %s error at %d:%d: %s", e.Kind, e.Row+1, e.Column+1, e.Message)
}

// NewQuery compiles query source (tree-sitter .scm format) against a
// language. It returns a *QueryError if the query syntax is invalid or
// references unknown node types, fields, captures or predicates.
func NewQuery(source string, lang *Language) (*Query, error) {
	p := &queryParser{
		input: source,
		lang:  lang,
		q:     &Query{lang: lang},
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	p.q.buildRootPatternIndex()
	return p.q, nil
}

// PatternCount returns the number of patterns in the query.
func (q *Query) PatternCount() int { return len(q.patterns) }

// CaptureNames returns the list of unique capture names used in the query.
func (q *Query) CaptureNames() []string { return q.captures }

// CaptureIndex returns the index of a capture name.
func (q *Query) CaptureIndex(name string) (int, bool) {
	i := slices.Index(q.captures, name)
	return i, i >= 0
}

// PatternOffset returns the byte offset of a pattern in the query source.
func (q *Query) PatternOffset(pattern int) int { return q.patterns[pattern].offset }

// Property returns a property attached to a pattern with #set!.
func (q *Query) Property(pattern int, key string) (string, bool) {
	v, ok := q.patterns[pattern].properties[key]
	return v, ok
}

// Assertion returns a property asserted with #is? (positive) or #is-not?.
func (q *Query) Assertion(pattern int, key string) (value string, positive, ok bool) {
	a, ok := q.patterns[pattern].assertions[key]
	return a.value, a.positive, ok
}

// Execute runs the query against a syntax tree and returns all matches.
func (q *Query) Execute(tree *Tree) []QueryMatch {
	return q.ExecuteNode(tree.RootNode(), tree.Source())
}

// ExecuteNode runs the query over node and its descendants, reading
// capture text from source.
func (q *Query) ExecuteNode(node *Node, source []byte) []QueryMatch {
	c := q.Cursor(node)
	c.SetSource(source)
	var out []QueryMatch
	for m := range c.Matches() {
		out = append(out, m)
	}
	return out
}

func (q *Query) rootPatternCandidates(sym Symbol) []int {
	if cands, ok := q.rootCandidatesBySymbol[sym]; ok {
		return cands
	}
	return q.rootFallbackCandidates
}

func mergePatternIndexLists(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var v int
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			v = a[i]
			i++
		case i >= len(a) || b[j] < a[i]:
			v = b[j]
			j++
		default:
			v = a[i]
			i++
			j++
		}
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	return out
}

// rootSymbols returns the symbols a pattern's root can match, or false
// when the root is not restricted to a symbol set.
func rootSymbols(pn *patternNode) ([]Symbol, bool) {
	switch pn.kind {
	case patNode:
		return pn.symbols, true
	case patGroup:
		if len(pn.children) == 0 {
			return nil, false
		}
		return rootSymbols(pn.children[0])
	case patAlternation:
		var out []Symbol
		for _, alt := range pn.alts {
			syms, ok := rootSymbols(alt)
			if !ok {
				return nil, false
			}
			out = append(out, syms...)
		}
		return out, true
	}
	return nil, false
}

func (q *Query) buildRootPatternIndex() {
	bySymbolExact := make(map[Symbol][]int)
	var fallback []int
	for pi, pat := range q.patterns {
		syms, ok := rootSymbols(pat.root)
		if !ok {
			fallback = append(fallback, pi)
			continue
		}
		seen := make(map[Symbol]bool, len(syms))
		for _, s := range syms {
			if seen[s] {
				continue
			}
			seen[s] = true
			bySymbolExact[s] = append(bySymbolExact[s], pi)
		}
	}
	q.rootFallbackCandidates = fallback
	q.rootCandidatesBySymbol = make(map[Symbol][]int, len(bySymbolExact))
	for sym, exact := range bySymbolExact {
		q.rootCandidatesBySymbol[sym] = mergePatternIndexLists(exact, fallback)
	}
}
