// Package sitter is an incremental parsing runtime in the style of
// tree-sitter. It drives table-driven lexers and GLR parse tables produced
// by package generate, builds persistent concrete syntax trees that can be
// re-parsed cheaply after edits, and runs s-expression queries over them.
//
// This file defines the language tables the rest of the runtime reads.
package sitter

import "sync"

// Symbol is a grammar symbol ID (terminal or nonterminal).
type Symbol uint16

// StateID is a parser state index.
type StateID uint16

// FieldID is a named field index. Zero means "no field".
type FieldID uint16

const (
	// SymbolEnd is the end-of-input token.
	SymbolEnd Symbol = 0
	// SymbolError marks ERROR nodes and unlexable input.
	SymbolError Symbol = 65535
)

// ParseActionType identifies the kind of parse action.
type ParseActionType uint8

const (
	ParseActionShift ParseActionType = iota
	ParseActionReduce
	ParseActionAccept
	ParseActionRecover
)

// ParseAction is a single parser action from the parse table.
type ParseAction struct {
	Type              ParseActionType
	State             StateID // target state (shift)
	Symbol            Symbol  // reduced symbol (reduce)
	ChildCount        uint8   // non-extra children consumed (reduce)
	DynamicPrecedence int16   // summed into a version's score (reduce)
	ProductionID      uint16  // field map and alias sequence (reduce)
	Extra             bool    // shift an extra token without changing state
	Repetition        bool    // shift belongs to a repetition
	// Rank orders alternatives by grammar declaration; lower ranks were
	// declared earlier. It is consulted only to break ties between
	// otherwise equal GLR versions.
	Rank uint32
}

// ParseActionEntry is a group of actions for a (state, symbol) pair. More
// than one action means the grammar declared the conflict and the parser
// forks.
type ParseActionEntry struct {
	// Reusable is set when the action does not depend on the lookahead
	// token, i.e. the state reduces the same production for every token.
	Reusable bool
	Actions  []ParseAction
}

// LexState is one state in the table-driven lexer DFA.
type LexState struct {
	AcceptToken Symbol // 0 if this state doesn't accept
	Skip        bool   // true if accepted chars are padding
	Transitions []LexTransition
	Default     int // default next state (-1 if none)
	EOF         int // state on EOF (-1 if none)
}

// LexTransition maps a character range to a next state.
type LexTransition struct {
	Lo, Hi    rune // inclusive character range
	NextState int
}

// LexMode maps a parser state to its lexer configuration.
type LexMode struct {
	// LexState starts the DFA for the state's valid tokens.
	LexState uint16
	// AfterSkipState is used once padding was skipped; it excludes tokens
	// that must immediately follow the previous token.
	AfterSkipState uint16
	// ExternalLexState indexes Language.ExternalScannerStates; zero means
	// the external scanner is not consulted.
	ExternalLexState uint16
}

// SymbolMetadata holds display information about a symbol.
type SymbolMetadata struct {
	Name      string
	Visible   bool
	Named     bool
	Supertype bool
}

// FieldMapEntry maps a child index to a field name.
type FieldMapEntry struct {
	FieldID    FieldID
	ChildIndex uint8
	Inherited  bool
}

// Language holds all data needed to parse a specific language. Values are
// immutable once built and safe to share between goroutines.
type Language struct {
	Name string

	// Counts
	SymbolCount        uint32
	TokenCount         uint32
	ExternalTokenCount uint32
	StateCount         uint32
	FieldCount         uint32
	ProductionIDCount  uint32

	// Symbol metadata
	SymbolNames    []string
	SymbolMetadata []SymbolMetadata
	FieldNames     []string // index 0 is ""

	// Parse tables
	ParseTable   [][]uint16 // dense: [state][symbol] -> action index
	ParseActions []ParseActionEntry

	// Lex tables
	LexModes            []LexMode
	LexStates           []LexState // main lexer DFA
	KeywordLexStates    []LexState // keyword lexer DFA (optional)
	KeywordCaptureToken Symbol
	// ErrorLexMode lexes every token of the grammar; it is used when a
	// state's own lex mode cannot make progress.
	ErrorLexMode LexMode

	// Field mapping
	FieldMapSlices  [][2]uint16 // [production_id] -> (index, length)
	FieldMapEntries []FieldMapEntry

	// Alias sequences
	AliasSequences [][]Symbol // [production_id][child_index] -> alias symbol

	// External tokens: ExternalSymbols[i] is the symbol of external token
	// i, and ExternalScannerStates[n][i] reports whether token i is valid
	// in external lex state n.
	ExternalSymbols       []Symbol
	ExternalScannerStates [][]bool
	ExternalScanner       ExternalScanner

	// Supertypes lists the subtypes of every supertype symbol.
	Supertypes map[Symbol][]Symbol

	// InitialState is the parser's start state.
	InitialState StateID

	lookupOnce sync.Once
	symbolMap  map[string]Symbol
	anonMap    map[string]Symbol
	fieldMap   map[string]FieldID
}

func (l *Language) buildLookups() {
	l.lookupOnce.Do(func() {
		l.symbolMap = make(map[string]Symbol, len(l.SymbolNames))
		l.anonMap = make(map[string]Symbol)
		for i, name := range l.SymbolNames {
			sym := Symbol(i)
			named := true
			if i < len(l.SymbolMetadata) {
				named = l.SymbolMetadata[i].Named
			}
			if named {
				if _, ok := l.symbolMap[name]; !ok {
					l.symbolMap[name] = sym
				}
			} else if _, ok := l.anonMap[name]; !ok {
				l.anonMap[name] = sym
			}
		}
		l.fieldMap = make(map[string]FieldID, len(l.FieldNames))
		for i, name := range l.FieldNames {
			if i == 0 || name == "" {
				continue
			}
			if _, ok := l.fieldMap[name]; !ok {
				l.fieldMap[name] = FieldID(i)
			}
		}
	})
}

// SymbolByName returns the first named symbol called name. Anonymous
// symbols are found only when no named symbol has that name.
func (l *Language) SymbolByName(name string) (Symbol, bool) {
	l.buildLookups()
	if sym, ok := l.symbolMap[name]; ok {
		return sym, true
	}
	sym, ok := l.anonMap[name]
	return sym, ok
}

// AnonymousSymbolByName returns the anonymous symbol whose text is name.
func (l *Language) AnonymousSymbolByName(name string) (Symbol, bool) {
	l.buildLookups()
	sym, ok := l.anonMap[name]
	return sym, ok
}

// TokenSymbolsByName returns every terminal symbol called name.
func (l *Language) TokenSymbolsByName(name string) []Symbol {
	var out []Symbol
	for i, n := range l.SymbolNames {
		if uint32(i) >= l.TokenCount {
			break
		}
		if n == name {
			out = append(out, Symbol(i))
		}
	}
	return out
}

// FieldByName returns the field ID for name.
func (l *Language) FieldByName(name string) (FieldID, bool) {
	l.buildLookups()
	fid, ok := l.fieldMap[name]
	return fid, ok
}

// SymbolName returns the display name of sym.
func (l *Language) SymbolName(sym Symbol) string {
	if sym == SymbolError {
		return "ERROR"
	}
	if int(sym) < len(l.SymbolNames) {
		return l.SymbolNames[sym]
	}
	return ""
}

// FieldName returns the name of a field ID, or "".
func (l *Language) FieldName(id FieldID) string {
	if int(id) < len(l.FieldNames) {
		return l.FieldNames[id]
	}
	return ""
}

// IsNamed reports whether sym produces named nodes.
func (l *Language) IsNamed(sym Symbol) bool {
	if sym == SymbolError {
		return true
	}
	if int(sym) < len(l.SymbolMetadata) {
		return l.SymbolMetadata[sym].Named
	}
	return false
}

// IsVisible reports whether nodes for sym appear in the tree.
func (l *Language) IsVisible(sym Symbol) bool {
	if sym == SymbolError {
		return true
	}
	if int(sym) < len(l.SymbolMetadata) {
		return l.SymbolMetadata[sym].Visible
	}
	return false
}

// IsTerminal reports whether sym is a token.
func (l *Language) IsTerminal(sym Symbol) bool {
	return uint32(sym) < l.TokenCount
}

// lookup returns the action entry for (state, sym), or nil.
func (l *Language) lookup(state StateID, sym Symbol) *ParseActionEntry {
	if int(state) < len(l.ParseTable) {
		row := l.ParseTable[state]
		if int(sym) < len(row) {
			idx := row[sym]
			if idx != 0 && int(idx) < len(l.ParseActions) {
				return &l.ParseActions[idx]
			}
		}
	}
	return nil
}

// Actions returns the parse actions for a state and lookahead symbol.
func (l *Language) Actions(state StateID, sym Symbol) []ParseAction {
	if e := l.lookup(state, sym); e != nil {
		return e.Actions
	}
	return nil
}

// NextState returns the goto state after a nonterminal, or the shift
// target of a terminal, and false when there is none.
func (l *Language) NextState(state StateID, sym Symbol) (StateID, bool) {
	e := l.lookup(state, sym)
	if e == nil {
		return 0, false
	}
	for _, a := range e.Actions {
		if a.Type == ParseActionShift && !a.Extra {
			return a.State, true
		}
	}
	return 0, false
}

func (l *Language) lexMode(state StateID) LexMode {
	if int(state) < len(l.LexModes) {
		return l.LexModes[state]
	}
	return LexMode{}
}

func (l *Language) fieldMapFor(productionID uint16) []FieldMapEntry {
	if int(productionID) >= len(l.FieldMapSlices) {
		return nil
	}
	s := l.FieldMapSlices[productionID]
	start, length := int(s[0]), int(s[1])
	if start+length > len(l.FieldMapEntries) {
		return nil
	}
	return l.FieldMapEntries[start : start+length]
}

func (l *Language) aliasFor(productionID uint16, childIndex int) Symbol {
	if int(productionID) >= len(l.AliasSequences) {
		return 0
	}
	seq := l.AliasSequences[productionID]
	if childIndex < len(seq) {
		return seq[childIndex]
	}
	return 0
}

// isSubtype reports whether sym is one of supertype's subtypes.
func (l *Language) isSubtype(supertype, sym Symbol) bool {
	for _, s := range l.Supertypes[supertype] {
		if s == sym {
			return true
		}
	}
	return false
}
