package sitter

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// ArtifactVersion is the grammar artifact format version this package
// reads and writes.
const ArtifactVersion = 1

var artifactMagic = []byte("ARBR")

var (
	// ErrBadArtifact reports a truncated or malformed grammar artifact.
	ErrBadArtifact = errors.New("malformed grammar artifact")
	// ErrIncompatibleVersion reports an artifact written by another
	// format version.
	ErrIncompatibleVersion = errors.New("incompatible grammar artifact version")
)

// Field numbers of the artifact message.
const (
	fName protowire.Number = iota + 1
	fSymbolCount
	fTokenCount
	fExternalTokenCount
	fStateCount
	fFieldCount
	fProductionIDCount
	fInitialState
	fKeywordCaptureToken
	fSymbol
	fFieldName
	fParseRow
	fActionEntry
	fLexMode
	fLexState
	fKeywordLexState
	fErrorLexMode
	fFieldMapSlice
	fFieldMapEntry
	fAliasSequence
	fExternalSymbols
	fExternalScannerState
	fSupertype
)

// LoadOption configures LoadLanguage.
type LoadOption func(*Language)

// WithExternalScanner attaches the scanner for the grammar's external
// tokens. Scanners are code and are never part of an artifact.
func WithExternalScanner(s ExternalScanner) LoadOption {
	return func(l *Language) { l.ExternalScanner = s }
}

// MarshalBinary encodes the language tables as a grammar artifact.
func (l *Language) MarshalBinary() ([]byte, error) {
	e := &encoder{b: append([]byte(nil), artifactMagic...)}
	e.b = protowire.AppendVarint(e.b, ArtifactVersion)

	e.str(fName, l.Name)
	e.uint(fSymbolCount, uint64(l.SymbolCount))
	e.uint(fTokenCount, uint64(l.TokenCount))
	e.uint(fExternalTokenCount, uint64(l.ExternalTokenCount))
	e.uint(fStateCount, uint64(l.StateCount))
	e.uint(fFieldCount, uint64(l.FieldCount))
	e.uint(fProductionIDCount, uint64(l.ProductionIDCount))
	e.uint(fInitialState, uint64(l.InitialState))
	e.uint(fKeywordCaptureToken, uint64(l.KeywordCaptureToken))

	for i, name := range l.SymbolNames {
		var md SymbolMetadata
		if i < len(l.SymbolMetadata) {
			md = l.SymbolMetadata[i]
		}
		e.message(fSymbol, func(m *encoder) {
			m.str(1, name)
			m.bool(2, md.Visible)
			m.bool(3, md.Named)
			m.bool(4, md.Supertype)
		})
	}
	for _, name := range l.FieldNames {
		e.str(fFieldName, name)
	}
	for _, row := range l.ParseTable {
		e.packed(fParseRow, widen(row))
	}
	for _, entry := range l.ParseActions {
		e.message(fActionEntry, func(m *encoder) {
			m.bool(1, entry.Reusable)
			for _, a := range entry.Actions {
				m.message(2, func(am *encoder) {
					am.uint(1, uint64(a.Type))
					am.uint(2, uint64(a.State))
					am.uint(3, uint64(a.Symbol))
					am.uint(4, uint64(a.ChildCount))
					am.sint(5, int64(a.DynamicPrecedence))
					am.uint(6, uint64(a.ProductionID))
					am.bool(7, a.Extra)
					am.bool(8, a.Repetition)
					am.uint(9, uint64(a.Rank))
				})
			}
		})
	}
	for _, mode := range l.LexModes {
		e.message(fLexMode, func(m *encoder) { encodeLexMode(m, mode) })
	}
	encodeLexStates(e, fLexState, l.LexStates)
	encodeLexStates(e, fKeywordLexState, l.KeywordLexStates)
	e.message(fErrorLexMode, func(m *encoder) { encodeLexMode(m, l.ErrorLexMode) })
	for _, s := range l.FieldMapSlices {
		e.packed(fFieldMapSlice, []uint64{uint64(s[0]), uint64(s[1])})
	}
	for _, fe := range l.FieldMapEntries {
		e.message(fFieldMapEntry, func(m *encoder) {
			m.uint(1, uint64(fe.FieldID))
			m.uint(2, uint64(fe.ChildIndex))
			m.bool(3, fe.Inherited)
		})
	}
	for _, seq := range l.AliasSequences {
		e.packed(fAliasSequence, widen(seq))
	}
	e.packed(fExternalSymbols, widen(l.ExternalSymbols))
	for _, valid := range l.ExternalScannerStates {
		vals := make([]uint64, len(valid))
		for i, ok := range valid {
			if ok {
				vals[i] = 1
			}
		}
		e.packed(fExternalScannerState, vals)
	}
	supers := make([]Symbol, 0, len(l.Supertypes))
	for s := range l.Supertypes {
		supers = append(supers, s)
	}
	slices.Sort(supers)
	for _, s := range supers {
		e.packed(fSupertype, append([]uint64{uint64(s)}, widen(l.Supertypes[s])...))
	}
	return e.b, nil
}

func encodeLexMode(m *encoder, mode LexMode) {
	m.uint(1, uint64(mode.LexState))
	m.uint(2, uint64(mode.AfterSkipState))
	m.uint(3, uint64(mode.ExternalLexState))
}

func encodeLexStates(e *encoder, num protowire.Number, states []LexState) {
	for _, st := range states {
		e.message(num, func(m *encoder) {
			m.uint(1, uint64(st.AcceptToken))
			m.bool(2, st.Skip)
			m.uint(3, uint64(st.Default+1))
			m.uint(4, uint64(st.EOF+1))
			trans := make([]uint64, 0, 3*len(st.Transitions))
			for _, t := range st.Transitions {
				trans = append(trans, uint64(t.Lo), uint64(t.Hi), uint64(t.NextState))
			}
			m.packed(5, trans)
		})
	}
}

func widen[T ~uint16](vals []T) []uint64 {
	out := make([]uint64, len(vals))
	for i, v := range vals {
		out[i] = uint64(v)
	}
	return out
}

type encoder struct{ b []byte }

func (e *encoder) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) sint(num protowire.Number, v int64) {
	e.uint(num, protowire.EncodeZigZag(v))
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if v {
		e.uint(num, 1)
	}
}

// str always writes the field so repeated strings keep their positions.
func (e *encoder) str(num protowire.Number, s string) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

func (e *encoder) packed(num protowire.Number, vals []uint64) {
	var body []byte
	for _, v := range vals {
		body = protowire.AppendVarint(body, v)
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, body)
}

func (e *encoder) message(num protowire.Number, fn func(*encoder)) {
	m := &encoder{}
	fn(m)
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, m.b)
}

// LoadLanguage decodes a grammar artifact written by MarshalBinary.
func LoadLanguage(data []byte, opts ...LoadOption) (*Language, error) {
	if !bytes.HasPrefix(data, artifactMagic) {
		return nil, fmt.Errorf("%w: missing magic", ErrBadArtifact)
	}
	data = data[len(artifactMagic):]
	version, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, fmt.Errorf("%w: version: %v", ErrBadArtifact, protowire.ParseError(n))
	}
	if version != ArtifactVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, version, ArtifactVersion)
	}
	l := &Language{Supertypes: map[Symbol][]Symbol{}}
	err := decodeFields(data[n:], func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case fName:
			l.Name = string(b)
		case fSymbolCount:
			l.SymbolCount = uint32(v)
		case fTokenCount:
			l.TokenCount = uint32(v)
		case fExternalTokenCount:
			l.ExternalTokenCount = uint32(v)
		case fStateCount:
			l.StateCount = uint32(v)
		case fFieldCount:
			l.FieldCount = uint32(v)
		case fProductionIDCount:
			l.ProductionIDCount = uint32(v)
		case fInitialState:
			l.InitialState = StateID(v)
		case fKeywordCaptureToken:
			l.KeywordCaptureToken = Symbol(v)
		case fSymbol:
			var name string
			var md SymbolMetadata
			err := decodeFields(b, func(num protowire.Number, v uint64, b []byte) error {
				switch num {
				case 1:
					name = string(b)
				case 2:
					md.Visible = v != 0
				case 3:
					md.Named = v != 0
				case 4:
					md.Supertype = v != 0
				}
				return nil
			})
			if err != nil {
				return err
			}
			md.Name = name
			l.SymbolNames = append(l.SymbolNames, name)
			l.SymbolMetadata = append(l.SymbolMetadata, md)
		case fFieldName:
			l.FieldNames = append(l.FieldNames, string(b))
		case fParseRow:
			row, err := unpack[uint16](b)
			if err != nil {
				return err
			}
			l.ParseTable = append(l.ParseTable, row)
		case fActionEntry:
			entry, err := decodeActionEntry(b)
			if err != nil {
				return err
			}
			l.ParseActions = append(l.ParseActions, entry)
		case fLexMode:
			mode, err := decodeLexMode(b)
			if err != nil {
				return err
			}
			l.LexModes = append(l.LexModes, mode)
		case fLexState, fKeywordLexState:
			st, err := decodeLexState(b)
			if err != nil {
				return err
			}
			if num == fLexState {
				l.LexStates = append(l.LexStates, st)
			} else {
				l.KeywordLexStates = append(l.KeywordLexStates, st)
			}
		case fErrorLexMode:
			mode, err := decodeLexMode(b)
			if err != nil {
				return err
			}
			l.ErrorLexMode = mode
		case fFieldMapSlice:
			vals, err := unpack[uint16](b)
			if err != nil {
				return err
			}
			if len(vals) != 2 {
				return fmt.Errorf("field map slice has %d values", len(vals))
			}
			l.FieldMapSlices = append(l.FieldMapSlices, [2]uint16{vals[0], vals[1]})
		case fFieldMapEntry:
			var fe FieldMapEntry
			err := decodeFields(b, func(num protowire.Number, v uint64, _ []byte) error {
				switch num {
				case 1:
					fe.FieldID = FieldID(v)
				case 2:
					fe.ChildIndex = uint8(v)
				case 3:
					fe.Inherited = v != 0
				}
				return nil
			})
			if err != nil {
				return err
			}
			l.FieldMapEntries = append(l.FieldMapEntries, fe)
		case fAliasSequence:
			seq, err := unpack[Symbol](b)
			if err != nil {
				return err
			}
			l.AliasSequences = append(l.AliasSequences, seq)
		case fExternalSymbols:
			syms, err := unpack[Symbol](b)
			if err != nil {
				return err
			}
			l.ExternalSymbols = syms
		case fExternalScannerState:
			vals, err := unpack[uint16](b)
			if err != nil {
				return err
			}
			valid := make([]bool, len(vals))
			for i, v := range vals {
				valid[i] = v != 0
			}
			l.ExternalScannerStates = append(l.ExternalScannerStates, valid)
		case fSupertype:
			syms, err := unpack[Symbol](b)
			if err != nil {
				return err
			}
			if len(syms) == 0 {
				return errors.New("empty supertype record")
			}
			l.Supertypes[syms[0]] = syms[1:]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	if err := l.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// validate checks the cross-references the runtime relies on.
func (l *Language) validate() error {
	if len(l.SymbolNames) != int(l.SymbolCount) {
		return fmt.Errorf("%d symbol names for %d symbols", len(l.SymbolNames), l.SymbolCount)
	}
	if len(l.ParseTable) != int(l.StateCount) || len(l.LexModes) != int(l.StateCount) {
		return fmt.Errorf("tables do not cover %d states", l.StateCount)
	}
	for s, row := range l.ParseTable {
		for _, idx := range row {
			if int(idx) >= len(l.ParseActions) {
				return fmt.Errorf("state %d references action %d of %d", s, idx, len(l.ParseActions))
			}
		}
	}
	for _, st := range l.LexStates {
		for _, t := range st.Transitions {
			if t.NextState < 0 || t.NextState >= len(l.LexStates) {
				return fmt.Errorf("lex transition to missing state %d", t.NextState)
			}
		}
	}
	return nil
}

func decodeActionEntry(b []byte) (ParseActionEntry, error) {
	var entry ParseActionEntry
	err := decodeFields(b, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case 1:
			entry.Reusable = v != 0
		case 2:
			var a ParseAction
			err := decodeFields(b, func(num protowire.Number, v uint64, _ []byte) error {
				switch num {
				case 1:
					a.Type = ParseActionType(v)
				case 2:
					a.State = StateID(v)
				case 3:
					a.Symbol = Symbol(v)
				case 4:
					a.ChildCount = uint8(v)
				case 5:
					a.DynamicPrecedence = int16(protowire.DecodeZigZag(v))
				case 6:
					a.ProductionID = uint16(v)
				case 7:
					a.Extra = v != 0
				case 8:
					a.Repetition = v != 0
				case 9:
					a.Rank = uint32(v)
				}
				return nil
			})
			if err != nil {
				return err
			}
			entry.Actions = append(entry.Actions, a)
		}
		return nil
	})
	return entry, err
}

func decodeLexMode(b []byte) (LexMode, error) {
	var mode LexMode
	err := decodeFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			mode.LexState = uint16(v)
		case 2:
			mode.AfterSkipState = uint16(v)
		case 3:
			mode.ExternalLexState = uint16(v)
		}
		return nil
	})
	return mode, err
}

func decodeLexState(b []byte) (LexState, error) {
	st := LexState{Default: -1, EOF: -1}
	err := decodeFields(b, func(num protowire.Number, v uint64, b []byte) error {
		switch num {
		case 1:
			st.AcceptToken = Symbol(v)
		case 2:
			st.Skip = v != 0
		case 3:
			st.Default = int(v) - 1
		case 4:
			st.EOF = int(v) - 1
		case 5:
			vals, err := unpack[uint64](b)
			if err != nil {
				return err
			}
			if len(vals)%3 != 0 {
				return errors.New("lex transitions are not triples")
			}
			for i := 0; i < len(vals); i += 3 {
				st.Transitions = append(st.Transitions, LexTransition{
					Lo: rune(vals[i]), Hi: rune(vals[i+1]), NextState: int(vals[i+2]),
				})
			}
		}
		return nil
	})
	return st, err
}

// decodeFields calls fn for every varint and length-delimited field of a
// message, skipping other wire types.
func decodeFields(b []byte, fn func(num protowire.Number, v uint64, data []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			data, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, 0, data); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func unpack[T ~uint16 | ~uint64](b []byte) ([]T, error) {
	var out []T
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, T(v))
		b = b[n:]
	}
	return out, nil
}
