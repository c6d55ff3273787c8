package sitter

import (
	"unicode/utf8"
	"unsafe"
)

// Token is a lexed token with position info.
type Token struct {
	Symbol Symbol
	// Keyword is the keyword spelled by a word token, or zero. The parser
	// decides whether the keyword or the word applies.
	Keyword Symbol
	Text    string

	PaddingStartByte  uint32
	PaddingStartPoint Point
	StartByte         uint32
	EndByte           uint32
	StartPoint        Point
	EndPoint          Point

	// Lookahead is the number of bytes past EndByte the lexer examined.
	Lookahead uint32
	// Mode is the lex mode the token was produced with.
	Mode LexMode
	// External is set for tokens produced by the external scanner; State
	// is then the scanner state after the token.
	External bool
	State    ExternalState
}

func (t *Token) paddingStart() Length {
	return Length{Bytes: t.PaddingStartByte, Extent: t.PaddingStartPoint}
}

func (t *Token) start() Length { return Length{Bytes: t.StartByte, Extent: t.StartPoint} }

func (t *Token) end() Length { return Length{Bytes: t.EndByte, Extent: t.EndPoint} }

func (t *Token) padding() Length { return t.start().sub(t.paddingStart()) }

func (t *Token) size() Length { return t.end().sub(t.start()) }

// reach is the offset one past the last byte examined for the token.
func (t *Token) reach() uint32 { return t.EndByte + t.Lookahead }

func bytesToStringNoCopy(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Lexer tokenizes source text using the language's DFA tables. A Lexer is
// a pure function of its source, position, external state and mode: the
// same inputs always yield the same token.
type Lexer struct {
	lang   *Language
	source []byte
	pos    Length
	ext    ExternalState
}

// NewLexer creates a lexer for source positioned at its start.
func NewLexer(lang *Language, source []byte) *Lexer {
	return &Lexer{lang: lang, source: source}
}

// Reset moves the lexer to an absolute position.
func (l *Lexer) Reset(offset uint32, pt Point) {
	l.pos = Length{Bytes: offset, Extent: pt}
}

func (l *Lexer) reset(pos Length, ext ExternalState) {
	l.pos = pos
	l.ext = ext
}

// SetExternalState sets the state handed to the external scanner.
func (l *Lexer) SetExternalState(s ExternalState) { l.ext = s }

// Position returns the lexer's current offset.
func (l *Lexer) Position() uint32 { return l.pos.Bytes }

func (l *Lexer) atEOF() bool { return int(l.pos.Bytes) >= len(l.source) }

// Next lexes one token valid in mode. Padding (whitespace and other
// separators) is skipped and recorded on the token. When no token of the
// mode matches, the lexer retries with the language's error mode, and if
// that fails too it returns a one-rune ERROR token so it never stalls. At
// the end of input Next returns a SymbolEnd token.
func (l *Lexer) Next(mode LexMode) Token {
	padStart := l.pos
	var examined uint32

	if mode.ExternalLexState != 0 {
		if tok, ok := l.scanExternal(mode, padStart); ok {
			return tok
		}
	}

	errorMode := false
	state := mode.LexState
	for {
		if l.atEOF() {
			return l.endToken(padStart, mode)
		}
		m := l.scan(l.lang.LexStates, int(state))
		if m.examined > examined {
			examined = m.examined
		}
		if m.ok && m.end.Bytes > l.pos.Bytes {
			if m.skip {
				l.pos = m.end
				if errorMode {
					state = l.lang.ErrorLexMode.AfterSkipState
				} else {
					state = mode.AfterSkipState
				}
				continue
			}
			return l.finish(padStart, m, mode, examined)
		}
		if !errorMode {
			errorMode = true
			if l.pos.Bytes > padStart.Bytes {
				state = l.lang.ErrorLexMode.AfterSkipState
			} else {
				state = l.lang.ErrorLexMode.LexState
			}
			continue
		}
		return l.errorToken(padStart, mode)
	}
}

type dfaMatch struct {
	ok       bool
	skip     bool
	symbol   Symbol
	end      Length
	examined uint32
}

// scan runs the DFA from the lexer position without moving it.
func (l *Lexer) scan(states []LexState, start int) dfaMatch {
	var m dfaMatch
	if start < 0 || start >= len(states) {
		return m
	}
	cur := start
	pos := l.pos
	m.examined = pos.Bytes

	st := &states[cur]
	if st.AcceptToken > 0 || st.Skip {
		m = dfaMatch{ok: true, skip: st.Skip, symbol: st.AcceptToken, end: pos, examined: m.examined}
	}

	for int(pos.Bytes) < len(l.source) {
		r, size := utf8.DecodeRune(l.source[pos.Bytes:])
		if e := pos.Bytes + uint32(size); e > m.examined {
			m.examined = e
		}
		next := -1
		st = &states[cur]
		for i := range st.Transitions {
			tr := &st.Transitions[i]
			if r >= tr.Lo && r <= tr.Hi {
				next = tr.NextState
				break
			}
		}
		if next < 0 && st.Default >= 0 {
			next = st.Default
		}
		if next < 0 {
			break
		}
		pos.Bytes += uint32(size)
		if r == '\n' {
			pos.Extent.Row++
			pos.Extent.Column = 0
		} else {
			pos.Extent.Column += uint32(size)
		}
		cur = next
		ns := &states[cur]
		if ns.AcceptToken > 0 || ns.Skip {
			m.ok = true
			m.skip = ns.Skip
			m.symbol = ns.AcceptToken
			m.end = pos
		}
	}
	return m
}

func (l *Lexer) finish(padStart Length, m dfaMatch, mode LexMode, examined uint32) Token {
	start := l.pos
	l.pos = m.end
	tok := Token{
		Symbol:            m.symbol,
		Text:              bytesToStringNoCopy(l.source[start.Bytes:m.end.Bytes]),
		PaddingStartByte:  padStart.Bytes,
		PaddingStartPoint: padStart.Extent,
		StartByte:         start.Bytes,
		EndByte:           m.end.Bytes,
		StartPoint:        start.Extent,
		EndPoint:          m.end.Extent,
		Lookahead:         lookaheadBytes(examined, m.end.Bytes),
		Mode:              mode,
	}
	if m.symbol == l.lang.KeywordCaptureToken && len(l.lang.KeywordLexStates) > 0 {
		tok.Keyword = l.keyword(start, m.end)
	}
	return tok
}

// keyword runs the keyword DFA over exactly the bytes of a word token.
func (l *Lexer) keyword(start, end Length) Symbol {
	sub := Lexer{lang: l.lang, source: l.source[:end.Bytes], pos: start}
	m := sub.scan(l.lang.KeywordLexStates, 0)
	if m.ok && !m.skip && m.end.Bytes == end.Bytes {
		return m.symbol
	}
	return 0
}

func lookaheadBytes(examined, end uint32) uint32 {
	if examined > end {
		return examined - end
	}
	return 1
}

func (l *Lexer) endToken(padStart Length, mode LexMode) Token {
	return Token{
		Symbol:            SymbolEnd,
		PaddingStartByte:  padStart.Bytes,
		PaddingStartPoint: padStart.Extent,
		StartByte:         l.pos.Bytes,
		EndByte:           l.pos.Bytes,
		StartPoint:        l.pos.Extent,
		EndPoint:          l.pos.Extent,
		Lookahead:         1,
		Mode:              mode,
	}
}

// errorToken consumes one rune as an ERROR token, so that node
// boundaries stay on UTF-8 sequence boundaries. Bytes that do not decode
// are consumed one at a time.
func (l *Lexer) errorToken(padStart Length, mode LexMode) Token {
	start := l.pos
	r, size := utf8.DecodeRune(l.source[start.Bytes:])
	end := start
	end.Bytes += uint32(size)
	if r == '\n' {
		end.Extent.Row++
		end.Extent.Column = 0
	} else {
		end.Extent.Column += uint32(size)
	}
	l.pos = end
	return Token{
		Symbol:            SymbolError,
		Text:              bytesToStringNoCopy(l.source[start.Bytes:end.Bytes]),
		PaddingStartByte:  padStart.Bytes,
		PaddingStartPoint: padStart.Extent,
		StartByte:         start.Bytes,
		EndByte:           end.Bytes,
		StartPoint:        start.Extent,
		EndPoint:          end.Extent,
		Lookahead:         1,
		Mode:              mode,
	}
}
