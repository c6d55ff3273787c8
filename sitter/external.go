package sitter

import "unicode/utf8"

// ExternalScanner produces context-sensitive tokens the DFA lexer cannot
// express. Scan receives the scanner state left by the previous external
// token and the external tokens valid at this point (indexed like
// Language.ExternalSymbols). It returns the state after the token and
// whether a token was produced.
//
// Scan must be a pure function of its inputs: the parser may call it
// speculatively for versions it later discards, and reuses its results
// across edits.
type ExternalScanner interface {
	Scan(lx *ExternalLexer, state ExternalState, valid []bool) (ExternalState, bool)
}

// ExternalScannerFunc adapts a function to ExternalScanner.
type ExternalScannerFunc func(lx *ExternalLexer, state ExternalState, valid []bool) (ExternalState, bool)

// Scan calls f.
func (f ExternalScannerFunc) Scan(lx *ExternalLexer, state ExternalState, valid []bool) (ExternalState, bool) {
	return f(lx, state, valid)
}

// ExternalLexer is the scanner-facing lexer API used by external scanners.
// It mirrors the essential tree-sitter scanner API: lookahead, advance,
// mark_end, and result_symbol.
type ExternalLexer struct {
	source []byte

	start    Length
	pos      Length
	end      Length
	examined uint32
	marked   bool

	result    int
	hasResult bool
}

func newExternalLexer(source []byte, pos Length) *ExternalLexer {
	return &ExternalLexer{source: source, start: pos, pos: pos, end: pos, examined: pos.Bytes}
}

// Lookahead returns the current rune or 0 at EOF.
func (l *ExternalLexer) Lookahead() rune {
	if l.EOF() {
		return 0
	}
	r, size := utf8.DecodeRune(l.source[l.pos.Bytes:])
	if e := l.pos.Bytes + uint32(size); e > l.examined {
		l.examined = e
	}
	return r
}

// EOF reports whether the cursor is at the end of the input.
func (l *ExternalLexer) EOF() bool { return int(l.pos.Bytes) >= len(l.source) }

// Advance consumes one rune. When skip is true, consumed bytes are excluded
// from the token span (scanner whitespace skipping behavior).
func (l *ExternalLexer) Advance(skip bool) {
	if l.EOF() {
		return
	}
	r, size := utf8.DecodeRune(l.source[l.pos.Bytes:])
	l.pos.Bytes += uint32(size)
	if r == '\n' {
		l.pos.Extent.Row++
		l.pos.Extent.Column = 0
	} else {
		l.pos.Extent.Column += uint32(size)
	}
	if l.pos.Bytes > l.examined {
		l.examined = l.pos.Bytes
	}
	if skip {
		l.start = l.pos
		l.end = l.pos
	}
}

// MarkEnd marks the current scanner position as the token end.
func (l *ExternalLexer) MarkEnd() {
	l.end = l.pos
	l.marked = true
}

// SetResultSymbol sets the external token (an index into
// Language.ExternalSymbols) to emit when Scan returns true.
func (l *ExternalLexer) SetResultSymbol(index int) {
	l.result = index
	l.hasResult = true
}

// GetColumn returns the current column (0-based) at the scanner cursor.
func (l *ExternalLexer) GetColumn() uint32 {
	return l.pos.Extent.Column
}

// scanExternal runs the language's external scanner at the lexer
// position.
func (l *Lexer) scanExternal(mode LexMode, padStart Length) (Token, bool) {
	lang := l.lang
	if lang.ExternalScanner == nil || int(mode.ExternalLexState) >= len(lang.ExternalScannerStates) {
		return Token{}, false
	}
	valid := lang.ExternalScannerStates[mode.ExternalLexState]
	lx := newExternalLexer(l.source, padStart)
	next, ok := lang.ExternalScanner.Scan(lx, l.ext, valid)
	if !ok || !lx.hasResult || lx.result < 0 || lx.result >= len(lang.ExternalSymbols) || !valid[lx.result] {
		return Token{}, false
	}
	end := lx.end
	if !lx.marked {
		end = lx.pos
	}
	if end.Bytes < lx.start.Bytes {
		return Token{}, false
	}
	// Empty tokens must change the state, or the parser could loop.
	if end.Bytes == lx.start.Bytes && next.Equal(l.ext) {
		return Token{}, false
	}
	l.pos = end
	return Token{
		Symbol:            lang.ExternalSymbols[lx.result],
		Text:              bytesToStringNoCopy(l.source[lx.start.Bytes:end.Bytes]),
		PaddingStartByte:  padStart.Bytes,
		PaddingStartPoint: padStart.Extent,
		StartByte:         lx.start.Bytes,
		EndByte:           end.Bytes,
		StartPoint:        lx.start.Extent,
		EndPoint:          end.Extent,
		Lookahead:         lookaheadBytes(lx.examined, end.Bytes),
		Mode:              mode,
		External:          true,
		State:             next,
	}, true
}
