package sitter

import "testing"

// buildIdentNumberWSDFA builds a DFA that recognizes:
//   - identifiers: [a-z]+  (Symbol 1)
//   - numbers:     [0-9]+  (Symbol 2)
//   - whitespace:  ' ' | '\n'  (Skip)
//
// States:
//
//	0: start state (dispatches to ident, number, or whitespace)
//	1: in identifier (accept Symbol 1)
//	2: in number (accept Symbol 2)
//	3: in whitespace (skip, accept)
func buildIdentNumberWSDFA() []LexState {
	return []LexState{
		{
			Default: -1,
			EOF:     -1,
			Transitions: []LexTransition{
				{Lo: '\n', Hi: '\n', NextState: 3},
				{Lo: ' ', Hi: ' ', NextState: 3},
				{Lo: '0', Hi: '9', NextState: 2},
				{Lo: 'a', Hi: 'z', NextState: 1},
			},
		},
		{
			AcceptToken: 1,
			Default:     -1,
			EOF:         -1,
			Transitions: []LexTransition{{Lo: 'a', Hi: 'z', NextState: 1}},
		},
		{
			AcceptToken: 2,
			Default:     -1,
			EOF:         -1,
			Transitions: []LexTransition{{Lo: '0', Hi: '9', NextState: 2}},
		},
		{
			Skip:    true,
			Default: -1,
			EOF:     -1,
			Transitions: []LexTransition{
				{Lo: '\n', Hi: '\n', NextState: 3},
				{Lo: ' ', Hi: ' ', NextState: 3},
			},
		},
	}
}

func lexerTestLanguage() *Language {
	return &Language{
		Name:        "lexer_test",
		LexStates:   buildIdentNumberWSDFA(),
		SymbolNames: []string{"end", "identifier", "number"},
	}
}

// TestBasicTokens verifies that the lexer recognizes identifiers, numbers,
// and records skipped whitespace as padding.
func TestBasicTokens(t *testing.T) {
	lex := NewLexer(lexerTestLanguage(), []byte("hello 42 world"))

	want := []struct {
		sym        Symbol
		text       string
		pad        uint32
		start, end uint32
	}{
		{1, "hello", 0, 0, 5},
		{2, "42", 5, 6, 8},
		{1, "world", 8, 9, 14},
	}
	for i, w := range want {
		tok := lex.Next(LexMode{})
		if tok.Symbol != w.sym {
			t.Errorf("token %d Symbol = %d, want %d", i, tok.Symbol, w.sym)
		}
		if tok.Text != w.text {
			t.Errorf("token %d Text = %q, want %q", i, tok.Text, w.text)
		}
		if tok.PaddingStartByte != w.pad || tok.StartByte != w.start || tok.EndByte != w.end {
			t.Errorf("token %d bytes = %d/[%d,%d), want %d/[%d,%d)",
				i, tok.PaddingStartByte, tok.StartByte, tok.EndByte, w.pad, w.start, w.end)
		}
		if tok.Lookahead == 0 {
			t.Errorf("token %d has no lookahead", i)
		}
	}

	tok := lex.Next(LexMode{})
	if tok.Symbol != SymbolEnd {
		t.Fatalf("final token Symbol = %d, want end", tok.Symbol)
	}
	if tok.StartByte != 14 || tok.EndByte != 14 {
		t.Errorf("end token at [%d,%d), want [14,14)", tok.StartByte, tok.EndByte)
	}
}

// TestUnknownCharacterBecomesErrorToken verifies the lexer never stalls:
// text no state accepts is consumed one rune at a time.
func TestUnknownCharacterBecomesErrorToken(t *testing.T) {
	lex := NewLexer(lexerTestLanguage(), []byte("a€b"))

	if tok := lex.Next(LexMode{}); tok.Symbol != 1 || tok.Text != "a" {
		t.Fatalf("first token = %d %q, want identifier \"a\"", tok.Symbol, tok.Text)
	}
	tok := lex.Next(LexMode{})
	if tok.Symbol != SymbolError {
		t.Fatalf("second token Symbol = %d, want ERROR", tok.Symbol)
	}
	if tok.Text != "€" || tok.StartByte != 1 || tok.EndByte != 4 {
		t.Errorf("error token = %q [%d,%d), want \"€\" [1,4)", tok.Text, tok.StartByte, tok.EndByte)
	}
	if tok := lex.Next(LexMode{}); tok.Symbol != 1 || tok.StartByte != 4 {
		t.Errorf("third token = %d at %d, want identifier at 4", tok.Symbol, tok.StartByte)
	}
}

func TestTokenPoints(t *testing.T) {
	lex := NewLexer(lexerTestLanguage(), []byte("ab\n  12"))
	lex.Next(LexMode{})
	tok := lex.Next(LexMode{})
	if tok.StartPoint != (Point{Row: 1, Column: 2}) {
		t.Errorf("StartPoint = %+v, want {1 2}", tok.StartPoint)
	}
	if tok.EndPoint != (Point{Row: 1, Column: 4}) {
		t.Errorf("EndPoint = %+v, want {1 4}", tok.EndPoint)
	}
	if tok.PaddingStartPoint != (Point{Row: 0, Column: 2}) {
		t.Errorf("PaddingStartPoint = %+v, want {0 2}", tok.PaddingStartPoint)
	}
}

// TestLexerIsPure verifies that lexing the same position twice gives the
// same token.
func TestLexerIsPure(t *testing.T) {
	src := []byte("abc 123")
	lex := NewLexer(lexerTestLanguage(), src)
	lex.Next(LexMode{})
	first := lex.Next(LexMode{})

	lex.Reset(3, Point{Column: 3})
	second := lex.Next(LexMode{})
	if first.Symbol != second.Symbol || first.PaddingStartByte != second.PaddingStartByte ||
		first.StartByte != second.StartByte || first.EndByte != second.EndByte ||
		first.Lookahead != second.Lookahead {
		t.Errorf("re-lexed token differs:\n%+v\n%+v", first, second)
	}
}
