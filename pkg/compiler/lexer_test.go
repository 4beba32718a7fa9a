package compiler

import "testing"

func TestTokenizeStatement(t *testing.T) {
	input := `let x = 42; // the answer
print(x);`

	want := []struct {
		typ     TokenType
		literal string
	}{
		{TokenLet, "let"},
		{TokenIdentifier, "x"},
		{TokenAssign, "="},
		{TokenInt, "42"},
		{TokenSemicolon, ";"},
		{TokenPrint, "print"},
		{TokenLParen, "("},
		{TokenIdentifier, "x"},
		{TokenRParen, ")"},
		{TokenSemicolon, ";"},
		{TokenEOF, ""},
	}

	tokens := Tokenize(input)
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i].Type != w.typ || tokens[i].Literal != w.literal {
			t.Errorf("token %d = %s, want %s(%q)", i, tokens[i], w.typ, w.literal)
		}
	}
}

func TestTokenizeOperators(t *testing.T) {
	cases := []struct {
		input string
		typ   TokenType
	}{
		{"==", TokenEq},
		{"!=", TokenNe},
		{"<", TokenLt},
		{"<=", TokenLe},
		{">", TokenGt},
		{">=", TokenGe},
		{"=", TokenAssign},
		{"+", TokenPlus},
		{"-", TokenMinus},
		{"*", TokenStar},
		{"/", TokenSlash},
	}
	for _, tc := range cases {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ {
			t.Errorf("%q lexed as %s, want %s", tc.input, tok.Type, tc.typ)
		}
	}
}

func TestTokenizeNumbers(t *testing.T) {
	cases := []struct {
		input string
		typ   TokenType
	}{
		{"0", TokenInt},
		{"1234", TokenInt},
		{"3.14", TokenFloat},
		{"1.5e10", TokenFloat},
		{"2E-3", TokenFloat},
	}
	for _, tc := range cases {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ || tok.Literal != tc.input {
			t.Errorf("%q lexed as %s(%q), want %s", tc.input, tok.Type, tok.Literal, tc.typ)
		}
	}
}

func TestTokenizeKeywordsAndIdentifiers(t *testing.T) {
	l := NewLexer("while whileLoop func funky true x_1")
	want := []TokenType{TokenWhile, TokenIdentifier, TokenFunc, TokenIdentifier, TokenTrue, TokenIdentifier}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w {
			t.Errorf("token %d = %s, want %s", i, tok.Type, w)
		}
	}
}

func TestTokenPositions(t *testing.T) {
	l := NewLexer("let x =\n  5;")
	var tok Token
	for tok = l.NextToken(); tok.Type != TokenInt; tok = l.NextToken() {
	}
	if tok.Pos.Line != 2 || tok.Pos.Column != 3 {
		t.Errorf("5 at %d:%d, want 2:3", tok.Pos.Line, tok.Pos.Column)
	}
}

func TestTokenizeBadCharacter(t *testing.T) {
	tok := NewLexer("let @").NextToken()
	if tok.Type != TokenLet {
		t.Fatalf("first token = %s", tok.Type)
	}
	tokens := Tokenize("let @")
	last := tokens[len(tokens)-1]
	if last.Type != TokenError {
		t.Errorf("last token = %s, want ERROR", last.Type)
	}
}
