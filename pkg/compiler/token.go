package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInt        // 42
	TokenFloat      // 3.14, 1.5e10
	TokenIdentifier // foo, counter

	// Operators
	TokenAssign // =
	TokenPlus   // +
	TokenMinus  // -
	TokenStar   // *
	TokenSlash  // /
	TokenEq     // ==
	TokenNe     // !=
	TokenLt     // <
	TokenLe     // <=
	TokenGt     // >
	TokenGe     // >=

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;

	// Keywords
	TokenLet
	TokenIf
	TokenElse
	TokenWhile
	TokenFunc
	TokenReturn
	TokenPrint
	TokenTrue
	TokenFalse
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInt:        "INT",
	TokenFloat:      "FLOAT",
	TokenIdentifier: "IDENTIFIER",
	TokenAssign:     "=",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenEq:         "==",
	TokenNe:         "!=",
	TokenLt:         "<",
	TokenLe:         "<=",
	TokenGt:         ">",
	TokenGe:         ">=",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenSemicolon:  ";",
	TokenLet:        "let",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenFunc:       "func",
	TokenReturn:     "return",
	TokenPrint:      "print",
	TokenTrue:       "true",
	TokenFalse:      "false",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in source text.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":    TokenLet,
	"if":     TokenIf,
	"else":   TokenElse,
	"while":  TokenWhile,
	"func":   TokenFunc,
	"return": TokenReturn,
	"print":  TokenPrint,
	"true":   TokenTrue,
	"false":  TokenFalse,
}
