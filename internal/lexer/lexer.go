// Package lexer implements the GVL lexical analyzer. The scanner is a
// plain hand-written loop over the input bytes with full position
// tracking for diagnostics.
package lexer

import (
	"fmt"

	"github.com/gridverify/gridverify/internal/position"
)

// TokenType represents the type of a token.
type TokenType int

// String returns a string representation of the token type.
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(tt))
}

// Token types.
const (
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdentifier
	TokenNumber   // 42
	TokenBvNumber // 42bv32
	TokenString   // "..." (attribute arguments only)

	// Keywords
	TokenConst
	TokenVar
	TokenAxiom
	TokenFunction
	TokenProcedure
	TokenImplementation
	TokenReturns
	TokenRequires
	TokenEnsures
	TokenModifies
	TokenFree
	TokenInvariant
	TokenUnique
	TokenIf
	TokenThen
	TokenElse
	TokenWhile
	TokenBreak
	TokenCall
	TokenAssert
	TokenAssume
	TokenHavoc
	TokenTrue
	TokenFalse
	TokenForall
	TokenExists
	TokenBool
	TokenInt
	TokenBv32
	TokenBv64
	TokenDiv
	TokenMod

	// Operators and punctuation
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenComma     // ,
	TokenColon     // :
	TokenColonColon
	TokenAssign   // :=
	TokenAttrOpen // {:
	TokenPlus
	TokenMinus
	TokenStar
	TokenLt
	TokenLe
	TokenGt
	TokenGe
	TokenEq      // ==
	TokenNeq     // !=
	TokenNot     // !
	TokenAndAnd  // &&
	TokenOrOr    // ||
	TokenImplies // ==>
)

var tokenNames = map[TokenType]string{
	TokenEOF:            "EOF",
	TokenError:          "ERROR",
	TokenIdentifier:     "IDENT",
	TokenNumber:         "NUMBER",
	TokenBvNumber:       "BVNUMBER",
	TokenString:         "STRING",
	TokenConst:          "const",
	TokenVar:            "var",
	TokenAxiom:          "axiom",
	TokenFunction:       "function",
	TokenProcedure:      "procedure",
	TokenImplementation: "implementation",
	TokenReturns:        "returns",
	TokenRequires:       "requires",
	TokenEnsures:        "ensures",
	TokenModifies:       "modifies",
	TokenFree:           "free",
	TokenInvariant:      "invariant",
	TokenUnique:         "unique",
	TokenIf:             "if",
	TokenThen:           "then",
	TokenElse:           "else",
	TokenWhile:          "while",
	TokenBreak:          "break",
	TokenCall:           "call",
	TokenAssert:         "assert",
	TokenAssume:         "assume",
	TokenHavoc:          "havoc",
	TokenTrue:           "true",
	TokenFalse:          "false",
	TokenForall:         "forall",
	TokenExists:         "exists",
	TokenBool:           "bool",
	TokenInt:            "int",
	TokenBv32:           "bv32",
	TokenBv64:           "bv64",
	TokenDiv:            "div",
	TokenMod:            "mod",
	TokenLParen:         "(",
	TokenRParen:         ")",
	TokenLBrace:         "{",
	TokenRBrace:         "}",
	TokenLBracket:       "[",
	TokenRBracket:       "]",
	TokenSemicolon:      ";",
	TokenComma:          ",",
	TokenColon:          ":",
	TokenColonColon:     "::",
	TokenAssign:         ":=",
	TokenAttrOpen:       "{:",
	TokenPlus:           "+",
	TokenMinus:          "-",
	TokenStar:           "*",
	TokenLt:             "<",
	TokenLe:             "<=",
	TokenGt:             ">",
	TokenGe:             ">=",
	TokenEq:             "==",
	TokenNeq:            "!=",
	TokenNot:            "!",
	TokenAndAnd:         "&&",
	TokenOrOr:           "||",
	TokenImplies:        "==>",
}

var keywords = map[string]TokenType{
	"const":          TokenConst,
	"var":            TokenVar,
	"axiom":          TokenAxiom,
	"function":       TokenFunction,
	"procedure":      TokenProcedure,
	"implementation": TokenImplementation,
	"returns":        TokenReturns,
	"requires":       TokenRequires,
	"ensures":        TokenEnsures,
	"modifies":       TokenModifies,
	"free":           TokenFree,
	"invariant":      TokenInvariant,
	"unique":         TokenUnique,
	"if":             TokenIf,
	"then":           TokenThen,
	"else":           TokenElse,
	"while":          TokenWhile,
	"break":          TokenBreak,
	"call":           TokenCall,
	"assert":         TokenAssert,
	"assume":         TokenAssume,
	"havoc":          TokenHavoc,
	"true":           TokenTrue,
	"false":          TokenFalse,
	"forall":         TokenForall,
	"exists":         TokenExists,
	"bool":           TokenBool,
	"int":            TokenInt,
	"bv32":           TokenBv32,
	"bv64":           TokenBv64,
	"div":            TokenDiv,
	"mod":            TokenMod,
}

// Token is a single lexical token with its source span.
type Token struct {
	Type TokenType
	Text string
	Span position.Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type.String(), t.Text)
}

// Lexer scans GVL source text into tokens.
type Lexer struct {
	src      string
	filename string
	offset   int
	line     int
	column   int
}

// New creates a lexer for the given source text.
func New(src, filename string) *Lexer {
	return &Lexer{src: src, filename: filename, line: 1, column: 1}
}

func (l *Lexer) pos() position.Position {
	return position.Position{Filename: l.filename, Line: l.line, Column: l.column, Offset: l.offset}
}

func (l *Lexer) peek() byte {
	if l.offset >= len(l.src) {
		return 0
	}
	return l.src[l.offset]
}

func (l *Lexer) peekAt(n int) byte {
	if l.offset+n >= len(l.src) {
		return 0
	}
	return l.src[l.offset+n]
}

func (l *Lexer) advance() byte {
	ch := l.src[l.offset]
	l.offset++
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return ch
}

func (l *Lexer) skipSpaceAndComments() {
	for l.offset < len(l.src) {
		ch := l.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '/' && l.peekAt(1) == '/':
			for l.offset < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case ch == '/' && l.peekAt(1) == '*':
			l.advance()
			l.advance()
			for l.offset < len(l.src) {
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '$' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func (l *Lexer) token(tt TokenType, text string, start position.Position) Token {
	return Token{Type: tt, Text: text, Span: position.NewSpan(start, l.pos())}
}

// Next scans and returns the next token.
func (l *Lexer) Next() Token {
	l.skipSpaceAndComments()
	start := l.pos()
	if l.offset >= len(l.src) {
		return l.token(TokenEOF, "", start)
	}

	ch := l.peek()
	switch {
	case isIdentStart(ch):
		return l.scanIdentifier(start)
	case isDigit(ch):
		return l.scanNumber(start)
	case ch == '"':
		return l.scanString(start)
	}

	l.advance()
	switch ch {
	case '(':
		return l.token(TokenLParen, "(", start)
	case ')':
		return l.token(TokenRParen, ")", start)
	case '{':
		if l.peek() == ':' {
			l.advance()
			return l.token(TokenAttrOpen, "{:", start)
		}
		return l.token(TokenLBrace, "{", start)
	case '}':
		return l.token(TokenRBrace, "}", start)
	case '[':
		return l.token(TokenLBracket, "[", start)
	case ']':
		return l.token(TokenRBracket, "]", start)
	case ';':
		return l.token(TokenSemicolon, ";", start)
	case ',':
		return l.token(TokenComma, ",", start)
	case ':':
		if l.peek() == '=' {
			l.advance()
			return l.token(TokenAssign, ":=", start)
		}
		if l.peek() == ':' {
			l.advance()
			return l.token(TokenColonColon, "::", start)
		}
		return l.token(TokenColon, ":", start)
	case '+':
		return l.token(TokenPlus, "+", start)
	case '-':
		return l.token(TokenMinus, "-", start)
	case '*':
		return l.token(TokenStar, "*", start)
	case '<':
		if l.peek() == '=' {
			l.advance()
			return l.token(TokenLe, "<=", start)
		}
		return l.token(TokenLt, "<", start)
	case '>':
		if l.peek() == '=' {
			l.advance()
			return l.token(TokenGe, ">=", start)
		}
		return l.token(TokenGt, ">", start)
	case '=':
		if l.peek() == '=' {
			l.advance()
			if l.peek() == '>' {
				l.advance()
				return l.token(TokenImplies, "==>", start)
			}
			return l.token(TokenEq, "==", start)
		}
		return l.token(TokenError, "=", start)
	case '!':
		if l.peek() == '=' {
			l.advance()
			return l.token(TokenNeq, "!=", start)
		}
		return l.token(TokenNot, "!", start)
	case '&':
		if l.peek() == '&' {
			l.advance()
			return l.token(TokenAndAnd, "&&", start)
		}
		return l.token(TokenError, "&", start)
	case '|':
		if l.peek() == '|' {
			l.advance()
			return l.token(TokenOrOr, "||", start)
		}
		return l.token(TokenError, "|", start)
	}
	return l.token(TokenError, string(ch), start)
}

func (l *Lexer) scanIdentifier(start position.Position) Token {
	begin := l.offset
	for l.offset < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	text := l.src[begin:l.offset]
	if kw, ok := keywords[text]; ok {
		return l.token(kw, text, start)
	}
	return l.token(TokenIdentifier, text, start)
}

func (l *Lexer) scanNumber(start position.Position) Token {
	begin := l.offset
	for l.offset < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	// Bitvector literal suffix: 42bv32 / 42bv64.
	if l.peek() == 'b' && l.peekAt(1) == 'v' && isDigit(l.peekAt(2)) {
		l.advance()
		l.advance()
		for l.offset < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
		return l.token(TokenBvNumber, l.src[begin:l.offset], start)
	}
	return l.token(TokenNumber, l.src[begin:l.offset], start)
}

func (l *Lexer) scanString(start position.Position) Token {
	l.advance() // opening quote
	begin := l.offset
	for l.offset < len(l.src) && l.peek() != '"' && l.peek() != '\n' {
		l.advance()
	}
	if l.peek() != '"' {
		return l.token(TokenError, l.src[begin:l.offset], start)
	}
	text := l.src[begin:l.offset]
	l.advance() // closing quote
	return l.token(TokenString, text, start)
}

// Tokenize scans the whole input, stopping after EOF or the first
// error token.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}
