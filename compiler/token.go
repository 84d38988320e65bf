package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenAtom    // any other word
	TokenInteger // 42
	TokenNumber  // 3.5
	TokenString  // "hello"

	// Stack expressions
	TokenStackClear // $
	TokenStackExpr  // $r1~> (literal excludes the '$')

	// Operator words
	TokenPeriod     // .
	TokenDump       // .S
	TokenDumpRStack // .R
	TokenPush       // >R
	TokenPop        // R>
	TokenColon      // :

	// Delimiters
	TokenSemicolon // ;
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenAtom:       "ATOM",
	TokenInteger:    "INTEGER",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",
	TokenStackClear: "CLEARSTACK",
	TokenStackExpr:  "STACK_EXPR",
	TokenPeriod:     ".",
	TokenDump:       ".S",
	TokenDumpRStack: ".R",
	TokenPush:       ">R",
	TokenPop:        "R>",
	TokenColon:      ":",
	TokenSemicolon:  ";",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in the source.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based
	Column int // 1-based, in runes
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token. Literal is a substring of the source,
// except for error tokens where it holds the error message.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Operator words, matched case-insensitively.
var operatorWords = map[string]TokenType{
	".":  TokenPeriod,
	".S": TokenDump,
	".R": TokenDumpRStack,
	">R": TokenPush,
	"R>": TokenPop,
	":":  TokenColon,
}

// LookupWord returns the token type for an atom spelling.
func LookupWord(word string) TokenType {
	if tt, ok := operatorWords[strings.ToUpper(word)]; ok {
		return tt
	}
	return TokenAtom
}

// OperatorWords returns the canonical spellings of the operator words in
// sorted order.
func OperatorWords() []string {
	words := make([]string, 0, len(operatorWords))
	for w := range operatorWords {
		words = append(words, w)
	}
	slices.Sort(words)
	return words
}

// IsDelimiter reports whether r ends an atom.
func IsDelimiter(r rune) bool {
	switch r {
	case 0, ' ', '\t', '\v', '\r', '\n', '\f',
		'(', ')', '[', ']', '{', '}', ';', '#':
		return true
	}
	return false
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\v', '\r', '\n', '\f':
		return true
	}
	return false
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
