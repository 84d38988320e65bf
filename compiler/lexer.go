package compiler

import (
	"iter"
	"unicode/utf8"
)

// Lexer tokenizes fth source code. It produces tokens on demand and never
// backs up.
type Lexer struct {
	input   string
	pos     int  // offset of ch
	readPos int  // offset after ch
	ch      rune // current character, 0 at end of input
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
}

// NewLexer creates a new lexer for the given input. A NUL byte in the
// input ends it.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.col++
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) errorToken(msg string) Token {
	return Token{Type: TokenError, Literal: msg, Pos: l.position()}
}

// NextToken returns the next token. After the end of input it keeps
// returning EOF.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}

	case l.ch == '[':
		l.readChar()
		return Token{Type: TokenLBracket, Literal: "[", Pos: pos}

	case l.ch == ']':
		l.readChar()
		return Token{Type: TokenRBracket, Literal: "]", Pos: pos}

	case l.ch == '{':
		l.readChar()
		return Token{Type: TokenLBrace, Literal: "{", Pos: pos}

	case l.ch == '}':
		l.readChar()
		return Token{Type: TokenRBrace, Literal: "}", Pos: pos}

	case l.ch == ';':
		l.readChar()
		return Token{Type: TokenSemicolon, Literal: ";", Pos: pos}

	case isDigit(l.ch):
		return l.readNumber(pos)

	case l.ch == '"':
		return l.readString(pos)

	case l.ch == '$':
		return l.readStackExpr(pos)

	default:
		word := l.readWord()
		return Token{Type: LookupWord(word), Literal: word, Pos: pos}
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for isSpace(l.ch) {
			l.readChar()
		}

		// '#' comments run to the end of the line.
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		break
	}
}

// readWord consumes a maximal run of non-delimiter characters.
func (l *Lexer) readWord() string {
	start := l.pos
	for !IsDelimiter(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	isFloat := false
	for {
		switch {
		case isDigit(l.ch):
			l.readChar()
		case l.ch == '.':
			if isFloat {
				return l.errorToken("unexpected second '.' in number literal")
			}
			isFloat = true
			l.readChar()
		default:
			tt := TokenInteger
			if isFloat {
				tt = TokenNumber
			}
			return Token{Type: tt, Literal: l.input[start:l.pos], Pos: pos}
		}
	}
}

// readString reads a double-quoted string. There are no escapes and the
// string may span lines.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "
	start := l.pos
	for l.ch != '"' {
		if l.ch == 0 {
			return l.errorToken("unterminated string")
		}
		l.readChar()
	}
	lit := l.input[start:l.pos]
	l.readChar() // consume closing "
	return Token{Type: TokenString, Literal: lit, Pos: pos}
}

func (l *Lexer) readStackExpr(pos Position) Token {
	l.readChar() // consume $
	body := l.readWord()
	if body == "" {
		return Token{Type: TokenStackClear, Literal: "$", Pos: pos}
	}
	return Token{Type: TokenStackExpr, Literal: body, Pos: pos}
}

// Tokens returns an iterator over the remaining tokens. The sequence ends
// after the first EOF or error token, which is included.
func (l *Lexer) Tokens() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for {
			tok := l.NextToken()
			if !yield(tok) {
				return
			}
			if tok.Type == TokenEOF || tok.Type == TokenError {
				return
			}
		}
	}
}

// Tokenize returns all tokens in input, ending with EOF or an error token.
func Tokenize(input string) []Token {
	var tokens []Token
	for tok := range NewLexer(input).Tokens() {
		tokens = append(tokens, tok)
	}
	return tokens
}
