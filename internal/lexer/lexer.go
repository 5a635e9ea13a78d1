package lexer

import (
	"github.com/xirelogy/go-lox/internal/token"
)

// Lexer converts source text into a stream of tokens on demand.
// A Lexer is not restartable; create one per compile.
type Lexer struct {
	input   string
	start   int // first byte of the token being scanned
	current int // next byte to read
	line    int
}

// New creates a lexer for the provided source text.
func New(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
	}
}

// NextToken returns the next token from the input. Once the input is
// exhausted every call returns an EOF token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()
	l.start = l.current

	if l.atEnd() {
		return l.makeToken(token.EOF)
	}

	ch := l.advance()
	if isLetter(ch) {
		return l.readIdentifier()
	}
	if isDigit(ch) {
		return l.readNumber()
	}

	switch ch {
	case '(':
		return l.makeToken(token.LParen)
	case ')':
		return l.makeToken(token.RParen)
	case '{':
		return l.makeToken(token.LBrace)
	case '}':
		return l.makeToken(token.RBrace)
	case ';':
		return l.makeToken(token.Semicolon)
	case ',':
		return l.makeToken(token.Comma)
	case '.':
		return l.makeToken(token.Dot)
	case '-':
		return l.makeToken(token.Minus)
	case '+':
		return l.makeToken(token.Plus)
	case '/':
		return l.makeToken(token.Slash)
	case '*':
		return l.makeToken(token.Star)
	case '!':
		return l.makeToken(l.pick('=', token.BangEqual, token.Bang))
	case '=':
		return l.makeToken(l.pick('=', token.Equal, token.Assign))
	case '<':
		return l.makeToken(l.pick('=', token.LessEqual, token.Less))
	case '>':
		return l.makeToken(l.pick('=', token.GreaterEqual, token.Greater))
	case '"':
		return l.readString()
	}

	return l.errorToken("Unexpected character.")
}

func (l *Lexer) makeToken(t token.Type) token.Token {
	return token.Token{
		Type:   t,
		Lexeme: l.input[l.start:l.current],
		Line:   l.line,
	}
}

func (l *Lexer) errorToken(msg string) token.Token {
	return token.Token{
		Type:   token.Error,
		Lexeme: msg,
		Line:   l.line,
	}
}

// pick consumes next when it is the following character and returns
// matched, otherwise it returns single.
func (l *Lexer) pick(next byte, matched, single token.Type) token.Type {
	if l.atEnd() || l.input[l.current] != next {
		return single
	}
	l.current++
	return matched
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() {
		switch l.peek() {
		case ' ', '\r', '\t':
			l.advance()
		case '\n':
			l.line++
			l.advance()
		case '/':
			if l.peekNext() != '/' {
				return
			}
			for !l.atEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier() token.Token {
	for isLetter(l.peek()) || isDigit(l.peek()) {
		l.advance()
	}
	return l.makeToken(token.LookupIdent(l.input[l.start:l.current]))
}

func (l *Lexer) readNumber() token.Token {
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.advance() // consume '.'
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	return l.makeToken(token.Number)
}

// readString scans a string literal. Strings may span lines and have no
// escape sequences; the lexeme keeps its surrounding quotes.
func (l *Lexer) readString() token.Token {
	for !l.atEnd() && l.peek() != '"' {
		if l.peek() == '\n' {
			l.line++
		}
		l.advance()
	}
	if l.atEnd() {
		return l.errorToken("Unterminated string.")
	}
	l.advance() // closing quote
	return l.makeToken(token.String)
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) atEnd() bool {
	return l.current >= len(l.input)
}

func (l *Lexer) advance() byte {
	ch := l.input[l.current]
	l.current++
	return ch
}

func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.input[l.current]
}

func (l *Lexer) peekNext() byte {
	if l.current+1 >= len(l.input) {
		return 0
	}
	return l.input[l.current+1]
}
