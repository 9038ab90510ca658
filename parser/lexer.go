package parser

import (
	"math"
	"strconv"
	"strings"
)

// Lexer tokenizes script source code
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	lineStart    int // offset of the first byte of the current line
}

// NewLexer creates a new Lexer; line numbers start at startLine
func NewLexer(input string, startLine int) *Lexer {
	if startLine < 1 {
		startLine = 1
	}
	l := &Lexer{
		input: input,
		line:  startLine,
	}
	l.readChar()
	return l
}

// readChar reads the next character and advances position
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPosition
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0 // ASCII NUL
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

// peekChar returns the next character without advancing
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) pos() Position {
	return Position{
		Line:   l.line,
		Column: l.position - l.lineStart + 1,
		Offset: l.position,
	}
}

// skipWhitespace skips whitespace and both comment forms.
// It returns a non-empty message for an unterminated block comment.
func (l *Lexer) skipWhitespace() string {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					return "unterminated block comment"
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
		default:
			return ""
		}
	}
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	start := l.pos()
	if msg := l.skipWhitespace(); msg != "" {
		return Token{Type: TOKEN_ILLEGAL, Value: msg, Position: start}
	}

	tok := Token{Position: l.pos()}

	switch l.ch {
	case 0:
		tok.Type = TOKEN_EOF
		return tok
	case '"':
		return l.readString()
	case '(':
		tok.Type = TOKEN_LPAREN
	case ')':
		tok.Type = TOKEN_RPAREN
	case '{':
		tok.Type = TOKEN_LBRACE
	case '}':
		tok.Type = TOKEN_RBRACE
	case '[':
		tok.Type = TOKEN_LBRACKET
	case ']':
		tok.Type = TOKEN_RBRACKET
	case ',':
		tok.Type = TOKEN_COMMA
	case ';':
		tok.Type = TOKEN_SEMICOLON
	case ':':
		tok.Type = TOKEN_COLON
	case '~':
		tok.Type = TOKEN_BITNOT
	case '^':
		tok.Type = TOKEN_BITXOR
	case '+':
		tok.Type = l.either2('+', TOKEN_INCR, '=', TOKEN_ADD_ASSIGN, TOKEN_PLUS)
	case '-':
		tok.Type = l.either2('-', TOKEN_DECR, '=', TOKEN_SUB_ASSIGN, TOKEN_MINUS)
	case '*':
		tok.Type = l.either('=', TOKEN_MUL_ASSIGN, TOKEN_STAR)
	case '/':
		tok.Type = l.either('=', TOKEN_DIV_ASSIGN, TOKEN_SLASH)
	case '%':
		tok.Type = l.either('=', TOKEN_MOD_ASSIGN, TOKEN_PERCENT)
	case '=':
		tok.Type = l.either('=', TOKEN_EQ, TOKEN_ASSIGN)
	case '!':
		tok.Type = l.either('=', TOKEN_NE, TOKEN_NOT)
	case '<':
		tok.Type = l.either2('=', TOKEN_LE, '<', TOKEN_LSHIFT, TOKEN_LT)
	case '>':
		tok.Type = l.either2('=', TOKEN_GE, '>', TOKEN_RSHIFT, TOKEN_GT)
	case '&':
		tok.Type = l.either('&', TOKEN_AND, TOKEN_BITAND)
	case '|':
		tok.Type = l.either('|', TOKEN_OR, TOKEN_BITOR)
	default:
		if isDigit(l.ch) {
			return l.readNumber()
		}
		if isSigil(l.ch) || isIdentStart(l.ch) {
			return l.readIdentifier()
		}
		tok.Type = TOKEN_ILLEGAL
		tok.Value = "unexpected character " + strconv.QuoteRune(rune(l.ch))
		l.readChar()
		return tok
	}

	l.readChar()
	tok.Value = l.input[tok.Position.Offset:l.position]
	return tok
}

// either consumes a second char c when present. The caller consumes
// the final char.
func (l *Lexer) either(c byte, two, one TokenType) TokenType {
	if l.peekChar() == c {
		l.readChar()
		return two
	}
	return one
}

func (l *Lexer) either2(c1 byte, two1 TokenType, c2 byte, two2 TokenType, one TokenType) TokenType {
	switch l.peekChar() {
	case c1:
		l.readChar()
		return two1
	case c2:
		l.readChar()
		return two2
	}
	return one
}

// readIdentifier reads sigils, the name body and an optional trailing '$'
func (l *Lexer) readIdentifier() Token {
	tok := Token{Type: TOKEN_IDENTIFIER, Position: l.pos()}
	start := l.position

	if l.ch == '$' {
		l.readChar()
	}
	if l.ch == '@' {
		l.readChar()
	}
	if l.ch == '#' {
		l.readChar()
	}
	if l.ch == '#' {
		l.readChar()
	}

	body := l.position
	for isIdentStart(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	if l.position == body {
		tok.Type = TOKEN_ILLEGAL
		tok.Value = "missing name after " + strconv.Quote(l.input[start:l.position])
		return tok
	}
	if l.ch == '$' {
		l.readChar()
	}

	tok.Value = l.input[start:l.position]
	return tok
}

// readNumber reads a decimal, octal (leading 0) or hex (leading 0x) literal.
// Out-of-range literals saturate.
func (l *Lexer) readNumber() Token {
	tok := Token{Type: TOKEN_INT, Position: l.pos()}
	start := l.position

	base := 10
	digits := start
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		base = 16
		l.readChar()
		l.readChar()
		digits = l.position
		for isHexDigit(l.ch) {
			l.readChar()
		}
		if l.position == digits {
			tok.Type = TOKEN_ILLEGAL
			tok.Value = "missing digits in hex literal"
			return tok
		}
	} else {
		if l.ch == '0' {
			base = 8
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	tok.Value = l.input[start:l.position]
	n, err := strconv.ParseUint(l.input[digits:l.position], base, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			tok.Int = math.MaxInt64
			return tok
		}
		tok.Type = TOKEN_ILLEGAL
		tok.Value = "invalid number " + strconv.Quote(tok.Value)
		return tok
	}
	if n > math.MaxInt64 {
		n = math.MaxInt64
	}
	tok.Int = int64(n)
	return tok
}

// readString reads a double-quoted literal. A backslash takes the next
// char literally.
func (l *Lexer) readString() Token {
	tok := Token{Type: TOKEN_STRING, Position: l.pos()}
	start := l.position
	l.readChar() // skip opening "

	var b strings.Builder
	for l.ch != '"' {
		switch l.ch {
		case 0:
			return l.illegal(tok.Position, "unterminated string")
		case '\n':
			return l.illegal(l.pos(), "unexpected newline in string")
		case '\\':
			l.readChar()
			if l.ch == 0 {
				return l.illegal(tok.Position, "unterminated string")
			}
			if l.ch == '\n' {
				return l.illegal(l.pos(), "unexpected newline in string")
			}
		}
		b.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar() // skip closing "

	tok.Value = l.input[start:l.position]
	tok.Literal = b.String()
	return tok
}

func (l *Lexer) illegal(pos Position, msg string) Token {
	return Token{Type: TOKEN_ILLEGAL, Value: msg, Position: pos}
}

// LineText returns the source line containing offset, without its newline
func (l *Lexer) LineText(offset int) string {
	return lineAt(l.input, offset)
}

func lineAt(src string, offset int) string {
	if offset > len(src) {
		offset = len(src)
	}
	if offset < 0 {
		offset = 0
	}
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	end := strings.IndexByte(src[offset:], '\n')
	if end < 0 {
		end = len(src)
	} else {
		end += offset
	}
	return strings.TrimRight(src[start:end], "\r")
}

func isSigil(ch byte) bool {
	return ch == '$' || ch == '@' || ch == '#'
}

// isIdentStart returns true for letters, underscore and bytes of multibyte text
func isIdentStart(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_' || ch >= 0x80
}

// isDigit returns true if the character is a digit
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
