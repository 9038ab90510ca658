package parser

// TokenType represents different types of lexical tokens
type TokenType int

const (
	// Special tokens
	TOKEN_EOF     TokenType = iota
	TOKEN_ILLEGAL           // Value holds the diagnostic message

	// Literals
	TOKEN_INT    // 42, 0x2A, 052
	TOKEN_STRING // "hello"

	// Identifiers, sigils included: .name, @name, $name$, #name, ##name
	TOKEN_IDENTIFIER

	// Operators
	TOKEN_PLUS    // +
	TOKEN_MINUS   // -
	TOKEN_STAR    // *
	TOKEN_SLASH   // /
	TOKEN_PERCENT // %

	TOKEN_EQ // ==
	TOKEN_NE // !=
	TOKEN_LT // <
	TOKEN_GT // >
	TOKEN_LE // <=
	TOKEN_GE // >=

	TOKEN_AND // &&
	TOKEN_OR  // ||
	TOKEN_NOT // !

	TOKEN_BITAND // &
	TOKEN_BITOR  // |
	TOKEN_BITXOR // ^
	TOKEN_BITNOT // ~
	TOKEN_LSHIFT // <<
	TOKEN_RSHIFT // >>

	TOKEN_ASSIGN     // =
	TOKEN_ADD_ASSIGN // +=
	TOKEN_SUB_ASSIGN // -=
	TOKEN_MUL_ASSIGN // *=
	TOKEN_DIV_ASSIGN // /=
	TOKEN_MOD_ASSIGN // %=
	TOKEN_INCR       // ++
	TOKEN_DECR       // --

	// Delimiters
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_LBRACE    // {
	TOKEN_RBRACE    // }
	TOKEN_LBRACKET  // [
	TOKEN_RBRACKET  // ]
	TOKEN_COMMA     // ,
	TOKEN_SEMICOLON // ;
	TOKEN_COLON     // :
)

// Position represents a position in the source code
type Position struct {
	Line   int // absolute line, offset by the compile start line
	Column int // 1-based byte column
	Offset int // byte offset into the source
}

// Token represents a lexical token
type Token struct {
	Type     TokenType
	Value    string // raw text; message for TOKEN_ILLEGAL
	Literal  string // decoded string value (for TOKEN_STRING)
	Int      int64  // decoded value (for TOKEN_INT)
	Position Position
}

var tokenNames = map[TokenType]string{
	TOKEN_EOF:        "EOF",
	TOKEN_ILLEGAL:    "ILLEGAL",
	TOKEN_INT:        "INT",
	TOKEN_STRING:     "STRING",
	TOKEN_IDENTIFIER: "IDENTIFIER",
	TOKEN_PLUS:       "+",
	TOKEN_MINUS:      "-",
	TOKEN_STAR:       "*",
	TOKEN_SLASH:      "/",
	TOKEN_PERCENT:    "%",
	TOKEN_EQ:         "==",
	TOKEN_NE:         "!=",
	TOKEN_LT:         "<",
	TOKEN_GT:         ">",
	TOKEN_LE:         "<=",
	TOKEN_GE:         ">=",
	TOKEN_AND:        "&&",
	TOKEN_OR:         "||",
	TOKEN_NOT:        "!",
	TOKEN_BITAND:     "&",
	TOKEN_BITOR:      "|",
	TOKEN_BITXOR:     "^",
	TOKEN_BITNOT:     "~",
	TOKEN_LSHIFT:     "<<",
	TOKEN_RSHIFT:     ">>",
	TOKEN_ASSIGN:     "=",
	TOKEN_ADD_ASSIGN: "+=",
	TOKEN_SUB_ASSIGN: "-=",
	TOKEN_MUL_ASSIGN: "*=",
	TOKEN_DIV_ASSIGN: "/=",
	TOKEN_MOD_ASSIGN: "%=",
	TOKEN_INCR:       "++",
	TOKEN_DECR:       "--",
	TOKEN_LPAREN:     "(",
	TOKEN_RPAREN:     ")",
	TOKEN_LBRACE:     "{",
	TOKEN_RBRACE:     "}",
	TOKEN_LBRACKET:   "[",
	TOKEN_RBRACKET:   "]",
	TOKEN_COMMA:      ",",
	TOKEN_SEMICOLON:  ";",
	TOKEN_COLON:      ":",
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsAssign reports whether t is one of the assignment operators
func (t TokenType) IsAssign() bool {
	switch t {
	case TOKEN_ASSIGN, TOKEN_ADD_ASSIGN, TOKEN_SUB_ASSIGN, TOKEN_MUL_ASSIGN, TOKEN_DIV_ASSIGN, TOKEN_MOD_ASSIGN:
		return true
	}
	return false
}
