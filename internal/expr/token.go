// Package expr implements the filter expression language used by query
// plans: lexing, parsing, SQL formatting, column collection, and partial
// evaluation against partition values.
package expr

import "strings"

// TokenType identifies the lexical class of a token.
type TokenType int

// Token types.
const (
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	// Literals and identifiers
	TOKEN_IDENT  // column_name or "quoted name"
	TOKEN_NUMBER // 42, 3.14, 1e9
	TOKEN_STRING // 'text'

	// Keywords
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT
	TOKEN_IN
	TOKEN_BETWEEN
	TOKEN_LIKE
	TOKEN_ILIKE
	TOKEN_IS
	TOKEN_NULL
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_CASE
	TOKEN_WHEN
	TOKEN_THEN
	TOKEN_ELSE
	TOKEN_END
	TOKEN_CAST
	TOKEN_AS
	TOKEN_ESCAPE

	// Operators and punctuation
	TOKEN_EQ     // =
	TOKEN_NE     // != or <>
	TOKEN_LT     // <
	TOKEN_GT     // >
	TOKEN_LE     // <=
	TOKEN_GE     // >=
	TOKEN_PLUS   // +
	TOKEN_MINUS  // -
	TOKEN_STAR   // *
	TOKEN_SLASH  // /
	TOKEN_MOD    // %
	TOKEN_DPIPE  // ||
	TOKEN_DCOLON // ::
	TOKEN_LPAREN // (
	TOKEN_RPAREN // )
	TOKEN_COMMA  // ,
)

var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_ILLEGAL: "ILLEGAL",
	TOKEN_IDENT:   "IDENT",
	TOKEN_NUMBER:  "NUMBER",
	TOKEN_STRING:  "STRING",
	TOKEN_AND:     "AND",
	TOKEN_OR:      "OR",
	TOKEN_NOT:     "NOT",
	TOKEN_IN:      "IN",
	TOKEN_BETWEEN: "BETWEEN",
	TOKEN_LIKE:    "LIKE",
	TOKEN_ILIKE:   "ILIKE",
	TOKEN_IS:      "IS",
	TOKEN_NULL:    "NULL",
	TOKEN_TRUE:    "TRUE",
	TOKEN_FALSE:   "FALSE",
	TOKEN_CASE:    "CASE",
	TOKEN_WHEN:    "WHEN",
	TOKEN_THEN:    "THEN",
	TOKEN_ELSE:    "ELSE",
	TOKEN_END:     "END",
	TOKEN_CAST:    "CAST",
	TOKEN_AS:      "AS",
	TOKEN_ESCAPE:  "ESCAPE",
	TOKEN_EQ:      "=",
	TOKEN_NE:      "<>",
	TOKEN_LT:      "<",
	TOKEN_GT:      ">",
	TOKEN_LE:      "<=",
	TOKEN_GE:      ">=",
	TOKEN_PLUS:    "+",
	TOKEN_MINUS:   "-",
	TOKEN_STAR:    "*",
	TOKEN_SLASH:   "/",
	TOKEN_MOD:     "%",
	TOKEN_DPIPE:   "||",
	TOKEN_DCOLON:  "::",
	TOKEN_LPAREN:  "(",
	TOKEN_RPAREN:  ")",
	TOKEN_COMMA:   ",",
}

// String returns a readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

var keywords = map[string]TokenType{
	"AND":     TOKEN_AND,
	"OR":      TOKEN_OR,
	"NOT":     TOKEN_NOT,
	"IN":      TOKEN_IN,
	"BETWEEN": TOKEN_BETWEEN,
	"LIKE":    TOKEN_LIKE,
	"ILIKE":   TOKEN_ILIKE,
	"IS":      TOKEN_IS,
	"NULL":    TOKEN_NULL,
	"TRUE":    TOKEN_TRUE,
	"FALSE":   TOKEN_FALSE,
	"CASE":    TOKEN_CASE,
	"WHEN":    TOKEN_WHEN,
	"THEN":    TOKEN_THEN,
	"ELSE":    TOKEN_ELSE,
	"END":     TOKEN_END,
	"CAST":    TOKEN_CAST,
	"AS":      TOKEN_AS,
	"ESCAPE":  TOKEN_ESCAPE,
}

// lookupKeyword returns the keyword token type for an identifier, or
// TOKEN_IDENT if it is not a keyword. Keywords are case-insensitive.
func lookupKeyword(ident string) TokenType {
	if t, ok := keywords[strings.ToUpper(ident)]; ok {
		return t
	}
	return TOKEN_IDENT
}

// Token is a single lexical token.
type Token struct {
	Type    TokenType
	Literal string // decoded literal: string contents, identifier name, number text
}

// Operator precedence levels for Pratt parsing, lowest binds loosest.
const (
	PrecedenceNone       = 0
	PrecedenceOr         = 1
	PrecedenceAnd        = 2
	PrecedenceNot        = 3
	PrecedenceComparison = 4
	PrecedenceAddition   = 5
	PrecedenceMultiply   = 6
	PrecedenceUnary      = 7
	PrecedencePostfix    = 8
)
