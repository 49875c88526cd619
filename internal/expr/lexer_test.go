package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_Punctuation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType TokenType
		wantLit  string
	}{
		{"plus", "+", TOKEN_PLUS, "+"},
		{"minus", "-", TOKEN_MINUS, "-"},
		{"star", "*", TOKEN_STAR, "*"},
		{"slash", "/", TOKEN_SLASH, "/"},
		{"mod", "%", TOKEN_MOD, "%"},
		{"eq", "=", TOKEN_EQ, "="},
		{"double_eq", "==", TOKEN_EQ, "="},
		{"ne_bang", "!=", TOKEN_NE, "!="},
		{"ne_diamond", "<>", TOKEN_NE, "<>"},
		{"lt", "<", TOKEN_LT, "<"},
		{"gt", ">", TOKEN_GT, ">"},
		{"le", "<=", TOKEN_LE, "<="},
		{"ge", ">=", TOKEN_GE, ">="},
		{"comma", ",", TOKEN_COMMA, ","},
		{"lparen", "(", TOKEN_LPAREN, "("},
		{"rparen", ")", TOKEN_RPAREN, ")"},
		{"dcolon", "::", TOKEN_DCOLON, "::"},
		{"dpipe", "||", TOKEN_DPIPE, "||"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLexer(tc.input)
			tok := l.NextToken()
			assert.Equal(t, tc.wantType, tok.Type, "token type")
			assert.Equal(t, tc.wantLit, tok.Literal, "token literal")
		})
	}
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLit string
	}{
		{"integer", "42", "42"},
		{"decimal", "3.14", "3.14"},
		{"scientific", "1e10", "1e10"},
		{"scientific_upper", "2E5", "2E5"},
		{"scientific_negative", "1e-3", "1e-3"},
		{"large_integer", "3000000000", "3000000000"},
		{"zero", "0", "0"},
		{"decimal_start", "0.5", "0.5"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLexer(tc.input)
			tok := l.NextToken()
			assert.Equal(t, TOKEN_NUMBER, tok.Type)
			assert.Equal(t, tc.wantLit, tok.Literal)
		})
	}
}

func TestLexer_Strings(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLit string
	}{
		{"simple", "'hello'", "hello"},
		{"empty", "''", ""},
		{"with_spaces", "'hello world'", "hello world"},
		{"escaped_quote", "'it''s'", "it's"},
		{"double_escape", "'a''''b'", "a''b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLexer(tc.input)
			tok := l.NextToken()
			assert.Equal(t, TOKEN_STRING, tok.Type)
			assert.Equal(t, tc.wantLit, tok.Literal)
		})
	}
}

func TestLexer_QuotedIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLit string
	}{
		{"simple", `"foo"`, "foo"},
		{"mixed_case", `"FooBar"`, "FooBar"},
		{"with_spaces", `"foo bar"`, "foo bar"},
		{"escaped_quote", `"foo""bar"`, `foo"bar`},
		{"keyword", `"like"`, "like"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLexer(tc.input)
			tok := l.NextToken()
			assert.Equal(t, TOKEN_IDENT, tok.Type)
			assert.Equal(t, tc.wantLit, tok.Literal)
		})
	}
}

func TestLexer_Keywords(t *testing.T) {
	tests := []struct {
		input    string
		wantType TokenType
	}{
		{"AND", TOKEN_AND},
		{"and", TOKEN_AND},
		{"Or", TOKEN_OR},
		{"NOT", TOKEN_NOT},
		{"in", TOKEN_IN},
		{"BETWEEN", TOKEN_BETWEEN},
		{"like", TOKEN_LIKE},
		{"ILIKE", TOKEN_ILIKE},
		{"is", TOKEN_IS},
		{"NULL", TOKEN_NULL},
		{"true", TOKEN_TRUE},
		{"FALSE", TOKEN_FALSE},
		{"case", TOKEN_CASE},
		{"CAST", TOKEN_CAST},
		{"escape", TOKEN_ESCAPE},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			l := NewLexer(tc.input)
			tok := l.NextToken()
			assert.Equal(t, tc.wantType, tok.Type)
		})
	}
}

func TestLexer_Comments(t *testing.T) {
	l := NewLexer("a -- line comment\n = /* block\ncomment */ 1")

	var types []TokenType
	for {
		tok := l.NextToken()
		if tok.Type == TOKEN_EOF {
			break
		}
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{TOKEN_IDENT, TOKEN_EQ, TOKEN_NUMBER}, types)
}

func TestLexer_FullExpression(t *testing.T) {
	l := NewLexer(`year = 2020 AND city IN ('nyc', 'sf')`)

	want := []struct {
		typ TokenType
		lit string
	}{
		{TOKEN_IDENT, "year"},
		{TOKEN_EQ, "="},
		{TOKEN_NUMBER, "2020"},
		{TOKEN_AND, "AND"},
		{TOKEN_IDENT, "city"},
		{TOKEN_IN, "IN"},
		{TOKEN_LPAREN, "("},
		{TOKEN_STRING, "nyc"},
		{TOKEN_COMMA, ","},
		{TOKEN_STRING, "sf"},
		{TOKEN_RPAREN, ")"},
	}

	for i, w := range want {
		tok := l.NextToken()
		require.Equal(t, w.typ, tok.Type, "token %d type", i)
		assert.Equal(t, w.lit, tok.Literal, "token %d literal", i)
	}
	assert.Equal(t, TOKEN_EOF, l.NextToken().Type)
}

func TestLexer_Illegal(t *testing.T) {
	for _, input := range []string{"!", "|", ":", "@", "["} {
		l := NewLexer(input)
		assert.Equal(t, TOKEN_ILLEGAL, l.NextToken().Type, "input %q", input)
	}
}
