package expr

import "strings"

// Format renders an expression AST back to SQL text. The output is flat and
// always double-quotes identifiers, so formatted filters are safe to embed
// in generated SQL regardless of the original spelling.
func Format(e Expr) string {
	f := &formatter{}
	f.formatExpr(e)
	return strings.TrimSpace(f.buf.String())
}

// formatter is a simple SQL string builder.
type formatter struct {
	buf strings.Builder
}

func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

func (f *formatter) space() {
	f.buf.WriteByte(' ')
}

// QuoteIdent unconditionally double-quotes an identifier.
// Internal double quotes are escaped by doubling.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteString single-quotes a string literal, doubling embedded quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (f *formatter) writeIdent(s string) {
	f.write(QuoteIdent(s))
}

// commaSep writes items separated by ", ".
func (f *formatter) commaSep(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		if i > 0 {
			f.write(", ")
		}
		fn(i)
	}
}

// formatExpr dispatches expression formatting by type.
func (f *formatter) formatExpr(e Expr) {
	if e == nil {
		return
	}

	switch ex := e.(type) {
	case *Literal:
		f.formatLiteral(ex)
	case *ColumnRef:
		f.writeIdent(ex.Name)
	case *BinaryExpr:
		f.formatExpr(ex.Left)
		f.space()
		f.write(operatorString(ex.Op))
		f.space()
		f.formatExpr(ex.Right)
	case *UnaryExpr:
		f.formatUnaryExpr(ex)
	case *ParenExpr:
		f.write("(")
		f.formatExpr(ex.Expr)
		f.write(")")
	case *FuncCall:
		f.write(ex.Name)
		f.write("(")
		f.commaSep(len(ex.Args), func(i int) {
			f.formatExpr(ex.Args[i])
		})
		f.write(")")
	case *InExpr:
		f.formatExpr(ex.Expr)
		if ex.Not {
			f.write(" NOT")
		}
		f.write(" IN (")
		f.commaSep(len(ex.Values), func(i int) {
			f.formatExpr(ex.Values[i])
		})
		f.write(")")
	case *BetweenExpr:
		f.formatExpr(ex.Expr)
		if ex.Not {
			f.write(" NOT")
		}
		f.write(" BETWEEN ")
		f.formatExpr(ex.Low)
		f.write(" AND ")
		f.formatExpr(ex.High)
	case *IsNullExpr:
		f.formatExpr(ex.Expr)
		if ex.Not {
			f.write(" IS NOT NULL")
		} else {
			f.write(" IS NULL")
		}
	case *IsBoolExpr:
		f.formatExpr(ex.Expr)
		f.write(" IS ")
		if ex.Not {
			f.write("NOT ")
		}
		if ex.Value {
			f.write("TRUE")
		} else {
			f.write("FALSE")
		}
	case *LikeExpr:
		f.formatExpr(ex.Expr)
		if ex.Not {
			f.write(" NOT")
		}
		if ex.ILike {
			f.write(" ILIKE ")
		} else {
			f.write(" LIKE ")
		}
		f.formatExpr(ex.Pattern)
		if ex.Escape != nil {
			f.write(" ESCAPE ")
			f.formatExpr(ex.Escape)
		}
	case *CastExpr:
		f.write("CAST(")
		f.formatExpr(ex.Expr)
		f.write(" AS ")
		f.write(ex.TypeName)
		f.write(")")
	case *TypeCastExpr:
		f.formatExpr(ex.Expr)
		f.write("::")
		f.write(ex.TypeName)
	case *CaseExpr:
		f.formatCaseExpr(ex)
	}
}

func (f *formatter) formatLiteral(lit *Literal) {
	switch lit.Kind {
	case LiteralString:
		f.write(QuoteString(lit.Value))
	case LiteralBool:
		f.write(strings.ToUpper(lit.Value))
	case LiteralNull:
		f.write("NULL")
	default:
		// Number
		f.write(lit.Value)
	}
}

func (f *formatter) formatUnaryExpr(e *UnaryExpr) {
	switch e.Op {
	case TOKEN_NOT:
		f.write("NOT ")
		f.formatExpr(e.Expr)
	case TOKEN_MINUS:
		f.write("-")
		f.formatExpr(e.Expr)
	case TOKEN_PLUS:
		f.write("+")
		f.formatExpr(e.Expr)
	default:
		f.write(operatorString(e.Op))
		f.formatExpr(e.Expr)
	}
}

func (f *formatter) formatCaseExpr(c *CaseExpr) {
	f.write("CASE")
	if c.Operand != nil {
		f.space()
		f.formatExpr(c.Operand)
	}
	for _, w := range c.Whens {
		f.write(" WHEN ")
		f.formatExpr(w.Condition)
		f.write(" THEN ")
		f.formatExpr(w.Result)
	}
	if c.Else != nil {
		f.write(" ELSE ")
		f.formatExpr(c.Else)
	}
	f.write(" END")
}

// operatorString returns the SQL string for a token type used as an operator.
func operatorString(op TokenType) string {
	if name, ok := tokenNames[op]; ok {
		return name
	}
	return "?"
}
