package expr

// Expr is the interface implemented by all expression AST nodes.
type Expr interface {
	exprNode()
}

// LiteralKind classifies literal values.
type LiteralKind int

// Literal kinds.
const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// ColumnRef is a reference to a dataset column.
type ColumnRef struct {
	Name string
}

// Literal is a constant value. Value holds the decoded text: digits for
// numbers, contents for strings, "true"/"false" for booleans.
type Literal struct {
	Kind  LiteralKind
	Value string
}

// BinaryExpr is a binary operation (comparison, arithmetic, AND/OR, ||).
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

// UnaryExpr is a prefix operation (NOT, unary minus or plus).
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

// ParenExpr preserves explicit grouping.
type ParenExpr struct {
	Expr Expr
}

// FuncCall is a scalar function invocation. Allowed functions are checked at
// compile time, not parse time.
type FuncCall struct {
	Name string
	Args []Expr
}

// InExpr is expr [NOT] IN (values).
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr
}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

// IsNullExpr is expr IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

// IsBoolExpr is expr IS [NOT] TRUE/FALSE.
type IsBoolExpr struct {
	Expr  Expr
	Not   bool
	Value bool
}

// LikeExpr is expr [NOT] LIKE/ILIKE pattern [ESCAPE esc].
type LikeExpr struct {
	Expr    Expr
	Not     bool
	Pattern Expr
	Escape  Expr
	ILike   bool
}

// CastExpr is CAST(expr AS type).
type CastExpr struct {
	Expr     Expr
	TypeName string
}

// TypeCastExpr is expr::type.
type TypeCastExpr struct {
	Expr     Expr
	TypeName string
}

// WhenClause is one WHEN condition THEN result arm.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CaseExpr is CASE [operand] WHEN ... [ELSE ...] END.
type CaseExpr struct {
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

func (*ColumnRef) exprNode()    {}
func (*Literal) exprNode()      {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*ParenExpr) exprNode()    {}
func (*FuncCall) exprNode()     {}
func (*InExpr) exprNode()       {}
func (*BetweenExpr) exprNode()  {}
func (*IsNullExpr) exprNode()   {}
func (*IsBoolExpr) exprNode()   {}
func (*LikeExpr) exprNode()     {}
func (*CastExpr) exprNode()     {}
func (*TypeCastExpr) exprNode() {}
func (*CaseExpr) exprNode()     {}
