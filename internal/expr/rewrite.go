package expr

// Rewrite returns a copy of the expression tree with fn applied to every
// node, children first. fn receives each node after its children have been
// rewritten and returns the node to use in its place. Nil children stay nil.
func Rewrite(e Expr, fn func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	switch ex := e.(type) {
	case *BinaryExpr:
		e = &BinaryExpr{Left: Rewrite(ex.Left, fn), Op: ex.Op, Right: Rewrite(ex.Right, fn)}
	case *UnaryExpr:
		e = &UnaryExpr{Op: ex.Op, Expr: Rewrite(ex.Expr, fn)}
	case *ParenExpr:
		e = &ParenExpr{Expr: Rewrite(ex.Expr, fn)}
	case *FuncCall:
		args := make([]Expr, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = Rewrite(a, fn)
		}
		e = &FuncCall{Name: ex.Name, Args: args}
	case *InExpr:
		values := make([]Expr, len(ex.Values))
		for i, v := range ex.Values {
			values[i] = Rewrite(v, fn)
		}
		e = &InExpr{Expr: Rewrite(ex.Expr, fn), Not: ex.Not, Values: values}
	case *BetweenExpr:
		e = &BetweenExpr{Expr: Rewrite(ex.Expr, fn), Not: ex.Not, Low: Rewrite(ex.Low, fn), High: Rewrite(ex.High, fn)}
	case *IsNullExpr:
		e = &IsNullExpr{Expr: Rewrite(ex.Expr, fn), Not: ex.Not}
	case *IsBoolExpr:
		e = &IsBoolExpr{Expr: Rewrite(ex.Expr, fn), Not: ex.Not, Value: ex.Value}
	case *LikeExpr:
		e = &LikeExpr{Expr: Rewrite(ex.Expr, fn), Not: ex.Not, Pattern: Rewrite(ex.Pattern, fn), Escape: Rewrite(ex.Escape, fn), ILike: ex.ILike}
	case *CastExpr:
		e = &CastExpr{Expr: Rewrite(ex.Expr, fn), TypeName: ex.TypeName}
	case *TypeCastExpr:
		e = &TypeCastExpr{Expr: Rewrite(ex.Expr, fn), TypeName: ex.TypeName}
	case *CaseExpr:
		whens := make([]WhenClause, len(ex.Whens))
		for i, w := range ex.Whens {
			whens[i] = WhenClause{Condition: Rewrite(w.Condition, fn), Result: Rewrite(w.Result, fn)}
		}
		e = &CaseExpr{Operand: Rewrite(ex.Operand, fn), Whens: whens, Else: Rewrite(ex.Else, fn)}
	}
	return fn(e)
}
