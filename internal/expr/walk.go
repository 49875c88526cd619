package expr

// Walk calls fn for every node in the expression tree in depth-first order.
// If fn returns false the node's children are skipped.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}

	switch ex := e.(type) {
	case *BinaryExpr:
		Walk(ex.Left, fn)
		Walk(ex.Right, fn)
	case *UnaryExpr:
		Walk(ex.Expr, fn)
	case *ParenExpr:
		Walk(ex.Expr, fn)
	case *FuncCall:
		for _, arg := range ex.Args {
			Walk(arg, fn)
		}
	case *InExpr:
		Walk(ex.Expr, fn)
		for _, v := range ex.Values {
			Walk(v, fn)
		}
	case *BetweenExpr:
		Walk(ex.Expr, fn)
		Walk(ex.Low, fn)
		Walk(ex.High, fn)
	case *IsNullExpr:
		Walk(ex.Expr, fn)
	case *IsBoolExpr:
		Walk(ex.Expr, fn)
	case *LikeExpr:
		Walk(ex.Expr, fn)
		Walk(ex.Pattern, fn)
		Walk(ex.Escape, fn)
	case *CastExpr:
		Walk(ex.Expr, fn)
	case *TypeCastExpr:
		Walk(ex.Expr, fn)
	case *CaseExpr:
		Walk(ex.Operand, fn)
		for _, w := range ex.Whens {
			Walk(w.Condition, fn)
			Walk(w.Result, fn)
		}
		Walk(ex.Else, fn)
	}
}

// Columns returns a deduplicated list of column names referenced by the
// expression, in first-appearance order.
func Columns(e Expr) []string {
	seen := make(map[string]bool)
	var cols []string
	Walk(e, func(n Expr) bool {
		if ref, ok := n.(*ColumnRef); ok && !seen[ref.Name] {
			seen[ref.Name] = true
			cols = append(cols, ref.Name)
		}
		return true
	})
	return cols
}

// Functions returns a deduplicated list of function names called by the
// expression, in first-appearance order.
func Functions(e Expr) []string {
	seen := make(map[string]bool)
	var fns []string
	Walk(e, func(n Expr) bool {
		if call, ok := n.(*FuncCall); ok && !seen[call.Name] {
			seen[call.Name] = true
			fns = append(fns, call.Name)
		}
		return true
	})
	return fns
}

// OnlyReferences reports whether every column the expression touches is in
// the allowed set. Used to decide whether a filter can be evaluated from
// partition values alone.
func OnlyReferences(e Expr, allowed map[string]bool) bool {
	ok := true
	Walk(e, func(n Expr) bool {
		if ref, isRef := n.(*ColumnRef); isRef && !allowed[ref.Name] {
			ok = false
			return false
		}
		return true
	})
	return ok
}
