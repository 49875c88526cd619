package macro

import (
	"context"
	"errors"

	"quarry/internal/domain"
	"quarry/internal/expr"
)

// maxExpansionPasses bounds macro-calls-macro composition.
const maxExpansionPasses = 8

// ExpandFilter replaces macro invocations in a filter expression with the
// predicates they generate. A function call names a macro when one exists
// with that name; anything else passes through as a plain scalar function.
// Expansions may themselves invoke macros, up to maxExpansionPasses deep.
func (s *Service) ExpandFilter(ctx context.Context, filter string) (string, error) {
	tree, err := expr.Parse(filter)
	if err != nil {
		return "", domain.ErrValidation("invalid filter: %v", err)
	}

	for pass := 0; ; pass++ {
		expanded := false
		var expandErr error
		tree = expr.Rewrite(tree, func(n expr.Expr) expr.Expr {
			if expandErr != nil {
				return n
			}
			call, ok := n.(*expr.FuncCall)
			if !ok {
				return n
			}
			m, err := s.repo.GetByName(ctx, call.Name)
			if err != nil {
				var nf *domain.NotFoundError
				if errors.As(err, &nf) {
					return n
				}
				expandErr = err
				return n
			}
			repl, err := s.expandCall(ctx, m, call)
			if err != nil {
				expandErr = err
				return n
			}
			expanded = true
			return repl
		})
		if expandErr != nil {
			return "", expandErr
		}
		if !expanded {
			return expr.Format(tree), nil
		}
		if pass == maxExpansionPasses-1 {
			return "", domain.ErrValidation("macro expansion exceeded %d passes; check for recursive macros", maxExpansionPasses)
		}
	}
}

// expandCall runs one macro invocation. Positional call arguments map onto
// the macro's parameter names; the result is parsed and parenthesized so the
// expansion cannot change the precedence of the surrounding filter.
func (s *Service) expandCall(ctx context.Context, m *domain.Macro, call *expr.FuncCall) (expr.Expr, error) {
	if len(call.Args) != len(m.Parameters) {
		return nil, domain.ErrValidation("macro %q expects %d arguments, got %d", m.Name, len(m.Parameters), len(call.Args))
	}
	if m.Status == domain.MacroStatusDeprecated {
		s.logger.Warn("deprecated macro expanded", "macro", m.Name)
	}

	args := make(map[string]string, len(call.Args))
	for i, a := range call.Args {
		args[m.Parameters[i]] = expr.Format(a)
	}
	text, err := s.runtime.Expand(ctx, m, args)
	if err != nil {
		return nil, err
	}
	repl, err := expr.Parse(text)
	if err != nil {
		return nil, domain.ErrValidation("macro %q produced an invalid expression: %v", m.Name, err)
	}
	return &expr.ParenExpr{Expr: repl}, nil
}
