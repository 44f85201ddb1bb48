package ast

// RewriteExpr rebuilds an expression bottom-up, applying f to every
// node after its children have been rebuilt. f returns the node
// unchanged or a replacement; RewriteExpr never mutates the input, so
// a node reachable from two tree locations can never be corrupted by
// one of them.
func RewriteExpr(e Expr, f func(Expr) Expr) Expr {
	switch ex := e.(type) {
	case *IdentifierExpr, *BoolLit, *IntLit:
		return f(e)
	case *MapSelectExpr:
		rebuilt := &MapSelectExpr{
			Span:  ex.Span,
			Map:   RewriteExpr(ex.Map, f),
			Index: RewriteExpr(ex.Index, f),
		}
		return f(rebuilt)
	case *NAryExpr:
		args := make([]Expr, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = RewriteExpr(a, f)
		}
		return f(&NAryExpr{Span: ex.Span, Op: ex.Op, Args: args})
	case *CallExpr:
		args := make([]Expr, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = RewriteExpr(a, f)
		}
		return f(&CallExpr{Span: ex.Span, Name: ex.Name, Func: ex.Func, Args: args})
	case *QuantifierExpr:
		rebuilt := &QuantifierExpr{
			Span:  ex.Span,
			Kind:  ex.Kind,
			Bound: ex.Bound,
			Body:  RewriteExpr(ex.Body, f),
		}
		return f(rebuilt)
	default:
		return f(e)
	}
}
