package vcgen

import (
	"github.com/gridverify/gridverify/internal/ast"
	verr "github.com/gridverify/gridverify/internal/errors"
)

// Normalizer rewrites implementations into the restricted form the
// later passes expect: no else-if chains, barrier calls at kernel
// entry and exit, and no non-local array access nested inside a
// compound expression.
type Normalizer struct {
	prog *ast.Program

	// tempCount numbers pull-out temporaries monotonically within one
	// implementation so output is reproducible.
	tempCount int
	impl      *ast.Implementation
}

// NewNormalizer creates a normalizer for the given program.
func NewNormalizer(prog *ast.Program) *Normalizer {
	return &Normalizer{prog: prog}
}

// NormalizeImplementation applies all structural rewrites to one
// implementation.
func (n *Normalizer) NormalizeImplementation(impl *ast.Implementation) error {
	n.impl = impl
	n.tempCount = 0
	removeElseIf(impl.Body)
	if err := checkBreaksEnclosed(impl.Body, 0); err != nil {
		return err
	}
	return n.pullOutStmtList(impl.Body)
}

// InsertEntryExitBarriers prepends a barrier call as the first block
// of the kernel body and appends one as its final block, so that
// barrier-derived invariants hold at kernel entry and exit.
func InsertEntryExitBarriers(kernel *ast.Implementation, barrier *ast.Procedure) {
	entry := ast.NewBlock(&ast.CallStmt{Name: barrier.Name, Proc: barrier})
	exit := ast.NewBlock(&ast.CallStmt{Name: barrier.Name, Proc: barrier})
	kernel.Body.PrependBlock(entry)
	kernel.Body.AddBlock(exit)
}

// ===== else-if elimination =====

// removeElseIf rewrites every "if ... else if ..." chain into a nested
// "else { if ... }" so later passes only see two-way branches.
func removeElseIf(list *ast.StmtList) {
	if list == nil {
		return
	}
	for _, b := range list.Blocks {
		switch exit := b.Exit.(type) {
		case *ast.IfExit:
			flattenElseIf(exit)
		case *ast.WhileExit:
			removeElseIf(exit.Body)
		}
	}
}

func flattenElseIf(exit *ast.IfExit) {
	if exit.ElseIf != nil {
		nested := exit.ElseIf
		exit.ElseIf = nil
		exit.Else = &ast.StmtList{Blocks: []*ast.BigBlock{{Exit: nested}}}
	}
	removeElseIf(exit.Then)
	removeElseIf(exit.Else)
}

// ===== break precondition =====

// checkBreaksEnclosed validates at normalization time the assumption
// the predicator relies on: every break has an enclosing loop, and no
// break is nested inside a conditional that could separate it from its
// loop predicate across an else-if chain (else-if must already be
// gone when this runs via NormalizeImplementation).
func checkBreaksEnclosed(list *ast.StmtList, loopDepth int) error {
	if list == nil {
		return nil
	}
	for _, b := range list.Blocks {
		switch exit := b.Exit.(type) {
		case *ast.BreakExit:
			if loopDepth == 0 {
				return verr.Inputf("BREAK_OUTSIDE_LOOP",
					"%s: break outside of any loop", exit.GetSpan())
			}
		case *ast.WhileExit:
			if err := checkBreaksEnclosed(exit.Body, loopDepth+1); err != nil {
				return err
			}
		case *ast.IfExit:
			if err := checkBreaksEnclosed(exit.Then, loopDepth); err != nil {
				return err
			}
			if err := checkBreaksEnclosed(exit.Else, loopDepth); err != nil {
				return err
			}
		}
	}
	return nil
}

// ===== pull-out of non-local accesses =====

// isNonLocalAccess reports whether e is a map select rooted at a
// shared, group-shared or constant array.
func isNonLocalAccess(e ast.Expr) bool {
	sel, ok := e.(*ast.MapSelectExpr)
	if !ok {
		return false
	}
	base := sel.BaseVariable()
	if base == nil {
		return false
	}
	switch base.Class {
	case ast.ClassGlobalArray, ast.ClassGroupShared, ast.ClassConstantArray:
		return true
	default:
		return false
	}
}

// freshTemp declares a pull-out temporary of the given type on the
// current implementation.
func (n *Normalizer) freshTemp(t ast.Type) *ast.Variable {
	v := &ast.Variable{
		Name: TempName(n.tempCount),
		Type: t,
		Kind: ast.KindLocal,
	}
	n.tempCount++
	n.impl.AddLocal(v)
	return v
}

// pullOut extracts every complete non-local access from e, appending
// one temporary assignment per extraction, and returns the access-free
// expression. The bottom-up rebuild extracts inner accesses before the
// accesses containing them, so each temporary's assignment is itself
// access-free. A select whose type is still a map is a partial select
// of a multi-dimensional array and not an access by itself.
func (n *Normalizer) pullOut(e ast.Expr, pre *[]ast.Stmt) ast.Expr {
	return ast.RewriteExpr(e, func(ex ast.Expr) ast.Expr {
		if !isNonLocalAccess(ex) {
			return ex
		}
		if _, isMap := ex.Type().(*ast.MapType); isMap {
			return ex
		}
		temp := n.freshTemp(ex.Type())
		*pre = append(*pre, ast.Assign(ast.Ident(temp), ex))
		return ast.Ident(temp)
	})
}

func (n *Normalizer) pullOutStmtList(list *ast.StmtList) error {
	if list == nil {
		return nil
	}
	for _, b := range list.Blocks {
		var stmts []ast.Stmt
		for _, s := range b.Stmts {
			pre, err := n.pullOutStmt(s)
			if err != nil {
				return err
			}
			stmts = append(stmts, pre...)
			stmts = append(stmts, s)
		}
		b.Stmts = stmts

		switch exit := b.Exit.(type) {
		case *ast.IfExit:
			var pre []ast.Stmt
			exit.Guard = n.pullOut(exit.Guard, &pre)
			b.Stmts = append(b.Stmts, pre...)
			if err := n.pullOutStmtList(exit.Then); err != nil {
				return err
			}
			if err := n.pullOutStmtList(exit.Else); err != nil {
				return err
			}
		case *ast.WhileExit:
			var pre []ast.Stmt
			exit.Guard = n.pullOut(exit.Guard, &pre)
			b.Stmts = append(b.Stmts, pre...)
			if err := n.pullOutStmtList(exit.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// pullOutStmt extracts non-local accesses from one simple command,
// returning the temporary assignments to prepend.
func (n *Normalizer) pullOutStmt(s ast.Stmt) ([]ast.Stmt, error) {
	var pre []ast.Stmt
	switch stmt := s.(type) {
	case *ast.AssignStmt:
		if err := n.pullOutAssign(stmt, &pre); err != nil {
			return nil, err
		}
	case *ast.AssertStmt:
		stmt.Cond = n.pullOut(stmt.Cond, &pre)
	case *ast.AssumeStmt:
		stmt.Cond = n.pullOut(stmt.Cond, &pre)
	case *ast.CallStmt:
		for i, arg := range stmt.Args {
			stmt.Args[i] = n.pullOut(arg, &pre)
		}
	case *ast.HavocStmt:
		// Havoc targets are plain identifiers; nothing to extract.
	default:
		return nil, verr.Inputf("UNSUPPORTED_COMMAND",
			"%s: unsupported command shape in normalization", s.GetSpan())
	}
	return pre, nil
}

func (n *Normalizer) pullOutAssign(stmt *ast.AssignStmt, pre *[]ast.Stmt) error {
	switch lhs := stmt.LHS.(type) {
	case *ast.IdentifierExpr:
		// x := A[i] is already the canonical logged-read form; only
		// nested accesses inside the RHS need extraction.
		if sel, ok := stmt.RHS.(*ast.MapSelectExpr); ok && isNonLocalAccess(sel) {
			sel.Index = n.pullOut(sel.Index, pre)
			if inner, ok := sel.Map.(*ast.MapSelectExpr); ok {
				if err := n.pullOutIndices(inner, pre); err != nil {
					return err
				}
			}
			return nil
		}
		stmt.RHS = n.pullOut(stmt.RHS, pre)
	case *ast.MapSelectExpr:
		if isNonLocalAccess(lhs) {
			if _, nested := lhs.Map.(*ast.MapSelectExpr); nested {
				return verr.Inputf("MULTI_DIM_STORE",
					"%s: multi-dimensional map store is not supported", stmt.GetSpan())
			}
			lhs.Index = n.pullOut(lhs.Index, pre)
			stmt.RHS = n.pullOut(stmt.RHS, pre)
			return nil
		}
		if err := n.pullOutIndices(lhs, pre); err != nil {
			return err
		}
		stmt.RHS = n.pullOut(stmt.RHS, pre)
	default:
		return verr.Inputf("UNSUPPORTED_LHS",
			"%s: unsupported assignment target", stmt.GetSpan())
	}
	return nil
}

// pullOutIndices extracts accesses from every index along a select
// chain without disturbing the chain itself.
func (n *Normalizer) pullOutIndices(sel *ast.MapSelectExpr, pre *[]ast.Stmt) error {
	sel.Index = n.pullOut(sel.Index, pre)
	if inner, ok := sel.Map.(*ast.MapSelectExpr); ok {
		return n.pullOutIndices(inner, pre)
	}
	return nil
}
