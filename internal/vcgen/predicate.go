package vcgen

import (
	"sort"

	"github.com/gridverify/gridverify/internal/ast"
	verr "github.com/gridverify/gridverify/internal/errors"
)

// Predicator converts structured control flow into predicated
// straight-line-with-loops form: every if becomes guarded updates under
// a fresh branch predicate, every while loops on an explicit loop
// predicate, and every break conditionally clears the predicate of its
// enclosing loop. The dualiser and the VC engine both require each
// control path to be reachable under a computable boolean guard.
type Predicator struct {
	prog *ast.Program
}

// NewPredicator creates a predicator for the program.
func NewPredicator(prog *ast.Program) *Predicator {
	return &Predicator{prog: prog}
}

// predContext carries the per-implementation mutable state of one
// predication run. A fresh context per implementation keeps the pass
// reentrant: no counters live at package level.
type predContext struct {
	impl      *ast.Implementation
	loopCount int
	ifCount   int

	// One havoc temporary per distinct type, declared once however
	// many havocs occur.
	havocTemps map[string]*ast.Variable
}

func (pc *predContext) freshLoopPred() *ast.Variable {
	v := &ast.Variable{Name: LoopPredName(pc.loopCount), Type: ast.TypeBool, Kind: ast.KindLocal}
	pc.loopCount++
	pc.impl.AddLocal(v)
	return v
}

func (pc *predContext) freshIfPred() *ast.Variable {
	v := &ast.Variable{Name: IfPredName(pc.ifCount), Type: ast.TypeBool, Kind: ast.KindLocal}
	pc.ifCount++
	pc.impl.AddLocal(v)
	return v
}

func (pc *predContext) havocTemp(t ast.Type) *ast.Variable {
	name := HavocTempName(t)
	if v, ok := pc.havocTemps[name]; ok {
		return v
	}
	v := &ast.Variable{Name: name, Type: t, Kind: ast.KindLocal}
	pc.havocTemps[name] = v
	return v
}

// declareHavocTemps adds the havoc temporaries to the implementation
// in name order, so output does not depend on map iteration.
func (pc *predContext) declareHavocTemps() {
	names := make([]string, 0, len(pc.havocTemps))
	for name := range pc.havocTemps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pc.impl.AddLocal(pc.havocTemps[name])
	}
}

// PredicateProgram predicates every implementation. Non-kernel
// procedures gain a leading boolean parameter carrying the caller's
// predicate; kernel bodies are predicated under literal true.
func (p *Predicator) PredicateProgram() error {
	// Extend signatures first so calls can be rewritten consistently
	// regardless of declaration order.
	for _, proc := range p.prog.Procedures() {
		if !proc.Attrs.Has(ast.AttrKernel) {
			param := &ast.Variable{Name: PredParamName, Type: ast.TypeBool, Kind: ast.KindFormal}
			proc.Params = append([]*ast.Variable{param}, proc.Params...)
		}
	}

	for _, impl := range p.prog.Implementations() {
		var incoming ast.Expr
		if impl.Proc != nil && impl.Proc.Attrs.Has(ast.AttrKernel) {
			incoming = ast.True()
		} else {
			param := &ast.Variable{Name: PredParamName, Type: ast.TypeBool, Kind: ast.KindFormal}
			impl.Params = append([]*ast.Variable{param}, impl.Params...)
			incoming = ast.Ident(param)
		}
		if err := p.predicateImplementation(impl, incoming); err != nil {
			return err
		}
	}
	return nil
}

// predicateImplementation predicates one implementation body under the
// incoming predicate.
func (p *Predicator) predicateImplementation(impl *ast.Implementation, incoming ast.Expr) error {
	pc := &predContext{impl: impl, havocTemps: map[string]*ast.Variable{}}
	blocks, err := p.predicateStmtList(pc, impl.Body, incoming, nil)
	if err != nil {
		return err
	}
	impl.Body = &ast.StmtList{Span: impl.Body.Span, Blocks: blocks}
	pc.declareHavocTemps()
	return nil
}

// predicateStmtList flattens a statement list into predicated blocks.
// enclosingLoopPred is the loop predicate the nearest enclosing loop
// runs on, used to translate break.
func (p *Predicator) predicateStmtList(pc *predContext, list *ast.StmtList, pred ast.Expr, enclosingLoopPred *ast.Variable) ([]*ast.BigBlock, error) {
	var out []*ast.BigBlock
	for _, b := range list.Blocks {
		current := &ast.BigBlock{Span: b.Span, Label: b.Label}
		for _, s := range b.Stmts {
			stmts, err := p.predicateStmt(pc, s, pred)
			if err != nil {
				return nil, err
			}
			current.Stmts = append(current.Stmts, stmts...)
		}

		switch exit := b.Exit.(type) {
		case nil:
			out = append(out, current)

		case *ast.WhileExit:
			loopPred := pc.freshLoopPred()
			// _LC<n> := P && G before the loop.
			current.AddStmt(ast.Assign(ast.Ident(loopPred),
				ast.Binary(ast.OpAnd, pred.Clone(), exit.Guard.Clone())))

			body, err := p.predicateStmtList(pc, exit.Body, ast.Ident(loopPred), loopPred)
			if err != nil {
				return nil, err
			}
			// _LC<n> := _LC<n> && G after each iteration.
			update := ast.NewBlock(ast.Assign(ast.Ident(loopPred),
				ast.And(ast.Ident(loopPred), exit.Guard.Clone())))
			body = append(body, update)

			current.Exit = &ast.WhileExit{
				Span:       exit.Span,
				Guard:      ast.Ident(loopPred),
				Invariants: exit.Invariants,
				Body:       &ast.StmtList{Blocks: body},
			}
			out = append(out, current)

		case *ast.IfExit:
			if exit.ElseIf != nil {
				return nil, verr.Internalf("ELSE_IF_SURVIVED",
					"%s: else-if reached predication; normalization must run first", exit.GetSpan())
			}
			ifPred := pc.freshIfPred()
			current.AddStmt(ast.Assign(ast.Ident(ifPred), exit.Guard.Clone()))
			out = append(out, current)

			thenBlocks, err := p.predicateStmtList(pc, exit.Then,
				ast.And(pred.Clone(), ast.Ident(ifPred)), enclosingLoopPred)
			if err != nil {
				return nil, err
			}
			out = append(out, thenBlocks...)

			if exit.Else != nil {
				elseBlocks, err := p.predicateStmtList(pc, exit.Else,
					ast.And(pred.Clone(), ast.Not(ast.Ident(ifPred))), enclosingLoopPred)
				if err != nil {
					return nil, err
				}
				out = append(out, elseBlocks...)
			}

		case *ast.BreakExit:
			if enclosingLoopPred == nil {
				return nil, verr.Internalf("BREAK_WITHOUT_LOOP",
					"%s: break without an enclosing loop predicate; normalization must validate this", exit.GetSpan())
			}
			// enclosing := ite(P, false, enclosing); the break's exit
			// construct disappears.
			current.AddStmt(ast.Assign(ast.Ident(enclosingLoopPred),
				ast.Ite(pred.Clone(), ast.False(), ast.Ident(enclosingLoopPred))))
			out = append(out, current)

		default:
			return nil, verr.Inputf("UNSUPPORTED_EXIT",
				"%s: unsupported exit construct in predication", b.Exit.GetSpan())
		}
	}
	if len(out) == 0 {
		out = append(out, &ast.BigBlock{})
	}
	return out, nil
}

// predicateStmt predicates one simple command.
func (p *Predicator) predicateStmt(pc *predContext, s ast.Stmt, pred ast.Expr) ([]ast.Stmt, error) {
	// Calls always gain the predicate argument: the callee's
	// signature was extended unconditionally.
	if call, ok := s.(*ast.CallStmt); ok {
		call.Args = append([]ast.Expr{pred.Clone()}, call.Args...)
		return []ast.Stmt{call}, nil
	}

	// Under a literal-true predicate all other commands pass through
	// unchanged; wrapping them in ite(true, ...) would only burden
	// the VC engine.
	if ast.IsLiteralTrue(pred) {
		return []ast.Stmt{s}, nil
	}

	switch stmt := s.(type) {
	case *ast.AssignStmt:
		stmt.RHS = ast.Ite(pred.Clone(), stmt.RHS, stmt.LHS.Clone())
		return []ast.Stmt{stmt}, nil

	case *ast.HavocStmt:
		// havoc x under P becomes: havoc a per-type temporary, then
		// x := ite(P, temp, x): nondeterminism when enabled, no
		// update when disabled.
		var stmts []ast.Stmt
		for _, target := range stmt.Targets {
			t := target.Type()
			if t == nil {
				return nil, verr.Internalf("UNTYPED_HAVOC",
					"%s: havoc target %s has no resolved type", stmt.GetSpan(), target.Name)
			}
			temp := pc.havocTemp(t)
			stmts = append(stmts,
				ast.Havoc(ast.Ident(temp)),
				ast.Assign(target.Clone(), ast.Ite(pred.Clone(), ast.Ident(temp), target.Clone())))
		}
		return stmts, nil

	case *ast.AssertStmt:
		stmt.Cond = ast.Implies(pred.Clone(), stmt.Cond)
		return []ast.Stmt{stmt}, nil

	case *ast.AssumeStmt:
		stmt.Cond = ast.Implies(pred.Clone(), stmt.Cond)
		return []ast.Stmt{stmt}, nil

	default:
		return nil, verr.Inputf("UNSUPPORTED_COMMAND",
			"%s: unsupported command shape in predication", s.GetSpan())
	}
}
