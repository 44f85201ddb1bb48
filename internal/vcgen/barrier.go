package vcgen

import (
	"github.com/gridverify/gridverify/internal/ast"
	verr "github.com/gridverify/gridverify/internal/errors"
)

// BarrierGenerator synthesizes the barrier procedure's body. It runs
// after dualisation, when the barrier shell carries exactly the two
// thread predicate formals, so nothing it emits is predicated or
// dualised again.
type BarrierGenerator struct {
	prog *ast.Program
	info *KernelInfo
	race RaceInstrumenter

	fullAbstraction bool
	onlyDivergence  bool
}

// NewBarrierGenerator creates a generator over the dualised program.
func NewBarrierGenerator(prog *ast.Program, info *KernelInfo, race RaceInstrumenter, fullAbstraction, onlyDivergence bool) *BarrierGenerator {
	return &BarrierGenerator{
		prog:            prog,
		info:            info,
		race:            race,
		fullAbstraction: fullAbstraction,
		onlyDivergence:  onlyDivergence,
	}
}

// Generate builds the barrier implementation:
//
//	assert _P$1 == _P$2;
//	if (_P$1 || _P$2) {
//	    <access log resets>
//	    havoc <shared state>; assume <copies agree>;
//	}
//
// The assert is the barrier divergence check: both threads must agree
// on whether they reach the barrier. The havoc models the barrier's
// value-erasing synchronization of shared state.
func (g *BarrierGenerator) Generate() error {
	barrier := g.info.Barrier
	if len(barrier.Params) != 2 {
		return verr.Internalf("BARRIER_SHAPE",
			"barrier %s has %d formals after dualisation, expected the two thread predicates",
			barrier.Name, len(barrier.Params))
	}
	p1 := ast.Ident(barrier.Params[0])
	p2 := ast.Ident(barrier.Params[1])

	var effects []ast.Stmt
	effects = append(effects, g.race.BarrierStatements()...)
	for _, name := range g.race.BarrierModifies() {
		barrier.AddModifies(name)
	}

	if !g.fullAbstraction {
		havocs, assumes, names := g.sharedStateEffects()
		effects = append(effects, havocs...)
		effects = append(effects, assumes...)
		for _, name := range names {
			barrier.AddModifies(name)
		}
	}

	entry := ast.NewBlock(&ast.AssertStmt{Cond: ast.Eq(p1, p2)})
	if g.fullAbstraction && !g.onlyDivergence {
		// No early return: the effects run unconditionally.
		entry.Stmts = append(entry.Stmts, effects...)
	} else if len(effects) > 0 {
		// Skip the state effects when neither thread is enabled.
		then := &ast.StmtList{}
		then.AddBlock(ast.NewBlock(effects...))
		entry.Exit = &ast.IfExit{
			Guard: ast.Or(ast.Ident(barrier.Params[0]), ast.Ident(barrier.Params[1])),
			Then:  then,
		}
	}

	body := &ast.StmtList{}
	body.AddBlock(entry)

	impl := &ast.Implementation{
		Name:   barrier.Name,
		Proc:   barrier,
		Params: barrier.Params,
		Body:   body,
	}
	g.prog.AddDecl(impl)

	g.propagateModifies(barrier)
	return nil
}

// sharedStateEffects builds the havoc and agreement statements for
// every global and group-shared variable. Shared arrays keep a single
// storage copy through dualisation; state that was split into two
// thread copies is havocked pairwise and assumed equal.
func (g *BarrierGenerator) sharedStateEffects() (havocs, assumes []ast.Stmt, names []string) {
	for _, v := range g.prog.Variables() {
		if !v.IsSharedArray() {
			continue
		}
		first := g.prog.Variable(DualName(v.Name, 1))
		second := g.prog.Variable(DualName(v.Name, 2))
		if first != nil && second != nil {
			havocs = append(havocs, ast.Havoc(ast.Ident(first), ast.Ident(second)))
			assumes = append(assumes, &ast.AssumeStmt{Cond: ast.Eq(ast.Ident(first), ast.Ident(second))})
			names = append(names, first.Name, second.Name)
			continue
		}
		havocs = append(havocs, ast.Havoc(ast.Ident(v)))
		names = append(names, v.Name)
	}
	return havocs, assumes, names
}

// propagateModifies copies the barrier's modifies set onto every
// procedure whose implementation calls the barrier directly. Deeper
// call chains are the caller's own obligation.
func (g *BarrierGenerator) propagateModifies(barrier *ast.Procedure) {
	for _, impl := range g.prog.Implementations() {
		if impl.Name == barrier.Name {
			continue
		}
		if !callsBarrier(impl.Body, barrier.Name) {
			continue
		}
		proc := g.prog.Procedure(impl.Name)
		if proc == nil {
			continue
		}
		for _, name := range barrier.Modifies {
			proc.AddModifies(name)
		}
	}
}

func callsBarrier(list *ast.StmtList, name string) bool {
	if list == nil {
		return false
	}
	for _, b := range list.Blocks {
		for _, s := range b.Stmts {
			if call, ok := s.(*ast.CallStmt); ok && call.Name == name {
				return true
			}
		}
		switch exit := b.Exit.(type) {
		case *ast.WhileExit:
			if callsBarrier(exit.Body, name) {
				return true
			}
		case *ast.IfExit:
			for e := exit; e != nil; e = e.ElseIf {
				if callsBarrier(e.Then, name) {
					return true
				}
				if e.ElseIf == nil && callsBarrier(e.Else, name) {
					return true
				}
			}
		}
	}
	return false
}
