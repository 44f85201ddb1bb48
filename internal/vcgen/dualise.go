package vcgen

import (
	"github.com/gridverify/gridverify/internal/ast"
	verr "github.com/gridverify/gridverify/internal/errors"
)

// Dualiser produces the two-thread product program: every procedure,
// implementation and non-shared mutable variable is cloned into two
// thread-indexed copies, asserts and assumes conjoin both threads'
// obligations, and loops run while either thread still iterates.
//
// Dualisation requires predication to have run: structured ifs and
// breaks must already be gone.
type Dualiser struct {
	prog       *ast.Program
	uniformity *UniformityInfo
	intraGroup bool
	groupIndex *ast.Variable

	plans map[string]*sigPlan
}

// sigPlan records, per original formal of a procedure, whether
// dualisation doubles it. Calls are rewritten against the same plan
// that rewrote the signature, so argument and parameter lists stay
// aligned.
type sigPlan struct {
	params  []bool
	returns []bool
	half    bool
}

// NewDualiser creates a dualiser for the program.
func NewDualiser(prog *ast.Program, uniformity *UniformityInfo, intraGroup bool) *Dualiser {
	return &Dualiser{
		prog:       prog,
		uniformity: uniformity,
		intraGroup: intraGroup,
		plans:      map[string]*sigPlan{},
	}
}

func (d *Dualiser) newVarDualiser(threadID int, procName string) *VarDualiser {
	vd := NewVarDualiser(threadID, procName, d.uniformity)
	vd.SetIntraGroup(d.intraGroup)
	if d.groupIndex != nil {
		vd.SetGroupIndex(d.groupIndex)
	}
	return vd
}

// DualiseProgram transforms the whole program in place.
func (d *Dualiser) DualiseProgram() error {
	d.groupIndex = d.prog.Variable(TileIDName(AxisX))

	// Half-dualised procedures treat their formals and locals as
	// uniform: the single statement copy must not rename them.
	for _, proc := range d.prog.Procedures() {
		if d.uniformity.IsHalfDualisedProc(proc.Name) {
			for _, v := range proc.Params {
				d.uniformity.MarkUniform(proc.Name, v.Name)
			}
			for _, v := range proc.Returns {
				d.uniformity.MarkUniform(proc.Name, v.Name)
			}
			if impl := d.prog.ImplementationOf(proc.Name); impl != nil {
				for _, v := range impl.Locals {
					d.uniformity.MarkUniform(proc.Name, v.Name)
				}
			}
		}
	}

	// Signature plans must exist for every procedure before any body
	// is rewritten: a call may precede its callee's declaration.
	for _, proc := range d.prog.Procedures() {
		d.plans[proc.Name] = d.planFor(proc)
	}

	var decls []ast.Decl
	for _, decl := range d.prog.Decls {
		switch dd := decl.(type) {
		case *ast.Variable:
			decls = append(decls, d.dualiseVariableDecl(dd)...)
		case *ast.Procedure:
			if err := d.dualiseProcedure(dd); err != nil {
				return err
			}
			decls = append(decls, dd)
		case *ast.Implementation:
			if err := d.dualiseImplementation(dd); err != nil {
				return err
			}
			decls = append(decls, dd)
		case *ast.Axiom:
			dd.Cond = d.dualiseCondition("", dd.Cond, false)
			decls = append(decls, dd)
		default:
			decls = append(decls, decl)
		}
	}
	d.prog.Decls = decls
	return nil
}

func (d *Dualiser) planFor(proc *ast.Procedure) *sigPlan {
	vd := d.newVarDualiser(1, proc.Name)
	plan := &sigPlan{half: d.uniformity.IsHalfDualisedProc(proc.Name)}
	for _, v := range proc.Params {
		plan.params = append(plan.params, !plan.half && vd.NeedsDualising(v))
	}
	for _, v := range proc.Returns {
		plan.returns = append(plan.returns, !plan.half && vd.NeedsDualising(v))
	}
	return plan
}

// dualiseVariableDecl returns the declaration(s) replacing a top-level
// variable: two renamed copies for thread-private state and thread
// ids, the single original for shared storage and uniform constants.
func (d *Dualiser) dualiseVariableDecl(v *ast.Variable) []ast.Decl {
	vd := d.newVarDualiser(1, "")
	if !vd.NeedsDualising(v) {
		return []ast.Decl{v}
	}
	return []ast.Decl{dualCopy(v, 1), dualCopy(v, 2)}
}

// dualCopy clones a variable declaration renamed for one thread.
func dualCopy(v *ast.Variable, threadID int) *ast.Variable {
	c := *v
	c.Name = DualName(v.Name, threadID)
	return &c
}

// dualiseFormals doubles a formal list according to the plan, keeping
// the two copies of each doubled formal adjacent.
func dualiseFormals(vars []*ast.Variable, doubled []bool) []*ast.Variable {
	var out []*ast.Variable
	for i, v := range vars {
		if doubled[i] {
			out = append(out, dualCopy(v, 1), dualCopy(v, 2))
		} else {
			out = append(out, v)
		}
	}
	return out
}

func (d *Dualiser) dualiseProcedure(proc *ast.Procedure) error {
	plan := d.plans[proc.Name]
	half := plan.half

	// Contracts are dualised against the original formals, before the
	// lists are doubled.
	for _, r := range proc.Requires {
		r.Cond = d.dualiseCondition(proc.Name, r.Cond, half)
	}
	for _, e := range proc.Ensures {
		e.Cond = d.dualiseCondition(proc.Name, e.Cond, half)
	}

	proc.Params = dualiseFormals(proc.Params, plan.params)
	proc.Returns = dualiseFormals(proc.Returns, plan.returns)

	// The modifies set doubles for thread-private state only; shared
	// and half-dualised variables keep a single entry.
	vd := d.newVarDualiser(1, proc.Name)
	var modifies []string
	for _, name := range proc.Modifies {
		v := d.prog.Variable(name)
		if v != nil && vd.NeedsDualising(v) {
			modifies = append(modifies, DualName(name, 1), DualName(name, 2))
		} else {
			modifies = append(modifies, name)
		}
	}
	proc.Modifies = modifies
	return nil
}

// dualiseCondition conjoins both threads' copies of a boolean
// condition, or produces the surviving thread's copy alone when
// half-dualising.
func (d *Dualiser) dualiseCondition(procName string, cond ast.Expr, half bool) ast.Expr {
	if half {
		return d.newVarDualiser(d.uniformity.HalfThread(procName), procName).Dualise(cond)
	}
	first := d.newVarDualiser(1, procName).Dualise(cond)
	second := d.newVarDualiser(2, procName).Dualise(cond)
	return ast.Binary(ast.OpAnd, first, second)
}

func (d *Dualiser) dualiseImplementation(impl *ast.Implementation) error {
	procName := impl.Name
	plan := d.plans[procName]
	if plan == nil {
		return verr.Internalf("NO_PLAN", "implementation %s has no signature plan", procName)
	}

	impl.Params = dualiseFormals(impl.Params, plan.params)
	impl.Returns = dualiseFormals(impl.Returns, plan.returns)

	vd := d.newVarDualiser(1, procName)
	var locals []*ast.Variable
	for _, v := range impl.Locals {
		if !plan.half && vd.NeedsDualising(v) {
			locals = append(locals, dualCopy(v, 1), dualCopy(v, 2))
		} else {
			locals = append(locals, v)
		}
	}
	impl.Locals = locals

	body, err := d.dualiseStmtList(procName, impl.Body, plan.half)
	if err != nil {
		return err
	}
	impl.Body = body
	return nil
}

func (d *Dualiser) dualiseStmtList(procName string, list *ast.StmtList, half bool) (*ast.StmtList, error) {
	if list == nil {
		return nil, nil
	}
	out := &ast.StmtList{Span: list.Span}
	for _, b := range list.Blocks {
		block := &ast.BigBlock{Span: b.Span, Label: b.Label}
		for _, s := range b.Stmts {
			stmts, err := d.dualiseStmt(procName, s, half)
			if err != nil {
				return nil, err
			}
			block.Stmts = append(block.Stmts, stmts...)
		}

		switch exit := b.Exit.(type) {
		case nil:
		case *ast.WhileExit:
			d1 := d.newVarDualiser(d.firstThread(procName, half), procName)
			var guard ast.Expr = d1.Dualise(exit.Guard)
			if !half {
				// The loop continues while either thread still
				// iterates; both bodies share one dualised loop.
				d2 := d.newVarDualiser(2, procName)
				guard = ast.Or(guard, d2.Dualise(exit.Guard))
			}
			var invs []*ast.Invariant
			for _, inv := range exit.Invariants {
				invs = append(invs, &ast.Invariant{
					Span: inv.Span,
					Cond: d.dualiseCondition(procName, inv.Cond, half),
				})
			}
			body, err := d.dualiseStmtList(procName, exit.Body, half)
			if err != nil {
				return nil, err
			}
			block.Exit = &ast.WhileExit{Span: exit.Span, Guard: guard, Invariants: invs, Body: body}
		default:
			// Predication removed ifs and breaks; anything else here
			// is a pipeline bug.
			return nil, verr.Internalf("UNSUPPORTED_EXIT",
				"%s: unsupported exit construct in dualisation", exit.GetSpan())
		}
		out.AddBlock(block)
	}
	return out, nil
}

// firstThread picks the thread id of the single statement copy for a
// half-dualised procedure, or thread 1 otherwise.
func (d *Dualiser) firstThread(procName string, half bool) int {
	if half {
		return d.uniformity.HalfThread(procName)
	}
	return 1
}

func (d *Dualiser) dualiseStmt(procName string, s ast.Stmt, half bool) ([]ast.Stmt, error) {
	d1 := d.newVarDualiser(d.firstThread(procName, half), procName)
	d2 := d.newVarDualiser(2, procName)

	switch stmt := s.(type) {
	case *ast.AssignStmt:
		first := &ast.AssignStmt{Span: stmt.Span, LHS: d1.Dualise(stmt.LHS), RHS: d1.Dualise(stmt.RHS)}
		if half {
			return []ast.Stmt{first}, nil
		}
		second := &ast.AssignStmt{Span: stmt.Span, LHS: d2.Dualise(stmt.LHS), RHS: d2.Dualise(stmt.RHS)}
		return []ast.Stmt{first, second}, nil

	case *ast.HavocStmt:
		var targets []*ast.IdentifierExpr
		for _, t := range stmt.Targets {
			targets = append(targets, d1.Dualise(t).(*ast.IdentifierExpr))
			if !half && t.Decl != nil && d1.NeedsDualising(t.Decl) {
				targets = append(targets, d2.Dualise(t).(*ast.IdentifierExpr))
			}
		}
		return []ast.Stmt{&ast.HavocStmt{Span: stmt.Span, Targets: targets}}, nil

	case *ast.AssertStmt:
		// Both threads' obligation holds as one conjoined assert.
		return []ast.Stmt{&ast.AssertStmt{
			Span:  stmt.Span,
			Attrs: stmt.Attrs,
			Cond:  d.dualiseCondition(procName, stmt.Cond, half),
		}}, nil

	case *ast.AssumeStmt:
		return []ast.Stmt{&ast.AssumeStmt{
			Span:  stmt.Span,
			Attrs: stmt.Attrs,
			Cond:  d.dualiseCondition(procName, stmt.Cond, half),
		}}, nil

	case *ast.CallStmt:
		plan := d.plans[stmt.Name]
		if plan == nil {
			return nil, verr.Internalf("NO_PLAN", "%s: call to unplanned procedure %s", stmt.GetSpan(), stmt.Name)
		}
		call := &ast.CallStmt{Span: stmt.Span, Attrs: stmt.Attrs, Name: stmt.Name, Proc: stmt.Proc}
		// A half-dualised callee takes its single argument copy from
		// its own surviving thread, whichever thread that is.
		argDualiser := d1
		if plan.half && !half {
			argDualiser = d.newVarDualiser(d.uniformity.HalfThread(stmt.Name), procName)
		}
		for i, arg := range stmt.Args {
			call.Args = append(call.Args, argDualiser.Dualise(arg))
			if i < len(plan.params) && plan.params[i] {
				call.Args = append(call.Args, d2.Dualise(arg))
			}
		}
		for i, ret := range stmt.Returns {
			call.Returns = append(call.Returns, argDualiser.Dualise(ret).(*ast.IdentifierExpr))
			if i < len(plan.returns) && plan.returns[i] {
				call.Returns = append(call.Returns, d2.Dualise(ret).(*ast.IdentifierExpr))
			}
		}
		return []ast.Stmt{call}, nil

	default:
		return nil, verr.Inputf("UNSUPPORTED_COMMAND",
			"%s: unsupported command shape in dualisation", s.GetSpan())
	}
}
