package vcgen

import (
	"github.com/gridverify/gridverify/internal/ast"
	verr "github.com/gridverify/gridverify/internal/errors"
)

// RaceInstrumenter injects the shadow state and assertions that make
// data races visible to the verifier. The barrier generator and the
// candidate generator consume it through this interface so a program
// can also be transformed with race semantics switched off entirely.
type RaceInstrumenter interface {
	// AddTrackingDeclarations declares the per-array shadow variables
	// and the access logging and checking procedures, and extends the
	// kernel's modifies set to cover them.
	AddTrackingDeclarations(ki *KernelInfo) error

	// InstrumentImplementation inserts logging and checking calls at
	// every shared-array access site of the implementation. It runs
	// after normalization, while accesses are still in canonical form.
	InstrumentImplementation(impl *ast.Implementation) error

	// BarrierStatements returns fresh statements that clear the access
	// logs, spliced into the synthesized barrier body.
	BarrierStatements() []ast.Stmt

	// BarrierModifies lists the shadow variables the barrier body
	// assigns.
	BarrierModifies() []string

	// ContractCandidates returns fresh race-freedom contract
	// expressions offered as candidate pre- and postconditions.
	ContractCandidates() []ast.Expr
}

// NullRaceInstrumenter performs no instrumentation. Scratch programs
// built for well-formedness re-checks run the pipeline with this
// variant substituted.
type NullRaceInstrumenter struct{}

func (NullRaceInstrumenter) AddTrackingDeclarations(*KernelInfo) error          { return nil }
func (NullRaceInstrumenter) InstrumentImplementation(*ast.Implementation) error { return nil }
func (NullRaceInstrumenter) BarrierStatements() []ast.Stmt                      { return nil }
func (NullRaceInstrumenter) BarrierModifies() []string                          { return nil }
func (NullRaceInstrumenter) ContractCandidates() []ast.Expr                     { return nil }

// trackedArray holds the shadow state declared for one shared array.
// Offsets are kept in axis order: index 0 is X, the innermost map
// dimension.
type trackedArray struct {
	v *ast.Variable

	readFlag  *ast.Variable
	writeFlag *ast.Variable

	readOffsets  []*ast.Variable
	writeOffsets []*ast.Variable
}

// StandardRaceInstrumenter is the real instrumenter. Each shared-array
// read or write is preceded by a call to a half-dualised checking
// procedure (the second thread asserts it conflicts with nothing the
// first thread logged) and a half-dualised logging procedure (the
// first thread nondeterministically records the access).
type StandardRaceInstrumenter struct {
	prog       *ast.Program
	uniformity *UniformityInfo

	arrays    []*trackedArray
	generated map[string]bool // procedures this instrumenter created
}

// NewStandardRaceInstrumenter creates an instrumenter for the program.
// Declared shadow procedures are registered half-dualised in the
// shared uniformity registry.
func NewStandardRaceInstrumenter(prog *ast.Program, uniformity *UniformityInfo) *StandardRaceInstrumenter {
	return &StandardRaceInstrumenter{
		prog:       prog,
		uniformity: uniformity,
		generated:  map[string]bool{},
	}
}

// axisIndexTypes returns the index type of each map level of t in axis
// order (X first, innermost dimension first).
func axisIndexTypes(t ast.Type) []ast.Type {
	var outward []ast.Type
	for {
		mt, ok := t.(*ast.MapType)
		if !ok {
			break
		}
		outward = append(outward, mt.Index)
		t = mt.Result
	}
	// Source order lists the outermost dimension first; axis X is the
	// innermost one.
	types := make([]ast.Type, len(outward))
	for i, it := range outward {
		types[len(outward)-1-i] = it
	}
	return types
}

func (r *StandardRaceInstrumenter) AddTrackingDeclarations(ki *KernelInfo) error {
	for _, v := range r.prog.Variables() {
		if !v.IsSharedArray() {
			continue
		}
		dims, _ := ast.MapDimensions(v.Type)
		if dims == 0 {
			continue
		}
		if dims > len(Axes) {
			return verr.Inputf("RACE_DIMS",
				"%s: shared array %s has %d map dimensions; race instrumentation supports at most %d",
				v.GetSpan(), v.Name, dims, len(Axes))
		}
		indexTypes := axisIndexTypes(v.Type)
		for i, it := range indexTypes {
			if !ast.IsIndexType(it) {
				return verr.Inputf("RACE_INDEX_TYPE",
					"%s: shared array %s is indexed by %s along %s; offset tracking requires int or bv32",
					v.GetSpan(), v.Name, it.String(), Axes[i].String())
			}
		}

		ta := &trackedArray{
			v:         v,
			readFlag:  r.declareShadow(ReadHasOccurredName(v.Name), ast.TypeBool),
			writeFlag: r.declareShadow(WriteHasOccurredName(v.Name), ast.TypeBool),
		}
		for i, it := range indexTypes {
			ta.readOffsets = append(ta.readOffsets, r.declareShadow(ReadOffsetName(v.Name, Axes[i]), it))
			ta.writeOffsets = append(ta.writeOffsets, r.declareShadow(WriteOffsetName(v.Name, Axes[i]), it))
		}
		r.arrays = append(r.arrays, ta)

		for _, sv := range ta.shadowNames() {
			ki.Kernel.AddModifies(sv)
		}

		r.declareLogProcedure(LogReadName(v.Name), ta.readFlag, ta.readOffsets, indexTypes)
		r.declareLogProcedure(LogWriteName(v.Name), ta.writeFlag, ta.writeOffsets, indexTypes)
		r.declareCheckProcedure(CheckReadName(v.Name), indexTypes,
			conflict{ta.writeFlag, ta.writeOffsets})
		r.declareCheckProcedure(CheckWriteName(v.Name), indexTypes,
			conflict{ta.writeFlag, ta.writeOffsets},
			conflict{ta.readFlag, ta.readOffsets})
	}
	return nil
}

func (ta *trackedArray) shadowNames() []string {
	names := []string{ta.readFlag.Name, ta.writeFlag.Name}
	for _, v := range ta.readOffsets {
		names = append(names, v.Name)
	}
	for _, v := range ta.writeOffsets {
		names = append(names, v.Name)
	}
	return names
}

// declareShadow adds one half-dualised global shadow variable.
func (r *StandardRaceInstrumenter) declareShadow(name string, t ast.Type) *ast.Variable {
	v := &ast.Variable{Name: name, Type: t, Kind: ast.KindGlobal}
	v.Classify()
	r.prog.AddDecl(v)
	r.uniformity.MarkHalfDualised(name)
	return v
}

// offsetFormals builds one formal per access dimension, in axis order.
func offsetFormals(indexTypes []ast.Type) []*ast.Variable {
	var formals []*ast.Variable
	for i, it := range indexTypes {
		formals = append(formals, &ast.Variable{
			Name: OffsetParamName(Axes[i]),
			Type: it,
			Kind: ast.KindFormal,
		})
	}
	return formals
}

// declareLogProcedure emits the half-dualised procedure recording one
// access kind of one array:
//
//	havoc _TRACKING;
//	if (_TRACKING) { flag := true; offset_A := _offset_A; ... }
//
// The nondeterministic choice means the verifier considers every
// access as the potentially conflicting one.
func (r *StandardRaceInstrumenter) declareLogProcedure(name string, flag *ast.Variable, offsets []*ast.Variable, indexTypes []ast.Type) {
	params := offsetFormals(indexTypes)
	proc := &ast.Procedure{
		Name:   name,
		Params: params,
		Attrs:  ast.Attributes{{Name: ast.AttrInline}},
	}
	proc.AddModifies(flag.Name)
	for _, o := range offsets {
		proc.AddModifies(o.Name)
	}

	tracking := &ast.Variable{Name: TrackingName, Type: ast.TypeBool, Kind: ast.KindLocal}
	then := &ast.StmtList{}
	thenBlock := ast.NewBlock(ast.Assign(ast.Ident(flag), ast.True()))
	for i, o := range offsets {
		thenBlock.Stmts = append(thenBlock.Stmts, ast.Assign(ast.Ident(o), ast.Ident(params[i])))
	}
	then.AddBlock(thenBlock)

	body := &ast.StmtList{}
	entry := ast.NewBlock(ast.Havoc(ast.Ident(tracking)))
	entry.Exit = &ast.IfExit{Guard: ast.Ident(tracking), Then: then}
	body.AddBlock(entry)

	impl := &ast.Implementation{Name: name, Proc: proc, Params: params, Body: body}
	impl.AddLocal(tracking)

	r.prog.AddDecl(proc)
	r.prog.AddDecl(impl)
	r.generated[name] = true
	r.uniformity.MarkHalfDualisedProcThread(name, 1)
}

// conflict pairs the flag and offsets a checking procedure must assert
// disagreement with.
type conflict struct {
	flag    *ast.Variable
	offsets []*ast.Variable
}

// declareCheckProcedure emits the half-dualised procedure asserting
// the access at the given offsets collides with no logged access of a
// conflicting kind. It survives dualisation on thread 2, so the check
// runs against thread 1's log.
func (r *StandardRaceInstrumenter) declareCheckProcedure(name string, indexTypes []ast.Type, conflicts ...conflict) {
	params := offsetFormals(indexTypes)
	proc := &ast.Procedure{
		Name:   name,
		Params: params,
		Attrs:  ast.Attributes{{Name: ast.AttrInline}},
	}

	block := ast.NewBlock()
	for _, c := range conflicts {
		var clash ast.Expr = ast.Ident(c.flag)
		for i, o := range c.offsets {
			clash = ast.Binary(ast.OpAnd, clash, ast.Eq(ast.Ident(o), ast.Ident(params[i])))
		}
		block.Stmts = append(block.Stmts, &ast.AssertStmt{
			Attrs: ast.Attributes{{Name: ast.AttrRaceCheck}},
			Cond:  ast.Not(clash),
		})
	}
	body := &ast.StmtList{}
	body.AddBlock(block)

	impl := &ast.Implementation{Name: name, Proc: proc, Params: params, Body: body}
	r.prog.AddDecl(proc)
	r.prog.AddDecl(impl)
	r.generated[name] = true
	r.uniformity.MarkHalfDualisedProcThread(name, 2)
}

func (r *StandardRaceInstrumenter) InstrumentImplementation(impl *ast.Implementation) error {
	if r.generated[impl.Name] {
		return nil
	}
	proc := r.prog.Procedure(impl.Name)
	if err := r.instrumentStmtList(impl.Body, proc); err != nil {
		return err
	}
	return nil
}

func (r *StandardRaceInstrumenter) instrumentStmtList(list *ast.StmtList, proc *ast.Procedure) error {
	if list == nil {
		return nil
	}
	for _, b := range list.Blocks {
		var stmts []ast.Stmt
		for _, s := range b.Stmts {
			pre, err := r.accessCalls(s, proc)
			if err != nil {
				return err
			}
			stmts = append(stmts, pre...)
			stmts = append(stmts, s)
		}
		b.Stmts = stmts

		switch exit := b.Exit.(type) {
		case *ast.WhileExit:
			if err := r.instrumentStmtList(exit.Body, proc); err != nil {
				return err
			}
		case *ast.IfExit:
			for e := exit; e != nil; e = e.ElseIf {
				if err := r.instrumentStmtList(e.Then, proc); err != nil {
					return err
				}
				if e.ElseIf == nil {
					if err := r.instrumentStmtList(e.Else, proc); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// accessCalls returns the checking and logging calls preceding one
// command. Normalization guarantees a command touches at most one
// shared-array access, in canonical position.
func (r *StandardRaceInstrumenter) accessCalls(s ast.Stmt, proc *ast.Procedure) ([]ast.Stmt, error) {
	assign, ok := s.(*ast.AssignStmt)
	if !ok {
		return nil, nil
	}

	if sel, ok := assign.LHS.(*ast.MapSelectExpr); ok {
		if ta := r.tracked(sel.BaseVariable()); ta != nil {
			return r.siteCalls(ta, sel, CheckWriteName, LogWriteName, proc)
		}
	}
	if sel, ok := assign.RHS.(*ast.MapSelectExpr); ok {
		if ta := r.tracked(sel.BaseVariable()); ta != nil {
			return r.siteCalls(ta, sel, CheckReadName, LogReadName, proc)
		}
	}
	return nil, nil
}

func (r *StandardRaceInstrumenter) tracked(v *ast.Variable) *trackedArray {
	if v == nil {
		return nil
	}
	for _, ta := range r.arrays {
		if ta.v == v {
			return ta
		}
	}
	return nil
}

func (r *StandardRaceInstrumenter) siteCalls(ta *trackedArray, sel *ast.MapSelectExpr, checkName, logName func(string) string, proc *ast.Procedure) ([]ast.Stmt, error) {
	indices := axisIndices(sel)
	if len(indices) != len(ta.readOffsets) {
		return nil, verr.Internalf("RACE_ARITY",
			"%s: access to %s has %d indices, tracking expects %d",
			sel.GetSpan(), ta.v.Name, len(indices), len(ta.readOffsets))
	}

	check := &ast.CallStmt{Span: sel.Span, Name: checkName(ta.v.Name), Proc: r.prog.Procedure(checkName(ta.v.Name))}
	log := &ast.CallStmt{Span: sel.Span, Name: logName(ta.v.Name), Proc: r.prog.Procedure(logName(ta.v.Name))}
	for _, idx := range indices {
		check.Args = append(check.Args, idx.Clone())
		log.Args = append(log.Args, idx.Clone())
	}

	// The caller must cover the logging procedure's modifies set.
	if proc != nil {
		for _, sv := range ta.shadowNames() {
			proc.AddModifies(sv)
		}
	}
	return []ast.Stmt{check, log}, nil
}

// axisIndices returns the index expressions of a select chain in axis
// order: X is the innermost dimension, the last written in source.
func axisIndices(sel *ast.MapSelectExpr) []ast.Expr {
	var inward []ast.Expr
	for cur := ast.Expr(sel); ; {
		m, ok := cur.(*ast.MapSelectExpr)
		if !ok {
			break
		}
		inward = append(inward, m.Index)
		cur = m.Map
	}
	return inward
}

func (r *StandardRaceInstrumenter) BarrierStatements() []ast.Stmt {
	var stmts []ast.Stmt
	for _, ta := range r.arrays {
		stmts = append(stmts,
			ast.Assign(ast.Ident(ta.readFlag), ast.False()),
			ast.Assign(ast.Ident(ta.writeFlag), ast.False()))
	}
	return stmts
}

func (r *StandardRaceInstrumenter) BarrierModifies() []string {
	var names []string
	for _, ta := range r.arrays {
		names = append(names, ta.readFlag.Name, ta.writeFlag.Name)
	}
	return names
}

func (r *StandardRaceInstrumenter) ContractCandidates() []ast.Expr {
	var exprs []ast.Expr
	for _, ta := range r.arrays {
		exprs = append(exprs,
			ast.Not(ast.Ident(ta.readFlag)),
			ast.Not(ast.Ident(ta.writeFlag)))
	}
	return exprs
}
