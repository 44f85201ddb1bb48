package vcgen

import (
	"bufio"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/gridverify/gridverify/internal/ast"
	"github.com/gridverify/gridverify/internal/diagnostics"
	verr "github.com/gridverify/gridverify/internal/errors"
	"github.com/gridverify/gridverify/internal/parser"
	"github.com/gridverify/gridverify/internal/position"
	"github.com/gridverify/gridverify/internal/printer"
)

// CandidateGenerator seeds the external Houdini-style fixpoint solver.
// Every candidate it emits is gated behind a fresh existential boolean
// so the solver can discharge wrong guesses without touching the
// program text. It runs on the dualised program, where agreement
// between the two thread copies is expressible directly.
type CandidateGenerator struct {
	prog       *ast.Program
	info       *KernelInfo
	race       RaceInstrumenter
	collector  *diagnostics.Collector
	existCount int

	fullAbstraction bool
}

// NewCandidateGenerator creates a generator over the dualised program.
func NewCandidateGenerator(prog *ast.Program, info *KernelInfo, race RaceInstrumenter, collector *diagnostics.Collector, fullAbstraction bool) *CandidateGenerator {
	return &CandidateGenerator{
		prog:            prog,
		info:            info,
		race:            race,
		collector:       collector,
		fullAbstraction: fullAbstraction,
	}
}

// freshExistential declares the next candidate-gating constant.
func (g *CandidateGenerator) freshExistential() *ast.Variable {
	b := &ast.Variable{
		Name:  ExistentialName(g.existCount),
		Type:  ast.TypeBool,
		Kind:  ast.KindConst,
		Attrs: ast.Attributes{{Name: ast.AttrExistential}},
	}
	g.existCount++
	g.prog.AddDecl(b)
	return b
}

// guard wraps a candidate behind a fresh existential boolean.
func (g *CandidateGenerator) guard(cand ast.Expr) ast.Expr {
	return ast.Implies(ast.Ident(g.freshExistential()), cand)
}

// dualPair is one variable that dualisation split into two adjacent
// thread copies.
type dualPair struct {
	base   string
	first  *ast.Variable
	second *ast.Variable
}

// dualPairs finds the thread-copy pairs in a dualised formal or local
// list, dropping names from the predicate and temporary conventions.
func dualPairs(vars []*ast.Variable) []dualPair {
	var pairs []dualPair
	for i := 0; i+1 < len(vars); i++ {
		base, ok := strings.CutSuffix(vars[i].Name, ThreadSuffix(1))
		if !ok || vars[i+1].Name != DualName(base, 2) {
			continue
		}
		if IsPredicateOrTempName(vars[i].Name) {
			continue
		}
		pairs = append(pairs, dualPair{base: base, first: vars[i], second: vars[i+1]})
	}
	return pairs
}

// Generate emits the built-in candidates: thread-copy agreement
// contracts for every ordinary procedure, and per-loop agreement
// invariants.
func (g *CandidateGenerator) Generate() error {
	for _, proc := range g.prog.Procedures() {
		if proc == g.info.Kernel || proc.Attrs.Has(ast.AttrInline) {
			continue
		}
		g.procedureCandidates(proc)
	}
	for _, impl := range g.prog.Implementations() {
		proc := g.prog.Procedure(impl.Name)
		if proc != nil && proc.Attrs.Has(ast.AttrInline) {
			continue
		}
		g.loopCandidates(impl)
	}
	return nil
}

// procedureCandidates seeds a procedure's contract: each doubled input
// may agree across threads, outright and under both incoming
// predicates, and the shadow access logs may be clear on entry.
func (g *CandidateGenerator) procedureCandidates(proc *ast.Procedure) {
	pred := incomingPredicates(proc)

	for _, p := range dualPairs(proc.Params) {
		eq := ast.Eq(ast.Ident(p.first), ast.Ident(p.second))
		proc.Requires = append(proc.Requires, &ast.Contract{Cond: g.guard(eq)})
		if pred != nil {
			guarded := ast.Implies(pred(), ast.Eq(ast.Ident(p.first), ast.Ident(p.second)))
			proc.Requires = append(proc.Requires, &ast.Contract{Cond: g.guard(guarded)})
		}
	}
	for _, cand := range g.race.ContractCandidates() {
		proc.Requires = append(proc.Requires, &ast.Contract{Cond: g.guard(cand)})
	}

	for _, p := range dualPairs(proc.Returns) {
		eq := ast.Eq(ast.Ident(p.first), ast.Ident(p.second))
		proc.Ensures = append(proc.Ensures, &ast.Contract{Cond: g.guard(eq)})
		if pred != nil {
			guarded := ast.Implies(pred(), ast.Eq(ast.Ident(p.first), ast.Ident(p.second)))
			proc.Ensures = append(proc.Ensures, &ast.Contract{Cond: g.guard(guarded)})
		}
	}
}

// incomingPredicates returns a builder for the conjunction of both
// thread predicate formals, or nil when the procedure does not carry
// them.
func incomingPredicates(proc *ast.Procedure) func() ast.Expr {
	if len(proc.Params) < 2 ||
		proc.Params[0].Name != DualName(PredParamName, 1) ||
		proc.Params[1].Name != DualName(PredParamName, 2) {
		return nil
	}
	p1, p2 := proc.Params[0], proc.Params[1]
	return func() ast.Expr {
		return ast.Binary(ast.OpAnd, ast.Ident(p1), ast.Ident(p2))
	}
}

// loopCandidates attaches agreement candidates to every loop header of
// the implementation: the loop predicate copies agree, and, unless
// shared state is fully abstracted, each doubled local agrees.
func (g *CandidateGenerator) loopCandidates(impl *ast.Implementation) {
	locals := dualPairs(impl.Locals)
	g.loopCandidatesIn(impl.Body, locals)
}

func (g *CandidateGenerator) loopCandidatesIn(list *ast.StmtList, locals []dualPair) {
	if list == nil {
		return
	}
	for _, b := range list.Blocks {
		exit, ok := b.Exit.(*ast.WhileExit)
		if !ok {
			continue
		}
		if lc1, lc2, ok := dualLoopPredicates(exit.Guard); ok {
			exit.Invariants = append(exit.Invariants, &ast.Invariant{
				Cond: g.guard(ast.Eq(lc1, lc2)),
			})
		}
		if !g.fullAbstraction {
			for _, p := range locals {
				exit.Invariants = append(exit.Invariants, &ast.Invariant{
					Cond: g.guard(ast.Eq(ast.Ident(p.first), ast.Ident(p.second))),
				})
			}
		}
		g.loopCandidatesIn(exit.Body, locals)
	}
}

// dualLoopPredicates recognizes the dualised loop guard shape, the
// disjunction of the two copies of one loop predicate.
func dualLoopPredicates(guard ast.Expr) (ast.Expr, ast.Expr, bool) {
	or, ok := guard.(*ast.NAryExpr)
	if !ok || or.Op != ast.OpOr || len(or.Args) != 2 {
		return nil, nil, false
	}
	id1, ok1 := or.Args[0].(*ast.IdentifierExpr)
	id2, ok2 := or.Args[1].(*ast.IdentifierExpr)
	if !ok1 || !ok2 {
		return nil, nil, false
	}
	base, ok := strings.CutSuffix(id1.Name, ThreadSuffix(1))
	if !ok || id2.Name != DualName(base, 2) {
		return nil, nil, false
	}
	return id1.Clone(), id2.Clone(), true
}

// requiresDirective is the optional first line of a candidate file,
// constraining which tool versions the file was written for.
const requiresDirective = "#requires"

// AddUserCandidates reads candidate expressions, one per line, and
// attaches the admissible ones to every loop of the kernel. Lines that
// fail the round-trip re-parse against a scratch copy of the program
// are skipped with a diagnostic rather than silently dropped. version
// is the running tool version, checked against an optional leading
// "#requires <constraint>" line.
func (g *CandidateGenerator) AddUserCandidates(r io.Reader, version string) error {
	kernelImpl := g.prog.ImplementationOf(g.info.Kernel.Name)
	if kernelImpl == nil {
		return verr.Internalf("NO_KERNEL_IMPL", "kernel %s has no implementation", g.info.Kernel.Name)
	}

	// The scratch copy exists so validation cannot bind candidate
	// expressions to the program being mutated.
	scratch, err := parser.Parse(printer.ToString(g.prog), "<scratch>")
	if err != nil {
		return verr.Internalf("SCRATCH_REPARSE", "program failed to round-trip: %v", err)
	}
	scratchImpl := scratch.ImplementationOf(g.info.Kernel.Name)

	var admitted []ast.Expr
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, requiresDirective); ok {
			if err := checkVersionConstraint(strings.TrimSpace(rest), version); err != nil {
				g.collector.Warnf(diagnostics.CategoryCandidate,
					position.PointSpan(position.Position{Filename: "<candidates>", Line: lineNo, Column: 1}),
					"candidate file rejected: %v", err)
				return nil
			}
			continue
		}

		span := position.PointSpan(position.Position{Filename: "<candidates>", Line: lineNo, Column: 1})
		probe, err := parser.ParseExprIn(line, scratch, scratchImpl)
		if err != nil {
			g.collector.Warnf(diagnostics.CategoryCandidate, span,
				"skipping candidate %q: %v", line, err)
			continue
		}
		if !probe.Type().Equals(ast.TypeBool) {
			g.collector.Warnf(diagnostics.CategoryCandidate, span,
				"skipping candidate %q: not boolean", line)
			continue
		}
		cand, err := parser.ParseExprIn(line, g.prog, kernelImpl)
		if err != nil {
			g.collector.Warnf(diagnostics.CategoryCandidate, span,
				"skipping candidate %q: %v", line, err)
			continue
		}
		admitted = append(admitted, cand)
	}
	if err := scanner.Err(); err != nil {
		return verr.Inputf("CANDIDATE_READ", "reading candidate file: %v", err)
	}

	for _, cand := range admitted {
		g.attachToLoops(kernelImpl.Body, cand)
	}
	return nil
}

// checkVersionConstraint validates a semver range against the running
// tool version.
func checkVersionConstraint(constraint, version string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return verr.Inputf("CANDIDATE_REQUIRES", "bad #requires constraint %q: %v", constraint, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return verr.Internalf("BAD_VERSION", "tool version %q is not semver: %v", version, err)
	}
	if !c.Check(v) {
		return verr.Inputf("CANDIDATE_REQUIRES",
			"candidate file requires version %q, running %s", constraint, version)
	}
	return nil
}

// attachToLoops adds one admitted candidate, freshly guarded, to every
// loop header reachable in the statement list.
func (g *CandidateGenerator) attachToLoops(list *ast.StmtList, cand ast.Expr) {
	if list == nil {
		return
	}
	for _, b := range list.Blocks {
		exit, ok := b.Exit.(*ast.WhileExit)
		if !ok {
			continue
		}
		exit.Invariants = append(exit.Invariants, &ast.Invariant{Cond: g.guard(cand.Clone())})
		g.attachToLoops(exit.Body, cand)
	}
}
