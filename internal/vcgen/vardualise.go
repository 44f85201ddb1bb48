package vcgen

import (
	"github.com/gridverify/gridverify/internal/ast"
)

// VarDualiser renames and transforms an expression for one thread
// copy. It is the utility nearly every pass shares: shared storage and
// uniform entities keep their names, thread-local and private entities
// gain the thread suffix, quantifier-bound identifiers are never
// touched, and the __other_* alternation functions flip the thread id
// for their argument.
type VarDualiser struct {
	threadID   int
	procName   string
	uniformity *UniformityInfo

	// intraGroup suppresses dualising group ids: inside a single
	// group both threads share them.
	intraGroup bool

	// groupIndex, when non-nil, is the group id used to add the
	// per-group indexing layer on atomic-tracked arrays.
	groupIndex *ast.Variable

	// boundDepth counts quantifier scopes per identifier name.
	bound map[string]int
}

// NewVarDualiser creates a dualiser for one thread copy within one
// procedure.
func NewVarDualiser(threadID int, procName string, uniformity *UniformityInfo) *VarDualiser {
	return &VarDualiser{
		threadID:   threadID,
		procName:   procName,
		uniformity: uniformity,
		bound:      map[string]int{},
	}
}

// SetIntraGroup switches the dualiser into intra-group mode.
func (vd *VarDualiser) SetIntraGroup(on bool) { vd.intraGroup = on }

// SetGroupIndex supplies the group id constant used for atomic-array
// index layering.
func (vd *VarDualiser) SetGroupIndex(v *ast.Variable) { vd.groupIndex = v }

// otherID returns the opposite thread id.
func otherID(id int) int {
	if id == 1 {
		return 2
	}
	return 1
}

// Dualise returns the expression transformed for this thread copy.
// The input is never mutated.
func (vd *VarDualiser) Dualise(e ast.Expr) ast.Expr {
	switch ex := e.(type) {
	case *ast.IdentifierExpr:
		return vd.dualiseIdent(ex)

	case *ast.BoolLit, *ast.IntLit:
		return ex.Clone()

	case *ast.MapSelectExpr:
		return vd.dualiseSelect(ex)

	case *ast.NAryExpr:
		args := make([]ast.Expr, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = vd.Dualise(a)
		}
		return &ast.NAryExpr{Span: ex.Span, Op: ex.Op, Args: args}

	case *ast.CallExpr:
		if IsOtherFunction(ex.Name) {
			// The alternation marker disappears; its argument is the
			// other thread's view of the sub-expression.
			flipped := vd.withThreadID(otherID(vd.threadID))
			return flipped.Dualise(ex.Args[0])
		}
		args := make([]ast.Expr, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = vd.Dualise(a)
		}
		return &ast.CallExpr{Span: ex.Span, Name: ex.Name, Func: ex.Func, Args: args}

	case *ast.QuantifierExpr:
		for _, v := range ex.Bound {
			vd.bound[v.Name]++
		}
		body := vd.Dualise(ex.Body)
		for _, v := range ex.Bound {
			vd.bound[v.Name]--
		}
		return &ast.QuantifierExpr{Span: ex.Span, Kind: ex.Kind, Bound: ex.Bound, Body: body}

	default:
		return e.Clone()
	}
}

// withThreadID returns a copy of the dualiser targeting another
// thread, sharing the bound-variable scope.
func (vd *VarDualiser) withThreadID(id int) *VarDualiser {
	clone := *vd
	clone.threadID = id
	return &clone
}

// NeedsDualising reports whether the declared variable gets a renamed
// copy per thread.
func (vd *VarDualiser) NeedsDualising(v *ast.Variable) bool {
	if vd.uniformity.IsHalfDualised(v.Name) {
		return false
	}
	if vd.uniformity.IsUniform(vd.procName, v.Name) {
		return false
	}
	switch v.Class {
	case ast.ClassGlobalArray, ast.ClassGroupShared, ast.ClassConstantArray:
		// Shared storage is named identically for both threads;
		// only access is differentiated.
		return false
	case ast.ClassThreadLocalID:
		return true
	case ast.ClassGroupID:
		return !vd.intraGroup
	case ast.ClassPrivate:
		return true
	}
	switch v.Kind {
	case ast.KindConst:
		// Plain constants (tile sizes, tile counts) hold one value
		// for every thread.
		return false
	case ast.KindBound:
		return false
	default:
		return true
	}
}

func (vd *VarDualiser) dualiseIdent(id *ast.IdentifierExpr) ast.Expr {
	if vd.bound[id.Name] > 0 || IsDualisedName(id.Name) {
		return id.Clone()
	}
	if id.Decl == nil || !vd.NeedsDualising(id.Decl) {
		return id.Clone()
	}
	return &ast.IdentifierExpr{
		Span: id.Span,
		Name: DualName(id.Name, vd.threadID),
		Decl: id.Decl,
	}
}

// dualiseSelect rewrites a map-select chain. Chains into arrays marked
// for atomic tracking gain an extra per-group indexing layer directly
// above the array, so atomic bookkeeping stays distinct per group.
func (vd *VarDualiser) dualiseSelect(sel *ast.MapSelectExpr) ast.Expr {
	base := sel.BaseVariable()
	needsGroupLayer := base != nil && vd.groupIndex != nil &&
		(base.Attrs.Has(ast.AttrAtomicUsedMap) || base.Attrs.Has(ast.AttrAtomicGroupShared))

	m := vd.Dualise(sel.Map)
	if needsGroupLayer {
		if _, isRoot := sel.Map.(*ast.IdentifierExpr); isRoot {
			groupRef := ast.Ident(vd.groupIndex)
			var groupExpr ast.Expr = groupRef
			if !vd.intraGroup {
				groupExpr = &ast.IdentifierExpr{
					Span: groupRef.Span,
					Name: DualName(vd.groupIndex.Name, vd.threadID),
					Decl: vd.groupIndex,
				}
			}
			m = &ast.MapSelectExpr{Span: sel.Span, Map: m, Index: groupExpr}
		}
	}
	return &ast.MapSelectExpr{Span: sel.Span, Map: m, Index: vd.Dualise(sel.Index)}
}
