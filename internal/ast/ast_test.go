package ast

import (
	"testing"
)

func intVar(name string) *Variable {
	return &Variable{Name: name, Type: TypeInt, Kind: KindLocal}
}

func TestAttributesLookup(t *testing.T) {
	attrs := Attributes{
		{Name: AttrKernel},
		{Name: AttrSourceLoc, Args: []interface{}{"k.gvl", 4}},
	}
	if !attrs.Has(AttrKernel) {
		t.Error("Has(kernel) = false")
	}
	if attrs.Has(AttrBarrier) {
		t.Error("Has(barrier) = true for absent attribute")
	}
	a, ok := attrs.Find(AttrSourceLoc)
	if !ok || len(a.Args) != 2 {
		t.Errorf("Find(sourceloc) = %v, %v", a, ok)
	}
	trimmed := attrs.Without(AttrKernel)
	if trimmed.Has(AttrKernel) || len(trimmed) != 1 {
		t.Errorf("Without(kernel) = %v", trimmed)
	}
}

func TestVariableClassification(t *testing.T) {
	tests := []struct {
		name  string
		v     *Variable
		class VarClass
	}{
		{"global array", &Variable{Name: "A", Kind: KindGlobal, Attrs: Attributes{{Name: AttrGlobal}}}, ClassGlobalArray},
		{"group shared", &Variable{Name: "B", Kind: KindGlobal, Attrs: Attributes{{Name: AttrGroupShared}}}, ClassGroupShared},
		{"constant array", &Variable{Name: "C", Kind: KindGlobal, Attrs: Attributes{{Name: AttrConstantArray}}}, ClassConstantArray},
		{"thread local id", &Variable{Name: "_X", Kind: KindConst, Attrs: Attributes{{Name: AttrLocalID}}}, ClassThreadLocalID},
		{"group id", &Variable{Name: "_TILE_X", Kind: KindConst, Attrs: Attributes{{Name: AttrGroupID}}}, ClassGroupID},
		{"private", &Variable{Name: "p", Kind: KindGlobal}, ClassPrivate},
		{"plain constant", &Variable{Name: "n", Kind: KindConst}, ClassNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.v.Classify()
			if tt.v.Class != tt.class {
				t.Errorf("Class = %v, want %v", tt.v.Class, tt.class)
			}
		})
	}
}

func TestSharedArrayPredicate(t *testing.T) {
	g := &Variable{Name: "A", Kind: KindGlobal, Attrs: Attributes{{Name: AttrGlobal}}}
	g.Classify()
	if !g.IsSharedArray() {
		t.Error("global array should be shared")
	}
	p := &Variable{Name: "p", Kind: KindGlobal}
	p.Classify()
	if p.IsSharedArray() {
		t.Error("private variable should not be shared")
	}
}

func TestMapDimensions(t *testing.T) {
	scalar := TypeInt
	one := &MapType{Index: TypeBv32, Result: TypeInt}
	three := &MapType{Index: TypeBv32, Result: &MapType{Index: TypeBv32, Result: one}}

	if d, el := MapDimensions(scalar); d != 0 || el != TypeInt {
		t.Errorf("scalar dims = %d, %v", d, el)
	}
	if d, el := MapDimensions(one); d != 1 || el != TypeInt {
		t.Errorf("1-d dims = %d, %v", d, el)
	}
	if d, _ := MapDimensions(three); d != 3 {
		t.Errorf("3-d dims = %d", d)
	}
}

func TestTypeEquality(t *testing.T) {
	a := &MapType{Index: TypeBv32, Result: TypeInt}
	b := &MapType{Index: TypeBv32, Result: TypeInt}
	c := &MapType{Index: TypeInt, Result: TypeInt}
	if !a.Equals(b) {
		t.Error("structurally equal map types must compare equal")
	}
	if a.Equals(c) {
		t.Error("map types with different index types must differ")
	}
	if a.Equals(TypeInt) {
		t.Error("map type must not equal scalar")
	}
}

func TestExprBuildersAndStrings(t *testing.T) {
	x := intVar("x")
	e := Ite(Binary(OpGt, Ident(x), &IntLit{Value: 0}), Ident(x), &IntLit{Value: 1})
	if got := e.String(); got != "(if (x > 0) then x else 1)" {
		t.Errorf("ite String() = %q", got)
	}
	if e.Type() != TypeInt {
		t.Errorf("ite Type() = %v", e.Type())
	}

	conj := And(True(), Ident(x))
	if conj.String() != "x" {
		t.Errorf("And(true, x) should simplify to x, got %q", conj.String())
	}
}

func TestExprCloneIsDeep(t *testing.T) {
	x := intVar("x")
	orig := Binary(OpAdd, Ident(x), &IntLit{Value: 2})
	cloned := orig.Clone().(*NAryExpr)
	cloned.Args[1].(*IntLit).Value = 99
	if orig.Args[1].(*IntLit).Value != 2 {
		t.Error("mutating a clone leaked into the original")
	}
}

func TestMapSelectBaseVariable(t *testing.T) {
	arr := &Variable{Name: "A", Kind: KindGlobal, Type: &MapType{Index: TypeBv32, Result: &MapType{Index: TypeBv32, Result: TypeInt}}}
	sel := &MapSelectExpr{
		Map:   &MapSelectExpr{Map: Ident(arr), Index: &IntLit{Value: 0, Width: 32}},
		Index: &IntLit{Value: 1, Width: 32},
	}
	if sel.BaseVariable() != arr {
		t.Error("BaseVariable should reach the root identifier declaration")
	}
	if sel.Type() != TypeInt {
		t.Errorf("nested select type = %v", sel.Type())
	}
}

func TestRewriteExprRebuildsWithoutMutating(t *testing.T) {
	x := intVar("x")
	y := intVar("y")
	orig := Binary(OpAdd, Ident(x), Ident(y))
	rewritten := RewriteExpr(orig, func(e Expr) Expr {
		if id, ok := e.(*IdentifierExpr); ok && id.Name == "x" {
			return &IdentifierExpr{Name: "x$1", Decl: id.Decl}
		}
		return e
	})
	if got := rewritten.String(); got != "(x$1 + y)" {
		t.Errorf("rewritten = %q", got)
	}
	if got := orig.String(); got != "(x + y)" {
		t.Errorf("original mutated: %q", got)
	}
}

func TestRewriteExprReplacesSubtrees(t *testing.T) {
	arr := &Variable{Name: "A", Kind: KindGlobal, Type: &MapType{Index: TypeInt, Result: TypeInt}}
	i := intVar("i")
	temp := intVar("t")
	orig := Binary(OpAdd, &MapSelectExpr{Map: Ident(arr), Index: Ident(i)}, &IntLit{Value: 1})
	rewritten := RewriteExpr(orig, func(e Expr) Expr {
		if sel, ok := e.(*MapSelectExpr); ok && sel.BaseVariable() == arr {
			return Ident(temp)
		}
		return e
	})
	if got := rewritten.String(); got != "(t + 1)" {
		t.Errorf("rewritten = %q", got)
	}
	if got := orig.String(); got != "(A[i] + 1)" {
		t.Errorf("original mutated: %q", got)
	}
}

func TestProgramLookups(t *testing.T) {
	proc := &Procedure{Name: "main", Attrs: Attributes{{Name: AttrKernel}}}
	impl := &Implementation{Name: "main", Proc: proc, Body: &StmtList{}}
	v := &Variable{Name: "_X", Kind: KindConst, Type: TypeBv32}
	prog := &Program{Decls: []Decl{v, proc, impl}}

	if prog.Procedure("main") != proc {
		t.Error("Procedure lookup failed")
	}
	if prog.ImplementationOf("main") != impl {
		t.Error("ImplementationOf lookup failed")
	}
	if prog.Variable("_X") != v {
		t.Error("Variable lookup failed")
	}
	if prog.Procedure("missing") != nil {
		t.Error("lookup of missing procedure should return nil")
	}
}

func TestProcedureAddModifiesDeduplicates(t *testing.T) {
	p := &Procedure{Name: "barrier"}
	p.AddModifies("A")
	p.AddModifies("B")
	p.AddModifies("A")
	if len(p.Modifies) != 2 {
		t.Errorf("Modifies = %v", p.Modifies)
	}
}
