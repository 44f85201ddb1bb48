package ast

import (
	"fmt"
	"strings"

	"github.com/gridverify/gridverify/internal/position"
)

// Expr represents all expression nodes. Expressions are treated as
// immutable: a pass that needs a changed expression rebuilds it (or
// Clones first), because the same node may be referenced from several
// tree locations.
type Expr interface {
	Node
	exprNode()
	// Type returns the resolved type of the expression, or nil when
	// the node was synthesised and not yet resolved.
	Type() Type
	// Clone returns a deep copy of the expression tree.
	Clone() Expr
}

// ===== Identifiers and literals =====

// IdentifierExpr is a reference to a declared variable.
type IdentifierExpr struct {
	Span position.Span
	Name string
	Decl *Variable // resolved declaration; carries the type
}

func (e *IdentifierExpr) exprNode()              {}
func (e *IdentifierExpr) GetSpan() position.Span { return e.Span }
func (e *IdentifierExpr) String() string         { return e.Name }

func (e *IdentifierExpr) Type() Type {
	if e.Decl == nil {
		return nil
	}
	return e.Decl.Type
}

func (e *IdentifierExpr) Clone() Expr {
	c := *e
	return &c
}

// Ident creates an identifier expression for a declared variable.
func Ident(v *Variable) *IdentifierExpr {
	return &IdentifierExpr{Span: v.Span, Name: v.Name, Decl: v}
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Span  position.Span
	Value bool
}

func (e *BoolLit) exprNode()              {}
func (e *BoolLit) GetSpan() position.Span { return e.Span }
func (e *BoolLit) Type() Type             { return TypeBool }

func (e *BoolLit) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}

func (e *BoolLit) Clone() Expr {
	c := *e
	return &c
}

// True and False create fresh boolean literal nodes.
func True() *BoolLit  { return &BoolLit{Value: true} }
func False() *BoolLit { return &BoolLit{Value: false} }

// IsLiteralTrue reports whether e is the literal true.
func IsLiteralTrue(e Expr) bool {
	b, ok := e.(*BoolLit)
	return ok && b.Value
}

// IsLiteralFalse reports whether e is the literal false.
func IsLiteralFalse(e Expr) bool {
	b, ok := e.(*BoolLit)
	return ok && !b.Value
}

// IntLit is an integer or bitvector literal. Width 0 denotes a
// mathematical integer; 32 and 64 denote bitvector literals.
type IntLit struct {
	Span  position.Span
	Value int64
	Width int
}

func (e *IntLit) exprNode()              {}
func (e *IntLit) GetSpan() position.Span { return e.Span }

func (e *IntLit) Type() Type {
	switch e.Width {
	case 32:
		return TypeBv32
	case 64:
		return TypeBv64
	default:
		return TypeInt
	}
}

func (e *IntLit) String() string {
	if e.Width > 0 {
		return fmt.Sprintf("%dbv%d", e.Value, e.Width)
	}
	return fmt.Sprintf("%d", e.Value)
}

func (e *IntLit) Clone() Expr {
	c := *e
	return &c
}

// ===== Compound expressions =====

// MapSelectExpr indexes one dimension of a map: m[i]. Nested selects
// index multi-dimensional arrays.
type MapSelectExpr struct {
	Span  position.Span
	Map   Expr
	Index Expr
}

func (e *MapSelectExpr) exprNode()              {}
func (e *MapSelectExpr) GetSpan() position.Span { return e.Span }

func (e *MapSelectExpr) String() string {
	return fmt.Sprintf("%s[%s]", e.Map.String(), e.Index.String())
}

func (e *MapSelectExpr) Type() Type {
	mt, ok := e.Map.Type().(*MapType)
	if !ok {
		return nil
	}
	return mt.Result
}

func (e *MapSelectExpr) Clone() Expr {
	return &MapSelectExpr{Span: e.Span, Map: e.Map.Clone(), Index: e.Index.Clone()}
}

// BaseVariable returns the variable at the root of a map-select chain,
// or nil when the chain does not bottom out in an identifier.
func (e *MapSelectExpr) BaseVariable() *Variable {
	cur := e.Map
	for {
		switch m := cur.(type) {
		case *MapSelectExpr:
			cur = m.Map
		case *IdentifierExpr:
			return m.Decl
		default:
			return nil
		}
	}
}

// Op enumerates the n-ary operators.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpImplies
	OpIte
)

func (op Op) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "div"
	case OpMod:
		return "mod"
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpNot:
		return "!"
	case OpImplies:
		return "==>"
	case OpIte:
		return "ite"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Arity returns the operand count of the operator (1, 2 or 3).
func (op Op) Arity() int {
	switch op {
	case OpNot:
		return 1
	case OpIte:
		return 3
	default:
		return 2
	}
}

// NAryExpr applies an operator to its operands. OpIte takes three
// arguments (guard, then, else); OpNot takes one; all others two.
type NAryExpr struct {
	Span position.Span
	Op   Op
	Args []Expr
}

func (e *NAryExpr) exprNode()              {}
func (e *NAryExpr) GetSpan() position.Span { return e.Span }

func (e *NAryExpr) String() string {
	switch e.Op {
	case OpNot:
		return fmt.Sprintf("!%s", parenthesize(e.Args[0]))
	case OpIte:
		return fmt.Sprintf("(if %s then %s else %s)",
			e.Args[0].String(), e.Args[1].String(), e.Args[2].String())
	default:
		return fmt.Sprintf("(%s %s %s)", e.Args[0].String(), e.Op.String(), e.Args[1].String())
	}
}

func parenthesize(e Expr) string {
	switch e.(type) {
	case *IdentifierExpr, *BoolLit, *IntLit:
		return e.String()
	default:
		return "(" + e.String() + ")"
	}
}

func (e *NAryExpr) Type() Type {
	switch e.Op {
	case OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr, OpNot, OpImplies:
		return TypeBool
	case OpIte:
		return e.Args[1].Type()
	default:
		return e.Args[0].Type()
	}
}

func (e *NAryExpr) Clone() Expr {
	args := make([]Expr, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.Clone()
	}
	return &NAryExpr{Span: e.Span, Op: e.Op, Args: args}
}

// Binary builds a binary operator application.
func Binary(op Op, left, right Expr) *NAryExpr {
	return &NAryExpr{Op: op, Args: []Expr{left, right}}
}

// Not builds a logical negation.
func Not(e Expr) *NAryExpr {
	return &NAryExpr{Op: OpNot, Args: []Expr{e}}
}

// Ite builds an if-then-else expression.
func Ite(guard, then, els Expr) *NAryExpr {
	return &NAryExpr{Op: OpIte, Args: []Expr{guard, then, els}}
}

// And builds the conjunction of left and right, simplifying literal
// true operands away.
func And(left, right Expr) Expr {
	if IsLiteralTrue(left) {
		return right
	}
	if IsLiteralTrue(right) {
		return left
	}
	return Binary(OpAnd, left, right)
}

// Or builds the disjunction of left and right.
func Or(left, right Expr) Expr {
	return Binary(OpOr, left, right)
}

// Implies builds the implication left ==> right.
func Implies(left, right Expr) Expr {
	return Binary(OpImplies, left, right)
}

// Eq builds the equality left == right.
func Eq(left, right Expr) Expr {
	return Binary(OpEq, left, right)
}

// CallExpr applies a declared (uninterpreted) function.
type CallExpr struct {
	Span position.Span
	Name string
	Func *Function // resolved declaration; carries the result type
	Args []Expr
}

func (e *CallExpr) exprNode()              {}
func (e *CallExpr) GetSpan() position.Span { return e.Span }

func (e *CallExpr) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(parts, ", "))
}

func (e *CallExpr) Type() Type {
	if e.Func == nil {
		return nil
	}
	return e.Func.Result
}

func (e *CallExpr) Clone() Expr {
	args := make([]Expr, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.Clone()
	}
	return &CallExpr{Span: e.Span, Name: e.Name, Func: e.Func, Args: args}
}

// QuantKind distinguishes universal from existential quantifiers.
type QuantKind int

const (
	Forall QuantKind = iota
	Exists
)

func (k QuantKind) String() string {
	if k == Exists {
		return "exists"
	}
	return "forall"
}

// QuantifierExpr binds variables over a boolean body. Bound variables
// are exempt from dualisation.
type QuantifierExpr struct {
	Span  position.Span
	Kind  QuantKind
	Bound []*Variable
	Body  Expr
}

func (e *QuantifierExpr) exprNode()              {}
func (e *QuantifierExpr) GetSpan() position.Span { return e.Span }
func (e *QuantifierExpr) Type() Type             { return TypeBool }

func (e *QuantifierExpr) String() string {
	parts := make([]string, len(e.Bound))
	for i, v := range e.Bound {
		parts[i] = fmt.Sprintf("%s: %s", v.Name, v.Type.String())
	}
	return fmt.Sprintf("(%s %s :: %s)", e.Kind.String(), strings.Join(parts, ", "), e.Body.String())
}

func (e *QuantifierExpr) Clone() Expr {
	bound := make([]*Variable, len(e.Bound))
	for i, v := range e.Bound {
		c := *v
		bound[i] = &c
	}
	return &QuantifierExpr{Span: e.Span, Kind: e.Kind, Bound: bound, Body: e.Body.Clone()}
}
