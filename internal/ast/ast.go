// Package ast defines the GVL (grid verification language) program
// model that every transformation pass operates on. A Program is an
// ordered list of top-level declarations; implementation bodies are
// trees of BigBlocks (simple commands terminated by an optional
// structured exit construct), which the predication pass later
// linearises.
//
// Expressions are immutable by convention: they may be referenced from
// several AST locations (both thread copies derive from one source
// expression), so passes deep-Clone before mutating. Declarations and
// statement lists are mutated destructively by the pipeline, which owns
// the Program exclusively.
package ast

import (
	"fmt"
	"strings"

	"github.com/gridverify/gridverify/internal/position"
)

// Node is the base interface for all AST nodes.
type Node interface {
	// GetSpan returns the source span covered by this node.
	GetSpan() position.Span
	// String returns a GVL-flavoured representation of the node.
	String() string
}

// Decl represents all top-level declaration nodes.
type Decl interface {
	Node
	declNode()
}

// ===== Attributes =====

// Attribute is a {:name arg...} annotation on a declaration or
// statement. Arguments are strings or integers.
type Attribute struct {
	Name string
	Args []interface{}
}

func (a Attribute) String() string {
	if len(a.Args) == 0 {
		return fmt.Sprintf("{:%s}", a.Name)
	}
	parts := make([]string, len(a.Args))
	for i, arg := range a.Args {
		if s, ok := arg.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
		} else {
			parts[i] = fmt.Sprint(arg)
		}
	}
	return fmt.Sprintf("{:%s %s}", a.Name, strings.Join(parts, ", "))
}

// Attributes is an ordered attribute list with lookup helpers.
type Attributes []Attribute

// Has reports whether an attribute with the given name is present.
func (as Attributes) Has(name string) bool {
	for _, a := range as {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Find returns the first attribute with the given name.
func (as Attributes) Find(name string) (Attribute, bool) {
	for _, a := range as {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Without returns a copy of the list with every attribute of the given
// name removed.
func (as Attributes) Without(name string) Attributes {
	out := make(Attributes, 0, len(as))
	for _, a := range as {
		if a.Name != name {
			out = append(out, a)
		}
	}
	return out
}

func (as Attributes) String() string {
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

// Well-known attribute names recognised by the pipeline.
const (
	AttrKernel            = "kernel"
	AttrBarrier           = "barrier"
	AttrInline            = "inline"
	AttrExistential       = "existential"
	AttrGlobal            = "global"
	AttrGroupShared       = "group_shared"
	AttrTileStatic        = "tile_static"
	AttrConstantArray     = "constant"
	AttrAtomicUsedMap     = "atomic_usedmap"
	AttrAtomicGroupShared = "atomic_group_shared"
	AttrLocalID           = "local_id"
	AttrGroupID           = "group_id"
	AttrCandidate         = "candidate"
	AttrSourceLoc         = "sourceloc"
	AttrRaceCheck         = "race_check"
)

// ===== Program =====

// Program is the root of the model: an ordered collection of top-level
// declarations, mutated in place by each pipeline stage.
type Program struct {
	Span  position.Span
	Decls []Decl
}

func (p *Program) GetSpan() position.Span { return p.Span }

func (p *Program) String() string {
	parts := make([]string, len(p.Decls))
	for i, d := range p.Decls {
		parts[i] = d.String()
	}
	return strings.Join(parts, "\n")
}

// AddDecl appends a declaration to the program.
func (p *Program) AddDecl(d Decl) {
	p.Decls = append(p.Decls, d)
}

// Variables returns all top-level variable declarations in declaration
// order. Iterating this (never a map) keeps pass output independent of
// hashing.
func (p *Program) Variables() []*Variable {
	var vars []*Variable
	for _, d := range p.Decls {
		if v, ok := d.(*Variable); ok {
			vars = append(vars, v)
		}
	}
	return vars
}

// Procedures returns all procedure declarations in declaration order.
func (p *Program) Procedures() []*Procedure {
	var procs []*Procedure
	for _, d := range p.Decls {
		if pr, ok := d.(*Procedure); ok {
			procs = append(procs, pr)
		}
	}
	return procs
}

// Implementations returns all implementation declarations in
// declaration order.
func (p *Program) Implementations() []*Implementation {
	var impls []*Implementation
	for _, d := range p.Decls {
		if im, ok := d.(*Implementation); ok {
			impls = append(impls, im)
		}
	}
	return impls
}

// Procedure returns the procedure with the given name, or nil.
func (p *Program) Procedure(name string) *Procedure {
	for _, d := range p.Decls {
		if pr, ok := d.(*Procedure); ok && pr.Name == name {
			return pr
		}
	}
	return nil
}

// ImplementationOf returns the implementation of the named procedure,
// or nil.
func (p *Program) ImplementationOf(name string) *Implementation {
	for _, d := range p.Decls {
		if im, ok := d.(*Implementation); ok && im.Name == name {
			return im
		}
	}
	return nil
}

// Variable returns the top-level variable with the given name, or nil.
func (p *Program) Variable(name string) *Variable {
	for _, d := range p.Decls {
		if v, ok := d.(*Variable); ok && v.Name == name {
			return v
		}
	}
	return nil
}

// ===== Variables =====

// VarKind distinguishes how a variable was declared.
type VarKind int

const (
	KindConst  VarKind = iota // immutable top-level constant
	KindGlobal                // mutable shared state
	KindLocal                 // scoped to an implementation
	KindFormal                // procedure parameter or return
	KindBound                 // bound by a quantifier
)

func (k VarKind) String() string {
	switch k {
	case KindConst:
		return "const"
	case KindGlobal:
		return "var"
	case KindLocal:
		return "local"
	case KindFormal:
		return "formal"
	case KindBound:
		return "bound"
	default:
		return "unknown"
	}
}

// VarClass is the closed classification of a variable, computed once
// from its attributes and name so passes need not re-inspect the
// attribute bag. An array belongs to at most one of the array classes
// at a time.
type VarClass int

const (
	ClassNone VarClass = iota
	ClassGlobalArray
	ClassGroupShared
	ClassConstantArray
	ClassPrivate
	ClassThreadLocalID
	ClassGroupID
)

func (c VarClass) String() string {
	switch c {
	case ClassGlobalArray:
		return "global"
	case ClassGroupShared:
		return "group-shared"
	case ClassConstantArray:
		return "constant"
	case ClassPrivate:
		return "private"
	case ClassThreadLocalID:
		return "thread-local-id"
	case ClassGroupID:
		return "group-id"
	default:
		return "none"
	}
}

// Variable is a typed identifier declaration. Top-level variables are
// Decls; formals, locals and bound variables reuse the same node.
type Variable struct {
	Span  position.Span
	Name  string
	Type  Type
	Kind  VarKind
	Attrs Attributes
	Class VarClass
}

func (v *Variable) declNode()              {}
func (v *Variable) GetSpan() position.Span { return v.Span }
func (v *Variable) String() string {
	var sb strings.Builder
	sb.WriteString(v.Kind.String())
	sb.WriteString(" ")
	if len(v.Attrs) > 0 {
		sb.WriteString(v.Attrs.String())
		sb.WriteString(" ")
	}
	sb.WriteString(v.Name)
	sb.WriteString(": ")
	sb.WriteString(v.Type.String())
	return sb.String()
}

// Classify computes the VarClass from the attribute bag and stores it
// on the variable. Called once per variable after parsing; passes read
// v.Class afterwards.
func (v *Variable) Classify() {
	switch {
	case v.Attrs.Has(AttrLocalID):
		v.Class = ClassThreadLocalID
	case v.Attrs.Has(AttrGroupID):
		v.Class = ClassGroupID
	case v.Attrs.Has(AttrGroupShared):
		v.Class = ClassGroupShared
	case v.Attrs.Has(AttrGlobal):
		v.Class = ClassGlobalArray
	case v.Attrs.Has(AttrConstantArray):
		v.Class = ClassConstantArray
	case v.Kind == KindGlobal:
		v.Class = ClassPrivate
	default:
		v.Class = ClassNone
	}
}

// IsSharedArray reports whether the variable denotes state visible to
// more than one thread, the target of race instrumentation.
func (v *Variable) IsSharedArray() bool {
	return v.Class == ClassGlobalArray || v.Class == ClassGroupShared
}

// ===== Procedures and implementations =====

// Contract is a single requires or ensures clause.
type Contract struct {
	Span position.Span
	Free bool // free contracts are assumed, never checked
	Cond Expr
}

func (c *Contract) GetSpan() position.Span { return c.Span }
func (c *Contract) String() string         { return c.Cond.String() }

// Procedure is a named signature with contracts and a shared-state
// footprint. Its body, if any, lives on a separate Implementation.
type Procedure struct {
	Span     position.Span
	Name     string
	Params   []*Variable
	Returns  []*Variable
	Requires []*Contract
	Ensures  []*Contract
	Modifies []string
	Attrs    Attributes
}

func (p *Procedure) declNode()              {}
func (p *Procedure) GetSpan() position.Span { return p.Span }
func (p *Procedure) String() string {
	return fmt.Sprintf("procedure %s(%d params, %d returns)", p.Name, len(p.Params), len(p.Returns))
}

// AddModifies appends name to the modifies set if not already present.
func (p *Procedure) AddModifies(name string) {
	for _, m := range p.Modifies {
		if m == name {
			return
		}
	}
	p.Modifies = append(p.Modifies, name)
}

// Implementation is a procedure body: formals mirrored from the
// procedure, a local variable list, and a structured statement tree.
type Implementation struct {
	Span    position.Span
	Name    string
	Proc    *Procedure
	Params  []*Variable
	Returns []*Variable
	Locals  []*Variable
	Body    *StmtList
}

func (im *Implementation) declNode()              {}
func (im *Implementation) GetSpan() position.Span { return im.Span }
func (im *Implementation) String() string {
	return fmt.Sprintf("implementation %s", im.Name)
}

// AddLocal appends a local variable declaration.
func (im *Implementation) AddLocal(v *Variable) {
	im.Locals = append(im.Locals, v)
}

// Local returns the local variable with the given name, or nil.
func (im *Implementation) Local(name string) *Variable {
	for _, v := range im.Locals {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// ===== Functions and axioms =====

// Function is an uninterpreted function declaration, used for the
// thread-alternation helpers (__other_bool and friends).
type Function struct {
	Span   position.Span
	Name   string
	Params []*Variable
	Result Type
	Attrs  Attributes
}

func (f *Function) declNode()              {}
func (f *Function) GetSpan() position.Span { return f.Span }
func (f *Function) String() string {
	return fmt.Sprintf("function %s/%d", f.Name, len(f.Params))
}

// Axiom is a top-level assumed fact.
type Axiom struct {
	Span  position.Span
	Attrs Attributes
	Cond  Expr
}

func (a *Axiom) declNode()              {}
func (a *Axiom) GetSpan() position.Span { return a.Span }
func (a *Axiom) String() string         { return "axiom " + a.Cond.String() }
