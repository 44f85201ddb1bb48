package ast

import (
	"fmt"
	"strings"

	"github.com/gridverify/gridverify/internal/position"
)

// Stmt represents the simple commands that may appear inside a
// BigBlock: assign, havoc, assert, assume and call. Structured control
// flow lives on the block's exit construct instead.
type Stmt interface {
	Node
	stmtNode()
}

// ExitConstruct is the optional structured terminator of a BigBlock:
// If, While or Break.
type ExitConstruct interface {
	Node
	exitNode()
}

// StmtList is an ordered sequence of BigBlocks forming one nesting
// level of a structured body.
type StmtList struct {
	Span   position.Span
	Blocks []*BigBlock
}

func (s *StmtList) GetSpan() position.Span { return s.Span }

func (s *StmtList) String() string {
	parts := make([]string, len(s.Blocks))
	for i, b := range s.Blocks {
		parts[i] = b.String()
	}
	return strings.Join(parts, "\n")
}

// AddBlock appends a block to the list.
func (s *StmtList) AddBlock(b *BigBlock) {
	s.Blocks = append(s.Blocks, b)
}

// PrependBlock inserts a block before all existing blocks.
func (s *StmtList) PrependBlock(b *BigBlock) {
	s.Blocks = append([]*BigBlock{b}, s.Blocks...)
}

// BigBlock is a run of simple commands terminated by an optional
// structured exit construct.
type BigBlock struct {
	Span  position.Span
	Label string
	Stmts []Stmt
	Exit  ExitConstruct // nil when the block falls through
}

func (b *BigBlock) GetSpan() position.Span { return b.Span }

func (b *BigBlock) String() string {
	var sb strings.Builder
	if b.Label != "" {
		sb.WriteString(b.Label)
		sb.WriteString(":\n")
	}
	for _, s := range b.Stmts {
		sb.WriteString(s.String())
		sb.WriteString("\n")
	}
	if b.Exit != nil {
		sb.WriteString(b.Exit.String())
	}
	return sb.String()
}

// AddStmt appends a simple command to the block.
func (b *BigBlock) AddStmt(s Stmt) {
	b.Stmts = append(b.Stmts, s)
}

// NewBlock creates an unlabeled block holding the given commands.
func NewBlock(stmts ...Stmt) *BigBlock {
	return &BigBlock{Stmts: stmts}
}

// ===== Simple commands =====

// AssignStmt is a single assignment. The LHS is an identifier or a
// map-select chain rooted at an identifier.
type AssignStmt struct {
	Span position.Span
	LHS  Expr
	RHS  Expr
}

func (s *AssignStmt) stmtNode()              {}
func (s *AssignStmt) GetSpan() position.Span { return s.Span }
func (s *AssignStmt) String() string {
	return fmt.Sprintf("%s := %s;", s.LHS.String(), s.RHS.String())
}

// Assign creates an assignment command.
func Assign(lhs, rhs Expr) *AssignStmt {
	return &AssignStmt{LHS: lhs, RHS: rhs}
}

// HavocStmt assigns arbitrary values to its target variables.
type HavocStmt struct {
	Span    position.Span
	Targets []*IdentifierExpr
}

func (s *HavocStmt) stmtNode()              {}
func (s *HavocStmt) GetSpan() position.Span { return s.Span }
func (s *HavocStmt) String() string {
	parts := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		parts[i] = t.Name
	}
	return fmt.Sprintf("havoc %s;", strings.Join(parts, ", "))
}

// Havoc creates a havoc command over the given targets.
func Havoc(targets ...*IdentifierExpr) *HavocStmt {
	return &HavocStmt{Targets: targets}
}

// AssertStmt checks a boolean condition.
type AssertStmt struct {
	Span  position.Span
	Attrs Attributes
	Cond  Expr
}

func (s *AssertStmt) stmtNode()              {}
func (s *AssertStmt) GetSpan() position.Span { return s.Span }
func (s *AssertStmt) String() string {
	if len(s.Attrs) > 0 {
		return fmt.Sprintf("assert %s %s;", s.Attrs.String(), s.Cond.String())
	}
	return fmt.Sprintf("assert %s;", s.Cond.String())
}

// AssumeStmt constrains execution with a boolean condition.
type AssumeStmt struct {
	Span  position.Span
	Attrs Attributes
	Cond  Expr
}

func (s *AssumeStmt) stmtNode()              {}
func (s *AssumeStmt) GetSpan() position.Span { return s.Span }
func (s *AssumeStmt) String() string {
	if len(s.Attrs) > 0 {
		return fmt.Sprintf("assume %s %s;", s.Attrs.String(), s.Cond.String())
	}
	return fmt.Sprintf("assume %s;", s.Cond.String())
}

// CallStmt invokes a procedure.
type CallStmt struct {
	Span    position.Span
	Attrs   Attributes
	Name    string
	Proc    *Procedure // resolved callee
	Args    []Expr
	Returns []*IdentifierExpr
}

func (s *CallStmt) stmtNode()              {}
func (s *CallStmt) GetSpan() position.Span { return s.Span }

func (s *CallStmt) String() string {
	attrs := ""
	if len(s.Attrs) > 0 {
		attrs = s.Attrs.String() + " "
	}
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.String()
	}
	if len(s.Returns) == 0 {
		return fmt.Sprintf("call %s%s(%s);", attrs, s.Name, strings.Join(args, ", "))
	}
	rets := make([]string, len(s.Returns))
	for i, r := range s.Returns {
		rets[i] = r.Name
	}
	return fmt.Sprintf("call %s%s := %s(%s);", attrs, strings.Join(rets, ", "), s.Name, strings.Join(args, ", "))
}

// ===== Exit constructs =====

// Invariant is a loop invariant; candidate invariants carry the
// existential guard inside Cond.
type Invariant struct {
	Span position.Span
	Cond Expr
}

func (iv *Invariant) GetSpan() position.Span { return iv.Span }
func (iv *Invariant) String() string         { return "invariant " + iv.Cond.String() + ";" }

// IfExit is a structured conditional. ElseIf chains are eliminated by
// the structural normalizer before any later pass runs.
type IfExit struct {
	Span   position.Span
	Guard  Expr
	Then   *StmtList
	ElseIf *IfExit   // else-if chain; nil after normalization
	Else   *StmtList // may be nil
}

func (e *IfExit) exitNode()              {}
func (e *IfExit) GetSpan() position.Span { return e.Span }

func (e *IfExit) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "if (%s) { ... }", e.Guard.String())
	if e.ElseIf != nil {
		sb.WriteString(" else ")
		sb.WriteString(e.ElseIf.String())
	} else if e.Else != nil {
		sb.WriteString(" else { ... }")
	}
	return sb.String()
}

// WhileExit is a structured loop.
type WhileExit struct {
	Span       position.Span
	Guard      Expr
	Invariants []*Invariant
	Body       *StmtList
}

func (e *WhileExit) exitNode()              {}
func (e *WhileExit) GetSpan() position.Span { return e.Span }
func (e *WhileExit) String() string {
	return fmt.Sprintf("while (%s) { ... }", e.Guard.String())
}

// BreakExit exits the nearest enclosing loop.
type BreakExit struct {
	Span position.Span
}

func (e *BreakExit) exitNode()              {}
func (e *BreakExit) GetSpan() position.Span { return e.Span }
func (e *BreakExit) String() string         { return "break;" }
