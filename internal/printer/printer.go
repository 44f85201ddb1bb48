// Package printer serializes an ast.Program back to GVL text. Output
// is deterministic and re-parseable: declarations are grouped so every
// name is declared before its first use (constants and variables,
// then functions and axioms, then all procedures, then their
// implementations).
package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/gridverify/gridverify/internal/ast"
)

// Printer writes GVL text.
type Printer struct {
	w      io.Writer
	indent int
}

// New creates a printer targeting w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print serializes the whole program.
func (p *Printer) Print(prog *ast.Program) {
	for _, d := range prog.Decls {
		if v, ok := d.(*ast.Variable); ok {
			p.printVariableDecl(v)
		}
	}
	for _, d := range prog.Decls {
		if f, ok := d.(*ast.Function); ok {
			p.printFunction(f)
		}
	}
	for _, d := range prog.Decls {
		if a, ok := d.(*ast.Axiom); ok {
			p.printAxiom(a)
		}
	}
	for _, d := range prog.Decls {
		if proc, ok := d.(*ast.Procedure); ok {
			p.printProcedure(proc)
		}
	}
	for _, d := range prog.Decls {
		if impl, ok := d.(*ast.Implementation); ok {
			p.printImplementation(impl)
		}
	}
}

// Fprint serializes prog to w.
func Fprint(w io.Writer, prog *ast.Program) {
	New(w).Print(prog)
}

// ToString serializes prog to a string.
func ToString(prog *ast.Program) string {
	var sb strings.Builder
	Fprint(&sb, prog)
	return sb.String()
}

func (p *Printer) line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("    ", p.indent), fmt.Sprintf(format, args...))
}

func (p *Printer) blank() {
	fmt.Fprintln(p.w)
}

func attrPrefix(attrs ast.Attributes) string {
	if len(attrs) == 0 {
		return ""
	}
	return attrs.String() + " "
}

func (p *Printer) printVariableDecl(v *ast.Variable) {
	switch v.Kind {
	case ast.KindConst:
		p.line("const %s%s: %s;", attrPrefix(v.Attrs), v.Name, v.Type.String())
	default:
		p.line("var %s%s: %s;", attrPrefix(v.Attrs), v.Name, v.Type.String())
	}
}

func (p *Printer) printFunction(f *ast.Function) {
	params := make([]string, len(f.Params))
	for i, v := range f.Params {
		params[i] = fmt.Sprintf("%s: %s", v.Name, v.Type.String())
	}
	p.line("function %s%s(%s): %s;", attrPrefix(f.Attrs), f.Name, strings.Join(params, ", "), f.Result.String())
}

func (p *Printer) printAxiom(a *ast.Axiom) {
	p.line("axiom %s%s;", attrPrefix(a.Attrs), a.Cond.String())
}

func formals(vars []*ast.Variable) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = fmt.Sprintf("%s: %s", v.Name, v.Type.String())
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) printProcedure(proc *ast.Procedure) {
	p.blank()
	sig := fmt.Sprintf("procedure %s%s(%s)", attrPrefix(proc.Attrs), proc.Name, formals(proc.Params))
	if len(proc.Returns) > 0 {
		sig += fmt.Sprintf(" returns (%s)", formals(proc.Returns))
	}
	p.line("%s;", sig)
	for _, r := range proc.Requires {
		if r.Free {
			p.line("    free requires %s;", r.Cond.String())
		} else {
			p.line("    requires %s;", r.Cond.String())
		}
	}
	if len(proc.Modifies) > 0 {
		p.line("    modifies %s;", strings.Join(proc.Modifies, ", "))
	}
	for _, e := range proc.Ensures {
		if e.Free {
			p.line("    free ensures %s;", e.Cond.String())
		} else {
			p.line("    ensures %s;", e.Cond.String())
		}
	}
}

func (p *Printer) printImplementation(impl *ast.Implementation) {
	p.blank()
	sig := fmt.Sprintf("implementation %s(%s)", impl.Name, formals(impl.Params))
	if len(impl.Returns) > 0 {
		sig += fmt.Sprintf(" returns (%s)", formals(impl.Returns))
	}
	p.line("%s {", sig)
	p.indent++
	for _, v := range impl.Locals {
		p.line("var %s%s: %s;", attrPrefix(v.Attrs), v.Name, v.Type.String())
	}
	p.printStmtList(impl.Body)
	p.indent--
	p.line("}")
}

func (p *Printer) printStmtList(list *ast.StmtList) {
	if list == nil {
		return
	}
	for _, b := range list.Blocks {
		p.printBlock(b)
	}
}

func (p *Printer) printBlock(b *ast.BigBlock) {
	for _, s := range b.Stmts {
		p.line("%s", s.String())
	}
	switch exit := b.Exit.(type) {
	case nil:
	case *ast.IfExit:
		p.printIf(exit)
	case *ast.WhileExit:
		p.line("while (%s)", exit.Guard.String())
		for _, inv := range exit.Invariants {
			p.line("    invariant %s;", inv.Cond.String())
		}
		p.line("{")
		p.indent++
		p.printStmtList(exit.Body)
		p.indent--
		p.line("}")
	case *ast.BreakExit:
		p.line("break;")
	}
}

func (p *Printer) printIf(exit *ast.IfExit) {
	p.line("if (%s) {", exit.Guard.String())
	p.indent++
	p.printStmtList(exit.Then)
	p.indent--
	switch {
	case exit.ElseIf != nil:
		// Rendered as "} else if ..." by re-entering printIf on the
		// same indentation level.
		fmt.Fprintf(p.w, "%s} else ", strings.Repeat("    ", p.indent))
		p.printIfTail(exit.ElseIf)
	case exit.Else != nil:
		p.line("} else {")
		p.indent++
		p.printStmtList(exit.Else)
		p.indent--
		p.line("}")
	default:
		p.line("}")
	}
}

// printIfTail prints an if whose "if (...) {" must continue the line
// already started by the caller.
func (p *Printer) printIfTail(exit *ast.IfExit) {
	fmt.Fprintf(p.w, "if (%s) {\n", exit.Guard.String())
	p.indent++
	p.printStmtList(exit.Then)
	p.indent--
	switch {
	case exit.ElseIf != nil:
		fmt.Fprintf(p.w, "%s} else ", strings.Repeat("    ", p.indent))
		p.printIfTail(exit.ElseIf)
	case exit.Else != nil:
		p.line("} else {")
		p.indent++
		p.printStmtList(exit.Else)
		p.indent--
		p.line("}")
	default:
		p.line("}")
	}
}
