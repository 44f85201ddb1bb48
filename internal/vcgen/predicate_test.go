package vcgen

import (
	"strings"
	"testing"

	"github.com/gridverify/gridverify/internal/ast"
)

func TestPredicateTopLevelPassThrough(t *testing.T) {
	prog := mustParse(t, `
procedure {:kernel} main();

implementation main() {
    var x: int;
    x := 1;
    assert x > 0;
}
`)
	if err := NewPredicator(prog).PredicateProgram(); err != nil {
		t.Fatalf("predicate: %v", err)
	}
	body := implBody(t, prog, "main")
	// The kernel runs under literal true; its straight-line commands
	// must survive without ite wrapping or implication guards.
	if !strings.Contains(body, "x := 1;") {
		t.Errorf("assignment wrapped under enabled predicate:\n%s", body)
	}
	if !strings.Contains(body, "assert (x > 0);") {
		t.Errorf("assert guarded under enabled predicate:\n%s", body)
	}
}

func TestPredicateBranchGuardsUpdates(t *testing.T) {
	prog := mustParse(t, `
procedure {:kernel} main();

implementation main() {
    var x: int;
    if (x > 0) {
        x := 1;
    } else {
        x := 2;
    }
}
`)
	if err := NewPredicator(prog).PredicateProgram(); err != nil {
		t.Fatalf("predicate: %v", err)
	}
	body := implBody(t, prog, "main")
	if strings.Contains(body, "if (") {
		t.Errorf("structured if survived predication:\n%s", body)
	}
	if !strings.Contains(body, "_P0 := (x > 0);") {
		t.Errorf("branch predicate missing:\n%s", body)
	}
	// Disabled branches keep the target unchanged through the ite
	// fallback arm.
	if !strings.Contains(body, "x := (if _P0 then 1 else x);") {
		t.Errorf("then-branch not ite-guarded:\n%s", body)
	}
	if !strings.Contains(body, "x := (if !_P0 then 2 else x);") {
		t.Errorf("else-branch not ite-guarded:\n%s", body)
	}
}

func TestPredicateLoop(t *testing.T) {
	prog := mustParse(t, `
procedure {:kernel} main();

implementation main() {
    var c$1: int;
    while (c$1 > 0) {
        c$1 := c$1 - 1;
    }
}
`)
	if err := NewPredicator(prog).PredicateProgram(); err != nil {
		t.Fatalf("predicate: %v", err)
	}
	impl := prog.ImplementationOf("main")
	if impl.Local("_LC0") == nil {
		t.Fatal("loop predicate _LC0 not declared")
	}

	head := impl.Body.Blocks[0]
	init, ok := head.Stmts[len(head.Stmts)-1].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("loop head does not end in the predicate initialisation")
	}
	if got, want := init.String(), "_LC0 := (true && (c$1 > 0));"; got != want {
		t.Errorf("init = %q, want %q", got, want)
	}

	loop, ok := head.Exit.(*ast.WhileExit)
	if !ok {
		t.Fatalf("loop head exit = %T", head.Exit)
	}
	guard, ok := loop.Guard.(*ast.IdentifierExpr)
	if !ok || guard.Name != "_LC0" {
		t.Errorf("loop guard = %s, want _LC0", loop.Guard.String())
	}

	update := loop.Body.Blocks[len(loop.Body.Blocks)-1]
	if len(update.Stmts) != 1 {
		t.Fatalf("update block has %d statements", len(update.Stmts))
	}
	if got, want := update.Stmts[0].String(), "_LC0 := (_LC0 && (c$1 > 0));"; got != want {
		t.Errorf("update = %q, want %q", got, want)
	}
}

func TestPredicateHavoc(t *testing.T) {
	prog := mustParse(t, `
procedure {:kernel} main();

implementation main() {
    var x: int;
    if (x > 0) {
        havoc x;
    }
}
`)
	if err := NewPredicator(prog).PredicateProgram(); err != nil {
		t.Fatalf("predicate: %v", err)
	}
	impl := prog.ImplementationOf("main")
	if impl.Local("_HAVOC_int") == nil {
		t.Fatal("havoc temporary not declared")
	}
	body := implBody(t, prog, "main")
	if !strings.Contains(body, "havoc _HAVOC_int;") {
		t.Errorf("havoc not redirected through temporary:\n%s", body)
	}
	if !strings.Contains(body, "x := (if _P0 then _HAVOC_int else x);") {
		t.Errorf("havoc result not ite-selected:\n%s", body)
	}
}

func TestPredicateBreakClearsLoopPredicate(t *testing.T) {
	prog := mustParse(t, `
procedure {:kernel} main();

implementation main() {
    var c: int;
    while (c > 0) {
        c := c - 1;
        if (c > 5) {
            break;
        }
    }
}
`)
	if err := NewPredicator(prog).PredicateProgram(); err != nil {
		t.Fatalf("predicate: %v", err)
	}
	body := implBody(t, prog, "main")
	if strings.Contains(body, "break;") {
		t.Errorf("break survived predication:\n%s", body)
	}
	if !strings.Contains(body, "_LC0 := (if (_LC0 && _P0) then false else _LC0);") {
		t.Errorf("break does not clear the enclosing loop predicate:\n%s", body)
	}
}

func TestPredicateExtendsSignaturesAndCalls(t *testing.T) {
	prog := mustParse(t, `
procedure helper(a: int);

procedure {:kernel} main();

implementation main() {
    call helper(3);
}
`)
	if err := NewPredicator(prog).PredicateProgram(); err != nil {
		t.Fatalf("predicate: %v", err)
	}
	helper := prog.Procedure("helper")
	if len(helper.Params) != 2 || helper.Params[0].Name != PredParamName {
		t.Fatalf("helper params = %v", helper.Params)
	}
	body := implBody(t, prog, "main")
	if !strings.Contains(body, "call helper(true, 3);") {
		t.Errorf("call did not gain the predicate argument:\n%s", body)
	}
}
