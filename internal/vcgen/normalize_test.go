package vcgen

import (
	"strings"
	"testing"

	"github.com/gridverify/gridverify/internal/ast"
	verr "github.com/gridverify/gridverify/internal/errors"
	"github.com/gridverify/gridverify/internal/printer"
)

func TestNormalizeIsNoOpOnCanonicalBody(t *testing.T) {
	prog := mustParse(t, `
procedure f(x: int) returns (r: int);

implementation f(x: int) returns (r: int) {
    var c: int;
    c := x;
    if (c > 0) {
        c := c - 1;
    } else {
        c := 0;
    }
    while (c > 0) {
        c := c - 1;
        if (c > 5) {
            break;
        }
    }
    r := c;
}
`)
	before := printer.ToString(prog)

	norm := NewNormalizer(prog)
	if err := norm.NormalizeImplementation(prog.ImplementationOf("f")); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	after := printer.ToString(prog)
	if before != after {
		t.Errorf("canonical body changed:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestNormalizeFlattensElseIf(t *testing.T) {
	prog := mustParse(t, `
procedure f(x: int);

implementation f(x: int) {
    var c: int;
    if (x > 0) {
        c := 1;
    } else if (x > 1) {
        c := 2;
    } else {
        c := 3;
    }
}
`)
	norm := NewNormalizer(prog)
	if err := norm.NormalizeImplementation(prog.ImplementationOf("f")); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	var sawElseIf bool
	var walk func(list *ast.StmtList)
	walk = func(list *ast.StmtList) {
		if list == nil {
			return
		}
		for _, b := range list.Blocks {
			switch exit := b.Exit.(type) {
			case *ast.IfExit:
				if exit.ElseIf != nil {
					sawElseIf = true
				}
				walk(exit.Then)
				walk(exit.Else)
			case *ast.WhileExit:
				walk(exit.Body)
			}
		}
	}
	walk(prog.ImplementationOf("f").Body)
	if sawElseIf {
		t.Error("else-if chain survived normalization")
	}

	body := implBody(t, prog, "f")
	if !strings.Contains(body, "c := 2;") || !strings.Contains(body, "c := 3;") {
		t.Errorf("flattened branches lost:\n%s", body)
	}
}

func TestNormalizeRejectsBreakOutsideLoop(t *testing.T) {
	prog := mustParse(t, `
procedure f(x: int);

implementation f(x: int) {
    var c: int;
    c := x;
    if (c > 0) {
        break;
    }
}
`)
	err := NewNormalizer(prog).NormalizeImplementation(prog.ImplementationOf("f"))
	if err == nil {
		t.Fatal("break outside loop accepted")
	}
	if verr.CategoryOf(err) != verr.CategoryInput {
		t.Errorf("category = %v, want input", verr.CategoryOf(err))
	}
}

func TestNormalizeExtractsNestedAccess(t *testing.T) {
	prog := mustParse(t, `
var {:global} A: [int]int;
const {:constant} B: [int]int;

procedure f(j: int);

implementation f(j: int) {
    var c: int;
    c := A[B[j]];
}
`)
	if err := NewNormalizer(prog).NormalizeImplementation(prog.ImplementationOf("f")); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	body := implBody(t, prog, "f")
	if !strings.Contains(body, "_TEMP0 := B[j];") {
		t.Errorf("inner access not extracted:\n%s", body)
	}
	if !strings.Contains(body, "c := A[_TEMP0];") {
		t.Errorf("outer access not canonical:\n%s", body)
	}
	if prog.ImplementationOf("f").Local("_TEMP0") == nil {
		t.Error("temporary not declared as a local")
	}
}

func TestNormalizeRejectsMultiDimStore(t *testing.T) {
	prog := mustParse(t, `
var {:global} A: [int][int]int;

procedure f(i: int, j: int);

implementation f(i: int, j: int) {
    A[i][j] := 0;
}
`)
	err := NewNormalizer(prog).NormalizeImplementation(prog.ImplementationOf("f"))
	if err == nil {
		t.Fatal("multi-dimensional store accepted")
	}
	if verr.CategoryOf(err) != verr.CategoryInput {
		t.Errorf("category = %v, want input", verr.CategoryOf(err))
	}
}
