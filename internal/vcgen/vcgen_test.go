package vcgen

import (
	"strings"
	"testing"

	"github.com/gridverify/gridverify/internal/ast"
	"github.com/gridverify/gridverify/internal/diagnostics"
	"github.com/gridverify/gridverify/internal/parser"
	"github.com/gridverify/gridverify/internal/printer"
)

// axisPrelude declares the 1D grid constants every kernel test needs.
const axisPrelude = `
const {:local_id} _X: bv32;
const _TILE_SIZE_X: bv32;
const _NUM_TILES_X: bv32;
const {:group_id} _TILE_X: bv32;
`

// simpleKernel is a well-formed 1D kernel with one shared array, one
// barrier call, and one loop.
const simpleKernel = axisPrelude + `
var {:global} A: [int]int;

procedure {:barrier} barrier();

procedure {:kernel} main();

implementation main() {
    var i: int;
    var c: int;
    i := 0;
    A[i] := i;
    call barrier();
    c := A[i];
    while (c > 0) {
        c := c - 1;
    }
}
`

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse(src, "test.gvl")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return prog
}

func mustWellFormed(t *testing.T, prog *ast.Program) *KernelInfo {
	t.Helper()
	collector := diagnostics.NewCollector()
	info, err := CheckWellFormedness(prog, collector)
	if err != nil {
		t.Fatalf("well-formedness: %v\n%v", err, collector.Diagnostics())
	}
	return info
}

// implBody prints just the named implementation of prog.
func implBody(t *testing.T, prog *ast.Program, name string) string {
	t.Helper()
	impl := prog.ImplementationOf(name)
	if impl == nil {
		t.Fatalf("no implementation %s", name)
	}
	var sb strings.Builder
	printer.New(&sb).Print(prog)
	text := sb.String()
	marker := "implementation " + name + "("
	i := strings.Index(text, marker)
	if i < 0 {
		t.Fatalf("printed program lacks %s", marker)
	}
	rest := text[i:]
	for _, next := range []string{"\nimplementation ", "\nprocedure "} {
		if end := strings.Index(rest, next); end >= 0 {
			rest = rest[:end]
		}
	}
	return rest
}
