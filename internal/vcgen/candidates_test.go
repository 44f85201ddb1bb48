package vcgen

import (
	"strings"
	"testing"

	"github.com/gridverify/gridverify/internal/ast"
	"github.com/gridverify/gridverify/internal/diagnostics"
)

// runPipeline runs the full transformation over src.
func runPipeline(t *testing.T, src string, opts Options) (*ast.Program, *KernelInfo, *diagnostics.Collector) {
	t.Helper()
	prog := mustParse(t, src)
	collector := diagnostics.NewCollector()
	info, err := NewPipeline(opts).Run(prog, collector)
	if err != nil {
		t.Fatalf("pipeline: %v\n%v", err, collector.Diagnostics())
	}
	return prog, info, collector
}

// kernelLoop returns the first loop of the kernel implementation.
func kernelLoop(t *testing.T, prog *ast.Program, info *KernelInfo) *ast.WhileExit {
	t.Helper()
	impl := prog.ImplementationOf(info.Kernel.Name)
	var find func(list *ast.StmtList) *ast.WhileExit
	find = func(list *ast.StmtList) *ast.WhileExit {
		if list == nil {
			return nil
		}
		for _, b := range list.Blocks {
			if w, ok := b.Exit.(*ast.WhileExit); ok {
				return w
			}
		}
		return nil
	}
	loop := find(impl.Body)
	if loop == nil {
		t.Fatal("kernel has no loop")
	}
	return loop
}

func TestCandidateLoopAgreement(t *testing.T) {
	prog, info, _ := runPipeline(t, simpleKernel, Options{RaceChecks: true})
	loop := kernelLoop(t, prog, info)

	var sawPredAgreement, sawLocalAgreement bool
	for _, inv := range loop.Invariants {
		s := inv.Cond.String()
		if strings.Contains(s, "_LC0$1 == _LC0$2") {
			sawPredAgreement = true
		}
		if strings.Contains(s, "c$1 == c$2") {
			sawLocalAgreement = true
		}
		if !strings.Contains(s, "_b") || !strings.Contains(s, "==>") {
			t.Errorf("candidate %q is not existentially gated", s)
		}
	}
	if !sawPredAgreement {
		t.Error("no loop predicate agreement candidate")
	}
	if !sawLocalAgreement {
		t.Error("no local agreement candidate")
	}

	if prog.Variable("_b0") == nil {
		t.Error("no existential constant declared")
	}
	b0 := prog.Variable("_b0")
	if !b0.Attrs.Has(ast.AttrExistential) {
		t.Error("existential constant lacks its attribute")
	}
}

func TestCandidateFullAbstractionSkipsLocals(t *testing.T) {
	prog, info, _ := runPipeline(t, simpleKernel, Options{RaceChecks: true, FullAbstraction: true})
	loop := kernelLoop(t, prog, info)
	for _, inv := range loop.Invariants {
		if strings.Contains(inv.Cond.String(), "c$1 == c$2") {
			t.Errorf("local agreement candidate under full abstraction: %q", inv.Cond.String())
		}
	}
}

func TestCandidateProcedureContracts(t *testing.T) {
	src := axisPrelude + `
var {:global} A: [int]int;

procedure {:barrier} barrier();

procedure helper(a: int) returns (r: int);

procedure {:kernel} main();

implementation main() {
    var x: int;
    var y: int;
    call y := helper(x);
    call barrier();
}
`
	prog, _, _ := runPipeline(t, src, Options{RaceChecks: true})
	helper := prog.Procedure("helper")
	if len(helper.Requires) == 0 {
		t.Fatal("helper gained no requires candidates")
	}

	var sawEquality, sawPredicated, sawRaceContract bool
	for _, c := range helper.Requires {
		s := c.Cond.String()
		if strings.Contains(s, "a$1 == a$2") {
			sawEquality = true
			if strings.Contains(s, "_P$1") {
				sawPredicated = true
			}
		}
		if strings.Contains(s, "!_READ_HAS_OCCURRED_A") {
			sawRaceContract = true
		}
	}
	if !sawEquality {
		t.Error("no parameter equality candidate")
	}
	if !sawPredicated {
		t.Error("no predicated equality candidate")
	}
	if !sawRaceContract {
		t.Error("no race contract candidate")
	}

	var sawEnsures bool
	for _, c := range helper.Ensures {
		if strings.Contains(c.Cond.String(), "r$1 == r$2") {
			sawEnsures = true
		}
	}
	if !sawEnsures {
		t.Error("no return equality candidate")
	}
}

func TestUserCandidateValidation(t *testing.T) {
	candidates := strings.NewReader("this is (not an expression\ntrue\n")
	prog, info, collector := runPipeline(t, simpleKernel, Options{
		RaceChecks: true,
		Candidates: candidates,
		Version:    "1.0.0",
	})

	if collector.WarningCount() != 1 {
		t.Errorf("WarningCount = %d, want 1 skipped line\n%v",
			collector.WarningCount(), collector.Diagnostics())
	}

	loop := kernelLoop(t, prog, info)
	var admitted bool
	for _, inv := range loop.Invariants {
		if strings.Contains(inv.Cond.String(), "==> true") {
			admitted = true
		}
	}
	if !admitted {
		t.Error("valid candidate after an invalid line was not admitted")
	}
}

func TestUserCandidateVersionConstraint(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		admitted bool
	}{
		{"satisfied", "#requires >=1.0.0\n", true},
		{"unsatisfied", "#requires >=99.0.0\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, info, collector := runPipeline(t, simpleKernel, Options{
				RaceChecks: true,
				Candidates: strings.NewReader(tt.header + "true\n"),
				Version:    "2.1.0",
			})
			loop := kernelLoop(t, prog, info)
			var admitted bool
			for _, inv := range loop.Invariants {
				if strings.Contains(inv.Cond.String(), "==> true") {
					admitted = true
				}
			}
			if admitted != tt.admitted {
				t.Errorf("admitted = %v, want %v\n%v", admitted, tt.admitted, collector.Diagnostics())
			}
			if !tt.admitted && collector.WarningCount() == 0 {
				t.Error("rejected candidate file produced no diagnostic")
			}
		})
	}
}
