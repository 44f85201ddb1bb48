package vcgen

import (
	"strings"
	"testing"

	verr "github.com/gridverify/gridverify/internal/errors"
	"github.com/gridverify/gridverify/internal/printer"
)

func TestRaceTrackingDeclarations(t *testing.T) {
	prog := mustParse(t, simpleKernel)
	info := mustWellFormed(t, prog)

	r := NewStandardRaceInstrumenter(prog, NewUniformityInfo())
	if err := r.AddTrackingDeclarations(info); err != nil {
		t.Fatalf("AddTrackingDeclarations: %v", err)
	}

	for _, name := range []string{
		"_READ_HAS_OCCURRED_A", "_WRITE_HAS_OCCURRED_A",
		"_READ_OFFSET_X_A", "_WRITE_OFFSET_X_A",
	} {
		if prog.Variable(name) == nil {
			t.Errorf("shadow variable %s not declared", name)
		}
	}
	for _, name := range []string{"_LOG_READ_A", "_LOG_WRITE_A", "_CHECK_READ_A", "_CHECK_WRITE_A"} {
		if prog.Procedure(name) == nil {
			t.Errorf("access procedure %s not declared", name)
		}
		if prog.ImplementationOf(name) == nil {
			t.Errorf("access procedure %s has no body", name)
		}
	}

	var found bool
	for _, m := range info.Kernel.Modifies {
		if m == "_WRITE_HAS_OCCURRED_A" {
			found = true
		}
	}
	if !found {
		t.Errorf("kernel modifies %v lacks the shadow state", info.Kernel.Modifies)
	}
}

func TestRaceTwoDimensionalOffsets(t *testing.T) {
	prog := mustParse(t, axisPrelude+`
var {:global} B: [int][int]int;

procedure {:barrier} barrier();
procedure {:kernel} main();
`)
	info := mustWellFormed(t, prog)
	r := NewStandardRaceInstrumenter(prog, NewUniformityInfo())
	if err := r.AddTrackingDeclarations(info); err != nil {
		t.Fatalf("AddTrackingDeclarations: %v", err)
	}
	for _, name := range []string{"_READ_OFFSET_X_B", "_READ_OFFSET_Y_B"} {
		if prog.Variable(name) == nil {
			t.Errorf("offset tracker %s not declared", name)
		}
	}
	if prog.Variable("_READ_OFFSET_Z_B") != nil {
		t.Error("2D array gained a Z offset tracker")
	}
}

func TestRaceRejectsFourDimensions(t *testing.T) {
	prog := mustParse(t, axisPrelude+`
var {:global} B: [int][int][int][int]int;

procedure {:barrier} barrier();
procedure {:kernel} main();
`)
	info := mustWellFormed(t, prog)
	err := NewStandardRaceInstrumenter(prog, NewUniformityInfo()).AddTrackingDeclarations(info)
	if err == nil {
		t.Fatal("4D array accepted")
	}
	if verr.CategoryOf(err) != verr.CategoryInput {
		t.Errorf("category = %v, want input", verr.CategoryOf(err))
	}
}

func TestRaceRejectsUntrackableIndexType(t *testing.T) {
	prog := mustParse(t, axisPrelude+`
var {:global} B: [bv64]int;

procedure {:barrier} barrier();
procedure {:kernel} main();
`)
	info := mustWellFormed(t, prog)
	err := NewStandardRaceInstrumenter(prog, NewUniformityInfo()).AddTrackingDeclarations(info)
	if err == nil {
		t.Fatal("bv64-indexed array accepted")
	}
	if verr.CategoryOf(err) != verr.CategoryInput {
		t.Errorf("category = %v, want input", verr.CategoryOf(err))
	}
}

func TestRaceInstrumentsAccessSites(t *testing.T) {
	prog := mustParse(t, simpleKernel)
	info := mustWellFormed(t, prog)

	norm := NewNormalizer(prog)
	for _, impl := range prog.Implementations() {
		if err := norm.NormalizeImplementation(impl); err != nil {
			t.Fatalf("normalize: %v", err)
		}
	}

	r := NewStandardRaceInstrumenter(prog, NewUniformityInfo())
	if err := r.AddTrackingDeclarations(info); err != nil {
		t.Fatalf("AddTrackingDeclarations: %v", err)
	}
	for _, impl := range prog.Implementations() {
		if err := r.InstrumentImplementation(impl); err != nil {
			t.Fatalf("InstrumentImplementation(%s): %v", impl.Name, err)
		}
	}

	body := implBody(t, prog, "main")
	writeCheck := strings.Index(body, "call _CHECK_WRITE_A(i);")
	writeLog := strings.Index(body, "call _LOG_WRITE_A(i);")
	write := strings.Index(body, "A[i] := i;")
	if writeCheck < 0 || writeLog < 0 {
		t.Fatalf("write site not instrumented:\n%s", body)
	}
	if !(writeCheck < writeLog && writeLog < write) {
		t.Errorf("write instrumentation misordered:\n%s", body)
	}
	if !strings.Contains(body, "call _CHECK_READ_A(i);") || !strings.Contains(body, "call _LOG_READ_A(i);") {
		t.Errorf("read site not instrumented:\n%s", body)
	}

	// The race-freedom obligation lives in the checking procedure.
	checkBody := implBody(t, prog, "_CHECK_READ_A")
	if !strings.Contains(checkBody, "assert {:race_check}") {
		t.Errorf("no race check assertion:\n%s", checkBody)
	}
	if !strings.Contains(checkBody, "_WRITE_HAS_OCCURRED_A") {
		t.Errorf("read check ignores the write log:\n%s", checkBody)
	}
}

func TestRaceBarrierResets(t *testing.T) {
	prog := mustParse(t, simpleKernel)
	info := mustWellFormed(t, prog)
	r := NewStandardRaceInstrumenter(prog, NewUniformityInfo())
	if err := r.AddTrackingDeclarations(info); err != nil {
		t.Fatalf("AddTrackingDeclarations: %v", err)
	}

	stmts := r.BarrierStatements()
	if len(stmts) != 2 {
		t.Fatalf("BarrierStatements returned %d statements, want 2", len(stmts))
	}
	if got := stmts[0].String(); got != "_READ_HAS_OCCURRED_A := false;" {
		t.Errorf("reset = %q", got)
	}
	mods := r.BarrierModifies()
	if len(mods) != 2 {
		t.Errorf("BarrierModifies = %v", mods)
	}
}

func TestNullRaceInstrumenterChangesNothing(t *testing.T) {
	prog := mustParse(t, simpleKernel)
	info := mustWellFormed(t, prog)
	before := printer.ToString(prog)

	var r RaceInstrumenter = NullRaceInstrumenter{}
	if err := r.AddTrackingDeclarations(info); err != nil {
		t.Fatalf("AddTrackingDeclarations: %v", err)
	}
	for _, impl := range prog.Implementations() {
		if err := r.InstrumentImplementation(impl); err != nil {
			t.Fatalf("InstrumentImplementation: %v", err)
		}
	}
	if got := printer.ToString(prog); got != before {
		t.Error("null instrumenter modified the program")
	}
	if r.BarrierStatements() != nil || r.BarrierModifies() != nil || r.ContractCandidates() != nil {
		t.Error("null instrumenter produced statements")
	}
}
