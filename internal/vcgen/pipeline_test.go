package vcgen

import (
	"strings"
	"testing"

	"github.com/gridverify/gridverify/internal/parser"
	"github.com/gridverify/gridverify/internal/printer"
)

func TestPipelineEndToEnd(t *testing.T) {
	prog, info, collector := runPipeline(t, simpleKernel, Options{RaceChecks: true})
	if collector.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", collector.Diagnostics())
	}

	text := printer.ToString(prog)
	if _, err := parser.Parse(text, "roundtrip.gvl"); err != nil {
		t.Fatalf("transformed program does not reparse: %v\n%s", err, text)
	}

	if prog.ImplementationOf(info.Barrier.Name) == nil {
		t.Fatal("barrier was not given an implementation")
	}
	if !strings.Contains(text, "_P$1 == _P$2") {
		t.Error("barrier does not assert against divergence")
	}
	if !strings.Contains(text, "_WRITE_HAS_OCCURRED_A") {
		t.Error("race tracking state missing from output")
	}
}

func TestPipelineNoRaceChecks(t *testing.T) {
	prog, _, _ := runPipeline(t, simpleKernel, Options{})
	text := printer.ToString(prog)
	if strings.Contains(text, "_WRITE_HAS_OCCURRED_A") {
		t.Error("race tracking state present with race checking disabled")
	}
	if _, err := parser.Parse(text, "roundtrip.gvl"); err != nil {
		t.Fatalf("transformed program does not reparse: %v\n%s", err, text)
	}
}

func TestPipelineBarrierHavocsSharedState(t *testing.T) {
	prog, info, _ := runPipeline(t, simpleKernel, Options{})
	body := implBody(t, prog, info.Barrier.Name)
	if !strings.Contains(body, "havoc A;") {
		t.Error("barrier should havoc shared state")
	}
	if !strings.Contains(body, "if (") {
		t.Error("barrier state effects should be skipped when both threads are disabled")
	}
}

func TestPipelineFullAbstractionDropsBarrierEffects(t *testing.T) {
	prog, info, _ := runPipeline(t, simpleKernel, Options{FullAbstraction: true})
	body := implBody(t, prog, info.Barrier.Name)
	if strings.Contains(body, "havoc") {
		t.Error("abstract barrier should not touch shared state")
	}
	if !strings.Contains(body, "assert") {
		t.Error("abstract barrier must keep the divergence check")
	}
	if prog.ImplementationOf(info.Barrier.Name) == nil {
		t.Fatal("barrier was not given an implementation")
	}
}
