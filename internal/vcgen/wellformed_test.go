package vcgen

import (
	"strings"
	"testing"

	"github.com/gridverify/gridverify/internal/diagnostics"
	verr "github.com/gridverify/gridverify/internal/errors"
)

func TestWellFormedSimpleKernel(t *testing.T) {
	prog := mustParse(t, simpleKernel)
	collector := diagnostics.NewCollector()
	info, err := CheckWellFormedness(prog, collector)
	if err != nil {
		t.Fatalf("CheckWellFormedness: %v\n%v", err, collector.Diagnostics())
	}
	if info.Kernel == nil || info.Kernel.Name != "main" {
		t.Errorf("kernel = %v", info.Kernel)
	}
	if info.Barrier == nil || info.Barrier.Name != "barrier" {
		t.Errorf("barrier = %v", info.Barrier)
	}
	if !info.HasConstant("_TILE_SIZE_X") {
		t.Error("grid constant _TILE_SIZE_X not recorded")
	}
}

func TestWellFormedTwoKernels(t *testing.T) {
	prog := mustParse(t, axisPrelude+`
procedure {:barrier} barrier();
procedure {:kernel} main();
procedure {:kernel} other();
`)
	collector := diagnostics.NewCollector()
	_, err := CheckWellFormedness(prog, collector)
	if err == nil {
		t.Fatal("two kernels accepted")
	}
	if verr.CategoryOf(err) != verr.CategoryWellFormedness {
		t.Errorf("category = %v, want well-formedness", verr.CategoryOf(err))
	}
	if collector.ErrorCount() != 1 {
		t.Fatalf("ErrorCount = %d, want 1\n%v", collector.ErrorCount(), collector.Diagnostics())
	}
	msg := collector.Diagnostics()[0].Message
	if !strings.Contains(msg, "main") || !strings.Contains(msg, "other") {
		t.Errorf("error does not name both kernels: %q", msg)
	}
}

func TestWellFormedTwoKernelsStopsPipeline(t *testing.T) {
	prog := mustParse(t, axisPrelude+`
procedure {:barrier} barrier();
procedure {:kernel} main();
procedure {:kernel} other();
`)
	before := len(prog.Decls)
	collector := diagnostics.NewCollector()
	_, err := NewPipeline(Options{RaceChecks: true}).Run(prog, collector)
	if err == nil {
		t.Fatal("pipeline ran on ill-formed program")
	}
	if len(prog.Decls) != before {
		t.Error("declarations changed despite well-formedness failure")
	}
}

func TestWellFormedAxisCompleteness(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		errors  int
		mention string
	}{
		{
			name: "1D complete",
			src: axisPrelude + `
procedure {:barrier} barrier();
procedure {:kernel} main();
`,
			errors: 0,
		},
		{
			name: "Y axis missing tile size",
			src: axisPrelude + `
const {:local_id} _Y: bv32;
const _NUM_TILES_Y: bv32;
const {:group_id} _TILE_Y: bv32;

procedure {:barrier} barrier();
procedure {:kernel} main();
`,
			errors:  1,
			mention: "_TILE_SIZE_Y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustParse(t, tt.src)
			collector := diagnostics.NewCollector()
			_, err := CheckWellFormedness(prog, collector)
			if tt.errors == 0 {
				if err != nil {
					t.Fatalf("CheckWellFormedness: %v\n%v", err, collector.Diagnostics())
				}
				return
			}
			if err == nil {
				t.Fatal("incomplete axis accepted")
			}
			if collector.ErrorCount() != tt.errors {
				t.Fatalf("ErrorCount = %d, want %d\n%v", collector.ErrorCount(), tt.errors, collector.Diagnostics())
			}
			if !strings.Contains(collector.Diagnostics()[0].Message, tt.mention) {
				t.Errorf("error %q does not cite %s", collector.Diagnostics()[0].Message, tt.mention)
			}
		})
	}
}

func TestWellFormedTileStaticLocal(t *testing.T) {
	prog := mustParse(t, axisPrelude+`
procedure {:barrier} barrier();
procedure {:kernel} main();

implementation main() {
    var {:tile_static} s: [int]int;
    assert true;
}
`)
	collector := diagnostics.NewCollector()
	_, err := CheckWellFormedness(prog, collector)
	if err == nil {
		t.Fatal("tile_static local accepted")
	}
	if collector.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1\n%v", collector.ErrorCount(), collector.Diagnostics())
	}
}
