package printer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gridverify/gridverify/internal/parser"
)

func parse(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse(src, "test.gvl")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return ToString(prog)
}

func TestPrintGolden(t *testing.T) {
	got := parse(t, `
var x: int;
procedure p();
    modifies x;
implementation p() {
    if (x > 0) {
        x := 1;
    } else if (x == 0) {
        x := 2;
    } else {
        x := 3;
    }
}
`)
	want := `var x: int;

procedure p();
    modifies x;

implementation p() {
    if ((x > 0)) {
        x := 1;
    } else if ((x == 0)) {
        x := 2;
    } else {
        x := 3;
    }
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("printed output mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintGroupsDeclarations(t *testing.T) {
	// Later passes append procedures after the implementations that
	// call them; the printed text must still declare every procedure
	// before the first implementation so that it re-parses.
	got := parse(t, `
var x: int;
procedure a();
    modifies x;
implementation a() {
    x := 1;
}
procedure b();
`)
	implPos := strings.Index(got, "implementation a(")
	bPos := strings.Index(got, "procedure b(")
	if implPos < 0 || bPos < 0 {
		t.Fatalf("missing declarations in output:\n%s", got)
	}
	if bPos > implPos {
		t.Errorf("procedure b printed after implementation a:\n%s", got)
	}
}

func TestPrintContracts(t *testing.T) {
	got := parse(t, `
var x: int;
procedure p(a: int) returns (r: int);
    requires a > 0;
    free requires x == 0;
    modifies x;
    free ensures r == a;
`)
	for _, want := range []string{
		"procedure p(a: int) returns (r: int);",
		"    requires (a > 0);",
		"    free requires (x == 0);",
		"    modifies x;",
		"    free ensures (r == a);",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks %q:\n%s", want, got)
		}
	}
}

func TestPrintCallAttributes(t *testing.T) {
	src := `
var x: int;
procedure q(a: int) returns (r: int);
procedure p();
    modifies x;
implementation p() {
    call {:check_id 1} x := q(x);
    call {:fence} q(x);
}
`
	got := parse(t, src)
	for _, want := range []string{
		"    call {:check_id 1} x := q(x);",
		"    call {:fence} q(x);",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks %q:\n%s", want, got)
		}
	}
	// The attributed calls must survive a full round trip.
	if again := parse(t, got); again != got {
		t.Errorf("reprint differs (-first +second):\n%s", cmp.Diff(got, again))
	}
}

func TestPrintLoopInvariants(t *testing.T) {
	got := parse(t, `
procedure p();
implementation p() {
    var i: int;
    i := 0;
    while (i < 4)
        invariant i >= 0;
    {
        i := i + 1;
    }
}
`)
	for _, want := range []string{
		"    while ((i < 4))",
		"        invariant (i >= 0);",
		"        i := (i + 1);",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks %q:\n%s", want, got)
		}
	}
}
