package errors

import (
	"fmt"
	"testing"
)

func TestCategoryOf(t *testing.T) {
	base := Inputf("PARSE", "bad token")
	wrapped := fmt.Errorf("reading kernel: %w", base)
	if got := CategoryOf(wrapped); got != CategoryInput {
		t.Errorf("CategoryOf(wrapped) = %s, want %s", got, CategoryInput)
	}
	if got := CategoryOf(fmt.Errorf("plain")); got != CategoryInternal {
		t.Errorf("CategoryOf(plain) = %s, want %s", got, CategoryInternal)
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		cat  Category
		want int
	}{
		{CategoryInput, ExitInputError},
		{CategoryWellFormedness, ExitWellFormedness},
		{CategoryInternal, ExitInternalError},
		{CategoryCandidate, ExitInternalError},
	}
	for _, tt := range tests {
		if got := tt.cat.ExitCode(); got != tt.want {
			t.Errorf("%s.ExitCode() = %d, want %d", tt.cat, got, tt.want)
		}
	}
}

func TestErrorFormat(t *testing.T) {
	err := Internalf("BARRIER_SHAPE", "barrier has %d formals", 3)
	want := "[INTERNAL:BARRIER_SHAPE] barrier has 3 formals"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
