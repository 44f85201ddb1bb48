package vcgen

import (
	"strings"
	"testing"
)

func TestUniformityLoad(t *testing.T) {
	src := `
# facts emitted by an external analysis
uniform main tid
uniform helper i

half _WATCHDOG
halfproc log_touch
nonsense directive ignored
`
	u := NewUniformityInfo()
	if err := u.Load(strings.NewReader(src)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !u.IsUniform("main", "tid") || !u.IsUniform("helper", "i") {
		t.Error("uniform facts not recorded")
	}
	if u.IsUniform("main", "i") {
		t.Error("uniformity leaked across procedures")
	}
	if !u.IsHalfDualised("_WATCHDOG") {
		t.Error("half fact not recorded")
	}
	if !u.IsHalfDualisedProc("log_touch") {
		t.Error("halfproc fact not recorded")
	}
	if u.IsHalfDualisedProc("main") {
		t.Error("unrelated procedure reported half-dualised")
	}
}

func TestHalfThreadDefaults(t *testing.T) {
	u := NewUniformityInfo()
	u.MarkHalfDualisedProc("log_it")
	u.MarkHalfDualisedProcThread("check_it", 2)
	if got := u.HalfThread("log_it"); got != 1 {
		t.Errorf("HalfThread(log_it) = %d, want 1", got)
	}
	if got := u.HalfThread("check_it"); got != 2 {
		t.Errorf("HalfThread(check_it) = %d, want 2", got)
	}
	if got := u.HalfThread("unknown"); got != 1 {
		t.Errorf("HalfThread(unknown) = %d, want 1", got)
	}
}
