package vcgen

import (
	"bufio"
	"io"
	"strings"
)

// UniformityInfo records the externally supplied uniformity facts that
// exempt entities from full dualisation: per-procedure uniform
// variables (same value on both threads) and globally half-dualised
// names (entities that appear only once in the product program).
//
// Registration order is irrelevant to pass output: every pass iterates
// declaration lists, never this registry.
type UniformityInfo struct {
	uniform      map[string]map[string]bool // procedure -> variable -> uniform
	halfDualised map[string]bool
	halfProcs    map[string]int // procedure -> thread id of its single copy
}

// NewUniformityInfo creates an empty registry.
func NewUniformityInfo() *UniformityInfo {
	return &UniformityInfo{
		uniform:      map[string]map[string]bool{},
		halfDualised: map[string]bool{},
		halfProcs:    map[string]int{},
	}
}

// MarkUniform records that variable name is uniform within procedure
// proc.
func (u *UniformityInfo) MarkUniform(proc, name string) {
	vars, ok := u.uniform[proc]
	if !ok {
		vars = map[string]bool{}
		u.uniform[proc] = vars
	}
	vars[name] = true
}

// IsUniform reports whether variable name is uniform in procedure proc.
func (u *UniformityInfo) IsUniform(proc, name string) bool {
	return u.uniform[proc][name]
}

// MarkHalfDualised records that the named entity needs only a single
// copy in the product program.
func (u *UniformityInfo) MarkHalfDualised(name string) {
	u.halfDualised[name] = true
}

// IsHalfDualised reports whether the named entity is half-dualised.
func (u *UniformityInfo) IsHalfDualised(name string) bool {
	return u.halfDualised[name]
}

// MarkHalfDualisedProc records that a procedure is dualised
// asymmetrically: its statements and formals get one copy only,
// drawn from thread 1.
func (u *UniformityInfo) MarkHalfDualisedProc(name string) {
	u.halfProcs[name] = 1
}

// MarkHalfDualisedProcThread is MarkHalfDualisedProc with an explicit
// thread id for the surviving copy.
func (u *UniformityInfo) MarkHalfDualisedProcThread(name string, thread int) {
	u.halfProcs[name] = thread
}

// IsHalfDualisedProc reports whether the procedure is half-dualised.
func (u *UniformityInfo) IsHalfDualisedProc(name string) bool {
	return u.halfProcs[name] != 0
}

// HalfThread returns the thread id a half-dualised procedure draws its
// single copy from, defaulting to thread 1.
func (u *UniformityInfo) HalfThread(name string) int {
	if t := u.halfProcs[name]; t != 0 {
		return t
	}
	return 1
}

// Load reads uniformity facts, one per line:
//
//	uniform <procedure> <variable>
//	half <name>
//	halfproc <procedure>
//
// Blank lines and lines starting with '#' are ignored. Unknown
// directives are skipped; the facts are advisory inputs, not source
// code.
func (u *UniformityInfo) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch {
		case fields[0] == "uniform" && len(fields) == 3:
			u.MarkUniform(fields[1], fields[2])
		case fields[0] == "half" && len(fields) == 2:
			u.MarkHalfDualised(fields[1])
		case fields[0] == "halfproc" && len(fields) == 2:
			u.MarkHalfDualisedProc(fields[1])
		}
	}
	return scanner.Err()
}
