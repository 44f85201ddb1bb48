// Package vcgen implements the kernel-transformation pipeline: the
// structural normalizer, the kernel well-formedness checker, race
// instrumentation, predication, thread-dualisation, barrier synthesis
// and candidate-invariant generation. The pipeline consumes a resolved
// ast.Program and mutates it into the two-thread product program whose
// assertion unreachability entails race- and divergence-freedom.
package vcgen

import (
	"fmt"
	"strings"

	"github.com/gridverify/gridverify/internal/ast"
)

// Axis identifies one of the up-to-three thread grid dimensions.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return "?"
	}
}

// Axes lists the grid axes in canonical order.
var Axes = []Axis{AxisX, AxisY, AxisZ}

// Recognised special constant names, four per axis.

// ThreadIDName returns the thread-local id constant name (_X, _Y, _Z).
func ThreadIDName(a Axis) string { return "_" + a.String() }

// TileSizeName returns the tile size constant name (_TILE_SIZE_X, ...).
func TileSizeName(a Axis) string { return "_TILE_SIZE_" + a.String() }

// NumTilesName returns the tile count constant name (_NUM_TILES_X, ...).
func NumTilesName(a Axis) string { return "_NUM_TILES_" + a.String() }

// TileIDName returns the tile (group) id constant name (_TILE_X, ...).
func TileIDName(a Axis) string { return "_TILE_" + a.String() }

// AxisConstantNames returns the four special constant names of an axis.
func AxisConstantNames(a Axis) []string {
	return []string{ThreadIDName(a), TileSizeName(a), NumTilesName(a), TileIDName(a)}
}

// IsThreadIDName reports whether name is one of _X, _Y, _Z.
func IsThreadIDName(name string) bool {
	return name == "_X" || name == "_Y" || name == "_Z"
}

// IsTileIDName reports whether name is one of _TILE_X, _TILE_Y, _TILE_Z.
func IsTileIDName(name string) bool {
	return name == "_TILE_X" || name == "_TILE_Y" || name == "_TILE_Z"
}

// IsSpecialConstantName reports whether name is one of the recognised
// grid constants of any axis.
func IsSpecialConstantName(name string) bool {
	for _, a := range Axes {
		for _, n := range AxisConstantNames(a) {
			if n == name {
				return true
			}
		}
	}
	return false
}

// Thread-copy suffixes produced by dualisation.

// ThreadSuffix returns the renaming suffix for a thread copy, "$1" or
// "$2".
func ThreadSuffix(id int) string { return fmt.Sprintf("$%d", id) }

// DualName renames an entity for the given thread copy.
func DualName(name string, id int) string { return name + ThreadSuffix(id) }

// IsDualisedName reports whether name already carries a thread suffix.
// Dualising a renamed entity again is a no-op, never a double suffix.
func IsDualisedName(name string) bool {
	return strings.HasSuffix(name, ThreadSuffix(1)) || strings.HasSuffix(name, ThreadSuffix(2))
}

// Names introduced by the predication pass.
const (
	// PredParamName is the leading boolean parameter every
	// predicated procedure gains.
	PredParamName = "_P"

	loopPredPrefix = "_LC"
	ifPredPrefix   = "_P"
	havocPrefix    = "_HAVOC_"
	tempPrefix     = "_TEMP"
)

// LoopPredName returns the loop predicate local for loop index n.
func LoopPredName(n int) string { return fmt.Sprintf("%s%d", loopPredPrefix, n) }

// IfPredName returns the if predicate local for branch index n.
func IfPredName(n int) string { return fmt.Sprintf("%s%d", ifPredPrefix, n) }

// TempName returns the pull-out temporary name for index n.
func TempName(n int) string { return fmt.Sprintf("%s%d", tempPrefix, n) }

// HavocTempName returns the per-type havoc temporary for a type.
func HavocTempName(t ast.Type) string { return havocPrefix + mangleType(t) }

// mangleType flattens a type into an identifier-safe name.
func mangleType(t ast.Type) string {
	switch typ := t.(type) {
	case *ast.BasicType:
		return typ.Kind.String()
	case *ast.MapType:
		return "map$" + mangleType(typ.Index) + "$" + mangleType(typ.Result)
	default:
		return "unknown"
	}
}

// IsPredicateOrTempName reports whether a variable name follows the
// internal predicate/temporary naming convention. The candidate
// generator never emits equality candidates for such variables.
func IsPredicateOrTempName(name string) bool {
	base := name
	if i := strings.Index(base, "$"); i >= 0 {
		base = base[:i]
	}
	if base == PredParamName || strings.HasPrefix(base, havocPrefix) || strings.HasPrefix(base, tempPrefix) {
		return true
	}
	if strings.HasPrefix(base, loopPredPrefix) && allDigits(base[len(loopPredPrefix):]) {
		return true
	}
	if strings.HasPrefix(base, ifPredPrefix) && allDigits(base[len(ifPredPrefix):]) {
		return true
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Thread-alternation function names: applying one of these to a
// sub-expression dualises it for the other thread.
const (
	OtherBool    = "__other_bool"
	OtherBv32    = "__other_bv32"
	OtherBv64    = "__other_bv64"
	OtherArrayID = "__other_arrayId"
)

// IsOtherFunction reports whether name is a thread-alternation
// function.
func IsOtherFunction(name string) bool {
	switch name {
	case OtherBool, OtherBv32, OtherBv64, OtherArrayID:
		return true
	default:
		return false
	}
}

// Race-instrumentation shadow variable names for a shared array v.

// ReadHasOccurredName returns the read flag for array name.
func ReadHasOccurredName(array string) string { return "_READ_HAS_OCCURRED_" + array }

// WriteHasOccurredName returns the write flag for array name.
func WriteHasOccurredName(array string) string { return "_WRITE_HAS_OCCURRED_" + array }

// ReadOffsetName returns the read offset tracker for one dimension of
// array name.
func ReadOffsetName(array string, a Axis) string {
	return "_READ_OFFSET_" + a.String() + "_" + array
}

// WriteOffsetName returns the write offset tracker for one dimension
// of array name.
func WriteOffsetName(array string, a Axis) string {
	return "_WRITE_OFFSET_" + a.String() + "_" + array
}

// LogReadName returns the read-logging procedure for array name.
func LogReadName(array string) string { return "_LOG_READ_" + array }

// LogWriteName returns the write-logging procedure for array name.
func LogWriteName(array string) string { return "_LOG_WRITE_" + array }

// CheckReadName returns the read-checking procedure for array name.
func CheckReadName(array string) string { return "_CHECK_READ_" + array }

// CheckWriteName returns the write-checking procedure for array name.
func CheckWriteName(array string) string { return "_CHECK_WRITE_" + array }

// OffsetParamName returns the formal carrying one access dimension in
// the logging and checking procedures.
func OffsetParamName(a Axis) string { return "_offset_" + a.String() }

// TrackingName is the nondeterministic choice local of the logging
// procedures: each access may or may not be the one recorded.
const TrackingName = "_TRACKING"

// ExistentialName returns the candidate-gating boolean for index n.
func ExistentialName(n int) string { return fmt.Sprintf("_b%d", n) }
