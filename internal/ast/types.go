package ast

import "fmt"

// Type represents all GVL type nodes. The front end resolves every
// expression to a type once; passes never re-derive types.
type Type interface {
	typeNode()
	String() string
	// Equals reports structural type equality.
	Equals(Type) bool
}

// BasicKind enumerates the scalar types.
type BasicKind int

const (
	BasicBool BasicKind = iota
	BasicInt
	BasicBv32
	BasicBv64
)

func (k BasicKind) String() string {
	switch k {
	case BasicBool:
		return "bool"
	case BasicInt:
		return "int"
	case BasicBv32:
		return "bv32"
	case BasicBv64:
		return "bv64"
	default:
		return fmt.Sprintf("basic(%d)", int(k))
	}
}

// BasicType is a scalar type.
type BasicType struct {
	Kind BasicKind
}

func (t *BasicType) typeNode()      {}
func (t *BasicType) String() string { return t.Kind.String() }

func (t *BasicType) Equals(other Type) bool {
	o, ok := other.(*BasicType)
	return ok && o.Kind == t.Kind
}

// Shared singleton scalar types; BasicType carries no per-node state.
var (
	TypeBool = &BasicType{Kind: BasicBool}
	TypeInt  = &BasicType{Kind: BasicInt}
	TypeBv32 = &BasicType{Kind: BasicBv32}
	TypeBv64 = &BasicType{Kind: BasicBv64}
)

// MapType is a single-index map; multi-dimensional arrays are curried
// nests of MapType, one level per dimension.
type MapType struct {
	Index  Type
	Result Type
}

func (t *MapType) typeNode() {}

func (t *MapType) String() string {
	return fmt.Sprintf("[%s]%s", t.Index.String(), t.Result.String())
}

func (t *MapType) Equals(other Type) bool {
	o, ok := other.(*MapType)
	return ok && o.Index.Equals(t.Index) && o.Result.Equals(t.Result)
}

// MapDimensions returns how many nested map levels wrap t, and the
// element type underneath. A scalar has zero dimensions.
func MapDimensions(t Type) (int, Type) {
	dims := 0
	for {
		mt, ok := t.(*MapType)
		if !ok {
			return dims, t
		}
		dims++
		t = mt.Result
	}
}

// IsIndexType reports whether t may appear as a map index in race
// instrumentation: the offset trackers require int or bv32 indices.
func IsIndexType(t Type) bool {
	bt, ok := t.(*BasicType)
	return ok && (bt.Kind == BasicInt || bt.Kind == BasicBv32)
}
