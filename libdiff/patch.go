package libdiff

import (
	"github.com/saulx/selva/go-selva/ir"
)

// Patch describes how a source value differs from a target value.
//
// A Patch is one of NoChange, *Replace, *ObjectPatch or *ArrayPatch.
// Inside the recursion of a diff, a nil Patch means no change; only the
// top level of a diff materializes NoChange or an empty container patch.
type Patch interface {
	isPatch()
}

// NoChange leaves the source as it is.
type NoChange struct{}

// Replace substitutes Value for the source wholesale.
type Replace struct {
	Value *ir.Value
}

// ObjectPatch changes the fields of an object.  Fields absent from the
// map are unchanged.
type ObjectPatch struct {
	Fields map[string]*FieldOp
}

// Op is the kind of a FieldOp.
type Op int

const (
	// Insert adds a field which the source must not have.
	Insert Op = iota
	// Remove drops a field which the source must have.
	Remove
	// Nested patches the value of a field which the source must have.
	Nested
	// Set stores a literal whether or not the source has the field.  It
	// only arises from the wire form, where insert and replace share an
	// opcode.
	Set
)

func (o Op) String() string {
	switch o {
	case Insert:
		return "insert"
	case Remove:
		return "remove"
	case Nested:
		return "nested"
	case Set:
		return "set"
	}
	return "<unknown op>"
}

type FieldOp struct {
	Op    Op
	Value *ir.Value // Insert, Set
	Patch Patch     // Nested
}

func InsertOp(v *ir.Value) *FieldOp { return &FieldOp{Op: Insert, Value: v} }
func RemoveOp() *FieldOp            { return &FieldOp{Op: Remove} }
func NestedOp(p Patch) *FieldOp     { return &FieldOp{Op: Nested, Patch: p} }
func SetOp(v *ir.Value) *FieldOp    { return &FieldOp{Op: Set, Value: v} }

// ArrayPatch changes an array positionally.
//
// The result has Len elements: the first Len-len(Append) come from the
// source (patched where Elements says so), the rest are the literal
// values in Append.  A source longer than that base is trimmed.  Append
// is only non-empty when the array grows, so trimming and appending never
// occur together.
type ArrayPatch struct {
	Len      int
	Elements []ElementPatch // ascending by Index
	Append   []*ir.Value
}

type ElementPatch struct {
	Index int
	Patch Patch
}

// Base returns the number of leading positions taken from the source.
func (p *ArrayPatch) Base() int {
	return p.Len - len(p.Append)
}

// Trim returns how many trailing elements of a source of length srcLen
// the patch drops.
func (p *ArrayPatch) Trim(srcLen int) int {
	return max(srcLen-p.Base(), 0)
}

func (NoChange) isPatch()     {}
func (*Replace) isPatch()     {}
func (*ObjectPatch) isPatch() {}
func (*ArrayPatch) isPatch()  {}

// IsEmpty reports whether p has no operations: NoChange, nil, an object
// patch without fields or an array patch without element patches or
// appended values.  An empty array patch may still trim its source.
func IsEmpty(p Patch) bool {
	switch x := p.(type) {
	case nil, NoChange:
		return true
	case *ObjectPatch:
		return len(x.Fields) == 0
	case *ArrayPatch:
		return len(x.Elements) == 0 && len(x.Append) == 0
	}
	return false
}

// Empty returns the empty patch for v: an object patch without fields
// for objects, a same-length array patch for arrays and NoChange
// otherwise.
func Empty(v *ir.Value) Patch {
	switch v.Type {
	case ir.ObjectType:
		return &ObjectPatch{}
	case ir.ArrayType:
		return &ArrayPatch{Len: len(v.Values)}
	}
	return NoChange{}
}

// Unchanged reports whether applying p to src yields a value equal to
// src: p is empty and, for an array patch, keeps the length of src.
func Unchanged(src *ir.Value, p Patch) bool {
	if !IsEmpty(p) {
		return false
	}
	if ap, ok := p.(*ArrayPatch); ok {
		return src != nil && src.Type == ir.ArrayType && ap.Len == len(src.Values)
	}
	return true
}
