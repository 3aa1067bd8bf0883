package ir

import (
	"maps"
	"math"
	"slices"
)

// Value is a node of a document tree.  Which fields are meaningful depends
// on Type.
//
// Values are immutable once built: nothing in this module writes to a
// Value reachable from a caller, so subtrees may be shared freely between
// trees.  There are no parent links for the same reason.
type Value struct {
	Type Type

	Bool   bool
	Number float64
	String string

	Values []*Value          // ArrayType
	Fields map[string]*Value // ObjectType
}

func Null() *Value {
	return &Value{Type: NullType}
}

func FromBool(v bool) *Value {
	return &Value{
		Type: BoolType,
		Bool: v,
	}
}

// FromNumber panics on NaN and infinities, which have no representation.
func FromNumber(f float64) *Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic("ir: non-finite number")
	}
	return &Value{
		Type:   NumberType,
		Number: f,
	}
}

func FromInt(v int64) *Value {
	return FromNumber(float64(v))
}

func FromString(v string) *Value {
	return &Value{
		Type:   StringType,
		String: v,
	}
}

// FromSlice builds an array.  The slice is copied, the elements are not.
func FromSlice(vs []*Value) *Value {
	return &Value{
		Type:   ArrayType,
		Values: slices.Clone(vs),
	}
}

// FromMap builds an object.  The map is copied, the values are not.
func FromMap(m map[string]*Value) *Value {
	fields := make(map[string]*Value, len(m))
	maps.Copy(fields, m)
	return &Value{
		Type:   ObjectType,
		Fields: fields,
	}
}

// Keys returns the object's field names in sorted order.
func (v *Value) Keys() []string {
	return slices.Sorted(maps.Keys(v.Fields))
}

func (v *Value) Clone() *Value {
	res := &Value{
		Type:   v.Type,
		Bool:   v.Bool,
		Number: v.Number,
		String: v.String,
	}
	switch v.Type {
	case ArrayType:
		res.Values = make([]*Value, len(v.Values))
		for i, e := range v.Values {
			res.Values[i] = e.Clone()
		}
	case ObjectType:
		res.Fields = make(map[string]*Value, len(v.Fields))
		for k, f := range v.Fields {
			res.Fields[k] = f.Clone()
		}
	}
	return res
}

// Size returns the number of nodes in the tree rooted at v.
func (v *Value) Size() int {
	n := 1
	switch v.Type {
	case ArrayType:
		for _, e := range v.Values {
			n += e.Size()
		}
	case ObjectType:
		for _, f := range v.Fields {
			n += f.Size()
		}
	}
	return n
}

// Walk calls fn for v and each of its descendants in pre-order, with
// object fields visited in key order.  If fn returns false the children
// of that node are skipped.
func (v *Value) Walk(fn func(path string, v *Value) bool) {
	v.walk("$", fn)
}

func (v *Value) walk(path string, fn func(string, *Value) bool) {
	if !fn(path, v) {
		return
	}
	switch v.Type {
	case ArrayType:
		for i, e := range v.Values {
			e.walk(IndexPath(path, i), fn)
		}
	case ObjectType:
		for _, k := range v.Keys() {
			v.Fields[k].walk(FieldPath(path, k), fn)
		}
	}
}
