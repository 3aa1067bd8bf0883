// Package ir provides the value tree that selva diffs, patches and
// transports.
//
// # Value Structure
//
// A Value is a recursive tagged union selected by its Type:
//
//   - NullType: null value
//   - BoolType: boolean, in Bool
//   - NumberType: float64, in Number (never NaN or infinite)
//   - StringType: string, in String
//   - ArrayType: ordered elements, in Values
//   - ObjectType: name to value mapping, in Fields
//
// # Creating Values
//
//	obj := ir.FromMap(map[string]*ir.Value{
//	    "name": ir.FromString("value"),
//	    "tags": ir.FromSlice([]*ir.Value{ir.FromInt(1), ir.FromInt(2)}),
//	})
//	doc, err := ir.ParseJSON([]byte(`{"a": [1, 2]}`))
//
// # Sharing
//
// Values are treated as persistent data: once built they are never
// modified, and a new tree built from an old one (for example by applying
// a patch) shares every unchanged subtree with it.  Values carry no parent
// links, so a subtree may appear under any number of parents.  Callers
// must not mutate a Value after handing it to this module.
//
// Values are assumed to be finite and acyclic.
//
// # Paths
//
// Diagnostics refer to positions with kpaths: "$" is the root, "$.a" the
// field a and "$.a[2]" the third element of the array under a.
package ir
