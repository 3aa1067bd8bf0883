package selva

import (
	"github.com/saulx/selva/go-selva/debug"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
)

// Diff produces a succinct description of how to turn from into to.
// The result applied to from with [Apply] gives a value equal to to.
//
//   - if the types of from and to differ the result is a
//     [libdiff.Replace] of to
//
//   - numbers, strings and booleans which differ are replaced; strings
//     are never diffed character by character
//
//   - for objects, a field f of to missing from from is a
//     [libdiff.Insert], a field of from missing from to is a
//     [libdiff.Remove] and a field present in both which differs is a
//     [libdiff.Nested] patch of its values; equal fields are absent
//
//   - for arrays, the common prefix is diffed position by position and
//     the difference in length is an appended tail or a trim
//
// If from and to are equal, Diff returns the empty patch for from (see
// [libdiff.Empty]).  Diff never fails; from and to must be acyclic.
func Diff(from, to *ir.Value) libdiff.Patch {
	res := doDiff(from, to)
	if res == nil {
		return libdiff.Empty(from)
	}
	return res
}

func doDiff(from, to *ir.Value) libdiff.Patch {
	if debug.Diff() {
		debug.Logf("diff %s -> %s\n", from.Type, to.Type)
	}
	if from.Type != to.Type {
		return libdiff.MakeReplace(to)
	}
	switch from.Type {
	case ir.ObjectType:
		return libdiff.DiffObject(from, to, doDiff)
	case ir.ArrayType:
		return libdiff.DiffArrayByIndex(from, to, doDiff)
	case ir.NumberType:
		return libdiff.DiffNumber(from, to)
	case ir.StringType:
		return libdiff.DiffString(from, to)
	case ir.BoolType:
		return libdiff.DiffBool(from, to)
	case ir.NullType:
		return nil
	}
	return nil
}
