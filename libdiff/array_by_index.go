package libdiff

import (
	"slices"

	"github.com/saulx/selva/go-selva/ir"
)

// DiffArrayByIndex aligns two arrays on their common prefix.
//
//  1. every index below min(len(from), len(to)) is diffed with df and
//     kept as an element patch if it changed
//  2. if to is longer, its tail is appended literally
//  3. if to is shorter, the result length drops the tail of from
//
// Elements are never matched across positions, so an insertion near the
// front of an array shows up as a run of element patches.  If nothing
// changed DiffArrayByIndex returns nil.
func DiffArrayByIndex(from, to *ir.Value, df DiffFunc) Patch {
	common := min(len(from.Values), len(to.Values))
	var elems []ElementPatch
	for i := range common {
		if p := df(from.Values[i], to.Values[i]); p != nil {
			elems = append(elems, ElementPatch{Index: i, Patch: p})
		}
	}
	if len(elems) == 0 && len(from.Values) == len(to.Values) {
		return nil
	}
	res := &ArrayPatch{
		Len:      len(to.Values),
		Elements: elems,
	}
	if len(to.Values) > common {
		res.Append = slices.Clone(to.Values[common:])
	}
	return res
}

// PatchArrayByIndex applies p to the array doc, returning a new array
// which shares every untouched element with doc.
func PatchArrayByIndex(doc *ir.Value, p *ArrayPatch, path string, af ApplyFunc) (*ir.Value, error) {
	if doc.Type != ir.ArrayType {
		return nil, ShapeErrorf(path, "array patch applied to %s", doc.Type)
	}
	n := len(doc.Values)
	base := p.Base()
	switch {
	case base < 0:
		return nil, ShapeErrorf(path, "%d appended elements exceed result length %d", len(p.Append), p.Len)
	case base > n:
		return nil, ShapeErrorf(path, "patch keeps %d elements of a %d element array", base, n)
	case len(p.Append) != 0 && base != n:
		return nil, ShapeErrorf(path, "append expects %d elements, array has %d", base, n)
	}
	if base == n && len(p.Elements) == 0 && len(p.Append) == 0 {
		return doc, nil
	}
	res := make([]*ir.Value, base, p.Len)
	copy(res, doc.Values[:base])
	last := -1
	for _, ep := range p.Elements {
		if ep.Index <= last {
			return nil, ShapeErrorf(ir.IndexPath(path, ep.Index), "element patches out of order")
		}
		if ep.Index >= base {
			return nil, ShapeErrorf(ir.IndexPath(path, ep.Index), "element patch beyond length %d", base)
		}
		v, err := af(doc.Values[ep.Index], ep.Patch, ir.IndexPath(path, ep.Index))
		if err != nil {
			return nil, err
		}
		res[ep.Index] = v
		last = ep.Index
	}
	res = append(res, p.Append...)
	return &ir.Value{Type: ir.ArrayType, Values: res}, nil
}
