package wire

import (
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
)

// Patch opcodes, the first element of every patch tuple.
const (
	OpValue  = 0 // [0, value]: insert or replace with a literal
	OpRemove = 1 // [1]: remove an object field
	OpObject = 2 // [2, {field: tuple, ...}]
	OpArray  = 3 // [3, [elementCount, segment, ...]]
)

// Array segment opcodes, the first element of every segment.
const (
	SegAppend = 0 // [0, v1, v2, ...]: append literals, last segment only
	SegCopy   = 1 // [1, index, count]: keep count source elements
	SegPatch  = 2 // [2, start, p1, p2, ...]: patch a run of elements
)

// Encode returns the tuple form of p: nested []any, map[string]any and
// plain JSON data.  NoChange encodes as nil.
func Encode(p libdiff.Patch) any {
	switch x := p.(type) {
	case *libdiff.Replace:
		return []any{OpValue, literal(x.Value)}
	case *libdiff.ObjectPatch:
		return []any{OpObject, encodeFields(x)}
	case *libdiff.ArrayPatch:
		return []any{OpArray, encodeArray(x)}
	}
	return nil
}

func literal(v *ir.Value) any {
	if v == nil {
		return nil
	}
	return ir.ToAny(v)
}

func encodeFields(p *libdiff.ObjectPatch) map[string]any {
	res := make(map[string]any, len(p.Fields))
	for k, op := range p.Fields {
		switch op.Op {
		case libdiff.Insert, libdiff.Set:
			res[k] = []any{OpValue, literal(op.Value)}
		case libdiff.Remove:
			res[k] = []any{OpRemove}
		case libdiff.Nested:
			if t := Encode(op.Patch); t != nil {
				res[k] = t
			}
		}
	}
	return res
}

// encodeArray lays the patch out in output order: a copy segment for
// each unchanged run ahead of a patched run or the appended tail, a patch
// segment for each run of consecutive element patches, then the append.
// Unchanged elements after the last segment are kept implicitly.
func encodeArray(p *libdiff.ArrayPatch) []any {
	res := []any{p.Len}
	els := make([]libdiff.ElementPatch, 0, len(p.Elements))
	for _, ep := range p.Elements {
		if !isNoChange(ep.Patch) {
			els = append(els, ep)
		}
	}
	pos := 0
	for i := 0; i < len(els); {
		start := els[i].Index
		if start > pos {
			res = append(res, []any{SegCopy, pos, start - pos})
		}
		seg := []any{SegPatch, start}
		j := i
		for j < len(els) && els[j].Index == start+(j-i) {
			seg = append(seg, Encode(els[j].Patch))
			j++
		}
		res = append(res, seg)
		pos = start + (j - i)
		i = j
	}
	if len(p.Append) != 0 {
		if base := p.Base(); base > pos {
			res = append(res, []any{SegCopy, pos, base - pos})
		}
		seg := make([]any, 1, len(p.Append)+1)
		seg[0] = SegAppend
		for _, v := range p.Append {
			seg = append(seg, literal(v))
		}
		res = append(res, seg)
	}
	return res
}

func isNoChange(p libdiff.Patch) bool {
	switch p.(type) {
	case nil, libdiff.NoChange:
		return true
	}
	return false
}
