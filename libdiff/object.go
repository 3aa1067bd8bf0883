package libdiff

import (
	"maps"
	"slices"

	"github.com/saulx/selva/go-selva/ir"
)

// DiffObject compares two objects field by field.
//
//   - a field of to missing from from is inserted
//   - a field of from missing from to is removed
//   - a field in both is diffed with df and kept only if it changed
//
// If nothing changed DiffObject returns nil.
func DiffObject(from, to *ir.Value, df DiffFunc) Patch {
	var res map[string]*FieldOp
	put := func(k string, op *FieldOp) {
		if res == nil {
			res = make(map[string]*FieldOp)
		}
		res[k] = op
	}
	for k, tv := range to.Fields {
		fv, ok := from.Fields[k]
		if !ok {
			put(k, InsertOp(tv))
			continue
		}
		if p := df(fv, tv); p != nil {
			put(k, NestedOp(p))
		}
	}
	for k := range from.Fields {
		if _, ok := to.Fields[k]; !ok {
			put(k, RemoveOp())
		}
	}
	if len(res) == 0 {
		return nil
	}
	return &ObjectPatch{Fields: res}
}

// PatchObject applies p to the object doc.  The result is a new object
// sharing every field p does not touch with doc; doc itself is left as
// it is.  Any operation which does not fit doc fails the whole patch.
func PatchObject(doc *ir.Value, p *ObjectPatch, path string, af ApplyFunc) (*ir.Value, error) {
	if doc.Type != ir.ObjectType {
		return nil, ShapeErrorf(path, "object patch applied to %s", doc.Type)
	}
	if len(p.Fields) == 0 {
		return doc, nil
	}
	fields := make(map[string]*ir.Value, len(doc.Fields)+len(p.Fields))
	maps.Copy(fields, doc.Fields)

	// sorted so that the first failure reported does not depend on map order
	for _, k := range slices.Sorted(maps.Keys(p.Fields)) {
		op := p.Fields[k]
		fPath := ir.FieldPath(path, k)
		cur, present := doc.Fields[k]
		switch op.Op {
		case Insert:
			if present {
				return nil, ShapeErrorf(fPath, "insert of existing field")
			}
			if op.Value == nil {
				return nil, ShapeErrorf(fPath, "insert without a value")
			}
			fields[k] = op.Value
		case Set:
			if op.Value == nil {
				return nil, ShapeErrorf(fPath, "set without a value")
			}
			fields[k] = op.Value
		case Remove:
			if !present {
				return nil, ShapeErrorf(fPath, "remove of missing field")
			}
			delete(fields, k)
		case Nested:
			if !present {
				return nil, ShapeErrorf(fPath, "nested patch of missing field")
			}
			v, err := af(cur, op.Patch, fPath)
			if err != nil {
				return nil, err
			}
			fields[k] = v
		default:
			return nil, ShapeErrorf(fPath, "unknown field op %d", op.Op)
		}
	}
	return &ir.Value{Type: ir.ObjectType, Fields: fields}, nil
}
