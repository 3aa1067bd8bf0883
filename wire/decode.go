package wire

import (
	"encoding/json"
	"math"

	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
)

// Decode is the inverse of Encode.  It rejects anything Encode could not
// have produced rather than guessing: unknown opcodes, wrong arities,
// payloads of the wrong type, removals outside objects, copies which
// move elements and segments out of order all fail with an *Error.
//
// Insert and replace share opcode 0, so a decoded object field [0, v]
// becomes a [libdiff.Set].
func Decode(x any) (libdiff.Patch, error) {
	if x == nil {
		return libdiff.NoChange{}, nil
	}
	return decodePatch(x, "$")
}

func decodePatch(x any, path string) (libdiff.Patch, error) {
	t, op, err := tuple(x, path)
	if err != nil {
		return nil, err
	}
	switch op {
	case OpValue:
		if len(t) != 2 {
			return nil, errorf(path, "value tuple has %d elements, want 2", len(t))
		}
		v, err := decodeValue(t[1], path)
		if err != nil {
			return nil, err
		}
		return &libdiff.Replace{Value: v}, nil
	case OpRemove:
		return nil, errorf(path, "remove outside of an object")
	case OpObject:
		if len(t) != 2 {
			return nil, errorf(path, "object tuple has %d elements, want 2", len(t))
		}
		m, ok := t[1].(map[string]any)
		if !ok {
			return nil, errorf(path, "object patch payload is %T", t[1])
		}
		return decodeObject(m, path)
	case OpArray:
		if len(t) != 2 {
			return nil, errorf(path, "array tuple has %d elements, want 2", len(t))
		}
		a, ok := t[1].([]any)
		if !ok {
			return nil, errorf(path, "array patch payload is %T", t[1])
		}
		return decodeArray(a, path)
	}
	return nil, errorf(path, "unknown opcode %d", op)
}

func decodeObject(m map[string]any, path string) (*libdiff.ObjectPatch, error) {
	res := &libdiff.ObjectPatch{}
	if len(m) != 0 {
		res.Fields = make(map[string]*libdiff.FieldOp, len(m))
	}
	for k, ft := range m {
		fPath := ir.FieldPath(path, k)
		t, op, err := tuple(ft, fPath)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpValue:
			if len(t) != 2 {
				return nil, errorf(fPath, "value tuple has %d elements, want 2", len(t))
			}
			v, err := decodeValue(t[1], fPath)
			if err != nil {
				return nil, err
			}
			res.Fields[k] = libdiff.SetOp(v)
		case OpRemove:
			if len(t) != 1 {
				return nil, errorf(fPath, "remove tuple has %d elements, want 1", len(t))
			}
			res.Fields[k] = libdiff.RemoveOp()
		default:
			p, err := decodePatch(ft, fPath)
			if err != nil {
				return nil, err
			}
			res.Fields[k] = libdiff.NestedOp(p)
		}
	}
	return res, nil
}

func decodeArray(a []any, path string) (*libdiff.ArrayPatch, error) {
	if len(a) == 0 {
		return nil, errorf(path, "array patch without element count")
	}
	n, err := decodeInt(a[0], path)
	if err != nil {
		return nil, err
	}
	res := &libdiff.ArrayPatch{Len: n}
	pos := 0
	appended := false
	for si, s := range a[1:] {
		seg, op, err := tuple(s, path)
		if err != nil {
			return nil, err
		}
		if appended {
			return nil, errorf(path, "segment %d follows the append segment", si)
		}
		switch op {
		case SegAppend:
			if len(seg) < 2 {
				return nil, errorf(path, "empty append segment %d", si)
			}
			for j, x := range seg[1:] {
				v, err := decodeValue(x, ir.IndexPath(path, pos+j))
				if err != nil {
					return nil, err
				}
				res.Append = append(res.Append, v)
			}
			appended = true
		case SegCopy:
			if len(seg) != 3 {
				return nil, errorf(path, "copy segment %d has %d elements, want 3", si, len(seg))
			}
			from, err := decodeInt(seg[1], path)
			if err != nil {
				return nil, err
			}
			count, err := decodeInt(seg[2], path)
			if err != nil {
				return nil, err
			}
			if from != pos {
				return nil, errorf(path, "copy segment %d moves elements from %d to %d", si, from, pos)
			}
			if count == 0 {
				return nil, errorf(path, "empty copy segment %d", si)
			}
			pos += count
		case SegPatch:
			if len(seg) < 3 {
				return nil, errorf(path, "patch segment %d has no patches", si)
			}
			start, err := decodeInt(seg[1], path)
			if err != nil {
				return nil, err
			}
			if start < pos {
				return nil, errorf(path, "patch segment %d starts at %d, before %d", si, start, pos)
			}
			for j, x := range seg[2:] {
				ePath := ir.IndexPath(path, start+j)
				if x == nil {
					return nil, errorf(ePath, "null element patch")
				}
				p, err := decodePatch(x, ePath)
				if err != nil {
					return nil, err
				}
				res.Elements = append(res.Elements, libdiff.ElementPatch{Index: start + j, Patch: p})
			}
			pos = start + len(seg) - 2
		default:
			return nil, errorf(path, "unknown segment opcode %d", op)
		}
	}
	base := res.Base()
	if base < 0 {
		return nil, errorf(path, "%d appended elements exceed element count %d", len(res.Append), n)
	}
	if pos > base {
		return nil, errorf(path, "segments cover %d elements, element count allows %d", pos, base)
	}
	return res, nil
}

func tuple(x any, path string) ([]any, int, error) {
	t, ok := x.([]any)
	if !ok {
		return nil, 0, errorf(path, "expected a tuple, got %T", x)
	}
	if len(t) == 0 {
		return nil, 0, errorf(path, "empty tuple")
	}
	op, err := decodeInt(t[0], path)
	if err != nil {
		return nil, 0, err
	}
	return t, op, nil
}

func decodeValue(x any, path string) (*ir.Value, error) {
	v, err := ir.FromAny(x)
	if err != nil {
		return nil, errorf(path, "bad literal: %v", err)
	}
	return v, nil
}

// decodeInt accepts the integer representations JSON decoders and Encode
// produce: non-negative, integral and in range.
func decodeInt(x any, path string) (int, error) {
	var f float64
	switch v := x.(type) {
	case int:
		if v < 0 || v > math.MaxInt32 {
			return 0, errorf(path, "integer %d out of range", v)
		}
		return v, nil
	case int64:
		if v < 0 || v > math.MaxInt32 {
			return 0, errorf(path, "integer %d out of range", v)
		}
		return int(v), nil
	case uint64:
		if v > math.MaxInt32 {
			return 0, errorf(path, "integer %d out of range", v)
		}
		return int(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, errorf(path, "expected an integer, got %q", v)
		}
		return decodeInt(i, path)
	case float64:
		f = v
	default:
		return 0, errorf(path, "expected an integer, got %T", x)
	}
	if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, errorf(path, "expected a non-negative integer, got %v", f)
	}
	return int(f), nil
}
