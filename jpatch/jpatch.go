package jpatch

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/saulx/selva/go-selva/debug"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
)

// Operation is a single RFC 6902 operation.
type Operation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// FromPatch returns the operations which turn src into the result of
// applying p to src.  It fails with a shape error where applying p to src
// would.
func FromPatch(src *ir.Value, p libdiff.Patch) ([]Operation, error) {
	var ops []Operation
	if err := fromPatch(src, p, "", "$", &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// Pointer escapes the given reference tokens into a JSON pointer.
func Pointer(tokens ...string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(escape(t))
	}
	return b.String()
}

var escaper = strings.NewReplacer("~", "~0", "/", "~1")

func escape(t string) string {
	return escaper.Replace(t)
}

func fromPatch(src *ir.Value, p libdiff.Patch, ptr, path string, ops *[]Operation) error {
	switch x := p.(type) {
	case nil, libdiff.NoChange:
		return nil
	case *libdiff.Replace:
		if x.Value == nil {
			return libdiff.ShapeErrorf(path, "replace without a value")
		}
		return add(ops, "replace", ptr, x.Value)
	case *libdiff.ObjectPatch:
		return fromObject(src, x, ptr, path, ops)
	case *libdiff.ArrayPatch:
		return fromArray(src, x, ptr, path, ops)
	}
	return fmt.Errorf("unknown patch type %T", p)
}

func fromObject(src *ir.Value, p *libdiff.ObjectPatch, ptr, path string, ops *[]Operation) error {
	if src.Type != ir.ObjectType {
		return libdiff.ShapeErrorf(path, "object patch applied to %s", src.Type)
	}
	for _, k := range slices.Sorted(maps.Keys(p.Fields)) {
		op := p.Fields[k]
		fPtr := ptr + "/" + escape(k)
		fPath := ir.FieldPath(path, k)
		cur, present := src.Fields[k]
		var err error
		switch op.Op {
		case libdiff.Insert:
			if present {
				return libdiff.ShapeErrorf(fPath, "insert of existing field")
			}
			err = add(ops, "add", fPtr, op.Value)
		case libdiff.Set:
			if present {
				err = add(ops, "replace", fPtr, op.Value)
			} else {
				err = add(ops, "add", fPtr, op.Value)
			}
		case libdiff.Remove:
			if !present {
				return libdiff.ShapeErrorf(fPath, "remove of missing field")
			}
			*ops = append(*ops, Operation{Op: "remove", Path: fPtr})
		case libdiff.Nested:
			if !present {
				return libdiff.ShapeErrorf(fPath, "patch of missing field")
			}
			err = fromPatch(cur, op.Patch, fPtr, fPath, ops)
		default:
			return fmt.Errorf("unknown field op %s at %s", op.Op, fPath)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// element patches come first, in place; trimmed elements are removed from
// the end so earlier indices stay valid; appended values go last.
func fromArray(src *ir.Value, p *libdiff.ArrayPatch, ptr, path string, ops *[]Operation) error {
	if src.Type != ir.ArrayType {
		return libdiff.ShapeErrorf(path, "array patch applied to %s", src.Type)
	}
	n := len(src.Values)
	base := p.Base()
	switch {
	case base < 0:
		return libdiff.ShapeErrorf(path, "%d appended elements exceed result length %d", len(p.Append), p.Len)
	case base > n:
		return libdiff.ShapeErrorf(path, "patch keeps %d elements of a %d element array", base, n)
	case len(p.Append) != 0 && base != n:
		return libdiff.ShapeErrorf(path, "append expects %d elements, array has %d", base, n)
	}
	last := -1
	for _, ep := range p.Elements {
		ePath := ir.IndexPath(path, ep.Index)
		if ep.Index <= last {
			return libdiff.ShapeErrorf(ePath, "element patches out of order")
		}
		if ep.Index >= base {
			return libdiff.ShapeErrorf(ePath, "element patch beyond length %d", base)
		}
		if err := fromPatch(src.Values[ep.Index], ep.Patch, ptr+"/"+strconv.Itoa(ep.Index), ePath, ops); err != nil {
			return err
		}
		last = ep.Index
	}
	for i := n - 1; i >= base; i-- {
		*ops = append(*ops, Operation{Op: "remove", Path: ptr + "/" + strconv.Itoa(i)})
	}
	for _, v := range p.Append {
		if err := add(ops, "add", ptr+"/-", v); err != nil {
			return err
		}
	}
	return nil
}

func add(ops *[]Operation, op, ptr string, v *ir.Value) error {
	if v == nil {
		return fmt.Errorf("%s at %q without a value", op, ptr)
	}
	d, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	*ops = append(*ops, Operation{Op: op, Path: ptr, Value: d})
	return nil
}

// Marshal returns the JSON text of the operations turning src into the
// result of applying p.
func Marshal(src *ir.Value, p libdiff.Patch) ([]byte, error) {
	ops, err := FromPatch(src, p)
	if err != nil {
		return nil, err
	}
	if ops == nil {
		ops = []Operation{}
	}
	return json.Marshal(ops)
}

// Apply applies p to the JSON document doc and returns the resulting JSON
// text.  A patch replacing the whole document yields the replacement
// directly; everything else is carried out as a JSON Patch.
func Apply(doc []byte, p libdiff.Patch) ([]byte, error) {
	switch x := p.(type) {
	case nil, libdiff.NoChange:
		return doc, nil
	case *libdiff.Replace:
		if x.Value == nil {
			return nil, libdiff.ShapeErrorf("$", "replace without a value")
		}
		return x.Value.MarshalJSON()
	}
	src, err := ir.ParseJSON(doc)
	if err != nil {
		return nil, err
	}
	d, err := Marshal(src, p)
	if err != nil {
		return nil, err
	}
	if debug.Apply() {
		debug.Logf("jsonpatch %s\n", d)
	}
	ops, err := jsonpatch.DecodePatch(d)
	if err != nil {
		return nil, err
	}
	return ops.Apply(doc)
}
