package libdiff

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/saulx/selva/go-selva/ir"
)

// flat diffs and applies without recursing, enough for one level.
func flat(from, to *ir.Value) Patch {
	if ir.Equal(from, to) {
		return nil
	}
	return MakeReplace(to)
}

func flatApply(doc *ir.Value, p Patch, path string) (*ir.Value, error) {
	switch x := p.(type) {
	case *Replace:
		return x.Value, nil
	case nil, NoChange:
		return doc, nil
	}
	return nil, ShapeErrorf(path, "unexpected %T", p)
}

func ints(xs ...int64) *ir.Value {
	vs := make([]*ir.Value, len(xs))
	for i, x := range xs {
		vs[i] = ir.FromInt(x)
	}
	return ir.FromSlice(vs)
}

func TestDiffArrayByIndex(t *testing.T) {
	tests := []struct {
		name     string
		from, to *ir.Value
		want     Patch
	}{
		{"same", ints(1, 2), ints(1, 2), nil},
		{"grow", ints(1), ints(1, 2, 3), &ArrayPatch{Len: 3, Append: []*ir.Value{ir.FromInt(2), ir.FromInt(3)}}},
		{"shrink", ints(1, 2, 3), ints(1), &ArrayPatch{Len: 1}},
		{"change", ints(1, 2), ints(1, 5), &ArrayPatch{Len: 2, Elements: []ElementPatch{{Index: 1, Patch: MakeReplace(ir.FromInt(5))}}}},
		{"empty", ints(), ints(), nil},
	}
	for _, tc := range tests {
		got := DiffArrayByIndex(tc.from, tc.to, flat)
		if d := cmp.Diff(tc.want, got, cmp.Comparer(ir.Equal)); d != "" {
			t.Errorf("%s (-want +got):\n%s", tc.name, d)
		}
	}
}

func TestPatchArrayByIndexShape(t *testing.T) {
	tests := []struct {
		name string
		doc  *ir.Value
		p    *ArrayPatch
	}{
		{"keeps too many", ints(1), &ArrayPatch{Len: 2}},
		{"append to trimmed", ints(1, 2, 3), &ArrayPatch{Len: 2, Append: []*ir.Value{ir.FromInt(1)}}},
		{"append beyond length", ints(1), &ArrayPatch{Len: 0, Append: []*ir.Value{ir.FromInt(1)}}},
		{"element beyond base", ints(1, 2), &ArrayPatch{Len: 1, Elements: []ElementPatch{{Index: 1, Patch: MakeReplace(ir.Null())}}}},
		{"out of order", ints(1, 2), &ArrayPatch{Len: 2, Elements: []ElementPatch{
			{Index: 1, Patch: MakeReplace(ir.Null())},
			{Index: 0, Patch: MakeReplace(ir.Null())},
		}}},
	}
	for _, tc := range tests {
		_, err := PatchArrayByIndex(tc.doc, tc.p, "$", flatApply)
		var se *ShapeError
		if !errors.As(err, &se) || !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("%s: expected a shape error, got %v", tc.name, err)
		}
	}
	if _, err := PatchArrayByIndex(ir.FromString("x"), &ArrayPatch{}, "$", flatApply); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected a shape error for a string, got %v", err)
	}
}

func TestPatchArrayByIndexSharing(t *testing.T) {
	doc := ints(1, 2, 3)
	res, err := PatchArrayByIndex(doc, &ArrayPatch{Len: 2}, "$", flatApply)
	if err != nil {
		t.Fatal(err)
	}
	if !ir.Equal(res, ints(1, 2)) || len(doc.Values) != 3 {
		t.Errorf("got %s from %s", res.MustJSON(), doc.MustJSON())
	}
	if res.Values[0] != doc.Values[0] {
		t.Error("untouched element was copied")
	}
	same, err := PatchArrayByIndex(doc, &ArrayPatch{Len: 3}, "$", flatApply)
	if err != nil || same != doc {
		t.Errorf("no-op patch returned %v, %v", same, err)
	}
}

func TestPatchObjectSet(t *testing.T) {
	doc := ir.FromMap(map[string]*ir.Value{"a": ir.FromInt(1)})
	p := &ObjectPatch{Fields: map[string]*FieldOp{
		"a": SetOp(ir.FromInt(2)),
		"b": SetOp(ir.FromInt(3)),
	}}
	res, err := PatchObject(doc, p, "$", flatApply)
	if err != nil {
		t.Fatal(err)
	}
	want := ir.FromMap(map[string]*ir.Value{"a": ir.FromInt(2), "b": ir.FromInt(3)})
	if !ir.Equal(res, want) {
		t.Errorf("got %s", res.MustJSON())
	}
	if doc.Fields["a"].Number != 1 || len(doc.Fields) != 1 {
		t.Errorf("source changed to %s", doc.MustJSON())
	}
}

func TestTrimAndBase(t *testing.T) {
	p := &ArrayPatch{Len: 4, Append: []*ir.Value{ir.Null()}}
	if b := p.Base(); b != 3 {
		t.Errorf("Base() = %d", b)
	}
	if n := (&ArrayPatch{Len: 2}).Trim(5); n != 3 {
		t.Errorf("Trim(5) = %d", n)
	}
	if n := p.Trim(3); n != 0 {
		t.Errorf("Trim(3) = %d", n)
	}
}

func TestUnchanged(t *testing.T) {
	tests := []struct {
		src  *ir.Value
		p    Patch
		want bool
	}{
		{ir.FromInt(1), NoChange{}, true},
		{ir.FromInt(1), nil, true},
		{ir.FromInt(1), MakeReplace(ir.FromInt(1)), false},
		{ir.FromMap(nil), &ObjectPatch{}, true},
		{ints(1, 2), &ArrayPatch{Len: 2}, true},
		{ints(1, 2), &ArrayPatch{Len: 1}, false},
		{ints(1), &ArrayPatch{Len: 2, Append: []*ir.Value{ir.Null()}}, false},
	}
	for i, tc := range tests {
		if got := Unchanged(tc.src, tc.p); got != tc.want {
			t.Errorf("%d: Unchanged() = %v, want %v", i, got, tc.want)
		}
	}
}

func TestOpString(t *testing.T) {
	for op, want := range map[Op]string{Insert: "insert", Remove: "remove", Nested: "nested", Set: "set", Op(9): "<unknown op>"} {
		if got := op.String(); got != want {
			t.Errorf("%d: got %q, want %q", int(op), got, want)
		}
	}
}
