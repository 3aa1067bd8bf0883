package jpatch

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	selva "github.com/saulx/selva/go-selva"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
)

func parse(t *testing.T, s string) *ir.Value {
	t.Helper()
	v, err := ir.ParseJSON([]byte(s))
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestFromPatch(t *testing.T) {
	tests := []struct {
		a, b string
		ops  []Operation
	}{
		{
			a: `{"a": "hello", "b": "x"}`,
			b: `{"a": "HELLO", "c": "new"}`,
			ops: []Operation{
				{Op: "replace", Path: "/a", Value: []byte(`"HELLO"`)},
				{Op: "remove", Path: "/b"},
				{Op: "add", Path: "/c", Value: []byte(`"new"`)},
			},
		},
		{
			a: `[1, 2, 3, 4]`,
			b: `[1, 9]`,
			ops: []Operation{
				{Op: "replace", Path: "/1", Value: []byte(`9`)},
				{Op: "remove", Path: "/3"},
				{Op: "remove", Path: "/2"},
			},
		},
		{
			a: `{"l": [{"v": 1}]}`,
			b: `{"l": [{"v": 2}, true]}`,
			ops: []Operation{
				{Op: "replace", Path: "/l/0/v", Value: []byte(`2`)},
				{Op: "add", Path: "/l/-", Value: []byte(`true`)},
			},
		},
		{
			a: `{"a/b": 1, "c~d": 2}`,
			b: `{"a/b": 3}`,
			ops: []Operation{
				{Op: "replace", Path: "/a~1b", Value: []byte(`3`)},
				{Op: "remove", Path: "/c~0d"},
			},
		},
		{
			a: `{"x": 1}`,
			b: `{"x": 1}`,
		},
	}
	for _, tc := range tests {
		a, b := parse(t, tc.a), parse(t, tc.b)
		ops, err := FromPatch(a, selva.Diff(a, b))
		if err != nil {
			t.Errorf("%s -> %s: %v", tc.a, tc.b, err)
			continue
		}
		if d := cmp.Diff(tc.ops, ops); d != "" {
			t.Errorf("%s -> %s (-want +got):\n%s", tc.a, tc.b, d)
		}
	}
}

func TestFromPatchSet(t *testing.T) {
	p := &libdiff.ObjectPatch{Fields: map[string]*libdiff.FieldOp{
		"a": libdiff.SetOp(ir.FromInt(1)),
		"b": libdiff.SetOp(ir.FromInt(2)),
	}}
	ops, err := FromPatch(parse(t, `{"a": 0}`), p)
	if err != nil {
		t.Fatal(err)
	}
	want := []Operation{
		{Op: "replace", Path: "/a", Value: []byte(`1`)},
		{Op: "add", Path: "/b", Value: []byte(`2`)},
	}
	if d := cmp.Diff(want, ops); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}

func TestFromPatchShape(t *testing.T) {
	p := &libdiff.ObjectPatch{Fields: map[string]*libdiff.FieldOp{
		"gone": libdiff.RemoveOp(),
	}}
	_, err := FromPatch(parse(t, `{"a": 0}`), p)
	if !errors.Is(err, libdiff.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch, got %v", err)
	}
	_, err = Apply([]byte(`[1]`), p)
	if !errors.Is(err, libdiff.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch, got %v", err)
	}
}

func TestPointer(t *testing.T) {
	if got, want := Pointer("a", "b/c", "~d"), "/a/b~1c/~0d"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := Pointer(); got != "" {
		t.Errorf("got %q for the root", got)
	}
}

func TestApply(t *testing.T) {
	tests := []struct{ a, b string }{
		{`{"a": "hello", "b": "x"}`, `{"a": "HELLO", "c": "new"}`},
		{`[1, 2, 3]`, `[1, 2]`},
		{`[1, 2]`, `[1, 2, 3, 4]`},
		{`[{"v": 1}, {"v": 2}]`, `[{"v": 9}, {"v": 2}]`},
		{`{"n": {"l": [1, {"k": null}], "s": "x"}}`, `{"n": {"l": [2, {"k": false}, []], "s": "x"}}`},
		{`{"x": 5}`, `{"x": "five"}`},
		{`1`, `{"a": 1}`},
		{`"s"`, `"s"`},
		{`[]`, `[]`},
	}
	for _, tc := range tests {
		a, b := parse(t, tc.a), parse(t, tc.b)
		out, err := Apply([]byte(tc.a), selva.Diff(a, b))
		if err != nil {
			t.Errorf("%s -> %s: %v", tc.a, tc.b, err)
			continue
		}
		got := parse(t, string(out))
		if !ir.Equal(got, b) {
			t.Errorf("%s -> %s: got %s", tc.a, tc.b, out)
		}
	}
}
