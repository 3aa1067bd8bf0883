package ir

import (
	"testing"
)

func obj(kvs ...any) *Value {
	m := map[string]*Value{}
	for i := 0; i < len(kvs); i += 2 {
		m[kvs[i].(string)] = kvs[i+1].(*Value)
	}
	return FromMap(m)
}

func arr(vs ...*Value) *Value {
	return FromSlice(vs)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     *Value
		expected int
	}{
		// Type Ranking: Null < Bool < Number < String < Array < Object
		{"Null < Bool", Null(), FromBool(false), -1},
		{"Bool < Number", FromBool(true), FromInt(1), -1},
		{"Number < String", FromInt(1), FromString("a"), -1},
		{"String < Array", FromString("a"), arr(), -1},
		{"Array < Object", arr(), obj(), -1},

		{"Null == Null", Null(), Null(), 0},
		{"false < true", FromBool(false), FromBool(true), -1},
		{"true == true", FromBool(true), FromBool(true), 0},
		{"Int < Float", FromInt(1), FromNumber(1.5), -1},
		{"Float == Int", FromNumber(2.0), FromInt(2), 0},
		{"String < String", FromString("a"), FromString("b"), -1},

		{"Empty Array == Empty Array", arr(), arr(), 0},
		{"Short Array < Long Array", arr(FromInt(1)), arr(FromInt(1), FromInt(2)), -1},
		{"Array Element Comparison", arr(FromInt(1)), arr(FromInt(2)), -1},

		{"Empty Object == Empty Object", obj(), obj(), 0},
		{"Short Object < Long Object", obj("a", FromInt(1)), obj("a", FromInt(1), "b", FromInt(2)), -1},
		{"Object Key Comparison", obj("a", FromInt(1)), obj("b", FromInt(1)), -1},
		{"Object Value Comparison", obj("a", FromInt(1)), obj("a", FromInt(2)), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.expected {
				t.Errorf("Compare() = %v, want %v", got, tt.expected)
			}
			if got := Compare(tt.b, tt.a); got != -tt.expected {
				t.Errorf("Compare(b, a) = %v, want %v", got, -tt.expected)
			}
			if got := Equal(tt.a, tt.b); got != (tt.expected == 0) {
				t.Errorf("Equal() = %v, want %v", got, tt.expected == 0)
			}
		})
	}
}

func TestEqualIgnoresFieldOrder(t *testing.T) {
	a, err := ParseJSON([]byte(`{"a": 1, "b": [true, null, "x"], "c": {"d": {}}}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseJSON([]byte(`{"c": {"d": {}}, "b": [true, null, "x"], "a": 1.0}`))
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(a, b) {
		t.Errorf("expected %s == %s", a.MustJSON(), b.MustJSON())
	}
	if Equal(a, obj()) {
		t.Errorf("expected %s != {}", a.MustJSON())
	}
}

func TestNullIsNotAbsent(t *testing.T) {
	if Equal(obj("a", Null()), obj()) {
		t.Error("{a: null} should differ from {}")
	}
	if Equal(obj("a", Null()), obj("b", Null())) {
		t.Error("{a: null} should differ from {b: null}")
	}
}
