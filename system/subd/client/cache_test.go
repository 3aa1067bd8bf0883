package client

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/system/subd/api"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parse(t *testing.T, s string) *ir.Value {
	t.Helper()
	v, err := ir.ParseJSON([]byte(s))
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func fullEvent(t *testing.T, sub string, seq uint64, state string) *api.Event {
	return &api.Event{Sub: sub, Seq: seq, Kind: api.EventFull, State: parse(t, state)}
}

func patchEvent(sub string, seq uint64, patch string) *api.Event {
	return &api.Event{Sub: sub, Seq: seq, Kind: api.EventPatch, Patch: json.RawMessage(patch)}
}

func TestCacheApply(t *testing.T) {
	c := NewCache(quietLog())
	v, err := c.Apply(fullEvent(t, "s", 0, `{"a":[1,2]}`))
	if err != nil {
		t.Fatal(err)
	}
	if !ir.Equal(v, parse(t, `{"a":[1,2]}`)) {
		t.Errorf("got %s", v.MustJSON())
	}

	v, err = c.Apply(patchEvent("s", 1, `[2,{"a":[3,[3,[1,0,2],[0,3]]],"b":[0,true]}]`))
	if err != nil {
		t.Fatal(err)
	}
	want := parse(t, `{"a":[1,2,3],"b":true}`)
	if !ir.Equal(v, want) {
		t.Errorf("got %s, want %s", v.MustJSON(), want.MustJSON())
	}
	got, seq, ok := c.Get("s")
	if !ok || seq != 1 || !ir.Equal(got, want) {
		t.Errorf("Get: %v %d %t", got, seq, ok)
	}
}

func TestCacheApplyKeepsPrevious(t *testing.T) {
	c := NewCache(quietLog())
	prev, err := c.Apply(fullEvent(t, "s", 0, `{"a":{"b":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Apply(patchEvent("s", 1, `[2,{"a":[2,{"b":[0,2]}]}]`)); err != nil {
		t.Fatal(err)
	}
	if !ir.Equal(prev, parse(t, `{"a":{"b":1}}`)) {
		t.Errorf("previous state modified: %s", prev.MustJSON())
	}
}

func TestCacheApplyNullState(t *testing.T) {
	c := NewCache(quietLog())
	v, err := c.Apply(&api.Event{Sub: "s", Kind: api.EventFull})
	if err != nil {
		t.Fatal(err)
	}
	if v.Type != ir.NullType {
		t.Errorf("got %s", v.MustJSON())
	}
}

func TestCacheResync(t *testing.T) {
	tests := []struct {
		name  string
		full  bool
		event *api.Event
	}{
		{name: "no state", event: patchEvent("s", 1, `[0,1]`)},
		{name: "seq gap", full: true, event: patchEvent("s", 2, `[0,1]`)},
		{name: "stale seq", full: true, event: patchEvent("s", 0, `[0,1]`)},
		{name: "codec", full: true, event: patchEvent("s", 1, `[7,1]`)},
		{name: "shape", full: true, event: patchEvent("s", 1, `[3,[1]]`)},
		{name: "missing field", full: true, event: patchEvent("s", 1, `[2,{"z":[1]}]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache(quietLog())
			if tt.full {
				if _, err := c.Apply(fullEvent(t, "s", 0, `{"a":1}`)); err != nil {
					t.Fatal(err)
				}
			}
			_, err := c.Apply(tt.event)
			if !errors.Is(err, ErrResync) {
				t.Fatalf("got %v, want ErrResync", err)
			}
			if _, _, ok := c.Get("s"); ok {
				t.Error("entry kept after desync")
			}
		})
	}
}

func TestCacheUnknownKind(t *testing.T) {
	c := NewCache(quietLog())
	if _, err := c.Apply(&api.Event{Sub: "s", Kind: "delta"}); err == nil || errors.Is(err, ErrResync) {
		t.Errorf("got %v", err)
	}
}

func TestCacheDrop(t *testing.T) {
	c := NewCache(quietLog())
	c.Apply(fullEvent(t, "s", 3, `1`))
	c.Apply(fullEvent(t, "t", 0, `2`))
	c.Drop("s")
	if _, _, ok := c.Get("s"); ok {
		t.Error("s not dropped")
	}
	if v, seq, ok := c.Get("t"); !ok || seq != 0 || !ir.Equal(v, ir.FromNumber(2)) {
		t.Errorf("t: %v %d %t", v, seq, ok)
	}
}
