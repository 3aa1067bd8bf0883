package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/saulx/selva/go-selva/ir"
)

func TestRequestJSON(t *testing.T) {
	tests := []struct {
		req  *Request
		want string
	}{
		{NewSubscribeRequest("1", "s", "nodes"), `{"id":"1","subscribe":{"sub":"s","query":"nodes"}}`},
		{NewUnsubscribeRequest("", "s"), `{"unsubscribe":{"sub":"s"}}`},
		{NewResyncRequest("2", "s"), `{"id":"2","resync":{"sub":"s"}}`},
	}
	for _, tc := range tests {
		d, err := json.Marshal(tc.req)
		if err != nil {
			t.Fatal(err)
		}
		if string(d) != tc.want {
			t.Errorf("got %s, want %s", d, tc.want)
		}
		var back Request
		if err := json.Unmarshal(d, &back); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tc.req, &back); diff != "" {
			t.Errorf("round trip (-want +got):\n%s", diff)
		}
	}
}

func TestEventJSON(t *testing.T) {
	ev := &Event{Sub: "s", Seq: 1, Commit: 4, Kind: EventFull, State: ir.FromMap(map[string]*ir.Value{
		"a": ir.FromInt(1),
	})}
	d, err := json.Marshal(NewEventResponse(ev))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"event":{"sub":"s","seq":1,"commit":4,"kind":"full","state":{"a":1}}}`
	if string(d) != want {
		t.Errorf("got %s, want %s", d, want)
	}
	var back Response
	if err := json.Unmarshal(d, &back); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ev, back.Event, cmp.Comparer(ir.Equal)); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}

	ev = &Event{Sub: "s", Seq: 2, Commit: 5, Kind: EventPatch, Patch: json.RawMessage(`[2,{"a":[1]}]`)}
	d, err = json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	want = `{"sub":"s","seq":2,"commit":5,"kind":"patch","patch":[2,{"a":[1]}]}`
	if string(d) != want {
		t.Errorf("got %s, want %s", d, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		req *Request
		ok  bool
	}{
		{NewSubscribeRequest("", "s", "1"), true},
		{NewSubscribeRequest("", "s", ""), false},
		{NewSubscribeRequest("", "", "1"), false},
		{NewUnsubscribeRequest("", "s"), true},
		{&Request{}, false},
		{&Request{Resync: &ResyncRequest{Sub: "a"}, Unsubscribe: &UnsubscribeRequest{Sub: "a"}}, false},
	}
	for i, tc := range tests {
		err := tc.req.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("%d: Validate() = %v, want ok=%v", i, err, tc.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("%d: expected invalid message, got %v", i, err)
		}
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("subscribing: %w", NewError(ErrCodeInvalidQuery, "unknown name x"))
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected %v to be an invalid query error", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("did not expect %v to be a not found error", err)
	}
	if got, want := NewError("", "plain").Error(), "plain"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
