package api

import (
	"encoding/json"

	"github.com/saulx/selva/go-selva/ir"
)

// --- Client → Server Messages ---

// SubscribeRequest starts a live query.  Prefix optionally restricts the
// commits which cause re-evaluation to those touching node ids with that
// prefix.
type SubscribeRequest struct {
	Sub    string `json:"sub"`
	Query  string `json:"query"`
	Prefix string `json:"prefix,omitempty"`
}

type UnsubscribeRequest struct {
	Sub string `json:"sub"`
}

// ResyncRequest asks for a fresh full event, typically after the client
// failed to apply a patch.
type ResyncRequest struct {
	Sub string `json:"sub"`
}

// Request is the top-level request message.  Only one of the operations
// should be set.
type Request struct {
	ID string `json:"id,omitempty"` // echoed in the response

	Subscribe   *SubscribeRequest   `json:"subscribe,omitempty"`
	Unsubscribe *UnsubscribeRequest `json:"unsubscribe,omitempty"`
	Resync      *ResyncRequest      `json:"resync,omitempty"`
}

// --- Server → Client Messages ---

type EventKind string

const (
	EventFull  EventKind = "full"
	EventPatch EventKind = "patch"
)

// Event is a streaming event of a subscription.
type Event struct {
	Sub    string    `json:"sub"`
	Seq    uint64    `json:"seq"`
	Commit int64     `json:"commit"`
	Kind   EventKind `json:"kind"`

	State *ir.Value       `json:"state,omitempty"` // EventFull
	Patch json.RawMessage `json:"patch,omitempty"` // EventPatch, wire form
}

// Result acknowledges a request.  Exactly one field is set.
type Result struct {
	Subscribed   string `json:"subscribed,omitempty"`
	Unsubscribed string `json:"unsubscribed,omitempty"`
	Resyncing    string `json:"resyncing,omitempty"`
}

// Response is the top-level response message.  Only one of Result, Event
// or Error should be set.
type Response struct {
	ID string `json:"id,omitempty"`

	Result *Result `json:"result,omitempty"`
	Event  *Event  `json:"event,omitempty"`
	Error  *Error  `json:"error,omitempty"`
}

func NewSubscribeRequest(id, sub, query string) *Request {
	return &Request{ID: id, Subscribe: &SubscribeRequest{Sub: sub, Query: query}}
}

func NewUnsubscribeRequest(id, sub string) *Request {
	return &Request{ID: id, Unsubscribe: &UnsubscribeRequest{Sub: sub}}
}

func NewResyncRequest(id, sub string) *Request {
	return &Request{ID: id, Resync: &ResyncRequest{Sub: sub}}
}

func NewSubscribeResponse(id, sub string) *Response {
	return &Response{ID: id, Result: &Result{Subscribed: sub}}
}

func NewUnsubscribeResponse(id, sub string) *Response {
	return &Response{ID: id, Result: &Result{Unsubscribed: sub}}
}

func NewResyncResponse(id, sub string) *Response {
	return &Response{ID: id, Result: &Result{Resyncing: sub}}
}

func NewEventResponse(ev *Event) *Response {
	return &Response{Event: ev}
}

// NewErrorResponse creates an error response.  Errors concerning a
// subscription rather than a request carry the subscription id in Sub.
func NewErrorResponse(id, code, message string) *Response {
	return &Response{ID: id, Error: &Error{Code: code, Message: message}}
}

// Validate checks that exactly one operation is set and that it names a
// subscription.
func (r *Request) Validate() error {
	n := 0
	var sub string
	if r.Subscribe != nil {
		n++
		sub = r.Subscribe.Sub
		if r.Subscribe.Query == "" {
			return NewError(ErrCodeInvalidMessage, "subscribe without a query")
		}
	}
	if r.Unsubscribe != nil {
		n++
		sub = r.Unsubscribe.Sub
	}
	if r.Resync != nil {
		n++
		sub = r.Resync.Sub
	}
	switch {
	case n == 0:
		return NewError(ErrCodeInvalidMessage, "no operation specified")
	case n > 1:
		return NewError(ErrCodeInvalidMessage, "more than one operation specified")
	case sub == "":
		return NewError(ErrCodeInvalidMessage, "missing subscription id")
	}
	return nil
}
