// Package api defines the subscription protocol spoken between subd and
// its clients.
//
// Messages are newline-delimited JSON documents.  A client sends
// [Request]s; the server answers with [Response]s carrying either a
// [Result], an [Event] or an [Error].
//
// Each subscription receives a full event first, then patch events whose
// Patch is the wire form of the change from the previous state.  Seq
// increases by one with every event of a subscription, so a client can
// tell when it has missed one and ask for a resync.
package api
