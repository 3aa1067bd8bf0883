// Package selva computes and applies structural patches between
// snapshots of query results.
//
// A producer holding the previous result of a live query diffs it
// against the new one:
//
//	p := selva.Diff(prev, next)
//	msg, err := wire.Marshal(p)
//
// and a consumer holding the same previous result reconstructs the new
// one from the patch:
//
//	p, err := wire.Unmarshal(msg)
//	next, err := selva.Apply(prev, p)
//
// Diff and Apply are pure: they do no I/O, hold no locks and never modify
// their inputs, so they may run on any goroutine.  A failed Apply means
// the consumer's state has diverged from the producer's; the remedy is a
// full resync, not a retry.
package selva
