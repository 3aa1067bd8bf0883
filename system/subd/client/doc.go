// Package client follows subd subscriptions.
//
// A [Cache] keeps the last state of each subscription and applies patch
// events to it.  Whenever a patch cannot be applied (a sequence gap, a
// malformed patch or a shape mismatch) the cached state is dropped and
// the caller must resync; [Client] does this automatically.
package client
