// Package storage holds the graph nodes subscriptions are evaluated
// against.
//
// Nodes are JSON values keyed by id in a pebble database.  Every Put or
// Delete is a commit with the next commit number; the storage keeps an
// immutable snapshot of all nodes which is replaced, never modified, on
// each commit, and notifies a single commit notifier of every commit in
// commit order.
package storage
