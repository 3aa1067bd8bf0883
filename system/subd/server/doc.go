// Package server implements subd, the subscription server.
//
// A client opens a [Session] (over TCP, see [TCPListener]) and subscribes
// to live queries.  Each subscription gets a [Publisher]: it evaluates the
// query against the storage snapshot, sends the result as a full event and
// from then on, whenever a commit touches nodes the subscription watches,
// re-evaluates the query, diffs the new result against the previous one
// on the diff [Pool] and sends the wire form of the patch.
//
// Commits reach publishers through the [WatchHub].  A publisher which
// cannot keep up is failed rather than silently skipping commits; the
// client sees a slow_consumer error and may subscribe again.
package server
