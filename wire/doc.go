// Package wire defines the transport form of a [libdiff.Patch]: nested
// tagged tuples whose first element is an integer opcode.
//
//	[0, value]              insert or replace with a literal value
//	[1]                     remove an object field
//	[2, {field: tuple}]     object patch, absent fields unchanged
//	[3, [n, segment...]]    array patch with a resulting length of n
//
// Array segments are [0, v...] (append literals), [1, index, count]
// (keep count source elements starting at index, which must be the
// current position) and [2, start, tuple...] (patch a run of elements).
// Positions no segment covers keep their source element.
//
// The tuple form maps directly onto JSON; see [Marshal] and [Unmarshal].
package wire
