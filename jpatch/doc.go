// Package jpatch converts patches into RFC 6902 JSON Patch documents, so
// that consumers holding raw JSON text rather than [ir.Value] trees can
// follow a stream of patches.
//
// The conversion needs the source value: a trim is expressed as removals
// from the end of the array and a set as add or replace depending on
// whether the field exists.
package jpatch
