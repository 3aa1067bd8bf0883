// Package libdiff provides the patch data model and the per-kind diff and
// patch steps used by [selva.Diff] and [selva.Apply].
//
// # Patches
//
// A [Patch] is one of:
//
//   - [NoChange]: the source is kept
//   - [*Replace]: the source is replaced wholesale, used when kinds differ
//     and for changed numbers, strings and booleans
//   - [*ObjectPatch]: per-field [Insert], [Remove] or [Nested] operations;
//     absent fields are unchanged
//   - [*ArrayPatch]: positional element patches on the common prefix plus
//     either a trimmed or an appended tail
//
// Unchanged positions never appear in a patch, so the size of a patch
// follows the size of the change rather than the size of the tree.
//
// # Errors
//
// Applying a patch to a source of the wrong shape fails with a
// [*ShapeError] wrapping [ErrShapeMismatch] and produces no result at all.
//
// # Related Packages
//
//   - github.com/saulx/selva/go-selva/ir - the value tree
//   - github.com/saulx/selva/go-selva/wire - the transport form of patches
package libdiff
