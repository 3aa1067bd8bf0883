package selva

import (
	"fmt"

	"github.com/saulx/selva/go-selva/debug"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
)

// Apply reconstructs a target value from doc and a patch computed against
// it.
//
// doc is never modified.  The result shares every subtree the patch does
// not touch with doc; each position the patch does touch is a new node,
// as are all of its ancestors.
//
// If the patch does not fit doc, Apply returns an error wrapping
// [libdiff.ErrShapeMismatch] and no value: patches apply completely or
// not at all.
func Apply(doc *ir.Value, patch libdiff.Patch) (*ir.Value, error) {
	return doApply(doc, patch, "$")
}

func doApply(doc *ir.Value, patch libdiff.Patch, path string) (*ir.Value, error) {
	if debug.Apply() {
		debug.Logf("apply %T at %s to %s\n", patch, path, doc.Type)
	}
	switch p := patch.(type) {
	case nil, libdiff.NoChange:
		return doc, nil
	case *libdiff.Replace:
		if p.Value == nil {
			return nil, libdiff.ShapeErrorf(path, "replace without a value")
		}
		return p.Value, nil
	case *libdiff.ObjectPatch:
		return libdiff.PatchObject(doc, p, path, doApply)
	case *libdiff.ArrayPatch:
		return libdiff.PatchArrayByIndex(doc, p, path, doApply)
	default:
		return nil, fmt.Errorf("unknown patch type %T at %s", patch, path)
	}
}
