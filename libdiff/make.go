package libdiff

import "github.com/saulx/selva/go-selva/ir"

// DiffFunc computes the patch from one value to another, nil meaning no
// change.
type DiffFunc func(from, to *ir.Value) Patch

// ApplyFunc applies a patch to the value found at path.
type ApplyFunc func(doc *ir.Value, p Patch, path string) (*ir.Value, error)

func MakeReplace(to *ir.Value) Patch {
	return &Replace{Value: to}
}
