package libdiff

import "github.com/saulx/selva/go-selva/ir"

// DiffNumber compares exactly; there is no tolerance.
func DiffNumber(from, to *ir.Value) Patch {
	if from.Number == to.Number {
		return nil
	}
	return MakeReplace(to)
}

// DiffString compares whole strings.  Strings are atomic: a changed string
// is replaced, never edited.
func DiffString(from, to *ir.Value) Patch {
	if from.String == to.String {
		return nil
	}
	return MakeReplace(to)
}

func DiffBool(from, to *ir.Value) Patch {
	if from.Bool == to.Bool {
		return nil
	}
	return MakeReplace(to)
}
