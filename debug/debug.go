package debug

import (
	"os"
	"strconv"
)

type debug struct {
	Diff  bool
	Apply bool
	Wire  bool
}

var d *debug

func init() {
	d = &debug{}
	d.Diff = boolEnv("SELVA_DEBUG_DIFF")
	d.Apply = boolEnv("SELVA_DEBUG_APPLY")
	d.Wire = boolEnv("SELVA_DEBUG_WIRE")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

func Diff() bool {
	return d.Diff
}
func Apply() bool {
	return d.Apply
}
func Wire() bool {
	return d.Wire
}
