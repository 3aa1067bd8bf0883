package ir

import (
	"strconv"
	"strings"
)

// FieldPath extends the kpath parent with an object field.  Fields which
// are not plain identifiers are quoted.
func FieldPath(parent, field string) string {
	prefix := parent + "."
	if field != "" && strings.IndexAny(field, "'.*$[]") == -1 {
		return prefix + field
	}
	return prefix + "'" + strings.ReplaceAll(field, "'", "\\'") + "'"
}

// IndexPath extends the kpath parent with an array index.
func IndexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}
