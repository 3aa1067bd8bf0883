package ir

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// ParseYAML decodes a single YAML document.  Since JSON is YAML, this
// also accepts JSON input.
func ParseYAML(d []byte) (*Value, error) {
	var x any
	if err := yaml.Unmarshal(d, &x); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return FromAny(x)
}

func (v *Value) MarshalYAML() (any, error) {
	return ToAny(v), nil
}
