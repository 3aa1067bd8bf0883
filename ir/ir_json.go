package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

func (v *Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToAny(v))
}

func (v *Value) UnmarshalJSON(d []byte) error {
	res, err := ParseJSON(d)
	if err != nil {
		return err
	}
	*v = *res
	return nil
}

// ParseJSON decodes a single JSON document.  Numbers are decoded exactly
// rather than through an intermediate float of unknown precision.
func ParseJSON(d []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(d))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", ErrParse)
	}
	return FromAny(x)
}

// MustJSON returns the compact JSON form of v, panicking on error.
func (v *Value) MustJSON() string {
	d, err := v.MarshalJSON()
	if err != nil {
		panic(err)
	}
	return string(d)
}
