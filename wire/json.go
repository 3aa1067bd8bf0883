package wire

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/saulx/selva/go-selva/debug"
	"github.com/saulx/selva/go-selva/libdiff"
)

// Marshal returns the JSON text of the tuple form of p.
func Marshal(p libdiff.Patch) ([]byte, error) {
	d, err := json.Marshal(Encode(p))
	if err != nil {
		return nil, err
	}
	if debug.Wire() {
		debug.Logf("wire: marshal %T to %d bytes\n", p, len(d))
	}
	return d, nil
}

// Unmarshal decodes a patch from JSON text.  Malformed JSON is a codec
// error like any other malformed tuple.
func Unmarshal(d []byte) (libdiff.Patch, error) {
	dec := json.NewDecoder(bytes.NewReader(d))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, errorf("$", "invalid JSON: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errorf("$", "trailing data after patch")
	}
	if debug.Wire() {
		debug.Logf("wire: unmarshal %s\n", x)
	}
	return Decode(x)
}
