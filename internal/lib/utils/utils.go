// Package utils contains small helper functions used across the project.
//
// These are usually generic helpers that don't belong to a specific domain.
package utils

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// PrintJSON writes v to w as tab-indented JSON followed by a newline.
//
// If the value contains unsupported types (channels, funcs, circular refs)
// the encoder error is returned and nothing is written.
func PrintJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return errors.Wrap(err, "error marshalling the JSON")
	}

	out = append(out, '\n')
	if _, err := w.Write(out); err != nil {
		return errors.Wrap(err, "error writing the JSON")
	}
	return nil
}
