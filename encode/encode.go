package encode

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// JSONIndented encodes a value into a writer with a single space indentation
func JSONIndented(v interface{}, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", " ")

	return encoder.Encode(v)
}

// JSON renders a value as compact JSON text without a trailing newline or HTML escaping
func JSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(v); err != nil {
		return "", err
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}
