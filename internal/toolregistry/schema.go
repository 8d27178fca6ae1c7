package toolregistry

import (
	"bytes"
	"io"
)

// rawSchemaReader adapts raw JSON Schema bytes to the io.Reader the
// jsonschema compiler's AddResource expects. A nil or empty schema is
// treated as "accept anything" ({}), matching tools with no inputs.
func rawSchemaReader(raw []byte) io.Reader {
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}
	return bytes.NewReader(raw)
}
