package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeDocument parses one JSON source document. Numbers decode as
// json.Number so their lexical form survives into CSV output. Trailing
// content after the top-level value is an error.
func DecodeDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after top-level value")
	}
	return doc, nil
}

// ParseViolation wraps a JSON parse failure as a rejection reason, so files
// that are not JSON at all route through the same quarantine path as files
// that merely violate their schema.
func ParseViolation(err error) Violation {
	return Violation{Code: CodeParse, Message: fmt.Sprintf("invalid JSON: %v", err)}
}
