package core

import (
	"bytes"
	"os"
)

// utf8BOM is the byte order mark some producers prepend to JSON files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readDocument reads one source file, skipping a UTF-8 byte order mark so
// BOM-prefixed documents still parse. Failures come back as FileReadError.
func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileReadError{Path: path, Err: err}
	}
	return bytes.TrimPrefix(data, utf8BOM), nil
}
