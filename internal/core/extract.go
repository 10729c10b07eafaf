package core

// extract.go flattens accepted documents into CSV rows.

import (
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/ETL/internal/schema"
)

// ExtractRow maps an accepted record onto the dataset's column mapping.
// Missing optional values become empty columns, never omitted ones, so every
// row matches the header's column count and order.
func ExtractRow(rec SourceRecord, mapping *schema.Mapping) CsvRow {
	row := make(CsvRow, len(mapping.Columns))
	for i, col := range mapping.Columns {
		v, ok := lookupPath(rec.Doc, col.Path)
		if !ok {
			continue
		}
		row[i] = formatValue(v)
	}
	return row
}

// lookupPath walks nested objects along path. Any missing or non-object step
// reports absence.
func lookupPath(doc any, path []string) (any, bool) {
	v := doc
	for _, name := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok = m[name]
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// formatValue serializes a JSON value in its fixed, locale-independent form:
// numbers keep the lexical form they had in the source document, booleans
// are "true"/"false", null is empty, and composite values render as compact
// JSON with sorted object keys.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case json.Number:
		return val.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// resolveNormalizers binds a dataset's configured normalizer names to column
// indexes. Unknown columns or normalizer names are configuration faults and
// fail the dataset before any file is touched.
func resolveNormalizers(opts DatasetOptions, mapping *schema.Mapping) (map[int][]Normalizer, error) {
	if len(opts.Normalizers) == 0 {
		return nil, nil
	}
	index := make(map[string]int, len(mapping.Columns))
	for i, col := range mapping.Columns {
		index[col.Name] = i
	}
	resolved := make(map[int][]Normalizer, len(opts.Normalizers))
	for column, names := range opts.Normalizers {
		i, ok := index[column]
		if !ok {
			return nil, fmt.Errorf("normalize: unknown column %q", column)
		}
		for _, name := range names {
			fn, ok := LookupNormalizer(name)
			if !ok {
				return nil, fmt.Errorf("normalize: unknown normalizer %q for column %q", name, column)
			}
			resolved[i] = append(resolved[i], fn)
		}
	}
	return resolved, nil
}

// applyNormalizers runs the resolved transforms on a row, in configured
// order per column.
func applyNormalizers(row CsvRow, resolved map[int][]Normalizer) CsvRow {
	for i, fns := range resolved {
		if i >= len(row) {
			continue
		}
		v := row[i]
		for _, fn := range fns {
			v = fn(v)
		}
		row[i] = v
	}
	return row
}
