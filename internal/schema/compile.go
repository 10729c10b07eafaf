package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
)

// Load reads and compiles the schema document at path.
func Load(path string) (*Compiled, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(data, path)
}

// Compile parses data as a JSON Schema document. source only labels error
// messages and the resulting Compiled value.
func Compile(data []byte, source string) (*Compiled, error) {
	raw, err := decodeOrdered(data)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	obj, ok := raw.(*orderedObject)
	if !ok {
		return nil, fmt.Errorf("schema document must be a JSON object")
	}
	root, err := compileProperty(obj, "")
	if err != nil {
		return nil, err
	}
	return &Compiled{Source: source, Root: root}, nil
}

// orderedObject is a JSON object that remembers key declaration order.
// encoding/json maps drop it, and the column mapping depends on it.
type orderedObject struct {
	keys   []string
	values map[string]any
}

func (o *orderedObject) get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// decodeOrdered parses JSON preserving object key order and the lexical form
// of numbers.
func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after schema document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil // string, json.Number, bool, or nil
	}
	switch delim {
	case '{':
		obj := &orderedObject{values: make(map[string]any)}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key is not a string: %v", keyTok)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			if _, dup := obj.values[key]; !dup {
				obj.keys = append(obj.keys, key)
			}
			obj.values[key] = val
		}
		if _, err := dec.Token(); err != nil { // consume closing brace
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil { // consume closing bracket
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected token %v", delim)
}

func compileProperty(obj *orderedObject, path string) (*Property, error) {
	p := &Property{}

	if raw, ok := obj.get("type"); ok {
		types, err := compileTypes(raw)
		if err != nil {
			return nil, schemaErr(path, "type", err)
		}
		p.Types = types
	}

	if raw, ok := obj.get("properties"); ok {
		nested, ok := raw.(*orderedObject)
		if !ok {
			return nil, schemaErr(path, "properties", fmt.Errorf("must be an object"))
		}
		p.Properties = make(map[string]*Property, len(nested.keys))
		p.PropertyOrder = append([]string(nil), nested.keys...)
		for _, name := range nested.keys {
			childObj, ok := nested.values[name].(*orderedObject)
			if !ok {
				return nil, schemaErr(joinPath(path, name), "", fmt.Errorf("property schema must be an object"))
			}
			child, err := compileProperty(childObj, joinPath(path, name))
			if err != nil {
				return nil, err
			}
			p.Properties[name] = child
		}
	}

	if raw, ok := obj.get("required"); ok {
		names, err := stringSlice(raw)
		if err != nil {
			return nil, schemaErr(path, "required", err)
		}
		p.Required = names
	}

	if raw, ok := obj.get("items"); ok {
		if itemObj, ok := raw.(*orderedObject); ok {
			item, err := compileProperty(itemObj, joinPath(path, "items"))
			if err != nil {
				return nil, err
			}
			p.Items = item
		}
	}

	if raw, ok := obj.get("enum"); ok {
		vals, ok := raw.([]any)
		if !ok || len(vals) == 0 {
			return nil, schemaErr(path, "enum", fmt.Errorf("must be a non-empty array"))
		}
		p.Enum = make([]any, len(vals))
		for i, v := range vals {
			p.Enum[i] = plainValue(v)
		}
	}

	if raw, ok := obj.get("format"); ok {
		s, ok := raw.(string)
		if !ok {
			return nil, schemaErr(path, "format", fmt.Errorf("must be a string"))
		}
		p.Format = s
	}

	if raw, ok := obj.get("pattern"); ok {
		s, ok := raw.(string)
		if !ok {
			return nil, schemaErr(path, "pattern", fmt.Errorf("must be a string"))
		}
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, schemaErr(path, "pattern", err)
		}
		p.Pattern = re
	}

	var err error
	if p.Minimum, err = numberKeyword(obj, "minimum", path); err != nil {
		return nil, err
	}
	if p.Maximum, err = numberKeyword(obj, "maximum", path); err != nil {
		return nil, err
	}

	// Numeric exclusiveMinimum/exclusiveMaximum set their own bound; the
	// boolean form of older drafts marks minimum/maximum as exclusive.
	if raw, ok := obj.get("exclusiveMinimum"); ok {
		switch v := raw.(type) {
		case json.Number:
			f, ferr := v.Float64()
			if ferr != nil {
				return nil, schemaErr(path, "exclusiveMinimum", ferr)
			}
			p.ExclusiveMinimum = &f
		case bool:
			if v && p.Minimum != nil {
				p.ExclusiveMinimum, p.Minimum = p.Minimum, nil
			}
		default:
			return nil, schemaErr(path, "exclusiveMinimum", fmt.Errorf("must be a number or boolean"))
		}
	}
	if raw, ok := obj.get("exclusiveMaximum"); ok {
		switch v := raw.(type) {
		case json.Number:
			f, ferr := v.Float64()
			if ferr != nil {
				return nil, schemaErr(path, "exclusiveMaximum", ferr)
			}
			p.ExclusiveMaximum = &f
		case bool:
			if v && p.Maximum != nil {
				p.ExclusiveMaximum, p.Maximum = p.Maximum, nil
			}
		default:
			return nil, schemaErr(path, "exclusiveMaximum", fmt.Errorf("must be a number or boolean"))
		}
	}

	if p.MinLength, err = countKeyword(obj, "minLength", path); err != nil {
		return nil, err
	}
	if p.MaxLength, err = countKeyword(obj, "maxLength", path); err != nil {
		return nil, err
	}
	if p.MinItems, err = countKeyword(obj, "minItems", path); err != nil {
		return nil, err
	}
	if p.MaxItems, err = countKeyword(obj, "maxItems", path); err != nil {
		return nil, err
	}

	if raw, ok := obj.get("uniqueItems"); ok {
		b, ok := raw.(bool)
		if !ok {
			return nil, schemaErr(path, "uniqueItems", fmt.Errorf("must be a boolean"))
		}
		p.UniqueItems = b
	}

	return p, nil
}

func compileTypes(raw any) ([]Type, error) {
	switch v := raw.(type) {
	case string:
		t := Type(v)
		if !knownTypes[t] {
			return nil, fmt.Errorf("unknown type %q", v)
		}
		return []Type{t}, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("type array must not be empty")
		}
		types := make([]Type, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("type array must hold strings")
			}
			t := Type(s)
			if !knownTypes[t] {
				return nil, fmt.Errorf("unknown type %q", s)
			}
			types = append(types, t)
		}
		return types, nil
	}
	return nil, fmt.Errorf("must be a string or array of strings")
}

func stringSlice(raw any) ([]string, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("must be an array of strings")
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("must be an array of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func numberKeyword(obj *orderedObject, name, path string) (*float64, error) {
	raw, ok := obj.get(name)
	if !ok {
		return nil, nil
	}
	n, ok := raw.(json.Number)
	if !ok {
		return nil, schemaErr(path, name, fmt.Errorf("must be a number"))
	}
	f, err := n.Float64()
	if err != nil {
		return nil, schemaErr(path, name, err)
	}
	return &f, nil
}

func countKeyword(obj *orderedObject, name, path string) (*int, error) {
	raw, ok := obj.get(name)
	if !ok {
		return nil, nil
	}
	n, ok := raw.(json.Number)
	if !ok {
		return nil, schemaErr(path, name, fmt.Errorf("must be a non-negative integer"))
	}
	i, err := n.Int64()
	if err != nil || i < 0 {
		return nil, schemaErr(path, name, fmt.Errorf("must be a non-negative integer"))
	}
	count := int(i)
	return &count, nil
}

// plainValue strips ordering bookkeeping from enum values so they compare
// cleanly against decoded documents.
func plainValue(v any) any {
	switch val := v.(type) {
	case *orderedObject:
		m := make(map[string]any, len(val.keys))
		for _, k := range val.keys {
			m[k] = plainValue(val.values[k])
		}
		return m
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	}
	return v
}

func schemaErr(path, keyword string, err error) error {
	where := joinPath(path, keyword)
	if where == "" {
		return fmt.Errorf("schema: %v", err)
	}
	return fmt.Errorf("schema %s: %v", where, err)
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
