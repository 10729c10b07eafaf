// Package schema implements the JSON Schema subset used to validate source
// documents and to derive the CSV column mapping for accepted ones.
//
// A schema document is compiled once into a Compiled value, which is
// immutable and safe for concurrent use. Validation collects every violation
// instead of stopping at the first, so a rejected document carries its
// complete, ordered list of reasons.
package schema

import "regexp"

// Type is a JSON Schema primitive type name.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeNull    Type = "null"
)

var knownTypes = map[Type]bool{
	TypeString:  true,
	TypeNumber:  true,
	TypeInteger: true,
	TypeBoolean: true,
	TypeObject:  true,
	TypeArray:   true,
	TypeNull:    true,
}

// Property is one compiled schema node.
type Property struct {
	Types []Type // accepted types; empty accepts any type

	// Object keywords. PropertyOrder keeps the declaration order of
	// Properties, which fixes the CSV column order.
	Properties    map[string]*Property
	PropertyOrder []string
	Required      []string

	// Array keywords. Items holds the single-schema form; the tuple form
	// is ignored and such arrays validate count keywords only.
	Items       *Property
	MinItems    *int
	MaxItems    *int
	UniqueItems bool

	// String keywords.
	Format    string
	Pattern   *regexp.Regexp
	MinLength *int
	MaxLength *int

	// Number keywords.
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64

	// Enum values, with numbers kept as json.Number.
	Enum []any
}

// Compiled is a schema document compiled for repeated validation.
type Compiled struct {
	Source string // path the schema was loaded from
	Root   *Property
}
