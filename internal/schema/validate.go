package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validate checks a parsed document against the schema and collects every
// violation instead of stopping at the first. It is pure: the same document
// and schema always produce the same verdict, in the same order.
func (c *Compiled) Validate(doc any) Verdict {
	var list ViolationList
	validateValue(doc, c.Root, "", &list)
	if len(list) == 0 {
		return Accept()
	}
	return Verdict{Violations: list}
}

func validateValue(v any, p *Property, path string, out *ViolationList) {
	if p == nil {
		return
	}

	if len(p.Types) > 0 && !typeAllowed(typeOf(v), p.Types) {
		*out = append(*out, Violation{
			Code:    CodeType,
			Path:    path,
			Message: fmt.Sprintf("expected %s, got %s", typeNames(p.Types), typeOf(v)),
		})
	}

	if len(p.Enum) > 0 && !enumContains(p.Enum, v) {
		*out = append(*out, Violation{
			Code:    CodeEnum,
			Path:    path,
			Message: fmt.Sprintf("must be one of: %s", renderEnum(p.Enum)),
		})
	}

	// Each keyword applies only to values of its own type; a wrong-typed
	// value already carries the type violation above.
	switch val := v.(type) {
	case string:
		validateString(val, p, path, out)
	case json.Number:
		validateNumber(val, p, path, out)
	case map[string]any:
		validateObject(val, p, path, out)
	case []any:
		validateArray(val, p, path, out)
	}
}

func typeOf(v any) Type {
	switch n := v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBoolean
	case string:
		return TypeString
	case json.Number:
		if isIntegral(n) {
			return TypeInteger
		}
		return TypeNumber
	case map[string]any:
		return TypeObject
	case []any:
		return TypeArray
	}
	return Type(fmt.Sprintf("%T", v))
}

// isIntegral reports whether a number has zero fractional part, so 5 and 5.0
// both satisfy "integer".
func isIntegral(n json.Number) bool {
	if _, err := n.Int64(); err == nil {
		return true
	}
	f, err := n.Float64()
	return err == nil && !math.IsInf(f, 0) && f == math.Trunc(f)
}

func typeAllowed(actual Type, allowed []Type) bool {
	for _, t := range allowed {
		if t == actual {
			return true
		}
		if t == TypeNumber && actual == TypeInteger {
			return true
		}
	}
	return false
}

func typeNames(types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, " or ")
}

func validateString(s string, p *Property, path string, out *ViolationList) {
	if p.MinLength != nil || p.MaxLength != nil {
		n := utf8.RuneCountInString(s)
		if p.MinLength != nil && n < *p.MinLength {
			*out = append(*out, Violation{CodeLength, path, fmt.Sprintf("length must be at least %d", *p.MinLength)})
		}
		if p.MaxLength != nil && n > *p.MaxLength {
			*out = append(*out, Violation{CodeLength, path, fmt.Sprintf("length must be at most %d", *p.MaxLength)})
		}
	}
	if p.Pattern != nil && !p.Pattern.MatchString(s) {
		*out = append(*out, Violation{CodePattern, path, fmt.Sprintf("does not match pattern %s", p.Pattern.String())})
	}
	if p.Format != "" {
		if msg := checkFormat(s, p.Format); msg != "" {
			*out = append(*out, Violation{CodeFormat, path, msg})
		}
	}
}

// checkFormat returns a violation message, or empty when s satisfies the
// format. Unknown formats are ignored, per JSON Schema semantics.
func checkFormat(s, format string) string {
	switch format {
	case "date-time":
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return "invalid date-time (want RFC 3339)"
		}
	case "date":
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return "invalid date (want YYYY-MM-DD)"
		}
	case "email":
		if _, err := mail.ParseAddress(s); err != nil {
			return "invalid email address"
		}
	case "uuid":
		if _, err := uuid.Parse(s); err != nil {
			return "invalid UUID"
		}
	case "uri":
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" {
			return "invalid URI (want an absolute URI)"
		}
	}
	return ""
}

func validateNumber(n json.Number, p *Property, path string, out *ViolationList) {
	if p.Minimum == nil && p.Maximum == nil && p.ExclusiveMinimum == nil && p.ExclusiveMaximum == nil {
		return
	}
	f, err := n.Float64()
	if err != nil {
		return
	}
	if p.Minimum != nil && f < *p.Minimum {
		*out = append(*out, Violation{CodeMinimum, path, fmt.Sprintf("must be at least %v", *p.Minimum)})
	}
	if p.ExclusiveMinimum != nil && f <= *p.ExclusiveMinimum {
		*out = append(*out, Violation{CodeMinimum, path, fmt.Sprintf("must be greater than %v", *p.ExclusiveMinimum)})
	}
	if p.Maximum != nil && f > *p.Maximum {
		*out = append(*out, Violation{CodeMaximum, path, fmt.Sprintf("must be at most %v", *p.Maximum)})
	}
	if p.ExclusiveMaximum != nil && f >= *p.ExclusiveMaximum {
		*out = append(*out, Violation{CodeMaximum, path, fmt.Sprintf("must be less than %v", *p.ExclusiveMaximum)})
	}
}

func validateObject(m map[string]any, p *Property, path string, out *ViolationList) {
	for _, name := range p.Required {
		if _, ok := m[name]; !ok {
			*out = append(*out, Violation{CodeRequired, joinPath(path, name), "missing required property"})
		}
	}
	// Walk declared properties in schema order so verdicts are stable.
	for _, name := range p.PropertyOrder {
		if v, ok := m[name]; ok {
			validateValue(v, p.Properties[name], joinPath(path, name), out)
		}
	}
}

func validateArray(arr []any, p *Property, path string, out *ViolationList) {
	if p.MinItems != nil && len(arr) < *p.MinItems {
		*out = append(*out, Violation{CodeItems, path, fmt.Sprintf("must have at least %d items", *p.MinItems)})
	}
	if p.MaxItems != nil && len(arr) > *p.MaxItems {
		*out = append(*out, Violation{CodeItems, path, fmt.Sprintf("must have at most %d items", *p.MaxItems)})
	}
	if p.UniqueItems && len(arr) > 1 {
		seen := make(map[string]int, len(arr))
		for i, item := range arr {
			key := canonical(item)
			if first, dup := seen[key]; dup {
				*out = append(*out, Violation{CodeUnique, elemPath(path, i), fmt.Sprintf("duplicate of item %d", first)})
			} else {
				seen[key] = i
			}
		}
	}
	if p.Items != nil {
		for i, item := range arr {
			validateValue(item, p.Items, elemPath(path, i), out)
		}
	}
}

func elemPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func enumContains(enum []any, v any) bool {
	for _, candidate := range enum {
		if equalValue(v, candidate) {
			return true
		}
	}
	return false
}

// equalValue compares a document value to an enum candidate. Numbers compare
// numerically so 5 matches 5.0; everything else compares structurally.
func equalValue(a, b any) bool {
	an, aok := a.(json.Number)
	bn, bok := b.(json.Number)
	if aok && bok {
		if an.String() == bn.String() {
			return true
		}
		af, aerr := an.Float64()
		bf, berr := bn.Float64()
		return aerr == nil && berr == nil && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func renderEnum(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			parts[i] = s
		} else {
			parts[i] = canonical(v)
		}
	}
	return strings.Join(parts, ", ")
}

// canonical renders a value as compact JSON. encoding/json sorts map keys,
// so structurally equal objects render identically.
func canonical(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
