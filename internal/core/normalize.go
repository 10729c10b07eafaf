package core

// normalize.go provides the named column transforms a dataset can request in
// its manifest options. Transforms run after extraction, on the serialized
// column value, and never affect validation.

import (
	"sort"
	"strings"
	"unicode"
)

// Normalizer transforms one extracted column value.
type Normalizer func(string) string

var normalizers = map[string]Normalizer{
	"trim":            strings.TrimSpace,
	"collapse_spaces": collapseSpaces,
	"strip_newlines":  stripNewlines,
	"title":           titleCase,
	"comma_swap":      commaSwap,
}

// LookupNormalizer returns the normalizer registered under name.
func LookupNormalizer(name string) (Normalizer, bool) {
	n, ok := normalizers[name]
	return n, ok
}

// NormalizerNames returns every registered name, sorted for stable error
// messages.
func NormalizerNames() []string {
	names := make([]string, 0, len(normalizers))
	for name := range normalizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// collapseSpaces squeezes runs of whitespace into single spaces and trims
// the ends.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripNewlines replaces line breaks with spaces so multi-line values stay
// on one CSV line when downstream tools cannot handle quoted newlines.
func stripNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

// titleCase upper-cases the first letter of each space-separated word.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	up := true
	for _, r := range s {
		if up && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			up = false
			continue
		}
		if unicode.IsSpace(r) {
			up = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

// commaSwap reorders a "primary, qualifier" value into "qualifier primary",
// e.g. "Engineer, site" becomes "site Engineer". Values without a comma pass
// through unchanged.
func commaSwap(s string) string {
	head, tail, ok := strings.Cut(s, ",")
	if !ok {
		return s
	}
	head = strings.TrimSpace(head)
	tail = strings.TrimSpace(tail)
	if head == "" || tail == "" {
		return s
	}
	return tail + " " + head
}
