package schema

import "strings"

// Column is one CSV column derived from the schema.
type Column struct {
	Name string   // header cell: the property path joined with "."
	Path []string // property names from the document root
}

// Mapping is the ordered column set for one dataset. Every row of a dataset
// shares the same column count and order, fixed by the schema's top-level
// property declaration order.
//
// A property that declares nested properties is flattened depth-first into
// one column per leaf, its path segments joined with "."; every other
// property, arrays included, contributes exactly one column.
type Mapping struct {
	Columns []Column
}

// Mapping derives the column mapping from the schema's top-level properties.
// The result is deterministic for a given schema document.
func (c *Compiled) Mapping() *Mapping {
	m := &Mapping{}
	appendColumns(m, c.Root, nil)
	return m
}

func appendColumns(m *Mapping, p *Property, prefix []string) {
	for _, name := range p.PropertyOrder {
		child := p.Properties[name]
		path := append(append([]string(nil), prefix...), name)
		if flattens(child) {
			appendColumns(m, child, path)
			continue
		}
		m.Columns = append(m.Columns, Column{Name: strings.Join(path, "."), Path: path})
	}
}

// flattens reports whether a property contributes nested columns instead of
// one column of its own. Object-typed properties without declared properties
// stay a single column and serialize as JSON.
func flattens(p *Property) bool {
	if len(p.Properties) == 0 {
		return false
	}
	if len(p.Types) == 0 {
		return true
	}
	for _, t := range p.Types {
		if t == TypeObject {
			return true
		}
	}
	return false
}

// Names returns the header row.
func (m *Mapping) Names() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}
