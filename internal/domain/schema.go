package domain

import (
	"sort"
	"strings"
)

// Column describes a single column of an external data source.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is an ordered column listing obtained from a data source, with
// exact and case-insensitive name lookups. Column order follows the source's
// own declaration order. A Schema with no columns is valid and distinct from
// an unreachable source, which surfaces ErrSourceUnavailable instead.
type Schema struct {
	columns []Column
	byName  map[string]int
	byFold  map[string]int
}

// NewSchema builds a Schema from columns in source order. When two columns
// share a name, exactly or after case folding, the earlier one wins lookups.
func NewSchema(columns []Column) Schema {
	s := Schema{
		columns: make([]Column, len(columns)),
		byName:  make(map[string]int, len(columns)),
		byFold:  make(map[string]int, len(columns)),
	}
	copy(s.columns, columns)
	for i, col := range s.columns {
		if _, ok := s.byName[col.Name]; !ok {
			s.byName[col.Name] = i
		}
		folded := strings.ToLower(col.Name)
		if _, ok := s.byFold[folded]; !ok {
			s.byFold[folded] = i
		}
	}
	return s
}

// Len returns the number of columns.
func (s Schema) Len() int {
	return len(s.columns)
}

// IsEmpty reports whether the source exposed no columns at all.
func (s Schema) IsEmpty() bool {
	return len(s.columns) == 0
}

// Columns returns a copy of the columns in source order.
func (s Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the column names in source order.
func (s Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, col := range s.columns {
		names[i] = col.Name
	}
	return names
}

// Has reports whether a column with exactly this name exists.
func (s Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Lookup returns the column with exactly this name.
func (s Schema) Lookup(name string) (Column, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// LookupFold returns the column whose name matches case-insensitively.
func (s Schema) LookupFold(name string) (Column, bool) {
	i, ok := s.byFold[strings.ToLower(name)]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// FirstMatch returns the first candidate present in the schema by exact,
// case-sensitive comparison. Study-UID detection uses this: the candidate
// list is an ordered priority across the naming conventions of different
// pipeline stages, and the first hit decides for every downstream query.
func (s Schema) FirstMatch(candidates []string) (string, bool) {
	for _, cand := range candidates {
		if _, ok := s.byName[cand]; ok {
			return cand, true
		}
	}
	return "", false
}

// FirstMatchFold returns the source's own column name for the first
// candidate present case-insensitively. Identity-mapping and path-column
// detection use this, since those conventions differ in case across sources.
func (s Schema) FirstMatchFold(candidates []string) (string, bool) {
	for _, cand := range candidates {
		if i, ok := s.byFold[strings.ToLower(cand)]; ok {
			return s.columns[i].Name, true
		}
	}
	return "", false
}

// FindingColumns computes the finding columns of a report schema: every
// column name not in the exclusion set, deduplicated and sorted
// lexicographically. The exclusion set lists the fixed metadata columns of
// the report table; keeping it disjoint from real finding names is a
// configuration concern, not validated here.
func FindingColumns(schema Schema, exclude []string) []string {
	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excluded[name] = struct{}{}
	}

	findings := make([]string, 0, schema.Len())
	seen := make(map[string]struct{}, schema.Len())
	for _, name := range schema.Names() {
		if _, skip := excluded[name]; skip {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		findings = append(findings, name)
	}
	sort.Strings(findings)
	return findings
}
