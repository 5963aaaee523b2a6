// Package query assembles SQL for the report store while keeping identifier
// fragments and value fragments apart by type. A column or table name reaches
// query text only as an Ident, minted by allowlist validation (or by
// trusting configuration), and always quoted; request values only ever
// become bound placeholders.
package query

import (
	"fmt"
	"strings"

	"github.com/dicom-viewer-api/internal/domain"
)

// Placeholder selects the bound-parameter style of the target backend.
type Placeholder int

const (
	// Question emits ? placeholders (SQLite).
	Question Placeholder = iota
	// Dollar emits $1..$n placeholders (PostgreSQL).
	Dollar
)

// Ident is a column or table name cleared for literal embedding in query
// text. Outside this package an Ident is only obtainable through
// ValidateColumn or TrustedIdent, never directly from a request string.
type Ident struct {
	name string
}

// String returns the unquoted name.
func (id Ident) String() string {
	return id.name
}

// Quoted returns the name wrapped in double-quote delimiters with embedded
// double quotes doubled.
func (id Ident) Quoted() string {
	return QuoteIdent(id.name)
}

// IsZero reports whether the Ident carries no name.
func (id Ident) IsZero() bool {
	return id.name == ""
}

// QuoteIdent escapes a name for literal embedding in query text. Quoting is
// not a defense on its own: a well-formed but unauthorized column name would
// still leak unrelated data, so callers must hold an allowlist-validated
// Ident before this form reaches a query.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ValidateColumn checks allowlist membership before any quoting happens and
// mints an Ident only on success. Rejection wraps domain.ErrInvalidColumn.
func ValidateColumn(allowlist []string, name string) (Ident, error) {
	for _, allowed := range allowlist {
		if allowed == name {
			return Ident{name: name}, nil
		}
	}
	return Ident{}, fmt.Errorf("column %q not in allowlist: %w", name, domain.ErrInvalidColumn)
}

// TrustedIdent mints an Ident from a configuration-supplied name, such as
// the report table or its fixed identifier and text columns. Never call it
// with request input.
func TrustedIdent(name string) Ident {
	return Ident{name: name}
}

// Builder accumulates query text and bound arguments.
type Builder struct {
	sb    strings.Builder
	args  []interface{}
	style Placeholder
}

// NewBuilder creates a Builder for the given placeholder style.
func NewBuilder(style Placeholder) *Builder {
	return &Builder{style: style}
}

// Raw appends a literal fragment. Only compile-time constant SQL belongs here.
func (b *Builder) Raw(fragment string) *Builder {
	b.sb.WriteString(fragment)
	return b
}

// Ident appends a validated identifier in quoted form.
func (b *Builder) Ident(id Ident) *Builder {
	b.sb.WriteString(id.Quoted())
	return b
}

// Bind appends a placeholder and records the value as a bound argument.
func (b *Builder) Bind(value interface{}) *Builder {
	b.args = append(b.args, value)
	switch b.style {
	case Dollar:
		fmt.Fprintf(&b.sb, "$%d", len(b.args))
	default:
		b.sb.WriteByte('?')
	}
	return b
}

// SQL returns the assembled query text.
func (b *Builder) SQL() string {
	return b.sb.String()
}

// Args returns the bound arguments in placeholder order.
func (b *Builder) Args() []interface{} {
	return b.args
}
