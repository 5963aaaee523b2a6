// Package repository implements the report store: schema introspection,
// filtered and paginated study listing with a consistent companion count,
// and the demo insert path. The SQLite and PostgreSQL backends share one
// query shape and differ only in placeholder style and introspection query.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dicom-viewer-api/internal/database"
	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/query"
)

// Names holds the configured identifiers of the report table. They come from
// configuration, not from requests, and are embedded quoted.
type Names struct {
	Table   string
	StudyID string
	Text    string
}

// Filter restricts a listing to rows whose finding column equals a value.
// The column is an allowlist-validated identifier by construction; the value
// is always bound.
type Filter struct {
	Column query.Ident
	Value  string
}

// Page is a 1-based page request. Size <= 0 lists without limit.
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset of the page start.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Store is the report store consumed by the service layer.
type Store interface {
	// DescribeReports returns the report table's columns in declaration
	// order. An unreachable backend surfaces domain.ErrSourceUnavailable; a
	// missing table yields an empty schema and no error.
	DescribeReports(ctx context.Context) (domain.Schema, error)

	// ListStudies returns one summary per distinct study, ordered by study
	// identifier ascending. Rows with a null study identifier are excluded;
	// the representative text is the minimum non-null report text per study.
	ListStudies(ctx context.Context, filter *Filter, page Page) ([]domain.StudySummary, error)

	// CountStudies counts distinct study identifiers under exactly the
	// predicate ListStudies uses, so count and listing never disagree.
	CountStudies(ctx context.Context, filter *Filter) (int64, error)

	// InsertStudy adds a row to the demo studies table.
	InsertStudy(ctx context.Context, study *domain.DemoStudy) error

	// Health checks the backend connection.
	Health(ctx context.Context) error

	// Close releases the backend handle.
	Close() error
}

// NewStore returns the Store implementation matching the handle's driver.
func NewStore(db *database.DB, names Names, logger *logrus.Logger) (Store, error) {
	switch db.Driver() {
	case database.DriverSQLite:
		return NewSQLiteStore(db.SQL, names, logger), nil
	case database.DriverPostgres:
		return NewPostgresStore(db.SQL, names, logger), nil
	default:
		return nil, fmt.Errorf("no store for driver %q", db.Driver())
	}
}

func buildListQuery(style query.Placeholder, names Names, filter *Filter, page Page) (string, []interface{}) {
	b := query.NewBuilder(style)
	b.Raw("SELECT ").Ident(query.TrustedIdent(names.StudyID)).
		Raw(", MIN(").Ident(query.TrustedIdent(names.Text)).
		Raw(") FROM ").Ident(query.TrustedIdent(names.Table)).
		Raw(" WHERE ").Ident(query.TrustedIdent(names.StudyID)).Raw(" IS NOT NULL")
	if filter != nil {
		b.Raw(" AND ").Ident(filter.Column).Raw(" = ").Bind(filter.Value)
	}
	b.Raw(" GROUP BY ").Ident(query.TrustedIdent(names.StudyID)).
		Raw(" ORDER BY ").Ident(query.TrustedIdent(names.StudyID)).Raw(" ASC")
	if page.Size > 0 {
		b.Raw(" LIMIT ").Bind(page.Size).Raw(" OFFSET ").Bind(page.Offset())
	}
	return b.SQL(), b.Args()
}

func buildCountQuery(style query.Placeholder, names Names, filter *Filter) (string, []interface{}) {
	b := query.NewBuilder(style)
	b.Raw("SELECT COUNT(DISTINCT ").Ident(query.TrustedIdent(names.StudyID)).
		Raw(") FROM ").Ident(query.TrustedIdent(names.Table)).
		Raw(" WHERE ").Ident(query.TrustedIdent(names.StudyID)).Raw(" IS NOT NULL")
	if filter != nil {
		b.Raw(" AND ").Ident(filter.Column).Raw(" = ").Bind(filter.Value)
	}
	return b.SQL(), b.Args()
}

func buildInsertStudyQuery(style query.Placeholder, study *domain.DemoStudy) (string, []interface{}) {
	b := query.NewBuilder(style)
	b.Raw("INSERT INTO ").Ident(query.TrustedIdent("studies")).
		Raw(" (id, name) VALUES (").Bind(study.ID).Raw(", ").Bind(study.Name).Raw(")")
	return b.SQL(), b.Args()
}

func scanStudies(rows *sql.Rows) ([]domain.StudySummary, error) {
	summaries := make([]domain.StudySummary, 0)
	for rows.Next() {
		var (
			id   string
			text sql.NullString
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scanning study row: %w", err)
		}
		summary := domain.StudySummary{StudyID: id}
		if text.Valid {
			t := text.String
			summary.RepresentativeText = &t
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
