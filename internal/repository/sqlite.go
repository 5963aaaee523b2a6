package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/query"
)

// SQLiteStore serves the report store from a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	names Names
	log   *logrus.Logger
}

// NewSQLiteStore wraps an open SQLite handle.
func NewSQLiteStore(db *sql.DB, names Names, logger *logrus.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, names: names, log: logger}
}

// DescribeReports introspects the report table via PRAGMA table_info. SQLite
// returns zero rows for an unknown table, which maps to an empty schema.
func (s *SQLiteStore) DescribeReports(ctx context.Context) (domain.Schema, error) {
	stmt := "PRAGMA table_info(" + query.QuoteIdent(s.names.Table) + ")"

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		s.log.WithError(err).WithField("table", s.names.Table).Error("Failed to introspect report table")
		return domain.Schema{}, fmt.Errorf("describing table %s (%v): %w", s.names.Table, err, domain.ErrSourceUnavailable)
	}
	defer rows.Close()

	columns := make([]domain.Column, 0)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     sql.NullString
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return domain.Schema{}, fmt.Errorf("scanning table_info row: %w", err)
		}
		columns = append(columns, domain.Column{Name: name, Type: typ.String})
	}
	if err := rows.Err(); err != nil {
		return domain.Schema{}, fmt.Errorf("reading table_info rows (%v): %w", err, domain.ErrSourceUnavailable)
	}

	return domain.NewSchema(columns), nil
}

// ListStudies returns distinct study summaries ordered by identifier.
func (s *SQLiteStore) ListStudies(ctx context.Context, filter *Filter, page Page) ([]domain.StudySummary, error) {
	stmt, args := buildListQuery(query.Question, s.names, filter, page)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		s.log.WithError(err).Error("Failed to list studies")
		return nil, fmt.Errorf("listing studies (%v): %w", err, domain.ErrSourceUnavailable)
	}
	defer rows.Close()

	return scanStudies(rows)
}

// CountStudies counts distinct studies under the listing predicate.
func (s *SQLiteStore) CountStudies(ctx context.Context, filter *Filter) (int64, error) {
	stmt, args := buildCountQuery(query.Question, s.names, filter)

	var count int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		s.log.WithError(err).Error("Failed to count studies")
		return 0, fmt.Errorf("counting studies (%v): %w", err, domain.ErrSourceUnavailable)
	}
	return count, nil
}

// InsertStudy adds a demo study row.
func (s *SQLiteStore) InsertStudy(ctx context.Context, study *domain.DemoStudy) error {
	stmt, args := buildInsertStudyQuery(query.Question, study)

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		s.log.WithError(err).WithField("study_id", study.ID).Error("Failed to insert study")
		return fmt.Errorf("inserting study %d (%v): %w", study.ID, err, domain.ErrSourceUnavailable)
	}
	return nil
}

// Health pings the underlying database.
func (s *SQLiteStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check (%v): %w", err, domain.ErrSourceUnavailable)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
