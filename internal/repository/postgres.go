package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/query"
)

const describeColumnsQuery = `
	SELECT column_name, data_type
	FROM information_schema.columns
	WHERE table_schema = current_schema() AND table_name = $1
	ORDER BY ordinal_position`

// PostgresStore serves the report store from a PostgreSQL database.
type PostgresStore struct {
	db    *sql.DB
	names Names
	log   *logrus.Logger
}

// NewPostgresStore wraps an open PostgreSQL handle.
func NewPostgresStore(db *sql.DB, names Names, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, names: names, log: logger}
}

// DescribeReports introspects the report table through information_schema.
// An unknown table yields zero rows, which maps to an empty schema.
func (s *PostgresStore) DescribeReports(ctx context.Context) (domain.Schema, error) {
	rows, err := s.db.QueryContext(ctx, describeColumnsQuery, s.names.Table)
	if err != nil {
		s.log.WithError(err).WithField("table", s.names.Table).Error("Failed to introspect report table")
		return domain.Schema{}, fmt.Errorf("describing table %s (%v): %w", s.names.Table, err, domain.ErrSourceUnavailable)
	}
	defer rows.Close()

	columns := make([]domain.Column, 0)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return domain.Schema{}, fmt.Errorf("scanning column row: %w", err)
		}
		columns = append(columns, domain.Column{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return domain.Schema{}, fmt.Errorf("reading column rows (%v): %w", err, domain.ErrSourceUnavailable)
	}

	return domain.NewSchema(columns), nil
}

// ListStudies returns distinct study summaries ordered by identifier.
func (s *PostgresStore) ListStudies(ctx context.Context, filter *Filter, page Page) ([]domain.StudySummary, error) {
	stmt, args := buildListQuery(query.Dollar, s.names, filter, page)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		s.log.WithError(err).Error("Failed to list studies")
		return nil, fmt.Errorf("listing studies (%v): %w", err, domain.ErrSourceUnavailable)
	}
	defer rows.Close()

	return scanStudies(rows)
}

// CountStudies counts distinct studies under the listing predicate.
func (s *PostgresStore) CountStudies(ctx context.Context, filter *Filter) (int64, error) {
	stmt, args := buildCountQuery(query.Dollar, s.names, filter)

	var count int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		s.log.WithError(err).Error("Failed to count studies")
		return 0, fmt.Errorf("counting studies (%v): %w", err, domain.ErrSourceUnavailable)
	}
	return count, nil
}

// InsertStudy adds a demo study row.
func (s *PostgresStore) InsertStudy(ctx context.Context, study *domain.DemoStudy) error {
	stmt, args := buildInsertStudyQuery(query.Dollar, study)

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		s.log.WithError(err).WithField("study_id", study.ID).Error("Failed to insert study")
		return fmt.Errorf("inserting study %d (%v): %w", study.ID, err, domain.ErrSourceUnavailable)
	}
	return nil
}

// Health pings the underlying database.
func (s *PostgresStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check (%v): %w", err, domain.ErrSourceUnavailable)
	}
	return nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
