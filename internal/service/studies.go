package service

import (
	"context"
	"fmt"

	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/query"
	"github.com/dicom-viewer-api/internal/repository"
)

// ListFindingColumns returns the report columns that represent clinical
// findings: the current schema minus the configured metadata exclusion set,
// sorted for deterministic display.
func (s *Service) ListFindingColumns(ctx context.Context) ([]string, error) {
	schema, err := s.store.DescribeReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering finding columns: %w", err)
	}
	return domain.FindingColumns(schema, s.exclude), nil
}

// ListStudies returns one summary per distinct study under the optional
// finding filter, paginated. The filter column is validated against the
// current finding set before it reaches any query text.
func (s *Service) ListStudies(ctx context.Context, filterColumn, filterValue string, page, pageSize int) ([]domain.StudySummary, error) {
	filter, err := s.validateFilter(ctx, filterColumn, filterValue)
	if err != nil {
		return nil, err
	}
	return s.store.ListStudies(ctx, filter, s.clampPage(page, pageSize))
}

// CountStudies counts distinct studies under exactly the filter predicate
// ListStudies uses.
func (s *Service) CountStudies(ctx context.Context, filterColumn, filterValue string) (int64, error) {
	filter, err := s.validateFilter(ctx, filterColumn, filterValue)
	if err != nil {
		return 0, err
	}
	return s.store.CountStudies(ctx, filter)
}

// validateFilter turns the optional filter pair into a repository filter.
// The filter applies only when both column and value are present; a lone
// parameter is ignored. The column must be a member of the current finding
// set, checked before any quoting.
func (s *Service) validateFilter(ctx context.Context, column, value string) (*repository.Filter, error) {
	if column == "" || value == "" {
		return nil, nil
	}

	findings, err := s.ListFindingColumns(ctx)
	if err != nil {
		return nil, err
	}
	ident, err := query.ValidateColumn(findings, column)
	if err != nil {
		s.logger.WithField("column", column).Warn("Rejected filter column")
		return nil, err
	}
	return &repository.Filter{Column: ident, Value: value}, nil
}

func (s *Service) clampPage(page, pageSize int) repository.Page {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.paging.DefaultPageSize
	}
	if max := s.paging.MaxPageSize; max > 0 && pageSize > max {
		pageSize = max
	}
	return repository.Page{Number: page, Size: pageSize}
}
