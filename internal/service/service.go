// Package service orchestrates the query and identifier-resolution layers
// behind one facade consumed by the HTTP handlers. All operations are
// stateless short-lived reads against externally-owned sources, except the
// demonstration insert.
package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/identity"
	"github.com/dicom-viewer-api/internal/repository"
	"github.com/dicom-viewer-api/internal/resolve"
	"github.com/dicom-viewer-api/internal/source"
)

// Service exposes the core operations over the report store, the metadata
// sources, the identity mapping, and the instance file tree.
type Service struct {
	logger   *logrus.Logger
	store    repository.Store
	sources  []source.Source
	mapper   *identity.Mapper
	resolver *resolve.Resolver
	exclude  []string
	uidCands []string
	paging   domain.PaginationConfig
}

// NewService wires the facade from its collaborators.
func NewService(
	logger *logrus.Logger,
	store repository.Store,
	sources []source.Source,
	mapper *identity.Mapper,
	resolver *resolve.Resolver,
	cfg *domain.Config,
) *Service {
	return &Service{
		logger:   logger,
		store:    store,
		sources:  sources,
		mapper:   mapper,
		resolver: resolver,
		exclude:  cfg.Reports.MetadataColumns,
		uidCands: cfg.Metadata.StudyUIDCandidates,
		paging:   cfg.Pagination,
	}
}

// AddStudy inserts a demonstration study row.
func (s *Service) AddStudy(ctx context.Context, study *domain.DemoStudy) error {
	s.logger.WithFields(logrus.Fields{"id": study.ID, "name": study.Name}).Info("Adding demo study")
	return s.store.InsertStudy(ctx, study)
}

// Health reports whether the report store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}
