package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/source"
)

// ResolveStudyMetadata returns every metadata row for studyID from the first
// usable metadata source. The caller's identifier is translated through the
// identity mapping when one applies; if the mapped identifier matches no
// rows, the original identifier is tried so a mapping can never hide rows the
// caller could reach without it. An identifier matching nothing yields empty
// rows, not an error.
func (s *Service) ResolveStudyMetadata(ctx context.Context, studyID string) (*domain.StudyMetadata, error) {
	src, uidCol, err := s.pickStudySource(ctx)
	if err != nil {
		return nil, err
	}

	result := &domain.StudyMetadata{StudyID: studyID}
	effective := studyID
	if mapped, ok := s.mapper.MapRealToAnon(ctx, studyID); ok {
		result.MappedStudyID = mapped
		effective = mapped
	}

	rows, err := src.Select(ctx, uidCol, effective, 0)
	if err != nil {
		return nil, fmt.Errorf("querying study metadata: %w", err)
	}
	if len(rows) == 0 && effective != studyID {
		rows, err = src.Select(ctx, uidCol, studyID, 0)
		if err != nil {
			return nil, fmt.Errorf("querying study metadata: %w", err)
		}
	}

	if rows == nil {
		rows = []domain.Record{}
	}
	result.Rows = rows

	s.logger.WithFields(logrus.Fields{
		"study_id":   studyID,
		"uid_column": uidCol,
		"rows":       len(rows),
	}).Debug("Resolved study metadata")
	return result, nil
}

// ListDistinctStudyIDs returns up to limit distinct study identifiers from
// the first usable metadata source, along with the detected column name.
// limit <= 0 lists without limit.
func (s *Service) ListDistinctStudyIDs(ctx context.Context, limit int) (*domain.StudyUIDList, error) {
	src, uidCol, err := s.pickStudySource(ctx)
	if err != nil {
		return nil, err
	}

	items, err := src.Distinct(ctx, uidCol, limit)
	if err != nil {
		return nil, fmt.Errorf("listing study identifiers: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	return &domain.StudyUIDList{UIDColumn: uidCol, Items: items}, nil
}

// ResolveInstanceFile returns the verified on-disk path of the instance's
// file, or domain.ErrNotFound.
func (s *Service) ResolveInstanceFile(ctx context.Context, instanceID string) (string, error) {
	return s.resolver.Resolve(ctx, instanceID)
}

// pickStudySource selects the first reachable metadata source carrying a
// detectable study identifier column. All sources unreachable is a source
// availability problem; reachable sources without any identifier column is a
// schema problem, reported distinctly.
func (s *Service) pickStudySource(ctx context.Context) (source.Source, string, error) {
	if len(s.sources) == 0 {
		return nil, "", fmt.Errorf("no metadata sources configured: %w", domain.ErrSourceUnavailable)
	}

	reachable := 0
	for _, src := range s.sources {
		schema, err := src.Describe(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("source", src.Path()).Warn("Metadata source unreachable")
			continue
		}
		reachable++
		if col, ok := schema.FirstMatch(s.uidCands); ok {
			return src, col, nil
		}
		s.logger.WithField("source", src.Path()).Debug("No study identifier column detected")
	}

	if reachable == 0 {
		return nil, "", fmt.Errorf("all metadata sources unreachable: %w", domain.ErrSourceUnavailable)
	}
	return nil, "", fmt.Errorf("no study identifier column in any reachable metadata source: %w", domain.ErrSchemaMismatch)
}
