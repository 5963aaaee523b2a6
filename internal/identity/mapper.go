// Package identity translates real study identifiers into their de-identified
// counterparts through an optional lookup source. The column names on both
// sides of the mapping vary across pipelines, so they are resolved from ranked
// candidate lists at call time. Mapping is best-effort: any failure collapses
// to "no mapping" so the caller can proceed with the original identifier.
package identity

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/source"
)

// Internal lookup outcomes, kept distinct for logging even though the caller
// only sees mapped-or-not.
const (
	outcomeFound         = "found"
	outcomeNotConfigured = "not_configured"
	outcomeSourceError   = "source_error"
	outcomeNoRealColumn  = "real_column_missing"
	outcomeNoAnonColumn  = "anon_column_missing"
	outcomeLookupError   = "lookup_error"
	outcomeNoRow         = "no_row"
	outcomeEmptyValue    = "empty_anon_value"
)

// Mapper resolves real identifiers against a mapping source.
type Mapper struct {
	src  source.Source
	real []string
	anon []string
	log  *logrus.Logger
}

// NewMapper builds a Mapper over src, which may be nil when no mapping source
// is configured.
func NewMapper(src source.Source, cfg domain.IdentityConfig, logger *logrus.Logger) *Mapper {
	return &Mapper{
		src:  src,
		real: cfg.RealCandidates,
		anon: cfg.AnonCandidates,
		log:  logger,
	}
}

// MapRealToAnon returns the de-identified counterpart of realID and true, or
// ("", false) when no mapping can be established. It never returns an error:
// unreachable sources, unrecognized schemas, and absent rows all degrade to
// "no mapping".
func (m *Mapper) MapRealToAnon(ctx context.Context, realID string) (string, bool) {
	anonID, outcome := m.lookup(ctx, realID)

	fields := logrus.Fields{"real_id": realID, "outcome": outcome}
	if outcome == outcomeFound {
		m.log.WithFields(fields).Debug("Resolved identity mapping")
		return anonID, true
	}
	m.log.WithFields(fields).Debug("No identity mapping")
	return "", false
}

func (m *Mapper) lookup(ctx context.Context, realID string) (string, string) {
	if m.src == nil {
		return "", outcomeNotConfigured
	}

	schema, err := m.src.Describe(ctx)
	if err != nil {
		m.log.WithError(err).WithField("path", m.src.Path()).Warn("Identity mapping source unreadable")
		return "", outcomeSourceError
	}

	realCol, ok := schema.FirstMatchFold(m.real)
	if !ok {
		return "", outcomeNoRealColumn
	}
	anonCol, ok := schema.FirstMatchFold(m.anon)
	if !ok {
		return "", outcomeNoAnonColumn
	}

	records, err := m.src.Select(ctx, realCol, realID, 1)
	if err != nil {
		m.log.WithError(err).WithField("path", m.src.Path()).Warn("Identity mapping lookup failed")
		return "", outcomeLookupError
	}
	if len(records) == 0 {
		return "", outcomeNoRow
	}

	anonID := records[0].Text(anonCol)
	if anonID == "" {
		return "", outcomeEmptyValue
	}
	return anonID, outcomeFound
}
