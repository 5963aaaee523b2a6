// Package resolve turns a logical instance identifier into a physical file
// path through an ordered chain of strategies: a filesystem naming-convention
// probe across configured roots, then a lookup in the columnar metadata
// sources. Failed strategies never raise; only total exhaustion yields
// domain.ErrNotFound.
package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/source"
)

// Resolver locates instance files on disk.
type Resolver struct {
	roots     []string
	pathCands []string
	instCands []string
	sources   []source.Source
	log       *logrus.Logger
}

// NewResolver builds a Resolver over the configured roots and metadata
// sources. sources may be empty; the convention probe still runs.
func NewResolver(cfg domain.ResolveConfig, sources []source.Source, logger *logrus.Logger) *Resolver {
	return &Resolver{
		roots:     cfg.Roots,
		pathCands: cfg.PathCandidates,
		instCands: cfg.InstanceUIDCandidates,
		sources:   sources,
		log:       logger,
	}
}

// Resolve returns the on-disk path for objectID, or domain.ErrNotFound when
// every strategy is exhausted. The returned path has been stat-verified.
func (r *Resolver) Resolve(ctx context.Context, objectID string) (string, error) {
	if path, ok := r.probeRoots(objectID); ok {
		return path, nil
	}
	if path, ok := r.lookupMetadata(ctx, objectID); ok {
		return path, nil
	}
	return "", fmt.Errorf("no file for instance %q: %w", objectID, domain.ErrNotFound)
}

// probeRoots checks each root for a file named {objectID}.dcm. Identifiers
// carrying path separators or parent references never match a probe.
func (r *Resolver) probeRoots(objectID string) (string, bool) {
	if !probeSafe(objectID) {
		r.log.WithField("instance_id", objectID).Warn("Instance identifier not probeable")
		return "", false
	}
	for _, root := range r.roots {
		path := filepath.Join(root, objectID+".dcm")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			r.log.WithFields(logrus.Fields{"instance_id": objectID, "path": path}).Debug("Resolved by convention probe")
			return path, true
		}
	}
	return "", false
}

// lookupMetadata finds objectID in the first metadata source that carries
// both a path-like and an instance-identifier column. Unreachable sources and
// unrecognized schemas are skipped.
func (r *Resolver) lookupMetadata(ctx context.Context, objectID string) (string, bool) {
	for _, src := range r.sources {
		path, ok := r.lookupIn(ctx, src, objectID)
		if ok {
			return path, true
		}
	}
	return "", false
}

func (r *Resolver) lookupIn(ctx context.Context, src source.Source, objectID string) (string, bool) {
	log := r.log.WithFields(logrus.Fields{"instance_id": objectID, "source": src.Path()})

	schema, err := src.Describe(ctx)
	if err != nil {
		log.WithError(err).Warn("Metadata source unreachable during file resolution")
		return "", false
	}

	pathCol, ok := schema.FirstMatchFold(r.pathCands)
	if !ok {
		log.Debug("Metadata source has no path-like column")
		return "", false
	}
	instCol, ok := schema.FirstMatchFold(r.instCands)
	if !ok {
		log.Debug("Metadata source has no instance identifier column")
		return "", false
	}

	records, err := src.Select(ctx, instCol, objectID, 1)
	if err != nil {
		log.WithError(err).Warn("Metadata lookup failed during file resolution")
		return "", false
	}
	if len(records) == 0 {
		return "", false
	}

	path := records[0].Text(pathCol)
	if path == "" {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		log.WithField("path", path).Debug("Metadata references a path absent on disk")
		return "", false
	}

	log.WithField("path", path).Debug("Resolved by metadata lookup")
	return path, true
}

func probeSafe(objectID string) bool {
	if objectID == "" {
		return false
	}
	if strings.ContainsAny(objectID, `/\`) {
		return false
	}
	return !strings.Contains(objectID, "..")
}
