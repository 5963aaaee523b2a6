// Package source provides by-reference access to columnar metadata files.
// A Source holds only a path; every call opens the file, does its work, and
// closes it, so results always reflect the file currently on disk and no
// state is shared across requests.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dicom-viewer-api/internal/domain"
)

// Source describes and queries one columnar metadata file.
type Source interface {
	// Path returns the configured file path.
	Path() string

	// Describe returns the column schema without materializing data rows.
	// A missing or unreadable file surfaces domain.ErrSourceUnavailable; a
	// readable file with no columns yields an empty schema and no error.
	Describe(ctx context.Context) (domain.Schema, error)

	// Select returns up to limit records whose column equals value, in file
	// order. Values compare by their string form; limit <= 0 means no limit.
	// A column not present in the file surfaces domain.ErrSchemaMismatch.
	Select(ctx context.Context, column, value string, limit int) ([]domain.Record, error)

	// Distinct returns up to limit distinct non-empty values of column, in
	// first-seen order. limit <= 0 means no limit.
	Distinct(ctx context.Context, column string, limit int) ([]string, error)
}

// Open returns a Source for the file at path, chosen by extension.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVSource(path), nil
	case ".parquet":
		return NewParquetSource(path), nil
	default:
		return nil, fmt.Errorf("unsupported metadata source %q: %w", path, domain.ErrSourceUnavailable)
	}
}
