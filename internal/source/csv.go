package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dicom-viewer-api/internal/domain"
)

// ctxCheckInterval is how many scanned rows pass between context checks.
const ctxCheckInterval = 1024

var errEmptyFile = errors.New("file has no header row")

// CSVSource reads a comma-separated file by reference. The header row is the
// schema; every column is reported as VARCHAR since CSV carries no types.
type CSVSource struct {
	path string
}

// NewCSVSource creates a CSVSource for the file at path. The file is not
// touched until the first call.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Path returns the configured file path.
func (s *CSVSource) Path() string {
	return s.path
}

// Describe reads only the header row.
func (s *CSVSource) Describe(ctx context.Context) (domain.Schema, error) {
	if err := ctx.Err(); err != nil {
		return domain.Schema{}, err
	}

	closer, _, header, err := s.openReader()
	if err != nil {
		if errors.Is(err, errEmptyFile) {
			return domain.NewSchema(nil), nil
		}
		return domain.Schema{}, err
	}
	defer closer.Close()

	cols := make([]domain.Column, len(header))
	for i, name := range header {
		cols[i] = domain.Column{Name: name, Type: "VARCHAR"}
	}
	return domain.NewSchema(cols), nil
}

// Select scans the file for rows whose column equals value.
func (s *CSVSource) Select(ctx context.Context, column, value string, limit int) ([]domain.Record, error) {
	closer, r, header, err := s.openReader()
	if err != nil {
		if errors.Is(err, errEmptyFile) {
			return nil, s.missingColumn(column)
		}
		return nil, err
	}
	defer closer.Close()

	idx := indexOf(header, column)
	if idx < 0 {
		return nil, s.missingColumn(column)
	}

	var out []domain.Record
	for row := 0; ; row++ {
		if row%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.path, err)
		}
		if idx >= len(rec) || rec[idx] != value {
			continue
		}
		out = append(out, recordFromRow(header, rec))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Distinct scans the file for distinct non-empty values of column.
func (s *CSVSource) Distinct(ctx context.Context, column string, limit int) ([]string, error) {
	closer, r, header, err := s.openReader()
	if err != nil {
		if errors.Is(err, errEmptyFile) {
			return nil, s.missingColumn(column)
		}
		return nil, err
	}
	defer closer.Close()

	idx := indexOf(header, column)
	if idx < 0 {
		return nil, s.missingColumn(column)
	}

	seen := make(map[string]struct{})
	var out []string
	for row := 0; ; row++ {
		if row%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.path, err)
		}
		if idx >= len(rec) || rec[idx] == "" {
			continue
		}
		if _, dup := seen[rec[idx]]; dup {
			continue
		}
		seen[rec[idx]] = struct{}{}
		out = append(out, rec[idx])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// openReader opens the file and positions a reader past the header row.
// The caller owns the returned closer on success.
func (s *CSVSource) openReader() (io.Closer, *csv.Reader, []string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", s.path, domain.ErrSourceUnavailable)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, nil, nil, errEmptyFile
		}
		return nil, nil, nil, fmt.Errorf("read header of %s: %w", s.path, err)
	}
	return f, r, header, nil
}

func (s *CSVSource) missingColumn(column string) error {
	return fmt.Errorf("column %q not present in %s: %w", column, s.path, domain.ErrSchemaMismatch)
}

func recordFromRow(header, row []string) domain.Record {
	rec := make(domain.Record, len(header))
	for i, name := range header {
		if i < len(row) {
			rec[name] = row[i]
		}
	}
	return rec
}

func indexOf(names []string, target string) int {
	for i, name := range names {
		if name == target {
			return i
		}
	}
	return -1
}
