package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/dicom-viewer-api/internal/domain"
)

// rowBatchSize is how many parquet rows are decoded per read.
const rowBatchSize = 128

// ParquetSource reads a parquet file by reference. The footer schema is the
// column listing; leaf values compare by their parquet string form, so
// identifier lookups work the same way against string and integer columns.
type ParquetSource struct {
	path string
}

// NewParquetSource creates a ParquetSource for the file at path. The file is
// not touched until the first call.
func NewParquetSource(path string) *ParquetSource {
	return &ParquetSource{path: path}
}

// Path returns the configured file path.
func (s *ParquetSource) Path() string {
	return s.path
}

// Describe reads only the file footer.
func (s *ParquetSource) Describe(ctx context.Context) (domain.Schema, error) {
	if err := ctx.Err(); err != nil {
		return domain.Schema{}, err
	}

	f, pf, err := s.open()
	if err != nil {
		return domain.Schema{}, err
	}
	defer f.Close()

	fields := pf.Schema().Fields()
	cols := make([]domain.Column, len(fields))
	for i, field := range fields {
		typ := "GROUP"
		if field.Leaf() {
			typ = field.Type().String()
		}
		cols[i] = domain.Column{Name: field.Name(), Type: typ}
	}
	return domain.NewSchema(cols), nil
}

// Select scans row groups for rows whose column equals value.
func (s *ParquetSource) Select(ctx context.Context, column, value string, limit int) ([]domain.Record, error) {
	f, pf, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names := leafNames(pf)
	target := indexOf(names, column)
	if target < 0 {
		return nil, s.missingColumn(column)
	}

	var out []domain.Record
	err = s.scan(ctx, pf, func(row parquet.Row) bool {
		matched := false
		for _, v := range row {
			if v.Column() == target && !v.IsNull() && v.String() == value {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
		out = append(out, recordFromParquetRow(names, row))
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Distinct scans row groups for distinct non-empty values of column.
func (s *ParquetSource) Distinct(ctx context.Context, column string, limit int) ([]string, error) {
	f, pf, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names := leafNames(pf)
	target := indexOf(names, column)
	if target < 0 {
		return nil, s.missingColumn(column)
	}

	seen := make(map[string]struct{})
	var out []string
	err = s.scan(ctx, pf, func(row parquet.Row) bool {
		for _, v := range row {
			if v.Column() != target || v.IsNull() {
				continue
			}
			val := v.String()
			if val == "" {
				continue
			}
			if _, dup := seen[val]; dup {
				continue
			}
			seen[val] = struct{}{}
			out = append(out, val)
		}
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// open maps any failure to reach the parquet footer to ErrSourceUnavailable.
// The caller owns the returned file handle on success.
func (s *ParquetSource) open() (*os.File, *parquet.File, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", s.path, domain.ErrSourceUnavailable)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", s.path, domain.ErrSourceUnavailable)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open parquet %s (%v): %w", s.path, err, domain.ErrSourceUnavailable)
	}
	return f, pf, nil
}

// scan feeds each row to fn until fn returns false or rows run out.
func (s *ParquetSource) scan(ctx context.Context, pf *parquet.File, fn func(parquet.Row) bool) error {
	buf := make([]parquet.Row, rowBatchSize)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			if err := ctx.Err(); err != nil {
				rows.Close()
				return err
			}
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				if !fn(row) {
					rows.Close()
					return nil
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan %s: %w", s.path, err)
			}
			if n == 0 {
				break
			}
		}
		rows.Close()
	}
	return nil
}

func (s *ParquetSource) missingColumn(column string) error {
	return fmt.Errorf("column %q not present in %s: %w", column, s.path, domain.ErrSchemaMismatch)
}

func recordFromParquetRow(names []string, row parquet.Row) domain.Record {
	rec := make(domain.Record, len(names))
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(names) {
			continue
		}
		if v.IsNull() {
			rec[names[col]] = nil
			continue
		}
		rec[names[col]] = v.String()
	}
	return rec
}

func leafNames(pf *parquet.File) []string {
	paths := pf.Schema().Columns()
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = strings.Join(path, ".")
	}
	return names
}
