// The loader builds the SQLite report database from the bulk CSV exports:
// the reports table, the optional sections table, and the demo studies
// table. Tables are dropped and recreated on every run, mirroring the bulk
// pipeline that owns this data.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dicom-viewer-api/internal/config"
	"github.com/dicom-viewer-api/internal/database"
	"github.com/dicom-viewer-api/internal/logging"
	"github.com/dicom-viewer-api/internal/query"
)

// typeSampleRows bounds how many rows feed column type inference.
const typeSampleRows = 1000

const insertBatchSize = 500

func main() {
	reportsPath := flag.String("reports", "", "reports CSV to load (required)")
	sectionsPath := flag.String("sections", "", "sections CSV to load (optional)")
	dbPath := flag.String("db", "", "SQLite database path (default from configuration)")
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := configManager.GetConfig()
	logger := logging.NewLogger(cfg.Logging)

	if *reportsPath == "" {
		logger.Fatal("-reports is required")
	}
	path := *dbPath
	if path == "" {
		path = cfg.Database.Path
	}

	ctx := context.Background()
	db, err := database.CreateSQLite(ctx, path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create database")
	}
	defer db.Close()

	if err := loadTable(ctx, db.SQL, logger, cfg.Reports.Table, *reportsPath); err != nil {
		logger.WithError(err).Fatal("Failed to load reports")
	}
	if *sectionsPath != "" {
		if err := loadTable(ctx, db.SQL, logger, "sections", *sectionsPath); err != nil {
			logger.WithError(err).Fatal("Failed to load sections")
		}
	}
	if err := createStudiesTable(ctx, db.SQL); err != nil {
		logger.WithError(err).Fatal("Failed to create studies table")
	}

	logger.WithField("path", path).Info("Database built")
}

// loadTable drops and recreates table from the CSV at path, inferring column
// types from a sample of the data.
func loadTable(ctx context.Context, db *sql.DB, logger *logrus.Logger, table, path string) error {
	header, types, err := inferSchema(path)
	if err != nil {
		return fmt.Errorf("inferring schema of %s: %w", path, err)
	}

	logger.WithFields(logrus.Fields{
		"table":   table,
		"source":  path,
		"columns": len(header),
	}).Info("Loading table")

	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+query.QuoteIdent(table)); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}

	defs := make([]string, len(header))
	for i, name := range header {
		defs[i] = query.QuoteIdent(name) + " " + types[i]
	}
	create := "CREATE TABLE " + query.QuoteIdent(table) + " (" + strings.Join(defs, ", ") + ")"
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating %s: %w", table, err)
	}

	rows, err := insertRows(ctx, db, table, header, types, path)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{"table": table, "rows": rows}).Info("Table loaded")
	return nil
}

// inferSchema reads the header and samples rows to assign INTEGER, REAL, or
// TEXT to each column. A column with no non-empty sample values stays TEXT.
func inferSchema(path string) ([]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	// Track whether every seen value still parses as the candidate type.
	isInt := make([]bool, len(header))
	isReal := make([]bool, len(header))
	seen := make([]bool, len(header))
	for i := range header {
		isInt[i] = true
		isReal[i] = true
	}

	for n := 0; n < typeSampleRows; n++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("sampling rows: %w", err)
		}
		for i := range header {
			if i >= len(row) || row[i] == "" {
				continue
			}
			seen[i] = true
			if _, err := strconv.ParseInt(row[i], 10, 64); err != nil {
				isInt[i] = false
			}
			if _, err := strconv.ParseFloat(row[i], 64); err != nil {
				isReal[i] = false
			}
		}
	}

	types := make([]string, len(header))
	for i := range header {
		switch {
		case seen[i] && isInt[i]:
			types[i] = "INTEGER"
		case seen[i] && isReal[i]:
			types[i] = "REAL"
		default:
			types[i] = "TEXT"
		}
	}
	return header, types, nil
}

// insertRows streams the CSV into the table in batched transactions. Values
// are converted to the inferred column types; empty cells become NULL.
func insertRows(ctx context.Context, db *sql.DB, table string, header, types []string, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}

	quoted := make([]string, len(header))
	marks := make([]string, len(header))
	for i, name := range header {
		quoted[i] = query.QuoteIdent(name)
		marks[i] = "?"
	}
	stmt := "INSERT INTO " + query.QuoteIdent(table) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"

	var (
		total int64
		tx    *sql.Tx
	)
	commit := func() error {
		if tx == nil {
			return nil
		}
		err := tx.Commit()
		tx = nil
		return err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("reading row: %w", err)
		}

		if tx == nil {
			if tx, err = db.BeginTx(ctx, nil); err != nil {
				return total, fmt.Errorf("beginning transaction: %w", err)
			}
		}

		args := make([]interface{}, len(header))
		for i := range header {
			if i >= len(row) || row[i] == "" {
				args[i] = nil
				continue
			}
			args[i] = convertValue(row[i], types[i])
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			return total, fmt.Errorf("inserting row %d: %w", total+1, err)
		}
		total++

		if total%insertBatchSize == 0 {
			if err := commit(); err != nil {
				return total, fmt.Errorf("committing batch: %w", err)
			}
		}
	}
	if err := commit(); err != nil {
		return total, fmt.Errorf("committing final batch: %w", err)
	}
	return total, nil
}

func convertValue(raw, typ string) interface{} {
	switch typ {
	case "INTEGER":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case "REAL":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

func createStudiesTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS studies (id INTEGER PRIMARY KEY, name TEXT)`)
	return err
}
