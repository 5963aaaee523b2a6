// Package database constructs and checks the sql.DB handles behind the
// report store. SQLite uses the pure-Go modernc driver; PostgreSQL uses
// lib/pq. Both go through database/sql so the store layer stays driver
// agnostic.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/dicom-viewer-api/internal/domain"
)

// Supported report-store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps a sql.DB handle with its driver name and logger.
type DB struct {
	SQL    *sql.DB
	driver string
	log    *logrus.Logger
}

// Open connects to the report store selected by config.Driver.
func Open(ctx context.Context, config *domain.DatabaseConfig, logger *logrus.Logger) (*DB, error) {
	switch config.Driver {
	case DriverSQLite:
		return OpenSQLite(ctx, config.Path, logger)
	case DriverPostgres:
		return OpenPostgres(ctx, config, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

// OpenSQLite opens an existing SQLite database file. A missing file surfaces
// domain.ErrSourceUnavailable: this layer never creates the report database,
// the loader does.
func OpenSQLite(ctx context.Context, path string, logger *logrus.Logger) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sqlite database %s: %w", path, domain.ErrSourceUnavailable)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// WAL keeps concurrent readers unblocked by the demo write path.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database %s (%v): %w", path, err, domain.ErrSourceUnavailable)
	}

	logger.WithFields(logrus.Fields{
		"driver": DriverSQLite,
		"path":   path,
	}).Info("Report database opened")

	return &DB{SQL: db, driver: DriverSQLite, log: logger}, nil
}

// CreateSQLite opens the SQLite database at path, creating the file and its
// parent directory when absent. Only the loader uses this.
func CreateSQLite(ctx context.Context, path string, logger *logrus.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"driver": DriverSQLite,
		"path":   path,
	}).Info("Report database created")

	return &DB{SQL: db, driver: DriverSQLite, log: logger}, nil
}

// OpenPostgres creates a PostgreSQL connection pool for the report store.
func OpenPostgres(ctx context.Context, config *domain.DatabaseConfig, logger *logrus.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		config.Host, config.Port, config.Database, config.Username, config.Password, config.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres database (%v): %w", err, domain.ErrSourceUnavailable)
	}

	logger.WithFields(logrus.Fields{
		"driver":         DriverPostgres,
		"host":           config.Host,
		"port":           config.Port,
		"database":       config.Database,
		"max_open_conns": config.MaxOpenConns,
	}).Info("Report database connection pool established")

	return &DB{SQL: db, driver: DriverPostgres, log: logger}, nil
}

// Driver returns the driver name the handle was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Close closes the underlying handle.
func (db *DB) Close() error {
	if db.SQL == nil {
		return nil
	}
	err := db.SQL.Close()
	db.log.Info("Report database closed")
	return err
}

// Health checks the connection.
func (db *DB) Health(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}

// Stats returns connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.SQL.Stats()
}
