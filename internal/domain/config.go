package domain

import (
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Resolve    ResolveConfig    `mapstructure:"resolve"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig represents per-client request throttling.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// DatabaseConfig represents report-store connection configuration. Driver
// selects the backend: "sqlite" uses Path, "postgres" uses the host fields.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ReportsConfig names the fixed pieces of the report table. MetadataColumns
// is the exclusion set for finding-column discovery and must stay disjoint
// from real finding names.
type ReportsConfig struct {
	Table           string   `mapstructure:"table"`
	StudyIDColumn   string   `mapstructure:"study_id_column"`
	TextColumn      string   `mapstructure:"text_column"`
	MetadataColumns []string `mapstructure:"metadata_columns"`
}

// MetadataConfig lists the columnar metadata files, in lookup order, and the
// study-UID column candidates, in priority order.
type MetadataConfig struct {
	Sources            []string `mapstructure:"sources"`
	MappingPath        string   `mapstructure:"mapping_path"`
	StudyUIDCandidates []string `mapstructure:"study_uid_candidates"`
}

// IdentityConfig holds the ranked column-name candidates for the two sides
// of the identity-mapping source.
type IdentityConfig struct {
	RealCandidates []string `mapstructure:"real_candidates"`
	AnonCandidates []string `mapstructure:"anon_candidates"`
}

// ResolveConfig drives the file resolution chain: filesystem roots probed in
// order, then metadata lookup through the ranked path and instance-UID
// column candidates.
type ResolveConfig struct {
	Roots                 []string `mapstructure:"roots"`
	PathCandidates        []string `mapstructure:"path_candidates"`
	InstanceUIDCandidates []string `mapstructure:"instance_uid_candidates"`
}

// PaginationConfig bounds study-listing pages.
type PaginationConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
