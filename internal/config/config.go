// Package config loads and validates service configuration with Viper. The
// candidate column lists driving schema detection live here as configuration
// data, not code, so schema drift in the external sources is handled without
// a rebuild.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dicom-viewer-api/internal/domain"
)

// Manager owns the loaded configuration.
type Manager struct {
	viper  *viper.Viper
	config *domain.Config
}

// NewManager creates a configuration manager, reading config.yaml from the
// working directory, ./config, or /etc/dicom-viewer, plus DICOM_VIEWER_*
// environment overrides. A missing config file is not an error.
func NewManager() (*Manager, error) {
	return newManager("")
}

func newManager(configDir string) (*Manager, error) {
	m := &Manager{viper: viper.New()}
	if err := m.loadConfig(configDir); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig(configDir string) error {
	v := m.viper

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dicom-viewer/")
	}

	v.SetEnvPrefix("DICOM_VIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	v := m.viper

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit.enabled", false)
	v.SetDefault("server.rate_limit.rps", 50.0)
	v.SetDefault("server.rate_limit.burst", 100)

	// Report store defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "/data/app.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "dicom_viewer")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Report table defaults. metadata_columns is the exclusion set for
	// finding-column discovery; it must stay disjoint from finding names.
	v.SetDefault("reports.table", "reports")
	v.SetDefault("reports.study_id_column", "studyID")
	v.SetDefault("reports.text_column", "clean_report_text")
	v.SetDefault("reports.metadata_columns", []string{
		"clean_report_text", "studyID", "age", "views", "study_date",
		"regex_labels", "report_text", "report_path", "llm_labels",
	})

	// Metadata source defaults. Candidates are ordered by priority.
	v.SetDefault("metadata.sources", []string{})
	v.SetDefault("metadata.mapping_path", "")
	v.SetDefault("metadata.study_uid_candidates", []string{
		"StudyInstanceUID", "studyID", "study_id", "anon_study_uid", "StudyUID",
	})

	// Identity mapping defaults
	v.SetDefault("identity.real_candidates", []string{
		"real_study_uid", "original_study_uid", "phi_study_uid", "real_uid", "phi",
	})
	v.SetDefault("identity.anon_candidates", []string{
		"anon_study_uid", "anonymized_study_uid", "anon_uid", "anon",
	})

	// File resolution defaults
	v.SetDefault("resolve.roots", []string{"/data/dicoms"})
	v.SetDefault("resolve.path_candidates", []string{"file_path", "dicom_path", "path"})
	v.SetDefault("resolve.instance_uid_candidates", []string{
		"SOPInstanceUID", "sop_instance_uid", "instance_uid", "objectID",
	})

	// Pagination defaults
	v.SetDefault("pagination.default_page_size", 50)
	v.SetDefault("pagination.max_page_size", 500)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns report-store connection configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	m.viper = viper.New()
	return m.loadConfig("")
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Database.Driver {
	case "sqlite":
		if config.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required for postgres")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required for postgres")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", config.Database.Driver)
	}

	if config.Reports.Table == "" {
		return fmt.Errorf("report table name is required")
	}
	if config.Reports.StudyIDColumn == "" {
		return fmt.Errorf("report study identifier column is required")
	}
	if config.Reports.TextColumn == "" {
		return fmt.Errorf("report text column is required")
	}

	if config.Pagination.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive")
	}
	if config.Pagination.MaxPageSize < config.Pagination.DefaultPageSize {
		return fmt.Errorf("max page size %d is below the default page size %d",
			config.Pagination.MaxPageSize, config.Pagination.DefaultPageSize)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
