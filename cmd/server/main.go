package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dicom-viewer-api/internal/api"
	"github.com/dicom-viewer-api/internal/config"
	"github.com/dicom-viewer-api/internal/database"
	"github.com/dicom-viewer-api/internal/identity"
	"github.com/dicom-viewer-api/internal/logging"
	"github.com/dicom-viewer-api/internal/repository"
	"github.com/dicom-viewer-api/internal/resolve"
	"github.com/dicom-viewer-api/internal/service"
	"github.com/dicom-viewer-api/internal/source"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.NewLogger(cfg.Logging)
	logger.WithField("addr", cfg.Server.Host).WithField("port", cfg.Server.Port).
		Info("Starting DICOM Viewer API")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the report store
	db, err := database.Open(ctx, &cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open report store")
	}
	defer db.Close()

	store, err := repository.NewStore(db, repository.Names{
		Table:   cfg.Reports.Table,
		StudyID: cfg.Reports.StudyIDColumn,
		Text:    cfg.Reports.TextColumn,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build report store")
	}

	// Metadata sources are accessed by reference; a missing file surfaces per
	// request, not at startup.
	sources := make([]source.Source, 0, len(cfg.Metadata.Sources))
	for _, path := range cfg.Metadata.Sources {
		src, err := source.Open(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Fatal("Unsupported metadata source")
		}
		sources = append(sources, src)
	}

	var mappingSrc source.Source
	if cfg.Metadata.MappingPath != "" {
		mappingSrc, err = source.Open(cfg.Metadata.MappingPath)
		if err != nil {
			logger.WithError(err).WithField("path", cfg.Metadata.MappingPath).Fatal("Unsupported mapping source")
		}
	}

	mapper := identity.NewMapper(mappingSrc, cfg.Identity, logger)
	resolver := resolve.NewResolver(cfg.Resolve, sources, logger)
	svc := service.NewService(logger, store, sources, mapper, resolver, cfg)

	server := api.NewServer(cfg, svc, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
