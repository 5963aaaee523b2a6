// Package api hosts the HTTP surface over the service facade: route setup,
// request decoding, and the mapping from the core error taxonomy to response
// statuses.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/middleware"
	"github.com/dicom-viewer-api/internal/service"
)

const apiVersion = "0.1.0"

// Server represents the HTTP server
type Server struct {
	cfg     *domain.Config
	service *service.Service
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, svc *service.Service, logger *logrus.Logger) *Server {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit))

	server := &Server{
		cfg:     cfg,
		service: svc,
		logger:  logger,
		router:  router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/findings", s.handleFindings)

	studies := s.router.Group("/studies")
	{
		studies.GET("", s.handleListStudies)
		studies.POST("", s.handleAddStudy)
		studies.GET("/count", s.handleCountStudies)
		studies.GET("/uids", s.handleStudyUIDs)
		studies.GET("/:studyID/metadata", s.handleStudyMetadata)
	}

	s.router.GET("/instances/:instanceID/file", s.handleInstanceFile)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
