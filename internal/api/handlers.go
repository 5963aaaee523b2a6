package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dicom-viewer-api/internal/domain"
)

const defaultUIDListLimit = 1000

// handleRoot handles the welcome endpoint
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the DICOM Viewer API",
		"version": apiVersion,
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.service.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unavailable",
			"error":     err.Error(),
			"code":      domain.CodeFor(err),
			"timestamp": time.Now().UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   apiVersion,
	})
}

// handleFindings returns the sorted finding column names.
func (s *Server) handleFindings(c *gin.Context) {
	findings, err := s.service.ListFindingColumns(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, findings)
}

// handleListStudies returns the paginated, optionally filtered study listing.
func (s *Server) handleListStudies(c *gin.Context) {
	finding := c.Query("finding")
	value := c.Query("value")
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 0)

	studies, err := s.service.ListStudies(c.Request.Context(), finding, value, page, pageSize)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, studies)
}

// handleCountStudies returns the study count under the same filter semantics
// as the listing.
func (s *Server) handleCountStudies(c *gin.Context) {
	count, err := s.service.CountStudies(c.Request.Context(), c.Query("finding"), c.Query("value"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// handleStudyUIDs returns distinct study identifiers from the metadata
// sources plus the detected identifier column name.
func (s *Server) handleStudyUIDs(c *gin.Context) {
	limit := intQuery(c, "limit", defaultUIDListLimit)

	uids, err := s.service.ListDistinctStudyIDs(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, uids)
}

// handleStudyMetadata returns every metadata row for one study, translated
// through the identity mapping when one applies.
func (s *Server) handleStudyMetadata(c *gin.Context) {
	meta, err := s.service.ResolveStudyMetadata(c.Request.Context(), c.Param("studyID"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// handleInstanceFile streams the instance's DICOM file.
func (s *Server) handleInstanceFile(c *gin.Context) {
	path, err := s.service.ResolveInstanceFile(c.Request.Context(), c.Param("instanceID"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Type", "application/dicom")
	c.File(path)
}

// handleAddStudy inserts a demonstration study row.
func (s *Server) handleAddStudy(c *gin.Context) {
	var study domain.DemoStudy
	if err := c.ShouldBindJSON(&study); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := s.service.AddStudy(c.Request.Context(), &study); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// respondError maps a core error onto its HTTP status and envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
	}
	c.JSON(status, domain.NewAPIError(domain.CodeFor(err), err.Error(), c.GetString("correlation_id")))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidColumn):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// intQuery parses an integer query parameter, falling back to def on absent
// or malformed values; range clamping happens in the service layer.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
