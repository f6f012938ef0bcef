// Package http exposes the analysis engine over a JSON API.
package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/tidefit/harmonic"
	"go.ngs.io/tidefit/internal/catalog"
	"go.ngs.io/tidefit/internal/usecase"
)

// Handler handles HTTP requests for harmonic analysis.
type Handler struct {
	analysisUC *usecase.AnalysisUseCase
}

// NewHandler creates a new HTTP handler.
func NewHandler(analysisUC *usecase.AnalysisUseCase) *Handler {
	return &Handler{analysisUC: analysisUC}
}

// Fit handles POST /v1/analysis/fit.
func (h *Handler) Fit(c *gin.Context) {
	var req usecase.FitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	resp, err := h.analysisUC.Fit(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reconstruct handles POST /v1/analysis/reconstruct.
func (h *Handler) Reconstruct(c *gin.Context) {
	var req usecase.ReconstructRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	resp, err := h.analysisUC.Reconstruct(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConstituentInfo describes one catalog entry.
type ConstituentInfo struct {
	Name          string  `json:"name"`
	SpeedDegPerHr float64 `json:"speed_deg_per_hr"`
	Shallow       bool    `json:"shallow"`
}

// GetConstituents handles GET /v1/constituents.
func (h *Handler) GetConstituents(c *gin.Context) {
	entries := catalog.Entries
	response := make([]ConstituentInfo, len(entries))
	for i, e := range entries {
		response[i] = ConstituentInfo{
			Name:          e.Name,
			SpeedDegPerHr: e.SpeedDegPerHr,
			Shallow:       e.IsShallow(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"constituents": response,
		"count":        len(response),
	})
}

// ListSeries handles GET /v1/series.
func (h *Handler) ListSeries(c *gin.Context) {
	series, err := h.analysisUC.ListSeries()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps engine and validation errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, harmonic.ErrInvalidInput),
		errors.Is(err, harmonic.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, harmonic.ErrNotSupported):
		return http.StatusUnprocessableEntity
	case strings.Contains(err.Error(), "invalid request"):
		return http.StatusBadRequest
	case strings.Contains(err.Error(), "failed to load series"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
