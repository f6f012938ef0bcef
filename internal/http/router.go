package http

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.ngs.io/tidefit/internal/usecase"
)

// requestIDHeader carries the per-request correlation ID.
const requestIDHeader = "X-Request-ID"

// SetupRouter creates and configures the Gin router.
func SetupRouter(analysisUC *usecase.AnalysisUseCase, registry *prometheus.Registry) *gin.Engine {
	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable.
	// Default to allow all origins if not specified.
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}

	router.Use(cors.New(corsConfig))
	router.Use(requestID())

	// Create handler.
	handler := NewHandler(analysisUC)

	// API v1 routes.
	v1 := router.Group("/v1")
	analysis := v1.Group("/analysis")
	analysis.POST("/fit", handler.Fit)
	analysis.POST("/reconstruct", handler.Reconstruct)

	v1.GET("/constituents", handler.GetConstituents)
	v1.GET("/series", handler.ListSeries)

	// Health check and metrics.
	router.GET("/health", handler.HealthCheck)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return router
}

// requestID echoes the caller's correlation ID or assigns a fresh one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set("request_id", id)
		c.Next()
	}
}
