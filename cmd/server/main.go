// Package main provides the harmonic analysis HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"go.ngs.io/tidefit/internal/adapter/store/csv"
	"go.ngs.io/tidefit/internal/adapter/store/ncdf"
	"go.ngs.io/tidefit/internal/config"
	httpHandler "go.ngs.io/tidefit/internal/http"
	"go.ngs.io/tidefit/internal/logging"
	"go.ngs.io/tidefit/internal/metrics"
	"go.ngs.io/tidefit/internal/usecase"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		fmt.Printf("tidefit server version %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	csvStore := csv.NewStore(cfg.Data.Dir)
	ncdfStore := ncdf.NewStore(cfg.Data.NetCDFDir)

	analysisUC := usecase.NewAnalysisUseCase(csvStore, ncdfStore, cfg.Limits, logger)
	router := httpHandler.SetupRouter(analysisUC, registry)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening",
			"address", cfg.Server.Address,
			"data_dir", cfg.Data.Dir,
			"netcdf_dir", cfg.Data.NetCDFDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "graceful_timeout", cfg.Server.GracefulTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("tidefit analysis server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -config PATH   Path to YAML config file")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  TIDEFIT_CONFIG          Config file path (alternative to -config)")
	fmt.Println("  TIDEFIT_SERVER_ADDRESS  Listen address (default: :8080)")
	fmt.Println("  PORT                    Listen port shorthand")
	fmt.Println("  TIDEFIT_DATA_DIR        CSV observation directory (default: ./data)")
	fmt.Println("  TIDEFIT_NETCDF_DIR      NetCDF observation directory (default: ./data/ncdf)")
	fmt.Println("  TIDEFIT_LOG_LEVEL       debug, info, warn, error (default: info)")
	fmt.Println("  TIDEFIT_LOG_FORMAT      Set to json for JSON logs")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated allowed origins (default: all)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  POST /v1/analysis/fit")
	fmt.Println("  POST /v1/analysis/reconstruct")
	fmt.Println("  GET  /v1/constituents")
	fmt.Println("  GET  /v1/series")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /metrics")
}
