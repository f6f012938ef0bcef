// Package config loads service settings from a YAML file with optional
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the analysis service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
}

// DataConfig locates observation stores served through the API.
type DataConfig struct {
	// Dir is the root directory for CSV observation series.
	Dir string `yaml:"dir"`
	// NetCDFDir is the root directory for NetCDF observation series.
	NetCDFDir string `yaml:"netcdfDir"`
}

// LimitsConfig bounds request sizes to keep fits tractable.
type LimitsConfig struct {
	// MaxObservations caps the number of samples accepted per fit.
	MaxObservations int `yaml:"maxObservations"`
	// MaxReconstructSteps caps the number of output time steps.
	MaxReconstructSteps int `yaml:"maxReconstructSteps"`
	// MaxMonteCarlo caps the resampling count a request may ask for.
	MaxMonteCarlo int `yaml:"maxMonteCarlo"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TIDEFIT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			GracefulTimeout: 10 * time.Second,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
		},
		Data: DataConfig{
			Dir:       "./data",
			NetCDFDir: "./data/ncdf",
		},
		Limits: LimitsConfig{
			MaxObservations:     500_000,
			MaxReconstructSteps: 1_000_000,
			MaxMonteCarlo:       2_000,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIDEFIT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("TIDEFIT_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("TIDEFIT_NETCDF_DIR"); v != "" {
		cfg.Data.NetCDFDir = v
	}
	if v := os.Getenv("TIDEFIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TIDEFIT_LOG_FORMAT"); strings.EqualFold(v, "json") {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("TIDEFIT_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
}
