// Package usecase orchestrates harmonic analysis requests: input
// validation, observation loading, the fit itself and reconstruction.
package usecase

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.ngs.io/tidefit/harmonic"
	"go.ngs.io/tidefit/internal/adapter/store"
	"go.ngs.io/tidefit/internal/config"
	"go.ngs.io/tidefit/internal/metrics"
	"go.ngs.io/tidefit/internal/timeconv"
)

// AnalysisUseCase runs harmonic fits against inline or stored series.
type AnalysisUseCase struct {
	csvStore  store.ObservationLoader
	ncdfStore store.ObservationLoader
	limits    config.LimitsConfig
	logger    *slog.Logger
}

// NewAnalysisUseCase creates a new analysis use case.
func NewAnalysisUseCase(csvStore, ncdfStore store.ObservationLoader, limits config.LimitsConfig, logger *slog.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{
		csvStore:  csvStore,
		ncdfStore: ncdfStore,
		limits:    limits,
		logger:    logger,
	}
}

// FitRequest encapsulates a harmonic fit request. Observations come
// either inline (Times/Values) or from a named series in a store; the
// two forms are mutually exclusive.
type FitRequest struct {
	// Inline observations. Times are RFC3339; empty Values cells are not
	// representable here, use NaN for gaps.
	Times   []string  `json:"times,omitempty"`
	Values  []float64 `json:"values,omitempty"`
	Values2 []float64 `json:"values2,omitempty"`

	// Stored series.
	Series string `json:"series,omitempty"`
	Source string `json:"source,omitempty"` // "csv" or "netcdf"; default "csv".

	// Latitude in degrees. Required unless the stored series carries one.
	Latitude *float64 `json:"latitude,omitempty"`

	Options FitOptions `json:"options"`
}

// FitOptions is the JSON-facing mirror of the engine options. Absent
// fields keep engine defaults.
type FitOptions struct {
	Constituents []string            `json:"constituents,omitempty"`
	RayleighMin  *float64            `json:"rayleigh_min,omitempty"`
	Trend        *bool               `json:"trend,omitempty"`
	Method       string              `json:"method,omitempty"`   // "ols", "robust".
	ConfInt      string              `json:"conf_int,omitempty"` // "linear", "montecarlo", "none".
	Phase        string              `json:"phase,omitempty"`    // "greenwich", "linear", "raw".
	Nodal        string              `json:"nodal,omitempty"`    // "full", "linear", "none".
	OrderBy      string              `json:"order_by,omitempty"` // "pe", "snr", "frequency", "names".
	White        *bool               `json:"white,omitempty"`
	MonteCarloN  *int                `json:"monte_carlo_n,omitempty"`
	RobustWeight string              `json:"robust_weight,omitempty"` // "cauchy", "huber", "bisquare".
	Infer        *harmonic.Inference `json:"infer,omitempty"`
}

// FitResponse carries the fitted coefficients and run metadata.
type FitResponse struct {
	Coef *harmonic.Coef `json:"coef"`

	Observations int    `json:"observations"`
	Constituents int    `json:"constituents"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	SeriesName   string `json:"series_name,omitempty"`
}

// Validate checks if the request is valid.
func (r *FitRequest) Validate(limits config.LimitsConfig) error {
	hasInline := len(r.Times) > 0
	hasSeries := r.Series != ""

	if !hasInline && !hasSeries {
		return fmt.Errorf("either inline times/values or a series name must be provided")
	}
	if hasInline && hasSeries {
		return fmt.Errorf("inline observations and series name are mutually exclusive")
	}

	if hasInline {
		if len(r.Values) != len(r.Times) {
			return fmt.Errorf("values length %d does not match times length %d", len(r.Values), len(r.Times))
		}
		if r.Values2 != nil && len(r.Values2) != len(r.Times) {
			return fmt.Errorf("values2 length %d does not match times length %d", len(r.Values2), len(r.Times))
		}
		if r.Latitude == nil {
			return fmt.Errorf("latitude is required with inline observations")
		}
	}

	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return fmt.Errorf("latitude must be between -90 and 90")
	}

	if limits.MaxObservations > 0 && len(r.Times) > limits.MaxObservations {
		return fmt.Errorf("too many observations (%d), limit is %d", len(r.Times), limits.MaxObservations)
	}

	switch r.Source {
	case "", "csv", "netcdf":
	default:
		return fmt.Errorf("unknown source %q (use csv or netcdf)", r.Source)
	}

	_, err := r.Options.engineOptions(limits)
	return err
}

// Fit performs the harmonic analysis.
func (uc *AnalysisUseCase) Fit(req FitRequest) (*FitResponse, error) {
	start := time.Now()

	resp, err := uc.fit(req)
	outcome := metrics.OutcomeSuccess
	nc := 0
	if err != nil {
		outcome = metrics.OutcomeError
	} else {
		nc = resp.Coef.NumConstituents()
	}
	metrics.ObserveFit(time.Since(start), outcome, nc)
	return resp, err
}

func (uc *AnalysisUseCase) fit(req FitRequest) (*FitResponse, error) {
	if err := req.Validate(uc.limits); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	start := time.Now()

	t, u, v, lat, err := uc.observations(req)
	if err != nil {
		return nil, err
	}
	if uc.limits.MaxObservations > 0 && len(t) > uc.limits.MaxObservations {
		return nil, fmt.Errorf("series too large (%d observations), limit is %d", len(t), uc.limits.MaxObservations)
	}

	opts, err := req.Options.engineOptions(uc.limits)
	if err != nil {
		return nil, err
	}

	coef, err := harmonic.Solve(t, u, v, lat, opts)
	if err != nil {
		return nil, fmt.Errorf("harmonic fit: %w", err)
	}

	uc.logger.Info("fit completed",
		"observations", len(t),
		"constituents", coef.NumConstituents(),
		"two_dim", coef.TwoDim,
		"degenerate", coef.Degenerate,
		"elapsed", time.Since(start))

	return &FitResponse{
		Coef:         coef,
		Observations: len(t),
		Constituents: coef.NumConstituents(),
		ElapsedMS:    time.Since(start).Milliseconds(),
		SeriesName:   req.Series,
	}, nil
}

// observations resolves the request into day-scale times, values and a
// latitude.
func (uc *AnalysisUseCase) observations(req FitRequest) (t, u, v []float64, lat float64, err error) {
	if req.Series != "" {
		source := req.Source
		if source == "" {
			source = "csv"
		}
		loader := uc.csvStore
		if source == "netcdf" {
			loader = uc.ncdfStore
		}
		if loader == nil {
			return nil, nil, nil, 0, fmt.Errorf("no %s store configured", source)
		}
		series, err := loader.Load(req.Series)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("failed to load series %s: %w", req.Series, err)
		}
		lat := series.Latitude
		if req.Latitude != nil {
			lat = *req.Latitude
		}
		if math.IsNaN(lat) {
			return nil, nil, nil, 0, fmt.Errorf("series %s carries no latitude; supply one in the request", req.Series)
		}
		return timeconv.SliceToDays(series.Times), series.U, series.V, lat, nil
	}

	t = make([]float64, len(req.Times))
	for i, s := range req.Times {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("invalid time at index %d: %w", i, err)
		}
		t[i] = timeconv.ToDays(ts.UTC())
	}
	return t, req.Values, req.Values2, *req.Latitude, nil
}

// engineOptions maps the JSON option strings onto the typed engine
// options, starting from engine defaults.
func (o *FitOptions) engineOptions(limits config.LimitsConfig) (harmonic.Options, error) {
	opts := harmonic.DefaultOptions()
	opts.Constituents = o.Constituents
	opts.Infer = o.Infer

	if o.RayleighMin != nil {
		opts.RayleighMin = *o.RayleighMin
	}
	if o.Trend != nil {
		opts.Trend = *o.Trend
	}
	if o.White != nil {
		opts.White = *o.White
	}
	if o.MonteCarloN != nil {
		if limits.MaxMonteCarlo > 0 && *o.MonteCarloN > limits.MaxMonteCarlo {
			return opts, fmt.Errorf("monte_carlo_n %d exceeds limit %d", *o.MonteCarloN, limits.MaxMonteCarlo)
		}
		opts.MonteCarloN = *o.MonteCarloN
	}

	switch o.Method {
	case "", "ols":
	case "robust":
		opts.Method = harmonic.Robust
	default:
		return opts, fmt.Errorf("unknown method %q", o.Method)
	}

	switch o.ConfInt {
	case "", "linear":
	case "montecarlo":
		opts.ConfInt = harmonic.ConfMonteCarlo
	case "none":
		opts.ConfInt = harmonic.ConfNone
	default:
		return opts, fmt.Errorf("unknown conf_int %q", o.ConfInt)
	}

	switch o.Phase {
	case "", "greenwich":
	case "linear":
		opts.Phase = harmonic.PhaseLinearTime
	case "raw":
		opts.Phase = harmonic.PhaseRaw
	default:
		return opts, fmt.Errorf("unknown phase %q", o.Phase)
	}

	switch o.Nodal {
	case "", "full":
	case "linear":
		opts.Nodal = harmonic.NodalLinearTime
	case "none":
		opts.Nodal = harmonic.NodalNone
	default:
		return opts, fmt.Errorf("unknown nodal %q", o.Nodal)
	}

	switch o.OrderBy {
	case "", "pe":
	case "snr":
		opts.OrderBy = harmonic.OrderSNR
	case "frequency":
		opts.OrderBy = harmonic.OrderFrequency
	case "names":
		opts.OrderBy = harmonic.OrderNames
	default:
		return opts, fmt.Errorf("unknown order_by %q", o.OrderBy)
	}

	switch o.RobustWeight {
	case "", "cauchy":
	case "huber":
		opts.RobustWeight = harmonic.WeightHuber
	case "bisquare":
		opts.RobustWeight = harmonic.WeightBisquare
	default:
		return opts, fmt.Errorf("unknown robust_weight %q", o.RobustWeight)
	}

	return opts, nil
}

// ListSeries returns the names of stored series per source.
func (uc *AnalysisUseCase) ListSeries() (map[string][]string, error) {
	out := make(map[string][]string)
	if uc.csvStore != nil {
		names, err := uc.csvStore.List()
		if err != nil {
			return nil, fmt.Errorf("list csv series: %w", err)
		}
		out["csv"] = names
	}
	if uc.ncdfStore != nil {
		names, err := uc.ncdfStore.List()
		if err != nil {
			return nil, fmt.Errorf("list netcdf series: %w", err)
		}
		out["netcdf"] = names
	}
	return out, nil
}
