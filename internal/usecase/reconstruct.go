package usecase

import (
	"fmt"
	"time"

	"go.ngs.io/tidefit/harmonic"
	"go.ngs.io/tidefit/internal/metrics"
	"go.ngs.io/tidefit/internal/timeconv"
)

// ReconstructRequest evaluates a fitted model over a time range or at
// explicit time steps. Range and explicit times are mutually exclusive.
type ReconstructRequest struct {
	Coef *harmonic.Coef `json:"coef"`

	// Range form.
	Start    string `json:"start,omitempty"`    // RFC3339.
	End      string `json:"end,omitempty"`      // RFC3339.
	Interval string `json:"interval,omitempty"` // Go duration, default "10m".

	// Explicit form.
	Times []string `json:"times,omitempty"`

	// Constituent subset and thresholds, mapped onto the engine options.
	Constituents []string `json:"constituents,omitempty"`
	MinSNR       *float64 `json:"min_snr,omitempty"`
	MinPE        *float64 `json:"min_pe,omitempty"`

	// IncludeExtrema adds interpolated highs and lows (scalar fits only).
	IncludeExtrema bool `json:"include_extrema,omitempty"`
}

// SeriesPoint is one reconstructed sample.
type SeriesPoint struct {
	Time   string   `json:"time"`
	Value  float64  `json:"value"`
	Value2 *float64 `json:"value2,omitempty"`
}

// ExtremaResponse contains interpolated highs and lows.
type ExtremaResponse struct {
	Highs []SeriesPoint `json:"highs"`
	Lows  []SeriesPoint `json:"lows"`
}

// ReconstructResponse carries the reconstructed series.
type ReconstructResponse struct {
	Points       []SeriesPoint    `json:"points"`
	Constituents []string         `json:"constituents"`
	Extrema      *ExtremaResponse `json:"extrema,omitempty"`
	ElapsedMS    int64            `json:"elapsed_ms"`
}

// Validate checks if the request is valid.
func (r *ReconstructRequest) Validate() error {
	if r.Coef == nil {
		return fmt.Errorf("coef is required")
	}

	hasRange := r.Start != "" || r.End != ""
	hasTimes := len(r.Times) > 0

	if !hasRange && !hasTimes {
		return fmt.Errorf("either start/end or explicit times must be provided")
	}
	if hasRange && hasTimes {
		return fmt.Errorf("start/end and explicit times are mutually exclusive")
	}
	if hasRange && (r.Start == "" || r.End == "") {
		return fmt.Errorf("both start and end are required")
	}
	return nil
}

// Reconstruct evaluates the fitted model.
func (uc *AnalysisUseCase) Reconstruct(req ReconstructRequest) (*ReconstructResponse, error) {
	start := time.Now()

	resp, err := uc.reconstruct(req)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveReconstruction(time.Since(start), outcome)
	return resp, err
}

func (uc *AnalysisUseCase) reconstruct(req ReconstructRequest) (*ReconstructResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	start := time.Now()

	times, err := uc.timeSteps(req)
	if err != nil {
		return nil, err
	}

	opts := harmonic.DefaultReconstructOptions()
	opts.Constituents = req.Constituents
	if req.MinSNR != nil {
		opts.MinSNR = *req.MinSNR
	}
	if req.MinPE != nil {
		opts.MinPE = *req.MinPE
	}

	rec, err := harmonic.Reconstruct(timeconv.SliceToDays(times), req.Coef, opts)
	if err != nil {
		return nil, fmt.Errorf("reconstruction: %w", err)
	}

	points := make([]SeriesPoint, len(times))
	for i, ts := range times {
		points[i] = SeriesPoint{
			Time:  ts.UTC().Format(time.RFC3339),
			Value: rec.U[i],
		}
		if rec.V != nil {
			v := rec.V[i]
			points[i].Value2 = &v
		}
	}

	resp := &ReconstructResponse{
		Points:       points,
		Constituents: rec.Names,
		ElapsedMS:    time.Since(start).Milliseconds(),
	}

	if req.IncludeExtrema && !req.Coef.TwoDim {
		levels := make([]Level, len(times))
		for i, ts := range times {
			levels[i] = Level{Time: ts, Value: rec.U[i]}
		}
		ex := RefineExtrema(levels, FindExtrema(levels))
		resp.Extrema = &ExtremaResponse{
			Highs: toPoints(ex.Highs),
			Lows:  toPoints(ex.Lows),
		}
	}

	uc.logger.Info("reconstruction completed",
		"steps", len(times),
		"constituents", len(rec.Names),
		"elapsed", time.Since(start))
	return resp, nil
}

// timeSteps expands the request into concrete time steps.
func (uc *AnalysisUseCase) timeSteps(req ReconstructRequest) ([]time.Time, error) {
	if len(req.Times) > 0 {
		if uc.limits.MaxReconstructSteps > 0 && len(req.Times) > uc.limits.MaxReconstructSteps {
			return nil, fmt.Errorf("too many time steps (%d), limit is %d", len(req.Times), uc.limits.MaxReconstructSteps)
		}
		out := make([]time.Time, len(req.Times))
		for i, s := range req.Times {
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("invalid time at index %d: %w", i, err)
			}
			out[i] = ts.UTC()
		}
		return out, nil
	}

	startT, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start time (expected RFC3339): %w", err)
	}
	endT, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return nil, fmt.Errorf("invalid end time (expected RFC3339): %w", err)
	}
	if !startT.Before(endT) {
		return nil, fmt.Errorf("start time must be before end time")
	}

	intervalStr := req.Interval
	if intervalStr == "" {
		intervalStr = "10m"
	}
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid interval: %w", err)
	}
	if interval < time.Minute {
		return nil, fmt.Errorf("interval must be at least 1 minute")
	}

	n := int(endT.Sub(startT)/interval) + 1
	if uc.limits.MaxReconstructSteps > 0 && n > uc.limits.MaxReconstructSteps {
		return nil, fmt.Errorf("too many time steps (%d), reduce the range or increase the interval", n)
	}

	out := make([]time.Time, 0, n)
	for t := startT.UTC(); !t.After(endT); t = t.Add(interval) {
		out = append(out, t)
	}
	return out, nil
}

func toPoints(levels []Level) []SeriesPoint {
	out := make([]SeriesPoint, len(levels))
	for i, l := range levels {
		out[i] = SeriesPoint{
			Time:  l.Time.UTC().Format(time.RFC3339),
			Value: l.Value,
		}
	}
	return out
}
