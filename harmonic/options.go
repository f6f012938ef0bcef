package harmonic

import (
	"fmt"

	"go.ngs.io/tidefit/internal/lsq"
)

// ConfMethod selects how confidence intervals are estimated.
type ConfMethod int

const (
	// ConfLinear uses the linearized covariance of the least-squares
	// solution, with residual spectra band-averaged around each
	// constituent. The default.
	ConfLinear ConfMethod = iota
	// ConfMonteCarlo resamples the residuals and refits.
	ConfMonteCarlo
	// ConfNone skips confidence intervals entirely.
	ConfNone
)

// String implements fmt.Stringer.
func (c ConfMethod) String() string {
	switch c {
	case ConfLinear:
		return "linear"
	case ConfMonteCarlo:
		return "montecarlo"
	case ConfNone:
		return "none"
	default:
		return fmt.Sprintf("ConfMethod(%d)", int(c))
	}
}

// Method selects the coefficient estimator.
type Method int

const (
	// OLS is ordinary least squares. The default.
	OLS Method = iota
	// Robust is iteratively reweighted least squares. Scalar series only.
	Robust
)

// String implements fmt.Stringer.
func (m Method) String() string {
	if m == Robust {
		return "robust"
	}
	return "ols"
}

// Phase selects the phase-lag convention of the fitted coefficients.
type Phase int

const (
	// PhaseGreenwich evaluates the equilibrium argument at every time
	// step, yielding Greenwich phase lags. The default.
	PhaseGreenwich Phase = iota
	// PhaseLinearTime anchors the equilibrium argument at the reference
	// time and extrapolates linearly.
	PhaseLinearTime
	// PhaseRaw reports phase lags relative to the reference time.
	PhaseRaw
)

// NodalMode selects how nodal/satellite modulation enters the basis.
type NodalMode int

const (
	// NodalFull evaluates the modulation at every time step. The default.
	NodalFull NodalMode = iota
	// NodalLinearTime anchors the modulation at the reference time.
	NodalLinearTime
	// NodalNone disables the modulation.
	NodalNone
)

// Order selects the constituent ordering of the returned coefficients.
type Order int

const (
	// OrderPE sorts by descending percent energy. The default.
	OrderPE Order = iota
	// OrderSNR sorts by descending signal-to-noise ratio. Requires
	// confidence intervals.
	OrderSNR
	// OrderFrequency sorts by ascending frequency.
	OrderFrequency
	// OrderNames keeps the caller-supplied constituent order. Requires an
	// explicit constituent list covering the whole selection.
	OrderNames
)

// WeightFunction is the robust-fit weighting scheme.
type WeightFunction int

const (
	// WeightCauchy, w = 1/(1+r^2). The default.
	WeightCauchy WeightFunction = iota
	// WeightHuber, w = min(1, 1/r).
	WeightHuber
	// WeightBisquare, w = (1-r^2)^2 for r<1, else 0.
	WeightBisquare
)

func (w WeightFunction) internal() lsq.WeightFunction {
	switch w {
	case WeightHuber:
		return lsq.Huber
	case WeightBisquare:
		return lsq.Bisquare
	default:
		return lsq.Cauchy
	}
}

// Inference specifies constituents estimated from reference constituents
// via fixed amplitude ratios and phase offsets instead of being fit
// directly. AmpRatios and PhaseOffsets have length N for a scalar series
// or 2N for a two-component series (positive rotary parts first).
type Inference struct {
	InferredNames  []string  `json:"inferred_names" yaml:"inferred_names"`
	ReferenceNames []string  `json:"reference_names" yaml:"reference_names"`
	AmpRatios      []float64 `json:"amp_ratios" yaml:"amp_ratios"`
	PhaseOffsets   []float64 `json:"phase_offsets" yaml:"phase_offsets"` // Degrees.

	// Approximate collapses each inferred column onto its reference column
	// and unscrambles the fitted coefficient afterwards with a
	// sinc-weighted frequency-difference correction.
	Approximate bool `json:"approximate" yaml:"approximate"`
}

// Options configures a fit. The zero value is not usable; start from
// DefaultOptions and override fields.
type Options struct {
	// Constituents lists the constituents to fit. Nil selects
	// automatically from the catalog under the Rayleigh criterion.
	Constituents []string `json:"constituents,omitempty" yaml:"constituents,omitempty"`

	// RayleighMin scales the Rayleigh resolvability threshold used by
	// automatic selection, min separation = RayleighMin / record length.
	RayleighMin float64 `json:"rayleigh_min" yaml:"rayleigh_min"`

	// Trend includes a linear trend term alongside the mean.
	Trend bool `json:"trend" yaml:"trend"`

	Method Method     `json:"method" yaml:"method"`
	Phase  Phase      `json:"phase" yaml:"phase"`
	Nodal  NodalMode  `json:"nodal" yaml:"nodal"`
	Infer  *Inference `json:"infer,omitempty" yaml:"infer,omitempty"`

	ConfInt ConfMethod `json:"conf_int" yaml:"conf_int"`
	// White treats the residual spectrum as flat instead of
	// band-averaging a periodogram. Forced on for irregular sampling.
	White bool `json:"white" yaml:"white"`
	// MonteCarloN is the number of resampled refits for ConfMonteCarlo.
	MonteCarloN int `json:"monte_carlo_n" yaml:"monte_carlo_n"`

	// Robust estimator tuning. Zero values select per-function defaults.
	RobustWeight  WeightFunction `json:"robust_weight" yaml:"robust_weight"`
	RobustTune    float64        `json:"robust_tune" yaml:"robust_tune"`
	RobustMaxIter int            `json:"robust_max_iter" yaml:"robust_max_iter"`
	RobustTol     float64        `json:"robust_tol" yaml:"robust_tol"`

	OrderBy Order `json:"order_by" yaml:"order_by"`

	// Verbose enables debug logging of selection and solver progress.
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// DefaultOptions returns the standard configuration: automatic
// constituent selection, full nodal corrections, Greenwich phase lags,
// ordinary least squares with a trend term, and linearized confidence
// intervals with colored residual spectra.
func DefaultOptions() Options {
	return Options{
		RayleighMin: 1.0,
		Trend:       true,
		Method:      OLS,
		Phase:       PhaseGreenwich,
		Nodal:       NodalFull,
		ConfInt:     ConfLinear,
		White:       false,
		MonteCarloN: 200,
		OrderBy:     OrderPE,
		Verbose:     true,
	}
}

func (o *Options) validate(twoDim bool) error {
	if o.RayleighMin <= 0 {
		return fmt.Errorf("%w: rayleigh_min must be positive", ErrInvalidConfiguration)
	}
	if o.ConfInt == ConfMonteCarlo && o.MonteCarloN < 2 {
		return fmt.Errorf("%w: monte_carlo_n must be at least 2", ErrInvalidConfiguration)
	}
	if o.OrderBy == OrderSNR && o.ConfInt == ConfNone {
		return fmt.Errorf("%w: ordering by SNR requires confidence intervals", ErrInvalidConfiguration)
	}
	if o.OrderBy == OrderNames && o.Constituents == nil {
		return fmt.Errorf("%w: ordering by names requires an explicit constituent list", ErrInvalidConfiguration)
	}
	if o.Method == Robust && twoDim {
		return fmt.Errorf("%w: robust fitting of two-component series", ErrNotSupported)
	}
	return nil
}

func (o *Options) robust() lsq.RobustOptions {
	return lsq.RobustOptions{
		Weight:  o.RobustWeight.internal(),
		Tune:    o.RobustTune,
		MaxIter: o.RobustMaxIter,
		Tol:     o.RobustTol,
	}
}
