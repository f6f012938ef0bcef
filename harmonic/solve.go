// Package harmonic fits tidal harmonic constituents to scalar or
// two-component observation series by least squares and reconstructs
// series from the fitted coefficients.
package harmonic

import (
	"fmt"
	"log/slog"
	"math"

	"go.ngs.io/tidefit/internal/ellipse"
	"go.ngs.io/tidefit/internal/harmonics"
	"go.ngs.io/tidefit/internal/lsq"
	"go.ngs.io/tidefit/internal/selection"
)

// fitState carries the solved system between the solver stages.
type fitState struct {
	d   *design
	sel *selection.Selection

	t       []float64 // Valid time steps, MJD days.
	x       []complex128
	xmod    []complex128
	e       []complex128 // Weighted residuals.
	m       []complex128
	W       []float64
	ap, am  []complex128 // NR then R, before inferred expansion.
	lor     float64      // Days.
	tref    float64
	equi    bool
	twoDim  bool
	verbose bool
}

// Solve fits tidal constituents to the series u, sampled at times t
// (days on the MJD scale), at the given latitude in degrees. Pass a
// second component v for current ellipses, or nil for a scalar series.
// Non-finite times and values are masked out; at least two valid
// observations per fitted coefficient must remain.
func Solve(t, u, v []float64, lat float64, opts Options) (*Coef, error) {
	twoDim := v != nil
	if err := opts.validate(twoDim); err != nil {
		return nil, err
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("%w: empty time vector", ErrInvalidInput)
	}
	if len(u) != len(t) {
		return nil, fmt.Errorf("%w: %d values vs %d times", ErrInvalidInput, len(u), len(t))
	}
	if twoDim && len(v) != len(t) {
		return nil, fmt.Errorf("%w: %d second-component values vs %d times", ErrInvalidInput, len(v), len(t))
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, lat)
	}

	st, err := maskAndCenter(t, u, v, twoDim)
	if err != nil {
		return nil, err
	}
	st.verbose = opts.Verbose

	sel, err := selection.Select(st.tref, st.lor, opts.RayleighMin, opts.Constituents, toSelectionInfer(opts.Infer), twoDim)
	if err != nil {
		return nil, err
	}
	st.sel = sel
	if st.verbose {
		slog.Debug("constituent selection",
			"directly_fit", sel.NNR(), "references", sel.NR(), "inferred", sel.NI(),
			"record_days", st.lor, "equal_spaced", st.equi)
	}

	flags := harmonics.Flags{NodSat: nodalFidelity(opts.Nodal), Gwch: phaseFidelity(opts.Phase)}
	st.d = buildDesign(sel, st.t, st.tref, st.lor, lat, flags, opts.Trend)
	if len(st.t) < 2*st.d.nm() {
		return nil, fmt.Errorf("%w: %d valid observations for %d coefficients",
			ErrInvalidInput, len(st.t), st.d.nm())
	}

	if err := st.estimate(opts); err != nil {
		return nil, err
	}

	coef := st.assemble(lat, opts)

	if !coef.Degenerate && opts.ConfInt != ConfNone {
		if twoDim {
			coef.ConfIntOmitted = true
		} else if err := estimateConfidence(coef, st, opts); err != nil {
			return nil, err
		}
	}

	if !coef.Degenerate && !twoDim {
		computeDiagnostics(coef)
		applyOrder(coef, opts)
	}

	return coef, nil
}

// maskAndCenter drops non-finite samples and derives the record length
// and reference time. Equal spacing is judged on the valid time grid
// before value masking, matching the spectral estimator's needs.
func maskAndCenter(t, u, v []float64, twoDim bool) (*fitState, error) {
	n := len(t)
	tv := make([]float64, 0, n)
	uv := make([]float64, 0, n)
	vv := make([]float64, 0, n)
	for i := range n {
		if !finite(t[i]) {
			continue
		}
		tv = append(tv, t[i])
		uv = append(uv, u[i])
		if twoDim {
			vv = append(vv, v[i])
		}
	}
	if len(tv) < 2 {
		return nil, fmt.Errorf("%w: fewer than two valid time steps", ErrInvalidInput)
	}

	equi := equalSpaced(tv)

	st := &fitState{twoDim: twoDim, equi: equi}
	for i := range tv {
		if !finite(uv[i]) || (twoDim && !finite(vv[i])) {
			continue
		}
		st.t = append(st.t, tv[i])
		if twoDim {
			st.x = append(st.x, complex(uv[i], vv[i]))
		} else {
			st.x = append(st.x, complex(uv[i], 0))
		}
	}
	if len(st.t) < 2 {
		return nil, fmt.Errorf("%w: fewer than two valid observations", ErrInvalidInput)
	}

	// On a uniform grid the record is framed by the time vector itself so
	// that gaps in the values do not shift the reference time.
	if equi {
		st.lor = tv[len(tv)-1] - tv[0]
		st.tref = 0.5 * (tv[0] + tv[len(tv)-1])
	} else {
		st.lor = st.t[len(st.t)-1] - st.t[0]
		st.tref = 0.5 * (st.t[0] + st.t[len(st.t)-1])
	}
	if st.lor <= 0 {
		return nil, fmt.Errorf("%w: record length must be positive", ErrInvalidInput)
	}
	return st, nil
}

// estimate solves the assembled system and derives coefficient slots,
// model values and weighted residuals.
func (st *fitState) estimate(opts Options) error {
	nt := len(st.t)
	switch opts.Method {
	case Robust:
		res, err := lsq.RobustFit(st.d.B, st.x, opts.robust())
		if err != nil {
			return fmt.Errorf("robust fit: %w", err)
		}
		st.m = res.Coef
		st.W = res.Weights
		if st.verbose {
			slog.Debug("robust fit finished",
				"iterations", res.Iterations, "converged", res.Converged, "scale", res.Scale)
		}
	default:
		m, err := lsq.LeastSquares(st.d.B, st.x)
		if err != nil {
			return fmt.Errorf("least squares: %w", err)
		}
		st.m = m
		st.W = make([]float64, nt)
		for i := range st.W {
			st.W[i] = 1.0
		}
	}

	st.xmod = make([]complex128, nt)
	st.e = make([]complex128, nt)
	for i := range nt {
		var fit complex128
		for j, b := range st.d.B[i] {
			fit += b * st.m[j]
		}
		if !st.twoDim {
			fit = complex(real(fit), 0)
		}
		st.xmod[i] = fit
		st.e[i] = complex(st.W[i], 0) * (st.x[i] - fit)
	}

	nNR, nR := st.d.nNR, st.d.nR
	st.ap = make([]complex128, 0, nNR+nR)
	st.am = make([]complex128, 0, nNR+nR)
	st.ap = append(st.ap, st.m[:nNR]...)
	st.ap = append(st.ap, st.m[2*nNR:2*nNR+nR]...)
	st.am = append(st.am, st.m[nNR:2*nNR]...)
	st.am = append(st.am, st.m[2*nNR+nR:2*nNR+2*nR]...)

	// Collapsed inferred columns leak inferred energy into the reference
	// coefficients; divide it back out.
	for k := range st.d.corrP {
		st.ap[nNR+k] /= st.d.corrP[k]
		st.am[nNR+k] /= st.d.corrM[k]
	}
	return nil
}

// assemble converts the coefficient slots into the public result,
// expanding inferred constituents from their references.
func (st *fitState) assemble(lat float64, opts Options) *Coef {
	sel := st.sel
	nNR := st.d.nNR

	ap := append([]complex128(nil), st.ap...)
	am := append([]complex128(nil), st.am...)
	for k, ref := range sel.R {
		for j := range ref.Inferred.Indices {
			ap = append(ap, ref.Inferred.Rp[j]*st.ap[nNR+k])
			am = append(am, ref.Inferred.Rm[j]*st.am[nNR+k])
		}
	}
	p := ellipse.FromCoefficients(ap, am, st.twoDim)

	coef := &Coef{
		Names:    sel.AllNames(),
		TwoDim:   st.twoDim,
		HasTrend: st.d.hasTrend,
		Weights:  st.W,
		Aux: Aux{
			Frequencies:    sel.AllFrequencies(),
			CatalogIndices: sel.AllIndices(),
			RefTime:        st.tref,
			RecordLength:   st.lor,
			Latitude:       lat,
			EqualSpaced:    st.equi,
			Opt:            opts,
		},
	}
	if st.twoDim {
		coef.Lsmaj = p.Lsmaj
		coef.Lsmin = p.Lsmin
		coef.Theta = p.Theta
		coef.Phase = p.G
	} else {
		coef.Amplitude = p.Lsmaj
		coef.Phase = p.G
	}

	mean := st.m[st.d.meanCol()]
	coef.Mean = real(mean)
	if st.twoDim {
		coef.VMean = imag(mean)
	}
	if st.d.hasTrend {
		// The trend column is scaled by the record length, so the raw
		// coefficient is change over the record, not per day.
		slope := st.m[st.d.trendCol()]
		coef.Slope = real(slope) / st.lor
		if st.twoDim {
			coef.VSlope = imag(slope) / st.lor
		}
	}

	coef.Degenerate = !lsq.Finite(st.m)
	coef.DiagnosticsOmitted = st.twoDim || coef.Degenerate
	return coef
}

func toSelectionInfer(in *Inference) *selection.Inference {
	if in == nil {
		return nil
	}
	return &selection.Inference{
		InferredNames:  in.InferredNames,
		ReferenceNames: in.ReferenceNames,
		AmpRatios:      in.AmpRatios,
		PhaseOffsets:   in.PhaseOffsets,
		Approximate:    in.Approximate,
	}
}

func nodalFidelity(m NodalMode) harmonics.Fidelity {
	switch m {
	case NodalLinearTime:
		return harmonics.LinearTime
	case NodalNone:
		return harmonics.None
	default:
		return harmonics.Full
	}
}

func phaseFidelity(p Phase) harmonics.Fidelity {
	switch p {
	case PhaseLinearTime:
		return harmonics.LinearTime
	case PhaseRaw:
		return harmonics.None
	default:
		return harmonics.Full
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// equalSpaced reports whether the time grid is uniform to within a
// relative tolerance of the first step.
func equalSpaced(t []float64) bool {
	if len(t) < 3 {
		return true
	}
	dt := t[1] - t[0]
	if dt <= 0 {
		return false
	}
	tol := 1e-6 * dt
	for i := 2; i < len(t); i++ {
		if math.Abs((t[i]-t[i-1])-dt) > tol {
			return false
		}
	}
	return true
}
