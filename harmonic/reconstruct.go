package harmonic

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.ngs.io/tidefit/internal/ellipse"
	"go.ngs.io/tidefit/internal/harmonics"
)

// ReconstructOptions selects which fitted constituents enter a
// reconstruction.
type ReconstructOptions struct {
	// Constituents restricts the reconstruction to the named subset. Nil
	// means every constituent passing the thresholds; an empty non-nil
	// slice yields just the mean and trend.
	Constituents []string `json:"constituents,omitempty" yaml:"constituents,omitempty"`

	// MinSNR and MinPE drop weak constituents. They apply only when the
	// fit produced diagnostics; a nil SNR disables the SNR threshold.
	MinSNR float64 `json:"min_snr" yaml:"min_snr"`
	MinPE  float64 `json:"min_pe" yaml:"min_pe"`

	// PerStep evaluates one time step at a time instead of batching.
	// Results are identical; memory use is constant in the series length.
	PerStep bool `json:"per_step" yaml:"per_step"`
}

// DefaultReconstructOptions matches the fit-side defaults: keep
// constituents with SNR of at least 2.
func DefaultReconstructOptions() ReconstructOptions {
	return ReconstructOptions{MinSNR: 2}
}

// Reconstruction is a reconstructed series. V is nil for scalar fits.
// Time steps that were non-finite on input stay NaN in the outputs.
type Reconstruction struct {
	T []float64 `json:"t"`
	U []float64 `json:"u"`
	V []float64 `json:"v,omitempty"`

	// Names lists the constituents that entered the sum; MinSNR and
	// MinPE echo the thresholds that produced it.
	Names  []string `json:"names"`
	MinSNR float64  `json:"min_snr"`
	MinPE  float64  `json:"min_pe"`
}

// Reconstruct evaluates the fitted model at the given times (days on the
// MJD scale) under the same nodal and phase conventions the fit used.
func Reconstruct(t []float64, coef *Coef, opts ReconstructOptions) (*Reconstruction, error) {
	if coef == nil {
		return nil, fmt.Errorf("%w: nil coefficient set", ErrInvalidInput)
	}
	if coef.Degenerate {
		return nil, fmt.Errorf("%w: degenerate fit cannot be reconstructed", ErrInvalidInput)
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("%w: empty time vector", ErrInvalidInput)
	}

	keep, err := selectSubset(coef, opts)
	if err != nil {
		return nil, err
	}
	if coef.Aux.Opt.Verbose {
		slog.Debug("reconstruction subset",
			"fitted", coef.NumConstituents(), "used", len(keep),
			"min_snr", opts.MinSNR, "min_pe", opts.MinPE)
	}

	rec := &Reconstruction{
		T:      t,
		U:      make([]float64, len(t)),
		Names:  make([]string, len(keep)),
		MinSNR: opts.MinSNR,
		MinPE:  opts.MinPE,
	}
	if coef.TwoDim {
		rec.V = make([]float64, len(t))
	}
	for i, k := range keep {
		rec.Names[i] = coef.Names[k]
	}

	// Valid time steps are evaluated; sentinels pass through as NaN.
	valid := make([]int, 0, len(t))
	tv := make([]float64, 0, len(t))
	for i, ti := range t {
		if finite(ti) {
			valid = append(valid, i)
			tv = append(tv, ti)
		} else {
			rec.U[i] = math.NaN()
			if rec.V != nil {
				rec.V[i] = math.NaN()
			}
		}
	}

	ap, am, indices := subsetCoefficients(coef, keep)
	flags := harmonics.Flags{
		NodSat: nodalFidelity(coef.Aux.Opt.Nodal),
		Gwch:   phaseFidelity(coef.Aux.Opt.Phase),
	}

	eval := func(ts []float64, out []complex128) {
		E := harmonics.Basis(ts, coef.Aux.RefTime, indices, coef.Aux.Latitude, flags)
		for i := range ts {
			var fit complex128
			for k := range indices {
				e := E[i][k]
				fit += e*ap[k] + complex(real(e), -imag(e))*am[k]
			}
			out[i] = fit
		}
	}

	fit := make([]complex128, len(tv))
	if opts.PerStep {
		one := make([]complex128, 1)
		for i, ti := range tv {
			eval([]float64{ti}, one)
			fit[i] = one[0]
		}
	} else {
		eval(tv, fit)
	}

	for i, idx := range valid {
		u := real(fit[i]) + coef.Mean
		var vval float64
		if coef.TwoDim {
			vval = imag(fit[i]) + coef.VMean
		}
		if coef.HasTrend {
			dt := tv[i] - coef.Aux.RefTime
			u += coef.Slope * dt
			if coef.TwoDim {
				vval += coef.VSlope * dt
			}
		}
		rec.U[idx] = u
		if rec.V != nil {
			rec.V[idx] = vval
		}
	}
	return rec, nil
}

// selectSubset resolves the constituent indices entering the sum.
func selectSubset(coef *Coef, opts ReconstructOptions) ([]int, error) {
	n := coef.NumConstituents()

	if opts.Constituents != nil {
		byName := make(map[string]int, n)
		for k, name := range coef.Names {
			byName[name] = k
		}
		keep := make([]int, 0, len(opts.Constituents))
		seen := make(map[int]bool)
		for _, name := range opts.Constituents {
			cn := strings.ToUpper(strings.TrimSpace(name))
			k, ok := byName[cn]
			if !ok {
				return nil, fmt.Errorf("%w: constituent %q not in fit", ErrInvalidConfiguration, name)
			}
			if !seen[k] {
				seen[k] = true
				keep = append(keep, k)
			}
		}
		return keep, nil
	}

	// Threshold filtering needs diagnostics; without them every
	// constituent is included.
	if coef.DiagnosticsOmitted || (opts.MinSNR <= 0 && opts.MinPE <= 0) {
		keep := make([]int, n)
		for k := range keep {
			keep[k] = k
		}
		return keep, nil
	}

	var keep []int
	for k := range n {
		if coef.SNR != nil && opts.MinSNR > 0 && coef.SNR[k] < opts.MinSNR {
			continue
		}
		if coef.PE != nil && opts.MinPE > 0 && coef.PE[k] < opts.MinPE {
			continue
		}
		keep = append(keep, k)
	}
	return keep, nil
}

// subsetCoefficients rebuilds the rotary coefficients for the kept
// constituents from the fitted physical parameters.
func subsetCoefficients(coef *Coef, keep []int) (ap, am []complex128, indices []int) {
	p := ellipse.Params{
		Lsmaj: make([]float64, len(keep)),
		Lsmin: make([]float64, len(keep)),
		Theta: make([]float64, len(keep)),
		G:     make([]float64, len(keep)),
	}
	indices = make([]int, len(keep))
	for i, k := range keep {
		if coef.TwoDim {
			p.Lsmaj[i] = coef.Lsmaj[k]
			p.Lsmin[i] = coef.Lsmin[k]
			p.Theta[i] = coef.Theta[k]
		} else {
			p.Lsmaj[i] = coef.Amplitude[k]
		}
		p.G[i] = coef.Phase[k]
		indices[i] = coef.Aux.CatalogIndices[k]
	}
	ap, am = ellipse.ToCoefficients(p, coef.TwoDim)
	return ap, am, indices
}
