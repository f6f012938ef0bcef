package harmonic

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"go.ngs.io/tidefit/internal/ellipse"
	"go.ngs.io/tidefit/internal/lsq"
)

// Tidal noise bands, cycles per hour. Residual energy is averaged within
// the band containing each constituent to color the coefficient variance.
var noiseBands = [8][2]float64{
	{0.00000, 0.00417},
	{0.03192, 0.04859},
	{0.07218, 0.08884},
	{0.11243, 0.12910},
	{0.15269, 0.16936},
	{0.19295, 0.20961},
	{0.23320, 0.25100},
	{0.26870, 0.29940},
}

const ciFactor = 1.96 // Two-sided 95% on a Gaussian.

// estimateConfidence fills the CI fields of a scalar-series Coef.
func estimateConfidence(coef *Coef, st *fitState, opts Options) error {
	if opts.ConfInt == ConfMonteCarlo {
		return monteCarloConfidence(coef, st, opts)
	}
	return linearConfidence(coef, st, opts)
}

// linearConfidence propagates the residual variance through the inverse
// normal matrix. With colored noise enabled the variance of each
// constituent is scaled by the relative residual energy in its tidal
// band.
func linearConfidence(coef *Coef, st *fitState, opts Options) error {
	nt := len(st.t)
	nm := st.d.nm()

	dof := nt - nm
	if dof < 1 {
		dof = 1
	}
	var varMSM float64
	for _, r := range st.e {
		varMSM += real(r)*real(r) + imag(r)*imag(r)
	}
	varMSM /= float64(dof)

	gdiag, err := normalInverseDiag(st.d.B, st.W)
	if err != nil {
		return err
	}

	scales := bandScales(st, opts)

	nDirect := st.d.nNR + st.d.nR
	total := coef.NumConstituents()
	coef.AmplitudeCI = make([]float64, total)
	coef.PhaseCI = make([]float64, total)

	for k := range nDirect {
		p, q := st.d.coefCols(k)
		s := scales.at(coef.Aux.Frequencies[k])
		varC := 0.5 * varMSM * (gdiag[p] + gdiag[q]) * s
		coef.AmplitudeCI[k], coef.PhaseCI[k] = linci(coef.Amplitude[k], varC)
	}

	// Inferred constituents inherit the reference uncertainty scaled by
	// the amplitude ratio.
	i := nDirect
	for k, ref := range st.sel.R {
		for j := range ref.Inferred.Indices {
			refK := st.d.nNR + k
			coef.AmplitudeCI[i] = cmplx.Abs(ref.Inferred.Rp[j]) * coef.AmplitudeCI[refK]
			coef.PhaseCI[i] = coef.PhaseCI[refK]
			i++
		}
	}

	low := scales.at(0)
	coef.MeanCI = ciFactor * math.Sqrt(0.5*varMSM*gdiag[st.d.meanCol()]*low)
	if st.d.hasTrend {
		coef.SlopeCI = ciFactor * math.Sqrt(0.5*varMSM*gdiag[st.d.trendCol()]*low) / st.lor
	}
	return nil
}

// linci converts a per-component coefficient variance into amplitude and
// phase half-widths. With equal cosine and sine variances the amplitude
// deviation is the component deviation itself and the phase deviation
// scales inversely with amplitude.
func linci(amp, varC float64) (aci, gci float64) {
	if varC < 0 {
		varC = 0
	}
	sig := math.Sqrt(varC)
	aci = ciFactor * sig
	if amp > 0 {
		gci = ciFactor * (180 / math.Pi) * sig / amp
		if gci > 360 {
			gci = 360
		}
	} else {
		gci = 360
	}
	return aci, gci
}

// normalInverseDiag returns the diagonal of inv(B^H W B) through the
// real-expanded equivalent of the complex normal matrix.
func normalInverseDiag(B [][]complex128, w []float64) ([]float64, error) {
	nt := len(B)
	nm := len(B[0])

	h := make([][]complex128, nm)
	for a := range h {
		h[a] = make([]complex128, nm)
	}
	for i := range nt {
		wi := complex(w[i], 0)
		for a := range nm {
			ca := cmplx.Conj(B[i][a]) * wi
			for b := a; b < nm; b++ {
				h[a][b] += ca * B[i][b]
			}
		}
	}
	for a := range nm {
		for b := a + 1; b < nm; b++ {
			h[b][a] = cmplx.Conj(h[a][b])
		}
	}

	re := mat.NewDense(2*nm, 2*nm, nil)
	for a := range nm {
		for b := range nm {
			re.Set(a, b, real(h[a][b]))
			re.Set(a, nm+b, -imag(h[a][b]))
			re.Set(nm+a, b, imag(h[a][b]))
			re.Set(nm+a, nm+b, real(h[a][b]))
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(re); err != nil {
		if !isCondition(err) {
			return nil, fmt.Errorf("normal matrix inverse: %w", err)
		}
	}
	out := make([]float64, nm)
	for a := range nm {
		out[a] = inv.At(a, a)
	}
	return out, nil
}

func isCondition(err error) bool {
	var c mat.Condition
	return errors.As(err, &c)
}

// spectralScales maps a frequency to the relative residual energy of its
// tidal band. A nil table means white residuals (all scales one).
type spectralScales struct {
	band [len(noiseBands)]float64
	on   bool
}

func (s spectralScales) at(frq float64) float64 {
	if !s.on {
		return 1.0
	}
	for k, b := range noiseBands {
		if frq >= b[0] && frq <= b[1] {
			return s.band[k]
		}
	}
	// Outside every band: nearest band wins.
	best, dist := 0, math.Inf(1)
	for k, b := range noiseBands {
		d := math.Min(math.Abs(frq-b[0]), math.Abs(frq-b[1]))
		if d < dist {
			best, dist = k, d
		}
	}
	return s.band[best]
}

// bandScales estimates per-band residual energy relative to the overall
// mean via a periodogram of the weighted residuals. It needs a uniform
// time grid; irregular sampling falls back to white residuals.
func bandScales(st *fitState, opts Options) spectralScales {
	var s spectralScales
	nt := len(st.t)
	if opts.White || !st.equi || nt < 16 {
		return s
	}

	resid := make([]float64, nt)
	for i, r := range st.e {
		resid[i] = real(r)
	}
	dtHours := (st.t[1] - st.t[0]) * 24.0

	fft := fourier.NewFFT(nt)
	coeffs := fft.Coefficients(nil, resid)

	// One-sided power at positive frequencies; normalization cancels in
	// the band-to-mean ratios.
	nf := len(coeffs) - 1
	if nf < 2 {
		return s
	}
	power := make([]float64, 0, nf)
	freq := make([]float64, 0, nf)
	var total float64
	for j := 1; j <= nf; j++ {
		p := real(coeffs[j])*real(coeffs[j]) + imag(coeffs[j])*imag(coeffs[j])
		power = append(power, p)
		freq = append(freq, float64(j)/(float64(nt)*dtHours))
		total += p
	}
	mean := total / float64(len(power))
	if mean <= 0 {
		return s
	}

	for k, b := range noiseBands {
		var sum float64
		var n int
		for j, f := range freq {
			if f >= b[0] && f <= b[1] {
				sum += power[j]
				n++
			}
		}
		if n == 0 {
			s.band[k] = 1.0
			continue
		}
		s.band[k] = (sum / float64(n)) / mean
	}
	s.on = true
	return s
}

// monteCarloConfidence resamples the residuals by circular shifting,
// which preserves their spectrum, refits each realization with the
// original weights and reads the intervals off the sample spread.
func monteCarloConfidence(coef *Coef, st *fitState, opts Options) error {
	nt := len(st.t)
	n := opts.MonteCarloN
	total := coef.NumConstituents()

	// Raw (unweighted) residuals keep the realizations on the scale of
	// the observations.
	resid := make([]float64, nt)
	for i := range resid {
		resid[i] = real(st.x[i] - st.xmod[i])
	}

	amps := make([][]float64, n)
	phs := make([][]float64, n)
	means := make([]float64, n)
	slopes := make([]float64, n)

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	jobs := make(chan int)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := rand.New(rand.NewPCG(0x74696465666974, uint64(i)))
				a, g, mn, sl, err := st.refitRealization(rng, resid)
				if err != nil {
					errs[w] = err
					continue
				}
				amps[i], phs[i] = a, g
				means[i], slopes[i] = mn, sl
			}
		}()
	}
	for i := range n {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	coef.AmplitudeCI = make([]float64, total)
	coef.PhaseCI = make([]float64, total)
	ampCol := make([]float64, n)
	phCol := make([]float64, n)
	for k := range total {
		for i := range n {
			ampCol[i] = amps[i][k]
			phCol[i] = wrap180(phs[i][k] - coef.Phase[k])
		}
		coef.AmplitudeCI[k] = ciFactor * stddev(ampCol)
		coef.PhaseCI[k] = ciFactor * stddev(phCol)
	}
	coef.MeanCI = ciFactor * stddev(means)
	if st.d.hasTrend {
		coef.SlopeCI = ciFactor * stddev(slopes)
	}
	return nil
}

// refitRealization perturbs the model values with circularly shifted
// residuals, refits, and returns amplitudes, phases, mean and slope in
// coefficient order including inferred expansion.
func (st *fitState) refitRealization(rng *rand.Rand, resid []float64) (amp, ph []float64, mean, slope float64, err error) {
	nt := len(st.t)
	shift := rng.IntN(nt)
	sign := 1.0
	if rng.IntN(2) == 1 {
		sign = -1.0
	}
	xs := make([]complex128, nt)
	for i := range nt {
		xs[i] = st.xmod[i] + complex(sign*resid[(i+shift)%nt], 0)
	}

	m, err := lsq.WeightedLeastSquares(st.d.B, xs, st.W)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("resampled refit: %w", err)
	}

	nNR, nR := st.d.nNR, st.d.nR
	ap := make([]complex128, 0, nNR+nR+st.sel.NI())
	am := make([]complex128, 0, nNR+nR+st.sel.NI())
	ap = append(ap, m[:nNR]...)
	ap = append(ap, m[2*nNR:2*nNR+nR]...)
	am = append(am, m[nNR:2*nNR]...)
	am = append(am, m[2*nNR+nR:2*nNR+2*nR]...)
	for k := range st.d.corrP {
		ap[nNR+k] /= st.d.corrP[k]
		am[nNR+k] /= st.d.corrM[k]
	}
	for k, ref := range st.sel.R {
		for j := range ref.Inferred.Indices {
			ap = append(ap, ref.Inferred.Rp[j]*ap[nNR+k])
			am = append(am, ref.Inferred.Rm[j]*am[nNR+k])
		}
	}
	p := ellipse.FromCoefficients(ap, am, false)

	mean = real(m[st.d.meanCol()])
	if st.d.hasTrend {
		slope = real(m[st.d.trendCol()]) / st.lor
	}
	return p.Lsmaj, p.G, mean, slope, nil
}

func wrap180(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

func stddev(v []float64) float64 {
	n := len(v)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(n)
	var ss float64
	for _, x := range v {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}
