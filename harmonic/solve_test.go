package harmonic

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"go.ngs.io/tidefit/internal/catalog"
	"go.ngs.io/tidefit/internal/ellipse"
	"go.ngs.io/tidefit/internal/harmonics"
)

// wave is one synthetic constituent: amplitude and phase lag in degrees.
type wave struct {
	name  string
	amp   float64
	phase float64
}

func hourlyGrid(start float64, days int) []float64 {
	n := days*24 + 1
	t := make([]float64, n)
	for i := range t {
		t[i] = start + float64(i)/24.0
	}
	return t
}

func catIdx(t *testing.T, name string) int {
	t.Helper()
	i, ok := catalog.Index(name)
	if !ok {
		t.Fatalf("missing constituent %s", name)
	}
	return i
}

// synth builds a scalar series from known constituents using the same
// basis the solver fits against, so a noiseless fit recovers the inputs
// to numerical precision. tref must match the solver's reference time,
// the centre of the time vector.
func synth(t *testing.T, times []float64, tref, lat float64, waves []wave, mean, slope float64) []float64 {
	t.Helper()
	indices := make([]int, len(waves))
	ap := make([]complex128, len(waves))
	for k, w := range waves {
		indices[k] = catIdx(t, w.name)
		ap[k] = complex(0.5*w.amp, 0) * cmplx.Exp(complex(0, -w.phase*math.Pi/180))
	}
	E := harmonics.Basis(times, tref, indices, lat, harmonics.Flags{NodSat: harmonics.Full, Gwch: harmonics.Full})
	u := make([]float64, len(times))
	for i, ti := range times {
		s := mean + slope*(ti-tref)
		for k := range waves {
			s += 2 * real(E[i][k]*ap[k])
		}
		u[i] = s
	}
	return u
}

func findName(t *testing.T, coef *Coef, name string) int {
	t.Helper()
	for k, n := range coef.Names {
		if n == name {
			return k
		}
	}
	t.Fatalf("constituent %s not in fit %v", name, coef.Names)
	return -1
}

// angDiff returns the minimal absolute angular difference in degrees.
func angDiff(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	if d < -180 {
		d += 360
	}
	if d > 180 {
		d -= 360
	}
	return math.Abs(d)
}

func TestSolveRecoversKnownConstituents(t *testing.T) {
	times := hourlyGrid(51544.0, 30)
	tref := 0.5 * (times[0] + times[len(times)-1])
	waves := []wave{
		{"M2", 1.0, 60.0},
		{"S2", 0.5, 120.0},
		{"K1", 0.3, 45.0},
	}
	const mean, slope = 2.0, 0.002
	u := synth(t, times, tref, 45, waves, mean, slope)

	opts := DefaultOptions()
	opts.Constituents = []string{"M2", "S2", "K1"}
	opts.Verbose = false
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}

	if coef.Degenerate {
		t.Fatal("noiseless fit marked degenerate")
	}
	if coef.TwoDim {
		t.Fatal("scalar fit marked two-dimensional")
	}
	for _, w := range waves {
		k := findName(t, coef, w.name)
		if math.Abs(coef.Amplitude[k]-w.amp) > 1e-6 {
			t.Errorf("%s amplitude = %v, want %v", w.name, coef.Amplitude[k], w.amp)
		}
		if angDiff(coef.Phase[k], w.phase) > 1e-4 {
			t.Errorf("%s phase = %v, want %v", w.name, coef.Phase[k], w.phase)
		}
	}
	if math.Abs(coef.Mean-mean) > 1e-6 {
		t.Errorf("mean = %v, want %v", coef.Mean, mean)
	}
	if math.Abs(coef.Slope-slope) > 1e-8 {
		t.Errorf("slope = %v, want %v", coef.Slope, slope)
	}
	if math.Abs(coef.Aux.RefTime-tref) > 1e-9 {
		t.Errorf("reference time = %v, want %v", coef.Aux.RefTime, tref)
	}
	if !coef.Aux.EqualSpaced {
		t.Error("hourly grid not recognized as equally spaced")
	}

	// Energy fractions sum to 100 and follow the amplitude ordering.
	var sum float64
	for _, pe := range coef.PE {
		sum += pe
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("PE sums to %v, want 100", sum)
	}
	if coef.Names[0] != "M2" || coef.Names[1] != "S2" || coef.Names[2] != "K1" {
		t.Errorf("default energy ordering = %v", coef.Names)
	}

	// Noiseless residuals give near-zero intervals and huge SNR.
	for k := range coef.Names {
		if coef.AmplitudeCI[k] > 1e-6 {
			t.Errorf("%s amplitude CI = %v on noiseless data", coef.Names[k], coef.AmplitudeCI[k])
		}
		if coef.SNR[k] < 1e6 {
			t.Errorf("%s SNR = %v, want very large", coef.Names[k], coef.SNR[k])
		}
	}
}

func TestSolveWithGaps(t *testing.T) {
	times := hourlyGrid(51544.0, 30)
	tref := 0.5 * (times[0] + times[len(times)-1])
	u := synth(t, times, tref, 45, []wave{{"M2", 1.0, 60.0}}, 0.5, 0)

	// Knock out a stretch of values; the time grid stays uniform, so the
	// record is still framed by the full time vector.
	for i := 100; i < 140; i++ {
		u[i] = math.NaN()
	}
	opts := DefaultOptions()
	opts.Constituents = []string{"M2"}
	opts.Trend = false
	opts.Verbose = false
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	k := findName(t, coef, "M2")
	if math.Abs(coef.Amplitude[k]-1.0) > 1e-6 {
		t.Errorf("amplitude = %v, want 1", coef.Amplitude[k])
	}
	if math.Abs(coef.Aux.RefTime-tref) > 1e-9 {
		t.Errorf("gaps shifted the reference time: %v vs %v", coef.Aux.RefTime, tref)
	}
	if coef.HasTrend {
		t.Error("trend fitted despite Trend=false")
	}
}

func TestReconstructRoundTrip(t *testing.T) {
	times := hourlyGrid(51544.0, 30)
	tref := 0.5 * (times[0] + times[len(times)-1])
	waves := []wave{{"M2", 1.0, 60.0}, {"K1", 0.3, 45.0}}
	u := synth(t, times, tref, 45, waves, 1.5, 0.001)

	opts := DefaultOptions()
	opts.Constituents = []string{"M2", "K1"}
	opts.Verbose = false
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}

	// Evaluate off the fitting grid as well as on it.
	teval := []float64{times[0], times[7] + 0.013, tref, math.NaN(), times[len(times)-1]}
	rec, err := Reconstruct(teval, coef, DefaultReconstructOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := synth(t, []float64{teval[0], teval[1], teval[2], teval[4]}, tref, 45, waves, 1.5, 0.001)
	got := []float64{rec.U[0], rec.U[1], rec.U[2], rec.U[4]}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("step %d: reconstructed %v, want %v", i, got[i], want[i])
		}
	}
	if !math.IsNaN(rec.U[3]) {
		t.Errorf("NaN time produced %v, want NaN", rec.U[3])
	}
	if len(rec.Names) != 2 {
		t.Errorf("reconstruction used %v, want both constituents", rec.Names)
	}

	// Per-step evaluation is exactly the batched result.
	perStep := DefaultReconstructOptions()
	perStep.PerStep = true
	rec2, err := Reconstruct(teval, coef, perStep)
	if err != nil {
		t.Fatal(err)
	}
	for i := range rec.U {
		if math.IsNaN(rec.U[i]) != math.IsNaN(rec2.U[i]) {
			t.Fatalf("step %d: NaN mismatch between batched and per-step", i)
		}
		if !math.IsNaN(rec.U[i]) && rec.U[i] != rec2.U[i] {
			t.Errorf("step %d: per-step %v != batched %v", i, rec2.U[i], rec.U[i])
		}
	}
}

func TestReconstructSubsets(t *testing.T) {
	times := hourlyGrid(51544.0, 30)
	tref := 0.5 * (times[0] + times[len(times)-1])
	u := synth(t, times, tref, 45, []wave{{"M2", 1.0, 60.0}, {"S2", 0.5, 120.0}}, 2.0, 0.001)

	opts := DefaultOptions()
	opts.Constituents = []string{"M2", "S2"}
	opts.Verbose = false
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}

	teval := []float64{tref + 0.4}

	// Empty non-nil subset: mean and trend only.
	rec, err := Reconstruct(teval, coef, ReconstructOptions{Constituents: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	want := coef.Mean + coef.Slope*0.4
	if math.Abs(rec.U[0]-want) > 1e-9 {
		t.Errorf("mean+trend reconstruction = %v, want %v", rec.U[0], want)
	}
	if len(rec.Names) != 0 {
		t.Errorf("names = %v, want none", rec.Names)
	}

	// Explicit single constituent.
	rec, err = Reconstruct(teval, coef, ReconstructOptions{Constituents: []string{"m2"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Names) != 1 || rec.Names[0] != "M2" {
		t.Errorf("names = %v, want [M2]", rec.Names)
	}

	// Unknown name is a configuration error.
	if _, err = Reconstruct(teval, coef, ReconstructOptions{Constituents: []string{"Q1"}}); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("unknown subset name: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestReconstructRejectsDegenerate(t *testing.T) {
	coef := &Coef{Degenerate: true}
	if _, err := Reconstruct([]float64{51544.0}, coef, ReconstructOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := Reconstruct([]float64{51544.0}, nil, ReconstructOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil coef: err = %v, want ErrInvalidInput", err)
	}
}

func TestRobustFitIgnoresOutliers(t *testing.T) {
	times := hourlyGrid(51544.0, 20)
	tref := 0.5 * (times[0] + times[len(times)-1])
	u := synth(t, times, tref, 45, []wave{{"M2", 1.0, 60.0}, {"K1", 0.3, 45.0}}, 0, 0)
	// Small incoherent perturbation so the residual scale is nonzero,
	// plus a handful of gross spikes.
	for i := range u {
		u[i] += 0.003 * math.Sin(float64(i)*1.7)
	}
	for _, i := range []int{30, 31, 150, 300} {
		u[i] += 8.0
	}

	opts := DefaultOptions()
	opts.Constituents = []string{"M2", "K1"}
	opts.Trend = false
	opts.Method = Robust
	opts.ConfInt = ConfNone
	opts.Verbose = false
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	k := findName(t, coef, "M2")
	if math.Abs(coef.Amplitude[k]-1.0) > 0.01 {
		t.Errorf("robust M2 amplitude = %v, want 1 +- 0.01", coef.Amplitude[k])
	}
	// The spikes should carry almost no weight.
	if coef.Weights[30] > 0.1 || coef.Weights[150] > 0.1 {
		t.Errorf("outlier weights = %v, %v, want near zero", coef.Weights[30], coef.Weights[150])
	}
	// Diagnostics without intervals: energy fractions but no SNR.
	if coef.PE == nil {
		t.Error("PE missing with ConfNone")
	}
	if coef.SNR != nil {
		t.Error("SNR present without confidence intervals")
	}
}

func TestMonteCarloConfidence(t *testing.T) {
	times := hourlyGrid(51544.0, 15)
	tref := 0.5 * (times[0] + times[len(times)-1])
	u := synth(t, times, tref, 45, []wave{{"M2", 1.0, 60.0}}, 0.5, 0)
	for i := range u {
		u[i] += 0.02 * math.Sin(float64(i)*2.9)
	}

	opts := DefaultOptions()
	opts.Constituents = []string{"M2", "S2"}
	opts.ConfInt = ConfMonteCarlo
	opts.MonteCarloN = 60
	opts.Verbose = false
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(coef.AmplitudeCI) != 2 || len(coef.PhaseCI) != 2 {
		t.Fatalf("interval lengths = %d/%d, want 2", len(coef.AmplitudeCI), len(coef.PhaseCI))
	}
	for k := range coef.Names {
		if !finite(coef.AmplitudeCI[k]) || coef.AmplitudeCI[k] < 0 {
			t.Errorf("%s amplitude CI = %v", coef.Names[k], coef.AmplitudeCI[k])
		}
		if !finite(coef.PhaseCI[k]) || coef.PhaseCI[k] < 0 {
			t.Errorf("%s phase CI = %v", coef.Names[k], coef.PhaseCI[k])
		}
	}
	// The strong constituent's interval stays well below its amplitude.
	k := findName(t, coef, "M2")
	if coef.AmplitudeCI[k] > 0.1 {
		t.Errorf("M2 amplitude CI = %v, want well under the amplitude", coef.AmplitudeCI[k])
	}

	// Deterministic resampling: a second run reproduces the intervals.
	coef2, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	for k := range coef.AmplitudeCI {
		if coef.AmplitudeCI[k] != coef2.AmplitudeCI[k] {
			t.Errorf("Monte Carlo intervals not reproducible: %v vs %v",
				coef.AmplitudeCI[k], coef2.AmplitudeCI[k])
		}
	}
}

func TestInference(t *testing.T) {
	times := hourlyGrid(51544.0, 15)
	tref := 0.5 * (times[0] + times[len(times)-1])

	// P1 is generated in a fixed relation to K1 and then recovered through
	// inference rather than a direct fit.
	const (
		ampK1  = 0.4
		phK1   = 50.0
		ratio  = 0.33
		offset = 7.0
	)
	apK1 := complex(0.5*ampK1, 0) * cmplx.Exp(complex(0, -phK1*math.Pi/180))
	rp := complex(ratio, 0) * cmplx.Exp(complex(0, offset*math.Pi/180))
	apP1 := rp * apK1
	ampP1 := 2 * cmplx.Abs(apP1)
	phP1 := math.Mod(-cmplx.Phase(apP1)*180/math.Pi+360, 360)

	waves := []wave{
		{"M2", 1.0, 60.0},
		{"K1", ampK1, phK1},
		{"P1", ampP1, phP1},
	}
	u := synth(t, times, tref, 45, waves, 0, 0)

	opts := DefaultOptions()
	opts.Constituents = []string{"M2", "K1"}
	opts.Trend = false
	opts.Verbose = false
	opts.Infer = &Inference{
		InferredNames:  []string{"P1"},
		ReferenceNames: []string{"K1"},
		AmpRatios:      []float64{ratio},
		PhaseOffsets:   []float64{offset},
	}
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}

	kK1 := findName(t, coef, "K1")
	kP1 := findName(t, coef, "P1")
	if math.Abs(coef.Amplitude[kK1]-ampK1) > 1e-6 {
		t.Errorf("K1 amplitude = %v, want %v", coef.Amplitude[kK1], ampK1)
	}
	if math.Abs(coef.Amplitude[kP1]-ratio*coef.Amplitude[kK1]) > 1e-9 {
		t.Errorf("P1 amplitude = %v, want ratio times K1 = %v",
			coef.Amplitude[kP1], ratio*coef.Amplitude[kK1])
	}
	if angDiff(coef.Phase[kP1], phP1) > 1e-4 {
		t.Errorf("P1 phase = %v, want %v", coef.Phase[kP1], phP1)
	}
}

func TestApproximateInference(t *testing.T) {
	times := hourlyGrid(51544.0, 15)
	tref := 0.5 * (times[0] + times[len(times)-1])
	const (
		ampK1  = 0.4
		phK1   = 50.0
		ratio  = 0.33
		offset = 7.0
	)
	apK1 := complex(0.5*ampK1, 0) * cmplx.Exp(complex(0, -phK1*math.Pi/180))
	apP1 := complex(ratio, 0) * cmplx.Exp(complex(0, offset*math.Pi/180)) * apK1
	waves := []wave{
		{"M2", 1.0, 60.0},
		{"K1", ampK1, phK1},
		{"P1", 2 * cmplx.Abs(apP1), math.Mod(-cmplx.Phase(apP1)*180/math.Pi+360, 360)},
	}
	u := synth(t, times, tref, 45, waves, 0, 0)

	opts := DefaultOptions()
	opts.Constituents = []string{"M2", "K1"}
	opts.Trend = false
	opts.ConfInt = ConfNone
	opts.Verbose = false
	opts.Infer = &Inference{
		InferredNames:  []string{"P1"},
		ReferenceNames: []string{"K1"},
		AmpRatios:      []float64{ratio},
		PhaseOffsets:   []float64{offset},
		Approximate:    true,
	}
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	// The collapsed-column approximation is not exact; the unscrambled
	// reference must still land close to the truth.
	kK1 := findName(t, coef, "K1")
	if math.Abs(coef.Amplitude[kK1]-ampK1) > 0.05*ampK1 {
		t.Errorf("approximate K1 amplitude = %v, want %v +- 5%%", coef.Amplitude[kK1], ampK1)
	}
	kP1 := findName(t, coef, "P1")
	if math.Abs(coef.Amplitude[kP1]-ratio*coef.Amplitude[kK1]) > 1e-9 {
		t.Error("inferred amplitude must follow the reference exactly")
	}
}

func TestTwoDimensionalFit(t *testing.T) {
	times := hourlyGrid(51544.0, 30)
	tref := 0.5 * (times[0] + times[len(times)-1])
	p := ellipse.Params{
		Lsmaj: []float64{1.0},
		Lsmin: []float64{0.3},
		Theta: []float64{30.0},
		G:     []float64{60.0},
	}
	ap, am := ellipse.ToCoefficients(p, true)
	indices := []int{catIdx(t, "M2")}
	E := harmonics.Basis(times, tref, indices, 45, harmonics.Flags{NodSat: harmonics.Full, Gwch: harmonics.Full})
	u := make([]float64, len(times))
	v := make([]float64, len(times))
	for i := range times {
		w := E[i][0]*ap[0] + complex(real(E[i][0]), -imag(E[i][0]))*am[0]
		u[i] = real(w) + 0.2
		v[i] = imag(w) - 0.1
	}

	opts := DefaultOptions()
	opts.Constituents = []string{"M2"}
	opts.Trend = false
	opts.Verbose = false
	coef, err := Solve(times, u, v, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !coef.TwoDim {
		t.Fatal("fit not marked two-dimensional")
	}
	if math.Abs(coef.Lsmaj[0]-1.0) > 1e-6 || math.Abs(coef.Lsmin[0]-0.3) > 1e-6 {
		t.Errorf("axes = %v/%v, want 1/0.3", coef.Lsmaj[0], coef.Lsmin[0])
	}
	if angDiff(coef.Theta[0], 30) > 1e-4 || angDiff(coef.Phase[0], 60) > 1e-4 {
		t.Errorf("angles = %v/%v, want 30/60", coef.Theta[0], coef.Phase[0])
	}
	if math.Abs(coef.Mean-0.2) > 1e-6 || math.Abs(coef.VMean+0.1) > 1e-6 {
		t.Errorf("means = %v/%v, want 0.2/-0.1", coef.Mean, coef.VMean)
	}
	if !coef.ConfIntOmitted {
		t.Error("two-component intervals should be flagged as omitted")
	}
	if !coef.DiagnosticsOmitted {
		t.Error("two-component diagnostics should be flagged as omitted")
	}

	// A two-component reconstruction returns both components.
	rec, err := Reconstruct(times[:5], coef, ReconstructOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if rec.V == nil {
		t.Fatal("two-component reconstruction missing second component")
	}
	for i := range rec.U {
		if math.Abs(rec.U[i]-u[i]) > 1e-6 || math.Abs(rec.V[i]-v[i]) > 1e-6 {
			t.Errorf("step %d: reconstructed (%v,%v), want (%v,%v)", i, rec.U[i], rec.V[i], u[i], v[i])
		}
	}
}

func TestOrdering(t *testing.T) {
	times := hourlyGrid(51544.0, 30)
	tref := 0.5 * (times[0] + times[len(times)-1])
	// K1 deliberately strongest so energy order differs from both the
	// frequency order and the caller's list.
	waves := []wave{{"M2", 0.3, 60.0}, {"S2", 0.5, 120.0}, {"K1", 1.0, 45.0}}
	u := synth(t, times, tref, 45, waves, 0, 0)

	base := DefaultOptions()
	base.Constituents = []string{"S2", "M2", "K1"}
	base.Trend = false
	base.Verbose = false

	opts := base
	opts.OrderBy = OrderFrequency
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(coef.Aux.Frequencies); i++ {
		if coef.Aux.Frequencies[i] < coef.Aux.Frequencies[i-1] {
			t.Errorf("frequency order violated: %v", coef.Aux.Frequencies)
		}
	}

	opts = base
	opts.OrderBy = OrderNames
	coef, err = Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	if coef.Names[0] != "S2" || coef.Names[1] != "M2" || coef.Names[2] != "K1" {
		t.Errorf("caller order not preserved: %v", coef.Names)
	}

	opts = base
	opts.OrderBy = OrderSNR
	coef, err = Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(coef.SNR); i++ {
		if coef.SNR[i] > coef.SNR[i-1] {
			t.Errorf("SNR order violated: %v", coef.SNR)
		}
	}

	// Amplitudes travel with their names under any ordering.
	k := findName(t, coef, "K1")
	if math.Abs(coef.Amplitude[k]-1.0) > 1e-6 {
		t.Errorf("K1 amplitude after reorder = %v, want 1", coef.Amplitude[k])
	}
}

func TestSolveInputValidation(t *testing.T) {
	times := hourlyGrid(51544.0, 15)
	u := make([]float64, len(times))
	opts := DefaultOptions()
	opts.Verbose = false

	if _, err := Solve(nil, nil, nil, 45, opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty input: err = %v, want ErrInvalidInput", err)
	}
	if _, err := Solve(times, u[:10], nil, 45, opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("length mismatch: err = %v, want ErrInvalidInput", err)
	}
	if _, err := Solve(times, u, u[:10], 45, opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("second-component mismatch: err = %v, want ErrInvalidInput", err)
	}
	if _, err := Solve(times, u, nil, 95, opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("latitude 95: err = %v, want ErrInvalidInput", err)
	}
	if _, err := Solve(times, u, nil, math.NaN(), opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("NaN latitude: err = %v, want ErrInvalidInput", err)
	}

	bad := opts
	bad.RayleighMin = 0
	if _, err := Solve(times, u, nil, 45, bad); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("zero rayleigh_min: err = %v, want ErrInvalidConfiguration", err)
	}

	bad = opts
	bad.OrderBy = OrderSNR
	bad.ConfInt = ConfNone
	if _, err := Solve(times, u, nil, 45, bad); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("SNR order without intervals: err = %v, want ErrInvalidConfiguration", err)
	}

	bad = opts
	bad.OrderBy = OrderNames
	if _, err := Solve(times, u, nil, 45, bad); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("name order without a list: err = %v, want ErrInvalidConfiguration", err)
	}

	bad = opts
	bad.Method = Robust
	if _, err := Solve(times, u, u, 45, bad); !errors.Is(err, ErrNotSupported) {
		t.Errorf("robust two-component fit: err = %v, want ErrNotSupported", err)
	}

	bad = opts
	bad.ConfInt = ConfMonteCarlo
	bad.MonteCarloN = 1
	if _, err := Solve(times, u, nil, 45, bad); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("monte_carlo_n=1: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestSolveTooFewObservations(t *testing.T) {
	times := hourlyGrid(51544.0, 1)[:6]
	u := make([]float64, len(times))
	opts := DefaultOptions()
	opts.Constituents = []string{"M2", "S2", "K1"}
	opts.Verbose = false
	if _, err := Solve(times, u, nil, 45, opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestIrregularSamplingForcesWhiteSpectrum(t *testing.T) {
	// A visibly non-uniform grid still fits; confidence intervals fall
	// back to the flat-spectrum scale.
	n := 400
	times := make([]float64, n)
	for i := range times {
		times[i] = 51544.0 + float64(i)/24.0 + 0.3*math.Sin(float64(i))/24.0
	}
	tref := 0.5 * (times[0] + times[n-1])
	u := synth(t, times, tref, 45, []wave{{"M2", 1.0, 60.0}}, 0, 0)
	for i := range u {
		u[i] += 0.01 * math.Sin(float64(i)*3.3)
	}

	opts := DefaultOptions()
	opts.Constituents = []string{"M2"}
	opts.Trend = false
	opts.Verbose = false
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	if coef.Aux.EqualSpaced {
		t.Error("jittered grid reported as equally spaced")
	}
	if len(coef.AmplitudeCI) != 1 || !finite(coef.AmplitudeCI[0]) {
		t.Fatalf("amplitude CI = %v", coef.AmplitudeCI)
	}
	if math.Abs(coef.Amplitude[0]-1.0) > 0.01 {
		t.Errorf("amplitude = %v, want 1", coef.Amplitude[0])
	}
}

func TestSolveNoisyRecord(t *testing.T) {
	times := hourlyGrid(51544.0, 60)
	tref := 0.5 * (times[0] + times[len(times)-1])
	const sigma = 0.05
	u := synth(t, times, tref, 45, []wave{{"M2", 1.0, 50.0}}, 1.0, 0)
	rng := rand.New(rand.NewPCG(7, 11))
	for i := range u {
		u[i] += sigma * rng.NormFloat64()
	}

	opts := DefaultOptions()
	opts.Constituents = []string{"M2"}
	opts.Trend = false
	opts.Verbose = false
	coef, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}

	k := findName(t, coef, "M2")
	if math.Abs(coef.Amplitude[k]-1.0) > 0.02 {
		t.Errorf("M2 amplitude = %v, want 1 +- 0.02", coef.Amplitude[k])
	}
	if angDiff(coef.Phase[k], 50.0) > 1.0 {
		t.Errorf("M2 phase = %v, want 50 +- 1", coef.Phase[k])
	}
	if math.Abs(coef.Mean-1.0) > 0.02 {
		t.Errorf("mean = %v, want 1 +- 0.02", coef.Mean)
	}

	// White noise of scale sigma puts the amplitude standard error at
	// sigma*sqrt(2/n), so the 95% half-width should land near 1.96 times
	// that; the spectral band scaling moves it by a modest factor at most.
	se := sigma * math.Sqrt(2.0/float64(len(times)))
	aci := coef.AmplitudeCI[k]
	if aci < 1.96*se/4 || aci > 1.96*se*4 {
		t.Errorf("M2 amplitude CI = %v, want near %v", aci, 1.96*se)
	}
	// The phase half-width is the amplitude one over the amplitude,
	// converted to degrees.
	if pci := coef.PhaseCI[k]; pci <= 0 || pci > 4*1.96*se*(180/math.Pi) {
		t.Errorf("M2 phase CI = %v, want near %v", pci, 1.96*se*(180/math.Pi))
	}
	if coef.SNR[k] < 1_000 {
		t.Errorf("M2 SNR = %v, want far above the threshold", coef.SNR[k])
	}
	if coef.MeanCI <= 0 || coef.MeanCI > 0.02 {
		t.Errorf("mean CI = %v, want small and positive", coef.MeanCI)
	}
}

func TestLeastSquaresPulledByOutliers(t *testing.T) {
	times := hourlyGrid(51544.0, 20)
	tref := 0.5 * (times[0] + times[len(times)-1])
	u := synth(t, times, tref, 45, []wave{{"M2", 1.0, 60.0}}, 0, 0)
	for i := range u {
		u[i] += 0.003 * math.Sin(float64(i)*1.7)
	}

	// Spikes placed on wave crests add coherently to the fitted
	// amplitude, pulling the plain least-squares estimate far off.
	umax := 0.0
	for _, x := range u {
		if x > umax {
			umax = x
		}
	}
	var spikes []int
	last := -24
	for i := range u {
		if len(spikes) == 20 {
			break
		}
		if u[i] > 0.95*umax && i-last >= 12 {
			u[i] += 6.0
			spikes = append(spikes, i)
			last = i
		}
	}
	if len(spikes) < 15 {
		t.Fatalf("only %d crest spikes placed", len(spikes))
	}

	opts := DefaultOptions()
	opts.Constituents = []string{"M2"}
	opts.Trend = false
	opts.ConfInt = ConfNone
	opts.Verbose = false

	ols, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	k := findName(t, ols, "M2")
	if dev := math.Abs(ols.Amplitude[k] - 1.0); dev < 0.2 {
		t.Errorf("least-squares M2 amplitude = %v, want pulled off by more than 0.2", ols.Amplitude[k])
	}

	opts.Method = Robust
	rob, err := Solve(times, u, nil, 45, opts)
	if err != nil {
		t.Fatal(err)
	}
	k = findName(t, rob, "M2")
	if math.Abs(rob.Amplitude[k]-1.0) > 0.05 {
		t.Errorf("robust M2 amplitude = %v, want 1 +- 0.05", rob.Amplitude[k])
	}
	for _, i := range spikes {
		if rob.Weights[i] > 0.1 {
			t.Errorf("weight at spike %d = %v, want near zero", i, rob.Weights[i])
		}
	}
}
