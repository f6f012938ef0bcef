package harmonic

// Aux carries the fit context needed to reconstruct a series from a Coef
// and to audit how the fit was configured.
type Aux struct {
	// Frequencies are the exact constituent frequencies in cycles per
	// hour, aligned with Coef.Names.
	Frequencies []float64 `json:"frequencies"`
	// CatalogIndices locate each constituent in the internal catalog.
	CatalogIndices []int `json:"catalog_indices"`

	// RefTime is the reference time of the fit, days on the MJD scale.
	RefTime float64 `json:"ref_time"`
	// RecordLength is the span of the valid record in days.
	RecordLength float64 `json:"record_length"`
	// Latitude of the observations, degrees.
	Latitude float64 `json:"latitude"`
	// EqualSpaced reports whether the valid time steps were uniform.
	EqualSpaced bool `json:"equal_spaced"`

	// Opt is the option set the fit ran with, echoed for reconstruction.
	Opt Options `json:"opt"`
}

// Coef is the result of a harmonic fit. Per-constituent slices are
// aligned with Names. Scalar series populate Amplitude/Phase; a
// two-component series populates the ellipse parameters instead.
type Coef struct {
	Names []string `json:"names"`

	// Scalar series.
	Amplitude   []float64 `json:"amplitude,omitempty"`
	AmplitudeCI []float64 `json:"amplitude_ci,omitempty"`

	// Two-component series: ellipse semi-major/minor axes and
	// inclination. Lsmin is signed; negative means clockwise rotation.
	Lsmaj   []float64 `json:"lsmaj,omitempty"`
	LsmajCI []float64 `json:"lsmaj_ci,omitempty"`
	Lsmin   []float64 `json:"lsmin,omitempty"`
	LsminCI []float64 `json:"lsmin_ci,omitempty"`
	Theta   []float64 `json:"theta,omitempty"`
	ThetaCI []float64 `json:"theta_ci,omitempty"`

	// Phase lag in degrees under the fitted phase convention.
	Phase   []float64 `json:"phase"`
	PhaseCI []float64 `json:"phase_ci,omitempty"`

	// Mean and, when fitted, linear trend per day. Two-component series
	// carry the second component in VMean/VSlope.
	Mean    float64 `json:"mean"`
	MeanCI  float64 `json:"mean_ci,omitempty"`
	Slope   float64 `json:"slope,omitempty"`
	SlopeCI float64 `json:"slope_ci,omitempty"`
	VMean   float64 `json:"v_mean,omitempty"`
	VSlope  float64 `json:"v_slope,omitempty"`

	// PE is percent energy per constituent (sums to 100); SNR is the
	// squared amplitude over its error variance. SNR requires confidence
	// intervals.
	PE  []float64 `json:"pe,omitempty"`
	SNR []float64 `json:"snr,omitempty"`

	// Weights are the final per-observation weights of a robust fit,
	// uniform for OLS, aligned with the valid observations.
	Weights []float64 `json:"weights,omitempty"`

	TwoDim   bool `json:"two_dim"`
	HasTrend bool `json:"has_trend"`

	// Degenerate marks a rank-deficient solve: coefficient fields may be
	// non-finite and confidence intervals and diagnostics were skipped.
	Degenerate bool `json:"degenerate,omitempty"`
	// ConfIntOmitted marks paths where intervals were requested but are
	// not implemented, currently two-component fits.
	ConfIntOmitted bool `json:"conf_int_omitted,omitempty"`
	// DiagnosticsOmitted marks results without PE/SNR; reconstruction
	// then includes every constituent regardless of thresholds.
	DiagnosticsOmitted bool `json:"diagnostics_omitted,omitempty"`

	Aux Aux `json:"aux"`
}

// NumConstituents returns the number of fitted plus inferred constituents.
func (c *Coef) NumConstituents() int { return len(c.Names) }

// permute reorders every per-constituent slice by the given index order.
func (c *Coef) permute(order []int) {
	for _, s := range [][]float64{
		c.Amplitude, c.AmplitudeCI,
		c.Lsmaj, c.LsmajCI, c.Lsmin, c.LsminCI, c.Theta, c.ThetaCI,
		c.Phase, c.PhaseCI, c.PE, c.SNR,
		c.Aux.Frequencies,
	} {
		permuteFloats(s, order)
	}
	names := make([]string, len(c.Names))
	idx := make([]int, len(c.Aux.CatalogIndices))
	for i, j := range order {
		names[i] = c.Names[j]
		idx[i] = c.Aux.CatalogIndices[j]
	}
	c.Names = names
	c.Aux.CatalogIndices = idx
}

func permuteFloats(s []float64, order []int) {
	if s == nil {
		return
	}
	tmp := make([]float64, len(s))
	for i, j := range order {
		tmp[i] = s[j]
	}
	copy(s, tmp)
}
