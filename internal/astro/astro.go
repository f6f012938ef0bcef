// Package astro computes the fundamental astronomical arguments used to
// evaluate tidal constituent phases and nodal modulations.
// Based on Schureman (1958) and Foreman (1977).
package astro

import "math"

// SchuremanEpoch is the anchor of the Schureman polynomial expansions,
// 1899-12-31 12:00 UTC, expressed as a Modified Julian Date.
// All engine times are day offsets on the MJD scale (days since
// 1858-11-17 00:00 UTC).
const SchuremanEpoch = 15019.5

// Arguments holds the mean astronomical longitudes at one instant,
// in cycles (fractions of 360 degrees), each normalized to [0, 1).
type Arguments struct {
	Tau float64 // Mean lunar time (lunar hour angle).
	S   float64 // Mean longitude of the moon.
	H   float64 // Mean longitude of the sun.
	P   float64 // Mean longitude of the lunar perigee.
	Np  float64 // Negative mean longitude of the lunar ascending node.
	Pp  float64 // Mean longitude of the solar perigee (perihelion).
}

// Rates holds the first time derivatives of the arguments,
// in cycles per day.
type Rates struct {
	DTau float64
	DS   float64
	DH   float64
	DP   float64
	DNp  float64
	DPp  float64
}

// Polynomial coefficients for the mean longitudes, degrees, evaluated on
// [1, d, (d/1e4)^2, (d/1e4)^3] with d in days from SchuremanEpoch.
var (
	sCoefs  = [4]float64{270.434164, 13.1763965268, -0.0000850, 0.000000039}
	hCoefs  = [4]float64{279.696678, 0.9856473354, 0.00002267, 0.000000000}
	pCoefs  = [4]float64{334.329556, 0.1114040803, -0.0007739, -0.00000026}
	npCoefs = [4]float64{-259.183275, 0.0529539222, -0.0001557, -0.000000050}
	ppCoefs = [4]float64{281.220844, 0.0000470684, 0.0000339, 0.000000070}
)

// ArgumentsAt evaluates the astronomical arguments and their rates at
// time t, given as days on the MJD scale.
func ArgumentsAt(t float64) (Arguments, Rates) {
	d := t - SchuremanEpoch
	D := d / 10000.0

	terms := [4]float64{1.0, d, D * D, D * D * D}
	// Derivatives of the terms with respect to t (days).
	dterms := [4]float64{0.0, 1.0, 2e-4 * D, 3e-4 * D * D}

	eval := func(c [4]float64) (arg, rate float64) {
		for i := range 4 {
			arg += c[i] * terms[i]
			rate += c[i] * dterms[i]
		}
		return NormCycles(arg / 360.0), rate / 360.0
	}

	var a Arguments
	var r Rates
	a.S, r.DS = eval(sCoefs)
	a.H, r.DH = eval(hCoefs)
	a.P, r.DP = eval(pCoefs)
	a.Np, r.DNp = eval(npCoefs)
	a.Pp, r.DPp = eval(ppCoefs)

	// Lunar time: fraction of the solar day plus the solar-lunar offset.
	// The MJD scale places integer values at midnight, which is the
	// convention the phase constants in the catalog assume.
	a.Tau = NormCycles(math.Mod(t, 1.0) + a.H - a.S)
	r.DTau = 1.0 + r.DH - r.DS

	return a, r
}

// NodeDegrees returns the mean longitude of the lunar ascending node N,
// in degrees normalized to [0, 360).
func (a Arguments) NodeDegrees() float64 {
	return NormDeg(-a.Np * 360.0)
}

// NormCycles normalizes a value in cycles into [0, 1).
func NormCycles(c float64) float64 {
	c = math.Mod(c, 1.0)
	if c < 0 {
		c += 1.0
	}
	return c
}

// NormDeg normalizes an angle in degrees into [0, 360).
func NormDeg(deg float64) float64 {
	deg = math.Mod(deg, 360.0)
	if deg < 0 {
		deg += 360.0
	}
	return deg
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
