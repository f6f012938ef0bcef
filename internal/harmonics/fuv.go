// Package harmonics evaluates the time- and latitude-dependent correction
// factors for tidal constituents and builds the complex harmonic basis
// used by both fitting and reconstruction.
// Based on Schureman (1958) and Foreman (1977).
package harmonics

import (
	"math"

	"go.ngs.io/tidefit/internal/astro"
	"go.ngs.io/tidefit/internal/catalog"
)

// Fidelity selects how a correction term is evaluated over time.
type Fidelity int

const (
	// Full evaluates the nonlinear correction at every time step.
	Full Fidelity = iota
	// LinearTime anchors the correction at the reference time and varies
	// it linearly; adequate for short records.
	LinearTime
	// None disables the correction (F=1, U=0, raw V).
	None
)

// Flags selects the fidelity of the two correction parts independently:
// the nodal/satellite modulation (F, U) and the Greenwich equilibrium
// argument (V).
type Flags struct {
	NodSat Fidelity
	Gwch   Fidelity
}

// Frequencies returns the exact frequencies (cycles per hour) of the given
// catalog entries at the reference time, derived from the astronomical
// argument rates. Shallow-water composites sum their parents.
func Frequencies(indices []int, tref float64) []float64 {
	_, rates := astro.ArgumentsAt(tref)
	out := make([]float64, len(indices))
	for k, idx := range indices {
		out[k] = entryFrequency(catalog.Get(idx), rates)
	}
	return out
}

func entryFrequency(c catalog.Constituent, r astro.Rates) float64 {
	if c.IsShallow() {
		var f float64
		for _, term := range c.Shallow {
			pi, ok := catalog.Index(term.Parent)
			if !ok {
				panic("harmonics: unknown shallow parent " + term.Parent)
			}
			f += term.Coef * entryFrequency(catalog.Get(pi), r)
		}
		return f
	}
	rates := [6]float64{r.DTau, r.DS, r.DH, r.DP, r.DNp, r.DPp}
	var perDay float64
	for i := range 6 {
		perDay += c.Doodson[i] * rates[i]
	}
	return perDay / 24.0
}

// FUV computes, for each (time, constituent) pair, the amplitude factor F,
// the satellite phase correction U and the equilibrium argument V.
// U and V are in degrees, normalized to [0, 360). Times are day offsets on
// the MJD scale; latitude is in degrees and affects only F.
// Each constituent is resolved against the catalog once per batch.
func FUV(t []float64, tref float64, indices []int, lat float64, flags Flags) (F, U, V [][]float64) {
	nt := len(t)
	nc := len(indices)
	F = newMatrix(nt, nc)
	U = newMatrix(nt, nc)
	V = newMatrix(nt, nc)

	consts := make([]catalog.Constituent, nc)
	for k, idx := range indices {
		consts[k] = catalog.Get(idx)
	}
	frq := Frequencies(indices, tref)

	// Nodal/satellite part: F and U.
	switch flags.NodSat {
	case None:
		for i := range nt {
			for k := range nc {
				F[i][k] = 1.0
			}
		}
	case LinearTime:
		// Anchor at the reference time; constant over short records.
		args, _ := astro.ArgumentsAt(tref)
		n := args.NodeDegrees()
		for k, c := range consts {
			f, u := nodalFU(c, n, lat)
			for i := range nt {
				F[i][k] = f
				U[i][k] = u
			}
		}
	default:
		for i, ti := range t {
			args, _ := astro.ArgumentsAt(ti)
			n := args.NodeDegrees()
			for k, c := range consts {
				F[i][k], U[i][k] = nodalFU(c, n, lat)
			}
		}
	}

	// Greenwich argument part: V.
	switch flags.Gwch {
	case None:
		for i, ti := range t {
			for k := range nc {
				V[i][k] = astro.NormDeg(360.0 * frq[k] * 24.0 * (ti - tref))
			}
		}
	case LinearTime:
		args, _ := astro.ArgumentsAt(tref)
		v0 := make([]float64, nc)
		for k, c := range consts {
			v0[k] = equilibriumV(c, args)
		}
		for i, ti := range t {
			for k := range nc {
				V[i][k] = astro.NormDeg(v0[k] + 360.0*frq[k]*24.0*(ti-tref))
			}
		}
	default:
		for i, ti := range t {
			args, _ := astro.ArgumentsAt(ti)
			for k, c := range consts {
				V[i][k] = equilibriumV(c, args)
			}
		}
	}

	return F, U, V
}

// nodalFU evaluates the nodal amplitude factor and phase correction for
// one constituent at node longitude n (degrees), with u normalized to
// [0, 360).
func nodalFU(c catalog.Constituent, n, lat float64) (f, u float64) {
	f, u = nodalFURaw(c, n, lat)
	return f, astro.NormDeg(u)
}

// nodalFURaw leaves u unnormalized so that fractional shallow-water
// coefficients scale the true phase, not its wrapped representative.
// Shallow composites combine their parents multiplicatively (F) and
// additively (U).
func nodalFURaw(c catalog.Constituent, n, lat float64) (f, u float64) {
	if c.IsShallow() {
		f = 1.0
		for _, term := range c.Shallow {
			pi, _ := catalog.Index(term.Parent)
			pf, pu := nodalFURaw(catalog.Get(pi), n, lat)
			f *= math.Pow(pf, math.Abs(term.Coef))
			u += term.Coef * pu
		}
		return f, u
	}
	if c.Nodal == nil {
		return 1.0, 0.0
	}
	s := c.Nodal
	scale := latFactor(s.LatDegree, lat)
	nrad := astro.Deg2Rad(n)
	f = s.F0
	for k, a := range s.FCos {
		f += scale * a * math.Cos(float64(k+1)*nrad)
	}
	for k, b := range s.USin {
		u += scale * b * math.Sin(float64(k+1)*nrad)
	}
	if f < 0 {
		f = 0
	}
	return f, u
}

// equilibriumV evaluates the Greenwich equilibrium argument in degrees,
// normalized to [0, 360).
func equilibriumV(c catalog.Constituent, args astro.Arguments) float64 {
	return astro.NormDeg(equilibriumVRaw(c, args))
}

// equilibriumVRaw leaves the argument unnormalized for the same reason
// as nodalFURaw: fractional shallow coefficients must scale the true
// angle.
func equilibriumVRaw(c catalog.Constituent, args astro.Arguments) float64 {
	if c.IsShallow() {
		var v float64
		for _, term := range c.Shallow {
			pi, _ := catalog.Index(term.Parent)
			v += term.Coef * equilibriumVRaw(catalog.Get(pi), args)
		}
		return v
	}
	vec := [6]float64{args.Tau, args.S, args.H, args.P, args.Np, args.Pp}
	v := c.Semi
	for i := range 6 {
		v += c.Doodson[i] * vec[i]
	}
	return v * 360.0
}

// latFactor scales the modulation amplitude of third-degree terms.
// Latitudes within 5 degrees of the equator are clamped to avoid the
// singularity in the diurnal factor.
func latFactor(latDegree int, lat float64) float64 {
	if latDegree == 0 {
		return 1.0
	}
	if math.Abs(lat) < 5 {
		lat = math.Copysign(5, lat)
	}
	slat := math.Sin(astro.Deg2Rad(lat))
	switch latDegree {
	case 1:
		return 0.36309 * (1.0 - 5.0*slat*slat) / slat
	case 2:
		return 2.59808 * slat
	default:
		return 1.0
	}
}

func newMatrix(rows, cols int) [][]float64 {
	backing := make([]float64, rows*cols)
	m := make([][]float64, rows)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols]
	}
	return m
}
