package harmonic

import (
	"math"
	"math/cmplx"

	"go.ngs.io/tidefit/internal/harmonics"
	"go.ngs.io/tidefit/internal/selection"
)

// design is the assembled least-squares problem for one fit. Column
// layout: nNR basis columns, their conjugates, nR inference-adjusted
// reference columns, their conjugates, the mean, and optionally the
// trend.
type design struct {
	B [][]complex128

	nNR, nR  int
	hasTrend bool

	// Approximate-inference correction factors, one pair per reference.
	// The fitted reference coefficients are divided by these to undo the
	// energy absorbed from the collapsed inferred columns.
	corrP, corrM []complex128
}

func (d *design) nm() int { return len(d.B[0]) }

// Column indices of the non-harmonic terms.
func (d *design) meanCol() int  { return 2 * (d.nNR + d.nR) }
func (d *design) trendCol() int { return d.meanCol() + 1 }

// Coefficient slot columns for constituent k in NR-then-R order: p is the
// positive-rotary column, q the negative-rotary one.
func (d *design) coefCols(k int) (p, q int) {
	if k < d.nNR {
		return k, d.nNR + k
	}
	r := k - d.nNR
	return 2*d.nNR + r, 2*d.nNR + d.nR + r
}

// buildDesign assembles the design matrix for the valid time steps.
// lor is the record length in days used to scale the trend column.
func buildDesign(sel *selection.Selection, t []float64, tref, lor, lat float64, flags harmonics.Flags, trend bool) *design {
	nt := len(t)
	nNR := sel.NNR()
	nR := sel.NR()
	nm := 2*(nNR+nR) + 1
	if trend {
		nm++
	}

	d := &design{nNR: nNR, nR: nR, hasTrend: trend}
	d.B = make([][]complex128, nt)
	backing := make([]complex128, nt*nm)
	for i := range d.B {
		d.B[i] = backing[i*nm : (i+1)*nm]
	}

	E := harmonics.Basis(t, tref, sel.NRIndices, lat, flags)
	for i := range nt {
		for k := range nNR {
			d.B[i][k] = E[i][k]
			d.B[i][nNR+k] = cmplx.Conj(E[i][k])
		}
	}

	for k, ref := range sel.R {
		eref := harmonics.Basis(t, tref, []int{ref.Index}, lat, flags)
		if sel.Approximate {
			for i := range nt {
				d.B[i][2*nNR+k] = eref[i][0]
				d.B[i][2*nNR+nR+k] = cmplx.Conj(eref[i][0])
			}
			cp, cm := approxCorrections(ref, tref, lor, lat, nt, flags)
			d.corrP = append(d.corrP, cp)
			d.corrM = append(d.corrM, cm)
			continue
		}
		eI := harmonics.Basis(t, tref, ref.Inferred.Indices, lat, flags)
		for i := range nt {
			var qp, qm complex128
			for j := range ref.Inferred.Indices {
				q := eI[i][j] / eref[i][0]
				qp += q * ref.Inferred.Rp[j]
				qm += q * cmplx.Conj(ref.Inferred.Rm[j])
			}
			d.B[i][2*nNR+k] = eref[i][0] * (1 + qp)
			d.B[i][2*nNR+nR+k] = cmplx.Conj(eref[i][0] * (1 + qm))
		}
	}

	for i := range nt {
		d.B[i][d.meanCol()] = 1
		if trend {
			d.B[i][d.trendCol()] = complex((t[i]-tref)/lor, 0)
		}
	}
	return d
}

// approxCorrections computes the factors that unscramble a reference
// coefficient fitted with collapsed inferred columns. Each inferred
// member contributes its ratio scaled by the basis-amplitude quotient at
// the reference time and a sinc weight in the frequency separation.
func approxCorrections(ref selection.Reference, tref, lor float64, lat float64, nt int, flags harmonics.Flags) (cp, cm complex128) {
	den := harmonics.Basis([]float64{tref}, tref, []int{ref.Index}, lat, flags)
	num := harmonics.Basis([]float64{tref}, tref, ref.Inferred.Indices, lat, flags)

	cp, cm = 1, 1
	for j := range ref.Inferred.Indices {
		q := real(num[0][j]) / real(den[0][0])
		arg := math.Pi * lor * 24 * (ref.Inferred.Frequencies[j] - ref.Frequency) *
			float64(nt+1) / float64(nt)
		beta := 1.0
		if arg != 0 {
			beta = math.Sin(arg) / arg
		}
		w := complex(q*beta, 0)
		cp += ref.Inferred.Rp[j] * w
		cm += cmplx.Conj(ref.Inferred.Rm[j]) * w
	}
	return cp, cm
}
