package harmonics

import (
	"math"
	"math/cmplx"

	"go.ngs.io/tidefit/internal/astro"
)

// Basis builds the complex harmonic basis matrix E (time steps x
// constituents), where each column carries the constituent's corrected
// harmonic
//
//	E[i][k] = F * exp(i * (V + U) * pi/180)
//
// with F, U, V from the nodal correction engine under the given fidelity
// flags. The fitted phase convention follows directly from the flags:
// full V yields Greenwich phase lags, linearized V an approximation, and
// raw V phase lags relative to the reference time.
func Basis(t []float64, tref float64, indices []int, lat float64, flags Flags) [][]complex128 {
	nt := len(t)
	nc := len(indices)
	E := newComplexMatrix(nt, nc)

	if flags.NodSat == None && flags.Gwch == None {
		frq := Frequencies(indices, tref)
		for i, ti := range t {
			for k := range nc {
				arg := 2.0 * math.Pi * frq[k] * 24.0 * (ti - tref)
				E[i][k] = cmplx.Exp(complex(0, arg))
			}
		}
		return E
	}

	F, U, V := FUV(t, tref, indices, lat, flags)
	for i := range nt {
		for k := range nc {
			arg := astro.Deg2Rad(V[i][k] + U[i][k])
			E[i][k] = complex(F[i][k], 0) * cmplx.Exp(complex(0, arg))
		}
	}
	return E
}

func newComplexMatrix(rows, cols int) [][]complex128 {
	backing := make([]complex128, rows*cols)
	m := make([][]complex128, rows)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols]
	}
	return m
}
