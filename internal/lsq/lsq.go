// Package lsq solves complex linear least-squares problems, including the
// iteratively reweighted robust variant, on top of gonum dense matrices.
package lsq

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch reports design matrix and observation shapes that
// cannot be combined.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// LeastSquares solves x ~= B*m in the least-squares sense for a complex
// design matrix B (rows = observations) and complex right-hand side x.
// The complex system is solved through its real-expanded equivalent
//
//	[Re B  -Im B] [Re m]   [Re x]
//	[Im B   Re B] [Im m] = [Im x]
//
// so a rank-deficient B yields non-finite coefficients rather than an
// error; callers are expected to check with Finite.
func LeastSquares(B [][]complex128, x []complex128) ([]complex128, error) {
	return WeightedLeastSquares(B, x, nil)
}

// WeightedLeastSquares solves the weighted problem with one non-negative
// weight per observation. A nil weight slice means uniform weighting.
func WeightedLeastSquares(B [][]complex128, x []complex128, w []float64) ([]complex128, error) {
	nt := len(B)
	if nt == 0 {
		return nil, fmt.Errorf("%w: empty design matrix", ErrDimensionMismatch)
	}
	nm := len(B[0])
	if len(x) != nt {
		return nil, fmt.Errorf("%w: %d observations vs %d rows", ErrDimensionMismatch, len(x), nt)
	}
	if w != nil && len(w) != nt {
		return nil, fmt.Errorf("%w: %d weights vs %d rows", ErrDimensionMismatch, len(w), nt)
	}
	if 2*nt < 2*nm {
		return nil, fmt.Errorf("%w: underdetermined system (%d rows, %d columns)", ErrDimensionMismatch, nt, nm)
	}

	a := mat.NewDense(2*nt, 2*nm, nil)
	b := mat.NewVecDense(2*nt, nil)
	for i := range nt {
		s := 1.0
		if w != nil {
			s = math.Sqrt(w[i])
		}
		for j := range nm {
			re := s * real(B[i][j])
			im := s * imag(B[i][j])
			a.Set(i, j, re)
			a.Set(i, nm+j, -im)
			a.Set(nt+i, j, im)
			a.Set(nt+i, nm+j, re)
		}
		b.SetVec(i, s*real(x[i]))
		b.SetVec(nt+i, s*imag(x[i]))
	}

	var sol mat.VecDense
	err := sol.SolveVec(a, b)
	if err != nil && !isConditionErr(err) {
		// Near-singular systems still produce a solution; the caller
		// inspects it for finiteness. Anything else is fatal.
		return nil, fmt.Errorf("least squares solve: %w", err)
	}

	m := make([]complex128, nm)
	for j := range nm {
		m[j] = complex(sol.AtVec(j), sol.AtVec(nm+j))
	}
	return m, nil
}

// Finite reports whether every coefficient is finite.
func Finite(m []complex128) bool {
	for _, v := range m {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}

// Residuals returns x - B*m.
func Residuals(B [][]complex128, m, x []complex128) []complex128 {
	out := make([]complex128, len(x))
	for i := range B {
		var fit complex128
		for j, e := range B[i] {
			fit += e * m[j]
		}
		out[i] = x[i] - fit
	}
	return out
}

func isConditionErr(err error) bool {
	var c mat.Condition
	return errors.As(err, &c)
}
