package lsq

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
)

// WeightFunction is the robust-fit weighting scheme applied to scaled
// residuals during iterative reweighting.
type WeightFunction int

const (
	// Cauchy weighting, w = 1/(1+r^2). The default.
	Cauchy WeightFunction = iota
	// Huber weighting, w = min(1, 1/r).
	Huber
	// Bisquare (Tukey) weighting, w = (1-r^2)^2 for r<1, else 0.
	Bisquare
)

// String implements fmt.Stringer.
func (w WeightFunction) String() string {
	switch w {
	case Cauchy:
		return "cauchy"
	case Huber:
		return "huber"
	case Bisquare:
		return "bisquare"
	default:
		return fmt.Sprintf("WeightFunction(%d)", int(w))
	}
}

// Default tuning constants per weight function, chosen for 95% asymptotic
// efficiency on Gaussian residuals.
func defaultTune(w WeightFunction) float64 {
	switch w {
	case Huber:
		return 1.345
	case Bisquare:
		return 4.685
	default:
		return 2.385
	}
}

// RobustOptions configures the iteratively reweighted fit.
type RobustOptions struct {
	Weight  WeightFunction
	Tune    float64 // Zero selects the per-function default.
	MaxIter int     // Iteration cap; zero means 50.
	Tol     float64 // Convergence tolerance on the weight vector; zero means 1e-4.
}

// RobustResult carries the final robust fit state.
type RobustResult struct {
	Coef       []complex128
	Weights    []float64
	Scale      float64 // Residual scale estimate (normalized MAD).
	Iterations int
	Converged  bool
}

// RobustFit performs iteratively reweighted least squares. The loop is
// bounded: it returns the best estimate at the iteration cap rather than
// failing.
func RobustFit(B [][]complex128, x []complex128, opts RobustOptions) (*RobustResult, error) {
	tune := opts.Tune
	if tune <= 0 {
		tune = defaultTune(opts.Weight)
	}
	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = 50
	}
	tol := opts.Tol
	if tol <= 0 {
		tol = 1e-4
	}

	m, err := LeastSquares(B, x)
	if err != nil {
		return nil, err
	}

	nt := len(x)
	w := make([]float64, nt)
	for i := range w {
		w[i] = 1.0
	}

	res := &RobustResult{Coef: m, Weights: w}
	for iter := 1; iter <= maxIter; iter++ {
		e := Residuals(B, res.Coef, x)
		scale := madScale(e)
		res.Scale = scale
		if scale == 0 {
			// Exact fit; uniform weights are already correct.
			res.Converged = true
			res.Iterations = iter
			return res, nil
		}

		next := make([]float64, nt)
		for i, r := range e {
			next[i] = weigh(opts.Weight, cmplx.Abs(r)/(tune*scale))
		}

		m, err := WeightedLeastSquares(B, x, next)
		if err != nil {
			return nil, err
		}

		delta := 0.0
		for i := range next {
			if d := math.Abs(next[i] - res.Weights[i]); d > delta {
				delta = d
			}
		}
		res.Coef = m
		res.Weights = next
		res.Iterations = iter
		if delta < tol {
			res.Converged = true
			return res, nil
		}
	}
	return res, nil
}

func weigh(fn WeightFunction, r float64) float64 {
	switch fn {
	case Huber:
		if r <= 1 {
			return 1.0
		}
		return 1.0 / r
	case Bisquare:
		if r >= 1 {
			return 0.0
		}
		d := 1.0 - r*r
		return d * d
	default: // Cauchy.
		return 1.0 / (1.0 + r*r)
	}
}

// madScale estimates the residual scale as the median absolute deviation
// normalized for consistency with the Gaussian standard deviation.
func madScale(e []complex128) float64 {
	abs := make([]float64, len(e))
	for i, v := range e {
		abs[i] = cmplx.Abs(v)
	}
	sort.Float64s(abs)
	var med float64
	n := len(abs)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		med = abs[n/2]
	} else {
		med = 0.5 * (abs[n/2-1] + abs[n/2])
	}
	return med / 0.6745
}
