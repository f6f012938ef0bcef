// Package ellipse converts fitted complex coefficient pairs into physical
// amplitude/phase or tidal-ellipse parameters, and back.
package ellipse

import (
	"math"
	"math/cmplx"
)

// Params holds current-ellipse parameters for a set of constituents. For
// a scalar series Lsmaj is the amplitude, Lsmin and Theta are zero, and G
// is the phase lag in degrees.
type Params struct {
	Lsmaj []float64 // Semi-major axis (amplitude for scalar series).
	Lsmin []float64 // Semi-minor axis, signed: negative means clockwise rotation.
	Theta []float64 // Inclination in degrees, [0, 180).
	G     []float64 // Phase lag in degrees, [0, 360).
}

// FromComponents maps the cosine/sine components of the positive and
// negative rotary coefficients to ellipse parameters following the
// standard rotary decomposition. For scalar series pass nil Xv, Yv.
// Zero-amplitude inputs yield zero parameters rather than NaN.
func FromComponents(xu, yu, xv, yv []float64) Params {
	n := len(xu)
	p := Params{
		Lsmaj: make([]float64, n),
		Lsmin: make([]float64, n),
		Theta: make([]float64, n),
		G:     make([]float64, n),
	}
	for k := range n {
		var xvk, yvk float64
		if xv != nil {
			xvk = xv[k]
			yvk = yv[k]
		}
		cp := complex((xu[k]+yvk)/2, (xvk-yu[k])/2)
		cm := complex((xu[k]-yvk)/2, (xvk+yu[k])/2)

		ap := cmplx.Abs(cp)
		am := cmplx.Abs(cm)
		p.Lsmaj[k] = ap + am
		p.Lsmin[k] = ap - am
		if ap+am == 0 {
			continue
		}

		epsp := cmplx.Phase(cp) * 180 / math.Pi
		epsm := cmplx.Phase(cm) * 180 / math.Pi
		theta := normTo(epsm/2+epsp/2, 180)
		p.Theta[k] = theta
		p.G[k] = normTo(theta-epsp, 360)
	}
	return p
}

// FromCoefficients converts positive/negative rotary coefficients (ap, am)
// directly. twoDim selects the full ellipse decomposition; otherwise the
// coefficients are treated as a scalar series.
func FromCoefficients(ap, am []complex128, twoDim bool) Params {
	n := len(ap)
	xu := make([]float64, n)
	yu := make([]float64, n)
	var xv, yv []float64
	if twoDim {
		xv = make([]float64, n)
		yv = make([]float64, n)
	}
	for k := range n {
		xu[k] = real(ap[k] + am[k])
		yu[k] = -imag(ap[k] - am[k])
		if twoDim {
			xv[k] = imag(ap[k] + am[k])
			yv[k] = real(ap[k] - am[k])
		}
	}
	return FromComponents(xu, yu, xv, yv)
}

// ToCoefficients is the inverse mapping used by reconstruction: ellipse
// parameters back to positive/negative rotary coefficients.
func ToCoefficients(p Params, twoDim bool) (ap, am []complex128) {
	n := len(p.Lsmaj)
	ap = make([]complex128, n)
	am = make([]complex128, n)
	rad := math.Pi / 180.0
	for k := range n {
		if twoDim {
			ap[k] = complex(0.5*(p.Lsmaj[k]+p.Lsmin[k]), 0) *
				cmplx.Exp(complex(0, (p.Theta[k]-p.G[k])*rad))
			am[k] = complex(0.5*(p.Lsmaj[k]-p.Lsmin[k]), 0) *
				cmplx.Exp(complex(0, (p.Theta[k]+p.G[k])*rad))
		} else {
			ap[k] = complex(0.5*p.Lsmaj[k], 0) * cmplx.Exp(complex(0, -p.G[k]*rad))
			am[k] = cmplx.Conj(ap[k])
		}
	}
	return ap, am
}

func normTo(deg, period float64) float64 {
	deg = math.Mod(deg, period)
	if deg < 0 {
		deg += period
	}
	return deg
}
