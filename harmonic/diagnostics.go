package harmonic

import (
	"math"
	"sort"
	"strings"
)

// computeDiagnostics fills percent energy and, when confidence intervals
// exist, signal-to-noise ratios.
func computeDiagnostics(coef *Coef) {
	n := coef.NumConstituents()
	if n == 0 {
		return
	}

	energy := make([]float64, n)
	var total float64
	for k := range n {
		e := constituentEnergy(coef, k)
		energy[k] = e
		total += e
	}

	coef.PE = make([]float64, n)
	if total > 0 {
		for k := range n {
			coef.PE[k] = 100 * energy[k] / total
		}
	}

	if coef.AmplitudeCI == nil && coef.LsmajCI == nil {
		return
	}
	coef.SNR = make([]float64, n)
	for k := range n {
		var noise float64
		if coef.TwoDim {
			noise = sq(coef.LsmajCI[k]/ciFactor) + sq(coef.LsminCI[k]/ciFactor)
		} else {
			noise = sq(coef.AmplitudeCI[k] / ciFactor)
		}
		if noise > 0 {
			coef.SNR[k] = energy[k] / noise
		} else {
			coef.SNR[k] = math.Inf(1)
		}
	}
	coef.DiagnosticsOmitted = false
}

func constituentEnergy(coef *Coef, k int) float64 {
	if coef.TwoDim {
		return sq(coef.Lsmaj[k]) + sq(coef.Lsmin[k])
	}
	return sq(coef.Amplitude[k])
}

func sq(v float64) float64 { return v * v }

// applyOrder reorders the per-constituent result fields. Validation of
// order/option compatibility happened before the fit.
func applyOrder(coef *Coef, opts Options) {
	n := coef.NumConstituents()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	switch opts.OrderBy {
	case OrderFrequency:
		sort.SliceStable(order, func(a, b int) bool {
			return coef.Aux.Frequencies[order[a]] < coef.Aux.Frequencies[order[b]]
		})
	case OrderNames:
		pos := make(map[string]int, len(opts.Constituents))
		for i, name := range opts.Constituents {
			cn := strings.ToUpper(strings.TrimSpace(name))
			if _, ok := pos[cn]; !ok {
				pos[cn] = i
			}
		}
		sort.SliceStable(order, func(a, b int) bool {
			pa, oka := pos[coef.Names[order[a]]]
			pb, okb := pos[coef.Names[order[b]]]
			if oka && okb {
				return pa < pb
			}
			// Names outside the caller's list (inferred members) sink to
			// the end in their current order.
			return oka && !okb
		})
	case OrderSNR:
		sort.SliceStable(order, func(a, b int) bool {
			return coef.SNR[order[a]] > coef.SNR[order[b]]
		})
	default: // OrderPE.
		if coef.PE == nil {
			return
		}
		sort.SliceStable(order, func(a, b int) bool {
			return coef.PE[order[a]] > coef.PE[order[b]]
		})
	}

	coef.permute(order)
}
