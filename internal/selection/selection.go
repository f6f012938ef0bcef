// Package selection partitions the candidate constituent set into
// directly-fit and inferred subsets under the Rayleigh frequency
// resolvability criterion.
package selection

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"strings"

	"go.ngs.io/tidefit/internal/catalog"
	"go.ngs.io/tidefit/internal/harmonics"
)

// ErrInvalidConfiguration reports a malformed constituent list or
// inference specification. It is raised before any numeric work.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Inference specifies constituents estimated from a reference constituent
// via fixed amplitude ratios and phase offsets instead of being fit
// directly. Ratios and offsets have length N for a scalar series, or 2N
// for a two-component series (positive then negative rotary parts).
type Inference struct {
	InferredNames  []string
	ReferenceNames []string
	AmpRatios      []float64
	PhaseOffsets   []float64 // Degrees.

	// Approximate replaces the exact inferred-column construction with
	// the frequency-difference sinc-weighted approximation.
	Approximate bool
}

// InferredGroup carries the inferred members attached to one reference.
type InferredGroup struct {
	Names       []string
	Indices     []int
	Frequencies []float64
	Rp          []complex128 // Ratio applied to the positive-rotary coefficient.
	Rm          []complex128 // Ratio applied to the negative-rotary coefficient.
}

// Reference is a directly-fit constituent owning an inference group.
type Reference struct {
	Name      string
	Index     int
	Frequency float64
	Inferred  InferredGroup
}

// Selection is the resolved partition for one fit. Immutable once built.
type Selection struct {
	RefTime float64
	MinRes  float64 // Rayleigh frequency separation threshold, cycles/hour.

	// NR: constituents fit directly with no inference attached.
	NRNames       []string
	NRIndices     []int
	NRFrequencies []float64

	// R: reference constituents, each owning inferred members.
	R []Reference

	Approximate bool
}

// NNR returns the number of independently resolvable constituents.
func (s *Selection) NNR() int { return len(s.NRIndices) }

// NR returns the number of reference constituents.
func (s *Selection) NR() int { return len(s.R) }

// NI returns the total number of inferred constituents.
func (s *Selection) NI() int {
	n := 0
	for _, r := range s.R {
		n += len(r.Inferred.Names)
	}
	return n
}

// AllNames returns constituent names in coefficient order:
// NR, then references, then inferred members.
func (s *Selection) AllNames() []string {
	out := make([]string, 0, s.NNR()+s.NR()+s.NI())
	out = append(out, s.NRNames...)
	for _, r := range s.R {
		out = append(out, r.Name)
	}
	for _, r := range s.R {
		out = append(out, r.Inferred.Names...)
	}
	return out
}

// AllFrequencies returns frequencies in coefficient order.
func (s *Selection) AllFrequencies() []float64 {
	out := make([]float64, 0, s.NNR()+s.NR()+s.NI())
	out = append(out, s.NRFrequencies...)
	for _, r := range s.R {
		out = append(out, r.Frequency)
	}
	for _, r := range s.R {
		out = append(out, r.Inferred.Frequencies...)
	}
	return out
}

// AllIndices returns catalog indices in coefficient order.
func (s *Selection) AllIndices() []int {
	out := make([]int, 0, s.NNR()+s.NR()+s.NI())
	out = append(out, s.NRIndices...)
	for _, r := range s.R {
		out = append(out, r.Index)
	}
	for _, r := range s.R {
		out = append(out, r.Inferred.Indices...)
	}
	return out
}

// Select builds the constituent partition for a record centred at tref
// (MJD days) spanning lor days. names lists the requested constituents;
// nil means automatic selection from the catalog. rmin scales the Rayleigh
// criterion; twoDim selects the 2N ratio/offset convention for inference.
func Select(tref, lor, rmin float64, names []string, infer *Inference, twoDim bool) (*Selection, error) {
	if lor <= 0 {
		return nil, fmt.Errorf("%w: record length must be positive", ErrInvalidConfiguration)
	}
	minres := rmin / (24.0 * lor)

	if err := validateInfer(infer, twoDim); err != nil {
		return nil, err
	}

	inferredSet := make(map[string]bool)
	referenceSet := make(map[string]bool)
	if infer != nil {
		for _, n := range infer.InferredNames {
			inferredSet[canonical(n)] = true
		}
		for _, n := range infer.ReferenceNames {
			referenceSet[canonical(n)] = true
		}
	}

	var candidates []int
	if names == nil {
		candidates = autoCandidates(tref, lor, minres, inferredSet, referenceSet)
	} else {
		candidates = make([]int, 0, len(names))
		seen := make(map[int]bool)
		for _, n := range names {
			idx, ok := catalog.Index(canonical(n))
			if !ok {
				return nil, fmt.Errorf("%w: unknown constituent %q", ErrInvalidConfiguration, n)
			}
			if !seen[idx] {
				seen[idx] = true
				candidates = append(candidates, idx)
			}
		}
	}

	frq := harmonics.Frequencies(candidates, tref)

	sel := &Selection{RefTime: tref, MinRes: minres}
	if infer != nil {
		sel.Approximate = infer.Approximate
	}

	candidateByName := make(map[string]int, len(candidates))
	for i, idx := range candidates {
		candidateByName[catalog.Get(idx).Name] = i
	}

	// Reference constituents must be part of the selection.
	if infer != nil {
		for _, n := range infer.ReferenceNames {
			if _, ok := candidateByName[canonical(n)]; !ok {
				return nil, fmt.Errorf("%w: inference reference %q not in selection", ErrInvalidConfiguration, n)
			}
		}
	}

	// Partition: inferred members never fit directly; references own them.
	refByName := make(map[string]*Reference)
	if infer != nil {
		for _, n := range infer.ReferenceNames {
			cn := canonical(n)
			if _, ok := refByName[cn]; ok {
				continue
			}
			i := candidateByName[cn]
			refByName[cn] = &Reference{Name: cn, Index: candidates[i], Frequency: frq[i]}
		}
		nI := len(infer.InferredNames)
		for j, n := range infer.InferredNames {
			cn := canonical(n)
			idx, ok := catalog.Index(cn)
			if !ok {
				return nil, fmt.Errorf("%w: unknown inferred constituent %q", ErrInvalidConfiguration, n)
			}
			ref := refByName[canonical(infer.ReferenceNames[j])]
			rp, rm := ratioPair(infer, j, nI, twoDim)
			g := &ref.Inferred
			g.Names = append(g.Names, cn)
			g.Indices = append(g.Indices, idx)
			g.Frequencies = append(g.Frequencies, harmonics.Frequencies([]int{idx}, tref)[0])
			g.Rp = append(g.Rp, rp)
			g.Rm = append(g.Rm, rm)
		}
		// References in declaration order of the spec.
		added := make(map[string]bool)
		for _, n := range infer.ReferenceNames {
			cn := canonical(n)
			if !added[cn] {
				added[cn] = true
				sel.R = append(sel.R, *refByName[cn])
			}
		}
	}

	for i, idx := range candidates {
		name := catalog.Get(idx).Name
		if inferredSet[name] || referenceSet[name] {
			continue
		}
		sel.NRNames = append(sel.NRNames, name)
		sel.NRIndices = append(sel.NRIndices, idx)
		sel.NRFrequencies = append(sel.NRFrequencies, frq[i])
	}

	// NR ordered by frequency.
	order := make([]int, len(sel.NRIndices))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sel.NRFrequencies[order[a]] < sel.NRFrequencies[order[b]]
	})
	sel.NRNames = permuteStrings(sel.NRNames, order)
	sel.NRIndices = permuteInts(sel.NRIndices, order)
	sel.NRFrequencies = permuteFloats(sel.NRFrequencies, order)

	return sel, nil
}

// autoCandidates picks catalog entries for automatic mode: at least one
// full cycle must fit in the record, and of any pair closer than the
// Rayleigh threshold only the higher-priority member survives, unless an
// inference entry accounts for the other.
func autoCandidates(tref, lor, minres float64, inferredSet, referenceSet map[string]bool) []int {
	all := make([]int, len(catalog.Entries))
	for i := range all {
		all[i] = i
	}
	frq := harmonics.Frequencies(all, tref)

	oneCycle := 1.0 / (24.0 * lor)
	type cand struct {
		idx int
		frq float64
	}
	var cands []cand
	for i, f := range frq {
		if f >= oneCycle {
			cands = append(cands, cand{idx: i, frq: f})
		}
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].frq < cands[b].frq })

	participant := func(idx int) bool {
		name := catalog.Get(idx).Name
		return inferredSet[name] || referenceSet[name]
	}
	// Lower rank wins an unresolvable pair; ties break on declaration order.
	higherPriority := func(a, b int) bool {
		ra, rb := catalog.Get(a).Rank, catalog.Get(b).Rank
		if ra != rb {
			return ra < rb
		}
		return a < b
	}

	var kept []cand
	for _, c := range cands {
		if len(kept) == 0 {
			kept = append(kept, c)
			continue
		}
		prev := &kept[len(kept)-1]
		if c.frq-prev.frq >= minres {
			kept = append(kept, c)
			continue
		}
		// Unresolvable pair. Inference participants always survive; the
		// inference spec accounts for their shared frequency band.
		switch {
		case participant(c.idx) && participant(prev.idx):
			kept = append(kept, c)
		case participant(c.idx):
			*prev = c
		case participant(prev.idx):
			// Drop the newcomer.
		case higherPriority(c.idx, prev.idx):
			*prev = c
		}
	}

	out := make([]int, len(kept))
	for i, c := range kept {
		out[i] = c.idx
	}
	sort.Ints(out)
	return out
}

func validateInfer(infer *Inference, twoDim bool) error {
	if infer == nil {
		return nil
	}
	nI := len(infer.InferredNames)
	if nI == 0 {
		return fmt.Errorf("%w: inference requires at least one inferred name", ErrInvalidConfiguration)
	}
	if len(infer.ReferenceNames) != nI {
		return fmt.Errorf("%w: inferred_names and reference_names must have the same length", ErrInvalidConfiguration)
	}
	want := nI
	if twoDim {
		want = 2 * nI
	}
	if len(infer.AmpRatios) != want || len(infer.PhaseOffsets) != want {
		return fmt.Errorf("%w: inference ratios and offsets need length %d", ErrInvalidConfiguration, want)
	}
	seen := make(map[string]bool, nI)
	for _, n := range infer.InferredNames {
		cn := canonical(n)
		if seen[cn] {
			return fmt.Errorf("%w: duplicate inferred constituent %q", ErrInvalidConfiguration, n)
		}
		seen[cn] = true
	}
	return nil
}

// ratioPair converts the j-th amplitude ratio and phase offset into the
// complex factors applied to the reference's rotary coefficients.
func ratioPair(infer *Inference, j, nI int, twoDim bool) (rp, rm complex128) {
	rad := math.Pi / 180.0
	rp = complex(infer.AmpRatios[j], 0) * cmplx.Exp(complex(0, infer.PhaseOffsets[j]*rad))
	if twoDim {
		rm = complex(infer.AmpRatios[nI+j], 0) * cmplx.Exp(complex(0, -infer.PhaseOffsets[nI+j]*rad))
	} else {
		rm = cmplx.Conj(rp)
	}
	return rp, rm
}

func canonical(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func permuteStrings(s []string, order []int) []string {
	out := make([]string, len(s))
	for i, j := range order {
		out[i] = s[j]
	}
	return out
}

func permuteInts(s []int, order []int) []int {
	out := make([]int, len(s))
	for i, j := range order {
		out[i] = s[j]
	}
	return out
}

func permuteFloats(s []float64, order []int) []float64 {
	out := make([]float64, len(s))
	for i, j := range order {
		out[i] = s[j]
	}
	return out
}
