// Package timeconv converts between wall-clock times and the day scale
// used throughout the analysis engine (Modified Julian Date).
package timeconv

import "time"

// mjdEpoch is 1858-11-17T00:00:00Z, the zero of the Modified Julian Date.
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

// ToDays returns the MJD day offset of t.
func ToDays(t time.Time) float64 {
	return t.Sub(mjdEpoch).Seconds() / 86400.0
}

// FromDays returns the UTC time at the given MJD day offset.
func FromDays(d float64) time.Time {
	ns := d * 86400.0 * 1e9
	return mjdEpoch.Add(time.Duration(ns)).UTC()
}

// SliceToDays converts a batch of times.
func SliceToDays(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = ToDays(t)
	}
	return out
}
