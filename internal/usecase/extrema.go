package usecase

import (
	"math"
	"time"
)

// Level is one sample of a reconstructed series.
type Level struct {
	Time  time.Time
	Value float64
}

// Extrema contains detected highs and lows.
type Extrema struct {
	Highs []Level
	Lows  []Level
}

// FindExtrema locates local highs and lows of a reconstructed series by
// sign change of the discrete first derivative. Samples adjacent to a
// NaN gap are never reported.
func FindExtrema(levels []Level) Extrema {
	ex := Extrema{Highs: []Level{}, Lows: []Level{}}
	for i := 1; i+1 < len(levels); i++ {
		y0, y1, y2 := levels[i-1].Value, levels[i].Value, levels[i+1].Value
		if math.IsNaN(y0) || math.IsNaN(y1) || math.IsNaN(y2) {
			continue
		}
		switch {
		case y1 > y0 && y1 > y2:
			ex.Highs = append(ex.Highs, levels[i])
		case y1 < y0 && y1 < y2:
			ex.Lows = append(ex.Lows, levels[i])
		}
		// Flat tops (y1 equal to a neighbour) are not reported.
	}
	return ex
}

// RefineExtremum interpolates a single extremum from the three samples
// around it.
func RefineExtremum(before, peak, after Level) (time.Time, float64) {
	l := refineAt([]Level{before, peak, after}, 1)
	return l.Time, l.Value
}

// RefineExtrema sharpens every detected extremum by parabolic
// interpolation through its neighbouring samples. Extrema whose sample
// cannot be located in the series are passed through unchanged.
func RefineExtrema(levels []Level, extrema Extrema) Extrema {
	return Extrema{
		Highs: refineAll(levels, extrema.Highs),
		Lows:  refineAll(levels, extrema.Lows),
	}
}

// refineAll resumes a single forward scan across the series: extrema
// arrive in time order, so each lookup starts where the previous one
// stopped.
func refineAll(levels []Level, in []Level) []Level {
	out := make([]Level, len(in))
	j := 0
	for k, l := range in {
		out[k] = l
		for j < len(levels) && levels[j].Time.Before(l.Time) {
			j++
		}
		if j < 1 || j+1 >= len(levels) || !levels[j].Time.Equal(l.Time) {
			continue
		}
		out[k] = refineAt(levels, j)
	}
	return out
}

// refineAt fits a parabola through samples j-1, j, j+1 and returns its
// vertex. The discrete sample stands when the spacing is non-uniform,
// the samples are nearly collinear, or the vertex falls outside the
// sample interval.
func refineAt(levels []Level, j int) Level {
	peak := levels[j]
	h := peak.Time.Sub(levels[j-1].Time).Hours()
	if math.Abs(levels[j+1].Time.Sub(peak.Time).Hours()-h) > 1e-6 {
		return peak
	}

	y0, y1, y2 := levels[j-1].Value, peak.Value, levels[j+1].Value
	a := (y2 - 2*y1 + y0) / (2 * h * h)
	b := (y2 - y0) / (2 * h)
	if math.Abs(a) < 1e-10 {
		return peak
	}
	dt := -b / (2 * a)
	if math.Abs(dt) > h {
		return peak
	}
	return Level{
		Time:  peak.Time.Add(time.Duration(dt * float64(time.Hour))),
		Value: y1 + b*dt + a*dt*dt,
	}
}
