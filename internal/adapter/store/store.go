// Package store defines access to observation series used as fit input.
package store

import (
	"math"
	"time"
)

// Series is an observation record: sample times with one or two value
// components. Latitude is NaN when the backing format does not carry it;
// the caller must then supply one.
type Series struct {
	Times    []time.Time
	U        []float64
	V        []float64 // Nil for scalar series.
	Latitude float64
}

// NoLatitude marks a series whose source did not record a latitude.
func NoLatitude() float64 { return math.NaN() }

// HasLatitude reports whether the series carries its own latitude.
func (s *Series) HasLatitude() bool { return !math.IsNaN(s.Latitude) }

// ObservationLoader loads named observation series from a backing store.
type ObservationLoader interface {
	// Load reads the series with the given name.
	Load(name string) (*Series, error)
	// List returns the names of the available series.
	List() ([]string, error)
}
