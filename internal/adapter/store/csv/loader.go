// Package csv provides CSV-based observation series loading.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.ngs.io/tidefit/internal/adapter/store"
)

const fileSuffix = "_observations.csv"

// Store loads observation series from CSV files named
// <name>_observations.csv under a data directory. The expected header is
// "time,value" for scalar series or "time,value,value2" for
// two-component series; times are RFC3339 and empty value cells mark
// gaps.
type Store struct {
	dataDir string
}

// NewStore creates a new CSV-based observation store.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Load reads the named series.
func (s *Store) Load(name string) (*store.Series, error) {
	if strings.ContainsAny(name, `/\.`) {
		return nil, fmt.Errorf("invalid series name %q", name)
	}
	filename := filepath.Join(s.dataDir, strings.ToLower(name)+fileSuffix)

	file, err := os.Open(filename) //nolint:gosec // Name is validated above.
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file for series %s: %w", name, err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	twoDim, err := validateHeader(header)
	if err != nil {
		return nil, err
	}

	series := &store.Series{Latitude: store.NoLatitude()}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		line++

		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid time: %w", line, err)
		}
		u, err := parseCell(record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value: %w", line, err)
		}
		series.Times = append(series.Times, ts.UTC())
		series.U = append(series.U, u)
		if twoDim {
			v, err := parseCell(record[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid second value: %w", line, err)
			}
			series.V = append(series.V, v)
		}
	}

	if len(series.Times) == 0 {
		return nil, fmt.Errorf("no observations found in CSV for series %s", name)
	}
	return series, nil
}

// List returns available series names.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	names := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, fileSuffix) {
			names = append(names, strings.TrimSuffix(name, fileSuffix))
		}
	}
	return names, nil
}

func validateHeader(header []string) (twoDim bool, err error) {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(h))
	}
	switch {
	case len(cols) == 2 && cols[0] == "time" && cols[1] == "value":
		return false, nil
	case len(cols) == 3 && cols[0] == "time" && cols[1] == "value" && cols[2] == "value2":
		return true, nil
	default:
		return false, fmt.Errorf("invalid CSV header: expected time,value[,value2], got %v", header)
	}
}

// parseCell converts one value cell; empty cells mark gaps and map to NaN.
func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}
