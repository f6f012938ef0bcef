// Package ncdf provides NetCDF-based observation series loading.
package ncdf

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/tidefit/internal/adapter/store"
	"go.ngs.io/tidefit/internal/timeconv"
)

// Store loads observation series from NetCDF files named <name>.nc under
// a data directory. Each file carries a 1D "time" variable in days on
// the MJD scale, a "value" variable (second component in "value2"), and
// optionally a one-element "latitude" variable.
type Store struct {
	dataDir string
	cache   map[string]*store.Series
	mu      sync.RWMutex
}

// NewStore creates a new NetCDF observation store.
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		cache:   make(map[string]*store.Series),
	}
}

var (
	timeNames  = []string{"time", "t"}
	valueNames = []string{"value", "h", "elevation", "u"}
	value2Name = []string{"value2", "v"}
	latNames   = []string{"latitude", "lat"}
)

// Load reads the named series, caching parsed files.
func (s *Store) Load(name string) (*store.Series, error) {
	if strings.ContainsAny(name, `/\.`) {
		return nil, fmt.Errorf("invalid series name %q", name)
	}

	s.mu.RLock()
	if cached, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	filename := filepath.Join(s.dataDir, strings.ToLower(name)+".nc")
	series, err := readFile(filename)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = series
	s.mu.Unlock()
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
		if strings.HasSuffix(name, ".nc") {
			names = append(names, strings.TrimSuffix(name, ".nc"))
		}
	}
	return names, nil
}

func readFile(filename string) (*store.Series, error) {
	nc, err := netcdf.OpenFile(filename, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer func() { _ = nc.Close() }()

	days, err := readFirst(nc, timeNames)
	if err != nil {
		return nil, fmt.Errorf("time variable: %w", err)
	}
	u, err := readFirst(nc, valueNames)
	if err != nil {
		return nil, fmt.Errorf("value variable: %w", err)
	}
	if len(u) != len(days) {
		return nil, fmt.Errorf("value length %d does not match time length %d", len(u), len(days))
	}

	series := &store.Series{U: u, Latitude: store.NoLatitude()}
	series.Times = make([]time.Time, len(days))
	for i, d := range days {
		series.Times[i] = timeconv.FromDays(d)
	}

	if v, err := readFirst(nc, value2Name); err == nil {
		if len(v) != len(days) {
			return nil, fmt.Errorf("value2 length %d does not match time length %d", len(v), len(days))
		}
		series.V = v
	}

	if lat, err := readFirst(nc, latNames); err == nil && len(lat) > 0 {
		series.Latitude = lat[0]
	}

	return series, nil
}

// readFirst reads the first variable present under the candidate names.
func readFirst(nc netcdf.Dataset, names []string) ([]float64, error) {
	for _, name := range names {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		data, err := readFloat64Var(v)
		if err != nil {
			return nil, err
		}
		applyFillValue(v, data)
		return data, nil
	}
	return nil, fmt.Errorf("variable not found (tried: %v)", names)
}

// applyFillValue replaces fill-marked samples with NaN gaps.
func applyFillValue(v netcdf.Var, data []float64) {
	fill, ok := getFillValue(v)
	if !ok {
		return
	}
	for i, val := range data {
		if val == fill {
			data[i] = math.NaN()
		}
	}
}

// getFillValue returns the _FillValue or missing_value attribute if present as float64.
func getFillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		if a == (netcdf.Attr{}) {
			continue
		}
		if n, err := a.Len(); err == nil && n > 0 {
			buf64 := make([]float64, 1)
			if err := a.ReadFloat64s(buf64); err == nil {
				return buf64[0], true
			}
			buf32 := make([]float32, 1)
			if err := a.ReadFloat32s(buf32); err == nil {
				return float64(buf32[0]), true
			}
		}
	}
	return 0, false
}

// readFloat64Var reads a 1D float64 array from a NetCDF variable.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}

	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, length)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, length)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, length)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}
