// Package main provides the tidefit command-line tool: fit harmonic
// constituents to a CSV or NetCDF observation series and reconstruct
// series from saved coefficients.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.ngs.io/tidefit/harmonic"
	"go.ngs.io/tidefit/internal/adapter/store"
	"go.ngs.io/tidefit/internal/adapter/store/csv"
	"go.ngs.io/tidefit/internal/adapter/store/ncdf"
	"go.ngs.io/tidefit/internal/logging"
	"go.ngs.io/tidefit/internal/timeconv"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "fit":
		err = runFit(os.Args[2:])
	case "reconstruct":
		err = runReconstruct(os.Args[2:])
	case "help", "-help", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runFit(args []string) error {
	fs := flag.NewFlagSet("fit", flag.ExitOnError)
	input := fs.String("input", "", "Observation file: <series>_observations.csv or <series>.nc")
	lat := fs.Float64("lat", math.NaN(), "Latitude in degrees (default: from the series file)")
	constituents := fs.String("constituents", "", "Comma-separated constituent list (default: automatic)")
	method := fs.String("method", "ols", "Estimator: ols or robust")
	confInt := fs.String("conf-int", "linear", "Confidence intervals: linear, montecarlo or none")
	trend := fs.Bool("trend", true, "Fit a linear trend")
	output := fs.String("output", "", "Write coefficients JSON here (default: stdout)")
	verbose := fs.Bool("verbose", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("-input is required")
	}

	slog.SetDefault(logging.NewLogger(logLevel(*verbose), false))

	series, err := loadObservations(*input)
	if err != nil {
		return err
	}
	latitude := *lat
	if math.IsNaN(latitude) {
		latitude = series.lat
	}
	if math.IsNaN(latitude) {
		return fmt.Errorf("series carries no latitude; -lat is required")
	}

	opts := harmonic.DefaultOptions()
	opts.Trend = *trend
	opts.Verbose = *verbose
	if *constituents != "" {
		opts.Constituents = strings.Split(*constituents, ",")
	}
	switch *method {
	case "ols":
	case "robust":
		opts.Method = harmonic.Robust
	default:
		return fmt.Errorf("unknown method %q", *method)
	}
	switch *confInt {
	case "linear":
	case "montecarlo":
		opts.ConfInt = harmonic.ConfMonteCarlo
	case "none":
		opts.ConfInt = harmonic.ConfNone
	default:
		return fmt.Errorf("unknown conf-int %q", *confInt)
	}

	coef, err := harmonic.Solve(series.t, series.u, series.v, latitude, opts)
	if err != nil {
		return err
	}
	return writeJSON(*output, coef)
}

func runReconstruct(args []string) error {
	fs := flag.NewFlagSet("reconstruct", flag.ExitOnError)
	coefPath := fs.String("coef", "", "Coefficients JSON produced by fit")
	start := fs.String("start", "", "Range start, RFC3339")
	end := fs.String("end", "", "Range end, RFC3339")
	interval := fs.Duration("interval", 10*time.Minute, "Sample interval")
	minSNR := fs.Float64("min-snr", 2, "Minimum SNR for included constituents")
	minPE := fs.Float64("min-pe", 0, "Minimum percent energy for included constituents")
	output := fs.String("output", "", "Write series CSV here (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *coefPath == "" || *start == "" || *end == "" {
		return fmt.Errorf("-coef, -start and -end are required")
	}

	data, err := os.ReadFile(*coefPath) //nolint:gosec // User-supplied path by design.
	if err != nil {
		return fmt.Errorf("read coefficients: %w", err)
	}
	var coef harmonic.Coef
	if err := json.Unmarshal(data, &coef); err != nil {
		return fmt.Errorf("parse coefficients: %w", err)
	}

	startT, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}
	endT, err := time.Parse(time.RFC3339, *end)
	if err != nil {
		return fmt.Errorf("invalid end: %w", err)
	}
	if !startT.Before(endT) {
		return fmt.Errorf("start must be before end")
	}

	var times []time.Time
	for t := startT.UTC(); !t.After(endT); t = t.Add(*interval) {
		times = append(times, t)
	}

	opts := harmonic.DefaultReconstructOptions()
	opts.MinSNR = *minSNR
	opts.MinPE = *minPE

	rec, err := harmonic.Reconstruct(timeconv.SliceToDays(times), &coef, opts)
	if err != nil {
		return err
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output) //nolint:gosec // User-supplied path by design.
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if rec.V != nil {
		fmt.Fprintln(out, "time,value,value2")
	} else {
		fmt.Fprintln(out, "time,value")
	}
	for i, ts := range times {
		if rec.V != nil {
			fmt.Fprintf(out, "%s,%.6f,%.6f\n", ts.Format(time.RFC3339), rec.U[i], rec.V[i])
		} else {
			fmt.Fprintf(out, "%s,%.6f\n", ts.Format(time.RFC3339), rec.U[i])
		}
	}
	return nil
}

type obsSeries struct {
	t, u, v []float64
	lat     float64
}

// loadObservations reads an observation file through the store matching
// its naming convention: <series>_observations.csv or <series>.nc.
func loadObservations(path string) (*obsSeries, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	var series *store.Series
	var err error
	switch {
	case strings.HasSuffix(base, ".nc"):
		series, err = ncdf.NewStore(dir).Load(strings.TrimSuffix(base, ".nc"))
	case strings.HasSuffix(base, "_observations.csv"):
		series, err = csv.NewStore(dir).Load(strings.TrimSuffix(base, "_observations.csv"))
	default:
		return nil, fmt.Errorf("input file must be named <series>_observations.csv or <series>.nc")
	}
	if err != nil {
		return nil, err
	}
	return &obsSeries{
		t:   timeconv.SliceToDays(series.Times),
		u:   series.U,
		v:   series.V,
		lat: series.Latitude,
	}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func logLevel(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}

func printUsage() {
	fmt.Println("tidefit - tidal harmonic analysis")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  tidefit fit -input <series>_observations.csv [-lat 48.4] [flags]")
	fmt.Println("  tidefit fit -input <series>.nc [flags]")
	fmt.Println("  tidefit reconstruct -coef coef.json -start 2024-01-01T00:00:00Z -end 2024-01-08T00:00:00Z")
	fmt.Println()
	fmt.Println("Run 'tidefit fit -help' or 'tidefit reconstruct -help' for flags.")
}
