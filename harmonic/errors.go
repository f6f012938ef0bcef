package harmonic

import (
	"errors"

	"go.ngs.io/tidefit/internal/selection"
)

// Error taxonomy for the fit and reconstruct entry points. All detected
// errors are raised to the direct caller; nothing is retried except the
// internal robust reweighting loop, which is bounded and never fails.
var (
	// ErrInvalidInput reports malformed observation arrays: mismatched
	// shapes, empty series, or a missing/out-of-range latitude.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration reports a bad option value or a malformed
	// inference specification, detected before any numeric work. Shared
	// with the selection stage so errors.Is works across the pipeline.
	ErrInvalidConfiguration = selection.ErrInvalidConfiguration

	// ErrNotSupported reports an option combination the engine explicitly
	// does not implement yet, such as robust two-component fits.
	ErrNotSupported = errors.New("not supported")
)
