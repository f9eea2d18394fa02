package domain

import "errors"

var (
	// ErrInsufficientData indicates a training run lacked labels, features or joined samples.
	ErrInsufficientData = errors.New("insufficient training data")
	// ErrNoFeatures indicates no feature row exists inside the prediction lookback window.
	ErrNoFeatures = errors.New("no features available")
	// ErrModelNotFound indicates a requested or auto-selected model version does not exist.
	ErrModelNotFound = errors.New("model not found")
	// ErrUnsupportedAlgorithm indicates a model version carries an unknown algorithm prefix.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrContextUnavailable indicates a contextual feature source has no data for the request.
	ErrContextUnavailable = errors.New("context signals unavailable")
	// ErrInvalidLabel indicates a computed week failed record validation and was not stored.
	ErrInvalidLabel = errors.New("invalid activity week")
)

// ErrModelExists indicates a model version is already persisted; versions are immutable.
var ErrModelExists = errors.New("model version already exists")
