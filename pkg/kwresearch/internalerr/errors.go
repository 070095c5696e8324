package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrMissingColumn      = errors.New("missing required column")
	ErrEmptyKeywordSet    = errors.New("no keywords left after filtering")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrCapability         = errors.New("capability call failed")
	ErrProductUnavailable = errors.New("product data unavailable")
	ErrOutputWrite        = errors.New("output write failed")
	ErrStoreUnavailable   = errors.New("store unavailable")
)
