package market

import "errors"

var (
	// ErrMissingContext is returned by pair-dependent derivations when a token
	// identity or the acting account is absent. Callers render a "not ready" state.
	ErrMissingContext = errors.New("market context not ready")

	// ErrForeignPair is returned by Classify for an order that does not trade the pair's tokens.
	ErrForeignPair = errors.New("order does not belong to pair")

	// ErrEmptySeries marks a price series with too few fills to compare. Views
	// never surface it; they fall back to zero values instead.
	ErrEmptySeries = errors.New("not enough fills")
)
