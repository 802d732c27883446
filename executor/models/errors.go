// Package models defines the executor service's API types and error
// taxonomy.
package models

import "errors"

// Error taxonomy for the executor. Callers dispatch with errors.Is; every
// error returned by the mev, relay, and htlc packages wraps exactly one of
// these sentinels.
var (
	// ErrExecution means a downstream submission or state transition failed.
	// May be transient, but the executor never retries on its own.
	ErrExecution = errors.New("execution failed")

	// ErrChain means an external chain is unreachable or inconsistent.
	ErrChain = errors.New("chain error")

	// ErrConfig means a required registration (bridge, record) is missing.
	// Not recoverable without operator action.
	ErrConfig = errors.New("configuration error")
)
