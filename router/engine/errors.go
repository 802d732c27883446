package engine

import (
	"errors"
)

// Error taxonomy for the router core. Callers dispatch with errors.Is; every
// error returned by the engine wraps exactly one of these sentinels.
var (
	// ErrInsufficientLiquidity means no viable path or edge meets the reserve
	// requirements for the requested amount.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrPriceImpactTooHigh means a path exists but every candidate exceeds
	// the price impact ceiling.
	ErrPriceImpactTooHigh = errors.New("price impact too high")

	// ErrExecution means a downstream submission or state transition failed.
	ErrExecution = errors.New("execution failed")

	// ErrChain means an external chain or venue endpoint is unreachable or
	// returned inconsistent state.
	ErrChain = errors.New("chain error")

	// ErrConfig means a required registration (token, venue, bridge) is
	// missing. Not recoverable without operator action.
	ErrConfig = errors.New("configuration error")
)

// Retryable reports whether the error kind is transient. ErrChain and
// ErrExecution may clear on their own; the rest need a different request or
// an operator.
func Retryable(err error) bool {
	return errors.Is(err, ErrChain) || errors.Is(err, ErrExecution)
}
