// Package venues holds helpers shared by liquidity venue adapters. The
// adapter capability interface itself lives in the engine package; concrete
// adapters are in the subpackages here.
package venues

import (
	"fmt"
	"math/big"
)

var bpsDenominator = big.NewInt(10000)

// MinimumAmountOut calculates the minimum acceptable output with slippage
// tolerance. slippageBps is basis points (e.g. 100 = 1%).
// min = expected * (10000 - slippageBps) / 10000
func MinimumAmountOut(expectedOutput string, slippageBps uint32) (string, error) {
	if slippageBps > 10000 {
		return "", fmt.Errorf("slippage %d bps exceeds 100%%", slippageBps)
	}

	expected, ok := new(big.Int).SetString(expectedOutput, 10)
	if !ok {
		return "", fmt.Errorf("failed to parse expected output %q", expectedOutput)
	}

	min := new(big.Int).Mul(expected, big.NewInt(int64(10000-slippageBps)))
	min.Quo(min, bpsDenominator)

	return min.String(), nil
}

// SlippageToBps converts a fractional slippage tolerance (0.01 = 1%) to
// basis points, rounding to the nearest point.
func SlippageToBps(slippage float64) uint32 {
	if slippage <= 0 {
		return 0
	}
	if slippage >= 1 {
		return 10000
	}
	return uint32(slippage*10000 + 0.5)
}
