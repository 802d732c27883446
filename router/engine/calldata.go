package engine

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// defaultDeadlineWindow is applied when the caller does not pin a deadline.
const defaultDeadlineWindow = 20 * time.Minute

const swapRouterABI = `[{"constant":false,"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"payable":false,"stateMutability":"nonpayable","type":"function"}]`

var (
	swapABIOnce sync.Once
	swapABI     abi.ABI
	swapABIErr  error
)

func routerABI() (abi.ABI, error) {
	swapABIOnce.Do(func() {
		swapABI, swapABIErr = abi.JSON(strings.NewReader(swapRouterABI))
	})
	return swapABI, swapABIErr
}

// BuildSwapCalldata ABI-encodes the route as a V2-style
// swapExactTokensForTokens call. deadline is a unix timestamp in seconds;
// zero means now plus the default window. Every address on the path must be
// an EVM hex address.
func BuildSwapCalldata(route *SwapRoute, recipient string, deadline uint64) (string, error) {
	if route == nil || len(route.Steps) == 0 {
		return "", fmt.Errorf("%w: cannot encode an empty route", ErrConfig)
	}
	if !common.IsHexAddress(recipient) {
		return "", fmt.Errorf("%w: recipient %q is not a hex address", ErrConfig, recipient)
	}

	amountIn, ok := new(big.Int).SetString(route.AmountIn, 10)
	if !ok {
		return "", fmt.Errorf("%w: route amount in %q", ErrConfig, route.AmountIn)
	}
	last := route.Steps[len(route.Steps)-1]
	amountOutMin, ok := new(big.Int).SetString(last.AmountOutMin, 10)
	if !ok {
		return "", fmt.Errorf("%w: route amount out min %q", ErrConfig, last.AmountOutMin)
	}

	path := make([]common.Address, 0, len(route.Steps)+1)
	first := route.Steps[0].TokenIn.Address
	if !common.IsHexAddress(first) {
		return "", fmt.Errorf("%w: token %s is not an EVM address", ErrConfig, first)
	}
	path = append(path, common.HexToAddress(first))
	for _, step := range route.Steps {
		addr := step.TokenOut.Address
		if !common.IsHexAddress(addr) {
			return "", fmt.Errorf("%w: token %s is not an EVM address", ErrConfig, addr)
		}
		path = append(path, common.HexToAddress(addr))
	}

	if deadline == 0 {
		deadline = uint64(time.Now().Add(defaultDeadlineWindow).Unix())
	}

	parsed, err := routerABI()
	if err != nil {
		return "", fmt.Errorf("parsing router ABI: %w", err)
	}
	data, err := parsed.Pack("swapExactTokensForTokens",
		amountIn,
		amountOutMin,
		path,
		common.HexToAddress(recipient),
		new(big.Int).SetUint64(deadline),
	)
	if err != nil {
		return "", fmt.Errorf("packing swap calldata: %w", err)
	}
	return hexutil.Encode(data), nil
}
