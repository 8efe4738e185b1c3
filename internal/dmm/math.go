package dmm

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// Quote is the result of pricing one trade against one pool. Expected is the
// fee-inclusive amount; Epsilon is the zero-slippage, zero-fee amount priced
// on actual reserves, from which SlippageBps is derived.
type Quote struct {
	Pool     solana.PublicKey
	TokenIn  solana.PublicKey
	TokenOut solana.PublicKey

	AmountIn  *big.Int
	AmountOut *big.Int

	// Fee in Precision units charged on the input side.
	Fee *big.Int

	Epsilon     *big.Int
	SlippageBps *big.Int
}

// tradeSides selects actual and virtual reserves in trade direction.
func tradeSides(p *PoolState, tokenIn solana.PublicKey) (rIn, rOut, vIn, vOut *big.Int, err error) {
	v0, v1 := p.virtualReserves()
	switch {
	case p.Token0.Equals(tokenIn):
		return p.Reserve0, p.Reserve1, v0, v1, nil
	case p.Token1.Equals(tokenIn):
		return p.Reserve1, p.Reserve0, v1, v0, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("%w: %s in pool %s", ErrTokenNotInPool, tokenIn, p.Address)
	}
}

// AmountOut prices an exact-input trade: fee is taken off the input, then the
// virtual reserves are swept with floor division. The math reproduces the
// on-chain program exactly, so minimum-output bounds derived from it match
// chain-side rejection behavior.
func AmountOut(p *PoolState, tokenIn solana.PublicKey, amountIn *big.Int, height uint64) (*big.Int, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative input amount", ErrInvalidPoolState)
	}
	_, _, vIn, vOut, err := tradeSides(p, tokenIn)
	if err != nil {
		return nil, err
	}
	if vIn.Sign() == 0 || vOut.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool %s is empty", ErrInfeasible, p.Address)
	}

	fee := SwapFee(p, height)
	inWithFee := new(big.Int).Sub(Precision, fee)
	inWithFee.Mul(inWithFee, amountIn)
	inWithFee.Quo(inWithFee, Precision)

	out := new(big.Int).Mul(inWithFee, vOut)
	den := new(big.Int).Add(inWithFee, vIn)
	return out.Quo(out, den), nil
}

// AmountIn prices an exact-output trade, the inverse of AmountOut with both
// divisions rounded up so the bound always covers the chain-side charge.
// Requesting at least the whole virtual output reserve is infeasible.
func AmountIn(p *PoolState, tokenIn solana.PublicKey, amountOut *big.Int, height uint64) (*big.Int, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if amountOut == nil || amountOut.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative output amount", ErrInvalidPoolState)
	}
	_, _, vIn, vOut, err := tradeSides(p, tokenIn)
	if err != nil {
		return nil, err
	}
	if amountOut.Cmp(vOut) >= 0 {
		return nil, fmt.Errorf("%w: output %s exceeds virtual reserve %s of pool %s",
			ErrInfeasible, amountOut, vOut, p.Address)
	}

	in := ceilDiv(new(big.Int).Mul(vIn, amountOut), new(big.Int).Sub(vOut, amountOut))

	fee := SwapFee(p, height)
	return ceilDiv(in.Mul(in, Precision), new(big.Int).Sub(Precision, fee)), nil
}

// EpsilonOut is the zero-slippage output: actual reserves, no fee. Callers
// compare it against the expected amount to show price impact.
func EpsilonOut(p *PoolState, tokenIn solana.PublicKey, amountIn *big.Int) (*big.Int, error) {
	rIn, rOut, _, _, err := tradeSides(p, tokenIn)
	if err != nil {
		return nil, err
	}
	if rIn.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool %s is empty", ErrInfeasible, p.Address)
	}
	out := new(big.Int).Mul(amountIn, rOut)
	return out.Quo(out, rIn), nil
}

// EpsilonIn is the zero-slippage input for an exact output.
func EpsilonIn(p *PoolState, tokenIn solana.PublicKey, amountOut *big.Int) (*big.Int, error) {
	rIn, rOut, _, _, err := tradeSides(p, tokenIn)
	if err != nil {
		return nil, err
	}
	if rOut.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool %s is empty", ErrInfeasible, p.Address)
	}
	return ceilDiv(new(big.Int).Mul(amountOut, rIn), rOut), nil
}

// SlippageBps returns (epsilon-expected)/epsilon in basis points, floored at
// zero. A zero epsilon yields zero slippage rather than a division fault.
func SlippageBps(epsilon, expected *big.Int) *big.Int {
	if epsilon == nil || epsilon.Sign() == 0 {
		return new(big.Int)
	}
	diff := new(big.Int).Sub(epsilon, expected)
	if diff.Sign() < 0 {
		return new(big.Int)
	}
	diff.Mul(diff, big.NewInt(BpsDenominator))
	return diff.Quo(diff, epsilon)
}

// QuoteExactIn prices a fixed input against a single pool and derives the
// slippage against the epsilon amount.
func QuoteExactIn(p *PoolState, tokenIn solana.PublicKey, amountIn *big.Int, height uint64) (*Quote, error) {
	out, err := AmountOut(p, tokenIn, amountIn, height)
	if err != nil {
		return nil, err
	}
	eps, err := EpsilonOut(p, tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	tokenOut, err := p.OtherToken(tokenIn)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Pool:        p.Address,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    new(big.Int).Set(amountIn),
		AmountOut:   out,
		Fee:         SwapFee(p, height),
		Epsilon:     eps,
		SlippageBps: SlippageBps(eps, out),
	}, nil
}

// QuoteExactOut prices a fixed output against a single pool. Slippage is
// derived on the input side: paying more than epsilon is the cost.
func QuoteExactOut(p *PoolState, tokenIn solana.PublicKey, amountOut *big.Int, height uint64) (*Quote, error) {
	in, err := AmountIn(p, tokenIn, amountOut, height)
	if err != nil {
		return nil, err
	}
	eps, err := EpsilonIn(p, tokenIn, amountOut)
	if err != nil {
		return nil, err
	}
	tokenOut, err := p.OtherToken(tokenIn)
	if err != nil {
		return nil, err
	}
	slip := new(big.Int)
	if eps.Sign() > 0 && in.Cmp(eps) > 0 {
		slip.Sub(in, eps)
		slip.Mul(slip, big.NewInt(BpsDenominator))
		slip.Quo(slip, eps)
	}
	return &Quote{
		Pool:        p.Address,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    in,
		AmountOut:   new(big.Int).Set(amountOut),
		Fee:         SwapFee(p, height),
		Epsilon:     eps,
		SlippageBps: slip,
	}, nil
}

// ceilDiv divides num by den rounding up. num is consumed.
func ceilDiv(num, den *big.Int) *big.Int {
	num.Add(num, new(big.Int).Sub(den, big.NewInt(1)))
	return num.Quo(num, den)
}
