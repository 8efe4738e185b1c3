// Package router searches the pool graph for the best swap route between two
// tokens. Paths are at most three hops, never revisit a pool, and candidates
// replace the current best only on strict improvement, so among equal results
// the earliest discovery (fewest hops, then index order) wins.
package router

import (
	"errors"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/lumenfi/dmm-swap-client/internal/dmm"
	"github.com/lumenfi/dmm-swap-client/internal/state"
)

// MaxHops caps the search depth.
const MaxHops = 3

// ErrNoRoute signals that no pool path connects the pair. Callers typically
// refresh the snapshot and retry, or surface "insufficient liquidity".
var ErrNoRoute = errors.New("no route between tokens")

// Hop is one pool traversal within a route.
type Hop struct {
	Pool     solana.PublicKey
	TokenIn  solana.PublicKey
	TokenOut solana.PublicKey
}

// Route is the winning path with its end-to-end amounts.
type Route struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	Hops      []Hop
}

// Pools returns the pool addresses along the route.
func (r *Route) Pools() []solana.PublicKey {
	out := make([]solana.PublicKey, len(r.Hops))
	for i, h := range r.Hops {
		out[i] = h.Pool
	}
	return out
}

// BestExactIn finds the route that maximizes output for a fixed input.
// Every hop prices against the snapshot with fee statistics advanced to the
// given height; the snapshot itself is never written.
func BestExactIn(snap *state.Snapshot, tokenIn, tokenOut solana.PublicKey, amountIn *big.Int, height uint64) (*Route, error) {
	if snap == nil {
		return nil, errors.New("nil snapshot")
	}
	if tokenIn.Equals(tokenOut) {
		return nil, errors.New("input and output token must differ")
	}

	var best *Route
	// Depth-first over pool paths; hop count increases only when the prefix
	// fails to terminate, so shallower candidates are always seen first.
	for depth := 1; depth <= MaxHops; depth++ {
		searchForward(snap, tokenIn, tokenOut, amountIn, height, depth, nil, &best)
	}
	if best == nil {
		return nil, ErrNoRoute
	}
	best.AmountIn = new(big.Int).Set(amountIn)
	return best, nil
}

// searchForward extends the current prefix by exactly `remaining` more hops
// and records complete paths that strictly beat the best so far.
func searchForward(snap *state.Snapshot, tokenIn, tokenOut solana.PublicKey, running *big.Int, height uint64, remaining int, prefix []Hop, best **Route) {
	for _, addr := range snap.PoolsFor(tokenIn) {
		if usedPool(prefix, addr) {
			continue
		}
		pool, err := snap.Pool(addr)
		if err != nil {
			continue
		}
		mid, err := pool.OtherToken(tokenIn)
		if err != nil {
			continue
		}
		if remaining == 1 && !mid.Equals(tokenOut) {
			continue
		}
		if remaining > 1 && mid.Equals(tokenOut) {
			// This length is handled by a shallower pass.
			continue
		}

		out, err := dmm.AmountOut(pool, tokenIn, running, height)
		if err != nil {
			// Infeasible or empty pool: skip the candidate cheaply.
			continue
		}

		hops := append(prefix, Hop{Pool: addr, TokenIn: tokenIn, TokenOut: mid})
		if remaining == 1 {
			if *best == nil || out.Cmp((*best).AmountOut) > 0 {
				*best = &Route{AmountOut: out, Hops: cloneHops(hops)}
			}
			continue
		}
		searchForward(snap, mid, tokenOut, out, height, remaining-1, hops, best)
	}
}

// BestExactOut finds the route that minimizes input for a fixed output,
// searching backward from the output token.
func BestExactOut(snap *state.Snapshot, tokenIn, tokenOut solana.PublicKey, amountOut *big.Int, height uint64) (*Route, error) {
	if snap == nil {
		return nil, errors.New("nil snapshot")
	}
	if tokenIn.Equals(tokenOut) {
		return nil, errors.New("input and output token must differ")
	}

	var best *Route
	for depth := 1; depth <= MaxHops; depth++ {
		searchBackward(snap, tokenIn, tokenOut, amountOut, height, depth, nil, &best)
	}
	if best == nil {
		return nil, ErrNoRoute
	}
	best.AmountOut = new(big.Int).Set(amountOut)
	return best, nil
}

// searchBackward extends the route toward the input token; suffix holds the
// hops closest to the output, in final order.
func searchBackward(snap *state.Snapshot, tokenIn, tokenOut solana.PublicKey, running *big.Int, height uint64, remaining int, suffix []Hop, best **Route) {
	for _, addr := range snap.PoolsFor(tokenOut) {
		if usedPool(suffix, addr) {
			continue
		}
		pool, err := snap.Pool(addr)
		if err != nil {
			continue
		}
		mid, err := pool.OtherToken(tokenOut)
		if err != nil {
			continue
		}
		if remaining == 1 && !mid.Equals(tokenIn) {
			continue
		}
		if remaining > 1 && mid.Equals(tokenIn) {
			continue
		}

		in, err := dmm.AmountIn(pool, mid, running, height)
		if err != nil {
			continue
		}

		hops := append([]Hop{{Pool: addr, TokenIn: mid, TokenOut: tokenOut}}, suffix...)
		if remaining == 1 {
			if *best == nil || in.Cmp((*best).AmountIn) < 0 {
				*best = &Route{AmountIn: in, Hops: cloneHops(hops)}
			}
			continue
		}
		searchBackward(snap, tokenIn, mid, in, height, remaining-1, hops, best)
	}
}

func usedPool(hops []Hop, addr solana.PublicKey) bool {
	for _, h := range hops {
		if h.Pool.Equals(addr) {
			return true
		}
	}
	return false
}

func cloneHops(hops []Hop) []Hop {
	out := make([]Hop, len(hops))
	copy(out, hops)
	return out
}
