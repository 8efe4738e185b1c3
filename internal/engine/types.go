package engine

import (
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/lumenfi/dmm-swap-client/internal/dmm"
	"github.com/lumenfi/dmm-swap-client/internal/router"
)

// SwapIntent is a caller-facing swap request. Tokens are registry symbols and
// Amount is a human-readable decimal string, e.g. "1.5".
type SwapIntent struct {
	InputToken  string
	OutputToken string
	Amount      string

	// ExactOut prices Amount as the desired output instead of the input.
	ExactOut bool

	// SlippageBps overrides the engine's default tolerance when set.
	SlippageBps *uint64

	RequestedAt time.Time
}

// SwapParams is a validated, executable form of an intent. Amounts are in
// raw token units.
type SwapParams struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey

	Amount   *big.Int
	ExactOut bool

	SlippageBps uint64

	Intent   *SwapIntent
	ParsedAt time.Time
}

// QuoteResult is one priced trade, single pool or routed.
type QuoteResult struct {
	Route *router.Route

	AmountIn  *big.Int
	AmountOut *big.Int

	// Bound enforced on-chain: minimum out for exact-in, maximum in for
	// exact-out, after applying the slippage tolerance.
	Bound *big.Int

	SlippageBps *big.Int
	Height      uint64
	QuotedAt    time.Time
}

// SwapResult is the outcome of a submitted swap. Success here means the
// transaction was accepted by the node; final status arrives through the
// observer.
type SwapResult struct {
	Signature string
	Quote     *QuoteResult
	Duration  time.Duration
}

// hopQuote pairs a route hop with its priced amounts.
type hopQuote struct {
	hop   router.Hop
	quote *dmm.Quote
}
