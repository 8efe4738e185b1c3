// Package engine orchestrates quoting, routing and swap execution on top of
// the pool state service.
package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/lumenfi/dmm-swap-client/internal/cache"
	"github.com/lumenfi/dmm-swap-client/internal/constants"
	"github.com/lumenfi/dmm-swap-client/internal/dmm"
	"github.com/lumenfi/dmm-swap-client/internal/flags"
	"github.com/lumenfi/dmm-swap-client/internal/models"
	"github.com/lumenfi/dmm-swap-client/internal/observer"
	"github.com/lumenfi/dmm-swap-client/internal/router"
	"github.com/lumenfi/dmm-swap-client/internal/state"
	"github.com/lumenfi/dmm-swap-client/internal/wallet"
)

// EngineConfig holds tunables for the engine.
type EngineConfig struct {
	// DeadlineBlocks is how many blocks past submission a swap remains
	// valid before the on-chain deadline and the observer expiry kick in.
	DeadlineBlocks uint64

	// MaxSlippageBps caps the tolerance a caller may request.
	MaxSlippageBps uint64
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DeadlineBlocks: constants.DefaultDeadlineBlocks,
		MaxSlippageBps: constants.DefaultMaxSlippageBps,
	}
}

// Engine wires the registry, state service, wallet and observer together.
// Storage and flag dependencies are optional; the engine degrades to
// quote-only behavior without a wallet.
type Engine struct {
	cfg      EngineConfig
	registry *dmm.Registry
	state    *state.Service
	wallet   *wallet.Wallet
	obs      *observer.Observer
	flags    *flags.Store

	redis      *cache.RedisCache
	pubsub     *cache.PubSubManager
	clickhouse *cache.ClickHouseStore

	logger *logrus.Logger
}

// EngineDeps collects the engine's collaborators.
type EngineDeps struct {
	Config   EngineConfig
	Registry *dmm.Registry
	State    *state.Service
	Wallet   *wallet.Wallet
	Provider observer.ChainStatusProvider
	Flags    *flags.Store

	Redis      *cache.RedisCache
	PubSub     *cache.PubSubManager
	ClickHouse *cache.ClickHouseStore

	Logger *logrus.Logger
}

func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if deps.State == nil {
		return nil, fmt.Errorf("state service is required")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Config.DeadlineBlocks == 0 {
		deps.Config.DeadlineBlocks = constants.DefaultDeadlineBlocks
	}
	if deps.Config.MaxSlippageBps == 0 {
		deps.Config.MaxSlippageBps = constants.DefaultMaxSlippageBps
	}

	e := &Engine{
		cfg:        deps.Config,
		registry:   deps.Registry,
		state:      deps.State,
		wallet:     deps.Wallet,
		flags:      deps.Flags,
		redis:      deps.Redis,
		pubsub:     deps.PubSub,
		clickhouse: deps.ClickHouse,
		logger:     deps.Logger,
	}

	if deps.Provider != nil {
		e.obs = observer.New(deps.Provider, e.onTxUpdate, deps.Logger)
	}
	return e, nil
}

// Observer exposes the transaction observer for poll loops and inspection.
func (e *Engine) Observer() *observer.Observer {
	return e.obs
}

// Quote prices an intent without executing it, using the best route found in
// the current snapshot.
func (e *Engine) Quote(ctx context.Context, intent *SwapIntent) (*QuoteResult, error) {
	params, err := e.ParseIntent(intent)
	if err != nil {
		return nil, fmt.Errorf("invalid intent: %w", err)
	}
	return e.quoteParams(params)
}

func (e *Engine) quoteParams(params *SwapParams) (*QuoteResult, error) {
	snap := e.state.Current()
	if snap == nil {
		return nil, fmt.Errorf("no pool snapshot available yet")
	}

	var route *router.Route
	var err error
	if params.ExactOut {
		route, err = router.BestExactOut(snap, params.InputMint, params.OutputMint, params.Amount, snap.Height)
	} else {
		route, err = router.BestExactIn(snap, params.InputMint, params.OutputMint, params.Amount, snap.Height)
	}
	if err != nil {
		return nil, err
	}

	res := &QuoteResult{
		Route:     route,
		AmountIn:  route.AmountIn,
		AmountOut: route.AmountOut,
		Height:    snap.Height,
		QuotedAt:  time.Now(),
	}
	if params.ExactOut {
		res.Bound = boundFor(route.AmountIn, params.SlippageBps, true)
	} else {
		res.Bound = boundFor(route.AmountOut, params.SlippageBps, false)
	}

	// Slippage is reported for the first hop when the route is direct.
	if len(route.Hops) == 1 {
		pool, err := snap.Pool(route.Hops[0].Pool)
		if err == nil {
			var q *dmm.Quote
			if params.ExactOut {
				q, err = dmm.QuoteExactOut(pool, route.Hops[0].TokenIn, params.Amount, snap.Height)
			} else {
				q, err = dmm.QuoteExactIn(pool, route.Hops[0].TokenIn, params.Amount, snap.Height)
			}
			if err == nil {
				res.SlippageBps = q.SlippageBps
			}
		}
	}
	return res, nil
}

// ExecuteSwap quotes, builds, signs and submits a swap, then hands the
// signature to the observer. The returned result is the submission outcome;
// confirmation arrives asynchronously.
func (e *Engine) ExecuteSwap(ctx context.Context, intent *SwapIntent) (*SwapResult, error) {
	start := time.Now()

	if e.wallet == nil {
		return nil, fmt.Errorf("engine has no wallet configured")
	}
	if e.obs == nil {
		return nil, fmt.Errorf("engine has no chain status provider configured")
	}
	if e.flags != nil && !e.flags.IsEnabled(ctx, flags.KeySwapsEnabled, true) {
		return nil, fmt.Errorf("swap execution is disabled")
	}

	params, err := e.ParseIntent(intent)
	if err != nil {
		return nil, fmt.Errorf("invalid intent: %w", err)
	}

	quote, err := e.quoteParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to quote: %w", err)
	}

	snap := e.state.Current()
	hops, err := e.priceHops(snap, quote.Route, params)
	if err != nil {
		return nil, err
	}

	height, err := e.obsHeight(ctx, snap)
	if err != nil {
		return nil, err
	}
	deadline := height + e.cfg.DeadlineBlocks

	instructions, err := e.buildInstructions(hops, params, deadline)
	if err != nil {
		return nil, err
	}

	sig, err := e.wallet.SignAndSend(ctx, instructions, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to submit swap: %w", err)
	}

	if err := e.obs.Observe(observer.ObservedTx{Hash: sig, Deadline: deadline}); err != nil {
		e.logger.WithError(err).WithField("signature", sig).Warn("failed to observe transaction")
	}

	e.recordSwap(ctx, sig, hops, "pending")

	e.logger.WithFields(logrus.Fields{
		"signature": sig,
		"hops":      len(hops),
		"deadline":  deadline,
	}).Info("swap submitted")

	return &SwapResult{
		Signature: sig,
		Quote:     quote,
		Duration:  time.Since(start),
	}, nil
}

// priceHops re-quotes each hop of a route sequentially so every instruction
// carries its own amounts and bound.
func (e *Engine) priceHops(snap *state.Snapshot, route *router.Route, params *SwapParams) ([]hopQuote, error) {
	if snap == nil {
		return nil, fmt.Errorf("no pool snapshot available yet")
	}

	hops := make([]hopQuote, 0, len(route.Hops))
	running := route.AmountIn
	for _, hop := range route.Hops {
		pool, err := snap.Pool(hop.Pool)
		if err != nil {
			return nil, err
		}
		q, err := dmm.QuoteExactIn(pool, hop.TokenIn, running, snap.Height)
		if err != nil {
			return nil, fmt.Errorf("failed to price hop through %s: %w", hop.Pool, err)
		}
		hops = append(hops, hopQuote{hop: hop, quote: q})
		running = q.AmountOut
	}
	return hops, nil
}

func (e *Engine) buildInstructions(hops []hopQuote, params *SwapParams, deadline uint64) ([]solana.Instruction, error) {
	owner := e.wallet.PublicKey()

	instructions := make([]solana.Instruction, 0, len(hops))
	for _, hq := range hops {
		meta, err := e.registry.PoolByAddress(hq.hop.Pool)
		if err != nil {
			return nil, err
		}

		source, err := e.tokenAccount(owner, hq.hop.TokenIn)
		if err != nil {
			return nil, err
		}
		dest, err := e.tokenAccount(owner, hq.hop.TokenOut)
		if err != nil {
			return nil, err
		}

		// A direct exact-output intent submits the program's exact-out
		// instruction so the user receives the asked amount to the unit.
		// Multi-hop routes run forward as exact-in hops, each carrying
		// its own bound.
		var ix solana.Instruction
		if params.ExactOut && len(hops) == 1 {
			maxIn := boundFor(hq.quote.AmountIn, params.SlippageBps, true)
			ix, err = dmm.BuildSwapExactOutInstruction(
				meta,
				hq.hop.TokenIn,
				params.Amount,
				maxIn,
				deadline,
				owner,
				source,
				dest,
			)
		} else {
			minOut := boundFor(hq.quote.AmountOut, params.SlippageBps, false)
			ix, err = dmm.BuildSwapExactInInstruction(
				meta,
				hq.hop.TokenIn,
				hq.quote.AmountIn,
				minOut,
				deadline,
				owner,
				source,
				dest,
			)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build instruction for %s: %w", hq.hop.Pool, err)
		}
		instructions = append(instructions, ix)
	}
	return instructions, nil
}

// tokenAccount derives the owner's associated token account for a mint.
func (e *Engine) tokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive token account for %s: %w", mint, err)
	}
	return ata, nil
}

func (e *Engine) obsHeight(ctx context.Context, snap *state.Snapshot) (uint64, error) {
	if snap != nil && snap.Height > 0 {
		return snap.Height, nil
	}
	return e.state.CurrentHeight(ctx)
}

// recordSwap persists hop events to the caches, best-effort.
func (e *Engine) recordSwap(ctx context.Context, sig string, hops []hopQuote, status string) {
	for _, hq := range hops {
		ev := &models.SwapEvent{
			Signature: sig,
			Timestamp: time.Now().UTC(),
			Pair:      e.pairName(hq.hop.TokenIn, hq.hop.TokenOut),
			TokenIn:   hq.hop.TokenIn.String(),
			TokenOut:  hq.hop.TokenOut.String(),
			AmountIn:  hq.quote.AmountIn.String(),
			AmountOut: hq.quote.AmountOut.String(),
			FeeBps:    feeToBps(hq.quote),
			Pool:      hq.hop.Pool.String(),
			Status:    status,
		}

		if e.redis != nil {
			if err := e.redis.AddRecentSwap(ctx, ev); err != nil {
				e.logger.WithError(err).Warn("failed to cache swap event")
			}
		}
		if e.pubsub != nil {
			if err := e.pubsub.PublishSwap(ctx, ev); err != nil {
				e.logger.WithError(err).Warn("failed to publish swap event")
			}
		}
		if e.clickhouse != nil {
			if err := e.clickhouse.InsertSwap(ctx, ev); err != nil {
				e.logger.WithError(err).Warn("failed to store swap event")
			}
		}
	}
}

// pairName renders a readable pair label, falling back to mints when a token
// is not in the registry.
func (e *Engine) pairName(in, out solana.PublicKey) string {
	inSym, outSym := in.String(), out.String()
	if t, err := e.registry.TokenByMint(in); err == nil {
		inSym = t.Symbol
	}
	if t, err := e.registry.TokenByMint(out); err == nil {
		outSym = t.Symbol
	}
	return fmt.Sprintf("%s-%s", inSym, outSym)
}

// onTxUpdate publishes terminal transaction statuses.
func (e *Engine) onTxUpdate(tx observer.ObservedTx, status observer.Status, receipt *observer.Receipt) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := &models.TxStatusEvent{
		Signature: tx.Hash,
		Status:    status.String(),
		Timestamp: time.Now().UTC(),
	}
	if receipt != nil {
		event.Errors = receipt.Errors
	}

	if e.pubsub != nil {
		if err := e.pubsub.PublishTxStatus(ctx, event); err != nil {
			e.logger.WithError(err).Warn("failed to publish tx status")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"signature": tx.Hash,
		"status":    status.String(),
	}).Info("swap transaction resolved")
}

// feeToBps converts a Precision-scaled fee fraction to basis points.
func feeToBps(q *dmm.Quote) uint64 {
	if q.Fee == nil {
		return 0
	}
	bps := new(big.Int).Mul(q.Fee, big.NewInt(dmm.BpsDenominator))
	bps.Div(bps, dmm.Precision)
	return bps.Uint64()
}
