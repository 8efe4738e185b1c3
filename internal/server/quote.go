package server

import (
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"

	"github.com/lumenfi/dmm-swap-client/internal/dmm"
	"github.com/lumenfi/dmm-swap-client/internal/router"
)

// parseQuoteQuery validates the shared query parameters of the quote and
// route endpoints. Tokens may be given as registry symbols or raw mints.
func (h *Handlers) parseQuoteQuery(c echo.Context) (in, out solana.PublicKey, amount *big.Int, exactOut bool, errResp error) {
	inParam := strings.TrimSpace(c.QueryParam("inputToken"))
	outParam := strings.TrimSpace(c.QueryParam("outputToken"))
	amountStr := strings.TrimSpace(c.QueryParam("amount"))

	if inParam == "" {
		return in, out, nil, false, h.err(c, http.StatusBadRequest, "invalid inputToken", map[string]any{"inputToken": "required"})
	}
	if outParam == "" {
		return in, out, nil, false, h.err(c, http.StatusBadRequest, "invalid outputToken", map[string]any{"outputToken": "required"})
	}
	if amountStr == "" {
		return in, out, nil, false, h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "required"})
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok || amount.Sign() <= 0 {
		return in, out, nil, false, h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be a positive integer"})
	}

	var err error
	in, err = h.resolveToken(inParam)
	if err != nil {
		return in, out, nil, false, h.err(c, http.StatusBadRequest, "unknown inputToken", map[string]any{"inputToken": inParam})
	}
	out, err = h.resolveToken(outParam)
	if err != nil {
		return in, out, nil, false, h.err(c, http.StatusBadRequest, "unknown outputToken", map[string]any{"outputToken": outParam})
	}

	side := strings.TrimSpace(c.QueryParam("side"))
	switch side {
	case "", "in":
	case "out":
		exactOut = true
	default:
		return in, out, nil, false, h.err(c, http.StatusBadRequest, "invalid side", map[string]any{"side": "must be in or out"})
	}

	return in, out, amount, exactOut, nil
}

// resolveToken accepts a registry symbol or a base58 mint.
func (h *Handlers) resolveToken(s string) (solana.PublicKey, error) {
	if h.Registry != nil {
		if t, err := h.Registry.TokenBySymbol(s); err == nil {
			return t.Mint, nil
		}
	}
	return solana.PublicKeyFromBase58(s)
}

// Quote prices a single-pool trade between two tokens
func (h *Handlers) Quote(c echo.Context) error {
	in, out, amount, exactOut, errResp := h.parseQuoteQuery(c)
	if errResp != nil {
		return errResp
	}

	snap := h.State.Current()
	if snap == nil {
		return h.err(c, http.StatusServiceUnavailable, "no pool snapshot available yet", nil)
	}
	if h.Registry == nil {
		return h.err(c, http.StatusBadRequest, "registry is not configured", nil)
	}

	meta, err := h.Registry.PoolByMints(in, out)
	if err != nil {
		return h.err(c, http.StatusNotFound, "no pool for pair", nil)
	}
	pool, err := snap.Pool(meta.Address)
	if err != nil {
		return h.err(c, http.StatusNotFound, "pool not in snapshot", nil)
	}

	var q *dmm.Quote
	if exactOut {
		q, err = dmm.QuoteExactOut(pool, in, amount, snap.Height)
	} else {
		q, err = dmm.QuoteExactIn(pool, in, amount, snap.Height)
	}
	if err != nil {
		if errors.Is(err, dmm.ErrInfeasible) {
			return h.err(c, http.StatusUnprocessableEntity, "amount exceeds pool depth", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to quote", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, QuoteResponse{
		Pool:        q.Pool.String(),
		InputToken:  q.TokenIn.String(),
		OutputToken: q.TokenOut.String(),
		AmountIn:    q.AmountIn.String(),
		AmountOut:   q.AmountOut.String(),
		FeeBps:      feeBps(q.Fee),
		SlippageBps: q.SlippageBps.String(),
		Height:      snap.Height,
	})
}

// Route finds the best route of up to three hops between two tokens
func (h *Handlers) Route(c echo.Context) error {
	in, out, amount, exactOut, errResp := h.parseQuoteQuery(c)
	if errResp != nil {
		return errResp
	}

	snap := h.State.Current()
	if snap == nil {
		return h.err(c, http.StatusServiceUnavailable, "no pool snapshot available yet", nil)
	}

	var route *router.Route
	var err error
	if exactOut {
		route, err = router.BestExactOut(snap, in, out, amount, snap.Height)
	} else {
		route, err = router.BestExactIn(snap, in, out, amount, snap.Height)
	}
	if err != nil {
		if errors.Is(err, router.ErrNoRoute) {
			return h.err(c, http.StatusNotFound, "no route found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to route", map[string]any{"err": err.Error()})
	}

	hops := make([]HopResponse, 0, len(route.Hops))
	for _, hop := range route.Hops {
		hops = append(hops, HopResponse{
			Pool:        hop.Pool.String(),
			InputToken:  hop.TokenIn.String(),
			OutputToken: hop.TokenOut.String(),
		})
	}

	return c.JSON(http.StatusOK, RouteResponse{
		AmountIn:  route.AmountIn.String(),
		AmountOut: route.AmountOut.String(),
		Hops:      hops,
		Height:    snap.Height,
	})
}

// feeBps converts a Precision-scaled fee to basis points for display.
func feeBps(fee *big.Int) uint64 {
	if fee == nil {
		return 0
	}
	v := new(big.Int).Mul(fee, big.NewInt(dmm.BpsDenominator))
	v.Div(v, dmm.Precision)
	return v.Uint64()
}
