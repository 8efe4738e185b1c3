package engine

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/lumenfi/dmm-swap-client/internal/dmm"
)

// ParseIntent validates a swap intent against the token registry and
// converts its decimal amount into raw units.
func (e *Engine) ParseIntent(intent *SwapIntent) (*SwapParams, error) {
	if intent == nil {
		return nil, fmt.Errorf("intent is nil")
	}
	if intent.InputToken == "" || intent.OutputToken == "" {
		return nil, fmt.Errorf("input/output token required")
	}
	if intent.InputToken == intent.OutputToken {
		return nil, fmt.Errorf("input and output token must differ")
	}

	in, err := e.registry.TokenBySymbol(intent.InputToken)
	if err != nil {
		return nil, fmt.Errorf("unknown input token %s: %w", intent.InputToken, err)
	}
	out, err := e.registry.TokenBySymbol(intent.OutputToken)
	if err != nil {
		return nil, fmt.Errorf("unknown output token %s: %w", intent.OutputToken, err)
	}

	amountToken := in
	if intent.ExactOut {
		amountToken = out
	}
	amount, err := parseDecimalAmount(intent.Amount, amountToken.Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", intent.Amount, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	if intent.RequestedAt.IsZero() {
		intent.RequestedAt = time.Now()
	}

	slippage := e.cfg.MaxSlippageBps
	if intent.SlippageBps != nil {
		if *intent.SlippageBps > e.cfg.MaxSlippageBps {
			return nil, fmt.Errorf("slippage %d bps exceeds limit %d bps",
				*intent.SlippageBps, e.cfg.MaxSlippageBps)
		}
		slippage = *intent.SlippageBps
	}

	return &SwapParams{
		InputMint:   in.Mint,
		OutputMint:  out.Mint,
		Amount:      amount,
		ExactOut:    intent.ExactOut,
		SlippageBps: slippage,
		Intent:      intent,
		ParsedAt:    time.Now(),
	}, nil
}

// parseDecimalAmount converts a base-10 decimal string into raw units with
// the given number of decimals. Fractional digits beyond the token's
// precision are rejected rather than silently truncated.
func parseDecimalAmount(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("more than %d decimal places", decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal number")
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	return v, nil
}

// formatDecimalAmount renders raw units back into a decimal string.
func formatDecimalAmount(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	s := v.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for len(s) <= int(decimals) {
		s = "0" + s
	}
	cut := len(s) - int(decimals)
	whole, frac := s[:cut], s[cut:]
	frac = strings.TrimRight(frac, "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// boundFor derives the chain-enforced amount bound from a quote by applying
// the slippage tolerance. Exact-in floors the minimum output; exact-out
// ceils the maximum input.
func boundFor(amount *big.Int, slippageBps uint64, exactOut bool) *big.Int {
	bps := new(big.Int).SetUint64(dmm.BpsDenominator)
	tol := new(big.Int).SetUint64(slippageBps)
	if exactOut {
		num := new(big.Int).Mul(amount, new(big.Int).Add(bps, tol))
		num.Add(num, new(big.Int).Sub(bps, big.NewInt(1)))
		return num.Div(num, bps)
	}
	num := new(big.Int).Mul(amount, new(big.Int).Sub(bps, tol))
	return num.Div(num, bps)
}
