package state

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/lumenfi/dmm-swap-client/internal/dmm"
)

// Client fetches pool states from the indexer's REST endpoint. Amounts come
// over the wire as decimal strings so they survive the trip into big.Int
// without precision loss.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewClient trims and defaults the endpoint configuration.
func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

// HTTPError carries a non-2xx response body for diagnostics.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("state endpoint http %d", e.StatusCode)
	}
	return fmt.Sprintf("state endpoint http %d: %s", e.StatusCode, b)
}

// poolPayload is the wire shape of one pool state.
type poolPayload struct {
	Address            string            `json:"address"`
	Token0             string            `json:"token0"`
	Token1             string            `json:"token1"`
	Reserve0           string            `json:"reserve0"`
	Reserve1           string            `json:"reserve1"`
	VReserve0          string            `json:"v_reserve0"`
	VReserve1          string            `json:"v_reserve1"`
	AmpBps             uint64            `json:"amp_bps"`
	ShortEMA           string            `json:"short_ema"`
	LongEMA            string            `json:"long_ema"`
	CurrentBlockVolume string            `json:"current_block_volume"`
	LastTradeBlock     uint64            `json:"last_trade_block"`
	TotalSupply        string            `json:"total_supply"`
	Balances           map[string]string `json:"balances,omitempty"`
}

type poolsResponse struct {
	Height uint64        `json:"height"`
	Pools  []poolPayload `json:"pools"`
}

// FetchPoolStates retrieves every known pool state plus the height it was
// read at.
func (c *Client) FetchPoolStates(ctx context.Context) (uint64, map[solana.PublicKey]*dmm.PoolState, error) {
	if c.BaseURL == "" {
		return 0, nil, fmt.Errorf("state endpoint base URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/pools", nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return 0, nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var out poolsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, nil, fmt.Errorf("failed to decode pool state response: %w", err)
	}

	pools, err := DecodePools(out.Pools)
	if err != nil {
		return 0, nil, err
	}
	return out.Height, pools, nil
}

// DecodePools converts wire payloads into validated pool states.
func DecodePools(payloads []poolPayload) (map[solana.PublicKey]*dmm.PoolState, error) {
	pools := make(map[solana.PublicKey]*dmm.PoolState, len(payloads))
	for i, pl := range payloads {
		p, err := decodePool(pl)
		if err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, pl.Address, err)
		}
		pools[p.Address] = p
	}
	return pools, nil
}

func decodePool(pl poolPayload) (*dmm.PoolState, error) {
	addr, err := solana.PublicKeyFromBase58(pl.Address)
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	t0, err := solana.PublicKeyFromBase58(pl.Token0)
	if err != nil {
		return nil, fmt.Errorf("token0: %w", err)
	}
	t1, err := solana.PublicKeyFromBase58(pl.Token1)
	if err != nil {
		return nil, fmt.Errorf("token1: %w", err)
	}

	p := &dmm.PoolState{
		Address:        addr,
		Token0:         t0,
		Token1:         t1,
		AmpBps:         pl.AmpBps,
		LastTradeBlock: pl.LastTradeBlock,
	}
	if p.AmpBps == 0 {
		p.AmpBps = dmm.BpsDenominator
	}

	fields := []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"reserve0", pl.Reserve0, &p.Reserve0},
		{"reserve1", pl.Reserve1, &p.Reserve1},
		{"v_reserve0", pl.VReserve0, &p.VReserve0},
		{"v_reserve1", pl.VReserve1, &p.VReserve1},
		{"short_ema", pl.ShortEMA, &p.ShortEMA},
		{"long_ema", pl.LongEMA, &p.LongEMA},
		{"current_block_volume", pl.CurrentBlockVolume, &p.CurrentBlockVolume},
		{"total_supply", pl.TotalSupply, &p.TotalSupply},
	}
	for _, f := range fields {
		v, err := parseAmount(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	// Non-amplified pools price on actual balances; indexers commonly omit
	// their virtual reserves.
	if p.AmpBps == dmm.BpsDenominator || (p.VReserve0.Sign() == 0 && p.VReserve1.Sign() == 0) {
		p.VReserve0 = new(big.Int).Set(p.Reserve0)
		p.VReserve1 = new(big.Int).Set(p.Reserve1)
	}

	if len(pl.Balances) > 0 {
		p.Balances = make(map[solana.PublicKey]*big.Int, len(pl.Balances))
		for owner, raw := range pl.Balances {
			pk, err := solana.PublicKeyFromBase58(owner)
			if err != nil {
				return nil, fmt.Errorf("balance owner %s: %w", owner, err)
			}
			v, err := parseAmount(raw)
			if err != nil {
				return nil, fmt.Errorf("balance of %s: %w", owner, err)
			}
			p.Balances[pk] = v
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// encodePool converts a pool state back to its wire form, used by the
// snapshot cache.
func encodePool(p *dmm.PoolState) poolPayload {
	pl := poolPayload{
		Address:            p.Address.String(),
		Token0:             p.Token0.String(),
		Token1:             p.Token1.String(),
		Reserve0:           formatAmount(p.Reserve0),
		Reserve1:           formatAmount(p.Reserve1),
		VReserve0:          formatAmount(p.VReserve0),
		VReserve1:          formatAmount(p.VReserve1),
		AmpBps:             p.AmpBps,
		ShortEMA:           formatAmount(p.ShortEMA),
		LongEMA:            formatAmount(p.LongEMA),
		CurrentBlockVolume: formatAmount(p.CurrentBlockVolume),
		LastTradeBlock:     p.LastTradeBlock,
		TotalSupply:        formatAmount(p.TotalSupply),
	}
	if len(p.Balances) > 0 {
		pl.Balances = make(map[string]string, len(p.Balances))
		for owner, v := range p.Balances {
			pl.Balances[owner.String()] = formatAmount(v)
		}
	}
	return pl
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseAmount converts a decimal string to a non-negative big.Int. Empty
// strings decode to zero, matching pools the indexer has only just created.
func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
