package dmm

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// TokenConfig is one token entry in the JSON registry file.
type TokenConfig struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
}

// PoolConfig is one pool entry in the JSON registry file. It carries the
// static account layout of a pool; live reserves and fee statistics come
// from the state provider.
type PoolConfig struct {
	Name      string `json:"name"`
	ProgramID string `json:"program_id"`
	Address   string `json:"address"`
	Authority string `json:"authority"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Vault0    string `json:"vault0"`
	Vault1    string `json:"vault1"`
	LPMint    string `json:"lp_mint"`
	AmpBps    uint64 `json:"amp_bps"`
}

// Token is a parsed token registry entry.
type Token struct {
	Symbol   string
	Mint     solana.PublicKey
	Decimals uint8
}

// PoolMeta is a parsed, ready-to-use pool account layout.
type PoolMeta struct {
	Name      string
	ProgramID solana.PublicKey
	Address   solana.PublicKey
	Authority solana.PublicKey
	Token0    solana.PublicKey
	Token1    solana.PublicKey
	Vault0    solana.PublicKey
	Vault1    solana.PublicKey
	LPMint    solana.PublicKey
	AmpBps    uint64
}

// Registry holds the static token and pool metadata for one deployment.
type Registry struct {
	tokens []Token
	pools  []PoolMeta
}

type registryFile struct {
	Tokens []TokenConfig `json:"tokens"`
	Pools  []PoolConfig  `json:"pools"`
}

// LoadRegistry reads and validates a JSON registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry JSON: %w", err)
	}

	r := &Registry{
		tokens: make([]Token, 0, len(file.Tokens)),
		pools:  make([]PoolMeta, 0, len(file.Pools)),
	}
	for i, cfg := range file.Tokens {
		mint, err := solana.PublicKeyFromBase58(cfg.Mint)
		if err != nil {
			return nil, fmt.Errorf("token %d (%s): %w", i, cfg.Symbol, err)
		}
		r.tokens = append(r.tokens, Token{
			Symbol:   strings.ToUpper(strings.TrimSpace(cfg.Symbol)),
			Mint:     mint,
			Decimals: cfg.Decimals,
		})
	}
	for i, cfg := range file.Pools {
		meta, err := parsePoolConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, cfg.Name, err)
		}
		r.pools = append(r.pools, meta)
	}
	return r, nil
}

func parsePoolConfig(cfg PoolConfig) (PoolMeta, error) {
	if cfg.AmpBps == 0 {
		cfg.AmpBps = BpsDenominator
	}
	if cfg.AmpBps < BpsDenominator {
		return PoolMeta{}, fmt.Errorf("amp_bps must be >= %d", BpsDenominator)
	}
	keys := map[string]string{
		"program_id": cfg.ProgramID,
		"address":    cfg.Address,
		"authority":  cfg.Authority,
		"token0":     cfg.Token0,
		"token1":     cfg.Token1,
		"vault0":     cfg.Vault0,
		"vault1":     cfg.Vault1,
		"lp_mint":    cfg.LPMint,
	}
	parsed := make(map[string]solana.PublicKey, len(keys))
	for field, raw := range keys {
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return PoolMeta{}, fmt.Errorf("%s: %w", field, err)
		}
		parsed[field] = pk
	}
	t0, t1 := SortTokens(parsed["token0"], parsed["token1"])
	if !t0.Equals(parsed["token0"]) || !t1.Equals(parsed["token1"]) {
		return PoolMeta{}, fmt.Errorf("token0/token1 not in canonical order")
	}
	return PoolMeta{
		Name:      cfg.Name,
		ProgramID: parsed["program_id"],
		Address:   parsed["address"],
		Authority: parsed["authority"],
		Token0:    parsed["token0"],
		Token1:    parsed["token1"],
		Vault0:    parsed["vault0"],
		Vault1:    parsed["vault1"],
		LPMint:    parsed["lp_mint"],
		AmpBps:    cfg.AmpBps,
	}, nil
}

// TokenBySymbol resolves an upper-cased symbol.
func (r *Registry) TokenBySymbol(symbol string) (*Token, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for i := range r.tokens {
		if r.tokens[i].Symbol == symbol {
			return &r.tokens[i], nil
		}
	}
	return nil, fmt.Errorf("unknown token symbol: %s", symbol)
}

// TokenByMint resolves a mint address.
func (r *Registry) TokenByMint(mint solana.PublicKey) (*Token, error) {
	for i := range r.tokens {
		if r.tokens[i].Mint.Equals(mint) {
			return &r.tokens[i], nil
		}
	}
	return nil, fmt.Errorf("unknown token mint: %s", mint)
}

// PoolByAddress resolves the static layout of a pool account.
func (r *Registry) PoolByAddress(address solana.PublicKey) (*PoolMeta, error) {
	for i := range r.pools {
		if r.pools[i].Address.Equals(address) {
			return &r.pools[i], nil
		}
	}
	return nil, fmt.Errorf("pool not registered: %s", address)
}

// PoolByMints finds a pool for the pair in either direction.
func (r *Registry) PoolByMints(a, b solana.PublicKey) (*PoolMeta, error) {
	t0, t1 := SortTokens(a, b)
	for i := range r.pools {
		p := &r.pools[i]
		if p.Token0.Equals(t0) && p.Token1.Equals(t1) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no pool registered for pair %s / %s", a, b)
}

// Pools returns all registered pool layouts.
func (r *Registry) Pools() []PoolMeta {
	return r.pools
}

// Tokens returns all registered tokens.
func (r *Registry) Tokens() []Token {
	return r.tokens
}
