package dmm

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// BpsDenominator is the basis-point scale; AmpBps == BpsDenominator means a
// plain constant-product pool with no amplification.
const BpsDenominator = 10000

// PoolState is one fetched snapshot of a DMM pool. It is read-only to the
// quoting engine and the router: a refresh replaces the whole value, nothing
// in this package mutates it.
type PoolState struct {
	Address solana.PublicKey

	// Token0 < Token1 by byte order of the mint address.
	Token0 solana.PublicKey
	Token1 solana.PublicKey

	// Actual vault balances.
	Reserve0 *big.Int
	Reserve1 *big.Int

	// Virtual reserves used for pricing by amplified pools. For AmpBps ==
	// BpsDenominator these equal the actual reserves (nil is treated the
	// same way).
	VReserve0 *big.Int
	VReserve1 *big.Int

	AmpBps uint64

	// Trade-volume statistics driving the dynamic fee.
	ShortEMA           *big.Int
	LongEMA            *big.Int
	CurrentBlockVolume *big.Int
	LastTradeBlock     uint64

	// LP share ledger.
	TotalSupply *big.Int
	Balances    map[solana.PublicKey]*big.Int
	Allowances  map[solana.PublicKey]map[solana.PublicKey]*big.Int
}

// SortTokens returns the pair in canonical pool order.
func SortTokens(a, b solana.PublicKey) (token0, token1 solana.PublicKey) {
	if bytes.Compare(a[:], b[:]) < 0 {
		return a, b
	}
	return b, a
}

// HasToken reports whether the mint is one side of the pool.
func (p *PoolState) HasToken(mint solana.PublicKey) bool {
	return p.Token0.Equals(mint) || p.Token1.Equals(mint)
}

// OtherToken returns the opposite side of the pool for the given mint.
func (p *PoolState) OtherToken(mint solana.PublicKey) (solana.PublicKey, error) {
	switch {
	case p.Token0.Equals(mint):
		return p.Token1, nil
	case p.Token1.Equals(mint):
		return p.Token0, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: %s in pool %s", ErrTokenNotInPool, mint, p.Address)
	}
}

// Amplified reports whether the pool prices against virtual reserves.
func (p *PoolState) Amplified() bool {
	return p.AmpBps > BpsDenominator
}

// virtualReserves returns the reserves used for pricing. Non-amplified pools
// price on their actual balances.
func (p *PoolState) virtualReserves() (v0, v1 *big.Int) {
	if !p.Amplified() || p.VReserve0 == nil || p.VReserve1 == nil {
		return p.Reserve0, p.Reserve1
	}
	return p.VReserve0, p.VReserve1
}

// Validate checks the snapshot invariants. A pool is either empty on both
// sides or funded on both sides, virtual reserves may only vanish together
// with the actual ones, and the token pair must be in canonical order.
func (p *PoolState) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil pool", ErrInvalidPoolState)
	}
	if bytes.Compare(p.Token0[:], p.Token1[:]) >= 0 {
		return fmt.Errorf("%w: pool %s token pair out of order", ErrInvalidPoolState, p.Address)
	}
	for _, v := range []*big.Int{p.Reserve0, p.Reserve1, p.VReserve0, p.VReserve1, p.ShortEMA, p.LongEMA, p.CurrentBlockVolume, p.TotalSupply} {
		if v != nil && v.Sign() < 0 {
			return fmt.Errorf("%w: pool %s has a negative amount", ErrInvalidPoolState, p.Address)
		}
	}
	if p.Reserve0 == nil || p.Reserve1 == nil {
		return fmt.Errorf("%w: pool %s missing reserves", ErrInvalidPoolState, p.Address)
	}
	if (p.Reserve0.Sign() == 0) != (p.Reserve1.Sign() == 0) {
		return fmt.Errorf("%w: pool %s funded on one side only", ErrInvalidPoolState, p.Address)
	}
	if p.VReserve0 != nil && p.VReserve1 != nil {
		if p.VReserve0.Sign() == 0 && p.Reserve0.Sign() != 0 {
			return fmt.Errorf("%w: pool %s zero virtual reserve over funded pool", ErrInvalidPoolState, p.Address)
		}
		if p.VReserve1.Sign() == 0 && p.Reserve1.Sign() != 0 {
			return fmt.Errorf("%w: pool %s zero virtual reserve over funded pool", ErrInvalidPoolState, p.Address)
		}
	}
	return nil
}

// Clone deep-copies the pool state. Snapshot builders use it so no two
// snapshots share big.Int values.
func (p *PoolState) Clone() *PoolState {
	if p == nil {
		return nil
	}
	cp := &PoolState{
		Address:        p.Address,
		Token0:         p.Token0,
		Token1:         p.Token1,
		AmpBps:         p.AmpBps,
		LastTradeBlock: p.LastTradeBlock,
	}
	cp.Reserve0 = copyInt(p.Reserve0)
	cp.Reserve1 = copyInt(p.Reserve1)
	cp.VReserve0 = copyInt(p.VReserve0)
	cp.VReserve1 = copyInt(p.VReserve1)
	cp.ShortEMA = copyInt(p.ShortEMA)
	cp.LongEMA = copyInt(p.LongEMA)
	cp.CurrentBlockVolume = copyInt(p.CurrentBlockVolume)
	cp.TotalSupply = copyInt(p.TotalSupply)
	if p.Balances != nil {
		cp.Balances = make(map[solana.PublicKey]*big.Int, len(p.Balances))
		for k, v := range p.Balances {
			cp.Balances[k] = copyInt(v)
		}
	}
	if p.Allowances != nil {
		cp.Allowances = make(map[solana.PublicKey]map[solana.PublicKey]*big.Int, len(p.Allowances))
		for owner, spenders := range p.Allowances {
			m := make(map[solana.PublicKey]*big.Int, len(spenders))
			for spender, v := range spenders {
				m[spender] = copyInt(v)
			}
			cp.Allowances[owner] = m
		}
	}
	return cp
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
