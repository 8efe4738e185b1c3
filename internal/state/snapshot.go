package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/lumenfi/dmm-swap-client/internal/dmm"
)

// ErrPoolNotFound signals a computation requested against a pool absent from
// the current snapshot. Absence is never treated as zero liquidity.
var ErrPoolNotFound = errors.New("pool not found in snapshot")

// Snapshot is one immutable view of every known pool, published atomically by
// the provider. Readers keep whatever snapshot they hold until they ask for a
// fresh one; nothing in this package mutates a published snapshot.
type Snapshot struct {
	// Height is the chain height the states were fetched at.
	Height uint64

	Pools map[solana.PublicKey]*dmm.PoolState

	// TokenPools maps a token mint to the addresses of every pool containing
	// it, in deterministic (byte-ascending) order. Rebuilt from Pools on
	// every refresh; used by the router.
	TokenPools map[solana.PublicKey][]solana.PublicKey
}

// Pool resolves a pool by address.
func (s *Snapshot) Pool(address solana.PublicKey) (*dmm.PoolState, error) {
	p, ok := s.Pools[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, address)
	}
	return p, nil
}

// PoolsFor returns the pools containing the given token, in index order.
func (s *Snapshot) PoolsFor(mint solana.PublicKey) []solana.PublicKey {
	return s.TokenPools[mint]
}

// BuildTokenIndex derives the token -> pools adjacency index from a pool set.
// Pool addresses are sorted so the index, and therefore router iteration
// order, is deterministic for a given pool set.
func BuildTokenIndex(pools map[solana.PublicKey]*dmm.PoolState) map[solana.PublicKey][]solana.PublicKey {
	index := make(map[solana.PublicKey][]solana.PublicKey)
	for addr, p := range pools {
		index[p.Token0] = append(index[p.Token0], addr)
		index[p.Token1] = append(index[p.Token1], addr)
	}
	for mint := range index {
		list := index[mint]
		sort.Slice(list, func(i, j int) bool {
			return bytes.Compare(list[i][:], list[j][:]) < 0
		})
	}
	return index
}

// NewSnapshot validates every pool and assembles an immutable snapshot.
func NewSnapshot(height uint64, pools map[solana.PublicKey]*dmm.PoolState) (*Snapshot, error) {
	owned := make(map[solana.PublicKey]*dmm.PoolState, len(pools))
	for addr, p := range pools {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("pool %s: %w", addr, err)
		}
		owned[addr] = p.Clone()
	}
	return &Snapshot{
		Height:     height,
		Pools:      owned,
		TokenPools: BuildTokenIndex(owned),
	}, nil
}
