package router

import (
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenfi/dmm-swap-client/internal/dmm"
	"github.com/lumenfi/dmm-swap-client/internal/state"
)

func pk(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[31] = b
	return k
}

func newPool(addr byte, tokA solana.PublicKey, resA int64, tokB solana.PublicKey, resB int64) *dmm.PoolState {
	t0, t1 := dmm.SortTokens(tokA, tokB)
	r0, r1 := resA, resB
	if !t0.Equals(tokA) {
		r0, r1 = resB, resA
	}
	return &dmm.PoolState{
		Address:   pk(addr),
		Token0:    t0,
		Token1:    t1,
		Reserve0:  big.NewInt(r0),
		Reserve1:  big.NewInt(r1),
		VReserve0: big.NewInt(r0),
		VReserve1: big.NewInt(r1),
		AmpBps:    dmm.BpsDenominator,
	}
}

func newSnapshot(t *testing.T, height uint64, pools ...*dmm.PoolState) *state.Snapshot {
	t.Helper()
	m := make(map[solana.PublicKey]*dmm.PoolState, len(pools))
	for _, p := range pools {
		m[p.Address] = p
	}
	snap, err := state.NewSnapshot(height, m)
	require.NoError(t, err)
	return snap
}

func TestBestExactIn_DirectRoute(t *testing.T) {
	a, b := pk(0xA0), pk(0xB0)
	snap := newSnapshot(t, 100, newPool(1, a, 1_000_000, b, 1_000_000))

	route, err := BestExactIn(snap, a, b, big.NewInt(1_000), 100)
	require.NoError(t, err)

	require.Len(t, route.Hops, 1)
	assert.Equal(t, pk(1), route.Hops[0].Pool)
	assert.Equal(t, a, route.Hops[0].TokenIn)
	assert.Equal(t, b, route.Hops[0].TokenOut)
	assert.Equal(t, big.NewInt(1_000), route.AmountIn)
	assert.Equal(t, big.NewInt(989), route.AmountOut)
	assert.Equal(t, []solana.PublicKey{pk(1)}, route.Pools())
}

func TestBestExactIn_TwoHopBeatsShallowPool(t *testing.T) {
	a, b, c := pk(0xA0), pk(0xB0), pk(0xC0)
	snap := newSnapshot(t, 100,
		newPool(1, a, 1_000, b, 1_000),
		newPool(2, a, 1_000_000_000, c, 1_000_000_000),
		newPool(3, c, 1_000_000_000, b, 1_000_000_000),
	)

	route, err := BestExactIn(snap, a, b, big.NewInt(1_000), 100)
	require.NoError(t, err)

	require.Len(t, route.Hops, 2)
	assert.Equal(t, []solana.PublicKey{pk(2), pk(3)}, route.Pools())
	assert.Equal(t, c, route.Hops[0].TokenOut)
	assert.Equal(t, c, route.Hops[1].TokenIn)
	assert.Equal(t, big.NewInt(978), route.AmountOut)
}

func TestBestExactIn_ThreeHopPath(t *testing.T) {
	a, b, c, d := pk(0xA0), pk(0xB0), pk(0xC0), pk(0xD0)
	snap := newSnapshot(t, 100,
		newPool(1, a, 1_000_000, c, 1_000_000),
		newPool(2, c, 1_000_000, d, 1_000_000),
		newPool(3, d, 1_000_000, b, 1_000_000),
	)

	route, err := BestExactIn(snap, a, b, big.NewInt(10_000), 100)
	require.NoError(t, err)

	require.Len(t, route.Hops, 3)
	assert.Equal(t, []solana.PublicKey{pk(1), pk(2), pk(3)}, route.Pools())
	assert.Equal(t, a, route.Hops[0].TokenIn)
	assert.Equal(t, b, route.Hops[2].TokenOut)
	assert.True(t, route.AmountOut.Sign() > 0)
}

func TestBestExactIn_FirstDiscoveredWinsTies(t *testing.T) {
	a, b := pk(0xA0), pk(0xB0)
	// Two identical pools quote the same output; only strict improvement
	// replaces the best, so the lower-address pool keeps the route.
	snap := newSnapshot(t, 100,
		newPool(2, a, 1_000_000, b, 1_000_000),
		newPool(1, a, 1_000_000, b, 1_000_000),
	)

	route, err := BestExactIn(snap, a, b, big.NewInt(1_000), 100)
	require.NoError(t, err)

	require.Len(t, route.Hops, 1)
	assert.Equal(t, pk(1), route.Hops[0].Pool)
}

func TestBestExactIn_EqualTwoHopLosesToDirect(t *testing.T) {
	a, b, c := pk(0xA0), pk(0xB0), pk(0xC0)
	// The direct pool is sized so 1000 in yields exactly 978, the same
	// output the deep two-hop path produces. Shorter paths are searched
	// first and an equal result never replaces the best, so the direct
	// pool keeps the route.
	snap := newSnapshot(t, 100,
		newPool(1, a, 80_770, b, 80_770),
		newPool(2, a, 1_000_000_000, c, 1_000_000_000),
		newPool(3, c, 1_000_000_000, b, 1_000_000_000),
	)

	route, err := BestExactIn(snap, a, b, big.NewInt(1_000), 100)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(978), route.AmountOut)
	require.Len(t, route.Hops, 1)
	assert.Equal(t, []solana.PublicKey{pk(1)}, route.Pools())
}

func TestBestExactIn_NoRoute(t *testing.T) {
	a, b, c := pk(0xA0), pk(0xB0), pk(0xC0)
	snap := newSnapshot(t, 100, newPool(1, a, 1_000_000, b, 1_000_000))

	_, err := BestExactIn(snap, a, c, big.NewInt(100), 100)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestBestExactIn_PathTooLong(t *testing.T) {
	// Five tokens in a line need four hops, one past the search depth.
	toks := []solana.PublicKey{pk(0xA0), pk(0xB0), pk(0xC0), pk(0xD0), pk(0xE0)}
	pools := make([]*dmm.PoolState, 0, 4)
	for i := 0; i < 4; i++ {
		pools = append(pools, newPool(byte(i+1), toks[i], 1_000_000, toks[i+1], 1_000_000))
	}
	snap := newSnapshot(t, 100, pools...)

	_, err := BestExactIn(snap, toks[0], toks[4], big.NewInt(100), 100)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestBestExactIn_SameTokenRejected(t *testing.T) {
	a, b := pk(0xA0), pk(0xB0)
	snap := newSnapshot(t, 100, newPool(1, a, 1_000_000, b, 1_000_000))

	_, err := BestExactIn(snap, a, a, big.NewInt(100), 100)
	assert.Error(t, err)

	_, err = BestExactIn(nil, a, b, big.NewInt(100), 100)
	assert.Error(t, err)
}

func TestBestExactIn_SkipsInfeasiblePools(t *testing.T) {
	a, b, c := pk(0xA0), pk(0xB0), pk(0xC0)
	snap := newSnapshot(t, 100,
		newPool(1, a, 0, b, 0), // unfunded direct pool
		newPool(2, a, 1_000_000, c, 1_000_000),
		newPool(3, c, 1_000_000, b, 1_000_000),
	)

	route, err := BestExactIn(snap, a, b, big.NewInt(1_000), 100)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{pk(2), pk(3)}, route.Pools())
}

func TestBestExactOut_DirectRoute(t *testing.T) {
	a, b := pk(0xA0), pk(0xB0)
	snap := newSnapshot(t, 100, newPool(1, a, 1_000_000, b, 1_000_000))

	route, err := BestExactOut(snap, a, b, big.NewInt(989), 100)
	require.NoError(t, err)

	require.Len(t, route.Hops, 1)
	assert.Equal(t, big.NewInt(1_000), route.AmountIn)
	assert.Equal(t, big.NewInt(989), route.AmountOut)
}

func TestBestExactOut_PrefersCheaperPath(t *testing.T) {
	a, b, c := pk(0xA0), pk(0xB0), pk(0xC0)
	snap := newSnapshot(t, 100,
		newPool(1, a, 1_000, b, 1_000),
		newPool(2, a, 1_000_000_000, c, 1_000_000_000),
		newPool(3, c, 1_000_000_000, b, 1_000_000_000),
	)

	route, err := BestExactOut(snap, a, b, big.NewInt(978), 100)
	require.NoError(t, err)

	require.Len(t, route.Hops, 2)
	assert.Equal(t, []solana.PublicKey{pk(2), pk(3)}, route.Pools())
	assert.Equal(t, a, route.Hops[0].TokenIn)
	assert.Equal(t, b, route.Hops[1].TokenOut)
	assert.Equal(t, big.NewInt(1_000), route.AmountIn)
}

func TestBestExactOut_InfeasibleOutput(t *testing.T) {
	a, b := pk(0xA0), pk(0xB0)
	snap := newSnapshot(t, 100, newPool(1, a, 1_000, b, 1_000))

	// Requesting the whole reserve cannot be satisfied by any path.
	_, err := BestExactOut(snap, a, b, big.NewInt(1_000), 100)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestBestExactIn_RoundTripsWithExactOut(t *testing.T) {
	a, b, c := pk(0xA0), pk(0xB0), pk(0xC0)
	snap := newSnapshot(t, 100,
		newPool(1, a, 5_000_000, c, 3_000_000),
		newPool(2, c, 4_000_000, b, 6_000_000),
	)

	fwd, err := BestExactIn(snap, a, b, big.NewInt(25_000), 100)
	require.NoError(t, err)

	back, err := BestExactOut(snap, a, b, fwd.AmountOut, 100)
	require.NoError(t, err)

	// The exact-out input covers the requested output without overshooting
	// the forward quote by more than rounding.
	assert.True(t, back.AmountIn.Cmp(big.NewInt(25_000)) <= 0 ||
		new(big.Int).Sub(back.AmountIn, big.NewInt(25_000)).Cmp(big.NewInt(4)) <= 0,
		"exact-out input %s drifts from %d", back.AmountIn, 25_000)
	assert.Equal(t, fwd.Pools(), back.Pools())
}
