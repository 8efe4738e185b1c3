package dmm

import (
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteExactIn_FreshPool(t *testing.T) {
	p := testPool(1_000_000, BpsDenominator)
	t0, _ := testTokens()

	q, err := QuoteExactIn(p, t0, big.NewInt(1_000), 100)
	require.NoError(t, err)

	// 1.00% fee off the input, floor sweep of the reserves.
	assert.Equal(t, big.NewInt(10_000_000_000_000_000), q.Fee)
	assert.Equal(t, big.NewInt(1_000), q.AmountIn)
	assert.Equal(t, big.NewInt(989), q.AmountOut)
	assert.Equal(t, big.NewInt(1_000), q.Epsilon)
	assert.Equal(t, big.NewInt(110), q.SlippageBps)

	assert.Equal(t, p.Address, q.Pool)
	assert.Equal(t, p.Token0, q.TokenIn)
	assert.Equal(t, p.Token1, q.TokenOut)
}

func TestQuoteExactOut_FreshPool(t *testing.T) {
	p := testPool(1_000_000, BpsDenominator)
	t0, _ := testTokens()

	q, err := QuoteExactOut(p, t0, big.NewInt(989), 100)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(1_000), q.AmountIn)
	assert.Equal(t, big.NewInt(989), q.AmountOut)
	assert.Equal(t, big.NewInt(989), q.Epsilon)
	assert.Equal(t, big.NewInt(111), q.SlippageBps)
}

func TestAmountIn_CoversAmountOut(t *testing.T) {
	p := testPool(1_000_000, BpsDenominator)
	t0, _ := testTokens()

	for _, want := range []int64{1, 17, 989, 12_345, 499_999} {
		in, err := AmountIn(p, t0, big.NewInt(want), 100)
		require.NoError(t, err)

		out, err := AmountOut(p, t0, in, 100)
		require.NoError(t, err)
		assert.True(t, out.Cmp(big.NewInt(want)) >= 0,
			"input %s yields %s, below requested %d", in, out, want)
	}
}

func TestAmountIn_InfeasibleOutput(t *testing.T) {
	p := testPool(1_000_000, BpsDenominator)
	t0, _ := testTokens()

	_, err := AmountIn(p, t0, big.NewInt(1_000_000), 100)
	assert.ErrorIs(t, err, ErrInfeasible)

	_, err = AmountIn(p, t0, big.NewInt(2_000_000), 100)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestAmountOut_EmptyPool(t *testing.T) {
	p := testPool(0, BpsDenominator)
	t0, _ := testTokens()

	_, err := AmountOut(p, t0, big.NewInt(100), 1)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestAmountOut_UnknownToken(t *testing.T) {
	p := testPool(1_000_000, BpsDenominator)
	var stranger solana.PublicKey
	stranger[31] = 42

	_, err := AmountOut(p, stranger, big.NewInt(100), 1)
	assert.ErrorIs(t, err, ErrTokenNotInPool)
}

func TestAmountOut_NegativeInput(t *testing.T) {
	p := testPool(1_000_000, BpsDenominator)
	t0, _ := testTokens()

	_, err := AmountOut(p, t0, big.NewInt(-1), 1)
	assert.ErrorIs(t, err, ErrInvalidPoolState)

	_, err = AmountOut(p, t0, nil, 1)
	assert.ErrorIs(t, err, ErrInvalidPoolState)
}

func TestAmountOut_AmplifiedPoolIsDeeper(t *testing.T) {
	flat := testPool(1_000_000, BpsDenominator)
	amped := testPool(1_000_000, 2*BpsDenominator)
	t0, _ := testTokens()
	in := big.NewInt(100_000)

	outFlat, err := AmountOut(flat, t0, in, 100)
	require.NoError(t, err)
	outAmped, err := AmountOut(amped, t0, in, 100)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(90_081), outFlat)
	assert.Equal(t, big.NewInt(94_330), outAmped)
	assert.True(t, outAmped.Cmp(outFlat) > 0)

	// Epsilon is priced on actual reserves, so amplification narrows the
	// gap rather than moving the reference.
	epsFlat, err := EpsilonOut(flat, t0, in)
	require.NoError(t, err)
	epsAmped, err := EpsilonOut(amped, t0, in)
	require.NoError(t, err)
	assert.Equal(t, epsFlat, epsAmped)
	assert.True(t, SlippageBps(epsAmped, outAmped).Cmp(SlippageBps(epsFlat, outFlat)) < 0)
}

func TestAmountOut_MonotoneInInput(t *testing.T) {
	p := testPool(1_000_000, BpsDenominator)
	t0, _ := testTokens()

	prev := new(big.Int)
	for _, in := range []int64{0, 1, 100, 1_000, 50_000, 1_000_000, 10_000_000} {
		out, err := AmountOut(p, t0, big.NewInt(in), 100)
		require.NoError(t, err)
		assert.True(t, out.Cmp(prev) >= 0, "output fell at input %d", in)
		// Output can never reach the virtual reserve.
		assert.True(t, out.Cmp(big.NewInt(1_000_000)) < 0)
		prev = out
	}
}

func TestSlippageBps(t *testing.T) {
	assert.Equal(t, int64(0), SlippageBps(nil, big.NewInt(10)).Int64())
	assert.Equal(t, int64(0), SlippageBps(new(big.Int), big.NewInt(10)).Int64())
	assert.Equal(t, int64(0), SlippageBps(big.NewInt(100), big.NewInt(150)).Int64())
	assert.Equal(t, int64(110), SlippageBps(big.NewInt(1_000), big.NewInt(989)).Int64())
	assert.Equal(t, int64(10_000), SlippageBps(big.NewInt(1_000), new(big.Int)).Int64())
}

func TestEpsilonIn_RoundsUp(t *testing.T) {
	p := testPool(1_000_000, BpsDenominator)
	p.Reserve1 = big.NewInt(3_000_000)
	p.VReserve1 = big.NewInt(3_000_000)
	t0, _ := testTokens()

	// 100/3 rounds up to 34.
	in, err := EpsilonIn(p, t0, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(34), in)
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, int64(3), ceilDiv(big.NewInt(7), big.NewInt(3)).Int64())
	assert.Equal(t, int64(2), ceilDiv(big.NewInt(6), big.NewInt(3)).Int64())
	assert.Equal(t, int64(0), ceilDiv(big.NewInt(0), big.NewInt(5)).Int64())
	assert.Equal(t, int64(1), ceilDiv(big.NewInt(1), big.NewInt(1_000_000)).Int64())
}

func TestPoolState_Validate(t *testing.T) {
	t.Run("nil pool", func(t *testing.T) {
		var p *PoolState
		assert.ErrorIs(t, p.Validate(), ErrInvalidPoolState)
	})

	t.Run("tokens out of order", func(t *testing.T) {
		p := testPool(1_000, BpsDenominator)
		p.Token0, p.Token1 = p.Token1, p.Token0
		assert.ErrorIs(t, p.Validate(), ErrInvalidPoolState)
	})

	t.Run("one-sided funding", func(t *testing.T) {
		p := testPool(1_000, BpsDenominator)
		p.Reserve1 = new(big.Int)
		assert.ErrorIs(t, p.Validate(), ErrInvalidPoolState)
	})

	t.Run("negative reserve", func(t *testing.T) {
		p := testPool(1_000, BpsDenominator)
		p.Reserve0 = big.NewInt(-5)
		assert.ErrorIs(t, p.Validate(), ErrInvalidPoolState)
	})

	t.Run("funded pool is valid", func(t *testing.T) {
		assert.NoError(t, testPool(1_000, BpsDenominator).Validate())
	})
}

func TestPoolState_Clone(t *testing.T) {
	p := testPool(1_000_000, 2*BpsDenominator)
	p.ShortEMA = big.NewInt(42)
	p.LongEMA = big.NewInt(84)

	cp := p.Clone()
	require.NotNil(t, cp)
	assert.Equal(t, p.Address, cp.Address)
	assert.Equal(t, p.Reserve0, cp.Reserve0)
	assert.Equal(t, p.ShortEMA, cp.ShortEMA)

	// Mutating the clone must not leak into the original.
	cp.Reserve0.SetInt64(7)
	cp.ShortEMA.SetInt64(7)
	assert.Equal(t, big.NewInt(1_000_000), p.Reserve0)
	assert.Equal(t, big.NewInt(42), p.ShortEMA)
}
