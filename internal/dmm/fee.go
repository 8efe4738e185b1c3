package dmm

import "math/big"

// Precision is the fixed-point scale for fees, EMA factors and the volume
// ratio: 10^18 == 1.0. A fee of 2_500_000_000_000_000 is 0.25%.
var Precision = pow10(18)

// Smoothing factors for the trade-volume EMAs, in Precision units.
// alpha = 2/(N+1) with N = 5400 blocks for the short window and N = 10800
// blocks for the long window.
var (
	shortAlpha = div(mulUint(Precision, 2), 5401)
	longAlpha  = div(mulUint(Precision, 2), 10801)
)

// Frozen coefficients of the piecewise fee curve over the volume ratio r =
// shortEMA/longEMA. The curve is continuous and non-increasing:
//
//	r in [0, 1):    fee = feeBase + quadCoeff * (1-r)^2    (1.00% at r=0)
//	r in [1, 1.5):  fee = feeBase - cubicCoeff * (r-1)^3   (0.25% .. 0.10%)
//	r >= 1.5:       fee = feeFloor                          (0.10%)
//
// The values are protocol constants; they are not derived, only reproduced.
var (
	feeFloor   = big.NewInt(1_000_000_000_000_000)  // 0.10%
	feeBase    = big.NewInt(2_500_000_000_000_000)  // 0.25% at r == 1
	quadCoeff  = big.NewInt(7_500_000_000_000_000)  // lifts the r=0 fee to 1.00%
	cubicCoeff = big.NewInt(12_000_000_000_000_000) // decays 0.25% -> 0.10% over [1, 1.5)
	rHighBreak = div(mulUint(Precision, 3), 2)      // 1.5 in Precision units
)

// SwapFee returns the dynamic fee for a trade against the pool at the given
// block height, in Precision units. The pool's volume statistics are advanced
// to the current height on local values only; the snapshot is not touched.
func SwapFee(p *PoolState, height uint64) *big.Int {
	r := rFactor(p, height)
	return ampScaledFee(baseFee(r), p.AmpBps)
}

// rFactor advances both EMAs to the given height and returns their ratio in
// Precision units. A pool with no long-window history prices at r = 0, the
// maximal-fee regime.
func rFactor(p *PoolState, height uint64) *big.Int {
	var skip uint64
	if height > p.LastTradeBlock {
		skip = height - p.LastTradeBlock
	}
	short := advanceEMA(p.ShortEMA, shortAlpha, p.CurrentBlockVolume, skip)
	long := advanceEMA(p.LongEMA, longAlpha, p.CurrentBlockVolume, skip)
	if long.Sign() == 0 {
		return new(big.Int)
	}
	r := new(big.Int).Mul(short, Precision)
	return r.Quo(r, long)
}

// advanceEMA applies ema' = ema*(1-alpha) + volume*alpha once to close out
// the last traded block, then decays the EMA across the remaining empty
// blocks with (1-alpha)^(skip-1) via exponentiation by squaring. skip == 0
// means the traded block is still the current one and the EMA stands as is.
func advanceEMA(ema, alpha, volume *big.Int, skip uint64) *big.Int {
	if ema == nil {
		ema = new(big.Int)
	}
	if volume == nil {
		volume = new(big.Int)
	}
	if skip == 0 {
		return new(big.Int).Set(ema)
	}
	decay := new(big.Int).Sub(Precision, alpha)
	out := mulInPrecision(decay, ema)
	out.Add(out, mulInPrecision(alpha, volume))
	if skip > 1 {
		out = mulInPrecision(out, powInPrecision(decay, skip-1))
	}
	return out
}

// baseFee maps the volume ratio through the frozen piecewise curve.
func baseFee(r *big.Int) *big.Int {
	switch {
	case r.Cmp(rHighBreak) >= 0:
		return new(big.Int).Set(feeFloor)
	case r.Cmp(Precision) >= 0:
		// feeBase - cubicCoeff*(r-1)^3
		t := new(big.Int).Sub(r, Precision)
		t3 := mulInPrecision(mulInPrecision(t, t), t)
		fee := new(big.Int).Sub(feeBase, mulInPrecision(cubicCoeff, t3))
		if fee.Cmp(feeFloor) < 0 {
			fee.Set(feeFloor)
		}
		return fee
	default:
		// feeBase + quadCoeff*(1-r)^2
		t := new(big.Int).Sub(Precision, r)
		t2 := mulInPrecision(t, t)
		return new(big.Int).Add(feeBase, mulInPrecision(quadCoeff, t2))
	}
}

// ampScaledFee applies the amplification step-down: deeper virtual liquidity
// takes a smaller effective cut of each trade.
func ampScaledFee(fee *big.Int, ampBps uint64) *big.Int {
	switch {
	case ampBps <= 2*BpsDenominator:
		return fee
	case ampBps <= 5*BpsDenominator:
		return div(mulUint(fee, 2), 3)
	case ampBps <= 20*BpsDenominator:
		return div(new(big.Int).Set(fee), 3)
	default:
		return div(mulUint(fee, 2), 15)
	}
}

// mulInPrecision returns x*y/Precision, the fixed-point product.
func mulInPrecision(x, y *big.Int) *big.Int {
	out := new(big.Int).Mul(x, y)
	return out.Quo(out, Precision)
}

// powInPrecision raises a Precision-scaled base to an integer power by
// squaring, staying in fixed point throughout.
func powInPrecision(base *big.Int, n uint64) *big.Int {
	result := new(big.Int).Set(Precision)
	acc := new(big.Int).Set(base)
	for n > 0 {
		if n&1 == 1 {
			result = mulInPrecision(result, acc)
		}
		n >>= 1
		if n > 0 {
			acc = mulInPrecision(acc, acc)
		}
	}
	return result
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func mulUint(x *big.Int, n int64) *big.Int {
	return new(big.Int).Mul(x, big.NewInt(n))
}

func div(x *big.Int, n int64) *big.Int {
	return x.Quo(x, big.NewInt(n))
}
