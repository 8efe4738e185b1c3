package dmm

import "errors"

var (
	// ErrInfeasible signals that a quote cannot be satisfied by the pool's
	// virtual liquidity (requested output >= virtual output reserve, or the
	// pool is empty). Routers treat it as "skip this candidate".
	ErrInfeasible = errors.New("quote infeasible for pool liquidity")

	// ErrTokenNotInPool signals that the requested trade token is neither
	// side of the pool.
	ErrTokenNotInPool = errors.New("token not in pool")

	// ErrInvalidPoolState signals a pool snapshot that violates the state
	// invariants (one-sided reserves, negative amounts, bad token order).
	ErrInvalidPoolState = errors.New("invalid pool state")
)
