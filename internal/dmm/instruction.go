package dmm

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// Instruction discriminators of the DMM program.
const (
	ixSwapExactIn  = 2
	ixSwapExactOut = 3
)

// BuildSwapExactInInstruction constructs one hop of an exact-input swap.
// minAmountOut is the chain-enforced bound derived from the quote; the
// program rejects the trade when the pool can no longer honor it.
func BuildSwapExactInInstruction(
	meta *PoolMeta,
	tokenIn solana.PublicKey,
	amountIn *big.Int,
	minAmountOut *big.Int,
	deadline uint64,
	userAuthority solana.PublicKey,
	userSource solana.PublicKey,
	userDestination solana.PublicKey,
) (solana.Instruction, error) {
	if meta == nil {
		return nil, fmt.Errorf("pool meta cannot be nil")
	}
	in64, err := toUint64(amountIn, "amount_in")
	if err != nil {
		return nil, err
	}
	min64, err := toUint64(minAmountOut, "min_amount_out")
	if err != nil {
		return nil, err
	}

	data := make([]byte, 25)
	data[0] = ixSwapExactIn
	binary.LittleEndian.PutUint64(data[1:9], in64)
	binary.LittleEndian.PutUint64(data[9:17], min64)
	binary.LittleEndian.PutUint64(data[17:25], deadline)

	accounts, err := swapAccounts(meta, tokenIn, userAuthority, userSource, userDestination)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(meta.ProgramID, accounts, data), nil
}

// BuildSwapExactOutInstruction constructs one hop of an exact-output swap
// with a chain-enforced maximum input bound.
func BuildSwapExactOutInstruction(
	meta *PoolMeta,
	tokenIn solana.PublicKey,
	amountOut *big.Int,
	maxAmountIn *big.Int,
	deadline uint64,
	userAuthority solana.PublicKey,
	userSource solana.PublicKey,
	userDestination solana.PublicKey,
) (solana.Instruction, error) {
	if meta == nil {
		return nil, fmt.Errorf("pool meta cannot be nil")
	}
	out64, err := toUint64(amountOut, "amount_out")
	if err != nil {
		return nil, err
	}
	max64, err := toUint64(maxAmountIn, "max_amount_in")
	if err != nil {
		return nil, err
	}

	data := make([]byte, 25)
	data[0] = ixSwapExactOut
	binary.LittleEndian.PutUint64(data[1:9], out64)
	binary.LittleEndian.PutUint64(data[9:17], max64)
	binary.LittleEndian.PutUint64(data[17:25], deadline)

	accounts, err := swapAccounts(meta, tokenIn, userAuthority, userSource, userDestination)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(meta.ProgramID, accounts, data), nil
}

// swapAccounts lays out the account list the DMM program expects:
//
//	0. pool state account
//	1. pool authority
//	2. user transfer authority (signer)
//	3. user source token account
//	4. pool source vault
//	5. pool destination vault
//	6. user destination token account
//	7. LP mint (fee growth bookkeeping)
//	8. token program
func swapAccounts(
	meta *PoolMeta,
	tokenIn solana.PublicKey,
	userAuthority, userSource, userDestination solana.PublicKey,
) ([]*solana.AccountMeta, error) {
	vaultIn, vaultOut := meta.Vault0, meta.Vault1
	switch {
	case meta.Token0.Equals(tokenIn):
	case meta.Token1.Equals(tokenIn):
		vaultIn, vaultOut = meta.Vault1, meta.Vault0
	default:
		return nil, fmt.Errorf("%w: %s in pool %s", ErrTokenNotInPool, tokenIn, meta.Address)
	}

	return []*solana.AccountMeta{
		{PublicKey: meta.Address, IsWritable: true},
		{PublicKey: meta.Authority},
		{PublicKey: userAuthority, IsSigner: true},
		{PublicKey: userSource, IsWritable: true},
		{PublicKey: vaultIn, IsWritable: true},
		{PublicKey: vaultOut, IsWritable: true},
		{PublicKey: userDestination, IsWritable: true},
		{PublicKey: meta.LPMint, IsWritable: true},
		{PublicKey: solana.TokenProgramID},
	}, nil
}

func toUint64(v *big.Int, field string) (uint64, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%s does not fit the program's u64 range: %s", field, v)
	}
	return v.Uint64(), nil
}
