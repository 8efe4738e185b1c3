package dmm

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoolMeta() *PoolMeta {
	key := func(b byte) solana.PublicKey {
		var k solana.PublicKey
		k[31] = b
		return k
	}
	return &PoolMeta{
		Name:      "A-B",
		ProgramID: key(0x10),
		Address:   key(1),
		Authority: key(2),
		Token0:    key(0xA0),
		Token1:    key(0xB0),
		Vault0:    key(3),
		Vault1:    key(4),
		LPMint:    key(5),
		AmpBps:    BpsDenominator,
	}
}

func TestBuildSwapExactOutInstruction(t *testing.T) {
	meta := testPoolMeta()
	owner, source, dest := meta.Token0, meta.Vault0, meta.Vault1

	t.Run("forward direction", func(t *testing.T) {
		ix, err := BuildSwapExactOutInstruction(meta, meta.Token0,
			big.NewInt(989), big.NewInt(1030), 200, owner, source, dest)
		require.NoError(t, err)

		data, err := ix.Data()
		require.NoError(t, err)
		require.Len(t, data, 25)
		assert.Equal(t, byte(3), data[0])
		assert.Equal(t, uint64(989), binary.LittleEndian.Uint64(data[1:9]))
		assert.Equal(t, uint64(1030), binary.LittleEndian.Uint64(data[9:17]))
		assert.Equal(t, uint64(200), binary.LittleEndian.Uint64(data[17:25]))

		accounts := ix.Accounts()
		require.Len(t, accounts, 9)
		assert.Equal(t, meta.Vault0, accounts[4].PublicKey)
		assert.Equal(t, meta.Vault1, accounts[5].PublicKey)
	})

	t.Run("reverse direction flips the vaults", func(t *testing.T) {
		ix, err := BuildSwapExactOutInstruction(meta, meta.Token1,
			big.NewInt(989), big.NewInt(1030), 200, owner, source, dest)
		require.NoError(t, err)

		accounts := ix.Accounts()
		require.Len(t, accounts, 9)
		assert.Equal(t, meta.Vault1, accounts[4].PublicKey)
		assert.Equal(t, meta.Vault0, accounts[5].PublicKey)
	})

	t.Run("rejects amounts past u64", func(t *testing.T) {
		huge := new(big.Int).Lsh(big.NewInt(1), 64)
		_, err := BuildSwapExactOutInstruction(meta, meta.Token0,
			huge, big.NewInt(1), 200, owner, source, dest)
		assert.Error(t, err)
	})

	t.Run("rejects tokens outside the pool", func(t *testing.T) {
		var stranger solana.PublicKey
		stranger[31] = 0xFF
		_, err := BuildSwapExactOutInstruction(meta, stranger,
			big.NewInt(1), big.NewInt(1), 200, owner, source, dest)
		assert.ErrorIs(t, err, ErrTokenNotInPool)
	})

	t.Run("rejects nil meta", func(t *testing.T) {
		_, err := BuildSwapExactOutInstruction(nil, meta.Token0,
			big.NewInt(1), big.NewInt(1), 200, owner, source, dest)
		assert.Error(t, err)
	})
}
