package dmm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistryFile(t *testing.T, doc map[string]any) string {
	t.Helper()
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func registryDoc() map[string]any {
	t0, t1 := testTokens()
	key := func(b byte) string {
		var k solana.PublicKey
		k[31] = b
		return k.String()
	}
	return map[string]any{
		"tokens": []map[string]any{
			{"symbol": " lum ", "mint": t0.String(), "decimals": 6},
			{"symbol": "USDQ", "mint": t1.String(), "decimals": 6},
		},
		"pools": []map[string]any{{
			"name":       "LUM/USDQ",
			"program_id": key(0x10),
			"address":    key(0x01),
			"authority":  key(0x11),
			"token0":     t0.String(),
			"token1":     t1.String(),
			"vault0":     key(0x12),
			"vault1":     key(0x13),
			"lp_mint":    key(0x14),
		}},
	}
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(writeRegistryFile(t, registryDoc()))
	require.NoError(t, err)

	require.Len(t, reg.Tokens(), 2)
	require.Len(t, reg.Pools(), 1)

	// Symbols normalize to trimmed upper case.
	tok, err := reg.TokenBySymbol("lum")
	require.NoError(t, err)
	assert.Equal(t, "LUM", tok.Symbol)
	assert.Equal(t, uint8(6), tok.Decimals)

	_, err = reg.TokenBySymbol("NOPE")
	assert.Error(t, err)

	// Unset amp defaults to a plain pool.
	pool := reg.Pools()[0]
	assert.Equal(t, uint64(BpsDenominator), pool.AmpBps)

	byAddr, err := reg.PoolByAddress(pool.Address)
	require.NoError(t, err)
	assert.Equal(t, "LUM/USDQ", byAddr.Name)

	t0, t1 := testTokens()
	byMints, err := reg.PoolByMints(t1, t0) // reversed order still resolves
	require.NoError(t, err)
	assert.Equal(t, pool.Address, byMints.Address)
}

func TestLoadRegistry_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("bad mint", func(t *testing.T) {
		doc := registryDoc()
		doc["tokens"].([]map[string]any)[0]["mint"] = "not-base58"
		_, err := LoadRegistry(writeRegistryFile(t, doc))
		assert.Error(t, err)
	})

	t.Run("tokens out of canonical order", func(t *testing.T) {
		doc := registryDoc()
		pool := doc["pools"].([]map[string]any)[0]
		pool["token0"], pool["token1"] = pool["token1"], pool["token0"]
		_, err := LoadRegistry(writeRegistryFile(t, doc))
		assert.Error(t, err)
	})

	t.Run("amp below one", func(t *testing.T) {
		doc := registryDoc()
		doc["pools"].([]map[string]any)[0]["amp_bps"] = 5000
		_, err := LoadRegistry(writeRegistryFile(t, doc))
		assert.Error(t, err)
	})
}
