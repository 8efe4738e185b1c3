package engine

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenfi/dmm-swap-client/internal/dmm"
	"github.com/lumenfi/dmm-swap-client/internal/state"
	"github.com/lumenfi/dmm-swap-client/internal/wallet"
)

// writeExecRegistry writes a registry whose pool matches the state stub's
// pool address, with full account metadata so instructions can be built.
// Zero-decimal tokens keep the amounts in raw units.
func writeExecRegistry(t *testing.T) string {
	t.Helper()
	mintA, mintB := pk(0xA0), pk(0xB0)
	t0, t1 := dmm.SortTokens(mintA, mintB)
	doc := map[string]any{
		"tokens": []map[string]any{
			{"symbol": "AAA", "mint": mintA.String(), "decimals": 0},
			{"symbol": "BBB", "mint": mintB.String(), "decimals": 0},
		},
		"pools": []map[string]any{{
			"name":       "AAA-BBB",
			"program_id": pk(0x10).String(),
			"address":    pk(1).String(),
			"authority":  pk(2).String(),
			"token0":     t0.String(),
			"token1":     t1.String(),
			"vault0":     pk(3).String(),
			"vault1":     pk(4).String(),
			"lp_mint":    pk(5).String(),
		}},
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func newExecEngine(t *testing.T, stateURL string) *Engine {
	t.Helper()
	reg, err := dmm.LoadRegistry(writeExecRegistry(t))
	require.NoError(t, err)

	svc, err := state.NewService(state.ServiceConfig{Client: state.NewClient(stateURL, "")})
	require.NoError(t, err)

	w, err := wallet.NewWallet(wallet.WalletConfig{
		RPCURL:     "http://127.0.0.1:0",
		PrivateKey: solana.NewWallet().PrivateKey.String(),
	})
	require.NoError(t, err)

	eng, err := NewEngine(EngineDeps{
		Registry: reg,
		State:    svc,
		Wallet:   w,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	return eng
}

func newExecStateStub(t *testing.T) *httptest.Server {
	t.Helper()
	mintA, mintB := pk(0xA0), pk(0xB0)
	t0, t1 := dmm.SortTokens(mintA, mintB)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"height": 123,
			"pools": []map[string]any{{
				"address":  pk(1).String(),
				"token0":   t0.String(),
				"token1":   t1.String(),
				"reserve0": "1000000",
				"reserve1": "1000000",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildInstructions_ExactOutDirect(t *testing.T) {
	srv := newExecStateStub(t)
	eng := newExecEngine(t, srv.URL)
	_, err := eng.state.Refresh(t.Context())
	require.NoError(t, err)

	params, err := eng.ParseIntent(&SwapIntent{
		InputToken:  "AAA",
		OutputToken: "BBB",
		Amount:      "989",
		ExactOut:    true,
	})
	require.NoError(t, err)

	quote, err := eng.quoteParams(params)
	require.NoError(t, err)
	assert.Equal(t, "1000", quote.AmountIn.String())

	hops, err := eng.priceHops(eng.state.Current(), quote.Route, params)
	require.NoError(t, err)
	require.Len(t, hops, 1)

	ixs, err := eng.buildInstructions(hops, params, 200)
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	require.Len(t, data, 25)

	// Exact-out opcode carrying the user's exact output and the ceiled
	// maximum spend at the default 300 bps tolerance.
	assert.Equal(t, byte(3), data[0])
	assert.Equal(t, uint64(989), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, uint64(1030), binary.LittleEndian.Uint64(data[9:17]))
	assert.Equal(t, uint64(200), binary.LittleEndian.Uint64(data[17:25]))

	assert.Equal(t, pk(0x10), ixs[0].ProgramID())
	accounts := ixs[0].Accounts()
	require.Len(t, accounts, 9)
	assert.Equal(t, pk(1), accounts[0].PublicKey)
	// AAA is token0, so the source vault comes first.
	assert.Equal(t, pk(3), accounts[4].PublicKey)
	assert.Equal(t, pk(4), accounts[5].PublicKey)
}

func TestBuildInstructions_ExactInDirect(t *testing.T) {
	srv := newExecStateStub(t)
	eng := newExecEngine(t, srv.URL)
	_, err := eng.state.Refresh(t.Context())
	require.NoError(t, err)

	params, err := eng.ParseIntent(&SwapIntent{
		InputToken:  "AAA",
		OutputToken: "BBB",
		Amount:      "1000",
	})
	require.NoError(t, err)

	quote, err := eng.quoteParams(params)
	require.NoError(t, err)

	hops, err := eng.priceHops(eng.state.Current(), quote.Route, params)
	require.NoError(t, err)

	ixs, err := eng.buildInstructions(hops, params, 200)
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	require.Len(t, data, 25)

	assert.Equal(t, byte(2), data[0])
	assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, uint64(959), binary.LittleEndian.Uint64(data[9:17]))
}
