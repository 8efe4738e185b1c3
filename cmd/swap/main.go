package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lumenfi/dmm-swap-client/internal/config"
	"github.com/lumenfi/dmm-swap-client/internal/dmm"
	"github.com/lumenfi/dmm-swap-client/internal/engine"
	"github.com/lumenfi/dmm-swap-client/internal/flags"
	"github.com/lumenfi/dmm-swap-client/internal/rpc"
	"github.com/lumenfi/dmm-swap-client/internal/state"
	"github.com/lumenfi/dmm-swap-client/internal/wallet"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "quote", "quote | execute")
	inTok := flag.String("in", "SOL", "input token symbol (e.g. SOL)")
	outTok := flag.String("out", "USDC", "output token symbol (e.g. USDC)")
	amt := flag.String("amt", "", "amount in human units (e.g. 0.1)")
	exactOut := flag.Bool("exact-out", false, "amount is the desired output")
	slippageBps := flag.Uint64("slippage-bps", 100, "slippage in bps (e.g. 100 = 1%)")
	flag.Parse()

	if *amt == "" {
		fmt.Println("missing -amt")
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid configuration:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	registry, err := dmm.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		fmt.Println("failed to load registry:", err)
		os.Exit(1)
	}

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	provider := rpc.NewStatusProvider(rpcClient)

	stateSvc, err := state.NewService(state.ServiceConfig{
		Client: state.NewClient(cfg.StateBaseURL, cfg.StateAPIKey),
		Height: provider,
		Logger: logger,
	})
	if err != nil {
		fmt.Println("failed to create state service:", err)
		os.Exit(1)
	}
	if _, err := stateSvc.Refresh(ctx); err != nil {
		fmt.Println("failed to fetch pool states:", err)
		os.Exit(1)
	}

	deps := engine.EngineDeps{
		Config: engine.EngineConfig{
			DeadlineBlocks: cfg.DeadlineBlocks,
			MaxSlippageBps: cfg.MaxSlippageBps,
		},
		Registry: registry,
		State:    stateSvc,
		Provider: provider,
		Logger:   logger,
	}

	if *mode == "execute" {
		if cfg.WalletPrivateKey == "" {
			fmt.Println("WALLET_PRIVATE_KEY is required for execute mode")
			os.Exit(1)
		}
		w, err := wallet.NewWallet(wallet.WalletConfig{
			RPCURL:     cfg.RPCUrl,
			PrivateKey: cfg.WalletPrivateKey,
			Client:     rpcClient,
		})
		if err != nil {
			fmt.Println("failed to create wallet:", err)
			os.Exit(1)
		}
		deps.Wallet = w

		if cfg.RedisAddr != "" {
			rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			if err := rclient.Ping(ctx).Err(); err == nil {
				if store, err := flags.NewStore(rclient); err == nil {
					deps.Flags = store
				}
			}
		}
	}

	eng, err := engine.NewEngine(deps)
	if err != nil {
		fmt.Println("failed to create engine:", err)
		os.Exit(1)
	}

	intent := &engine.SwapIntent{
		InputToken:  *inTok,
		OutputToken: *outTok,
		Amount:      *amt,
		ExactOut:    *exactOut,
		SlippageBps: slippageBps,
		RequestedAt: time.Now(),
	}

	switch *mode {
	case "quote":
		q, err := eng.Quote(ctx, intent)
		if err != nil {
			fmt.Println("quote failed:", err)
			os.Exit(1)
		}
		fmt.Printf("amount_in=%s amount_out=%s bound=%s hops=%d height=%d\n",
			q.AmountIn, q.AmountOut, q.Bound, len(q.Route.Hops), q.Height)
		for i, hop := range q.Route.Hops {
			fmt.Printf("  hop %d: pool=%s %s -> %s\n", i+1, hop.Pool, hop.TokenIn, hop.TokenOut)
		}
		if q.SlippageBps != nil {
			fmt.Printf("slippage_bps=%s\n", q.SlippageBps)
		}
	case "execute":
		res, err := eng.ExecuteSwap(ctx, intent)
		if err != nil {
			fmt.Println("execute failed:", err)
			os.Exit(1)
		}
		fmt.Printf("sig=%s amount_in=%s amount_out=%s duration=%s\n",
			res.Signature, res.Quote.AmountIn, res.Quote.AmountOut, res.Duration)

		// Poll until the transaction resolves or the context ends.
		obs := eng.Observer()
		for len(obs.Observed()) > 0 && ctx.Err() == nil {
			if err := obs.Poll(ctx); err != nil {
				fmt.Println("poll failed:", err)
			}
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
	default:
		fmt.Println("unknown mode:", *mode)
		os.Exit(2)
	}
}
