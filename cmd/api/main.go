package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lumenfi/dmm-swap-client/internal/ai"
	"github.com/lumenfi/dmm-swap-client/internal/cache"
	"github.com/lumenfi/dmm-swap-client/internal/config"
	"github.com/lumenfi/dmm-swap-client/internal/constants"
	"github.com/lumenfi/dmm-swap-client/internal/dmm"
	"github.com/lumenfi/dmm-swap-client/internal/engine"
	"github.com/lumenfi/dmm-swap-client/internal/flags"
	"github.com/lumenfi/dmm-swap-client/internal/rpc"
	"github.com/lumenfi/dmm-swap-client/internal/server"
	"github.com/lumenfi/dmm-swap-client/internal/state"
	"github.com/lumenfi/dmm-swap-client/internal/wallet"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the API server
// It initializes all dependencies and starts the HTTP server with graceful shutdown
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Initialize Redis client for caching and feature flags
	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0, // Use default database for main application
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	swapCache := cache.NewRedisCache(rclient)
	pubsub := cache.NewPubSubManager(rclient, logger)

	// Initialize feature flags store for runtime configuration
	flagStore, err := flags.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create flags store")
	}

	// Load the static token and pool registry
	registry, err := dmm.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load registry")
	}

	// Pool state service with redis warm start
	stateClient := state.NewClient(cfg.StateBaseURL, cfg.StateAPIKey)
	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	provider := rpc.NewStatusProvider(rpcClient)

	stateSvc, err := state.NewService(state.ServiceConfig{
		Client: stateClient,
		Height: provider,
		Redis:  rclient,
		Logger: logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create state service")
	}
	go func() {
		if err := stateSvc.Run(ctx, cfg.RefreshInterval); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("state refresh loop stopped")
		}
	}()

	// Optional ClickHouse store for swap history
	var chStore *cache.ClickHouseStore
	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.WithError(err).Warn("clickhouse unavailable, swap history disabled")
		} else {
			chStore = ch
			defer chStore.Close()
		}
	}

	// Optional wallet for swap execution
	var w *wallet.Wallet
	if cfg.WalletPrivateKey != "" {
		w, err = wallet.NewWallet(wallet.WalletConfig{
			RPCURL:     cfg.RPCUrl,
			PrivateKey: cfg.WalletPrivateKey,
			Client:     rpcClient,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to create wallet")
		}
		logger.WithField("address", w.Address()).Info("wallet loaded")
	}

	eng, err := engine.NewEngine(engine.EngineDeps{
		Config: engine.EngineConfig{
			DeadlineBlocks: cfg.DeadlineBlocks,
			MaxSlippageBps: cfg.MaxSlippageBps,
		},
		Registry:   registry,
		State:      stateSvc,
		Wallet:     w,
		Provider:   provider,
		Flags:      flagStore,
		Redis:      swapCache,
		PubSub:     pubsub,
		ClickHouse: chStore,
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create engine")
	}

	// Poll observed transactions until shutdown
	if obs := eng.Observer(); obs != nil {
		go func() {
			if err := obs.Run(ctx, constants.DefaultPollInterval); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("observer loop stopped")
			}
		}()
		defer obs.Close()
	}

	// Initialize AI agent for natural language queries (optional)
	var agent *ai.Agent
	aiBase := ai.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		OpenRouterAPIKey:   cfg.OpenRouterAPIKey,
		Model:              cfg.AIModel,
		Logger:             logger,
	}

	// Only initialize AI if OpenRouter API key is provided
	if cfg.OpenRouterAPIKey != "" {
		a, err := ai.NewAgent(ctx, aiBase)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize ai agent")
		} else {
			agent = a
			defer func() {
				_ = agent.Close() // Clean up AI resources on shutdown
			}()
		}
	}

	// Create handlers with all dependencies injected
	h := &server.Handlers{
		Engine:       eng,
		State:        stateSvc,
		Registry:     registry,
		Cache:        swapCache,
		Flags:        flagStore,
		AI:           agent,
		AIBaseConfig: aiBase,
		DevMode:      cfg.DevMode,
		Logger:       logger,
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.New(h, server.Config{
		Addr:    cfg.APIAddr,
		DevMode: cfg.DevMode,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()                               // Cancel context to stop ongoing operations
		_ = srv.Shutdown(context.Background()) // Gracefully shutdown HTTP server
	}()

	// Start the HTTP server
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
