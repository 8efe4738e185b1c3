package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// RPC settings
	RPCUrl       string
	PollInterval time.Duration

	// Pool state provider
	StateBaseURL    string
	StateAPIKey     string
	RefreshInterval time.Duration

	// Registry
	RegistryPath string

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// API server
	APIAddr string
	APIKey  string
	DevMode bool

	// Execution
	WalletPrivateKey string
	DeadlineBlocks   uint64
	MaxSlippageBps   uint64

	// AI
	OpenRouterAPIKey string
	AIModel          string
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:       getEnv("RPC_URL", "https://api.mainnet-beta.solana.com"),
		PollInterval: getDurationEnv("POLL_INTERVAL", 2*time.Second),

		// Pool state
		StateBaseURL:    getEnv("STATE_BASE_URL", "http://localhost:8080"),
		StateAPIKey:     getEnv("STATE_API_KEY", ""),
		RefreshInterval: getDurationEnv("REFRESH_INTERVAL", 5*time.Second),

		// Registry
		RegistryPath: getEnv("REGISTRY_PATH", "configs/registry.json"),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "lumen"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// API server
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Execution
		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),
		DeadlineBlocks:   uint64(getIntEnv("DEADLINE_BLOCKS", 150)),
		MaxSlippageBps:   uint64(getIntEnv("MAX_SLIPPAGE_BPS", 300)),

		// AI
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", ""),
	}
}

// Validate checks the settings every binary needs. Component-specific
// requirements (wallet key, AI key) are checked where those components are
// constructed.
func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.StateBaseURL == "" {
		return fmt.Errorf("STATE_BASE_URL is required")
	}
	if c.APIAddr == "" {
		return fmt.Errorf("API_ADDR is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES cannot be negative")
	}
	if c.MaxSlippageBps >= 10000 {
		return fmt.Errorf("MAX_SLIPPAGE_BPS must be below 10000")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
