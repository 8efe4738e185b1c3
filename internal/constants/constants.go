package constants

import "time"

// Redis keys
const (
	RedisKeyRecentSwaps  = "swaps:recent"
	RedisKeyPoolSnapshot = "pools:snapshot"
	RedisKeyFlagPrefix   = "dmm:flag:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelSwaps    = "swaps:live"
	PubSubChannelTxStatus = "txs:status"
)

// Limits
const (
	MaxRecentSwaps = 100
)

// Intervals
const (
	DefaultPollInterval    = 2 * time.Second
	DefaultRefreshInterval = 5 * time.Second
)

// Execution defaults
const (
	// DefaultDeadlineBlocks is how many blocks past submission a
	// transaction stays observable before it expires.
	DefaultDeadlineBlocks = 150
	DefaultMaxSlippageBps = 300
)

// LumenDMMProgram is the on-chain swap program this client targets.
const LumenDMMProgram = "DMMLumenXz9fW2qAKcGJ4sD5yV7hT3pRUNb8eQm1gYkA"
