package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lumenfi/dmm-swap-client/internal/constants"
	"github.com/lumenfi/dmm-swap-client/internal/models"
)

// RedisCache keeps a bounded list of the most recent swaps for the API to
// serve without touching ClickHouse.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) AddRecentSwap(ctx context.Context, swap *models.SwapEvent) error {
	data, err := json.Marshal(swap)
	if err != nil {
		return fmt.Errorf("failed to marshal swap: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentSwaps, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentSwaps, 0, constants.MaxRecentSwaps-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache swap: %w", err)
	}
	return nil
}

// RecentSwaps returns up to limit of the newest cached swaps, newest first.
func (r *RedisCache) RecentSwaps(ctx context.Context, limit int64) ([]*models.SwapEvent, error) {
	if limit <= 0 || limit > constants.MaxRecentSwaps {
		limit = constants.MaxRecentSwaps
	}

	raw, err := r.client.LRange(ctx, constants.RedisKeyRecentSwaps, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent swaps: %w", err)
	}

	swaps := make([]*models.SwapEvent, 0, len(raw))
	for _, item := range raw {
		var swap models.SwapEvent
		if err := json.Unmarshal([]byte(item), &swap); err != nil {
			continue
		}
		swaps = append(swaps, &swap)
	}
	return swaps, nil
}
