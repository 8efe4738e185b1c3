package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	snapshotCacheKey = "pools:snapshot"
	snapshotCacheTTL = 10 * time.Minute
)

// HeightSource reports the current chain height.
type HeightSource interface {
	CurrentHeight(ctx context.Context) (uint64, error)
}

// Service owns the published snapshot. Refresh builds a complete new
// snapshot and swaps it in atomically; readers holding the old one are
// unaffected. An optional redis client warm-starts the service across
// restarts so quoting works before the first live fetch completes.
type Service struct {
	client *Client
	height HeightSource
	redis  *redis.Client
	logger *logrus.Logger

	snap atomic.Pointer[Snapshot]
}

// ServiceConfig wires the snapshot service.
type ServiceConfig struct {
	Client *Client
	Height HeightSource
	Redis  *redis.Client
	Logger *logrus.Logger
}

// NewService creates the snapshot service and, when a redis client is
// present, tries to warm-start from the cached snapshot.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("state client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	s := &Service{
		client: cfg.Client,
		height: cfg.Height,
		redis:  cfg.Redis,
		logger: cfg.Logger,
	}
	if s.redis != nil {
		if snap, err := s.loadCached(context.Background()); err != nil {
			s.logger.WithError(err).Debug("no cached pool snapshot")
		} else {
			s.snap.Store(snap)
			s.logger.WithFields(logrus.Fields{
				"height": snap.Height,
				"pools":  len(snap.Pools),
			}).Info("warm-started pool snapshot from cache")
		}
	}
	return s, nil
}

// Current returns the latest published snapshot, or nil before the first
// successful refresh.
func (s *Service) Current() *Snapshot {
	return s.snap.Load()
}

// CurrentHeight queries the chain height.
func (s *Service) CurrentHeight(ctx context.Context) (uint64, error) {
	if s.height == nil {
		return 0, fmt.Errorf("no height source configured")
	}
	return s.height.CurrentHeight(ctx)
}

// Refresh fetches every pool state, builds a new snapshot and publishes it.
// Errors surface to the caller; no internal retry.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	height, pools, err := s.client.FetchPoolStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pool states: %w", err)
	}
	snap, err := NewSnapshot(height, pools)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot: %w", err)
	}
	s.snap.Store(snap)
	s.logger.WithFields(logrus.Fields{
		"height": snap.Height,
		"pools":  len(snap.Pools),
		"tokens": len(snap.TokenPools),
	}).Debug("published pool snapshot")

	if s.redis != nil {
		if err := s.cache(ctx, snap); err != nil {
			s.logger.WithError(err).Warn("failed to cache pool snapshot")
		}
	}
	return snap, nil
}

// Run refreshes on a fixed interval until the context ends. Refresh errors
// are logged and the previous snapshot stays published.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.WithField("interval", interval).Info("starting pool state refresh loop")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.WithError(err).Error("pool state refresh failed")
			}
		}
	}
}

// cachedSnapshot is the redis wire form: the raw payloads plus the height.
type cachedSnapshot struct {
	Height uint64        `json:"height"`
	Pools  []poolPayload `json:"pools"`
}

func (s *Service) cache(ctx context.Context, snap *Snapshot) error {
	cached := cachedSnapshot{Height: snap.Height, Pools: make([]poolPayload, 0, len(snap.Pools))}
	for _, p := range snap.Pools {
		cached.Pools = append(cached.Pools, encodePool(p))
	}
	b, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.redis.Set(ctx, snapshotCacheKey, b, snapshotCacheTTL).Err()
}

func (s *Service) loadCached(ctx context.Context) (*Snapshot, error) {
	raw, err := s.redis.Get(ctx, snapshotCacheKey).Result()
	if err != nil {
		return nil, err
	}
	var cached cachedSnapshot
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("unmarshal cached snapshot: %w", err)
	}
	pools, err := DecodePools(cached.Pools)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(cached.Height, pools)
}
