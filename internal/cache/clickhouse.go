package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/lumenfi/dmm-swap-client/internal/models"
)

type ClickHouseStore struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

func NewClickHouseStore(cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Database == "" {
		cfg.Database = "lumen"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseStore{conn: conn}, nil
}

func (c *ClickHouseStore) InsertSwap(ctx context.Context, swap *models.SwapEvent) error {
	query := `
		INSERT INTO swaps (
			signature, timestamp, pair, token_in, token_out,
			amount_in, amount_out, fee_bps, pool, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		swap.Signature,
		swap.Timestamp,
		swap.Pair,
		swap.TokenIn,
		swap.TokenOut,
		swap.AmountIn,
		swap.AmountOut,
		swap.FeeBps,
		swap.Pool,
		swap.Status,
	)

	if err != nil {
		return fmt.Errorf("failed to insert swap: %w", err)
	}

	return nil
}

// RecentSwaps reads the newest rows from the swaps table, newest first.
func (c *ClickHouseStore) RecentSwaps(ctx context.Context, limit int) ([]*models.SwapEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT signature, timestamp, pair, token_in, token_out,
		       amount_in, amount_out, fee_bps, pool, status
		FROM swaps
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := c.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query swaps: %w", err)
	}
	defer rows.Close()

	var swaps []*models.SwapEvent
	for rows.Next() {
		var swap models.SwapEvent
		if err := rows.Scan(
			&swap.Signature,
			&swap.Timestamp,
			&swap.Pair,
			&swap.TokenIn,
			&swap.TokenOut,
			&swap.AmountIn,
			&swap.AmountOut,
			&swap.FeeBps,
			&swap.Pool,
			&swap.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan swap row: %w", err)
		}
		swaps = append(swaps, &swap)
	}

	return swaps, rows.Err()
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
