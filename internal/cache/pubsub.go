// ============================================================================
// cache/pubsub.go - Redis Pub/Sub Wrapper
// ============================================================================
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lumenfi/dmm-swap-client/internal/constants"
	"github.com/lumenfi/dmm-swap-client/internal/models"
)

type PubSubManager struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewPubSubManager(client *redis.Client, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}
}

// PublishSwap fans a swap event out to the live channel plus a pair-specific
// one so dashboards can filter server-side.
func (p *PubSubManager) PublishSwap(ctx context.Context, swap *models.SwapEvent) error {
	data, err := json.Marshal(swap)
	if err != nil {
		return err
	}

	channels := []string{
		constants.PubSubChannelSwaps,
		fmt.Sprintf("swaps:pair:%s", swap.Pair),
	}

	pipe := p.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// PublishTxStatus announces a terminal transaction status.
func (p *PubSubManager) PublishTxStatus(ctx context.Context, event *models.TxStatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, constants.PubSubChannelTxStatus, data).Err()
}

// SubscribeSwaps blocks, delivering swap events from channel to handler until
// the context ends.
func (p *PubSubManager) SubscribeSwaps(ctx context.Context, channel string, handler func(*models.SwapEvent)) error {
	pubsub := p.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	p.logger.WithField("channel", channel).Info("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var swap models.SwapEvent
			if err := json.Unmarshal([]byte(msg.Payload), &swap); err != nil {
				p.logger.WithError(err).Warn("failed to unmarshal swap event")
				continue
			}
			handler(&swap)
		}
	}
}

// SubscribeTxStatus blocks, delivering transaction status events to handler.
func (p *PubSubManager) SubscribeTxStatus(ctx context.Context, handler func(*models.TxStatusEvent)) error {
	pubsub := p.client.Subscribe(ctx, constants.PubSubChannelTxStatus)
	defer pubsub.Close()

	p.logger.WithField("channel", constants.PubSubChannelTxStatus).Info("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.TxStatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				p.logger.WithError(err).Warn("failed to unmarshal tx status event")
				continue
			}
			handler(&event)
		}
	}
}
