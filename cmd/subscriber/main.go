// ============================================================================
// cmd/subscriber/main.go - Example Subscriber (Consumer)
// ============================================================================
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lumenfi/dmm-swap-client/internal/cache"
	"github.com/lumenfi/dmm-swap-client/internal/config"
	"github.com/lumenfi/dmm-swap-client/internal/constants"
	"github.com/lumenfi/dmm-swap-client/internal/models"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	pubsub := cache.NewPubSubManager(rclient, logger)

	logger.Info("starting swap subscriber")

	// Live swap submissions
	go func() {
		err := pubsub.SubscribeSwaps(ctx, constants.PubSubChannelSwaps, func(swap *models.SwapEvent) {
			logger.WithFields(logrus.Fields{
				"signature":  shortSig(swap.Signature),
				"pair":       swap.Pair,
				"amount_in":  swap.AmountIn,
				"amount_out": swap.AmountOut,
				"fee_bps":    swap.FeeBps,
			}).Info("swap")
		})
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("swap subscription ended")
		}
	}()

	// Terminal transaction statuses
	go func() {
		err := pubsub.SubscribeTxStatus(ctx, func(event *models.TxStatusEvent) {
			logger.WithFields(logrus.Fields{
				"signature": shortSig(event.Signature),
				"status":    event.Status,
			}).Info("tx status")
		})
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("tx status subscription ended")
		}
	}()

	logger.Info("subscriber running, press Ctrl+C to stop")

	<-sigChan
	logger.Info("shutting down subscriber")
}

func shortSig(sig string) string {
	if len(sig) > 8 {
		return sig[:8]
	}
	return sig
}
