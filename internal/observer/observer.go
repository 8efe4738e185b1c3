// Package observer tracks submitted transactions until they confirm, get
// rejected, or expire past their deadline height.
package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by Observe after teardown has begun.
var ErrClosed = errors.New("observer is closed")

// Observer owns the set of in-flight transactions. The set is keyed by hash;
// the observer is its sole mutator. Chain queries fan out without holding the
// lock, so a slow node stalls neither Observe nor Observed.
type Observer struct {
	provider ChainStatusProvider
	onUpdate UpdateFunc
	logger   *logrus.Logger

	mu      sync.Mutex
	entries map[string]ObservedTx
	polling bool
	closed  bool

	inflight sync.WaitGroup
}

// New creates an observer. onUpdate may be nil when the caller only inspects
// Observed.
func New(provider ChainStatusProvider, onUpdate UpdateFunc, logger *logrus.Logger) *Observer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Observer{
		provider: provider,
		onUpdate: onUpdate,
		logger:   logger,
		entries:  make(map[string]ObservedTx),
	}
}

// Observe registers a pending transaction; it becomes visible to the next
// poll cycle. Re-observing a hash already present is a no-op.
func (o *Observer) Observe(tx ObservedTx) error {
	if tx.Hash == "" {
		return fmt.Errorf("transaction hash is required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if _, ok := o.entries[tx.Hash]; !ok {
		o.entries[tx.Hash] = tx
	}
	return nil
}

// Observed returns a point-in-time copy of the observed set.
func (o *Observer) Observed() []ObservedTx {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ObservedTx, 0, len(o.entries))
	for _, tx := range o.entries {
		out = append(out, tx)
	}
	return out
}

// outcome is one entry's terminal classification from a poll cycle.
type outcome struct {
	tx      ObservedTx
	status  Status
	receipt *Receipt
}

// Poll advances every observed entry once. A poll already in flight makes
// the call a no-op, so a timer tick and a block event cannot double-notify.
// Per-entry query failures leave that entry pending for the next cycle; only
// a height lookup failure aborts the cycle.
func (o *Observer) Poll(ctx context.Context) error {
	o.mu.Lock()
	if o.polling || o.closed {
		o.mu.Unlock()
		return nil
	}
	o.polling = true
	o.inflight.Add(1)
	batch := make([]ObservedTx, 0, len(o.entries))
	for _, tx := range o.entries {
		batch = append(batch, tx)
	}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.polling = false
		o.mu.Unlock()
		o.inflight.Done()
	}()

	if len(batch) == 0 {
		return nil
	}

	height, err := o.provider.CurrentHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch chain height: %w", err)
	}

	// Fan out the chain queries; the lock stays free while they run.
	results := make([]*outcome, len(batch))
	var wg sync.WaitGroup
	for i, tx := range batch {
		wg.Add(1)
		go func(i int, tx ObservedTx) {
			defer wg.Done()
			results[i] = o.classify(ctx, tx, height)
		}(i, tx)
	}
	wg.Wait()

	// Mutate the set under the lock, then notify outside it. Deleting the
	// entry here is what guarantees at-most-once callbacks: a concurrent
	// cycle can no longer see it.
	var fire []*outcome
	o.mu.Lock()
	for _, res := range results {
		if res == nil {
			continue
		}
		if _, ok := o.entries[res.tx.Hash]; ok {
			delete(o.entries, res.tx.Hash)
			fire = append(fire, res)
		}
	}
	o.mu.Unlock()

	for _, res := range fire {
		o.logger.WithFields(logrus.Fields{
			"hash":   res.tx.Hash,
			"status": res.status.String(),
		}).Info("transaction reached terminal status")
		if o.onUpdate != nil {
			o.onUpdate(res.tx, res.status, res.receipt)
		}
	}
	return nil
}

// classify resolves one entry against chain state. nil means still pending.
func (o *Observer) classify(ctx context.Context, tx ObservedTx, height uint64) *outcome {
	status, err := o.provider.TransactionStatus(ctx, tx.Hash)
	if err != nil {
		o.logger.WithError(err).WithField("hash", tx.Hash).Warn("status query failed, keeping entry pending")
		return nil
	}

	if status == TxFinalized {
		receipt, err := o.provider.Receipt(ctx, tx.Hash)
		if err != nil {
			o.logger.WithError(err).WithField("hash", tx.Hash).Warn("receipt query failed, keeping entry pending")
			return nil
		}
		st := StatusRejected
		if receipt.Success {
			st = StatusConfirmed
		}
		return &outcome{tx: tx, status: st, receipt: receipt}
	}

	if height > tx.Deadline {
		return &outcome{tx: tx, status: StatusExpired}
	}
	return nil
}

// Run polls on a fixed interval until the context ends.
func (o *Observer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.Poll(ctx); err != nil {
				o.logger.WithError(err).Error("poll cycle failed")
			}
		}
	}
}

// Close stops accepting new entries and drains the in-flight poll. Entries
// still pending afterward simply remain unobserved; no callback fires for
// them.
func (o *Observer) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.inflight.Wait()
}
