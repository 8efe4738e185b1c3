package observer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves canned chain state and can block mid-query to expose
// poll concurrency.
type fakeProvider struct {
	mu        sync.Mutex
	height    uint64
	heightErr error
	statuses  map[string]TxStatus
	statusErr map[string]error
	receipts  map[string]*Receipt

	block   chan struct{} // when set, TransactionStatus waits on it
	entered chan struct{} // signaled once per blocked status query
}

func newFakeProvider(height uint64) *fakeProvider {
	return &fakeProvider{
		height:    height,
		statuses:  make(map[string]TxStatus),
		statusErr: make(map[string]error),
		receipts:  make(map[string]*Receipt),
	}
}

func (f *fakeProvider) CurrentHeight(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	return f.height, nil
}

func (f *fakeProvider) TransactionStatus(ctx context.Context, hash string) (TxStatus, error) {
	f.mu.Lock()
	block := f.block
	entered := f.entered
	err := f.statusErr[hash]
	status := f.statuses[hash]
	f.mu.Unlock()
	if block != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-block
	}
	if err != nil {
		return TxPending, err
	}
	return status, nil
}

func (f *fakeProvider) Receipt(ctx context.Context, hash string) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, errors.New("receipt not available")
	}
	return r, nil
}

func (f *fakeProvider) finalize(hash string, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[hash] = TxFinalized
	f.receipts[hash] = &Receipt{Success: success}
}

// recorder collects terminal callbacks.
type recorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

type recordedCall struct {
	hash    string
	status  Status
	receipt *Receipt
}

func (r *recorder) fn(tx ObservedTx, status Status, receipt *Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{hash: tx.Hash, status: status, receipt: receipt})
}

func (r *recorder) snapshot() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestObserver_Observe(t *testing.T) {
	obs := New(newFakeProvider(1), nil, testLogger())

	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-1", Deadline: 100}))
	assert.Len(t, obs.Observed(), 1)

	t.Run("empty hash rejected", func(t *testing.T) {
		assert.Error(t, obs.Observe(ObservedTx{Deadline: 100}))
	})

	t.Run("duplicate is a no-op", func(t *testing.T) {
		require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-1", Deadline: 999}))
		observed := obs.Observed()
		require.Len(t, observed, 1)
		assert.Equal(t, uint64(100), observed[0].Deadline, "re-observe must not overwrite")
	})

	t.Run("closed observer rejects", func(t *testing.T) {
		obs.Close()
		assert.ErrorIs(t, obs.Observe(ObservedTx{Hash: "sig-2", Deadline: 100}), ErrClosed)
	})
}

func TestObserver_ConfirmedExactlyOnce(t *testing.T) {
	provider := newFakeProvider(10)
	rec := &recorder{}
	obs := New(provider, rec.fn, testLogger())

	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-1", Deadline: 100}))
	provider.finalize("sig-1", true)

	ctx := context.Background()
	require.NoError(t, obs.Poll(ctx))
	require.NoError(t, obs.Poll(ctx))

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "sig-1", calls[0].hash)
	assert.Equal(t, StatusConfirmed, calls[0].status)
	require.NotNil(t, calls[0].receipt)
	assert.True(t, calls[0].receipt.Success)

	assert.Empty(t, obs.Observed(), "terminal entry must leave the set")
}

func TestObserver_RejectedOnFailedReceipt(t *testing.T) {
	provider := newFakeProvider(10)
	rec := &recorder{}
	obs := New(provider, rec.fn, testLogger())

	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-1", Deadline: 100}))
	provider.finalize("sig-1", false)
	provider.receipts["sig-1"].Errors = []string{"custom program error: 0x1"}

	require.NoError(t, obs.Poll(context.Background()))

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, StatusRejected, calls[0].status)
	require.NotNil(t, calls[0].receipt)
	assert.Equal(t, []string{"custom program error: 0x1"}, calls[0].receipt.Errors)
}

func TestObserver_ExpiresPastDeadline(t *testing.T) {
	provider := newFakeProvider(50)
	rec := &recorder{}
	obs := New(provider, rec.fn, testLogger())

	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-at-deadline", Deadline: 50}))
	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-expired", Deadline: 49}))

	require.NoError(t, obs.Poll(context.Background()))

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "sig-expired", calls[0].hash)
	assert.Equal(t, StatusExpired, calls[0].status)
	assert.Nil(t, calls[0].receipt)

	// The entry exactly at its deadline height is still pending.
	observed := obs.Observed()
	require.Len(t, observed, 1)
	assert.Equal(t, "sig-at-deadline", observed[0].Hash)
}

func TestObserver_StatusErrorKeepsEntryPending(t *testing.T) {
	provider := newFakeProvider(10)
	rec := &recorder{}
	obs := New(provider, rec.fn, testLogger())

	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-1", Deadline: 100}))
	provider.statusErr["sig-1"] = errors.New("rpc timeout")

	require.NoError(t, obs.Poll(context.Background()))
	assert.Empty(t, rec.snapshot())
	assert.Len(t, obs.Observed(), 1)

	// Once the node recovers the entry resolves normally.
	provider.mu.Lock()
	delete(provider.statusErr, "sig-1")
	provider.mu.Unlock()
	provider.finalize("sig-1", true)

	require.NoError(t, obs.Poll(context.Background()))
	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, StatusConfirmed, calls[0].status)
}

func TestObserver_HeightErrorAbortsCycle(t *testing.T) {
	provider := newFakeProvider(10)
	provider.heightErr = errors.New("node unavailable")
	rec := &recorder{}
	obs := New(provider, rec.fn, testLogger())

	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-1", Deadline: 5}))

	err := obs.Poll(context.Background())
	assert.Error(t, err)
	assert.Empty(t, rec.snapshot())
	assert.Len(t, obs.Observed(), 1)
}

func TestObserver_ConcurrentPollIsNoOp(t *testing.T) {
	provider := newFakeProvider(10)
	provider.block = make(chan struct{})
	provider.entered = make(chan struct{}, 1)
	rec := &recorder{}
	obs := New(provider, rec.fn, testLogger())

	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-1", Deadline: 100}))
	provider.finalize("sig-1", true)

	done := make(chan error, 1)
	go func() { done <- obs.Poll(context.Background()) }()
	<-provider.entered

	// Second poll returns immediately while the first is blocked in the
	// status query; it must not classify anything.
	require.NoError(t, obs.Poll(context.Background()))
	assert.Empty(t, rec.snapshot())

	close(provider.block)
	require.NoError(t, <-done)
	assert.Len(t, rec.snapshot(), 1)
}

func TestObserver_ObservedReturnsCopy(t *testing.T) {
	obs := New(newFakeProvider(1), nil, testLogger())
	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-1", Deadline: 100}))

	observed := obs.Observed()
	observed[0].Hash = "mutated"

	fresh := obs.Observed()
	require.Len(t, fresh, 1)
	assert.Equal(t, "sig-1", fresh[0].Hash)
}

func TestObserver_CloseDrainsInflightPoll(t *testing.T) {
	provider := newFakeProvider(10)
	provider.block = make(chan struct{})
	provider.entered = make(chan struct{}, 1)
	rec := &recorder{}
	obs := New(provider, rec.fn, testLogger())

	require.NoError(t, obs.Observe(ObservedTx{Hash: "sig-1", Deadline: 100}))
	provider.finalize("sig-1", true)

	done := make(chan error, 1)
	go func() { done <- obs.Poll(context.Background()) }()
	<-provider.entered

	closed := make(chan struct{})
	go func() {
		obs.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a poll was still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(provider.block)
	require.NoError(t, <-done)
	<-closed

	// The blocked poll still delivered its callback before Close returned.
	assert.Len(t, rec.snapshot(), 1)
}

func TestObserver_RunStopsOnContextCancel(t *testing.T) {
	obs := New(newFakeProvider(1), nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := obs.Run(ctx, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}
