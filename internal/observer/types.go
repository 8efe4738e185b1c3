package observer

import "context"

// Status is the lifecycle state of an observed transaction. Every status but
// StatusPending is terminal.
type Status int

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusRejected
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusRejected:
		return "rejected"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ObservedTx is one submitted-but-unconfirmed transaction. Deadline is the
// chain height after which the transaction counts as expired.
type ObservedTx struct {
	Hash     string
	Deadline uint64
}

// Receipt is the execution outcome of a finalized transaction.
type Receipt struct {
	Success    bool
	Errors     []string
	Exceptions []string
}

// TxStatus is the chain's view of a transaction.
type TxStatus int

const (
	// TxPending covers both "seen but not finalized" and "not found": a
	// hash the node has not indexed yet is still pending, never an error.
	TxPending TxStatus = iota
	TxFinalized
)

// ChainStatusProvider is the chain-side collaborator the observer polls.
// Implementations bound each call with their own timeouts.
type ChainStatusProvider interface {
	TransactionStatus(ctx context.Context, hash string) (TxStatus, error)
	Receipt(ctx context.Context, hash string) (*Receipt, error)
	CurrentHeight(ctx context.Context) (uint64, error)
}

// UpdateFunc receives exactly one call per observed transaction, on its
// terminal transition. The receipt is nil for expirations.
type UpdateFunc func(tx ObservedTx, status Status, receipt *Receipt)
