package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lumenfi/dmm-swap-client/internal/observer"
)

// StatusProvider adapts the RPC client to the chain queries the transaction
// observer needs.
type StatusProvider struct {
	client *Client
}

// NewStatusProvider wraps an RPC client.
func NewStatusProvider(client *Client) *StatusProvider {
	return &StatusProvider{client: client}
}

// CurrentHeight returns the latest finalized slot.
func (p *StatusProvider) CurrentHeight(ctx context.Context) (uint64, error) {
	return p.client.GetSlot(ctx)
}

// TransactionStatus reports whether a signature has been finalized. A
// signature the node has not seen yet is still pending; the observer expires
// it once its deadline passes.
func (p *StatusProvider) TransactionStatus(ctx context.Context, hash string) (observer.TxStatus, error) {
	resp, err := p.client.GetSignatureStatuses(ctx, []string{hash})
	if err != nil {
		return observer.TxPending, fmt.Errorf("failed to fetch signature status: %w", err)
	}

	if len(resp.Result.Value) == 0 || resp.Result.Value[0] == nil {
		return observer.TxPending, nil
	}

	if resp.Result.Value[0].ConfirmationStatus == "finalized" {
		return observer.TxFinalized, nil
	}
	return observer.TxPending, nil
}

// Receipt fetches the execution outcome of a finalized transaction.
func (p *StatusProvider) Receipt(ctx context.Context, hash string) (*observer.Receipt, error) {
	resp, err := p.client.GetTransaction(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	if resp.Result == nil || resp.Result.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no metadata", hash)
	}

	meta := resp.Result.Meta
	receipt := &observer.Receipt{
		Success:    meta.Err == nil,
		Exceptions: meta.LogMessages,
	}
	if meta.Err != nil {
		raw, err := json.Marshal(meta.Err)
		if err != nil {
			receipt.Errors = []string{fmt.Sprintf("%v", meta.Err)}
		} else {
			receipt.Errors = []string{string(raw)}
		}
	}
	return receipt, nil
}
