// ============================================================================
// models/swap.go
// ============================================================================
package models

import "time"

// SwapEvent records one executed swap hop. Amounts are base-10 strings of the
// raw integer token units so nothing is lost crossing JSON or ClickHouse.
type SwapEvent struct {
	Signature string    `json:"signature"`
	Timestamp time.Time `json:"timestamp"`
	Pair      string    `json:"pair"`
	TokenIn   string    `json:"token_in"`
	TokenOut  string    `json:"token_out"`
	AmountIn  string    `json:"amount_in"`
	AmountOut string    `json:"amount_out"`
	FeeBps    uint64    `json:"fee_bps"`
	Pool      string    `json:"pool"`
	Status    string    `json:"status"`
}

// TxStatusEvent is published when an observed transaction reaches a terminal
// status.
type TxStatusEvent struct {
	Signature string    `json:"signature"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Errors    []string  `json:"errors,omitempty"`
}
