package server

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK     bool   `json:"ok"`
	Height uint64 `json:"height,omitempty"` // Height of the current pool snapshot
	Pools  int    `json:"pools,omitempty"`  // Number of pools in the snapshot
}

// PoolResponse describes one pool from the current snapshot
type PoolResponse struct {
	Address  string `json:"address"`
	Token0   string `json:"token0"`
	Token1   string `json:"token1"`
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
	AmpBps   uint64 `json:"amp_bps"`
}

// QuoteResponse is a priced single-pool trade
type QuoteResponse struct {
	Pool        string `json:"pool"`
	InputToken  string `json:"input_token"`
	OutputToken string `json:"output_token"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out"`
	FeeBps      uint64 `json:"fee_bps"`
	SlippageBps string `json:"slippage_bps"`
	Height      uint64 `json:"height"`
}

// HopResponse is one hop of a route
type HopResponse struct {
	Pool        string `json:"pool"`
	InputToken  string `json:"input_token"`
	OutputToken string `json:"output_token"`
}

// RouteResponse is the best route found for a pair
type RouteResponse struct {
	AmountIn  string        `json:"amount_in"`
	AmountOut string        `json:"amount_out"`
	Hops      []HopResponse `json:"hops"`
	Height    uint64        `json:"height"`
}

// TxResponse describes one observed transaction
type TxResponse struct {
	Signature string `json:"signature"`
	Deadline  uint64 `json:"deadline"`
	Status    string `json:"status"`
}

// SwapRequest submits a swap for execution
type SwapRequest struct {
	InputToken  string  `json:"input_token"`            // Registry symbol
	OutputToken string  `json:"output_token"`           // Registry symbol
	Amount      string  `json:"amount"`                 // Decimal amount, e.g. "1.5"
	ExactOut    bool    `json:"exact_out,omitempty"`    // Amount is the desired output
	SlippageBps *uint64 `json:"slippage_bps,omitempty"` // Tolerance override
}

// SwapResponse is the submission outcome of a swap
type SwapResponse struct {
	Signature string `json:"signature"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Bound     string `json:"bound"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // Flag key (must match regex pattern)
	Value bool   `json:"value"` // Flag value (true/false)
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"` // New flag value
}

// AIAskRequest represents a natural language query request
type AIAskRequest struct {
	Question string `json:"question"` // Natural language question about swap data
	Model    string `json:"model"`    // Optional AI model override
}

// AIAskResponse represents the response from an AI query
type AIAskResponse struct {
	SQL    string `json:"sql"`     // Generated SQL query
	Answer string `json:"answer"`  // Natural language answer
	TookMs int64  `json:"took_ms"` // Execution time in milliseconds
}
