package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/lumenfi/dmm-swap-client/internal/ai"
	"github.com/lumenfi/dmm-swap-client/internal/cache"
	"github.com/lumenfi/dmm-swap-client/internal/dmm"
	"github.com/lumenfi/dmm-swap-client/internal/engine"
	"github.com/lumenfi/dmm-swap-client/internal/flags"
	"github.com/lumenfi/dmm-swap-client/internal/state"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine       *engine.Engine    // Quote, route and execution facade
	State        *state.Service    // Pool snapshot service
	Registry     *dmm.Registry     // Static token and pool metadata
	Cache        *cache.RedisCache // Redis-backed swap data cache
	Flags        *flags.Store      // Redis-backed feature flags store
	AI           *ai.Agent         // AI agent for natural language queries
	AIBaseConfig ai.AgentConfig    // Base configuration for AI agents
	DevMode      bool              // Enable detailed error responses in development
	Logger       *logrus.Logger    // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// errorEnvelope renders everything echo surfaces on its own, 404s and
// recovered panics included, in the same envelope the handlers use. Server
// faults are logged; client errors are the caller's problem.
func (h *Handlers) errorEnvelope(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
	}
	if code >= http.StatusInternalServerError && h.Logger != nil {
		h.Logger.WithError(err).WithField("path", c.Request().URL.Path).Error("request failed")
	}
	resp := ErrorResponse{Error: strings.ToLower(http.StatusText(code)), Code: code}
	if h.DevMode {
		resp.Details = err.Error()
	}
	_ = c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health reports service health plus the freshness of the pool snapshot
func (h *Handlers) Health(c echo.Context) error {
	resp := HealthResponse{OK: true}
	if h.State != nil {
		if snap := h.State.Current(); snap != nil {
			resp.Height = snap.Height
			resp.Pools = len(snap.Pools)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Echo returns the received JSON payload as-is (useful for testing)
func (h *Handlers) Echo(c echo.Context) error {
	var v any
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(&v); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	return c.JSON(http.StatusOK, v)
}

// RecentSwaps returns the most recent swap events with optional limit parameter
// Accepts limit query parameter (default: 100, range: 1-200)
func (h *Handlers) RecentSwaps(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Cache.RecentSwaps(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get swaps", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Pools lists the pools in the current snapshot with their reserves
func (h *Handlers) Pools(c echo.Context) error {
	snap := h.State.Current()
	if snap == nil {
		return h.err(c, http.StatusServiceUnavailable, "no pool snapshot available yet", nil)
	}

	items := make([]PoolResponse, 0, len(snap.Pools))
	for addr, p := range snap.Pools {
		items = append(items, PoolResponse{
			Address:  addr.String(),
			Token0:   p.Token0.String(),
			Token1:   p.Token1.String(),
			Reserve0: p.Reserve0.String(),
			Reserve1: p.Reserve1.String(),
			AmpBps:   p.AmpBps,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"height": snap.Height, "items": items})
}

// ObservedTxs lists the transactions the observer still tracks
func (h *Handlers) ObservedTxs(c echo.Context) error {
	obs := h.Engine.Observer()
	if obs == nil {
		return c.JSON(http.StatusOK, map[string]any{"items": []TxResponse{}})
	}

	observed := obs.Observed()
	items := make([]TxResponse, 0, len(observed))
	for _, tx := range observed {
		items = append(items, TxResponse{
			Signature: tx.Hash,
			Deadline:  tx.Deadline,
			Status:    "pending",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// ExecuteSwap submits a swap for the configured wallet
func (h *Handlers) ExecuteSwap(c echo.Context) error {
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	intent := &engine.SwapIntent{
		InputToken:  strings.TrimSpace(req.InputToken),
		OutputToken: strings.TrimSpace(req.OutputToken),
		Amount:      strings.TrimSpace(req.Amount),
		ExactOut:    req.ExactOut,
		SlippageBps: req.SlippageBps,
	}

	res, err := h.Engine.ExecuteSwap(ctx, intent)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "swap failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, SwapResponse{
		Signature: res.Signature,
		AmountIn:  res.Quote.AmountIn.String(),
		AmountOut: res.Quote.AmountOut.String(),
		Bound:     res.Quote.Bound.String(),
	})
}

// FlagsUpsert creates or updates a feature flag with the given key and value
// Validates key format and returns the created/updated flag
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates an existing feature flag with the given key
// Validates key format and returns the updated flag
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a feature flag by its key
// Returns 404 if flag doesn't exist
func (h *Handlers) FlagsGet(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all feature flags in the system
func (h *Handlers) FlagsList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a feature flag by its key
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// AIAsk processes natural language questions about swap data using AI
// Supports optional model override for one-off requests
// Returns SQL query and answer with execution time
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	// Use default AI agent or create temporary one with custom model
	agent := h.AI
	var tmp *ai.Agent
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AIBaseConfig
		cfg.Model = m
		a, err := ai.NewAgent(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create ai agent", nil)
		}
		tmp = a
		agent = a
		defer func() {
			_ = tmp.Close() // Clean up temporary agent
		}()
	}

	res, err := agent.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AIAskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}
