// Package ai answers natural-language questions about swap history by
// generating guarded ClickHouse SQL with an LLM and summarising the rows.
package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxResultRows caps how many rows a generated query may feed back into the
// summarisation prompt.
const maxResultRows = 500

// AgentConfig holds configuration for the AI agent.
type AgentConfig struct {
	// ClickHouse connection settings.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// OpenRouter / LLM settings.
	OpenRouterAPIKey string
	// Model name as understood by OpenRouter, e.g. "openai/gpt-4.1-mini".
	Model string

	Logger *logrus.Logger
}

// Agent turns questions into SELECTs over the lumen.swaps hop table.
type Agent struct {
	llm    llms.Model
	db     *sql.DB
	logger *logrus.Logger
}

// NewAgent creates a new Agent with its own ClickHouse and LLM clients.
func NewAgent(ctx context.Context, cfg AgentConfig) (*Agent, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4.1-mini"
	}

	llm, err := openai.New(
		openai.WithToken(cfg.OpenRouterAPIKey),
		openai.WithBaseURL("https://openrouter.ai/api/v1"),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenRouter LLM: %w", err)
	}

	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		},
	})
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse from AI agent: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.ClickHouseAddr,
		"database": cfg.ClickHouseDatabase,
		"model":    cfg.Model,
	}).Info("initialized AI agent")

	return &Agent{llm: llm, db: db, logger: cfg.Logger}, nil
}

// Close closes underlying resources.
func (a *Agent) Close() error {
	if a.db != nil {
		a.logger.Debug("closing AI agent ClickHouse connection")
		return a.db.Close()
	}
	return nil
}

// AskResult is the structured result of an Ask call.
type AskResult struct {
	SQL    string
	Answer string
}

// Ask takes a natural language question, generates SQL, executes it, and
// summarises the result.
func (a *Agent) Ask(ctx context.Context, question string) (*AskResult, error) {
	sqlQuery, err := a.generateSQL(ctx, question)
	if err != nil {
		return nil, err
	}

	rowsJSON, err := a.runQuery(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}

	answer, err := a.summariseResult(ctx, question, sqlQuery, rowsJSON)
	if err != nil {
		return nil, err
	}

	return &AskResult{SQL: sqlQuery, Answer: answer}, nil
}

// generateSQL asks the LLM for a query, then forces it through the guard.
func (a *Agent) generateSQL(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`You write ClickHouse SQL for the Lumen DMM swap history.

%s

Constraints:
- Emit exactly one SELECT statement over lumen.swaps and nothing else, no prose.
- amount_in and amount_out are raw-unit decimal strings; wrap them in toUInt256() before arithmetic.
- One signature covers every hop of a multi-hop route; use countDistinct(signature) to count swaps rather than rows.
- fee_bps is the dynamic fee actually charged for the hop, in basis points.
- Filter time with the timestamp column; "top"/"largest" questions get ORDER BY ... DESC with a LIMIT.
- Read-only: never write, create or alter anything.

Question: %s`, swapsSchemaDescription, question)

	resp, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, llms.WithMaxTokens(512))
	if err != nil {
		return "", fmt.Errorf("LLM SQL generation failed: %w", err)
	}

	sqlQuery := extractSQL(resp)
	if err := guardSQL(sqlQuery); err != nil {
		return "", err
	}

	a.logger.WithField("sql", sqlQuery).Debug("generated SQL from question")
	return sqlQuery, nil
}

// runQuery executes the generated SQL and encodes the rows as a JSON array.
// Byte-slice cells are mapped to strings so amounts stay readable instead of
// base64-encoding in the JSON.
func (a *Agent) runQuery(ctx context.Context, sqlQuery string) (string, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return "", fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to get columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		if len(out) >= maxResultRows {
			a.logger.WithField("limit", maxResultRows).Warn("truncating oversized query result")
			break
		}

		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rowMap[col] = string(b)
				continue
			}
			rowMap[col] = values[i]
		}
		out = append(out, rowMap)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("row iteration error: %w", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rows to JSON: %w", err)
	}
	return string(data), nil
}

// summariseResult asks the LLM to answer the question given SQL + JSON rows.
func (a *Agent) summariseResult(ctx context.Context, question, sqlQuery, rowsJSON string) (string, error) {
	prompt := fmt.Sprintf(`You analyse trading activity on Lumen DMM, an on-chain market maker with dynamic fees.

Question: %s

Executed SQL:
%s

Rows (JSON array, possibly empty):
%s

Answer the question from the rows alone. An empty array means no matching
swaps; say so. Keep it short, quote the key figures, remember amounts are in
raw token units and fee_bps is in basis points. Do not echo the JSON.`, question, sqlQuery, rowsJSON)

	resp, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, llms.WithMaxTokens(512))
	if err != nil {
		return "", fmt.Errorf("LLM summarisation failed: %w", err)
	}
	return strings.TrimSpace(resp), nil
}

// extractSQL pulls the statement out of an LLM reply: fenced block if there
// is one, the first statement if the model chained several.
func extractSQL(s string) string {
	s = strings.TrimSpace(s)

	if _, fenced, ok := strings.Cut(s, "```"); ok {
		s = fenced
		if rest, _, ok := strings.Cut(s, "```"); ok {
			s = rest
		}
		s = strings.TrimSpace(s)
		if len(s) >= 3 && strings.EqualFold(s[:3], "sql") {
			s = s[3:]
		}
	}

	s = strings.TrimSpace(s)
	if first, _, ok := strings.Cut(s, ";"); ok {
		s = first
	}
	return strings.TrimSpace(s)
}

// guardSQL rejects anything but a single read over the swaps table. The LLM
// output is untrusted input; the allow-list is deliberately narrow.
func guardSQL(s string) error {
	if s == "" {
		return fmt.Errorf("empty SQL generated by LLM")
	}
	if strings.Contains(s, ";") {
		return fmt.Errorf("generated SQL must be a single statement")
	}

	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("generated SQL must be a SELECT, got %q", firstWord(s))
	}

	for _, kw := range []string{
		"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE",
		"CREATE", "RENAME", "ATTACH", "DETACH", "GRANT", "OPTIMIZE",
	} {
		for _, word := range strings.Fields(upper) {
			if word == kw {
				return fmt.Errorf("disallowed SQL keyword %q in generated query", kw)
			}
		}
	}

	if !strings.Contains(upper, "FROM SWAPS") && !strings.Contains(upper, "FROM LUMEN.SWAPS") {
		return fmt.Errorf("query must read from lumen.swaps")
	}
	return nil
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return s
}
