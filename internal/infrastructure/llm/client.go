// Package llm implements the Parameter Extractor's LLM port (C2): a
// stateless HTTP call to an LLM proxy bound to the strict JSON contract
// in spec §4.2, guarded by a circuit breaker (spec SUPPLEMENTED FEATURES
// #1).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/weldcfg/configurator/internal/core"
)

const systemPrompt = `You are the parameter extractor for a welding equipment configurator.
Read the user's message and the current conversation state, then emit a
single JSON object with fields: updates, needs_clarification,
clarification_question, direct_product_mentions, confidence, reasoning.
Only include component kinds the message actually mentions in "updates".
Every attribute value must be in canonical form. Never invent a product
identifier; only record the raw name the user typed in
direct_product_mentions.`

// Config holds configuration for the LLM client.
type Config struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	RetryBackoff float64       `mapstructure:"retry_backoff"`
}

// DefaultConfig returns default LLM client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://llm-proxy.internal",
		Model:        "gpt-4o",
		Timeout:      10 * time.Second,
		MaxRetries:   2,
		RetryDelay:   500 * time.Millisecond,
		RetryBackoff: 2.0,
	}
}

// Client implements core.Extractor over HTTP, with retry and an optional
// circuit breaker around the call (SUPPLEMENTED FEATURES #1).
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *CircuitBreaker
}

// NewClient builds a Client. breaker may be nil to disable circuit
// breaking.
func NewClient(config Config, logger *slog.Logger, breaker *CircuitBreaker) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
		breaker:    breaker,
	}
}

// Extract implements core.Extractor (spec §4.2).
func (c *Client) Extract(ctx context.Context, req core.ExtractionRequest) (core.ExtractionResult, error) {
	var result core.ExtractionResult
	var extractErr error

	call := func(ctx context.Context) error {
		result, extractErr = c.extractOnce(ctx, req)
		return extractErr
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, c.withRetry(call))
	} else {
		err = c.withRetry(call)(ctx)
	}
	if err != nil {
		return core.ExtractionResult{}, &core.ExtractionError{Reason: "llm call failed", Err: err}
	}
	return result, nil
}

func (c *Client) withRetry(call func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		delay := c.config.RetryDelay
		var lastErr error
		for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
				delay = time.Duration(float64(delay) * c.config.RetryBackoff)
			}
			err := call(ctx)
			if err == nil {
				return nil
			}
			lastErr = err
			c.logger.Warn("extraction attempt failed",
				"attempt", attempt+1,
				"error", err,
				"classification", ClassifyError(err),
			)
			if !IsRetryableError(err) {
				return err
			}
		}
		return lastErr
	}
}

func (c *Client) extractOnce(ctx context.Context, req core.ExtractionRequest) (core.ExtractionResult, error) {
	wire := wireRequest{
		Model:       c.config.Model,
		Temperature: 0,
		System:      systemPrompt,
		User:        buildUserPrompt(req),
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return core.ExtractionResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return core.ExtractionResult{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.ExtractionResult{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ExtractionResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.ExtractionResult{}, &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var wr wireResponse
	if err := json.Unmarshal(respBody, &wr); err != nil {
		return core.ExtractionResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return wr.toExtractionResult()
}

// buildUserPrompt templates the Master snapshot, current message, and
// recent log into the user prompt (spec §4.2/§6).
func buildUserPrompt(req core.ExtractionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "current_state: %s\n", req.CurrentState)
	fmt.Fprintf(&b, "message: %s\n", req.UserMessage)
	b.WriteString("master_snapshot:\n")
	for _, kind := range core.AllComponentKinds {
		bag := req.MasterSnapshot.Get(kind)
		if bag.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "  %s: %v", kind, bag.Attributes)
		if bag.DirectProductMention != "" {
			fmt.Fprintf(&b, " mention=%q", bag.DirectProductMention)
		}
		b.WriteString("\n")
	}
	if len(req.RecentLog) > 0 {
		b.WriteString("recent_log:\n")
		for _, entry := range req.RecentLog {
			fmt.Fprintf(&b, "  %s: %s\n", entry.Role, entry.Text)
		}
	}
	return b.String()
}

// Health checks whether the LLM proxy is reachable.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm proxy unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

var _ core.Extractor = (*Client)(nil)
