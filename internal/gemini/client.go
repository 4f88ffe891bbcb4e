// Package gemini implements the HTTP client for the generateContent API: the
// exact wire envelope, a deadline-bounded single-shot executor and a
// linear-backoff retry policy around it.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"story-client/internal/models"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second

	// Upstream bodies are small; the cap only guards against a runaway
	// response tying up the deadline budget.
	maxResponseBytes = 4 << 20
)

// Config holds the client settings.
type Config struct {
	// EndpointURL is the full generateContent URL including the
	// query-string credential.
	EndpointURL string
	// ModelName is used for logging and metric labels only.
	ModelName  string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// Client calls the generateContent endpoint. Each Generate invocation makes
// up to MaxRetries bounded attempts; each attempt is one outbound call with a
// hard wall-clock deadline after which the in-flight request is cancelled.
type Client struct {
	endpointURL string
	modelName   string
	timeout     time.Duration
	maxRetries  int
	baseDelay   time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Gemini client. Zero config values fall back to the
// contract defaults (10s deadline, 3 attempts, 1s base delay).
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	return &Client{
		endpointURL: cfg.EndpointURL,
		modelName:   cfg.ModelName,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		baseDelay:   cfg.BaseDelay,
		httpClient:  &http.Client{},
		logger:      logger.Named("GeminiClient"),
		sleep:       sleepContext,
	}
}

// Generate sends the prompt through the retry policy and decodes the
// response envelope. Executor failures are retried with linear backoff
// (baseDelay×attempt between attempts); the final attempt's error is
// surfaced unchanged so the caller can distinguish its kind. Envelope decode
// failures are never retried.
func (c *Client) Generate(ctx context.Context, prompt string) (*GenerateContentResponse, error) {
	promptTokens.WithLabelValues(c.modelName).Observe(float64(approximateTokens(prompt)))

	body, err := c.executeWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var resp GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("Failed to decode generateContent response", zap.Error(err))
		return nil, models.NewInvalidResponseError("invalid API response format")
	}
	return &resp, nil
}

// executeWithRetry repeats the bounded call up to maxRetries times. Retries
// are unconditional on any executor failure, including statuses a later
// attempt cannot fix.
func (c *Client) executeWithRetry(ctx context.Context, prompt string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, err := c.execute(ctx, prompt)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}
		c.logger.Warn("Gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxRetries),
			zap.Error(err),
		)
		requestRetries.WithLabelValues(c.modelName).Inc()
		if sleepErr := c.sleep(ctx, c.baseDelay*time.Duration(attempt)); sleepErr != nil {
			// The caller's context died during backoff; the last
			// attempt error is still the meaningful one.
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// execute performs exactly one outbound call bounded by the wall-clock
// deadline and returns the raw response body. On deadline expiry the
// in-flight request is actively cancelled and the failure is classified as a
// timeout; a non-2xx status or any transport fault is a network failure.
func (c *Client) execute(ctx context.Context, prompt string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(NewGenerateContentRequest(prompt))
	if err != nil {
		return nil, models.NewUnknownError(fmt.Errorf("failed to marshal request body: %w", err))
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpointURL, bytes.NewReader(payload))
	if err != nil {
		return nil, models.NewUnknownError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	requestDuration.WithLabelValues(c.modelName).Observe(duration.Seconds())

	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("Gemini request timed out", zap.Duration("after", duration))
			requestsTotal.WithLabelValues(c.modelName, "timeout").Inc()
			return nil, models.NewTimeoutError(err)
		}
		requestsTotal.WithLabelValues(c.modelName, "network_error").Inc()
		return nil, models.NewNetworkError("failed to reach the generation API", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		c.logger.Warn("Gemini returned non-2xx status", zap.Int("status_code", resp.StatusCode))
		requestsTotal.WithLabelValues(c.modelName, "http_error").Inc()
		return nil, models.NewNetworkError(
			fmt.Sprintf("generation API returned status %d", resp.StatusCode),
			resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			requestsTotal.WithLabelValues(c.modelName, "timeout").Inc()
			return nil, models.NewTimeoutError(err)
		}
		requestsTotal.WithLabelValues(c.modelName, "network_error").Inc()
		return nil, models.NewNetworkError("failed to read response body", 0, err)
	}

	requestsTotal.WithLabelValues(c.modelName, "success").Inc()
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
