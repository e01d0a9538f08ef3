// Package client is a small outbound HTTP client shared by the external
// capability adapters (telephony, LLM providers, payment providers). It
// injects a correlation ID and static credential header, then retries
// 429/502/503/504 responses with backoff.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxRetries bounds retry attempts for retryable statuses (429, 502, 503, 504).
const MaxRetries = 3

// Client wraps http.Client with correlation-ID injection, a static
// Authorization header, and capped exponential backoff on retryable errors.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	authHeader  string // full header value, e.g. "Bearer sk_live_..."
	providerTag string // used only for log/metric labeling
}

// New builds a Client. timeout bounds each individual attempt, not the
// overall retry budget.
func New(baseURL, providerTag, authHeader string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		authHeader:  authHeader,
		providerTag: providerTag,
	}
}

// Do executes req with retries; it clones the request body on every retry
// so the caller may pass requests built with an in-memory body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	correlationID := uuid.New().String()
	logger := log.Ctx(ctx).With().
		Str("provider", c.providerTag).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("correlationId", correlationID).
		Logger()

	return c.doWithRetry(ctx, req, &logger, correlationID, 0)
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request, logger *zerolog.Logger, correlationID string, attempt int) (*http.Response, error) {
	reqClone, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("clone request: %w", err)
	}
	reqClone.Header.Set("X-Correlation-ID", correlationID)
	if c.authHeader != "" {
		reqClone.Header.Set("Authorization", c.authHeader)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(reqClone)
	duration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Int("attempt", attempt).Msg("external call failed")
		return nil, err
	}

	logger.Debug().Int("status", resp.StatusCode).Dur("duration", duration).Int("attempt", attempt).Msg("external call completed")

	if !isRetryable(resp.StatusCode) || attempt >= MaxRetries {
		return resp, nil
	}

	wait := retryDelay(resp.Header.Get("Retry-After"), attempt)
	resp.Body.Close()

	logger.Warn().Dur("wait", wait).Int("attempt", attempt).Int("status", resp.StatusCode).Msg("retrying external call")

	select {
	case <-time.After(wait):
		return c.doWithRetry(ctx, req, logger, correlationID, attempt+1)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func isRetryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryDelay honors Retry-After when the provider sends one, else falls
// back to capped exponential backoff (cenkalti/backoff/v4's default curve).
func retryDelay(retryAfter string, attempt int) time.Duration {
	if d := parseRetryAfter(retryAfter); d > 0 {
		return d
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	reqClone, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		if k == "Authorization" || k == "X-Correlation-ID" {
			continue
		}
		reqClone.Header[k] = v
	}
	return reqClone, nil
}
