package llmrouter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	calls   int
	fail    func(attempt int) error
	succeed CompletionResponse
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
	f.calls++
	if f.fail != nil {
		if err := f.fail(f.calls); err != nil {
			return CompletionResponse{}, err
		}
	}
	return f.succeed, nil
}

func testConfig() Config {
	return Config{BreakerFailureRateThreshold: 0.5, BreakerWindow: time.Minute, BreakerCooldown: 10 * time.Second}
}

func TestRouterReturnsFirstSuccess(t *testing.T) {
	p1 := &fakeProvider{name: "primary", succeed: CompletionResponse{Text: "hi"}}
	r := New([]Provider{p1}, testConfig(), zerolog.Nop())

	resp, name, err := r.Complete(context.Background(), CompletionRequest{UserContent: "hello"})
	require.NoError(t, err)
	require.Equal(t, "primary", name)
	require.Equal(t, "hi", resp.Text)
}

func TestRouterFailsOverOnNonRetryableFailure(t *testing.T) {
	p1 := &fakeProvider{name: "primary", fail: func(int) error {
		return &RetryableError{Err: errors.New("auth failed"), Retryable: false}
	}}
	p2 := &fakeProvider{name: "fallback", succeed: CompletionResponse{Text: "fallback response"}}

	r := New([]Provider{p1, p2}, testConfig(), zerolog.Nop())
	resp, name, err := r.Complete(context.Background(), CompletionRequest{UserContent: "hello"})
	require.NoError(t, err)
	require.Equal(t, "fallback", name)
	require.Equal(t, "fallback response", resp.Text)
	require.Equal(t, 1, p1.calls, "expected exactly one non-retried call to the failing provider")
}

func TestRouterRetriesTransientFailureBeforeFailover(t *testing.T) {
	p1 := &fakeProvider{name: "primary", fail: func(attempt int) error {
		if attempt < 2 {
			return &RetryableError{Err: errors.New("rate limited"), Retryable: true}
		}
		return nil
	}, succeed: CompletionResponse{Text: "recovered"}}

	r := New([]Provider{p1}, testConfig(), zerolog.Nop())
	resp, name, err := r.Complete(context.Background(), CompletionRequest{UserContent: "hello"})
	require.NoError(t, err)
	require.Equal(t, "primary", name)
	require.Equal(t, "recovered", resp.Text)
	require.Equal(t, 2, p1.calls, "expected one retry (2 calls total)")
}

func TestRouterExhaustsChain(t *testing.T) {
	failing := func(int) error { return &RetryableError{Err: errors.New("down"), Retryable: false} }
	p1 := &fakeProvider{name: "a", fail: failing}
	p2 := &fakeProvider{name: "b", fail: failing}

	r := New([]Provider{p1, p2}, testConfig(), zerolog.Nop())
	_, _, err := r.Complete(context.Background(), CompletionRequest{UserContent: "hello"})
	require.ErrorIs(t, err, ErrChainExhausted)
}
