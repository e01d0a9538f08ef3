// Package llmrouter selects an LLM provider/model per turn and fails over
// down an ordered candidate chain on transient or persistent failure,
// tracking per-provider health with a circuit breaker.
package llmrouter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/tulia-commerce/convoapi/internal/metrics"
)

// ErrChainExhausted is returned when every candidate in the fallback
// chain failed or was skipped (breaker open); the orchestrator must treat
// this as a handoff trigger, never fabricate a response.
var ErrChainExhausted = errors.New("llmrouter: all candidates exhausted")

// CompletionRequest is one turn's LLM call input.
type CompletionRequest struct {
	SystemPrompt         string
	UserContent          string
	ComplexityScore      float64 // estimated from context size; Router.Complete does not read it
}

// CompletionResponse is a provider's answer for one turn.
type CompletionResponse struct {
	Text       string
	Confidence float64
	TokensUsed int
}

// RetryableError wraps a provider failure with whether the router should
// retry it (rate limit, transient server error) versus fail over
// immediately (authentication error, invalid request).
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Provider is the uniform call contract every backend implements, so
// providers stay pluggable behind one interface.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Config tunes the breaker and retry policy.
type Config struct {
	BreakerFailureRateThreshold float64
	BreakerWindow               time.Duration
	BreakerCooldown             time.Duration
}

// Router walks an ordered fallback chain, skipping providers whose
// breaker is open and retrying transient failures with capped
// exponential backoff before advancing.
type Router struct {
	chain    []Provider
	breakers map[string]*breaker
	cfg      Config
	log      zerolog.Logger
}

// New builds a Router over an ordered candidate chain (e.g.
// [preferred, preferred_small, alt_provider_large, alt_provider_small]).
func New(chain []Provider, cfg Config, log zerolog.Logger) *Router {
	breakers := make(map[string]*breaker, len(chain))
	for _, p := range chain {
		breakers[p.Name()] = newBreaker(cfg.BreakerFailureRateThreshold, cfg.BreakerWindow, cfg.BreakerCooldown)
	}
	return &Router{chain: chain, breakers: breakers, cfg: cfg, log: log}
}

// Complete walks the chain in order, returning the first successful
// response along with the name of the provider that produced it.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, string, error) {
	now := time.Now()

	for i, p := range r.chain {
		b := r.breakers[p.Name()]
		metrics.LLMBreakerOpen.WithLabelValues(p.Name()).Set(boolToFloat(b.IsOpen(now)))

		if !b.Allow(now) {
			r.log.Debug().Str("provider", p.Name()).Msg("skipping provider: breaker open")
			continue
		}

		resp, err := r.invokeWithRetry(ctx, p, req)
		outcome := now
		if err == nil {
			b.Record(outcome, true)
			metrics.LLMProviderCallsTotal.WithLabelValues(p.Name(), "success").Inc()
			return resp, p.Name(), nil
		}

		b.Record(outcome, false)
		metrics.LLMProviderCallsTotal.WithLabelValues(p.Name(), "failure").Inc()
		r.log.Warn().Err(err).Str("provider", p.Name()).Msg("llm provider call failed")

		if i < len(r.chain)-1 {
			metrics.LLMFailoverTotal.Inc()
		}
	}

	metrics.LLMExhaustedTotal.Inc()
	return CompletionResponse{}, "", ErrChainExhausted
}

// invokeWithRetry retries transient failures up to 3 attempts total with
// exponential backoff (1s, 2s, 4s capped).
func (r *Router) invokeWithRetry(ctx context.Context, p Provider, req CompletionRequest) (CompletionResponse, error) {
	var resp CompletionResponse

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 1 * time.Second
	policy.MaxInterval = 4 * time.Second
	policy.Multiplier = 2
	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, 2), ctx)

	operation := func() error {
		var err error
		resp, err = p.Complete(ctx, req)
		if err == nil {
			return nil
		}
		var re *RetryableError
		if errors.As(err, &re) && !re.Retryable {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, bounded); err != nil {
		return CompletionResponse{}, err
	}
	return resp, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
