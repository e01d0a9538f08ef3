// Package metrics provides Prometheus instrumentation for the platform,
// following the convention of one promauto-registered
// var block per subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convoapi_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "convoapi_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// LLM router metrics.
var (
	LLMProviderCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convoapi_llm_provider_calls_total",
		Help: "Total number of LLM provider calls, by provider and outcome.",
	}, []string{"provider", "outcome"})

	LLMBreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "convoapi_llm_breaker_open",
		Help: "1 if the provider's circuit breaker is open, else 0.",
	}, []string{"provider"})

	LLMFailoverTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoapi_llm_failover_total",
		Help: "Total number of times the router advanced to the next fallback candidate.",
	})

	LLMExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoapi_llm_chain_exhausted_total",
		Help: "Total number of turns where every fallback candidate failed.",
	})
)

// Checkout funnel metrics.
var (
	CheckoutTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convoapi_checkout_transitions_total",
		Help: "Total number of checkout state machine transitions.",
	}, []string{"from", "to"})

	CheckoutOutboundBudgetExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoapi_checkout_outbound_budget_exceeded_total",
		Help: "Total number of checkouts that hit the 3-message outbound budget.",
	})
)

// Dispatcher metrics.
var (
	DispatchOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convoapi_dispatch_outcomes_total",
		Help: "Total number of dispatch attempts, by outcome.",
	}, []string{"outcome"})

	RateLimitWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoapi_rate_limit_warnings_total",
		Help: "Total number of 80%-utilization rate-limit warnings emitted.",
	})
)

// Scheduler metrics.
var (
	ScheduledDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convoapi_scheduled_dispatch_total",
		Help: "Total number of due scheduled-message dispatch attempts, by outcome.",
	}, []string{"outcome"})

	ReEngagementSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoapi_reengagement_sent_total",
		Help: "Total number of re-engagement messages scheduled by the daily dormancy sweep.",
	})

	ConversationsMarkedDormantTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoapi_conversations_marked_dormant_total",
		Help: "Total number of conversations transitioned to dormant by the daily sweep.",
	})

	OutboxDrainedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convoapi_outbox_drained_total",
		Help: "Total number of outbox entries drained, by outcome.",
	}, []string{"outcome"})
)

// Agent orchestrator metrics.
var (
	AgentTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convoapi_agent_turns_total",
		Help: "Total number of agent turns processed, by handler decision.",
	}, []string{"handler"})

	AgentHandoffTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convoapi_agent_handoff_total",
		Help: "Total number of turns that triggered a handoff, by reason.",
	}, []string{"reason"})

	AgentTurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "convoapi_agent_turn_duration_seconds",
		Help:    "Wall-clock duration of one agent turn, from lock acquisition to dispatch.",
		Buckets: prometheus.DefBuckets,
	})

	AgentTokensUsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoapi_agent_tokens_used_total",
		Help: "Total number of LLM tokens consumed across all agent turns.",
	})
)
