package llmrouter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	b := newBreaker(0.5, time.Minute, 10*time.Second)
	now := time.Now()

	for i := 0; i < 3; i++ {
		b.Record(now, true)
	}
	for i := 0; i < 3; i++ {
		b.Record(now, false)
	}

	require.True(t, b.IsOpen(now), "expected breaker to open at 50% failure rate over minimum samples")
	require.False(t, b.Allow(now), "expected breaker to refuse calls while open and within cooldown")
}

func TestBreakerAllowsProbeAfterCooldown(t *testing.T) {
	b := newBreaker(0.5, time.Minute, 1*time.Second)
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.Record(now, false)
	}
	require.True(t, b.IsOpen(now), "expected breaker open")

	later := now.Add(2 * time.Second)
	require.True(t, b.Allow(later), "expected one probe call to be allowed after cooldown")
	require.False(t, b.Allow(later), "expected only one probe in flight at a time")

	b.Record(later, true)
	require.False(t, b.IsOpen(later), "expected breaker to re-close after a successful probe")
}

func TestBreakerStaysOpenOnFailedProbe(t *testing.T) {
	b := newBreaker(0.5, time.Minute, 1*time.Second)
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.Record(now, false)
	}

	later := now.Add(2 * time.Second)
	b.Allow(later)
	b.Record(later, false)

	require.True(t, b.IsOpen(later), "expected breaker to remain open after a failed probe")
}
