package dispatcher

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUnderQuota(t *testing.T) {
	r := NewRateLimiter()
	tenantID := uuid.New()
	now := time.Now()

	res := r.check(tenantID, 10, now)
	require.True(t, res.allowed, "expected a fresh tenant with zero sends to be allowed")
}

func TestRateLimiterWarnsAt80Percent(t *testing.T) {
	r := NewRateLimiter()
	tenantID := uuid.New()
	now := time.Now()

	for i := 0; i < 8; i++ {
		r.record(tenantID, now.Add(time.Duration(i)*time.Minute), false)
	}

	res := r.check(tenantID, 10, now.Add(9*time.Minute))
	require.True(t, res.warnThreshold, "expected 8/10 sends to cross the 80%% warning threshold")
}

func TestRateLimiterWarnsOnlyOncePerDay(t *testing.T) {
	r := NewRateLimiter()
	tenantID := uuid.New()
	now := time.Now()

	for i := 0; i < 8; i++ {
		r.record(tenantID, now, false)
	}
	first := r.check(tenantID, 10, now)
	require.True(t, first.warnThreshold, "expected first crossing to warn")
	r.record(tenantID, now, true)

	second := r.check(tenantID, 10, now.Add(time.Minute))
	require.False(t, second.warnThreshold, "expected no repeat warning within the same day")
}

func TestRateLimiterPrunesEntriesOlderThan24h(t *testing.T) {
	r := NewRateLimiter()
	tenantID := uuid.New()
	now := time.Now()

	r.record(tenantID, now.Add(-25*time.Hour), false)
	res := r.check(tenantID, 1, now)
	require.True(t, res.allowed)
	require.Equal(t, 0, res.usedOfQuota, "expected the stale entry to be pruned")
}

func TestRateLimiterBlocksAtQuota(t *testing.T) {
	r := NewRateLimiter()
	tenantID := uuid.New()
	now := time.Now()

	for i := 0; i < 3; i++ {
		r.record(tenantID, now, false)
	}
	res := r.check(tenantID, 3, now)
	require.False(t, res.allowed, "expected the tenant to be blocked once sends equal the quota")
}
