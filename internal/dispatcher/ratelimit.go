package dispatcher

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// tenantCounter is a sliding 24h time-ordered set of send timestamps for one
// tenant, shaped like a per-key token bucket map:
// same mutex-guarded map-of-per-key-state idiom, here tracking exact send
// instants within a rolling window instead of a refillable token count,
// since this needs an exact daily quota rather than smooth throughput.
type tenantCounter struct {
	mu           sync.Mutex
	sends        []time.Time
	warnedOnDate string // date (YYYY-MM-DD in the location of the `now` passed in) of the last 80%-utilization warning
}

// RateLimiter tracks each tenant's rolling 24h send count against its
// subscription tier's daily quota.
type RateLimiter struct {
	mu       sync.Mutex
	counters map[uuid.UUID]*tenantCounter
}

// NewRateLimiter builds an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{counters: make(map[uuid.UUID]*tenantCounter)}
}

func (r *RateLimiter) counter(tenantID uuid.UUID) *tenantCounter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[tenantID]
	if !ok {
		c = &tenantCounter{}
		r.counters[tenantID] = c
	}
	return c
}

// checkResult reports the outcome of a quota check.
type checkResult struct {
	allowed        bool
	warnThreshold  bool // crossed 80% utilization and hasn't been warned today
	usedOfQuota    int
	quota          int
}

// check evaluates (without recording a send) whether a send at `now` would
// fit the tenant's daily quota, pruning entries older than 24h first. When
// it reports warnThreshold it also marks the warning as emitted for the
// day, so the warning fires once even if this send is never recorded.
func (r *RateLimiter) check(tenantID uuid.UUID, quota int, now time.Time) checkResult {
	c := r.counter(tenantID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sends = prune(c.sends, now)
	used := len(c.sends)

	res := checkResult{usedOfQuota: used, quota: quota, allowed: used < quota}

	dateKey := now.Format("2006-01-02")
	if quota > 0 && float64(used) >= 0.8*float64(quota) && c.warnedOnDate != dateKey {
		res.warnThreshold = true
		c.warnedOnDate = dateKey
	}
	return res
}

// record appends a successful send's timestamp, marking the 80% warning as
// emitted for the day if this call crossed it.
func (r *RateLimiter) record(tenantID uuid.UUID, now time.Time, warned bool) {
	c := r.counter(tenantID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, now)
	if warned {
		c.warnedOnDate = now.Format("2006-01-02")
	}
}

func prune(sends []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-24 * time.Hour)
	out := sends[:0]
	for _, t := range sends {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
