package llmrouter

import (
	"sync"
	"time"
)

// breakerOutcome is one recorded call result within the sliding window.
type breakerOutcome struct {
	at      time.Time
	success bool
}

// breaker tracks one provider's recent failure rate over a trailing
// window and opens (refuses calls) once the rate crosses a threshold,
// using a mutex+TTL-guarded-map idiom applied
// here to per-provider health instead of JWKS keys.
type breaker struct {
	mu       sync.Mutex
	outcomes []breakerOutcome

	failureRateThreshold float64
	window                time.Duration
	cooldown              time.Duration
	minSamples            int

	openSince *time.Time
	probing   bool
}

func newBreaker(failureRateThreshold float64, window, cooldown time.Duration) *breaker {
	return &breaker{
		failureRateThreshold: failureRateThreshold,
		window:                window,
		cooldown:              cooldown,
		minSamples:            5,
	}
}

// Allow reports whether a call may proceed. An open breaker refuses calls
// until the cooldown elapses, at which point exactly one probing call is
// let through to decide re-closure.
func (b *breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openSince == nil {
		return true
	}
	if now.Before(b.openSince.Add(b.cooldown)) {
		return false
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

// Record stores a call outcome and re-evaluates open/closed state.
func (b *breaker) Record(now time.Time, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbing := b.probing
	b.probing = false

	if wasProbing {
		if success {
			b.openSince = nil
			b.outcomes = nil
			return
		}
		reopen := now
		b.openSince = &reopen
		return
	}

	b.outcomes = append(b.outcomes, breakerOutcome{at: now, success: success})
	b.prune(now)

	if len(b.outcomes) < b.minSamples {
		return
	}

	failures := 0
	for _, o := range b.outcomes {
		if !o.success {
			failures++
		}
	}
	rate := float64(failures) / float64(len(b.outcomes))

	if rate >= b.failureRateThreshold {
		if b.openSince == nil {
			opened := now
			b.openSince = &opened
		}
	}
}

// IsOpen reports current open state without mutating anything, for
// metrics export.
func (b *breaker) IsOpen(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openSince != nil && now.Before(b.openSince.Add(b.cooldown))
}

func (b *breaker) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.outcomes[:0]
	for _, o := range b.outcomes {
		if o.at.After(cutoff) {
			kept = append(kept, o)
		}
	}
	b.outcomes = kept
}
