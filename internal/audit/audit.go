// Package audit provides the non-blocking audit-log writer this
// requires: "writing an audit entry never blocks or fails the primary
// operation." Writes go onto a buffered channel and are drained by one
// background goroutine, following the retry-goroutine shape used in
// internal/mcpserver/server/jwt.go (a buffered stop/done channel pair
// guarding a background loop), generalized from a retry loop to a drain
// loop.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/store"
)

// QueueDepth is the buffered channel capacity. A burst beyond this drops
// each new entry that finds the queue full (entries already queued are
// kept) in favor of the caller never blocking — see
// Write's comment for why dropping, not blocking, is the correct choice
// here.
const QueueDepth = 4096

// Writer accepts AuditLog entries without ever blocking the caller and
// drains them to storage on a background goroutine.
type Writer struct {
	store   *store.AuditStore
	log     zerolog.Logger
	entries chan domain.AuditLog
	done    chan struct{}
}

// New builds a Writer and starts its drain goroutine. Callers shut it down
// with Stop.
func New(s *store.AuditStore, log zerolog.Logger) *Writer {
	w := &Writer{
		store:   s,
		log:     log,
		entries: make(chan domain.AuditLog, QueueDepth),
		done:    make(chan struct{}),
	}
	go w.drain()
	return w
}

// Write enqueues an audit entry and returns immediately: a full queue
// drops the entry (logged at warn level) rather than blocking the caller
// or growing without bound. An audit-log backlog is a symptom to alert
// on, not something the request path should ever wait on.
func (w *Writer) Write(e domain.AuditLog) {
	select {
	case w.entries <- e:
	default:
		w.log.Warn().
			Str("tenantId", e.TenantID.String()).
			Str("action", e.Action).
			Msg("audit queue full, dropping entry")
	}
}

func (w *Writer) drain() {
	defer close(w.done)
	for e := range w.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.store.Write(ctx, e); err != nil {
			w.log.Error().Err(err).
				Str("tenantId", e.TenantID.String()).
				Str("action", e.Action).
				Msg("failed to persist audit entry")
		}
		cancel()
	}
}

// Stop closes the entry channel and waits for the drain goroutine to
// finish flushing whatever was already queued, or for ctx to expire.
func (w *Writer) Stop(ctx context.Context) error {
	close(w.entries)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
