package harmonizer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BufferedMessage is one inbound message waiting to be harmonized into a
// single agent turn.
type BufferedMessage struct {
	MessageID         uuid.UUID
	ProviderMessageID string
	Content           string
	ArrivedAt         time.Time
}

// Buffer stores per-conversation harmonization state. It is a narrow
// interface specifically so the in-memory implementation can later be
// swapped for a Redis-backed one without touching Harmonizer or its
// callers — the same seam left open by other in-memory rate
// limiter ("Production Note: replace with Redis-backed rate limiter").
type Buffer interface {
	// Append adds a message to the conversation's buffer and reports
	// whether this was the first message in an otherwise-empty buffer.
	Append(ctx context.Context, conversationID uuid.UUID, msg BufferedMessage) (first bool, err error)
	// Drain removes and returns every buffered message for the
	// conversation, in arrival order.
	Drain(ctx context.Context, conversationID uuid.UUID) ([]BufferedMessage, error)
	// Seen reports whether a provider message id has already been
	// buffered for this conversation, for in-memory idempotency ahead of
	// the database's own unique-index guarantee.
	Seen(ctx context.Context, conversationID uuid.UUID, providerMessageID string) (bool, error)
}

// MemoryBuffer is the in-process Buffer implementation: a mutex-guarded
// map of slices, shaped like the dispatcher's RateLimiter map
// idiom (internal/dispatcher/ratelimit.go).
type MemoryBuffer struct {
	mu      sync.Mutex
	buffers map[uuid.UUID][]BufferedMessage
}

// NewMemoryBuffer creates an empty MemoryBuffer.
func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{buffers: make(map[uuid.UUID][]BufferedMessage)}
}

func (b *MemoryBuffer) Append(_ context.Context, conversationID uuid.UUID, msg BufferedMessage) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.buffers[conversationID]
	first := len(existing) == 0
	b.buffers[conversationID] = append(existing, msg)
	return first, nil
}

func (b *MemoryBuffer) Drain(_ context.Context, conversationID uuid.UUID) ([]BufferedMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := b.buffers[conversationID]
	delete(b.buffers, conversationID)
	return msgs, nil
}

func (b *MemoryBuffer) Seen(_ context.Context, conversationID uuid.UUID, providerMessageID string) (bool, error) {
	if providerMessageID == "" {
		return false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range b.buffers[conversationID] {
		if m.ProviderMessageID == providerMessageID {
			return true, nil
		}
	}
	return false, nil
}
