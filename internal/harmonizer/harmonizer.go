// Package harmonizer buffers rapidly-arriving inbound messages into a
// single conversational turn, so the agent orchestrator replies once
// instead of per-message.
package harmonizer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultWindow is used when a tenant hasn't configured a harmonization
// window; callers normally pass the tenant-configured value instead.
const DefaultWindow = 3 * time.Second

// MinWindow and MaxWindow bound the configurable harmonization window.
const (
	MinWindow = 1 * time.Second
	MaxWindow = 10 * time.Second
)

// DrainFunc hands a harmonized batch of inbound messages to the agent
// orchestrator as a single turn.
type DrainFunc func(ctx context.Context, conversationID uuid.UUID, messages []BufferedMessage)

// Harmonizer schedules per-conversation flushes of a Buffer. Each
// conversation's pending flush is a single timer reset on every new
// arrival, so the flush always fires `window` after the *last* message,
// not the first: the window elapses since the last buffered arrival,
// not the first one.
type Harmonizer struct {
	buffer Buffer
	window time.Duration
	drain  DrainFunc
	log    zerolog.Logger

	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	locks   map[uuid.UUID]*sync.Mutex // per-conversation ordering lock
}

// New builds a Harmonizer. window is clamped to [MinWindow, MaxWindow].
func New(buffer Buffer, window time.Duration, drain DrainFunc, log zerolog.Logger) *Harmonizer {
	if window < MinWindow {
		window = MinWindow
	}
	if window > MaxWindow {
		window = MaxWindow
	}
	return &Harmonizer{
		buffer: buffer,
		window: window,
		drain:  drain,
		log:    log,
		timers: make(map[uuid.UUID]*time.Timer),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// Handle admits one inbound message. Time-sensitive messages (transactional
// replies, explicit opt-outs) bypass harmonization entirely and drain
// immediately as a batch of one. Everything else is buffered and the
// conversation's flush timer is (re)armed for `window` from now.
func (h *Harmonizer) Handle(ctx context.Context, conversationID uuid.UUID, msg BufferedMessage, timeSensitive bool) error {
	convLock := h.conversationLock(conversationID)
	convLock.Lock()
	defer convLock.Unlock()

	if timeSensitive {
		h.cancelTimer(conversationID)
		h.drain(ctx, conversationID, []BufferedMessage{msg})
		return nil
	}

	seen, err := h.buffer.Seen(ctx, conversationID, msg.ProviderMessageID)
	if err != nil {
		return err
	}
	if seen {
		h.log.Debug().Str("conversationId", conversationID.String()).Msg("duplicate provider message id dropped by harmonizer")
		return nil
	}

	if _, err := h.buffer.Append(ctx, conversationID, msg); err != nil {
		return err
	}
	h.armTimer(ctx, conversationID)
	return nil
}

func (h *Harmonizer) conversationLock(conversationID uuid.UUID) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, ok := h.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[conversationID] = lock
	}
	return lock
}

func (h *Harmonizer) armTimer(ctx context.Context, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.timers[conversationID]; ok {
		t.Stop()
	}
	h.timers[conversationID] = time.AfterFunc(h.window, func() {
		h.flush(ctx, conversationID)
	})
}

func (h *Harmonizer) cancelTimer(conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.timers[conversationID]; ok {
		t.Stop()
		delete(h.timers, conversationID)
	}
}

func (h *Harmonizer) flush(ctx context.Context, conversationID uuid.UUID) {
	convLock := h.conversationLock(conversationID)
	convLock.Lock()
	defer convLock.Unlock()

	h.mu.Lock()
	delete(h.timers, conversationID)
	h.mu.Unlock()

	msgs, err := h.buffer.Drain(ctx, conversationID)
	if err != nil {
		h.log.Error().Err(err).Str("conversationId", conversationID.String()).Msg("harmonizer drain failed")
		return
	}
	if len(msgs) == 0 {
		return
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ArrivedAt.Before(msgs[j].ArrivedAt) })
	h.drain(ctx, conversationID, msgs)
}

// CombinedContent concatenates a harmonized batch into one input for the
// agent orchestrator, preserving arrival order.
func CombinedContent(msgs []BufferedMessage) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}
