package harmonizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestHarmonizerBuffersWithinWindow(t *testing.T) {
	var mu sync.Mutex
	var drained []BufferedMessage

	h := New(NewMemoryBuffer(), MinWindow, func(_ context.Context, _ uuid.UUID, msgs []BufferedMessage) {
		mu.Lock()
		drained = append(drained, msgs...)
		mu.Unlock()
	}, zerolog.Nop())

	conv := uuid.New()
	now := time.Now()
	for i := 0; i < 3; i++ {
		msg := BufferedMessage{MessageID: uuid.New(), Content: "part", ArrivedAt: now.Add(time.Duration(i) * time.Millisecond)}
		if err := h.Handle(context.Background(), conv, msg, false); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	time.Sleep(MinWindow + 500*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(drained) != 3 {
		t.Fatalf("expected 3 messages drained in one batch, got %d", len(drained))
	}
}

func TestHarmonizerTimeSensitiveBypasses(t *testing.T) {
	drainCh := make(chan []BufferedMessage, 1)
	h := New(NewMemoryBuffer(), time.Hour, func(_ context.Context, _ uuid.UUID, msgs []BufferedMessage) {
		drainCh <- msgs
	}, zerolog.Nop())

	conv := uuid.New()
	msg := BufferedMessage{MessageID: uuid.New(), Content: "payment confirmed", ArrivedAt: time.Now()}
	if err := h.Handle(context.Background(), conv, msg, true); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	select {
	case msgs := <-drainCh:
		if len(msgs) != 1 {
			t.Fatalf("expected exactly one message, got %d", len(msgs))
		}
	case <-time.After(time.Second):
		t.Fatal("time-sensitive message was not drained immediately")
	}
}

func TestHarmonizerDropsDuplicateProviderMessageID(t *testing.T) {
	buf := NewMemoryBuffer()
	h := New(buf, time.Hour, func(context.Context, uuid.UUID, []BufferedMessage) {}, zerolog.Nop())

	conv := uuid.New()
	msg := BufferedMessage{MessageID: uuid.New(), ProviderMessageID: "wamid.same", Content: "hi", ArrivedAt: time.Now()}
	if err := h.Handle(context.Background(), conv, msg, false); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := h.Handle(context.Background(), conv, msg, false); err != nil {
		t.Fatalf("Handle duplicate: %v", err)
	}

	buffered, err := buf.Drain(context.Background(), conv)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(buffered) != 1 {
		t.Fatalf("expected duplicate to be dropped, got %d buffered messages", len(buffered))
	}
}

func TestCombinedContentPreservesOrder(t *testing.T) {
	msgs := []BufferedMessage{
		{Content: "first", ArrivedAt: time.Now()},
		{Content: "second", ArrivedAt: time.Now().Add(time.Millisecond)},
	}
	got := CombinedContent(msgs)
	want := "first\nsecond"
	if got != want {
		t.Fatalf("CombinedContent() = %q, want %q", got, want)
	}
}
