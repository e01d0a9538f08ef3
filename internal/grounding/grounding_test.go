package grounding

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type recordingLog struct {
	transforms []string
}

func (r *recordingLog) Record(_ context.Context, _, _ uuid.UUID, transform, _ string) error {
	r.transforms = append(r.transforms, transform)
	return nil
}

func TestValidateStripsUnverifiedPrice(t *testing.T) {
	log := &recordingLog{}
	v := New(log, zerolog.Nop())

	draft := "That mug is $9.99 and ships tomorrow."
	got := v.Validate(context.Background(), uuid.New(), uuid.New(), draft, "how much is the mug", nil)

	if strings.Contains(got, "$9.99") {
		t.Fatalf("expected unverified price to be stripped, got %q", got)
	}
	if len(log.transforms) == 0 {
		t.Fatal("expected a validation log entry for the stripped claim")
	}
}

func TestValidateKeepsVerifiedPrice(t *testing.T) {
	v := New(nil, zerolog.Nop())
	draft := "That mug is $9.99."
	got := v.Validate(context.Background(), uuid.New(), uuid.New(), draft, "", []Fact{{Kind: ClaimPrice, Value: "9.99"}})

	if !strings.Contains(got, "$9.99") {
		t.Fatalf("expected verified price to survive, got %q", got)
	}
}

func TestValidateStripsDisclaimerPhrase(t *testing.T) {
	v := New(nil, zerolog.Nop())
	draft := "As an AI, I think the mug is blue."
	got := v.Validate(context.Background(), uuid.New(), uuid.New(), draft, "", nil)

	if strings.Contains(strings.ToLower(got), "as an ai") {
		t.Fatalf("expected disclaimer phrase to be stripped, got %q", got)
	}
}

func TestValidateStripsEchoOfCustomerInput(t *testing.T) {
	v := New(nil, zerolog.Nop())
	customerInput := "do you have any blue mugs in stock right now"
	draft := customerInput + " Yes, we have three in stock."
	got := v.Validate(context.Background(), uuid.New(), uuid.New(), draft, customerInput, nil)

	if strings.Contains(got, customerInput) {
		t.Fatalf("expected echoed customer input to be stripped, got %q", got)
	}
}

func TestValidateFallsBackToDeferralWhenEmpty(t *testing.T) {
	v := New(nil, zerolog.Nop())
	got := v.Validate(context.Background(), uuid.New(), uuid.New(), "$5.00", "", nil)
	if got != deferralText {
		t.Fatalf("got %q, want deferral text", got)
	}
}

func TestEnforceSentenceLimit(t *testing.T) {
	text := "One. Two. Three. Four. Five. Six. Seven."
	got := enforceSentenceLimit(text, 3)
	if len(splitSentences(got)) != 3 {
		t.Fatalf("got %d sentences, want 3: %q", len(splitSentences(got)), got)
	}
}
