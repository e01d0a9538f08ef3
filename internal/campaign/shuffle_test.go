package campaign

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

func TestShufflePreservesSetMembership(t *testing.T) {
	in := []domain.Customer{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}

	out, err := shuffle(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d customers, got %d", len(in), len(out))
	}

	seen := make(map[uuid.UUID]bool, len(in))
	for _, c := range out {
		seen[c.ID] = true
	}
	for _, c := range in {
		if !seen[c.ID] {
			t.Fatalf("customer %s missing from shuffled output", c.ID)
		}
	}
}

func TestShuffleEmptyInput(t *testing.T) {
	out, err := shuffle(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}

func TestAssignVariantsNonABUsesSingleVariant(t *testing.T) {
	audience := []domain.Customer{{ID: uuid.New()}, {ID: uuid.New()}}
	variants := []domain.CampaignVariant{{Key: "A"}}

	assignments, err := assignVariants(audience, variants, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range assignments {
		if a.variant.Key != "A" {
			t.Fatalf("expected every assignment to use variant A, got %s", a.variant.Key)
		}
	}
}

func TestAssignVariantsABSplitsAcrossAllVariants(t *testing.T) {
	audience := make([]domain.Customer, 20)
	for i := range audience {
		audience[i] = domain.Customer{ID: uuid.New()}
	}
	variants := []domain.CampaignVariant{{Key: "A"}, {Key: "B"}}

	assignments, err := assignVariants(audience, variants, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts := map[string]int{}
	for _, a := range assignments {
		counts[a.variant.Key]++
	}
	if counts["A"] == 0 || counts["B"] == 0 {
		t.Fatalf("expected both variants to receive assignments, got %v", counts)
	}
}

func TestAssignVariantsABRejectsSingleVariant(t *testing.T) {
	audience := []domain.Customer{{ID: uuid.New()}}
	variants := []domain.CampaignVariant{{Key: "A"}}

	if _, err := assignVariants(audience, variants, true); err != ErrTooFewVariants {
		t.Fatalf("expected ErrTooFewVariants, got %v", err)
	}
}
