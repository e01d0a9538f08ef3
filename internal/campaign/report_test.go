package campaign

import (
	"testing"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

func TestTwoProportionZTestDetectsSignificantDifference(t *testing.T) {
	a := domain.CampaignMetrics{Targeted: 1000, Conversion: 200}
	b := domain.CampaignMetrics{Targeted: 1000, Conversion: 120}

	significant, winnerIdx := twoProportionZTest(a, b, 0.95)
	if !significant {
		t.Fatal("expected a 20% vs 12% conversion gap at n=1000 each to be significant")
	}
	if winnerIdx != 0 {
		t.Fatalf("expected variant a (higher rate) to win, got idx %d", winnerIdx)
	}
}

func TestTwoProportionZTestNotSignificantOnSmallSample(t *testing.T) {
	a := domain.CampaignMetrics{Targeted: 10, Conversion: 2}
	b := domain.CampaignMetrics{Targeted: 10, Conversion: 1}

	significant, _ := twoProportionZTest(a, b, 0.95)
	if significant {
		t.Fatal("expected a 1-conversion difference on n=10 to not clear the 95% threshold")
	}
}

func TestTwoProportionZTestZeroTargetedIsNotSignificant(t *testing.T) {
	a := domain.CampaignMetrics{Targeted: 0, Conversion: 0}
	b := domain.CampaignMetrics{Targeted: 100, Conversion: 50}

	significant, _ := twoProportionZTest(a, b, 0.95)
	if significant {
		t.Fatal("expected an empty variant to never be reported significant")
	}
}

func TestTwoProportionZTestUnknownConfidenceFallsBackTo95(t *testing.T) {
	a := domain.CampaignMetrics{Targeted: 1000, Conversion: 200}
	b := domain.CampaignMetrics{Targeted: 1000, Conversion: 120}

	sig95, _ := twoProportionZTest(a, b, 0.95)
	sigUnknown, _ := twoProportionZTest(a, b, 0.5)
	if sig95 != sigUnknown {
		t.Fatal("expected an unrecognized confidence level to behave like 95%")
	}
}
