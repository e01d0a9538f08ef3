package campaign

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// zCriticalByConfidence are the standard normal critical values for the
// two-sided confidence levels a campaign report is likely to be configured
// at; an unrecognized level falls back to 95%.
var zCriticalByConfidence = map[float64]float64{
	0.90: 1.645,
	0.95: 1.960,
	0.99: 2.576,
}

// VariantReport is one variant's aggregated engagement.
type VariantReport struct {
	Key            string
	Metrics        domain.CampaignMetrics
	ConversionRate float64
}

// Report is the aggregated result of GenerateReport.
type Report struct {
	Variants    []VariantReport
	Significant bool
	WinnerKey   string
}

// GenerateReport aggregates per-variant engagement and, for exactly two
// variants, runs a normal-approximation two-proportion z-test on their
// conversion rates, declaring a winner at the given confidence level if
// the difference is significant.
func (e *Engine) GenerateReport(ctx context.Context, tenant *domain.Tenant, campaignID uuid.UUID, confidenceLevel float64) (*Report, error) {
	c, err := e.campaigns.Get(ctx, tenant.ID, campaignID)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, v := range c.Variants {
		rate := 0.0
		if v.Metrics.Targeted > 0 {
			rate = float64(v.Metrics.Conversion) / float64(v.Metrics.Targeted)
		}
		report.Variants = append(report.Variants, VariantReport{Key: v.Key, Metrics: v.Metrics, ConversionRate: rate})
	}

	if len(c.Variants) != 2 {
		return report, nil
	}

	a, b := c.Variants[0], c.Variants[1]
	significant, winnerIdx := twoProportionZTest(a.Metrics, b.Metrics, confidenceLevel)
	report.Significant = significant
	if significant {
		if winnerIdx == 0 {
			report.WinnerKey = a.Key
		} else {
			report.WinnerKey = b.Key
		}
	}
	return report, nil
}

// twoProportionZTest reports whether variant a's conversion rate differs
// from variant b's at the given two-sided confidence level, and which
// index (0 for a, 1 for b) has the higher rate when it does.
func twoProportionZTest(a, b domain.CampaignMetrics, confidenceLevel float64) (significant bool, winnerIdx int) {
	if a.Targeted == 0 || b.Targeted == 0 {
		return false, 0
	}

	n1, n2 := float64(a.Targeted), float64(b.Targeted)
	x1, x2 := float64(a.Conversion), float64(b.Conversion)
	p1, p2 := x1/n1, x2/n2
	pPool := (x1 + x2) / (n1 + n2)

	se := math.Sqrt(pPool * (1 - pPool) * (1/n1 + 1/n2))
	if se == 0 {
		return false, 0
	}
	z := (p1 - p2) / se

	zCrit, ok := zCriticalByConfidence[confidenceLevel]
	if !ok {
		zCrit = zCriticalByConfidence[0.95]
	}

	if math.Abs(z) < zCrit {
		return false, 0
	}
	if p1 >= p2 {
		return true, 0
	}
	return true, 1
}
