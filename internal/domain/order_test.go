package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestComputeTotalSumsLineTotalsFromCatalogPricesOnly(t *testing.T) {
	items := []OrderLineItem{
		{ProductVariantID: uuid.New(), Quantity: 2, UnitPriceAtCreation: decimal.NewFromFloat(9.99)},
		{ProductVariantID: uuid.New(), Quantity: 1, UnitPriceAtCreation: decimal.NewFromFloat(4.50)},
	}

	got := ComputeTotal(items)
	want := decimal.NewFromFloat(24.48)
	if !got.Equal(want) {
		t.Fatalf("ComputeTotal() = %s, want %s", got, want)
	}
}

func TestComputeTotalOfEmptyOrderIsZero(t *testing.T) {
	if got := ComputeTotal(nil); !got.Equal(decimal.Zero) {
		t.Fatalf("ComputeTotal(nil) = %s, want 0", got)
	}
}
