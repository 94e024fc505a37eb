// Package pricing computes effective unit prices and order totals.
// Everything here is pure; callers snapshot results into cart lines and
// orders, they are never recomputed from live catalog records.
package pricing

import (
	"github.com/Emmannue01/trend-caps/internal/catalog"
	"github.com/Emmannue01/trend-caps/internal/coupon"
)

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// LineAmount is the priced-quantity shape shared by cart lines and
// order items.
type LineAmount struct {
	UnitPrice float64
	Quantity  int
}

// EffectiveUnitPrice is the sale price when one is set below the list
// price, the list price otherwise.
func EffectiveUnitPrice(p *catalog.Product) float64 {
	if p.SalePrice != nil && *p.SalePrice < p.ListPrice {
		return *p.SalePrice
	}
	return p.ListPrice
}

// ComputeTotals sums unitPrice × quantity over all lines and applies the
// coupon, if any. The discount field is reported raw; only the total is
// clamped at zero.
func ComputeTotals(lines []LineAmount, c *coupon.Coupon) Totals {
	var t Totals
	for _, line := range lines {
		t.Subtotal += line.UnitPrice * float64(line.Quantity)
	}

	if c != nil {
		switch c.DiscountType {
		case coupon.DiscountPercentage:
			t.Discount = t.Subtotal * c.DiscountValue / 100
		case coupon.DiscountFixed:
			t.Discount = c.DiscountValue
		}
	}

	t.Total = t.Subtotal - t.Discount
	if t.Total < 0 {
		t.Total = 0
	}
	return t
}
