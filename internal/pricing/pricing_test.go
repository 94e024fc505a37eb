package pricing

import (
	"testing"

	"github.com/Emmannue01/trend-caps/internal/catalog"
	"github.com/Emmannue01/trend-caps/internal/coupon"
)

func fptr(v float64) *float64 { return &v }

func TestEffectiveUnitPrice(t *testing.T) {
	tests := []struct {
		name string
		p    catalog.Product
		want float64
	}{
		{"no sale price", catalog.Product{ListPrice: 20}, 20},
		{"sale price below list", catalog.Product{ListPrice: 20, SalePrice: fptr(15)}, 15},
		{"sale price equal to list", catalog.Product{ListPrice: 20, SalePrice: fptr(20)}, 20},
		{"sale price above list", catalog.Product{ListPrice: 20, SalePrice: fptr(25)}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveUnitPrice(&tt.p); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeTotals(t *testing.T) {
	lines := []LineAmount{
		{UnitPrice: 5, Quantity: 2},
		{UnitPrice: 10, Quantity: 1},
	}

	tests := []struct {
		name   string
		lines  []LineAmount
		coupon *coupon.Coupon
		want   Totals
	}{
		{
			name:  "no coupon",
			lines: lines,
			want:  Totals{Subtotal: 20, Discount: 0, Total: 20},
		},
		{
			name:   "fixed discount",
			lines:  lines,
			coupon: &coupon.Coupon{Code: "SAVE5", DiscountType: coupon.DiscountFixed, DiscountValue: 5},
			want:   Totals{Subtotal: 20, Discount: 5, Total: 15},
		},
		{
			name:   "percentage discount",
			lines:  lines,
			coupon: &coupon.Coupon{Code: "HALF", DiscountType: coupon.DiscountPercentage, DiscountValue: 50},
			want:   Totals{Subtotal: 20, Discount: 10, Total: 10},
		},
		{
			name:   "fixed discount above subtotal clamps total only",
			lines:  []LineAmount{{UnitPrice: 3, Quantity: 1}},
			coupon: &coupon.Coupon{Code: "BIG", DiscountType: coupon.DiscountFixed, DiscountValue: 10},
			want:   Totals{Subtotal: 3, Discount: 10, Total: 0},
		},
		{
			name: "empty cart",
			want: Totals{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeTotals(tt.lines, tt.coupon); got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
