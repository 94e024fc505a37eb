package cart

import "github.com/Emmannue01/trend-caps/internal/pricing"

// Line is one cart entry, unique per product and, for size-tracked
// products, per size. UnitPrice is snapshotted when the line is first
// added and survives later catalog price changes.
type Line struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Size      string  `json:"size,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
}

// LineID is the composite key a line lives under: the product id, with
// the size suffixed for size-tracked products.
func LineID(productID, size string) string {
	if size == "" {
		return productID
	}
	return productID + "-" + size
}

func (l Line) ID() string {
	return LineID(l.ProductID, l.Size)
}

// Amounts projects lines into the pricing engine's input shape.
func Amounts(lines []Line) []pricing.LineAmount {
	out := make([]pricing.LineAmount, 0, len(lines))
	for _, l := range lines {
		out = append(out, pricing.LineAmount{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	return out
}
