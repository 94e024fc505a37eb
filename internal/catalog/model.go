package catalog

import (
	"encoding/json"
	"time"
)

// Sizes is the fixed label set for size-tracked products.
var Sizes = []string{"S", "M", "L", "XL"}

type Product struct {
	ID          string    `json:"productId"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	ListPrice   float64   `json:"price"`
	SalePrice   *float64  `json:"salePrice,omitempty"`
	Stock       Stock     `json:"stock"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Stock is either a single unit counter or a per-size counter map.
// The JSON form mirrors the stored document: a bare number for scalar
// stock, an object keyed by size label for sized stock.
type Stock struct {
	Sized bool           `json:"-"`
	Units int            `json:"-"`
	Sizes map[string]int `json:"-"`
}

func ScalarStock(units int) Stock {
	return Stock{Units: units}
}

func SizedStock(sizes map[string]int) Stock {
	cp := make(map[string]int, len(sizes))
	for k, v := range sizes {
		cp[k] = v
	}
	return Stock{Sized: true, Sizes: cp}
}

// Total is the number of available units across all counters.
func (s Stock) Total() int {
	if !s.Sized {
		return s.Units
	}
	total := 0
	for _, n := range s.Sizes {
		total += n
	}
	return total
}

// Available returns the counter for a size, or the scalar counter when
// size is empty. Unknown sizes count as zero.
func (s Stock) Available(size string) int {
	if size == "" {
		if s.Sized {
			return s.Total()
		}
		return s.Units
	}
	if !s.Sized {
		return 0
	}
	return s.Sizes[size]
}

// InStockSizes lists the sizes with at least one unit, in the fixed
// label order. Callers use it to hide sold-out sizes.
func (s Stock) InStockSizes() []string {
	if !s.Sized {
		return nil
	}
	out := make([]string, 0, len(Sizes))
	for _, size := range Sizes {
		if s.Sizes[size] > 0 {
			out = append(out, size)
		}
	}
	return out
}

func (s Stock) MarshalJSON() ([]byte, error) {
	if !s.Sized {
		return json.Marshal(s.Units)
	}
	sizes := make(map[string]int, len(Sizes))
	for _, size := range Sizes {
		sizes[size] = s.Sizes[size]
	}
	return json.Marshal(sizes)
}

// UnmarshalJSON accepts both stored shapes. Anything else normalizes to
// zero stock instead of failing, so a malformed record never breaks a
// render path.
func (s *Stock) UnmarshalJSON(data []byte) error {
	var units int
	if err := json.Unmarshal(data, &units); err == nil {
		*s = Stock{Units: units}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		sizes := make(map[string]int, len(Sizes))
		for _, size := range Sizes {
			var n int
			if v, ok := raw[size]; ok {
				if err := json.Unmarshal(v, &n); err != nil {
					n = 0
				}
			}
			sizes[size] = n
		}
		*s = Stock{Sized: true, Sizes: sizes}
		return nil
	}

	*s = Stock{}
	return nil
}
