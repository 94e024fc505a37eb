package order

import (
	"time"

	"github.com/Emmannue01/trend-caps/internal/coupon"
)

// Item is one frozen order line. Items are deep-copied from the cart at
// commit time and never change afterwards.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Size      string  `json:"size,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
}

// AppliedCoupon records the discount terms as they were at commit time.
type AppliedCoupon struct {
	Code          string              `json:"code"`
	DiscountType  coupon.DiscountType `json:"discountType"`
	DiscountValue float64             `json:"discountValue"`
}

type ShippingInfo struct {
	Phone        string `json:"phone,omitempty"`
	Street       string `json:"street"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
}

// Complete reports whether the address can be shipped to. Checkout
// rejects incomplete addresses before any I/O.
func (s ShippingInfo) Complete() bool {
	return s.Street != "" && s.City != "" && s.State != "" && s.ZipCode != "" && s.Country != ""
}

// Order is created exactly once at commit and afterwards mutated only by
// status transitions. The same record exists under the account namespace
// and in the global fulfillment namespace, sharing one id.
type Order struct {
	ID            string         `json:"orderId"`
	AccountID     string         `json:"accountId"`
	Items         []Item         `json:"items"`
	Subtotal      float64        `json:"subtotal"`
	Discount      float64        `json:"discount"`
	AppliedCoupon *AppliedCoupon `json:"appliedCoupon,omitempty"`
	Total         float64        `json:"total"`
	Status        Status         `json:"status"`
	Shipping      ShippingInfo   `json:"shippingInfo"`
	CreatedAt     time.Time      `json:"createdAt"`
}
