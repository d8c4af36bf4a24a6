package models

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	json "github.com/goccy/go-json"
)

// ProductID is the catalog identifier of a product. Older snapshots stored it
// as a JSON number, so both numbers and strings are accepted when decoding.
type ProductID string

func (p *ProductID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decode product id")
		}
		*p = ProductID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return errors.Errorf("product id must be a string or number, got %s", raw)
	}
	*p = ProductID(raw)
	return nil
}

// LineKey builds the cart line identifier for a product and optional variant.
func LineKey(productID ProductID, variant string) string {
	if variant == "" {
		return string(productID)
	}
	return string(productID) + "#" + variant
}

// ItemDetails is display-only data captured alongside a line item.
type ItemDetails struct {
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
	Artisan  string `json:"artisan,omitempty"`
	Category string `json:"category,omitempty"`
	InStock  bool   `json:"inStock"`
}

// LineItem is one entry in the cart. UnitPrice is in whole rupees and is
// captured when the item is added.
type LineItem struct {
	ID        string    `json:"lineId"`
	ProductID ProductID `json:"id"`
	Variant   string    `json:"variant,omitempty"`
	UnitPrice int64     `json:"price"`
	Quantity  int64     `json:"quantity"`
	ItemDetails
}

func (li LineItem) LineTotal() int64 {
	return li.UnitPrice * li.Quantity
}

// PromoCode is the active promotion. DiscountAmount is locked in when the
// code is applied and is not recomputed when the cart changes.
type PromoCode struct {
	Code           string `json:"code"`
	Percentage     int64  `json:"percentage"`
	DiscountAmount int64  `json:"discountAmount"`
}

// CartSnapshot is the persisted unit of a cart.
type CartSnapshot struct {
	Items []LineItem `json:"items"`
	Promo *PromoCode `json:"promo,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate engine state.
func (s CartSnapshot) Clone() CartSnapshot {
	out := CartSnapshot{Items: make([]LineItem, len(s.Items))}
	copy(out.Items, s.Items)
	if s.Promo != nil {
		p := *s.Promo
		out.Promo = &p
	}
	return out
}

func (s CartSnapshot) ItemCount() int64 {
	var n int64
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// Totals is the derived pricing of a cart.
type Totals struct {
	Subtotal  int64 `json:"subtotal"`
	Tax       int64 `json:"tax"`
	Shipping  int64 `json:"shipping"`
	Discount  int64 `json:"discount"`
	Total     int64 `json:"total"`
	ItemCount int64 `json:"itemCount"`
}

type PromoDiscountResult struct {
	Code           string `json:"code"`
	Percentage     int64  `json:"percentage"`
	DiscountAmount int64  `json:"discountAmount"`
	Cleared        bool   `json:"cleared"`
}

// AddToCartRequest adds one unit when Quantity is omitted.
type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Variant   string `json:"variant"`
	Quantity  *int64 `json:"quantity"`
}

// Quantity is range-checked by the cart, not by binding.
type UpdateCartItemRequest struct {
	Quantity *int64 `json:"quantity" binding:"required"`
}

type ApplyPromoRequest struct {
	Code string `json:"code"`
}

// CartView is what the API returns for a cart.
type CartView struct {
	Items   []LineItem `json:"items"`
	Totals  Totals     `json:"totals"`
	Promo   *PromoCode `json:"promo,omitempty"`
	IsEmpty bool       `json:"isEmpty"`
}
