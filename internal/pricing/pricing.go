// Package pricing holds the cart's integer price arithmetic: tax, shipping,
// promo discounts and the final total. Amounts are whole rupees.
package pricing

import (
	"github.com/shopspring/decimal"

	"artisan-market/internal/models"
)

const (
	DefaultFreeShippingAbove int64 = 2000
	DefaultShippingFee       int64 = 150
	DefaultMaxLineQuantity   int64 = 999
	DefaultMaxUnitPrice      int64 = 10_000_000
)

var DefaultTaxRate = decimal.RequireFromString("0.18")

// Policy is fixed pricing policy data. MaxLineQuantity and MaxUnitPrice cap
// a single line so that line totals and the subtotal stay within int64; zero
// means the package default.
type Policy struct {
	TaxRate           decimal.Decimal
	FreeShippingAbove int64
	ShippingFee       int64
	MaxLineQuantity   int64
	MaxUnitPrice      int64
}

func DefaultPolicy() Policy {
	return Policy{
		TaxRate:           DefaultTaxRate,
		FreeShippingAbove: DefaultFreeShippingAbove,
		ShippingFee:       DefaultShippingFee,
		MaxLineQuantity:   DefaultMaxLineQuantity,
		MaxUnitPrice:      DefaultMaxUnitPrice,
	}
}

// MaxQuantity is the most units one line may hold. A zero MaxLineQuantity
// means DefaultMaxLineQuantity.
func (p Policy) MaxQuantity() int64 {
	if p.MaxLineQuantity > 0 {
		return p.MaxLineQuantity
	}
	return DefaultMaxLineQuantity
}

func (p Policy) maxUnitPrice() int64 {
	if p.MaxUnitPrice > 0 {
		return p.MaxUnitPrice
	}
	return DefaultMaxUnitPrice
}

// QuantityAllowed reports whether a line may hold quantity units.
func (p Policy) QuantityAllowed(quantity int64) bool {
	return quantity >= 1 && quantity <= p.MaxQuantity()
}

// CanAdd reports whether more units fit on a line that already holds
// current units.
func (p Policy) CanAdd(current, more int64) bool {
	return more >= 1 && more <= p.MaxQuantity()-current
}

// PriceAllowed reports whether unitPrice is a valid line price.
func (p Policy) PriceAllowed(unitPrice int64) bool {
	return unitPrice >= 0 && unitPrice <= p.maxUnitPrice()
}

// Tax is round(subtotal * rate), half away from zero.
func (p Policy) Tax(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).Mul(p.TaxRate).Round(0).IntPart()
}

// Shipping is free strictly above the threshold. An empty cart ships nothing.
func (p Policy) Shipping(subtotal int64) int64 {
	if subtotal <= 0 || subtotal > p.FreeShippingAbove {
		return 0
	}
	return p.ShippingFee
}

// Compute derives the totals for a subtotal and a locked-in discount. The
// total never goes below zero.
func (p Policy) Compute(subtotal, discount int64) models.Totals {
	t := models.Totals{
		Subtotal: subtotal,
		Tax:      p.Tax(subtotal),
		Shipping: p.Shipping(subtotal),
		Discount: discount,
	}
	t.Total = t.Subtotal + t.Tax + t.Shipping - t.Discount
	if t.Total < 0 {
		t.Total = 0
	}
	return t
}

// Subtotal sums unit price times quantity over the items.
func Subtotal(items []models.LineItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.LineTotal()
	}
	return sum
}

// Discount is round(subtotal * percentage / 100).
func Discount(subtotal, percentage int64) int64 {
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(percentage)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
