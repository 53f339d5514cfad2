// Package pricing derives checkout totals from a cart snapshot.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is a priced cart line used as input for total calculation.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Config holds the pricing constants applied at checkout.
type Config struct {
	// FreeShippingThreshold is the discounted subtotal at or above which
	// shipping is free.
	FreeShippingThreshold decimal.Decimal
	// FlatShippingFee is charged below the free shipping threshold.
	FlatShippingFee decimal.Decimal
	// TaxRate is the fraction of the discounted subtotal charged as tax.
	TaxRate decimal.Decimal
}

// DefaultConfig returns the marketplace defaults: free shipping at 500,
// flat fee 50, 5% tax.
func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.NewFromInt(500),
		FlatShippingFee:       decimal.NewFromInt(50),
		TaxRate:               decimal.NewFromFloat(0.05),
	}
}

// Breakdown is the priced result of a cart, every field rounded to 2 decimal
// places.
type Breakdown struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal sums unit price times quantity across all lines without rounding.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Calculate prices the given lines with an already-computed discount.
// The discount is applied before tax and before the free shipping check.
// Intermediate sums are kept exact; only the returned fields are rounded.
// The caller is responsible for clamping discount to the subtotal.
func Calculate(cfg Config, lines []Line, discount decimal.Decimal) Breakdown {
	subtotal := Subtotal(lines)
	discounted := subtotal.Sub(discount)
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}

	shipping := cfg.FlatShippingFee
	if discounted.GreaterThanOrEqual(cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := cfg.TaxRate.Mul(discounted)
	total := discounted.Add(shipping).Add(tax)

	return Breakdown{
		Subtotal: subtotal.Round(2),
		Shipping: shipping.Round(2),
		Tax:      tax.Round(2),
		Discount: discount.Round(2),
		Total:    total.Round(2),
	}
}

// EstimateDelivery returns the date five business days after now, skipping
// weekends.
func EstimateDelivery(now time.Time) time.Time {
	d := now
	added := 0
	for added < 5 {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return d
}
