package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validate checks a coupon's eligibility against an order amount at the
// given time. Checks run in a fixed order and the first failure wins:
// inactive, expired, usage limit reached, below minimum order value.
// It never mutates the coupon.
func Validate(c *Coupon, orderAmount decimal.Decimal, now time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if c.ExpiryDate != nil && now.After(*c.ExpiryDate) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrLimitReached
	}
	if orderAmount.LessThan(c.MinOrderValue) {
		return &BelowMinimumError{Minimum: c.MinOrderValue}
	}
	return nil
}

// Price computes the discount a valid coupon grants on the order amount,
// rounded to 2 decimal places. Percentage discounts are clamped to the
// optional max discount cap; fixed discounts never exceed the order amount.
func Price(c *Coupon, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	switch c.DiscountType {
	case DiscountPercentage:
		amount := orderAmount.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount != nil && amount.GreaterThan(*c.MaxDiscount) {
			amount = *c.MaxDiscount
		}
		return amount.Round(2), nil
	case DiscountFixed:
		return decimal.Min(c.DiscountValue, orderAmount).Round(2), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
}
