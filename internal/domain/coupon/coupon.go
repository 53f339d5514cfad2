// Package coupon implements promotional code validation and discount pricing.
package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the order amount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the order amount.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("invalid coupon code")
	// ErrInactive is returned when the coupon has been deactivated.
	ErrInactive = errors.New("coupon is no longer active")
	// ErrExpired is returned when the coupon's expiry date has passed.
	ErrExpired = errors.New("coupon has expired")
	// ErrLimitReached is returned when the coupon has exhausted its usage limit.
	ErrLimitReached = errors.New("coupon has reached its usage limit")
	// ErrDuplicateCode is returned when creating a coupon whose code already exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// BelowMinimumError is returned when the order amount does not reach the
// coupon's minimum order value. It carries the minimum so callers can
// surface it.
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum order value of %s required to use this coupon", e.Minimum.StringFixed(2))
}

// Coupon is a promotional code with its eligibility constraints.
// Codes are stored uppercase; NormalizeCode is applied on both write and read.
type Coupon struct {
	ID            int64
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MinOrderValue decimal.Decimal
	MaxDiscount   *decimal.Decimal
	ExpiryDate    *time.Time
	UsageLimit    *int
	UsedCount     int
	Active        bool
	CreatedAt     time.Time
}

// NormalizeCode uppercases a coupon code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and mutation of coupons.
//
// Redeem must increment used_count atomically and fail with ErrLimitReached
// when the increment would exceed the usage limit, so that concurrent
// checkouts cannot over-redeem.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Redeem(ctx context.Context, code string) error
	Create(ctx context.Context, c *Coupon) error
	List(ctx context.Context) ([]Coupon, error)
	ListAvailable(ctx context.Context, now time.Time) ([]Coupon, error)
	Update(ctx context.Context, id int64, upd Update) (*Coupon, error)
	Delete(ctx context.Context, id int64) error
}

// Update holds the mutable coupon fields for admin edits. Nil pointers leave
// the field unchanged; SetExpiry/SetLimit distinguish "clear" from "keep".
type Update struct {
	Active     *bool
	SetExpiry  bool
	ExpiryDate *time.Time
	SetLimit   bool
	UsageLimit *int
}
