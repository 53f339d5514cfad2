package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Engine validates coupon codes against an order amount and prices the
// resulting discount. Validation is read-only: previewing a coupon never
// consumes a use. Redemption is a separate repository operation performed
// by checkout at commit time.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates an Engine backed by the given Repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// ValidateAndPrice looks up the code (case-insensitively), checks
// eligibility, and returns the discount the coupon grants on orderAmount.
func (e *Engine) ValidateAndPrice(ctx context.Context, code string, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	c, err := e.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, errors.Wrap(err, "lookup coupon")
	}

	if err := Validate(c, orderAmount, e.now()); err != nil {
		return decimal.Zero, err
	}

	return Price(c, orderAmount)
}
