// Package checkout turns a shopping cart into persisted order rows.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ayurmed/orders/internal/client"
	"github.com/ayurmed/orders/internal/domain/cart"
	"github.com/ayurmed/orders/internal/domain/coupon"
	"github.com/ayurmed/orders/internal/domain/order"
	"github.com/ayurmed/orders/internal/domain/pricing"
)

// PaymentMethodCOD is cash on delivery; such orders skip the payment leg and
// are created already confirmed.
const PaymentMethodCOD = "cod"

var (
	// ErrEmptyCart is returned when checking out a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidAddress is returned when the address does not belong to the user.
	ErrInvalidAddress = errors.New("invalid address")
)

// AddressRepository checks delivery address ownership.
type AddressRepository interface {
	BelongsToUser(ctx context.Context, addressID, userID int64) (bool, error)
}

// CouponPricer validates a coupon code against an order amount without
// consuming a use. Satisfied by coupon.Engine.
type CouponPricer interface {
	ValidateAndPrice(ctx context.Context, code string, orderAmount decimal.Decimal) (decimal.Decimal, error)
}

// Store persists the state mutation of one checkout atomically: the order
// rows, the guarded coupon redemption (exactly one use for the whole
// checkout), the initial status events, and the cart clear all commit or
// none do. Returns coupon.ErrLimitReached when the redemption guard fails.
type Store interface {
	CreateOrders(ctx context.Context, cartID int64, couponCode string, orders []order.Order) ([]int64, error)
}

// ConfirmationNotifier queues order confirmation notifications.
type ConfirmationNotifier interface {
	OrderConfirmation(ctx context.Context, o *order.Order)
}

// Request is the input to a checkout.
type Request struct {
	UserID        int64
	AddressID     int64
	PaymentMethod string
	CouponCode    string
}

// Result reports the created orders and the priced cart.
type Result struct {
	OrderIDs []int64
	Orders   []order.Order
	Pricing  pricing.Breakdown
}

// Service orchestrates checkout. It reads the cart once at the start and
// works from that snapshot; a user racing their own checkout with cart edits
// is not defended against.
type Service struct {
	carts     cart.Repository
	addresses AddressRepository
	catalog   client.Catalog
	coupons   CouponPricer
	store     Store
	notifier  ConfirmationNotifier
	pricing   pricing.Config
	now       func() time.Time
}

// NewService creates the checkout orchestrator.
func NewService(
	carts cart.Repository,
	addresses AddressRepository,
	catalog client.Catalog,
	coupons CouponPricer,
	store Store,
	notifier ConfirmationNotifier,
	pricingCfg pricing.Config,
) *Service {
	return &Service{
		carts:     carts,
		addresses: addresses,
		catalog:   catalog,
		coupons:   coupons,
		store:     store,
		notifier:  notifier,
		pricing:   pricingCfg,
		now:       time.Now,
	}
}

// Checkout converts the user's cart into one order row per cart line, with
// the coupon discount distributed proportionally across lines, then clears
// the cart and queues confirmation notifications.
//
// An invalid coupon does not block checkout; only the discount is dropped.
// A failed catalog lookup prices the line at zero rather than aborting;
// each degraded line is logged at WARN with its item id.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	lg := zctx.From(ctx)

	c, err := s.carts.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(c.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	ok, err := s.addresses.BelongsToUser(ctx, req.AddressID, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "check address")
	}
	if !ok {
		return nil, ErrInvalidAddress
	}

	// Resolve unit prices. Lookup failures degrade to zero so one catalog
	// outage cannot strand a checkout, but every degraded line is logged.
	prices := make([]decimal.Decimal, len(c.Lines))
	lines := make([]pricing.Line, len(c.Lines))
	for i, l := range c.Lines {
		price, perr := s.catalog.UnitPrice(ctx, l.ItemID)
		if perr != nil {
			lg.Warn("catalog price lookup failed, pricing line at zero",
				zap.Int64("item_id", l.ItemID),
				zap.Error(perr))
			price = decimal.Zero
		}
		prices[i] = price
		lines[i] = pricing.Line{UnitPrice: price, Quantity: l.Quantity}
	}
	subtotal := pricing.Subtotal(lines)

	// Price the coupon against the cart subtotal. Rejections only drop the
	// discount; checkout proceeds.
	appliedCode := ""
	totalDiscount := decimal.Zero
	if req.CouponCode != "" {
		discount, cerr := s.coupons.ValidateAndPrice(ctx, req.CouponCode, subtotal)
		if cerr != nil {
			lg.Info("coupon rejected, proceeding without discount",
				zap.String("code", req.CouponCode),
				zap.Error(cerr))
		} else {
			appliedCode = coupon.NormalizeCode(req.CouponCode)
			totalDiscount = discount
		}
	}

	orders := s.buildOrders(c, req, prices, subtotal, totalDiscount, appliedCode)

	ids, err := s.store.CreateOrders(ctx, c.ID, appliedCode, orders)
	if errors.Is(err, coupon.ErrLimitReached) {
		// A concurrent checkout exhausted the coupon between validation and
		// redemption. Retry once without the discount.
		lg.Info("coupon exhausted at redemption, retrying without discount",
			zap.String("code", appliedCode))
		totalDiscount = decimal.Zero
		orders = s.buildOrders(c, req, prices, subtotal, decimal.Zero, "")
		ids, err = s.store.CreateOrders(ctx, c.ID, "", orders)
	}
	if err != nil {
		return nil, errors.Wrap(err, "persist checkout")
	}

	for i := range orders {
		orders[i].ID = ids[i]
		if s.notifier != nil {
			s.notifier.OrderConfirmation(ctx, &orders[i])
		}
	}

	return &Result{
		OrderIDs: ids,
		Orders:   orders,
		Pricing:  pricing.Calculate(s.pricing, lines, totalDiscount),
	}, nil
}

// buildOrders fans the cart out into one order row per line, distributing
// totalDiscount proportionally by each line's share of the subtotal. Each
// line's discount is rounded to 2 decimals independently; the per-line sum
// may drift from totalDiscount by up to a cent per line, which is accepted
// rather than forcing the last line to absorb the remainder.
func (s *Service) buildOrders(c *cart.Cart, req Request, prices []decimal.Decimal, subtotal, totalDiscount decimal.Decimal, appliedCode string) []order.Order {
	status := order.StatusPendingPayment
	if req.PaymentMethod == PaymentMethodCOD {
		status = order.StatusConfirmed
	}

	now := s.now()
	estimated := pricing.EstimateDelivery(now)

	var couponCode *string
	if appliedCode != "" {
		couponCode = &appliedCode
	}

	orders := make([]order.Order, len(c.Lines))
	for i, l := range c.Lines {
		lineTotal := prices[i].Mul(decimal.NewFromInt(int64(l.Quantity)))

		lineDiscount := decimal.Zero
		if totalDiscount.IsPositive() && subtotal.IsPositive() {
			lineDiscount = totalDiscount.Mul(lineTotal).Div(subtotal).Round(2)
		}

		final := lineTotal.Sub(lineDiscount).Round(2)
		if final.IsNegative() {
			final = decimal.Zero
		}

		orders[i] = order.Order{
			UserID:            req.UserID,
			ItemID:            l.ItemID,
			Quantity:          l.Quantity,
			OrderDate:         now,
			Status:            status,
			AddressID:         req.AddressID,
			EstimatedDelivery: &estimated,
			PaymentMethod:     req.PaymentMethod,
			CouponCode:        couponCode,
			DiscountAmount:    lineDiscount,
			FinalAmount:       final,
		}
	}
	return orders
}
