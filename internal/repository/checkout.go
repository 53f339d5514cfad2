package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurmed/orders/internal/checkout"
	"github.com/ayurmed/orders/internal/domain/coupon"
	"github.com/ayurmed/orders/internal/domain/order"
)

const createOrderSQL = `INSERT INTO orders
	(user_id, item_id, quantity, order_date, order_status, address_id, estimated_delivery,
	 payment_method, coupon_code, discount_amount, final_amount)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`

var _ checkout.Store = (*CheckoutStore)(nil)

// CheckoutStore persists one checkout atomically: the order rows, their
// initial status events, the guarded coupon redemption, and the cart clear
// commit in a single transaction.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// CreateOrders inserts the orders and returns their ids in input order. When
// couponCode is non-empty, exactly one use is consumed; the redemption guard
// failing rolls everything back with coupon.ErrLimitReached so the caller can
// retry without the discount.
func (s *CheckoutStore) CreateOrders(ctx context.Context, cartID int64, couponCode string, orders []order.Order) ([]int64, error) {
	ids := make([]int64, len(orders))

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if couponCode != "" {
			if err := redeemCoupon(ctx, tx, couponCode); err != nil {
				return err
			}
		}

		for i, o := range orders {
			err := tx.QueryRow(ctx, createOrderSQL,
				o.UserID, o.ItemID, o.Quantity, o.OrderDate, o.Status, o.AddressID, o.EstimatedDelivery,
				o.PaymentMethod, o.CouponCode, o.DiscountAmount, o.FinalAmount,
			).Scan(&ids[i])
			if err != nil {
				return fmt.Errorf("inserting order: %w", err)
			}

			note := "Order placed"
			if o.Status == order.StatusConfirmed {
				note = "Order placed (cash on delivery)"
			}
			if err := insertStatusEvent(ctx, tx, ids[i], o.Status, note, &o.UserID); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, clearCartSQL, cartID); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, coupon.ErrLimitReached) || errors.Is(err, coupon.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("persisting checkout: %w", err)
	}
	return ids, nil
}
