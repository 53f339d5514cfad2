package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurmed/orders/internal/domain/order"
)

const (
	orderColumns = `id, user_id, item_id, quantity, order_date, order_status, address_id,
		tracking_number, shipped_date, delivered_date, estimated_delivery, payment_method,
		gateway_order_id, gateway_payment_id, gateway_signature,
		coupon_code, discount_amount, final_amount`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY order_date DESC, id DESC`

	listOrdersByStatusSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE order_status = $1 ORDER BY order_date DESC, id DESC
		LIMIT $2 OFFSET $3`

	listShippedBeforeSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE order_status IN ($1, $2) AND shipped_date IS NOT NULL AND shipped_date < $3
		ORDER BY shipped_date`

	listOrderEventsSQL = `SELECT id, order_id, status, status_name, note, actor_id, created_at
		FROM order_status_events WHERE order_id = $1 ORDER BY created_at, id`

	transitionOrderSQL = `UPDATE orders SET
		order_status       = $3,
		tracking_number    = COALESCE($4, tracking_number),
		shipped_date       = COALESCE($5, shipped_date),
		delivered_date     = COALESCE($6, delivered_date),
		gateway_order_id   = COALESCE($7, gateway_order_id),
		gateway_payment_id = COALESCE($8, gateway_payment_id),
		gateway_signature  = COALESCE($9, gateway_signature),
		payment_method     = COALESCE($10, payment_method)
		WHERE id = $1 AND order_status = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	insertOrderEventSQL = `INSERT INTO order_status_events (order_id, status, status_name, note, actor_id)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns one order. Returns order.ErrNotFound when the id does not resolve.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns a user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// ListByStatus returns orders in a given status with paging, newest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, status order.Status, limit, offset int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByStatusSQL, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders by status %s: %w", status.Label(), err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders by status %s: %w", status.Label(), err)
	}
	return orders, nil
}

// ListEvents returns the order's status history, oldest first.
func (r *OrderRepository) ListEvents(ctx context.Context, orderID int64) ([]order.StatusEvent, error) {
	rows, err := r.pool.Query(ctx, listOrderEventsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing events for order %d: %w", orderID, err)
	}
	events, err := pgx.CollectRows(rows, scanStatusEvent)
	if err != nil {
		return nil, fmt.Errorf("listing events for order %d: %w", orderID, err)
	}
	return events, nil
}

// ListShippedBefore returns Shipped and OutForDelivery orders whose shipped
// date is older than cutoff. Used by the auto-delivery sweep.
func (r *OrderRepository) ListShippedBefore(ctx context.Context, cutoff time.Time) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listShippedBeforeSQL, order.StatusShipped, order.StatusOutForDelivery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing shipped orders before %s: %w", cutoff, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing shipped orders before %s: %w", cutoff, err)
	}
	return orders, nil
}

// Transition applies one status change with compare-and-swap semantics on the
// expected From status and appends the status event in the same transaction.
// Returns order.ErrStaleTransition when the order's status no longer matches
// From, order.ErrNotFound when the order does not exist.
func (r *OrderRepository) Transition(ctx context.Context, t order.Transition) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var gatewayOrderID, gatewayPaymentID, gatewaySignature *string
		if t.Gateway != nil {
			gatewayOrderID = &t.Gateway.OrderID
			gatewayPaymentID = &t.Gateway.PaymentID
			gatewaySignature = &t.Gateway.Signature
		}

		tag, err := tx.Exec(ctx, transitionOrderSQL,
			t.OrderID, t.From, t.To,
			t.TrackingNumber, t.ShippedAt, t.DeliveredAt,
			gatewayOrderID, gatewayPaymentID, gatewaySignature,
			t.PaymentMethod,
		)
		if err != nil {
			return fmt.Errorf("updating order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, orderExistsSQL, t.OrderID).Scan(&exists); err != nil {
				return fmt.Errorf("checking order existence: %w", err)
			}
			if !exists {
				return order.ErrNotFound
			}
			return order.ErrStaleTransition
		}

		return insertStatusEvent(ctx, tx, t.OrderID, t.To, t.Note, t.ActorID)
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) || errors.Is(err, order.ErrStaleTransition) {
			return err
		}
		return fmt.Errorf("transitioning order %d: %w", t.OrderID, err)
	}
	return nil
}

func insertStatusEvent(ctx context.Context, tx pgx.Tx, orderID int64, status order.Status, note string, actorID *int64) error {
	_, err := tx.Exec(ctx, insertOrderEventSQL, orderID, status, status.Label(), note, actorID)
	if err != nil {
		return fmt.Errorf("inserting status event: %w", err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.ItemID, &o.Quantity, &o.OrderDate, &o.Status, &o.AddressID,
		&o.TrackingNumber, &o.ShippedDate, &o.DeliveredDate, &o.EstimatedDelivery, &o.PaymentMethod,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.GatewaySignature,
		&o.CouponCode, &o.DiscountAmount, &o.FinalAmount,
	)
	return o, err
}

func scanStatusEvent(row pgx.CollectableRow) (order.StatusEvent, error) {
	var e order.StatusEvent
	err := row.Scan(&e.ID, &e.OrderID, &e.Status, &e.StatusName, &e.Note, &e.ActorID, &e.CreatedAt)
	return e, err
}
