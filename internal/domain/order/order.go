// Package order owns the order entity, its delivery status state machine,
// and the append-only status history.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when an order id does not resolve.
	ErrNotFound = errors.New("order not found")
	// ErrForbidden is returned when a caller touches an order they do not own.
	ErrForbidden = errors.New("not allowed to access this order")
	// ErrStaleTransition signals that another actor already moved the order
	// past the expected status. It is a concurrency loss, not a failure.
	ErrStaleTransition = errors.New("order status changed concurrently")
	// ErrTrackingRequired is returned when shipping without a tracking number.
	ErrTrackingRequired = errors.New("tracking number required to mark as shipped")
	// ErrCannotCancelAfterShipping is returned when a customer cancels an
	// order that has already shipped.
	ErrCannotCancelAfterShipping = errors.New("order cannot be cancelled after shipping")
)

// InvalidTransitionError is returned for a status change the state machine
// does not permit.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return "invalid status transition: " + e.From.Label() + " -> " + e.To.Label()
}

// Order is one purchased line. A multi-item checkout fans out into several
// Order rows, one per cart line, each tracked and shipped independently.
type Order struct {
	ID                int64
	UserID            int64
	ItemID            int64
	Quantity          int
	OrderDate         time.Time
	Status            Status
	AddressID         int64
	TrackingNumber    *string
	ShippedDate       *time.Time
	DeliveredDate     *time.Time
	EstimatedDelivery *time.Time
	PaymentMethod     string
	GatewayOrderID    *string
	GatewayPaymentID  *string
	GatewaySignature  *string
	CouponCode        *string
	DiscountAmount    decimal.Decimal
	FinalAmount       decimal.Decimal
}

// StatusEvent is one append-only audit row for a status mutation.
// ActorID is nil for system-generated transitions.
type StatusEvent struct {
	ID         int64
	OrderID    int64
	Status     Status
	StatusName string
	Note       string
	ActorID    *int64
	CreatedAt  time.Time
}

// GatewayRefs carries the payment gateway identifiers persisted when a
// payment is confirmed.
type GatewayRefs struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Transition describes one atomic status change. The repository applies it
// with compare-and-swap semantics on From and appends exactly one status
// event in the same transaction.
type Transition struct {
	OrderID        int64
	From           Status
	To             Status
	TrackingNumber *string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	Gateway        *GatewayRefs
	PaymentMethod  *string
	Note           string
	ActorID        *int64
}

// Repository defines persistence for orders and their status history.
//
// Transition must update the order row only when its current status still
// equals From, append the status event in the same transaction, and return
// ErrStaleTransition when the precondition no longer holds (ErrNotFound when
// the order does not exist).
type Repository interface {
	Get(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Order, error)
	ListEvents(ctx context.Context, orderID int64) ([]StatusEvent, error)
	ListShippedBefore(ctx context.Context, cutoff time.Time) ([]Order, error)
	Transition(ctx context.Context, t Transition) error
}
