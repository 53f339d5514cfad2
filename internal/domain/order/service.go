package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// RoleAdmin marks operator callers; everything else is a customer.
const RoleAdmin = "admin"

// Actor is the authenticated caller identity supplied by the gateway.
// The core trusts it and performs no credential verification.
type Actor struct {
	UserID int64
	Role   string
}

// Admin reports whether the actor has operator privileges.
func (a Actor) Admin() bool { return a.Role == RoleAdmin }

// Notifier delivers best-effort customer notifications. Implementations must
// not block the caller and must swallow failures (logging them) so that a
// notification problem never corrupts order state.
type Notifier interface {
	StatusChanged(ctx context.Context, o *Order, status Status, note string)
	Cancelled(ctx context.Context, o *Order)
}

// Service drives the order status state machine. Every mutation goes through
// a compare-and-swap transition that appends one status event.
type Service struct {
	orders   Repository
	notifier Notifier
	now      func() time.Time
}

// NewService creates the order state machine service.
func NewService(orders Repository, notifier Notifier) *Service {
	return &Service{orders: orders, notifier: notifier, now: time.Now}
}

// Get returns an order, enforcing that customers only see their own.
func (s *Service) Get(ctx context.Context, id int64, actor Actor) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin() && o.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	return o, nil
}

// History returns the order's status events, oldest first.
func (s *Service) History(ctx context.Context, id int64, actor Actor) ([]StatusEvent, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.orders.ListEvents(ctx, id)
}

// ListByUser returns a user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64, actor Actor) ([]Order, error) {
	if !actor.Admin() && userID != actor.UserID {
		return nil, ErrForbidden
	}
	return s.orders.ListByUser(ctx, userID)
}

// ListByStatus returns orders in a given status with paging. Admin only.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit, offset int, actor Actor) ([]Order, error) {
	if !actor.Admin() {
		return nil, ErrForbidden
	}
	return s.orders.ListByStatus(ctx, status, limit, offset)
}

// UpdateStatus advances an order through the delivery pipeline (or to a
// post-delivery status). Operator only; cancellations go through Cancel.
// Shipping requires a tracking number supplied atomically with the
// transition and stamps the shipped date; delivery stamps the delivered
// date. A concurrent change of the order's status surfaces as
// ErrStaleTransition.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, to Status, trackingNumber, note string, actor Actor) (*Order, error) {
	if !actor.Admin() {
		return nil, ErrForbidden
	}
	if !to.Valid() {
		return nil, errors.Errorf("unknown order status %d", int(to))
	}
	if to == StatusCancelled {
		return s.Cancel(ctx, orderID, actor)
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := canTransition(o.Status, to); err != nil {
		return nil, err
	}

	t := Transition{
		OrderID: orderID,
		From:    o.Status,
		To:      to,
		Note:    note,
		ActorID: &actor.UserID,
	}
	if t.Note == "" {
		t.Note = "Status updated by admin"
	}

	now := s.now()
	switch to {
	case StatusShipped:
		if trackingNumber == "" {
			return nil, ErrTrackingRequired
		}
		t.TrackingNumber = &trackingNumber
		t.ShippedAt = &now
	case StatusDelivered:
		t.DeliveredAt = &now
	}

	if err := s.apply(ctx, o, t); err != nil {
		return nil, err
	}
	return o, nil
}

// Cancel marks an order as cancelled. Customers may cancel their own orders
// up to and including Packed; past that the request is rejected with
// ErrCannotCancelAfterShipping. Admins may force-cancel any non-terminal
// order. Cancellation is a status change, never a deletion.
func (s *Service) Cancel(ctx context.Context, orderID int64, actor Actor) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !actor.Admin() && o.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	// Terminal first: cancelling a cancelled or refunded order is an invalid
	// transition, not a shipping problem.
	if o.Status.Terminal() {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}

	note := "Cancelled by admin"
	if !actor.Admin() {
		if o.Status > StatusPacked {
			return nil, ErrCannotCancelAfterShipping
		}
		note = "Cancelled by customer"
	}

	t := Transition{
		OrderID: orderID,
		From:    o.Status,
		To:      StatusCancelled,
		Note:    note,
		ActorID: &actor.UserID,
	}
	if err := s.apply(ctx, o, t); err != nil {
		return nil, err
	}
	return o, nil
}

// AutoDeliver promotes a shipped order to Delivered on behalf of the
// background sweep. The actor is the system (nil on the event); the CAS on
// the order's selected status makes concurrent admin updates a clean skip.
func (s *Service) AutoDeliver(ctx context.Context, o *Order) error {
	if o.Status != StatusShipped && o.Status != StatusOutForDelivery {
		return &InvalidTransitionError{From: o.Status, To: StatusDelivered}
	}

	now := s.now()
	t := Transition{
		OrderID:     o.ID,
		From:        o.Status,
		To:          StatusDelivered,
		DeliveredAt: &now,
		Note:        "Auto-marked as delivered (grace period after shipping elapsed)",
		ActorID:     nil,
	}
	return s.apply(ctx, o, t)
}

// apply runs the transition and, on success, updates the in-memory order and
// fires the notification side effect. Notification failure never rolls back
// the state change; the notifier owns logging and dropping.
func (s *Service) apply(ctx context.Context, o *Order, t Transition) error {
	if err := s.orders.Transition(ctx, t); err != nil {
		if errors.Is(err, ErrStaleTransition) || errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Wrap(err, "apply transition")
	}

	o.Status = t.To
	if t.TrackingNumber != nil {
		o.TrackingNumber = t.TrackingNumber
	}
	if t.ShippedAt != nil {
		o.ShippedDate = t.ShippedAt
	}
	if t.DeliveredAt != nil {
		o.DeliveredDate = t.DeliveredAt
	}

	if s.notifier != nil && t.To.notifiable() {
		if t.To == StatusCancelled {
			s.notifier.Cancelled(ctx, o)
		} else {
			s.notifier.StatusChanged(ctx, o, t.To, t.Note)
		}
	}
	return nil
}
