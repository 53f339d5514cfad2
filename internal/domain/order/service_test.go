package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	byID          map[int64]*Order
	transitions   []Transition
	transitionErr error
}

func newMockOrderRepo(orders ...*Order) *mockOrderRepo {
	byID := make(map[int64]*Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	return &mockOrderRepo{byID: byID}
}

func (m *mockOrderRepo) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID int64) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListByStatus(_ context.Context, status Status, _, _ int) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListEvents(_ context.Context, _ int64) ([]StatusEvent, error) {
	return nil, nil
}

func (m *mockOrderRepo) ListShippedBefore(_ context.Context, _ time.Time) ([]Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) Transition(_ context.Context, t Transition) error {
	if m.transitionErr != nil {
		return m.transitionErr
	}
	o, ok := m.byID[t.OrderID]
	if !ok {
		return ErrNotFound
	}
	if o.Status != t.From {
		return ErrStaleTransition
	}
	o.Status = t.To
	m.transitions = append(m.transitions, t)
	return nil
}

type mockNotifier struct {
	statusChanges []Status
	cancellations int
}

func (m *mockNotifier) StatusChanged(_ context.Context, _ *Order, status Status, _ string) {
	m.statusChanges = append(m.statusChanges, status)
}

func (m *mockNotifier) Cancelled(_ context.Context, _ *Order) {
	m.cancellations++
}

// --- Helpers ---

var (
	admin    = Actor{UserID: 99, Role: RoleAdmin}
	customer = Actor{UserID: 7, Role: "patient"}
)

func confirmedOrder(id int64, status Status) *Order {
	return &Order{ID: id, UserID: customer.UserID, ItemID: 42, Quantity: 1, Status: status}
}

func newService(repo Repository, n Notifier) *Service {
	s := NewService(repo, n)
	s.now = func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	return s
}

// --- Tests ---

func TestService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		tracking string
		wantErr  error
	}{
		{name: "confirmed to processing", from: StatusConfirmed, to: StatusProcessing},
		{name: "skip forward to packed", from: StatusConfirmed, to: StatusPacked},
		{name: "packed to shipped with tracking", from: StatusPacked, to: StatusShipped, tracking: "TRK123"},
		{name: "shipped to out for delivery", from: StatusShipped, to: StatusOutForDelivery},
		{name: "out for delivery to delivered", from: StatusOutForDelivery, to: StatusDelivered},
		{name: "shipped without tracking rejected", from: StatusPacked, to: StatusShipped, wantErr: ErrTrackingRequired},
		{name: "backwards rejected", from: StatusDelivered, to: StatusProcessing, wantErr: &InvalidTransitionError{}},
		{name: "delivered cannot re-ship", from: StatusDelivered, to: StatusShipped, wantErr: &InvalidTransitionError{}},
		{name: "pending payment cannot advance", from: StatusPendingPayment, to: StatusProcessing, wantErr: &InvalidTransitionError{}},
		{name: "confirm via update rejected", from: StatusPendingPayment, to: StatusConfirmed, wantErr: &InvalidTransitionError{}},
		{name: "cancelled is terminal", from: StatusCancelled, to: StatusProcessing, wantErr: &InvalidTransitionError{}},
		{name: "refunded is terminal", from: StatusRefunded, to: StatusReturned, wantErr: &InvalidTransitionError{}},
		{name: "returned after delivery", from: StatusDelivered, to: StatusReturned},
		{name: "refund after return", from: StatusReturned, to: StatusRefunded},
		{name: "return before delivery rejected", from: StatusShipped, to: StatusReturned, wantErr: &InvalidTransitionError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockOrderRepo(confirmedOrder(1, tt.from))
			svc := newService(repo, &mockNotifier{})

			got, err := svc.UpdateStatus(context.Background(), 1, tt.to, tt.tracking, "", admin)

			if tt.wantErr != nil {
				var invalid *InvalidTransitionError
				if errors.As(tt.wantErr, &invalid) {
					require.ErrorAs(t, err, &invalid)
					assert.Equal(t, tt.from, invalid.From)
				} else {
					require.ErrorIs(t, err, tt.wantErr)
				}
				assert.Empty(t, repo.transitions)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
			require.Len(t, repo.transitions, 1)
			assert.Equal(t, tt.from, repo.transitions[0].From)
		})
	}
}

func TestService_UpdateStatusSideEffects(t *testing.T) {
	repo := newMockOrderRepo(confirmedOrder(1, StatusPacked))
	notifier := &mockNotifier{}
	svc := newService(repo, notifier)

	got, err := svc.UpdateStatus(context.Background(), 1, StatusShipped, "TRK42", "left warehouse", admin)
	require.NoError(t, err)

	require.NotNil(t, got.TrackingNumber)
	assert.Equal(t, "TRK42", *got.TrackingNumber)
	require.NotNil(t, got.ShippedDate)

	require.Len(t, repo.transitions, 1)
	tr := repo.transitions[0]
	assert.Equal(t, "left warehouse", tr.Note)
	require.NotNil(t, tr.ActorID)
	assert.Equal(t, admin.UserID, *tr.ActorID)

	assert.Equal(t, []Status{StatusShipped}, notifier.statusChanges)
}

func TestService_UpdateStatusNoNotificationBelowShipped(t *testing.T) {
	repo := newMockOrderRepo(confirmedOrder(1, StatusConfirmed))
	notifier := &mockNotifier{}
	svc := newService(repo, notifier)

	_, err := svc.UpdateStatus(context.Background(), 1, StatusProcessing, "", "", admin)
	require.NoError(t, err)
	assert.Empty(t, notifier.statusChanges)
}

func TestService_UpdateStatusRequiresAdmin(t *testing.T) {
	repo := newMockOrderRepo(confirmedOrder(1, StatusConfirmed))
	svc := newService(repo, &mockNotifier{})

	_, err := svc.UpdateStatus(context.Background(), 1, StatusProcessing, "", "", customer)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestService_UpdateStatusStale(t *testing.T) {
	repo := newMockOrderRepo(confirmedOrder(1, StatusConfirmed))
	repo.transitionErr = ErrStaleTransition
	svc := newService(repo, &mockNotifier{})

	_, err := svc.UpdateStatus(context.Background(), 1, StatusProcessing, "", "", admin)
	require.ErrorIs(t, err, ErrStaleTransition)
}

func TestService_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		actor   Actor
		wantErr error
	}{
		{name: "customer cancels pending payment", status: StatusPendingPayment, actor: customer},
		{name: "customer cancels packed", status: StatusPacked, actor: customer},
		{name: "customer cannot cancel shipped", status: StatusShipped, actor: customer, wantErr: ErrCannotCancelAfterShipping},
		{name: "customer cannot cancel delivered", status: StatusDelivered, actor: customer, wantErr: ErrCannotCancelAfterShipping},
		{name: "admin cancels shipped", status: StatusShipped, actor: admin},
		{name: "admin cannot cancel refunded", status: StatusRefunded, actor: admin, wantErr: &InvalidTransitionError{}},
		{name: "customer cannot re-cancel", status: StatusCancelled, actor: customer, wantErr: &InvalidTransitionError{}},
		{name: "customer cannot cancel refunded", status: StatusRefunded, actor: customer, wantErr: &InvalidTransitionError{}},
		{name: "other customer forbidden", status: StatusPacked, actor: Actor{UserID: 1234}, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockOrderRepo(confirmedOrder(1, tt.status))
			notifier := &mockNotifier{}
			svc := newService(repo, notifier)

			got, err := svc.Cancel(context.Background(), 1, tt.actor)

			if tt.wantErr != nil {
				var invalid *InvalidTransitionError
				if errors.As(tt.wantErr, &invalid) {
					require.ErrorAs(t, err, &invalid)
				} else {
					require.ErrorIs(t, err, tt.wantErr)
				}
				assert.Equal(t, 0, notifier.cancellations)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, got.Status)
			assert.Equal(t, 1, notifier.cancellations)
		})
	}
}

func TestService_AutoDeliver(t *testing.T) {
	repo := newMockOrderRepo(confirmedOrder(1, StatusShipped))
	notifier := &mockNotifier{}
	svc := newService(repo, notifier)

	o, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, svc.AutoDeliver(context.Background(), o))
	assert.Equal(t, StatusDelivered, o.Status)
	require.NotNil(t, o.DeliveredDate)

	require.Len(t, repo.transitions, 1)
	assert.Nil(t, repo.transitions[0].ActorID, "auto-delivery is a system action")
	assert.Equal(t, []Status{StatusDelivered}, notifier.statusChanges)
}

func TestService_AutoDeliverSkipsMovedOrders(t *testing.T) {
	repo := newMockOrderRepo(confirmedOrder(1, StatusCancelled))
	svc := newService(repo, &mockNotifier{})

	// Snapshot claims Shipped but the row has moved on since selection.
	stale := confirmedOrder(1, StatusShipped)
	err := svc.AutoDeliver(context.Background(), stale)
	require.ErrorIs(t, err, ErrStaleTransition)
	assert.Empty(t, repo.transitions)
}

func TestService_GetOwnership(t *testing.T) {
	repo := newMockOrderRepo(confirmedOrder(1, StatusConfirmed))
	svc := newService(repo, &mockNotifier{})

	_, err := svc.Get(context.Background(), 1, customer)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 1, Actor{UserID: 555})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), 1, admin)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 404, admin)
	require.ErrorIs(t, err, ErrNotFound)
}
