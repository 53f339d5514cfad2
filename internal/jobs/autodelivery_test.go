package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayurmed/orders/internal/domain/order"
)

type mockOrderRepo struct {
	order.Repository

	shipped   []order.Order
	listErr   error
	gotCutoff time.Time
}

func (m *mockOrderRepo) ListShippedBefore(_ context.Context, cutoff time.Time) ([]order.Order, error) {
	m.gotCutoff = cutoff
	return m.shipped, m.listErr
}

type mockDeliverer struct {
	mu        sync.Mutex
	errByID   map[int64]error
	delivered []int64
}

func (m *mockDeliverer) AutoDeliver(_ context.Context, o *order.Order) error {
	if err := m.errByID[o.ID]; err != nil {
		return err
	}
	m.mu.Lock()
	m.delivered = append(m.delivered, o.ID)
	m.mu.Unlock()
	return nil
}

func (m *mockDeliverer) deliveredIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.delivered...)
}

func shippedOrder(id int64) order.Order {
	return order.Order{ID: id, Status: order.StatusShipped}
}

func TestSweep_DeliversEligibleOrders(t *testing.T) {
	repo := &mockOrderRepo{shipped: []order.Order{shippedOrder(1), shippedOrder(2)}}
	svc := &mockDeliverer{}

	job := NewAutoDelivery(repo, svc, 5*24*time.Hour, time.Hour, time.Minute)
	fixed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	job.Sweep(context.Background())

	assert.Equal(t, []int64{1, 2}, svc.deliveredIDs())
	assert.Equal(t, fixed.Add(-5*24*time.Hour), repo.gotCutoff)
}

func TestSweep_ContinuesPastFailures(t *testing.T) {
	repo := &mockOrderRepo{shipped: []order.Order{shippedOrder(1), shippedOrder(2), shippedOrder(3)}}
	svc := &mockDeliverer{errByID: map[int64]error{2: errors.New("db down")}}

	job := NewAutoDelivery(repo, svc, time.Hour, time.Hour, time.Minute)
	job.Sweep(context.Background())

	assert.Equal(t, []int64{1, 3}, svc.deliveredIDs())
}

func TestSweep_StaleTransitionIsNotAFailure(t *testing.T) {
	repo := &mockOrderRepo{shipped: []order.Order{shippedOrder(1)}}
	svc := &mockDeliverer{errByID: map[int64]error{1: order.ErrStaleTransition}}

	job := NewAutoDelivery(repo, svc, time.Hour, time.Hour, time.Minute)
	job.Sweep(context.Background())

	assert.Empty(t, svc.deliveredIDs())
}

func TestSweep_ListFailureAborts(t *testing.T) {
	repo := &mockOrderRepo{listErr: errors.New("db down")}
	svc := &mockDeliverer{}

	job := NewAutoDelivery(repo, svc, time.Hour, time.Hour, time.Minute)
	job.Sweep(context.Background())

	assert.Empty(t, svc.deliveredIDs())
}

func TestRun_SweepsAfterInitialDelayAndStopsOnCancel(t *testing.T) {
	repo := &mockOrderRepo{shipped: []order.Order{shippedOrder(1)}}
	svc := &mockDeliverer{}

	job := NewAutoDelivery(repo, svc, time.Hour, time.Hour, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(svc.deliveredIDs()) > 0
	}, time.Second, 5*time.Millisecond, "initial sweep never ran")

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
