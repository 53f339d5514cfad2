// Package jobs holds the background workers driven by the order server.
package jobs

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ayurmed/orders/internal/domain/order"
)

// Deliverer promotes a single shipped order to Delivered. Satisfied by
// order.Service.
type Deliverer interface {
	AutoDeliver(ctx context.Context, o *order.Order) error
}

// AutoDelivery sweeps shipped orders whose grace period has elapsed and marks
// them delivered. Orders an admin already moved on are skipped by the CAS on
// the transition, so the sweep can safely race manual updates.
type AutoDelivery struct {
	orders   order.Repository
	service  Deliverer
	grace    time.Duration
	interval time.Duration
	initial  time.Duration
	now      func() time.Time
}

// NewAutoDelivery creates the sweep. grace is how long after shipping an
// order is left alone; interval is the period between sweeps; initial is the
// delay before the first sweep after startup.
func NewAutoDelivery(orders order.Repository, service Deliverer, grace, interval, initial time.Duration) *AutoDelivery {
	return &AutoDelivery{
		orders:   orders,
		service:  service,
		grace:    grace,
		interval: interval,
		initial:  initial,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, sweeping once shortly after startup and
// then on every interval tick.
func (j *AutoDelivery) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	lg.Info("auto-delivery sweep started",
		zap.Duration("grace", j.grace),
		zap.Duration("interval", j.interval))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(j.initial):
	}
	j.Sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: every Shipped or OutForDelivery order whose shipped
// date is older than the grace period gets auto-delivered. One bad order does
// not stop the pass.
func (j *AutoDelivery) Sweep(ctx context.Context) {
	lg := zctx.From(ctx)

	cutoff := j.now().Add(-j.grace)
	orders, err := j.orders.ListShippedBefore(ctx, cutoff)
	if err != nil {
		lg.Error("auto-delivery listing failed", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		return
	}

	var delivered, skipped, failed int
	for i := range orders {
		o := &orders[i]
		err := j.service.AutoDeliver(ctx, o)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, order.ErrStaleTransition):
			// Someone moved the order while we were sweeping.
			skipped++
		default:
			failed++
			lg.Error("auto-delivery failed for order",
				zap.Int64("order_id", o.ID),
				zap.Error(err))
		}
	}

	lg.Info("auto-delivery sweep finished",
		zap.Int("delivered", delivered),
		zap.Int("stale_skipped", skipped),
		zap.Int("failed", failed))
}
