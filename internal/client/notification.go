package client

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ayurmed/orders/internal/domain/order"
)

// notifyTask is one outbound send: an endpoint suffix plus a prebuilt JSON
// payload.
type notifyTask struct {
	kind    string
	payload []byte
}

// NotificationDispatcher delivers customer notifications to the notification
// service. Sends are fire-and-forget: they are queued to a bounded channel
// and delivered by background workers, detached from the request that
// triggered them. A full queue or a failed send is logged and dropped, never
// surfaced to the caller and never retried synchronously.
type NotificationDispatcher struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	queue   chan notifyTask
	lg      *zap.Logger
	g       *errgroup.Group
}

// NewNotificationDispatcher creates the dispatcher and starts its workers.
// Workers drain until ctx is cancelled; call Close to wait for them.
func NewNotificationDispatcher(ctx context.Context, baseURL string, timeout time.Duration, workers, queueSize int, lg *zap.Logger) *NotificationDispatcher {
	d := &NotificationDispatcher{
		baseURL: baseURL,
		http:    &http.Client{},
		timeout: timeout,
		queue:   make(chan notifyTask, queueSize),
		lg:      lg,
	}

	g, ctx := errgroup.WithContext(ctx)
	d.g = g
	for range workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case t := <-d.queue:
					d.send(ctx, t)
				}
			}
		})
	}
	return d
}

// Close waits for the workers to exit. Queued but unsent notifications are
// dropped; they are best-effort by contract.
func (d *NotificationDispatcher) Close() {
	_ = d.g.Wait()
}

func (d *NotificationDispatcher) enqueue(ctx context.Context, t notifyTask) {
	select {
	case d.queue <- t:
	default:
		zctx.From(ctx).Warn("notification queue full, dropping",
			zap.String("kind", t.kind))
	}
}

func (d *NotificationDispatcher) send(ctx context.Context, t notifyTask) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	url := d.baseURL + "/send-" + t.kind
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(t.payload))
	if err != nil {
		d.lg.Warn("notification request build failed", zap.String("kind", t.kind), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		d.lg.Warn("notification send failed", zap.String("kind", t.kind), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.lg.Warn("notification rejected",
			zap.String("kind", t.kind),
			zap.Int("status", resp.StatusCode))
	}
}

// OrderConfirmation queues the post-checkout confirmation for one order.
func (d *NotificationDispatcher) OrderConfirmation(ctx context.Context, o *order.Order) {
	d.enqueue(ctx, notifyTask{kind: "order-confirmation", payload: encodeOrderEvent(o, "", "")})
}

// StatusChanged queues a delivery status update notification.
// Implements order.Notifier.
func (d *NotificationDispatcher) StatusChanged(ctx context.Context, o *order.Order, status order.Status, note string) {
	d.enqueue(ctx, notifyTask{kind: "status-update", payload: encodeOrderEvent(o, status.Label(), note)})
}

// Cancelled queues a cancellation notification. Implements order.Notifier.
func (d *NotificationDispatcher) Cancelled(ctx context.Context, o *order.Order) {
	d.enqueue(ctx, notifyTask{kind: "order-cancelled", payload: encodeOrderEvent(o, order.StatusCancelled.Label(), "")})
}

func encodeOrderEvent(o *order.Order, statusName, note string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_id")
	e.Int64(o.ID)
	e.FieldStart("user_id")
	e.Int64(o.UserID)
	e.FieldStart("item_id")
	e.Int64(o.ItemID)
	e.FieldStart("quantity")
	e.Int(o.Quantity)
	e.FieldStart("final_amount")
	e.Str(o.FinalAmount.StringFixed(2))
	if statusName != "" {
		e.FieldStart("status")
		e.Str(statusName)
	}
	if note != "" {
		e.FieldStart("note")
		e.Str(note)
	}
	if o.TrackingNumber != nil {
		e.FieldStart("tracking_number")
		e.Str(*o.TrackingNumber)
	}
	if o.EstimatedDelivery != nil {
		e.FieldStart("estimated_delivery")
		e.Str(o.EstimatedDelivery.Format(time.DateOnly))
	}
	e.ObjEnd()
	return e.Bytes()
}
