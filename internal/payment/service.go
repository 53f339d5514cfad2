// Package payment creates payment intents at the gateway and reconciles
// signed payment confirmations onto orders.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ayurmed/orders/internal/client"
	"github.com/ayurmed/orders/internal/domain/order"
)

// DefaultCurrency is used when the caller does not specify one.
const DefaultCurrency = "INR"

// ErrSignatureMismatch is returned when the callback signature does not
// match the recomputed HMAC. No order is touched in that case.
var ErrSignatureMismatch = errors.New("invalid payment signature")

// Intent is a created gateway payment order the frontend uses to open the
// hosted checkout.
type Intent struct {
	GatewayOrderID string
	Amount         decimal.Decimal
	Currency       string
	Receipt        string
}

// VerifyRequest is a signed payment confirmation callback covering one or
// more orders from the same checkout.
type VerifyRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	OrderIDs         []int64
	Actor            order.Actor
}

// VerifyResult reports how many orders the callback confirmed. Replayed
// callbacks confirm zero new orders and are still successful.
type VerifyResult struct {
	Confirmed        int
	AlreadyConfirmed int
}

// Service is the payment reconciliation component.
type Service struct {
	gateway   client.Gateway
	orders    order.Repository
	keySecret []byte
}

// NewService creates the payment service. keySecret is the gateway merchant
// secret used both for intent auth and callback signature verification.
func NewService(gateway client.Gateway, orders order.Repository, keySecret []byte) *Service {
	return &Service{gateway: gateway, orders: orders, keySecret: keySecret}
}

// CreateIntent registers a payment order at the gateway for the given
// amount. Gateway failure surfaces to the caller; it is not degradable.
func (s *Service) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*Intent, error) {
	if !amount.IsPositive() {
		return nil, errors.New("amount must be positive")
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	receipt := "rcpt_" + uuid.NewString()
	id, err := s.gateway.CreateOrder(ctx, amount, currency, receipt)
	if err != nil {
		return nil, errors.Wrap(err, "create gateway order")
	}

	return &Intent{
		GatewayOrderID: id,
		Amount:         amount,
		Currency:       currency,
		Receipt:        receipt,
	}, nil
}

// Signature computes the hex HMAC-SHA256 over "gatewayOrderID|gatewayPaymentID".
func Signature(secret []byte, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the callback signature and, on match, promotes every listed
// order from PendingPayment to Confirmed with the gateway ids persisted and
// one status event appended per order.
//
// The call is all-or-nothing on resolution: if any order id does not exist,
// nothing is confirmed. It is idempotent: orders already at Confirmed or
// beyond are skipped without new events or notifications, so replaying the
// same valid callback is a no-op.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	expected := Signature(s.keySecret, req.GatewayOrderID, req.GatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(req.Signature)) {
		return nil, ErrSignatureMismatch
	}
	if len(req.OrderIDs) == 0 {
		return nil, errors.New("no order ids supplied")
	}

	// Resolve every order before touching any of them.
	loaded := make([]*order.Order, 0, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		o, err := s.orders.Get(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve order %d", id)
		}
		loaded = append(loaded, o)
	}

	var actorID *int64
	if req.Actor.UserID != 0 {
		actorID = &req.Actor.UserID
	}
	method := "online"

	res := &VerifyResult{}
	for _, o := range loaded {
		if o.Status >= order.StatusConfirmed {
			res.AlreadyConfirmed++
			continue
		}

		t := order.Transition{
			OrderID:       o.ID,
			From:          order.StatusPendingPayment,
			To:            order.StatusConfirmed,
			PaymentMethod: &method,
			Gateway: &order.GatewayRefs{
				OrderID:   req.GatewayOrderID,
				PaymentID: req.GatewayPaymentID,
				Signature: req.Signature,
			},
			Note:    "Payment successful (payment id " + req.GatewayPaymentID + ")",
			ActorID: actorID,
		}
		if err := s.orders.Transition(ctx, t); err != nil {
			if errors.Is(err, order.ErrStaleTransition) {
				// A concurrent replay confirmed it first.
				res.AlreadyConfirmed++
				continue
			}
			return nil, errors.Wrapf(err, "confirm order %d", o.ID)
		}
		res.Confirmed++
	}
	return res, nil
}
