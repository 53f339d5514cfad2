package payment

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayurmed/orders/internal/domain/order"
)

// --- Mock implementations ---

type mockGateway struct {
	id  string
	err error

	gotAmount   decimal.Decimal
	gotCurrency string
}

func (m *mockGateway) CreateOrder(_ context.Context, amount decimal.Decimal, currency, _ string) (string, error) {
	m.gotAmount = amount
	m.gotCurrency = currency
	return m.id, m.err
}

type mockOrderRepo struct {
	order.Repository

	byID        map[int64]*order.Order
	transitions []order.Transition
}

func newRepo(orders ...*order.Order) *mockOrderRepo {
	byID := make(map[int64]*order.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	return &mockOrderRepo{byID: byID}
}

func (m *mockOrderRepo) Get(_ context.Context, id int64) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) Transition(_ context.Context, t order.Transition) error {
	o, ok := m.byID[t.OrderID]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != t.From {
		return order.ErrStaleTransition
	}
	o.Status = t.To
	m.transitions = append(m.transitions, t)
	return nil
}

// --- Tests ---

const secret = "test-key-secret"

func pendingOrder(id int64) *order.Order {
	return &order.Order{ID: id, UserID: 7, Status: order.StatusPendingPayment}
}

func validRequest(orderIDs ...int64) VerifyRequest {
	return VerifyRequest{
		GatewayOrderID:   "ord_abc",
		GatewayPaymentID: "pay_xyz",
		Signature:        Signature([]byte(secret), "ord_abc", "pay_xyz"),
		OrderIDs:         orderIDs,
		Actor:            order.Actor{UserID: 7},
	}
}

func TestCreateIntent(t *testing.T) {
	gw := &mockGateway{id: "ord_123"}
	svc := NewService(gw, newRepo(), []byte(secret))

	intent, err := svc.CreateIntent(context.Background(), decimal.RequireFromString("525.50"), "")
	require.NoError(t, err)

	assert.Equal(t, "ord_123", intent.GatewayOrderID)
	assert.Equal(t, DefaultCurrency, intent.Currency)
	assert.NotEmpty(t, intent.Receipt)
	assert.True(t, gw.gotAmount.Equal(decimal.RequireFromString("525.50")))
}

func TestCreateIntent_GatewayFailureSurfaces(t *testing.T) {
	gw := &mockGateway{err: errors.New("gateway down")}
	svc := NewService(gw, newRepo(), []byte(secret))

	_, err := svc.CreateIntent(context.Background(), decimal.NewFromInt(100), "INR")
	require.Error(t, err)
}

func TestCreateIntent_RejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(&mockGateway{}, newRepo(), []byte(secret))

	_, err := svc.CreateIntent(context.Background(), decimal.Zero, "INR")
	require.Error(t, err)
}

func TestVerify_ConfirmsAllOrders(t *testing.T) {
	repo := newRepo(pendingOrder(1), pendingOrder(2))
	svc := NewService(&mockGateway{}, repo, []byte(secret))

	res, err := svc.Verify(context.Background(), validRequest(1, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Confirmed)
	assert.Equal(t, 0, res.AlreadyConfirmed)
	require.Len(t, repo.transitions, 2)

	tr := repo.transitions[0]
	assert.Equal(t, order.StatusPendingPayment, tr.From)
	assert.Equal(t, order.StatusConfirmed, tr.To)
	require.NotNil(t, tr.Gateway)
	assert.Equal(t, "ord_abc", tr.Gateway.OrderID)
	assert.Equal(t, "pay_xyz", tr.Gateway.PaymentID)
	require.NotNil(t, tr.PaymentMethod)
	assert.Equal(t, "online", *tr.PaymentMethod)
}

func TestVerify_SignatureMismatchTouchesNothing(t *testing.T) {
	repo := newRepo(pendingOrder(1))
	svc := NewService(&mockGateway{}, repo, []byte(secret))

	req := validRequest(1)
	req.Signature = "forged"

	_, err := svc.Verify(context.Background(), req)
	require.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Empty(t, repo.transitions)
	assert.Equal(t, order.StatusPendingPayment, repo.byID[1].Status)
}

func TestVerify_UnknownOrderConfirmsNothing(t *testing.T) {
	repo := newRepo(pendingOrder(1))
	svc := NewService(&mockGateway{}, repo, []byte(secret))

	_, err := svc.Verify(context.Background(), validRequest(1, 404))
	require.ErrorIs(t, err, order.ErrNotFound)
	assert.Empty(t, repo.transitions, "no partial confirmation")
	assert.Equal(t, order.StatusPendingPayment, repo.byID[1].Status)
}

func TestVerify_ReplayIsIdempotent(t *testing.T) {
	repo := newRepo(pendingOrder(1), pendingOrder(2))
	svc := NewService(&mockGateway{}, repo, []byte(secret))

	first, err := svc.Verify(context.Background(), validRequest(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, first.Confirmed)

	second, err := svc.Verify(context.Background(), validRequest(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Confirmed)
	assert.Equal(t, 2, second.AlreadyConfirmed)

	// Exactly one transition (and therefore one status event) per order.
	assert.Len(t, repo.transitions, 2)
}

func TestVerify_SkipsOrdersAlreadyPastConfirmed(t *testing.T) {
	shipped := pendingOrder(2)
	shipped.Status = order.StatusShipped

	repo := newRepo(pendingOrder(1), shipped)
	svc := NewService(&mockGateway{}, repo, []byte(secret))

	res, err := svc.Verify(context.Background(), validRequest(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, 1, res.AlreadyConfirmed)
	assert.Equal(t, order.StatusShipped, repo.byID[2].Status)
}

func TestSignature(t *testing.T) {
	a := Signature([]byte(secret), "ord_abc", "pay_xyz")
	b := Signature([]byte(secret), "ord_abc", "pay_xyz")
	c := Signature([]byte("other"), "ord_abc", "pay_xyz")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
