package application

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sushiko/orderflow/internal/order/domain"
)

// fakeRepo mirrors the transactional contract of the postgres repository:
// the status update is conditioned on the expected previous status, and a
// history record is appended only when the update succeeds.
type fakeRepo struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	history map[string][]domain.TransitionRecord
	events  [][]byte
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:  map[string]domain.Order{},
		history: map[string][]domain.TransitionRecord{},
	}
}

func (r *fakeRepo) CreateWithOutbox(_ context.Context, o domain.Order, seed domain.TransitionRecord, _ string, payload []byte, _ map[string]string, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.Number] = o
	r.history[o.Number] = append(r.history[o.Number], seed)
	r.events = append(r.events, payload)
	return nil
}

func (r *fakeRepo) UpdateStatusWithOutbox(_ context.Context, number string, expected domain.OrderStatus, rec domain.TransitionRecord, _ string, payload []byte, _ map[string]string, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[number]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != expected {
		return domain.ErrConcurrentModification
	}
	o.Status = rec.New
	o.UpdatedAt = rec.At
	r.orders[number] = o
	r.history[number] = append(r.history[number], rec)
	r.events = append(r.events, payload)
	return nil
}

func (r *fakeRepo) SetPaymentStatus(_ context.Context, number string, status domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[number]
	if !ok {
		return domain.ErrNotFound
	}
	o.PaymentStatus = status
	r.orders[number] = o
	return nil
}

func (r *fakeRepo) GetByNumber(_ context.Context, number string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[number]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (r *fakeRepo) ListHistory(_ context.Context, number string) ([]domain.TransitionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := make([]domain.TransitionRecord, len(r.history[number]))
	copy(recs, r.history[number])
	return recs, nil
}

func placeTestOrder(t *testing.T, svc *Service, fulfillment domain.FulfillmentType, method domain.PaymentMethod) domain.Order {
	t.Helper()
	customer := "cust-99"
	draft := domain.NewOrder(&customer, []domain.LineItem{
		{Name: "spicy tuna roll", UnitPrice: decimal.RequireFromString("9.00"), Quantity: 1},
	}, fulfillment, method, decimal.RequireFromString("2.50"), decimal.RequireFromString("0.70"))
	o, err := svc.PlaceOrder(context.Background(), draft, nil, "")
	require.NoError(t, err)
	return o
}

func TestPlaceOrderSeedsHistory(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	o := placeTestOrder(t, svc, domain.FulfillmentDelivery, domain.PaymentCard)

	recs, err := svc.History(context.Background(), o.Number)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].Previous)
	assert.Equal(t, domain.StatusReceived, recs[0].New)
	assert.Len(t, repo.events, 1)
}

func TestChangeStatusAppendsExactlyOneRecord(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	o := placeTestOrder(t, svc, domain.FulfillmentDelivery, domain.PaymentCard)

	updated, err := svc.ChangeStatus(context.Background(), o.Number, domain.StatusAccepted, nil, "", nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, updated.Status)

	recs, _ := svc.History(context.Background(), o.Number)
	require.Len(t, recs, 2)
	assert.Equal(t, domain.StatusAccepted, recs[1].New)
	assert.Len(t, repo.events, 2)
}

func TestNoOpChangesNothing(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	o := placeTestOrder(t, svc, domain.FulfillmentDelivery, domain.PaymentCard)

	_, err := svc.ChangeStatus(context.Background(), o.Number, domain.StatusReceived, nil, "", nil, "")
	assert.ErrorIs(t, err, domain.ErrNoOpTransition)

	recs, _ := svc.History(context.Background(), o.Number)
	assert.Len(t, recs, 1)
	assert.Len(t, repo.events, 1, "no-op must not publish")
}

func TestPaymentGuardAppendsNothing(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	o := placeTestOrder(t, svc, domain.FulfillmentDelivery, domain.PaymentCard)

	for _, next := range []domain.OrderStatus{domain.StatusAccepted, domain.StatusInPreparation, domain.StatusReady, domain.StatusOutForDelivery} {
		_, err := svc.ChangeStatus(context.Background(), o.Number, next, nil, "", nil, "")
		require.NoError(t, err)
	}
	before, _ := svc.History(context.Background(), o.Number)

	_, err := svc.ChangeStatus(context.Background(), o.Number, domain.StatusCompleted, nil, "", nil, "")
	assert.ErrorIs(t, err, domain.ErrPaymentNotSettled)

	after, _ := svc.History(context.Background(), o.Number)
	assert.Equal(t, len(before), len(after))
}

// The walkthrough: delivery order, card payment, full lifecycle including a
// rejected shortcut and a payment retry.
func TestDeliveryLifecycleWalkthrough(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()
	o := placeTestOrder(t, svc, domain.FulfillmentDelivery, domain.PaymentCard)

	_, err := svc.ChangeStatus(ctx, o.Number, domain.StatusAccepted, nil, "", nil, "")
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, o.Number, domain.StatusReady, nil, "", nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "must pass through in_preparation first")

	_, err = svc.ChangeStatus(ctx, o.Number, domain.StatusInPreparation, nil, "", nil, "")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, o.Number, domain.StatusReady, nil, "", nil, "")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, o.Number, domain.StatusOutForDelivery, nil, "", nil, "")
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, o.Number, domain.StatusCompleted, nil, "", nil, "")
	assert.ErrorIs(t, err, domain.ErrPaymentNotSettled)

	_, err = svc.SettlePayment(ctx, o.Number, domain.PaymentPaid)
	require.NoError(t, err)
	final, err := svc.ChangeStatus(ctx, o.Number, domain.StatusCompleted, nil, "", nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, final.Status)

	// Replaying the ledger reconstructs the live status.
	recs, err := svc.History(ctx, o.Number)
	require.NoError(t, err)
	var replayed domain.OrderStatus
	for _, rec := range recs {
		replayed = rec.New
	}
	live, _ := svc.Get(ctx, o.Number)
	assert.Equal(t, live.Status, replayed)
}

func TestConcurrentTransitionOneWins(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()
	o := placeTestOrder(t, svc, domain.FulfillmentDelivery, domain.PaymentCard)

	// Both callers read the order at Received, then race to accept it.
	stale, err := svc.Get(ctx, o.Number)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, o.Number, domain.StatusAccepted, nil, "", nil, "")
	require.NoError(t, err)

	rec, err := domain.AttemptTransition(stale, domain.StatusAccepted, nil, "")
	require.NoError(t, err)
	err = repo.UpdateStatusWithOutbox(ctx, o.Number, stale.Status, rec, domain.EventOrderStatusChanged, nil, nil, "")
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	recs, _ := svc.History(ctx, o.Number)
	assert.Len(t, recs, 2, "loser must not append")
}

func TestSettlePaymentDoesNotTouchStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	o := placeTestOrder(t, svc, domain.FulfillmentPickup, domain.PaymentPayPal)

	updated, err := svc.SettlePayment(context.Background(), o.Number, domain.PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, domain.StatusReceived, updated.Status)

	recs, _ := svc.History(context.Background(), o.Number)
	assert.Len(t, recs, 1)
}

func TestUnknownOrder(t *testing.T) {
	svc := NewService(newFakeRepo())
	_, err := svc.ChangeStatus(context.Background(), "SO-MISSING1", domain.StatusAccepted, nil, "", nil, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
