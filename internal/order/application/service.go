package application

import (
	"context"
	"encoding/json"

	"github.com/sushiko/orderflow/internal/order/domain"
)

type Service struct {
	repo OrderRepository
}

func NewService(repo OrderRepository) *Service {
	return &Service{repo: repo}
}

// PlaceOrder persists a freshly built order together with its seed history
// record and an OrderStatusChanged outbox event, so the kitchen dashboard
// learns about new orders through the same channel as every later transition.
func (s *Service) PlaceOrder(ctx context.Context, o domain.Order, headers map[string]string, traceparent string) (domain.Order, error) {
	seed := domain.SeedRecord(o)
	payload, err := json.Marshal(domain.NewOrderStatusChanged(o, seed))
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.repo.CreateWithOutbox(ctx, o, seed, domain.EventOrderStatusChanged, payload, headers, traceparent); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// ChangeStatus runs the validator against the current order state and, on
// success, commits the status update, history append and outbox event as one
// unit of work. The sentinel errors from the domain package pass through
// unchanged so callers can decide how to surface them.
func (s *Service) ChangeStatus(ctx context.Context, number string, requested domain.OrderStatus, actorID *string, note string, headers map[string]string, traceparent string) (domain.Order, error) {
	o, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return domain.Order{}, err
	}

	rec, err := domain.AttemptTransition(o, requested, actorID, note)
	if err != nil {
		return o, err
	}

	updated := o
	updated.Status = rec.New
	updated.UpdatedAt = rec.At

	payload, err := json.Marshal(domain.NewOrderStatusChanged(updated, rec))
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.repo.UpdateStatusWithOutbox(ctx, number, o.Status, rec, domain.EventOrderStatusChanged, payload, headers, traceparent); err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// SettlePayment records a payment result reported by the payment gateway.
// It touches payment status only; order status moves exclusively through
// ChangeStatus.
func (s *Service) SettlePayment(ctx context.Context, number string, status domain.PaymentStatus) (domain.Order, error) {
	if err := s.repo.SetPaymentStatus(ctx, number, status); err != nil {
		return domain.Order{}, err
	}
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) Get(ctx context.Context, number string) (domain.Order, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) History(ctx context.Context, number string) ([]domain.TransitionRecord, error) {
	return s.repo.ListHistory(ctx, number)
}
