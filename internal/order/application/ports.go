package application

import (
	"context"

	"github.com/sushiko/orderflow/internal/order/domain"
)

// OrderRepository is the persistence port. Every write that changes order
// state pairs the row update, the history append and the outbox event in a
// single transaction.
type OrderRepository interface {
	CreateWithOutbox(ctx context.Context, o domain.Order, seed domain.TransitionRecord, eventType string, payload []byte, headers map[string]string, traceparent string) error
	// UpdateStatusWithOutbox commits a validated transition. The update only
	// succeeds if the stored status still equals expected; otherwise it
	// returns domain.ErrConcurrentModification.
	UpdateStatusWithOutbox(ctx context.Context, number string, expected domain.OrderStatus, rec domain.TransitionRecord, eventType string, payload []byte, headers map[string]string, traceparent string) error
	SetPaymentStatus(ctx context.Context, number string, status domain.PaymentStatus) error
	GetByNumber(ctx context.Context, number string) (domain.Order, error)
	ListHistory(ctx context.Context, number string) ([]domain.TransitionRecord, error)
}
