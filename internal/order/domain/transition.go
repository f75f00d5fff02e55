package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrNoOpTransition         = errors.New("order already in requested status")
	ErrPaymentNotSettled      = errors.New("payment not settled")
	ErrConcurrentModification = errors.New("order modified concurrently")
	ErrNotFound               = errors.New("order not found")
)

// TransitionRecord is one immutable entry in an order's status ledger.
// Previous is nil only for the seed record written at order creation.
type TransitionRecord struct {
	OrderNumber string       `json:"order_number"`
	Previous    *OrderStatus `json:"previous,omitempty"`
	New         OrderStatus  `json:"new"`
	ActorID     *string      `json:"actor_id,omitempty"`
	Note        string       `json:"note,omitempty"`
	At          time.Time    `json:"at"`
}

// forwardEdges is the legal forward path per current status. Cancelled is
// handled separately: reachable from any non-terminal status.
var forwardEdges = map[OrderStatus][]OrderStatus{
	StatusReceived:       {StatusAccepted},
	StatusAccepted:       {StatusInPreparation},
	StatusInPreparation:  {StatusReady},
	StatusReady:          {StatusOutForDelivery, StatusReadyForPickup},
	StatusOutForDelivery: {StatusCompleted},
	StatusReadyForPickup: {StatusCompleted},
}

// fulfillmentGate restricts the Ready fork: a delivery order leaves through
// OutForDelivery, a pickup order through ReadyForPickup.
var fulfillmentGate = map[OrderStatus]FulfillmentType{
	StatusOutForDelivery: FulfillmentDelivery,
	StatusReadyForPickup: FulfillmentPickup,
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// SeedRecord is the initial ledger entry written when an order is created,
// so replaying the ledger from empty reconstructs the live status.
func SeedRecord(o Order) TransitionRecord {
	return TransitionRecord{
		OrderNumber: o.Number,
		New:         StatusReceived,
		Note:        "order placed",
		At:          o.CreatedAt,
	}
}

// AttemptTransition validates a requested status change against the order's
// current state and returns the record to append on commit. It never mutates
// the order and never commits; pairing the status update with the ledger
// append atomically is the caller's unit of work.
func AttemptTransition(o Order, requested OrderStatus, actorID *string, note string) (TransitionRecord, error) {
	if requested == o.Status {
		return TransitionRecord{}, ErrNoOpTransition
	}
	if o.Status.Terminal() {
		return TransitionRecord{}, ErrInvalidTransition
	}

	legal := requested == StatusCancelled
	if !legal {
		for _, next := range forwardEdges[o.Status] {
			if next == requested {
				legal = true
				break
			}
		}
	}
	if !legal {
		return TransitionRecord{}, ErrInvalidTransition
	}
	if gate, gated := fulfillmentGate[requested]; gated && gate != o.Fulfillment {
		return TransitionRecord{}, ErrInvalidTransition
	}
	if requested == StatusCompleted && o.PaymentStatus != PaymentPaid && o.PaymentMethod != PaymentCashOnDelivery {
		return TransitionRecord{}, ErrPaymentNotSettled
	}

	prev := o.Status
	return TransitionRecord{
		OrderNumber: o.Number,
		Previous:    &prev,
		New:         requested,
		ActorID:     actorID,
		Note:        note,
		At:          time.Now().UTC(),
	}, nil
}
