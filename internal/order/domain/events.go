package domain

import "time"

const EventOrderStatusChanged = "OrderStatusChanged"

// OrderStatusChanged is the event published through the outbox after a
// transition commits. It carries enough of the order snapshot for the
// notification side to build push payloads without a read back.
type OrderStatusChanged struct {
	OrderID       string           `json:"order_id"`
	OrderNumber   string           `json:"order_number"`
	CustomerID    *string          `json:"customer_id,omitempty"`
	Fulfillment   FulfillmentType  `json:"fulfillment"`
	Status        OrderStatus      `json:"status"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	Transition    TransitionRecord `json:"transition"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func NewOrderStatusChanged(o Order, rec TransitionRecord) OrderStatusChanged {
	return OrderStatusChanged{
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		CustomerID:    o.CustomerID,
		Fulfillment:   o.Fulfillment,
		Status:        rec.New,
		PaymentStatus: o.PaymentStatus,
		Transition:    rec,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     rec.At,
	}
}
