package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusReceived       OrderStatus = "received"
	StatusAccepted       OrderStatus = "accepted"
	StatusInPreparation  OrderStatus = "in_preparation"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
)

type FulfillmentType string

const (
	FulfillmentPickup   FulfillmentType = "pickup"
	FulfillmentDelivery FulfillmentType = "delivery"
)

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentPayPal         PaymentMethod = "paypal"
	PaymentToken          PaymentMethod = "token"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// LineItem snapshots name and unit price at order time, so later catalog
// edits never change what a historical order says it sold.
type LineItem struct {
	CatalogItemID *string         `json:"catalog_item_id,omitempty"`
	CustomBuildID *string         `json:"custom_build_id,omitempty"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
}

type Order struct {
	ID                   string          `json:"id"`
	Number               string          `json:"number"`
	CustomerID           *string         `json:"customer_id,omitempty"`
	Items                []LineItem      `json:"items"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	DeliveryFee          decimal.Decimal `json:"delivery_fee"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	Total                decimal.Decimal `json:"total"`
	Fulfillment          FulfillmentType `json:"fulfillment"`
	Status               OrderStatus     `json:"status"`
	PaymentMethod        PaymentMethod   `json:"payment_method"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	DeliveryAddress      string          `json:"delivery_address,omitempty"`
	DeliveryInstructions string          `json:"delivery_instructions,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// NewOrder builds an order at checkout. The order number is generated here
// and never changes; status always starts at Received.
func NewOrder(customerID *string, items []LineItem, fulfillment FulfillmentType, method PaymentMethod, deliveryFee, taxAmount decimal.Decimal) Order {
	now := time.Now().UTC()
	o := Order{
		ID:            uuid.NewString(),
		Number:        NewOrderNumber(),
		CustomerID:    customerID,
		Items:         items,
		DeliveryFee:   deliveryFee,
		TaxAmount:     taxAmount,
		Fulfillment:   fulfillment,
		Status:        StatusReceived,
		PaymentMethod: method,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if fulfillment == FulfillmentPickup {
		o.DeliveryFee = decimal.Zero
	}
	o.Recalculate()
	return o
}

// Recalculate derives subtotal and total from the line items. Total is never
// written directly anywhere else.
func (o *Order) Recalculate() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.DeliveryFee).Add(o.TaxAmount)
}

// NewOrderNumber returns a short human-readable order number, e.g. "SO-9F2C41AB".
func NewOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("SO-%s", suffix)
}
