package domain

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderTotals(t *testing.T) {
	o := NewOrder(nil, []LineItem{
		{Name: "dragon roll", UnitPrice: decimal.RequireFromString("12.00"), Quantity: 1},
		{Name: "miso soup", UnitPrice: decimal.RequireFromString("3.50"), Quantity: 2},
	}, FulfillmentDelivery, PaymentCard, decimal.RequireFromString("4.00"), decimal.RequireFromString("1.52"))

	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("19.00")), "subtotal=%s", o.Subtotal)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("24.52")), "total=%s", o.Total)
	assert.Equal(t, StatusReceived, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Nil(t, o.CustomerID)
}

func TestPickupOrderHasNoDeliveryFee(t *testing.T) {
	o := NewOrder(nil, []LineItem{
		{Name: "tamago", UnitPrice: decimal.RequireFromString("2.00"), Quantity: 1},
	}, FulfillmentPickup, PaymentToken, decimal.RequireFromString("4.00"), decimal.Zero)

	assert.True(t, o.DeliveryFee.IsZero())
	assert.True(t, o.Total.Equal(decimal.RequireFromString("2.00")))
}

func TestRecalculateAfterItemChange(t *testing.T) {
	o := NewOrder(nil, []LineItem{
		{Name: "uni", UnitPrice: decimal.RequireFromString("8.00"), Quantity: 1},
	}, FulfillmentDelivery, PaymentCard, decimal.Zero, decimal.Zero)
	require.True(t, o.Total.Equal(decimal.RequireFromString("8.00")))

	o.Items = append(o.Items, LineItem{Name: "ikura", UnitPrice: decimal.RequireFromString("6.25"), Quantity: 2})
	o.Recalculate()
	assert.True(t, o.Total.Equal(decimal.RequireFromString("20.50")))
}

func TestNewOrderNumber(t *testing.T) {
	n := NewOrderNumber()
	assert.True(t, strings.HasPrefix(n, "SO-"))
	assert.Len(t, n, 11)
	assert.NotEqual(t, n, NewOrderNumber())
}
