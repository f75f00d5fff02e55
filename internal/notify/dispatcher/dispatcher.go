package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sushiko/orderflow/internal/notify/registry"
	"github.com/sushiko/orderflow/internal/order/domain"
)

// Pusher is the narrow transport abstraction: the dispatcher does not know
// whether a connection is a websocket, a test double, or something else.
type Pusher interface {
	Send(ctx context.Context, connID string, payload []byte) error
}

// GroupDirectory is the read side of the subscription registry.
type GroupDirectory interface {
	MembersOf(group string) []string
}

type Dispatcher struct {
	log     *slog.Logger
	dir     GroupDirectory
	push    Pusher
	timeout time.Duration
}

func New(log *slog.Logger, dir GroupDirectory, push Pusher) *Dispatcher {
	return &Dispatcher{
		log:     log,
		dir:     dir,
		push:    push,
		timeout: 3 * time.Second,
	}
}

// Notify fans a committed transition out to every connection interested in
// it: the admin group, the order's own group, and the owning customer's
// group when the order has one. Delivery is fire-and-forget per connection;
// a failed or slow push is logged and skipped, never propagated.
func (d *Dispatcher) Notify(ctx context.Context, evt domain.OrderStatusChanged) {
	groups := []string{registry.GroupAdmin, registry.GroupOrder(evt.OrderNumber)}
	if evt.CustomerID != nil {
		groups = append(groups, registry.GroupCustomer(*evt.CustomerID))
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		d.log.Error("notify marshal failed", "order_number", evt.OrderNumber, "err", err)
		return
	}

	// A connection watching both the order and its customer group still gets
	// a single push.
	targets := map[string]struct{}{}
	for _, group := range groups {
		for _, connID := range d.dir.MembersOf(group) {
			targets[connID] = struct{}{}
		}
	}

	for connID := range targets {
		pushCtx, cancel := context.WithTimeout(ctx, d.timeout)
		if err := d.push.Send(pushCtx, connID, payload); err != nil {
			d.log.Warn("push failed", "conn_id", connID, "order_number", evt.OrderNumber, "err", err)
		}
		cancel()
	}

	d.log.Info("transition dispatched",
		"order_number", evt.OrderNumber,
		"status", evt.Transition.New,
		"groups", len(groups),
		"connections", len(targets))
}
