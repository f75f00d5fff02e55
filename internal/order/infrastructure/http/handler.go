package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sushiko/orderflow/internal/order/application"
	"github.com/sushiko/orderflow/internal/order/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{number}", h.getOrder)
	r.Get("/orders/{number}/history", h.getHistory)
	r.Post("/orders/{number}/status", h.changeStatus)
	r.Post("/orders/{number}/payment", h.settlePayment)

	return r
}

type placeOrderReq struct {
	CustomerID           *string           `json:"customer_id"`
	Items                []domain.LineItem `json:"items"`
	Fulfillment          string            `json:"fulfillment"`
	PaymentMethod        string            `json:"payment_method"`
	DeliveryFee          decimal.Decimal   `json:"delivery_fee"`
	TaxAmount            decimal.Decimal   `json:"tax_amount"`
	DeliveryAddress      string            `json:"delivery_address"`
	DeliveryInstructions string            `json:"delivery_instructions"`
	Notes                string            `json:"notes"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "order needs at least one item", http.StatusBadRequest)
		return
	}
	fulfillment := domain.FulfillmentType(req.Fulfillment)
	if fulfillment != domain.FulfillmentPickup && fulfillment != domain.FulfillmentDelivery {
		http.Error(w, "unknown fulfillment type", http.StatusBadRequest)
		return
	}
	if fulfillment == domain.FulfillmentDelivery && req.DeliveryAddress == "" {
		http.Error(w, "delivery orders need an address", http.StatusBadRequest)
		return
	}

	o := domain.NewOrder(req.CustomerID, req.Items, fulfillment, domain.PaymentMethod(req.PaymentMethod), req.DeliveryFee, req.TaxAmount)
	o.DeliveryAddress = req.DeliveryAddress
	o.DeliveryInstructions = req.DeliveryInstructions
	o.Notes = req.Notes

	created, err := h.service.PlaceOrder(ctx, o, nil, traceparentFrom(ctx, r))
	if err != nil {
		h.log.Error("place order failed", "err", err)
		http.Error(w, "could not place order", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

type changeStatusReq struct {
	Status  string  `json:"status"`
	ActorID *string `json:"actor_id"`
	Note    string  `json:"note"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ChangeOrderStatus")
	defer span.End()

	number := chi.URLParam(r, "number")

	var req changeStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	o, err := h.service.ChangeStatus(ctx, number, domain.OrderStatus(req.Status), req.ActorID, req.Note, nil, traceparentFrom(ctx, r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, o)
	case errors.Is(err, domain.ErrNoOpTransition):
		// Retried requests land here; the order is already where the caller
		// wants it, so answer with the unchanged snapshot.
		writeJSON(w, http.StatusOK, o)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, "invalid status transition", http.StatusConflict)
	case errors.Is(err, domain.ErrPaymentNotSettled):
		http.Error(w, "payment not settled", http.StatusConflict)
	case errors.Is(err, domain.ErrConcurrentModification):
		http.Error(w, "order changed concurrently, re-read and retry", http.StatusConflict)
	default:
		h.log.Error("change status failed", "order_number", number, "err", err)
		http.Error(w, "could not change status", http.StatusInternalServerError)
	}
}

type settlePaymentReq struct {
	Status string `json:"status"`
}

func (h *Handler) settlePayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SettlePayment")
	defer span.End()

	number := chi.URLParam(r, "number")

	var req settlePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	o, err := h.service.SettlePayment(ctx, number, domain.PaymentStatus(req.Status))
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("settle payment failed", "order_number", number, "err", err)
		http.Error(w, "could not settle payment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.Get(ctx, chi.URLParam(r, "number"))
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "could not load order", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrderHistory")
	defer span.End()

	number := chi.URLParam(r, "number")
	if _, err := h.service.Get(ctx, number); errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	recs, err := h.service.History(ctx, number)
	if err != nil {
		http.Error(w, "could not load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// traceparentFrom prefers the inbound traceparent header and falls back to
// the current span context, so the outbox event always carries the trace.
func traceparentFrom(ctx context.Context, r *http.Request) string {
	if tp := r.Header.Get("traceparent"); tp != "" {
		return tp
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier["traceparent"]
}
