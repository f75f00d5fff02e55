package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sushiko/orderflow/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) CreateWithOutbox(ctx context.Context, o domain.Order, seed domain.TransitionRecord, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders
			(id, order_number, customer_id, fulfillment, status, payment_method, payment_status,
			 subtotal, delivery_fee, tax_amount, total,
			 delivery_address, delivery_instructions, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.Number, o.CustomerID, o.Fulfillment, o.Status, o.PaymentMethod, o.PaymentStatus,
		o.Subtotal, o.DeliveryFee, o.TaxAmount, o.Total,
		o.DeliveryAddress, o.DeliveryInstructions, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, position, catalog_item_id, custom_build_id, name, unit_price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, i, item.CatalogItemID, item.CustomBuildID, item.Name, item.UnitPrice, item.Quantity)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if err = appendHistory(ctx, tx, seed); err != nil {
		return err
	}
	if err = insertOutbox(ctx, tx, o.Number, eventType, payload, headers, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) UpdateStatusWithOutbox(ctx context.Context, number string, expected domain.OrderStatus, rec domain.TransitionRecord, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The stored status is the optimistic concurrency token: the update only
	// lands if no other transition committed since the caller read the order.
	ct, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE order_number=$1 AND status=$4`,
		number, rec.New, rec.At, expected)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE order_number=$1`, number).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrConcurrentModification
	}

	if err = appendHistory(ctx, tx, rec); err != nil {
		return err
	}
	if err = insertOutbox(ctx, tx, number, eventType, payload, headers, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) SetPaymentStatus(ctx context.Context, number string, status domain.PaymentStatus) error {
	ct, err := r.pool.Exec(ctx, `UPDATE orders SET payment_status=$2, updated_at=$3 WHERE order_number=$1`,
		number, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) GetByNumber(ctx context.Context, number string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `SELECT id, order_number, customer_id, fulfillment, status, payment_method, payment_status,
			subtotal, delivery_fee, tax_amount, total,
			delivery_address, delivery_instructions, notes, created_at, updated_at
		FROM orders WHERE order_number=$1`, number).
		Scan(&o.ID, &o.Number, &o.CustomerID, &o.Fulfillment, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
			&o.Subtotal, &o.DeliveryFee, &o.TaxAmount, &o.Total,
			&o.DeliveryAddress, &o.DeliveryInstructions, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT catalog_item_id, custom_build_id, name, unit_price, quantity
		FROM order_items WHERE order_id=$1 ORDER BY position`, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.CatalogItemID, &item.CustomBuildID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// ListHistory returns the order's transition ledger oldest first.
func (r *Repository) ListHistory(ctx context.Context, number string) ([]domain.TransitionRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT order_number, previous_status, new_status, actor_id, note, created_at
		FROM order_status_history WHERE order_number=$1 ORDER BY id`, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.TransitionRecord
	for rows.Next() {
		var rec domain.TransitionRecord
		if err := rows.Scan(&rec.OrderNumber, &rec.Previous, &rec.New, &rec.ActorID, &rec.Note, &rec.At); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func appendHistory(ctx context.Context, tx pgx.Tx, rec domain.TransitionRecord) error {
	_, err := tx.Exec(ctx, `INSERT INTO order_status_history (order_number, previous_status, new_status, actor_id, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.OrderNumber, rec.Previous, rec.New, rec.ActorID, rec.Note, rec.At)
	return err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"order", aggregateID, eventType, payload, headers, traceparent)
	return err
}
