package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
)

// metaNamespace prefixes every metadata key this repository writes so
// gateway state never collides with other order metadata.
const metaNamespace = "_nmi_gateway_"

// OrderRepository persists order-side payment state in PostgreSQL
type OrderRepository struct {
	db     ports.DBPort
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db ports.DBPort, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{db: db, logger: logger}
}

var _ ports.OrderRepository = (*OrderRepository)(nil)

// SetMeta upserts a namespaced key/value pair on the order
func (r *OrderRepository) SetMeta(ctx context.Context, orderID, key, value string) error {
	const query = `
		INSERT INTO order_payment_meta (order_id, meta_key, meta_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, meta_key)
		DO UPDATE SET meta_value = EXCLUDED.meta_value, updated_at = now()`

	_, err := r.db.GetDB().Exec(ctx, query, orderID, metaNamespace+key, value)
	if err != nil {
		return fmt.Errorf("set order meta %q: %w", key, err)
	}
	return nil
}

// GetMeta reads a namespaced value, returning "" when the key is absent
func (r *OrderRepository) GetMeta(ctx context.Context, orderID, key string) (string, error) {
	const query = `
		SELECT meta_value FROM order_payment_meta
		WHERE order_id = $1 AND meta_key = $2`

	var value string
	err := r.db.GetDB().QueryRow(ctx, query, orderID, metaNamespace+key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get order meta %q: %w", key, err)
	}
	return value, nil
}

// AddNote appends a note to the order's history
func (r *OrderRepository) AddNote(ctx context.Context, orderID, note string) error {
	const query = `
		INSERT INTO order_notes (order_id, note)
		VALUES ($1, $2)`

	_, err := r.db.GetDB().Exec(ctx, query, orderID, note)
	if err != nil {
		return fmt.Errorf("add order note: %w", err)
	}
	return nil
}

// MarkFailed flips the order to failed and reports whether it already was.
// The conditional update makes repeat calls a no-op, so failure-side
// effects downstream run once per order.
func (r *OrderRepository) MarkFailed(ctx context.Context, orderID string) (bool, error) {
	const query = `
		UPDATE orders SET failed = TRUE, updated_at = now()
		WHERE id = $1 AND failed = FALSE`

	tag, err := r.db.GetDB().Exec(ctx, query, orderID)
	if err != nil {
		return false, fmt.Errorf("mark order failed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		r.logger.Info("order marked failed", zap.String("order_id", orderID))
		return false, nil
	}

	// No row updated: either already failed or unknown order
	var exists bool
	err = r.db.GetDB().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return false, domain.ErrOrderNotFound
	}
	return true, nil
}
