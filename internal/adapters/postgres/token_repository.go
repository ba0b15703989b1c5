package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
	"github.com/kevin07696/nmi-gateway/pkg/timeutil"
)

// TokenRepository persists saved payment tokens in PostgreSQL
type TokenRepository struct {
	db     ports.DBPort
	logger *zap.Logger
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db ports.DBPort, logger *zap.Logger) *TokenRepository {
	return &TokenRepository{db: db, logger: logger}
}

var _ ports.TokenRepository = (*TokenRepository)(nil)

// Upsert inserts the token, or overwrites display metadata when the user
// already saved the same vault customer id in the same environment.
// Latest write wins; no duplicate rows are created.
func (r *TokenRepository) Upsert(ctx context.Context, token *domain.PaymentToken) (*domain.PaymentToken, error) {
	stored := *token
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := timeutil.Now()
	stored.UpdatedAt = now
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	const query = `
		INSERT INTO payment_tokens (
			id, user_id, vault_customer_id, environment,
			last_four, brand, exp_month, exp_year, is_default,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, environment, vault_customer_id) DO UPDATE SET
			last_four  = EXCLUDED.last_four,
			brand      = EXCLUDED.brand,
			exp_month  = EXCLUDED.exp_month,
			exp_year   = EXCLUDED.exp_year,
			is_default = EXCLUDED.is_default,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := r.db.GetDB().QueryRow(ctx, query,
		stored.ID, stored.UserID, stored.VaultCustomerID, string(stored.Environment),
		stored.LastFour, stored.Brand, stored.ExpMonth, stored.ExpYear, stored.IsDefault,
		stored.CreatedAt, stored.UpdatedAt,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert payment token: %w", err)
	}

	r.logger.Debug("payment token stored",
		zap.String("token_id", stored.ID),
		zap.Int64("user_id", stored.UserID),
		zap.String("environment", string(stored.Environment)),
	)
	return &stored, nil
}

// GetByID fetches a token by id regardless of owner
func (r *TokenRepository) GetByID(ctx context.Context, id string) (*domain.PaymentToken, error) {
	const query = `
		SELECT id, user_id, vault_customer_id, environment,
		       last_four, brand, exp_month, exp_year, is_default,
		       created_at, updated_at
		FROM payment_tokens
		WHERE id = $1`

	token, err := scanToken(r.db.GetDB().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment token: %w", err)
	}
	return token, nil
}

// ListByUser returns the user's tokens for the given environment. The
// environment filter is applied in the query so tokens from the other
// environment never leave the database.
func (r *TokenRepository) ListByUser(ctx context.Context, userID int64, env domain.Environment) ([]*domain.PaymentToken, error) {
	const query = `
		SELECT id, user_id, vault_customer_id, environment,
		       last_four, brand, exp_month, exp_year, is_default,
		       created_at, updated_at
		FROM payment_tokens
		WHERE user_id = $1 AND environment = $2
		ORDER BY is_default DESC, created_at DESC`

	rows, err := r.db.GetDB().Query(ctx, query, userID, string(env))
	if err != nil {
		return nil, fmt.Errorf("list payment tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.PaymentToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// Delete removes a token by id
func (r *TokenRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.GetDB().Exec(ctx, `DELETE FROM payment_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*domain.PaymentToken, error) {
	var token domain.PaymentToken
	var env string
	err := row.Scan(
		&token.ID, &token.UserID, &token.VaultCustomerID, &env,
		&token.LastFour, &token.Brand, &token.ExpMonth, &token.ExpYear, &token.IsDefault,
		&token.CreatedAt, &token.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	token.Environment = domain.Environment(env)
	return &token, nil
}
