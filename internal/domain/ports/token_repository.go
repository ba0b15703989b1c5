package ports

import (
	"context"

	"github.com/kevin07696/nmi-gateway/internal/domain"
)

// TokenRepository persists saved payment tokens. Implementations must treat
// (user, environment, vault customer id) as the identity for writes so a
// re-save updates display metadata instead of duplicating the token.
type TokenRepository interface {
	// Upsert inserts the token or, when the user already has one for the
	// same vault customer id in the same environment, overwrites its
	// display metadata. Returns the stored token with its id populated.
	Upsert(ctx context.Context, token *domain.PaymentToken) (*domain.PaymentToken, error)

	// GetByID fetches a token regardless of owner; callers check ownership
	GetByID(ctx context.Context, id string) (*domain.PaymentToken, error)

	// ListByUser returns the user's tokens created in the given environment
	ListByUser(ctx context.Context, userID int64, env domain.Environment) ([]*domain.PaymentToken, error)

	// Delete removes a token by id
	Delete(ctx context.Context, id string) error
}
