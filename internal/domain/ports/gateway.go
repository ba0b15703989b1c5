package ports

import (
	"context"

	"github.com/kevin07696/nmi-gateway/internal/domain"
)

// GatewayAPI is the processor-facing port. Every call returns the normalized
// attempt even when the gateway reported an error; the error return is only
// non-nil for failures before a response could be classified (bad input,
// context cancellation).
type GatewayAPI interface {
	// Charge runs an auth-and-capture sale
	Charge(ctx context.Context, req *domain.TransactionRequest) (domain.PaymentAttempt, error)

	// Authorize places a hold without capturing
	Authorize(ctx context.Context, req *domain.TransactionRequest) (domain.PaymentAttempt, error)

	// Capture settles a previous authorization
	Capture(ctx context.Context, req *domain.ReferenceRequest) (domain.PaymentAttempt, error)

	// Refund returns funds on a settled transaction
	Refund(ctx context.Context, req *domain.ReferenceRequest) (domain.PaymentAttempt, error)

	// Void cancels an unsettled transaction
	Void(ctx context.Context, req *domain.ReferenceRequest) (domain.PaymentAttempt, error)

	// CreateVaultCustomer stores the request's payment source in the
	// gateway's customer vault, verifying the card per the processor mode
	CreateVaultCustomer(ctx context.Context, req *domain.TransactionRequest) (domain.PaymentAttempt, error)

	// VerifyCSC validates a freshly collected security code against a
	// vaulted card without moving money
	VerifyCSC(ctx context.Context, cscNonce, vaultID string) (domain.PaymentAttempt, error)
}
