package vault

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/adapters/nmi"
	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
	"github.com/kevin07696/nmi-gateway/internal/services/retry"
)

// msgMaxAttempts matches the throttle text shown when the weekly
// tokenization limit is hit.
const msgMaxAttempts = "Maximum attempt limit reached. Please contact us for further help."

// TokenizeInput carries a card-vaulting request. Order is nil when the
// customer saves a card from their account page rather than at checkout.
type TokenizeInput struct {
	Order       *domain.Order
	Profile     *domain.CustomerProfile
	Card        *domain.CardDetails
	ClientToken *domain.ClientToken
	SendReceipt bool
}

// Service owns the saved-token lifecycle: vault creation against the
// gateway, local persistence, listing, and removal. The gateway supports
// neither remote enumeration nor remote deletion, so list and remove are
// local-only.
type Service struct {
	gateway        ports.GatewayAPI
	tokens         ports.TokenRepository
	guard          *retry.Guard
	environment    domain.Environment
	acceptedBrands []string
	logger         *zap.Logger
}

// NewService creates a new vault service
func NewService(
	gateway ports.GatewayAPI,
	tokens ports.TokenRepository,
	guard *retry.Guard,
	environment domain.Environment,
	acceptedBrands []string,
	logger *zap.Logger,
) *Service {
	return &Service{
		gateway:        gateway,
		tokens:         tokens,
		guard:          guard,
		environment:    environment,
		acceptedBrands: acceptedBrands,
		logger:         logger,
	}
}

// SupportsRemoteEnumeration reports whether saved tokens can be listed from
// the gateway. Always false for this processor.
func (s *Service) SupportsRemoteEnumeration() bool { return false }

// SupportsRemoteDeletion reports whether tokens can be deleted on the
// gateway side. Always false for this processor.
func (s *Service) SupportsRemoteDeletion() bool { return false }

// List returns the user's saved tokens for the active environment. Tokens
// created in the other environment never surface.
func (s *Service) List(ctx context.Context, userID int64) ([]*domain.PaymentToken, error) {
	return s.tokens.ListByUser(ctx, userID, s.environment)
}

// Get fetches a single token, enforcing ownership and the environment
// partition. A token that exists but belongs to someone else, or to the
// other environment, reads as not found.
func (s *Service) Get(ctx context.Context, userID int64, tokenID string) (*domain.PaymentToken, error) {
	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !token.BelongsTo(userID) || token.Environment != s.environment {
		return nil, domain.ErrTokenNotFound
	}
	return token, nil
}

// Remove deletes a saved token locally. Returns false without error when
// the token does not belong to the user.
func (s *Service) Remove(ctx context.Context, userID int64, tokenID string) (bool, error) {
	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if domain.GetErrorCode(err) == domain.ErrorCodeTokenNotFound {
			return false, nil
		}
		return false, err
	}
	if !token.BelongsTo(userID) || token.Environment != s.environment {
		s.logger.Warn("token removal refused",
			zap.String("token_id", tokenID),
			zap.Int64("user_id", userID),
		)
		return false, nil
	}

	if err := s.tokens.Delete(ctx, tokenID); err != nil {
		return false, err
	}

	s.logger.Info("payment token removed",
		zap.String("token_id", tokenID),
		zap.Int64("user_id", userID),
	)
	return true, nil
}

// Tokenize vaults a new card with the gateway and persists the resulting
// token. Profile-page attempts (no order) by a signed-in user are gated by
// the weekly retry guard before any wire call, and failed attempts are
// recorded against the same counter.
func (s *Service) Tokenize(ctx context.Context, input TokenizeInput) (*domain.PaymentToken, domain.PaymentAttempt, error) {
	var empty domain.PaymentAttempt

	if err := s.checkBrand(input); err != nil {
		return nil, empty, err
	}

	userID := int64(0)
	if input.Profile != nil {
		userID = input.Profile.UserID
	}
	profileScoped := input.Order == nil && userID > 0

	if profileScoped {
		blocked, err := s.guard.IsBlocked(ctx, ports.RetryScopeUser, fmt.Sprintf("%d", userID))
		if err != nil {
			return nil, empty, domain.WrapError(domain.ErrorCodeDatabaseError, "retry guard check failed", err)
		}
		if blocked {
			return nil, empty, domain.NewDomainError(domain.ErrorCodeThrottleMaxAttempts, msgMaxAttempts)
		}
	}

	req := &domain.TransactionRequest{
		Order:   input.Order,
		Profile: input.Profile,
		Source: domain.PaymentSource{
			ClientToken: input.ClientToken,
			Card:        input.Card,
		},
		SendReceipt: input.SendReceipt,
	}

	attempt, err := s.gateway.CreateVaultCustomer(ctx, req)
	if err != nil {
		return nil, empty, err
	}

	if !attempt.Approved() {
		if profileScoped {
			if recErr := s.guard.RecordAttempt(ctx, ports.RetryScopeUser, fmt.Sprintf("%d", userID)); recErr != nil {
				s.logger.Error("failed to record tokenization attempt", zap.Error(recErr))
			}
		}
		return nil, attempt, domain.WrapError(domain.ErrorCodeGatewayError, nmi.UserMessage(attempt), nmi.ToPaymentError(attempt))
	}

	vaultID := attempt.CustomerVaultID()
	if vaultID == "" {
		return nil, attempt, domain.NewDomainError(domain.ErrorCodeTokenMissingData, "gateway approved but returned no customer vault id")
	}

	token := s.tokenFromInput(vaultID, userID, input)
	stored, err := s.tokens.Upsert(ctx, token)
	if err != nil {
		return nil, attempt, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to persist payment token", err)
	}

	s.logger.Info("card vaulted",
		zap.String("token_id", stored.ID),
		zap.Int64("user_id", userID),
		zap.String("brand", stored.Brand),
		zap.String("last_four", stored.LastFour),
		zap.String("environment", string(stored.Environment)),
	)
	return stored, attempt, nil
}

// checkBrand enforces the accepted-brand list when display metadata carries
// a brand. An empty list accepts everything.
func (s *Service) checkBrand(input TokenizeInput) error {
	if len(s.acceptedBrands) == 0 {
		return nil
	}
	brand := ""
	if input.ClientToken != nil {
		brand = domain.NormalizeCardBrand(input.ClientToken.Brand)
	}
	if brand == "" {
		return nil
	}
	for _, accepted := range s.acceptedBrands {
		if brand == domain.NormalizeCardBrand(accepted) {
			return nil
		}
	}
	return domain.NewDomainError(domain.ErrorCodeValidationCardType,
		fmt.Sprintf("The %s card type is not accepted, please use another card.", brand))
}

// tokenFromInput assembles the persisted token from whatever display
// metadata the request carried. Raw card numbers contribute only last four
// and expiry halves; the number itself is never stored.
func (s *Service) tokenFromInput(vaultID string, userID int64, input TokenizeInput) *domain.PaymentToken {
	token := &domain.PaymentToken{
		UserID:          userID,
		VaultCustomerID: vaultID,
		Environment:     s.environment,
	}

	if ct := input.ClientToken; ct != nil {
		token.Brand = domain.NormalizeCardBrand(ct.Brand)
		token.LastFour = ct.LastFour
		token.ExpMonth = ct.ExpiryMonth()
		token.ExpYear = ct.ExpiryYear()
	}

	if card := input.Card; card != nil {
		if token.LastFour == "" && len(card.Number) >= 4 {
			token.LastFour = card.Number[len(card.Number)-4:]
		}
		if token.ExpMonth == "" {
			month, year := nmi.SplitExpiry(card.Expiry)
			token.ExpMonth = month
			token.ExpYear = year
		}
	}

	return token
}
