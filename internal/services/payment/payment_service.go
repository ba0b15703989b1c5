package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/adapters/nmi"
	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
	"github.com/kevin07696/nmi-gateway/internal/services/retry"
	"github.com/kevin07696/nmi-gateway/internal/services/vault"
	pkgerrors "github.com/kevin07696/nmi-gateway/pkg/errors"
	"github.com/kevin07696/nmi-gateway/pkg/observability"
	"github.com/kevin07696/nmi-gateway/pkg/timeutil"
)

// Order meta keys written back to the host order system. The repository
// prefixes them so they never collide with other integrations.
const (
	MetaPaymentToken   = "payment_token"
	MetaCustomerID     = "customer_id"
	MetaTransactionID  = "transaction_id"
	MetaChargeCaptured = "charge_captured"
	MetaTransDate      = "trans_date"
)

const msgMaxAttempts = "Maximum attempt limit reached. Please contact us for further help."

const transDateLayout = "2006-01-02 15:04:05"

// Config holds the merchant-level switches the orchestrator consults
type Config struct {
	TransactionType         domain.TransactionType
	ProcessorMode           domain.ProcessorMode
	APIMethod               domain.APIMethod
	RequireCSC              bool
	DetailedDeclineMessages bool
	Tokenization            bool
}

// ChargeResult is the orchestrator's answer for one payment attempt. On
// failure UserMessage carries the customer-safe text; the raw cause lives
// in the returned error.
type ChargeResult struct {
	Approved      bool
	TransactionID string
	AuthCode      string
	VaultID       string
	UserMessage   string
	Retriable     bool
	Attempt       domain.PaymentAttempt
}

// Service drives the charge state machine and the follow-up operations
// (capture, refund, void) against the gateway, writing outcomes back onto
// the order.
type Service struct {
	gateway ports.GatewayAPI
	orders  ports.OrderRepository
	vault   *vault.Service
	guard   *retry.Guard
	config  Config
	logger  *zap.Logger
}

// NewService creates a new payment orchestrator
func NewService(
	gateway ports.GatewayAPI,
	orders ports.OrderRepository,
	vaultSvc *vault.Service,
	guard *retry.Guard,
	config Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		gateway: gateway,
		orders:  orders,
		vault:   vaultSvc,
		guard:   guard,
		config:  config,
		logger:  logger,
	}
}

// Charge runs one payment attempt end to end: retry check, token
// resolution, optional CSC preverify, the charge-or-auth call, and the
// response write-back. Every failure is converted into the uniform
// order-failed + customer-message + log triple; nothing escapes raw.
func (s *Service) Charge(ctx context.Context, input *domain.ChargeInput) (*ChargeResult, error) {
	order := input.Order
	if order == nil || order.ID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationMissingField, "an order is required to charge")
	}

	s.logger.Info("starting payment attempt",
		zap.String("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("amount", order.Total.String()),
	)

	// Retry check: abort before any wire call once the weekly budget for
	// this order is spent. Throttled aborts do not consume the counter.
	blocked, err := s.guard.IsBlocked(ctx, ports.RetryScopeOrder, order.ID)
	if err != nil {
		return s.failOrder(ctx, order, nil, domain.WrapError(domain.ErrorCodeDatabaseError, "retry guard check failed", err), true)
	}
	if blocked {
		observability.RecordThrottledAttempt()
		return s.failOrder(ctx, order, nil, domain.NewDomainError(domain.ErrorCodeThrottleMaxAttempts, msgMaxAttempts), false)
	}

	// Token resolution
	source, vaultAttempt, tokenAdded, err := s.resolveSource(ctx, input)
	if err != nil {
		return s.failOrder(ctx, order, nil, err, true)
	}

	// CSC preverify for saved-token payments on the direct-post surface
	if s.config.RequireCSC && s.config.APIMethod == domain.APIMethodDirectPost && input.CSCNonce != "" {
		if vaultID := sourceVaultID(source); vaultID != "" {
			if err := s.preverifyCSC(ctx, input.CSCNonce, vaultID); err != nil {
				return s.failOrder(ctx, order, nil, err, true)
			}
		}
	}

	// Charge or authorize
	req := &domain.TransactionRequest{
		Order:       order,
		Profile:     input.Profile,
		Source:      source,
		SendReceipt: input.SendReceipt,
	}

	chargeConfigured := s.config.TransactionType == domain.TransactionTypeCharge
	captured := chargeConfigured

	var attempt domain.PaymentAttempt
	switch {
	case chargeConfigured && tokenAdded && s.config.ProcessorMode == domain.ProcessorModeValidate:
		// The vault create only validated the card; run a full sale now
		attempt, err = s.gateway.Charge(ctx, req)
	case chargeConfigured && tokenAdded:
		// The vault create authorized a nominal amount; capture against it
		attempt, err = s.gateway.Capture(ctx, &domain.ReferenceRequest{
			TransactionID: vaultAttempt.TransactionID(),
			Amount:        order.Total,
			Order:         order,
		})
	case chargeConfigured:
		attempt, err = s.gateway.Charge(ctx, req)
	default:
		attempt, err = s.gateway.Authorize(ctx, req)
	}
	if err != nil {
		return s.failOrder(ctx, order, nil, err, true)
	}
	if !attempt.Approved() {
		return s.failOrder(ctx, order, &attempt, nil, true)
	}

	// Response apply
	result := s.applyResponse(ctx, input, source, attempt, captured)

	observability.RecordPaymentAttempt("approved")
	s.logger.Info("payment approved",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", result.TransactionID),
		zap.String("response_code", attempt.ResponseCode()),
	)
	return result, nil
}

// resolveSource picks the payment instrument for this attempt. Precedence:
// a vault id already on the order, then a saved token the customer picked,
// then a client tokenization payload, then raw card fields. When the card
// is to be saved, the vault create runs here so the charge leg can reuse
// the fresh vault id.
func (s *Service) resolveSource(ctx context.Context, input *domain.ChargeInput) (domain.PaymentSource, domain.PaymentAttempt, bool, error) {
	var empty domain.PaymentAttempt
	order := input.Order

	// Renewal-style charges carry the vault id on the order or its metadata
	if order.StoredVaultID != "" {
		return domain.PaymentSource{VaultID: order.StoredVaultID}, empty, false, nil
	}
	if stored, err := s.orders.GetMeta(ctx, order.ID, MetaPaymentToken); err != nil {
		return domain.PaymentSource{}, empty, false, domain.WrapError(domain.ErrorCodeDatabaseError, "order meta lookup failed", err)
	} else if stored != "" {
		return domain.PaymentSource{VaultID: stored}, empty, false, nil
	}

	// A selected saved token beats any client tokenization payload
	if input.HasSavedToken() {
		token, err := s.vault.Get(ctx, order.UserID, input.SavedTokenID)
		if err != nil {
			return domain.PaymentSource{}, empty, false, err
		}
		return domain.PaymentSource{SavedToken: token}, empty, false, nil
	}

	// Vault the card first when the customer asked to save it
	if s.config.Tokenization && input.SaveCard && (input.HasClientToken() || input.Card != nil) {
		stored, attempt, err := s.vault.Tokenize(ctx, vault.TokenizeInput{
			Order:       order,
			Profile:     input.Profile,
			Card:        input.Card,
			ClientToken: input.ClientToken,
			SendReceipt: input.SendReceipt,
		})
		if err != nil {
			return domain.PaymentSource{}, attempt, false, err
		}
		return domain.PaymentSource{VaultID: stored.VaultCustomerID}, attempt, true, nil
	}

	if input.HasClientToken() {
		return domain.PaymentSource{ClientToken: input.ClientToken}, empty, false, nil
	}
	if input.Card != nil {
		return domain.PaymentSource{Card: input.Card}, empty, false, nil
	}

	return domain.PaymentSource{}, empty, false,
		domain.NewDomainError(domain.ErrorCodeValidationMissingField, "no payment method supplied")
}

// preverifyCSC runs a verify-only call against the vaulted card before the
// real charge and maps AVS and CVV rejections to their specific messages.
func (s *Service) preverifyCSC(ctx context.Context, cscNonce, vaultID string) error {
	attempt, err := s.gateway.VerifyCSC(ctx, cscNonce, vaultID)
	if err != nil {
		return err
	}
	if attempt.Approved() {
		return nil
	}

	var message string
	switch {
	case nmi.HasAVSRejection(attempt):
		message = nmi.MessageAVSMismatch
	case nmi.HasCVVRejection(attempt):
		message = nmi.MessageCSCInvalid
	default:
		message = nmi.UserMessage(attempt)
	}
	return domain.NewDomainError(domain.ErrorCodeValidationCSC, message)
}

// applyResponse writes the approval back onto the order: gateway ids,
// masked card metadata (falling back to the client tokenization payload
// for fields the response did not echo), and the best-effort AVS note.
func (s *Service) applyResponse(ctx context.Context, input *domain.ChargeInput, source domain.PaymentSource, attempt domain.PaymentAttempt, captured bool) *ChargeResult {
	order := input.Order

	vaultID := attempt.CustomerVaultID()
	if vaultID == "" {
		vaultID = sourceVaultID(source)
	}

	capturedFlag := "no"
	if captured {
		capturedFlag = "yes"
	}

	meta := map[string]string{
		MetaTransactionID:  attempt.TransactionID(),
		MetaChargeCaptured: capturedFlag,
		MetaTransDate:      timeutil.Now().Format(transDateLayout),
	}
	if vaultID != "" {
		meta[MetaPaymentToken] = vaultID
		meta[MetaCustomerID] = vaultID
	}
	for key, value := range meta {
		if value == "" {
			continue
		}
		if err := s.orders.SetMeta(ctx, order.ID, key, value); err != nil {
			s.logger.Error("failed to write order meta",
				zap.String("order_id", order.ID),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	note := fmt.Sprintf("Payment approved for %s (Transaction ID %s)", order.Total.StringFixed(2), attempt.TransactionID())
	if !captured {
		note = fmt.Sprintf("Authorization approved for %s (Transaction ID %s)", order.Total.StringFixed(2), attempt.TransactionID())
	}
	if err := s.orders.AddNote(ctx, order.ID, note); err != nil {
		s.logger.Error("failed to add approval note", zap.String("order_id", order.ID), zap.Error(err))
	}

	// AVS annotation is informational only; failures are logged and ignored
	if avsNote := nmi.DecodeAVSResult(attempt.AVSResponse()); avsNote != "" {
		if err := s.orders.AddNote(ctx, order.ID, fmt.Sprintf("AVS Result: %s", avsNote)); err != nil {
			s.logger.Warn("failed to add AVS note", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	return &ChargeResult{
		Approved:      true,
		TransactionID: attempt.TransactionID(),
		AuthCode:      attempt.AuthCode(),
		VaultID:       vaultID,
		Attempt:       attempt,
	}
}

// failOrder is the single failure funnel: it increments the order-scoped
// weekly counter (except for throttle aborts), appends a structured note,
// marks the order failed idempotently, and resolves the customer message.
func (s *Service) failOrder(ctx context.Context, order *domain.Order, attempt *domain.PaymentAttempt, cause error, countAttempt bool) (*ChargeResult, error) {
	if countAttempt {
		if err := s.guard.RecordAttempt(ctx, ports.RetryScopeOrder, order.ID); err != nil {
			s.logger.Error("failed to record order failure", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	reason := s.failureReason(attempt, cause)
	note := fmt.Sprintf("Payment Failed (%s)", reason)

	alreadyFailed, err := s.orders.MarkFailed(ctx, order.ID)
	if err != nil {
		s.logger.Error("failed to mark order failed", zap.String("order_id", order.ID), zap.Error(err))
	}
	// The note goes on regardless so repeated checkout failures stay visible
	if err := s.orders.AddNote(ctx, order.ID, note); err != nil {
		s.logger.Error("failed to add failure note", zap.String("order_id", order.ID), zap.Error(err))
	}

	userMessage := s.userMessage(attempt, cause)

	outcome := "failed"
	if attempt != nil && attempt.Declined() {
		outcome = "declined"
	}
	observability.RecordPaymentAttempt(outcome)

	s.logger.Warn("payment failed",
		zap.String("order_id", order.ID),
		zap.String("reason", reason),
		zap.Bool("already_failed", alreadyFailed),
	)

	result := &ChargeResult{
		Approved:    false,
		UserMessage: userMessage,
	}
	if attempt != nil {
		result.Attempt = *attempt
		result.TransactionID = attempt.TransactionID()
	}

	if cause != nil {
		return result, cause
	}
	if attempt == nil {
		return result, domain.NewDomainError(domain.ErrorCodeGatewayDeclined, userMessage)
	}

	// Wrap the structured payment error so callers can dispatch on its
	// category and surface whether a retry is worthwhile.
	perr := nmi.ToPaymentError(*attempt)
	result.Retriable = perr.IsRetriable
	code := domain.ErrorCodeGatewayDeclined
	if perr.Category == pkgerrors.CategoryTimeout {
		code = domain.ErrorCodeGatewayTimeout
	}
	return result, domain.WrapError(code, userMessage, perr)
}

// failureReason produces the note-facing description of what went wrong
func (s *Service) failureReason(attempt *domain.PaymentAttempt, cause error) string {
	if cause != nil {
		return cause.Error()
	}
	if attempt != nil {
		if text := attempt.ResponseText(); text != "" {
			return fmt.Sprintf("%s [code %s]", text, attempt.ResponseCode())
		}
		return fmt.Sprintf("gateway response code %s", attempt.ResponseCode())
	}
	return "unknown error"
}

// userMessage resolves the customer-safe text: mapped decline reason when
// detailed messages are on, then the specific validation message, then the
// generic apology.
func (s *Service) userMessage(attempt *domain.PaymentAttempt, cause error) string {
	message := ""
	if attempt != nil && s.config.DetailedDeclineMessages {
		message = nmi.UserMessage(*attempt)
	}
	if message == "" && cause != nil {
		var domainErr *domain.DomainError
		if errors.As(cause, &domainErr) {
			message = domainErr.Message
		}
	}
	if message == "" {
		message = nmi.MessageGenericFailure
	}
	return message
}

// Capture settles a previous authorization for the order's total or an
// explicit partial amount.
func (s *Service) Capture(ctx context.Context, order *domain.Order, amount decimal.Decimal) (*ChargeResult, error) {
	transactionID, err := s.transactionID(ctx, order)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		amount = order.Total
	}

	attempt, err := s.gateway.Capture(ctx, &domain.ReferenceRequest{
		TransactionID: transactionID,
		Amount:        amount,
		Order:         order,
	})
	if err != nil {
		return nil, err
	}
	if !attempt.Approved() {
		message := s.userMessage(&attempt, nil)
		s.noteFailure(ctx, order, "Capture Failed", attempt)
		return &ChargeResult{Attempt: attempt, UserMessage: message},
			domain.WrapError(domain.ErrorCodeGatewayError, message, nmi.ToPaymentError(attempt))
	}

	if err := s.orders.SetMeta(ctx, order.ID, MetaChargeCaptured, "yes"); err != nil {
		s.logger.Error("failed to set capture flag", zap.String("order_id", order.ID), zap.Error(err))
	}
	note := fmt.Sprintf("Capture Approved for %s (Transaction ID %s)", amount.StringFixed(2), attempt.TransactionID())
	if err := s.orders.AddNote(ctx, order.ID, note); err != nil {
		s.logger.Error("failed to add capture note", zap.String("order_id", order.ID), zap.Error(err))
	}

	return &ChargeResult{
		Approved:      true,
		TransactionID: attempt.TransactionID(),
		Attempt:       attempt,
	}, nil
}

// Refund returns funds on a settled transaction
func (s *Service) Refund(ctx context.Context, order *domain.Order, amount decimal.Decimal) (*ChargeResult, error) {
	transactionID, err := s.transactionID(ctx, order)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		amount = order.Total
	}

	attempt, err := s.gateway.Refund(ctx, &domain.ReferenceRequest{
		TransactionID: transactionID,
		Amount:        amount,
		Order:         order,
	})
	if err != nil {
		return nil, err
	}
	if !attempt.Approved() {
		message := s.userMessage(&attempt, nil)
		s.noteFailure(ctx, order, "Refund Failed", attempt)
		return &ChargeResult{Attempt: attempt, UserMessage: message},
			domain.WrapError(domain.ErrorCodeGatewayError, message, nmi.ToPaymentError(attempt))
	}

	note := fmt.Sprintf("Refund Approved for %s (Transaction ID %s)", amount.StringFixed(2), attempt.TransactionID())
	if err := s.orders.AddNote(ctx, order.ID, note); err != nil {
		s.logger.Error("failed to add refund note", zap.String("order_id", order.ID), zap.Error(err))
	}

	return &ChargeResult{
		Approved:      true,
		TransactionID: attempt.TransactionID(),
		Attempt:       attempt,
	}, nil
}

// Void cancels an unsettled transaction
func (s *Service) Void(ctx context.Context, order *domain.Order) (*ChargeResult, error) {
	transactionID, err := s.transactionID(ctx, order)
	if err != nil {
		return nil, err
	}

	attempt, err := s.gateway.Void(ctx, &domain.ReferenceRequest{
		TransactionID: transactionID,
		Amount:        order.Total,
		Order:         order,
	})
	if err != nil {
		return nil, err
	}
	if !attempt.Approved() {
		message := s.userMessage(&attempt, nil)
		s.noteFailure(ctx, order, "Void Failed", attempt)
		return &ChargeResult{Attempt: attempt, UserMessage: message},
			domain.WrapError(domain.ErrorCodeGatewayError, message, nmi.ToPaymentError(attempt))
	}

	note := fmt.Sprintf("Void Approved (Transaction ID %s)", attempt.TransactionID())
	if err := s.orders.AddNote(ctx, order.ID, note); err != nil {
		s.logger.Error("failed to add void note", zap.String("order_id", order.ID), zap.Error(err))
	}

	return &ChargeResult{
		Approved:      true,
		TransactionID: attempt.TransactionID(),
		Attempt:       attempt,
	}, nil
}

// transactionID reads the order's gateway transaction id from its metadata
func (s *Service) transactionID(ctx context.Context, order *domain.Order) (string, error) {
	if order == nil || order.ID == "" {
		return "", domain.NewDomainError(domain.ErrorCodeValidationMissingField, "an order is required")
	}
	transactionID, err := s.orders.GetMeta(ctx, order.ID, MetaTransactionID)
	if err != nil {
		return "", domain.WrapError(domain.ErrorCodeDatabaseError, "order meta lookup failed", err)
	}
	if transactionID == "" {
		return "", domain.NewDomainError(domain.ErrorCodeValidationMissingField,
			fmt.Sprintf("order %s has no recorded transaction id", order.ID))
	}
	return transactionID, nil
}

func (s *Service) noteFailure(ctx context.Context, order *domain.Order, prefix string, attempt domain.PaymentAttempt) {
	note := fmt.Sprintf("%s (%s [code %s])", prefix, attempt.ResponseText(), attempt.ResponseCode())
	if err := s.orders.AddNote(ctx, order.ID, note); err != nil {
		s.logger.Error("failed to add order note", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func sourceVaultID(source domain.PaymentSource) string {
	if source.VaultID != "" {
		return source.VaultID
	}
	if source.SavedToken != nil {
		return source.SavedToken.VaultCustomerID
	}
	return ""
}
