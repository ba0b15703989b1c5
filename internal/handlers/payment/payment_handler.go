package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/adapters/nmi"
	"github.com/kevin07696/nmi-gateway/internal/domain"
	paymentsvc "github.com/kevin07696/nmi-gateway/internal/services/payment"
	pkgerrors "github.com/kevin07696/nmi-gateway/pkg/errors"
)

// Handler exposes the payment operations to the host order system as a
// small JSON surface. The host owns the order lifecycle; every request
// carries the order snapshot the operation applies to.
type Handler struct {
	payments *paymentsvc.Service
	logger   *zap.Logger
}

// NewHandler creates a new payment handler
func NewHandler(payments *paymentsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{
		payments: payments,
		logger:   logger,
	}
}

// ChargeResponse is the JSON answer for charge, capture, refund and void
type ChargeResponse struct {
	Approved      bool   `json:"approved"`
	TransactionID string `json:"transaction_id,omitempty"`
	AuthCode      string `json:"auth_code,omitempty"`
	VaultID       string `json:"vault_id,omitempty"`
	UserMessage   string `json:"user_message,omitempty"`
	// Retriable tells the host whether re-submitting the same payment
	// could succeed (timeouts and retry-coded declines).
	Retriable bool `json:"retriable,omitempty"`
}

// ReferenceRequest addresses a prior transaction through its order
type ReferenceRequest struct {
	Order  *domain.Order   `json:"order"`
	Amount decimal.Decimal `json:"amount"`
}

// Charge handles POST /api/v1/payments/charge
func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	var input domain.ChargeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.payments.Charge(r.Context(), &input)
	if err != nil {
		h.logger.Warn("charge rejected",
			zap.String("error_code", string(domain.GetErrorCode(err))),
			zap.Error(err),
		)
		resp := ChargeResponse{Approved: false}
		if result != nil {
			resp.TransactionID = result.TransactionID
			resp.UserMessage = result.UserMessage
			resp.Retriable = result.Retriable
		}
		if resp.UserMessage == "" {
			resp.UserMessage = userMessageFor(err)
		}
		respondJSON(w, statusForError(err), resp)
		return
	}

	respondJSON(w, http.StatusOK, ChargeResponse{
		Approved:      result.Approved,
		TransactionID: result.TransactionID,
		AuthCode:      result.AuthCode,
		VaultID:       result.VaultID,
	})
}

// Capture handles POST /api/v1/payments/capture
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeReference(w, r)
	if !ok {
		return
	}
	result, err := h.payments.Capture(r.Context(), req.Order, req.Amount)
	h.respondReference(w, result, err)
}

// Refund handles POST /api/v1/payments/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeReference(w, r)
	if !ok {
		return
	}
	result, err := h.payments.Refund(r.Context(), req.Order, req.Amount)
	h.respondReference(w, result, err)
}

// Void handles POST /api/v1/payments/void
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeReference(w, r)
	if !ok {
		return
	}
	result, err := h.payments.Void(r.Context(), req.Order)
	h.respondReference(w, result, err)
}

func (h *Handler) decodeReference(w http.ResponseWriter, r *http.Request) (ReferenceRequest, bool) {
	var req ReferenceRequest
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Order == nil || req.Order.ID == "" {
		respondError(w, http.StatusBadRequest, "order is required")
		return req, false
	}
	return req, true
}

func (h *Handler) respondReference(w http.ResponseWriter, result *paymentsvc.ChargeResult, err error) {
	if err != nil {
		h.logger.Warn("reference operation failed",
			zap.String("error_code", string(domain.GetErrorCode(err))),
			zap.Error(err),
		)
		resp := ChargeResponse{Approved: false}
		if result != nil {
			resp.TransactionID = result.TransactionID
			resp.UserMessage = result.UserMessage
			resp.Retriable = result.Retriable
		}
		if resp.UserMessage == "" {
			resp.UserMessage = userMessageFor(err)
		}
		respondJSON(w, statusForError(err), resp)
		return
	}
	respondJSON(w, http.StatusOK, ChargeResponse{
		Approved:      result.Approved,
		TransactionID: result.TransactionID,
		AuthCode:      result.AuthCode,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain error codes onto HTTP statuses. A wrapped
// gateway payment error is dispatched first, on its category.
func statusForError(err error) int {
	var perr *pkgerrors.PaymentError
	if errors.As(err, &perr) {
		switch perr.Category {
		case pkgerrors.CategoryTimeout:
			return http.StatusGatewayTimeout
		case pkgerrors.CategoryDeclined:
			return http.StatusPaymentRequired
		}
	}

	switch {
	case domain.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case domain.IsThrottleError(err):
		return http.StatusTooManyRequests
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case domain.IsDomainError(err, domain.ErrorCodeGatewayTimeout):
		return http.StatusGatewayTimeout
	case domain.IsGatewayError(err):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func userMessageFor(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return nmi.MessageGenericFailure
}
