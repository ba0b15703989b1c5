package payment

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/services/vault"
)

// TokenHandler exposes saved-token management: tokenize a card, list a
// user's tokens, and delete one. All operations are scoped to the user id
// the host passes through.
type TokenHandler struct {
	vault  *vault.Service
	logger *zap.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(vaultSvc *vault.Service, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		vault:  vaultSvc,
		logger: logger,
	}
}

// TokenizeRequest vaults a card outside checkout (account page flow)
type TokenizeRequest struct {
	Profile     *domain.CustomerProfile `json:"profile"`
	Card        *domain.CardDetails     `json:"card,omitempty"`
	ClientToken *domain.ClientToken     `json:"client_token,omitempty"`
}

// TokenResponse is the JSON shape of one saved token
type TokenResponse struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	LastFour  string `json:"last_four"`
	Expiry    string `json:"expiry"`
	IsDefault bool   `json:"is_default"`
}

// Tokens routes /api/v1/tokens by method: POST tokenizes, GET lists
func (h *TokenHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.tokenize(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// Token handles DELETE /api/v1/tokens/{id}
func (h *TokenHandler) Token(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		respondError(w, http.StatusMethodNotAllowed, "only DELETE method is allowed")
		return
	}

	tokenID := strings.TrimPrefix(r.URL.Path, "/api/v1/tokens/")
	if tokenID == "" || strings.Contains(tokenID, "/") {
		respondError(w, http.StatusBadRequest, "token id is required")
		return
	}
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	removed, err := h.vault.Remove(r.Context(), userID, tokenID)
	if err != nil {
		h.logger.Error("token removal failed", zap.String("token_id", tokenID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to remove token")
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "token not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (h *TokenHandler) tokenize(w http.ResponseWriter, r *http.Request) {
	var req TokenizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Card == nil && req.ClientToken == nil {
		respondError(w, http.StatusBadRequest, "a card or client token is required")
		return
	}

	token, _, err := h.vault.Tokenize(r.Context(), vault.TokenizeInput{
		Profile:     req.Profile,
		Card:        req.Card,
		ClientToken: req.ClientToken,
	})
	if err != nil {
		h.logger.Warn("tokenization failed",
			zap.String("error_code", string(domain.GetErrorCode(err))),
			zap.Error(err),
		)
		respondJSON(w, statusForError(err), map[string]string{"error": userMessageFor(err)})
		return
	}

	respondJSON(w, http.StatusCreated, toTokenResponse(token))
}

func (h *TokenHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	tokens, err := h.vault.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("token list failed", zap.Int64("user_id", userID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}

	out := make([]TokenResponse, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, toTokenResponse(token))
	}
	respondJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "a positive user_id is required")
		return 0, false
	}
	return userID, true
}

func toTokenResponse(token *domain.PaymentToken) TokenResponse {
	return TokenResponse{
		ID:        token.ID,
		Brand:     token.Brand,
		LastFour:  token.LastFour,
		Expiry:    token.ExpiryDisplay(),
		IsDefault: token.IsDefault,
	}
}
