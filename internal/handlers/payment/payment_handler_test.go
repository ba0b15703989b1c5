package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
	paymentsvc "github.com/kevin07696/nmi-gateway/internal/services/payment"
	"github.com/kevin07696/nmi-gateway/internal/services/retry"
	"github.com/kevin07696/nmi-gateway/internal/services/vault"
	"github.com/kevin07696/nmi-gateway/pkg/timeutil"
	"github.com/kevin07696/nmi-gateway/test/mocks"
)

type handlerFixture struct {
	handler *Handler
	tokens  *TokenHandler
	gateway *mocks.MockGatewayAPI
	orders  *mocks.MockOrderRepository
	repo    *mocks.MockTokenRepository
	retries *mocks.MockRetryRepository
}

func newHandlerFixture(threshold int) *handlerFixture {
	gateway := mocks.NewMockGatewayAPI()
	orders := mocks.NewMockOrderRepository()
	repo := mocks.NewMockTokenRepository()
	retries := mocks.NewMockRetryRepository()
	guard := retry.NewGuard(retries, threshold, zap.NewNop())
	vaultSvc := vault.NewService(gateway, repo, guard, domain.EnvironmentSandbox, nil, zap.NewNop())
	payments := paymentsvc.NewService(gateway, orders, vaultSvc, guard, paymentsvc.Config{
		TransactionType: domain.TransactionTypeCharge,
		ProcessorMode:   domain.ProcessorModeAuth,
		APIMethod:       domain.APIMethodCollectJS,
	}, zap.NewNop())

	return &handlerFixture{
		handler: NewHandler(payments, zap.NewNop()),
		tokens:  NewTokenHandler(vaultSvc, zap.NewNop()),
		gateway: gateway,
		orders:  orders,
		repo:    repo,
		retries: retries,
	}
}

func chargeBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"order": map[string]any{
			"id":     "1001",
			"number": "1001",
			"total":  "25.50",
			"billing": map[string]any{
				"first_name": "Ada",
				"email":      "ada@example.com",
			},
		},
		"client_token": map[string]any{"token": "tok_abc"},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestChargeHandler_Approved(t *testing.T) {
	f := newHandlerFixture(0)
	f.gateway.SetChargeResponse(mocks.ApprovedAttempt(map[string]string{"transactionid": "tx-1", "authcode": "A1"}), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/charge", chargeBody(t))
	rec := httptest.NewRecorder()
	f.handler.Charge(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChargeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Approved)
	assert.Equal(t, "tx-1", resp.TransactionID)
	assert.Equal(t, "A1", resp.AuthCode)
	assert.Empty(t, resp.UserMessage)
}

func TestChargeHandler_Declined(t *testing.T) {
	f := newHandlerFixture(0)
	f.gateway.SetChargeResponse(mocks.DeclinedAttempt(nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/charge", chargeBody(t))
	rec := httptest.NewRecorder()
	f.handler.Charge(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	var resp ChargeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Approved)
	assert.NotEmpty(t, resp.UserMessage)
}

func TestChargeHandler_TransportTimeout(t *testing.T) {
	f := newHandlerFixture(0)
	f.gateway.SetChargeResponse(mocks.ErrorAttempt(map[string]string{
		"response_code": "3004",
		"responsetext":  "context deadline exceeded",
	}), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/charge", chargeBody(t))
	rec := httptest.NewRecorder()
	f.handler.Charge(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	var resp ChargeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Approved)
	assert.True(t, resp.Retriable)
}

func TestChargeHandler_Throttled(t *testing.T) {
	f := newHandlerFixture(3)
	f.retries.SetCount(ports.RetryScopeOrder, "1001", timeutil.WeekKey(timeutil.Now()), 3)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/charge", chargeBody(t))
	rec := httptest.NewRecorder()
	f.handler.Charge(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp ChargeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.UserMessage, "Maximum attempt limit reached")
}

func TestChargeHandler_BadJSON(t *testing.T) {
	f := newHandlerFixture(0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/charge", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	f.handler.Charge(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChargeHandler_MethodNotAllowed(t *testing.T) {
	f := newHandlerFixture(0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/charge", nil)
	rec := httptest.NewRecorder()
	f.handler.Charge(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCaptureHandler(t *testing.T) {
	f := newHandlerFixture(0)
	require.NoError(t, f.orders.SetMeta(context.Background(), "1001", paymentsvc.MetaTransactionID, "tx-1"))
	f.gateway.SetCaptureResponse(mocks.ApprovedAttempt(map[string]string{"transactionid": "tx-1"}), nil)

	body, err := json.Marshal(map[string]any{
		"order":  map[string]any{"id": "1001", "number": "1001", "total": "25.50"},
		"amount": "25.50",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/capture", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	f.handler.Capture(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChargeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Approved)
	assert.Equal(t, "tx-1", resp.TransactionID)
}

func TestCaptureHandler_MissingOrder(t *testing.T) {
	f := newHandlerFixture(0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/capture", bytes.NewBufferString(`{"amount":"1.00"}`))
	rec := httptest.NewRecorder()
	f.handler.Capture(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoidHandler_NoTransactionOnOrder(t *testing.T) {
	f := newHandlerFixture(0)

	body := `{"order":{"id":"1001","number":"1001","total":"25.50"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/void", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	f.handler.Void(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTokensHandler_TokenizeAndList(t *testing.T) {
	f := newHandlerFixture(0)
	f.gateway.SetVaultResponse(mocks.ApprovedAttempt(map[string]string{"customer_vault_id": "vault-1"}), nil)

	body := `{"profile":{"user_id":7},"client_token":{"token":"tok_abc","last_four":"1111","brand":"visa","expiry":"1230"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	f.tokens.Tokens(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "1111", created.LastFour)
	assert.Equal(t, "visa", created.Brand)
	assert.Equal(t, "12/30", created.Expiry)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/tokens?user_id=7", nil)
	listRec := httptest.NewRecorder()
	f.tokens.Tokens(listRec, listReq)

	require.Equal(t, http.StatusOK, listRec.Code)
	var listed struct {
		Tokens []TokenResponse `json:"tokens"`
	}
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&listed))
	require.Len(t, listed.Tokens, 1)
	assert.Equal(t, created.ID, listed.Tokens[0].ID)
}

func TestTokensHandler_TokenizeWithoutSource(t *testing.T) {
	f := newHandlerFixture(0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens", bytes.NewBufferString(`{"profile":{"user_id":7}}`))
	rec := httptest.NewRecorder()
	f.tokens.Tokens(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokensHandler_ListRequiresUserID(t *testing.T) {
	f := newHandlerFixture(0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens", nil)
	rec := httptest.NewRecorder()
	f.tokens.Tokens(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenHandler_Delete(t *testing.T) {
	f := newHandlerFixture(0)
	f.repo.Seed(&domain.PaymentToken{ID: "tok-1", UserID: 7, Environment: domain.EnvironmentSandbox, VaultCustomerID: "v1"})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tokens/tok-1?user_id=7", nil)
	rec := httptest.NewRecorder()
	f.tokens.Token(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// a second delete reads as not found
	rec = httptest.NewRecorder()
	f.tokens.Token(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/tokens/tok-1?user_id=7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenHandler_DeleteForeignToken(t *testing.T) {
	f := newHandlerFixture(0)
	f.repo.Seed(&domain.PaymentToken{ID: "tok-1", UserID: 7, Environment: domain.EnvironmentSandbox, VaultCustomerID: "v1"})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tokens/tok-1?user_id=8", nil)
	rec := httptest.NewRecorder()
	f.tokens.Token(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the token is still there for its owner
	listRec := httptest.NewRecorder()
	f.tokens.Tokens(listRec, httptest.NewRequest(http.MethodGet, "/api/v1/tokens?user_id=7", nil))
	var listed struct {
		Tokens []TokenResponse `json:"tokens"`
	}
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&listed))
	assert.Len(t, listed.Tokens, 1)
}
