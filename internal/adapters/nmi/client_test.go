package nmi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/test/mocks"
)

func securityKeyConfig() *Config {
	cfg := DefaultConfig(domain.EnvironmentSandbox)
	cfg.SecurityKey = "sk_test"
	return cfg
}

func chargeRequest() *domain.TransactionRequest {
	return &domain.TransactionRequest{
		Order: &domain.Order{
			ID:     "1001",
			Number: "1001",
			Total:  decimal.RequireFromString("10.00"),
			Billing: domain.Address{
				FirstName: "Ada",
				LastName:  "Lovelace",
				Email:     "ada@example.com",
			},
		},
		Source: domain.PaymentSource{VaultID: "vault-1"},
	}
}

func TestClientCharge_SecurityKeyEndpoint(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(nil)
	client := NewClient(securityKeyConfig(), httpClient, zap.NewNop())

	attempt, err := client.Charge(context.Background(), chargeRequest())
	require.NoError(t, err)
	assert.True(t, attempt.Approved())

	require.Len(t, httpClient.Calls, 1)
	call := httpClient.Calls[0]
	assert.Equal(t, http.MethodGet, call.Method)
	assert.Equal(t, "secure.nmi.com", call.URL.Host)

	query := call.URL.Query()
	assert.Equal(t, "sk_test", query.Get("security_key"))
	assert.Equal(t, "sale", query.Get("type"))
	assert.Equal(t, "10.00", query.Get("amount"))
	assert.Equal(t, "vault-1", query.Get("customer_vault_id"))
	assert.Empty(t, query.Get("username"))
}

func TestClientCharge_DirectPostEndpoint(t *testing.T) {
	cfg := DefaultConfig(domain.EnvironmentProduction)
	cfg.Username = "merchant"
	cfg.Password = "hunter2"

	httpClient := mocks.NewMockHTTPClient(nil)
	client := NewClient(cfg, httpClient, zap.NewNop())

	_, err := client.Charge(context.Background(), chargeRequest())
	require.NoError(t, err)

	require.Len(t, httpClient.Calls, 1)
	call := httpClient.Calls[0]
	assert.Equal(t, "secure.networkmerchants.com", call.URL.Host)
	assert.Equal(t, "merchant", call.URL.Query().Get("username"))
	assert.Equal(t, "hunter2", call.URL.Query().Get("password"))
}

func TestClientCharge_MissingCredentials(t *testing.T) {
	cfg := DefaultConfig(domain.EnvironmentSandbox)
	httpClient := mocks.NewMockHTTPClient(nil)
	client := NewClient(cfg, httpClient, zap.NewNop())

	_, err := client.Charge(context.Background(), chargeRequest())
	require.ErrorIs(t, err, domain.ErrCredentialsMissing)
	assert.Empty(t, httpClient.Calls)
}

func TestClientCharge_TransportFailureSynthesizesAttempt(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: i/o timeout")
	})
	client := NewClient(securityKeyConfig(), httpClient, zap.NewNop())

	attempt, err := client.Charge(context.Background(), chargeRequest())
	require.NoError(t, err)
	assert.True(t, attempt.Failed())
	assert.False(t, attempt.Approved())
	assert.Equal(t, ResponseCodeTimeout, attempt.ResponseCode())
}

func TestClientCharge_DeclinedBody(t *testing.T) {
	body := "response=2&responsetext=DECLINE&authcode=&transactionid=77&avsresponse=N&cvvresponse=N&orderid=1001&type=sale&response_code=200"
	httpClient := mocks.NewMockHTTPClientWithBody(body)
	client := NewClient(securityKeyConfig(), httpClient, zap.NewNop())

	attempt, err := client.Charge(context.Background(), chargeRequest())
	require.NoError(t, err)
	assert.True(t, attempt.Declined())
	assert.True(t, attempt.Failed())
	assert.Equal(t, "77", attempt.TransactionID())
}

func TestClientVerifyCSC(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(nil)
	client := NewClient(securityKeyConfig(), httpClient, zap.NewNop())

	_, err := client.VerifyCSC(context.Background(), "nonce-1", "vault-9")
	require.NoError(t, err)

	require.Len(t, httpClient.Calls, 1)
	query := httpClient.Calls[0].URL.Query()
	assert.Equal(t, "validate", query.Get("type"))
	assert.Equal(t, "vault-9", query.Get("customer_vault_id"))
	assert.Equal(t, "nonce-1", query.Get("payment_token"))
}

func TestClientCreateVaultCustomer(t *testing.T) {
	body := approvedBody + "&customer_vault_id=987654321"
	httpClient := mocks.NewMockHTTPClientWithBody(body)
	client := NewClient(securityKeyConfig(), httpClient, zap.NewNop())

	req := chargeRequest()
	req.Source = domain.PaymentSource{
		Card: &domain.CardDetails{Number: "4111111111111111", Expiry: "12 / 30", CSC: "999"},
	}

	attempt, err := client.CreateVaultCustomer(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, attempt.Approved())
	assert.Equal(t, "987654321", attempt.CustomerVaultID())

	query := httpClient.Calls[0].URL.Query()
	assert.Equal(t, "add_customer", query.Get("customer_vault"))
}

func TestClientVoid_SendsCancel(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(nil)
	client := NewClient(securityKeyConfig(), httpClient, zap.NewNop())

	ref := &domain.ReferenceRequest{
		TransactionID: "555",
		Amount:        decimal.RequireFromString("10.00"),
		Order:         chargeRequest().Order,
	}
	_, err := client.Void(context.Background(), ref)
	require.NoError(t, err)

	query := httpClient.Calls[0].URL.Query()
	assert.Equal(t, "cancel", query.Get("type"))
	assert.Equal(t, "555", query.Get("transactionid"))
}
