package mocks

import (
	"context"
	"sync"

	"github.com/kevin07696/nmi-gateway/internal/domain"
)

// MockGatewayAPI is a mock implementation of GatewayAPI for testing
type MockGatewayAPI struct {
	mu sync.Mutex

	// Responses to return
	chargeAttempt    domain.PaymentAttempt
	chargeError      error
	authorizeAttempt domain.PaymentAttempt
	authorizeError   error
	captureAttempt   domain.PaymentAttempt
	captureError     error
	refundAttempt    domain.PaymentAttempt
	refundError      error
	voidAttempt      domain.PaymentAttempt
	voidError        error
	vaultAttempt     domain.PaymentAttempt
	vaultError       error
	verifyAttempt    domain.PaymentAttempt
	verifyError      error

	// Call tracking
	ChargeCalls    int
	AuthorizeCalls int
	CaptureCalls   int
	RefundCalls    int
	VoidCalls      int
	VaultCalls     int
	VerifyCalls    int

	// Last request received
	LastChargeReq    *domain.TransactionRequest
	LastAuthorizeReq *domain.TransactionRequest
	LastCaptureReq   *domain.ReferenceRequest
	LastRefundReq    *domain.ReferenceRequest
	LastVoidReq      *domain.ReferenceRequest
	LastVaultReq     *domain.TransactionRequest
	LastVerifyNonce  string
	LastVerifyVault  string
}

// NewMockGatewayAPI creates a new mock gateway
func NewMockGatewayAPI() *MockGatewayAPI {
	return &MockGatewayAPI{}
}

// ApprovedAttempt builds an approved attempt with common response fields
func ApprovedAttempt(fields map[string]string) domain.PaymentAttempt {
	merged := map[string]string{
		"response":      "1",
		"response_code": "100",
		"responsetext":  "SUCCESS",
		"transactionid": "1234567890",
		"authcode":      "123456",
	}
	for k, v := range fields {
		merged[k] = v
	}
	return domain.NewPaymentAttempt(true, false, false, merged)
}

// DeclinedAttempt builds a declined attempt with common response fields
func DeclinedAttempt(fields map[string]string) domain.PaymentAttempt {
	merged := map[string]string{
		"response":      "2",
		"response_code": "200",
		"responsetext":  "DECLINE",
		"transactionid": "1234567890",
	}
	for k, v := range fields {
		merged[k] = v
	}
	return domain.NewPaymentAttempt(false, true, true, merged)
}

// ErrorAttempt builds an error attempt with common response fields
func ErrorAttempt(fields map[string]string) domain.PaymentAttempt {
	merged := map[string]string{
		"response":      "3",
		"response_code": "300",
		"responsetext":  "Transaction was rejected by gateway",
	}
	for k, v := range fields {
		merged[k] = v
	}
	return domain.NewPaymentAttempt(false, false, true, merged)
}

// SetChargeResponse sets the response to return from Charge
func (m *MockGatewayAPI) SetChargeResponse(attempt domain.PaymentAttempt, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chargeAttempt = attempt
	m.chargeError = err
}

// SetAuthorizeResponse sets the response to return from Authorize
func (m *MockGatewayAPI) SetAuthorizeResponse(attempt domain.PaymentAttempt, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorizeAttempt = attempt
	m.authorizeError = err
}

// SetCaptureResponse sets the response to return from Capture
func (m *MockGatewayAPI) SetCaptureResponse(attempt domain.PaymentAttempt, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureAttempt = attempt
	m.captureError = err
}

// SetRefundResponse sets the response to return from Refund
func (m *MockGatewayAPI) SetRefundResponse(attempt domain.PaymentAttempt, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refundAttempt = attempt
	m.refundError = err
}

// SetVoidResponse sets the response to return from Void
func (m *MockGatewayAPI) SetVoidResponse(attempt domain.PaymentAttempt, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voidAttempt = attempt
	m.voidError = err
}

// SetVaultResponse sets the response to return from CreateVaultCustomer
func (m *MockGatewayAPI) SetVaultResponse(attempt domain.PaymentAttempt, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vaultAttempt = attempt
	m.vaultError = err
}

// SetVerifyCSCResponse sets the response to return from VerifyCSC
func (m *MockGatewayAPI) SetVerifyCSCResponse(attempt domain.PaymentAttempt, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyAttempt = attempt
	m.verifyError = err
}

// Charge returns the configured charge response
func (m *MockGatewayAPI) Charge(ctx context.Context, req *domain.TransactionRequest) (domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChargeCalls++
	m.LastChargeReq = req
	return m.chargeAttempt, m.chargeError
}

// Authorize returns the configured authorize response
func (m *MockGatewayAPI) Authorize(ctx context.Context, req *domain.TransactionRequest) (domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AuthorizeCalls++
	m.LastAuthorizeReq = req
	return m.authorizeAttempt, m.authorizeError
}

// Capture returns the configured capture response
func (m *MockGatewayAPI) Capture(ctx context.Context, req *domain.ReferenceRequest) (domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CaptureCalls++
	m.LastCaptureReq = req
	return m.captureAttempt, m.captureError
}

// Refund returns the configured refund response
func (m *MockGatewayAPI) Refund(ctx context.Context, req *domain.ReferenceRequest) (domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefundCalls++
	m.LastRefundReq = req
	return m.refundAttempt, m.refundError
}

// Void returns the configured void response
func (m *MockGatewayAPI) Void(ctx context.Context, req *domain.ReferenceRequest) (domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VoidCalls++
	m.LastVoidReq = req
	return m.voidAttempt, m.voidError
}

// CreateVaultCustomer returns the configured vault response
func (m *MockGatewayAPI) CreateVaultCustomer(ctx context.Context, req *domain.TransactionRequest) (domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VaultCalls++
	m.LastVaultReq = req
	return m.vaultAttempt, m.vaultError
}

// VerifyCSC returns the configured verification response
func (m *MockGatewayAPI) VerifyCSC(ctx context.Context, cscNonce, vaultID string) (domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VerifyCalls++
	m.LastVerifyNonce = cscNonce
	m.LastVerifyVault = vaultID
	return m.verifyAttempt, m.verifyError
}
