package nmi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
	"github.com/kevin07696/nmi-gateway/pkg/observability"
)

// Gateway endpoints. The host used depends on the credential scheme.
const (
	// EndpointSecurityKey serves Collect.js / security-key traffic
	EndpointSecurityKey = "https://secure.nmi.com/api/transact.php"
	// EndpointDirectPost serves username/password direct-post traffic
	EndpointDirectPost = "https://secure.networkmerchants.com/api/transact.php"
)

// Config contains configuration for the NMI gateway client
type Config struct {
	Environment domain.Environment

	// Credentials. SecurityKey and the username/password pair are mutually
	// exclusive; whichever is set selects the endpoint.
	Username    string
	Password    string
	SecurityKey string

	// How customer vault records are verified on creation
	ProcessorMode domain.ProcessorMode

	Currency    string
	SendReceipt bool

	// Per-call deadline. The gateway performs no automatic retries; a
	// timeout surfaces as a synthesized error response.
	Timeout time.Duration
}

// DefaultConfig returns default configuration for the gateway client
func DefaultConfig(environment domain.Environment) *Config {
	return &Config{
		Environment:   environment,
		ProcessorMode: domain.ProcessorModeAuth,
		Currency:      "USD",
		Timeout:       60 * time.Second,
	}
}

// Client talks to the NMI transaction API: HTTP GET with query-string
// encoded fields, responses as &-delimited key=value bodies.
type Client struct {
	config     *Config
	httpClient ports.HTTPClient
	builder    *RequestBuilder
	logger     *zap.Logger
}

// NewClient creates a gateway client
func NewClient(config *Config, httpClient ports.HTTPClient, logger *zap.Logger) *Client {
	return &Client{
		config:     config,
		httpClient: httpClient,
		builder:    NewRequestBuilder(logger),
		logger:     logger,
	}
}

var _ ports.GatewayAPI = (*Client)(nil)

// Charge runs an auth-and-capture sale
func (c *Client) Charge(ctx context.Context, req *domain.TransactionRequest) (domain.PaymentAttempt, error) {
	data, err := c.builder.BuildTransaction("sale", req, c.config.Currency, c.config.SendReceipt)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	return c.send(ctx, data)
}

// Authorize places a hold without capturing
func (c *Client) Authorize(ctx context.Context, req *domain.TransactionRequest) (domain.PaymentAttempt, error) {
	data, err := c.builder.BuildTransaction("auth", req, c.config.Currency, c.config.SendReceipt)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	return c.send(ctx, data)
}

// Capture settles a previous authorization
func (c *Client) Capture(ctx context.Context, req *domain.ReferenceRequest) (domain.PaymentAttempt, error) {
	return c.send(ctx, c.builder.BuildCapture(req, c.config.Currency))
}

// Refund returns funds on a settled transaction
func (c *Client) Refund(ctx context.Context, req *domain.ReferenceRequest) (domain.PaymentAttempt, error) {
	reason := fmt.Sprintf("Refunding amount %s for order %s and transaction ID: %s",
		req.Amount.StringFixed(2), req.Order.Number, req.TransactionID)
	return c.send(ctx, c.builder.BuildRefund(req, reason, c.config.Currency))
}

// Void cancels an unsettled transaction
func (c *Client) Void(ctx context.Context, req *domain.ReferenceRequest) (domain.PaymentAttempt, error) {
	reason := fmt.Sprintf("Voiding order %s with transaction ID: %s", req.Order.Number, req.TransactionID)
	return c.send(ctx, c.builder.BuildVoid(req, reason, c.config.Currency))
}

// CreateVaultCustomer stores the request's payment source in the customer
// vault, verifying it per the configured processor mode
func (c *Client) CreateVaultCustomer(ctx context.Context, req *domain.TransactionRequest) (domain.PaymentAttempt, error) {
	data, err := c.builder.BuildVaultCreate(c.config.ProcessorMode, c.config.Environment, req, c.config.Currency, c.config.SendReceipt)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	return c.send(ctx, data)
}

// VerifyCSC validates a security code nonce against a vaulted card
func (c *Client) VerifyCSC(ctx context.Context, cscNonce, vaultID string) (domain.PaymentAttempt, error) {
	return c.send(ctx, c.builder.BuildCSCVerify(cscNonce, vaultID))
}

// send authenticates the field map, issues one GET, and classifies the
// response. A transport failure never returns an error; it classifies as a
// synthesized timeout attempt so callers handle it like any other failure.
func (c *Client) send(ctx context.Context, data RequestData) (domain.PaymentAttempt, error) {
	endpoint, err := c.authenticate(data)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}

	values := url.Values{}
	for key, value := range data {
		values.Set(key, value)
	}
	requestURL := endpoint + "?" + values.Encode()

	resource := data["type"]
	c.logger.Info("Sending gateway request",
		zap.String("type", resource),
		zap.String("endpoint", endpoint),
		zap.Any("fields", data.Masked()),
	)

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return domain.PaymentAttempt{}, fmt.Errorf("failed to create request: %w", err)
	}

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Gateway request failed",
			zap.Error(err),
			zap.String("type", resource),
			zap.Duration("elapsed", time.Since(startTime)),
		)
		observability.RecordGatewayRequest(resource, "transport_error", time.Since(startTime))
		return TransportFailureAttempt(err), nil
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.logger.Error("Failed to read gateway response", zap.Error(err))
		observability.RecordGatewayRequest(resource, "transport_error", time.Since(startTime))
		return TransportFailureAttempt(err), nil
	}

	attempt := ParseResponse(body)

	c.logger.Info("Gateway response classified",
		zap.String("type", resource),
		zap.Int("status_code", httpResp.StatusCode),
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Bool("approved", attempt.Approved()),
		zap.Bool("declined", attempt.Declined()),
		zap.String("response_code", attempt.ResponseCode()),
		zap.String("transaction_id", attempt.TransactionID()),
	)
	observability.RecordGatewayRequest(resource, outcomeLabel(attempt), time.Since(startTime))

	return attempt, nil
}

// authenticate injects the configured credential fields and returns the
// endpoint they belong to
func (c *Client) authenticate(data RequestData) (string, error) {
	if c.config.SecurityKey != "" {
		data["security_key"] = c.config.SecurityKey
		return EndpointSecurityKey, nil
	}
	if c.config.Username != "" && c.config.Password != "" {
		data["username"] = c.config.Username
		data["password"] = c.config.Password
		return EndpointDirectPost, nil
	}
	return "", domain.ErrCredentialsMissing
}

func outcomeLabel(attempt domain.PaymentAttempt) string {
	switch {
	case attempt.Approved():
		return "approved"
	case attempt.Declined():
		return "declined"
	default:
		return "error"
	}
}
