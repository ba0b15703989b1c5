package nmi

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain"
)

func testBuilder() *RequestBuilder {
	b := NewRequestBuilder(zap.NewNop())
	b.now = func() time.Time {
		return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return b
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:       "1001",
		Number:   "1001",
		UserID:   7,
		Total:    decimal.RequireFromString("25.50"),
		Currency: "USD",
		Billing: domain.Address{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Address1:  "1 Analytical Way",
			City:      "London",
			State:     "LN",
			Zip:       "12345",
			Country:   "GB",
			Email:     "ada@example.com",
			Phone:     "5551234",
		},
		Shipping: domain.Address{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Address1:  "1 Analytical Way",
			City:      "London",
			State:     "LN",
			Zip:       "12345",
			Country:   "GB",
		},
		CustomerIP: "203.0.113.9",
	}
}

func TestMaskCardNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   string
	}{
		{name: "sixteen digits", number: "4111111111111111", want: "411111******1111"},
		{name: "fifteen digit amex", number: "378282246310005", want: "378282******0005"},
		{name: "short value fully masked", number: "411111111", want: "******"},
		{name: "empty stays empty", number: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskCardNumber(tt.number))
		})
	}
}

func TestMaskCSC(t *testing.T) {
	assert.Equal(t, "***", MaskCSC("123"))
	assert.Equal(t, "****", MaskCSC("1234"))
	assert.Equal(t, "***", MaskCSC(""))
}

func TestRequestDataMasked(t *testing.T) {
	data := RequestData{
		"ccnumber": "4111111111111111",
		"cvv":      "123",
		"amount":   "25.50",
	}
	masked := data.Masked()

	assert.Equal(t, "411111******1111", masked["ccnumber"])
	assert.Equal(t, "***", masked["cvv"])
	assert.Equal(t, "25.50", masked["amount"])

	// the original is untouched
	assert.Equal(t, "4111111111111111", data["ccnumber"])
	assert.Equal(t, "123", data["cvv"])
}

func TestStripEmpty(t *testing.T) {
	args := requestArgs{
		"keep":   "value",
		"empty":  "",
		"nothin": nil,
		"billing": map[string]string{
			"firstName": "Ada",
			"company":   "",
		},
		"shipping": map[string]string{
			"firstName": "",
		},
	}

	stripped := StripEmpty(args)

	assert.Equal(t, "value", stripped["keep"])
	assert.NotContains(t, stripped, "empty")
	assert.NotContains(t, stripped, "nothin")
	assert.Equal(t, map[string]string{"firstName": "Ada"}, stripped["billing"])
	assert.NotContains(t, stripped, "shipping")
}

func TestStripEmpty_Idempotent(t *testing.T) {
	args := requestArgs{
		"keep":    "value",
		"empty":   "",
		"billing": map[string]string{"firstName": "Ada", "company": ""},
	}

	once := StripEmpty(args)
	twice := StripEmpty(once)
	assert.Equal(t, once, twice)
}

func TestSplitExpiry(t *testing.T) {
	tests := []struct {
		expiry string
		month  string
		year   string
	}{
		{expiry: "12 / 30", month: "12", year: "30"},
		{expiry: "12/30", month: "12", year: "30"},
		{expiry: "01 / 2030", month: "01", year: "2030"},
		{expiry: "12", month: "12", year: ""},
		{expiry: "", month: "", year: ""},
	}

	for _, tt := range tests {
		t.Run(tt.expiry, func(t *testing.T) {
			month, year := SplitExpiry(tt.expiry)
			assert.Equal(t, tt.month, month)
			assert.Equal(t, tt.year, year)
		})
	}
}

func TestBuildTransaction_RawCard(t *testing.T) {
	b := testBuilder()
	req := &domain.TransactionRequest{
		Order: testOrder(),
		Source: domain.PaymentSource{
			Card: &domain.CardDetails{Number: "4111111111111111", Expiry: "12 / 30", CSC: "999"},
		},
	}

	data, err := b.BuildTransaction("sale", req, "USD", false)
	require.NoError(t, err)

	assert.Equal(t, "sale", data["type"])
	assert.Equal(t, "1001", data["orderid"])
	assert.Equal(t, "25.50", data["amount"])
	assert.Equal(t, "4111111111111111", data["ccnumber"])
	assert.Equal(t, "1230", data["ccexp"])
	assert.Equal(t, "999", data["cvv"])
	assert.Equal(t, "USD", data["currency"])
	assert.Equal(t, "false", data["customer_receipt"])
	assert.Equal(t, "203.0.113.9", data["ipaddress"])
	assert.Equal(t, "Ada", data["first_name"])
	assert.Equal(t, "ada@example.com", data["email"])
}

func TestBuildTransaction_FourDigitYear(t *testing.T) {
	b := testBuilder()
	req := &domain.TransactionRequest{
		Order: testOrder(),
		Source: domain.PaymentSource{
			Card: &domain.CardDetails{Number: "4111111111111111", Expiry: "01 / 2030", CSC: "999"},
		},
	}

	data, err := b.BuildTransaction("auth", req, "USD", false)
	require.NoError(t, err)
	assert.Equal(t, "auth", data["type"])
	assert.Equal(t, "0130", data["ccexp"])
}

func TestBuildTransaction_RawCardValidation(t *testing.T) {
	tests := []struct {
		name     string
		card     *domain.CardDetails
		wantCode domain.ErrorCode
	}{
		{
			name:     "no card at all",
			card:     nil,
			wantCode: domain.ErrorCodeValidationMissingField,
		},
		{
			name:     "month zero",
			card:     &domain.CardDetails{Number: "4111111111111111", Expiry: "00 / 30", CSC: "999"},
			wantCode: domain.ErrorCodeValidationExpiryMonth,
		},
		{
			name:     "missing month",
			card:     &domain.CardDetails{Number: "4111111111111111", Expiry: " / 30", CSC: "999"},
			wantCode: domain.ErrorCodeValidationExpiryMonth,
		},
		{
			name:     "three digit year",
			card:     &domain.CardDetails{Number: "4111111111111111", Expiry: "12 / 203", CSC: "999"},
			wantCode: domain.ErrorCodeValidationExpiryYear,
		},
		{
			name:     "year in the past",
			card:     &domain.CardDetails{Number: "4111111111111111", Expiry: "12 / 19", CSC: "999"},
			wantCode: domain.ErrorCodeValidationCardExpired,
		},
		{
			name:     "security code too short",
			card:     &domain.CardDetails{Number: "4111111111111111", Expiry: "12 / 30", CSC: "9"},
			wantCode: domain.ErrorCodeValidationCSC,
		},
	}

	b := testBuilder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &domain.TransactionRequest{
				Order:  testOrder(),
				Source: domain.PaymentSource{Card: tt.card},
			}
			_, err := b.BuildTransaction("sale", req, "USD", false)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.GetErrorCode(err))
		})
	}
}

func TestBuildTransaction_SourcePrecedence(t *testing.T) {
	saved := &domain.PaymentToken{VaultCustomerID: "vault-saved"}
	client := &domain.ClientToken{Token: "tok_client"}
	card := &domain.CardDetails{Number: "4111111111111111", Expiry: "12 / 30", CSC: "999"}

	tests := []struct {
		name      string
		source    domain.PaymentSource
		wantField string
		wantValue string
	}{
		{
			name:      "vault id on context wins over everything",
			source:    domain.PaymentSource{VaultID: "vault-ctx", SavedToken: saved, ClientToken: client, Card: card},
			wantField: "customer_vault_id",
			wantValue: "vault-ctx",
		},
		{
			name:      "saved token beats client token",
			source:    domain.PaymentSource{SavedToken: saved, ClientToken: client},
			wantField: "customer_vault_id",
			wantValue: "vault-saved",
		},
		{
			name:      "client token alone",
			source:    domain.PaymentSource{ClientToken: client},
			wantField: "payment_token",
			wantValue: "tok_client",
		},
		{
			name:      "raw card alone",
			source:    domain.PaymentSource{Card: card},
			wantField: "ccnumber",
			wantValue: "4111111111111111",
		},
		{
			name:      "saved token alone",
			source:    domain.PaymentSource{SavedToken: saved},
			wantField: "customer_vault_id",
			wantValue: "vault-saved",
		},
	}

	b := testBuilder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &domain.TransactionRequest{Order: testOrder(), Source: tt.source}
			data, err := b.BuildTransaction("sale", req, "USD", false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, data[tt.wantField])
		})
	}
}

func TestBuildTransaction_BillingFallsBackToShipping(t *testing.T) {
	order := testOrder()
	order.Billing.Address1 = ""
	order.Billing.City = ""

	b := testBuilder()
	req := &domain.TransactionRequest{
		Order:  order,
		Source: domain.PaymentSource{VaultID: "vault-1"},
	}

	data, err := b.BuildTransaction("sale", req, "USD", false)
	require.NoError(t, err)
	assert.Equal(t, "1 Analytical Way", data["address1"])
	assert.Equal(t, "London", data["city"])
}

func TestBuildTransaction_DescriptionTruncated(t *testing.T) {
	order := testOrder()
	order.Description = strings.Repeat("x", 150)

	b := testBuilder()
	req := &domain.TransactionRequest{
		Order:  order,
		Source: domain.PaymentSource{VaultID: "vault-1"},
	}

	data, err := b.BuildTransaction("sale", req, "USD", false)
	require.NoError(t, err)
	assert.Len(t, data["order_description"], maxDescriptionLen)
}

func TestBuildTransaction_DescriptionTruncatesOnRuneBoundary(t *testing.T) {
	order := testOrder()
	order.Description = strings.Repeat("é", 150)

	b := testBuilder()
	req := &domain.TransactionRequest{
		Order:  order,
		Source: domain.PaymentSource{VaultID: "vault-1"},
	}

	data, err := b.BuildTransaction("sale", req, "USD", false)
	require.NoError(t, err)

	got := data["order_description"]
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxDescriptionLen, utf8.RuneCountInString(got))
}

func TestBuildVaultCreate_WithOrder(t *testing.T) {
	b := testBuilder()
	req := &domain.TransactionRequest{
		Order: testOrder(),
		Source: domain.PaymentSource{
			Card: &domain.CardDetails{Number: "4111111111111111", Expiry: "12 / 30", CSC: "999"},
		},
	}

	data, err := b.BuildVaultCreate(domain.ProcessorModeAuth, domain.EnvironmentProduction, req, "USD", false)
	require.NoError(t, err)

	assert.Equal(t, "auth", data["type"])
	assert.Equal(t, "add_customer", data["customer_vault"])
	assert.Equal(t, "25.50", data["amount"])
	assert.Equal(t, "Creating a Customer: Ada Lovelace", data["order_description"])
}

func TestBuildVaultCreate_NominalAmounts(t *testing.T) {
	profile := &domain.CustomerProfile{UserID: 7, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	card := &domain.CardDetails{Number: "4111111111111111", Expiry: "12 / 30", CSC: "999"}

	tests := []struct {
		name string
		env  domain.Environment
		want string
	}{
		{name: "production uses one cent", env: domain.EnvironmentProduction, want: "0.01"},
		{name: "sandbox uses one dollar", env: domain.EnvironmentSandbox, want: "1"},
	}

	b := testBuilder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &domain.TransactionRequest{
				Profile: profile,
				Source:  domain.PaymentSource{Card: card},
			}
			data, err := b.BuildVaultCreate(domain.ProcessorModeValidate, tt.env, req, "USD", false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data["amount"])
			assert.Equal(t, "validate", data["type"])
		})
	}
}

func TestBuildCapture(t *testing.T) {
	b := testBuilder()
	req := &domain.ReferenceRequest{
		TransactionID: "555000",
		Amount:        decimal.RequireFromString("25.50"),
		Order:         testOrder(),
	}

	data := b.BuildCapture(req, "USD")
	assert.Equal(t, "capture", data["type"])
	assert.Equal(t, "555000", data["transactionid"])
	assert.Equal(t, "25.50", data["amount"])
	assert.Equal(t, "ada@example.com", data["email"])
}

func TestBuildVoid_UsesCancelWireType(t *testing.T) {
	b := testBuilder()
	req := &domain.ReferenceRequest{
		TransactionID: "555000",
		Amount:        decimal.RequireFromString("25.50"),
		Order:         testOrder(),
	}

	data := b.BuildVoid(req, "voiding", "USD")
	assert.Equal(t, "cancel", data["type"])
	assert.Equal(t, "555000", data["transactionid"])
}

func TestBuildCSCVerify(t *testing.T) {
	b := testBuilder()
	data := b.BuildCSCVerify("nonce-1", "vault-9")

	assert.Equal(t, RequestData{
		"type":              "validate",
		"customer_vault_id": "vault-9",
		"payment_token":     "nonce-1",
	}, data)
}
