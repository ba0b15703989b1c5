package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Environment distinguishes the two gateway modes. Tokens created in one
// environment are never visible in the other.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
)

// APIMethod selects the credential scheme used against the gateway
type APIMethod string

const (
	// APIMethodDirectPost authenticates with a username and password pair
	APIMethodDirectPost APIMethod = "direct_post"
	// APIMethodCollectJS authenticates with a security key and expects
	// client-side tokenization payloads
	APIMethodCollectJS APIMethod = "collect_js"
)

// TransactionType is the configured capture behavior for new payments
type TransactionType string

const (
	TransactionTypeCharge        TransactionType = "charge"
	TransactionTypeAuthorization TransactionType = "authorization"
)

// ProcessorMode controls how customer vault records are created
type ProcessorMode string

const (
	// ProcessorModeValidate verifies the card with a zero-dollar validate call
	ProcessorModeValidate ProcessorMode = "validate"
	// ProcessorModeAuth verifies the card with a nominal authorization
	ProcessorModeAuth ProcessorMode = "auth"
)

// Card brands the gateway accepts
const (
	CardBrandVisa       = "visa"
	CardBrandMastercard = "mastercard"
	CardBrandAmex       = "amex"
	CardBrandDiscover   = "discover"
	CardBrandDiners     = "diners"
	CardBrandMaestro    = "maestro"
	CardBrandJCB        = "jcb"
)

// NormalizeCardBrand maps gateway and client-side brand spellings onto the
// canonical set above. Unknown brands pass through lowercased.
func NormalizeCardBrand(brand string) string {
	b := strings.ToLower(strings.TrimSpace(brand))
	switch b {
	case "diners-club", "dinersclub", "diners club":
		return CardBrandDiners
	case "american-express", "americanexpress", "american express":
		return CardBrandAmex
	case "master-card", "master card":
		return CardBrandMastercard
	}
	return b
}

// CardDetails is raw card input from a checkout form. Number and CSC are
// sensitive: they are never persisted and only ever logged masked.
type CardDetails struct {
	Number string `json:"-"`
	// Expiry as entered, "MM / YY"
	Expiry string `json:"expiry"`
	CSC    string `json:"-"`
}

// ClientToken is a client-side tokenization payload (the card never touched
// our servers; the token stands in for it). The display fields are whatever
// the tokenization script captured and may be empty.
type ClientToken struct {
	Token        string `json:"token"`
	MaskedNumber string `json:"masked_number"`
	LastFour     string `json:"last_four"`
	Brand        string `json:"brand"`
	// Expiry as 4 characters, "MMYY"
	Expiry string `json:"expiry"`
}

// ExpiryMonth returns the MM half of the token's expiry, or "" if malformed
func (t *ClientToken) ExpiryMonth() string {
	if len(t.Expiry) != 4 {
		return ""
	}
	return t.Expiry[:2]
}

// ExpiryYear returns the YY half of the token's expiry, or "" if malformed
func (t *ClientToken) ExpiryYear() string {
	if len(t.Expiry) != 4 {
		return ""
	}
	return t.Expiry[2:]
}

// ChargeInput carries everything a payment attempt needs. At most one
// payment source wins; resolution order is fixed: the order's stored vault
// id, then a selected saved token, then a client token, then raw card
// fields.
type ChargeInput struct {
	Order   *Order           `json:"order"`
	Profile *CustomerProfile `json:"profile,omitempty"`

	Card        *CardDetails `json:"card,omitempty"`
	ClientToken *ClientToken `json:"client_token,omitempty"`
	// ID of a saved token the customer picked at checkout
	SavedTokenID string `json:"saved_token_id,omitempty"`

	// CSC re-entry for saved-token payments, when the gateway requires it
	CSCNonce string `json:"csc_nonce,omitempty"`

	// SaveCard vaults the card before charging so later renewals can reuse it
	SaveCard bool `json:"save_card"`

	SendReceipt bool `json:"send_receipt"`
}

// PaymentSource is the resolved payment instrument for one gateway call.
// Exactly one of the fields is consulted, in declaration order.
type PaymentSource struct {
	// Vault id already attached to the order (renewal-style charges)
	VaultID string
	// Saved token the customer selected; wins over a client token
	SavedToken *PaymentToken
	// Client-side tokenization payload
	ClientToken *ClientToken
	// Raw card fields, validated before use
	Card *CardDetails
}

// TransactionRequest is what the gateway adapter turns into wire fields
// for a sale, authorization, or vault create.
type TransactionRequest struct {
	Order       *Order
	Profile     *CustomerProfile
	Source      PaymentSource
	SendReceipt bool
}

// ReferenceRequest addresses an existing gateway transaction for capture,
// refund, or void.
type ReferenceRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Order         *Order
}

// HasClientToken reports whether a client tokenization payload is present
func (in *ChargeInput) HasClientToken() bool {
	return in.ClientToken != nil && in.ClientToken.Token != ""
}

// HasSavedToken reports whether the customer selected a saved token
func (in *ChargeInput) HasSavedToken() bool {
	return in.SavedTokenID != ""
}
