package nmi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/pkg/timeutil"
)

// RequestData is the flat key/value map sent over the wire for one gateway
// call. Built fresh per call, never reused.
type RequestData map[string]string

// Masked returns a log-safe copy with the card number and security code
// masked. The copy is for observability only and is never transmitted.
func (d RequestData) Masked() RequestData {
	masked := make(RequestData, len(d))
	for k, v := range d {
		masked[k] = v
	}
	if number, ok := masked["ccnumber"]; ok {
		masked["ccnumber"] = MaskCardNumber(number)
	}
	if csc, ok := masked["cvv"]; ok {
		masked["cvv"] = MaskCSC(csc)
	}
	return masked
}

// MaskCardNumber reduces a card number to first six, asterisks, last four,
// per PCI display rules
func MaskCardNumber(number string) string {
	if number == "" {
		return ""
	}
	if len(number) < 10 {
		return "******"
	}
	return number[:6] + "******" + number[len(number)-4:]
}

// MaskCSC hides a security code, preserving only whether it was 4 digits
func MaskCSC(csc string) string {
	if len(csc) == 4 {
		return "****"
	}
	return "***"
}

// requestArgs is the nested pre-flatten form of a request: scalar strings
// plus one level of grouped sub-maps (customer, billing, shipping, payment)
type requestArgs map[string]interface{}

// StripEmpty removes nil and empty-string values from args, descending one
// level into sub-maps. A sub-map left empty is removed entirely. The
// operation is idempotent.
func StripEmpty(args requestArgs) requestArgs {
	for key, value := range args {
		switch v := value.(type) {
		case nil:
			delete(args, key)
		case string:
			if v == "" {
				delete(args, key)
			}
		case map[string]string:
			for innerKey, innerValue := range v {
				if innerValue == "" {
					delete(v, innerKey)
				}
			}
			if len(v) == 0 {
				delete(args, key)
			}
		}
	}
	return args
}

// maxDescriptionLen caps order_description on the wire
const maxDescriptionLen = 99

// Customer-facing validation messages for raw card input
const (
	msgExpiryMonthInvalid = "The card expiration month is invalid, please re-enter and try again."
	msgExpiryYearInvalid  = "Please enter a valid card expiry year to proceed."
	msgExpiryYearPast     = "The card expiration year is invalid, please re-enter and try again."
	msgCSCInvalid         = "Please enter your 3 or 4 digit card code to proceed."
)

// expirySeparator is the literal separator checkout forms use in "MM / YY"
const expirySeparator = " / "

// RequestBuilder assembles wire field maps for every gateway operation.
// It owns the payment source precedence rules and raw card validation.
type RequestBuilder struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewRequestBuilder creates a request builder
func NewRequestBuilder(logger *zap.Logger) *RequestBuilder {
	return &RequestBuilder{
		logger: logger,
		now:    timeutil.Now,
	}
}

// BuildTransaction builds a sale or auth request
func (b *RequestBuilder) BuildTransaction(resource string, req *domain.TransactionRequest, currency string, sendReceipt bool) (RequestData, error) {
	order := req.Order
	args := requestArgs{
		"orderid":           order.ID,
		"order_description": b.transactionDescription(order),
		"amount":            order.Total.StringFixed(2),
	}

	b.setCustomer(args, order, req.Profile)
	b.setBilling(args, order, req.Profile)
	b.setShipping(args, order)

	if err := b.setPaymentMethod(args, req.Source); err != nil {
		return nil, err
	}

	return b.flatten(StripEmpty(args), resource, order, currency, sendReceipt), nil
}

// BuildVaultCreate builds a customer vault creation request. The card is
// verified per the processor mode: a zero-dollar validate, or a nominal
// authorization when the order has no total to authorize against.
func (b *RequestBuilder) BuildVaultCreate(mode domain.ProcessorMode, env domain.Environment, req *domain.TransactionRequest, currency string, sendReceipt bool) (RequestData, error) {
	order := req.Order

	args := requestArgs{}
	if order != nil {
		args["orderid"] = order.ID
		args["order_description"] = fmt.Sprintf("Creating a Customer: %s %s", order.Billing.FirstName, order.Billing.LastName)
		args["amount"] = b.vaultAuthAmount(order, env)
	} else if req.Profile != nil {
		args["order_description"] = fmt.Sprintf("Creating a Customer: %s %s", req.Profile.FirstName, req.Profile.LastName)
		args["amount"] = nominalAuthAmount(env)
	}

	b.setCustomer(args, order, req.Profile)
	b.setBilling(args, order, req.Profile)

	if err := b.setPaymentMethod(args, req.Source); err != nil {
		return nil, err
	}

	payment := args["payment"].(map[string]string)
	payment["customer_vault"] = "add_customer"

	return b.flatten(StripEmpty(args), string(mode), order, currency, sendReceipt), nil
}

// BuildCapture builds a capture request for a prior authorization
func (b *RequestBuilder) BuildCapture(req *domain.ReferenceRequest, currency string) RequestData {
	order := req.Order
	description := fmt.Sprintf("Capturing amount %s for order %s and transaction ID: %s",
		req.Amount.StringFixed(2), order.Number, req.TransactionID)

	args := requestArgs{
		"orderid":           order.ID,
		"order_description": description,
		"amount":            req.Amount.StringFixed(2),
		"transactionid":     req.TransactionID,
		"customer": map[string]string{
			"email": order.Billing.Email,
		},
	}
	return b.flatten(StripEmpty(args), "capture", order, currency, false)
}

// BuildRefund builds a refund request against a settled transaction
func (b *RequestBuilder) BuildRefund(req *domain.ReferenceRequest, reason, currency string) RequestData {
	args := requestArgs{
		"amount":            req.Amount.StringFixed(2),
		"transactionid":     req.TransactionID,
		"order_description": reason,
		"customer": map[string]string{
			"email": req.Order.Billing.Email,
		},
	}
	return b.flatten(StripEmpty(args), "refund", req.Order, currency, false)
}

// BuildVoid builds a void request. The gateway's wire type for void is
// "cancel".
func (b *RequestBuilder) BuildVoid(req *domain.ReferenceRequest, reason, currency string) RequestData {
	args := requestArgs{
		"amount":            req.Amount.StringFixed(2),
		"transactionid":     req.TransactionID,
		"order_description": reason,
		"customer": map[string]string{
			"email": req.Order.Billing.Email,
		},
	}
	return b.flatten(StripEmpty(args), "cancel", req.Order, currency, false)
}

// BuildCSCVerify builds a verify-only request that checks a freshly
// collected security code nonce against a vaulted card
func (b *RequestBuilder) BuildCSCVerify(cscNonce, vaultID string) RequestData {
	return RequestData{
		"type":              "validate",
		"customer_vault_id": vaultID,
		"payment_token":     cscNonce,
	}
}

func (b *RequestBuilder) transactionDescription(order *domain.Order) string {
	if order.Description != "" {
		return order.Description
	}
	return fmt.Sprintf("Order %s", order.Number)
}

// vaultAuthAmount verifies the card against the order total when there is
// one, else falls back to the nominal amount
func (b *RequestBuilder) vaultAuthAmount(order *domain.Order, env domain.Environment) string {
	if order.Total.IsPositive() {
		return order.Total.StringFixed(2)
	}
	return nominalAuthAmount(env)
}

// nominalAuthAmount is the smallest authorization each environment accepts
func nominalAuthAmount(env domain.Environment) string {
	if env == domain.EnvironmentSandbox {
		return "1"
	}
	return "0.01"
}

func (b *RequestBuilder) setCustomer(args requestArgs, order *domain.Order, profile *domain.CustomerProfile) {
	customer := map[string]string{}
	if order != nil {
		customer["phone"] = order.Billing.Phone
		customer["email"] = order.Billing.Email
	} else if profile != nil {
		customer["email"] = profile.Email
	}
	args["customer"] = customer
}

// setBilling snapshots the billing address. With no order at all the
// stored customer profile is the only source left.
func (b *RequestBuilder) setBilling(args requestArgs, order *domain.Order, profile *domain.CustomerProfile) {
	billing := map[string]string{}
	if order != nil {
		billing["firstName"] = order.Billing.FirstName
		billing["lastName"] = order.Billing.LastName
		billing["company"] = order.Billing.Company
		billing["address1"] = order.Billing.Address1
		billing["address2"] = order.Billing.Address2
		billing["city"] = order.Billing.City
		billing["state"] = order.Billing.State
		billing["zip"] = order.Billing.Zip
		billing["country"] = order.Billing.Country
	} else if profile != nil {
		billing["firstName"] = profile.FirstName
		billing["lastName"] = profile.LastName
	}
	args["billing"] = billing
}

func (b *RequestBuilder) setShipping(args requestArgs, order *domain.Order) {
	if order == nil {
		return
	}
	args["shipping"] = map[string]string{
		"firstName":         order.Shipping.FirstName,
		"lastName":          order.Shipping.LastName,
		"company":           order.Shipping.Company,
		"streetAddress":     order.Shipping.Address1,
		"extendedAddress":   order.Shipping.Address2,
		"locality":          order.Shipping.City,
		"region":            order.Shipping.State,
		"postalCode":        order.Shipping.Zip,
		"countryCodeAlpha2": order.Shipping.Country,
	}
}

// setPaymentMethod resolves the payment source with fixed precedence.
// First match wins:
//
//	1. a vault id already on the context
//	2. a client tokenization payload with no saved token selected
//	3. a client tokenization payload beaten by an explicitly selected token
//	4. raw card fields, validated
//	5. a selected saved token alone
func (b *RequestBuilder) setPaymentMethod(args requestArgs, src domain.PaymentSource) error {
	payment := map[string]string{}
	args["payment"] = payment

	if src.Card != nil && src.Card.CSC != "" {
		payment["cvv"] = src.Card.CSC
	}

	switch {
	case src.VaultID != "":
		payment["customer_vault_id"] = src.VaultID
		b.logger.Debug("payment source resolved", zap.String("case", "vault id on context"))

	case src.ClientToken != nil && src.ClientToken.Token != "":
		if src.SavedToken == nil {
			payment["payment_token"] = src.ClientToken.Token
			b.logger.Debug("payment source resolved", zap.String("case", "client token"))
		} else {
			// an explicitly selected saved token beats the client token
			payment["customer_vault_id"] = src.SavedToken.VaultCustomerID
			b.logger.Debug("payment source resolved", zap.String("case", "saved token over client token"))
		}

	case src.SavedToken == nil:
		if err := b.setRawCard(payment, src.Card); err != nil {
			return err
		}
		b.logger.Debug("payment source resolved", zap.String("case", "raw card fields"))

	default:
		payment["customer_vault_id"] = src.SavedToken.VaultCustomerID
		b.logger.Debug("payment source resolved", zap.String("case", "saved token"))
	}

	return nil
}

// setRawCard validates raw card fields and writes ccnumber and ccexp.
// Validation stops at the first failure so the customer gets one specific
// corrective message.
func (b *RequestBuilder) setRawCard(payment map[string]string, card *domain.CardDetails) error {
	if card == nil {
		return domain.NewDomainError(domain.ErrorCodeValidationMissingField, "no payment details were provided")
	}

	expMonth, expYear := SplitExpiry(card.Expiry)

	if expMonth == "" || expMonth == "00" {
		return domain.NewDomainError(domain.ErrorCodeValidationExpiryMonth, msgExpiryMonthInvalid)
	}
	if expYear == "" || (len(expYear) != 2 && len(expYear) != 4) {
		return domain.NewDomainError(domain.ErrorCodeValidationExpiryYear, msgExpiryYearInvalid)
	}

	// 4-digit years reduce to their last two digits; a 2-digit year below
	// the current one is past. No century window is applied, which holds
	// through 2099.
	shortYear := expYear
	if len(shortYear) == 4 {
		shortYear = shortYear[2:]
	}
	year, err := strconv.Atoi(shortYear)
	if err != nil {
		return domain.NewDomainError(domain.ErrorCodeValidationExpiryYear, msgExpiryYearInvalid)
	}
	if year < timeutil.TwoDigitYear(b.now()) {
		return domain.NewDomainError(domain.ErrorCodeValidationCardExpired, msgExpiryYearPast)
	}

	if len(card.CSC) < 2 {
		return domain.NewDomainError(domain.ErrorCodeValidationCSC, msgCSCInvalid)
	}

	payment["ccnumber"] = card.Number
	payment["ccexp"] = expMonth + fmt.Sprintf("%02d", year)
	return nil
}

// SplitExpiry splits "MM / YY" on the literal separator checkout forms
// use, tolerating the unspaced "MM/YY" form
func SplitExpiry(expiry string) (month, year string) {
	month, year, found := strings.Cut(expiry, expirySeparator)
	if !found {
		month, year, _ = strings.Cut(expiry, "/")
	}
	return strings.TrimSpace(month), strings.TrimSpace(year)
}

// flatten turns the stripped nested args into the final wire map, applying
// the per-field billing-falls-back-to-shipping rule and the trailing
// currency, receipt, and client IP fields.
func (b *RequestBuilder) flatten(args requestArgs, resource string, order *domain.Order, currency string, sendReceipt bool) RequestData {
	data := RequestData{}

	if v, ok := args["orderid"].(string); ok {
		data["orderid"] = v
	}
	if v, ok := args["order_description"].(string); ok {
		// Truncate on rune boundaries so a multibyte customer name is
		// never split mid-character.
		if runes := []rune(v); len(runes) > maxDescriptionLen {
			v = string(runes[:maxDescriptionLen])
		}
		data["order_description"] = v
	}
	if v, ok := args["amount"].(string); ok {
		data["amount"] = v
	}
	if v, ok := args["transactionid"].(string); ok && v != "" {
		data["transactionid"] = v
	}
	if resource != "" {
		data["type"] = resource
	}

	customer, _ := args["customer"].(map[string]string)
	if customer["phone"] != "" {
		data["phone"] = customer["phone"]
	}
	if customer["email"] != "" {
		data["email"] = customer["email"]
	}

	billing, _ := args["billing"].(map[string]string)
	shipping, _ := args["shipping"].(map[string]string)
	setFallback(data, "first_name", billing["firstName"], shipping["firstName"])
	setFallback(data, "last_name", billing["lastName"], shipping["lastName"])
	setFallback(data, "company", billing["company"], shipping["company"])
	setFallback(data, "address1", billing["address1"], shipping["streetAddress"])
	setFallback(data, "address2", billing["address2"], shipping["extendedAddress"])
	setFallback(data, "city", billing["city"], shipping["locality"])
	setFallback(data, "state", billing["state"], shipping["region"])
	setFallback(data, "country", billing["country"], shipping["countryCodeAlpha2"])
	setFallback(data, "zip", billing["zip"], shipping["postalCode"])

	payment, _ := args["payment"].(map[string]string)
	if v := payment["ccnumber"]; v != "" {
		data["ccnumber"] = v
	}
	if v := payment["ccexp"]; v != "" {
		data["ccexp"] = v
	}
	if v := payment["cvv"]; v != "" {
		data["cvv"] = v
	}
	if v := payment["customer_vault"]; v != "" {
		data["customer_vault"] = v
	}
	if v := payment["customer_vault_id"]; v != "" {
		data["customer_vault_id"] = v
	}
	if v := payment["payment_token"]; v != "" {
		data["payment_token"] = v
	}

	data["currency"] = currency
	data["customer_receipt"] = strconv.FormatBool(sendReceipt)
	if order != nil && order.CustomerIP != "" {
		data["ipaddress"] = order.CustomerIP
	}

	return data
}

// setFallback writes the billing value, falling back to the shipping value
// per field, skipping the key when both are empty
func setFallback(data RequestData, key, billing, shipping string) {
	value := billing
	if value == "" {
		value = shipping
	}
	if value != "" {
		data[key] = value
	}
}
