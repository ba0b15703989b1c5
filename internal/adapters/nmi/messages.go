package nmi

import (
	"github.com/kevin07696/nmi-gateway/internal/domain"
	pkgerrors "github.com/kevin07696/nmi-gateway/pkg/errors"
)

// Customer-facing overrides that always win over table lookups
const (
	// MessageDeclineGeneric replaces the gateway's bare "DECLINE" text
	MessageDeclineGeneric = "Your card has been declined, please add any other card."
	// MessageServerTimeout is shown for any transport-level failure
	MessageServerTimeout = "Server timeout, please try again!!."
	// MessageGenericFailure is the last-resort apology when nothing else resolves
	MessageGenericFailure = "An error occurred, please try again or try an alternate form of payment."
	// MessageAVSMismatch aborts a saved-token charge when the verify call
	// rejected the billing address
	MessageAVSMismatch = "The billing address for this transaction does not match the cardholders."
	// MessageCSCInvalid aborts a saved-token charge on a bad security code
	MessageCSCInvalid = "The CSC for the transaction was invalid or incorrect."
)

// Customer-safe messages per decline category. The gateway's raw response
// text may over-disclose fraud and AVS internals, so it is only shown when
// a code falls outside this table entirely.
// CategoryDecline has no entry on purpose: a plain processor decline falls
// through to the gateway text so the literal "DECLINE" override can apply.
var categoryMessages = map[DeclineCategory]string{
	CategoryDontHonor:              "Your card was declined by the issuing bank. Please contact your bank or use an alternate card.",
	CategoryInsufficientFunds:      "The provided card does not have sufficient funds to complete this transaction, please use an alternate card or other form of payment.",
	CategoryCreditLimitReached:     "The provided card has reached its credit limit, please use an alternate card or other form of payment.",
	CategoryNotAllowed:             "This type of transaction is not allowed on the provided card, please use an alternate card or other form of payment.",
	CategoryIncorrectInfo:          "The payment information provided is incorrect, please re-check and try again.",
	CategoryCardNumberTypeInvalid:  "The card type is invalid or does not match the card number, please re-enter your card information and try again.",
	CategoryCardNumberInvalid:      "The card number is invalid, please re-enter it and try again.",
	CategoryCardExpired:            "The provided card is expired, please use an alternate card or other form of payment.",
	CategoryCardExpiryInvalid:      "The card expiration date is invalid, please re-enter it and try again.",
	CategoryCSCMismatch:            "The card security code does not match, please re-enter it and try again.",
	CategoryCSCInvalid:             "The card security code is invalid, please try again.",
	CategoryCallIssuer:             "Your card was declined, please contact your card issuer for more information.",
	CategoryPickupCard:             "Your card was declined, please contact your bank or use an alternate card.",
	CategoryLostCard:               "Your card was declined, please contact your bank or use an alternate card.",
	CategoryStolenCard:             "Your card was declined, please contact your bank or use an alternate card.",
	CategoryFraud:                  "Your card was declined, please contact your bank or use an alternate card.",
	CategoryDeclineWithInstruction: "Your card was declined, please contact your bank for further instructions.",
	CategoryDeclineRecurring:       "Your card was declined for recurring payments, please use an alternate card.",
	CategoryDeclineProgram:         "Your card was declined for this recurring program, please use an alternate card.",
	CategoryDeclineUpdate:          "Your card was declined, please update your card details and try again.",
	CategoryDeclineRetry:           "Your card was declined, please retry in a few days or use an alternate card.",
	CategoryRejectedGateway:        "The transaction was rejected, please try again or use an alternate form of payment.",
	CategoryErrorProcessor:         "An error occurred while processing the transaction, please try again.",
	CategoryDuplicate:              "This appears to be a duplicate transaction, please wait a moment before trying again.",
	CategoryInvalidInfo:            "The transaction information provided is invalid, please re-check and try again.",
	CategoryUnsupported:            "That card type is not supported, please use an alternate card or other form of payment.",
}

// UserMessage resolves the customer-safe message for a failed attempt.
// Resolution order: category table, then the gateway's own response text,
// with two fixed overrides on top: a bare "DECLINE" response and the
// timeout sentinel code.
func UserMessage(attempt domain.PaymentAttempt) string {
	code := attempt.ResponseCode()
	category := CategorizeResponseCode(code)

	message := categoryMessages[category]
	if message == "" {
		message = gatewayUserMessage(category, attempt)
	}

	if code == ResponseCodeTimeout {
		message = MessageServerTimeout
	}
	if message == "" {
		message = MessageGenericFailure
	}
	return message
}

// gatewayUserMessage falls back to the gateway's response text for
// categories with no table entry, softening the bare "DECLINE" case
func gatewayUserMessage(category DeclineCategory, attempt domain.PaymentAttempt) string {
	message := attempt.ResponseText()
	if category == CategoryDecline && message == "DECLINE" {
		message = MessageDeclineGeneric
	}
	return message
}

// ToPaymentError converts a failed attempt into a structured payment error
// carrying both the customer message and the raw gateway text
func ToPaymentError(attempt domain.PaymentAttempt) *pkgerrors.PaymentError {
	category := pkgerrors.CategoryGatewayError
	if attempt.Declined() {
		category = pkgerrors.CategoryDeclined
	}
	if attempt.ResponseCode() == ResponseCodeTimeout {
		category = pkgerrors.CategoryTimeout
	}

	return &pkgerrors.PaymentError{
		Code:           attempt.ResponseCode(),
		Message:        UserMessage(attempt),
		GatewayMessage: attempt.ResponseText(),
		IsRetriable:    attempt.ResponseCode() == ResponseCodeTimeout || CategorizeResponseCode(attempt.ResponseCode()) == CategoryDeclineRetry,
		Category:       category,
		Details:        map[string]interface{}{"decline_category": string(CategorizeResponseCode(attempt.ResponseCode()))},
	}
}
