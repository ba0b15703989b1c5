package nmi

// DeclineCategory is the semantic key a gateway response code maps to.
// The category drives the customer-facing message; raw gateway text is only
// shown when no category mapping exists.
type DeclineCategory string

const (
	CategoryDecline                DeclineCategory = "decline"
	CategoryDontHonor              DeclineCategory = "dont-honor"
	CategoryInsufficientFunds      DeclineCategory = "insufficient_funds"
	CategoryCreditLimitReached     DeclineCategory = "credit_limit_reached"
	CategoryNotAllowed             DeclineCategory = "not_allowed"
	CategoryIncorrectInfo          DeclineCategory = "incorrect_info"
	CategoryCardNumberTypeInvalid  DeclineCategory = "card_number_type_invalid"
	CategoryCardNumberInvalid      DeclineCategory = "card_number_invalid"
	CategoryCardExpired            DeclineCategory = "card_expired"
	CategoryCardExpiryInvalid      DeclineCategory = "card_expiry_invalid"
	CategoryCSCMismatch            DeclineCategory = "csc_mismatch"
	CategoryCSCInvalid             DeclineCategory = "csc_invalid"
	CategoryCallIssuer             DeclineCategory = "call_issuer"
	CategoryPickupCard             DeclineCategory = "pickup_card"
	CategoryLostCard               DeclineCategory = "lost_card"
	CategoryStolenCard             DeclineCategory = "stolen"
	CategoryFraud                  DeclineCategory = "fraud"
	CategoryDeclineWithInstruction DeclineCategory = "decline_with_instruction"
	CategoryDeclineRecurring       DeclineCategory = "decline_recurring"
	CategoryDeclineProgram         DeclineCategory = "decline_program"
	CategoryDeclineUpdate          DeclineCategory = "decline_update"
	CategoryDeclineRetry           DeclineCategory = "decline_retry"
	CategoryRejectedGateway        DeclineCategory = "rejected_gateway"
	CategoryErrorProcessor         DeclineCategory = "error_processor"
	CategoryInvalidMerchant        DeclineCategory = "invalid-merchant"
	CategoryInactiveAccount        DeclineCategory = "inactive_account"
	CategoryCommunicationError     DeclineCategory = "communication-error"
	CategoryCommunicationIssuer    DeclineCategory = "communication-issuer"
	CategoryDuplicate              DeclineCategory = "duplicate"
	CategoryFormatError            DeclineCategory = "format_error"
	CategoryInvalidInfo            DeclineCategory = "invalid_info"
	CategoryFeatureUnavailable     DeclineCategory = "feature_unavailable"
	CategoryUnsupported            DeclineCategory = "unsupported"

	// CategoryCustomError covers every response code the table doesn't know
	CategoryCustomError DeclineCategory = "custom-error"
)

// Gateway response codes mapped to decline categories
var declineCategories = map[string]DeclineCategory{
	"200": CategoryDecline,                // Transaction was declined by processor
	"201": CategoryDontHonor,              // Do not honor
	"202": CategoryInsufficientFunds,      // Insufficient funds
	"203": CategoryCreditLimitReached,     // Over limit
	"204": CategoryNotAllowed,             // Transaction not allowed
	"220": CategoryIncorrectInfo,          // Incorrect payment information
	"221": CategoryCardNumberTypeInvalid,  // No such card issuer
	"222": CategoryCardNumberInvalid,      // No card number on file with issuer
	"223": CategoryCardExpired,            // Expired card
	"224": CategoryCardExpiryInvalid,      // Invalid expiration date
	"225": CategoryCSCMismatch,            // Invalid card security code
	"226": CategoryCSCInvalid,             // Invalid PIN
	"240": CategoryCallIssuer,             // Call issuer for further information
	"250": CategoryPickupCard,             // Pick up card
	"251": CategoryLostCard,               // Lost card
	"252": CategoryStolenCard,             // Stolen card
	"253": CategoryFraud,                  // Fraudulent card
	"260": CategoryDeclineWithInstruction, // Declined with further instructions available
	"261": CategoryDeclineRecurring,       // Declined, stop all recurring payments
	"262": CategoryDeclineProgram,         // Declined, stop this recurring program
	"263": CategoryDeclineUpdate,          // Declined, update cardholder data available
	"264": CategoryDeclineRetry,           // Declined, retry in a few days
	"300": CategoryRejectedGateway,        // Transaction was rejected by gateway
	"400": CategoryErrorProcessor,         // Transaction error returned by processor
	"410": CategoryInvalidMerchant,        // Invalid merchant configuration
	"411": CategoryInactiveAccount,        // Merchant account is inactive
	"420": CategoryCommunicationError,     // Communication error
	"421": CategoryCommunicationIssuer,    // Communication error with issuer
	"430": CategoryDuplicate,              // Duplicate transaction at processor
	"440": CategoryFormatError,            // Processor format error
	"441": CategoryInvalidInfo,            // Invalid transaction information
	"460": CategoryFeatureUnavailable,     // Processor feature not available
	"461": CategoryUnsupported,            // Unsupported card type
}

// CategorizeResponseCode maps a gateway response code to its decline
// category. Unknown codes map to CategoryCustomError.
func CategorizeResponseCode(code string) DeclineCategory {
	if category, exists := declineCategories[code]; exists {
		return category
	}
	return CategoryCustomError
}
