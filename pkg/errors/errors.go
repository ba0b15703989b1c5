package errors

import (
	"fmt"
)

// ErrorCategory classifies a gateway failure for transport-level handling
type ErrorCategory string

const (
	CategoryDeclined     ErrorCategory = "declined"
	CategoryGatewayError ErrorCategory = "gateway_error"
	CategoryTimeout      ErrorCategory = "timeout"
)

// PaymentError represents a payment processing error with detailed context.
// Message is safe to show to a cardholder; GatewayMessage is the raw
// processor response text and must stay out of customer-facing surfaces.
type PaymentError struct {
	Code           string
	Message        string
	GatewayMessage string
	IsRetriable    bool
	Category       ErrorCategory
	Details        map[string]interface{}
}

func (e *PaymentError) Error() string {
	if e.GatewayMessage != "" {
		return fmt.Sprintf("%s: %s (gateway: %s)", e.Code, e.Message, e.GatewayMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
