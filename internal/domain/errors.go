package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationExpiryMonth   ErrorCode = "VALIDATION_EXPIRY_MONTH"
	ErrorCodeValidationExpiryYear    ErrorCode = "VALIDATION_EXPIRY_YEAR"
	ErrorCodeValidationCardExpired   ErrorCode = "VALIDATION_CARD_EXPIRED"
	ErrorCodeValidationCSC           ErrorCode = "VALIDATION_CSC"
	ErrorCodeValidationCardType      ErrorCode = "VALIDATION_CARD_TYPE"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError     ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayTimeout   ErrorCode = "GATEWAY_TIMEOUT"
	ErrorCodeGatewayDeclined  ErrorCode = "GATEWAY_DECLINED"
	ErrorCodeGatewayMalformed ErrorCode = "GATEWAY_MALFORMED_RESPONSE"

	// Throttle Errors (THROTTLE_*)
	ErrorCodeThrottleMaxAttempts ErrorCode = "THROTTLE_MAX_ATTEMPTS"

	// Token Errors (TOKEN_*)
	ErrorCodeTokenNotFound    ErrorCode = "TOKEN_NOT_FOUND"
	ErrorCodeTokenNotOwned    ErrorCode = "TOKEN_NOT_OWNED"
	ErrorCodeTokenMissingData ErrorCode = "TOKEN_MISSING_DATA"

	// Order Errors (ORDER_*)
	ErrorCodeOrderNotFound ErrorCode = "ORDER_NOT_FOUND"

	// Configuration Errors (CONFIG_*)
	ErrorCodeConfigCredentials ErrorCode = "CONFIG_CREDENTIALS"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationExpiryMonth ||
		code == ErrorCodeValidationExpiryYear ||
		code == ErrorCodeValidationCardExpired ||
		code == ErrorCodeValidationCSC ||
		code == ErrorCodeValidationCardType ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationMissingField
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayError ||
		code == ErrorCodeGatewayTimeout ||
		code == ErrorCodeGatewayDeclined ||
		code == ErrorCodeGatewayMalformed
}

// IsThrottleError checks if an error means the weekly attempt limit was hit
func IsThrottleError(err error) bool {
	return GetErrorCode(err) == ErrorCodeThrottleMaxAttempts
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeTokenNotFound || code == ErrorCodeOrderNotFound
}

// Structured error instances
var (
	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrValidationMissingField  = NewDomainError(ErrorCodeValidationMissingField, "required field missing")

	ErrGatewayError     = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayTimedOut  = NewDomainError(ErrorCodeGatewayTimeout, "payment gateway timeout")
	ErrGatewayDeclined  = NewDomainError(ErrorCodeGatewayDeclined, "payment declined by gateway")
	ErrGatewayMalformed = NewDomainError(ErrorCodeGatewayMalformed, "malformed gateway response")

	ErrMaxAttemptsReached = NewDomainError(ErrorCodeThrottleMaxAttempts, "maximum payment attempts reached for this week")

	ErrTokenNotFound    = NewDomainError(ErrorCodeTokenNotFound, "payment token not found")
	ErrTokenNotOwned    = NewDomainError(ErrorCodeTokenNotOwned, "payment token belongs to another customer")
	ErrTokenMissingData = NewDomainError(ErrorCodeTokenMissingData, "payment token data is missing")

	ErrOrderNotFound = NewDomainError(ErrorCodeOrderNotFound, "order not found")

	ErrCredentialsMissing = NewDomainError(ErrorCodeConfigCredentials, "gateway credentials are not configured")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
