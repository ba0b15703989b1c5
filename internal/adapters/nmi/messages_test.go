package nmi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kevin07696/nmi-gateway/internal/domain"
)

func failedAttempt(code, text string) domain.PaymentAttempt {
	return domain.NewPaymentAttempt(false, true, true, map[string]string{
		"response":      "2",
		"response_code": code,
		"responsetext":  text,
	})
}

func TestCategorizeResponseCode(t *testing.T) {
	assert.Equal(t, CategoryDecline, CategorizeResponseCode("200"))
	assert.Equal(t, CategoryInsufficientFunds, CategorizeResponseCode("202"))
	assert.Equal(t, CategoryStolenCard, CategorizeResponseCode("252"))
	assert.Equal(t, CategoryRejectedGateway, CategorizeResponseCode("300"))
	assert.Equal(t, CategoryCustomError, CategorizeResponseCode("999"))
	assert.Equal(t, CategoryCustomError, CategorizeResponseCode(""))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		code string
		text string
		want string
	}{
		{
			name: "insufficient funds uses the category table",
			code: "202",
			text: "Insufficient funds",
			want: "The provided card does not have sufficient funds to complete this transaction, please use an alternate card or other form of payment.",
		},
		{
			name: "stolen card never discloses the reason",
			code: "252",
			text: "STOLEN CARD - PICK UP",
			want: "Your card was declined, please contact your bank or use an alternate card.",
		},
		{
			name: "bare DECLINE on a plain decline is softened",
			code: "200",
			text: "DECLINE",
			want: MessageDeclineGeneric,
		},
		{
			name: "plain decline with specific text passes through",
			code: "200",
			text: "Declined by issuer",
			want: "Declined by issuer",
		},
		{
			name: "unknown code falls back to gateway text",
			code: "999",
			text: "Something odd happened",
			want: "Something odd happened",
		},
		{
			name: "unknown code with no text gets the generic apology",
			code: "999",
			text: "",
			want: MessageGenericFailure,
		},
		{
			name: "timeout sentinel always wins",
			code: ResponseCodeTimeout,
			text: "dial tcp: i/o timeout",
			want: MessageServerTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(failedAttempt(tt.code, tt.text)))
		})
	}
}

func TestToPaymentError(t *testing.T) {
	declined := failedAttempt("202", "Insufficient funds")
	paymentErr := ToPaymentError(declined)
	assert.Equal(t, "202", paymentErr.Code)
	assert.Equal(t, "Insufficient funds", paymentErr.GatewayMessage)
	assert.False(t, paymentErr.IsRetriable)

	retriable := failedAttempt("264", "Retry in a few days")
	assert.True(t, ToPaymentError(retriable).IsRetriable)

	timedOut := domain.NewPaymentAttempt(false, false, true, map[string]string{
		"response":      "3",
		"response_code": ResponseCodeTimeout,
	})
	timeoutErr := ToPaymentError(timedOut)
	assert.True(t, timeoutErr.IsRetriable)
	assert.Equal(t, MessageServerTimeout, timeoutErr.Message)
}

func TestDecodeAVSResult(t *testing.T) {
	assert.Equal(t, "Exact match, 5-character numeric ZIP", DecodeAVSResult("Y"))
	assert.Equal(t, "No address or ZIP match only", DecodeAVSResult("N"))
	assert.Equal(t, "AVS not available", DecodeAVSResult("0"))
	assert.Empty(t, DecodeAVSResult("q"))
	assert.Empty(t, DecodeAVSResult(""))
}

func TestHasAVSRejection(t *testing.T) {
	for _, code := range []string{"C", "N", "4", "8"} {
		attempt := domain.NewPaymentAttempt(true, false, false, map[string]string{"avsresponse": code})
		assert.True(t, HasAVSRejection(attempt), "code %s", code)
	}
	for _, code := range []string{"Y", "X", "Z", "", "0"} {
		attempt := domain.NewPaymentAttempt(true, false, false, map[string]string{"avsresponse": code})
		assert.False(t, HasAVSRejection(attempt), "code %s", code)
	}
}

func TestHasCVVRejection(t *testing.T) {
	match := domain.NewPaymentAttempt(true, false, false, map[string]string{"cvvresponse": "M"})
	assert.False(t, HasCVVRejection(match))

	absent := domain.NewPaymentAttempt(true, false, false, map[string]string{})
	assert.False(t, HasCVVRejection(absent))

	mismatch := domain.NewPaymentAttempt(true, false, false, map[string]string{"cvvresponse": "N"})
	assert.True(t, HasCVVRejection(mismatch))
}
