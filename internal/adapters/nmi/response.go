package nmi

import (
	"net/url"
	"strings"

	"github.com/kevin07696/nmi-gateway/internal/domain"
)

// Gateway result codes carried in the "response" field
const (
	responseApproved = "1"
	responseDeclined = "2"
	responseError    = "3"
)

// ResponseCodeTimeout is the synthetic response_code used when the gateway
// could not be reached at all
const ResponseCodeTimeout = "3004"

// A well-formed gateway response always carries more than this many fields;
// anything shorter is a truncated or garbage body and must never be
// interpreted as an approval.
const minResponseFields = 8

// ParseResponse decodes the gateway's &-delimited key=value body into a
// classified attempt. It never returns an error: every body, including
// garbage, classifies into exactly one of approved, declined, or failed.
func ParseResponse(body []byte) domain.PaymentAttempt {
	fields, pairs := parseBody(string(body))

	// Judged on raw pairs, not map size: the gateway may repeat a key and
	// a repeated key still means the body arrived whole.
	if pairs < minResponseFields {
		return domain.NewPaymentAttempt(false, false, true, fields)
	}

	switch fields["response"] {
	case responseApproved:
		return domain.NewPaymentAttempt(true, false, false, fields)
	case responseDeclined:
		// declines count as failures so failure handling always runs
		return domain.NewPaymentAttempt(false, true, true, fields)
	case responseError:
		return domain.NewPaymentAttempt(false, false, true, fields)
	default:
		return domain.NewPaymentAttempt(false, false, false, fields)
	}
}

// TransportFailureAttempt synthesizes the attempt used when the HTTP call
// itself failed: a gateway error with the timeout response code.
func TransportFailureAttempt(err error) domain.PaymentAttempt {
	fields := map[string]string{
		"response":      responseError,
		"response_code": ResponseCodeTimeout,
	}
	if err != nil {
		fields["responsetext"] = err.Error()
	}
	return domain.NewPaymentAttempt(false, false, true, fields)
}

// parseBody splits the raw body into its key=value pairs, returning the
// decoded fields and the number of pairs seen before duplicate keys
// collapse. Values are percent-decoded; pairs with no "=" are kept with an
// empty value so the pair count reflects what the gateway actually sent.
func parseBody(body string) (map[string]string, int) {
	fields := make(map[string]string)
	body = strings.TrimSpace(body)
	if body == "" {
		return fields, 0
	}

	pairs := 0
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		pairs++
		key, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		fields[key] = value
	}
	return fields, pairs
}
