package domain

// PaymentAttempt is the normalized, immutable outcome of one gateway call.
// It is constructed once from the wire response and only read afterwards;
// nothing downstream can flip an approval after classification.
type PaymentAttempt struct {
	approved bool
	declined bool
	failed   bool
	fields   map[string]string
}

// NewPaymentAttempt builds an attempt from classified wire fields. The field
// map is copied so later mutation of the caller's map cannot leak in.
func NewPaymentAttempt(approved, declined, failed bool, fields map[string]string) PaymentAttempt {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return PaymentAttempt{
		approved: approved,
		declined: declined,
		failed:   failed,
		fields:   copied,
	}
}

// Approved reports whether the gateway approved the transaction
func (a PaymentAttempt) Approved() bool { return a.approved }

// Declined reports whether the gateway declined the transaction
func (a PaymentAttempt) Declined() bool { return a.declined }

// Failed reports whether the attempt ended in an error, including declines
// and transport failures
func (a PaymentAttempt) Failed() bool { return a.failed }

// Field returns a raw response field by wire name
func (a PaymentAttempt) Field(key string) string { return a.fields[key] }

// ResponseCode returns the gateway's numeric result code, e.g. "100" or "3004"
func (a PaymentAttempt) ResponseCode() string { return a.fields["response_code"] }

// ResponseText returns the gateway's human-readable result text
func (a PaymentAttempt) ResponseText() string { return a.fields["responsetext"] }

// TransactionID returns the gateway transaction id, if any
func (a PaymentAttempt) TransactionID() string { return a.fields["transactionid"] }

// AuthCode returns the issuer authorization code, if any
func (a PaymentAttempt) AuthCode() string { return a.fields["authcode"] }

// AVSResponse returns the address verification result code
func (a PaymentAttempt) AVSResponse() string { return a.fields["avsresponse"] }

// CVVResponse returns the card security code verification result
func (a PaymentAttempt) CVVResponse() string { return a.fields["cvvresponse"] }

// CustomerVaultID returns the vault id the gateway stored the card under
func (a PaymentAttempt) CustomerVaultID() string { return a.fields["customer_vault_id"] }
