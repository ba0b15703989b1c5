package nmi

import "github.com/kevin07696/nmi-gateway/internal/domain"

// avsMessages decodes single-character AVS result codes per the gateway's
// integration appendix. Used for order annotations only, never shown to the
// shopper directly.
var avsMessages = map[string]string{
	"A": "Address match only",
	"B": "Address match only",
	"C": "No address or ZIP match only",
	"D": "Exact match, 5-character numeric ZIP",
	"E": "Not a mail/phone order",
	"G": "Non-U.S. issuer does not participate",
	"I": "Non-U.S. issuer does not participate",
	"L": "5-character ZIP match only",
	"M": "Exact match, 5-character numeric ZIP",
	"N": "No address or ZIP match only",
	"O": "AVS not available",
	"P": "5-character ZIP match only",
	"R": "Issuer system unavailable",
	"S": "Service not supported",
	"U": "Address unavailable",
	"W": "9-character numeric ZIP match only",
	"X": "Exact match, 9-character numeric ZIP",
	"Y": "Exact match, 5-character numeric ZIP",
	"Z": "5-character ZIP match only",
	"0": "AVS not available",
	"1": "5-character ZIP, customer name match only",
	"2": "Exact match, 5-character numeric ZIP, customer name",
	"3": "Address, customer name match only",
	"4": "No address or ZIP or customer name match only",
	"5": "5-character ZIP, customer name match only",
	"6": "Exact match, 5-character numeric ZIP, customer name",
	"7": "Address, customer name match only",
	"8": "No address or ZIP or customer name match only",
}

// DecodeAVSResult returns the human note for an AVS code, "" when unknown
func DecodeAVSResult(code string) string {
	return avsMessages[code]
}

// avsNoMatch holds the AVS codes that indicate the submitted address did
// not match the cardholder's at all.
var avsNoMatch = map[string]bool{
	"C": true,
	"N": true,
	"4": true,
	"8": true,
}

// HasAVSRejection reports whether a verify response failed on a full
// address mismatch.
func HasAVSRejection(attempt domain.PaymentAttempt) bool {
	return avsNoMatch[attempt.AVSResponse()]
}

// HasCVVRejection reports whether a verify response carried a security-code
// result other than a match.
func HasCVVRejection(attempt domain.PaymentAttempt) bool {
	cvv := attempt.CVVResponse()
	return cvv != "" && cvv != "M"
}
