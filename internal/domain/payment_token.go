package domain

import (
	"time"
)

// PaymentToken represents a saved customer vault record (tokenized card).
// Only display metadata is kept locally; the card itself lives in the
// gateway's vault under VaultCustomerID.
type PaymentToken struct {
	// Identity
	ID string `json:"id"` // UUID

	// Owner
	UserID int64 `json:"user_id"`

	// Gateway vault reference
	VaultCustomerID string `json:"vault_customer_id"`

	// Environment the token was created in; lookups never cross environments
	Environment Environment `json:"environment"`

	// Display metadata (NEVER store full card numbers)
	LastFour string `json:"last_four"`
	Brand    string `json:"brand"`
	ExpMonth string `json:"exp_month"` // "01".."12"
	ExpYear  string `json:"exp_year"`  // two digits

	IsDefault bool `json:"is_default"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpiryDisplay returns "MM/YY" for checkout display
func (t *PaymentToken) ExpiryDisplay() string {
	if t.ExpMonth == "" || t.ExpYear == "" {
		return ""
	}
	return t.ExpMonth + "/" + t.ExpYear
}

// DisplayName returns a human-readable label for the token
func (t *PaymentToken) DisplayName() string {
	brand := t.Brand
	if brand == "" {
		brand = "card"
	}
	return brand + " ending in " + t.LastFour
}

// BelongsTo reports whether the token is owned by the given user
func (t *PaymentToken) BelongsTo(userID int64) bool {
	return t.UserID == userID && userID > 0
}
