package domain

import (
	"github.com/shopspring/decimal"
)

// Address holds a billing or shipping address snapshot taken from the order
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// IsEmpty reports whether no field of the address is set
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// CustomerProfile carries the stored account details used to fill gaps in
// the order's billing address (guest checkouts leave billing sparse)
type CustomerProfile struct {
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Order is the snapshot of the host system's order that a transaction
// operates on. The gateway never mutates the order directly; metadata and
// notes go back through OrderRepository.
type Order struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	UserID      int64           `json:"user_id"` // 0 for guest checkout
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Billing     Address         `json:"billing"`
	Shipping    Address         `json:"shipping"`
	CustomerIP  string          `json:"customer_ip"`

	// Set when a previous transaction on this order already vaulted a token,
	// e.g. a renewal charge. Short-circuits payment source resolution.
	StoredVaultID string `json:"stored_vault_id,omitempty"`
}

// IsGuest reports whether the order has no registered customer attached
func (o *Order) IsGuest() bool {
	return o.UserID <= 0
}
