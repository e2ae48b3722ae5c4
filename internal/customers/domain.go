// Package customers owns the customer master records referenced by credit
// sales and the credit ledger.
package customers

import (
	"errors"
	"time"
)

// Customer is a shop customer. Credit sales require one; cash sales may
// reference one for reporting.
type Customer struct {
	ID        int64     `json:"id"`
	ShopID    int64     `json:"shop_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput describes a new customer.
type CreateInput struct {
	ShopID int64
	Name   string
	Phone  string
	Notes  string
}

// ErrNameRequired indicates a blank customer name.
var ErrNameRequired = errors.New("customers: name is required")
