// Package credit implements the customer credit ledger: amounts owed and
// paid per credit record, append-only payment history, and the aggregate
// balance per customer.
package credit

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is derived from the two amounts, never stored independently.
type Status string

const (
	// StatusPending means nothing has been paid yet.
	StatusPending Status = "PENDING"
	// StatusPartial means some but not all has been paid.
	StatusPartial Status = "PARTIAL"
	// StatusPaid means the full amount has been paid.
	StatusPaid Status = "PAID"
)

// StatusFor derives the status from the amounts.
func StatusFor(owed, paid decimal.Decimal) Status {
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return StatusPending
	case paid.GreaterThanOrEqual(owed):
		return StatusPaid
	default:
		return StatusPartial
	}
}

// Credit tracks money a customer owes. TransactionID is nil for ad-hoc
// top-ups unconnected to a sale.
type Credit struct {
	ID            int64           `json:"id"`
	ShopID        int64           `json:"shop_id"`
	CustomerID    int64           `json:"customer_id"`
	TransactionID *int64          `json:"transaction_id,omitempty"`
	AmountOwed    decimal.Decimal `json:"amount_owed"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Status        Status          `json:"status"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Remaining returns the unpaid balance.
func (c Credit) Remaining() decimal.Decimal {
	return c.AmountOwed.Sub(c.AmountPaid)
}

// Payment is one immutable entry in a credit's payment history.
type Payment struct {
	ID        int64           `json:"id"`
	CreditID  int64           `json:"credit_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes,omitempty"`
	PaidAt    time.Time       `json:"payment_date"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateInput describes a new credit record.
type CreateInput struct {
	ShopID        int64
	ActorID       int64
	CustomerID    int64
	TransactionID *int64
	AmountOwed    decimal.Decimal
}

// Balance aggregates the active credits of one customer. It is recomputed
// on demand from the underlying rows, never cached.
type Balance struct {
	CustomerID int64           `json:"customer_id"`
	TotalOwed  decimal.Decimal `json:"total_owed"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
	Remaining  decimal.Decimal `json:"remaining"`
}

// ErrInvalidAmount indicates a zero or negative amount.
var ErrInvalidAmount = errors.New("credit: amount must be positive")

// ErrAlreadySettled indicates a pay-all on a credit with nothing left to pay.
var ErrAlreadySettled = errors.New("credit: nothing remaining to pay")

// ErrNotFullyPaid blocks settling a credit that still has a balance.
var ErrNotFullyPaid = errors.New("credit: not fully paid")

// ErrInactive indicates a payment against a deactivated credit.
var ErrInactive = errors.New("credit: credit is no longer active")

// OverpaymentError rejects a payment exceeding the remaining balance.
type OverpaymentError struct {
	Remaining decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("credit: payment exceeds remaining balance of %s", e.Remaining.String())
}
