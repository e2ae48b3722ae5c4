// Package sales orchestrates sale transactions: stock allocation across
// line items, invoice numbering, credit creation, soft deletion with stock
// restoration, and edit re-allocation.
package sales

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukapos/dukapos/internal/stock"
)

// PaymentType is fixed at sale creation.
type PaymentType string

const (
	// PaymentCash is settled at the counter.
	PaymentCash PaymentType = "CASH"
	// PaymentCredit opens a credit record for the customer.
	PaymentCredit PaymentType = "CREDIT"
)

// Valid reports whether the payment type is supported.
func (p PaymentType) Valid() bool {
	return p == PaymentCash || p == PaymentCredit
}

// Transaction is a sale. Deletion is always soft: stock is restored and the
// row is kept with the reason and actor.
type Transaction struct {
	ID            int64           `json:"id"`
	ShopID        int64           `json:"shop_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	PaymentType   PaymentType     `json:"payment_type"`
	Total         decimal.Decimal `json:"total"`
	IsDeleted     bool            `json:"is_deleted"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy     int64           `json:"deleted_by,omitempty"`
	DeleteReason  string          `json:"delete_reason,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []LineItem      `json:"items,omitempty"`
}

// LineItem references a product with the price snapshotted at sale time.
// Later price changes on the product never alter historical transactions.
type LineItem struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	ProductID     int64           `json:"product_id"`
	Quantity      int64           `json:"quantity"`
	UnitSold      stock.Unit      `json:"unit_sold"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// SaleItemInput is one requested line of a new sale.
type SaleItemInput struct {
	ProductID int64
	Quantity  int64
	Unit      stock.Unit
}

// CreateSaleInput describes a new sale.
type CreateSaleInput struct {
	ShopID       int64
	ActorID      int64
	PaymentType  PaymentType
	CustomerID   int64
	CustomerName string
	Items        []SaleItemInput
	// AcknowledgeOutstanding bypasses the duplicate-credit guard once the
	// caller has confirmed the customer's existing unpaid balance.
	AcknowledgeOutstanding bool
}

// LineItemChange edits one existing line item. Nil fields keep the current
// value.
type LineItemChange struct {
	LineItemID   int64
	Quantity     *int64
	Unit         *stock.Unit
	SellingPrice *decimal.Decimal
}

// EditSaleInput describes a sale edit.
type EditSaleInput struct {
	TransactionID int64
	ActorID       int64
	Changes       []LineItemChange
}

// DeleteSaleInput soft-deletes a sale.
type DeleteSaleInput struct {
	TransactionID int64
	ActorID       int64
	Reason        string
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	ShopID         int64
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// ErrInvalidInput wraps field-level validation failures.
var ErrInvalidInput = errors.New("sales: invalid input")

// ErrAlreadyDeleted indicates a repeated deletion.
var ErrAlreadyDeleted = errors.New("sales: transaction already deleted")

// ErrDeleted blocks edits on a soft-deleted transaction.
var ErrDeleted = errors.New("sales: transaction is deleted")

// OutstandingCreditError surfaces a customer's existing unpaid balance
// before a new credit sale proceeds. It is a confirmation gate, not a hard
// block: resubmitting with AcknowledgeOutstanding set bypasses it.
type OutstandingCreditError struct {
	CustomerID int64
	Unpaid     decimal.Decimal
}

func (e *OutstandingCreditError) Error() string {
	return fmt.Sprintf("sales: customer %d has unpaid credit of %s, confirmation required", e.CustomerID, e.Unpaid.String())
}

// PartialFailureError reports an orchestrated operation that persisted some
// steps before failing. It is never retried automatically; operators use
// the completed step list to reconcile.
type PartialFailureError struct {
	Op            string
	TransactionID int64
	Completed     []string
	Err           error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("sales: %s partially failed for transaction %d after [%s]: %v",
		e.Op, e.TransactionID, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
