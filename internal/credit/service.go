package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukapos/dukapos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Credit, error)
	Insert(ctx context.Context, c Credit) (int64, error)
	List(ctx context.Context, shopID int64, activeOnly bool) ([]Credit, error)
	ListByCustomer(ctx context.Context, customerID int64, activeOnly bool) ([]Credit, error)
	ListPayments(ctx context.Context, creditID int64) ([]Payment, error)
	CustomerBalance(ctx context.Context, customerID int64) (Balance, error)
	DeactivateByTransaction(ctx context.Context, transactionID int64) (int64, error)
	UpdateOwed(ctx context.Context, id int64, owed decimal.Decimal) error
	GetByTransaction(ctx context.Context, transactionID int64) (Credit, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the credit ledger.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create opens a credit record. Used both by the sale orchestrator for
// CREDIT sales and directly for ad-hoc top-ups.
func (s *Service) Create(ctx context.Context, input CreateInput) (Credit, error) {
	if input.CustomerID == 0 {
		return Credit{}, fmt.Errorf("credit: customer required")
	}
	if input.AmountOwed.LessThanOrEqual(decimal.Zero) {
		return Credit{}, ErrInvalidAmount
	}
	c := Credit{
		ShopID:        input.ShopID,
		CustomerID:    input.CustomerID,
		TransactionID: input.TransactionID,
		AmountOwed:    input.AmountOwed,
		AmountPaid:    decimal.Zero,
		Status:        StatusPending,
		IsActive:      true,
	}
	id, err := s.repo.Insert(ctx, c)
	if err != nil {
		return Credit{}, err
	}
	c.ID = id
	s.record(ctx, input.ActorID, c.ShopID, "credit:create", c.ID, map[string]any{"amount_owed": c.AmountOwed.String()})
	return c, nil
}

// Get fetches one credit.
func (s *Service) Get(ctx context.Context, id int64) (Credit, error) {
	return s.repo.Get(ctx, id)
}

// List returns credits for a shop.
func (s *Service) List(ctx context.Context, shopID int64, activeOnly bool) ([]Credit, error) {
	return s.repo.List(ctx, shopID, activeOnly)
}

// ListByCustomer returns a customer's credits.
func (s *Service) ListByCustomer(ctx context.Context, customerID int64, activeOnly bool) ([]Credit, error) {
	return s.repo.ListByCustomer(ctx, customerID, activeOnly)
}

// ListPayments returns the payment history of a credit.
func (s *Service) ListPayments(ctx context.Context, creditID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, creditID)
}

// RecordPayment appends a payment and recomputes the paid amount and
// status. Payments are intentionally not idempotent: submitting the same
// amount twice yields two payments.
func (s *Service) RecordPayment(ctx context.Context, creditID, actorID int64, amount decimal.Decimal, notes string) (Payment, Credit, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Payment{}, Credit{}, ErrInvalidAmount
	}
	var payment Payment
	var updated Credit
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCreditForUpdate(ctx, creditID)
		if err != nil {
			return err
		}
		if !c.IsActive {
			return ErrInactive
		}
		remaining := c.Remaining()
		if amount.GreaterThan(remaining) {
			return &OverpaymentError{Remaining: remaining}
		}
		payment, err = tx.InsertPayment(ctx, Payment{
			CreditID:  c.ID,
			Amount:    amount,
			Reference: uuid.NewString(),
			Notes:     notes,
			PaidAt:    time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		c.AmountPaid = c.AmountPaid.Add(amount)
		c.Status = StatusFor(c.AmountOwed, c.AmountPaid)
		if err := tx.UpdateAmounts(ctx, c.ID, c.AmountPaid, c.IsActive); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return Payment{}, Credit{}, err
	}
	s.record(ctx, actorID, updated.ShopID, "credit:payment", updated.ID, map[string]any{
		"amount": amount.String(),
		"paid":   updated.AmountPaid.String(),
		"status": string(updated.Status),
	})
	return payment, updated, nil
}

// PayAll records one payment for the full remaining balance. Settling the
// credit (flipping is_active) stays a separate operation.
func (s *Service) PayAll(ctx context.Context, creditID, actorID int64, notes string) (Credit, error) {
	c, err := s.repo.Get(ctx, creditID)
	if err != nil {
		return Credit{}, err
	}
	remaining := c.Remaining()
	if remaining.LessThanOrEqual(decimal.Zero) {
		return Credit{}, ErrAlreadySettled
	}
	_, updated, err := s.RecordPayment(ctx, creditID, actorID, remaining, notes)
	if err != nil {
		return Credit{}, err
	}
	return updated, nil
}

// Settle marks a fully paid credit as no longer outstanding.
func (s *Service) Settle(ctx context.Context, creditID, actorID int64) (Credit, error) {
	var updated Credit
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCreditForUpdate(ctx, creditID)
		if err != nil {
			return err
		}
		if c.AmountPaid.LessThan(c.AmountOwed) {
			return ErrNotFullyPaid
		}
		c.IsActive = false
		if err := tx.UpdateAmounts(ctx, c.ID, c.AmountPaid, false); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return Credit{}, err
	}
	s.record(ctx, actorID, updated.ShopID, "credit:settle", updated.ID, nil)
	return updated, nil
}

// DeactivateForTransaction voids all credits linked to a deleted sale.
// Unlike Settle this does not require full payment: the debt is voided
// along with the voided sale. History is retained for audit.
func (s *Service) DeactivateForTransaction(ctx context.Context, transactionID, actorID int64) (int64, error) {
	count, err := s.repo.DeactivateByTransaction(ctx, transactionID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.record(ctx, actorID, 0, "credit:deactivate", transactionID, map[string]any{"credits": count})
	}
	return count, nil
}

// AdjustOwed changes the owed amount after a sale edit. Paid amount stays
// untouched; the new owed amount may not drop below what was already paid.
func (s *Service) AdjustOwed(ctx context.Context, creditID int64, owed decimal.Decimal) (Credit, error) {
	c, err := s.repo.Get(ctx, creditID)
	if err != nil {
		return Credit{}, err
	}
	if owed.LessThanOrEqual(decimal.Zero) {
		return Credit{}, ErrInvalidAmount
	}
	if owed.LessThan(c.AmountPaid) {
		return Credit{}, &OverpaymentError{Remaining: c.AmountPaid}
	}
	if err := s.repo.UpdateOwed(ctx, creditID, owed); err != nil {
		return Credit{}, err
	}
	c.AmountOwed = owed
	c.Status = StatusFor(c.AmountOwed, c.AmountPaid)
	return c, nil
}

// GetByTransaction returns the credit linked to a sale, if any.
func (s *Service) GetByTransaction(ctx context.Context, transactionID int64) (Credit, error) {
	return s.repo.GetByTransaction(ctx, transactionID)
}

// CustomerBalance recomputes the aggregate balance over active credits.
func (s *Service) CustomerBalance(ctx context.Context, customerID int64) (Balance, error) {
	return s.repo.CustomerBalance(ctx, customerID)
}

// UnpaidTotal returns the outstanding amount a customer still owes across
// active credits. The sale orchestrator surfaces it before opening another
// credit for the same customer.
func (s *Service) UnpaidTotal(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	balance, err := s.repo.CustomerBalance(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Remaining, nil
}

func (s *Service) record(ctx context.Context, actorID, shopID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		ShopID:   shopID,
		Action:   action,
		Entity:   "credit",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
