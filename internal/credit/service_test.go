package credit

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukapos/dukapos/internal/shared"
)

type memoryRepo struct {
	credits  map[int64]Credit
	payments []Payment
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{credits: make(map[int64]Credit)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Credit, error) {
	c, ok := r.credits[id]
	if !ok {
		return Credit{}, shared.ErrNotFound
	}
	c.Status = StatusFor(c.AmountOwed, c.AmountPaid)
	return c, nil
}

func (r *memoryRepo) Insert(_ context.Context, c Credit) (int64, error) {
	r.nextID++
	c.ID = r.nextID
	r.credits[c.ID] = c
	return c.ID, nil
}

func (r *memoryRepo) List(_ context.Context, shopID int64, activeOnly bool) ([]Credit, error) {
	out := []Credit{}
	for _, c := range r.credits {
		if c.ShopID == shopID && (!activeOnly || c.IsActive) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListByCustomer(_ context.Context, customerID int64, activeOnly bool) ([]Credit, error) {
	out := []Credit{}
	for _, c := range r.credits {
		if c.CustomerID == customerID && (!activeOnly || c.IsActive) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListPayments(_ context.Context, creditID int64) ([]Payment, error) {
	out := []Payment{}
	for _, p := range r.payments {
		if p.CreditID == creditID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) CustomerBalance(_ context.Context, customerID int64) (Balance, error) {
	balance := Balance{CustomerID: customerID, TotalOwed: decimal.Zero, TotalPaid: decimal.Zero}
	for _, c := range r.credits {
		if c.CustomerID == customerID && c.IsActive {
			balance.TotalOwed = balance.TotalOwed.Add(c.AmountOwed)
			balance.TotalPaid = balance.TotalPaid.Add(c.AmountPaid)
		}
	}
	balance.Remaining = balance.TotalOwed.Sub(balance.TotalPaid)
	return balance, nil
}

func (r *memoryRepo) DeactivateByTransaction(_ context.Context, transactionID int64) (int64, error) {
	var count int64
	for id, c := range r.credits {
		if c.TransactionID != nil && *c.TransactionID == transactionID && c.IsActive {
			c.IsActive = false
			r.credits[id] = c
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) UpdateOwed(_ context.Context, id int64, owed decimal.Decimal) error {
	c, ok := r.credits[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.AmountOwed = owed
	r.credits[id] = c
	return nil
}

func (r *memoryRepo) GetByTransaction(_ context.Context, transactionID int64) (Credit, error) {
	for _, c := range r.credits {
		if c.TransactionID != nil && *c.TransactionID == transactionID {
			return c, nil
		}
	}
	return Credit{}, shared.ErrNotFound
}

func (tx *memoryTx) GetCreditForUpdate(ctx context.Context, id int64) (Credit, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) InsertPayment(_ context.Context, payment Payment) (Payment, error) {
	payment.ID = int64(len(tx.repo.payments) + 1)
	tx.repo.payments = append(tx.repo.payments, payment)
	return payment, nil
}

func (tx *memoryTx) UpdateAmounts(_ context.Context, id int64, paid decimal.Decimal, isActive bool) error {
	c, ok := tx.repo.credits[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.AmountPaid = paid
	c.IsActive = isActive
	tx.repo.credits[id] = c
	return nil
}

func amount(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func openCredit(t *testing.T, svc *Service, owed int64) Credit {
	t.Helper()
	c, err := svc.Create(context.Background(), CreateInput{ShopID: 1, ActorID: 7, CustomerID: 42, AmountOwed: amount(owed)})
	require.NoError(t, err)
	return c
}

func TestCreateCredit(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	c := openCredit(t, svc, 10000)
	require.Equal(t, StatusPending, c.Status)
	require.True(t, c.IsActive)
	require.True(t, c.AmountPaid.IsZero())

	_, err := svc.Create(context.Background(), CreateInput{ShopID: 1, CustomerID: 42, AmountOwed: amount(0)})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Create(context.Background(), CreateInput{ShopID: 1, CustomerID: 42, AmountOwed: amount(-5)})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPaymentLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	c := openCredit(t, svc, 10000)
	ctx := context.Background()

	payment, updated, err := svc.RecordPayment(ctx, c.ID, 7, amount(4000), "first instalment")
	require.NoError(t, err)
	require.Equal(t, StatusPartial, updated.Status)
	require.True(t, updated.AmountPaid.Equal(amount(4000)))
	require.True(t, payment.Amount.Equal(amount(4000)))

	_, _, err = svc.RecordPayment(ctx, c.ID, 7, amount(7000), "")
	var overpay *OverpaymentError
	require.ErrorAs(t, err, &overpay)
	require.True(t, overpay.Remaining.Equal(amount(6000)))

	_, updated, err = svc.RecordPayment(ctx, c.ID, 7, amount(6000), "rest")
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
	require.True(t, updated.AmountPaid.Equal(amount(10000)))

	history, err := svc.ListPayments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestPaymentsAreNotIdempotent(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	c := openCredit(t, svc, 10000)
	ctx := context.Background()

	_, _, err := svc.RecordPayment(ctx, c.ID, 7, amount(2000), "")
	require.NoError(t, err)
	_, updated, err := svc.RecordPayment(ctx, c.ID, 7, amount(2000), "")
	require.NoError(t, err)
	require.True(t, updated.AmountPaid.Equal(amount(4000)))

	history, err := svc.ListPayments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestRecordPaymentGuards(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	c := openCredit(t, svc, 5000)
	ctx := context.Background()

	_, _, err := svc.RecordPayment(ctx, c.ID, 7, amount(0), "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = svc.RecordPayment(ctx, 999, 7, amount(100), "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPayAll(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	c := openCredit(t, svc, 9000)
	ctx := context.Background()

	_, _, err := svc.RecordPayment(ctx, c.ID, 7, amount(1500), "")
	require.NoError(t, err)

	updated, err := svc.PayAll(ctx, c.ID, 7, "close out")
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
	require.True(t, updated.Remaining().IsZero())

	_, err = svc.PayAll(ctx, c.ID, 7, "")
	require.ErrorIs(t, err, ErrAlreadySettled)
}

func TestSettle(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	c := openCredit(t, svc, 3000)
	ctx := context.Background()

	_, err := svc.Settle(ctx, c.ID, 7)
	require.ErrorIs(t, err, ErrNotFullyPaid)

	_, err = svc.PayAll(ctx, c.ID, 7, "")
	require.NoError(t, err)

	settled, err := svc.Settle(ctx, c.ID, 7)
	require.NoError(t, err)
	require.False(t, settled.IsActive)

	// Payments against a settled credit are rejected.
	_, _, err = svc.RecordPayment(ctx, c.ID, 7, amount(100), "")
	require.ErrorIs(t, err, ErrInactive)
}

func TestDeactivateForTransaction(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	txnID := int64(555)
	c, err := svc.Create(ctx, CreateInput{ShopID: 1, CustomerID: 42, TransactionID: &txnID, AmountOwed: amount(8000)})
	require.NoError(t, err)

	// Partial payment does not block voiding.
	_, _, err = svc.RecordPayment(ctx, c.ID, 7, amount(1000), "")
	require.NoError(t, err)

	count, err := svc.DeactivateForTransaction(ctx, txnID, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	voided, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, voided.IsActive)
	// History retained for audit.
	require.True(t, voided.AmountPaid.Equal(amount(1000)))
}

func TestCustomerBalanceAggregatesActiveCredits(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	first := openCredit(t, svc, 15000)
	openCredit(t, svc, 5000)

	_, _, err := svc.RecordPayment(ctx, first.ID, 7, amount(4000), "")
	require.NoError(t, err)

	balance, err := svc.CustomerBalance(ctx, 42)
	require.NoError(t, err)
	require.True(t, balance.TotalOwed.Equal(amount(20000)))
	require.True(t, balance.TotalPaid.Equal(amount(4000)))
	require.True(t, balance.Remaining.Equal(amount(16000)))

	// Separate credits stay independent records.
	credits, err := svc.ListByCustomer(ctx, 42, true)
	require.NoError(t, err)
	require.Len(t, credits, 2)
}

func TestAdjustOwed(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	c := openCredit(t, svc, 10000)
	ctx := context.Background()

	_, _, err := svc.RecordPayment(ctx, c.ID, 7, amount(4000), "")
	require.NoError(t, err)

	// Raising owed on a partially paid credit is permitted.
	updated, err := svc.AdjustOwed(ctx, c.ID, amount(12000))
	require.NoError(t, err)
	require.Equal(t, StatusPartial, updated.Status)
	require.True(t, updated.AmountPaid.Equal(amount(4000)))

	// Owed may not drop below what was already paid.
	_, err = svc.AdjustOwed(ctx, c.ID, amount(3000))
	var overpay *OverpaymentError
	require.ErrorAs(t, err, &overpay)
}
