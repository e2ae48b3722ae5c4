package credit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dukapos/dukapos/internal/shared"
)

// Repository persists credits and payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used when recording a
// payment. The credit row is locked for the duration so a concurrent
// payment cannot overdraw the remaining balance.
type TxRepository interface {
	GetCreditForUpdate(ctx context.Context, id int64) (Credit, error)
	InsertPayment(ctx context.Context, payment Payment) (Payment, error)
	UpdateAmounts(ctx context.Context, id int64, paid decimal.Decimal, isActive bool) error
}

type txRepository struct {
	tx pgx.Tx
}

const creditColumns = `id, shop_id, customer_id, transaction_id, amount_owed, amount_paid, is_active, created_at, updated_at`

func scanCredit(row pgx.Row) (Credit, error) {
	var c Credit
	err := row.Scan(&c.ID, &c.ShopID, &c.CustomerID, &c.TransactionID, &c.AmountOwed, &c.AmountPaid, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credit{}, shared.ErrNotFound
		}
		return Credit{}, err
	}
	c.Status = StatusFor(c.AmountOwed, c.AmountPaid)
	return c, nil
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("credit repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Get fetches a credit by id.
func (r *Repository) Get(ctx context.Context, id int64) (Credit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+creditColumns+` FROM credits WHERE id=$1`, id)
	return scanCredit(row)
}

// Insert creates a credit row.
func (r *Repository) Insert(ctx context.Context, c Credit) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO credits (shop_id, customer_id, transaction_id, amount_owed, amount_paid, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		c.ShopID, c.CustomerID, c.TransactionID, c.AmountOwed, c.AmountPaid, c.IsActive).Scan(&id)
	return id, err
}

// ListByCustomer returns all credits for a customer, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID int64, activeOnly bool) ([]Credit, error) {
	query := `SELECT ` + creditColumns + ` FROM credits WHERE customer_id=$1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	credits := []Credit{}
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// List returns credits for a shop, optionally only active ones.
func (r *Repository) List(ctx context.Context, shopID int64, activeOnly bool) ([]Credit, error) {
	query := `SELECT ` + creditColumns + ` FROM credits WHERE shop_id=$1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at DESC LIMIT 500`
	rows, err := r.pool.Query(ctx, query, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	credits := []Credit{}
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// ListPayments returns the payment history of a credit, oldest first.
func (r *Repository) ListPayments(ctx context.Context, creditID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, credit_id, amount, reference, notes, paid_at, created_at
FROM credit_payments WHERE credit_id=$1 ORDER BY paid_at ASC, id ASC`, creditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.CreditID, &p.Amount, &p.Reference, &p.Notes, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CustomerBalance sums owed and paid over a customer's active credits.
func (r *Repository) CustomerBalance(ctx context.Context, customerID int64) (Balance, error) {
	var owed, paid decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount_owed),0), COALESCE(SUM(amount_paid),0)
FROM credits WHERE customer_id=$1 AND is_active`, customerID).Scan(&owed, &paid)
	if err != nil {
		return Balance{}, err
	}
	return Balance{CustomerID: customerID, TotalOwed: owed, TotalPaid: paid, Remaining: owed.Sub(paid)}, nil
}

// DeactivateByTransaction voids every credit linked to a deleted sale.
func (r *Repository) DeactivateByTransaction(ctx context.Context, transactionID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE credits SET is_active=FALSE, updated_at=NOW() WHERE transaction_id=$1 AND is_active`, transactionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateOwed changes the amount owed after a sale edit.
func (r *Repository) UpdateOwed(ctx context.Context, id int64, owed decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE credits SET amount_owed=$2, updated_at=NOW() WHERE id=$1`, id, owed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetByTransaction returns the credit linked to a sale, if any.
func (r *Repository) GetByTransaction(ctx context.Context, transactionID int64) (Credit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+creditColumns+` FROM credits WHERE transaction_id=$1`, transactionID)
	return scanCredit(row)
}

func (r *txRepository) GetCreditForUpdate(ctx context.Context, id int64) (Credit, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+creditColumns+` FROM credits WHERE id=$1 FOR UPDATE`, id)
	return scanCredit(row)
}

func (r *txRepository) InsertPayment(ctx context.Context, payment Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO credit_payments (credit_id, amount, reference, notes, paid_at, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id, created_at`,
		payment.CreditID, payment.Amount, payment.Reference, payment.Notes, payment.PaidAt).Scan(&payment.ID, &payment.CreatedAt)
	return payment, err
}

func (r *txRepository) UpdateAmounts(ctx context.Context, id int64, paid decimal.Decimal, isActive bool) error {
	tag, err := r.tx.Exec(ctx, `UPDATE credits SET amount_paid=$2, is_active=$3, updated_at=NOW() WHERE id=$1`, id, paid, isActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
