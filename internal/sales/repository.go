package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dukapos/dukapos/internal/platform/db"
	"github.com/dukapos/dukapos/internal/shared"
)

const transactionColumns = `id, shop_id, invoice_number, customer_id, payment_type, total,
	is_deleted, deleted_at, deleted_by, delete_reason, created_by, created_at`

const lineItemColumns = `id, transaction_id, product_id, quantity, unit_sold, selling_price, subtotal`

// Repository persists transactions and their line items.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements used inside a transaction closure.
type TxRepository interface {
	NextInvoiceNumber(ctx context.Context, shopID int64, day time.Time) (string, error)
	InsertTransaction(ctx context.Context, t *Transaction) error
	InsertLineItems(ctx context.Context, transactionID int64, items []LineItem) ([]LineItem, error)
	UpdateLineItem(ctx context.Context, item LineItem) error
	UpdateTotal(ctx context.Context, transactionID int64, total decimal.Decimal) error
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.ShopID, &t.InvoiceNumber, &t.CustomerID, &t.PaymentType, &t.Total,
		&t.IsDeleted, &t.DeletedAt, &t.DeletedBy, &t.DeleteReason, &t.CreatedBy, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

// Get returns a transaction with its line items, deleted or not.
func (r *Repository) Get(ctx context.Context, id int64) (*Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}
	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Items = items
	return t, nil
}

func (r *Repository) listItems(ctx context.Context, transactionID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+lineItemColumns+` FROM sale_items WHERE transaction_id = $1 ORDER BY id`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.ProductID, &it.Quantity,
			&it.UnitSold, &it.SellingPrice, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// List returns transactions for a shop, newest first. Soft-deleted rows are
// excluded unless the filter asks for them.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Transaction, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE shop_id = $1`
	if !f.IncludeDeleted {
		q += ` AND is_deleted = FALSE`
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, q, f.ShopID, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.ShopID, &t.InvoiceNumber, &t.CustomerID, &t.PaymentType, &t.Total,
			&t.IsDeleted, &t.DeletedAt, &t.DeletedBy, &t.DeleteReason, &t.CreatedBy, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkDeleted soft-deletes a transaction. It returns ErrAlreadyDeleted when
// the row was already marked.
func (r *Repository) MarkDeleted(ctx context.Context, id, actorID int64, reason string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions
		 SET is_deleted = TRUE, deleted_at = NOW(), deleted_by = $2, delete_reason = $3
		 WHERE id = $1 AND is_deleted = FALSE`,
		id, actorID, reason)
	if err != nil {
		return fmt.Errorf("mark transaction deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyDeleted
	}
	return nil
}

type txRepository struct {
	tx pgx.Tx
}

// NextInvoiceNumber allocates the next per-shop, per-day sequence and formats
// it as INV-YYYYMMDD-NNNNNN. The upsert keeps the counter monotonic under
// concurrent sales.
func (r *txRepository) NextInvoiceNumber(ctx context.Context, shopID int64, day time.Time) (string, error) {
	var seq int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO invoice_counters (shop_id, day, seq) VALUES ($1, $2, 1)
		 ON CONFLICT (shop_id, day) DO UPDATE SET seq = invoice_counters.seq + 1
		 RETURNING seq`,
		shopID, day.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%s-%06d", day.Format("20060102"), seq), nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t *Transaction) error {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO transactions (shop_id, invoice_number, customer_id, payment_type, total, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		t.ShopID, t.InvoiceNumber, t.CustomerID, t.PaymentType, t.Total, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *txRepository) InsertLineItems(ctx context.Context, transactionID int64, items []LineItem) ([]LineItem, error) {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		it.TransactionID = transactionID
		err := r.tx.QueryRow(ctx,
			`INSERT INTO sale_items (transaction_id, product_id, quantity, unit_sold, selling_price, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			it.TransactionID, it.ProductID, it.Quantity, it.UnitSold, it.SellingPrice, it.Subtotal,
		).Scan(&it.ID)
		if err != nil {
			return nil, fmt.Errorf("insert sale item: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *txRepository) UpdateLineItem(ctx context.Context, item LineItem) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE sale_items SET quantity = $2, unit_sold = $3, selling_price = $4, subtotal = $5
		 WHERE id = $1`,
		item.ID, item.Quantity, item.UnitSold, item.SellingPrice, item.Subtotal)
	if err != nil {
		return fmt.Errorf("update sale item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateTotal(ctx context.Context, transactionID int64, total decimal.Decimal) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE transactions SET total = $2 WHERE id = $1`, transactionID, total)
	if err != nil {
		return fmt.Errorf("update transaction total: %w", err)
	}
	return nil
}
