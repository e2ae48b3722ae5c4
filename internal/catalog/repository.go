package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukapos/dukapos/internal/shared"
)

// Repository persists products and stock entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by restocking.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	UpdateStock(ctx context.Context, id, quantity int64) error
	InsertStockEntry(ctx context.Context, entry StockEntry) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

const productColumns = `id, shop_id, code, name, pieces_per_box, quantity, allow_retail_sales, min_stock_level,
buy_price_per_box, buy_price_per_piece, selling_price_per_box, selling_price_per_piece, status, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.ShopID, &p.Code, &p.Name, &p.PiecesPerBox, &p.Quantity, &p.AllowRetail, &p.MinStockLevel,
		&p.BuyPriceBox, &p.BuyPricePiece, &p.SellPriceBox, &p.SellPricePiece, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	p.refreshSplit()
	return p, nil
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
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

// Get fetches a product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	return scanProduct(row)
}

// List returns products matching the filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE shop_id=$1`
	args := []any{filter.ShopID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status=$` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
	}
	query += ` ORDER BY name ASC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Insert creates a product row.
func (r *Repository) Insert(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products
(shop_id, code, name, pieces_per_box, quantity, allow_retail_sales, min_stock_level,
 buy_price_per_box, buy_price_per_piece, selling_price_per_box, selling_price_per_piece, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW()) RETURNING id`,
		p.ShopID, p.Code, p.Name, p.PiecesPerBox, p.Quantity, p.AllowRetail, p.MinStockLevel,
		p.BuyPriceBox, p.BuyPricePiece, p.SellPriceBox, p.SellPricePiece, string(p.Status)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Update applies non-stock field changes.
func (r *Repository) Update(ctx context.Context, id int64, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name=$2, allow_retail_sales=$3, min_stock_level=$4,
buy_price_per_box=$5, buy_price_per_piece=$6, selling_price_per_box=$7, selling_price_per_piece=$8, updated_at=NOW()
WHERE id=$1`,
		id, p.Name, p.AllowRetail, p.MinStockLevel, p.BuyPriceBox, p.BuyPricePiece, p.SellPriceBox, p.SellPricePiece)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetStatus flips the lifecycle state.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// HardDelete removes a product row permanently.
func (r *Repository) HardDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountSaleReferences counts line items that reference the product,
// including soft-deleted sales.
func (r *Repository) CountSaleReferences(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sale_items WHERE product_id=$1`, id).Scan(&count)
	return count, err
}

// DeductStock atomically decrements stock only when enough remains. It
// returns the product after the decrement, or shared.ErrNotFound when the
// conditional update matched no row.
func (r *Repository) DeductStock(ctx context.Context, id, pieces int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products SET quantity = quantity - $2, updated_at=NOW()
WHERE id=$1 AND quantity >= $2 RETURNING `+productColumns, id, pieces)
	return scanProduct(row)
}

// RestoreStock adds pieces back after a sale deletion or edit decrease.
func (r *Repository) RestoreStock(ctx context.Context, id, pieces int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products SET quantity = quantity + $2, updated_at=NOW()
WHERE id=$1 RETURNING `+productColumns, id, pieces)
	return scanProduct(row)
}

// ListLowStock returns active products at or below their threshold.
func (r *Repository) ListLowStock(ctx context.Context, shopID int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE shop_id=$1 AND status=$2 AND quantity <= min_stock_level ORDER BY quantity ASC`, shopID, string(StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id)
	return scanProduct(row)
}

func (r *txRepository) UpdateStock(ctx context.Context, id, quantity int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET quantity=$2, updated_at=NOW() WHERE id=$1`, id, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertStockEntry(ctx context.Context, entry StockEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_entries (product_id, shop_id, reference, boxes_added, pieces_added, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		entry.ProductID, entry.ShopID, entry.Reference, entry.BoxesAdded, entry.PiecesAdded, entry.Note, entry.CreatedBy).Scan(&id)
	return id, err
}
