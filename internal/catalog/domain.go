// Package catalog owns the product records that carry the canonical
// piece-equivalent stock, plus restocking and product lifecycle.
package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukapos/dukapos/internal/stock"
)

// Status is the product lifecycle state.
type Status string

const (
	// StatusActive means the product is sellable.
	StatusActive Status = "ACTIVE"
	// StatusArchived means the product is soft-deleted but retained because
	// sale history references it.
	StatusArchived Status = "ARCHIVED"
)

// Product is the authoritative stock state for one item. Quantity is the
// single source of truth in piece-equivalents; BoxesInStock and
// OpenBoxPieces are recomputed from it on every read.
type Product struct {
	ID             int64           `json:"id"`
	ShopID         int64           `json:"shop_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	PiecesPerBox   int64           `json:"pieces_per_box"`
	Quantity       int64           `json:"quantity"`
	BoxesInStock   int64           `json:"boxes_in_stock"`
	OpenBoxPieces  int64           `json:"open_box_pieces"`
	AllowRetail    bool            `json:"allow_retail_sales"`
	MinStockLevel  int64           `json:"min_stock_level"`
	BuyPriceBox    decimal.Decimal `json:"buy_price_per_box"`
	BuyPricePiece  decimal.Decimal `json:"buy_price_per_piece"`
	SellPriceBox   decimal.Decimal `json:"selling_price_per_box"`
	SellPricePiece decimal.Decimal `json:"selling_price_per_piece"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Level returns the stock snapshot the allocation planner works on.
func (p Product) Level() stock.Level {
	return stock.Level{Quantity: p.Quantity, PiecesPerBox: p.PiecesPerBox, AllowRetail: p.AllowRetail}
}

// SellingPrice returns the snapshot price for the unit being sold.
func (p Product) SellingPrice(unit stock.Unit) decimal.Decimal {
	if unit == stock.UnitBox {
		return p.SellPriceBox
	}
	return p.SellPricePiece
}

// refreshSplit recomputes the cached display split from the canonical total.
func (p *Product) refreshSplit() {
	boxes, open, err := stock.SplitPieceEquivalent(p.Quantity, p.PiecesPerBox)
	if err != nil {
		return
	}
	p.BoxesInStock = boxes
	p.OpenBoxPieces = open
}

// StockEntry is the audit record written by every restock.
type StockEntry struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	ShopID      int64     `json:"shop_id"`
	Reference   string    `json:"reference"`
	BoxesAdded  int64     `json:"boxes_added"`
	PiecesAdded int64     `json:"pieces_added"`
	Note        string    `json:"note"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateProductInput describes a new product.
type CreateProductInput struct {
	ShopID         int64
	ActorID        int64
	Code           string
	Name           string
	PiecesPerBox   int64
	InitialBoxes   int64
	AllowRetail    bool
	MinStockLevel  int64
	BuyPriceBox    decimal.Decimal
	BuyPricePiece  decimal.Decimal
	SellPriceBox   decimal.Decimal
	SellPricePiece decimal.Decimal
}

// UpdateProductInput carries optional field changes. Stock is never edited
// here; it only moves through sales, edits, deletions and restocks.
type UpdateProductInput struct {
	Name           *string
	AllowRetail    *bool
	MinStockLevel  *int64
	BuyPriceBox    *decimal.Decimal
	BuyPricePiece  *decimal.Decimal
	SellPriceBox   *decimal.Decimal
	SellPricePiece *decimal.Decimal
}

// RestockInput adds purchased boxes to a product.
type RestockInput struct {
	ProductID int64
	ShopID    int64
	ActorID   int64
	Boxes     int64
	Reference string
	Note      string
}

// ListFilter narrows product listings.
type ListFilter struct {
	ShopID  int64
	Search  string
	Status  Status
	Limit   int
	Offset  int
}

// ErrInvalidInput wraps field-level validation failures.
var ErrInvalidInput = errors.New("catalog: invalid input")

// ErrArchived indicates a mutation attempted on an archived product.
var ErrArchived = errors.New("catalog: product is archived")

// ErrHasSaleHistory blocks hard deletion of referenced products.
var ErrHasSaleHistory = errors.New("catalog: product has sale history, archive instead")

// ErrDuplicateCode indicates the product code is already taken in the shop.
var ErrDuplicateCode = errors.New("catalog: product code already exists")
