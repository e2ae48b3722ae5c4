package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukapos/dukapos/internal/shared"
	"github.com/dukapos/dukapos/internal/stock"
)

type memoryRepo struct {
	products map[int64]Product
	entries  []StockEntry
	saleRefs map[int64]int64
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product), saleRefs: make(map[int64]int64)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	p.refreshSplit()
	return p, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Product, error) {
	out := []Product{}
	for _, p := range r.products {
		if p.ShopID == filter.ShopID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) Insert(_ context.Context, p Product) (int64, error) {
	for _, existing := range r.products {
		if existing.ShopID == p.ShopID && existing.Code == p.Code {
			return 0, ErrDuplicateCode
		}
	}
	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = p
	return p.ID, nil
}

func (r *memoryRepo) Update(_ context.Context, id int64, p Product) error {
	if _, ok := r.products[id]; !ok {
		return shared.ErrNotFound
	}
	p.ID = id
	r.products[id] = p
	return nil
}

func (r *memoryRepo) SetStatus(_ context.Context, id int64, status Status) error {
	p, ok := r.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = status
	r.products[id] = p
	return nil
}

func (r *memoryRepo) HardDelete(_ context.Context, id int64) error {
	if _, ok := r.products[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *memoryRepo) CountSaleReferences(_ context.Context, id int64) (int64, error) {
	return r.saleRefs[id], nil
}

func (r *memoryRepo) ListLowStock(_ context.Context, shopID int64) ([]Product, error) {
	out := []Product{}
	for _, p := range r.products {
		if p.ShopID == shopID && p.Status == StatusActive && p.Quantity <= p.MinStockLevel {
			out = append(out, p)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) UpdateStock(_ context.Context, id, quantity int64) error {
	p, ok := tx.repo.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Quantity = quantity
	tx.repo.products[id] = p
	return nil
}

func (tx *memoryTx) InsertStockEntry(_ context.Context, entry StockEntry) (int64, error) {
	tx.repo.entries = append(tx.repo.entries, entry)
	return int64(len(tx.repo.entries)), nil
}

type memoryIdem struct {
	keys map[string]bool
}

func (m *memoryIdem) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdem) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func seedProduct(t *testing.T, svc *Service) Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), CreateProductInput{
		ShopID:         1,
		ActorID:        7,
		Code:           "SODA-330",
		Name:           "Soda 330ml",
		PiecesPerBox:   12,
		InitialBoxes:   2,
		AllowRetail:    true,
		MinStockLevel:  12,
		SellPriceBox:   decimal.NewFromInt(12000),
		SellPricePiece: decimal.NewFromInt(1200),
	})
	require.NoError(t, err)
	return p
}

func TestCreateProductInitialStock(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	p := seedProduct(t, svc)
	require.Equal(t, int64(24), p.Quantity)
	require.Equal(t, int64(2), p.BoxesInStock)
	require.Equal(t, int64(0), p.OpenBoxPieces)
	require.Equal(t, StatusActive, p.Status)
}

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.CreateProduct(context.Background(), CreateProductInput{ShopID: 1, Code: "X", Name: "X", PiecesPerBox: 0})
	require.Error(t, err)

	seedProduct(t, svc)
	_, err = svc.CreateProduct(context.Background(), CreateProductInput{
		ShopID: 1, Code: "SODA-330", Name: "Duplicate", PiecesPerBox: 12,
	})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestRestock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	p := seedProduct(t, svc)

	updated, err := svc.Restock(context.Background(), RestockInput{ProductID: p.ID, ShopID: 1, ActorID: 7, Boxes: 3, Note: "delivery"})
	require.NoError(t, err)
	require.Equal(t, int64(60), updated.Quantity)
	require.Equal(t, int64(5), updated.BoxesInStock)
	require.Len(t, repo.entries, 1)
	require.Equal(t, int64(3), repo.entries[0].BoxesAdded)
	require.Equal(t, int64(36), repo.entries[0].PiecesAdded)

	_, err = svc.Restock(context.Background(), RestockInput{ProductID: p.ID, Boxes: 0})
	require.ErrorIs(t, err, stock.ErrInvalidQuantity)
}

func TestRestockDuplicateReference(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, &memoryIdem{})
	p := seedProduct(t, svc)

	_, err := svc.Restock(context.Background(), RestockInput{ProductID: p.ID, Boxes: 1, Reference: "GRN-55"})
	require.NoError(t, err)

	_, err = svc.Restock(context.Background(), RestockInput{ProductID: p.ID, Boxes: 1, Reference: "GRN-55"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestRestockArchivedProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	p := seedProduct(t, svc)
	require.NoError(t, svc.ArchiveProduct(context.Background(), p.ID, 7))

	_, err := svc.Restock(context.Background(), RestockInput{ProductID: p.ID, Boxes: 1})
	require.ErrorIs(t, err, ErrArchived)
}

func TestDeleteProductGuardedBySaleHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	p := seedProduct(t, svc)

	repo.saleRefs[p.ID] = 3
	err := svc.DeleteProduct(context.Background(), p.ID, 7)
	require.ErrorIs(t, err, ErrHasSaleHistory)

	repo.saleRefs[p.ID] = 0
	require.NoError(t, svc.DeleteProduct(context.Background(), p.ID, 7))
	_, err = svc.GetProduct(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListLowStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	p := seedProduct(t, svc) // 24 pieces, threshold 12

	low, err := svc.ListLowStock(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, low)

	stored := repo.products[p.ID]
	stored.Quantity = 10
	repo.products[p.ID] = stored

	low, err = svc.ListLowStock(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, p.ID, low[0].ID)
}
