package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukapos/dukapos/internal/shared"
	"github.com/dukapos/dukapos/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Insert(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, id int64, p Product) error
	SetStatus(ctx context.Context, id int64, status Status) error
	HardDelete(ctx context.Context, id int64) error
	CountSaleReferences(ctx context.Context, id int64) (int64, error)
	ListLowStock(ctx context.Context, shopID int64) ([]Product, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards restock references against double submission.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates product and restock operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem}
}

// CreateProduct registers a new product with its opening stock in boxes.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	if err := validateCreate(input); err != nil {
		return Product{}, err
	}
	p := Product{
		ShopID:         input.ShopID,
		Code:           strings.TrimSpace(input.Code),
		Name:           strings.TrimSpace(input.Name),
		PiecesPerBox:   input.PiecesPerBox,
		Quantity:       input.InitialBoxes * input.PiecesPerBox,
		AllowRetail:    input.AllowRetail,
		MinStockLevel:  input.MinStockLevel,
		BuyPriceBox:    input.BuyPriceBox,
		BuyPricePiece:  input.BuyPricePiece,
		SellPriceBox:   input.SellPriceBox,
		SellPricePiece: input.SellPricePiece,
		Status:         StatusActive,
	}
	id, err := s.repo.Insert(ctx, p)
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	p.refreshSplit()
	s.record(ctx, input.ActorID, input.ShopID, "catalog:create", p.ID, map[string]any{"code": p.Code, "quantity": p.Quantity})
	return p, nil
}

// GetProduct fetches one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// ListProducts lists products for a shop.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	if filter.ShopID == 0 {
		return nil, fmt.Errorf("%w: shop required", ErrInvalidInput)
	}
	return s.repo.List(ctx, filter)
}

// UpdateProduct applies partial non-stock changes.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.Status == StatusArchived {
		return Product{}, ErrArchived
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return Product{}, fmt.Errorf("%w: product name is required", ErrInvalidInput)
		}
		p.Name = strings.TrimSpace(*input.Name)
	}
	if input.AllowRetail != nil {
		p.AllowRetail = *input.AllowRetail
	}
	if input.MinStockLevel != nil {
		if *input.MinStockLevel < 0 {
			return Product{}, fmt.Errorf("%w: min stock level must be >= 0", ErrInvalidInput)
		}
		p.MinStockLevel = *input.MinStockLevel
	}
	if input.BuyPriceBox != nil {
		p.BuyPriceBox = *input.BuyPriceBox
	}
	if input.BuyPricePiece != nil {
		p.BuyPricePiece = *input.BuyPricePiece
	}
	if input.SellPriceBox != nil {
		p.SellPriceBox = *input.SellPriceBox
	}
	if input.SellPricePiece != nil {
		p.SellPricePiece = *input.SellPricePiece
	}
	if err := s.repo.Update(ctx, id, p); err != nil {
		return Product{}, err
	}
	p.UpdatedAt = time.Now().UTC()
	p.refreshSplit()
	return p, nil
}

// ArchiveProduct soft-deletes a product.
func (s *Service) ArchiveProduct(ctx context.Context, id, actorID int64) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, StatusArchived); err != nil {
		return err
	}
	s.record(ctx, actorID, p.ShopID, "catalog:archive", id, nil)
	return nil
}

// DeleteProduct removes a product permanently. Only allowed when no sale
// line item has ever referenced it; otherwise the caller must archive.
func (s *Service) DeleteProduct(ctx context.Context, id, actorID int64) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	refs, err := s.repo.CountSaleReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrHasSaleHistory
	}
	if err := s.repo.HardDelete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, p.ShopID, "catalog:delete", id, map[string]any{"code": p.Code})
	return nil
}

// Restock adds purchased boxes inside one transaction and writes a stock
// entry. A supplier reference, when present, is guarded against double
// submission.
func (s *Service) Restock(ctx context.Context, input RestockInput) (Product, error) {
	if input.ProductID == 0 {
		return Product{}, fmt.Errorf("%w: product required", ErrInvalidInput)
	}
	if input.Boxes <= 0 {
		return Product{}, stock.ErrInvalidQuantity
	}
	reference := strings.TrimSpace(input.Reference)
	var idemKey string
	if reference != "" && s.idempotency != nil {
		idemKey = fmt.Sprintf("restock:%d:%s", input.ProductID, reference)
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "catalog"); err != nil {
			return Product{}, err
		}
	}
	if reference == "" {
		reference = uuid.NewString()
	}

	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if p.Status == StatusArchived {
			return ErrArchived
		}
		mutation, err := stock.PlanRestock(p.Level(), input.Boxes, stock.UnitBox)
		if err != nil {
			return err
		}
		if err := tx.UpdateStock(ctx, p.ID, mutation.NewQuantity); err != nil {
			return err
		}
		entry := StockEntry{
			ProductID:   p.ID,
			ShopID:      p.ShopID,
			Reference:   reference,
			BoxesAdded:  input.Boxes,
			PiecesAdded: mutation.PiecesDelta,
			Note:        input.Note,
			CreatedBy:   input.ActorID,
		}
		if _, err := tx.InsertStockEntry(ctx, entry); err != nil {
			return err
		}
		p.Quantity = mutation.NewQuantity
		p.refreshSplit()
		updated = p
		return nil
	})
	if err != nil {
		if idemKey != "" {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Product{}, err
	}
	s.record(ctx, input.ActorID, updated.ShopID, "catalog:restock", updated.ID, map[string]any{
		"boxes":     input.Boxes,
		"reference": reference,
		"quantity":  updated.Quantity,
	})
	return updated, nil
}

// ListLowStock returns products at or below their minimum stock level.
func (s *Service) ListLowStock(ctx context.Context, shopID int64) ([]Product, error) {
	if shopID == 0 {
		return nil, fmt.Errorf("%w: shop required", ErrInvalidInput)
	}
	return s.repo.ListLowStock(ctx, shopID)
}

func (s *Service) record(ctx context.Context, actorID, shopID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		ShopID:   shopID,
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
