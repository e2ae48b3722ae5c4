package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukapos/dukapos/internal/catalog"
	"github.com/dukapos/dukapos/internal/credit"
	"github.com/dukapos/dukapos/internal/customers"
	"github.com/dukapos/dukapos/internal/shared"
	"github.com/dukapos/dukapos/internal/stock"
)

// RepositoryPort abstracts transaction persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Transaction, error)
	List(ctx context.Context, f ListFilter) ([]Transaction, error)
	MarkDeleted(ctx context.Context, id, actorID int64, reason string) error
}

// CatalogPort is the slice of the catalog the orchestrator touches. Stock
// moves through the conditional single-statement mutations so a concurrent
// sale can never push quantity negative.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
	DeductStock(ctx context.Context, id, pieces int64) (catalog.Product, error)
	RestoreStock(ctx context.Context, id, pieces int64) (catalog.Product, error)
}

// CustomerPort resolves customers by id or by name at sale time.
type CustomerPort interface {
	Get(ctx context.Context, id int64) (customers.Customer, error)
	ResolveOrCreate(ctx context.Context, shopID int64, name, phone string) (customers.Customer, error)
}

// CreditPort is the credit ledger surface the orchestrator drives.
type CreditPort interface {
	Create(ctx context.Context, input credit.CreateInput) (credit.Credit, error)
	GetByTransaction(ctx context.Context, transactionID int64) (credit.Credit, error)
	AdjustOwed(ctx context.Context, creditID int64, owed decimal.Decimal) (credit.Credit, error)
	DeactivateForTransaction(ctx context.Context, transactionID, actorID int64) (int64, error)
	UnpaidTotal(ctx context.Context, customerID int64) (decimal.Decimal, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort records business counters.
type MetricsPort interface {
	RecordSale(paymentType string)
	RecordStockRejection()
}

// Service orchestrates sales across stock, customers and the credit ledger.
type Service struct {
	repo      RepositoryPort
	products  CatalogPort
	customers CustomerPort
	credits   CreditPort
	audit     AuditPort
	metrics   MetricsPort
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, products CatalogPort, custs CustomerPort, credits CreditPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		customers: custs,
		credits:   credits,
		audit:     audit,
		metrics:   metrics,
		now:       time.Now,
	}
}

// plannedItem pairs a validated line item with the product it deducts from.
type plannedItem struct {
	item    LineItem
	product catalog.Product
	pieces  int64
}

// CreateSale records a sale. All line items are validated against current
// stock before anything is written; once the transaction row exists, a
// failure in a later step surfaces as PartialFailureError instead of being
// rolled back, because each stock mutation is its own atomic statement.
func (s *Service) CreateSale(ctx context.Context, input CreateSaleInput) (*Transaction, error) {
	if err := validateCreateSale(input); err != nil {
		return nil, err
	}

	customerID, err := s.resolveCustomer(ctx, input)
	if err != nil {
		return nil, err
	}

	if input.PaymentType == PaymentCredit && !input.AcknowledgeOutstanding {
		unpaid, err := s.credits.UnpaidTotal(ctx, *customerID)
		if err != nil {
			return nil, fmt.Errorf("check outstanding credit: %w", err)
		}
		if unpaid.IsPositive() {
			return nil, &OutstandingCreditError{CustomerID: *customerID, Unpaid: unpaid}
		}
	}

	planned, total, err := s.planItems(ctx, input.ShopID, input.Items)
	if err != nil {
		return nil, err
	}

	txn := &Transaction{
		ShopID:      input.ShopID,
		CustomerID:  customerID,
		PaymentType: input.PaymentType,
		Total:       total,
		CreatedBy:   input.ActorID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.NextInvoiceNumber(ctx, input.ShopID, s.now())
		if err != nil {
			return err
		}
		txn.InvoiceNumber = invoice
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		items := make([]LineItem, len(planned))
		for i, p := range planned {
			items[i] = p.item
		}
		txn.Items, err = tx.InsertLineItems(ctx, txn.ID, items)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}

	completed := []string{"transaction_recorded"}
	for _, p := range planned {
		if err := s.deduct(ctx, p); err != nil {
			return txn, &PartialFailureError{Op: "create sale", TransactionID: txn.ID, Completed: completed, Err: err}
		}
		completed = append(completed, fmt.Sprintf("stock_deducted:%d", p.product.ID))
	}

	if input.PaymentType == PaymentCredit {
		_, err := s.credits.Create(ctx, credit.CreateInput{
			ShopID:        input.ShopID,
			ActorID:       input.ActorID,
			CustomerID:    *customerID,
			TransactionID: &txn.ID,
			AmountOwed:    total,
		})
		if err != nil {
			return txn, &PartialFailureError{Op: "create sale", TransactionID: txn.ID, Completed: completed, Err: err}
		}
	}

	s.metrics.RecordSale(string(input.PaymentType))
	s.record(ctx, input.ActorID, input.ShopID, "sales:create", txn.ID, map[string]any{
		"invoice": txn.InvoiceNumber, "total": total.String(), "payment_type": string(input.PaymentType),
	})
	return txn, nil
}

// resolveCustomer returns the customer id for the sale, or nil for an
// anonymous cash sale. Credit sales always require a customer.
func (s *Service) resolveCustomer(ctx context.Context, input CreateSaleInput) (*int64, error) {
	switch {
	case input.CustomerID > 0:
		c, err := s.customers.Get(ctx, input.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("resolve customer: %w", err)
		}
		return &c.ID, nil
	case input.CustomerName != "":
		c, err := s.customers.ResolveOrCreate(ctx, input.ShopID, input.CustomerName, "")
		if err != nil {
			return nil, fmt.Errorf("resolve customer: %w", err)
		}
		return &c.ID, nil
	case input.PaymentType == PaymentCredit:
		return nil, fmt.Errorf("%w: credit sale requires a customer", ErrInvalidInput)
	default:
		return nil, nil
	}
}

// planItems validates every line against current stock and snapshots prices.
// Nothing is persisted here, so any rejection leaves the system untouched.
func (s *Service) planItems(ctx context.Context, shopID int64, items []SaleItemInput) ([]plannedItem, decimal.Decimal, error) {
	planned := make([]plannedItem, 0, len(items))
	total := decimal.Zero
	consumed := make(map[int64]int64)
	for _, in := range items {
		product, err := s.products.Get(ctx, in.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("load product %d: %w", in.ProductID, err)
		}
		if product.ShopID != shopID {
			return nil, decimal.Zero, shared.ErrNotFound
		}
		if product.Status != catalog.StatusActive {
			return nil, decimal.Zero, fmt.Errorf("%w: product %q is archived", ErrInvalidInput, product.Code)
		}
		// Earlier lines on the same product reduce what this line may take,
		// so jointly oversized lines fail here instead of mid-deduction.
		level := product.Level()
		level.Quantity -= consumed[product.ID]
		mut, err := stock.PlanSale(level, in.Quantity, in.Unit)
		if err != nil {
			s.noteRejection(err)
			return nil, decimal.Zero, err
		}
		consumed[product.ID] += -mut.PiecesDelta
		price := product.SellingPrice(in.Unit)
		subtotal := price.Mul(decimal.NewFromInt(in.Quantity))
		planned = append(planned, plannedItem{
			item: LineItem{
				ProductID:    product.ID,
				Quantity:     in.Quantity,
				UnitSold:     in.Unit,
				SellingPrice: price,
				Subtotal:     subtotal,
			},
			product: product,
			pieces:  -mut.PiecesDelta,
		})
		total = total.Add(subtotal)
	}
	return planned, total, nil
}

// deduct applies one planned deduction. When the conditional update matches
// no row the product is re-read to tell a vanished product apart from a
// concurrent sale that consumed the stock first.
func (s *Service) deduct(ctx context.Context, p plannedItem) error {
	_, err := s.products.DeductStock(ctx, p.product.ID, p.pieces)
	if err == nil {
		return nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("deduct stock for product %d: %w", p.product.ID, err)
	}
	current, getErr := s.products.Get(ctx, p.product.ID)
	if getErr != nil {
		return fmt.Errorf("deduct stock for product %d: %w", p.product.ID, err)
	}
	s.metrics.RecordStockRejection()
	return &stock.InsufficientStockError{
		Requested: p.item.Quantity,
		Unit:      p.item.UnitSold,
		Available: stock.AvailableIn(current.Level(), p.item.UnitSold),
	}
}

// EditSale changes line items on an existing sale. Each stock delta is
// validated like a fresh sale before any mutation; a failure after the first
// applied delta is reported as PartialFailureError.
func (s *Service) EditSale(ctx context.Context, input EditSaleInput) (*Transaction, error) {
	if len(input.Changes) == 0 {
		return nil, fmt.Errorf("%w: no changes", ErrInvalidInput)
	}
	txn, err := s.repo.Get(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn.IsDeleted {
		return nil, ErrDeleted
	}

	byID := make(map[int64]*LineItem, len(txn.Items))
	for i := range txn.Items {
		byID[txn.Items[i].ID] = &txn.Items[i]
	}

	type appliedChange struct {
		item *LineItem
		next LineItem
	}
	var applied []appliedChange
	var completed []string

	for _, ch := range input.Changes {
		item, ok := byID[ch.LineItemID]
		if !ok {
			if len(completed) > 0 {
				return txn, &PartialFailureError{Op: "edit sale", TransactionID: txn.ID, Completed: completed, Err: shared.ErrNotFound}
			}
			return nil, shared.ErrNotFound
		}
		next, err := s.applyChange(ctx, *item, ch)
		if err != nil {
			if len(completed) > 0 {
				return txn, &PartialFailureError{Op: "edit sale", TransactionID: txn.ID, Completed: completed, Err: err}
			}
			return nil, err
		}
		applied = append(applied, appliedChange{item: item, next: next})
		completed = append(completed, fmt.Sprintf("stock_adjusted:%d", item.ProductID))
	}

	total := decimal.Zero
	for _, ac := range applied {
		*ac.item = ac.next
	}
	for _, it := range txn.Items {
		total = total.Add(it.Subtotal)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, ac := range applied {
			if err := tx.UpdateLineItem(ctx, ac.next); err != nil {
				return err
			}
		}
		return tx.UpdateTotal(ctx, txn.ID, total)
	})
	if err != nil {
		return txn, &PartialFailureError{Op: "edit sale", TransactionID: txn.ID, Completed: completed, Err: err}
	}
	txn.Total = total

	if txn.PaymentType == PaymentCredit {
		cr, err := s.credits.GetByTransaction(ctx, txn.ID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			// credit already deactivated or settled out of band, nothing to adjust
		case err != nil:
			return txn, &PartialFailureError{Op: "edit sale", TransactionID: txn.ID, Completed: completed, Err: err}
		case !cr.AmountOwed.Equal(total):
			if _, err := s.credits.AdjustOwed(ctx, cr.ID, total); err != nil {
				return txn, &PartialFailureError{Op: "edit sale", TransactionID: txn.ID, Completed: completed, Err: err}
			}
		}
	}

	s.record(ctx, input.ActorID, txn.ShopID, "sales:edit", txn.ID, map[string]any{
		"invoice": txn.InvoiceNumber, "total": total.String(),
	})
	return txn, nil
}

// applyChange validates one line-item change and applies its stock delta.
// The returned item carries the new quantity, unit, price and subtotal.
func (s *Service) applyChange(ctx context.Context, item LineItem, ch LineItemChange) (LineItem, error) {
	newQty := item.Quantity
	if ch.Quantity != nil {
		newQty = *ch.Quantity
	}
	newUnit := item.UnitSold
	if ch.Unit != nil {
		newUnit = *ch.Unit
	}
	if newQty <= 0 {
		return LineItem{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if !newUnit.Valid() {
		return LineItem{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidInput, newUnit)
	}

	product, err := s.products.Get(ctx, item.ProductID)
	if err != nil {
		return LineItem{}, fmt.Errorf("load product %d: %w", item.ProductID, err)
	}
	mut, err := stock.PlanEdit(product.Level(), item.Quantity, item.UnitSold, newQty, newUnit)
	if err != nil {
		s.noteRejection(err)
		return LineItem{}, err
	}
	switch {
	case mut.PiecesDelta < 0:
		if _, err := s.products.DeductStock(ctx, item.ProductID, -mut.PiecesDelta); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				s.metrics.RecordStockRejection()
				return LineItem{}, &stock.InsufficientStockError{
					Requested: newQty,
					Unit:      newUnit,
					Available: stock.AvailableIn(product.Level(), newUnit),
				}
			}
			return LineItem{}, fmt.Errorf("deduct stock for product %d: %w", item.ProductID, err)
		}
	case mut.PiecesDelta > 0:
		if _, err := s.products.RestoreStock(ctx, item.ProductID, mut.PiecesDelta); err != nil {
			return LineItem{}, fmt.Errorf("restore stock for product %d: %w", item.ProductID, err)
		}
	}

	price := item.SellingPrice
	switch {
	case ch.SellingPrice != nil:
		price = *ch.SellingPrice
	case newUnit != item.UnitSold:
		// unit changed: the old snapshot is for the wrong unit
		price = product.SellingPrice(newUnit)
	}

	item.Quantity = newQty
	item.UnitSold = newUnit
	item.SellingPrice = price
	item.Subtotal = price.Mul(decimal.NewFromInt(newQty))
	return item, nil
}

// DeleteSale soft-deletes a sale: stock is restored item by item, the row is
// marked deleted with the reason and actor, and any linked credit record is
// deactivated. Records and paid amounts are preserved for history.
func (s *Service) DeleteSale(ctx context.Context, input DeleteSaleInput) error {
	if input.Reason == "" {
		return fmt.Errorf("%w: delete reason is required", ErrInvalidInput)
	}
	txn, err := s.repo.Get(ctx, input.TransactionID)
	if err != nil {
		return err
	}
	if txn.IsDeleted {
		return ErrAlreadyDeleted
	}

	var completed []string
	for _, it := range txn.Items {
		product, err := s.products.Get(ctx, it.ProductID)
		if err != nil {
			return s.deleteFailure(txn.ID, completed, fmt.Errorf("load product %d: %w", it.ProductID, err))
		}
		mut, err := stock.PlanRestore(product.Level(), it.Quantity, it.UnitSold)
		if err != nil {
			return s.deleteFailure(txn.ID, completed, err)
		}
		if _, err := s.products.RestoreStock(ctx, it.ProductID, mut.PiecesDelta); err != nil {
			return s.deleteFailure(txn.ID, completed, fmt.Errorf("restore stock for product %d: %w", it.ProductID, err))
		}
		completed = append(completed, fmt.Sprintf("stock_restored:%d", it.ProductID))
	}

	if err := s.repo.MarkDeleted(ctx, txn.ID, input.ActorID, input.Reason); err != nil {
		return s.deleteFailure(txn.ID, completed, err)
	}
	completed = append(completed, "transaction_marked_deleted")

	if txn.PaymentType == PaymentCredit {
		if _, err := s.credits.DeactivateForTransaction(ctx, txn.ID, input.ActorID); err != nil {
			return s.deleteFailure(txn.ID, completed, err)
		}
	}

	s.record(ctx, input.ActorID, txn.ShopID, "sales:delete", txn.ID, map[string]any{
		"invoice": txn.InvoiceNumber, "reason": input.Reason,
	})
	return nil
}

func (s *Service) deleteFailure(transactionID int64, completed []string, err error) error {
	if len(completed) == 0 {
		return err
	}
	return &PartialFailureError{Op: "delete sale", TransactionID: transactionID, Completed: completed, Err: err}
}

// GetSale returns one transaction with its line items.
func (s *Service) GetSale(ctx context.Context, id int64) (*Transaction, error) {
	return s.repo.Get(ctx, id)
}

// ListSales lists transactions for a shop.
func (s *Service) ListSales(ctx context.Context, f ListFilter) ([]Transaction, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) noteRejection(err error) {
	var insufficient *stock.InsufficientStockError
	if errors.As(err, &insufficient) {
		s.metrics.RecordStockRejection()
	}
}

func (s *Service) record(ctx context.Context, actorID, shopID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		ShopID:   shopID,
		Action:   action,
		Entity:   "transaction",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}

func validateCreateSale(input CreateSaleInput) error {
	if !input.PaymentType.Valid() {
		return fmt.Errorf("%w: unknown payment type %q", ErrInvalidInput, input.PaymentType)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrInvalidInput)
	}
	for _, it := range input.Items {
		if it.ProductID <= 0 {
			return fmt.Errorf("%w: product id is required", ErrInvalidInput)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
		}
		if !it.Unit.Valid() {
			return fmt.Errorf("%w: unknown unit %q", ErrInvalidInput, it.Unit)
		}
	}
	return nil
}
