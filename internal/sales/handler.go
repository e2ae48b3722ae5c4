package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dukapos/dukapos/internal/platform/httpx"
	"github.com/dukapos/dukapos/internal/shared"
	"github.com/dukapos/dukapos/internal/stock"
)

// Handler wires HTTP endpoints for sale transactions.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.edit)
	r.Delete("/{id}", h.delete)
}

type saleItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Unit      string `json:"unit" validate:"required"`
}

type createSaleRequest struct {
	ShopID                 int64             `json:"shop_id" validate:"required"`
	ActorID                int64             `json:"actor_id" validate:"required"`
	PaymentType            string            `json:"payment_type" validate:"required"`
	CustomerID             int64             `json:"customer_id"`
	CustomerName           string            `json:"customer_name"`
	AcknowledgeOutstanding bool              `json:"acknowledge_outstanding"`
	Items                  []saleItemRequest `json:"items" validate:"required,min=1,dive"`
}

type editItemRequest struct {
	LineItemID   int64            `json:"line_item_id" validate:"required"`
	Quantity     *int64           `json:"quantity"`
	Unit         *string          `json:"unit"`
	SellingPrice *decimal.Decimal `json:"selling_price"`
}

type editSaleRequest struct {
	ActorID int64             `json:"actor_id" validate:"required"`
	Changes []editItemRequest `json:"changes" validate:"required,min=1,dive"`
}

type deleteSaleRequest struct {
	ActorID int64  `json:"actor_id" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items := make([]SaleItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = SaleItemInput{ProductID: it.ProductID, Quantity: it.Quantity, Unit: stock.Unit(it.Unit)}
	}
	txn, err := h.service.CreateSale(r.Context(), CreateSaleInput{
		ShopID:                 req.ShopID,
		ActorID:                req.ActorID,
		PaymentType:            PaymentType(req.PaymentType),
		CustomerID:             req.CustomerID,
		CustomerName:           req.CustomerName,
		AcknowledgeOutstanding: req.AcknowledgeOutstanding,
		Items:                  items,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	shopID, _ := strconv.ParseInt(r.URL.Query().Get("shop_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	txns, err := h.service.ListSales(r.Context(), ListFilter{
		ShopID:         shopID,
		IncludeDeleted: includeDeleted,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	txn, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req editSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	changes := make([]LineItemChange, len(req.Changes))
	for i, ch := range req.Changes {
		changes[i] = LineItemChange{
			LineItemID:   ch.LineItemID,
			Quantity:     ch.Quantity,
			SellingPrice: ch.SellingPrice,
		}
		if ch.Unit != nil {
			u := stock.Unit(*ch.Unit)
			changes[i].Unit = &u
		}
	}
	txn, err := h.service.EditSale(r.Context(), EditSaleInput{
		TransactionID: id,
		ActorID:       req.ActorID,
		Changes:       changes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req deleteSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.DeleteSale(r.Context(), DeleteSaleInput{
		TransactionID: id,
		ActorID:       req.ActorID,
		Reason:        req.Reason,
	}); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var (
		insufficient *stock.InsufficientStockError
		outstanding  *OutstandingCreditError
		partial      *PartialFailureError
	)
	switch {
	case errors.As(err, &partial):
		h.logger.Error("sale partially failed", slog.Any("error", partial))
		httpx.ProblemWithMeta(w, http.StatusConflict, "Partial Failure", err.Error(), map[string]any{
			"transaction_id":  partial.TransactionID,
			"completed_steps": partial.Completed,
		})
	case errors.As(err, &insufficient):
		httpx.ProblemWithMeta(w, http.StatusConflict, "Insufficient Stock", err.Error(), map[string]any{
			"available": insufficient.Available,
			"unit":      string(insufficient.Unit),
		})
	case errors.As(err, &outstanding):
		httpx.ProblemWithMeta(w, http.StatusConflict, "Outstanding Credit", err.Error(), map[string]any{
			"customer_id": outstanding.CustomerID,
			"unpaid":      outstanding.Unpaid.String(),
		})
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "transaction not found")
	case errors.Is(err, stock.ErrRetailNotAllowed):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Retail Not Allowed", err.Error())
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, stock.ErrInvalidQuantity),
		errors.Is(err, stock.ErrInvalidUnit),
		errors.Is(err, stock.ErrInvalidPiecesPerBox):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDeleted), errors.Is(err, ErrAlreadyDeleted):
		httpx.Problem(w, http.StatusConflict, "Deleted Transaction", err.Error())
	default:
		h.logger.Error("sale request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
