package catalog

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

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/low-stock", h.lowStock)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/restock", h.restock)
}

type createProductRequest struct {
	ShopID         int64           `json:"shop_id" validate:"required"`
	ActorID        int64           `json:"actor_id" validate:"required"`
	Code           string          `json:"code" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	PiecesPerBox   int64           `json:"pieces_per_box" validate:"min=1"`
	InitialBoxes   int64           `json:"initial_boxes" validate:"min=0"`
	AllowRetail    bool            `json:"allow_retail_sales"`
	MinStockLevel  int64           `json:"min_stock_level" validate:"min=0"`
	BuyPriceBox    decimal.Decimal `json:"buy_price_per_box"`
	BuyPricePiece  decimal.Decimal `json:"buy_price_per_piece"`
	SellPriceBox   decimal.Decimal `json:"selling_price_per_box"`
	SellPricePiece decimal.Decimal `json:"selling_price_per_piece"`
}

type updateProductRequest struct {
	Name           *string          `json:"name"`
	AllowRetail    *bool            `json:"allow_retail_sales"`
	MinStockLevel  *int64           `json:"min_stock_level"`
	BuyPriceBox    *decimal.Decimal `json:"buy_price_per_box"`
	BuyPricePiece  *decimal.Decimal `json:"buy_price_per_piece"`
	SellPriceBox   *decimal.Decimal `json:"selling_price_per_box"`
	SellPricePiece *decimal.Decimal `json:"selling_price_per_piece"`
}

type restockRequest struct {
	ShopID    int64  `json:"shop_id"`
	ActorID   int64  `json:"actor_id" validate:"required"`
	Boxes     int64  `json:"boxes_added" validate:"min=1"`
	Reference string `json:"reference"`
	Note      string `json:"note"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.CreateProduct(r.Context(), CreateProductInput{
		ShopID:        req.ShopID,
		ActorID:       req.ActorID,
		Code:          req.Code,
		Name:          req.Name,
		PiecesPerBox:  req.PiecesPerBox,
		InitialBoxes:  req.InitialBoxes,
		AllowRetail:   req.AllowRetail,
		MinStockLevel: req.MinStockLevel,
		BuyPriceBox:   req.BuyPriceBox,
		BuyPricePiece: req.BuyPricePiece,
		SellPriceBox:  req.SellPriceBox,
		SellPricePiece: req.SellPricePiece,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shopID, _ := strconv.ParseInt(q.Get("shop_id"), 10, 64)
	filter := ListFilter{
		ShopID: shopID,
		Search: q.Get("search"),
		Status: Status(q.Get("status")),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}
	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req updateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), id, UpdateProductInput{
		Name:          req.Name,
		AllowRetail:   req.AllowRetail,
		MinStockLevel: req.MinStockLevel,
		BuyPriceBox:   req.BuyPriceBox,
		BuyPricePiece: req.BuyPricePiece,
		SellPriceBox:  req.SellPriceBox,
		SellPricePiece: req.SellPricePiece,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if r.URL.Query().Get("hard") == "true" {
		if err := h.service.DeleteProduct(r.Context(), id, actorID); err != nil {
			h.respondError(w, err)
			return
		}
	} else {
		if err := h.service.ArchiveProduct(r.Context(), id, actorID); err != nil {
			h.respondError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req restockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.Restock(r.Context(), RestockInput{
		ProductID: id,
		ShopID:    req.ShopID,
		ActorID:   req.ActorID,
		Boxes:     req.Boxes,
		Reference: req.Reference,
		Note:      req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	shopID, _ := strconv.ParseInt(r.URL.Query().Get("shop_id"), 10, 64)
	products, err := h.service.ListLowStock(r.Context(), shopID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate Code", err.Error())
	case errors.Is(err, ErrArchived):
		httpx.Problem(w, http.StatusConflict, "Archived", err.Error())
	case errors.Is(err, ErrHasSaleHistory):
		httpx.Problem(w, http.StatusConflict, "Has Sale History", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Restock", err.Error())
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, stock.ErrInvalidQuantity),
		errors.Is(err, stock.ErrInvalidPiecesPerBox),
		errors.Is(err, stock.ErrInvalidUnit):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
