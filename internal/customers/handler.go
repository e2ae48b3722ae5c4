package customers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/dukapos/dukapos/internal/credit"
	"github.com/dukapos/dukapos/internal/platform/httpx"
	"github.com/dukapos/dukapos/internal/shared"
)

// BalancePort reads the credit ledger aggregate for one customer.
type BalancePort interface {
	CustomerBalance(ctx context.Context, customerID int64) (credit.Balance, error)
}

// Handler wires HTTP endpoints for customers.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	balances     BalancePort
	validate     *validator.Validate
	balanceGroup singleflight.Group
}

// NewHandler constructs customers handler.
func NewHandler(logger *slog.Logger, service *Service, balances BalancePort) *Handler {
	return &Handler{logger: logger, service: service, balances: balances, validate: validator.New()}
}

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/balance", h.balance)
}

type createCustomerRequest struct {
	ShopID int64  `json:"shop_id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Phone  string `json:"phone"`
	Notes  string `json:"notes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.service.Create(r.Context(), CreateInput{ShopID: req.ShopID, Name: req.Name, Phone: req.Phone, Notes: req.Notes})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	shopID, _ := strconv.ParseInt(r.URL.Query().Get("shop_id"), 10, 64)
	customers, err := h.service.List(r.Context(), shopID, r.URL.Query().Get("search"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

// balance reports the customer's aggregate owed/paid position. Concurrent
// requests for the same customer collapse into one ledger scan.
func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if h.balances == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "balance lookup not configured")
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	v, err, _ := h.balanceGroup.Do(strconv.FormatInt(id, 10), func() (any, error) {
		// The lookup outlives the leading request so a cancelled caller
		// cannot fail everyone collapsed onto the same flight.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
		defer cancel()
		return h.balances.CustomerBalance(ctx, id)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "customer not found")
	case errors.Is(err, ErrNameRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("customers request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
