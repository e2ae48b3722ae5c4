package customers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukapos/dukapos/internal/credit"
)

type stubBalances struct {
	balance credit.Balance
}

func (s *stubBalances) CustomerBalance(ctx context.Context, customerID int64) (credit.Balance, error) {
	if err := ctx.Err(); err != nil {
		return credit.Balance{}, err
	}
	return s.balance, nil
}

func TestBalanceSurvivesCancelledRequest(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	_, err := svc.Create(context.Background(), CreateInput{ShopID: 1, Name: "Amina"})
	require.NoError(t, err)

	balances := &stubBalances{balance: credit.Balance{CustomerID: 1, Remaining: decimal.NewFromInt(500)}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, balances)

	// The leading caller may hang up while others are collapsed onto its
	// flight; the shared lookup must not inherit the cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "1")
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	req := httptest.NewRequest(http.MethodGet, "/customers/1/balance", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.balance(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"remaining":"500"`)
}
