package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dukapos/dukapos/internal/catalog"
	jobmetrics "github.com/dukapos/dukapos/internal/jobs"
)

type stubCatalog struct {
	products []catalog.Product
	calls    int
}

func (s *stubCatalog) ListLowStock(_ context.Context, shopID int64) ([]catalog.Product, error) {
	s.calls++
	var out []catalog.Product
	for _, p := range s.products {
		if p.ShopID == shopID {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubMailer struct {
	sent []SendEmailPayload
}

func (s *stubMailer) EnqueueSendEmail(_ context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	s.sent = append(s.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func TestLowStockScanAlertsOnThresholdBreach(t *testing.T) {
	cat := &stubCatalog{products: []catalog.Product{
		{ID: 1, ShopID: 1, Code: "P-001", Name: "Cooking Oil 1L", Quantity: 4, MinStockLevel: 10},
		{ID: 2, ShopID: 1, Code: "P-002", Name: "Sugar 2kg", Quantity: 0, MinStockLevel: 5},
	}}
	mailer := &stubMailer{}
	job := NewLowStockScanJob(cat, mailer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()), "owner@dukapos.local", "no-reply@dukapos.local")

	task, err := NewLowStockScanTask(1)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, 1, cat.calls)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "owner@dukapos.local", mailer.sent[0].To)
	require.Contains(t, mailer.sent[0].Subject, "2 product(s)")
	require.Contains(t, mailer.sent[0].Body, "P-001")
	require.Contains(t, mailer.sent[0].Body, "Sugar 2kg")
}

func TestLowStockScanCleanShopSendsNothing(t *testing.T) {
	cat := &stubCatalog{}
	mailer := &stubMailer{}
	job := NewLowStockScanJob(cat, mailer, nil, nil, "owner@dukapos.local", "no-reply@dukapos.local")

	task, err := NewLowStockScanTask(2)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, mailer.sent)
}

func TestLowStockScanRejectsMalformedPayload(t *testing.T) {
	job := NewLowStockScanJob(&stubCatalog{}, nil, nil, nil, "", "")
	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeLowStockScan, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
