package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/dukapos/dukapos/internal/catalog"
	jobmetrics "github.com/dukapos/dukapos/internal/jobs"
)

// LowStockCatalog is the slice of the catalog the scan reads.
type LowStockCatalog interface {
	ListLowStock(ctx context.Context, shopID int64) ([]catalog.Product, error)
}

// Mailer enqueues alert emails.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// LowStockScanJob walks a shop's products and alerts on anything at or below
// its minimum stock level.
type LowStockScanJob struct {
	Catalog   LowStockCatalog
	Mailer    Mailer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	AlertTo   string
	AlertFrom string
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(cat LowStockCatalog, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics, alertTo, alertFrom string) *LowStockScanJob {
	return &LowStockScanJob{
		Catalog:   cat,
		Mailer:    mailer,
		Logger:    logger,
		Metrics:   metrics,
		AlertTo:   alertTo,
		AlertFrom: alertFrom,
	}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Catalog == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ShopID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskTypeLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("shop_id", payload.ShopID))

	products, err := j.Catalog.ListLowStock(ctx, payload.ShopID)
	if err != nil {
		resultErr = fmt.Errorf("list low stock: %w", err)
		logger.Error("low stock scan failed", slog.Any("error", resultErr))
		return resultErr
	}
	j.Metrics.SetLowStock(payload.ShopID, len(products))

	if len(products) == 0 {
		logger.Info("low stock scan clean")
		return nil
	}

	for _, p := range products {
		logger.Warn("product below minimum stock",
			slog.String("code", p.Code),
			slog.Int64("quantity", p.Quantity),
			slog.Int64("min_stock_level", p.MinStockLevel),
		)
	}

	if j.Mailer == nil || j.AlertTo == "" {
		return nil
	}
	if _, err := j.Mailer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      j.AlertTo,
		Subject: fmt.Sprintf("Low stock alert: %d product(s)", len(products)),
		Body:    formatLowStockBody(products),
	}); err != nil {
		resultErr = fmt.Errorf("enqueue alert email: %w", err)
		logger.Error("low stock alert email", slog.Any("error", resultErr))
		return resultErr
	}
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func formatLowStockBody(products []catalog.Product) string {
	var b strings.Builder
	b.WriteString("The following products are at or below their minimum stock level:\n\n")
	for _, p := range products {
		fmt.Fprintf(&b, "- %s (%s): %d pieces left, threshold %d\n",
			p.Name, p.Code, p.Quantity, p.MinStockLevel)
	}
	return b.String()
}
