package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/bym-inventory/bym-inventory/internal/product"
)

// LowStockScanJob finds products at or below their threshold and mails a
// summary to the configured recipient.
type LowStockScanJob struct {
	Products *product.Service
	Mailer   *SMTPMailer
	Logger   *slog.Logger
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(products *product.Service, mailer *SMTPMailer, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{Products: products, Mailer: mailer, Logger: logger}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Products == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	low, err := j.Products.LowStock(ctx)
	if err != nil {
		logger.Error("low stock scan", slog.Any("error", err))
		return err
	}
	logger.Info("low stock scan finished", slog.Int("products", len(low)))
	if len(low) == 0 || payload.Recipient == "" || j.Mailer == nil {
		return nil
	}

	var body strings.Builder
	body.WriteString("The following products are at or below their minimum stock:\n\n")
	for _, p := range low {
		fmt.Fprintf(&body, "- %s (%s): %d on hand, minimum %d\n", p.Name, p.SKU, p.CurrentQty, p.MinStock)
	}
	subject := fmt.Sprintf("Low stock alert: %d product(s)", len(low))
	if err := j.Mailer.Send(ctx, payload.Recipient, subject, body.String()); err != nil {
		logger.Error("low stock alert mail", slog.Any("error", err))
		return err
	}
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}
