package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bym-inventory/bym-inventory/internal/ledger"
)

// LedgerIntegrityJob replays every product ledger and compares the result
// against the stored derived state.
type LedgerIntegrityJob struct {
	Service *ledger.Service
	Logger  *slog.Logger
}

// NewLedgerIntegrityJob wires dependencies for the integrity handler.
func NewLedgerIntegrityJob(service *ledger.Service, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Service: service, Logger: logger}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	started := time.Now()
	logger.Info("starting ledger integrity check", slog.Bool("repair", payload.Repair))

	mismatches, err := j.Service.VerifyIntegrity(ctx, payload.Repair)
	if err != nil {
		logger.Error("ledger integrity check", slog.Any("error", err))
		return err
	}
	for _, m := range mismatches {
		logger.Warn("ledger state mismatch",
			slog.Int64("product_id", m.ProductID),
			slog.String("name", m.Name),
			slog.Int64("stored_qty", m.StoredQty),
			slog.Int64("replayed_qty", m.ReplayedQty),
			slog.String("stored_avg", m.StoredAvg.String()),
			slog.String("replayed_avg", m.ReplayedAvg.String()),
		)
	}
	logger.Info("completed ledger integrity check",
		slog.Int("mismatches", len(mismatches)),
		slog.Duration("duration", time.Since(started)),
	)
	return nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}
