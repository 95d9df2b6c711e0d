package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskLedgerIntegrity replays every product ledger against stored state.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskLowStockScan reports products at or below their threshold.
	TaskLowStockScan = "stock:low_scan"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// LedgerIntegrityPayload controls the integrity run.
type LedgerIntegrityPayload struct {
	Repair bool `json:"repair"`
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask(repair bool) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{Repair: repair})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// LowStockScanPayload addresses the scan report.
type LowStockScanPayload struct {
	Recipient string `json:"recipient"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(recipient string) (*asynq.Task, error) {
	data, err := json.Marshal(LowStockScanPayload{Recipient: recipient})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}
