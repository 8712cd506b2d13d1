package models

import "time"

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutSuccess    PayoutStatus = "success"
	PayoutFailed     PayoutStatus = "failed"
)

type PayoutType string

const (
	PayoutManual    PayoutType = "manual"
	PayoutAutomated PayoutType = "automated"
	PayoutRetry     PayoutType = "retry"
)

// Payout is one batched disbursement attempt to a screening center.
// BatchReference doubles as the idempotency key for the payment
// provider. A failed payout stays on record; a retry supersedes it.
type Payout struct {
	ID             string       `json:"id"`
	BatchReference string       `json:"batch_reference"`
	PayoutNumber   int64        `json:"payout_number"`
	CenterID       string       `json:"center_id"`
	Amount         int64        `json:"amount"`
	NetAmount      int64        `json:"net_amount"`
	Status         PayoutStatus `json:"status"`
	Type           PayoutType   `json:"type"`
	FailureReason  *string      `json:"failure_reason,omitempty"`
	Superseded     bool         `json:"superseded"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type PayoutItem struct {
	ID            string    `json:"id"`
	PayoutID      string    `json:"payout_id"`
	TransactionID string    `json:"transaction_id"`
	AppointmentID string    `json:"appointment_id"`
	Amount        int64     `json:"amount"`
	ServiceDate   time.Time `json:"service_date"`
}
