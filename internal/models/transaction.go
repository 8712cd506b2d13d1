package models

import "time"

type TransactionType string

const (
	TxnAppointment TransactionType = "appointment"
	TxnDonation    TransactionType = "donation"
	TxnPayout      TransactionType = "payout"
	TxnRefund      TransactionType = "refund"
)

type TransactionStatus string

const (
	TxnPending  TransactionStatus = "pending"
	TxnPaid     TransactionStatus = "paid"
	TxnFailed   TransactionStatus = "failed"
	TxnRefunded TransactionStatus = "refunded"
)

// Transaction is a money movement record. Immutable once paid, except
// for the single paid -> refunded transition. ClaimedPayoutID marks an
// appointment transaction as claimed by an in-flight or settled payout;
// it is the serialization point against double payout.
type Transaction struct {
	ID               string            `json:"id"`
	Type             TransactionType   `json:"type"`
	Amount           int64             `json:"amount"`
	Status           TransactionStatus `json:"status"`
	PaymentReference string            `json:"payment_reference"`
	PaymentChannel   string            `json:"payment_channel"`
	ClaimedPayoutID  *string           `json:"claimed_payout_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}
