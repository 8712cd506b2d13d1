// Package payments wraps the external payment provider. The ledger
// treats it as an opaque charge/payout service with a verify-by-
// reference contract; references double as idempotency keys.
package payments

import (
	"context"

	"github.com/screenfund/backend/internal/models"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
	// StatusUnknown means the provider could not say either way
	// (timeout, 5xx). The caller must verify by reference before
	// treating the attempt as failed or retrying.
	StatusUnknown Status = "unknown"
)

type ChargeInit struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

type Provider interface {
	// InitializeCharge starts a donor/self-pay charge; the reference is
	// the idempotency key and the verify handle.
	InitializeCharge(ctx context.Context, reference string, amount int64, email string) (ChargeInit, error)
	// SubmitPayout disburses a settlement batch to a center account.
	// batchReference is the idempotency key: submitting the same
	// reference twice must not move money twice.
	SubmitPayout(ctx context.Context, batchReference string, bank models.BankDetails, netAmount int64) (Status, error)
	// Verify returns the provider's view of a reference.
	Verify(ctx context.Context, reference string) (Status, error)
}
