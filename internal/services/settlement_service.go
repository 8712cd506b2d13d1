package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/metrics"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/notify"
	"github.com/screenfund/backend/internal/payments"
	"github.com/screenfund/backend/internal/repository"
)

// ErrNothingToSettle: the center has no eligible transactions; a
// repeat batch build right after a successful one is a no-op.
var ErrNothingToSettle = errors.New("nothing to settle")

// FeeFunc computes the platform fee withheld from a gross payout.
type FeeFunc func(gross int64) int64

func FlatBpsFee(bps int64) FeeFunc {
	return func(gross int64) int64 { return gross * bps / 10000 }
}

// SettlementService batches completed, paid, unclaimed appointment
// transactions into per-center payouts and drives submission to the
// payment provider. The eligibility scan is shared between the
// balance query and the batch builder, so the two cannot drift.
type SettlementService struct {
	store    repository.Store
	provider payments.Provider
	notif    Notifier
	fee      FeeFunc
	now      func() time.Time
}

func NewSettlementService(store repository.Store, provider payments.Provider, notif Notifier, fee FeeFunc) *SettlementService {
	return &SettlementService{store: store, provider: provider, notif: notif, fee: fee, now: time.Now}
}

// CenterBalance is the center's eligible balance: completed, paid,
// not-yet-paid-out appointment transactions.
func (s *SettlementService) CenterBalance(ctx context.Context, centerID string) (int64, error) {
	eligible, err := s.store.Transactions().ListSettleable(ctx, centerID)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, e := range eligible {
		sum += e.Transaction.Amount
	}
	return sum, nil
}

// BuildPayoutBatch atomically claims every eligible transaction for a
// new pending payout. The conditional claim makes concurrent builders
// safe: a transaction can belong to at most one live payout.
func (s *SettlementService) BuildPayoutBatch(ctx context.Context, centerID string, ptype models.PayoutType) (models.Payout, error) {
	if err := s.checkClaims(ctx); err != nil {
		return models.Payout{}, err
	}

	eligible, err := s.store.Transactions().ListSettleable(ctx, centerID)
	if err != nil {
		return models.Payout{}, err
	}
	if len(eligible) == 0 {
		return models.Payout{}, ErrNothingToSettle
	}

	var gross int64
	for _, e := range eligible {
		gross += e.Transaction.Amount
	}
	net := gross - s.fee(gross)
	if net <= 0 {
		return models.Payout{}, apperr.Validation("net_amount", "fee exceeds gross payout")
	}

	var out models.Payout
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		num, err := tx.Payouts().NextPayoutNumber(ctx)
		if err != nil {
			return err
		}
		p, err := tx.Payouts().Create(ctx, models.Payout{
			BatchReference: "po_" + uuid.NewString(),
			PayoutNumber:   num,
			CenterID:       centerID,
			Amount:         gross,
			NetAmount:      net,
			Status:         models.PayoutPending,
			Type:           ptype,
		})
		if err != nil {
			return err
		}
		for _, e := range eligible {
			claimed, err := tx.Transactions().ClaimForPayout(ctx, e.Transaction.ID, p.ID)
			if err != nil {
				return err
			}
			if !claimed {
				return apperr.Conflict("transaction " + e.Transaction.ID + " claimed concurrently")
			}
			if _, err := tx.Payouts().CreateItem(ctx, models.PayoutItem{
				PayoutID:      p.ID,
				TransactionID: e.Transaction.ID,
				AppointmentID: e.AppointmentID,
				Amount:        e.Transaction.Amount,
				ServiceDate:   e.ServiceDate,
			}); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return models.Payout{}, err
	}
	audit(ctx, s.store, "payout", out.ID, "created", map[string]any{
		"center_id": centerID,
		"amount":    out.Amount,
		"items":     len(eligible),
	})
	return out, nil
}

// SubmitPayout pushes a pending payout to the provider. An ambiguous
// outcome (timeout, 5xx) is reconciled with one Verify on the batch
// reference before the payout is declared failed; a failed payout
// releases its claims so the items become eligible again.
func (s *SettlementService) SubmitPayout(ctx context.Context, payoutID string) (models.Payout, error) {
	p, err := s.store.Payouts().GetByID(ctx, payoutID)
	if err != nil {
		return models.Payout{}, err
	}
	ok, err := s.store.Payouts().UpdateStatus(ctx, payoutID, models.PayoutPending, models.PayoutProcessing)
	if err != nil {
		return models.Payout{}, err
	}
	if !ok {
		return models.Payout{}, apperr.Conflict("payout not pending")
	}

	center, err := s.store.Centers().GetByID(ctx, p.CenterID)
	if err != nil {
		return models.Payout{}, err
	}

	status, provErr := s.provider.SubmitPayout(ctx, p.BatchReference, center.Bank, p.NetAmount)
	if status == payments.StatusUnknown {
		// The provider guarantees at-most-once per reference, so a
		// verify settles what the ambiguous call actually did.
		if v, verr := s.provider.Verify(ctx, p.BatchReference); verr == nil {
			status = v
		}
	}

	switch status {
	case payments.StatusSuccess:
		return s.finishSuccess(ctx, p)
	case payments.StatusUnknown:
		// The transfer's outcome was never established: money may be
		// in flight under this reference. Declaring failure here would
		// release the claims and let a retry resend the same items
		// under a new idempotency key, so the payout stays processing
		// until a later verify resolves it.
		slog.Warn("payout outcome unresolved", "payout_id", p.ID, "batch_reference", p.BatchReference, "err", provErr)
		audit(ctx, s.store, "payout", p.ID, "unresolved", map[string]any{"batch_reference": p.BatchReference})
		return models.Payout{}, &apperr.ProviderError{
			Op: "submit_payout", Reference: p.BatchReference,
			Err: errors.New("outcome unresolved, reconcile before retrying"),
		}
	}
	reason := "provider reported " + string(status)
	if provErr != nil {
		reason = provErr.Error()
	}
	return s.finishFailed(ctx, p, reason)
}

func (s *SettlementService) finishSuccess(ctx context.Context, p models.Payout) (models.Payout, error) {
	now := s.now()
	if _, err := s.store.Payouts().MarkSuccess(ctx, p.ID, now); err != nil {
		return models.Payout{}, err
	}
	_, err := s.store.Transactions().Create(ctx, models.Transaction{
		Type:             models.TxnPayout,
		Amount:           p.NetAmount,
		Status:           models.TxnPaid,
		PaymentReference: p.BatchReference,
		PaymentChannel:   "transfer",
	})
	if err != nil {
		slog.Warn("payout transaction record failed", "payout_id", p.ID, "err", err)
	}
	metrics.PayoutsTotal.WithLabelValues("success").Inc()
	audit(ctx, s.store, "payout", p.ID, "success", nil)
	dispatch(s.notif, notify.Event{
		Kind:        notify.PayoutSucceeded,
		RecipientID: p.CenterID,
		Data:        map[string]any{"batch_reference": p.BatchReference, "net_amount": p.NetAmount},
	})
	return s.store.Payouts().GetByID(ctx, p.ID)
}

func (s *SettlementService) finishFailed(ctx context.Context, p models.Payout, reason string) (models.Payout, error) {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Payouts().MarkFailed(ctx, p.ID, reason)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("payout not processing")
		}
		// Items stay attached to the failed payout for audit; clearing
		// the claims is what returns them to the eligible pool.
		return tx.Transactions().ReleaseClaims(ctx, p.ID)
	})
	if err != nil {
		return models.Payout{}, err
	}
	metrics.PayoutsTotal.WithLabelValues("failed").Inc()
	audit(ctx, s.store, "payout", p.ID, "failed", map[string]any{"reason": reason})
	dispatch(s.notif, notify.Event{
		Kind:        notify.PayoutFailed,
		RecipientID: p.CenterID,
		Data:        map[string]any{"batch_reference": p.BatchReference, "reason": reason},
	})
	return s.store.Payouts().GetByID(ctx, p.ID)
}

// RetryPayout builds a fresh payout over a failed payout's items. The
// failed payout is kept for audit and marked superseded so it is
// never counted again. A payout stuck processing after an unresolved
// submission is reconciled first: the original batch reference is
// verified, and only a provider-confirmed failure releases the items
// for a new attempt. Changing the idempotency key before the first
// outcome is known would void the at-most-once guarantee.
func (s *SettlementService) RetryPayout(ctx context.Context, payoutID string) (models.Payout, error) {
	old, err := s.store.Payouts().GetByID(ctx, payoutID)
	if err != nil {
		return models.Payout{}, err
	}
	if old.Superseded {
		return models.Payout{}, apperr.Validation("status", "payout already superseded")
	}
	if old.Status == models.PayoutProcessing {
		v, verr := s.provider.Verify(ctx, old.BatchReference)
		if verr != nil {
			return models.Payout{}, &apperr.ProviderError{Op: "verify_payout", Reference: old.BatchReference, Err: verr}
		}
		switch v {
		case payments.StatusSuccess:
			return s.finishSuccess(ctx, old)
		case payments.StatusFailed:
			if old, err = s.finishFailed(ctx, old, "provider reported failed on reconciliation"); err != nil {
				return models.Payout{}, err
			}
		default:
			return models.Payout{}, &apperr.ProviderError{
				Op: "verify_payout", Reference: old.BatchReference,
				Err: errors.New("outcome still unresolved"),
			}
		}
	}
	if old.Status != models.PayoutFailed {
		return models.Payout{}, apperr.Validation("status", "only failed payouts can be retried")
	}
	items, err := s.store.Payouts().ListItems(ctx, old.ID)
	if err != nil {
		return models.Payout{}, err
	}

	var out models.Payout
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		num, err := tx.Payouts().NextPayoutNumber(ctx)
		if err != nil {
			return err
		}
		p, err := tx.Payouts().Create(ctx, models.Payout{
			BatchReference: "po_" + uuid.NewString(),
			PayoutNumber:   num,
			CenterID:       old.CenterID,
			Amount:         old.Amount,
			NetAmount:      old.NetAmount,
			Status:         models.PayoutPending,
			Type:           models.PayoutRetry,
		})
		if err != nil {
			return err
		}
		for _, it := range items {
			claimed, err := tx.Transactions().ClaimForPayout(ctx, it.TransactionID, p.ID)
			if err != nil {
				return err
			}
			if !claimed {
				return apperr.Conflict("transaction " + it.TransactionID + " claimed concurrently")
			}
			if _, err := tx.Payouts().CreateItem(ctx, models.PayoutItem{
				PayoutID:      p.ID,
				TransactionID: it.TransactionID,
				AppointmentID: it.AppointmentID,
				Amount:        it.Amount,
				ServiceDate:   it.ServiceDate,
			}); err != nil {
				return err
			}
		}
		if err := tx.Payouts().MarkSuperseded(ctx, old.ID); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return models.Payout{}, err
	}
	audit(ctx, s.store, "payout", out.ID, "retry", map[string]any{"supersedes": old.ID})
	return out, nil
}

// SweepAll builds and submits an automated payout for every center
// with an eligible balance. An invariant violation halts the sweep.
func (s *SettlementService) SweepAll(ctx context.Context) error {
	centers, err := s.store.Centers().List(ctx)
	if err != nil {
		return err
	}
	for _, c := range centers {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := s.BuildPayoutBatch(ctx, c.ID, models.PayoutAutomated)
		if errors.Is(err, ErrNothingToSettle) {
			continue
		}
		if err != nil {
			if apperr.IsInvariant(err) {
				return err
			}
			slog.Warn("settlement batch failed", "center_id", c.ID, "err", err)
			continue
		}
		if _, err := s.SubmitPayout(ctx, p.ID); err != nil {
			slog.Warn("payout submission failed", "payout_id", p.ID, "err", err)
		}
	}
	return nil
}

// checkClaims scans for a transaction attached to more than one live
// payout. That state indicates a bug, never a transient condition: it
// is surfaced as fatal and no further settlement mutation happens.
func (s *SettlementService) checkClaims(ctx context.Context) error {
	double, err := s.store.Payouts().FindDoubleClaimed(ctx)
	if err != nil {
		return err
	}
	if len(double) > 0 {
		return apperr.Invariant("transactions claimed by multiple live payouts: %v", double)
	}
	return nil
}

func (s *SettlementService) GetPayout(ctx context.Context, id string) (models.Payout, error) {
	return s.store.Payouts().GetByID(ctx, id)
}

func (s *SettlementService) ListPayouts(ctx context.Context, centerID string, limit, offset int) ([]models.Payout, error) {
	return s.store.Payouts().ListByCenter(ctx, centerID, limit, offset)
}
