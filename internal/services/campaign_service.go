package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/payments"
	"github.com/screenfund/backend/internal/repository"
)

const generalPoolTitle = "General Pool"

// CampaignService owns the campaign lifecycle: created on confirmed
// donor funding, topped up, completed on exhaustion or expiry, and
// deleted only with an explicit disposition for the remaining money.
type CampaignService struct {
	store    repository.Store
	provider payments.Provider
	now      func() time.Time
}

func NewCampaignService(store repository.Store, provider payments.Provider) *CampaignService {
	return &CampaignService{store: store, provider: provider, now: time.Now}
}

// InitializeDonation starts a charge with the provider and hands the
// checkout URL back to the caller. Nothing is written to the ledger
// until the charge is confirmed.
func (s *CampaignService) InitializeDonation(ctx context.Context, amount int64, email string) (payments.ChargeInit, error) {
	if amount <= 0 {
		return payments.ChargeInit{}, apperr.Validation("amount", "must be > 0")
	}
	return s.provider.InitializeCharge(ctx, "don_"+uuid.NewString(), amount, email)
}

// ConfirmDonation verifies the charge by reference and creates the
// funded campaign. Confirming the same reference twice is rejected:
// the donation transaction record carries a uniqueness guarantee on
// the payment reference.
func (s *CampaignService) ConfirmDonation(ctx context.Context, reference string, draft models.Campaign) (models.Campaign, error) {
	if err := draft.Validate(); err != nil {
		return models.Campaign{}, apperr.Validation("campaign", err.Error())
	}
	if _, err := s.store.Transactions().GetByReference(ctx, reference); err == nil {
		return models.Campaign{}, apperr.Conflict("donation " + reference + " already confirmed")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return models.Campaign{}, err
	}
	status, err := s.provider.Verify(ctx, reference)
	if err != nil {
		return models.Campaign{}, err
	}
	if status != payments.StatusSuccess {
		return models.Campaign{}, apperr.Validation("reference", "charge not successful: "+string(status))
	}

	draft.CurrentAmount = draft.TargetAmount
	draft.Status = models.CampaignActive

	var out models.Campaign
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Transactions().Create(ctx, models.Transaction{
			Type:             models.TxnDonation,
			Amount:           draft.TargetAmount,
			Status:           models.TxnPaid,
			PaymentReference: reference,
			PaymentChannel:   "card",
		}); err != nil {
			return err
		}
		c, err := tx.Campaigns().Create(ctx, draft)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return models.Campaign{}, err
	}
	audit(ctx, s.store, "campaign", out.ID, "created", map[string]any{
		"target_amount": out.TargetAmount,
		"reference":     reference,
	})
	return out, nil
}

// TopUp adds confirmed donor money to a live campaign, raising the
// committed total and the spendable balance together.
func (s *CampaignService) TopUp(ctx context.Context, campaignID, reference string, amount int64) error {
	if amount <= 0 {
		return apperr.Validation("amount", "must be > 0")
	}
	c, err := s.store.Campaigns().GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Status == models.CampaignDeleted {
		return apperr.Validation("campaign", "cannot top up a deleted campaign")
	}
	if _, err := s.store.Transactions().GetByReference(ctx, reference); err == nil {
		return apperr.Conflict("donation " + reference + " already confirmed")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	status, err := s.provider.Verify(ctx, reference)
	if err != nil {
		return err
	}
	if status != payments.StatusSuccess {
		return apperr.Validation("reference", "charge not successful: "+string(status))
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Transactions().Create(ctx, models.Transaction{
			Type:             models.TxnDonation,
			Amount:           amount,
			Status:           models.TxnPaid,
			PaymentReference: reference,
			PaymentChannel:   "card",
		}); err != nil {
			return err
		}
		if err := tx.Campaigns().AddFunds(ctx, campaignID, amount); err != nil {
			return err
		}
		// A drained campaign becomes matchable again.
		if c.Status == models.CampaignCompleted && s.now().Before(c.ExpiresAt) {
			if _, err := tx.Campaigns().UpdateStatus(ctx, campaignID, models.CampaignCompleted, models.CampaignActive); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	audit(ctx, s.store, "campaign", campaignID, "topped_up", map[string]any{"amount": amount})
	return nil
}

// Delete retires a campaign. All active allocations are reclaimed and
// their waitlist entries released for re-matching, then the remaining
// balance follows the caller's disposition. The disposition is
// mandatory: recycling, transferring and refunding are materially
// different outcomes and none is a safe default.
func (s *CampaignService) Delete(ctx context.Context, campaignID string, disp models.Disposition) error {
	if err := disp.Validate(); err != nil {
		return apperr.Validation("disposition", err.Error())
	}
	var released int64
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		// The campaign and the transfer target are read inside the
		// transaction so the status the conditional update below keys
		// on cannot go stale between read and write.
		c, err := tx.Campaigns().GetByID(ctx, campaignID)
		if err != nil {
			return err
		}
		if c.Status == models.CampaignDeleted {
			return apperr.Validation("campaign", "already deleted")
		}
		if disp.Kind() == models.DispositionTransfer {
			target, err := tx.Campaigns().GetByID(ctx, disp.TargetCampaignID())
			if err != nil {
				return err
			}
			if target.ID == campaignID || target.Status != models.CampaignActive {
				return apperr.Validation("disposition", "transfer target must be a different active campaign")
			}
		}

		allocs, err := tx.Allocations().ListActiveByCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		for _, a := range allocs {
			ok, err := tx.Allocations().UpdateStatus(ctx, a.ID, models.AllocationActive, models.AllocationReclaimed)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Conflict("allocation " + a.ID + " changed concurrently")
			}
			if err := tx.Campaigns().ReleaseFunds(ctx, campaignID, a.Amount); err != nil {
				return err
			}
			if _, err := tx.Waitlist().Revert(ctx, a.WaitlistID); err != nil {
				return err
			}
		}

		left, err := tx.Campaigns().Drain(ctx, campaignID)
		if err != nil {
			return err
		}
		released = left

		ok, err := tx.Campaigns().UpdateStatus(ctx, campaignID, c.Status, models.CampaignDeleted)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("campaign status changed concurrently")
		}
		if left == 0 {
			return nil
		}

		switch disp.Kind() {
		case models.DispositionRecycle:
			return s.recycleToPool(ctx, tx, left)
		case models.DispositionTransfer:
			return tx.Campaigns().AddFunds(ctx, disp.TargetCampaignID(), left)
		case models.DispositionRefund:
			_, err := tx.Transactions().Create(ctx, models.Transaction{
				Type:             models.TxnRefund,
				Amount:           left,
				Status:           models.TxnPending,
				PaymentReference: "rf_" + uuid.NewString(),
			})
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	audit(ctx, s.store, "campaign", campaignID, "deleted", map[string]any{
		"disposition": string(disp.Kind()),
		"released":    released,
	})
	return nil
}

// recycleToPool moves money into the anonymous general-pool campaign,
// creating it on first use.
func (s *CampaignService) recycleToPool(ctx context.Context, tx repository.Store, amount int64) error {
	pools, err := tx.Campaigns().ListActive(ctx)
	if err != nil {
		return err
	}
	for _, p := range pools {
		if p.OwnerID == nil && p.Title == generalPoolTitle {
			return tx.Campaigns().AddFunds(ctx, p.ID, amount)
		}
	}
	// "*" covers every screening type, present and future; the
	// targeting evaluator treats it as a wildcard.
	_, err = tx.Campaigns().Create(ctx, models.Campaign{
		Title:            generalPoolTitle,
		TargetAmount:     amount,
		CurrentAmount:    amount,
		MaxPerPatient:    amount,
		Gender:           models.GenderAll,
		ScreeningTypeIDs: []string{"*"},
		Status:           models.CampaignActive,
		ExpiresAt:        s.now().AddDate(10, 0, 0),
	})
	return err
}

// ExpireCampaigns completes active campaigns whose expiry has passed.
func (s *CampaignService) ExpireCampaigns(ctx context.Context) (int, error) {
	return s.store.Campaigns().ExpirePast(ctx, s.now())
}

func (s *CampaignService) Get(ctx context.Context, id string) (models.Campaign, error) {
	return s.store.Campaigns().GetByID(ctx, id)
}

func (s *CampaignService) List(ctx context.Context, limit, offset int) ([]models.Campaign, error) {
	return s.store.Campaigns().List(ctx, limit, offset)
}
