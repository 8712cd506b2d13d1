package services

import (
	"context"
	"testing"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/payments"
	"github.com/screenfund/backend/internal/repository"
)

// racingStore flips a campaign's status right before each transaction
// starts, standing in for a scheduler pass landing between a service
// call and its transaction.
type racingStore struct {
	repository.Store
	campaignID string
	from, to   models.CampaignStatus
}

func (r *racingStore) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	_, _ = r.Store.Campaigns().UpdateStatus(ctx, r.campaignID, r.from, r.to)
	return r.Store.WithinTx(ctx, fn)
}

func campaignDraft(screeningTypeIDs ...string) models.Campaign {
	return models.Campaign{
		Title:            "Breast Cancer Drive",
		TargetAmount:     10000,
		MaxPerPatient:    2500,
		Gender:           models.GenderFemale,
		ScreeningTypeIDs: screeningTypeIDs,
		ExpiresAt:        time.Now().Add(90 * 24 * time.Hour),
	}
}

func TestCampaignCreation(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a verified charge When the donation confirms Then the campaign opens fully funded", func(t *testing.T) {
		store := newTestStore()
		svc := NewCampaignService(store, &fakeProvider{})
		screening := seedScreening(t, store, "Mammogram", 2500)

		c, err := svc.ConfirmDonation(ctx, "don_abc", campaignDraft(screening.ID))
		if err != nil {
			t.Fatalf("ConfirmDonation: %v", err)
		}
		if c.Status != models.CampaignActive || c.CurrentAmount != 10000 {
			t.Fatalf("campaign = %+v, want active with full balance", c)
		}
		txn, err := store.Transactions().GetByReference(ctx, "don_abc")
		if err != nil || txn.Type != models.TxnDonation || txn.Status != models.TxnPaid {
			t.Fatalf("donation record = %+v, %v", txn, err)
		}
	})

	t.Run("Given a confirmed reference When it is confirmed again Then the duplicate is rejected", func(t *testing.T) {
		store := newTestStore()
		svc := NewCampaignService(store, &fakeProvider{})
		screening := seedScreening(t, store, "Mammogram", 2500)

		if _, err := svc.ConfirmDonation(ctx, "don_dup", campaignDraft(screening.ID)); err != nil {
			t.Fatalf("first confirm: %v", err)
		}
		if _, err := svc.ConfirmDonation(ctx, "don_dup", campaignDraft(screening.ID)); !apperr.IsConflict(err) {
			t.Fatalf("duplicate confirm err = %v, want conflict", err)
		}
	})

	t.Run("Given an unsuccessful charge When confirming Then nothing is written", func(t *testing.T) {
		store := newTestStore()
		svc := NewCampaignService(store, &fakeProvider{verifyStatus: payments.StatusPending})
		screening := seedScreening(t, store, "Mammogram", 2500)

		if _, err := svc.ConfirmDonation(ctx, "don_pending", campaignDraft(screening.ID)); !apperr.IsValidation(err) {
			t.Fatalf("err = %v, want validation", err)
		}
		if cs, _ := store.Campaigns().List(ctx, 10, 0); len(cs) != 0 {
			t.Fatalf("%d campaigns created from unpaid charge", len(cs))
		}
	})

	t.Run("Given an invalid draft When confirming Then validation fails before the provider is asked", func(t *testing.T) {
		store := newTestStore()
		provider := &fakeProvider{}
		svc := NewCampaignService(store, provider)

		bad := campaignDraft() // no screening types
		if _, err := svc.ConfirmDonation(ctx, "don_bad", bad); !apperr.IsValidation(err) {
			t.Fatalf("err = %v, want validation", err)
		}
		if len(provider.verified) != 0 {
			t.Fatal("provider was asked to verify an invalid draft")
		}
	})
}

func TestCampaignTopUp(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a drained completed campaign When topped up before expiry Then it reactivates with more budget", func(t *testing.T) {
		store := newTestStore()
		svc := NewCampaignService(store, &fakeProvider{})
		matcher := NewMatchingService(store, &fakeNotifier{})

		screening := seedScreening(t, store, "Mammogram", 2000)
		camp := seedCampaign(t, store, models.Campaign{
			Title:            "Drains Fast",
			TargetAmount:     2000,
			MaxPerPatient:    2000,
			ScreeningTypeIDs: []string{screening.ID},
		})
		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))
		if _, err := matcher.RunPass(ctx); err != nil {
			t.Fatalf("drain match: %v", err)
		}
		if c, _ := store.Campaigns().GetByID(ctx, camp.ID); c.Status != models.CampaignCompleted {
			t.Fatalf("setup: campaign status = %s, want completed", c.Status)
		}

		if err := svc.TopUp(ctx, camp.ID, "don_topup", 5000); err != nil {
			t.Fatalf("TopUp: %v", err)
		}
		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.Status != models.CampaignActive {
			t.Fatalf("status = %s, want reactivated", c.Status)
		}
		if c.TargetAmount != 7000 || c.CurrentAmount != 5000 {
			t.Fatalf("target/current = %d/%d, want 7000/5000", c.TargetAmount, c.CurrentAmount)
		}
	})
}

func TestCampaignDeletion(t *testing.T) {
	ctx := context.Background()

	t.Run("Given no disposition When deleting Then the call is refused", func(t *testing.T) {
		store := newTestStore()
		svc := NewCampaignService(store, &fakeProvider{})
		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title: "Keep", TargetAmount: 5000, MaxPerPatient: 2500,
			ScreeningTypeIDs: []string{screening.ID},
		})

		var none models.Disposition
		if err := svc.Delete(ctx, camp.ID, none); !apperr.IsValidation(err) {
			t.Fatalf("err = %v, want validation", err)
		}
		if c, _ := store.Campaigns().GetByID(ctx, camp.ID); c.Status != models.CampaignActive {
			t.Fatalf("campaign status = %s, deletion must not have happened", c.Status)
		}
	})

	t.Run("Given active allocations When the campaign is deleted Then they are reclaimed and the entries requeue", func(t *testing.T) {
		store := newTestStore()
		svc := NewCampaignService(store, &fakeProvider{})
		matcher := NewMatchingService(store, &fakeNotifier{})

		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title: "Doomed", TargetAmount: 10000, MaxPerPatient: 2500,
			ScreeningTypeIDs: []string{screening.ID},
		})
		target := seedCampaign(t, store, models.Campaign{
			Title: "Survivor", TargetAmount: 1000, MaxPerPatient: 1000,
			ScreeningTypeIDs: []string{screening.ID},
		})

		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		entry := joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))
		results, err := matcher.RunPass(ctx)
		if err != nil || len(results) != 1 {
			t.Fatalf("setup match = %v, %v", results, err)
		}

		if err := svc.Delete(ctx, camp.ID, models.TransferTo(target.ID)); err != nil {
			t.Fatalf("Delete: %v", err)
		}

		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.Status != models.CampaignDeleted || c.CurrentAmount != 0 {
			t.Fatalf("deleted campaign = %+v", c)
		}
		a, _ := store.Allocations().GetByID(ctx, results[0].AllocationID)
		if a.Status != models.AllocationReclaimed {
			t.Fatalf("allocation status = %s, want reclaimed", a.Status)
		}
		e, _ := store.Waitlist().GetByID(ctx, entry.ID)
		if e.Status != models.WaitlistPending {
			t.Fatalf("entry status = %s, want pending again", e.Status)
		}
		// Reclaimed 2500 plus the untouched 7500 all move to the target.
		tc, _ := store.Campaigns().GetByID(ctx, target.ID)
		if tc.CurrentAmount != 11000 || tc.TargetAmount != 11000 {
			t.Fatalf("target got %d/%d, want 11000/11000", tc.CurrentAmount, tc.TargetAmount)
		}
	})

	t.Run("Given a recycle disposition When deleted Then the balance lands in the general pool", func(t *testing.T) {
		store := newTestStore()
		svc := NewCampaignService(store, &fakeProvider{})
		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title: "Recycled", TargetAmount: 6000, MaxPerPatient: 2500,
			ScreeningTypeIDs: []string{screening.ID},
		})

		if err := svc.Delete(ctx, camp.ID, models.Recycle()); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		pools, _ := store.Campaigns().ListActive(ctx)
		var pool *models.Campaign
		for i := range pools {
			if pools[i].OwnerID == nil && pools[i].Title == "General Pool" {
				pool = &pools[i]
			}
		}
		if pool == nil {
			t.Fatal("general pool was not created")
		}
		if pool.CurrentAmount != 6000 {
			t.Fatalf("pool balance = %d, want 6000", pool.CurrentAmount)
		}

		// A second recycle tops up the same pool instead of creating
		// another.
		camp2 := seedCampaign(t, store, models.Campaign{
			Title: "Recycled Again", TargetAmount: 1000, MaxPerPatient: 1000,
			ScreeningTypeIDs: []string{screening.ID},
		})
		if err := svc.Delete(ctx, camp2.ID, models.Recycle()); err != nil {
			t.Fatalf("second Delete: %v", err)
		}
		refreshed, _ := store.Campaigns().GetByID(ctx, pool.ID)
		if refreshed.CurrentAmount != 7000 {
			t.Fatalf("pool balance = %d, want 7000", refreshed.CurrentAmount)
		}
	})

	t.Run("Given a refund disposition When deleted Then a pending refund transaction is recorded", func(t *testing.T) {
		store := newTestStore()
		svc := NewCampaignService(store, &fakeProvider{})
		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title: "Refunded", TargetAmount: 6000, MaxPerPatient: 2500,
			ScreeningTypeIDs: []string{screening.ID},
		})

		if err := svc.Delete(ctx, camp.ID, models.Refund()); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		// The refund obligation is on the ledger even though the
		// transfer back to the donor happens out of band.
		txns, err := store.Transactions().ListByType(ctx, models.TxnRefund, 10)
		if err != nil {
			t.Fatalf("ListByType: %v", err)
		}
		found := false
		for _, txn := range txns {
			if txn.Type == models.TxnRefund && txn.Amount == 6000 && txn.Status == models.TxnPending {
				found = true
			}
		}
		if !found {
			t.Fatalf("no pending refund transaction among %d records", len(txns))
		}
	})

	t.Run("Given a status change just before the transaction When deleting Then the delete keys on the fresh status", func(t *testing.T) {
		inner := newTestStore()
		screening := seedScreening(t, inner, "Mammogram", 2500)
		camp := seedCampaign(t, inner, models.Campaign{
			Title: "Expiring Under Us", TargetAmount: 6000, MaxPerPatient: 2500,
			ScreeningTypeIDs: []string{screening.ID},
		})
		store := &racingStore{
			Store: inner, campaignID: camp.ID,
			from: models.CampaignActive, to: models.CampaignCompleted,
		}
		svc := NewCampaignService(store, &fakeProvider{})

		if err := svc.Delete(ctx, camp.ID, models.Recycle()); err != nil {
			t.Fatalf("Delete against a freshly completed campaign: %v", err)
		}
		c, _ := inner.Campaigns().GetByID(ctx, camp.ID)
		if c.Status != models.CampaignDeleted || c.CurrentAmount != 0 {
			t.Fatalf("campaign = %s with %d left, want deleted and drained", c.Status, c.CurrentAmount)
		}
	})

	t.Run("Given a transfer to itself When deleting Then the disposition is rejected", func(t *testing.T) {
		store := newTestStore()
		svc := NewCampaignService(store, &fakeProvider{})
		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title: "Selfish", TargetAmount: 6000, MaxPerPatient: 2500,
			ScreeningTypeIDs: []string{screening.ID},
		})
		if err := svc.Delete(ctx, camp.ID, models.TransferTo(camp.ID)); !apperr.IsValidation(err) {
			t.Fatalf("err = %v, want validation", err)
		}
	})
}
