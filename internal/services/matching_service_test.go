package services

import (
	"context"
	"testing"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/notify"
	"github.com/screenfund/backend/internal/repository"
)

// flakyStore aborts the first N transactions with a conflict, the way
// a serializable backend aborts under contention, then delegates.
type flakyStore struct {
	repository.Store
	aborts int
}

func (f *flakyStore) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if f.aborts > 0 {
		f.aborts--
		return apperr.Conflict("transaction aborted under serializable isolation")
	}
	return f.Store.WithinTx(ctx, fn)
}

func TestMatchingRunPass(t *testing.T) {
	ctx := context.Background()

	t.Run("Given one campaign and three eligible entries When a pass runs Then all three match and the balance reflects every reservation", func(t *testing.T) {
		store := newTestStore()
		notif := &fakeNotifier{}
		svc := NewMatchingService(store, notif)

		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title:            "Early Detection Drive",
			TargetAmount:     10000,
			MaxPerPatient:    2500,
			ScreeningTypeIDs: []string{screening.ID},
		})

		base := time.Now().Add(-time.Hour)
		for i := 0; i < 3; i++ {
			p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
			joinWaitlist(t, store, p.ID, screening.ID, base.Add(time.Duration(i)*time.Minute))
		}

		results, err := svc.RunPass(ctx)
		if err != nil {
			t.Fatalf("RunPass: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("matched %d entries, want 3", len(results))
		}
		c, err := store.Campaigns().GetByID(ctx, camp.ID)
		if err != nil {
			t.Fatalf("get campaign: %v", err)
		}
		if c.CurrentAmount != 2500 {
			t.Fatalf("current amount = %d, want 2500", c.CurrentAmount)
		}
		if c.Status != models.CampaignActive {
			t.Fatalf("campaign status = %s, want active", c.Status)
		}
		if got := len(notif.kinds()); got != 3 {
			t.Fatalf("dispatched %d events, want 3", got)
		}
		for _, k := range notif.kinds() {
			if k != notify.WaitlistMatched {
				t.Fatalf("event kind = %s, want %s", k, notify.WaitlistMatched)
			}
		}
	})

	t.Run("Given budget for only one allocation When two entries wait Then the older entry wins and the younger stays pending", func(t *testing.T) {
		store := newTestStore()
		svc := NewMatchingService(store, &fakeNotifier{})

		screening := seedScreening(t, store, "Cervical Screening", 3000)
		seedCampaign(t, store, models.Campaign{
			Title:            "Single Slot",
			TargetAmount:     3000,
			MaxPerPatient:    3000,
			ScreeningTypeIDs: []string{screening.ID},
		})

		younger := seedPatient(t, store, "Younger Joiner", "Lagos", "Ikeja", models.GenderFemale, 40)
		older := seedPatient(t, store, "Older Joiner", "Lagos", "Ikeja", models.GenderFemale, 40)
		joinWaitlist(t, store, younger.ID, screening.ID, time.Now().Add(-time.Hour))
		first := joinWaitlist(t, store, older.ID, screening.ID, time.Now().Add(-2*time.Hour))

		results, err := svc.RunPass(ctx)
		if err != nil {
			t.Fatalf("RunPass: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("matched %d entries, want 1", len(results))
		}
		if results[0].WaitlistID != first.ID {
			t.Fatalf("matched entry %s, want the earliest joiner %s", results[0].WaitlistID, first.ID)
		}
		entries, _ := store.Waitlist().ListPending(ctx)
		if len(entries) != 1 {
			t.Fatalf("%d entries still pending, want 1", len(entries))
		}
	})

	t.Run("Given a drained campaign When the last allocation empties it Then the campaign completes", func(t *testing.T) {
		store := newTestStore()
		svc := NewMatchingService(store, &fakeNotifier{})

		screening := seedScreening(t, store, "PSA Test", 2000)
		camp := seedCampaign(t, store, models.Campaign{
			Title:            "Dry Run",
			TargetAmount:     2000,
			MaxPerPatient:    2000,
			ScreeningTypeIDs: []string{screening.ID},
		})
		p := seedPatient(t, store, "Only Patient", "Kano", "Nassarawa", models.GenderMale, 60)
		joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))

		if _, err := svc.RunPass(ctx); err != nil {
			t.Fatalf("RunPass: %v", err)
		}
		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.Status != models.CampaignCompleted {
			t.Fatalf("campaign status = %s, want completed", c.Status)
		}
		if c.CurrentAmount != 0 {
			t.Fatalf("current amount = %d, want 0", c.CurrentAmount)
		}
	})

	t.Run("Given a targeted campaign When the patient misses a filter Then the entry stays pending", func(t *testing.T) {
		store := newTestStore()
		svc := NewMatchingService(store, &fakeNotifier{})

		screening := seedScreening(t, store, "Mammogram", 2500)
		ageMin := 40
		seedCampaign(t, store, models.Campaign{
			Title:            "Over Forty Only",
			TargetAmount:     10000,
			MaxPerPatient:    2500,
			Gender:           models.GenderFemale,
			AgeMin:           &ageMin,
			States:           []string{"Lagos"},
			ScreeningTypeIDs: []string{screening.ID},
		})
		tooYoung := seedPatient(t, store, "Too Young", "Lagos", "Ikeja", models.GenderFemale, 30)
		wrongState := seedPatient(t, store, "Wrong State", "Kano", "Nassarawa", models.GenderFemale, 50)
		joinWaitlist(t, store, tooYoung.ID, screening.ID, time.Now().Add(-time.Hour))
		joinWaitlist(t, store, wrongState.ID, screening.ID, time.Now().Add(-time.Hour))

		results, err := svc.RunPass(ctx)
		if err != nil {
			t.Fatalf("RunPass: %v", err)
		}
		if len(results) != 0 {
			t.Fatalf("matched %d entries, want 0", len(results))
		}
		entries, _ := store.Waitlist().ListPending(ctx)
		if len(entries) != 2 {
			t.Fatalf("%d entries pending, want 2", len(entries))
		}
	})

	t.Run("Given an already matched queue When a second pass runs Then nothing changes", func(t *testing.T) {
		store := newTestStore()
		svc := NewMatchingService(store, &fakeNotifier{})

		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title:            "Repeatable",
			TargetAmount:     10000,
			MaxPerPatient:    2500,
			ScreeningTypeIDs: []string{screening.ID},
		})
		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))

		if _, err := svc.RunPass(ctx); err != nil {
			t.Fatalf("first pass: %v", err)
		}
		again, err := svc.RunPass(ctx)
		if err != nil {
			t.Fatalf("second pass: %v", err)
		}
		if len(again) != 0 {
			t.Fatalf("second pass matched %d entries, want 0", len(again))
		}
		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.CurrentAmount != 7500 {
			t.Fatalf("current amount = %d, want 7500", c.CurrentAmount)
		}
	})

	t.Run("Given transient transaction aborts When a pass runs Then the entry still matches within the retry budget", func(t *testing.T) {
		store := &flakyStore{Store: newTestStore(), aborts: 2}
		svc := NewMatchingService(store, &fakeNotifier{})

		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title:            "Contended",
			TargetAmount:     10000,
			MaxPerPatient:    2500,
			ScreeningTypeIDs: []string{screening.ID},
		})
		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))

		results, err := svc.RunPass(ctx)
		if err != nil {
			t.Fatalf("RunPass: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("matched %d entries, want 1 despite aborts", len(results))
		}
		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.CurrentAmount != 7500 {
			t.Fatalf("current amount = %d, want 7500", c.CurrentAmount)
		}
	})

	t.Run("Given aborts beyond the retry budget When a pass runs Then the entry is left pending for the next pass", func(t *testing.T) {
		store := &flakyStore{Store: newTestStore(), aborts: 10}
		svc := NewMatchingService(store, &fakeNotifier{})
		svc.ConflictRetries = 2

		screening := seedScreening(t, store, "Mammogram", 2500)
		seedCampaign(t, store, models.Campaign{
			Title:            "Hot Row",
			TargetAmount:     10000,
			MaxPerPatient:    2500,
			ScreeningTypeIDs: []string{screening.ID},
		})
		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))

		results, err := svc.RunPass(ctx)
		if err != nil {
			t.Fatalf("RunPass: %v", err)
		}
		if len(results) != 0 {
			t.Fatalf("matched %d entries, want 0 with the budget exhausted", len(results))
		}
		entries, _ := store.Waitlist().ListPending(ctx)
		if len(entries) != 1 {
			t.Fatalf("%d entries pending, want the entry kept for the next pass", len(entries))
		}
	})

	t.Run("Given any sequence of matches When the pass ends Then reserved plus remaining equals the committed total", func(t *testing.T) {
		store := newTestStore()
		svc := NewMatchingService(store, &fakeNotifier{})

		screening := seedScreening(t, store, "Mammogram", 3000)
		camp := seedCampaign(t, store, models.Campaign{
			Title:            "Conservation",
			TargetAmount:     10000,
			MaxPerPatient:    3000,
			ScreeningTypeIDs: []string{screening.ID},
		})
		for i := 0; i < 5; i++ {
			p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
			joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Duration(10-i)*time.Minute))
		}

		if _, err := svc.RunPass(ctx); err != nil {
			t.Fatalf("RunPass: %v", err)
		}
		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		reserved, err := store.Allocations().SumByCampaign(ctx, camp.ID, models.AllocationActive)
		if err != nil {
			t.Fatalf("SumByCampaign: %v", err)
		}
		if c.CurrentAmount+reserved != c.TargetAmount {
			t.Fatalf("balance %d + reserved %d != target %d", c.CurrentAmount, reserved, c.TargetAmount)
		}
	})
}

func TestMatchingCandidateOrder(t *testing.T) {
	t.Run("Given campaigns with different expiries When entries match Then the soonest-expiring campaign is drawn from first", func(t *testing.T) {
		ctx := context.Background()
		store := newTestStore()
		svc := NewMatchingService(store, &fakeNotifier{})

		screening := seedScreening(t, store, "Mammogram", 2000)
		late := seedCampaign(t, store, models.Campaign{
			Title:            "Expires Later",
			TargetAmount:     2000,
			MaxPerPatient:    2000,
			ExpiresAt:        time.Now().Add(60 * 24 * time.Hour),
			ScreeningTypeIDs: []string{screening.ID},
		})
		soon := seedCampaign(t, store, models.Campaign{
			Title:            "Expires Soon",
			TargetAmount:     2000,
			MaxPerPatient:    2000,
			ExpiresAt:        time.Now().Add(24 * time.Hour),
			ScreeningTypeIDs: []string{screening.ID},
		})

		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))

		results, err := svc.RunPass(ctx)
		if err != nil {
			t.Fatalf("RunPass: %v", err)
		}
		if len(results) != 1 || results[0].CampaignID != soon.ID {
			t.Fatalf("matched against %v, want the soonest-expiring campaign %s", results, soon.ID)
		}
		c, _ := store.Campaigns().GetByID(ctx, late.ID)
		if c.CurrentAmount != 2000 {
			t.Fatalf("later campaign was touched: balance %d", c.CurrentAmount)
		}
	})
}
