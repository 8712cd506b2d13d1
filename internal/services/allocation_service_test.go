package services

import (
	"context"
	"testing"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/models"
)

func TestAllocationExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a stale allocation When the grace sweep runs Then the money returns and the entry keeps its queue position", func(t *testing.T) {
		store := newTestStore()
		matcher := NewMatchingService(store, &fakeNotifier{})
		allocs := NewAllocationService(store)

		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title:            "Grace Window",
			TargetAmount:     2500,
			MaxPerPatient:    2500,
			ScreeningTypeIDs: []string{screening.ID},
		})

		early := seedPatient(t, store, "Early Joiner", "Lagos", "Ikeja", models.GenderFemale, 45)
		late := seedPatient(t, store, "Late Joiner", "Lagos", "Ikeja", models.GenderFemale, 45)
		earlyEntry := joinWaitlist(t, store, early.ID, screening.ID, time.Now().Add(-10*24*time.Hour))
		joinWaitlist(t, store, late.ID, screening.ID, time.Now().Add(-time.Hour))

		// Early joiner wins the only slot.
		results, err := matcher.RunPass(ctx)
		if err != nil || len(results) != 1 || results[0].WaitlistID != earlyEntry.ID {
			t.Fatalf("setup match = %v, %v", results, err)
		}

		// Pretend the grace window lapsed by sweeping with a zero
		// window; the allocation was created before now.
		n, err := allocs.ExpireStale(ctx, 0)
		if err != nil {
			t.Fatalf("ExpireStale: %v", err)
		}
		if n != 1 {
			t.Fatalf("expired %d allocations, want 1", n)
		}

		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.CurrentAmount != 2500 {
			t.Fatalf("balance = %d, want full restore 2500", c.CurrentAmount)
		}
		if c.Status != models.CampaignActive {
			t.Fatalf("campaign status = %s, want reactivated", c.Status)
		}

		// The reverted entry must outrank the later joiner again.
		results, err = matcher.RunPass(ctx)
		if err != nil || len(results) != 1 {
			t.Fatalf("re-match = %v, %v", results, err)
		}
		if results[0].WaitlistID != earlyEntry.ID {
			t.Fatalf("re-matched %s, want the original early entry %s", results[0].WaitlistID, earlyEntry.ID)
		}
	})

	t.Run("Given a booked allocation When the grace sweep runs Then it is never expired", func(t *testing.T) {
		store := newTestStore()
		allocs := NewAllocationService(store)
		appts := NewAppointmentService(store, &fakeProvider{}, &fakeNotifier{})
		p, screening, camp, match := matchOne(t, store)
		center := seedCenter(t, store, "Ikeja Diagnostics")

		// Booked inside the window, scheduled for a date past it.
		appt, err := appts.BookFromAllocation(ctx, BookingRequest{
			PatientID:       p.ID,
			CenterID:        center.ID,
			ScreeningTypeID: screening.ID,
			ScheduledFor:    time.Now().Add(14 * 24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("BookFromAllocation: %v", err)
		}

		n, err := allocs.ExpireStale(ctx, 0)
		if err != nil {
			t.Fatalf("ExpireStale: %v", err)
		}
		if n != 0 {
			t.Fatalf("expired %d allocations, want 0: the booking keeps the reservation alive", n)
		}
		a, _ := store.Allocations().GetByID(ctx, match.AllocationID)
		if a.Status != models.AllocationActive {
			t.Fatalf("allocation status = %s, want active", a.Status)
		}
		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.CurrentAmount != camp.TargetAmount-match.Amount {
			t.Fatalf("balance = %d, the sweep must not refund a booked reservation", c.CurrentAmount)
		}

		// Completion still consumes it afterwards, so the money is
		// spent exactly once.
		if _, err := appts.Transition(ctx, appt.ID, models.AppointmentCompleted); err != nil {
			t.Fatalf("complete: %v", err)
		}
		a, _ = store.Allocations().GetByID(ctx, match.AllocationID)
		if a.Status != models.AllocationConsumed {
			t.Fatalf("allocation status = %s, want consumed", a.Status)
		}
	})

	t.Run("Given a fresh allocation When the sweep runs with a wide window Then it is untouched", func(t *testing.T) {
		store := newTestStore()
		matcher := NewMatchingService(store, &fakeNotifier{})
		allocs := NewAllocationService(store)

		screening := seedScreening(t, store, "Mammogram", 2500)
		seedCampaign(t, store, models.Campaign{
			Title:            "Fresh",
			TargetAmount:     2500,
			MaxPerPatient:    2500,
			ScreeningTypeIDs: []string{screening.ID},
		})
		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))
		if _, err := matcher.RunPass(ctx); err != nil {
			t.Fatalf("setup match: %v", err)
		}

		n, err := allocs.ExpireStale(ctx, 7*24*time.Hour)
		if err != nil {
			t.Fatalf("ExpireStale: %v", err)
		}
		if n != 0 {
			t.Fatalf("expired %d allocations, want 0", n)
		}
	})
}

func TestAllocationConsumeAndReclaim(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an active allocation When consumed Then the money stays spent and the entry stays matched", func(t *testing.T) {
		store := newTestStore()
		matcher := NewMatchingService(store, &fakeNotifier{})
		allocs := NewAllocationService(store)

		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title:            "Spend",
			TargetAmount:     5000,
			MaxPerPatient:    2500,
			ScreeningTypeIDs: []string{screening.ID},
		})
		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		entry := joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))
		results, err := matcher.RunPass(ctx)
		if err != nil || len(results) != 1 {
			t.Fatalf("setup match = %v, %v", results, err)
		}

		if err := allocs.Consume(ctx, results[0].AllocationID); err != nil {
			t.Fatalf("Consume: %v", err)
		}

		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.CurrentAmount != 2500 {
			t.Fatalf("balance = %d, consumption must not refund", c.CurrentAmount)
		}
		e, _ := store.Waitlist().GetByID(ctx, entry.ID)
		if e.Status != models.WaitlistMatched {
			t.Fatalf("entry status = %s, want matched", e.Status)
		}

		// A second consume must fail: the allocation already ended.
		if err := allocs.Consume(ctx, results[0].AllocationID); !apperr.IsConflict(err) {
			t.Fatalf("second consume err = %v, want conflict", err)
		}
	})

	t.Run("Given a reclaim without revert When it runs Then funds return but the entry stays closed", func(t *testing.T) {
		store := newTestStore()
		matcher := NewMatchingService(store, &fakeNotifier{})
		allocs := NewAllocationService(store)

		screening := seedScreening(t, store, "Mammogram", 2500)
		camp := seedCampaign(t, store, models.Campaign{
			Title:            "Declined",
			TargetAmount:     2500,
			MaxPerPatient:    2500,
			ScreeningTypeIDs: []string{screening.ID},
		})
		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		entry := joinWaitlist(t, store, p.ID, screening.ID, time.Now().Add(-time.Minute))
		results, err := matcher.RunPass(ctx)
		if err != nil || len(results) != 1 {
			t.Fatalf("setup match = %v, %v", results, err)
		}

		if err := allocs.Reclaim(ctx, results[0].AllocationID, false); err != nil {
			t.Fatalf("Reclaim: %v", err)
		}
		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.CurrentAmount != 2500 {
			t.Fatalf("balance = %d, want 2500", c.CurrentAmount)
		}
		e, _ := store.Waitlist().GetByID(ctx, entry.ID)
		if e.Status != models.WaitlistMatched {
			t.Fatalf("entry status = %s, want matched (closed, not requeued)", e.Status)
		}
		pending, _ := store.Waitlist().ListPending(ctx)
		if len(pending) != 0 {
			t.Fatalf("%d entries pending after reclaim, want 0", len(pending))
		}
	})
}
