package services

import (
	"context"
	"testing"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/models"
)

func TestWaitlistJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a patient When they join Then one pending entry exists", func(t *testing.T) {
		store := newTestStore()
		svc := NewWaitlistService(store, NewAllocationService(store))
		screening := seedScreening(t, store, "Mammogram", 2500)
		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)

		entry, err := svc.Join(ctx, p.ID, screening.ID)
		if err != nil {
			t.Fatalf("Join: %v", err)
		}
		if entry.Status != models.WaitlistPending {
			t.Fatalf("status = %s, want pending", entry.Status)
		}

		// A second join for the same screening is a duplicate.
		if _, err := svc.Join(ctx, p.ID, screening.ID); !apperr.IsConflict(err) {
			t.Fatalf("duplicate join err = %v, want conflict", err)
		}

		// A different screening is a separate queue.
		other := seedScreening(t, store, "Cervical Screening", 3000)
		if _, err := svc.Join(ctx, p.ID, other.ID); err != nil {
			t.Fatalf("join other screening: %v", err)
		}
	})

	t.Run("Given an unknown patient When they join Then the join is refused", func(t *testing.T) {
		store := newTestStore()
		svc := NewWaitlistService(store, NewAllocationService(store))
		screening := seedScreening(t, store, "Mammogram", 2500)

		if _, err := svc.Join(ctx, "nobody", screening.ID); err == nil {
			t.Fatal("join with unknown patient succeeded")
		}
	})
}

func TestWaitlistDecline(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a matched entry When the patient declines Then the money returns and the entry requeues in place", func(t *testing.T) {
		store := newTestStore()
		svc := NewWaitlistService(store, NewAllocationService(store))
		_, _, camp, match := matchOne(t, store)
		before, _ := store.Waitlist().GetByID(ctx, match.WaitlistID)

		if err := svc.Decline(ctx, match.WaitlistID); err != nil {
			t.Fatalf("Decline: %v", err)
		}
		a, _ := store.Allocations().GetByID(ctx, match.AllocationID)
		if a.Status != models.AllocationReclaimed {
			t.Fatalf("allocation status = %s, want reclaimed", a.Status)
		}
		c, _ := store.Campaigns().GetByID(ctx, camp.ID)
		if c.CurrentAmount != c.TargetAmount {
			t.Fatalf("balance = %d, want full restore %d", c.CurrentAmount, c.TargetAmount)
		}
		e, _ := store.Waitlist().GetByID(ctx, match.WaitlistID)
		if e.Status != models.WaitlistPending {
			t.Fatalf("entry status = %s, want pending again", e.Status)
		}
		if !e.JoinedAt.Equal(before.JoinedAt) {
			t.Fatalf("joined_at drifted on decline: %v != %v", e.JoinedAt, before.JoinedAt)
		}
	})

	t.Run("Given a pending entry When declined Then the call is rejected", func(t *testing.T) {
		store := newTestStore()
		svc := NewWaitlistService(store, NewAllocationService(store))
		screening := seedScreening(t, store, "Mammogram", 2500)
		p := seedPatient(t, store, "Patient", "Lagos", "Ikeja", models.GenderFemale, 45)
		entry := joinWaitlist(t, store, p.ID, screening.ID, time.Now())

		if err := svc.Decline(ctx, entry.ID); !apperr.IsValidation(err) {
			t.Fatalf("err = %v, want validation", err)
		}
	})
}

func TestWaitlistExpiry(t *testing.T) {
	t.Run("Given old and fresh pending entries When the TTL sweep runs Then only the old ones expire", func(t *testing.T) {
		ctx := context.Background()
		store := newTestStore()
		svc := NewWaitlistService(store, NewAllocationService(store))
		screening := seedScreening(t, store, "Mammogram", 2500)

		oldPatient := seedPatient(t, store, "Old", "Lagos", "Ikeja", models.GenderFemale, 45)
		freshPatient := seedPatient(t, store, "Fresh", "Lagos", "Ikeja", models.GenderFemale, 45)
		oldEntry := joinWaitlist(t, store, oldPatient.ID, screening.ID, time.Now().Add(-100*24*time.Hour))
		joinWaitlist(t, store, freshPatient.ID, screening.ID, time.Now().Add(-time.Hour))

		n, err := svc.ExpireStale(ctx, 90*24*time.Hour)
		if err != nil {
			t.Fatalf("ExpireStale: %v", err)
		}
		if n != 1 {
			t.Fatalf("expired %d entries, want 1", n)
		}
		e, _ := store.Waitlist().GetByID(ctx, oldEntry.ID)
		if e.Status != models.WaitlistExpired {
			t.Fatalf("old entry status = %s, want expired", e.Status)
		}
		pending, _ := store.Waitlist().ListPending(ctx)
		if len(pending) != 1 {
			t.Fatalf("%d entries pending, want 1", len(pending))
		}
	})
}
