package services

import (
	"context"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/repository"
)

// WaitlistService manages the pending pool the matching engine draws
// from. One pending entry per patient and screening type at a time.
type WaitlistService struct {
	store  repository.Store
	allocs *AllocationService
	now    func() time.Time
}

func NewWaitlistService(store repository.Store, allocs *AllocationService) *WaitlistService {
	return &WaitlistService{store: store, allocs: allocs, now: time.Now}
}

func (s *WaitlistService) Join(ctx context.Context, patientID, screeningTypeID string) (models.WaitlistEntry, error) {
	if _, err := s.store.Patients().GetByID(ctx, patientID); err != nil {
		return models.WaitlistEntry{}, err
	}
	if _, err := s.store.ScreeningTypes().GetByID(ctx, screeningTypeID); err != nil {
		return models.WaitlistEntry{}, err
	}
	dup, err := s.store.Waitlist().HasPending(ctx, patientID, screeningTypeID)
	if err != nil {
		return models.WaitlistEntry{}, err
	}
	if dup {
		return models.WaitlistEntry{}, apperr.Conflict("patient already waiting for this screening")
	}
	entry, err := s.store.Waitlist().Create(ctx, models.WaitlistEntry{
		PatientID:       patientID,
		ScreeningTypeID: screeningTypeID,
		Status:          models.WaitlistPending,
		JoinedAt:        s.now(),
	})
	if err != nil {
		return models.WaitlistEntry{}, err
	}
	audit(ctx, s.store, "waitlist_entry", entry.ID, "joined", map[string]any{
		"patient_id":        patientID,
		"screening_type_id": screeningTypeID,
	})
	return entry, nil
}

// Decline lets a matched patient refuse their allocation. The reserved
// money goes back to the campaign and the entry reverts to pending at
// its original queue position, free to match a different campaign.
func (s *WaitlistService) Decline(ctx context.Context, waitlistID string) error {
	entry, err := s.store.Waitlist().GetByID(ctx, waitlistID)
	if err != nil {
		return err
	}
	if entry.Status != models.WaitlistMatched {
		return apperr.Validation("status", "only matched entries can be declined")
	}
	alloc, err := s.store.Allocations().GetActiveByPatientAndType(ctx, entry.PatientID, entry.ScreeningTypeID)
	if err != nil {
		return apperr.Validation("allocation", "no active allocation to decline")
	}
	if err := s.allocs.Reclaim(ctx, alloc.ID, true); err != nil {
		return err
	}
	audit(ctx, s.store, "waitlist_entry", waitlistID, "declined", nil)
	return nil
}

// ExpireStale drops pending entries older than ttl out of the pool.
func (s *WaitlistService) ExpireStale(ctx context.Context, ttl time.Duration) (int, error) {
	return s.store.Waitlist().ExpirePendingBefore(ctx, s.now().Add(-ttl))
}

func (s *WaitlistService) ListByPatient(ctx context.Context, patientID string) ([]models.WaitlistEntry, error) {
	return s.store.Waitlist().ListByPatient(ctx, patientID)
}
