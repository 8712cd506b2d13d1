package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/metrics"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/repository"
)

// AllocationService owns the allocation state machine after creation:
// consumed on appointment completion, expired when the booking grace
// window lapses, reclaimed on decline or campaign deletion. Ending an
// allocation restores the reserved amount to the campaign and, except
// on consumption, puts the waitlist entry back in the pool at its
// original FIFO position.
type AllocationService struct {
	store repository.Store
	now   func() time.Time
}

func NewAllocationService(store repository.Store) *AllocationService {
	return &AllocationService{store: store, now: time.Now}
}

// Consume ends an allocation whose funded appointment completed. The
// money is spent: no budget restore, no waitlist revert.
func (s *AllocationService) Consume(ctx context.Context, allocationID string) error {
	ok, err := s.store.Allocations().UpdateStatus(ctx, allocationID, models.AllocationActive, models.AllocationConsumed)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("allocation not active")
	}
	metrics.AllocationsEnded.WithLabelValues("consumed").Inc()
	audit(ctx, s.store, "allocation", allocationID, "consumed", nil)
	return nil
}

// ExpireStale sweeps active allocations whose patients never booked
// within the grace window. Each allocation ends in its own
// transaction; one failure does not stop the sweep.
func (s *AllocationService) ExpireStale(ctx context.Context, graceWindow time.Duration) (int, error) {
	cutoff := s.now().Add(-graceWindow)
	stale, err := s.store.Allocations().ListActiveBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, a := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := s.release(ctx, a, models.AllocationExpired, true); err != nil {
			slog.Warn("expire allocation failed", "allocation_id", a.ID, "err", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// Reclaim ends an active allocation on explicit decline or admin
// action. revertWaitlist controls whether the entry re-enters the
// matching pool; callers that retire the entry themselves pass false.
func (s *AllocationService) Reclaim(ctx context.Context, allocationID string, revertWaitlist bool) error {
	a, err := s.store.Allocations().GetByID(ctx, allocationID)
	if err != nil {
		return err
	}
	return s.release(ctx, a, models.AllocationReclaimed, revertWaitlist)
}

func (s *AllocationService) release(ctx context.Context, a models.Allocation, to models.AllocationStatus, revertWaitlist bool) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Allocations().UpdateStatus(ctx, a.ID, models.AllocationActive, to)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("allocation not active")
		}
		if err := tx.Campaigns().ReleaseFunds(ctx, a.CampaignID, a.Amount); err != nil {
			return err
		}
		// A campaign that completed by running dry can fund matches
		// again once money comes back, unless it has expired.
		c, err := tx.Campaigns().GetByID(ctx, a.CampaignID)
		if err == nil && c.Status == models.CampaignCompleted && s.now().Before(c.ExpiresAt) {
			if _, err := tx.Campaigns().UpdateStatus(ctx, a.CampaignID, models.CampaignCompleted, models.CampaignActive); err != nil {
				return err
			}
		}
		if revertWaitlist {
			if _, err := tx.Waitlist().Revert(ctx, a.WaitlistID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.AllocationsEnded.WithLabelValues(string(to)).Inc()
	audit(ctx, s.store, "allocation", a.ID, string(to), map[string]any{
		"campaign_id": a.CampaignID,
		"amount":      a.Amount,
	})
	return nil
}
