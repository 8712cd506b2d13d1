package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/metrics"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/notify"
	"github.com/screenfund/backend/internal/repository"
	"github.com/screenfund/backend/internal/targeting"
)

type MatchResult struct {
	WaitlistID   string `json:"waitlist_id"`
	PatientID    string `json:"patient_id"`
	CampaignID   string `json:"campaign_id"`
	AllocationID string `json:"allocation_id"`
	Amount       int64  `json:"amount"`
}

// MatchingService pairs pending waitlist entries with active campaigns.
// Each entry is processed in its own ledger transaction: a failure on
// one entry never unwinds matches already committed for others, and an
// aborted pass is safe to re-run.
type MatchingService struct {
	store repository.Store
	notif Notifier

	// CandidateOrder ranks eligible campaigns for one entry. The
	// default prefers campaigns closest to expiry, then largest
	// remaining balance, then oldest. Swappable policy, not a
	// compatibility guarantee.
	CandidateOrder func([]models.Campaign)

	// ConflictRetries bounds how often one entry's allocation is
	// retried after a serialization abort before the entry is left
	// for the next pass.
	ConflictRetries int

	now func() time.Time
}

func NewMatchingService(store repository.Store, notif Notifier) *MatchingService {
	return &MatchingService{
		store:           store,
		notif:           notif,
		CandidateOrder:  DefaultCandidateOrder,
		ConflictRetries: 3,
		now:             time.Now,
	}
}

func DefaultCandidateOrder(cs []models.Campaign) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].ExpiresAt.Equal(cs[j].ExpiresAt) {
			return cs[i].ExpiresAt.Before(cs[j].ExpiresAt)
		}
		if cs[i].CurrentAmount != cs[j].CurrentAmount {
			return cs[i].CurrentAmount > cs[j].CurrentAmount
		}
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}

// RunPass scans pending entries oldest-first and allocates campaign
// funds to every entry with an eligible campaign. It returns the
// matches made; per-entry errors are logged and skipped so the pass
// keeps its FIFO promise for the rest of the queue.
func (s *MatchingService) RunPass(ctx context.Context) ([]MatchResult, error) {
	start := s.now()
	defer func() { metrics.MatchPassDuration.Observe(time.Since(start).Seconds()) }()

	entries, err := s.store.Waitlist().ListPending(ctx)
	if err != nil {
		return nil, err
	}

	var results []MatchResult
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.matchEntry(ctx, entry)
		if err != nil {
			slog.Warn("matching entry failed", "waitlist_id", entry.ID, "err", err)
			continue
		}
		if res == nil {
			continue
		}
		results = append(results, *res)
		metrics.MatchesTotal.Inc()
		audit(ctx, s.store, "allocation", res.AllocationID, "created", map[string]any{
			"campaign_id": res.CampaignID,
			"waitlist_id": res.WaitlistID,
			"amount":      res.Amount,
		})
		dispatch(s.notif, notify.Event{
			Kind:        notify.WaitlistMatched,
			RecipientID: entry.PatientID,
			Data:        map[string]any{"allocation_id": res.AllocationID, "amount": res.Amount},
		})
	}
	return results, nil
}

func (s *MatchingService) matchEntry(ctx context.Context, entry models.WaitlistEntry) (*MatchResult, error) {
	patient, err := s.store.Patients().GetByID(ctx, entry.PatientID)
	if err != nil {
		return nil, err
	}
	screening, err := s.store.ScreeningTypes().GetByID(ctx, entry.ScreeningTypeID)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.store.Campaigns().ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	profile := targeting.ProfileFor(patient, now)
	candidates := campaigns[:0:0]
	for _, c := range campaigns {
		if targeting.IsEligible(c, profile, entry.ScreeningTypeID, screening.Cost, now) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, nil // stays pending
	}
	s.CandidateOrder(candidates)

	for _, c := range candidates {
		amount := targeting.AllocationAmount(c, screening.Cost)
		alloc, err := s.allocateWithRetry(ctx, c.ID, entry, amount)
		switch {
		case err == nil:
			return &MatchResult{
				WaitlistID:   entry.ID,
				PatientID:    entry.PatientID,
				CampaignID:   c.ID,
				AllocationID: alloc.ID,
				Amount:       amount,
			}, nil
		case apperr.IsBudget(err):
			continue // next candidate can still absorb the entry
		case apperr.IsConflict(err):
			// Either a concurrent pass took the entry or the retries
			// gave out; a still-pending entry is picked up next pass.
			return nil, nil
		default:
			return nil, err
		}
	}
	return nil, nil
}

// allocateWithRetry absorbs serialization aborts. A conflict means
// either a concurrent pass took the entry or the database aborted the
// transaction to keep serializability; re-reading the entry tells the
// two apart, and only the second kind is worth retrying.
func (s *MatchingService) allocateWithRetry(ctx context.Context, campaignID string, entry models.WaitlistEntry, amount int64) (models.Allocation, error) {
	for attempt := 0; ; attempt++ {
		alloc, err := s.allocate(ctx, campaignID, entry, amount)
		if !apperr.IsConflict(err) {
			return alloc, err
		}
		fresh, gerr := s.store.Waitlist().GetByID(ctx, entry.ID)
		if gerr != nil {
			return models.Allocation{}, gerr
		}
		if fresh.Status != models.WaitlistPending || attempt >= s.ConflictRetries {
			return models.Allocation{}, err
		}
	}
}

// allocate is the atomic unit: campaign balance decrement, allocation
// insert and waitlist flip commit together or not at all.
func (s *MatchingService) allocate(ctx context.Context, campaignID string, entry models.WaitlistEntry, amount int64) (models.Allocation, error) {
	var out models.Allocation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		remaining, ok, err := tx.Campaigns().ReserveFunds(ctx, campaignID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return &apperr.BudgetError{CampaignID: campaignID, Requested: amount}
		}

		alloc, err := tx.Allocations().Create(ctx, models.Allocation{
			CampaignID:      campaignID,
			WaitlistID:      entry.ID,
			PatientID:       entry.PatientID,
			ScreeningTypeID: entry.ScreeningTypeID,
			Amount:          amount,
			Status:          models.AllocationActive,
		})
		if err != nil {
			return err
		}

		matched, err := tx.Waitlist().MarkMatched(ctx, entry.ID, s.now())
		if err != nil {
			return err
		}
		if !matched {
			return apperr.Conflict("waitlist entry no longer pending")
		}

		if remaining == 0 {
			if _, err := tx.Campaigns().UpdateStatus(ctx, campaignID, models.CampaignActive, models.CampaignCompleted); err != nil {
				return err
			}
		}
		out = alloc
		return nil
	})
	return out, err
}
