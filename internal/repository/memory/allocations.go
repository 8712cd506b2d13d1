package memory

import (
	"context"
	"sort"
	"time"

	"github.com/screenfund/backend/internal/models"
)

type allocationsRepo struct{ s *Store }

func (r *allocationsRepo) Create(ctx context.Context, a models.Allocation) (models.Allocation, error) {
	ensureID(&a.ID)
	ensureTime(&a.CreatedAt)
	a.UpdatedAt = a.CreatedAt
	err := r.s.run(func(d *data) error {
		d.allocations[a.ID] = a
		return nil
	})
	return a, err
}

func (r *allocationsRepo) GetByID(ctx context.Context, id string) (out models.Allocation, err error) {
	err = r.s.run(func(d *data) error {
		a, ok := d.allocations[id]
		if !ok {
			return errNotFound
		}
		out = a
		return nil
	})
	return out, err
}

func (r *allocationsRepo) GetActiveByPatientAndType(ctx context.Context, patientID, screeningTypeID string) (out models.Allocation, err error) {
	err = r.s.run(func(d *data) error {
		for _, a := range d.allocations {
			if a.PatientID == patientID && a.ScreeningTypeID == screeningTypeID && a.Status == models.AllocationActive {
				out = a
				return nil
			}
		}
		return errNotFound
	})
	return out, err
}

func (r *allocationsRepo) ListActiveBefore(ctx context.Context, cutoff time.Time) (out []models.Allocation, err error) {
	err = r.s.run(func(d *data) error {
		// An allocation with a live booking is not stale no matter how
		// old it is; the appointment outcome decides how it ends.
		booked := map[string]bool{}
		for _, ap := range d.appointments {
			if ap.AllocationID != nil && ap.Status != models.AppointmentCancelled {
				booked[*ap.AllocationID] = true
			}
		}
		for _, a := range d.allocations {
			if a.Status == models.AllocationActive && a.CreatedAt.Before(cutoff) && !booked[a.ID] {
				out = append(out, a)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

func (r *allocationsRepo) ListActiveByCampaign(ctx context.Context, campaignID string) (out []models.Allocation, err error) {
	err = r.s.run(func(d *data) error {
		for _, a := range d.allocations {
			if a.CampaignID == campaignID && a.Status == models.AllocationActive {
				out = append(out, a)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

func (r *allocationsRepo) UpdateStatus(ctx context.Context, id string, from, to models.AllocationStatus) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		a, found := d.allocations[id]
		if !found || a.Status != from {
			return nil
		}
		a.Status = to
		a.UpdatedAt = time.Now()
		d.allocations[id] = a
		ok = true
		return nil
	})
	return ok, err
}

func (r *allocationsRepo) SumByCampaign(ctx context.Context, campaignID string, statuses ...models.AllocationStatus) (sum int64, err error) {
	err = r.s.run(func(d *data) error {
		for _, a := range d.allocations {
			if a.CampaignID != campaignID {
				continue
			}
			for _, st := range statuses {
				if a.Status == st {
					sum += a.Amount
					break
				}
			}
		}
		return nil
	})
	return sum, err
}
