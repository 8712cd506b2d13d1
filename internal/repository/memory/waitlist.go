package memory

import (
	"context"
	"sort"
	"time"

	"github.com/screenfund/backend/internal/models"
)

type waitlistRepo struct{ s *Store }

func (r *waitlistRepo) Create(ctx context.Context, e models.WaitlistEntry) (models.WaitlistEntry, error) {
	ensureID(&e.ID)
	ensureTime(&e.JoinedAt)
	err := r.s.run(func(d *data) error {
		d.waitlist[e.ID] = e
		return nil
	})
	return e, err
}

func (r *waitlistRepo) GetByID(ctx context.Context, id string) (out models.WaitlistEntry, err error) {
	err = r.s.run(func(d *data) error {
		e, ok := d.waitlist[id]
		if !ok {
			return errNotFound
		}
		out = e
		return nil
	})
	return out, err
}

func (r *waitlistRepo) ListPending(ctx context.Context) (out []models.WaitlistEntry, err error) {
	err = r.s.run(func(d *data) error {
		for _, e := range d.waitlist {
			if e.Status == models.WaitlistPending {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
		return nil
	})
	return out, err
}

func (r *waitlistRepo) ListByPatient(ctx context.Context, patientID string) (out []models.WaitlistEntry, err error) {
	err = r.s.run(func(d *data) error {
		for _, e := range d.waitlist {
			if e.PatientID == patientID {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
		return nil
	})
	return out, err
}

func (r *waitlistRepo) HasPending(ctx context.Context, patientID, screeningTypeID string) (found bool, err error) {
	err = r.s.run(func(d *data) error {
		for _, e := range d.waitlist {
			if e.PatientID == patientID && e.ScreeningTypeID == screeningTypeID && e.Status == models.WaitlistPending {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *waitlistRepo) MarkMatched(ctx context.Context, id string, at time.Time) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		e, found := d.waitlist[id]
		if !found || e.Status != models.WaitlistPending {
			return nil
		}
		e.Status = models.WaitlistMatched
		at := at
		e.ClaimedAt = &at
		d.waitlist[id] = e
		ok = true
		return nil
	})
	return ok, err
}

func (r *waitlistRepo) Revert(ctx context.Context, id string) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		e, found := d.waitlist[id]
		if !found || e.Status != models.WaitlistMatched {
			return nil
		}
		e.Status = models.WaitlistPending
		e.ClaimedAt = nil
		d.waitlist[id] = e
		ok = true
		return nil
	})
	return ok, err
}

func (r *waitlistRepo) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (n int, err error) {
	err = r.s.run(func(d *data) error {
		for id, e := range d.waitlist {
			if e.Status == models.WaitlistPending && e.JoinedAt.Before(cutoff) {
				e.Status = models.WaitlistExpired
				d.waitlist[id] = e
				n++
			}
		}
		return nil
	})
	return n, err
}
