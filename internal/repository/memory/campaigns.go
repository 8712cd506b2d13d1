package memory

import (
	"context"
	"sort"
	"time"

	"github.com/screenfund/backend/internal/models"
)

type campaignsRepo struct{ s *Store }

func (r *campaignsRepo) Create(ctx context.Context, c models.Campaign) (models.Campaign, error) {
	ensureID(&c.ID)
	ensureTime(&c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	err := r.s.run(func(d *data) error {
		d.campaigns[c.ID] = c
		return nil
	})
	return c, err
}

func (r *campaignsRepo) GetByID(ctx context.Context, id string) (out models.Campaign, err error) {
	err = r.s.run(func(d *data) error {
		c, ok := d.campaigns[id]
		if !ok {
			return errNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r *campaignsRepo) ListActive(ctx context.Context) (out []models.Campaign, err error) {
	err = r.s.run(func(d *data) error {
		for _, c := range d.campaigns {
			if c.Status == models.CampaignActive {
				out = append(out, c)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

func (r *campaignsRepo) List(ctx context.Context, limit, offset int) (out []models.Campaign, err error) {
	err = r.s.run(func(d *data) error {
		for _, c := range d.campaigns {
			out = append(out, c)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return nil
	})
	if offset >= len(out) {
		return nil, err
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, err
}

func (r *campaignsRepo) UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		c, found := d.campaigns[id]
		if !found || c.Status != from {
			return nil
		}
		c.Status = to
		c.UpdatedAt = time.Now()
		d.campaigns[id] = c
		ok = true
		return nil
	})
	return ok, err
}

func (r *campaignsRepo) ReserveFunds(ctx context.Context, id string, amount int64) (remaining int64, ok bool, err error) {
	err = r.s.run(func(d *data) error {
		c, found := d.campaigns[id]
		if !found || c.Status != models.CampaignActive || c.CurrentAmount < amount {
			return nil
		}
		c.CurrentAmount -= amount
		c.UpdatedAt = time.Now()
		d.campaigns[id] = c
		remaining, ok = c.CurrentAmount, true
		return nil
	})
	return remaining, ok, err
}

func (r *campaignsRepo) ReleaseFunds(ctx context.Context, id string, amount int64) error {
	return r.s.run(func(d *data) error {
		c, found := d.campaigns[id]
		if !found {
			return errNotFound
		}
		c.CurrentAmount += amount
		c.UpdatedAt = time.Now()
		d.campaigns[id] = c
		return nil
	})
}

func (r *campaignsRepo) AddFunds(ctx context.Context, id string, amount int64) error {
	return r.s.run(func(d *data) error {
		c, found := d.campaigns[id]
		if !found {
			return errNotFound
		}
		c.TargetAmount += amount
		c.CurrentAmount += amount
		c.UpdatedAt = time.Now()
		d.campaigns[id] = c
		return nil
	})
}

func (r *campaignsRepo) Drain(ctx context.Context, id string) (before int64, err error) {
	err = r.s.run(func(d *data) error {
		c, found := d.campaigns[id]
		if !found {
			return errNotFound
		}
		before = c.CurrentAmount
		c.CurrentAmount = 0
		c.UpdatedAt = time.Now()
		d.campaigns[id] = c
		return nil
	})
	return before, err
}

func (r *campaignsRepo) ExpirePast(ctx context.Context, now time.Time) (n int, err error) {
	err = r.s.run(func(d *data) error {
		for id, c := range d.campaigns {
			if c.Status == models.CampaignActive && !c.ExpiresAt.After(now) {
				c.Status = models.CampaignCompleted
				c.UpdatedAt = time.Now()
				d.campaigns[id] = c
				n++
			}
		}
		return nil
	})
	return n, err
}
