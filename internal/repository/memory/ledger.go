package memory

import (
	"context"
	"sort"
	"time"

	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/repository"
)

type appointmentsRepo struct{ s *Store }

func (r *appointmentsRepo) Create(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	ensureID(&a.ID)
	ensureTime(&a.CreatedAt)
	a.UpdatedAt = a.CreatedAt
	err := r.s.run(func(d *data) error {
		d.appointments[a.ID] = a
		return nil
	})
	return a, err
}

func (r *appointmentsRepo) GetByID(ctx context.Context, id string) (out models.Appointment, err error) {
	err = r.s.run(func(d *data) error {
		a, ok := d.appointments[id]
		if !ok {
			return errNotFound
		}
		out = a
		return nil
	})
	return out, err
}

func (r *appointmentsRepo) ListByCenter(ctx context.Context, centerID string, limit, offset int) (out []models.Appointment, err error) {
	err = r.s.run(func(d *data) error {
		for _, a := range d.appointments {
			if a.CenterID == centerID {
				out = append(out, a)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.After(out[j].ScheduledFor) })
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

func (r *appointmentsRepo) UpdateStatus(ctx context.Context, id string, from, to models.AppointmentStatus) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		a, found := d.appointments[id]
		if !found || a.Status != from {
			return nil
		}
		a.Status = to
		a.UpdatedAt = time.Now()
		d.appointments[id] = a
		ok = true
		return nil
	})
	return ok, err
}

type transactionsRepo struct{ s *Store }

func (r *transactionsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	ensureID(&t.ID)
	ensureTime(&t.CreatedAt)
	err := r.s.run(func(d *data) error {
		d.transactions[t.ID] = t
		return nil
	})
	return t, err
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (out models.Transaction, err error) {
	err = r.s.run(func(d *data) error {
		t, ok := d.transactions[id]
		if !ok {
			return errNotFound
		}
		out = t
		return nil
	})
	return out, err
}

func (r *transactionsRepo) GetByReference(ctx context.Context, reference string) (out models.Transaction, err error) {
	err = r.s.run(func(d *data) error {
		for _, t := range d.transactions {
			if t.PaymentReference == reference {
				out = t
				return nil
			}
		}
		return errNotFound
	})
	return out, err
}

func (r *transactionsRepo) UpdateStatus(ctx context.Context, id string, from, to models.TransactionStatus) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		t, found := d.transactions[id]
		if !found || t.Status != from {
			return nil
		}
		t.Status = to
		d.transactions[id] = t
		ok = true
		return nil
	})
	return ok, err
}

func (r *transactionsRepo) ListByType(ctx context.Context, typ models.TransactionType, limit int) (out []models.Transaction, err error) {
	err = r.s.run(func(d *data) error {
		for _, t := range d.transactions {
			if t.Type == typ {
				out = append(out, t)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return nil
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, err
}

func (r *transactionsRepo) ListSettleable(ctx context.Context, centerID string) (out []repository.SettleableTransaction, err error) {
	err = r.s.run(func(d *data) error {
		for _, a := range d.appointments {
			if a.CenterID != centerID || a.Status != models.AppointmentCompleted {
				continue
			}
			t, ok := d.transactions[a.TransactionID]
			if !ok || t.Type != models.TxnAppointment || t.Status != models.TxnPaid || t.ClaimedPayoutID != nil {
				continue
			}
			out = append(out, repository.SettleableTransaction{
				Transaction:   t,
				AppointmentID: a.ID,
				ServiceDate:   a.ScheduledFor,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ServiceDate.Before(out[j].ServiceDate) })
		return nil
	})
	return out, err
}

func (r *transactionsRepo) ClaimForPayout(ctx context.Context, txID, payoutID string) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		t, found := d.transactions[txID]
		if !found || t.ClaimedPayoutID != nil {
			return nil
		}
		pid := payoutID
		t.ClaimedPayoutID = &pid
		d.transactions[txID] = t
		ok = true
		return nil
	})
	return ok, err
}

func (r *transactionsRepo) ReleaseClaims(ctx context.Context, payoutID string) error {
	return r.s.run(func(d *data) error {
		for id, t := range d.transactions {
			if t.ClaimedPayoutID != nil && *t.ClaimedPayoutID == payoutID {
				t.ClaimedPayoutID = nil
				d.transactions[id] = t
			}
		}
		return nil
	})
}

type payoutsRepo struct{ s *Store }

func (r *payoutsRepo) Create(ctx context.Context, p models.Payout) (models.Payout, error) {
	ensureID(&p.ID)
	ensureTime(&p.CreatedAt)
	err := r.s.run(func(d *data) error {
		d.payouts[p.ID] = p
		return nil
	})
	return p, err
}

func (r *payoutsRepo) GetByID(ctx context.Context, id string) (out models.Payout, err error) {
	err = r.s.run(func(d *data) error {
		p, ok := d.payouts[id]
		if !ok {
			return errNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r *payoutsRepo) ListByCenter(ctx context.Context, centerID string, limit, offset int) (out []models.Payout, err error) {
	err = r.s.run(func(d *data) error {
		for _, p := range d.payouts {
			if p.CenterID == centerID {
				out = append(out, p)
			}
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

func (r *payoutsRepo) UpdateStatus(ctx context.Context, id string, from, to models.PayoutStatus) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		p, found := d.payouts[id]
		if !found || p.Status != from {
			return nil
		}
		p.Status = to
		d.payouts[id] = p
		ok = true
		return nil
	})
	return ok, err
}

func (r *payoutsRepo) MarkFailed(ctx context.Context, id string, reason string) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		p, found := d.payouts[id]
		if !found || p.Status != models.PayoutProcessing {
			return nil
		}
		p.Status = models.PayoutFailed
		p.FailureReason = &reason
		d.payouts[id] = p
		ok = true
		return nil
	})
	return ok, err
}

func (r *payoutsRepo) MarkSuccess(ctx context.Context, id string, at time.Time) (ok bool, err error) {
	err = r.s.run(func(d *data) error {
		p, found := d.payouts[id]
		if !found || p.Status != models.PayoutProcessing {
			return nil
		}
		p.Status = models.PayoutSuccess
		at := at
		p.CompletedAt = &at
		d.payouts[id] = p
		ok = true
		return nil
	})
	return ok, err
}

func (r *payoutsRepo) MarkSuperseded(ctx context.Context, id string) error {
	return r.s.run(func(d *data) error {
		p, found := d.payouts[id]
		if !found {
			return errNotFound
		}
		p.Superseded = true
		d.payouts[id] = p
		return nil
	})
}

func (r *payoutsRepo) NextPayoutNumber(ctx context.Context) (n int64, err error) {
	err = r.s.run(func(d *data) error {
		d.payoutSeq++
		n = d.payoutSeq
		return nil
	})
	return n, err
}

func (r *payoutsRepo) CreateItem(ctx context.Context, item models.PayoutItem) (models.PayoutItem, error) {
	ensureID(&item.ID)
	err := r.s.run(func(d *data) error {
		d.payoutItems[item.ID] = item
		return nil
	})
	return item, err
}

func (r *payoutsRepo) ListItems(ctx context.Context, payoutID string) (out []models.PayoutItem, err error) {
	err = r.s.run(func(d *data) error {
		for _, it := range d.payoutItems {
			if it.PayoutID == payoutID {
				out = append(out, it)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ServiceDate.Before(out[j].ServiceDate) })
		return nil
	})
	return out, err
}

func (r *payoutsRepo) FindDoubleClaimed(ctx context.Context) (out []string, err error) {
	err = r.s.run(func(d *data) error {
		live := map[string]int{}
		for _, it := range d.payoutItems {
			p, ok := d.payouts[it.PayoutID]
			if !ok || p.Status == models.PayoutFailed {
				continue
			}
			live[it.TransactionID]++
		}
		for txID, n := range live {
			if n > 1 {
				out = append(out, txID)
			}
		}
		sort.Strings(out)
		return nil
	})
	return out, err
}
