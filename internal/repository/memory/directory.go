package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/screenfund/backend/internal/models"
)

type patientsRepo struct{ s *Store }

func (r *patientsRepo) Create(ctx context.Context, p models.Patient) (models.Patient, error) {
	ensureID(&p.ID)
	ensureTime(&p.CreatedAt)
	err := r.s.run(func(d *data) error {
		d.patients[p.ID] = p
		return nil
	})
	return p, err
}

func (r *patientsRepo) GetByID(ctx context.Context, id string) (out models.Patient, err error) {
	err = r.s.run(func(d *data) error {
		p, ok := d.patients[id]
		if !ok {
			return errNotFound
		}
		out = p
		return nil
	})
	return out, err
}

type centersRepo struct{ s *Store }

func (r *centersRepo) Create(ctx context.Context, c models.Center) (models.Center, error) {
	ensureID(&c.ID)
	ensureTime(&c.CreatedAt)
	err := r.s.run(func(d *data) error {
		d.centers[c.ID] = c
		return nil
	})
	return c, err
}

func (r *centersRepo) GetByID(ctx context.Context, id string) (out models.Center, err error) {
	err = r.s.run(func(d *data) error {
		c, ok := d.centers[id]
		if !ok {
			return errNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r *centersRepo) List(ctx context.Context) (out []models.Center, err error) {
	err = r.s.run(func(d *data) error {
		for _, c := range d.centers {
			out = append(out, c)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

type screeningTypesRepo struct{ s *Store }

func (r *screeningTypesRepo) Create(ctx context.Context, s models.ScreeningType) (models.ScreeningType, error) {
	ensureID(&s.ID)
	err := r.s.run(func(d *data) error {
		d.screeningTypes[s.ID] = s
		return nil
	})
	return s, err
}

func (r *screeningTypesRepo) GetByID(ctx context.Context, id string) (out models.ScreeningType, err error) {
	err = r.s.run(func(d *data) error {
		s, ok := d.screeningTypes[id]
		if !ok {
			return errNotFound
		}
		out = s
		return nil
	})
	return out, err
}

func (r *screeningTypesRepo) List(ctx context.Context) (out []models.ScreeningType, err error) {
	err = r.s.run(func(d *data) error {
		for _, s := range d.screeningTypes {
			out = append(out, s)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

type usersRepo struct{ s *Store }

func (r *usersRepo) Create(ctx context.Context, email, passwordHash, role string, centerID *string) (models.User, error) {
	u := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CenterID:     centerID,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	err := r.s.run(func(d *data) error {
		d.users[u.ID] = u
		return nil
	})
	return u, err
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (out models.User, err error) {
	err = r.s.run(func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return errNotFound
		}
		out = u
		return nil
	})
	return out, err
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (out models.User, err error) {
	err = r.s.run(func(d *data) error {
		for _, u := range d.users {
			if u.Email == email {
				out = u
				return nil
			}
		}
		return errNotFound
	})
	return out, err
}

type auditLogsRepo struct{ s *Store }

func (r *auditLogsRepo) Create(ctx context.Context, l models.AuditLog) error {
	ensureID(&l.ID)
	ensureTime(&l.CreatedAt)
	return r.s.run(func(d *data) error {
		d.auditLogs = append(d.auditLogs, l)
		return nil
	})
}
