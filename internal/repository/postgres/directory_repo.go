package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/screenfund/backend/internal/models"
)

// Directory entities: patients, centers, screening types. Thin CRUD,
// no conditional updates.

type patientsRepo struct{ q querier }

const patientCols = `id, user_id, full_name, gender, date_of_birth, state, lga, email, phone, created_at`

func scanPatient(row pgx.Row) (models.Patient, error) {
	var p models.Patient
	err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Gender, &p.DateOfBirth,
		&p.State, &p.LGA, &p.Email, &p.Phone, &p.CreatedAt)
	return p, err
}

func (r *patientsRepo) Create(ctx context.Context, p models.Patient) (models.Patient, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx, `
INSERT INTO patients (id, user_id, full_name, gender, date_of_birth, state, lga, email, phone)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING `+patientCols,
		p.ID, p.UserID, p.FullName, p.Gender, p.DateOfBirth, p.State, p.LGA, p.Email, p.Phone)
	out, err := scanPatient(row)
	return out, mapNotFound(err)
}

func (r *patientsRepo) GetByID(ctx context.Context, id string) (models.Patient, error) {
	p, err := scanPatient(r.q.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id=$1`, id))
	return p, mapNotFound(err)
}

type centersRepo struct{ q querier }

const centerCols = `id, name, state, lga, bank_code, bank_account_number, bank_account_name, created_at`

func scanCenter(row pgx.Row) (models.Center, error) {
	var c models.Center
	err := row.Scan(&c.ID, &c.Name, &c.State, &c.LGA,
		&c.Bank.BankCode, &c.Bank.AccountNumber, &c.Bank.AccountName, &c.CreatedAt)
	return c, err
}

func (r *centersRepo) Create(ctx context.Context, c models.Center) (models.Center, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx, `
INSERT INTO centers (id, name, state, lga, bank_code, bank_account_number, bank_account_name)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+centerCols,
		c.ID, c.Name, c.State, c.LGA, c.Bank.BankCode, c.Bank.AccountNumber, c.Bank.AccountName)
	out, err := scanCenter(row)
	return out, mapNotFound(err)
}

func (r *centersRepo) GetByID(ctx context.Context, id string) (models.Center, error) {
	c, err := scanCenter(r.q.QueryRow(ctx, `SELECT `+centerCols+` FROM centers WHERE id=$1`, id))
	return c, mapNotFound(err)
}

func (r *centersRepo) List(ctx context.Context) ([]models.Center, error) {
	rows, err := r.q.Query(ctx, `SELECT `+centerCols+` FROM centers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Center
	for rows.Next() {
		c, err := scanCenter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type screeningTypesRepo struct{ q querier }

func (r *screeningTypesRepo) Create(ctx context.Context, s models.ScreeningType) (models.ScreeningType, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO screening_types (id, name, cost) VALUES ($1,$2,$3)`, s.ID, s.Name, s.Cost)
	return s, err
}

func (r *screeningTypesRepo) GetByID(ctx context.Context, id string) (models.ScreeningType, error) {
	var s models.ScreeningType
	err := r.q.QueryRow(ctx,
		`SELECT id, name, cost FROM screening_types WHERE id=$1`, id).Scan(&s.ID, &s.Name, &s.Cost)
	return s, mapNotFound(err)
}

func (r *screeningTypesRepo) List(ctx context.Context) ([]models.ScreeningType, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, cost FROM screening_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScreeningType
	for rows.Next() {
		var s models.ScreeningType
		if err := rows.Scan(&s.ID, &s.Name, &s.Cost); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
