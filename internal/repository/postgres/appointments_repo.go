package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/screenfund/backend/internal/models"
)

type appointmentsRepo struct{ q querier }

const appointmentCols = `id, patient_id, center_id, screening_type_id, scheduled_for,
is_donation, allocation_id, transaction_id, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.CenterID, &a.ScreeningTypeID, &a.ScheduledFor,
		&a.IsDonation, &a.AllocationID, &a.TransactionID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *appointmentsRepo) Create(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx, `
INSERT INTO appointments (id, patient_id, center_id, screening_type_id, scheduled_for,
  is_donation, allocation_id, transaction_id, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING `+appointmentCols,
		a.ID, a.PatientID, a.CenterID, a.ScreeningTypeID, a.ScheduledFor,
		a.IsDonation, a.AllocationID, a.TransactionID, a.Status)
	out, err := scanAppointment(row)
	return out, mapNotFound(err)
}

func (r *appointmentsRepo) GetByID(ctx context.Context, id string) (models.Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id=$1`, id))
	return a, mapNotFound(err)
}

func (r *appointmentsRepo) ListByCenter(ctx context.Context, centerID string, limit, offset int) ([]models.Appointment, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+appointmentCols+` FROM appointments
 WHERE center_id=$1 ORDER BY scheduled_for DESC LIMIT $2 OFFSET $3`, centerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *appointmentsRepo) UpdateStatus(ctx context.Context, id string, from, to models.AppointmentStatus) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE appointments SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	return tag.RowsAffected() == 1, err
}
