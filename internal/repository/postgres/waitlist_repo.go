package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/screenfund/backend/internal/models"
)

type waitlistRepo struct{ q querier }

const waitlistCols = `id, patient_id, screening_type_id, status, joined_at, claimed_at`

func scanWaitlist(row pgx.Row) (models.WaitlistEntry, error) {
	var e models.WaitlistEntry
	err := row.Scan(&e.ID, &e.PatientID, &e.ScreeningTypeID, &e.Status, &e.JoinedAt, &e.ClaimedAt)
	return e, err
}

func (r *waitlistRepo) Create(ctx context.Context, e models.WaitlistEntry) (models.WaitlistEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx, `
INSERT INTO waitlist_entries (id, patient_id, screening_type_id, status, joined_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING `+waitlistCols,
		e.ID, e.PatientID, e.ScreeningTypeID, e.Status, e.JoinedAt)
	out, err := scanWaitlist(row)
	return out, mapNotFound(err)
}

func (r *waitlistRepo) GetByID(ctx context.Context, id string) (models.WaitlistEntry, error) {
	e, err := scanWaitlist(r.q.QueryRow(ctx,
		`SELECT `+waitlistCols+` FROM waitlist_entries WHERE id=$1`, id))
	return e, mapNotFound(err)
}

func (r *waitlistRepo) ListPending(ctx context.Context) ([]models.WaitlistEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+waitlistCols+` FROM waitlist_entries WHERE status='pending' ORDER BY joined_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWaitlist(rows)
}

func (r *waitlistRepo) ListByPatient(ctx context.Context, patientID string) ([]models.WaitlistEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+waitlistCols+` FROM waitlist_entries WHERE patient_id=$1 ORDER BY joined_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWaitlist(rows)
}

func collectWaitlist(rows pgx.Rows) ([]models.WaitlistEntry, error) {
	var out []models.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *waitlistRepo) HasPending(ctx context.Context, patientID, screeningTypeID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM waitlist_entries
 WHERE patient_id=$1 AND screening_type_id=$2 AND status='pending')`,
		patientID, screeningTypeID).Scan(&exists)
	return exists, err
}

func (r *waitlistRepo) MarkMatched(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE waitlist_entries SET status='matched', claimed_at=$2 WHERE id=$1 AND status='pending'`,
		id, at)
	return tag.RowsAffected() == 1, err
}

func (r *waitlistRepo) Revert(ctx context.Context, id string) (bool, error) {
	// joined_at is untouched: the entry keeps its FIFO position.
	tag, err := r.q.Exec(ctx,
		`UPDATE waitlist_entries SET status='pending', claimed_at=NULL WHERE id=$1 AND status='matched'`, id)
	return tag.RowsAffected() == 1, err
}

func (r *waitlistRepo) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE waitlist_entries SET status='expired' WHERE status='pending' AND joined_at < $1`, cutoff)
	return int(tag.RowsAffected()), err
}
