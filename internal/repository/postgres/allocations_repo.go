package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/screenfund/backend/internal/models"
)

type allocationsRepo struct{ q querier }

const allocationCols = `id, campaign_id, waitlist_id, patient_id, screening_type_id, amount, status, created_at, updated_at`

func scanAllocation(row pgx.Row) (models.Allocation, error) {
	var a models.Allocation
	err := row.Scan(&a.ID, &a.CampaignID, &a.WaitlistID, &a.PatientID, &a.ScreeningTypeID,
		&a.Amount, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *allocationsRepo) Create(ctx context.Context, a models.Allocation) (models.Allocation, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx, `
INSERT INTO allocations (id, campaign_id, waitlist_id, patient_id, screening_type_id, amount, status)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+allocationCols,
		a.ID, a.CampaignID, a.WaitlistID, a.PatientID, a.ScreeningTypeID, a.Amount, a.Status)
	out, err := scanAllocation(row)
	return out, mapNotFound(err)
}

func (r *allocationsRepo) GetByID(ctx context.Context, id string) (models.Allocation, error) {
	a, err := scanAllocation(r.q.QueryRow(ctx,
		`SELECT `+allocationCols+` FROM allocations WHERE id=$1`, id))
	return a, mapNotFound(err)
}

func (r *allocationsRepo) GetActiveByPatientAndType(ctx context.Context, patientID, screeningTypeID string) (models.Allocation, error) {
	a, err := scanAllocation(r.q.QueryRow(ctx, `
SELECT `+allocationCols+` FROM allocations
 WHERE patient_id=$1 AND screening_type_id=$2 AND status='active'`, patientID, screeningTypeID))
	return a, mapNotFound(err)
}

func (r *allocationsRepo) ListActiveBefore(ctx context.Context, cutoff time.Time) ([]models.Allocation, error) {
	// An allocation with a live booking is not stale no matter how old
	// it is; the appointment outcome decides how it ends.
	rows, err := r.q.Query(ctx, `
SELECT `+allocationCols+` FROM allocations
 WHERE status='active' AND created_at < $1
   AND NOT EXISTS (
       SELECT 1 FROM appointments
        WHERE appointments.allocation_id = allocations.id
          AND appointments.status <> 'cancelled')
 ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAllocations(rows)
}

func (r *allocationsRepo) ListActiveByCampaign(ctx context.Context, campaignID string) ([]models.Allocation, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+allocationCols+` FROM allocations WHERE campaign_id=$1 AND status='active' ORDER BY created_at`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAllocations(rows)
}

func collectAllocations(rows pgx.Rows) ([]models.Allocation, error) {
	var out []models.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *allocationsRepo) UpdateStatus(ctx context.Context, id string, from, to models.AllocationStatus) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE allocations SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	return tag.RowsAffected() == 1, err
}

func (r *allocationsRepo) SumByCampaign(ctx context.Context, campaignID string, statuses ...models.AllocationStatus) (int64, error) {
	ss := make([]string, len(statuses))
	for i, st := range statuses {
		ss[i] = string(st)
	}
	var sum int64
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount),0) FROM allocations WHERE campaign_id=$1 AND status = ANY($2)`,
		campaignID, ss).Scan(&sum)
	return sum, err
}
