package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/screenfund/backend/internal/models"
)

type payoutsRepo struct{ q querier }

const payoutCols = `id, batch_reference, payout_number, center_id, amount, net_amount,
status, type, failure_reason, superseded, completed_at, created_at`

func scanPayout(row pgx.Row) (models.Payout, error) {
	var p models.Payout
	err := row.Scan(&p.ID, &p.BatchReference, &p.PayoutNumber, &p.CenterID, &p.Amount,
		&p.NetAmount, &p.Status, &p.Type, &p.FailureReason, &p.Superseded, &p.CompletedAt, &p.CreatedAt)
	return p, err
}

func (r *payoutsRepo) Create(ctx context.Context, p models.Payout) (models.Payout, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx, `
INSERT INTO payouts (id, batch_reference, payout_number, center_id, amount, net_amount, status, type)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING `+payoutCols,
		p.ID, p.BatchReference, p.PayoutNumber, p.CenterID, p.Amount, p.NetAmount, p.Status, p.Type)
	out, err := scanPayout(row)
	return out, mapNotFound(err)
}

func (r *payoutsRepo) GetByID(ctx context.Context, id string) (models.Payout, error) {
	p, err := scanPayout(r.q.QueryRow(ctx, `SELECT `+payoutCols+` FROM payouts WHERE id=$1`, id))
	return p, mapNotFound(err)
}

func (r *payoutsRepo) ListByCenter(ctx context.Context, centerID string, limit, offset int) ([]models.Payout, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+payoutCols+` FROM payouts
 WHERE center_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, centerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *payoutsRepo) UpdateStatus(ctx context.Context, id string, from, to models.PayoutStatus) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE payouts SET status=$3 WHERE id=$1 AND status=$2`, id, from, to)
	return tag.RowsAffected() == 1, err
}

func (r *payoutsRepo) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE payouts SET status='failed', failure_reason=$2 WHERE id=$1 AND status='processing'`,
		id, reason)
	return tag.RowsAffected() == 1, err
}

func (r *payoutsRepo) MarkSuccess(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE payouts SET status='success', completed_at=$2 WHERE id=$1 AND status='processing'`,
		id, at)
	return tag.RowsAffected() == 1, err
}

func (r *payoutsRepo) MarkSuperseded(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `UPDATE payouts SET superseded=true WHERE id=$1`, id)
	return err
}

func (r *payoutsRepo) NextPayoutNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `SELECT nextval('payout_number_seq')`).Scan(&n)
	return n, err
}

func (r *payoutsRepo) CreateItem(ctx context.Context, item models.PayoutItem) (models.PayoutItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	_, err := r.q.Exec(ctx, `
INSERT INTO payout_items (id, payout_id, transaction_id, appointment_id, amount, service_date)
VALUES ($1,$2,$3,$4,$5,$6)`,
		item.ID, item.PayoutID, item.TransactionID, item.AppointmentID, item.Amount, item.ServiceDate)
	return item, err
}

func (r *payoutsRepo) ListItems(ctx context.Context, payoutID string) ([]models.PayoutItem, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, payout_id, transaction_id, appointment_id, amount, service_date
  FROM payout_items WHERE payout_id=$1 ORDER BY service_date`, payoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PayoutItem
	for rows.Next() {
		var it models.PayoutItem
		if err := rows.Scan(&it.ID, &it.PayoutID, &it.TransactionID, &it.AppointmentID, &it.Amount, &it.ServiceDate); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *payoutsRepo) FindDoubleClaimed(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `
SELECT pi.transaction_id
  FROM payout_items pi
  JOIN payouts p ON p.id = pi.payout_id
 WHERE p.status <> 'failed'
 GROUP BY pi.transaction_id
HAVING count(*) > 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
