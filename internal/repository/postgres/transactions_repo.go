package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/repository"
)

type transactionsRepo struct{ q querier }

const txnCols = `id, type, amount, status, payment_reference, payment_channel, claimed_payout_id, created_at`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Type, &t.Amount, &t.Status, &t.PaymentReference,
		&t.PaymentChannel, &t.ClaimedPayoutID, &t.CreatedAt)
	return t, err
}

func (r *transactionsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx, `
INSERT INTO transactions (id, type, amount, status, payment_reference, payment_channel)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING `+txnCols,
		t.ID, t.Type, t.Amount, t.Status, t.PaymentReference, t.PaymentChannel)
	out, err := scanTxn(row)
	return out, mapNotFound(err)
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	t, err := scanTxn(r.q.QueryRow(ctx, `SELECT `+txnCols+` FROM transactions WHERE id=$1`, id))
	return t, mapNotFound(err)
}

func (r *transactionsRepo) GetByReference(ctx context.Context, reference string) (models.Transaction, error) {
	t, err := scanTxn(r.q.QueryRow(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE payment_reference=$1`, reference))
	return t, mapNotFound(err)
}

func (r *transactionsRepo) UpdateStatus(ctx context.Context, id string, from, to models.TransactionStatus) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE transactions SET status=$3 WHERE id=$1 AND status=$2`, id, from, to)
	return tag.RowsAffected() == 1, err
}

func (r *transactionsRepo) ListByType(ctx context.Context, t models.TransactionType, limit int) ([]models.Transaction, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE type=$1 ORDER BY created_at DESC LIMIT $2`, t, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		txn, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

// ListSettleable is the shared eligibility scan: paid appointment
// transactions of completed appointments at the center, unclaimed by
// any live payout.
func (r *transactionsRepo) ListSettleable(ctx context.Context, centerID string) ([]repository.SettleableTransaction, error) {
	rows, err := r.q.Query(ctx, `
SELECT t.id, t.type, t.amount, t.status, t.payment_reference, t.payment_channel,
       t.claimed_payout_id, t.created_at, a.id, a.scheduled_for
  FROM transactions t
  JOIN appointments a ON a.transaction_id = t.id
 WHERE t.type='appointment' AND t.status='paid' AND t.claimed_payout_id IS NULL
   AND a.status='completed' AND a.center_id=$1
 ORDER BY a.scheduled_for`, centerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.SettleableTransaction
	for rows.Next() {
		var s repository.SettleableTransaction
		t := &s.Transaction
		if err := rows.Scan(&t.ID, &t.Type, &t.Amount, &t.Status, &t.PaymentReference,
			&t.PaymentChannel, &t.ClaimedPayoutID, &t.CreatedAt, &s.AppointmentID, &s.ServiceDate); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) ClaimForPayout(ctx context.Context, txID, payoutID string) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE transactions SET claimed_payout_id=$2 WHERE id=$1 AND claimed_payout_id IS NULL`,
		txID, payoutID)
	return tag.RowsAffected() == 1, err
}

func (r *transactionsRepo) ReleaseClaims(ctx context.Context, payoutID string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE transactions SET claimed_payout_id=NULL WHERE claimed_payout_id=$1`, payoutID)
	return err
}
