package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/screenfund/backend/internal/models"
)

type campaignsRepo struct{ q querier }

const campaignCols = `id, owner_id, title, target_amount, current_amount, max_per_patient,
states, lgas, gender, age_min, age_max, screening_type_ids, status, expires_at, created_at, updated_at`

func scanCampaign(row pgx.Row) (models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.TargetAmount, &c.CurrentAmount,
		&c.MaxPerPatient, &c.States, &c.LGAs, &c.Gender, &c.AgeMin, &c.AgeMax,
		&c.ScreeningTypeIDs, &c.Status, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *campaignsRepo) Create(ctx context.Context, c models.Campaign) (models.Campaign, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := r.q.QueryRow(ctx, `
INSERT INTO campaigns (id, owner_id, title, target_amount, current_amount, max_per_patient,
  states, lgas, gender, age_min, age_max, screening_type_ids, status, expires_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING `+campaignCols,
		c.ID, c.OwnerID, c.Title, c.TargetAmount, c.CurrentAmount, c.MaxPerPatient,
		c.States, c.LGAs, c.Gender, c.AgeMin, c.AgeMax, c.ScreeningTypeIDs, c.Status, c.ExpiresAt)
	out, err := scanCampaign(row)
	return out, mapNotFound(err)
}

func (r *campaignsRepo) GetByID(ctx context.Context, id string) (models.Campaign, error) {
	c, err := scanCampaign(r.q.QueryRow(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id=$1`, id))
	return c, mapNotFound(err)
}

func (r *campaignsRepo) ListActive(ctx context.Context) ([]models.Campaign, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+campaignCols+` FROM campaigns WHERE status='active' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func (r *campaignsRepo) List(ctx context.Context, limit, offset int) ([]models.Campaign, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+campaignCols+` FROM campaigns ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func collectCampaigns(rows pgx.Rows) ([]models.Campaign, error) {
	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *campaignsRepo) UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE campaigns SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	return tag.RowsAffected() == 1, err
}

func (r *campaignsRepo) ReserveFunds(ctx context.Context, id string, amount int64) (int64, bool, error) {
	var remaining int64
	err := r.q.QueryRow(ctx, `
UPDATE campaigns
   SET current_amount = current_amount - $2, updated_at = now()
 WHERE id=$1 AND status='active' AND current_amount >= $2
RETURNING current_amount`, id, amount).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	return remaining, err == nil, err
}

func (r *campaignsRepo) ReleaseFunds(ctx context.Context, id string, amount int64) error {
	_, err := r.q.Exec(ctx,
		`UPDATE campaigns SET current_amount = current_amount + $2, updated_at = now() WHERE id=$1`,
		id, amount)
	return err
}

func (r *campaignsRepo) AddFunds(ctx context.Context, id string, amount int64) error {
	_, err := r.q.Exec(ctx, `
UPDATE campaigns
   SET target_amount = target_amount + $2,
       current_amount = current_amount + $2,
       updated_at = now()
 WHERE id=$1`, id, amount)
	return err
}

func (r *campaignsRepo) Drain(ctx context.Context, id string) (int64, error) {
	var before int64
	err := r.q.QueryRow(ctx, `
UPDATE campaigns c
   SET current_amount = 0, updated_at = now()
  FROM (SELECT current_amount FROM campaigns WHERE id=$1 FOR UPDATE) old
 WHERE c.id=$1
RETURNING old.current_amount`, id).Scan(&before)
	return before, mapNotFound(err)
}

func (r *campaignsRepo) ExpirePast(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE campaigns SET status='completed', updated_at=now() WHERE status='active' AND expires_at <= $1`,
		now)
	return int(tag.RowsAffected()), err
}
