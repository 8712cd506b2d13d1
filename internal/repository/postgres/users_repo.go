package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/screenfund/backend/internal/models"
)

type usersRepo struct{ q querier }

const userCols = `id, email, password_hash, role, center_id, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CenterID, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *usersRepo) Create(ctx context.Context, email, passwordHash, role string, centerID *string) (models.User, error) {
	id := uuid.NewString()
	row := r.q.QueryRow(ctx, `
INSERT INTO users (id, email, password_hash, role, center_id)
VALUES ($1,$2,$3,$4,$5)
RETURNING `+userCols,
		id, email, passwordHash, role, centerID)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	return u, mapNotFound(err)
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
	return u, mapNotFound(err)
}
