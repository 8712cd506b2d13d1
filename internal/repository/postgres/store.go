package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/repository"
)

// querier is the subset of pgx both *pgxpool.Pool and pgx.Tx satisfy,
// so every repo method works inside and outside WithinTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool, q: pool} }

func (s *Store) Campaigns() repository.Campaigns           { return &campaignsRepo{s.q} }
func (s *Store) Waitlist() repository.Waitlist             { return &waitlistRepo{s.q} }
func (s *Store) Allocations() repository.Allocations       { return &allocationsRepo{s.q} }
func (s *Store) Appointments() repository.Appointments     { return &appointmentsRepo{s.q} }
func (s *Store) Transactions() repository.Transactions     { return &transactionsRepo{s.q} }
func (s *Store) Payouts() repository.Payouts               { return &payoutsRepo{s.q} }
func (s *Store) Patients() repository.Patients             { return &patientsRepo{s.q} }
func (s *Store) Centers() repository.Centers               { return &centersRepo{s.q} }
func (s *Store) ScreeningTypes() repository.ScreeningTypes { return &screeningTypesRepo{s.q} }
func (s *Store) Users() repository.Users                   { return &usersRepo{s.q} }
func (s *Store) AuditLogs() repository.AuditLogs           { return &auditLogsRepo{s.q} }

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if _, nested := s.q.(pgx.Tx); nested {
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(&Store{pool: s.pool, q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return mapSerialization(err)
	}
	return mapSerialization(tx.Commit(ctx))
}

// mapSerialization turns serializable-isolation aborts (serialization
// failure, deadlock) into conflicts, so callers can retry them the
// same way they handle a lost conditional update.
func mapSerialization(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return apperr.Conflict("transaction aborted under serializable isolation")
	}
	return err
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}
