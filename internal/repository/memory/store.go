// Package memory implements the repository contract in process memory.
// It mirrors the conditional-update semantics of the postgres store so
// services can be exercised in unit tests without a database. WithinTx
// runs under the store lock and restores a snapshot on error, giving
// the same commit-or-nothing behavior a real transaction does.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/repository"
)

type data struct {
	campaigns      map[string]models.Campaign
	waitlist       map[string]models.WaitlistEntry
	allocations    map[string]models.Allocation
	appointments   map[string]models.Appointment
	transactions   map[string]models.Transaction
	payouts        map[string]models.Payout
	payoutItems    map[string]models.PayoutItem
	patients       map[string]models.Patient
	centers        map[string]models.Center
	screeningTypes map[string]models.ScreeningType
	users          map[string]models.User
	auditLogs      []models.AuditLog
	payoutSeq      int64
}

func newData() *data {
	return &data{
		campaigns:      map[string]models.Campaign{},
		waitlist:       map[string]models.WaitlistEntry{},
		allocations:    map[string]models.Allocation{},
		appointments:   map[string]models.Appointment{},
		transactions:   map[string]models.Transaction{},
		payouts:        map[string]models.Payout{},
		payoutItems:    map[string]models.PayoutItem{},
		patients:       map[string]models.Patient{},
		centers:        map[string]models.Center{},
		screeningTypes: map[string]models.ScreeningType{},
		users:          map[string]models.User{},
	}
}

// clone is a per-entry shallow copy; repos replace whole structs on
// write and never mutate slice or pointer fields in place, so entry
// copies are enough for rollback.
func (d *data) clone() *data {
	c := &data{
		campaigns:      maps.Clone(d.campaigns),
		waitlist:       maps.Clone(d.waitlist),
		allocations:    maps.Clone(d.allocations),
		appointments:   maps.Clone(d.appointments),
		transactions:   maps.Clone(d.transactions),
		payouts:        maps.Clone(d.payouts),
		payoutItems:    maps.Clone(d.payoutItems),
		patients:       maps.Clone(d.patients),
		centers:        maps.Clone(d.centers),
		screeningTypes: maps.Clone(d.screeningTypes),
		users:          maps.Clone(d.users),
		payoutSeq:      d.payoutSeq,
	}
	c.auditLogs = append([]models.AuditLog(nil), d.auditLogs...)
	return c
}

type shared struct {
	mu sync.Mutex
	d  *data
}

type Store struct {
	root *shared
	inTx bool
}

func New() *Store { return &Store{root: &shared{d: newData()}} }

// run serializes access; inside a tx the lock is already held.
func (s *Store) run(fn func(d *data) error) error {
	if !s.inTx {
		s.root.mu.Lock()
		defer s.root.mu.Unlock()
	}
	return fn(s.root.d)
}

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	snap := s.root.d.clone()
	if err := fn(&Store{root: s.root, inTx: true}); err != nil {
		s.root.d = snap
		return err
	}
	return nil
}

func (s *Store) Campaigns() repository.Campaigns           { return &campaignsRepo{s} }
func (s *Store) Waitlist() repository.Waitlist             { return &waitlistRepo{s} }
func (s *Store) Allocations() repository.Allocations       { return &allocationsRepo{s} }
func (s *Store) Appointments() repository.Appointments     { return &appointmentsRepo{s} }
func (s *Store) Transactions() repository.Transactions     { return &transactionsRepo{s} }
func (s *Store) Payouts() repository.Payouts               { return &payoutsRepo{s} }
func (s *Store) Patients() repository.Patients             { return &patientsRepo{s} }
func (s *Store) Centers() repository.Centers               { return &centersRepo{s} }
func (s *Store) ScreeningTypes() repository.ScreeningTypes { return &screeningTypesRepo{s} }
func (s *Store) Users() repository.Users                   { return &usersRepo{s} }
func (s *Store) AuditLogs() repository.AuditLogs           { return &auditLogsRepo{s} }

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func ensureTime(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

var errNotFound = apperr.ErrNotFound
