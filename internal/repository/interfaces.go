package repository

import (
	"context"
	"time"

	"github.com/screenfund/backend/internal/models"
)

// Store is the ledger: every entity repository plus a transaction
// runner. WithinTx hands fn a store view whose writes commit or roll
// back together; implementations must make the conditional-update
// primitives below behave identically inside and outside a tx.
type Store interface {
	Campaigns() Campaigns
	Waitlist() Waitlist
	Allocations() Allocations
	Appointments() Appointments
	Transactions() Transactions
	Payouts() Payouts
	Patients() Patients
	Centers() Centers
	ScreeningTypes() ScreeningTypes
	Users() Users
	AuditLogs() AuditLogs

	WithinTx(ctx context.Context, fn func(Store) error) error
}

type Campaigns interface {
	Create(ctx context.Context, c models.Campaign) (models.Campaign, error)
	GetByID(ctx context.Context, id string) (models.Campaign, error)
	ListActive(ctx context.Context) ([]models.Campaign, error)
	List(ctx context.Context, limit, offset int) ([]models.Campaign, error)
	// UpdateStatus only fires when the campaign is currently in from.
	UpdateStatus(ctx context.Context, id string, from, to models.CampaignStatus) (bool, error)
	// ReserveFunds decrements current_amount iff the remaining balance
	// covers amount and the campaign is active. Returns the balance
	// after the decrement and whether the write happened.
	ReserveFunds(ctx context.Context, id string, amount int64) (remaining int64, ok bool, err error)
	// ReleaseFunds returns a reservation to the spendable balance.
	ReleaseFunds(ctx context.Context, id string, amount int64) error
	// AddFunds is a top-up: raises target and current together.
	AddFunds(ctx context.Context, id string, amount int64) error
	// Drain zeroes current_amount and reports how much was left.
	Drain(ctx context.Context, id string) (int64, error)
	// ExpirePast flips active campaigns whose expiry has passed to
	// completed, returning how many changed.
	ExpirePast(ctx context.Context, now time.Time) (int, error)
}

type Waitlist interface {
	Create(ctx context.Context, e models.WaitlistEntry) (models.WaitlistEntry, error)
	GetByID(ctx context.Context, id string) (models.WaitlistEntry, error)
	// ListPending returns pending entries ordered by joined_at ascending.
	ListPending(ctx context.Context) ([]models.WaitlistEntry, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.WaitlistEntry, error)
	HasPending(ctx context.Context, patientID, screeningTypeID string) (bool, error)
	// MarkMatched flips pending -> matched; false if no longer pending.
	MarkMatched(ctx context.Context, id string, at time.Time) (bool, error)
	// Revert flips matched -> pending keeping joined_at, so the entry
	// re-enters the pool at its original FIFO position.
	Revert(ctx context.Context, id string) (bool, error)
	// ExpirePendingBefore flips pending entries older than cutoff to
	// expired, returning how many changed.
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Allocations interface {
	Create(ctx context.Context, a models.Allocation) (models.Allocation, error)
	GetByID(ctx context.Context, id string) (models.Allocation, error)
	GetActiveByPatientAndType(ctx context.Context, patientID, screeningTypeID string) (models.Allocation, error)
	// ListActiveBefore returns active allocations created before cutoff
	// that no live (non-cancelled) appointment references; a booked
	// allocation is never stale.
	ListActiveBefore(ctx context.Context, cutoff time.Time) ([]models.Allocation, error)
	ListActiveByCampaign(ctx context.Context, campaignID string) ([]models.Allocation, error)
	// UpdateStatus only fires on the expected current status.
	UpdateStatus(ctx context.Context, id string, from, to models.AllocationStatus) (bool, error)
	// SumByCampaign totals allocation amounts in the given statuses,
	// used by the budget-conservation audit.
	SumByCampaign(ctx context.Context, campaignID string, statuses ...models.AllocationStatus) (int64, error)
}

type Appointments interface {
	Create(ctx context.Context, a models.Appointment) (models.Appointment, error)
	GetByID(ctx context.Context, id string) (models.Appointment, error)
	ListByCenter(ctx context.Context, centerID string, limit, offset int) ([]models.Appointment, error)
	UpdateStatus(ctx context.Context, id string, from, to models.AppointmentStatus) (bool, error)
}

// SettleableTransaction is one row of the shared settlement eligibility
// scan: a paid appointment transaction whose appointment completed and
// which no live payout has claimed.
type SettleableTransaction struct {
	Transaction   models.Transaction
	AppointmentID string
	ServiceDate   time.Time
}

type Transactions interface {
	Create(ctx context.Context, t models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	GetByReference(ctx context.Context, reference string) (models.Transaction, error)
	UpdateStatus(ctx context.Context, id string, from, to models.TransactionStatus) (bool, error)
	// ListByType returns the newest transactions of one type, for
	// reconciliation views.
	ListByType(ctx context.Context, t models.TransactionType, limit int) ([]models.Transaction, error)
	// ListSettleable is the single source of truth for settlement
	// eligibility; both the balance query and the batch builder use it.
	ListSettleable(ctx context.Context, centerID string) ([]SettleableTransaction, error)
	// ClaimForPayout sets claimed_payout_id iff currently unclaimed.
	ClaimForPayout(ctx context.Context, txID, payoutID string) (bool, error)
	// ReleaseClaims clears every claim held by the given payout.
	ReleaseClaims(ctx context.Context, payoutID string) error
}

type Payouts interface {
	Create(ctx context.Context, p models.Payout) (models.Payout, error)
	GetByID(ctx context.Context, id string) (models.Payout, error)
	ListByCenter(ctx context.Context, centerID string, limit, offset int) ([]models.Payout, error)
	UpdateStatus(ctx context.Context, id string, from, to models.PayoutStatus) (bool, error)
	MarkFailed(ctx context.Context, id string, reason string) (bool, error)
	MarkSuccess(ctx context.Context, id string, at time.Time) (bool, error)
	MarkSuperseded(ctx context.Context, id string) error
	NextPayoutNumber(ctx context.Context) (int64, error)
	CreateItem(ctx context.Context, item models.PayoutItem) (models.PayoutItem, error)
	ListItems(ctx context.Context, payoutID string) ([]models.PayoutItem, error)
	// FindDoubleClaimed returns transaction ids attached to more than
	// one non-failed payout. Non-empty means an invariant violation.
	FindDoubleClaimed(ctx context.Context) ([]string, error)
}

type Patients interface {
	Create(ctx context.Context, p models.Patient) (models.Patient, error)
	GetByID(ctx context.Context, id string) (models.Patient, error)
}

type Centers interface {
	Create(ctx context.Context, c models.Center) (models.Center, error)
	GetByID(ctx context.Context, id string) (models.Center, error)
	List(ctx context.Context) ([]models.Center, error)
}

type ScreeningTypes interface {
	Create(ctx context.Context, s models.ScreeningType) (models.ScreeningType, error)
	GetByID(ctx context.Context, id string) (models.ScreeningType, error)
	List(ctx context.Context) ([]models.ScreeningType, error)
}

type Users interface {
	Create(ctx context.Context, email, passwordHash, role string, centerID *string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
