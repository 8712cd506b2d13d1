package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/notify"
	"github.com/screenfund/backend/internal/payments"
	"github.com/screenfund/backend/internal/repository"
	"github.com/screenfund/backend/internal/repository/memory"
)

// fakeProvider scripts the payment provider. Zero value verifies and
// submits everything as success.
type fakeProvider struct {
	mu sync.Mutex

	verifyStatus payments.Status
	verifyErr    error
	payoutStatus payments.Status
	payoutErr    error

	payoutRefs []string
	verified   []string
}

func (f *fakeProvider) InitializeCharge(_ context.Context, reference string, _ int64, _ string) (payments.ChargeInit, error) {
	return payments.ChargeInit{Reference: reference, AuthorizationURL: "https://checkout.test/" + reference}, nil
}

func (f *fakeProvider) SubmitPayout(_ context.Context, batchReference string, _ models.BankDetails, _ int64) (payments.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payoutRefs = append(f.payoutRefs, batchReference)
	if f.payoutStatus == "" {
		return payments.StatusSuccess, f.payoutErr
	}
	return f.payoutStatus, f.payoutErr
}

func (f *fakeProvider) Verify(_ context.Context, reference string) (payments.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, reference)
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	if f.verifyStatus == "" {
		return payments.StatusSuccess, nil
	}
	return f.verifyStatus, nil
}

// fakeNotifier records dispatched events synchronously.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeNotifier) Dispatch(ev notify.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) kinds() []notify.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.Kind, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Kind)
	}
	return out
}

func seedScreening(t *testing.T, store repository.Store, name string, cost int64) models.ScreeningType {
	t.Helper()
	st, err := store.ScreeningTypes().Create(context.Background(), models.ScreeningType{Name: name, Cost: cost})
	if err != nil {
		t.Fatalf("seed screening type: %v", err)
	}
	return st
}

func seedPatient(t *testing.T, store repository.Store, name, state, lga string, gender models.Gender, age int) models.Patient {
	t.Helper()
	p, err := store.Patients().Create(context.Background(), models.Patient{
		FullName:    name,
		Gender:      gender,
		DateOfBirth: time.Now().AddDate(-age, -6, 0),
		State:       state,
		LGA:         lga,
	})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return p
}

func seedCampaign(t *testing.T, store repository.Store, c models.Campaign) models.Campaign {
	t.Helper()
	if c.Status == "" {
		c.Status = models.CampaignActive
	}
	if c.Gender == "" {
		c.Gender = models.GenderAll
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = time.Now().Add(90 * 24 * time.Hour)
	}
	if c.CurrentAmount == 0 {
		c.CurrentAmount = c.TargetAmount
	}
	out, err := store.Campaigns().Create(context.Background(), c)
	if err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	return out
}

func seedCenter(t *testing.T, store repository.Store, name string) models.Center {
	t.Helper()
	c, err := store.Centers().Create(context.Background(), models.Center{
		Name:  name,
		State: "Lagos",
		LGA:   "Ikeja",
		Bank:  models.BankDetails{BankCode: "058", AccountNumber: "0123456789", AccountName: name},
	})
	if err != nil {
		t.Fatalf("seed center: %v", err)
	}
	return c
}

func joinWaitlist(t *testing.T, store repository.Store, patientID, screeningTypeID string, joinedAt time.Time) models.WaitlistEntry {
	t.Helper()
	e, err := store.Waitlist().Create(context.Background(), models.WaitlistEntry{
		PatientID:       patientID,
		ScreeningTypeID: screeningTypeID,
		Status:          models.WaitlistPending,
		JoinedAt:        joinedAt,
	})
	if err != nil {
		t.Fatalf("seed waitlist entry: %v", err)
	}
	return e
}

func newTestStore() repository.Store { return memory.New() }
