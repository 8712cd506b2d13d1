package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/metrics"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/notify"
	"github.com/screenfund/backend/internal/payments"
	"github.com/screenfund/backend/internal/repository"
)

type BookingRequest struct {
	PatientID       string    `json:"patient_id"`
	CenterID        string    `json:"center_id"`
	ScreeningTypeID string    `json:"screening_type_id"`
	ScheduledFor    time.Time `json:"scheduled_for"`
	// PaymentReference is required for self-pay and ignored for
	// donation-funded bookings.
	PaymentReference string `json:"payment_reference,omitempty"`
	PaymentChannel   string `json:"payment_channel,omitempty"`
}

// AppointmentService books screenings and runs the status machine
// center staff drive. Completion is the hinge of the whole flow: it
// consumes the funding allocation and makes the appointment's
// transaction eligible for settlement.
type AppointmentService struct {
	store    repository.Store
	provider payments.Provider
	notif    Notifier
	now      func() time.Time
}

func NewAppointmentService(store repository.Store, provider payments.Provider, notif Notifier) *AppointmentService {
	return &AppointmentService{store: store, provider: provider, notif: notif, now: time.Now}
}

// BookSelfPay records a patient-paid appointment. The charge must
// already be verified successful under the given reference.
func (s *AppointmentService) BookSelfPay(ctx context.Context, req BookingRequest) (models.Appointment, error) {
	if req.PaymentReference == "" {
		return models.Appointment{}, apperr.Validation("payment_reference", "required")
	}
	screening, err := s.store.ScreeningTypes().GetByID(ctx, req.ScreeningTypeID)
	if err != nil {
		return models.Appointment{}, err
	}
	if _, err := s.store.Centers().GetByID(ctx, req.CenterID); err != nil {
		return models.Appointment{}, err
	}
	status, err := s.provider.Verify(ctx, req.PaymentReference)
	if err != nil {
		return models.Appointment{}, err
	}
	if status != payments.StatusSuccess {
		return models.Appointment{}, apperr.Validation("payment_reference", "charge not successful: "+string(status))
	}

	var out models.Appointment
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		txn, err := tx.Transactions().Create(ctx, models.Transaction{
			Type:             models.TxnAppointment,
			Amount:           screening.Cost,
			Status:           models.TxnPaid,
			PaymentReference: req.PaymentReference,
			PaymentChannel:   req.PaymentChannel,
		})
		if err != nil {
			return err
		}
		appt, err := tx.Appointments().Create(ctx, models.Appointment{
			PatientID:       req.PatientID,
			CenterID:        req.CenterID,
			ScreeningTypeID: req.ScreeningTypeID,
			ScheduledFor:    req.ScheduledFor,
			IsDonation:      false,
			TransactionID:   txn.ID,
			Status:          models.AppointmentScheduled,
		})
		if err != nil {
			return err
		}
		out = appt
		return nil
	})
	return out, err
}

// BookFromAllocation books against the patient's active allocation for
// the screening type. The allocation stays active until the
// appointment completes; cancelling before then returns the money.
func (s *AppointmentService) BookFromAllocation(ctx context.Context, req BookingRequest) (models.Appointment, error) {
	alloc, err := s.store.Allocations().GetActiveByPatientAndType(ctx, req.PatientID, req.ScreeningTypeID)
	if err != nil {
		return models.Appointment{}, apperr.Validation("allocation", "no active allocation for this screening")
	}
	if _, err := s.store.Centers().GetByID(ctx, req.CenterID); err != nil {
		return models.Appointment{}, err
	}

	var out models.Appointment
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		txn, err := tx.Transactions().Create(ctx, models.Transaction{
			Type:             models.TxnAppointment,
			Amount:           alloc.Amount,
			Status:           models.TxnPaid,
			PaymentReference: "alloc_" + alloc.ID,
			PaymentChannel:   "donation",
		})
		if err != nil {
			return err
		}
		appt, err := tx.Appointments().Create(ctx, models.Appointment{
			PatientID:       req.PatientID,
			CenterID:        req.CenterID,
			ScreeningTypeID: req.ScreeningTypeID,
			ScheduledFor:    req.ScheduledFor,
			IsDonation:      true,
			AllocationID:    &alloc.ID,
			TransactionID:   txn.ID,
			Status:          models.AppointmentScheduled,
		})
		if err != nil {
			return err
		}
		out = appt
		return nil
	})
	return out, err
}

// Transition applies a center-staff status change. Completion consumes
// the allocation and notifies the patient; cancellation of a
// donation-funded booking returns the reserved money to the campaign
// and the entry to the waitlist pool.
func (s *AppointmentService) Transition(ctx context.Context, appointmentID string, to models.AppointmentStatus) (models.Appointment, error) {
	appt, err := s.store.Appointments().GetByID(ctx, appointmentID)
	if err != nil {
		return models.Appointment{}, err
	}
	if !appt.CanTransition(to) {
		return models.Appointment{}, apperr.Validation("status",
			"cannot go from "+string(appt.Status)+" to "+string(to))
	}
	ok, err := s.store.Appointments().UpdateStatus(ctx, appointmentID, appt.Status, to)
	if err != nil {
		return models.Appointment{}, err
	}
	if !ok {
		return models.Appointment{}, apperr.Conflict("appointment status changed concurrently")
	}

	switch to {
	case models.AppointmentCompleted:
		s.onCompleted(ctx, appt)
	case models.AppointmentCancelled:
		s.onCancelled(ctx, appt)
	}
	audit(ctx, s.store, "appointment", appointmentID, "status_"+string(to), nil)
	return s.store.Appointments().GetByID(ctx, appointmentID)
}

func (s *AppointmentService) onCompleted(ctx context.Context, appt models.Appointment) {
	if appt.IsDonation && appt.AllocationID != nil {
		ok, err := s.store.Allocations().UpdateStatus(ctx, *appt.AllocationID,
			models.AllocationActive, models.AllocationConsumed)
		switch {
		case err != nil:
			slog.Error("allocation consume failed", "allocation_id", *appt.AllocationID,
				"appointment_id", appt.ID, "err", err)
		case !ok:
			// The reservation ended while its booking was live; the
			// campaign got its money back for a screening that still
			// happened. Operators must reconcile by hand.
			slog.Error("completed appointment found its allocation no longer active",
				"allocation_id", *appt.AllocationID, "appointment_id", appt.ID)
		default:
			metrics.AllocationsEnded.WithLabelValues("consumed").Inc()
		}
	}
	dispatch(s.notif, notify.Event{
		Kind:        notify.AppointmentCompleted,
		RecipientID: appt.PatientID,
		Data:        map[string]any{"appointment_id": appt.ID},
	})
}

func (s *AppointmentService) onCancelled(ctx context.Context, appt models.Appointment) {
	if !appt.IsDonation || appt.AllocationID == nil {
		// Self-pay cancellation: flag the charge for refund handling.
		_, _ = s.store.Transactions().UpdateStatus(ctx, appt.TransactionID, models.TxnPaid, models.TxnRefunded)
		return
	}
	alloc, err := s.store.Allocations().GetByID(ctx, *appt.AllocationID)
	if err != nil || alloc.Status != models.AllocationActive {
		return
	}
	// Return the reservation and put the patient back in the pool at
	// their original position.
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Allocations().UpdateStatus(ctx, alloc.ID, models.AllocationActive, models.AllocationReclaimed)
		if err != nil || !ok {
			return apperr.Conflict("allocation changed concurrently")
		}
		if err := tx.Campaigns().ReleaseFunds(ctx, alloc.CampaignID, alloc.Amount); err != nil {
			return err
		}
		// A campaign that completed by running dry can fund matches
		// again once money comes back, unless it has expired.
		c, err := tx.Campaigns().GetByID(ctx, alloc.CampaignID)
		if err == nil && c.Status == models.CampaignCompleted && s.now().Before(c.ExpiresAt) {
			if _, err := tx.Campaigns().UpdateStatus(ctx, alloc.CampaignID, models.CampaignCompleted, models.CampaignActive); err != nil {
				return err
			}
		}
		if _, err := tx.Waitlist().Revert(ctx, alloc.WaitlistID); err != nil {
			return err
		}
		_, err = tx.Transactions().UpdateStatus(ctx, appt.TransactionID, models.TxnPaid, models.TxnRefunded)
		return err
	})
	if err == nil {
		metrics.AllocationsEnded.WithLabelValues("reclaimed").Inc()
	}
}

func (s *AppointmentService) Get(ctx context.Context, id string) (models.Appointment, error) {
	return s.store.Appointments().GetByID(ctx, id)
}

func (s *AppointmentService) ListByCenter(ctx context.Context, centerID string, limit, offset int) ([]models.Appointment, error) {
	return s.store.Appointments().ListByCenter(ctx, centerID, limit, offset)
}
