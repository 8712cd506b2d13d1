package models

import "time"

type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "scheduled"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
)

// Appointment is a booked screening slot at a center. AllocationID is
// nil for self-pay bookings.
type Appointment struct {
	ID              string            `json:"id"`
	PatientID       string            `json:"patient_id"`
	CenterID        string            `json:"center_id"`
	ScreeningTypeID string            `json:"screening_type_id"`
	ScheduledFor    time.Time         `json:"scheduled_for"`
	IsDonation      bool              `json:"is_donation"`
	AllocationID    *string           `json:"allocation_id,omitempty"`
	TransactionID   string            `json:"transaction_id"`
	Status          AppointmentStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CanTransition reports whether the center-staff status change is legal.
func (a *Appointment) CanTransition(to AppointmentStatus) bool {
	switch a.Status {
	case AppointmentScheduled:
		return to == AppointmentInProgress || to == AppointmentCompleted || to == AppointmentCancelled
	case AppointmentInProgress:
		return to == AppointmentCompleted || to == AppointmentCancelled
	default:
		return false
	}
}
