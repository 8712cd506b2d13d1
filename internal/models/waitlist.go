package models

import "time"

type WaitlistStatus string

const (
	WaitlistPending WaitlistStatus = "pending"
	WaitlistMatched WaitlistStatus = "matched"
	WaitlistExpired WaitlistStatus = "expired"
)

// WaitlistEntry is a patient's request for a free, donation-funded
// screening of a given type. At most one pending entry may exist per
// (patient, screening type) pair.
type WaitlistEntry struct {
	ID              string         `json:"id"`
	PatientID       string         `json:"patient_id"`
	ScreeningTypeID string         `json:"screening_type_id"`
	Status          WaitlistStatus `json:"status"`
	JoinedAt        time.Time      `json:"joined_at"`
	ClaimedAt       *time.Time     `json:"claimed_at,omitempty"`
}
