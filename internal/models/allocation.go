package models

import "time"

type AllocationStatus string

const (
	AllocationActive    AllocationStatus = "active"
	AllocationConsumed  AllocationStatus = "consumed"
	AllocationExpired   AllocationStatus = "expired"
	AllocationReclaimed AllocationStatus = "reclaimed"
)

// Allocation reserves campaign funds for one patient's one screening.
// Consumed, expired and reclaimed are all terminal.
type Allocation struct {
	ID              string           `json:"id"`
	CampaignID      string           `json:"campaign_id"`
	WaitlistID      string           `json:"waitlist_id"`
	PatientID       string           `json:"patient_id"`
	ScreeningTypeID string           `json:"screening_type_id"`
	Amount          int64            `json:"amount"`
	Status          AllocationStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
