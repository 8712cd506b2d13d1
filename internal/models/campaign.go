package models

import (
	"errors"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderAll    Gender = "all"
)

type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignDeleted   CampaignStatus = "deleted"
)

// Campaign is a donor-funded pool of money earmarked for sponsoring
// screenings under targeting rules. OwnerID is nil for the anonymous
// general pool. Amounts are Naira minor units (kobo).
type Campaign struct {
	ID               string         `json:"id"`
	OwnerID          *string        `json:"owner_id,omitempty"`
	Title            string         `json:"title"`
	TargetAmount     int64          `json:"target_amount"`
	CurrentAmount    int64          `json:"current_amount"`
	MaxPerPatient    int64          `json:"max_per_patient"`
	States           []string       `json:"states,omitempty"` // empty = any
	LGAs             []string       `json:"lgas,omitempty"`   // empty = any
	Gender           Gender         `json:"gender"`
	AgeMin           *int           `json:"age_min,omitempty"`
	AgeMax           *int           `json:"age_max,omitempty"`
	ScreeningTypeIDs []string       `json:"screening_type_ids"`
	Status           CampaignStatus `json:"status"`
	ExpiresAt        time.Time      `json:"expires_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (c *Campaign) Validate() error {
	if c.TargetAmount <= 0 {
		return errors.New("target_amount must be > 0")
	}
	if c.MaxPerPatient <= 0 || c.MaxPerPatient > c.TargetAmount {
		return errors.New("max_per_patient must be in (0, target_amount]")
	}
	if len(c.ScreeningTypeIDs) == 0 {
		return errors.New("at least one screening type required")
	}
	switch c.Gender {
	case GenderMale, GenderFemale, GenderAll:
	case "":
		c.Gender = GenderAll
	default:
		return errors.New("invalid gender filter")
	}
	if c.AgeMin != nil && c.AgeMax != nil && *c.AgeMin > *c.AgeMax {
		return errors.New("age_min greater than age_max")
	}
	if c.ExpiresAt.IsZero() {
		return errors.New("expires_at required")
	}
	return nil
}

// DispositionKind says what happens to a deleted campaign's remaining funds.
type DispositionKind string

const (
	DispositionRecycle  DispositionKind = "recycle"  // back to the general pool
	DispositionTransfer DispositionKind = "transfer" // into another campaign
	DispositionRefund   DispositionKind = "refund"   // back to the donor
)

// Disposition is a mandatory input on campaign deletion. There is no
// default: the three arms have materially different financial outcomes,
// so the caller must construct one explicitly.
type Disposition struct {
	kind             DispositionKind
	targetCampaignID string
}

func Recycle() Disposition { return Disposition{kind: DispositionRecycle} }

func TransferTo(campaignID string) Disposition {
	return Disposition{kind: DispositionTransfer, targetCampaignID: campaignID}
}

func Refund() Disposition { return Disposition{kind: DispositionRefund} }

func (d Disposition) Kind() DispositionKind { return d.kind }
func (d Disposition) TargetCampaignID() string { return d.targetCampaignID }

func (d Disposition) Validate() error {
	switch d.kind {
	case DispositionRecycle, DispositionRefund:
		return nil
	case DispositionTransfer:
		if d.targetCampaignID == "" {
			return errors.New("transfer disposition needs a target campaign")
		}
		return nil
	default:
		return errors.New("disposition required")
	}
}
