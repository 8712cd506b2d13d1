// Package targeting decides whether a patient profile is eligible for
// a campaign. Pure functions only: no clock, no store, no side effects.
package targeting

import (
	"time"

	"github.com/screenfund/backend/internal/models"
)

// Profile is the slice of a patient the filters run against.
type Profile struct {
	State  string
	LGA    string
	Gender models.Gender
	Age    int
}

// ProfileFor projects a patient record onto a targeting profile as of t.
func ProfileFor(p models.Patient, t time.Time) Profile {
	return Profile{State: p.State, LGA: p.LGA, Gender: p.Gender, Age: p.AgeAt(t)}
}

// AllocationAmount is what a match against c would reserve for a
// screening costing cost: the screening price, capped per patient.
func AllocationAmount(c models.Campaign, cost int64) int64 {
	if cost < c.MaxPerPatient {
		return cost
	}
	return c.MaxPerPatient
}

// IsEligible reports whether p may be sponsored by c for the given
// screening type. All conditions must hold, including that the
// campaign can still fund one allocation.
func IsEligible(c models.Campaign, p Profile, screeningTypeID string, cost int64, now time.Time) bool {
	if c.Status != models.CampaignActive || !now.Before(c.ExpiresAt) {
		return false
	}
	// "*" in the screening list means any type; the general pool uses it.
	if !contains(c.ScreeningTypeIDs, "*") && !contains(c.ScreeningTypeIDs, screeningTypeID) {
		return false
	}
	if len(c.States) > 0 && !contains(c.States, p.State) {
		return false
	}
	if len(c.LGAs) > 0 && !contains(c.LGAs, p.LGA) {
		return false
	}
	if c.Gender != models.GenderAll && c.Gender != p.Gender {
		return false
	}
	if c.AgeMin != nil && p.Age < *c.AgeMin {
		return false
	}
	if c.AgeMax != nil && p.Age > *c.AgeMax {
		return false
	}
	return c.CurrentAmount >= AllocationAmount(c, cost)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
