package models

import "time"

// Patient carries the demographic profile campaign targeting runs
// against.
type Patient struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name"`
	Gender      Gender    `json:"gender"`
	DateOfBirth time.Time `json:"date_of_birth"`
	State       string    `json:"state"`
	LGA         string    `json:"lga"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
}

// AgeAt returns whole years lived as of t.
func (p *Patient) AgeAt(t time.Time) int {
	age := t.Year() - p.DateOfBirth.Year()
	if t.YearDay() < p.DateOfBirth.YearDay() {
		age--
	}
	return age
}
