package models

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleAdmin       = "admin"
	RoleCenterStaff = "center_staff"
	RolePatient     = "patient"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CenterID     *string   `json:"center_id,omitempty"` // set for center staff
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) Validate() error {
	if !strings.Contains(u.Email, "@") {
		return errors.New("invalid email")
	}
	switch u.Role {
	case RoleAdmin, RolePatient:
	case RoleCenterStaff:
		if u.CenterID == nil {
			return errors.New("center staff needs a center")
		}
	case "":
		u.Role = RolePatient
	default:
		return errors.New("unknown role")
	}
	return nil
}
