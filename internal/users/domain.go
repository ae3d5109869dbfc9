// Package users manages accounts: listing and search for administrators,
// role and activation transitions guarded by the last-administrator rule,
// and the supervisor/promoter roster edges.
package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
)

// User represents an account in the system.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone,omitempty"`
	Role         authz.Role `json:"role"`
	SupervisorID *uuid.UUID `json:"supervisorId,omitempty"`
	Active       bool       `json:"active"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// DirectoryView projects the account onto the authorization directory record.
func (u User) DirectoryView() authz.User {
	return authz.User{
		ID:           u.ID,
		Role:         u.Role,
		SupervisorID: u.SupervisorID,
		Active:       u.Active,
	}
}
