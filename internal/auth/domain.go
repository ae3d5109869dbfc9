// Package auth resolves bearer credentials into an authz.Principal and owns
// the login/refresh/logout endpoints. The authorization core consumes the
// principal; it never sees tokens or passwords.
package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
)

// User represents an authenticatable account.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         authz.Role
	Active       bool
	LastLoginAt  *time.Time
}

// Principal projects the account onto what the authorization engine needs.
func (u User) Principal() authz.Principal {
	return authz.Principal{ID: u.ID, Role: u.Role, Active: u.Active}
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
