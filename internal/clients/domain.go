// Package clients manages the client directory: the businesses promoters
// visit. Every read and write is bounded by the caller's ownership scope.
package clients

import (
	"time"

	"github.com/google/uuid"
)

// Client represents a business in the directory. A nil PromoterID means the
// client is unassigned and sits in the shared pool.
type Client struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	BusinessType string     `json:"businessType,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Email        string     `json:"email,omitempty"`
	Address      string     `json:"address,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	PromoterID   *uuid.UUID `json:"promoterId,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// Deleted reports whether the client is soft deleted.
func (c Client) Deleted() bool { return c.DeletedAt != nil }
