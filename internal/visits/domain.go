// Package visits records promoter visits to clients: where, when, what for
// and how it went. A visit is always owned by the promoter who performed it;
// ownership never changes after creation.
package visits

import (
	"time"

	"github.com/google/uuid"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
)

// Status is the visit lifecycle state.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

// Valid reports whether the status belongs to the closed enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Purpose is the reason for the visit.
type Purpose string

const (
	PurposeSales     Purpose = "SALES"
	PurposeFollowUp  Purpose = "FOLLOW_UP"
	PurposeDelivery  Purpose = "DELIVERY"
	PurposeTraining  Purpose = "TRAINING"
	PurposeComplaint Purpose = "COMPLAINT"
	PurposeOther     Purpose = "OTHER"
)

// Valid reports whether the purpose belongs to the closed enumeration.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeSales, PurposeFollowUp, PurposeDelivery, PurposeTraining, PurposeComplaint, PurposeOther:
		return true
	}
	return false
}

// Visit represents a recorded client visit.
type Visit struct {
	ID         uuid.UUID  `json:"id"`
	PromoterID uuid.UUID  `json:"promoterId"`
	ClientID   uuid.UUID  `json:"clientId"`
	Date       time.Time  `json:"date"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	Address    string     `json:"address,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Photos     []string   `json:"photos,omitempty"`
	Signature  string     `json:"signature,omitempty"`
	Status     Status     `json:"status"`
	Purpose    Purpose    `json:"purpose"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// ValidateCoordinates checks latitude/longitude ranges. Both must be present
// together or absent together.
func ValidateCoordinates(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return &authz.ValidationError{Msg: "latitude and longitude must be provided together"}
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 {
		return &authz.ValidationError{Msg: "latitude out of range"}
	}
	if *lng < -180 || *lng > 180 {
		return &authz.ValidationError{Msg: "longitude out of range"}
	}
	return nil
}

// Stats aggregates visit counts within a scope.
type Stats struct {
	Total     int64             `json:"total"`
	ByStatus  map[Status]int64  `json:"byStatus"`
	ByPurpose map[Purpose]int64 `json:"byPurpose"`
}
