package authz

import "github.com/google/uuid"

// Principal is the authenticated actor behind a request. It is built per
// request from a validated credential and never persisted here.
type Principal struct {
	ID     uuid.UUID
	Role   Role
	Active bool
}

// Administrator reports whether the principal sits in the Administrator tier.
func (p Principal) Administrator() bool {
	return p.Role.Tier() == TierAdministrator
}

// acts reports whether the principal may act at all. Deactivated accounts and
// unknown roles fail closed regardless of what the credential claims.
func (p Principal) acts() bool {
	return p.Active && p.Role.Valid()
}
