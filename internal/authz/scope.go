package authz

import (
	"context"

	"github.com/google/uuid"
)

// ResourceType names the entities the engine scopes.
type ResourceType string

const (
	ResourceClient ResourceType = "client"
	ResourceVisit  ResourceType = "visit"
	ResourceUser   ResourceType = "user"
)

// FieldPromoterID is the ownership column scope filters predicate on.
const FieldPromoterID = "promoter_id"

// Resolver turns a principal into a visibility predicate for list queries.
// It fails closed: an explicit promoter filter outside the principal's scope
// is an authorization error, never a silently widened or narrowed query.
type Resolver struct {
	dir Directory
}

// NewResolver builds a Resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// ResolveScope produces the ownership filter bounding what the principal may
// list for the resource type. filterPromoterID narrows the scope to a single
// promoter and is verified against the principal's span before use.
//
// Supervisors see clients of their promoters plus unassigned clients, and
// only visits of their promoters (a visit is never unassigned). VIEWER scopes
// like a read-only supervisor. Listing users is Administrator-only.
func (r *Resolver) ResolveScope(ctx context.Context, p Principal, resource ResourceType, filterPromoterID *uuid.UUID) (Filter, error) {
	if !p.acts() {
		return nil, Denied(ReasonRoleNotPermitted)
	}

	if resource == ResourceUser {
		if !p.Administrator() {
			return nil, Denied(ReasonRoleNotPermitted)
		}
		return Unrestricted{}, nil
	}

	switch p.Role.Tier() {
	case TierAdministrator:
		// Administrators may query anything; explicit filters pass verbatim.
		if filterPromoterID != nil {
			return Equals{Field: FieldPromoterID, Value: *filterPromoterID}, nil
		}
		return Unrestricted{}, nil

	case TierSupervisor, TierViewer:
		promoters, err := r.dir.PromotersOf(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if filterPromoterID != nil {
			if !containsID(promoters, *filterPromoterID) {
				return nil, Denied(ReasonNotSupervisorOf)
			}
			return Equals{Field: FieldPromoterID, Value: *filterPromoterID}, nil
		}
		if resource == ResourceClient {
			return Or{Filters: []Filter{
				InIDs(FieldPromoterID, promoters),
				Equals{Field: FieldPromoterID, Value: nil},
			}}, nil
		}
		return InIDs(FieldPromoterID, promoters), nil

	default: // TierPromoter
		if filterPromoterID != nil && *filterPromoterID != p.ID {
			return nil, Denied(ReasonNotOwner)
		}
		return Equals{Field: FieldPromoterID, Value: p.ID}, nil
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
