package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Action names the operations the engine rules on.
type Action string

const (
	ActionRead       Action = "read"
	ActionList       Action = "list"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionReassign   Action = "reassign"
	ActionChangeRole Action = "changeRole"
	ActionDeactivate Action = "deactivate"
)

func (a Action) mutates() bool {
	switch a {
	case ActionRead, ActionList:
		return false
	}
	return true
}

// Resource is the ownership view of a loaded Client or Visit. A nil
// PromoterID means an unassigned client; a visit always carries an owner.
type Resource struct {
	Type       ResourceType
	PromoterID *uuid.UUID
}

// ClientResource wraps a client's ownership for a decision.
func ClientResource(promoterID *uuid.UUID) Resource {
	return Resource{Type: ResourceClient, PromoterID: promoterID}
}

// VisitResource wraps a visit's ownership for a decision.
func VisitResource(promoterID uuid.UUID) Resource {
	return Resource{Type: ResourceVisit, PromoterID: &promoterID}
}

// Decision is the outcome of an access check. A denied decision always
// carries a stable reason code.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow is the positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny is the negative decision with its reason.
func Deny(reason Reason) Decision { return Decision{Reason: reason} }

// Err converts a denied decision into an AuthorizationError, or nil when the
// decision allows.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return Denied(d.Reason)
}

// Engine answers single-resource access questions against loaded resources.
// It deliberately re-validates independently of the scope resolver: a list
// filter protects queries, not lookups of a guessed ID. Decisions are made
// before any write begins and the engine itself mutates nothing.
type Engine struct {
	dir Directory
}

// NewEngine builds an Engine over the given directory.
func NewEngine(dir Directory) *Engine {
	return &Engine{dir: dir}
}

// Decide rules on a principal performing an action on a loaded resource.
// The returned error is reserved for infrastructure failures and ownership
// edges that no longer resolve; everything policy-shaped lands in Decision.
func (e *Engine) Decide(ctx context.Context, p Principal, action Action, res Resource) (Decision, error) {
	if !p.acts() {
		return Deny(ReasonRoleNotPermitted), nil
	}

	if p.Administrator() {
		return Allow(), nil
	}

	switch p.Role.Tier() {
	case TierSupervisor:
		return e.decideViaSupervisedPromoter(ctx, p, action, res)

	case TierViewer:
		// VIEWER reads through the supervised span and never mutates.
		if action.mutates() {
			return Deny(ReasonRoleNotPermitted), nil
		}
		return e.decideViaSupervisedPromoter(ctx, p, action, res)

	case TierPromoter:
		switch action {
		case ActionReassign, ActionChangeRole, ActionDeactivate:
			return Deny(ReasonRoleNotPermitted), nil
		}
		if res.PromoterID != nil && *res.PromoterID == p.ID {
			return Allow(), nil
		}
		return Deny(ReasonNotOwner), nil
	}

	return Deny(ReasonRoleNotPermitted), nil
}

// decideViaSupervisedPromoter resolves the owning promoter and checks the
// supervision edge. Unassigned clients are readable (they are poolable by any
// supervisor) but not mutable through this path.
func (e *Engine) decideViaSupervisedPromoter(ctx context.Context, p Principal, action Action, res Resource) (Decision, error) {
	if res.PromoterID == nil {
		if res.Type == ResourceClient && !action.mutates() {
			return Allow(), nil
		}
		return Deny(ReasonNotSupervisorOf), nil
	}

	owner, err := e.dir.FindUser(ctx, *res.PromoterID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Decision{}, &InvariantViolation{
				Reason: ReasonInvalidPromoter,
				Msg:    fmt.Sprintf("%s owned by missing promoter %s", res.Type, *res.PromoterID),
			}
		}
		return Decision{}, err
	}
	if owner.SupervisorID != nil && *owner.SupervisorID == p.ID {
		return Allow(), nil
	}
	return Deny(ReasonNotSupervisorOf), nil
}

// CanCreateVisit gates visit creation on read access to the target client.
// Creating a visit against an unassigned client denies for every role below
// Administrator, since the visit's promoter must resolve to a concrete user.
func (e *Engine) CanCreateVisit(ctx context.Context, p Principal, client Resource) (Decision, error) {
	if !p.acts() {
		return Deny(ReasonRoleNotPermitted), nil
	}
	if p.Administrator() {
		return Allow(), nil
	}
	if p.Role.Tier() == TierViewer {
		return Deny(ReasonRoleNotPermitted), nil
	}
	if client.PromoterID == nil {
		return Deny(ReasonVisitRequiresAssignedClient), nil
	}
	decision, err := e.Decide(ctx, p, ActionRead, client)
	if err != nil {
		return Decision{}, err
	}
	if !decision.Allowed {
		return Deny(ReasonClientNotOwned), nil
	}
	return Allow(), nil
}
