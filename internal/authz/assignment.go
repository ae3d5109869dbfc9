package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AssignmentValidator enforces the rules around re-parenting resources in the
// ownership tree: clients to promoters, promoters to supervisors, and the
// role/activity transitions guarded by the last-administrator invariant.
//
// The validator never writes. Callers apply the mutation inside the same
// transaction that produced the inputs, so the guarded count and the write
// form one atomic unit.
type AssignmentValidator struct {
	dir Directory
}

// NewAssignmentValidator builds a validator over the given directory.
func NewAssignmentValidator(dir Directory) *AssignmentValidator {
	return &AssignmentValidator{dir: dir}
}

// ValidateClientReassignment checks that the principal may hand a client to
// newPromoterID. Reassigning a client to its current owner is a no-op the
// caller should treat as success, not an error.
func (v *AssignmentValidator) ValidateClientReassignment(ctx context.Context, p Principal, newPromoterID uuid.UUID) error {
	if !p.acts() {
		return Denied(ReasonRoleNotPermitted)
	}
	switch p.Role.Tier() {
	case TierAdministrator, TierSupervisor:
	default:
		return Denied(ReasonRoleNotPermitted)
	}

	target, err := v.dir.FindUser(ctx, newPromoterID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &ValidationError{
				Reason: ReasonInvalidPromoter,
				Msg:    fmt.Sprintf("promoter %s not found", newPromoterID),
			}
		}
		return err
	}
	if target.Role != RolePromoter {
		return &ValidationError{
			Reason: ReasonInvalidPromoter,
			Msg:    fmt.Sprintf("user %s does not hold role PROMOTER", newPromoterID),
		}
	}

	if p.Role.Tier() == TierSupervisor {
		if target.SupervisorID == nil || *target.SupervisorID != p.ID {
			return Denied(ReasonNotSupervisorOf)
		}
	}
	return nil
}

// ValidatePromoterTransfer checks re-parenting a promoter to a different
// supervisor. A nil newSupervisorID unassigns. Administrators may move any
// promoter; a supervisor may only claim an unclaimed promoter for themselves
// or release one of their own.
func (v *AssignmentValidator) ValidatePromoterTransfer(ctx context.Context, p Principal, promoterID uuid.UUID, newSupervisorID *uuid.UUID) error {
	if !p.acts() {
		return Denied(ReasonRoleNotPermitted)
	}

	promoter, err := v.dir.FindUser(ctx, promoterID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &ValidationError{
				Reason: ReasonInvalidPromoter,
				Msg:    fmt.Sprintf("promoter %s not found", promoterID),
			}
		}
		return err
	}
	if promoter.Role != RolePromoter {
		return &ValidationError{
			Reason: ReasonInvalidPromoter,
			Msg:    fmt.Sprintf("user %s does not hold role PROMOTER", promoterID),
		}
	}

	// The supervisor edge must always land on a SUPERVISOR.
	if newSupervisorID != nil {
		supervisor, err := v.dir.FindUser(ctx, *newSupervisorID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return &ValidationError{Msg: fmt.Sprintf("supervisor %s not found", *newSupervisorID)}
			}
			return err
		}
		if supervisor.Role != RoleSupervisor {
			return &ValidationError{Msg: fmt.Sprintf("user %s does not hold role SUPERVISOR", *newSupervisorID)}
		}
	}

	switch p.Role.Tier() {
	case TierAdministrator:
		return nil
	case TierSupervisor:
		if newSupervisorID != nil {
			if *newSupervisorID != p.ID {
				return Denied(ReasonNotSupervisorOf)
			}
			return nil
		}
		if promoter.SupervisorID == nil || *promoter.SupervisorID != p.ID {
			return Denied(ReasonNotSupervisorOf)
		}
		return nil
	default:
		return Denied(ReasonRoleNotPermitted)
	}
}

// ValidateRoleChange guards changing target's role to newRole.
// otherActiveAdmins is the count of active Administrator-tier users excluding
// the target, read inside the caller's transaction.
func (v *AssignmentValidator) ValidateRoleChange(p Principal, target User, newRole Role, otherActiveAdmins int64) error {
	if !p.acts() || !p.Administrator() {
		return Denied(ReasonRoleNotPermitted)
	}
	if !newRole.Valid() {
		return &ValidationError{Msg: fmt.Sprintf("unknown role %q", newRole)}
	}
	demotes := target.Role.Tier() == TierAdministrator && newRole.Tier() != TierAdministrator
	if demotes && target.Active && otherActiveAdmins == 0 {
		return &InvariantViolation{
			Reason: ReasonLastAdministrator,
			Msg:    "demoting the last active administrator",
		}
	}
	return nil
}

// ValidateActivation guards flipping target's active flag. Reactivating is
// always allowed; deactivating the last active administrator is not.
func (v *AssignmentValidator) ValidateActivation(p Principal, target User, active bool, otherActiveAdmins int64) error {
	if !p.acts() || !p.Administrator() {
		return Denied(ReasonRoleNotPermitted)
	}
	if active {
		return nil
	}
	if target.Role.Tier() == TierAdministrator && target.Active && otherActiveAdmins == 0 {
		return &InvariantViolation{
			Reason: ReasonLastAdministrator,
			Msg:    "deactivating the last active administrator",
		}
	}
	return nil
}
