package authz

import "fmt"

// Reason is a stable, machine-checkable denial code carried by every Deny
// outcome. The strings are part of the API error contract.
type Reason string

const (
	ReasonNotOwner                    Reason = "NotOwner"
	ReasonNotSupervisorOf             Reason = "NotSupervisorOf"
	ReasonRoleNotPermitted            Reason = "RoleNotPermitted"
	ReasonInvalidPromoter             Reason = "InvalidPromoter"
	ReasonClientNotOwned              Reason = "ClientNotOwned"
	ReasonVisitRequiresAssignedClient Reason = "VisitRequiresAssignedClient"
	ReasonLastAdministrator           Reason = "LastAdministrator"
)

// AuthorizationError is a Deny outcome surfaced as an error. It maps to a 403
// at the HTTP boundary for every role, including when the resource exists but
// is out of scope, so status codes never leak existence.
type AuthorizationError struct {
	Reason Reason
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authz: denied (%s)", e.Reason)
}

// ReasonCode returns the stable denial code.
func (e *AuthorizationError) ReasonCode() Reason { return e.Reason }

// Denied builds an AuthorizationError for the given reason.
func Denied(reason Reason) error {
	return &AuthorizationError{Reason: reason}
}

// ValidationError flags malformed input to a validator, such as reassigning
// ownership to a user that does not exist or lacks the required role.
type ValidationError struct {
	Reason Reason
	Msg    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("authz: %s", e.Msg)
}

// ReasonCode returns the stable code, if the validation failure carries one.
func (e *ValidationError) ReasonCode() Reason { return e.Reason }

// InvariantViolation marks a state transition that would break a system-wide
// guarantee. Retrying with the same input can never succeed, and a violation
// inside a transactional update must abort the whole transaction.
type InvariantViolation struct {
	Reason Reason
	Msg    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("authz: invariant violated (%s): %s", e.Reason, e.Msg)
}

// ReasonCode returns the stable code for the violated invariant.
func (e *InvariantViolation) ReasonCode() Reason { return e.Reason }
