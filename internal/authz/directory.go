package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned by Directory implementations when an ID does
// not resolve to a user.
var ErrUserNotFound = errors.New("authz: user not found")

// User is the slice of a user record the engine needs: identity, role and the
// supervisor edge of the ownership tree.
type User struct {
	ID           uuid.UUID
	Role         Role
	SupervisorID *uuid.UUID
	Active       bool
}

// Directory is the read-side port into the user store. Implementations must
// be safe for concurrent use; the engine performs at most one lookup per
// decision.
type Directory interface {
	// FindUser resolves a user by ID, returning ErrUserNotFound when absent.
	FindUser(ctx context.Context, id uuid.UUID) (User, error)
	// PromotersOf lists the IDs of users with role PROMOTER supervised by the
	// given supervisor.
	PromotersOf(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error)
}
