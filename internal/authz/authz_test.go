package authz

import (
	"context"

	"github.com/google/uuid"
)

// fakeDirectory is an in-memory Directory for engine tests.
type fakeDirectory struct {
	users map[uuid.UUID]User
	err   error
}

func newFakeDirectory(users ...User) *fakeDirectory {
	dir := &fakeDirectory{users: make(map[uuid.UUID]User, len(users))}
	for _, u := range users {
		dir.users[u.ID] = u
	}
	return dir
}

func (d *fakeDirectory) FindUser(_ context.Context, id uuid.UUID) (User, error) {
	if d.err != nil {
		return User{}, d.err
	}
	user, ok := d.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (d *fakeDirectory) PromotersOf(_ context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error) {
	if d.err != nil {
		return nil, d.err
	}
	var ids []uuid.UUID
	for _, u := range d.users {
		if u.Role == RolePromoter && u.SupervisorID != nil && *u.SupervisorID == supervisorID {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func adminPrincipal(id uuid.UUID) Principal {
	return Principal{ID: id, Role: RoleAdmin, Active: true}
}

func supervisorPrincipal(id uuid.UUID) Principal {
	return Principal{ID: id, Role: RoleSupervisor, Active: true}
}

func promoterPrincipal(id uuid.UUID) Principal {
	return Principal{ID: id, Role: RolePromoter, Active: true}
}

func viewerPrincipal(id uuid.UUID) Principal {
	return Principal{ID: id, Role: RoleViewer, Active: true}
}
