package users_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
	"github.com/narck25/gestion-visitas-promotores/internal/users"
)

// fakeRepo keeps accounts in memory. The guarded mutations serialize on a
// mutex the way the real repository serializes on the database transaction.
type fakeRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*users.User
}

func newFakeRepo(seed ...*users.User) *fakeRepo {
	repo := &fakeRepo{users: map[uuid.UUID]*users.User{}}
	for _, u := range seed {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeRepo) FindUser(ctx context.Context, id uuid.UUID) (authz.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return authz.User{}, authz.ErrUserNotFound
	}
	return u.DirectoryView(), nil
}

func (f *fakeRepo) PromotersOf(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, u := range f.users {
		if u.Role == authz.RolePromoter && u.SupervisorID != nil && *u.SupervisorID == supervisorID {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeRepo) ListUsers(ctx context.Context, params users.ListParams) ([]users.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []users.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeRepo) ListPromoterRoster(ctx context.Context, supervisorID uuid.UUID) ([]users.PromoterSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var roster []users.PromoterSummary
	for _, u := range f.users {
		if u.Role == authz.RolePromoter && u.SupervisorID != nil && *u.SupervisorID == supervisorID {
			roster = append(roster, users.PromoterSummary{User: *u})
		}
	}
	return roster, nil
}

func (f *fakeRepo) CreateUser(ctx context.Context, user *users.User, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeRepo) UpdateRoleGuarded(ctx context.Context, targetID uuid.UUID, newRole authz.Role,
	guard func(target authz.User, otherActiveAdmins int64) error) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.users[targetID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if err := guard(target.DirectoryView(), f.otherActiveAdminsLocked(targetID)); err != nil {
		return nil, err
	}
	target.Role = newRole
	copied := *target
	return &copied, nil
}

func (f *fakeRepo) SetActiveGuarded(ctx context.Context, targetID uuid.UUID, active bool,
	guard func(target authz.User, otherActiveAdmins int64) error) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.users[targetID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if err := guard(target.DirectoryView(), f.otherActiveAdminsLocked(targetID)); err != nil {
		return nil, err
	}
	target.Active = active
	copied := *target
	return &copied, nil
}

func (f *fakeRepo) SetSupervisor(ctx context.Context, promoterID uuid.UUID, supervisorID *uuid.UUID) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.users[promoterID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	target.SupervisorID = supervisorID
	copied := *target
	return &copied, nil
}

func (f *fakeRepo) otherActiveAdminsLocked(excluding uuid.UUID) int64 {
	var count int64
	for _, u := range f.users {
		if u.ID == excluding {
			continue
		}
		if u.Active && u.Role.Tier() == authz.TierAdministrator {
			count++
		}
	}
	return count
}

func newAccount(role authz.Role, supervisorID *uuid.UUID) *users.User {
	return &users.User{
		ID:     uuid.New(),
		Email:  uuid.NewString() + "@example.com",
		Name:   "User " + string(role),
		Role:   role,
		Active: true,

		SupervisorID: supervisorID,
	}
}

func newService(repo *fakeRepo) *users.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return users.NewService(logger, repo, authz.NewAssignmentValidator(repo), nil)
}

func principalOf(u *users.User) authz.Principal {
	return authz.Principal{ID: u.ID, Role: u.Role, Active: u.Active}
}

func TestChangeRoleDemotingLastAdminBlocked(t *testing.T) {
	admin := newAccount(authz.RoleAdmin, nil)
	repo := newFakeRepo(admin)
	svc := newService(repo)

	_, err := svc.ChangeRole(context.Background(), principalOf(admin), admin.ID, authz.RoleSupervisor)
	var violation *authz.InvariantViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, authz.ReasonLastAdministrator, violation.Reason)
}

func TestChangeRoleWithAnotherAdminSucceeds(t *testing.T) {
	admin := newAccount(authz.RoleAdmin, nil)
	other := newAccount(authz.RoleSuperAdmin, nil)
	repo := newFakeRepo(admin, other)
	svc := newService(repo)

	updated, err := svc.ChangeRole(context.Background(), principalOf(other), admin.ID, authz.RoleSupervisor)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleSupervisor, updated.Role)
}

func TestChangeRoleRequiresAdministrator(t *testing.T) {
	admin := newAccount(authz.RoleAdmin, nil)
	supervisor := newAccount(authz.RoleSupervisor, nil)
	repo := newFakeRepo(admin, supervisor)
	svc := newService(repo)

	_, err := svc.ChangeRole(context.Background(), principalOf(supervisor), admin.ID, authz.RoleViewer)
	var denial *authz.AuthorizationError
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, authz.ReasonRoleNotPermitted, denial.Reason)
}

func TestDeactivateLastAdminBlocked(t *testing.T) {
	admin := newAccount(authz.RoleAdmin, nil)
	repo := newFakeRepo(admin)
	svc := newService(repo)

	_, err := svc.SetActive(context.Background(), principalOf(admin), admin.ID, false)
	var violation *authz.InvariantViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, authz.ReasonLastAdministrator, violation.Reason)
}

func TestReactivationAlwaysAllowed(t *testing.T) {
	admin := newAccount(authz.RoleAdmin, nil)
	dormant := newAccount(authz.RoleAdmin, nil)
	dormant.Active = false
	repo := newFakeRepo(admin, dormant)
	svc := newService(repo)

	updated, err := svc.SetActive(context.Background(), principalOf(admin), dormant.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Active)
}

// Two administrators deactivating each other concurrently must not leave the
// system without an active administrator: exactly one call succeeds.
func TestConcurrentDeactivationLeavesOneAdmin(t *testing.T) {
	adminA := newAccount(authz.RoleAdmin, nil)
	adminB := newAccount(authz.RoleAdmin, nil)
	repo := newFakeRepo(adminA, adminB)
	svc := newService(repo)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.SetActive(context.Background(), principalOf(adminA), adminB.ID, false)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = svc.SetActive(context.Background(), principalOf(adminB), adminA.ID, false)
	}()
	wg.Wait()

	var denied int
	for _, err := range errs {
		if err != nil {
			var violation *authz.InvariantViolation
			require.ErrorAs(t, err, &violation)
			assert.Equal(t, authz.ReasonLastAdministrator, violation.Reason)
			denied++
		}
	}
	assert.Equal(t, 1, denied, "exactly one deactivation must be denied")

	active := 0
	for _, u := range []uuid.UUID{adminA.ID, adminB.ID} {
		loaded, err := repo.FindByID(context.Background(), u)
		require.NoError(t, err)
		if loaded.Active {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestTransferPromoterBySupervisor(t *testing.T) {
	supervisor := newAccount(authz.RoleSupervisor, nil)
	promoter := newAccount(authz.RolePromoter, nil)
	repo := newFakeRepo(supervisor, promoter)
	svc := newService(repo)

	// Claiming an unclaimed promoter for themselves is allowed.
	updated, err := svc.TransferPromoter(context.Background(), principalOf(supervisor), promoter.ID, &supervisor.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.SupervisorID)
	assert.Equal(t, supervisor.ID, *updated.SupervisorID)

	// Releasing their own promoter is allowed.
	updated, err = svc.TransferPromoter(context.Background(), principalOf(supervisor), promoter.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.SupervisorID)
}

func TestTransferPromoterToForeignSupervisorDenied(t *testing.T) {
	supervisorA := newAccount(authz.RoleSupervisor, nil)
	supervisorB := newAccount(authz.RoleSupervisor, nil)
	promoter := newAccount(authz.RolePromoter, &supervisorA.ID)
	repo := newFakeRepo(supervisorA, supervisorB, promoter)
	svc := newService(repo)

	_, err := svc.TransferPromoter(context.Background(), principalOf(supervisorA), promoter.ID, &supervisorB.ID)
	var denial *authz.AuthorizationError
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, authz.ReasonNotSupervisorOf, denial.Reason)
}

func TestTransferPromoterTargetMustBePromoter(t *testing.T) {
	admin := newAccount(authz.RoleAdmin, nil)
	viewer := newAccount(authz.RoleViewer, nil)
	repo := newFakeRepo(admin, viewer)
	svc := newService(repo)

	_, err := svc.TransferPromoter(context.Background(), principalOf(admin), viewer.ID, nil)
	var invalid *authz.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, authz.ReasonInvalidPromoter, invalid.Reason)
}

func TestListUsersAdministratorOnly(t *testing.T) {
	admin := newAccount(authz.RoleAdmin, nil)
	promoter := newAccount(authz.RolePromoter, nil)
	repo := newFakeRepo(admin, promoter)
	svc := newService(repo)

	list, page, err := svc.ListUsers(context.Background(), principalOf(admin), users.ListParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, page.Total)

	_, _, err = svc.ListUsers(context.Background(), principalOf(promoter), users.ListParams{})
	var denial *authz.AuthorizationError
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, authz.ReasonRoleNotPermitted, denial.Reason)
}

func TestPromoterRosterScoping(t *testing.T) {
	admin := newAccount(authz.RoleAdmin, nil)
	supervisorA := newAccount(authz.RoleSupervisor, nil)
	supervisorB := newAccount(authz.RoleSupervisor, nil)
	p1 := newAccount(authz.RolePromoter, &supervisorA.ID)
	p2 := newAccount(authz.RolePromoter, &supervisorB.ID)
	repo := newFakeRepo(admin, supervisorA, supervisorB, p1, p2)
	svc := newService(repo)

	roster, err := svc.PromoterRoster(context.Background(), principalOf(supervisorA), nil)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, p1.ID, roster[0].ID)

	// A supervisor cannot read another supervisor's roster.
	_, err = svc.PromoterRoster(context.Background(), principalOf(supervisorA), &supervisorB.ID)
	var denial *authz.AuthorizationError
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, authz.ReasonNotSupervisorOf, denial.Reason)

	// An administrator can.
	roster, err = svc.PromoterRoster(context.Background(), principalOf(admin), &supervisorB.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, p2.ID, roster[0].ID)
}

func TestCreateUserAdministratorOnly(t *testing.T) {
	admin := newAccount(authz.RoleAdmin, nil)
	supervisor := newAccount(authz.RoleSupervisor, nil)
	repo := newFakeRepo(admin, supervisor)
	svc := newService(repo)

	created, err := svc.CreateUser(context.Background(), principalOf(admin),
		&users.User{Email: "new@example.com", Name: "New", Role: authz.RolePromoter, Active: true},
		"hunter2hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	_, err = svc.CreateUser(context.Background(), principalOf(supervisor),
		&users.User{Email: "x@example.com", Name: "X", Role: authz.RolePromoter, Active: true},
		"hunter2hunter2")
	var denial *authz.AuthorizationError
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, authz.ReasonRoleNotPermitted, denial.Reason)
}
