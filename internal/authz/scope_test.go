package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScope_AdministratorUnrestricted(t *testing.T) {
	resolver := NewResolver(newFakeDirectory())
	admin := adminPrincipal(uuid.New())

	filter, err := resolver.ResolveScope(context.Background(), admin, ResourceClient, nil)
	require.NoError(t, err)
	assert.Equal(t, Unrestricted{}, filter)
}

func TestResolveScope_AdministratorExplicitFilterVerbatim(t *testing.T) {
	resolver := NewResolver(newFakeDirectory())
	admin := adminPrincipal(uuid.New())
	promoterID := uuid.New()

	filter, err := resolver.ResolveScope(context.Background(), admin, ResourceVisit, &promoterID)
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: FieldPromoterID, Value: promoterID}, filter)
}

func TestResolveScope_SupervisorClientsIncludeUnassigned(t *testing.T) {
	supervisorID := uuid.New()
	promoterID := uuid.New()
	dir := newFakeDirectory(
		User{ID: promoterID, Role: RolePromoter, SupervisorID: ptr(supervisorID), Active: true},
	)
	resolver := NewResolver(dir)

	filter, err := resolver.ResolveScope(context.Background(), supervisorPrincipal(supervisorID), ResourceClient, nil)
	require.NoError(t, err)

	or, ok := filter.(Or)
	require.True(t, ok, "expected Or filter, got %T", filter)
	require.Len(t, or.Filters, 2)
	assert.Equal(t, In{Field: FieldPromoterID, Values: []any{promoterID}}, or.Filters[0])
	assert.Equal(t, Equals{Field: FieldPromoterID, Value: nil}, or.Filters[1])
}

func TestResolveScope_SupervisorVisitsExcludeUnassigned(t *testing.T) {
	supervisorID := uuid.New()
	promoterID := uuid.New()
	dir := newFakeDirectory(
		User{ID: promoterID, Role: RolePromoter, SupervisorID: ptr(supervisorID), Active: true},
	)
	resolver := NewResolver(dir)

	filter, err := resolver.ResolveScope(context.Background(), supervisorPrincipal(supervisorID), ResourceVisit, nil)
	require.NoError(t, err)
	assert.Equal(t, In{Field: FieldPromoterID, Values: []any{promoterID}}, filter)
}

func TestResolveScope_SupervisorExplicitFilterOutsideSpanFailsClosed(t *testing.T) {
	supervisorID := uuid.New()
	foreignPromoter := uuid.New()
	dir := newFakeDirectory(
		User{ID: foreignPromoter, Role: RolePromoter, SupervisorID: ptr(uuid.New()), Active: true},
	)
	resolver := NewResolver(dir)

	_, err := resolver.ResolveScope(context.Background(), supervisorPrincipal(supervisorID), ResourceClient, &foreignPromoter)
	var authzErr *AuthorizationError
	require.ErrorAs(t, err, &authzErr)
	assert.Equal(t, ReasonNotSupervisorOf, authzErr.Reason)
}

func TestResolveScope_SupervisorWithNoPromoters(t *testing.T) {
	resolver := NewResolver(newFakeDirectory())
	supervisorID := uuid.New()

	// Clients: only the unassigned pool remains visible.
	clientFilter, err := resolver.ResolveScope(context.Background(), supervisorPrincipal(supervisorID), ResourceClient, nil)
	require.NoError(t, err)
	clause, args := SQL(clientFilter, 1)
	assert.Equal(t, "(FALSE OR promoter_id IS NULL)", clause)
	assert.Empty(t, args)

	// Visits: nothing at all.
	visitFilter, err := resolver.ResolveScope(context.Background(), supervisorPrincipal(supervisorID), ResourceVisit, nil)
	require.NoError(t, err)
	clause, args = SQL(visitFilter, 1)
	assert.Equal(t, "FALSE", clause)
	assert.Empty(t, args)
}

func TestResolveScope_PromoterSelfScoped(t *testing.T) {
	resolver := NewResolver(newFakeDirectory())
	promoterID := uuid.New()

	filter, err := resolver.ResolveScope(context.Background(), promoterPrincipal(promoterID), ResourceClient, nil)
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: FieldPromoterID, Value: promoterID}, filter)
}

func TestResolveScope_PromoterCannotFilterByOtherPromoter(t *testing.T) {
	resolver := NewResolver(newFakeDirectory())
	other := uuid.New()

	_, err := resolver.ResolveScope(context.Background(), promoterPrincipal(uuid.New()), ResourceVisit, &other)
	var authzErr *AuthorizationError
	require.ErrorAs(t, err, &authzErr)
	assert.Equal(t, ReasonNotOwner, authzErr.Reason)
}

func TestResolveScope_ViewerScopesLikeReadOnlySupervisor(t *testing.T) {
	viewerID := uuid.New()
	promoterID := uuid.New()
	dir := newFakeDirectory(
		User{ID: promoterID, Role: RolePromoter, SupervisorID: ptr(viewerID), Active: true},
	)
	resolver := NewResolver(dir)

	filter, err := resolver.ResolveScope(context.Background(), viewerPrincipal(viewerID), ResourceVisit, nil)
	require.NoError(t, err)
	assert.Equal(t, In{Field: FieldPromoterID, Values: []any{promoterID}}, filter)
}

func TestResolveScope_UserListingAdministratorOnly(t *testing.T) {
	resolver := NewResolver(newFakeDirectory())

	filter, err := resolver.ResolveScope(context.Background(), adminPrincipal(uuid.New()), ResourceUser, nil)
	require.NoError(t, err)
	assert.Equal(t, Unrestricted{}, filter)

	for _, p := range []Principal{
		supervisorPrincipal(uuid.New()),
		promoterPrincipal(uuid.New()),
		viewerPrincipal(uuid.New()),
	} {
		_, err := resolver.ResolveScope(context.Background(), p, ResourceUser, nil)
		var authzErr *AuthorizationError
		require.ErrorAs(t, err, &authzErr, "role %s", p.Role)
		assert.Equal(t, ReasonRoleNotPermitted, authzErr.Reason)
	}
}

func TestResolveScope_InactivePrincipalFailsClosed(t *testing.T) {
	resolver := NewResolver(newFakeDirectory())
	p := Principal{ID: uuid.New(), Role: RoleAdmin, Active: false}

	_, err := resolver.ResolveScope(context.Background(), p, ResourceClient, nil)
	var authzErr *AuthorizationError
	require.ErrorAs(t, err, &authzErr)
	assert.Equal(t, ReasonRoleNotPermitted, authzErr.Reason)
}

func TestResolveScope_DirectoryErrorPropagates(t *testing.T) {
	dir := newFakeDirectory()
	dir.err = errors.New("directory unavailable")
	resolver := NewResolver(dir)

	_, err := resolver.ResolveScope(context.Background(), supervisorPrincipal(uuid.New()), ResourceClient, nil)
	require.ErrorIs(t, err, dir.err)
}

// Scenario from the supervisor workflow: S1 supervises P1; C1 belongs to P1,
// C2 is unassigned, and a client of an unrelated promoter stays invisible.
func TestResolveScope_SupervisorScenarioFilterMatches(t *testing.T) {
	s1 := uuid.New()
	p1 := uuid.New()
	p2 := uuid.New()
	dir := newFakeDirectory(
		User{ID: p1, Role: RolePromoter, SupervisorID: ptr(s1), Active: true},
		User{ID: p2, Role: RolePromoter, SupervisorID: ptr(uuid.New()), Active: true},
	)
	resolver := NewResolver(dir)

	filter, err := resolver.ResolveScope(context.Background(), supervisorPrincipal(s1), ResourceClient, nil)
	require.NoError(t, err)

	assert.True(t, matchesOwner(filter, ptr(p1)), "client of supervised promoter must match")
	assert.True(t, matchesOwner(filter, nil), "unassigned client must match")
	assert.False(t, matchesOwner(filter, ptr(p2)), "client of unrelated promoter must not match")
}

// matchesOwner evaluates the filter algebra against a single ownership value,
// mirroring what the SQL translation does row by row.
func matchesOwner(f Filter, owner *uuid.UUID) bool {
	switch v := f.(type) {
	case Unrestricted:
		return true
	case Equals:
		if v.Value == nil {
			return owner == nil
		}
		id, ok := v.Value.(uuid.UUID)
		return ok && owner != nil && *owner == id
	case In:
		if owner == nil {
			return false
		}
		for _, value := range v.Values {
			if id, ok := value.(uuid.UUID); ok && id == *owner {
				return true
			}
		}
		return false
	case Or:
		for _, branch := range v.Filters {
			if matchesOwner(branch, owner) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
