package perf

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
)

type flatDirectory struct {
	users map[uuid.UUID]authz.User
}

func (d flatDirectory) FindUser(ctx context.Context, id uuid.UUID) (authz.User, error) {
	user, ok := d.users[id]
	if !ok {
		return authz.User{}, authz.ErrUserNotFound
	}
	return user, nil
}

func (d flatDirectory) PromotersOf(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, user := range d.users {
		if user.Role == authz.RolePromoter && user.SupervisorID != nil && *user.SupervisorID == supervisorID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Access decisions sit on every request path, so a single decision must stay
// well under a millisecond even for the supervisor case that needs a
// directory lookup.
func TestDecisionLatencyTargets(t *testing.T) {
	supervisorID := uuid.New()
	promoterID := uuid.New()
	dir := flatDirectory{users: map[uuid.UUID]authz.User{
		supervisorID: {ID: supervisorID, Role: authz.RoleSupervisor, Active: true},
		promoterID:   {ID: promoterID, Role: authz.RolePromoter, SupervisorID: &supervisorID, Active: true},
	}}
	engine := authz.NewEngine(dir)

	scenarios := []struct {
		name      string
		principal authz.Principal
		threshold time.Duration
	}{
		{
			name:      "owner",
			principal: authz.Principal{ID: promoterID, Role: authz.RolePromoter, Active: true},
			threshold: 200 * time.Microsecond,
		},
		{
			name:      "supervisor",
			principal: authz.Principal{ID: supervisorID, Role: authz.RoleSupervisor, Active: true},
			threshold: time.Millisecond,
		},
	}

	resource := authz.ClientResource(&promoterID)
	ctx := context.Background()
	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 200)
		for i := 0; i < 200; i++ {
			start := time.Now()
			decision, err := engine.Decide(ctx, scenario.principal, authz.ActionRead, resource)
			if err != nil {
				t.Fatalf("%s decision failed: %v", scenario.name, err)
			}
			if !decision.Allowed {
				t.Fatalf("%s decision unexpectedly denied: %s", scenario.name, decision.Reason)
			}
			samples = append(samples, time.Since(start))
		}
		if p95 := percentile95(samples); p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
