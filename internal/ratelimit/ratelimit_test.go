package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/ratelimit"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

func newPolicy(t *testing.T, config ratelimit.Config) (*ratelimit.Policy, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return ratelimit.NewPolicy(client, config), mr
}

func okHandler() (http.Handler, *int) {
	var hits int
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}), &hits
}

func requestAs(p *authz.Principal) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.RemoteAddr = "203.0.113.7:4444"
	if p != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), *p))
	}
	return req
}

func TestLimitEnforcedPerPrincipal(t *testing.T) {
	policy, _ := newPolicy(t, ratelimit.Config{
		Read: ratelimit.Limit{Requests: 2, Window: time.Minute},
	})
	handler, hits := okHandler()
	limited := policy.Middleware(ratelimit.ClassRead)(handler)

	promoter := authz.Principal{ID: uuid.New(), Role: authz.RolePromoter, Active: true}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, requestAs(&promoter))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, requestAs(&promoter))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	// The denied request never reached the handler.
	assert.Equal(t, 2, *hits)

	// A different principal has its own budget.
	other := authz.Principal{ID: uuid.New(), Role: authz.RolePromoter, Active: true}
	rec = httptest.NewRecorder()
	limited.ServeHTTP(rec, requestAs(&other))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdministratorBypassesLimits(t *testing.T) {
	policy, _ := newPolicy(t, ratelimit.Config{
		Read: ratelimit.Limit{Requests: 1, Window: time.Minute},
	})
	handler, hits := okHandler()
	limited := policy.Middleware(ratelimit.ClassRead)(handler)

	admin := authz.Principal{ID: uuid.New(), Role: authz.RoleSuperAdmin, Active: true}
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, requestAs(&admin))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 10, *hits)
}

func TestUnauthenticatedKeyedByIP(t *testing.T) {
	policy, _ := newPolicy(t, ratelimit.Config{
		Auth: ratelimit.Limit{Requests: 1, Window: time.Minute},
	})
	handler, _ := okHandler()
	limited := policy.Middleware(ratelimit.ClassAuth)(handler)

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, requestAs(nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	limited.ServeHTTP(rec, requestAs(nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClassesHaveSeparateBudgets(t *testing.T) {
	policy, _ := newPolicy(t, ratelimit.Config{
		Read:   ratelimit.Limit{Requests: 1, Window: time.Minute},
		Mutate: ratelimit.Limit{Requests: 1, Window: time.Minute},
	})
	readHandler, _ := okHandler()
	mutateHandler, _ := okHandler()
	read := policy.Middleware(ratelimit.ClassRead)(readHandler)
	mutate := policy.Middleware(ratelimit.ClassMutate)(mutateHandler)

	promoter := authz.Principal{ID: uuid.New(), Role: authz.RolePromoter, Active: true}

	rec := httptest.NewRecorder()
	read.ServeHTTP(rec, requestAs(&promoter))
	require.Equal(t, http.StatusOK, rec.Code)

	// Exhausting the read budget leaves the mutate budget untouched.
	rec = httptest.NewRecorder()
	read.ServeHTTP(rec, requestAs(&promoter))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	mutate.ServeHTTP(rec, requestAs(&promoter))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRedisOutageAdmits(t *testing.T) {
	policy, mr := newPolicy(t, ratelimit.DefaultConfig())
	handler, hits := okHandler()
	limited := policy.Middleware(ratelimit.ClassRead)(handler)
	mr.Close()

	promoter := authz.Principal{ID: uuid.New(), Role: authz.RolePromoter, Active: true}
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, requestAs(&promoter))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *hits)
}
