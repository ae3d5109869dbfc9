// Package ratelimit bounds request rates per principal. Limits are keyed by
// the authenticated principal (falling back to client IP before auth) and a
// route class, counted in Redis so every instance shares one budget.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"

	"github.com/narck25/gestion-visitas-promotores/internal/platform/httpx"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

// Class names a request budget. Authentication attempts get a tight budget,
// reads a generous one, writes something in between.
type Class string

const (
	ClassAuth   Class = "auth"
	ClassRead   Class = "read"
	ClassMutate Class = "mutate"
)

// Limit is requests per window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Config holds the per-class limits.
type Config struct {
	Auth   Limit
	Read   Limit
	Mutate Limit
}

// DefaultConfig mirrors production defaults.
func DefaultConfig() Config {
	return Config{
		Auth:   Limit{Requests: 10, Window: time.Minute},
		Read:   Limit{Requests: 300, Window: time.Minute},
		Mutate: Limit{Requests: 60, Window: time.Minute},
	}
}

func (c Config) limit(class Class) Limit {
	switch class {
	case ClassAuth:
		return c.Auth
	case ClassMutate:
		return c.Mutate
	default:
		return c.Read
	}
}

// Policy is a fixed-window counter over Redis. The admission check runs
// before the handler, so a denied request performs no work beyond the check
// itself, and administrators bypass the count entirely.
type Policy struct {
	client *redis.Client
	config Config
}

// NewPolicy constructs a Policy.
func NewPolicy(client *redis.Client, config Config) *Policy {
	return &Policy{client: client, config: config}
}

// Allow reports whether one more request fits the key's budget, and the
// seconds to wait when it does not.
func (p *Policy) Allow(ctx context.Context, class Class, key string) (bool, int, error) {
	limit := p.config.limit(class)
	window := time.Now().Unix() / int64(limit.Window.Seconds())
	bucket := fmt.Sprintf("ratelimit:%s:%s:%d", class, key, window)

	count, err := p.client.Incr(ctx, bucket).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := p.client.Expire(ctx, bucket, limit.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count > int64(limit.Requests) {
		retry := int(limit.Window.Seconds()) - int(time.Now().Unix()%int64(limit.Window.Seconds()))
		return false, retry, nil
	}
	return true, 0, nil
}

// Middleware enforces the class budget on every request. Administrator
// principals are never limited. When Redis is unreachable the request is
// admitted; availability wins over strictness here.
func (p *Policy) Middleware(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := httprate.KeyByIP
			var bucket string
			if principal, ok := shared.PrincipalFromContext(r.Context()); ok {
				if principal.Administrator() {
					next.ServeHTTP(w, r)
					return
				}
				bucket = principal.ID.String()
			} else if ip, err := key(r); err == nil {
				bucket = ip
			} else {
				bucket = r.RemoteAddr
			}

			allowed, retry, err := p.Allow(r.Context(), class, bucket)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
