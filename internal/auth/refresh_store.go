package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshStore registers issued refresh tokens in Redis so they can be
// revoked (logout, rotation) before their JWT expiry.
type RefreshStore struct {
	client *redis.Client
}

// NewRefreshStore constructs a RefreshStore.
func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{client: client}
}

func refreshKey(tokenID string) string {
	return "auth:refresh:" + tokenID
}

// Put registers a refresh token ID for the user with the given TTL.
func (s *RefreshStore) Put(ctx context.Context, tokenID string, userID uuid.UUID, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshKey(tokenID), userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("auth: store refresh token: %w", err)
	}
	return nil
}

// Consume removes the token ID and reports whether it was still registered.
// Rotation consumes the old token in the same call that validates it, so a
// replayed refresh token fails.
func (s *RefreshStore) Consume(ctx context.Context, tokenID string) (bool, error) {
	deleted, err := s.client.Del(ctx, refreshKey(tokenID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("auth: consume refresh token: %w", err)
	}
	return deleted > 0, nil
}
