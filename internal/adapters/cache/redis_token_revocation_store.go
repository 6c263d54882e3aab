package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisTokenRevocationStore stores revoked-token flags with TTL. Keys expire
// together with the token they shadow, so the set stays bounded.
type RedisTokenRevocationStore struct {
	client *redis.Client
}

func NewRedisTokenRevocationStore(client *redis.Client) *RedisTokenRevocationStore {
	return &RedisTokenRevocationStore{client: client}
}

func (s *RedisTokenRevocationStore) MarkRevoked(ctx context.Context, tokenID uuid.UUID, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Hour
	}
	return s.client.Set(ctx, "portal:revoked:"+tokenID.String(), "1", ttl).Err()
}

func (s *RedisTokenRevocationStore) IsRevoked(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, "portal:revoked:"+tokenID.String()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
