package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/rangda/ports"
)

// RedisDenylist is a Redis implementation of ports.Denylist. Redis handles
// the TTL bound; multiple instances share one revocation view.
type RedisDenylist struct {
	client *redis.Client
	prefix string
}

// NewRedisDenylist creates a Redis-backed denylist.
func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{
		client: client,
		prefix: "rangda:revoked:",
	}
}

// Revoke marks a credential id as revoked with expiry.
func (s *RedisDenylist) Revoke(ctx context.Context, credentialID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+credentialID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}
	return nil
}

// IsRevoked reports whether a credential id is on the denylist.
func (s *RedisDenylist) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+credentialID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return val > 0, nil
}

var _ ports.Denylist = (*RedisDenylist)(nil)
