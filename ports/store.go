package ports

import (
	"context"
	"time"
)

// Denylist tracks revoked credential ids. Entries are time-bounded: they must
// survive at least as long as the longest credential lifetime, after which
// they may be dropped.
type Denylist interface {
	Revoke(ctx context.Context, credentialID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, credentialID string) (bool, error)
}
