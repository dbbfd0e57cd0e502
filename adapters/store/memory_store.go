package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/rangda/ports"
)

// MemoryDenylist is an in-memory implementation of ports.Denylist for
// single-instance deployments and tests. Expired entries are dropped lazily
// on read and opportunistically on write.
type MemoryDenylist struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

// NewMemoryDenylist creates an empty in-memory denylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[string]time.Time)}
}

// Revoke marks a credential id as revoked until now+ttl.
func (s *MemoryDenylist) Revoke(ctx context.Context, credentialID string, ttl time.Duration) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Piggyback a prune so long-lived processes don't accumulate dead entries.
	for id, until := range s.revoked {
		if now.After(until) {
			delete(s.revoked, id)
		}
	}

	expiry := now.Add(ttl)
	if current, ok := s.revoked[credentialID]; !ok || expiry.After(current) {
		s.revoked[credentialID] = expiry
	}
	return nil
}

// IsRevoked reports whether a credential id is on the denylist.
func (s *MemoryDenylist) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	s.mu.RLock()
	until, ok := s.revoked[credentialID]
	s.mu.RUnlock()

	return ok && time.Now().Before(until), nil
}

var _ ports.Denylist = (*MemoryDenylist)(nil)
