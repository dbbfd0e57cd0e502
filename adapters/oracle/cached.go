package oracle

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/layer-3/rangda/ports"
)

// Cached decorates an oracle with read caching. Ownership answers are cached
// briefly to keep chain lookups off the hot path; metadata is cached forever
// since a token's traits never change. Only successful lookups are cached, so
// a transient RPC failure never becomes a sticky wrong answer.
type Cached struct {
	inner    ports.OwnershipOracle
	owners   *gocache.Cache
	tokens   *gocache.Cache
	metadata *gocache.Cache
}

// NewCached wraps inner with caching. ownershipTTL bounds how stale an
// ownership answer may be.
func NewCached(inner ports.OwnershipOracle, ownershipTTL time.Duration) *Cached {
	cleanup := 2 * ownershipTTL
	return &Cached{
		inner:    inner,
		owners:   gocache.New(ownershipTTL, cleanup),
		tokens:   gocache.New(ownershipTTL, cleanup),
		metadata: gocache.New(gocache.NoExpiration, 0),
	}
}

func (c *Cached) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	if v, ok := c.owners.Get(tokenID); ok {
		return v.(string), nil
	}
	owner, err := c.inner.OwnerOf(ctx, tokenID)
	if err != nil {
		return "", err
	}
	c.owners.SetDefault(tokenID, owner)
	return owner, nil
}

func (c *Cached) TokensOf(ctx context.Context, address string) ([]string, error) {
	if v, ok := c.tokens.Get(address); ok {
		return append([]string(nil), v.([]string)...), nil
	}
	owned, err := c.inner.TokensOf(ctx, address)
	if err != nil {
		return nil, err
	}
	c.tokens.SetDefault(address, owned)
	return append([]string(nil), owned...), nil
}

func (c *Cached) TokenMetadata(ctx context.Context, tokenID string) ([]byte, error) {
	if v, ok := c.metadata.Get(tokenID); ok {
		return v.([]byte), nil
	}
	blob, err := c.inner.TokenMetadata(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	c.metadata.Set(tokenID, blob, gocache.NoExpiration)
	return blob, nil
}

// Forget drops cached ownership answers for an address. Called when an
// external transfer notification invalidates what we cached.
func (c *Cached) Forget(address string) {
	c.tokens.Delete(address)
}

var _ ports.OwnershipOracle = (*Cached)(nil)
